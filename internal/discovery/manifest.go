package discovery

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/maxlink/dashboard/internal/asset"
	"github.com/maxlink/dashboard/internal/widget"
)

// DefaultManifest is the manifest name under the asset source.
const DefaultManifest = "widgets/manifest.yaml"

// Manifest reads candidate widgets from a single declarative file:
//
//	widgets:
//	  - clock                 # bare id
//	  - id: uptime            # or a full descriptor
//	    position: {top: "20%", left: "80%"}
//	    size: {width: "260px"}
//	    z_index: 2
//
// JSON is accepted too since it parses as YAML.
type Manifest struct {
	src  asset.Source
	name string
	log  *zap.SugaredLogger
}

// NewManifest returns a lister that fetches name from src.
func NewManifest(src asset.Source, name string, log *zap.SugaredLogger) *Manifest {
	if name == "" {
		name = DefaultManifest
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Manifest{src: src, name: name, log: log}
}

func (m *Manifest) ListWidgets(ctx context.Context) []widget.Descriptor {
	raw, err := m.src.Fetch(ctx, m.name)
	if err != nil {
		m.log.Warnw("manifest fetch failed", "manifest", m.name, "err", err)
		return nil
	}
	descs, err := parseManifest(raw)
	if err != nil {
		m.log.Warnw("manifest parse failed", "manifest", m.name, "err", err)
		return nil
	}
	if len(descs) == 0 {
		m.log.Warnw("manifest lists no widgets", "manifest", m.name)
	}
	return descs
}

// WidgetExists reports whether the manifest lists id.
func (m *Manifest) WidgetExists(ctx context.Context, id string) bool {
	for _, d := range m.ListWidgets(ctx) {
		if d.ID == id {
			return true
		}
	}
	return false
}

type manifestFile struct {
	Widgets []manifestEntry `yaml:"widgets"`
}

type manifestEntry struct {
	widget.Descriptor
}

// UnmarshalYAML accepts either a scalar id or a descriptor mapping.
func (e *manifestEntry) UnmarshalYAML(n *yaml.Node) error {
	switch n.Kind {
	case yaml.ScalarNode:
		e.ID = n.Value
		return nil
	case yaml.MappingNode:
		return n.Decode(&e.Descriptor)
	default:
		return fmt.Errorf("line %d: widget entry must be an id or a mapping", n.Line)
	}
}

var errNoWidgetsKey = errors.New("manifest has no widgets list")

// parseManifest decodes raw and drops invalid or duplicate ids; the first
// occurrence of an id wins.
func parseManifest(raw []byte) ([]widget.Descriptor, error) {
	var f manifestFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, err
	}
	if f.Widgets == nil {
		return nil, errNoWidgetsKey
	}

	seen := make(map[string]struct{}, len(f.Widgets))
	out := make([]widget.Descriptor, 0, len(f.Widgets))
	for _, e := range f.Widgets {
		if !asset.ValidID(e.ID) {
			continue
		}
		if _, dup := seen[e.ID]; dup {
			continue
		}
		seen[e.ID] = struct{}{}
		out = append(out, e.Descriptor)
	}
	return out, nil
}
