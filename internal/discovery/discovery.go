// internal/discovery/discovery.go
//
// Widget discovery: which widget ids exist to load.
//
// Context
// -------
// The lifecycle manager asks a Lister for descriptors and never learns how
// they were found.  Three strategies ship with the dashboard:
//
//   • Static    – a fixed list from config or the compiled-in registry.
//   • Manifest  – one declarative file (YAML or JSON) fetched from the
//     asset source.  Replaces scraping a web server's directory listing.
//   • Table     – rows from the dashboard_widget table for centrally
//     managed layouts.
//
// Any strategy can be wrapped with Validate, which keeps only candidates
// whose markup and script assets both exist.
//
// Failure semantics
// -----------------
// Nothing in this package returns an error.  Every failure path logs and
// resolves to an empty slice or false, so the dashboard degrades to "no
// widgets" rather than refusing to start.
package discovery

import (
	"context"

	"github.com/maxlink/dashboard/internal/widget"
)

// Lister produces the widgets available to load.
type Lister interface {
	// ListWidgets never fails; an empty result means "nothing to show".
	ListWidgets(ctx context.Context) []widget.Descriptor
	// WidgetExists checks a single id.
	WidgetExists(ctx context.Context, id string) bool
}

// Static returns a fixed list.  Deterministic and never blocks.
type Static struct {
	descs []widget.Descriptor
}

// NewStatic returns a Static lister over descs.
func NewStatic(descs ...widget.Descriptor) *Static {
	return &Static{descs: append([]widget.Descriptor(nil), descs...)}
}

// StaticIDs is a shorthand for descriptors without placement.
func StaticIDs(ids ...string) *Static {
	return NewStatic(widget.Descriptors(ids...)...)
}

func (s *Static) ListWidgets(context.Context) []widget.Descriptor {
	return append([]widget.Descriptor(nil), s.descs...)
}

func (s *Static) WidgetExists(_ context.Context, id string) bool {
	for _, d := range s.descs {
		if d.ID == id {
			return true
		}
	}
	return false
}
