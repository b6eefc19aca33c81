package discovery

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/maxlink/dashboard/internal/asset"
	"github.com/maxlink/dashboard/internal/widget"
)

// checkLimit caps concurrent existence checks during one listing.
const checkLimit = 8

// Validated keeps only the candidates of an inner Lister whose markup and
// script assets both exist.  Order is preserved.
type Validated struct {
	inner Lister
	src   asset.Source
	paths asset.Paths
	log   *zap.SugaredLogger
}

// Validate wraps inner with asset existence checks against src.
func Validate(inner Lister, src asset.Source, paths asset.Paths, log *zap.SugaredLogger) *Validated {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Validated{inner: inner, src: src, paths: paths, log: log}
}

func (v *Validated) ListWidgets(ctx context.Context) []widget.Descriptor {
	cands := v.inner.ListWidgets(ctx)
	ok := make([]bool, len(cands))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(checkLimit)
	for i, d := range cands {
		g.Go(func() error {
			ok[i] = v.WidgetExists(gctx, d.ID)
			return nil
		})
	}
	_ = g.Wait() // checks never return errors

	out := make([]widget.Descriptor, 0, len(cands))
	for i, d := range cands {
		if !ok[i] {
			v.log.Debugw("widget candidate dropped", "widget", d.ID)
			continue
		}
		out = append(out, d)
	}
	v.log.Infow("widgets discovered", "candidates", len(cands), "valid", len(out))
	return out
}

// WidgetExists checks the markup and script assets of id independently.
func (v *Validated) WidgetExists(ctx context.Context, id string) bool {
	if !asset.ValidID(id) {
		return false
	}
	return v.src.Exists(ctx, v.paths.Markup(id)) && v.src.Exists(ctx, v.paths.Script(id))
}
