package asset

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/maxlink/dashboard/internal/dom"
	"github.com/maxlink/dashboard/internal/metrics"
)

// Loader puts widget stylesheets and scripts into the document head
// exactly once.  Reloads and repeated Init calls must not load a script a
// second time, so every call first checks the head.
type Loader struct {
	head *dom.Head
	src  Source
	log  *zap.SugaredLogger
	sfg  singleflight.Group
}

// NewLoader returns a loader that records assets in head and loads
// scripts from src.
func NewLoader(head *dom.Head, src Source, log *zap.SugaredLogger) *Loader {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Loader{head: head, src: src, log: log}
}

// EnsureStyle links the stylesheet unless it is already linked.  Styles are
// fire-and-forget: there is no completion signal.
func (l *Loader) EnsureStyle(name string) {
	if l.head.AddLink(name) {
		l.log.Debugw("stylesheet linked", "href", name)
	}
}

// EnsureScript returns nil once the script is part of the document.  A
// script already present returns immediately; otherwise it is loaded from
// the source and recorded.  Concurrent callers for the same script share
// one load.  Failures are logged and returned, never panicked.
func (l *Loader) EnsureScript(ctx context.Context, name string) error {
	if l.head.HasScript(name) {
		return nil
	}

	_, err, _ := l.sfg.Do(name, func() (any, error) {
		if l.head.HasScript(name) { // double-check after singleflight barrier
			return nil, nil
		}
		if _, err := l.src.Fetch(ctx, name); err != nil {
			return nil, err
		}
		l.head.AddScript(name)
		l.log.Debugw("script loaded", "src", name)
		return nil, nil
	})
	if err != nil {
		metrics.AssetLoadErrorsTotal.WithLabelValues("script").Inc()
		l.log.Errorw("script load failed", "src", name, "err", err)
		return fmt.Errorf("load script %s: %w", name, err)
	}
	return nil
}
