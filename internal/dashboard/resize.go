package dashboard

import (
	"context"
	"sync"
	"time"

	"github.com/maxlink/dashboard/internal/layout"
	"github.com/maxlink/dashboard/internal/metrics"
	"github.com/maxlink/dashboard/internal/widget"
)

// debouncer runs fn once, wait after the last trigger.
type debouncer struct {
	mu      sync.Mutex
	wait    time.Duration
	fn      func()
	timer   *time.Timer
	stopped bool
}

func newDebouncer(wait time.Duration, fn func()) *debouncer {
	return &debouncer{wait: wait, fn: fn}
}

func (d *debouncer) trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.wait, d.fn)
}

// restart re-arms a debouncer after stop.
func (d *debouncer) restart() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = false
}

func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
}

// Resize records the viewport size.  Once Init has run, a burst of calls
// collapses into one fan-out after the debounce period: the centre
// variables are recomputed and every widget implementing widget.Resizer
// gets OnResize.
func (m *Manager) Resize(width, height float64) {
	m.mu.Lock()
	m.width, m.height = width, height
	listening := m.listening
	m.mu.Unlock()

	if listening {
		m.resize.trigger()
	}
}

// Viewport returns the last recorded size.
func (m *Manager) Viewport() (width, height float64) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.width, m.height
}

func (m *Manager) fanOutResize() {
	m.mu.RLock()
	w, h := m.width, m.height
	var ids []string
	var targets []widget.Resizer
	for _, id := range sortedIDs(m.loaded) {
		if r, ok := m.loaded[id].(widget.Resizer); ok {
			ids = append(ids, id)
			targets = append(targets, r)
		}
	}
	m.mu.RUnlock()

	layout.Center(m.doc, w, h)
	for i, r := range targets {
		_ = m.safeCall(ids[i], "OnResize", func() error {
			r.OnResize()
			return nil
		})
	}

	metrics.ResizeFanoutTotal.Inc()
	m.log.Debugw("resize fanned out", "width", w, "height", h, "widgets", len(targets))
	m.emit(context.Background(), EventResized, "", Resized{Width: w, Height: h, Notified: ids})
}
