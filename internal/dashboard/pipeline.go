package dashboard

import (
	"context"
	"fmt"
	"time"

	"github.com/maxlink/dashboard/internal/asset"
	"github.com/maxlink/dashboard/internal/layout"
	"github.com/maxlink/dashboard/internal/metrics"
	"github.com/maxlink/dashboard/internal/widget"
)

// loadWidget runs one widget from Discovered to Initialized or Failed.
// Every step first checks that gen is still the current generation for the
// id; a superseded pipeline stops quietly and undoes what it added.
func (m *Manager) loadWidget(ctx context.Context, d widget.Descriptor, gen uint64) {
	id := d.ID
	start := time.Now()
	defer func() { metrics.WidgetLoadSeconds.Observe(time.Since(start).Seconds()) }()

	var inst widget.Widget
	defer func() {
		if r := recover(); r != nil {
			if inst != nil {
				m.destroy(inst)
			}
			m.fail(ctx, id, gen, StageInit, fmt.Errorf("panic: %v", r))
		}
	}()

	if !asset.ValidID(id) {
		m.fail(ctx, id, gen, StageMarkup, fmt.Errorf("%w: %q", ErrInvalidID, id))
		return
	}

	// markup
	if !m.advance(id, gen, StateMarkupFetching) {
		return
	}
	markup, err := m.src.Fetch(ctx, m.paths.Markup(id))
	if err != nil {
		m.fail(ctx, id, gen, StageMarkup, fmt.Errorf("fetch markup: %w", err))
		return
	}

	el := m.doc.CreateElement(id, ContainerClass)
	el.SetMarkup(string(markup))
	layout.Apply(el, d.Position, d.Size, d.ZIndex)

	m.mu.Lock()
	if m.gen[id] != gen {
		m.mu.Unlock()
		m.log.Debugw("superseded before injection", "widget", id)
		return
	}
	prev := m.releaseLocked(id)
	m.mu.Unlock()
	m.destroy(prev)

	m.mu.Lock()
	if m.gen[id] != gen {
		m.mu.Unlock()
		m.log.Debugw("superseded before injection", "widget", id)
		return
	}
	// One container per id: anything left from an earlier pipeline goes.
	m.removeContainersLocked(id)
	if err := m.root.AppendChild(el); err != nil {
		m.mu.Unlock()
		m.fail(ctx, id, gen, StageMarkup, err)
		return
	}
	m.setLocked(id, StateInjected, "", nil)
	m.mu.Unlock()

	// assets
	m.loader.EnsureStyle(m.paths.Style(id))
	if !m.advance(id, gen, StateAssetsLoading) {
		el.Remove()
		return
	}
	if err := m.loader.EnsureScript(ctx, m.paths.Script(id)); err != nil {
		m.fail(ctx, id, gen, StageScript, err)
		return
	}

	// binding
	factory := m.bindings.Lookup(id)
	if factory == nil {
		m.fail(ctx, id, gen, StageBinding, fmt.Errorf("%w: %s", ErrNoBinding, id))
		return
	}
	inst = factory()
	if inst == nil {
		m.fail(ctx, id, gen, StageBinding, fmt.Errorf("%w: %s factory returned nil", ErrNoBinding, id))
		return
	}

	if err := inst.Init(el, widget.Merge(m.shared, d.Config)); err != nil {
		m.destroy(inst)
		m.fail(ctx, id, gen, StageInit, fmt.Errorf("init: %w", err))
		return
	}

	// commit
	m.mu.Lock()
	if m.gen[id] != gen {
		m.mu.Unlock()
		m.log.Debugw("superseded after init, discarding instance", "widget", id)
		m.destroy(inst)
		el.Remove()
		return
	}
	m.loaded[id] = inst
	metrics.ActiveWidgets.Set(float64(len(m.loaded)))
	m.setLocked(id, StateInitialized, "", nil)
	st := m.status[id]
	m.mu.Unlock()

	metrics.WidgetLoadTotal.WithLabelValues("initialized").Inc()
	m.log.Infow("widget initialized", "widget", id, "took", time.Since(start))
	m.emit(ctx, EventWidgetLoaded, id, st)
}

// advance moves id to state when gen is current.
func (m *Manager) advance(id string, gen uint64, state State) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gen[id] != gen {
		return false
	}
	m.setLocked(id, state, "", nil)
	return true
}

// fail records a terminal failure unless gen has been superseded.  Any
// container already injected stays as an inert shell.
func (m *Manager) fail(ctx context.Context, id string, gen uint64, stage string, err error) {
	m.mu.Lock()
	if m.gen[id] != gen {
		m.mu.Unlock()
		m.log.Debugw("superseded pipeline failed", "widget", id, "stage", stage, "err", err)
		return
	}
	m.setLocked(id, StateFailed, stage, err)
	st := m.status[id]
	m.mu.Unlock()

	metrics.WidgetLoadTotal.WithLabelValues("failed").Inc()
	metrics.WidgetLoadErrorsTotal.WithLabelValues(stage).Inc()
	m.log.Errorw("widget load failed", "widget", id, "stage", stage, "err", err)
	m.emit(ctx, EventWidgetFailed, id, st)
}

func (m *Manager) setLocked(id string, state State, stage string, err error) {
	st := Status{ID: id, State: state, Stage: stage, UpdatedAt: time.Now()}
	if err != nil {
		st.Error = err.Error()
	}
	m.status[id] = st
}

// safeCall runs fn and turns a panic into an error so one widget cannot
// take the process down.
func (m *Manager) safeCall(id, method string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s panicked: %v", method, r)
			m.log.Errorw("widget panicked", "widget", id, "method", method, "panic", r)
		}
	}()
	return fn()
}
