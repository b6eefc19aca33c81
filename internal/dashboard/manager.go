// internal/dashboard/manager.go
//
// Widget lifecycle manager.
//
// Context
// -------
// A Manager owns one dashboard: the root container in a Document, the
// per-widget load pipelines that populate it, the cache of live widget
// instances, and the debounced resize fan-out.  Every collaborator is
// injected through Options, so tests and several dashboards can coexist in
// one process.
//
// Workflow
// --------
//   1. Init resolves the root, publishes the centre variables, and takes
//      the widget list from the caller or from the Lister.
//   2. One pipeline per widget runs concurrently (see pipeline.go).
//   3. Init waits for every pipeline to settle, success or failure, then
//      emits EventWidgetsLoaded exactly once, optionally restores saved
//      widget state, and emits EventDashboardReady.
//   4. ReloadWidget destroys the old instance and runs a fresh pipeline.
//
// Notes
// -----
//   • Loading is best effort.  A widget that fails is logged, recorded in
//     its Status, and announced with EventWidgetFailed; siblings are never
//     affected and Init itself only fails when the root is missing.
//   • Each id carries a generation counter.  The most recently dispatched
//     pipeline for an id wins; an older one that finishes later throws its
//     work away.
//   • An outgoing instance is always destroyed while its container is still
//     in the page; the container goes afterwards.
//   • Lock order is Manager.mu before any Document lock.  Document change
//     subscribers must not call back into the Manager synchronously.
package dashboard

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/maxlink/dashboard/internal/asset"
	"github.com/maxlink/dashboard/internal/discovery"
	"github.com/maxlink/dashboard/internal/dom"
	"github.com/maxlink/dashboard/internal/layout"
	"github.com/maxlink/dashboard/internal/metrics"
	"github.com/maxlink/dashboard/internal/widget"
)

// DefaultRootID is the id of the dashboard container in the page.
const DefaultRootID = "dashboard"

// DefaultResizeDebounce is the quiet period before a resize fans out.
const DefaultResizeDebounce = 250 * time.Millisecond

// ContainerClass tags every widget container the manager creates.
const ContainerClass = "widget"

var (
	ErrNoRoot        = errors.New("dashboard: root container not found")
	ErrUnknownWidget = errors.New("dashboard: widget not in the loaded configuration")
	ErrNoBinding     = errors.New("dashboard: no widget registered for id")
	ErrInvalidID     = errors.New("dashboard: invalid widget id")
)

// Bindings resolves a widget id to its factory.  *widget.Registry
// satisfies it.
type Bindings interface {
	Lookup(id string) widget.Factory
}

// Options wires a Manager.  Document, Lister, and Source are required.
type Options struct {
	Document *dom.Document
	Lister   discovery.Lister
	Source   asset.Source

	// Loader defaults to one built over Document.Head() and Source.
	Loader   *asset.Loader
	Paths    asset.Paths
	Bindings Bindings // defaults to widget.Default()

	RootID         string
	ResizeDebounce time.Duration

	// SharedConfig is merged under every descriptor's own config.
	SharedConfig widget.Config

	// StateStore enables SaveState and RestoreState.  With RestoreOnInit
	// the saved state is applied after every Init, before
	// EventDashboardReady.
	StateStore    StateStore
	RestoreOnInit bool

	Logger *zap.SugaredLogger
}

// Manager drives widget discovery, loading, reload, and resize for one
// dashboard.
type Manager struct {
	doc      *dom.Document
	lister   discovery.Lister
	src      asset.Source
	loader   *asset.Loader
	paths    asset.Paths
	bindings Bindings
	rootID   string
	shared   widget.Config
	store    StateStore
	restore  bool
	log      *zap.SugaredLogger

	observers observers
	resize    *debouncer

	mu          sync.RWMutex
	root        *dom.Element
	descs       []widget.Descriptor
	loaded      map[string]widget.Widget
	status      map[string]Status
	gen         map[string]uint64
	width       float64
	height      float64
	initialized bool
	listening   bool
}

// New validates opts and returns an idle Manager.  Nothing is loaded until
// Init.
func New(opts Options) (*Manager, error) {
	switch {
	case opts.Document == nil:
		return nil, errors.New("dashboard: Options.Document is required")
	case opts.Lister == nil:
		return nil, errors.New("dashboard: Options.Lister is required")
	case opts.Source == nil:
		return nil, errors.New("dashboard: Options.Source is required")
	}

	log := opts.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	loader := opts.Loader
	if loader == nil {
		loader = asset.NewLoader(opts.Document.Head(), opts.Source, log)
	}
	bindings := opts.Bindings
	if bindings == nil {
		bindings = widget.Default()
	}
	rootID := opts.RootID
	if rootID == "" {
		rootID = DefaultRootID
	}
	wait := opts.ResizeDebounce
	if wait <= 0 {
		wait = DefaultResizeDebounce
	}

	m := &Manager{
		doc:      opts.Document,
		lister:   opts.Lister,
		src:      opts.Source,
		loader:   loader,
		paths:    opts.Paths,
		bindings: bindings,
		rootID:   rootID,
		shared:   opts.SharedConfig,
		store:    opts.StateStore,
		restore:  opts.RestoreOnInit,
		log:      log,
		loaded:   make(map[string]widget.Widget),
		status:   make(map[string]Status),
		gen:      make(map[string]uint64),
	}
	m.resize = newDebouncer(wait, m.fanOutResize)
	return m, nil
}

// Init loads the dashboard.  A non-empty config is used as the widget list;
// otherwise the Lister is asked.  Init returns once every pipeline has
// settled, with the list it processed.  The only error is ErrNoRoot.
//
// Calling Init again re-runs the whole sequence.  Widgets absent from the
// new list are torn down.  Widgets listed again are reloaded: the old
// instance is destroyed and its container removed before the new pipeline
// starts.  Scripts already in the head are not reloaded.
func (m *Manager) Init(ctx context.Context, config []widget.Descriptor) ([]widget.Descriptor, error) {
	root := m.doc.Root(m.rootID)
	if root == nil {
		m.log.Errorw("dashboard root not found", "root", m.rootID)
		return nil, ErrNoRoot
	}

	m.mu.Lock()
	m.root = root
	w, h := m.width, m.height
	m.mu.Unlock()
	layout.Center(m.doc, w, h)

	descs := slices.Clone(config)
	if len(descs) == 0 {
		descs = m.lister.ListWidgets(ctx)
	}
	if len(descs) == 0 {
		m.log.Warnw("no widgets to load", "root", m.rootID)
	}

	var outgoing []retiree
	gens := make([]uint64, len(descs))

	m.mu.Lock()
	m.descs = descs
	for id := range m.status {
		if !slices.ContainsFunc(descs, func(d widget.Descriptor) bool { return d.ID == id }) {
			m.gen[id]++
			outgoing = append(outgoing, retiree{id: id, gen: m.gen[id], old: m.releaseLocked(id)})
			delete(m.status, id)
		}
	}
	for i, d := range descs {
		gens[i] = m.dispatchLocked(d.ID)
		outgoing = append(outgoing, retiree{id: d.ID, gen: gens[i], old: m.releaseLocked(d.ID)})
	}
	m.mu.Unlock()

	for _, r := range outgoing {
		m.retire(r.id, r.gen, r.old)
	}

	m.log.Infow("loading widgets", "count", len(descs))

	var g errgroup.Group
	for i, d := range descs {
		g.Go(func() error {
			m.loadWidget(ctx, d, gens[i])
			return nil
		})
	}

	m.resize.restart()
	m.mu.Lock()
	m.listening = true
	m.mu.Unlock()

	_ = g.Wait() // pipelines report through status and events

	summary := WidgetsLoaded{Widgets: make([]string, 0, len(descs))}
	m.mu.Lock()
	m.initialized = true
	for _, d := range descs {
		summary.Widgets = append(summary.Widgets, d.ID)
		switch m.status[d.ID].State {
		case StateInitialized:
			summary.Loaded = append(summary.Loaded, d.ID)
		case StateFailed:
			summary.Failed = append(summary.Failed, d.ID)
		}
	}
	m.mu.Unlock()

	m.log.Infow("widgets loaded",
		"total", len(summary.Widgets),
		"loaded", len(summary.Loaded),
		"failed", len(summary.Failed))
	m.emit(ctx, EventWidgetsLoaded, "", summary)

	ready := Ready{Widgets: slices.Clone(summary.Loaded)}
	if m.restore && m.store != nil {
		n, err := m.RestoreState(ctx)
		switch {
		case errors.Is(err, ErrNoSavedState):
		case err != nil:
			m.log.Warnw("dashboard state not restored", "err", err)
		default:
			ready.Restored = n
		}
	}
	m.emit(ctx, EventDashboardReady, "", ready)

	return slices.Clone(descs), nil
}

// Initialized reports whether Init has completed at least once.
func (m *Manager) Initialized() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.initialized
}

// Descriptors returns the widget list of the last Init.
func (m *Manager) Descriptors() []widget.Descriptor {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.descs)
}

// GetWidget returns the live instance for id, or nil.
func (m *Manager) GetWidget(id string) widget.Widget {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loaded[id]
}

// GetWidgets returns a copy of the id to instance map.
func (m *Manager) GetWidgets() map[string]widget.Widget {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]widget.Widget, len(m.loaded))
	for id, w := range m.loaded {
		out[id] = w
	}
	return out
}

// Status returns the pipeline state of id.
func (m *Manager) Status(id string) (Status, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.status[id]
	return st, ok
}

// Statuses returns every known status in configuration order.
func (m *Manager) Statuses() []Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Status, 0, len(m.status))
	seen := make(map[string]bool, len(m.descs))
	for _, d := range m.descs {
		if st, ok := m.status[d.ID]; ok && !seen[d.ID] {
			out = append(out, st)
			seen[d.ID] = true
		}
	}
	return out
}

// ReloadWidget tears down id and loads it again from scratch.  The old
// instance's Destroy runs before its container is removed.  Only ids from
// the last Init can be reloaded.
func (m *Manager) ReloadWidget(ctx context.Context, id string) error {
	m.mu.Lock()
	i := slices.IndexFunc(m.descs, func(d widget.Descriptor) bool { return d.ID == id })
	if i < 0 {
		m.mu.Unlock()
		m.log.Errorw("reload of unknown widget", "widget", id)
		return ErrUnknownWidget
	}
	d := m.descs[i]
	gen := m.dispatchLocked(id)
	old := m.releaseLocked(id)
	m.mu.Unlock()

	m.retire(id, gen, old)
	if f, ok := m.src.(asset.Forgetter); ok {
		f.Forget(m.paths.Markup(id))
	}
	metrics.WidgetReloadTotal.Inc()
	m.log.Infow("reloading widget", "widget", id)

	m.loadWidget(ctx, d, gen)

	m.mu.RLock()
	current := m.gen[id] == gen
	st := m.status[id]
	m.mu.RUnlock()
	if !current {
		m.log.Debugw("reload superseded by a newer dispatch", "widget", id)
		return nil
	}
	m.emit(ctx, EventWidgetReloaded, id, st)
	return nil
}

// RefreshAll asks every DataLoader widget to fetch fresh data and returns
// how many were asked.  Failures are logged per widget.
func (m *Manager) RefreshAll(ctx context.Context) int {
	var targets []string
	var loaders []widget.DataLoader
	m.mu.RLock()
	for _, id := range sortedIDs(m.loaded) {
		if dl, ok := m.loaded[id].(widget.DataLoader); ok {
			targets = append(targets, id)
			loaders = append(loaders, dl)
		}
	}
	m.mu.RUnlock()

	var g errgroup.Group
	for i, dl := range loaders {
		g.Go(func() error {
			if err := m.safeCall(targets[i], "LoadData", func() error { return dl.LoadData(ctx) }); err != nil {
				m.log.Warnw("widget refresh failed", "widget", targets[i], "err", err)
			}
			return nil
		})
	}
	_ = g.Wait()
	m.log.Debugw("widgets refreshed", "count", len(loaders))
	return len(loaders)
}

// SetConfig forwards cfg to id when it implements widget.Configurer.
func (m *Manager) SetConfig(id string, cfg widget.Config) bool {
	c, ok := m.GetWidget(id).(widget.Configurer)
	if !ok {
		return false
	}
	_ = m.safeCall(id, "SetConfig", func() error {
		c.SetConfig(cfg)
		return nil
	})
	return true
}

// Close stops the resize fan-out and destroys every live widget.  The
// containers stay in the document.  Close is not terminal: a later Init
// loads the dashboard again and re-arms the resize fan-out.
func (m *Manager) Close() {
	m.resize.stop()

	m.mu.Lock()
	m.listening = false
	live := make([]widget.Widget, 0, len(m.loaded))
	for id, w := range m.loaded {
		m.gen[id]++
		live = append(live, w)
	}
	clear(m.loaded)
	metrics.ActiveWidgets.Set(0)
	m.mu.Unlock()

	for _, w := range live {
		m.destroy(w)
	}
}

// dispatchLocked starts a new generation for id.
func (m *Manager) dispatchLocked(id string) uint64 {
	m.gen[id]++
	m.status[id] = Status{ID: id, State: StateDiscovered, UpdatedAt: time.Now()}
	return m.gen[id]
}

// retiree is an instance taken out of the cache, waiting for retire.
type retiree struct {
	id  string
	gen uint64
	old widget.Widget
}

// releaseLocked takes id's live instance out of the cache.  The caller
// hands it to retire once the lock is released.
func (m *Manager) releaseLocked(id string) widget.Widget {
	old, ok := m.loaded[id]
	if !ok {
		return nil
	}
	delete(m.loaded, id)
	metrics.ActiveWidgets.Set(float64(len(m.loaded)))
	return old
}

// retire destroys old while its container is still in the page, then
// removes every container tagged id.  Removal is skipped once a dispatch
// newer than gen owns the id; that pipeline clears them on injection.
func (m *Manager) retire(id string, gen uint64, old widget.Widget) {
	m.destroy(old)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gen[id] == gen {
		m.removeContainersLocked(id)
	}
}

func (m *Manager) removeContainersLocked(id string) {
	for el := m.doc.GetElementByID(id); el != nil; el = m.doc.GetElementByID(id) {
		el.Remove()
	}
}

func (m *Manager) destroy(w widget.Widget) {
	d, ok := w.(widget.Destroyer)
	if !ok {
		return
	}
	_ = m.safeCall("", "Destroy", func() error {
		d.Destroy()
		return nil
	})
}

func sortedIDs(in map[string]widget.Widget) []string {
	ids := make([]string, 0, len(in))
	for id := range in {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
