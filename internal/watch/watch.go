// Package watch reloads widgets when their asset files change on disk.
//
// fsnotify is not recursive, so the widgets directory and each widget
// folder below it are watched individually; folders created later are
// picked up as they appear.  Bursts of writes to one widget (an editor
// saving html, css, and js) collapse into one ReloadWidget call per id.
package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/maxlink/dashboard/internal/asset"
)

// DefaultDebounce is the quiet period before a reload fires.
const DefaultDebounce = 300 * time.Millisecond

// Reloader is implemented by the dashboard manager.
type Reloader interface {
	ReloadWidget(ctx context.Context, id string) error
}

// Watcher maps file events under dir to widget reloads.
type Watcher struct {
	dir      string
	paths    asset.Paths
	reloader Reloader
	log      *zap.SugaredLogger
	debounce time.Duration

	fsw    *fsnotify.Watcher
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu      sync.Mutex
	timers  map[string]*time.Timer
	running bool
}

// New prepares a watcher over dir, the on-disk widgets directory.
func New(dir string, r Reloader, log *zap.SugaredLogger, debounce time.Duration) (*Watcher, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}
	return &Watcher{
		dir:      filepath.Clean(dir),
		paths:    asset.Paths{Root: filepath.Base(dir)},
		reloader: r,
		log:      log,
		debounce: debounce,
		fsw:      fsw,
		done:     make(chan struct{}),
		timers:   make(map[string]*time.Timer),
	}, nil
}

// Start begins watching.  Reloads run with ctx.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return errors.New("watch: already running")
	}

	if err := w.fsw.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return fmt.Errorf("read %s: %w", w.dir, err)
	}
	for _, e := range entries {
		if e.IsDir() {
			w.add(filepath.Join(w.dir, e.Name()))
		}
	}

	w.ctx, w.cancel = context.WithCancel(ctx)
	w.running = true
	go w.loop()

	w.log.Infow("asset watcher started", "dir", w.dir)
	return nil
}

// Stop ends the watch and cancels pending reloads.  Safe to call twice.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.cancel()
	for id, t := range w.timers {
		t.Stop()
		delete(w.timers, id)
	}
	w.mu.Unlock()

	_ = w.fsw.Close()
	<-w.done
	w.log.Infow("asset watcher stopped", "dir", w.dir)
}

func (w *Watcher) add(dir string) {
	if err := w.fsw.Add(dir); err != nil {
		w.log.Warnw("cannot watch widget folder", "dir", dir, "err", err)
	}
}

func (w *Watcher) loop() {
	defer close(w.done)
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Errorw("file watcher error", "err", err)
		case <-w.ctx.Done():
			return
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if ev.Op&fsnotify.Chmod == ev.Op {
		return
	}

	// new widget folder
	if ev.Op&fsnotify.Create != 0 {
		if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() && filepath.Dir(ev.Name) == w.dir {
			w.add(ev.Name)
			return
		}
	}

	id, ok := w.widgetID(ev.Name)
	if !ok {
		return
	}
	w.log.Debugw("widget asset changed", "widget", id, "file", ev.Name, "op", ev.Op.String())
	w.schedule(id)
}

// widgetID maps a file inside <dir>/<id>/ to id.  Files directly in dir,
// such as the manifest, belong to no widget.
func (w *Watcher) widgetID(name string) (string, bool) {
	rel, err := filepath.Rel(w.dir, name)
	if err != nil {
		return "", false
	}
	rel = filepath.ToSlash(rel)
	if !strings.Contains(rel, "/") {
		return "", false
	}
	return w.paths.WidgetID(path.Join(w.paths.Root, rel))
}

func (w *Watcher) schedule(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return
	}
	if t, ok := w.timers[id]; ok {
		t.Stop()
	}
	w.timers[id] = time.AfterFunc(w.debounce, func() { w.fire(id) })
}

func (w *Watcher) fire(id string) {
	w.mu.Lock()
	delete(w.timers, id)
	ctx := w.ctx
	running := w.running
	w.mu.Unlock()
	if !running {
		return
	}

	if err := w.reloader.ReloadWidget(ctx, id); err != nil {
		w.log.Debugw("hot reload skipped", "widget", id, "err", err)
		return
	}
	w.log.Infow("widget hot reloaded", "widget", id)
}
