package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type recorder struct {
	mu  sync.Mutex
	ids []string
}

func (r *recorder) ReloadWidget(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, id)
	return nil
}

func (r *recorder) calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ids...)
}

func setup(t *testing.T) (string, *recorder, *Watcher) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "widgets")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "clock"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "clock", "clock.js"), []byte("//"), 0o644))

	rec := &recorder{}
	w, err := New(dir, rec, zaptest.NewLogger(t).Sugar(), 30*time.Millisecond)
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(w.Stop)
	return dir, rec, w
}

func TestWatcher_BurstCollapsesToOneReload(t *testing.T) {
	dir, rec, _ := setup(t)

	for _, name := range []string{"clock.html", "clock.css", "clock.js"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "clock", name), []byte("x"), 0o644))
	}

	require.Eventually(t, func() bool { return len(rec.calls()) == 1 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, []string{"clock"}, rec.calls())
}

func TestWatcher_IgnoresTopLevelFiles(t *testing.T) {
	dir, rec, _ := setup(t)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "manifest.yaml"), []byte("widgets: []"), 0o644))
	time.Sleep(150 * time.Millisecond)
	assert.Empty(t, rec.calls())
}

func TestWatcher_WidgetID(t *testing.T) {
	w := &Watcher{dir: "/srv/web/widgets"}
	w.paths.Root = "widgets"

	id, ok := w.widgetID("/srv/web/widgets/uptime/uptime.css")
	assert.True(t, ok)
	assert.Equal(t, "uptime", id)

	_, ok = w.widgetID("/srv/web/widgets/manifest.yaml")
	assert.False(t, ok)
	_, ok = w.widgetID("/srv/web/other/x.js")
	assert.False(t, ok)
}

func TestWatcher_StartTwice(t *testing.T) {
	_, _, w := setup(t)
	assert.Error(t, w.Start(context.Background()))
}
