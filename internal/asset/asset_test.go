package asset

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/maxlink/dashboard/internal/dom"
)

func testFS() fstest.MapFS {
	return fstest.MapFS{
		"widgets/clock/clock.html": {Data: []byte(`<span data-metric="time"></span>`)},
		"widgets/clock/clock.css":  {Data: []byte(`#clock{}`)},
		"widgets/clock/clock.js":   {Data: []byte(`// clock`)},
	}
}

func TestPaths(t *testing.T) {
	p := Paths{}
	assert.Equal(t, "widgets/clock/clock.html", p.Markup("clock"))
	assert.Equal(t, "widgets/clock/clock.css", p.Style("clock"))
	assert.Equal(t, "widgets/clock/clock.js", p.Script("clock"))

	p = Paths{Root: "/assets/widgets/"}
	assert.Equal(t, "assets/widgets/uptime/uptime.js", p.Script("uptime"))

	id, ok := p.WidgetID("assets/widgets/uptime/uptime.css")
	assert.True(t, ok)
	assert.Equal(t, "uptime", id)
	_, ok = p.WidgetID("elsewhere/uptime.css")
	assert.False(t, ok)

	assert.False(t, ValidID("../etc"))
	assert.False(t, ValidID(""))
	assert.True(t, ValidID("mqtt-logs"))
}

func TestFSSource(t *testing.T) {
	ctx := context.Background()
	src := NewFS(testFS())

	b, err := src.Fetch(ctx, "widgets/clock/clock.html")
	require.NoError(t, err)
	assert.Contains(t, string(b), "data-metric")

	_, err = src.Fetch(ctx, "widgets/ghost/ghost.html")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = src.Fetch(ctx, "../secret")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.True(t, src.Exists(ctx, "widgets/clock/clock.js"))
	assert.False(t, src.Exists(ctx, "widgets/clock"))
	assert.False(t, src.Exists(ctx, "widgets/ghost/ghost.js"))
}

func TestHTTPSource(t *testing.T) {
	srv := httptest.NewServer(http.FileServer(http.FS(testFS())))
	defer srv.Close()

	src, err := NewHTTP(srv.URL, HTTPOptions{RetryMax: 1})
	require.NoError(t, err)
	ctx := context.Background()

	b, err := src.Fetch(ctx, "widgets/clock/clock.css")
	require.NoError(t, err)
	assert.Equal(t, "#clock{}", string(b))

	_, err = src.Fetch(ctx, "widgets/ghost/ghost.html")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.True(t, src.Exists(ctx, "widgets/clock/clock.js"))
	assert.False(t, src.Exists(ctx, "widgets/ghost/ghost.js"))

	_, err = NewHTTP("ftp://example", HTTPOptions{})
	assert.Error(t, err)
}

type countingSource struct {
	Source
	fetches atomic.Int32
}

func (c *countingSource) Fetch(ctx context.Context, name string) ([]byte, error) {
	c.fetches.Add(1)
	return c.Source.Fetch(ctx, name)
}

func TestCachedSource(t *testing.T) {
	inner := &countingSource{Source: NewFS(testFS())}
	src := Cached(inner, 8)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := src.Fetch(ctx, "widgets/clock/clock.html")
		require.NoError(t, err)
	}
	assert.EqualValues(t, 1, inner.fetches.Load())

	src.Forget("widgets/clock/clock.html")
	_, err := src.Fetch(ctx, "widgets/clock/clock.html")
	require.NoError(t, err)
	assert.EqualValues(t, 2, inner.fetches.Load())
}

func TestLoader_Idempotent(t *testing.T) {
	doc := dom.New("dashboard")
	inner := &countingSource{Source: NewFS(testFS())}
	l := NewLoader(doc.Head(), inner, zaptest.NewLogger(t).Sugar())
	ctx := context.Background()

	l.EnsureStyle("widgets/clock/clock.css")
	l.EnsureStyle("widgets/clock/clock.css")
	require.NoError(t, l.EnsureScript(ctx, "widgets/clock/clock.js"))
	require.NoError(t, l.EnsureScript(ctx, "widgets/clock/clock.js"))

	assert.Equal(t, []string{"widgets/clock/clock.css"}, doc.Head().Links())
	assert.Equal(t, []string{"widgets/clock/clock.js"}, doc.Head().Scripts())
	assert.EqualValues(t, 1, inner.fetches.Load())
}

func TestLoader_ConcurrentSameScript(t *testing.T) {
	doc := dom.New("dashboard")
	l := NewLoader(doc.Head(), NewFS(testFS()), nil)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, l.EnsureScript(context.Background(), "widgets/clock/clock.js"))
		}()
	}
	wg.Wait()
	assert.Len(t, doc.Head().Scripts(), 1)
}

func TestLoader_MissingScript(t *testing.T) {
	doc := dom.New("dashboard")
	l := NewLoader(doc.Head(), NewFS(testFS()), zaptest.NewLogger(t).Sugar())

	err := l.EnsureScript(context.Background(), "widgets/ghost/ghost.js")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, doc.Head().Scripts())
}

func TestHandler(t *testing.T) {
	h := Handler(NewFS(testFS()), zaptest.NewLogger(t).Sugar())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/widgets/clock/clock.css", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/css")
	assert.Equal(t, "#clock{}", rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/widgets/ghost/ghost.js", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.URL.Path = "/widgets/../secret"
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/widgets/clock/clock.css", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodHead, "/widgets/clock/clock.js", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())
}
