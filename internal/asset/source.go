// internal/asset/source.go
//
// Where widget assets come from.
//
// Context
// -------
// Every widget ships three files (markup, stylesheet, script) under
// `widgets/<id>/`.  On the device they sit on local disk next to the
// binary; a development setup can point the dashboard at a remote asset
// server instead.  Both are hidden behind Source so the registry and the
// lifecycle manager never care which one is in use.
//
//   • FSSource    – any fs.FS (os.DirFS, embed.FS, fstest.MapFS).
//   • HTTPSource  – remote server via go-retryablehttp; HEAD for existence checks.
//   • CachedSource – LRU in front of either, used for markup.
//
// Notes
// -----
//   • Missing assets always surface as ErrNotFound (wrapped), so callers
//     can tell "absent" from "server broken" with errors.Is.
//   • Oxford commas, two spaces after periods.
package asset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"

	"github.com/maxlink/dashboard/internal/cache"
)

// ErrNotFound reports an asset that does not exist at the source.
var ErrNotFound = errors.New("asset not found")

// maxAssetBytes caps one fetched asset.
const maxAssetBytes = 4 << 20

// Source fetches widget assets by slash-separated name.
type Source interface {
	Fetch(ctx context.Context, name string) ([]byte, error)
	Exists(ctx context.Context, name string) bool
}

// Forgetter is implemented by sources that cache; the manager calls it so a
// reload always sees fresh markup.
type Forgetter interface {
	Forget(name string)
}

/*──────────────────────────── filesystem ───────────────────────────────────*/

// FSSource reads assets from an fs.FS.
type FSSource struct {
	fsys fs.FS
}

// NewFS wraps fsys, typically os.DirFS("web").
func NewFS(fsys fs.FS) *FSSource { return &FSSource{fsys: fsys} }

func (s *FSSource) Fetch(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !fs.ValidPath(name) {
		return nil, fmt.Errorf("%w: invalid name %q", ErrNotFound, name)
	}
	b, err := fs.ReadFile(s.fsys, name)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return b, err
}

func (s *FSSource) Exists(ctx context.Context, name string) bool {
	if ctx.Err() != nil || !fs.ValidPath(name) {
		return false
	}
	fi, err := fs.Stat(s.fsys, name)
	return err == nil && !fi.IsDir()
}

/*──────────────────────────── remote HTTP ──────────────────────────────────*/

// HTTPOptions tunes the remote source.  Zero values pick the defaults.
type HTTPOptions struct {
	RetryMax int           // default 2
	Timeout  time.Duration // per attempt, default 5 s
	Logger   *zap.SugaredLogger
}

// HTTPSource fetches assets relative to a base URL.
type HTTPSource struct {
	base   *url.URL
	client *retryablehttp.Client
}

// NewHTTP returns a source rooted at baseURL, e.g. "http://10.0.0.2:8000/".
func NewHTTP(baseURL string, opts HTTPOptions) (*HTTPSource, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("asset base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("asset base url %q: scheme must be http or https", baseURL)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}

	c := retryablehttp.NewClient()
	c.RetryMax = 2
	if opts.RetryMax > 0 {
		c.RetryMax = opts.RetryMax
	}
	c.RetryWaitMin = 100 * time.Millisecond
	c.RetryWaitMax = time.Second
	c.HTTPClient.Timeout = 5 * time.Second
	if opts.Timeout > 0 {
		c.HTTPClient.Timeout = opts.Timeout
	}
	c.Logger = nil
	if opts.Logger != nil {
		c.Logger = leveled{opts.Logger}
	}

	return &HTTPSource{base: u, client: c}, nil
}

func (s *HTTPSource) resolve(name string) string {
	return s.base.ResolveReference(&url.URL{Path: name}).String()
}

func (s *HTTPSource) Fetch(ctx context.Context, name string) ([]byte, error) {
	resp, err := s.do(ctx, http.MethodGet, name)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("fetch %s: status %d", name, resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxAssetBytes))
}

// Exists issues a HEAD request and falls back to GET for servers that do
// not implement HEAD.
func (s *HTTPSource) Exists(ctx context.Context, name string) bool {
	resp, err := s.do(ctx, http.MethodHead, name)
	if err != nil {
		return false
	}
	resp.Body.Close()
	if resp.StatusCode == http.StatusMethodNotAllowed {
		if resp, err = s.do(ctx, http.MethodGet, name); err != nil {
			return false
		}
		resp.Body.Close()
	}
	return resp.StatusCode >= 200 && resp.StatusCode <= 299
}

func (s *HTTPSource) do(ctx context.Context, method, name string) (*http.Response, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, method, s.resolve(name), nil)
	if err != nil {
		return nil, err
	}
	return s.client.Do(req)
}

// leveled adapts a sugared zap logger to retryablehttp.LeveledLogger.
type leveled struct{ s *zap.SugaredLogger }

func (l leveled) Error(msg string, kv ...interface{}) { l.s.Errorw(msg, kv...) }
func (l leveled) Warn(msg string, kv ...interface{})  { l.s.Warnw(msg, kv...) }
func (l leveled) Info(msg string, kv ...interface{})  { l.s.Debugw(msg, kv...) }
func (l leveled) Debug(msg string, kv ...interface{}) { l.s.Debugw(msg, kv...) }

/*──────────────────────────── caching ──────────────────────────────────────*/

// CachedSource keeps fetched bodies in an LRU.  Existence checks are not cached.
type CachedSource struct {
	src Source
	lru *cache.LRU[[]byte]
}

// Cached wraps src with an LRU of the given capacity.
func Cached(src Source, capacity int) *CachedSource {
	return &CachedSource{src: src, lru: cache.New[[]byte](capacity)}
}

func (c *CachedSource) Fetch(ctx context.Context, name string) ([]byte, error) {
	if b, ok := c.lru.Get(name); ok {
		return append([]byte(nil), b...), nil
	}
	b, err := c.src.Fetch(ctx, name)
	if err != nil {
		return nil, err
	}
	c.lru.Add(name, append([]byte(nil), b...))
	return b, nil
}

func (c *CachedSource) Exists(ctx context.Context, name string) bool {
	return c.src.Exists(ctx, name)
}

// Forget drops name from the cache.
func (c *CachedSource) Forget(name string) { c.lru.Remove(name) }
