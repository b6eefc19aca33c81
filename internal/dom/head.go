// internal/dom/head.go
//
// The Head collects everything that appears inside the page's <head>
// element: the title, meta tags, stylesheet links, and scripts.  The asset
// loader pushes widget stylesheets and scripts here, and the view's base
// layout decides where to emit each slice.
//
// Features
// --------
//   - SetTitle              – single <title> tag (last call wins).
//   - Meta                  – arbitrary pre-escaped tags, deduplicated.
//   - AddLink, AddScript    – asset URLs, deduplicated; report whether the
//     URL was new so callers can tell a first load from a repeat.
//   - HasLink, HasScript    – presence checks for idempotent loaders.
package dom

import (
	"html/template"
	"strings"
	"sync"
)

// Head is safe for concurrent use.
type Head struct {
	mu  sync.Mutex
	doc *Document

	title   string
	metas   []string
	links   []string
	scripts []string

	// seen tracks "<kind>:<value>" keys for deduplication.
	seen map[string]struct{}
}

func newHead(d *Document) *Head {
	return &Head{doc: d, seen: make(map[string]struct{})}
}

// SetTitle overrides the page <title>.  The last caller wins.
func (h *Head) SetTitle(t string) {
	h.mu.Lock()
	h.title = t
	h.mu.Unlock()
}

// Title returns a fully formed <title> tag or an empty string.
func (h *Head) Title() template.HTML {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.title == "" {
		return ""
	}
	return template.HTML("<title>" + template.HTMLEscapeString(h.title) + "</title>")
}

// Meta adds a pre-escaped meta tag once.
func (h *Head) Meta(tag string) { h.add("meta:"+tag, &h.metas, tag) }

// AddLink records a stylesheet URL.  It reports false when the URL was
// already present.
func (h *Head) AddLink(href string) bool {
	if !h.add("link:"+href, &h.links, href) {
		return false
	}
	h.doc.emit(Change{Kind: ChangeHead, Prop: "link", Value: href})
	return true
}

// AddScript records a script URL.  It reports false when the URL was
// already present.
func (h *Head) AddScript(src string) bool {
	if !h.add("script:"+src, &h.scripts, src) {
		return false
	}
	h.doc.emit(Change{Kind: ChangeHead, Prop: "script", Value: src})
	return true
}

func (h *Head) HasLink(href string) bool  { return h.has("link:" + href) }
func (h *Head) HasScript(src string) bool { return h.has("script:" + src) }

func (h *Head) has(key string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.seen[key]
	return ok
}

func (h *Head) add(key string, tgt *[]string, v string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, dup := h.seen[key]; dup {
		return false
	}
	h.seen[key] = struct{}{}
	*tgt = append(*tgt, v)
	return true
}

// Links returns the stylesheet URLs in insertion order.
func (h *Head) Links() []string { return h.list(&h.links) }

// Scripts returns the script URLs in insertion order.
func (h *Head) Scripts() []string { return h.list(&h.scripts) }

func (h *Head) list(sl *[]string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, len(*sl))
	copy(out, *sl)
	return out
}

// Metas joins the pre-escaped meta tags without a separator.
func (h *Head) Metas() template.HTML {
	h.mu.Lock()
	defer h.mu.Unlock()
	return template.HTML(strings.Join(h.metas, ""))
}
