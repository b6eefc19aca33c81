// internal/view/render.go
//
// Page renderer: turns the in-memory Document into the dashboard HTML.
//
// Public helpers
// --------------
//   - Renderer.Render  – write the page for a Document to any io.Writer.
//   - Renderer.Handler – http.Handler serving GET /.
//
// Lookup
// ------
// Templates come from an fs.FS (normally os.DirFS("web")).  All *.html in
// the page template's directory are parsed as one set so sub-templates
// ({{ template "container" . }}) work out of the box.  Parsed sets live in
// a small LRU; CacheSkip re-parses on every request, which is what the
// asset watcher wants during development.
//
// Style
// -----
// • Oxford commas, two spaces after periods.
package view

import (
	"bytes"
	"html/template"
	"io"
	"io/fs"
	"net/http"
	"path"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/maxlink/dashboard/internal/cache"
	"github.com/maxlink/dashboard/internal/dom"
)

//
// cache definitions
//

// CachePolicy hints how parsed template sets are cached.
type CachePolicy int

const (
	CacheDefault CachePolicy = iota // parse once
	CacheSkip                       // parse on every render
)

// DefaultTemplate is the page template path inside the template FS.
const DefaultTemplate = "templates/dashboard.html"

// Options configures a Renderer.
type Options struct {
	Template string
	Policy   CachePolicy
	// FeedPath is where the page's script opens the live feed.
	FeedPath string
	Logger   *zap.SugaredLogger
}

// Renderer is safe for concurrent use.
type Renderer struct {
	fsys  fs.FS
	opts  Options
	tmpls *cache.LRU[*template.Template]
	log   *zap.SugaredLogger
}

// New returns a renderer reading templates from fsys.
func New(fsys fs.FS, opts Options) *Renderer {
	if opts.Template == "" {
		opts.Template = DefaultTemplate
	}
	if opts.FeedPath == "" {
		opts.FeedPath = "/ws"
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Renderer{fsys: fsys, opts: opts, tmpls: cache.New[*template.Template](8), log: log}
}

//
// page model
//

// Page is the data handed to the template.
type Page struct {
	Title     template.HTML
	Metas     template.HTML
	Links     []string
	Scripts   []string
	RootStyle template.CSS
	Regions   []Region
	FeedPath  string
}

// Region is one root container and its widgets.
type Region struct {
	ID         string
	Containers []Container
}

// Container is one widget container.
type Container struct {
	ID     string
	Class  string
	Style  template.CSS
	Markup template.HTML
}

// Build collects everything the template needs from doc.
func (r *Renderer) Build(doc *dom.Document) Page {
	h := doc.Head()
	p := Page{
		Title:     h.Title(),
		Metas:     h.Metas(),
		Links:     h.Links(),
		Scripts:   h.Scripts(),
		RootStyle: template.CSS(varsStyle(doc.Vars())),
		FeedPath:  r.opts.FeedPath,
	}
	for _, root := range doc.Roots() {
		reg := Region{ID: root.ID()}
		// Widget markup is trusted: it ships with the device.
		for _, c := range root.Children() {
			reg.Containers = append(reg.Containers, Container{
				ID:     c.ID(),
				Class:  c.Class(),
				Style:  template.CSS(c.StyleAttr()),
				Markup: template.HTML(c.Markup()),
			})
		}
		p.Regions = append(p.Regions, reg)
	}
	return p
}

//
// public helpers
//

// Render writes the page for doc to w.
func (r *Renderer) Render(w io.Writer, doc *dom.Document) error {
	t, err := r.load()
	if err != nil {
		return err
	}
	return t.ExecuteTemplate(w, execName(t, r.opts.Template), r.Build(doc))
}

// Handler serves the rendered page.  The page is rendered to a buffer
// first so a template error never produces half a document.
func (r *Renderer) Handler(doc *dom.Document) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		var buf bytes.Buffer
		if err := r.Render(&buf, doc); err != nil {
			r.log.Errorw("page render failed", "template", r.opts.Template, "err", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		_, _ = buf.WriteTo(w)
	})
}

//
// internal: load
//

func (r *Renderer) load() (*template.Template, error) {
	key := r.opts.Template
	if r.opts.Policy != CacheSkip {
		if t, ok := r.tmpls.Get(key); ok {
			return t, nil
		}
	}

	pattern := path.Join(path.Dir(key), "*.html")
	t, err := template.New(path.Base(key)).Funcs(funcMap()).ParseFS(r.fsys, pattern)
	if err != nil {
		return nil, err
	}

	if r.opts.Policy != CacheSkip {
		r.tmpls.Add(key, t)
	}
	return t, nil
}

//
// helpers
//

func funcMap() template.FuncMap {
	return template.FuncMap{
		"dict": dict,
	}
}

// execName prefers a root template defined as {{ define "<base>" }} and
// falls back to the file itself.
func execName(t *template.Template, name string) string {
	base := path.Base(name)
	if bare := strings.TrimSuffix(base, ".html"); t.Lookup(bare) != nil {
		return bare
	}
	return base
}

// dict builds a map in templates: {{ dict "k" 1 "k2" "v" }}.
func dict(kv ...any) map[string]any {
	m := make(map[string]any, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, _ := kv[i].(string)
		m[key] = kv[i+1]
	}
	return m
}

// varsStyle renders root variables as an inline style, sorted by name.
func varsStyle(vars map[string]string) string {
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte(':')
		b.WriteString(vars[k])
		b.WriteByte(';')
	}
	return b.String()
}
