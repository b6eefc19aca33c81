package asset

import (
	"path"
	"strings"
)

// DefaultRoot is where widget folders live, both on disk and under the
// page URL.
const DefaultRoot = "widgets"

// Paths builds the conventional asset names for a widget id:
//
//	<root>/<id>/<id>.html   markup
//	<root>/<id>/<id>.css    stylesheet
//	<root>/<id>/<id>.js     script
type Paths struct {
	Root string
}

func (p Paths) root() string {
	if p.Root == "" {
		return DefaultRoot
	}
	return strings.Trim(p.Root, "/")
}

func (p Paths) Dir(id string) string    { return path.Join(p.root(), id) }
func (p Paths) Markup(id string) string { return path.Join(p.root(), id, id+".html") }
func (p Paths) Style(id string) string  { return path.Join(p.root(), id, id+".css") }
func (p Paths) Script(id string) string { return path.Join(p.root(), id, id+".js") }

// WidgetID maps an asset name such as "widgets/clock/clock.css" back to
// its widget id.  Names outside the root report false.
func (p Paths) WidgetID(name string) (string, bool) {
	rel, ok := strings.CutPrefix(path.Clean(name), p.root()+"/")
	if !ok {
		return "", false
	}
	id, _, _ := strings.Cut(rel, "/")
	if !ValidID(id) {
		return "", false
	}
	return id, true
}

// ValidID reports whether id is usable as a single path segment.
func ValidID(id string) bool {
	if id == "" || id == "." || id == ".." {
		return false
	}
	return !strings.ContainsAny(id, `/\`)
}
