// internal/dom/document.go
//
// In-memory model of the dashboard page.
//
// Context
// -------
// The device serves exactly one page.  It has a head (stylesheets and
// scripts), one or more named root regions, and the widget containers
// appended to those roots.  The lifecycle manager mutates the model while
// widgets load, the view package renders it to HTML, and the feed package
// streams every change to connected browsers.
//
// Workflow
// --------
//  1. doc := dom.New("dashboard")            // roots exist up front.
//  2. el := doc.CreateElement("clock", "widget-container")
//  3. doc.Root("dashboard").AppendChild(el)  // emits ChangeAppend.
//  4. el.SetText("time", "12:00:00")         // emits ChangeSlot.
//
// Notes
// -----
//   • One mutex guards the whole tree.  Subscribers run after the lock is
//     released, on the goroutine that made the change, so they must not
//     block.
//   • Oxford commas, two spaces after periods.
package dom

import (
	"sort"
	"sync"
)

// ChangeKind names the mutation carried by a Change.
type ChangeKind string

const (
	ChangeAppend ChangeKind = "append"
	ChangeRemove ChangeKind = "remove"
	ChangeMarkup ChangeKind = "markup"
	ChangeStyle  ChangeKind = "style"
	ChangeSlot   ChangeKind = "slot"
	ChangeVar    ChangeKind = "var"
	ChangeHead   ChangeKind = "head"
)

// Change describes one mutation of the document.  Fields that do not apply
// to a kind are left empty.
type Change struct {
	Kind  ChangeKind `json:"kind"`
	ID    string     `json:"id,omitempty"`
	Slot  string     `json:"slot,omitempty"`
	Prop  string     `json:"prop,omitempty"`
	Value string     `json:"value,omitempty"`
}

// Document is safe for concurrent use.
type Document struct {
	mu    sync.RWMutex
	head  *Head
	roots []*Element
	vars  map[string]string

	subMu   sync.RWMutex
	subs    map[int]func(Change)
	nextSub int
}

// New returns a document with one root element per id.
func New(rootIDs ...string) *Document {
	d := &Document{
		vars: make(map[string]string),
		subs: make(map[int]func(Change)),
	}
	d.head = newHead(d)
	for _, id := range rootIDs {
		r := d.CreateElement(id, id)
		r.root = true
		d.roots = append(d.roots, r)
	}
	return d
}

// Head returns the document head.
func (d *Document) Head() *Head { return d.head }

// Root returns the root region with the given id, or nil.
func (d *Document) Root(id string) *Element {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, r := range d.roots {
		if r.id == id {
			return r
		}
	}
	return nil
}

// Roots returns the root regions in creation order.
func (d *Document) Roots() []*Element {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]*Element, len(d.roots))
	copy(out, d.roots)
	return out
}

// CreateElement returns a detached element owned by d.
func (d *Document) CreateElement(id, class string) *Element {
	return &Element{
		doc:        d,
		id:         id,
		class:      class,
		style:      make(map[string]string),
		slots:      make(map[string]string),
		slotStyles: make(map[string]map[string]string),
	}
}

// GetElementByID returns the first attached container with id, or nil.
func (d *Document) GetElementByID(id string) *Element {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, r := range d.roots {
		for _, c := range r.children {
			if c.id == id {
				return c
			}
		}
	}
	return nil
}

// CountByID reports how many attached containers carry id.
func (d *Document) CountByID(id string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	n := 0
	for _, r := range d.roots {
		for _, c := range r.children {
			if c.id == id {
				n++
			}
		}
	}
	return n
}

//
// root variables
//

// SetVar sets a root CSS custom property such as "--centre-h".
func (d *Document) SetVar(name, value string) {
	d.mu.Lock()
	if d.vars[name] == value {
		d.mu.Unlock()
		return
	}
	d.vars[name] = value
	d.mu.Unlock()
	d.emit(Change{Kind: ChangeVar, Prop: name, Value: value})
}

// Var returns a root variable or "".
func (d *Document) Var(name string) string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.vars[name]
}

// Vars returns a copy of every root variable.
func (d *Document) Vars() map[string]string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return copyMap(d.vars)
}

//
// subscriptions
//

// Subscribe registers fn for every subsequent change.  The returned func
// removes the subscription and is safe to call more than once.
func (d *Document) Subscribe(fn func(Change)) (cancel func()) {
	d.subMu.Lock()
	id := d.nextSub
	d.nextSub++
	d.subs[id] = fn
	d.subMu.Unlock()

	return func() {
		d.subMu.Lock()
		delete(d.subs, id)
		d.subMu.Unlock()
	}
}

func (d *Document) emit(c Change) {
	d.subMu.RLock()
	fns := make([]func(Change), 0, len(d.subs))
	for _, fn := range d.subs {
		fns = append(fns, fn)
	}
	d.subMu.RUnlock()

	for _, fn := range fns {
		fn(c)
	}
}

//
// snapshot
//

// ElementState is the serialisable view of one container.
type ElementState struct {
	ID         string                       `json:"id"`
	Root       string                       `json:"root"`
	Class      string                       `json:"class,omitempty"`
	Markup     string                       `json:"markup,omitempty"`
	Style      map[string]string            `json:"style,omitempty"`
	Slots      map[string]string            `json:"slots,omitempty"`
	SlotStyles map[string]map[string]string `json:"slotStyles,omitempty"`
}

// Snapshot is a point-in-time copy of everything a freshly connected
// browser needs to catch up.
type Snapshot struct {
	Vars     map[string]string `json:"vars"`
	Links    []string          `json:"links"`
	Scripts  []string          `json:"scripts"`
	Elements []ElementState    `json:"elements"`
}

// Snapshot copies the current document state.
func (d *Document) Snapshot() Snapshot {
	d.mu.RLock()
	s := Snapshot{Vars: copyMap(d.vars)}
	for _, r := range d.roots {
		for _, c := range r.children {
			s.Elements = append(s.Elements, stateOf(r, c))
		}
	}
	d.mu.RUnlock()

	s.Links = d.head.Links()
	s.Scripts = d.head.Scripts()
	return s
}

// State returns the serialisable view of the first attached container
// with id.
func (d *Document) State(id string) (ElementState, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, r := range d.roots {
		for _, c := range r.children {
			if c.id == id {
				return stateOf(r, c), true
			}
		}
	}
	return ElementState{}, false
}

// stateOf must be called with d.mu held.
func stateOf(r, c *Element) ElementState {
	ss := make(map[string]map[string]string, len(c.slotStyles))
	for k, v := range c.slotStyles {
		ss[k] = copyMap(v)
	}
	return ElementState{
		ID:         c.id,
		Root:       r.id,
		Class:      c.class,
		Markup:     c.markup,
		Style:      copyMap(c.style),
		Slots:      copyMap(c.slots),
		SlotStyles: ss,
	}
}

func copyMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// sortedKeys returns the keys of m in lexical order.
func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
