package dom

import (
	"errors"
	"strings"
)

// ErrAttached is returned when an element that already has a parent is
// appended again.
var ErrAttached = errors.New("dom: element already attached")

// Element is a rectangle with identity: a root region or a widget
// container.  Containers hold injected markup, inline style, and named
// slots that mirror the markup's data-slot nodes.
//
// All state is guarded by the owning document's mutex.  A detached element
// records its setters silently; the append change carries the full state,
// and a removed element no longer reaches subscribers.
type Element struct {
	doc    *Document
	id     string
	class  string
	root   bool
	parent *Element

	children   []*Element
	markup     string
	style      map[string]string
	slots      map[string]string
	slotStyles map[string]map[string]string
}

func (e *Element) ID() string    { return e.id }
func (e *Element) Class() string { return e.class }

// Document returns the owning document.
func (e *Element) Document() *Document { return e.doc }

// Attached reports whether e is a root or hangs off one.
func (e *Element) Attached() bool {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	return e.attachedLocked()
}

func (e *Element) attachedLocked() bool { return e.root || e.parent != nil }

// changed emits c when live is true.  Called after the lock is released.
func (e *Element) changed(live bool, c Change) {
	if live {
		e.doc.emit(c)
	}
}

// Parent returns the element's parent or nil.
func (e *Element) Parent() *Element {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	return e.parent
}

// Children returns a copy of the attached children in insertion order.
func (e *Element) Children() []*Element {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	out := make([]*Element, len(e.children))
	copy(out, e.children)
	return out
}

// AppendChild attaches child as the last child of e.
func (e *Element) AppendChild(child *Element) error {
	e.doc.mu.Lock()
	if child.parent != nil || child.root {
		e.doc.mu.Unlock()
		return ErrAttached
	}
	child.parent = e
	e.children = append(e.children, child)
	e.doc.mu.Unlock()

	e.doc.emit(Change{Kind: ChangeAppend, ID: child.id, Value: e.id})
	return nil
}

// Remove detaches e from its parent.  Removing a detached element is a
// no-op.
func (e *Element) Remove() {
	e.doc.mu.Lock()
	p := e.parent
	if p == nil {
		e.doc.mu.Unlock()
		return
	}
	for i, c := range p.children {
		if c == e {
			p.children = append(p.children[:i], p.children[i+1:]...)
			break
		}
	}
	e.parent = nil
	e.doc.mu.Unlock()

	e.doc.emit(Change{Kind: ChangeRemove, ID: e.id, Value: p.id})
}

//
// markup
//

// SetMarkup replaces the element's inner HTML.
func (e *Element) SetMarkup(html string) {
	e.doc.mu.Lock()
	e.markup = html
	live := e.attachedLocked()
	e.doc.mu.Unlock()
	e.changed(live, Change{Kind: ChangeMarkup, ID: e.id})
}

func (e *Element) Markup() string {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	return e.markup
}

//
// inline style
//

// SetStyle sets one inline style property.  An empty value deletes it.
func (e *Element) SetStyle(prop, value string) {
	e.doc.mu.Lock()
	if value == "" {
		delete(e.style, prop)
	} else {
		e.style[prop] = value
	}
	live := e.attachedLocked()
	e.doc.mu.Unlock()
	e.changed(live, Change{Kind: ChangeStyle, ID: e.id, Prop: prop, Value: value})
}

func (e *Element) Style(prop string) string {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	return e.style[prop]
}

// StyleAttr renders the inline style as "k:v;k:v" with keys sorted.
func (e *Element) StyleAttr() string {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	var sb strings.Builder
	for _, k := range sortedKeys(e.style) {
		sb.WriteString(k)
		sb.WriteByte(':')
		sb.WriteString(e.style[k])
		sb.WriteByte(';')
	}
	return sb.String()
}

//
// slots
//

// SetText sets the text content of the named slot.  Unchanged values do
// not emit a change, so widgets may write on every tick.
func (e *Element) SetText(slot, text string) {
	e.doc.mu.Lock()
	if old, ok := e.slots[slot]; ok && old == text {
		e.doc.mu.Unlock()
		return
	}
	e.slots[slot] = text
	live := e.attachedLocked()
	e.doc.mu.Unlock()
	e.changed(live, Change{Kind: ChangeSlot, ID: e.id, Slot: slot, Value: text})
}

// Text returns the slot's text or "".
func (e *Element) Text(slot string) string {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	return e.slots[slot]
}

// SetSlotStyle sets a style property on a slot, e.g. a progress bar width.
func (e *Element) SetSlotStyle(slot, prop, value string) {
	e.doc.mu.Lock()
	m := e.slotStyles[slot]
	if m == nil {
		m = make(map[string]string)
		e.slotStyles[slot] = m
	}
	if m[prop] == value {
		e.doc.mu.Unlock()
		return
	}
	m[prop] = value
	live := e.attachedLocked()
	e.doc.mu.Unlock()
	e.changed(live, Change{Kind: ChangeStyle, ID: e.id, Slot: slot, Prop: prop, Value: value})
}

// SlotStyle returns one style property of a slot or "".
func (e *Element) SlotStyle(slot, prop string) string {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	return e.slotStyles[slot][prop]
}
