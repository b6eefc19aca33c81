// internal/widget/registry.go
//
// Widget factory registry and lookup helpers.
//
// A **Widget** is a self-contained dashboard panel.  Each concrete widget
// lives under `widgets/<id>/` next to its markup, stylesheet, and script
// assets, and registers a factory by calling `widget.Register("<id>", New)`
// in an init() func.  The lifecycle manager never guesses a binding name:
// once the script asset for `<id>` is in place it asks the registry for the
// factory registered under exactly that id.
//
// Tests build private registries with NewRegistry so they never touch the
// process-wide default.
package widget

import (
	"sort"
	"sync"
)

// Factory returns a fresh, uninitialised widget.  Every call must return a
// distinct value so a reload never reuses the outgoing instance.
type Factory func() Widget

// Registry maps widget ids to factories.  Safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register binds id to f.  If a duplicate id is registered the latter entry
// overwrites the former.
func (r *Registry) Register(id string, f Factory) {
	r.mu.Lock()
	r.factories[id] = f
	r.mu.Unlock()
}

// Lookup returns the factory or nil.
func (r *Registry) Lookup(id string) Factory {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.factories[id]
}

// IDs returns every registered id in lexical order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.factories))
	for id := range r.factories {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

var std = NewRegistry()

// Default returns the process-wide registry that init() funcs populate.
func Default() *Registry { return std }

// Register a widget factory during init().
func Register(id string, f Factory) { std.Register(id, f) }

// Lookup returns the factory from the default registry or nil.
func Lookup(id string) Factory { return std.Lookup(id) }

// IDs lists the default registry – useful for static mode and tests.
func IDs() []string { return std.IDs() }
