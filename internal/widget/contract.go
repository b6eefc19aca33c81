package widget

import (
	"context"

	"github.com/maxlink/dashboard/internal/dom"
	"github.com/maxlink/dashboard/internal/layout"
)

// Widget is the one method every panel implements.  Init is called exactly
// once per successful load with the container the manager created for it.
// All of the widget's reads and writes must stay inside el, and any timers
// it starts must be cancelled by Destroy.
//
// Init must not block; long-running work belongs in a goroutine owned by
// the widget.
type Widget interface {
	Init(el *dom.Element, cfg Config) error
}

// Resizer is called on every debounced viewport resize.
type Resizer interface {
	OnResize()
}

// Destroyer releases timers and subscriptions.  The manager calls it
// before a reload removes the container, and on shutdown.
type Destroyer interface {
	Destroy()
}

// DataLoader forces a widget to refresh its data on demand.
type DataLoader interface {
	LoadData(ctx context.Context) error
}

// Configurer merges new settings into the widget's config and may restart
// its timers.
type Configurer interface {
	SetConfig(cfg Config)
}

// Stater exposes state worth keeping across restarts.  GetState must
// return a JSON-encodable map; SetState receives what an earlier GetState
// returned, possibly from another process.
type Stater interface {
	GetState() map[string]any
	SetState(state map[string]any)
}

// Config is free-form per-widget configuration.
type Config map[string]any

// Merge returns a new Config with over layered on top of base.  Neither
// input is modified.
func Merge(base, over Config) Config {
	out := make(Config, len(base)+len(over))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range over {
		out[k] = v
	}
	return out
}

// Descriptor identifies a widget and its optional placement.  Descriptors
// are values: the manager copies them and never mutates a caller's slice.
type Descriptor struct {
	ID       string           `json:"id"                 yaml:"id"       koanf:"id"       validate:"required"`
	Position *layout.Position `json:"position,omitempty" yaml:"position" koanf:"position"`
	Size     *layout.Size     `json:"size,omitempty"     yaml:"size"     koanf:"size"`
	ZIndex   *int             `json:"zIndex,omitempty"   yaml:"z_index"  koanf:"z_index"`
	Config   Config           `json:"config,omitempty"   yaml:"config"   koanf:"config"`
}

// Descriptors turns bare ids into descriptors with no placement.
func Descriptors(ids ...string) []Descriptor {
	out := make([]Descriptor, 0, len(ids))
	for _, id := range ids {
		out = append(out, Descriptor{ID: id})
	}
	return out
}
