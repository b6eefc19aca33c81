// widgets/clock/clock.go
//
// Clock widget: local time and date, refreshed every second.
//
// Slots
// -----
// • time – "15:04:05" by default, or "03:04:05 PM" with format: 12h.
// • date – "02/01/2006" by default, overridable via date_format.
//
// Config keys: format, date_format, location (IANA zone), interval.  The
// first three are also the clock's saved state.
package clock

import (
	"context"
	"sync"
	"time"
	_ "time/tzdata" // kiosk images often ship without zoneinfo

	"github.com/maxlink/dashboard/internal/dom"
	"github.com/maxlink/dashboard/internal/widget"
)

// ID is the widget id the clock registers under.
const ID = "clock"

func init() {
	widget.Register(ID, func() widget.Widget { return New(time.Now) })
}

const (
	layout24   = "15:04:05"
	layout12   = "03:04:05 PM"
	dateLayout = "02/01/2006"
)

// compile-time assertions
var (
	_ widget.Destroyer  = (*Clock)(nil)
	_ widget.DataLoader = (*Clock)(nil)
	_ widget.Configurer = (*Clock)(nil)
	_ widget.Stater     = (*Clock)(nil)
)

// stateKeys are the display choices kept across restarts.
var stateKeys = []string{"format", "date_format", "location"}

// Clock writes the current time into its container.
type Clock struct {
	now  func() time.Time
	tick *widget.Ticker

	mu       sync.Mutex
	el       *dom.Element
	cfg      widget.Config
	timeFmt  string
	dateFmt  string
	location *time.Location
}

// New returns a clock reading from now.
func New(now func() time.Time) *Clock {
	c := &Clock{now: now}
	c.tick = widget.NewTicker(c.render)
	return c
}

func (c *Clock) Init(el *dom.Element, cfg widget.Config) error {
	c.mu.Lock()
	c.el = el
	c.applyLocked(cfg)
	c.mu.Unlock()

	c.tick.Reset(widget.Duration(cfg, "interval", time.Second))
	return nil
}

func (c *Clock) SetConfig(cfg widget.Config) {
	c.mu.Lock()
	merged := widget.Merge(c.cfg, cfg)
	c.applyLocked(merged)
	c.mu.Unlock()

	c.tick.Reset(widget.Duration(merged, "interval", time.Second))
}

func (c *Clock) LoadData(context.Context) error {
	c.render()
	return nil
}

func (c *Clock) Destroy() { c.tick.Stop() }

func (c *Clock) GetState() map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]any, len(stateKeys))
	for _, k := range stateKeys {
		if v, ok := c.cfg[k]; ok {
			out[k] = v
		}
	}
	return out
}

// SetState ignores keys other than the display choices.
func (c *Clock) SetState(state map[string]any) {
	keep := widget.Config{}
	for _, k := range stateKeys {
		if v, ok := state[k]; ok {
			keep[k] = v
		}
	}
	if len(keep) > 0 {
		c.SetConfig(keep)
	}
}

// applyLocked resolves display settings.  An unknown zone keeps local time.
func (c *Clock) applyLocked(cfg widget.Config) {
	c.cfg = cfg
	c.timeFmt = layout24
	if widget.String(cfg, "format", "24h") == "12h" {
		c.timeFmt = layout12
	}
	c.dateFmt = widget.String(cfg, "date_format", dateLayout)
	c.location = time.Local
	if name := widget.String(cfg, "location", ""); name != "" {
		if loc, err := time.LoadLocation(name); err == nil {
			c.location = loc
		}
	}
}

func (c *Clock) render() {
	c.mu.Lock()
	el, tf, df, loc := c.el, c.timeFmt, c.dateFmt, c.location
	c.mu.Unlock()
	if el == nil {
		return
	}
	now := c.now().In(loc)
	el.SetText("time", now.Format(tf))
	el.SetText("date", now.Format(df))
}
