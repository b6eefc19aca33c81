// widgets/uptime/uptime.go
//
// Uptime widget: how long the host has been running.
//
// Slots
// -----
// • uptime – "3d 04:05:06", or "04:05:06" under a day.
// • since  – boot time in relative form, e.g. "3 days ago".
//
// Host uptime comes from gopsutil, so the panel reports the machine the
// dashboard runs on rather than the browser's session.
package uptime

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shirou/gopsutil/v3/host"

	"github.com/maxlink/dashboard/internal/dom"
	"github.com/maxlink/dashboard/internal/widget"
)

const ID = "uptime"

func init() {
	widget.Register(ID, func() widget.Widget { return New(hostUptime, time.Now) })
}

func hostUptime(ctx context.Context) (time.Duration, error) {
	s, err := host.UptimeWithContext(ctx)
	if err != nil {
		return 0, err
	}
	return time.Duration(s) * time.Second, nil
}

var (
	_ widget.Destroyer  = (*Uptime)(nil)
	_ widget.DataLoader = (*Uptime)(nil)
)

// Uptime samples the host uptime once and then counts locally, resyncing
// on every LoadData.
type Uptime struct {
	sample func(context.Context) (time.Duration, error)
	now    func() time.Time
	tick   *widget.Ticker

	mu   sync.Mutex
	el   *dom.Element
	boot time.Time
}

// New returns an uptime widget reading from sample.
func New(sample func(context.Context) (time.Duration, error), now func() time.Time) *Uptime {
	u := &Uptime{sample: sample, now: now}
	u.tick = widget.NewTicker(u.render)
	return u
}

func (u *Uptime) Init(el *dom.Element, cfg widget.Config) error {
	u.mu.Lock()
	u.el = el
	u.mu.Unlock()

	if err := u.LoadData(context.Background()); err != nil {
		return err
	}
	u.tick.Reset(widget.Duration(cfg, "interval", time.Second))
	return nil
}

// LoadData re-reads the host uptime.
func (u *Uptime) LoadData(ctx context.Context) error {
	d, err := u.sample(ctx)
	if err != nil {
		return fmt.Errorf("host uptime: %w", err)
	}
	u.mu.Lock()
	u.boot = u.now().Add(-d)
	u.mu.Unlock()
	u.render()
	return nil
}

func (u *Uptime) Destroy() { u.tick.Stop() }

func (u *Uptime) render() {
	u.mu.Lock()
	el, boot := u.el, u.boot
	u.mu.Unlock()
	if el == nil || boot.IsZero() {
		return
	}
	now := u.now()
	el.SetText("uptime", Format(now.Sub(boot)))
	el.SetText("since", humanize.RelTime(boot, now, "ago", "from now"))
}

// Format renders d as "Nd HH:MM:SS", dropping the day part under 24h.
func Format(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	days := total / 86400
	h := (total % 86400) / 3600
	m := (total % 3600) / 60
	s := total % 60
	if days > 0 {
		return fmt.Sprintf("%dd %02d:%02d:%02d", days, h, m, s)
	}
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
