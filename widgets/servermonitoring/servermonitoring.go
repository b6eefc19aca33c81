// widgets/servermonitoring/servermonitoring.go
//
// Server monitoring widget: CPU per core, CPU temperature, RAM, swap, and
// disk usage of the dashboard host.
//
// Context
// -------
// Each metric owns three slots in the widget markup:
//
//	<metric>         value text, e.g. "42%"
//	<metric>-bar     progress bar; width and background-color are set
//	<metric>-detail  optional absolute figure, e.g. "3.1 GiB / 7.8 GiB"
//
// Bars are coloured by level: ok, warning, or critical, mapped to the
// --level-* CSS variables in servermonitoring.css.
//
// Config keys
// -----------
// • interval    – sampling period, default 2s.
// • disk_path   – mount to report, default "/".
// • thresholds  – per-metric {warning, critical} overrides.
package servermonitoring

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	"go.uber.org/zap"

	"github.com/maxlink/dashboard/internal/dom"
	"github.com/maxlink/dashboard/internal/widget"
)

const ID = "servermonitoring"

func init() {
	widget.Register(ID, func() widget.Widget { return New(HostCollector{}) })
}

// Reading is one sampled metric.
type Reading struct {
	Metric string
	Value  float64
	Detail string
}

// Collector samples the host.  diskPath selects the mount for memory-disk.
type Collector interface {
	Collect(ctx context.Context, diskPath string) ([]Reading, error)
}

// Limit describes how a metric is scaled and coloured.
type Limit struct {
	Suffix   string
	Max      float64
	Warning  float64
	Critical float64
}

// Defaults holds the stock limits per metric.  CPU cores share "cpu-core".
var Defaults = map[string]Limit{
	"cpu-core":    {Suffix: "%", Max: 100, Warning: 80, Critical: 90},
	"temp-cpu":    {Suffix: "°C", Max: 100, Warning: 70, Critical: 85},
	"memory-ram":  {Suffix: "%", Max: 100, Warning: 80, Critical: 90},
	"memory-swap": {Suffix: "%", Max: 100, Warning: 60, Critical: 80},
	"memory-disk": {Suffix: "%", Max: 100, Warning: 80, Critical: 90},
}

// Level buckets a value against a limit.
func Level(v float64, l Limit) string {
	switch {
	case v >= l.Critical:
		return "critical"
	case v >= l.Warning:
		return "warning"
	default:
		return "ok"
	}
}

var (
	_ widget.Destroyer  = (*Monitor)(nil)
	_ widget.DataLoader = (*Monitor)(nil)
	_ widget.Configurer = (*Monitor)(nil)
)

// Monitor renders Collector readings into progress bars.
type Monitor struct {
	src  Collector
	tick *widget.Ticker

	mu       sync.Mutex
	el       *dom.Element
	cfg      widget.Config
	diskPath string
	limits   map[string]Limit
}

// New returns a monitor sampling from src.
func New(src Collector) *Monitor {
	m := &Monitor{src: src}
	m.tick = widget.NewTicker(m.poll)
	return m
}

func (m *Monitor) Init(el *dom.Element, cfg widget.Config) error {
	m.mu.Lock()
	m.el = el
	m.applyLocked(cfg)
	m.mu.Unlock()

	m.tick.Reset(widget.Duration(cfg, "interval", 2*time.Second))
	return nil
}

func (m *Monitor) SetConfig(cfg widget.Config) {
	m.mu.Lock()
	merged := widget.Merge(m.cfg, cfg)
	m.applyLocked(merged)
	m.mu.Unlock()

	m.tick.Reset(widget.Duration(merged, "interval", 2*time.Second))
}

func (m *Monitor) Destroy() { m.tick.Stop() }

// LoadData samples once and renders the result.
func (m *Monitor) LoadData(ctx context.Context) error {
	m.mu.Lock()
	path := m.diskPath
	m.mu.Unlock()

	rs, err := m.src.Collect(ctx, path)
	if err != nil {
		return err
	}
	m.render(rs)
	return nil
}

func (m *Monitor) poll() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := m.LoadData(ctx); err != nil {
		zap.S().Debugw("host sample failed", "widget", ID, "err", err)
	}
}

func (m *Monitor) applyLocked(cfg widget.Config) {
	m.cfg = cfg
	m.diskPath = widget.String(cfg, "disk_path", "/")
	m.limits = make(map[string]Limit, len(Defaults))
	for k, v := range Defaults {
		m.limits[k] = v
	}

	over, _ := cfg["thresholds"].(map[string]any)
	for metric, raw := range over {
		t, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		l := m.limits[limitKey(metric)]
		if l.Max == 0 {
			l = Limit{Suffix: "%", Max: 100}
		}
		l.Warning = widget.Float(t, "warning", l.Warning)
		l.Critical = widget.Float(t, "critical", l.Critical)
		m.limits[metric] = l
	}
}

// limitKey maps "cpu-core3" onto the shared "cpu-core" limit.
func limitKey(metric string) string {
	if strings.HasPrefix(metric, "cpu-core") {
		return "cpu-core"
	}
	return metric
}

func (m *Monitor) limitFor(metric string) Limit {
	if l, ok := m.limits[metric]; ok {
		return l
	}
	if l, ok := m.limits[limitKey(metric)]; ok {
		return l
	}
	return Limit{Suffix: "%", Max: 100, Warning: 80, Critical: 90}
}

func (m *Monitor) render(rs []Reading) {
	m.mu.Lock()
	el := m.el
	limits := make(map[string]Limit, len(rs))
	for _, r := range rs {
		limits[r.Metric] = m.limitFor(r.Metric)
	}
	m.mu.Unlock()
	if el == nil {
		return
	}

	for _, r := range rs {
		l := limits[r.Metric]
		pct := r.Value / l.Max * 100
		pct = max(0, min(100, pct))

		el.SetText(r.Metric, fmt.Sprintf("%.0f%s", r.Value, l.Suffix))
		el.SetSlotStyle(r.Metric+"-bar", "width", fmt.Sprintf("%.0f%%", pct))
		el.SetSlotStyle(r.Metric+"-bar", "background-color", "var(--level-"+Level(r.Value, l)+")")
		if r.Detail != "" {
			el.SetText(r.Metric+"-detail", r.Detail)
		}
	}
}

// HostCollector reads the local machine through gopsutil.  Sensors are
// best effort; hosts without a CPU thermal zone omit temp-cpu.
type HostCollector struct{}

func (HostCollector) Collect(ctx context.Context, diskPath string) ([]Reading, error) {
	var out []Reading

	cores, err := cpu.PercentWithContext(ctx, 0, true)
	if err != nil {
		return nil, fmt.Errorf("cpu: %w", err)
	}
	for i, p := range cores {
		out = append(out, Reading{Metric: fmt.Sprintf("cpu-core%d", i+1), Value: p})
	}

	if temps, err := host.SensorsTemperaturesWithContext(ctx); err == nil {
		if t, ok := cpuTemp(temps); ok {
			out = append(out, Reading{Metric: "temp-cpu", Value: t})
		}
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("memory: %w", err)
	}
	out = append(out, Reading{
		Metric: "memory-ram",
		Value:  vm.UsedPercent,
		Detail: humanize.IBytes(vm.Used) + " / " + humanize.IBytes(vm.Total),
	})

	if sw, err := mem.SwapMemoryWithContext(ctx); err == nil && sw.Total > 0 {
		out = append(out, Reading{
			Metric: "memory-swap",
			Value:  sw.UsedPercent,
			Detail: humanize.IBytes(sw.Used) + " / " + humanize.IBytes(sw.Total),
		})
	}

	du, err := disk.UsageWithContext(ctx, diskPath)
	if err != nil {
		return nil, fmt.Errorf("disk %s: %w", diskPath, err)
	}
	out = append(out, Reading{
		Metric: "memory-disk",
		Value:  du.UsedPercent,
		Detail: humanize.IBytes(du.Used) + " / " + humanize.IBytes(du.Total),
	})
	return out, nil
}

// cpuTemp picks the hottest CPU-looking sensor.
func cpuTemp(ts []host.TemperatureStat) (float64, bool) {
	keys := []string{"cpu_thermal", "coretemp", "k10temp", "cpu-thermal", "soc_thermal"}
	best, found := 0.0, false
	for _, t := range ts {
		if !slices.ContainsFunc(keys, func(k string) bool { return strings.HasPrefix(t.SensorKey, k) }) {
			continue
		}
		if !found || t.Temperature > best {
			best, found = t.Temperature, true
		}
	}
	return best, found
}
