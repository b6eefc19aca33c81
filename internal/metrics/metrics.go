// Package metrics holds Prometheus instruments that are used across the
// dashboard.  All collectors are registered with the global registry, so
// importing this package in main.go is enough to expose them on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	ActiveWidgets = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "active_widgets",
			Help: "Number of widgets currently initialised in the dashboard cache.",
		})

	WidgetLoadTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "widget_load_total",
			Help: "Cumulative number of widget load pipelines by terminal result.",
		}, []string{"result"})

	WidgetLoadErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "widget_load_errors_total",
			Help: "Cumulative number of widget load failures by pipeline stage.",
		}, []string{"stage"})

	WidgetLoadSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "widget_load_seconds",
			Help:    "Wall time of one widget load pipeline.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 10),
		})

	WidgetReloadTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "widget_reload_total",
			Help: "Cumulative number of widget reloads requested.",
		})

	ResizeFanoutTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "resize_fanout_total",
			Help: "Cumulative number of debounced resize notifications delivered.",
		})

	AssetLoadErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "asset_load_errors_total",
			Help: "Cumulative number of widget asset load failures by kind.",
		}, []string{"kind"})

	FeedClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "feed_clients",
			Help: "Number of browsers connected to the live feed.",
		})
)

func init() {
	prometheus.MustRegister(
		ActiveWidgets,
		WidgetLoadTotal,
		WidgetLoadErrorsTotal,
		WidgetLoadSeconds,
		WidgetReloadTotal,
		ResizeFanoutTotal,
		AssetLoadErrorsTotal,
		FeedClients,
	)
}
