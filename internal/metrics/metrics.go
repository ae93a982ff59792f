// Package metrics registers Prometheus instrumentation for the daemon.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters and gauges for the sync engine.
type Metrics struct {
	registry         *prometheus.Registry
	cyclesTotal      prometheus.Counter
	cycleErrorsTotal prometheus.Counter
	resolutionsTotal *prometheus.CounterVec
	fetchesTotal     *prometheus.CounterVec
	updatesTotal     prometheus.Counter
	clearsTotal      prometheus.Counter
	reconnectsTotal  prometheus.Counter
	connected        prometheus.Gauge
	degraded         prometheus.Gauge
}

// New creates and registers the daemon's metrics on a private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	cyclesTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "presenced_sync_cycles_total",
		Help: "Total number of completed sync cycles",
	})
	cycleErrorsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "presenced_sync_cycle_errors_total",
		Help: "Total number of sync cycles absorbed at the cycle boundary",
	})
	resolutionsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "presenced_resolutions_total",
		Help: "Resolved sessions by metadata source (remote, cache, none, idle)",
	}, []string{"source"})
	fetchesTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "presenced_metadata_fetches_total",
		Help: "Remote metadata fetches by outcome (ok, error)",
	}, []string{"outcome"})
	updatesTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "presenced_presence_updates_total",
		Help: "Total activity updates written to the presence channel",
	})
	clearsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "presenced_presence_clears_total",
		Help: "Total activity clears written to the presence channel",
	})
	reconnectsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "presenced_channel_reconnects_total",
		Help: "Total successful presence channel connects after the first",
	})
	connected := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "presenced_channel_connected",
		Help: "1 when the presence channel is connected",
	})
	degraded := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "presenced_channel_degraded",
		Help: "1 when reconnection has been failing persistently",
	})

	registry.MustRegister(
		cyclesTotal,
		cycleErrorsTotal,
		resolutionsTotal,
		fetchesTotal,
		updatesTotal,
		clearsTotal,
		reconnectsTotal,
		connected,
		degraded,
	)

	return &Metrics{
		registry:         registry,
		cyclesTotal:      cyclesTotal,
		cycleErrorsTotal: cycleErrorsTotal,
		resolutionsTotal: resolutionsTotal,
		fetchesTotal:     fetchesTotal,
		updatesTotal:     updatesTotal,
		clearsTotal:      clearsTotal,
		reconnectsTotal:  reconnectsTotal,
		connected:        connected,
		degraded:         degraded,
	}
}

// IncCycles increments the completed cycle counter.
func (m *Metrics) IncCycles() {
	m.cyclesTotal.Inc()
}

// IncCycleErrors increments the absorbed cycle failure counter.
func (m *Metrics) IncCycleErrors() {
	m.cycleErrorsTotal.Inc()
}

// IncResolutions counts a resolved session by its metadata source.
func (m *Metrics) IncResolutions(source string) {
	m.resolutionsTotal.WithLabelValues(source).Inc()
}

// IncFetches counts a remote metadata fetch outcome.
func (m *Metrics) IncFetches(outcome string) {
	m.fetchesTotal.WithLabelValues(outcome).Inc()
}

// IncUpdates increments the presence update counter.
func (m *Metrics) IncUpdates() {
	m.updatesTotal.Inc()
}

// IncClears increments the presence clear counter.
func (m *Metrics) IncClears() {
	m.clearsTotal.Inc()
}

// IncReconnects increments the reconnect counter.
func (m *Metrics) IncReconnects() {
	m.reconnectsTotal.Inc()
}

// SetConnected sets the channel connection gauge.
func (m *Metrics) SetConnected(up bool) {
	if up {
		m.connected.Set(1)
	} else {
		m.connected.Set(0)
	}
}

// SetDegraded sets the sustained-outage gauge.
func (m *Metrics) SetDegraded(on bool) {
	if on {
		m.degraded.Set(1)
	} else {
		m.degraded.Set(0)
	}
}

// Handler returns an http.Handler that serves the private registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
