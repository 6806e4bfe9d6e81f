// Package metrics provides Prometheus metrics for gwswitch.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for gwswitch. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	// Profile metrics
	ProfileApplies *prometheus.CounterVec

	// Route metrics
	RoutesAdded     prometheus.Counter
	RoutesRemoved   prometheus.Counter
	RouteErrors     *prometheus.CounterVec
	ResolveFailures prometheus.Counter

	// PAC metrics
	PACWrites   prometheus.Counter
	PACRemovals prometheus.Counter
	PACPresent  prometheus.Gauge

	// API metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// System metrics
	Uptime     prometheus.Gauge
	GoRoutines prometheus.Gauge

	registry *prometheus.Registry
}

// New creates a new Metrics instance with all metrics registered.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
	}

	m.ProfileApplies = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gwswitch_profile_applies_total",
			Help: "Total number of profile applications",
		},
		[]string{"result"},
	)

	m.RoutesAdded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gwswitch_routes_added_total",
			Help: "Total number of host routes added",
		},
	)

	m.RoutesRemoved = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gwswitch_routes_removed_total",
			Help: "Total number of host routes removed",
		},
	)

	m.RouteErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gwswitch_route_errors_total",
			Help: "Total number of failed route operations",
		},
		[]string{"op"},
	)

	m.ResolveFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gwswitch_resolve_failures_total",
			Help: "Total number of rule patterns that did not resolve",
		},
	)

	m.PACWrites = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gwswitch_pac_writes_total",
			Help: "Total number of PAC files written",
		},
	)

	m.PACRemovals = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gwswitch_pac_removals_total",
			Help: "Total number of PAC file removals",
		},
	)

	m.PACPresent = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "gwswitch_pac_present",
			Help: "Whether a generated PAC file exists (1 = present)",
		},
	)

	m.RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gwswitch_api_requests_total",
			Help: "Total number of control API requests",
		},
		[]string{"method", "status"},
	)

	m.RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gwswitch_api_request_duration_seconds",
			Help:    "Duration of control API requests",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15),
		},
		[]string{"method"},
	)

	m.Uptime = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "gwswitch_uptime_seconds",
			Help: "Service uptime in seconds",
		},
	)

	m.GoRoutines = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "gwswitch_goroutines",
			Help: "Number of goroutines",
		},
	)

	m.registry.MustRegister(
		m.ProfileApplies,
		m.RoutesAdded,
		m.RoutesRemoved,
		m.RouteErrors,
		m.ResolveFailures,
		m.PACWrites,
		m.PACRemovals,
		m.PACPresent,
		m.RequestsTotal,
		m.RequestDuration,
		m.Uptime,
		m.GoRoutines,
	)

	m.registry.MustRegister(prometheus.NewGoCollector())
	m.registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	return m
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
