// Package metrics exposes scan activity as Prometheus collectors on a
// private registry.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	namespace = "homeports"

	subsystemScan = "scan"
	subsystemAPI  = "api"
)

// Metrics is safe to use through a nil pointer; every method is then a no-op.
type Metrics struct {
	scansTotal      *prometheus.CounterVec
	scanDuration    *prometheus.HistogramVec
	hostsDiscovered prometheus.Counter
	openPorts       *prometheus.CounterVec
	activeScans     prometheus.Gauge
	progress        prometheus.Gauge

	httpRequests *prometheus.CounterVec

	registry *prometheus.Registry
}

func New() *Metrics {
	m := &Metrics{
		scansTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemScan,
			Name:      "total",
			Help:      "Scans run, by kind and final status.",
		}, []string{"kind", "status"}),
		scanDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystemScan,
			Name:      "duration_seconds",
			Help:      "Wall-clock duration of scans.",
			Buckets:   []float64{0.5, 1, 5, 10, 30, 60, 300, 900, 1800},
		}, []string{"kind"}),
		hostsDiscovered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemScan,
			Name:      "hosts_discovered_total",
			Help:      "Hosts that answered a reachability probe.",
		}),
		openPorts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemScan,
			Name:      "open_ports_total",
			Help:      "Open TCP ports found, by risk level.",
		}, []string{"risk"}),
		activeScans: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystemScan,
			Name:      "active",
			Help:      "1 while a scan is running.",
		}),
		progress: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystemScan,
			Name:      "progress_percent",
			Help:      "Progress of the current or last scan.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemAPI,
			Name:      "requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
		registry: prometheus.NewRegistry(),
	}

	m.registry.MustRegister(
		m.scansTotal,
		m.scanDuration,
		m.hostsDiscovered,
		m.openPorts,
		m.activeScans,
		m.progress,
		m.httpRequests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ScanStarted() {
	if m == nil {
		return
	}
	m.activeScans.Set(1)
	m.progress.Set(0)
}

func (m *Metrics) ScanFinished(kind, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.activeScans.Set(0)
	m.scansTotal.WithLabelValues(kind, status).Inc()
	m.scanDuration.WithLabelValues(kind).Observe(d.Seconds())
}

func (m *Metrics) Progress(percent int) {
	if m == nil {
		return
	}
	m.progress.Set(float64(percent))
}

func (m *Metrics) HostsDiscovered(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.hostsDiscovered.Add(float64(n))
}

func (m *Metrics) PortOpen(risk string) {
	if m == nil {
		return
	}
	m.openPorts.WithLabelValues(risk).Inc()
}

func (m *Metrics) HTTPRequest(route string, code int) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}
