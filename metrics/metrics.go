// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	restful "github.com/emicklei/go-restful/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Open Library metrics
	OpenLibraryRequestsTotal   *prometheus.CounterVec
	OpenLibraryRequestDuration *prometheus.HistogramVec
	OpenLibraryCacheTotal      *prometheus.CounterVec

	// Session metrics
	SessionEventsTotal *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them on a fresh registry
// together with the Go runtime and process collectors.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bms_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bms_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		OpenLibraryRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bms_openlibrary_requests_total",
				Help: "Total number of outbound Open Library requests",
			},
			[]string{"endpoint", "status"},
		),
		OpenLibraryRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bms_openlibrary_request_duration_seconds",
				Help:    "Open Library request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		),
		OpenLibraryCacheTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bms_openlibrary_cache_total",
				Help: "Open Library cache lookups by result",
			},
			[]string{"result"},
		),
		SessionEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bms_session_events_total",
				Help: "Session gate events (signin, signout, rejected)",
			},
			[]string{"event"},
		),
	}

	registry.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.OpenLibraryRequestsTotal,
		m.OpenLibraryRequestDuration,
		m.OpenLibraryCacheTotal,
		m.SessionEventsTotal,
	)
	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Filter records request count and latency per route template, so
// /api/lib/books/{id} is one series regardless of id.
func (m *Metrics) Filter() restful.FilterFunction {
	return func(req *restful.Request, resp *restful.Response, chain *restful.FilterChain) {
		start := time.Now()
		chain.ProcessFilter(req, resp)

		route := req.SelectedRoutePath()
		if route == "" {
			route = "unmatched"
		}
		method := req.Request.Method
		m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(resp.StatusCode())).Inc()
		m.HTTPRequestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}

// ObserveOpenLibrary records one outbound call.
func (m *Metrics) ObserveOpenLibrary(endpoint string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.OpenLibraryRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
	m.OpenLibraryRequestDuration.WithLabelValues(endpoint).Observe(d.Seconds())
}

// CacheResult records an Open Library cache hit or miss.
func (m *Metrics) CacheResult(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.OpenLibraryCacheTotal.WithLabelValues(result).Inc()
}

// SessionEvent counts a session gate event.
func (m *Metrics) SessionEvent(event string) {
	if m == nil {
		return
	}
	m.SessionEventsTotal.WithLabelValues(event).Inc()
}
