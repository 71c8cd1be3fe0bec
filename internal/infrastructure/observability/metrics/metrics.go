// Package metrics holds the Prometheus collectors for the web front.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "zineinsight_web"

// Metrics owns a registry and every collector registered on it.
type Metrics struct {
	Registry *prometheus.Registry

	httpInFlight prometheus.Gauge
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	apiRequests *prometheus.CounterVec
	apiDuration *prometheus.HistogramVec
	apiRetries  prometheus.Counter
	cacheEvents *prometheus.CounterVec
	cacheSize   prometheus.Gauge

	paywallOutcomes *prometheus.CounterVec
	realtimeEvents  *prometheus.CounterVec
}

// New creates a Metrics with a fresh registry.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),

		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		}, []string{"method", "route"}),

		apiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "Backend API requests by method and outcome.",
		}, []string{"method", "outcome"}),
		apiDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "Duration of backend API requests.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}, []string{"method"}),
		apiRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "retries_total",
			Help:      "Backoff waits performed by the retry wrapper.",
		}),
		cacheEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Response cache lookups by result.",
		}, []string{"result"}),
		cacheSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "entries",
			Help:      "Entries currently held in the response cache.",
		}),

		paywallOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "paywall",
			Name:      "outcomes_total",
			Help:      "Paywall interactions by type and outcome.",
		}, []string{"paywall_type", "outcome"}),
		realtimeEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "realtime",
			Name:      "events_total",
			Help:      "Realtime feed events received by type.",
		}, []string{"type"}),
	}

	m.Registry.MustRegister(
		m.httpInFlight, m.httpRequests, m.httpDuration,
		m.apiRequests, m.apiDuration, m.apiRetries,
		m.cacheEvents, m.cacheSize,
		m.paywallOutcomes, m.realtimeEvents,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
	return m
}

// Handler returns an HTTP handler exposing the registered metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// RequestStarted increments the in-flight gauge and returns a func that records the result.
func (m *Metrics) RequestStarted() func(method, route string, status int) {
	if m == nil {
		return func(string, string, int) {}
	}
	start := time.Now()
	m.httpInFlight.Inc()
	return func(method, route string, status int) {
		m.httpInFlight.Dec()
		if route == "" {
			route = "unmatched"
		}
		m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
		m.httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}

// ObserveAPIRequest records one backend call.
func (m *Metrics) ObserveAPIRequest(method, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.apiRequests.WithLabelValues(method, outcome).Inc()
	m.apiDuration.WithLabelValues(method).Observe(d.Seconds())
}

// ObserveRetry counts one backoff wait.
func (m *Metrics) ObserveRetry() {
	if m == nil {
		return
	}
	m.apiRetries.Inc()
}

// ObserveCacheLookup records a cache hit or miss.
func (m *Metrics) ObserveCacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheEvents.WithLabelValues(result).Inc()
}

// SetCacheSize reports the current number of cache entries.
func (m *Metrics) SetCacheSize(n int) {
	if m == nil {
		return
	}
	m.cacheSize.Set(float64(n))
}

// ObservePaywall records a paywall outcome such as "granted" or "redirected".
func (m *Metrics) ObservePaywall(paywallType, outcome string) {
	if m == nil {
		return
	}
	m.paywallOutcomes.WithLabelValues(paywallType, outcome).Inc()
}

// ObserveRealtimeEvent counts a realtime feed event.
func (m *Metrics) ObserveRealtimeEvent(eventType string) {
	if m == nil {
		return
	}
	m.realtimeEvents.WithLabelValues(eventType).Inc()
}
