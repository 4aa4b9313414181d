// Package metrics exposes Prometheus collectors for query outcomes and HTTP
// traffic.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "jiji"

// Metrics holds the collectors of one process. It implements service.Recorder.
type Metrics struct {
	registry *prometheus.Registry

	queries          *prometheus.CounterVec
	storeFailures    *prometheus.CounterVec
	resourcesMatched prometheus.Histogram
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	rateLimited      prometheus.Counter
}

// New creates the collectors on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_processed_total",
			Help:      "Learning queries answered, by whether the query was persisted.",
		}, []string{"saved"}),
		storeFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_failures_total",
			Help:      "Store operations that failed and were absorbed.",
		}, []string{"operation"}),
		resourcesMatched: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "resources_matched",
			Help:      "Number of resources returned per query.",
			Buckets:   []float64{0, 1, 2, 3, 5, 10, 25, 50},
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_rate_limited_total",
			Help:      "Requests rejected by the rate limiter.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.queries,
		m.storeFailures,
		m.resourcesMatched,
		m.httpRequests,
		m.httpDuration,
		m.rateLimited,
	)
	return m
}

// QueryProcessed records one answered query.
func (m *Metrics) QueryProcessed(saved bool, resourceCount int) {
	m.queries.WithLabelValues(strconv.FormatBool(saved)).Inc()
	m.resourcesMatched.Observe(float64(resourceCount))
}

// StoreFailure records an absorbed store failure.
func (m *Metrics) StoreFailure(operation string) {
	m.storeFailures.WithLabelValues(operation).Inc()
}

// ObserveRequest records a completed HTTP request.
func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

// RateLimited records a request rejected by the rate limiter.
func (m *Metrics) RateLimited() {
	m.rateLimited.Inc()
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the collectors in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
