// Package metrics registers the Prometheus collectors for the registry API,
// the search backend and the background job runner.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups every collector. Use New with a private registry in tests.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequests    *prometheus.CounterVec
	HTTPDuration    *prometheus.HistogramVec
	SearchDuration  *prometheus.HistogramVec
	SearchErrors    *prometheus.CounterVec
	JobsProcessed   *prometheus.CounterVec
	JobDuration     *prometheus.HistogramVec
	LookupRequests  *prometheus.CounterVec
	LookupCacheHits *prometheus.CounterVec
}

// New builds and registers every collector on a fresh registry.
func New(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "http_requests_total",
			Help: "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "http_request_duration_seconds",
			Help: "HTTP request latency.", Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		SearchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "search_duration_seconds",
			Help: "Search backend latency by index and kind.", Buckets: prometheus.DefBuckets,
		}, []string{"index", "kind"}),
		SearchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "search_errors_total",
			Help: "Failed search backend calls.",
		}, []string{"index", "kind"}),
		JobsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "jobs_processed_total",
			Help: "Background jobs by queue, operation and outcome.",
		}, []string{"queue", "operation", "outcome"}),
		JobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "job_duration_seconds",
			Help: "Background job run time.", Buckets: []float64{.05, .1, .5, 1, 5, 15, 60, 300},
		}, []string{"operation"}),
		LookupRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "external_lookups_total",
			Help: "Outbound lookups by service and status.",
		}, []string{"service", "status"}),
		LookupCacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "external_lookup_cache_hits_total",
			Help: "Outbound lookups answered from cache.",
		}, []string{"service"}),
	}
	reg.MustRegister(
		m.HTTPRequests, m.HTTPDuration,
		m.SearchDuration, m.SearchErrors,
		m.JobsProcessed, m.JobDuration,
		m.LookupRequests, m.LookupCacheHits,
		prometheus.NewGoCollector(),
	)
	return m
}

// Registry exposes the underlying registry for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// GinMiddleware records request counts and latency keyed by the route template.
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method
		m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.HTTPDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}

// ObserveSearch records one search backend call.
func (m *Metrics) ObserveSearch(index, kind string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.SearchDuration.WithLabelValues(index, kind).Observe(d.Seconds())
	if err != nil {
		m.SearchErrors.WithLabelValues(index, kind).Inc()
	}
}

// ObserveJob records one job execution.
func (m *Metrics) ObserveJob(queue, operation, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.JobsProcessed.WithLabelValues(queue, operation, outcome).Inc()
	m.JobDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// ObserveLookup records one outbound lookup. status is the HTTP code or "error".
func (m *Metrics) ObserveLookup(service, status string, cached bool) {
	if m == nil {
		return
	}
	if cached {
		m.LookupCacheHits.WithLabelValues(service).Inc()
		return
	}
	m.LookupRequests.WithLabelValues(service, status).Inc()
}
