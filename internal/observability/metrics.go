package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus collectors for the HTTP surface and the NL->SQL pipeline.
// All collectors are registered once on the default registry at package init.

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "registry_analytics",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests by method, route and status code.",
	}, []string{"method", "route", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "registry_analytics",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency by route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	questionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "registry_analytics",
		Subsystem: "nlsql",
		Name:      "questions_total",
		Help:      "Questions processed by classified intent and outcome.",
	}, []string{"intent", "outcome"})

	renderCacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "registry_analytics",
		Subsystem: "nlsql",
		Name:      "render_cache_total",
		Help:      "Render cache lookups by result.",
	}, []string{"result"})

	warehouseQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "registry_analytics",
		Subsystem: "warehouse",
		Name:      "query_duration_seconds",
		Help:      "Warehouse query latency by template.",
		Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
	}, []string{"template"})

	warehouseErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "registry_analytics",
		Subsystem: "warehouse",
		Name:      "errors_total",
		Help:      "Warehouse failures by classified cause.",
	}, []string{"cause"})
)

// RecordHTTPRequest records one completed HTTP request
func RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordQuestion records one processed natural-language question
func RecordQuestion(intent string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	questionsTotal.WithLabelValues(intent, outcome).Inc()
}

// RecordRenderCache records a render cache lookup
func RecordRenderCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	renderCacheHits.WithLabelValues(result).Inc()
}

// RecordWarehouseQuery records one warehouse execution
func RecordWarehouseQuery(template string, duration time.Duration) {
	warehouseQueryDuration.WithLabelValues(template).Observe(duration.Seconds())
}

// RecordWarehouseError records a classified warehouse failure
func RecordWarehouseError(cause string) {
	warehouseErrorsTotal.WithLabelValues(cause).Inc()
}
