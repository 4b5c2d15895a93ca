// Package metrics exposes Prometheus metrics for the retrieval pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every pipeline metric. A single instance is shared across
// the pipeline and the HTTP server.
type Metrics struct {
	registry *prometheus.Registry

	// QueriesTotal counts answered queries by route.
	QueriesTotal *prometheus.CounterVec

	// StageLatency observes per-stage latency in seconds.
	StageLatency *prometheus.HistogramVec

	// NamespaceSearchErrors counts failed or timed-out namespace searches.
	NamespaceSearchErrors *prometheus.CounterVec

	// FusedResults observes fused result counts per query.
	FusedResults prometheus.Histogram

	// QueryLogDropped counts evicted query log entries.
	QueryLogDropped prometheus.Counter
}

// New creates the metric set on a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		QueriesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "askdesk_queries_total",
			Help: "Answered queries by route and intent.",
		}, []string{"route", "intent"}),
		StageLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "askdesk_stage_latency_seconds",
			Help:    "Pipeline stage latency.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		}, []string{"stage"}),
		NamespaceSearchErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "askdesk_namespace_search_errors_total",
			Help: "Namespace searches that failed or timed out.",
		}, []string{"namespace_type"}),
		FusedResults: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "askdesk_fused_results",
			Help:    "Fused result count per query.",
			Buckets: prometheus.LinearBuckets(0, 5, 10),
		}),
		QueryLogDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "askdesk_query_log_dropped_total",
			Help: "Query log entries evicted under backpressure.",
		}),
	}
}

// Handler returns the Prometheus scrape handler for this metric set.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
