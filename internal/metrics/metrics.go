package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SPARQL metrics
	SPARQLRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kartbuilds_sparql_requests_total",
			Help: "Total number of SPARQL queries by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	SPARQLLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kartbuilds_sparql_latency_seconds",
			Help:    "SPARQL query latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	SPARQLBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kartbuilds_sparql_breaker_transitions_total",
			Help: "Circuit breaker state changes for the SPARQL endpoint",
		},
		[]string{"to"},
	)

	// Catalog cache metrics
	CatalogCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kartbuilds_catalog_cache_hits_total",
			Help: "Catalog lookups served from cache",
		},
		[]string{"kind"},
	)

	CatalogCacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kartbuilds_catalog_cache_misses_total",
			Help: "Catalog lookups that went to the SPARQL endpoint",
		},
		[]string{"kind"},
	)

	// Optimizer metrics
	OptimizerRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kartbuilds_optimizer_runs_total",
			Help: "Best-build searches by mode and result",
		},
		[]string{"mode", "result"},
	)

	CombinationsEvaluated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kartbuilds_combinations_evaluated_total",
			Help: "Driver/body/tire/glider tuples scored",
		},
	)

	OptimizerDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kartbuilds_optimizer_duration_seconds",
			Help:    "Time spent in the best-build search",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"mode"},
	)
)

// ObserveSPARQL records one finished SPARQL query.
func ObserveSPARQL(kind string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	SPARQLRequestsTotal.WithLabelValues(kind, outcome).Inc()
	SPARQLLatency.WithLabelValues(kind).Observe(time.Since(start).Seconds())
}

// ObserveOptimizer records one best-build search.
func ObserveOptimizer(mode string, evaluated int, found bool, start time.Time) {
	result := "found"
	if !found {
		result = "none"
	}
	OptimizerRuns.WithLabelValues(mode, result).Inc()
	CombinationsEvaluated.Add(float64(evaluated))
	OptimizerDuration.WithLabelValues(mode).Observe(time.Since(start).Seconds())
}
