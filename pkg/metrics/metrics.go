// Package metrics defines the Prometheus metric collectors used across the
// query engine and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the engine.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	SearchQueriesTotal   *prometheus.CounterVec
	SearchLatency        *prometheus.HistogramVec
	SearchResultsCount   prometheus.Histogram
	SearchesInFlight     prometheus.Gauge
	ShardCacheHitsTotal  *prometheus.CounterVec
	ShardCacheMissTotal  *prometheus.CounterVec
	ShardFetchesTotal    *prometheus.CounterVec
	ShardFetchDuration   *prometheus.HistogramVec
	ShardCacheEntries    prometheus.Gauge
	CircuitBreakerState  *prometheus.GaugeVec
}

// New creates all collectors and registers them with the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers the collectors with reg. Tests pass a fresh
// prometheus.NewRegistry() so repeated construction does not collide.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		SearchQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "search_queries_total",
				Help: "Total search queries by outcome (ok, no_terms, no_results, too_many, busy).",
			},
			[]string{"outcome"},
		),
		SearchLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "search_latency_seconds",
				Help:    "Search latency in seconds by stage.",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"stage"},
		),
		SearchResultsCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "search_results_count",
				Help:    "Number of documents found per search.",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 500, 2000},
			},
		),
		SearchesInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "searches_in_flight",
				Help: "Number of merges currently running.",
			},
		),
		ShardCacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shard_cache_hits_total",
				Help: "Shard lookups served from the session cache, by shard kind.",
			},
			[]string{"kind"},
		),
		ShardCacheMissTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shard_cache_misses_total",
				Help: "Shard lookups that issued a retrieval, by shard kind.",
			},
			[]string{"kind"},
		),
		ShardFetchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shard_fetches_total",
				Help: "Shard retrievals by source, kind and status (ok, not_found, error).",
			},
			[]string{"source", "kind", "status"},
		),
		ShardFetchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "shard_fetch_duration_seconds",
				Help:    "Shard retrieval latency in seconds.",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"source"},
		),
		ShardCacheEntries: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "shard_cache_entries",
				Help: "Number of shard keys held by the session cache, sentinels included.",
			},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.SearchQueriesTotal,
		m.SearchLatency,
		m.SearchResultsCount,
		m.SearchesInFlight,
		m.ShardCacheHitsTotal,
		m.ShardCacheMissTotal,
		m.ShardFetchesTotal,
		m.ShardFetchDuration,
		m.ShardCacheEntries,
		m.CircuitBreakerState,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
