package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "subhub",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests by method, path and status code.",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "subhub",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.3, 0.5, 1, 2, 5},
	}, []string{"method", "path"})

	IngestsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "subhub",
		Name:      "catalog_ingests_total",
		Help:      "Total subtitle records upserted into the catalog.",
	})

	SearchesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "subhub",
		Name:      "catalog_searches_total",
		Help:      "Total catalog search queries served.",
	})

	CacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "subhub",
		Name:      "search_cache_hits_total",
		Help:      "Total search responses served from cache.",
	})

	CacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "subhub",
		Name:      "search_cache_misses_total",
		Help:      "Total search queries that missed the cache.",
	})

	RequestsCreatedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "subhub",
		Name:      "requests_created_total",
		Help:      "Total subtitle requests created.",
	})

	RequestTransitionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "subhub",
		Name:      "request_transitions_total",
		Help:      "Total request status transitions by target status.",
	}, []string{"status"})

	DownloadsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "subhub",
		Name:      "downloads_total",
		Help:      "Total subtitle file deliveries reported by the transport.",
	})

	TMDBLookupsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "subhub",
		Name:      "tmdb_lookups_total",
		Help:      "Total TMDB metadata lookups by result.",
	}, []string{"result"})

	CatalogSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "subhub",
		Name:      "catalog_size",
		Help:      "Number of subtitle records in the catalog.",
	})

	PendingRequests = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "subhub",
		Name:      "pending_requests",
		Help:      "Number of requests currently in pending status.",
	})

	WSClientsConnected = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "subhub",
		Name:      "ws_clients_connected",
		Help:      "Number of connected admin WebSocket clients.",
	})
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		IngestsTotal,
		SearchesTotal,
		CacheHitsTotal,
		CacheMissesTotal,
		RequestsCreatedTotal,
		RequestTransitionsTotal,
		DownloadsTotal,
		TMDBLookupsTotal,
		CatalogSize,
		PendingRequests,
		WSClientsConnected,
	)
}
