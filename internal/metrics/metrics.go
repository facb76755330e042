package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Adapter counters and histograms, partitioned by network where it applies.

var (
	// Upstream
	UpstreamRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dex_adapter",
		Subsystem: "upstream",
		Name:      "requests_total",
		Help:      "Upstream calls by backend and outcome",
	}, []string{"network", "backend", "outcome"})

	UpstreamLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "dex_adapter",
		Subsystem: "upstream",
		Name:      "request_duration_seconds",
		Help:      "Upstream call duration",
		Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"network", "backend"})

	UpstreamThrottled = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dex_adapter",
		Subsystem: "upstream",
		Name:      "throttled_total",
		Help:      "Upstream calls delayed by the local rate limiter",
	}, []string{"network"})

	// Events
	PagesFetched = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dex_adapter",
		Subsystem: "events",
		Name:      "pages_fetched_total",
		Help:      "Subgraph transaction pages fetched",
	}, []string{"network"})

	RecordsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dex_adapter",
		Subsystem: "events",
		Name:      "records_skipped_total",
		Help:      "Upstream records skipped because they could not be parsed or decoded",
	}, []string{"network", "kind"})

	EventsFetched = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dex_adapter",
		Subsystem: "events",
		Name:      "fetched_total",
		Help:      "Normalized events produced",
	}, []string{"network", "kind"})

	// Schema
	SchemaDetections = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dex_adapter",
		Subsystem: "schema",
		Name:      "detections_total",
		Help:      "Schema detections by method and result",
	}, []string{"network", "method", "version"})

	// Resolver
	ResolverLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dex_adapter",
		Subsystem: "resolver",
		Name:      "lookups_total",
		Help:      "Pool and token resolutions by cache result",
	}, []string{"network", "kind", "result"})

	PoolsKnown = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "dex_adapter",
		Subsystem: "resolver",
		Name:      "pools_known",
		Help:      "Pools held in the resolver cache",
	}, []string{"network"})

	// HTTP
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dex_adapter",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by route and status",
	}, []string{"route", "status"})

	HTTPLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "dex_adapter",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route"})

	ResponseCache = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dex_adapter",
		Subsystem: "http",
		Name:      "response_cache_total",
		Help:      "Response cache lookups by resource and result",
	}, []string{"resource", "result"})
)
