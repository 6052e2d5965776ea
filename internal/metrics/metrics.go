package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal     prometheus.CounterVec
	HTTPRequestDuration   prometheus.HistogramVec
	HTTPRequestSize       prometheus.HistogramVec
	HTTPResponseSize      prometheus.HistogramVec
	HTTPActiveConnections prometheus.GaugeVec

	// Rate limiting metrics (global API limiter)
	RateLimitExceededTotal prometheus.CounterVec

	// Database metrics
	DatabaseQueryDuration   prometheus.HistogramVec
	DatabaseQueriesTotal    prometheus.CounterVec
	DatabaseConnectionsOpen prometheus.GaugeVec

	// Redis metrics
	RedisOperationsTotal prometheus.CounterVec

	// Engagement metrics
	ViewsRecordedTotal    prometheus.CounterVec
	ViewsDedupedTotal     prometheus.CounterVec
	ViewsRateLimitedTotal prometheus.CounterVec
	LikesTotal            prometheus.CounterVec
	SharesTotal           prometheus.CounterVec
	StatsRecomputesTotal  prometheus.CounterVec
	StatsCacheHitsTotal   prometheus.CounterVec
	StatsCacheMissesTotal prometheus.CounterVec

	// Error metrics
	ErrorsTotal prometheus.CounterVec
}

var (
	instance *Metrics
	once     sync.Once
)

// Initialize creates and registers all Prometheus metrics
func Initialize() *Metrics {
	once.Do(func() {
		instance = &Metrics{
			// HTTP metrics
			HTTPRequestsTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "http_requests_total",
					Help: "Total number of HTTP requests",
				},
				[]string{"method", "path", "status"},
			),
			HTTPRequestDuration: *promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "http_request_duration_seconds",
					Help:    "HTTP request latency in seconds",
					Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
				},
				[]string{"method", "path", "status"},
			),
			HTTPRequestSize: *promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "http_request_size_bytes",
					Help:    "HTTP request body size in bytes",
					Buckets: prometheus.ExponentialBuckets(100, 10, 7),
				},
				[]string{"method", "path"},
			),
			HTTPResponseSize: *promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "http_response_size_bytes",
					Help:    "HTTP response size in bytes",
					Buckets: prometheus.ExponentialBuckets(100, 10, 7),
				},
				[]string{"method", "path", "status"},
			),
			HTTPActiveConnections: *promauto.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "http_active_connections",
					Help: "Number of currently active HTTP connections",
				},
				[]string{"method", "path"},
			),

			// Rate limiting metrics
			RateLimitExceededTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "rate_limit_exceeded_total",
					Help: "Total number of rate limit violations",
				},
				[]string{"endpoint", "method"},
			),

			// Database metrics
			DatabaseQueryDuration: *promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "database_query_duration_seconds",
					Help:    "Database query latency in seconds",
					Buckets: []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2.5, 5},
				},
				[]string{"query_type", "table"},
			),
			DatabaseQueriesTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "database_queries_total",
					Help: "Total number of database queries",
				},
				[]string{"query_type", "table", "status"},
			),
			DatabaseConnectionsOpen: *promauto.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "database_connections_open",
					Help: "Number of currently open database connections",
				},
				[]string{"database"},
			),

			// Redis metrics
			RedisOperationsTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "redis_operations_total",
					Help: "Total number of Redis operations",
				},
				[]string{"operation", "status"},
			),

			// Engagement metrics
			ViewsRecordedTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "engagement_views_recorded_total",
					Help: "Total number of counted page views",
				},
				[]string{"content_type"},
			),
			ViewsDedupedTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "engagement_views_deduplicated_total",
					Help: "Total number of views dropped by the session dedup window",
				},
				[]string{"content_type"},
			),
			ViewsRateLimitedTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "engagement_views_rate_limited_total",
					Help: "Total number of views dropped by the per-IP rate cap",
				},
				[]string{"content_type"},
			),
			LikesTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "engagement_likes_total",
					Help: "Total number of like and unlike operations",
				},
				[]string{"content_type", "action"},
			),
			SharesTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "engagement_shares_total",
					Help: "Total number of recorded shares",
				},
				[]string{"content_type", "platform"},
			),
			StatsRecomputesTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "engagement_stats_recomputes_total",
					Help: "Total number of stats snapshot recomputations",
				},
				[]string{"content_type"},
			),
			StatsCacheHitsTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "engagement_stats_cache_hits_total",
					Help: "Total number of stats served from the snapshot cache",
				},
				[]string{"content_type"},
			),
			StatsCacheMissesTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "engagement_stats_cache_misses_total",
					Help: "Total number of stats snapshot cache misses",
				},
				[]string{"content_type"},
			),

			// Error metrics
			ErrorsTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "errors_total",
					Help: "Total number of errors by type",
				},
				[]string{"error_type", "endpoint"},
			),
		}
	})
	return instance
}

// Get returns the global metrics instance
func Get() *Metrics {
	if instance == nil {
		return Initialize()
	}
	return instance
}
