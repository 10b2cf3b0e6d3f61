package metrics

import (
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Buckets for calls ranging from milliseconds to long multi-collection syncs
	CustomAPIBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 3, 5, 8, 13, 21, 34, 55}

	SyncBuckets = []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200, 2400}

	// HTTP Metrics
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_server_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: CustomAPIBuckets,
		},
		[]string{"http_request_method", "http_route", "http_response_status_code"},
	)

	HTTPRequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_server_request_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"http_request_method", "http_route", "http_response_status_code"},
	)

	ActiveRequests = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "http_server_active_requests",
			Help: "Number of active HTTP requests",
		},
		[]string{"http_request_method"},
	)

	// External API client metrics (webflow, notion)
	APIClientDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_client_operation_duration_seconds",
			Help:    "External API operation duration in seconds",
			Buckets: CustomAPIBuckets,
		},
		[]string{"api", "operation", "status"},
	)

	APIClientTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_client_operation_total",
			Help: "Total number of external API operations",
		},
		[]string{"api", "operation", "status"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "api_client_circuit_breaker_state",
			Help: "Circuit breaker state (0 closed, 1 half-open, 2 open)",
		},
		[]string{"breaker"},
	)

	// Database metrics
	DBOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_client_operation_duration_seconds",
			Help:    "Database client operation duration in seconds",
			Buckets: CustomAPIBuckets,
		},
		[]string{"operation", "status"},
	)

	DBOperationTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_client_operation_total",
			Help: "Total number of database client operations",
		},
		[]string{"operation", "status"},
	)

	// Cache Metrics
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache_name"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"cache_name"},
	)

	// Sync metrics
	SyncRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "flowsync_sync_run_duration_seconds",
			Help:    "Duration of a full collection sync run",
			Buckets: SyncBuckets,
		},
		[]string{"trigger", "status"},
	)

	SyncPhaseDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "flowsync_sync_phase_duration_seconds",
			Help:    "Duration of a single sync phase",
			Buckets: SyncBuckets,
		},
		[]string{"phase"},
	)

	SyncItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flowsync_sync_items_total",
			Help: "Item outcomes per sync phase",
		},
		[]string{"phase", "outcome"},
	)

	MappingWarnings = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flowsync_mapping_warnings_total",
			Help: "Properties omitted because a value or type could not be mapped",
		},
		[]string{"reason"},
	)

	WebhookEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flowsync_webhook_events_total",
			Help: "Webflow webhook events handled",
		},
		[]string{"trigger_type", "status"},
	)

	// Infrastructure Metrics
	GoRoutines = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "process_runtime_go_goroutines",
			Help: "Number of goroutines",
		},
	)

	HeapAlloc = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "process_runtime_go_mem_heap_alloc_bytes",
			Help: "Heap allocated bytes",
		},
	)
)

// RecordInfrastructureMetrics collects infrastructure metrics periodically
func RecordInfrastructureMetrics() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		for range ticker.C {
			var m runtime.MemStats
			runtime.ReadMemStats(&m)

			GoRoutines.Set(float64(runtime.NumGoroutine()))
			HeapAlloc.Set(float64(m.HeapAlloc))
		}
	}()
}

// MeasureDuration measures the duration of an operation
func MeasureDuration(start time.Time) float64 {
	return time.Since(start).Seconds()
}

// ObserveAPICall records one external API call
func ObserveAPICall(api, operation, status string, duration float64) {
	APIClientDuration.WithLabelValues(api, operation, status).Observe(duration)
	APIClientTotal.WithLabelValues(api, operation, status).Inc()
}
