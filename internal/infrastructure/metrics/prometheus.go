// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "framestream"

var (
	// CacheOperationsTotal tracks media metadata cache operations (get, set, delete).
	// Labels:
	//   - operation: get, set, delete
	//   - status: hit, miss, success, error
	//   - cache_type: redis
	CacheOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_operations_total",
			Help:      "Total number of cache operations",
		},
		[]string{"operation", "status", "cache_type"},
	)

	// DBQueriesTotal tracks database queries.
	// Labels:
	//   - query_type: select, insert, update, delete
	//   - table: media
	DBQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "db_queries_total",
			Help:      "Total number of database queries",
		},
		[]string{"query_type", "table"},
	)

	// SingleflightRequestsTotal tracks singleflight behavior.
	// Labels:
	//   - group: media, prefetch, session
	//   - result: initiated (new execution), shared (reused result)
	SingleflightRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "singleflight_requests_total",
			Help:      "Total number of singleflight requests",
		},
		[]string{"group", "result"},
	)

	// FrameLookupsTotal tracks frame cache lookups.
	// Labels:
	//   - cache: cache name
	//   - path: stream, once
	//   - status: hit, miss, error
	FrameLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frame_lookups_total",
			Help:      "Total number of frame cache lookups",
		},
		[]string{"cache", "path", "status"},
	)

	// FramePrefetchesTotal tracks window rebuilds and refills.
	// Labels:
	//   - cache: cache name
	//   - kind: cold, extend, center
	//   - status: success, error
	FramePrefetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frame_prefetches_total",
			Help:      "Total number of frame window prefetches",
		},
		[]string{"cache", "kind", "status"},
	)

	// FramePrefetchDuration observes the time spent reading a prefetch run.
	FramePrefetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "frame_prefetch_duration_seconds",
			Help:      "Duration of frame prefetch storage reads",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		},
		[]string{"cache"},
	)

	// FrameEvictionsTotal counts items trimmed from a window.
	// Labels:
	//   - cache: cache name
	//   - status: success, error (release hook failed)
	FrameEvictionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frame_evictions_total",
			Help:      "Total number of evicted frames",
		},
		[]string{"cache", "status"},
	)

	// FrameStoreOperationsTotal tracks frame store calls.
	// Labels:
	//   - backend: memory, bolt, redis
	//   - operation: init, put, get, range
	//   - status: success, error
	FrameStoreOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frame_store_operations_total",
			Help:      "Total number of frame store operations",
		},
		[]string{"backend", "operation", "status"},
	)

	// DecodedFramesTotal counts frames produced by the decode pipeline.
	DecodedFramesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decoded_frames_total",
			Help:      "Total number of decoded frames pushed to frame stores",
		},
	)

	// DecodeBatchDuration observes the conversion time of one decode batch.
	DecodeBatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "decode_batch_duration_seconds",
			Help:      "Duration of converting and storing one decode batch",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// PlayerTicksTotal tracks playback ticks.
	// Labels:
	//   - result: painted, skipped, error
	PlayerTicksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "player_ticks_total",
			Help:      "Total number of playback ticks by outcome",
		},
		[]string{"result"},
	)

	// HTTPRequestsTotal tracks API requests.
	// Labels:
	//   - method: HTTP method
	//   - status: HTTP status class (2xx, 4xx, 5xx)
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "status"},
	)

	// ProbeTasksTotal counts probe tasks handled by the worker.
	// Labels:
	//   - status: success, error
	ProbeTasksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "probe_tasks_total",
			Help:      "Total number of probe tasks handled by the worker",
		},
		[]string{"status"},
	)

	// ProbeTaskDuration tracks how long one probe task takes.
	ProbeTaskDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "probe_task_duration_seconds",
			Help:      "Duration of probe tasks",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		},
	)
)

// Cache operation status constants.
const (
	CacheStatusHit     = "hit"
	CacheStatusMiss    = "miss"
	CacheStatusSuccess = "success"
	CacheStatusError   = "error"
)

// Cache operation type constants.
const (
	CacheOpGet    = "get"
	CacheOpSet    = "set"
	CacheOpDelete = "delete"
)

// Cache type constants.
const (
	CacheTypeRedis = "redis"
)

// DB query type constants.
const (
	DBQuerySelect = "select"
	DBQueryInsert = "insert"
	DBQueryUpdate = "update"
	DBQueryDelete = "delete"
)

// Table name constants.
const (
	TableMedia = "media"
)

// Singleflight constants.
const (
	SingleflightGroupMedia    = "media"
	SingleflightGroupPrefetch = "prefetch"
	SingleflightGroupSession  = "session"
	SingleflightInitiated     = "initiated"
	SingleflightShared        = "shared"
)

// Frame lookup path constants.
const (
	LookupPathStream = "stream"
	LookupPathOnce   = "once"
)

// Frame store backend and operation constants.
const (
	StoreBackendMemory = "memory"
	StoreBackendBolt   = "bolt"
	StoreBackendRedis  = "redis"

	StoreOpInit  = "init"
	StoreOpPut   = "put"
	StoreOpGet   = "get"
	StoreOpRange = "range"
)

// Player tick result constants.
const (
	TickPainted = "painted"
	TickSkipped = "skipped"
	TickError   = "error"
)

// StatusLabel maps an error to a success/error label.
func StatusLabel(err error) string {
	if err != nil {
		return CacheStatusError
	}
	return CacheStatusSuccess
}
