package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_cache_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_cache_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_cache_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Thumbnail cache metrics
var (
	ThumbnailCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_cache_thumbnail_cache_hits_total",
			Help: "Total number of thumbnail cache hits by tier",
		},
		[]string{"tier"}, // "memory" or "disk"
	)

	ThumbnailCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_cache_thumbnail_cache_misses_total",
			Help: "Total number of thumbnail cache misses across both tiers",
		},
	)

	MemoryCacheBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_cache_memory_cache_bytes",
			Help: "Accounted bytes held by the in-memory thumbnail cache",
		},
	)

	MemoryCacheItems = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_cache_memory_cache_items",
			Help: "Number of entries in the in-memory thumbnail cache",
		},
	)

	MemoryCacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_cache_memory_cache_evictions_total",
			Help: "Total number of in-memory cache evictions",
		},
		[]string{"reason"}, // "budget" or "pressure"
	)

	DiskCacheBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_cache_disk_cache_bytes",
			Help: "Total size of the on-disk thumbnail cache in bytes",
		},
	)

	DiskCacheEvictedFiles = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_cache_disk_cache_evicted_files_total",
			Help: "Total number of files removed by disk cache eviction",
		},
	)

	DiskCacheEvictionRuns = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_cache_disk_cache_eviction_runs_total",
			Help: "Total number of disk cache eviction passes",
		},
	)

	DiskCacheWriteFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_cache_disk_cache_write_failures_total",
			Help: "Total number of abandoned disk cache writes",
		},
		[]string{"kind"}, // "thumbnail" or "metadata"
	)

	DiskWriteQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_cache_disk_write_queue_depth",
			Help: "Number of pending asynchronous disk cache writes",
		},
	)

	DiskWriteQueueDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_cache_disk_write_queue_dropped_total",
			Help: "Total number of asynchronous disk writes dropped because the queue was full",
		},
	)
)

// Thumbnail generation metrics
var (
	ThumbnailGenerationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_cache_thumbnail_generations_total",
			Help: "Total number of thumbnail generations",
		},
		[]string{"kind", "status"},
	)

	ThumbnailGenerationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_cache_thumbnail_generation_duration_seconds",
			Help:    "Thumbnail generation duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"kind"},
	)

	LimiterInUse = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_cache_limiter_slots_in_use",
			Help: "Number of thumbnail generation slots currently held",
		},
	)
)

// Download manager metrics
var (
	DownloadState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_cache_download_state",
			Help: "Current bulk download state (0=idle, 1=downloading, 2=completed, 3=cancelled, 4=failed)",
		},
	)

	DownloadItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_cache_download_items_total",
			Help: "Total number of per-item download outcomes",
		},
		[]string{"status"}, // "completed", "failed", "skipped"
	)

	DownloadBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_cache_download_bytes_total",
			Help: "Total bytes downloaded into the media cache",
		},
	)

	DownloadBatchProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_cache_download_batch_progress",
			Help: "Fraction of the current bulk download batch completed (0-1)",
		},
	)

	DownloadedFilesBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_cache_downloaded_files_bytes",
			Help: "Total size of downloaded media files on disk",
		},
	)
)

// Memory monitor metrics
var (
	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_cache_memory_usage_ratio",
			Help: "Current Go heap usage as a fraction of the configured limit",
		},
	)

	MemoryPressureEvents = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_cache_memory_pressure_events_total",
			Help: "Total number of memory pressure events delivered to the cache",
		},
	)
)

// Filesystem retry metrics
var (
	FilesystemRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_cache_filesystem_retry_attempts_total",
			Help: "Total number of filesystem operation retries",
		},
		[]string{"operation"},
	)

	FilesystemRetrySuccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_cache_filesystem_retry_success_total",
			Help: "Total number of filesystem operations that succeeded after retry",
		},
		[]string{"operation"},
	)

	FilesystemRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_cache_filesystem_retry_failures_total",
			Help: "Total number of filesystem operations that failed after all retries",
		},
		[]string{"operation"},
	)

	FilesystemStaleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_cache_filesystem_stale_errors_total",
			Help: "Total number of NFS stale file handle errors observed",
		},
		[]string{"operation"},
	)
)

// Download journal metrics
var (
	JournalQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_cache_journal_queries_total",
			Help: "Total number of download journal queries",
		},
		[]string{"operation", "status"},
	)
)

// Application info metric
var (
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "media_cache_app_info",
			Help: "Application information",
		},
		[]string{"version", "commit", "go_version"},
	)
)

// SetAppInfo sets the application info metric
func SetAppInfo(version, commit, goVersion string) {
	AppInfo.WithLabelValues(version, commit, goVersion).Set(1)
}
