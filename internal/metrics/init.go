package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"media-cache/internal/logging"
)

// InitializeMetrics pre-populates expected label combinations so every
// metric is exported from the first Prometheus scrape.
// Call this once at startup.
func InitializeMetrics() {
	for _, tier := range []string{"memory", "disk"} {
		ThumbnailCacheHits.WithLabelValues(tier)
	}

	for _, reason := range []string{"budget", "pressure"} {
		MemoryCacheEvictions.WithLabelValues(reason)
	}

	for _, kind := range []string{"thumbnail", "metadata"} {
		DiskCacheWriteFailures.WithLabelValues(kind)
	}

	for _, kind := range []string{"image", "animated_image", "video", "audio"} {
		for _, status := range []string{"success", "error"} {
			ThumbnailGenerationsTotal.WithLabelValues(kind, status)
		}
		ThumbnailGenerationDuration.WithLabelValues(kind)
	}

	for _, status := range []string{"completed", "failed", "skipped"} {
		DownloadItemsTotal.WithLabelValues(status)
	}

	for _, op := range []string{"stat", "read", "open"} {
		FilesystemRetryAttempts.WithLabelValues(op)
		FilesystemRetrySuccess.WithLabelValues(op)
		FilesystemRetryFailures.WithLabelValues(op)
		FilesystemStaleErrors.WithLabelValues(op)
	}

	for _, op := range []string{"initialize_schema", "record_download", "delete_download", "list_downloads"} {
		JournalQueriesTotal.WithLabelValues(op, "success")
		JournalQueriesTotal.WithLabelValues(op, "error")
	}
}

// Serve starts the Prometheus metrics listener on the given port.
// It blocks, so run it in a goroutine.
func Serve(port string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logging.Info("Metrics server listening on :%s", port)
	return srv.ListenAndServe()
}
