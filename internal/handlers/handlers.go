package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"media-cache/internal/database"
	"media-cache/internal/download"
	"media-cache/internal/limiter"
	"media-cache/internal/media"
	"media-cache/internal/memory"
	"media-cache/internal/startup"
	"media-cache/internal/thumbcache"
)

// Handlers holds the HTTP surface's collaborators.
type Handlers struct {
	cache     *thumbcache.Cache
	generator *media.Generator
	limiter   *limiter.Limiter
	downloads *download.Manager
	journal   *database.Journal
	monitor   *memory.Monitor
	mediaDir  string
	startTime time.Time
}

// New wires the handlers. journal and monitor may be nil when the
// corresponding feature is disabled.
func New(cache *thumbcache.Cache, gen *media.Generator, lim *limiter.Limiter, downloads *download.Manager, journal *database.Journal, monitor *memory.Monitor, config *startup.Config) *Handlers {
	return &Handlers{
		cache:     cache,
		generator: gen,
		limiter:   lim,
		downloads: downloads,
		journal:   journal,
		monitor:   monitor,
		mediaDir:  config.MediaDir,
		startTime: time.Now(),
	}
}

// Router builds the service's route table.
func (h *Handlers) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/healthz", h.HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/livez", h.HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/readyz", h.HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/version", h.GetVersion).Methods(http.MethodGet)
	r.HandleFunc("/api/version", h.GetVersion).Methods(http.MethodGet)

	r.HandleFunc("/api/thumbnail/{path:.*}", h.GetThumbnail).Methods(http.MethodGet)
	r.HandleFunc("/api/metadata/{key}", h.GetMetadata).Methods(http.MethodGet)

	r.HandleFunc("/api/stats", h.GetStats).Methods(http.MethodGet)
	r.HandleFunc("/api/cache/evict", h.EvictCache).Methods(http.MethodPost)
	r.HandleFunc("/api/cache", h.ClearCache).Methods(http.MethodDelete)

	if h.downloads != nil {
		r.HandleFunc("/api/downloads", h.StartDownloads).Methods(http.MethodPost)
		r.HandleFunc("/api/downloads", h.GetDownloadStatus).Methods(http.MethodGet)
		r.HandleFunc("/api/downloads", h.CancelDownloads).Methods(http.MethodDelete)
		r.HandleFunc("/api/downloads/files", h.ClearDownloads).Methods(http.MethodDelete)
		r.HandleFunc("/api/downloads/journal", h.ListJournal).Methods(http.MethodGet)
	}

	return r
}
