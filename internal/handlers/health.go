package handlers

import (
	"net/http"
	"runtime"
	"time"

	"media-cache/internal/startup"
)

// HealthResponse contains the health check response.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`

	MemoryItems    int `json:"memoryItems"`
	DiskThumbnails int `json:"diskThumbnails"`

	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`
}

// HealthCheck reports service health. The cache is best-effort, so the
// service is healthy as soon as it serves requests.
func (h *Handlers) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	stats := h.cache.Stats()

	response := HealthResponse{
		Status:         "healthy",
		Version:        startup.Version,
		Uptime:         time.Since(h.startTime).Round(time.Second).String(),
		MemoryItems:    stats.MemoryItems,
		DiskThumbnails: stats.DiskThumbnails,
		GoVersion:      runtime.Version(),
		NumCPU:         runtime.NumCPU(),
		NumGoroutine:   runtime.NumGoroutine(),
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, response)
}

// GetVersion returns the application version and build information.
func (h *Handlers) GetVersion(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	writeJSON(w, startup.GetBuildInfo())
}
