package handlers

import (
	"net/http"

	"media-cache/internal/logging"
)

// StatsResponse aggregates cache and download statistics.
type StatsResponse struct {
	MemoryItems     int     `json:"memoryItems"`
	MemoryBytes     int64   `json:"memoryBytes"`
	MemoryBudget    int64   `json:"memoryBudget"`
	DiskBytes       int64   `json:"diskBytes"`
	DiskBudget      int64   `json:"diskBudget"`
	DiskThumbnails  int     `json:"diskThumbnails"`
	TotalCached     int     `json:"totalCached"`
	DownloadedBytes int64   `json:"downloadedBytes,omitempty"`
	MemoryUsage     float64 `json:"memoryUsage,omitempty"`
}

// GetStats returns aggregate cache, download, and process statistics.
func (h *Handlers) GetStats(w http.ResponseWriter, _ *http.Request) {
	stats := h.cache.Stats()

	response := StatsResponse{
		MemoryItems:    stats.MemoryItems,
		MemoryBytes:    stats.MemoryBytes,
		MemoryBudget:   stats.MemoryBudget,
		DiskBytes:      stats.DiskBytes,
		DiskBudget:     stats.DiskBudget,
		DiskThumbnails: stats.DiskThumbnails,
		TotalCached:    stats.TotalCached,
	}
	if h.downloads != nil {
		response.DownloadedBytes = h.downloads.DownloadedBytes()
	}
	if h.monitor != nil {
		response.MemoryUsage = h.monitor.Usage()
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, response)
}

// EvictCache runs a disk eviction pass on demand.
func (h *Handlers) EvictCache(w http.ResponseWriter, _ *http.Request) {
	evicted := h.cache.Disk().EvictIfNeeded()
	logging.Info("manual eviction: %d files removed", evicted)

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]int{"evictedFiles": evicted})
}

// ClearCache drops both cache tiers.
func (h *Handlers) ClearCache(w http.ResponseWriter, _ *http.Request) {
	h.cache.Memory().Clear()
	if err := h.cache.Disk().ClearAll(); err != nil {
		logging.Error("cache clear: %v", err)
		writeJSONError(w, "failed to clear disk cache", http.StatusInternalServerError)
		return
	}

	writeJSONStatus(w, "cleared")
}
