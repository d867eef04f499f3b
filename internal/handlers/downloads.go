package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"media-cache/internal/media"
)

// DownloadItem is one media item in a bulk download request.
type DownloadItem struct {
	CacheKeyField string     `json:"cacheKey"`
	Kind          media.Kind `json:"kind"`
	URL           string     `json:"url"`
}

func (d *DownloadItem) CacheKey() string      { return d.CacheKeyField }
func (d *DownloadItem) MediaKind() media.Kind { return d.Kind }
func (d *DownloadItem) SourceURL() string     { return d.URL }

func (d *DownloadItem) ResolveURL(context.Context) (string, error) {
	if d.URL == "" {
		return "", fmt.Errorf("item %s has no source url", d.CacheKeyField)
	}
	return d.URL, nil
}

type downloadRequest struct {
	Items []DownloadItem `json:"items"`
}

// StartDownloads starts a bulk download. A request while a batch is in
// flight is accepted and ignored, matching the manager's no-op semantics.
func (h *Handlers) StartDownloads(w http.ResponseWriter, r *http.Request) {
	var req downloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Items) == 0 {
		writeJSONError(w, "no items to download", http.StatusBadRequest)
		return
	}

	items := make([]media.Item, 0, len(req.Items))
	for i := range req.Items {
		items = append(items, &req.Items[i])
	}

	h.downloads.DownloadAll(items)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	writeJSON(w, h.downloads.Status())
}

// GetDownloadStatus returns the download state machine snapshot.
func (h *Handlers) GetDownloadStatus(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, h.downloads.Status())
}

// CancelDownloads cancels the in-flight batch.
func (h *Handlers) CancelDownloads(w http.ResponseWriter, _ *http.Request) {
	h.downloads.Cancel()
	writeJSONStatus(w, "cancelling")
}

// ClearDownloads removes every downloaded file.
func (h *Handlers) ClearDownloads(w http.ResponseWriter, _ *http.Request) {
	if err := h.downloads.ClearAll(); err != nil {
		writeJSONError(w, "failed to clear downloads", http.StatusInternalServerError)
		return
	}
	writeJSONStatus(w, "cleared")
}

// ListJournal returns the download journal entries.
func (h *Handlers) ListJournal(w http.ResponseWriter, r *http.Request) {
	if h.journal == nil {
		writeJSONError(w, "journal disabled", http.StatusNotFound)
		return
	}

	entries, err := h.journal.List(r.Context())
	if err != nil {
		writeJSONError(w, "failed to read journal", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, entries)
}
