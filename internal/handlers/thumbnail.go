package handlers

import (
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gorilla/mux"

	"media-cache/internal/logging"
	"media-cache/internal/media"
	"media-cache/internal/thumbcache"
)

// GetThumbnail serves a thumbnail for a file under the media directory:
// cache read-through, with on-miss generation bounded by the concurrency
// limiter.
func (h *Handlers) GetThumbnail(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	filePath := vars["path"]

	if filePath == "" {
		writeJSONError(w, "path is required", http.StatusBadRequest)
		return
	}

	fullPath := filepath.Join(h.mediaDir, filePath)

	absPath, err := filepath.Abs(fullPath)
	if err != nil || !isSubPath(h.mediaDir, absPath) {
		writeJSONError(w, "invalid path", http.StatusBadRequest)
		return
	}

	info, err := os.Stat(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			writeJSONError(w, "file not found", http.StatusNotFound)
		} else {
			writeJSONError(w, "failed to access file", http.StatusInternalServerError)
		}
		return
	}
	if info.IsDir() {
		writeJSONError(w, "cannot generate thumbnail for directory", http.StatusBadRequest)
		return
	}

	kind := media.KindForPath(fullPath)
	if kind == media.KindOther {
		writeJSONError(w, "unsupported file type", http.StatusBadRequest)
		return
	}

	diskKey := thumbcache.KeyForFile(fullPath, info.ModTime())

	if thumb, ok := h.cache.Get(filePath, diskKey); ok {
		h.serveThumbnail(w, thumb)
		return
	}

	// Full miss: generation decodes the source file, which is the expensive
	// path. Shed it first under memory pressure, then bound it.
	if h.monitor != nil && h.monitor.ShouldThrottle() {
		writeJSONError(w, "service under memory pressure", http.StatusServiceUnavailable)
		return
	}

	if err := h.limiter.Acquire(r.Context()); err != nil {
		// Client went away while waiting for a slot.
		logging.Debug("thumbnail %s: request cancelled waiting for slot", filePath)
		return
	}
	thumb, err := h.generator.Generate(fullPath, kind)
	h.limiter.Release()

	if err != nil {
		logging.Warn("thumbnail generation failed for %s: %v", filePath, err)
		writeJSONError(w, "failed to generate thumbnail", http.StatusInternalServerError)
		return
	}

	animated := kind == media.KindAnimatedImage
	meta := &thumbcache.Metadata{
		MediaType:    kind,
		Width:        thumb.Width,
		Height:       thumb.Height,
		LastAccessed: time.Now().UTC(),
	}
	h.cache.Set(filePath, thumb, diskKey, animated, meta)

	h.serveThumbnail(w, thumb)
}

func (h *Handlers) serveThumbnail(w http.ResponseWriter, thumb *media.Thumbnail) {
	data, err := h.generator.EncodeThumbnail(thumb)
	if err != nil {
		writeJSONError(w, "failed to encode thumbnail", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.Write(data)
}

// GetMetadata returns the disk metadata record for a cache key.
func (h *Handlers) GetMetadata(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]

	meta, ok := h.cache.Metadata(key)
	if !ok {
		writeJSONError(w, "metadata not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, meta)
}
