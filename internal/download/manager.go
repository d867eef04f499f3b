package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"media-cache/internal/logging"
	"media-cache/internal/media"
	"media-cache/internal/metrics"
)

// Journal records completed downloads for diagnostics. A nil journal
// disables recording; journal failures never fail a download.
type Journal interface {
	Record(key, extension, sourceURL string, sizeBytes int64) error
	Delete(key string) error
	Clear() error
}

const defaultClientTimeout = 10 * time.Minute

// Manager downloads whole media files into a local directory and tracks a
// single process-wide bulk-download state machine. All mutable state is
// guarded by one mutex; downloads themselves run on a background goroutine.
type Manager struct {
	dir     string
	client  *http.Client
	headers HeaderProvider
	journal Journal

	mu       sync.Mutex
	state    State
	progress Progress
	reason   string
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewManager creates the download directory and the manager. A nil client
// gets a long-timeout default suitable for large media files.
func NewManager(dir string, client *http.Client, headers HeaderProvider, journal Journal) (*Manager, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create download directory %s: %w", dir, err)
	}
	if client == nil {
		client = &http.Client{Timeout: defaultClientTimeout}
	}

	m := &Manager{
		dir:     dir,
		client:  client,
		headers: headers,
		journal: journal,
		state:   StateIdle,
	}
	publishState(m.state, m.progress)
	m.DownloadedBytes()
	return m, nil
}

// CanCache reports whether an item is eligible for whole-file caching:
// it must expose a stable cache key and be video or audio. Images are
// cheap to re-fetch and are covered by the thumbnail tier.
func (m *Manager) CanCache(item media.Item) bool {
	if item.CacheKey() == "" {
		return false
	}
	kind := item.MediaKind()
	return kind == media.KindVideo || kind == media.KindAudio
}

// LocalPath returns the item's download path. The extension comes from the
// source URL when it carries one, else from the media kind.
func (m *Manager) LocalPath(item media.Item) (string, bool) {
	if !m.CanCache(item) {
		return "", false
	}

	ext := ""
	if src := item.SourceURL(); src != "" {
		ext = strings.TrimPrefix(strings.ToLower(filepath.Ext(src)), ".")
	}
	if ext == "" {
		ext = media.FallbackExtension(item.MediaKind())
	}
	return filepath.Join(m.dir, item.CacheKey()+"."+ext), true
}

// IsCached reports whether the item's download already exists on disk.
func (m *Manager) IsCached(item media.Item) bool {
	path, ok := m.LocalPath(item)
	if !ok {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}

// Status returns a snapshot of the state machine.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Status{State: m.state, Progress: m.progress, Reason: m.reason}
}

// Directory returns the download directory.
func (m *Manager) Directory() string {
	return m.dir
}

// DownloadAll starts a bulk download of every cacheable, not-yet-cached
// item, in input order, one file at a time. A call while a batch is already
// downloading is a silent no-op.
func (m *Manager) DownloadAll(items []media.Item) {
	m.mu.Lock()
	if m.state == StateDownloading {
		m.mu.Unlock()
		logging.Debug("download manager: batch already in flight, ignoring request")
		return
	}

	var pending []media.Item
	for _, item := range items {
		if m.CanCache(item) && !m.IsCached(item) {
			pending = append(pending, item)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.state = StateDownloading
	m.progress = Progress{Completed: 0, Total: len(pending)}
	m.reason = ""
	m.cancel = cancel
	m.done = make(chan struct{})
	done := m.done
	publishState(m.state, m.progress)
	m.mu.Unlock()

	logging.Info("download manager: starting batch of %d items", len(pending))

	go func() {
		defer close(done)
		defer cancel()
		m.run(ctx, pending)
	}()
}

// Cancel cooperatively cancels the in-flight batch. A no-op unless a batch
// is downloading.
func (m *Manager) Cancel() {
	m.mu.Lock()
	cancel := m.cancel
	active := m.state == StateDownloading
	m.mu.Unlock()

	if active && cancel != nil {
		cancel()
	}
}

// Wait blocks until the active batch goroutine exits. Used by shutdown and
// tests; returns immediately when no batch ever ran.
func (m *Manager) Wait() {
	m.mu.Lock()
	done := m.done
	m.mu.Unlock()

	if done != nil {
		<-done
	}
}

func (m *Manager) run(ctx context.Context, items []media.Item) {
	failures := 0

	for _, item := range items {
		if ctx.Err() != nil {
			m.finishCancelled()
			return
		}

		if err := m.DownloadFile(ctx, item); err != nil {
			if errors.Is(err, context.Canceled) {
				m.finishCancelled()
				return
			}
			// Per-item failure: log, count, and move on to the next item.
			logging.Warn("download manager: %s: %v", item.CacheKey(), err)
			metrics.DownloadItemsTotal.WithLabelValues("failed").Inc()
			failures++
			continue
		}

		metrics.DownloadItemsTotal.WithLabelValues("completed").Inc()

		m.mu.Lock()
		m.progress.Completed++
		publishState(m.state, m.progress)
		m.mu.Unlock()
	}

	m.mu.Lock()
	if len(items) > 0 && failures == len(items) {
		m.state = StateFailed
		m.reason = fmt.Sprintf("all %d downloads failed", failures)
	} else {
		m.state = StateCompleted
	}
	publishState(m.state, m.progress)
	completed, total := m.progress.Completed, m.progress.Total
	m.mu.Unlock()

	logging.Info("download manager: batch finished, %d/%d items downloaded", completed, total)
	m.DownloadedBytes()
}

func (m *Manager) finishCancelled() {
	m.mu.Lock()
	m.state = StateCancelled
	m.progress = Progress{}
	publishState(m.state, m.progress)
	m.mu.Unlock()

	logging.Info("download manager: batch cancelled")
}

// DownloadFile fetches a single item to its local path. Idempotent: an
// existing destination is a no-op. The temp file is renamed into place only
// after the full body has been written, so readers never see partial files.
func (m *Manager) DownloadFile(ctx context.Context, item media.Item) error {
	path, ok := m.LocalPath(item)
	if !ok {
		return fmt.Errorf("item %q is not cacheable", item.CacheKey())
	}
	if _, err := os.Stat(path); err == nil {
		logging.Debug("download manager: %s already cached", item.CacheKey())
		return nil
	}

	url := item.SourceURL()
	if url == "" {
		resolved, err := item.ResolveURL(ctx)
		if err != nil {
			return fmt.Errorf("resolve url: %w", err)
		}
		url = resolved
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if m.headers != nil {
		for name, values := range m.headers.Headers(url) {
			for _, v := range values {
				req.Header.Add(name, v)
			}
		}
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("fetch: unexpected status %d", resp.StatusCode)
	}

	tmp, err := os.CreateTemp(m.dir, ".download-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	written, err := io.Copy(tmp, resp.Body)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write body: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("finalize download: %w", err)
	}

	metrics.DownloadBytesTotal.Add(float64(written))
	logging.Debug("download manager: downloaded %s (%d bytes)", item.CacheKey(), written)

	if m.journal != nil {
		ext := strings.TrimPrefix(filepath.Ext(path), ".")
		if err := m.journal.Record(item.CacheKey(), ext, url, written); err != nil {
			logging.Warn("download manager: journal record %s: %v", item.CacheKey(), err)
		}
	}

	return nil
}

// Clear removes the downloads for the given items. When no downloaded files
// remain afterwards, the state machine resets to idle.
func (m *Manager) Clear(items []media.Item) error {
	var firstErr error
	for _, item := range items {
		path, ok := m.LocalPath(item)
		if !ok {
			continue
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			if firstErr == nil {
				firstErr = fmt.Errorf("remove %s: %w", path, err)
			}
			continue
		}
		if m.journal != nil {
			if err := m.journal.Delete(item.CacheKey()); err != nil {
				logging.Warn("download manager: journal delete %s: %v", item.CacheKey(), err)
			}
		}
	}

	if m.DownloadedBytes() == 0 {
		m.resetIdle()
	}
	return firstErr
}

// ClearAll removes every downloaded file and resets the state machine.
func (m *Manager) ClearAll() error {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return fmt.Errorf("read download directory: %w", err)
	}

	var firstErr error
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(m.dir, e.Name())); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("remove %s: %w", e.Name(), err)
		}
	}

	if m.journal != nil {
		if err := m.journal.Clear(); err != nil {
			logging.Warn("download manager: journal clear: %v", err)
		}
	}

	m.resetIdle()
	metrics.DownloadedFilesBytes.Set(0)
	return firstErr
}

func (m *Manager) resetIdle() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateDownloading {
		return
	}
	m.state = StateIdle
	m.progress = Progress{}
	m.reason = ""
	publishState(m.state, m.progress)
}

// DownloadedBytes returns the byte total of files in the download directory
// and refreshes the corresponding gauge.
func (m *Manager) DownloadedBytes() int64 {
	var total int64
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return 0
	}
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".download-") {
			continue
		}
		if info, err := e.Info(); err == nil {
			total += info.Size()
		}
	}
	metrics.DownloadedFilesBytes.Set(float64(total))
	return total
}
