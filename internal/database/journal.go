package database

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"media-cache/internal/logging"
	"media-cache/internal/metrics"
)

const defaultTimeout = 5 * time.Second

// Entry is one downloaded file as recorded in the journal.
type Entry struct {
	CacheKey     string    `json:"cacheKey"`
	Extension    string    `json:"extension"`
	SourceURL    string    `json:"sourceUrl"`
	SizeBytes    int64     `json:"sizeBytes"`
	DownloadedAt time.Time `json:"downloadedAt"`
}

// Journal is the SQLite-backed download journal. Safe for concurrent use;
// writes are serialized by the mutex, reads share it.
type Journal struct {
	db *sql.DB
	mu sync.RWMutex
}

// Open opens (or creates) the journal database at dbPath. The parent
// directory must exist and be writable.
func Open(ctx context.Context, dbPath string) (*Journal, error) {
	// WAL mode with a busy timeout avoids "database is locked" errors when
	// the HTTP surface and the download goroutine touch the journal at once.
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect journal: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	j := &Journal{db: db}
	if err := j.initialize(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize journal schema: %w", err)
	}

	logging.Info("download journal opened at %s", dbPath)
	return j, nil
}

func (j *Journal) initialize(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS downloads (
		cache_key TEXT PRIMARY KEY,
		extension TEXT NOT NULL,
		source_url TEXT NOT NULL,
		size_bytes INTEGER NOT NULL DEFAULT 0,
		downloaded_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);

	CREATE INDEX IF NOT EXISTS idx_downloads_downloaded_at ON downloads(downloaded_at);
	`

	initCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := j.db.ExecContext(initCtx, schema)
	return err
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}

func recordQuery(operation string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.JournalQueriesTotal.WithLabelValues(operation, status).Inc()
}

// Record upserts the journal row for a completed download.
func (j *Journal) Record(key, extension, sourceURL string, sizeBytes int64) error {
	var err error
	defer func() { recordQuery("record", err) }()

	j.mu.Lock()
	defer j.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	_, err = j.db.ExecContext(ctx, `
		INSERT INTO downloads (cache_key, extension, source_url, size_bytes, downloaded_at)
		VALUES (?, ?, ?, ?, strftime('%s', 'now'))
		ON CONFLICT(cache_key) DO UPDATE SET
			extension = excluded.extension,
			source_url = excluded.source_url,
			size_bytes = excluded.size_bytes,
			downloaded_at = excluded.downloaded_at`,
		key, extension, sourceURL, sizeBytes,
	)
	if err != nil {
		return fmt.Errorf("record download %s: %w", key, err)
	}
	return nil
}

// Delete removes the journal row for key. Deleting a missing key is not an
// error.
func (j *Journal) Delete(key string) error {
	var err error
	defer func() { recordQuery("delete", err) }()

	j.mu.Lock()
	defer j.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	_, err = j.db.ExecContext(ctx, "DELETE FROM downloads WHERE cache_key = ?", key)
	if err != nil {
		return fmt.Errorf("delete download %s: %w", key, err)
	}
	return nil
}

// Clear removes every journal row.
func (j *Journal) Clear() error {
	var err error
	defer func() { recordQuery("clear", err) }()

	j.mu.Lock()
	defer j.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	_, err = j.db.ExecContext(ctx, "DELETE FROM downloads")
	if err != nil {
		return fmt.Errorf("clear downloads: %w", err)
	}
	return nil
}

// List returns all journal entries, newest first.
func (j *Journal) List(ctx context.Context) ([]Entry, error) {
	var err error
	defer func() { recordQuery("list", err) }()

	j.mu.RLock()
	defer j.mu.RUnlock()

	queryCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := j.db.QueryContext(queryCtx, `
		SELECT cache_key, extension, source_url, size_bytes, downloaded_at
		FROM downloads
		ORDER BY downloaded_at DESC, cache_key`)
	if err != nil {
		return nil, fmt.Errorf("list downloads: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var downloadedAt int64
		if err = rows.Scan(&e.CacheKey, &e.Extension, &e.SourceURL, &e.SizeBytes, &downloadedAt); err != nil {
			return nil, fmt.Errorf("scan download row: %w", err)
		}
		e.DownloadedAt = time.Unix(downloadedAt, 0)
		entries = append(entries, e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate download rows: %w", err)
	}
	return entries, nil
}

// Get returns the entry for key, or (nil, nil) when absent.
func (j *Journal) Get(ctx context.Context, key string) (*Entry, error) {
	var err error
	defer func() { recordQuery("get", err) }()

	j.mu.RLock()
	defer j.mu.RUnlock()

	queryCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var e Entry
	var downloadedAt int64
	err = j.db.QueryRowContext(queryCtx, `
		SELECT cache_key, extension, source_url, size_bytes, downloaded_at
		FROM downloads WHERE cache_key = ?`, key).
		Scan(&e.CacheKey, &e.Extension, &e.SourceURL, &e.SizeBytes, &downloadedAt)
	if err == sql.ErrNoRows {
		err = nil
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get download %s: %w", key, err)
	}
	e.DownloadedAt = time.Unix(downloadedAt, 0)
	return &e, nil
}

// Count returns the number of journal rows.
func (j *Journal) Count(ctx context.Context) (int, error) {
	var err error
	defer func() { recordQuery("count", err) }()

	j.mu.RLock()
	defer j.mu.RUnlock()

	queryCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var count int
	err = j.db.QueryRowContext(queryCtx, "SELECT COUNT(*) FROM downloads").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count downloads: %w", err)
	}
	return count, nil
}
