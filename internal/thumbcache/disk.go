package thumbcache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"media-cache/internal/filesystem"
	"media-cache/internal/logging"
	"media-cache/internal/media"
	"media-cache/internal/metrics"
	"media-cache/internal/securestore"
)

// DefaultDiskBudget bounds the on-disk thumbnail cache size.
const DefaultDiskBudget = 500 * 1024 * 1024

const (
	thumbnailsDirName = "Thumbnails"
	metadataDirName   = "Metadata"

	thumbExt = ".jpg"
	metaExt  = ".json"
	encExt   = ".enc"
)

// Metadata is the per-item metadata record stored alongside thumbnails.
type Metadata struct {
	VideoDuration         *float64   `json:"videoDuration,omitempty"`
	AnimatedImageDuration *float64   `json:"animatedImageDuration,omitempty"`
	HasAudio              *bool      `json:"hasAudio,omitempty"`
	MediaType             media.Kind `json:"mediaType,omitempty"`
	Width                 int        `json:"width,omitempty"`
	Height                int        `json:"height,omitempty"`
	LastAccessed          time.Time  `json:"lastAccessed"`
}

// DiskCache is a persistent thumbnail and metadata store. When an encryptor
// is configured, blobs are stored encrypted (suffix .enc); decryption
// failures are treated as cache misses, never as a fallback to plaintext
// semantics.
type DiskCache struct {
	root     string
	thumbDir string
	metaDir  string
	budget   int64
	quality  int

	encryptor securestore.Encryptor
	retry     filesystem.RetryConfig

	// evictMu serializes eviction passes so two passes cannot interleave
	// and double-count.
	evictMu sync.Mutex
}

// NewDiskCache creates the cache directories under root. A nil encryptor
// means plaintext storage.
func NewDiskCache(root string, budget int64, quality int, encryptor securestore.Encryptor) (*DiskCache, error) {
	if budget <= 0 {
		budget = DefaultDiskBudget
	}
	if quality <= 0 || quality > 100 {
		quality = media.DefaultJPEGQuality
	}

	c := &DiskCache{
		root:      root,
		thumbDir:  filepath.Join(root, thumbnailsDirName),
		metaDir:   filepath.Join(root, metadataDirName),
		budget:    budget,
		quality:   quality,
		encryptor: encryptor,
		retry:     filesystem.DefaultRetryConfig(),
	}

	for _, dir := range []string{c.thumbDir, c.metaDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create cache directory %s: %w", dir, err)
		}
	}

	return c, nil
}

// KeyForURL derives a disk cache key from a remote URL. The URL string is
// hashed as-is: no normalization, so case or trailing-slash variants yield
// distinct keys.
func KeyForURL(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:])
}

// KeyForFile derives a disk cache key from a local file identity. The
// modification time disambiguates revisions of the same path; a zero time
// still yields a valid but weaker key.
func KeyForFile(path string, modTime time.Time) string {
	input := path
	if !modTime.IsZero() {
		input += strconv.FormatInt(modTime.Unix(), 10)
	}
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}

func (c *DiskCache) thumbPath(key string, encrypted bool) string {
	name := key + thumbExt
	if encrypted {
		name += encExt
	}
	return filepath.Join(c.thumbDir, name)
}

func (c *DiskCache) metaPath(key string, encrypted bool) string {
	name := key + metaExt
	if encrypted {
		name += encExt
	}
	return filepath.Join(c.metaDir, name)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// HasThumbnail reports whether a thumbnail blob (plain or encrypted) exists
// for key.
func (c *DiskCache) HasThumbnail(key string) bool {
	return fileExists(c.thumbPath(key, true)) || fileExists(c.thumbPath(key, false))
}

// HasMetadata reports whether a metadata blob (plain or encrypted) exists
// for key.
func (c *DiskCache) HasMetadata(key string) bool {
	return fileExists(c.metaPath(key, true)) || fileExists(c.metaPath(key, false))
}

// LoadThumbnail reads and decodes the thumbnail for key. Any read, decrypt
// or decode failure is a miss. A successful read refreshes the file's
// modification time, which drives eviction ordering.
func (c *DiskCache) LoadThumbnail(key string) (*media.Thumbnail, bool) {
	data, path, ok := c.readBlob(c.thumbPath(key, true), c.thumbPath(key, false), "thumbnail")
	if !ok {
		return nil, false
	}

	img, err := media.DecodeImage(data)
	if err != nil {
		logging.Warn("disk cache: undecodable thumbnail %s: %v", key, err)
		return nil, false
	}

	c.touch(path)
	return media.NewThumbnail(img), true
}

// SaveThumbnail encodes and persists a thumbnail. Animated thumbnails are
// never persisted: a single compressed frame would discard the animation.
// With an encryptor configured, an encryption failure abandons the write
// entirely; a successful encrypted write removes any stale plaintext blob.
func (c *DiskCache) SaveThumbnail(thumb *media.Thumbnail, key string, animated bool) error {
	if animated {
		logging.Debug("disk cache: skipping animated thumbnail %s", key)
		return nil
	}
	if thumb == nil {
		return fmt.Errorf("save thumbnail: nil thumbnail")
	}

	data, err := media.EncodeJPEG(thumb.Image, c.quality)
	if err != nil {
		metrics.DiskCacheWriteFailures.WithLabelValues("thumbnail").Inc()
		return fmt.Errorf("save thumbnail %s: %w", key, err)
	}

	return c.writeBlob(data, c.thumbPath(key, true), c.thumbPath(key, false), "thumbnail", key)
}

// LoadMetadata reads the metadata record for key, refreshing its
// modification time on success.
func (c *DiskCache) LoadMetadata(key string) (*Metadata, bool) {
	data, path, ok := c.readBlob(c.metaPath(key, true), c.metaPath(key, false), "metadata")
	if !ok {
		return nil, false
	}

	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		logging.Warn("disk cache: corrupt metadata %s: %v", key, err)
		return nil, false
	}

	c.touch(path)
	return &meta, true
}

// SaveMetadata persists a metadata record with the same encryption rules as
// SaveThumbnail.
func (c *DiskCache) SaveMetadata(meta *Metadata, key string) error {
	if meta == nil {
		return fmt.Errorf("save metadata: nil record")
	}

	data, err := json.Marshal(meta)
	if err != nil {
		metrics.DiskCacheWriteFailures.WithLabelValues("metadata").Inc()
		return fmt.Errorf("save metadata %s: %w", key, err)
	}

	return c.writeBlob(data, c.metaPath(key, true), c.metaPath(key, false), "metadata", key)
}

// readBlob picks the physical file per the encryption rules: the encrypted
// file is preferred when an encryptor is configured and the file exists;
// otherwise the plaintext file is used when present.
func (c *DiskCache) readBlob(encPath, plainPath, kind string) (data []byte, path string, ok bool) {
	if c.encryptor != nil && fileExists(encPath) {
		raw, err := filesystem.ReadFileWithRetry(encPath, c.retry)
		if err != nil {
			logging.Warn("disk cache: read %s %s: %v", kind, encPath, err)
			return nil, "", false
		}
		plain, err := c.encryptor.Decrypt(raw)
		if err != nil {
			// Never fall back to serving whatever the plaintext file
			// holds when decryption was expected to work.
			logging.Warn("disk cache: decrypt %s %s: %v", kind, encPath, err)
			return nil, "", false
		}
		return plain, encPath, true
	}

	if fileExists(plainPath) {
		raw, err := filesystem.ReadFileWithRetry(plainPath, c.retry)
		if err != nil {
			logging.Warn("disk cache: read %s %s: %v", kind, plainPath, err)
			return nil, "", false
		}
		return raw, plainPath, true
	}

	return nil, "", false
}

// writeBlob writes data under the encryption rules and removes the stale
// counterpart file so exactly one physical representation remains per key.
func (c *DiskCache) writeBlob(data []byte, encPath, plainPath, kind, key string) error {
	target := plainPath
	stale := encPath

	if c.encryptor != nil {
		sealed, err := c.encryptor.Encrypt(data)
		if err != nil {
			// Abandon the write: never persist plaintext when encryption
			// was requested.
			metrics.DiskCacheWriteFailures.WithLabelValues(kind).Inc()
			return fmt.Errorf("encrypt %s %s: %w", kind, key, err)
		}
		data = sealed
		target = encPath
		stale = plainPath
	}

	if err := filesystem.WriteFileAtomic(target, data, 0o644); err != nil {
		metrics.DiskCacheWriteFailures.WithLabelValues(kind).Inc()
		return fmt.Errorf("write %s %s: %w", kind, key, err)
	}

	if err := os.Remove(stale); err != nil && !os.IsNotExist(err) {
		logging.Warn("disk cache: remove stale %s %s: %v", kind, stale, err)
	}

	return nil
}

// touch refreshes a file's modification time so recently used entries
// survive eviction.
func (c *DiskCache) touch(path string) {
	now := time.Now()
	if err := os.Chtimes(path, now, now); err != nil {
		logging.Debug("disk cache: touch %s: %v", path, err)
	}
}

// DiskUsage returns the recursive byte total under the cache root.
func (c *DiskCache) DiskUsage() int64 {
	var total int64
	for _, dir := range []string{c.thumbDir, c.metaDir} {
		filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return nil
			}
			if info, infoErr := d.Info(); infoErr == nil {
				total += info.Size()
			}
			return nil
		})
	}
	metrics.DiskCacheBytes.Set(float64(total))
	return total
}

type cacheFile struct {
	path    string
	size    int64
	modTime time.Time
}

// EvictIfNeeded deletes oldest-modified files until usage is at or below
// half the budget. Evicting to half rather than to the limit avoids
// immediately re-triggering eviction on the next write. Returns the number
// of files removed.
func (c *DiskCache) EvictIfNeeded() int {
	c.evictMu.Lock()
	defer c.evictMu.Unlock()

	usage := c.DiskUsage()
	if usage <= c.budget {
		return 0
	}

	metrics.DiskCacheEvictionRuns.Inc()

	var files []cacheFile
	for _, dir := range []string{c.thumbDir, c.metaDir} {
		filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return nil
			}
			info, infoErr := d.Info()
			if infoErr != nil {
				return nil
			}
			files = append(files, cacheFile{path: path, size: info.Size(), modTime: info.ModTime()})
			return nil
		})
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].modTime.Before(files[j].modTime)
	})

	target := c.budget / 2
	evicted := 0

	for _, f := range files {
		if usage <= target {
			break
		}
		if err := os.Remove(f.path); err != nil {
			logging.Warn("disk cache: evict %s: %v", f.path, err)
			continue
		}
		usage -= f.size
		evicted++
		metrics.DiskCacheEvictedFiles.Inc()
	}

	metrics.DiskCacheBytes.Set(float64(usage))
	logging.Info("disk cache: evicted %d files, usage now %d bytes (budget %d)", evicted, usage, c.budget)
	return evicted
}

// ClearAll deletes and recreates both cache subdirectories.
func (c *DiskCache) ClearAll() error {
	for _, dir := range []string{c.thumbDir, c.metaDir} {
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("clear %s: %w", dir, err)
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("recreate %s: %w", dir, err)
		}
	}
	metrics.DiskCacheBytes.Set(0)
	return nil
}

// Directories exposes the two cache subdirectories so an external
// re-encryption routine can enumerate stored blobs when the key rotates.
// This cache does not implement re-encryption itself.
func (c *DiskCache) Directories() []string {
	return []string{c.thumbDir, c.metaDir}
}

// ThumbnailCount returns the number of thumbnail blobs on disk.
func (c *DiskCache) ThumbnailCount() int {
	entries, err := os.ReadDir(c.thumbDir)
	if err != nil {
		return 0
	}
	count := 0
	for _, e := range entries {
		if !e.IsDir() {
			count++
		}
	}
	return count
}

// Budget returns the configured disk byte budget.
func (c *DiskCache) Budget() int64 {
	return c.budget
}
