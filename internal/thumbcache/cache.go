package thumbcache

import (
	"sync"

	"media-cache/internal/logging"
	"media-cache/internal/media"
	"media-cache/internal/metrics"
)

// DefaultWriteQueueSize bounds the asynchronous disk write queue.
const DefaultWriteQueueSize = 64

type diskWrite struct {
	key      string
	thumb    *media.Thumbnail
	meta     *Metadata
	animated bool
}

// Cache composes the memory and disk tiers. Reads go memory → disk → miss,
// promoting disk hits into memory. Writes hit memory synchronously and the
// disk via a bounded background queue with best-effort semantics: a failed
// or dropped disk write is invisible to the caller.
type Cache struct {
	memory *MemoryCache
	disk   *DiskCache

	writes chan diskWrite
	wg     sync.WaitGroup

	closeOnce sync.Once
}

// Stats is the aggregate observability snapshot.
type Stats struct {
	MemoryItems    int   `json:"memoryItems"`
	MemoryBytes    int64 `json:"memoryBytes"`
	MemoryBudget   int64 `json:"memoryBudget"`
	DiskBytes      int64 `json:"diskBytes"`
	DiskBudget     int64 `json:"diskBudget"`
	DiskThumbnails int   `json:"diskThumbnails"`
	TotalCached    int   `json:"totalCached"`
}

// New creates the facade and starts its background disk writer.
// queueSize <= 0 falls back to DefaultWriteQueueSize.
func New(memory *MemoryCache, disk *DiskCache, queueSize int) *Cache {
	if queueSize <= 0 {
		queueSize = DefaultWriteQueueSize
	}

	c := &Cache{
		memory: memory,
		disk:   disk,
		writes: make(chan diskWrite, queueSize),
	}

	c.wg.Add(1)
	go c.writeLoop()

	return c
}

// Close stops the background writer after draining queued writes.
func (c *Cache) Close() {
	c.closeOnce.Do(func() {
		close(c.writes)
		c.wg.Wait()
	})
}

// Get returns the thumbnail for id. A memory miss with a non-empty diskKey
// consults the disk tier and promotes a hit into memory.
func (c *Cache) Get(id, diskKey string) (*media.Thumbnail, bool) {
	if thumb, ok := c.memory.Get(id); ok {
		metrics.ThumbnailCacheHits.WithLabelValues("memory").Inc()
		return thumb, true
	}

	if diskKey != "" {
		if thumb, ok := c.disk.LoadThumbnail(diskKey); ok {
			c.memory.Set(id, thumb)
			metrics.ThumbnailCacheHits.WithLabelValues("disk").Inc()
			return thumb, true
		}
	}

	metrics.ThumbnailCacheMisses.Inc()
	return nil, false
}

// Set stores the thumbnail in memory synchronously and, when diskKey is
// non-empty, schedules a best-effort disk write. meta may be nil.
func (c *Cache) Set(id string, thumb *media.Thumbnail, diskKey string, animated bool, meta *Metadata) {
	c.memory.Set(id, thumb)

	if diskKey == "" {
		return
	}

	select {
	case c.writes <- diskWrite{key: diskKey, thumb: thumb, meta: meta, animated: animated}:
		metrics.DiskWriteQueueDepth.Set(float64(len(c.writes)))
	default:
		// Queue full: drop the write. The thumbnail stays in memory and
		// can be regenerated, so losing persistence is acceptable.
		metrics.DiskWriteQueueDropped.Inc()
		logging.Debug("thumbnail cache: write queue full, dropping disk write for %s", diskKey)
	}
}

// Contains reports whether id is cached in memory or, when diskKey is
// non-empty, on disk.
func (c *Cache) Contains(id, diskKey string) bool {
	if c.memory.Contains(id) {
		return true
	}
	return diskKey != "" && c.disk.HasThumbnail(diskKey)
}

// Metadata returns the disk metadata record for key.
func (c *Cache) Metadata(diskKey string) (*Metadata, bool) {
	return c.disk.LoadMetadata(diskKey)
}

// Memory exposes the memory tier (pressure hook, clears).
func (c *Cache) Memory() *MemoryCache {
	return c.memory
}

// Disk exposes the disk tier (eviction, clears, re-encryption surface).
func (c *Cache) Disk() *DiskCache {
	return c.disk
}

// Stats returns an aggregate snapshot across both tiers.
func (c *Cache) Stats() Stats {
	memItems := c.memory.Len()
	diskThumbs := c.disk.ThumbnailCount()

	return Stats{
		MemoryItems:    memItems,
		MemoryBytes:    c.memory.TotalBytes(),
		MemoryBudget:   c.memory.Budget(),
		DiskBytes:      c.disk.DiskUsage(),
		DiskBudget:     c.disk.Budget(),
		DiskThumbnails: diskThumbs,
		TotalCached:    memItems + diskThumbs,
	}
}

func (c *Cache) writeLoop() {
	defer c.wg.Done()

	for w := range c.writes {
		metrics.DiskWriteQueueDepth.Set(float64(len(c.writes)))

		if err := c.disk.SaveThumbnail(w.thumb, w.key, w.animated); err != nil {
			logging.Warn("thumbnail cache: async thumbnail write %s: %v", w.key, err)
		}
		if w.meta != nil {
			if err := c.disk.SaveMetadata(w.meta, w.key); err != nil {
				logging.Warn("thumbnail cache: async metadata write %s: %v", w.key, err)
			}
		}
	}
}
