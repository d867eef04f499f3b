package thumbcache

import (
	"container/list"
	"sync"
	"time"

	"media-cache/internal/logging"
	"media-cache/internal/media"
	"media-cache/internal/metrics"
)

// Memory budgets. The constrained default suits small containers; pick via
// configuration.
const (
	DefaultMemoryBudget     = 100 * 1024 * 1024
	ConstrainedMemoryBudget = 50 * 1024 * 1024
)

type memoryEntry struct {
	id         string
	thumb      *media.Thumbnail
	sizeBytes  int64
	lastAccess time.Time
}

// MemoryCache is a size-bounded LRU of decoded thumbnails keyed by item ID.
// All operations are serialized by a single mutex; critical sections are
// short and never block on I/O.
type MemoryCache struct {
	mu      sync.Mutex
	budget  int64
	total   int64
	entries map[string]*list.Element
	lru     *list.List // front = most recently used
}

// NewMemoryCache creates a memory cache with the given byte budget.
// Non-positive budgets fall back to DefaultMemoryBudget.
func NewMemoryCache(budget int64) *MemoryCache {
	if budget <= 0 {
		budget = DefaultMemoryBudget
	}
	return &MemoryCache{
		budget:  budget,
		entries: make(map[string]*list.Element),
		lru:     list.New(),
	}
}

// Get returns the cached thumbnail for id and refreshes its recency.
func (c *MemoryCache) Get(id string) (*media.Thumbnail, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[id]
	if !ok {
		return nil, false
	}

	entry := elem.Value.(*memoryEntry)
	entry.lastAccess = time.Now()
	c.lru.MoveToFront(elem)
	return entry.thumb, true
}

// Set inserts or replaces the thumbnail for id, evicting least-recently-used
// entries first so the accounted total stays within budget. Thumbnails
// larger than the whole budget are not cached.
func (c *MemoryCache) Set(id string, thumb *media.Thumbnail) {
	if thumb == nil {
		return
	}

	size := thumb.SizeBytes
	if size <= 0 {
		size = int64(thumb.Width) * int64(thumb.Height) * 4
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[id]; ok {
		c.removeLocked(elem)
	}

	if size > c.budget {
		logging.Debug("memory cache: %s (%d bytes) exceeds budget %d, not caching", id, size, c.budget)
		return
	}

	c.evictLocked(c.budget-size, "budget")

	elem := c.lru.PushFront(&memoryEntry{
		id:         id,
		thumb:      thumb,
		sizeBytes:  size,
		lastAccess: time.Now(),
	})
	c.entries[id] = elem
	c.total += size

	c.updateGaugesLocked()
}

// Contains reports whether id is cached without refreshing recency.
func (c *MemoryCache) Contains(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[id]
	return ok
}

// Remove drops the entry for id if present.
func (c *MemoryCache) Remove(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[id]; ok {
		c.removeLocked(elem)
		c.updateGaugesLocked()
	}
}

// Clear drops all entries and resets the accounted total.
func (c *MemoryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*list.Element)
	c.lru.Init()
	c.total = 0
	c.updateGaugesLocked()
}

// HandleMemoryPressure evicts down to half the budget. Wire this to the
// memory monitor's critical watermark.
func (c *MemoryCache) HandleMemoryPressure() {
	c.mu.Lock()
	defer c.mu.Unlock()

	before := c.total
	c.evictLocked(c.budget/2, "pressure")
	c.updateGaugesLocked()

	metrics.MemoryPressureEvents.Inc()
	logging.Info("memory cache pressure: evicted %d bytes, %d remaining", before-c.total, c.total)
}

// Len returns the number of cached entries.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// TotalBytes returns the accounted byte total.
func (c *MemoryCache) TotalBytes() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total
}

// Budget returns the configured byte budget.
func (c *MemoryCache) Budget() int64 {
	return c.budget
}

// evictLocked removes oldest entries until the total is at or below target.
func (c *MemoryCache) evictLocked(target int64, reason string) {
	for c.total > target {
		oldest := c.lru.Back()
		if oldest == nil {
			return
		}
		entry := oldest.Value.(*memoryEntry)
		logging.Debug("memory cache: evicting %s (%d bytes, last access %s)",
			entry.id, entry.sizeBytes, entry.lastAccess.Format(time.RFC3339))
		c.removeLocked(oldest)
		metrics.MemoryCacheEvictions.WithLabelValues(reason).Inc()
	}
}

func (c *MemoryCache) removeLocked(elem *list.Element) {
	entry := elem.Value.(*memoryEntry)
	c.lru.Remove(elem)
	delete(c.entries, entry.id)
	c.total -= entry.sizeBytes
}

func (c *MemoryCache) updateGaugesLocked() {
	metrics.MemoryCacheBytes.Set(float64(c.total))
	metrics.MemoryCacheItems.Set(float64(len(c.entries)))
}
