// Package thumbcache implements the two-tier thumbnail cache:
//
//   - MemoryCache: a size-bounded in-process LRU of decoded thumbnails
//   - DiskCache: a persistent store of JPEG thumbnails and metadata JSON
//     under <root>/Thumbnails and <root>/Metadata, with optional
//     encryption-at-rest and size-bounded eviction by modification time
//   - Cache: the facade composing both, read-through and write-through
//     (memory synchronously, disk via a bounded background write queue)
//
// The cache is a best-effort acceleration layer: every disk failure
// degrades to a cache miss or an abandoned write, never an error the
// caller has to handle.
package thumbcache
