// Package handlers implements the HTTP surface of the cache service:
// thumbnail read-through with on-miss generation, cache statistics and
// maintenance (evict, clear), and bulk media download control.
package handlers
