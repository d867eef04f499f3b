// Package limiter bounds how many thumbnail generation operations run
// concurrently, so a burst of gallery requests cannot overwhelm the image
// decoder. Waiters are admitted in FIFO order.
package limiter
