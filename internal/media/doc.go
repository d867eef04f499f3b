// Package media defines the media item model shared by the cache tiers and
// the download manager, plus thumbnail generation (decode, resize, JPEG
// encode) for images and videos.
//
// Thumbnail generation supports:
//   - Images: libvips decode-time shrinking when available, imaging fallback
//   - Videos: first-frame extraction using FFmpeg
//
// The cache itself never generates thumbnails; callers generate through this
// package and hand the result to the cache.
package media
