package media

import (
	"context"
	"image"
	"path/filepath"
	"strings"
)

// Kind represents the kind of a media item.
type Kind string

const (
	// KindImage represents a still image.
	KindImage Kind = "image"
	// KindAnimatedImage represents an animated image (GIF, animated WebP).
	KindAnimatedImage Kind = "animated_image"
	// KindVideo represents a video file.
	KindVideo Kind = "video"
	// KindAudio represents an audio file.
	KindAudio Kind = "audio"
	// KindOther represents an unknown or unsupported media kind.
	KindOther Kind = "other"
)

// Item is a media item as seen by the cache and download subsystems.
// Implementations come from the embedding application (gallery backend,
// test fixtures).
type Item interface {
	// CacheKey returns a stable disk cache key for the item, or "" when the
	// item has no stable identity and must not be cached on disk.
	CacheKey() string

	// MediaKind returns the item's media kind.
	MediaKind() Kind

	// SourceURL returns the direct remote URL when known, or "".
	SourceURL() string

	// ResolveURL resolves the downloadable URL for items whose SourceURL is
	// empty (e.g. items whose playback URL is minted on demand).
	ResolveURL(ctx context.Context) (string, error)
}

// Thumbnail is a decoded thumbnail plus its approximate in-memory footprint.
// The memory tier accounts SizeBytes against its budget.
type Thumbnail struct {
	Image     image.Image
	Width     int
	Height    int
	SizeBytes int64
}

// NewThumbnail wraps a decoded image, estimating its decoded footprint.
func NewThumbnail(img image.Image) *Thumbnail {
	bounds := img.Bounds()
	return &Thumbnail{
		Image:     img,
		Width:     bounds.Dx(),
		Height:    bounds.Dy(),
		SizeBytes: EstimateDecodedSize(img),
	}
}

// ImageExtensions maps file extensions to whether they are still images.
var ImageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true,
	".bmp": true, ".tiff": true, ".tif": true,
	".heic": true, ".heif": true,
}

// AnimatedImageExtensions maps file extensions to whether they may animate.
// Animated thumbnails are intentionally never persisted to disk (a single
// compressed frame would discard the animation).
var AnimatedImageExtensions = map[string]bool{
	".gif": true, ".webp": true,
}

// VideoExtensions maps file extensions to whether they are video files.
var VideoExtensions = map[string]bool{
	".mp4": true, ".mkv": true, ".avi": true, ".mov": true,
	".wmv": true, ".flv": true, ".webm": true, ".m4v": true,
	".mpeg": true, ".mpg": true, ".3gp": true, ".ts": true,
}

// AudioExtensions maps file extensions to whether they are audio files.
var AudioExtensions = map[string]bool{
	".mp3": true, ".m4a": true, ".aac": true, ".flac": true,
	".wav": true, ".ogg": true, ".opus": true,
}

// KindForPath classifies a file path by extension.
func KindForPath(path string) Kind {
	ext := strings.ToLower(filepath.Ext(path))

	switch {
	case ImageExtensions[ext]:
		return KindImage
	case AnimatedImageExtensions[ext]:
		return KindAnimatedImage
	case VideoExtensions[ext]:
		return KindVideo
	case AudioExtensions[ext]:
		return KindAudio
	default:
		return KindOther
	}
}

// FallbackExtension returns the download file extension used when an item's
// source URL does not carry one.
func FallbackExtension(kind Kind) string {
	switch kind {
	case KindVideo:
		return "mp4"
	case KindAudio:
		return "mp3"
	default:
		return "bin"
	}
}
