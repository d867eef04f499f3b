package media

import (
	"bytes"
	"fmt"
	"image"
	"os"
	"os/exec"
	"time"

	"github.com/disintegration/imaging"

	"media-cache/internal/logging"
	"media-cache/internal/metrics"
)

// Thumbnail bounding box. Thumbnails are fit inside this box preserving
// aspect ratio.
const (
	ThumbWidth  = 200
	ThumbHeight = 200
)

// Generator produces thumbnails from local media files.
type Generator struct {
	quality int
}

// NewGenerator creates a thumbnail generator encoding JPEG at the given
// quality (1-100).
func NewGenerator(quality int) *Generator {
	if quality <= 0 || quality > 100 {
		quality = DefaultJPEGQuality
	}
	return &Generator{quality: quality}
}

// Quality returns the configured JPEG quality.
func (g *Generator) Quality() int {
	return g.quality
}

// Generate decodes a source file and returns a decoded thumbnail fit inside
// the thumbnail bounding box.
func (g *Generator) Generate(path string, kind Kind) (*Thumbnail, error) {
	start := time.Now()

	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("file not accessible: %w", err)
	}

	var img image.Image
	var err error

	switch kind {
	case KindImage, KindAnimatedImage:
		img, err = g.decodeImageFile(path)
	case KindVideo:
		img, err = extractVideoFrame(path)
	default:
		return nil, fmt.Errorf("no thumbnail for media kind %q", kind)
	}

	if err != nil {
		metrics.ThumbnailGenerationsTotal.WithLabelValues(string(kind), "error").Inc()
		return nil, fmt.Errorf("thumbnail generation failed: %w", err)
	}
	if img == nil {
		metrics.ThumbnailGenerationsTotal.WithLabelValues(string(kind), "error").Inc()
		return nil, fmt.Errorf("thumbnail generation returned nil image")
	}

	thumb := imaging.Fit(img, ThumbWidth, ThumbHeight, imaging.Lanczos)

	metrics.ThumbnailGenerationsTotal.WithLabelValues(string(kind), "success").Inc()
	metrics.ThumbnailGenerationDuration.WithLabelValues(string(kind)).Observe(time.Since(start).Seconds())

	return NewThumbnail(thumb), nil
}

// EncodeThumbnail encodes a generated thumbnail for disk storage.
func (g *Generator) EncodeThumbnail(t *Thumbnail) ([]byte, error) {
	return EncodeJPEG(t.Image, g.quality)
}

func (g *Generator) decodeImageFile(path string) (image.Image, error) {
	if IsVipsAvailable() {
		img, err := loadImageWithVips(path, ThumbWidth, ThumbHeight)
		if err == nil {
			return img, nil
		}
		logging.Debug("vips decode failed for %s: %v, falling back", path, err)
	}

	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err == nil {
		return img, nil
	}

	logging.Debug("imaging.Open failed for %s: %v, trying ffmpeg fallback", path, err)

	img, ffErr := extractImageWithFFmpeg(path)
	if ffErr != nil {
		return nil, fmt.Errorf("all image decode methods failed: %w", err)
	}
	return img, nil
}

// extractVideoFrame grabs a frame one second in, retrying at the first
// frame for very short clips.
func extractVideoFrame(path string) (image.Image, error) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return nil, fmt.Errorf("ffmpeg not found: %w", err)
	}

	out, err := runFFmpeg("-ss", "00:00:01", "-i", path, "-vframes", "1", "-f", "image2pipe", "-vcodec", "png", "-")
	if err != nil {
		logging.Debug("ffmpeg seek failed for %s: %v, retrying at first frame", path, err)
		out, err = runFFmpeg("-i", path, "-vframes", "1", "-f", "image2pipe", "-vcodec", "png", "-")
		if err != nil {
			return nil, err
		}
	}

	img, _, err := image.Decode(bytes.NewReader(out))
	if err != nil {
		return nil, fmt.Errorf("decode ffmpeg output: %w", err)
	}
	return img, nil
}

// extractImageWithFFmpeg decodes exotic image formats the Go decoders
// reject (HEIC, AVIF and friends) by piping through ffmpeg.
func extractImageWithFFmpeg(path string) (image.Image, error) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return nil, fmt.Errorf("ffmpeg not found: %w", err)
	}

	out, err := runFFmpeg("-i", path, "-vframes", "1", "-f", "image2pipe", "-vcodec", "png", "-pix_fmt", "rgb24", "-")
	if err != nil {
		return nil, err
	}

	img, _, err := image.Decode(bytes.NewReader(out))
	if err != nil {
		return nil, fmt.Errorf("decode ffmpeg output: %w", err)
	}
	return img, nil
}

func runFFmpeg(args ...string) ([]byte, error) {
	cmd := exec.Command("ffmpeg", args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg failed: %v, stderr: %s", err, stderr.String())
	}
	if stdout.Len() == 0 {
		return nil, fmt.Errorf("ffmpeg produced no output")
	}
	return stdout.Bytes(), nil
}
