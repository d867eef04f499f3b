package media

import (
	"bytes"
	"fmt"
	"image"

	"github.com/disintegration/imaging"

	_ "image/gif"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

// DefaultJPEGQuality is the JPEG quality used for cached thumbnails.
const DefaultJPEGQuality = 80

// EncodeJPEG encodes a decoded image as JPEG at the given quality (1-100).
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	if img == nil {
		return nil, fmt.Errorf("encode jpeg: nil image")
	}
	if quality <= 0 || quality > 100 {
		quality = DefaultJPEGQuality
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeImage decodes image bytes (JPEG, PNG, GIF, WebP, BMP, TIFF).
func DecodeImage(data []byte) (image.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

// EstimateDecodedSize approximates the in-memory footprint of a decoded
// image: stride times height for raster types, width*height*4 otherwise.
func EstimateDecodedSize(img image.Image) int64 {
	bounds := img.Bounds()
	height := bounds.Dy()

	switch im := img.(type) {
	case *image.RGBA:
		return int64(im.Stride) * int64(height)
	case *image.NRGBA:
		return int64(im.Stride) * int64(height)
	case *image.RGBA64:
		return int64(im.Stride) * int64(height)
	case *image.NRGBA64:
		return int64(im.Stride) * int64(height)
	case *image.Gray:
		return int64(im.Stride) * int64(height)
	case *image.Gray16:
		return int64(im.Stride) * int64(height)
	case *image.CMYK:
		return int64(im.Stride) * int64(height)
	case *image.Paletted:
		return int64(im.Stride) * int64(height)
	case *image.YCbCr:
		return int64(len(im.Y) + len(im.Cb) + len(im.Cr))
	default:
		return int64(bounds.Dx()) * int64(height) * 4
	}
}
