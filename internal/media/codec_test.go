package media

import (
	"image"
	"image/color"
	"testing"
)

func testImage(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x * 13), G: uint8(y * 7), B: 128, A: 255})
		}
	}
	return img
}

func TestEncodeDecodeJPEGRoundTrip(t *testing.T) {
	src := testImage(64, 48)

	data, err := EncodeJPEG(src, 80)
	if err != nil {
		t.Fatalf("EncodeJPEG() error: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("EncodeJPEG() returned empty data")
	}

	decoded, err := DecodeImage(data)
	if err != nil {
		t.Fatalf("DecodeImage() error: %v", err)
	}

	bounds := decoded.Bounds()
	if bounds.Dx() != 64 || bounds.Dy() != 48 {
		t.Errorf("decoded dimensions = %dx%d, want 64x48", bounds.Dx(), bounds.Dy())
	}
}

func TestEncodeJPEGNilImage(t *testing.T) {
	if _, err := EncodeJPEG(nil, 80); err == nil {
		t.Error("EncodeJPEG(nil) succeeded, want error")
	}
}

func TestEncodeJPEGQualityClamped(t *testing.T) {
	src := testImage(16, 16)

	// Out-of-range qualities fall back to the default instead of failing.
	for _, q := range []int{-1, 0, 101} {
		if _, err := EncodeJPEG(src, q); err != nil {
			t.Errorf("EncodeJPEG(quality=%d) error: %v", q, err)
		}
	}
}

func TestDecodeImageGarbage(t *testing.T) {
	if _, err := DecodeImage([]byte("definitely not an image")); err == nil {
		t.Error("DecodeImage(garbage) succeeded, want error")
	}
}

func TestEstimateDecodedSize(t *testing.T) {
	nrgba := image.NewNRGBA(image.Rect(0, 0, 10, 10))
	if got, want := EstimateDecodedSize(nrgba), int64(nrgba.Stride)*10; got != want {
		t.Errorf("NRGBA size = %d, want %d", got, want)
	}

	gray := image.NewGray(image.Rect(0, 0, 10, 10))
	if got, want := EstimateDecodedSize(gray), int64(gray.Stride)*10; got != want {
		t.Errorf("Gray size = %d, want %d", got, want)
	}

	ycbcr := image.NewYCbCr(image.Rect(0, 0, 10, 10), image.YCbCrSubsampleRatio420)
	if got, want := EstimateDecodedSize(ycbcr), int64(len(ycbcr.Y)+len(ycbcr.Cb)+len(ycbcr.Cr)); got != want {
		t.Errorf("YCbCr size = %d, want %d", got, want)
	}

	// Image types outside the switch fall back to 4 bytes per pixel.
	alpha := image.NewAlpha(image.Rect(0, 0, 8, 8))
	if got := EstimateDecodedSize(alpha); got != 8*8*4 {
		t.Errorf("fallback size = %d, want %d", got, 8*8*4)
	}
}
