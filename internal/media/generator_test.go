package media

import (
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func writeTestPNG(t *testing.T, dir, name string, w, h int) string {
	t.Helper()

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Create(%s) error: %v", path, err)
	}
	defer f.Close()

	if err := png.Encode(f, testImage(w, h)); err != nil {
		t.Fatalf("png.Encode() error: %v", err)
	}
	return path
}

func TestGenerateImageThumbnail(t *testing.T) {
	path := writeTestPNG(t, t.TempDir(), "photo.png", 800, 600)

	gen := NewGenerator(80)
	thumb, err := gen.Generate(path, KindImage)
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}

	// Fit inside 200x200 preserving 4:3 aspect ratio.
	if thumb.Width != ThumbWidth {
		t.Errorf("thumb width = %d, want %d", thumb.Width, ThumbWidth)
	}
	if thumb.Height != 150 {
		t.Errorf("thumb height = %d, want 150", thumb.Height)
	}
	if thumb.SizeBytes <= 0 {
		t.Errorf("SizeBytes = %d, want > 0", thumb.SizeBytes)
	}
}

func TestGenerateSmallImageNotUpscaled(t *testing.T) {
	path := writeTestPNG(t, t.TempDir(), "small.png", 50, 40)

	gen := NewGenerator(80)
	thumb, err := gen.Generate(path, KindImage)
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	if thumb.Width != 50 || thumb.Height != 40 {
		t.Errorf("thumb = %dx%d, want 50x40 (no upscale)", thumb.Width, thumb.Height)
	}
}

func TestGenerateMissingFile(t *testing.T) {
	gen := NewGenerator(80)
	if _, err := gen.Generate(filepath.Join(t.TempDir(), "nope.jpg"), KindImage); err == nil {
		t.Error("Generate() on missing file succeeded, want error")
	}
}

func TestGenerateUnsupportedKind(t *testing.T) {
	path := writeTestPNG(t, t.TempDir(), "cover.png", 10, 10)

	gen := NewGenerator(80)
	if _, err := gen.Generate(path, KindAudio); err == nil {
		t.Error("Generate() for audio succeeded, want error")
	}
	if _, err := gen.Generate(path, KindOther); err == nil {
		t.Error("Generate() for other succeeded, want error")
	}
}

func TestEncodeThumbnail(t *testing.T) {
	gen := NewGenerator(80)
	thumb := NewThumbnail(testImage(32, 32))

	data, err := gen.EncodeThumbnail(thumb)
	if err != nil {
		t.Fatalf("EncodeThumbnail() error: %v", err)
	}
	if _, err := DecodeImage(data); err != nil {
		t.Errorf("encoded thumbnail not decodable: %v", err)
	}
}

func TestNewGeneratorQualityClamp(t *testing.T) {
	if q := NewGenerator(0).Quality(); q != DefaultJPEGQuality {
		t.Errorf("Quality() = %d, want %d", q, DefaultJPEGQuality)
	}
	if q := NewGenerator(150).Quality(); q != DefaultJPEGQuality {
		t.Errorf("Quality() = %d, want %d", q, DefaultJPEGQuality)
	}
	if q := NewGenerator(65).Quality(); q != 65 {
		t.Errorf("Quality() = %d, want 65", q)
	}
}
