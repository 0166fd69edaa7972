package shm

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/1broseidon/ivicomp/internal/scene"
)

func TestCreateAndOpen_RoundTrip(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 3, 2))
	src.SetNRGBA(2, 1, color.NRGBA{R: 10, G: 20, B: 30, A: 255})

	path, err := Create(t.TempDir(), "test", src)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	buf, err := Open(path, 3, 2, 0, scene.PixelFormatRGBA8888)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer buf.Close()

	got := buf.Image().At(2, 1)
	if got != (color.NRGBA{R: 10, G: 20, B: 30, A: 255}) {
		t.Fatalf("unexpected pixel %v", got)
	}
	if err := buf.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if buf.Image() != nil {
		t.Fatalf("expected no image after close")
	}
	if err := buf.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestOpen_RejectsShortFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "short")
	if err := os.WriteFile(path, make([]byte, 10), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(path, 4, 4, 0, scene.PixelFormatRGBA8888); err == nil {
		t.Fatalf("expected error for short file")
	}
	if _, err := Open(path, 1, 1, 0, scene.PixelFormatUnknown); err == nil {
		t.Fatalf("expected error for unknown format")
	}
	if _, err := Open(path, 4, 1, 2, scene.PixelFormatRGB888); err == nil {
		t.Fatalf("expected error for short stride")
	}
	// Sizes whose byte count would overflow must not map a short file.
	if _, err := Open(path, 1<<61+1, 2, 0, scene.PixelFormatRGBA8888); err == nil {
		t.Fatalf("expected error for oversized width")
	}
	if _, err := Open(path, 1, 1<<40, 0, scene.PixelFormatR8); err == nil {
		t.Fatalf("expected error for oversized height")
	}
	if _, err := Open(path, 1, 2, 1<<62, scene.PixelFormatR8); err == nil {
		t.Fatalf("expected error for oversized stride")
	}
}

func TestPackedFormats(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rgb565")
	// One white pixel, one pure red pixel.
	if err := os.WriteFile(path, []byte{0xff, 0xff, 0x00, 0xf8}, 0o600); err != nil {
		t.Fatal(err)
	}
	buf, err := Open(path, 2, 1, 0, scene.PixelFormatRGB565)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer buf.Close()
	img := buf.Image()
	if got := img.At(0, 0); got != (color.NRGBA{R: 255, G: 255, B: 255, A: 255}) {
		t.Fatalf("unexpected white %v", got)
	}
	if got := img.At(1, 0); got != (color.NRGBA{R: 255, A: 255}) {
		t.Fatalf("unexpected red %v", got)
	}

	if got := decodeRGBA4444([]byte{0x0f, 0xf0}); got != (color.NRGBA{R: 255, B: 0, A: 255}) {
		t.Fatalf("unexpected rgba4444 %v", got)
	}
	if BytesPerPixel(scene.PixelFormatRGBA6661) != 3 {
		t.Fatalf("expected 3 bytes per RGBA_6661 pixel")
	}
}
