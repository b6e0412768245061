package loaders

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func writePNG(t *testing.T, path string) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	img.Set(1, 0, color.RGBA{G: 255, A: 255})
	img.Set(0, 1, color.RGBA{B: 255, A: 255})
	img.Set(1, 1, color.RGBA{R: 255, G: 255, B: 255, A: 255})
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func TestImageLoaderPacksRGBA(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tex.png")
	writePNG(t, path)

	data, err := (&ImageLoader{}).Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if data.Width != 2 || data.Height != 2 || data.ChannelCount != 4 {
		t.Fatalf("unexpected header %+v", data)
	}
	if len(data.Pixels) != 16 {
		t.Fatalf("pixels = %d bytes", len(data.Pixels))
	}
	if data.Pixels[0] != 255 || data.Pixels[1] != 0 || data.Pixels[3] != 255 {
		t.Fatalf("first pixel = %v", data.Pixels[:4])
	}
}

func TestImageLoaderFlipY(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tex.png")
	writePNG(t, path)

	data, err := (&ImageLoader{FlipY: true}).Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	// Row 0 is now the original bottom row, starting with blue.
	if data.Pixels[0] != 0 || data.Pixels[2] != 255 {
		t.Fatalf("first pixel after flip = %v", data.Pixels[:4])
	}
}

func TestDecodeImageUnknownFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tex.txt")
	if err := os.WriteFile(path, []byte("not an image"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := DecodeImage(path); err == nil {
		t.Fatal("expected decode error")
	}
}
