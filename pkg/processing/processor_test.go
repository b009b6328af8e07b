package processing

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/menta2k/emotion-analyzer/pkg/types"
)

// createTestImage creates a gradient test image
func createTestImage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r := uint8((x * 255) / width)
			g := uint8((y * 255) / height)
			img.Set(x, y, color.RGBA{r, g, 128, 255})
		}
	}

	return img
}

func TestGrayscale(t *testing.T) {
	p := NewProcessor()
	img := createTestImage(64, 48)

	gray := p.Grayscale(img)

	if gray.Bounds().Dx() != 64 || gray.Bounds().Dy() != 48 {
		t.Errorf("Expected 64x48, got %v", gray.Bounds())
	}

	// Pure white stays white
	white := image.NewRGBA(image.Rect(0, 0, 2, 2))
	for i := range white.Pix {
		white.Pix[i] = 255
	}
	if v := p.Grayscale(white).GrayAt(1, 1).Y; v != 255 {
		t.Errorf("Expected white to map to 255, got %d", v)
	}
}

func TestGrayscalePassThrough(t *testing.T) {
	p := NewProcessor()
	gray := image.NewGray(image.Rect(0, 0, 10, 10))

	if p.Grayscale(gray) != gray {
		t.Error("Expected an origin-based gray image to be returned as-is")
	}
}

func TestCropFace(t *testing.T) {
	p := NewProcessor()
	gray := p.Grayscale(createTestImage(200, 150))

	crop, err := p.CropFace(gray, types.Box{X: 20, Y: 30, Width: 80, Height: 80})
	if err != nil {
		t.Fatalf("CropFace failed: %v", err)
	}

	if crop.Bounds().Dx() != 80 || crop.Bounds().Dy() != 80 {
		t.Errorf("Expected 80x80 crop, got %v", crop.Bounds())
	}

	if crop.GrayAt(20, 30) != gray.GrayAt(20, 30) {
		t.Error("Crop should share pixels with the source")
	}
}

func TestCropFaceClipsToBounds(t *testing.T) {
	p := NewProcessor()
	gray := p.Grayscale(createTestImage(100, 100))

	crop, err := p.CropFace(gray, types.Box{X: 60, Y: 60, Width: 80, Height: 80})
	if err != nil {
		t.Fatalf("CropFace failed: %v", err)
	}

	if crop.Bounds() != image.Rect(60, 60, 100, 100) {
		t.Errorf("Expected clipped crop, got %v", crop.Bounds())
	}

	if _, err := p.CropFace(gray, types.Box{X: 200, Y: 200, Width: 10, Height: 10}); err == nil {
		t.Error("Expected error for a box outside the image")
	}
}

func TestSaveAndLoadImage(t *testing.T) {
	p := NewProcessor()
	img := createTestImage(32, 32)
	dir := t.TempDir()

	for _, format := range []string{"png", "jpg", "webp"} {
		path := filepath.Join(dir, "out."+format)
		if err := p.SaveImage(img, path, format, 90, false); err != nil {
			t.Fatalf("SaveImage(%s) failed: %v", format, err)
		}

		loaded, err := p.LoadImage(path)
		if err != nil {
			t.Fatalf("LoadImage(%s) failed: %v", format, err)
		}

		if loaded.Bounds().Dx() != 32 || loaded.Bounds().Dy() != 32 {
			t.Errorf("%s: expected 32x32, got %v", format, loaded.Bounds())
		}
	}
}

func TestLoadImageUnknownFormat(t *testing.T) {
	p := NewProcessor()
	path := filepath.Join(t.TempDir(), "garbage.jpg")
	if err := os.WriteFile(path, []byte("not an image"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := p.LoadImage(path); err == nil {
		t.Error("Expected error for garbage input")
	}
}
