package emotionanalyzer

import (
	"image"
	"image/color"
	"io/fs"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/menta2k/emotion-analyzer/pkg/emotion"
	"github.com/menta2k/emotion-analyzer/pkg/types"
	"github.com/menta2k/emotion-analyzer/pkg/vision"
)

// createTestImage creates a dark image with a bright square where the fake
// detector reports a face
func createTestImage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if x >= 20 && x < 70 && y >= 30 && y < 80 {
				img.Set(x, y, color.RGBA{255, 255, 255, 255})
			} else {
				img.Set(x, y, color.RGBA{64, 64, 64, 255})
			}
		}
	}

	return img
}

type fakeDetector struct {
	boxes  []types.Box
	err    error
	closed bool
}

func (d *fakeDetector) DetectImage(img image.Image) ([]types.Box, error) {
	return d.boxes, d.err
}

func (d *fakeDetector) Close() error {
	d.closed = true
	return nil
}

type fakeClassifier struct {
	crops  []image.Image
	closed bool
}

func (c *fakeClassifier) Predict(face image.Image) types.Prediction {
	c.crops = append(c.crops, face)
	return types.Prediction{Label: "Happy", Confidence: 0.9, Status: types.StatusSuccess}
}

func (c *fakeClassifier) Labels() []string { return emotion.DefaultLabels }

func (c *fakeClassifier) Close() error {
	c.closed = true
	return nil
}

func newTestAnalyzer(boxes ...types.Box) (*EmotionAnalyzer, *fakeDetector, *fakeClassifier) {
	logger, _ := test.NewNullLogger()
	d := &fakeDetector{boxes: boxes}
	c := &fakeClassifier{}
	return New(d, c, WithLogger(logger)), d, c
}

func TestAnalyzeImage(t *testing.T) {
	ea, _, classifier := newTestAnalyzer(
		types.Box{X: 20, Y: 30, Width: 50, Height: 50},
		types.Box{X: 500, Y: 500, Width: 50, Height: 50},
	)

	result, err := ea.AnalyzeImage(createTestImage(200, 100))
	if err != nil {
		t.Fatalf("AnalyzeImage failed: %v", err)
	}

	if result.Info.Width != 200 || result.Info.Height != 100 || result.Info.AspectRatio != 2 {
		t.Errorf("Unexpected image info %+v", result.Info)
	}

	if len(result.Faces) != 2 {
		t.Fatalf("Expected 2 faces, got %d", len(result.Faces))
	}

	if len(classifier.crops) != 1 {
		t.Fatalf("Expected 1 classified crop, got %d", len(classifier.crops))
	}

	crop, ok := classifier.crops[0].(*image.Gray)
	if !ok {
		t.Fatalf("Expected a grayscale crop, got %T", classifier.crops[0])
	}
	if crop.Bounds().Dx() != 50 || crop.Bounds().Dy() != 50 {
		t.Errorf("Unexpected crop size %v", crop.Bounds())
	}
	if v := crop.GrayAt(crop.Bounds().Min.X, crop.Bounds().Min.Y).Y; v != 255 {
		t.Errorf("Expected bright crop, got %d", v)
	}

	if result.Faces[0].Prediction.Label != "Happy" {
		t.Errorf("Expected Happy, got %s", result.Faces[0].Prediction.Label)
	}

	if result.Faces[1].Prediction.Status != types.StatusInferenceFailed {
		t.Errorf("Expected failure for box outside the image, got %+v", result.Faces[1].Prediction)
	}
}

func TestAnalyzeImageNoFaces(t *testing.T) {
	ea, _, classifier := newTestAnalyzer()

	result, err := ea.AnalyzeImage(createTestImage(100, 100))
	if err != nil {
		t.Fatalf("AnalyzeImage failed: %v", err)
	}

	if len(result.Faces) != 0 || len(classifier.crops) != 0 {
		t.Error("Expected no faces and no predictions")
	}
}

func TestAnalyzeImageDetectorError(t *testing.T) {
	ea, detector, _ := newTestAnalyzer()
	detector.err = errors.New("boom")

	if _, err := ea.AnalyzeImage(createTestImage(100, 100)); err == nil {
		t.Error("Expected detector error to propagate")
	}
}

func TestAnalyzeImageSubImageOffsets(t *testing.T) {
	ea, _, classifier := newTestAnalyzer(types.Box{X: 0, Y: 0, Width: 50, Height: 50})

	full := createTestImage(200, 200).(*image.RGBA)
	sub := full.SubImage(image.Rect(20, 30, 120, 130))

	if _, err := ea.AnalyzeImage(sub); err != nil {
		t.Fatalf("AnalyzeImage failed: %v", err)
	}

	crop := classifier.crops[0].(*image.Gray)
	if v := crop.GrayAt(crop.Bounds().Min.X, crop.Bounds().Min.Y).Y; v != 255 {
		t.Errorf("Expected box to be relative to the sub-image origin, got %d", v)
	}
}

func TestAnnotateImage(t *testing.T) {
	ea, _, _ := newTestAnalyzer()
	img := createTestImage(200, 100)

	faces := []types.FaceEmotion{{
		Box:        types.Box{X: 20, Y: 30, Width: 50, Height: 50},
		Prediction: types.Prediction{Label: "Happy", Confidence: 0.9},
	}}

	out := ea.AnnotateImage(img, faces)

	if c := out.NRGBAAt(20, 50); c != (color.NRGBA{0, 0, 255, 255}) {
		t.Errorf("Expected box edge, got %v", c)
	}

	// source untouched
	if r, _, _, _ := img.At(20, 50).RGBA(); r>>8 != 255 {
		t.Error("AnnotateImage must not modify its input")
	}
}

func TestProcessImageFile(t *testing.T) {
	ea, _, _ := newTestAnalyzer(types.Box{X: 20, Y: 30, Width: 50, Height: 50})
	dir := t.TempDir()

	input := filepath.Join(dir, "in.png")
	if err := ea.SaveImage(createTestImage(120, 100), input, OutputOptions{Format: "png"}); err != nil {
		t.Fatalf("Failed to write input: %v", err)
	}

	output := filepath.Join(dir, "out.jpg")
	result, err := ea.ProcessImageFile(input, output, DefaultOutputOptions())
	if err != nil {
		t.Fatalf("ProcessImageFile failed: %v", err)
	}

	if len(result.Faces) != 1 {
		t.Errorf("Expected 1 face, got %d", len(result.Faces))
	}

	img, err := ea.LoadImage(output)
	if err != nil {
		t.Fatalf("Failed to read output: %v", err)
	}
	if img.Bounds().Dx() != 120 {
		t.Errorf("Unexpected output width %d", img.Bounds().Dx())
	}
}

func TestProcessImageFileMissing(t *testing.T) {
	ea, _, _ := newTestAnalyzer()

	if _, err := ea.ProcessImageFile(filepath.Join(t.TempDir(), "none.jpg"), "out.jpg", DefaultOutputOptions()); err == nil {
		t.Error("Expected error for missing input")
	}
}

func TestLoadMissingCascade(t *testing.T) {
	logger, _ := test.NewNullLogger()
	cfg := emotion.Config{Labels: emotion.DefaultLabels, InputWidth: 48, InputHeight: 48, Channels: 1}

	_, err := Load(filepath.Join(t.TempDir(), "missing.xml"), vision.DefaultLocatorParams(), cfg, logger)
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Expected file-not-found error, got %v", err)
	}
}

func TestClose(t *testing.T) {
	ea, detector, classifier := newTestAnalyzer()

	if err := ea.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if !detector.closed || !classifier.closed {
		t.Error("Expected detector and classifier to be closed")
	}
}

func TestGetVersion(t *testing.T) {
	if GetVersion() != Version {
		t.Errorf("Expected %s, got %s", Version, GetVersion())
	}
}

func BenchmarkAnalyzeImage(b *testing.B) {
	logger, _ := test.NewNullLogger()
	ea := New(&fakeDetector{boxes: []types.Box{{X: 20, Y: 30, Width: 50, Height: 50}}}, &fakeClassifier{}, WithLogger(logger))
	img := createTestImage(640, 480)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = ea.AnalyzeImage(img)
	}
}
