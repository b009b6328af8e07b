package vision

import (
	"go/build"
	"image"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

const cascadeFile = "haarcascade_frontalface_default.xml"

// cascadePath finds the frontal face cascade. gocv ships one in its data
// directory, so the module cache copy is found whenever this package builds.
func cascadePath(t *testing.T) string {
	t.Helper()

	candidates := []string{filepath.Join("testdata", cascadeFile)}
	if env := os.Getenv("FACE_CASCADE"); env != "" {
		candidates = append([]string{env}, candidates...)
	}

	for _, cache := range moduleCaches() {
		matches, _ := filepath.Glob(filepath.Join(cache, "gocv.io", "x", "gocv@*", "data", cascadeFile))
		sort.Sort(sort.Reverse(sort.StringSlice(matches)))
		candidates = append(candidates, matches...)
	}

	candidates = append(candidates,
		filepath.Join("/usr/share/opencv4/haarcascades", cascadeFile),
		filepath.Join("/usr/local/share/opencv4/haarcascades", cascadeFile),
	)

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	t.Skipf("%s not found in %v", cascadeFile, candidates)
	return ""
}

func moduleCaches() []string {
	if env := os.Getenv("GOMODCACHE"); env != "" {
		return []string{env}
	}
	var caches []string
	for _, gopath := range filepath.SplitList(build.Default.GOPATH) {
		caches = append(caches, filepath.Join(gopath, "pkg", "mod"))
	}
	return caches
}

func TestNewFaceLocatorMissingFile(t *testing.T) {
	_, err := NewFaceLocator(filepath.Join(t.TempDir(), "missing.xml"), DefaultLocatorParams())

	if err == nil {
		t.Fatal("Expected error for missing cascade")
	}

	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Expected file-not-found error, got %v", err)
	}
}

func TestNewFaceLocatorCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.xml")
	if err := os.WriteFile(path, []byte("<opencv_storage></opencv_storage>"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := NewFaceLocator(path, DefaultLocatorParams())

	if !errors.Is(err, ErrCascadeInvalid) {
		t.Errorf("Expected ErrCascadeInvalid, got %v", err)
	}
}

func TestDefaultLocatorParams(t *testing.T) {
	p := DefaultLocatorParams()

	if p.ScaleFactor != 1.1 {
		t.Errorf("Expected scale factor 1.1, got %f", p.ScaleFactor)
	}

	if p.MinNeighbors != 5 {
		t.Errorf("Expected 5 min neighbors, got %d", p.MinNeighbors)
	}

	if p.MinSize != image.Pt(80, 80) {
		t.Errorf("Expected min size 80x80, got %v", p.MinSize)
	}
}

func TestFilterMinSize(t *testing.T) {
	rects := []image.Rectangle{
		image.Rect(0, 0, 100, 100),
		image.Rect(10, 10, 50, 200),
		image.Rect(5, 5, 85, 85),
	}

	boxes := FilterMinSize(rects, image.Pt(80, 80))

	if len(boxes) != 2 {
		t.Fatalf("Expected 2 boxes, got %d", len(boxes))
	}

	for i, b := range boxes {
		if b.Width < 80 || b.Height < 80 {
			t.Errorf("Box %d is %dx%d, below minimum", i, b.Width, b.Height)
		}
	}
}

func TestDetectBlankImage(t *testing.T) {
	locator, err := NewFaceLocator(cascadePath(t), DefaultLocatorParams())
	if err != nil {
		t.Fatalf("NewFaceLocator failed: %v", err)
	}
	defer locator.Close()

	gray := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 480, 640, gocv.MatTypeCV8UC1)
	defer gray.Close()

	if boxes := locator.Detect(gray); len(boxes) != 0 {
		t.Errorf("Expected no faces in a blank image, got %d", len(boxes))
	}

	color := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 480, 640, gocv.MatTypeCV8UC3)
	defer color.Close()

	if boxes := locator.Detect(color); len(boxes) != 0 {
		t.Errorf("Expected no faces in a blank color image, got %d", len(boxes))
	}

	bgra := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 480, 640, gocv.MatTypeCV8UC4)
	defer bgra.Close()

	if boxes := locator.Detect(bgra); len(boxes) != 0 {
		t.Errorf("Expected no faces in a blank BGRA image, got %d", len(boxes))
	}
}

func TestDetectEmptyMat(t *testing.T) {
	locator, err := NewFaceLocator(cascadePath(t), DefaultLocatorParams())
	if err != nil {
		t.Fatalf("NewFaceLocator failed: %v", err)
	}
	defer locator.Close()

	empty := gocv.NewMat()
	defer empty.Close()

	if boxes := locator.Detect(empty); boxes != nil {
		t.Errorf("Expected nil for an empty mat, got %v", boxes)
	}
}

func TestDetectImage(t *testing.T) {
	locator, err := NewFaceLocator(cascadePath(t), DefaultLocatorParams())
	if err != nil {
		t.Fatalf("NewFaceLocator failed: %v", err)
	}
	defer locator.Close()

	boxes, err := locator.DetectImage(image.NewRGBA(image.Rect(0, 0, 320, 240)))
	if err != nil {
		t.Fatalf("DetectImage failed: %v", err)
	}

	if len(boxes) != 0 {
		t.Errorf("Expected no faces, got %d", len(boxes))
	}
}
