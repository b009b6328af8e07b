package vision

import (
	"image"
	"os"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"github.com/menta2k/emotion-analyzer/pkg/types"
)

// ErrCascadeInvalid is returned when a cascade file exists but cannot be parsed
var ErrCascadeInvalid = errors.New("failed to load face cascade")

// cascadeScaleImage mirrors OpenCV's CASCADE_SCALE_IMAGE flag
const cascadeScaleImage = 2

// LocatorParams holds the detection tuning for FaceLocator
type LocatorParams struct {
	// ScaleFactor is the geometric step between searched scales (> 1)
	ScaleFactor float64
	// MinNeighbors is how many overlapping candidates must agree on a face
	MinNeighbors int
	// MinSize is the smallest face reported
	MinSize image.Point
}

// DefaultLocatorParams returns the frontal face tuning used by the live loop
func DefaultLocatorParams() LocatorParams {
	return LocatorParams{
		ScaleFactor:  1.1,
		MinNeighbors: 5,
		MinSize:      image.Pt(80, 80),
	}
}

// FaceLocator finds faces with a Haar cascade classifier
type FaceLocator struct {
	classifier gocv.CascadeClassifier
	params     LocatorParams
	path       string
}

// NewFaceLocator loads the cascade at path. A missing file yields an error
// matching fs.ErrNotExist; an unparsable one yields ErrCascadeInvalid.
func NewFaceLocator(path string, params LocatorParams) (*FaceLocator, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, errors.Wrap(err, "face cascade file not found")
	}

	classifier := gocv.NewCascadeClassifier()
	if !classifier.Load(path) {
		_ = classifier.Close()
		return nil, errors.Wrapf(ErrCascadeInvalid, "%s: check file integrity", path)
	}

	return &FaceLocator{
		classifier: classifier,
		params:     params,
		path:       path,
	}, nil
}

// Detect returns the faces in img. Color images (BGR or BGRA) are converted
// to grayscale first. Boxes are not ordered.
func (l *FaceLocator) Detect(img gocv.Mat) []types.Box {
	if img.Empty() {
		return nil
	}

	src := img
	switch img.Channels() {
	case 3, 4:
		gray := gocv.NewMat()
		defer gray.Close()
		code := gocv.ColorBGRToGray
		if img.Channels() == 4 {
			code = gocv.ColorBGRAToGray
		}
		gocv.CvtColor(img, &gray, code)
		src = gray
	}

	rects := l.classifier.DetectMultiScaleWithParams(
		src,
		l.params.ScaleFactor, l.params.MinNeighbors, cascadeScaleImage,
		l.params.MinSize, image.Point{},
	)

	return FilterMinSize(rects, l.params.MinSize)
}

// DetectImage runs Detect on a Go image
func (l *FaceLocator) DetectImage(img image.Image) ([]types.Box, error) {
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, errors.Wrap(err, "failed to convert image")
	}
	defer mat.Close()

	return l.Detect(mat), nil
}

// Close releases the cascade classifier
func (l *FaceLocator) Close() error {
	return l.classifier.Close()
}

// FilterMinSize converts rectangles to boxes, dropping any smaller than min
func FilterMinSize(rects []image.Rectangle, min image.Point) []types.Box {
	boxes := make([]types.Box, 0, len(rects))
	for _, r := range rects {
		box := types.BoxFromRect(r)
		if box.Width < min.X || box.Height < min.Y {
			continue
		}
		boxes = append(boxes, box)
	}
	return boxes
}
