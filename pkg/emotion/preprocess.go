package emotion

import (
	"image"

	"github.com/disintegration/imaging"
)

// Layout is the dimension order of a model's 4D input
type Layout string

const (
	// LayoutNHWC is channels-last, as exported from Keras and TensorFlow
	LayoutNHWC Layout = "nhwc"
	// LayoutNCHW is channels-first, as exported from PyTorch and Caffe
	LayoutNCHW Layout = "nchw"
)

// InputSpec describes the input a model expects. An empty Layout means NHWC.
type InputSpec struct {
	Width    int
	Height   int
	Channels int
	Layout   Layout
}

// InputLayout returns the layout, defaulting to NHWC
func (s InputSpec) InputLayout() Layout {
	if s.Layout == LayoutNCHW {
		return LayoutNCHW
	}
	return LayoutNHWC
}

// Shape returns the 4D input shape in the spec's layout
func (s InputSpec) Shape() []int {
	if s.InputLayout() == LayoutNCHW {
		return []int{1, s.Channels, s.Height, s.Width}
	}
	return []int{1, s.Height, s.Width, s.Channels}
}

// Tensor is a single-sample input in NHWC layout. Backends needing another
// layout convert it with Reorder.
type Tensor struct {
	Shape [4]int
	Data  []float32
}

// Height returns the spatial height of the tensor
func (t Tensor) Height() int { return t.Shape[1] }

// Width returns the spatial width of the tensor
func (t Tensor) Width() int { return t.Shape[2] }

// Channels returns the channel count of the tensor
func (t Tensor) Channels() int { return t.Shape[3] }

// Preprocessor turns face crops of any size into model input tensors
type Preprocessor struct {
	spec InputSpec
}

// NewPreprocessor creates a Preprocessor for the given input spec
func NewPreprocessor(spec InputSpec) *Preprocessor {
	if spec.Channels <= 0 {
		spec.Channels = 1
	}
	return &Preprocessor{spec: spec}
}

// Preprocess resizes the crop to the model input size with a box (area
// averaging) filter, converts it to grayscale and scales intensities into
// [0,1]. The result has shape (1, H, W, 1).
func (p *Preprocessor) Preprocess(face image.Image) Tensor {
	w, h := p.spec.Width, p.spec.Height

	gray := imaging.Grayscale(face)
	resized := imaging.Resize(gray, w, h, imaging.Box)

	data := make([]float32, w*h)
	for y := 0; y < h; y++ {
		row := resized.Pix[y*resized.Stride:]
		for x := 0; x < w; x++ {
			// R == G == B after Grayscale
			data[y*w+x] = float32(row[x*4]) / 255.0
		}
	}

	return Tensor{
		Shape: [4]int{1, h, w, 1},
		Data:  data,
	}
}

// Reorder returns the tensor values in the given layout
func (t Tensor) Reorder(l Layout) []float32 {
	h, w, c := t.Height(), t.Width(), t.Channels()
	if l != LayoutNCHW || c == 1 {
		return t.Data
	}

	out := make([]float32, len(t.Data))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			for ch := 0; ch < c; ch++ {
				out[ch*h*w+y*w+x] = t.Data[(y*w+x)*c+ch]
			}
		}
	}
	return out
}
