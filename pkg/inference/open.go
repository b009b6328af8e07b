// Package inference provides the model backends behind emotion.Model.
//
// OpenCV's DNN module (via gocv) serves ONNX, TensorFlow, Caffe, Torch and
// Darknet models. TensorFlow Lite models are served by go-tflite when the
// binary is built with the "tflite" tag.
package inference

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/menta2k/emotion-analyzer/pkg/emotion"
)

// Backend names a model runtime
type Backend string

const (
	BackendDNN    Backend = "dnn"
	BackendTFLite Backend = "tflite"
)

var dnnExtensions = map[string]bool{
	".onnx":       true,
	".pb":         true,
	".caffemodel": true,
	".t7":         true,
	".net":        true,
	".weights":    true,
}

// BackendFor picks the backend for a model file by its extension
func BackendFor(path string) (Backend, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case ext == ".tflite":
		return BackendTFLite, nil
	case dnnExtensions[ext]:
		return BackendDNN, nil
	default:
		return "", errors.Wrapf(emotion.ErrUnsupportedModel, "%q", ext)
	}
}

// Open loads a model file with the backend matching its extension.
// It satisfies emotion.Opener.
func Open(path string, spec emotion.InputSpec) (emotion.Model, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, errors.Wrap(err, "emotion model")
	}

	backend, err := BackendFor(path)
	if err != nil {
		return nil, err
	}

	switch backend {
	case BackendTFLite:
		return openTFLite(path, spec)
	default:
		m, err := OpenDNN(path, spec)
		if err != nil {
			return nil, err
		}
		return m, nil
	}
}

// checkInput rejects tensors that do not match the spec a model was opened with
func checkInput(t emotion.Tensor, spec emotion.InputSpec) error {
	if t.Width() != spec.Width || t.Height() != spec.Height || t.Channels() != spec.Channels {
		return errors.Errorf("input tensor %dx%dx%d, model expects %dx%dx%d",
			t.Height(), t.Width(), t.Channels(), spec.Height, spec.Width, spec.Channels)
	}
	if len(t.Data) != spec.Width*spec.Height*spec.Channels {
		return errors.Errorf("input tensor has %d values, expected %d", len(t.Data), spec.Width*spec.Height*spec.Channels)
	}
	return nil
}
