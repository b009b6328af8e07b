package emotion

import (
	"github.com/pkg/errors"
)

var (
	// ErrRuntimeUnavailable is returned when no inference runtime can serve a model.
	ErrRuntimeUnavailable = errors.New("inference runtime unavailable")
	// ErrUnsupportedModel is returned for model files no backend understands.
	ErrUnsupportedModel = errors.New("unsupported model format")
	// ErrLabelMismatch is returned when model metadata disagrees with the configured labels.
	ErrLabelMismatch = errors.New("model labels do not match configured labels")
	// ErrBadOutput is returned when a model output cannot be turned into a prediction.
	ErrBadOutput = errors.New("invalid model output")
)

// Model runs a forward pass over a preprocessed tensor and returns one
// score per emotion class.
type Model interface {
	Predict(input Tensor) ([]float32, error)
	Close() error
}

// Opener loads a model file for the given input spec
type Opener func(path string, spec InputSpec) (Model, error)
