package emotion

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"
)

// Metadata describes a trained model: its tensor shapes and the class order
// of its output vector. It is stored as JSON next to the model file.
type Metadata struct {
	InputShape  []int64  `json:"input_shape"`
	OutputShape []int64  `json:"output_shape"`
	Classes     []string `json:"classes"`
	ImageSize   int      `json:"image_size"`
}

// MetadataPath returns the sidecar path used when none is configured
func MetadataPath(modelPath string) string {
	return modelPath + ".json"
}

// LoadMetadata reads a model metadata file
func LoadMetadata(path string) (*Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read model metadata")
	}

	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, errors.Wrapf(err, "failed to parse model metadata %s", path)
	}

	return &meta, nil
}

// Verify checks the metadata against the configured labels and input spec
func (m *Metadata) Verify(labels []string, spec InputSpec) error {
	if len(m.Classes) > 0 {
		if len(m.Classes) != len(labels) {
			return errors.Wrapf(ErrLabelMismatch, "model has %d classes, configured %d labels", len(m.Classes), len(labels))
		}
		for i := range labels {
			if m.Classes[i] != labels[i] {
				return errors.Wrapf(ErrLabelMismatch, "class %d is %q in model, %q in config", i, m.Classes[i], labels[i])
			}
		}
	}

	if n := len(m.OutputShape); n > 0 {
		if last := m.OutputShape[n-1]; last > 0 && int(last) != len(labels) {
			return errors.Wrapf(ErrLabelMismatch, "model outputs %d scores, configured %d labels", last, len(labels))
		}
	}

	if m.ImageSize > 0 && (m.ImageSize != spec.Width || m.ImageSize != spec.Height) {
		return errors.Errorf("model image size %d does not match input %dx%d", m.ImageSize, spec.Width, spec.Height)
	}

	if len(m.InputShape) > 0 && !inputShapeMatches(m.InputShape, spec) {
		return errors.Errorf("model input shape %v does not match %s %v", m.InputShape, spec.InputLayout(), spec.Shape())
	}

	return nil
}

// inputShapeMatches checks shape against the spec in the spec's layout.
// Non-positive dims are wildcards.
func inputShapeMatches(shape []int64, spec InputSpec) bool {
	dim := func(v int64, want int) bool { return v <= 0 || int(v) == want }

	switch len(shape) {
	case 2:
		return dim(shape[0], spec.Height) && dim(shape[1], spec.Width)
	case 3:
		return dim(shape[0], spec.Height) && dim(shape[1], spec.Width) && dim(shape[2], spec.Channels)
	case 4:
		want := spec.Shape()
		for i := 1; i < 4; i++ {
			if !dim(shape[i], want[i]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}
