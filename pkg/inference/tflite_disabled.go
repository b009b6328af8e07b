//go:build !tflite

package inference

import (
	"github.com/pkg/errors"

	"github.com/menta2k/emotion-analyzer/pkg/emotion"
)

func openTFLite(path string, _ emotion.InputSpec) (emotion.Model, error) {
	return nil, errors.Wrapf(emotion.ErrRuntimeUnavailable, "%s needs a binary built with -tags tflite", path)
}
