//go:build tflite

package inference

import (
	"github.com/mattn/go-tflite"
	"github.com/pkg/errors"

	"github.com/menta2k/emotion-analyzer/pkg/emotion"
)

// TFLiteModel runs a TensorFlow Lite model
type TFLiteModel struct {
	model   *tflite.Model
	options *tflite.InterpreterOptions
	interp  *tflite.Interpreter
	spec    emotion.InputSpec
}

func openTFLite(path string, spec emotion.InputSpec) (emotion.Model, error) {
	model := tflite.NewModelFromFile(path)
	if model == nil {
		return nil, errors.Errorf("failed to load tflite model %s", path)
	}

	options := tflite.NewInterpreterOptions()
	options.SetNumThread(1)

	interp := tflite.NewInterpreter(model, options)
	if interp == nil {
		options.Delete()
		model.Delete()
		return nil, errors.Errorf("failed to create tflite interpreter for %s", path)
	}

	m := &TFLiteModel{model: model, options: options, interp: interp, spec: spec}

	if status := interp.AllocateTensors(); status != tflite.OK {
		_ = m.Close()
		return nil, errors.Errorf("failed to allocate tflite tensors: status %v", status)
	}

	in := interp.GetInputTensor(0)
	if in == nil || in.Type() != tflite.Float32 {
		_ = m.Close()
		return nil, errors.Wrap(emotion.ErrUnsupportedModel, "tflite input must be float32")
	}

	return m, nil
}

// Predict copies the tensor into the interpreter input and invokes it
func (m *TFLiteModel) Predict(input emotion.Tensor) ([]float32, error) {
	if err := checkInput(input, m.spec); err != nil {
		return nil, err
	}

	in := m.interp.GetInputTensor(0)
	dst := in.Float32s()
	if len(dst) != len(input.Data) {
		return nil, errors.Errorf("tflite input holds %d values, got %d", len(dst), len(input.Data))
	}
	copy(dst, input.Data)

	if status := m.interp.Invoke(); status != tflite.OK {
		return nil, errors.Errorf("tflite invoke failed: status %v", status)
	}

	out := m.interp.GetOutputTensor(0)
	if out == nil {
		return nil, errors.Wrap(emotion.ErrBadOutput, "missing tflite output tensor")
	}

	return append([]float32(nil), out.Float32s()...), nil
}

// Close releases the interpreter, its options and the model
func (m *TFLiteModel) Close() error {
	m.interp.Delete()
	m.options.Delete()
	m.model.Delete()
	return nil
}
