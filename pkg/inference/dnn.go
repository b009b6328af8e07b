package inference

import (
	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"github.com/menta2k/emotion-analyzer/pkg/emotion"
)

// DNNModel runs a model through OpenCV's DNN module
type DNNModel struct {
	net  gocv.Net
	spec emotion.InputSpec
}

// OpenDNN loads a model readable by gocv.ReadNet
func OpenDNN(path string, spec emotion.InputSpec) (*DNNModel, error) {
	net := gocv.ReadNet(path, "")
	if net.Empty() {
		_ = net.Close()
		return nil, errors.Errorf("failed to read network from %s", path)
	}

	return &DNNModel{net: net, spec: spec}, nil
}

// Predict feeds the tensor as a 4D blob in the layout the model was
// opened with and returns the flattened output
func (m *DNNModel) Predict(input emotion.Tensor) ([]float32, error) {
	if err := checkInput(input, m.spec); err != nil {
		return nil, err
	}

	blob := gocv.NewMatWithSizes(m.spec.Shape(), gocv.MatTypeCV32F)
	defer blob.Close()

	dst, err := blob.DataPtrFloat32()
	if err != nil {
		return nil, errors.Wrap(err, "failed to build input blob")
	}
	if n := copy(dst, input.Reorder(m.spec.InputLayout())); n != len(input.Data) {
		return nil, errors.Errorf("input blob holds %d values, tensor has %d", len(dst), len(input.Data))
	}

	m.net.SetInput(blob, "")
	out := m.net.Forward("")
	defer out.Close()

	if out.Empty() {
		return nil, errors.Wrap(emotion.ErrBadOutput, "empty forward result")
	}

	data, err := out.DataPtrFloat32()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read forward result")
	}

	// data aliases out, which is closed on return
	return append([]float32(nil), data...), nil
}

// Close releases the network
func (m *DNNModel) Close() error {
	return m.net.Close()
}
