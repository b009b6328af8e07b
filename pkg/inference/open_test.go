package inference

import (
	"image"
	"io/fs"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"github.com/menta2k/emotion-analyzer/pkg/emotion"
)

var spec = emotion.InputSpec{Width: 48, Height: 48, Channels: 1}

func TestBackendFor(t *testing.T) {
	cases := map[string]Backend{
		"models/em_recog.onnx":   BackendDNN,
		"models/EM_RECOG.ONNX":   BackendDNN,
		"models/frozen.pb":       BackendDNN,
		"models/em_recog.tflite": BackendTFLite,
	}

	for path, want := range cases {
		got, err := BackendFor(path)
		if err != nil {
			t.Errorf("BackendFor(%s) failed: %v", path, err)
			continue
		}
		if got != want {
			t.Errorf("BackendFor(%s) = %s, expected %s", path, got, want)
		}
	}
}

func TestBackendForKerasModel(t *testing.T) {
	_, err := BackendFor("models/em_recog.h5")
	if !errors.Is(err, emotion.ErrUnsupportedModel) {
		t.Errorf("Expected ErrUnsupportedModel for .h5, got %v", err)
	}
}

func TestOpenMissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.onnx"), spec)
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Expected not-exist error, got %v", err)
	}
}

func TestCheckInput(t *testing.T) {
	good := emotion.Tensor{Shape: [4]int{1, 48, 48, 1}, Data: make([]float32, 48*48)}
	if err := checkInput(good, spec); err != nil {
		t.Errorf("Valid tensor rejected: %v", err)
	}

	bad := emotion.Tensor{Shape: [4]int{1, 64, 64, 1}, Data: make([]float32, 64*64)}
	if err := checkInput(bad, spec); err == nil {
		t.Error("Expected mismatched tensor to be rejected")
	}
}

func TestDNNBlobLayout(t *testing.T) {
	input := emotion.NewPreprocessor(emotion.InputSpec{Width: 48, Height: 48, Channels: 1}).
		Preprocess(image.NewGray(image.Rect(0, 0, 64, 64)))

	nhwc := emotion.InputSpec{Width: 48, Height: 48, Channels: 1, Layout: emotion.LayoutNHWC}
	blob := gocv.NewMatWithSizes(nhwc.Shape(), gocv.MatTypeCV32F)
	defer blob.Close()

	sizes := blob.Size()
	if len(sizes) != 4 || sizes[1] != 48 || sizes[2] != 48 || sizes[3] != 1 {
		t.Fatalf("Expected a 1x48x48x1 blob, got %v", sizes)
	}

	dst, err := blob.DataPtrFloat32()
	if err != nil {
		t.Fatalf("DataPtrFloat32 failed: %v", err)
	}
	if n := copy(dst, input.Reorder(nhwc.InputLayout())); n != 48*48 {
		t.Errorf("Expected %d values copied, got %d", 48*48, n)
	}
}
