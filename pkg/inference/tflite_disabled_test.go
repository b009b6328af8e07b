//go:build !tflite

package inference

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"

	"github.com/menta2k/emotion-analyzer/pkg/emotion"
)

func TestOpenTFLiteWithoutRuntime(t *testing.T) {
	path := filepath.Join(t.TempDir(), "em_recog.tflite")
	if err := os.WriteFile(path, []byte("tflite"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := Open(path, spec)
	if !errors.Is(err, emotion.ErrRuntimeUnavailable) {
		t.Errorf("Expected ErrRuntimeUnavailable, got %v", err)
	}
}
