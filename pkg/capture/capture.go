// Package capture wraps the webcam and the preview window.
package capture

import (
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// ErrDeviceUnavailable is returned when the capture device cannot be opened
var ErrDeviceUnavailable = errors.New("capture device unavailable")

// Webcam reads frames from a local camera
type Webcam struct {
	cap *gocv.VideoCapture
}

// OpenWebcam opens the camera at index
func OpenWebcam(index int) (*Webcam, error) {
	vc, err := gocv.OpenVideoCapture(index)
	if err != nil {
		return nil, errors.Wrapf(ErrDeviceUnavailable, "device %d: %v", index, err)
	}
	if !vc.IsOpened() {
		_ = vc.Close()
		return nil, errors.Wrapf(ErrDeviceUnavailable, "device %d", index)
	}
	return &Webcam{cap: vc}, nil
}

// Read grabs the next frame into img. It returns false when no frame is available.
func (w *Webcam) Read(img *gocv.Mat) bool {
	if ok := w.cap.Read(img); !ok {
		return false
	}
	return !img.Empty()
}

// Close releases the device
func (w *Webcam) Close() error {
	return w.cap.Close()
}

// Window is an on-screen preview window
type Window struct {
	win *gocv.Window
}

// NewWindow opens a preview window titled name
func NewWindow(name string) *Window {
	return &Window{win: gocv.NewWindow(name)}
}

// Show displays img
func (w *Window) Show(img gocv.Mat) {
	w.win.IMShow(img)
}

// WaitKey pumps window events for up to delay ms and returns the pressed key, or -1
func (w *Window) WaitKey(delay int) int {
	return w.win.WaitKey(delay)
}

// Close destroys the window
func (w *Window) Close() error {
	return w.win.Close()
}
