// Package app runs the live capture, detect, classify and display loop.
package app

import (
	"context"
	"image"
	"io"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"github.com/menta2k/emotion-analyzer/pkg/emotion"
	"github.com/menta2k/emotion-analyzer/pkg/render"
	"github.com/menta2k/emotion-analyzer/pkg/types"
)

// ErrNotRunnable is returned by Run when the loop already ran
var ErrNotRunnable = errors.New("loop is not in the initializing state")

// State is a lifecycle state of the loop
type State int

const (
	StateInitializing State = iota
	StateRunning
	StateShuttingDown
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateRunning:
		return "running"
	case StateShuttingDown:
		return "shutting_down"
	default:
		return "unknown"
	}
}

// FrameSource yields color frames. Read returns false at end of stream.
type FrameSource interface {
	Read(img *gocv.Mat) bool
	Close() error
}

// Display presents annotated frames and reports key presses
type Display interface {
	Show(img gocv.Mat)
	WaitKey(delay int) int
	Close() error
}

// Detector finds faces in a grayscale frame
type Detector interface {
	Detect(img gocv.Mat) []types.Box
}

// Options tunes the loop
type Options struct {
	Mirror    bool
	QuitKey   rune
	WaitDelay int
	Style     render.Style
}

// DefaultOptions returns the options of the live display
func DefaultOptions() Options {
	return Options{
		Mirror:    true,
		QuitKey:   'q',
		WaitDelay: 1,
		Style:     render.DefaultStyle(),
	}
}

// Loop owns the capture source, display and models for its lifetime.
// It is single threaded; Run blocks until the loop ends.
type Loop struct {
	source     FrameSource
	display    Display
	detector   Detector
	classifier emotion.Classifier
	opts       Options
	logger     logrus.FieldLogger

	state  State
	frames int
}

// New creates a loop in the initializing state
func New(source FrameSource, display Display, detector Detector, classifier emotion.Classifier, opts Options, logger logrus.FieldLogger) *Loop {
	return &Loop{
		source:     source,
		display:    display,
		detector:   detector,
		classifier: classifier,
		opts:       opts,
		logger:     logger,
		state:      StateInitializing,
	}
}

// State returns the current lifecycle state
func (l *Loop) State() State {
	return l.state
}

// Frames returns the number of frames processed so far
func (l *Loop) Frames() int {
	return l.frames
}

func (l *Loop) setState(s State) {
	l.logger.WithField("state", s.String()).Debug("Loop state changed")
	l.state = s
}

// Run processes frames until the source runs dry, the quit key is pressed
// or ctx is cancelled. Resources are released before it returns.
func (l *Loop) Run(ctx context.Context) error {
	if l.state != StateInitializing {
		return ErrNotRunnable
	}

	l.setState(StateRunning)
	defer l.shutdown()

	frame := gocv.NewMat()
	defer frame.Close()

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("Interrupted, stopping")
			return nil
		default:
		}

		if ok := l.source.Read(&frame); !ok || frame.Empty() {
			l.logger.Warn("Failed to grab frame")
			return nil
		}

		faces := l.ProcessFrame(&frame)
		l.logger.WithField("faces", len(faces)).Debug("Frame processed")

		l.display.Show(frame)

		if key := l.display.WaitKey(l.opts.WaitDelay); key >= 0 && rune(key&0xFF) == l.opts.QuitKey {
			l.logger.Info("Quit key pressed")
			return nil
		}
	}
}

// ProcessFrame mirrors frame (when enabled), classifies every face found in
// it and draws the results onto it in place.
func (l *Loop) ProcessFrame(frame *gocv.Mat) []types.FaceEmotion {
	l.frames++

	if l.opts.Mirror {
		gocv.Flip(*frame, frame, 1)
	}

	gray := gocv.NewMat()
	defer gray.Close()
	if frame.Channels() == 4 {
		gocv.CvtColor(*frame, &gray, gocv.ColorBGRAToGray)
	} else if frame.Channels() == 3 {
		gocv.CvtColor(*frame, &gray, gocv.ColorBGRToGray)
	} else {
		frame.CopyTo(&gray)
	}

	boxes := l.detector.Detect(gray)
	faces := make([]types.FaceEmotion, 0, len(boxes))
	for _, box := range boxes {
		faces = append(faces, types.FaceEmotion{
			Box:        box,
			Prediction: l.classify(gray, box),
		})
	}

	render.DrawMat(frame, faces, l.opts.Style)
	return faces
}

func (l *Loop) classify(gray gocv.Mat, box types.Box) types.Prediction {
	rect := box.Rect().Intersect(image.Rect(0, 0, gray.Cols(), gray.Rows()))
	if rect.Empty() {
		l.logger.WithField("box", box).Error("Face box outside frame")
		return types.Failed()
	}

	// regions are views into gray and cannot be converted directly
	region := gray.Region(rect)
	crop := region.Clone()
	region.Close()
	defer crop.Close()

	img, err := crop.ToImage()
	if err != nil {
		l.logger.WithError(err).Error("Failed to convert face crop")
		return types.Failed()
	}

	return l.classifier.Predict(img)
}

func (l *Loop) shutdown() {
	l.setState(StateShuttingDown)

	closers := []struct {
		name string
		c    io.Closer
	}{
		{"capture", l.source},
		{"display", l.display},
		{"classifier", l.classifier},
	}
	if c, ok := l.detector.(io.Closer); ok {
		closers = append(closers, struct {
			name string
			c    io.Closer
		}{"detector", c})
	}

	for _, r := range closers {
		if err := r.c.Close(); err != nil {
			l.logger.WithError(err).WithField("resource", r.name).Warn("Failed to release resource")
		}
	}

	l.logger.WithField("frames", l.frames).Info("Loop stopped")
}
