package app

import (
	"io"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/menta2k/emotion-analyzer/pkg/emotion"
)

// Components constructs the collaborators of a Loop
type Components struct {
	Detector   func() (Detector, error)
	Classifier func() emotion.LoadResult
	Source     func() (FrameSource, error)
	Display    func() Display
}

// Initialize builds every component in order. Failing to build the detector
// or open the source aborts: whatever was already built is released and the
// cause returned. A degraded classifier is not a failure.
func Initialize(c Components, opts Options, logger logrus.FieldLogger) (*Loop, error) {
	logger.WithField("state", StateInitializing.String()).Debug("Loop state changed")

	var built []io.Closer
	abort := func(err error) (*Loop, error) {
		logger.WithError(err).Error("Initialization failed")
		logger.WithField("state", StateShuttingDown.String()).Debug("Loop state changed")
		for i := len(built) - 1; i >= 0; i-- {
			_ = built[i].Close()
		}
		return nil, err
	}

	detector, err := c.Detector()
	if err != nil {
		return abort(errors.Wrap(err, "failed to create face locator"))
	}
	if closer, ok := detector.(io.Closer); ok {
		built = append(built, closer)
	}

	result := c.Classifier()
	built = append(built, result.Classifier)
	if result.Degraded() {
		logger.WithError(result.Cause).Warn("Emotion predictions are synthetic")
	}

	source, err := c.Source()
	if err != nil {
		return abort(errors.Wrap(err, "failed to open capture device"))
	}

	return New(source, c.Display(), detector, result.Classifier, opts, logger), nil
}
