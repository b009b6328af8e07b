package emotion

import (
	"fmt"
	"image"
	"math"
	"math/rand/v2"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/menta2k/emotion-analyzer/pkg/types"
)

// DefaultLabels is the class order of the FER-2013 style models this tool ships with
var DefaultLabels = []string{"Angry", "Disgust", "Fear", "Happy", "Sad", "Surprise", "Neutral"}

// DefaultDummyConfidence is reported for every synthetic prediction
const DefaultDummyConfidence = 0.85

// Classifier predicts the dominant emotion of a face crop.
// Implementations are not safe for concurrent use.
type Classifier interface {
	Predict(face image.Image) types.Prediction
	Labels() []string
	Close() error
}

// Config holds configuration for loading an emotion classifier
type Config struct {
	ModelPath       string
	MetadataPath    string
	RequireMetadata bool
	Labels          []string
	InputWidth      int
	InputHeight     int
	Channels        int
	Layout          Layout
	DummyConfidence float64
}

// InputSpec returns the model input spec described by the config
func (c Config) InputSpec() InputSpec {
	return InputSpec{Width: c.InputWidth, Height: c.InputHeight, Channels: c.Channels, Layout: c.Layout}
}

// Mode tells which classifier variant Load selected
type Mode int

const (
	ModeLoaded Mode = iota
	ModeDegraded
)

func (m Mode) String() string {
	if m == ModeLoaded {
		return "loaded"
	}
	return "degraded"
}

// LoadResult is the outcome of Load. Classifier is never nil.
type LoadResult struct {
	Classifier Classifier
	Mode       Mode
	Cause      error
}

// Degraded reports whether predictions are synthetic
func (r LoadResult) Degraded() bool {
	return r.Mode == ModeDegraded
}

type options struct {
	rng *rand.Rand
}

// Option customizes Load
type Option func(*options)

// WithRand sets the random source used by the stub classifier
func WithRand(r *rand.Rand) Option {
	return func(o *options) { o.rng = r }
}

// Load opens the configured model. It never fails: when the model is
// missing, unreadable, served by an unavailable runtime or inconsistent
// with the configured labels, a stub classifier is returned instead and
// the cause is logged once.
func Load(cfg Config, open Opener, logger logrus.FieldLogger, opts ...Option) LoadResult {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.rng == nil {
		seed := uint64(time.Now().UnixNano())
		o.rng = rand.New(rand.NewPCG(seed, seed>>1))
	}

	labels := append([]string(nil), cfg.Labels...)
	log := logger.WithField("path", cfg.ModelPath)

	degrade := func(cause error) LoadResult {
		log.WithError(cause).Warn("Emotion classifier will operate in dummy mode")
		return LoadResult{
			Classifier: NewStubClassifier(labels, cfg.DummyConfidence, logger, o.rng),
			Mode:       ModeDegraded,
			Cause:      cause,
		}
	}

	if open == nil {
		return degrade(ErrRuntimeUnavailable)
	}

	model, err := open(cfg.ModelPath, cfg.InputSpec())
	if err != nil {
		return degrade(errors.Wrapf(err, "failed to load emotion model %s", cfg.ModelPath))
	}

	if err := checkMetadata(cfg, log); err != nil {
		_ = model.Close()
		return degrade(err)
	}

	log.Info("Emotion model loaded")
	return LoadResult{
		Classifier: NewModelClassifier(model, labels, cfg.InputSpec(), logger),
		Mode:       ModeLoaded,
	}
}

func checkMetadata(cfg Config, log logrus.FieldLogger) error {
	path := cfg.MetadataPath
	if path == "" {
		path = MetadataPath(cfg.ModelPath)
	}

	if _, err := os.Stat(path); err != nil {
		if cfg.RequireMetadata {
			return errors.Wrap(err, "model metadata required")
		}
		log.WithField("metadata", path).Warn("No model metadata found, label order unverified")
		return nil
	}

	meta, err := LoadMetadata(path)
	if err != nil {
		return err
	}
	return meta.Verify(cfg.Labels, cfg.InputSpec())
}

// ModelClassifier classifies faces with a loaded model
type ModelClassifier struct {
	model  Model
	labels []string
	pre    *Preprocessor
	logger logrus.FieldLogger
}

// NewModelClassifier wraps a loaded model
func NewModelClassifier(model Model, labels []string, spec InputSpec, logger logrus.FieldLogger) *ModelClassifier {
	return &ModelClassifier{
		model:  model,
		labels: labels,
		pre:    NewPreprocessor(spec),
		logger: logger,
	}
}

// Predict runs the model on the face crop. Any failure, including a panic
// inside the backend, yields types.Failed().
func (c *ModelClassifier) Predict(face image.Image) (pred types.Prediction) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.WithField("panic", fmt.Sprint(r)).Error("Error during emotion prediction")
			pred = types.Failed()
		}
	}()

	if face == nil || face.Bounds().Empty() {
		c.logger.Error("Error during emotion prediction: empty face crop")
		return types.Failed()
	}

	scores, err := c.model.Predict(c.pre.Preprocess(face))
	if err != nil {
		c.logger.WithError(err).Error("Error during emotion prediction")
		return types.Failed()
	}

	if len(scores) != len(c.labels) {
		c.logger.WithError(ErrBadOutput).Errorf("Model returned %d scores for %d labels", len(scores), len(c.labels))
		return types.Failed()
	}

	probs, err := normalizeScores(scores)
	if err != nil {
		c.logger.WithError(err).Error("Error during emotion prediction")
		return types.Failed()
	}

	idx := argmax(probs)
	return types.Prediction{
		Label:      c.labels[idx],
		Confidence: probs[idx],
		Status:     types.StatusSuccess,
	}
}

// Labels returns the class labels in model output order
func (c *ModelClassifier) Labels() []string {
	return c.labels
}

// Close releases the model
func (c *ModelClassifier) Close() error {
	return c.model.Close()
}

// StubClassifier returns a uniformly random label with a fixed confidence
type StubClassifier struct {
	labels     []string
	confidence float64
	rng        *rand.Rand
	logger     logrus.FieldLogger
}

// NewStubClassifier creates a classifier for degraded mode
func NewStubClassifier(labels []string, confidence float64, logger logrus.FieldLogger, rng *rand.Rand) *StubClassifier {
	return &StubClassifier{
		labels:     labels,
		confidence: confidence,
		rng:        rng,
		logger:     logger,
	}
}

// Predict ignores the crop and picks a random label
func (s *StubClassifier) Predict(_ image.Image) types.Prediction {
	s.logger.Warn("Using dummy emotion prediction (model not loaded)")
	if len(s.labels) == 0 {
		return types.Failed()
	}
	return types.Prediction{
		Label:      s.labels[s.rng.IntN(len(s.labels))],
		Confidence: s.confidence,
		Status:     types.StatusUnavailable,
	}
}

// Labels returns the label set predictions are drawn from
func (s *StubClassifier) Labels() []string {
	return s.labels
}

// Close is a no-op
func (s *StubClassifier) Close() error {
	return nil
}

// scoreTolerance absorbs float32 rounding in probability outputs
const scoreTolerance = 1e-3

// normalizeScores returns the scores as probabilities. Vectors within
// [0,1] up to scoreTolerance are clamped and kept; anything further out is
// treated as logits and softmaxed.
func normalizeScores(scores []float32) ([]float64, error) {
	out := make([]float64, len(scores))
	logits := false
	for i, s := range scores {
		v := float64(s)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, errors.Wrapf(ErrBadOutput, "score %d is %v", i, v)
		}
		if v < -scoreTolerance || v > 1+scoreTolerance {
			logits = true
		}
		out[i] = v
	}

	if !logits {
		for i, v := range out {
			out[i] = math.Min(1, math.Max(0, v))
		}
		return out, nil
	}

	// softmax
	maxV := out[argmax(out)]
	var sum float64
	for i, v := range out {
		out[i] = math.Exp(v - maxV)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out, nil
}

func argmax(v []float64) int {
	best := 0
	for i := 1; i < len(v); i++ {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}
