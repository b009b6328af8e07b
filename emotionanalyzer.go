// Package emotionanalyzer finds faces in images and classifies the dominant
// emotion on each one.
//
// Basic usage:
//
//	package main
//
//	import (
//		"fmt"
//		"log"
//
//		"github.com/sirupsen/logrus"
//
//		emotionanalyzer "github.com/menta2k/emotion-analyzer"
//		"github.com/menta2k/emotion-analyzer/pkg/emotion"
//		"github.com/menta2k/emotion-analyzer/pkg/vision"
//	)
//
//	func main() {
//		cfg := emotion.Config{
//			ModelPath:       "models/em_recog.onnx",
//			Labels:          emotion.DefaultLabels,
//			InputWidth:      48,
//			InputHeight:     48,
//			Channels:        1,
//			DummyConfidence: emotion.DefaultDummyConfidence,
//		}
//
//		ea, err := emotionanalyzer.Load("models/haarcascade_frontalface_default.xml",
//			vision.DefaultLocatorParams(), cfg, logrus.New())
//		if err != nil {
//			log.Fatal(err)
//		}
//		defer ea.Close()
//
//		result, err := ea.ProcessImageFile("photo.jpg", "photo_emotions.jpg", emotionanalyzer.DefaultOutputOptions())
//		if err != nil {
//			log.Fatal(err)
//		}
//
//		for _, face := range result.Faces {
//			fmt.Printf("%v: %s (%.2f)\n", face.Box, face.Prediction.Label, face.Prediction.Confidence)
//		}
//	}
//
// The live webcam loop lives in pkg/app; this package covers still images.
// When the emotion model cannot be loaded, predictions are synthetic and
// carry types.StatusUnavailable.
package emotionanalyzer

import (
	"image"
	"io"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/menta2k/emotion-analyzer/pkg/emotion"
	"github.com/menta2k/emotion-analyzer/pkg/inference"
	"github.com/menta2k/emotion-analyzer/pkg/processing"
	"github.com/menta2k/emotion-analyzer/pkg/render"
	"github.com/menta2k/emotion-analyzer/pkg/types"
	"github.com/menta2k/emotion-analyzer/pkg/vision"
)

// Version of the emotion analyzer library
const Version = "1.0.0"

// FaceDetector finds faces in a Go image
type FaceDetector interface {
	DetectImage(img image.Image) ([]types.Box, error)
}

// EmotionAnalyzer provides a high-level interface for still-image analysis
type EmotionAnalyzer struct {
	detector   FaceDetector
	classifier emotion.Classifier
	processor  *processing.Processor
	style      render.Style
	logger     logrus.FieldLogger
}

// Option customizes an EmotionAnalyzer
type Option func(*EmotionAnalyzer)

// WithStyle sets the annotation style
func WithStyle(style render.Style) Option {
	return func(ea *EmotionAnalyzer) { ea.style = style }
}

// WithLogger sets the logger
func WithLogger(logger logrus.FieldLogger) Option {
	return func(ea *EmotionAnalyzer) { ea.logger = logger }
}

// New creates an EmotionAnalyzer from a detector and a classifier
func New(detector FaceDetector, classifier emotion.Classifier, opts ...Option) *EmotionAnalyzer {
	ea := &EmotionAnalyzer{
		detector:   detector,
		classifier: classifier,
		processor:  processing.NewProcessor(),
		style:      render.DefaultStyle(),
		logger:     logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(ea)
	}
	return ea
}

// Load builds an EmotionAnalyzer from model files. A missing cascade is an
// error; an unusable emotion model only degrades predictions.
func Load(cascadePath string, params vision.LocatorParams, cfg emotion.Config, logger logrus.FieldLogger, opts ...Option) (*EmotionAnalyzer, error) {
	locator, err := vision.NewFaceLocator(cascadePath, params)
	if err != nil {
		return nil, err
	}

	result := emotion.Load(cfg, inference.Open, logger)

	opts = append([]Option{WithLogger(logger)}, opts...)
	return New(locator, result.Classifier, opts...), nil
}

// ImageInfo contains basic information about an image
type ImageInfo struct {
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	AspectRatio float64 `json:"aspect_ratio"`
}

// AnalysisResult contains the faces found in an image
type AnalysisResult struct {
	Info  ImageInfo           `json:"info"`
	Faces []types.FaceEmotion `json:"faces"`
}

// OutputOptions controls how annotated images are written
type OutputOptions struct {
	Format   string
	Quality  int
	Lossless bool
}

// DefaultOutputOptions returns JPEG output at quality 85
func DefaultOutputOptions() OutputOptions {
	return OutputOptions{Format: "jpg", Quality: 85}
}

// LoadImage loads an image from file
func (ea *EmotionAnalyzer) LoadImage(path string) (image.Image, error) {
	return ea.processor.LoadImage(path)
}

// LoadImageFromReader loads an image from an io.Reader
func (ea *EmotionAnalyzer) LoadImageFromReader(r io.Reader) (image.Image, error) {
	return ea.processor.LoadImageFromReader(r)
}

// SaveImage saves an image to file
func (ea *EmotionAnalyzer) SaveImage(img image.Image, path string, out OutputOptions) error {
	return ea.processor.SaveImage(img, path, out.Format, out.Quality, out.Lossless)
}

// GetImageInfo returns basic information about an image
func (ea *EmotionAnalyzer) GetImageInfo(img image.Image) ImageInfo {
	b := img.Bounds()
	info := ImageInfo{Width: b.Dx(), Height: b.Dy()}
	if info.Height > 0 {
		info.AspectRatio = float64(info.Width) / float64(info.Height)
	}
	return info
}

// AnalyzeImage detects faces in img and classifies each of them. Box
// coordinates are relative to the image's top-left corner.
func (ea *EmotionAnalyzer) AnalyzeImage(img image.Image) (AnalysisResult, error) {
	if img.Bounds().Empty() {
		return AnalysisResult{}, errors.New("image is empty")
	}

	boxes, err := ea.detector.DetectImage(img)
	if err != nil {
		return AnalysisResult{}, errors.Wrap(err, "face detection failed")
	}

	gray := ea.processor.Grayscale(img)
	faces := make([]types.FaceEmotion, 0, len(boxes))
	for _, box := range boxes {
		pred := types.Failed()
		if crop, err := ea.processor.CropFace(gray, box); err != nil {
			ea.logger.WithError(err).Error("Failed to crop face")
		} else {
			pred = ea.classifier.Predict(crop)
		}
		faces = append(faces, types.FaceEmotion{Box: box, Prediction: pred})
	}

	ea.logger.WithField("faces", len(faces)).Debug("Image analyzed")

	return AnalysisResult{
		Info:  ea.GetImageInfo(img),
		Faces: faces,
	}, nil
}

// AnnotateImage returns a copy of img with the faces drawn on it
func (ea *EmotionAnalyzer) AnnotateImage(img image.Image, faces []types.FaceEmotion) *image.NRGBA {
	canvas := ea.processor.Canvas(img)
	render.DrawImage(canvas, faces, ea.style)
	return canvas
}

// ProcessImageFile loads inputPath, analyzes it and writes the annotated
// image to outputPath
func (ea *EmotionAnalyzer) ProcessImageFile(inputPath, outputPath string, out OutputOptions) (AnalysisResult, error) {
	img, err := ea.LoadImage(inputPath)
	if err != nil {
		return AnalysisResult{}, errors.Wrap(err, "failed to load image")
	}

	result, err := ea.AnalyzeImage(img)
	if err != nil {
		return AnalysisResult{}, err
	}

	if err := ea.SaveImage(ea.AnnotateImage(img, result.Faces), outputPath, out); err != nil {
		return AnalysisResult{}, errors.Wrapf(err, "failed to save %s", outputPath)
	}

	return result, nil
}

// Labels returns the emotion labels predictions are drawn from
func (ea *EmotionAnalyzer) Labels() []string {
	return ea.classifier.Labels()
}

// Close releases the classifier and the detector
func (ea *EmotionAnalyzer) Close() error {
	err := ea.classifier.Close()
	if c, ok := ea.detector.(io.Closer); ok {
		if cerr := c.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}
