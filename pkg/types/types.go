package types

import (
	"fmt"
	"image"
)

// ErrorLabel is the reserved label reported when inference fails.
// It is a sentinel, never a real emotion class.
const ErrorLabel = "Error"

// Box represents an axis-aligned face bounding box in frame-pixel coordinates
type Box struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"w"`
	Height int `json:"h"`
}

// BoxFromRect converts an image.Rectangle into a Box
func BoxFromRect(r image.Rectangle) Box {
	r = r.Canon()
	return Box{X: r.Min.X, Y: r.Min.Y, Width: r.Dx(), Height: r.Dy()}
}

// Rect returns the box as an image.Rectangle
func (b Box) Rect() image.Rectangle {
	return image.Rect(b.X, b.Y, b.X+b.Width, b.Y+b.Height)
}

// Center returns the center point of the box
func (b Box) Center() (int, int) {
	return b.X + b.Width/2, b.Y + b.Height/2
}

// Area returns the area of the box
func (b Box) Area() int {
	return b.Width * b.Height
}

// Status tells the caller how a Prediction was produced
type Status int

const (
	// StatusSuccess means a loaded model produced the prediction.
	StatusSuccess Status = iota
	// StatusUnavailable means no model is loaded and the label is synthetic.
	StatusUnavailable
	// StatusInferenceFailed means the model was called and failed.
	StatusInferenceFailed
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusUnavailable:
		return "unavailable"
	case StatusInferenceFailed:
		return "inference_failed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Prediction is the emotion result for a single face crop
type Prediction struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Status     Status  `json:"status"`
}

// Failed returns the prediction reported when inference fails
func Failed() Prediction {
	return Prediction{Label: ErrorLabel, Confidence: 0, Status: StatusInferenceFailed}
}

// OK reports whether the prediction came from a loaded model
func (p Prediction) OK() bool {
	return p.Status == StatusSuccess
}

// FaceEmotion pairs a detected face with its predicted emotion
type FaceEmotion struct {
	Box        Box        `json:"box"`
	Prediction Prediction `json:"prediction"`
}
