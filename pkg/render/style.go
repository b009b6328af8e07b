// Package render draws face boxes and emotion labels onto frames.
package render

import (
	"fmt"
	"image/color"
	"strings"

	"github.com/menta2k/emotion-analyzer/pkg/types"
)

var (
	Blue   = color.RGBA{0, 0, 255, 255}
	Green  = color.RGBA{0, 255, 0, 255}
	Red    = color.RGBA{255, 0, 0, 255}
	Yellow = color.RGBA{255, 255, 0, 255}
	Orange = color.RGBA{255, 165, 0, 255}
	Purple = color.RGBA{128, 0, 128, 255}
	Cyan   = color.RGBA{0, 255, 255, 255}
	White  = color.RGBA{255, 255, 255, 255}
)

// Palette maps emotion labels to colors. Lookups ignore case.
type Palette map[string]color.RGBA

// NewPalette copies colors into a Palette keyed by lowercase label
func NewPalette(colors map[string]color.RGBA) Palette {
	p := make(Palette, len(colors))
	for label, c := range colors {
		p[strings.ToLower(label)] = c
	}
	return p
}

// DefaultPalette returns the label colors of the live display
func DefaultPalette() Palette {
	return NewPalette(map[string]color.RGBA{
		"Happy":          Green,
		"Sad":            Blue,
		"Angry":          Red,
		"Surprise":       Yellow,
		"Fear":           Purple,
		"Disgust":        Orange,
		"Neutral":        Cyan,
		types.ErrorLabel: White,
	})
}

// Color returns the color for label, or fallback when the label is unknown
func (p Palette) Color(label string, fallback color.RGBA) color.RGBA {
	if c, ok := p[strings.ToLower(label)]; ok {
		return c
	}
	return fallback
}

// Style holds everything needed to annotate a frame
type Style struct {
	Palette       Palette
	BoxColor      color.RGBA
	DefaultColor  color.RGBA
	BoxThickness  int
	FontScale     float64
	FontThickness int
	// LabelOffset is how far above the box the label baseline sits
	LabelOffset int
}

// DefaultStyle returns the style of the live display
func DefaultStyle() Style {
	return Style{
		Palette:       DefaultPalette(),
		BoxColor:      Blue,
		DefaultColor:  White,
		BoxThickness:  2,
		FontScale:     0.9,
		FontThickness: 2,
		LabelOffset:   10,
	}
}

// LabelColor returns the text color for a prediction. Failed predictions
// always use the default color.
func (s Style) LabelColor(pred types.Prediction) color.RGBA {
	if pred.Status == types.StatusInferenceFailed {
		return s.DefaultColor
	}
	return s.Palette.Color(pred.Label, s.DefaultColor)
}

// FormatLabel renders a prediction as "Label: 0.00"
func FormatLabel(pred types.Prediction) string {
	return fmt.Sprintf("%s: %.2f", pred.Label, pred.Confidence)
}
