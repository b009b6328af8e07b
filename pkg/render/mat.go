package render

import (
	"image"

	"gocv.io/x/gocv"

	"github.com/menta2k/emotion-analyzer/pkg/types"
)

// DrawMat draws each face box and its label onto a BGR frame in place
func DrawMat(img *gocv.Mat, faces []types.FaceEmotion, style Style) {
	for _, f := range faces {
		gocv.Rectangle(img, f.Box.Rect(), style.BoxColor, style.BoxThickness)
		gocv.PutTextWithParams(img, FormatLabel(f.Prediction),
			image.Pt(f.Box.X, f.Box.Y-style.LabelOffset),
			gocv.FontHersheySimplex, style.FontScale, style.LabelColor(f.Prediction),
			style.FontThickness, gocv.LineAA, false)
	}
}
