package render

import (
	"image"
	"image/color"
	"math"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/menta2k/emotion-analyzer/pkg/types"
)

// DrawImage draws each face box and its label onto img in place. It is the
// pure-Go counterpart of DrawMat used for still images; the bitmap font
// ignores FontScale.
func DrawImage(img *image.NRGBA, faces []types.FaceEmotion, style Style) {
	face := basicfont.Face7x13
	ascent := face.Metrics().Ascent.Ceil()
	stroke := int(math.Max(1, float64(style.BoxThickness)))

	for _, f := range faces {
		drawBox(img, f.Box.Rect(), toNRGBA(style.BoxColor), stroke)

		// keep the label on the canvas when the face touches the top edge
		y := f.Box.Y - style.LabelOffset
		if y < ascent {
			y = ascent
		}

		d := &font.Drawer{
			Dst:  img,
			Src:  image.NewUniform(style.LabelColor(f.Prediction)),
			Face: face,
			Dot:  fixed.P(f.Box.X, y),
		}
		d.DrawString(FormatLabel(f.Prediction))
	}
}

func toNRGBA(c color.RGBA) color.NRGBA {
	return color.NRGBAModel.Convert(c).(color.NRGBA)
}

func drawBox(img *image.NRGBA, r image.Rectangle, c color.NRGBA, stroke int) {
	x0, y0, x1, y1 := r.Min.X, r.Min.Y, r.Max.X, r.Max.Y
	if x1 <= x0 {
		x1 = x0 + 1
	}
	if y1 <= y0 {
		y1 = y0 + 1
	}
	for s := 0; s < stroke; s++ {
		drawHLine(img, y0+s, x0, x1, c)
		drawHLine(img, y1-1-s, x0, x1, c)
		drawVLine(img, x0+s, y0, y1, c)
		drawVLine(img, x1-1-s, y0, y1, c)
	}
}

func drawHLine(img *image.NRGBA, y, x0, x1 int, c color.NRGBA) {
	b := img.Bounds()
	if y < b.Min.Y || y >= b.Max.Y {
		return
	}
	if x0 > x1 {
		x0, x1 = x1, x0
	}
	if x0 < b.Min.X {
		x0 = b.Min.X
	}
	if x1 > b.Max.X {
		x1 = b.Max.X
	}
	for x := x0; x < x1; x++ {
		img.SetNRGBA(x, y, c)
	}
}

func drawVLine(img *image.NRGBA, x, y0, y1 int, c color.NRGBA) {
	b := img.Bounds()
	if x < b.Min.X || x >= b.Max.X {
		return
	}
	if y0 > y1 {
		y0, y1 = y1, y0
	}
	if y0 < b.Min.Y {
		y0 = b.Min.Y
	}
	if y1 > b.Max.Y {
		y1 = b.Max.Y
	}
	for y := y0; y < y1; y++ {
		img.SetNRGBA(x, y, c)
	}
}
