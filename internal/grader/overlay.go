package grader

import (
	"image"
	"image/color"
	"image/draw"
	"strconv"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/scanmark/scanmark/internal/geometry"
	"github.com/scanmark/scanmark/internal/session"
)

var (
	overlayCorrect = color.RGBA{R: 0x1d, G: 0x9e, B: 0x3a, A: 0xff}
	overlayWrong   = color.RGBA{R: 0xd8, G: 0x2b, B: 0x2b, A: 0xff}
)

// RenderOverlay draws graded region boxes and score marks over the page
// image and returns an RGBA copy, for teacher review downstream. Marks are
// a check for any credit, a cross for none, with the score beside it.
func RenderOverlay(img image.Image, results []session.GradingResult) *image.RGBA {
	if img == nil {
		return nil
	}
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)

	for _, r := range results {
		col := overlayWrong
		if r.Score > 0 {
			col = overlayCorrect
		}
		geometry.DrawRect(dst, r.Region.ToRect(dst.Bounds()), col, 2)
		drawScoreMark(dst, r.ScoreMark, r.Score, col)
	}
	return dst
}

func drawScoreMark(dst *image.RGBA, at geometry.Point, scored float64, col color.Color) {
	x, y := int(at.X), int(at.Y)
	if scored > 0 {
		// check mark
		geometry.DrawLine(dst, image.Pt(x-8, y-2), image.Pt(x-3, y+4), col, 2)
		geometry.DrawLine(dst, image.Pt(x-3, y+4), image.Pt(x+6, y-8), col, 2)
	} else {
		// cross
		geometry.DrawLine(dst, image.Pt(x-6, y-6), image.Pt(x+6, y+6), col, 2)
		geometry.DrawLine(dst, image.Pt(x-6, y+6), image.Pt(x+6, y-6), col, 2)
	}

	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(col),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x+10, y+4),
	}
	d.DrawString(strconv.FormatFloat(scored, 'f', -1, 64))
}
