// Package testutil generates synthetic answer-sheet images for tests:
// white pages carrying a real QR anchor and printed answer text.
package testutil

import (
	"image"
	"image/color"
	"image/draw"
	"testing"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// SheetSize is the default synthetic page size, roughly A4 at 96 DPI.
var SheetSize = image.Pt(794, 1123)

// NewSheet creates a blank white page.
func NewSheet(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{color.White}, image.Point{}, draw.Src)
	return img
}

// DrawQR encodes payload as a QR code and paints it onto the sheet with
// its top-left corner at pos. Fails the test on encoding errors.
func DrawQR(t *testing.T, dst *image.RGBA, payload string, pos image.Point, size int) {
	t.Helper()
	writer := qrcode.NewQRCodeWriter()
	matrix, err := writer.Encode(payload, gozxing.BarcodeFormat_QR_CODE, size, size, nil)
	require.NoError(t, err)

	for y := range matrix.GetHeight() {
		for x := range matrix.GetWidth() {
			if matrix.Get(x, y) {
				dst.Set(pos.X+x, pos.Y+y, color.Black)
			}
		}
	}
}

// DrawText prints a line of text at the given baseline origin.
func DrawText(dst *image.RGBA, text string, pos image.Point) {
	face := basicfont.Face7x13
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(color.Black),
		Face: face,
		Dot:  fixed.P(pos.X, pos.Y+face.Ascent),
	}
	d.DrawString(text)
}

// AnchorSheet builds a page carrying a QR anchor with the given payload at
// the top-left, which is how the reference templates lay out the fiducial.
func AnchorSheet(t *testing.T, payload string) *image.RGBA {
	t.Helper()
	sheet := NewSheet(SheetSize.X, SheetSize.Y)
	DrawQR(t, sheet, payload, image.Pt(40, 40), 120)
	return sheet
}

// BlankSheet builds a page with no anchor at all (a continuation page
// whose marker failed to print or scan).
func BlankSheet() *image.RGBA {
	return NewSheet(SheetSize.X, SheetSize.Y)
}
