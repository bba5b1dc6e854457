package geometry

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
)

// CropRect crops an image to the given rectangle, clamped to its bounds.
func CropRect(img image.Image, rect image.Rectangle) image.Image {
	rect = rect.Intersect(img.Bounds())
	if rect.Empty() {
		return imaging.New(0, 0, color.Transparent)
	}
	return imaging.Crop(img, rect)
}

// CropBox crops an image using a float Box.
func CropBox(img image.Image, box Box) image.Image {
	return CropRect(img, box.ToRect(img.Bounds()))
}

// DrawRect draws an axis-aligned rectangle outline into dst.
func DrawRect(dst *image.RGBA, rect image.Rectangle, col color.Color, thickness int) {
	if thickness < 1 {
		thickness = 1
	}
	rect = rect.Intersect(dst.Bounds())
	if rect.Empty() {
		return
	}
	for t := range thickness {
		yTop := rect.Min.Y + t
		yBot := rect.Max.Y - 1 - t
		for x := rect.Min.X; x < rect.Max.X; x++ {
			dst.Set(x, yTop, col)
			dst.Set(x, yBot, col)
		}
	}
	for t := range thickness {
		xLeft := rect.Min.X + t
		xRight := rect.Max.X - 1 - t
		for y := rect.Min.Y; y < rect.Max.Y; y++ {
			dst.Set(xLeft, y, col)
			dst.Set(xRight, y, col)
		}
	}
}

// DrawLine draws a line between two points using a simple Bresenham variant.
func DrawLine(dst *image.RGBA, a, b image.Point, col color.Color, thickness int) {
	x0, y0 := a.X, a.Y
	x1, y1 := b.X, b.Y
	dx := int(math.Abs(float64(x1 - x0)))
	sx := -1
	if x0 < x1 {
		sx = 1
	}
	dy := -int(math.Abs(float64(y1 - y0)))
	sy := -1
	if y0 < y1 {
		sy = 1
	}
	err := dx + dy
	for {
		setThick(dst, x0, y0, col, thickness)
		if x0 == x1 && y0 == y1 {
			break
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

func setThick(dst *image.RGBA, x, y int, col color.Color, thickness int) {
	if thickness <= 1 {
		dst.Set(x, y, col)
		return
	}
	r := thickness / 2
	for oy := -r; oy <= r; oy++ {
		for ox := -r; ox <= r; ox++ {
			dst.Set(x+ox, y+oy, col)
		}
	}
}
