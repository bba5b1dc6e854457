package geometry

import (
	"image"
	"math"
)

// Point represents a 2D coordinate in float space.
type Point struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Box is an axis-aligned rectangle in float coordinates, stored as
// origin plus size to match the template file format.
type Box struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	W float64 `json:"w" yaml:"w"`
	H float64 `json:"h" yaml:"h"`
}

// NewBox constructs a Box from two corner points, normalizing ordering.
func NewBox(x1, y1, x2, y2 float64) Box {
	if x1 > x2 {
		x1, x2 = x2, x1
	}
	if y1 > y2 {
		y1, y2 = y2, y1
	}
	return Box{X: x1, Y: y1, W: x2 - x1, H: y2 - y1}
}

// Empty reports whether the box has no area. Regions with empty boxes
// are not eligible for grading.
func (b Box) Empty() bool { return b.W <= 0 || b.H <= 0 }

// Center returns the box midpoint.
func (b Box) Center() Point { return Point{X: b.X + b.W/2, Y: b.Y + b.H/2} }

// BottomRight returns the bottom-right corner.
func (b Box) BottomRight() Point { return Point{X: b.X + b.W, Y: b.Y + b.H} }

// ToRect converts a Box to an image.Rectangle, clamped to the given bounds.
func (b Box) ToRect(bounds image.Rectangle) image.Rectangle {
	x1 := clampInt(int(math.Floor(b.X)), bounds.Min.X, bounds.Max.X)
	y1 := clampInt(int(math.Floor(b.Y)), bounds.Min.Y, bounds.Max.Y)
	x2 := clampInt(int(math.Ceil(b.X+b.W)), bounds.Min.X, bounds.Max.X)
	y2 := clampInt(int(math.Ceil(b.Y+b.H)), bounds.Min.Y, bounds.Max.Y)
	if x2 < x1 {
		x2 = x1
	}
	if y2 < y1 {
		y2 = y1
	}
	return image.Rect(x1, y1, x2, y2)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// BoundingBox returns the axis-aligned bounding box for a set of points.
func BoundingBox(pts []Point) Box {
	if len(pts) == 0 {
		return Box{}
	}
	minX, minY := pts[0].X, pts[0].Y
	maxX, maxY := pts[0].X, pts[0].Y
	for _, p := range pts[1:] {
		if p.X < minX {
			minX = p.X
		}
		if p.Y < minY {
			minY = p.Y
		}
		if p.X > maxX {
			maxX = p.X
		}
		if p.Y > maxY {
			maxY = p.Y
		}
	}
	return Box{X: minX, Y: minY, W: maxX - minX, H: maxY - minY}
}
