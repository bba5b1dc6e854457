package geometry

// Transform maps template-space coordinates onto a scanned page. It is a
// similarity transform with independent per-axis scale plus translation;
// scan rotation is assumed negligible.
type Transform struct {
	ScaleX  float64 `json:"scale_x"`
	ScaleY  float64 `json:"scale_y"`
	OffsetX float64 `json:"offset_x"`
	OffsetY float64 `json:"offset_y"`
}

// Identity returns the transform that maps coordinates onto themselves.
// It is the fallback when no anchor has been detected in a session yet.
func Identity() Transform {
	return Transform{ScaleX: 1, ScaleY: 1}
}

// FromBoxes derives the transform that maps the template anchor box onto
// the page anchor box:
//
//	scale  = page.size / template.size   (per axis)
//	offset = page.origin - template.origin * scale
//
// A degenerate template box (zero width or height) yields the identity
// transform so a broken template cannot produce NaN coordinates.
func FromBoxes(template, page Box) Transform {
	if template.W <= 0 || template.H <= 0 {
		return Identity()
	}
	sx := page.W / template.W
	sy := page.H / template.H
	return Transform{
		ScaleX:  sx,
		ScaleY:  sy,
		OffsetX: page.X - template.X*sx,
		OffsetY: page.Y - template.Y*sy,
	}
}

// IsIdentity reports whether the transform is the exact identity.
func (t Transform) IsIdentity() bool {
	return t.ScaleX == 1 && t.ScaleY == 1 && t.OffsetX == 0 && t.OffsetY == 0
}

// Apply maps a template-space box into page space.
func (t Transform) Apply(b Box) Box {
	return Box{
		X: b.X*t.ScaleX + t.OffsetX,
		Y: b.Y*t.ScaleY + t.OffsetY,
		W: b.W * t.ScaleX,
		H: b.H * t.ScaleY,
	}
}

// ApplyPoint maps a template-space point into page space.
func (t Transform) ApplyPoint(p Point) Point {
	return Point{
		X: p.X*t.ScaleX + t.OffsetX,
		Y: p.Y*t.ScaleY + t.OffsetY,
	}
}
