// Package anchor locates the printed fiducial marker (a QR code) on page
// images. The same detector runs on the template's reference page and on
// every scanned page; the two geometries together yield the page transform.
package anchor

import (
	"context"
	"encoding/json"
	"image"
	"strings"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"

	"github.com/scanmark/scanmark/internal/geometry"
)

// Identity is the decoded student identity carried by a first-page anchor.
type Identity struct {
	StudentID string `json:"student_id"`
	Name      string `json:"name,omitempty"`
}

// Geometry is the detected fiducial on one image. Payload is nil when the
// code carried no decodable identity (continuation pages). Ephemeral:
// recomputed per image, never persisted.
type Geometry struct {
	Box     geometry.Box
	Payload *Identity
	Raw     string
}

// Detector scans page images for the QR fiducial.
type Detector struct {
	tryHarder bool
}

// NewDetector creates a detector. tryHarder enables a more exhaustive
// search, slower but more robust against low-contrast scans.
func NewDetector(tryHarder bool) *Detector {
	return &Detector{tryHarder: tryHarder}
}

// Detect scans img for the fiducial. A page without a readable anchor is an
// expected case and returns (nil, nil); errors are reserved for unusable
// input. The bounding box is taken from min/max over all reported corner
// points to tolerate slight rotation.
func (d *Detector) Detect(ctx context.Context, img image.Image) (*Geometry, error) {
	if img == nil {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	source := gozxing.NewLuminanceSourceFromImage(img)
	bitmap, err := gozxing.NewBinaryBitmap(gozxing.NewHybridBinarizer(source))
	if err != nil {
		return nil, nil
	}

	hints := map[gozxing.DecodeHintType]interface{}{}
	if d.tryHarder {
		hints[gozxing.DecodeHintType_TRY_HARDER] = true
	}
	reader := qrcode.NewQRCodeReader()
	result, err := reader.Decode(bitmap, hints)
	if err != nil || result == nil {
		// NotFoundException and friends all mean "no anchor here".
		return nil, nil
	}

	pts := result.GetResultPoints()
	corners := make([]geometry.Point, 0, len(pts))
	for _, p := range pts {
		corners = append(corners, geometry.Point{X: float64(p.GetX()), Y: float64(p.GetY())})
	}
	g := &Geometry{
		Box: geometry.BoundingBox(corners),
		Raw: result.GetText(),
	}
	g.Payload = ParsePayload(g.Raw)
	return g, nil
}

// ParsePayload decodes an anchor payload into an identity. A JSON object
// with a student_id field is preferred; any other non-empty text is taken
// as a bare student id. Undecodable or empty payloads return nil, which the
// session tracker treats as a continuation page.
func ParsePayload(raw string) *Identity {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if strings.HasPrefix(raw, "{") {
		var id Identity
		if err := json.Unmarshal([]byte(raw), &id); err != nil || id.StudentID == "" {
			return nil
		}
		return &id
	}
	return &Identity{StudentID: raw}
}
