package grader

import (
	"image"
	"image/color"
	"image/draw"
	"regexp"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Layout constants for the stitched composite sent to OCR: each crop is
// prefixed by a banner line carrying its machine tag.
const (
	tagBannerHeight = 18
	tagTextMargin   = 4
	cropGap         = 6
)

// taggedCrop pairs a region crop with its machine tag.
type taggedCrop struct {
	tag string
	img image.Image
}

// stitchTagged stacks the crops vertically into one composite image, each
// crop preceded by its tag rendered in bold-ish text. The OCR service reads
// the whole composite in one call; tags re-associate lines with regions.
func stitchTagged(crops []taggedCrop) image.Image {
	width := 0
	height := cropGap
	for _, c := range crops {
		b := c.img.Bounds()
		if b.Dx() > width {
			width = b.Dx()
		}
		height += tagBannerHeight + b.Dy() + cropGap
	}
	width += 2 * tagTextMargin
	if width < 64 {
		width = 64
	}

	dst := imaging.New(width, height, color.White)
	y := cropGap
	for _, c := range crops {
		drawTag(dst, c.tag, tagTextMargin, y)
		y += tagBannerHeight
		dst = imaging.Paste(dst, c.img, image.Pt(tagTextMargin, y))
		y += c.img.Bounds().Dy() + cropGap
	}
	return dst
}

// drawTag renders the tag text twice at a 1px offset to thicken the
// glyphs, so the OCR service reads the tag reliably.
func drawTag(dst draw.Image, tag string, x, y int) {
	face := basicfont.Face7x13
	baseline := y + face.Ascent
	for _, off := range []int{0, 1} {
		d := &font.Drawer{
			Dst:  dst,
			Src:  image.NewUniform(color.Black),
			Face: face,
			Dot:  fixed.P(x+off, baseline),
		}
		d.DrawString(tag + ":")
	}
}

// tagLine matches an OCR output line of the form "Q12: answer". The
// separator is optional because recognition frequently drops it.
var tagLine = regexp.MustCompile(`^\s*[Qq]\s*(\d+)\s*[:.：]?\s*(.*)$`)

// parseTagged splits recognized text into lines and maps each tag number
// to the remainder of its line. The first matching line per tag wins, so
// re-running on the same text is deterministic.
func parseTagged(text string) map[string]string {
	out := make(map[string]string)
	for _, line := range strings.Split(text, "\n") {
		m := tagLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		tag := "Q" + m[1]
		if _, seen := out[tag]; seen {
			continue
		}
		out[tag] = strings.TrimSpace(m[2])
	}
	return out
}

var digitRun = regexp.MustCompile(`\d+`)

// tagsForBatch derives one machine tag per region in a batch, unique within
// the batch so no two regions share an OCR line. Labels with digits keep
// them ("Question 12" -> "Q12"); digitless labels and duplicate digits fall
// back to the lowest unclaimed ordinal past offset.
func tagsForBatch(labels []string, offset int) []string {
	tags := make([]string, len(labels))
	used := make(map[string]bool, len(labels))
	for i, label := range labels {
		m := digitRun.FindString(label)
		if m == "" {
			continue
		}
		tag := "Q" + strings.TrimLeft(m, "0")
		if tag == "Q" {
			tag = "Q0"
		}
		if !used[tag] {
			tags[i] = tag
			used[tag] = true
		}
	}

	next := offset + 1
	for i, tag := range tags {
		if tag != "" {
			continue
		}
		for used["Q"+strconv.Itoa(next)] {
			next++
		}
		tags[i] = "Q" + strconv.Itoa(next)
		used[tags[i]] = true
	}
	return tags
}
