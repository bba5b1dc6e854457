package grader

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/scanmark/scanmark/internal/testutil"
)

func TestParseTagged(t *testing.T) {
	text := "Q1: A\nq2 . BD\nQ 3：对\nnoise line\nQ4\nQ1: B\n"
	got := parseTagged(text)
	assert.Equal(t, map[string]string{
		"Q1": "A", // first occurrence wins
		"Q2": "BD",
		"Q3": "对",
		"Q4": "",
	}, got)
}

func TestParseTaggedEmpty(t *testing.T) {
	assert.Empty(t, parseTagged(""))
	assert.Empty(t, parseTagged("no tags anywhere"))
}

func TestTagsForBatch(t *testing.T) {
	tests := []struct {
		name   string
		labels []string
		offset int
		want   []string
	}{
		{"digits kept", []string{"Question 12", "第3题", "Q007", "000"}, 0,
			[]string{"Q12", "Q3", "Q7", "Q0"}},
		{"digitless fall back to ordinals", []string{"Essay", ""}, 3,
			[]string{"Q4", "Q5"}},
		{"ordinal fallback skips claimed digits", []string{"Question 1", "Essay"}, 0,
			[]string{"Q1", "Q2"}},
		{"duplicate digits disambiguated", []string{"Question 1", "1st part"}, 0,
			[]string{"Q1", "Q2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tagsForBatch(tt.labels, tt.offset)
			assert.Equal(t, tt.want, got)
			seen := make(map[string]bool)
			for _, tag := range got {
				assert.False(t, seen[tag], "duplicate tag %s", tag)
				seen[tag] = true
			}
		})
	}
}

func TestStitchTaggedLayout(t *testing.T) {
	crops := []taggedCrop{
		{tag: "Q1", img: testutil.NewSheet(100, 30)},
		{tag: "Q2", img: testutil.NewSheet(180, 40)},
	}
	composite := stitchTagged(crops)

	b := composite.Bounds()
	assert.Equal(t, 180+2*tagTextMargin, b.Dx(), "width follows the widest crop")
	wantH := cropGap + (tagBannerHeight + 30 + cropGap) + (tagBannerHeight + 40 + cropGap)
	assert.Equal(t, wantH, b.Dy())
}

func TestStitchTaggedMinimumWidth(t *testing.T) {
	composite := stitchTagged([]taggedCrop{{tag: "Q1", img: image.NewRGBA(image.Rect(0, 0, 10, 10))}})
	assert.GreaterOrEqual(t, composite.Bounds().Dx(), 64, "narrow crops still leave room for the tag text")
}
