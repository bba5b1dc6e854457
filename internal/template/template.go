package template

import (
	"fmt"

	"github.com/scanmark/scanmark/internal/geometry"
)

// QuestionType classifies how a region is scored.
type QuestionType string

const (
	SingleChoice   QuestionType = "single_choice"
	MultipleChoice QuestionType = "multiple_choice"
	TrueFalse      QuestionType = "true_false"
	FillInBlank    QuestionType = "fill_in_blank"
	Subjective     QuestionType = "subjective"
)

// Valid reports whether t is a known question type.
func (t QuestionType) Valid() bool {
	switch t {
	case SingleChoice, MultipleChoice, TrueFalse, FillInBlank, Subjective:
		return true
	}
	return false
}

// Objective reports whether the type has a deterministic correct answer.
func (t QuestionType) Objective() bool {
	return t == SingleChoice || t == MultipleChoice || t == TrueFalse || t == FillInBlank
}

// ObjectiveTypes lists the objective types in their grading order.
// Each group issues its own batched OCR call.
var ObjectiveTypes = []QuestionType{SingleChoice, MultipleChoice, TrueFalse, FillInBlank}

// QuestionRegion is one answer region authored against the reference page.
// Coordinates are template-space; graders map them through the page transform.
type QuestionRegion struct {
	ID             string          `json:"id" yaml:"id"`
	Label          string          `json:"label" yaml:"label"`
	Type           QuestionType    `json:"type" yaml:"type"`
	Rect           geometry.Box    `json:"rect" yaml:"rect"`
	Page           int             `json:"page" yaml:"page"`
	ExpectedAnswer string          `json:"expected_answer" yaml:"expected_answer"`
	MaxPoints      float64         `json:"max_points" yaml:"max_points"`
	RubricText     string          `json:"rubric_text,omitempty" yaml:"rubric_text,omitempty"`
	ScoreMark      *geometry.Point `json:"score_mark,omitempty" yaml:"score_mark,omitempty"`
}

// Mapped reports whether the region has a usable rectangle. Unmapped
// (zero-size) regions are skipped by grading.
func (q QuestionRegion) Mapped() bool { return !q.Rect.Empty() }

// ScoreMarkPoint returns the score-mark anchor in template space: the
// explicit override if set, else a default near the region's bottom-right.
func (q QuestionRegion) ScoreMarkPoint() geometry.Point {
	if q.ScoreMark != nil {
		return *q.ScoreMark
	}
	br := q.Rect.BottomRight()
	return geometry.Point{X: br.X - 4, Y: br.Y - 4}
}

// Template is the read-only catalogue of question regions for one paper,
// authored against a reference page image carrying the anchor.
type Template struct {
	Name    string           `json:"name" yaml:"name"`
	Pages   int              `json:"pages" yaml:"pages"`
	Anchor  geometry.Box     `json:"anchor" yaml:"anchor"`
	Regions []QuestionRegion `json:"regions" yaml:"regions"`
}

// Validate checks structural soundness. Zero-size regions are allowed (they
// are skipped at grading time) but every region needs an id, a known type,
// a positive page index within the template, and non-negative points.
func (t *Template) Validate() error {
	if t.Pages <= 0 {
		return fmt.Errorf("template %q: pages must be >= 1, got %d", t.Name, t.Pages)
	}
	if t.Anchor.Empty() {
		return fmt.Errorf("template %q: anchor box is empty", t.Name)
	}
	seen := make(map[string]struct{}, len(t.Regions))
	for i, r := range t.Regions {
		if r.ID == "" {
			return fmt.Errorf("region[%d]: missing id", i)
		}
		if _, dup := seen[r.ID]; dup {
			return fmt.Errorf("region[%d]: duplicate id %q", i, r.ID)
		}
		seen[r.ID] = struct{}{}
		if !r.Type.Valid() {
			return fmt.Errorf("region %q: unknown type %q", r.ID, r.Type)
		}
		if r.Page < 1 || r.Page > t.Pages {
			return fmt.Errorf("region %q: page %d out of range [1,%d]", r.ID, r.Page, t.Pages)
		}
		if r.MaxPoints < 0 {
			return fmt.Errorf("region %q: negative max_points", r.ID)
		}
	}
	return nil
}

// RegionsOfType returns the mapped regions of the given type on a page,
// in template order.
func (t *Template) RegionsOfType(page int, typ QuestionType) []QuestionRegion {
	var out []QuestionRegion
	for _, r := range t.Regions {
		if r.Page == page && r.Type == typ && r.Mapped() {
			out = append(out, r)
		}
	}
	return out
}

// SubjectiveRegions returns the mapped subjective regions on a page.
func (t *Template) SubjectiveRegions(page int) []QuestionRegion {
	return t.RegionsOfType(page, Subjective)
}

// RegionCount returns the number of mapped regions across all pages.
// A paper is done once this many results have been recorded for it.
func (t *Template) RegionCount() int {
	n := 0
	for _, r := range t.Regions {
		if r.Mapped() {
			n++
		}
	}
	return n
}

// RegionCountForPages returns the number of mapped regions on template
// pages 1..pages, clamped to the template's page count.
func (t *Template) RegionCountForPages(pages int) int {
	if pages > t.Pages {
		pages = t.Pages
	}
	n := 0
	for _, r := range t.Regions {
		if r.Mapped() && r.Page <= pages {
			n++
		}
	}
	return n
}
