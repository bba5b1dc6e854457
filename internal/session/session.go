// Package session stitches a stream of scanned pages into per-student
// papers. Pages are consumed strictly in scan order: a page carrying a
// decodable identity anchor starts a new paper, anything else continues
// the current one.
package session

import (
	"image"

	"github.com/google/uuid"

	"github.com/scanmark/scanmark/internal/anchor"
	"github.com/scanmark/scanmark/internal/geometry"
)

// Status is the lifecycle state of a student paper.
type Status string

const (
	StatusProcessing Status = "processing"
	StatusDone       Status = "done"
	StatusError      Status = "error"
)

// Page is one scanned page attached to a paper. TemplatePage is the
// template page index the page is graded against (1-based position within
// the paper). The transform maps template coordinates onto this page and
// is handed to graders by value.
type Page struct {
	TemplatePage int
	Image        image.Image
	Transform    geometry.Transform
}

// GradingResult is the outcome for one question region on one paper.
// Region and ScoreMark are in page coordinates for downstream overlay
// rendering. Append-only.
type GradingResult struct {
	QuestionID      string         `json:"question_id"`
	Label           string         `json:"label"`
	Page            int            `json:"page"`
	ExtractedAnswer string         `json:"extracted_answer"`
	Score           float64        `json:"score"`
	Feedback        string         `json:"feedback,omitempty"`
	Region          geometry.Box   `json:"region"`
	ScoreMark       geometry.Point `json:"score_mark"`
}

// StudentPaper is one logical student submission assembled from one or
// more consecutive scanned pages.
type StudentPaper struct {
	ID           string          `json:"id"`
	Identity     anchor.Identity `json:"identity"`
	Pages        []Page          `json:"-"`
	Results      []GradingResult `json:"results"`
	TotalScore   float64         `json:"total_score"`
	Status       Status          `json:"status"`
	ErrorMessage string          `json:"error_message,omitempty"`
}

// PageCount returns the number of pages attached so far.
func (p *StudentPaper) PageCount() int { return len(p.Pages) }

// AppendResult records one grading result and accumulates the score.
func (p *StudentPaper) AppendResult(r GradingResult) {
	p.Results = append(p.Results, r)
	p.TotalScore += r.Score
}

// MarkDoneIfComplete flips the paper to done once at least expected
// results have been recorded. Papers in error state keep their status;
// their results still accumulate.
func (p *StudentPaper) MarkDoneIfComplete(expected int) {
	if p.Status == StatusProcessing && len(p.Results) >= expected {
		p.Status = StatusDone
	}
}

// Outcome describes what feeding one page did to the session.
type Outcome struct {
	Paper  *StudentPaper // the paper now active (owns the fed page)
	Page   *Page         // the page as attached, with its transform
	Closed *StudentPaper // paper closed by this page, if any
}

// Tracker is the per-run session state machine. One instance consumes one
// physical stack of scanned pages, in order.
type Tracker struct {
	templateAnchor geometry.Box
	current        *StudentPaper
	transform      geometry.Transform
	hasTransform   bool
}

// NewTracker creates a tracker anchored to the template's reference
// anchor geometry.
func NewTracker(templateAnchor geometry.Box) *Tracker {
	return &Tracker{
		templateAnchor: templateAnchor,
		transform:      geometry.Identity(),
	}
}

// Transform returns the cached session transform: the one derived from
// the most recent anchor detection, or identity before the first.
func (t *Tracker) Transform() geometry.Transform { return t.transform }

// Feed consumes the next page in scan order. g is the page's detected
// anchor, or nil when none was found.
//
//   - identity payload      -> close the current paper, start a new one
//   - anchor, no payload    -> continuation page; refresh session transform
//   - no anchor             -> continuation page on the cached transform
//   - no session to continue -> orphan paper in error state, so later
//     pages still attach somewhere instead of being dropped
func (t *Tracker) Feed(img image.Image, g *anchor.Geometry) Outcome {
	if g != nil && g.Payload != nil {
		closed := t.current
		t.transform = geometry.FromBoxes(t.templateAnchor, g.Box)
		t.hasTransform = true
		t.current = &StudentPaper{
			ID:       uuid.NewString(),
			Identity: *g.Payload,
			Status:   StatusProcessing,
		}
		page := t.attach(img)
		return Outcome{Paper: t.current, Page: page, Closed: closed}
	}

	if g != nil {
		t.transform = geometry.FromBoxes(t.templateAnchor, g.Box)
		t.hasTransform = true
	}

	if t.current == nil {
		t.current = &StudentPaper{
			ID:           uuid.NewString(),
			Status:       StatusError,
			ErrorMessage: "first page missing identity marker",
		}
	}
	page := t.attach(img)
	return Outcome{Paper: t.current, Page: page}
}

// Close finalizes the stream, returning the still-active paper (if any).
// Grading happens per page as pages arrive, so the returned paper is not
// necessarily done yet.
func (t *Tracker) Close() *StudentPaper {
	p := t.current
	t.current = nil
	return p
}

func (t *Tracker) attach(img image.Image) *Page {
	t.current.Pages = append(t.current.Pages, Page{
		TemplatePage: len(t.current.Pages) + 1,
		Image:        img,
		Transform:    t.transform,
	})
	return &t.current.Pages[len(t.current.Pages)-1]
}
