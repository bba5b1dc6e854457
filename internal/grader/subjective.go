package grader

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"strings"
	"sync"

	"github.com/scanmark/scanmark/internal/aigrade"
	"github.com/scanmark/scanmark/internal/geometry"
	"github.com/scanmark/scanmark/internal/ocr"
	"github.com/scanmark/scanmark/internal/session"
	"github.com/scanmark/scanmark/internal/template"
)

var errNoGradingService = errors.New("no grading service configured")

// GradeSubjective grades the free-response regions of one page under a
// bounded worker pool, capping simultaneous AI-service calls. The pool
// drains before returning, and results come back in region order. A failed
// question records score 0 with the error in its feedback; siblings are
// unaffected.
func (g *Grader) GradeSubjective(ctx context.Context, page *session.Page, regions []template.QuestionRegion) []session.GradingResult {
	if len(regions) == 0 {
		return nil
	}

	type job struct {
		index  int
		region template.QuestionRegion
	}
	type outcome struct {
		index  int
		result session.GradingResult
	}

	workers := min(g.cfg.Concurrency, len(regions))
	jobs := make(chan job, len(regions))
	outcomes := make(chan outcome, len(regions))

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				outcomes <- outcome{index: j.index, result: g.gradeOneSubjective(ctx, page, j.region)}
			}
		}()
	}

	for i, r := range regions {
		jobs <- job{index: i, region: r}
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(outcomes)
	}()

	results := make([]session.GradingResult, len(regions))
	for o := range outcomes {
		results[o.index] = o.result
	}
	return results
}

// gradeOneSubjective crops, OCRs best-effort, and calls the AI service.
func (g *Grader) gradeOneSubjective(ctx context.Context, page *session.Page, r template.QuestionRegion) session.GradingResult {
	pageBox := page.Transform.Apply(r.Rect)
	result := session.GradingResult{
		QuestionID: r.ID,
		Label:      r.Label,
		Page:       page.TemplatePage,
		Region:     pageBox,
		ScoreMark:  page.Transform.ApplyPoint(r.ScoreMarkPoint()),
	}

	crop := geometry.CropBox(page.Image, pageBox)

	// OCR here is best effort: the AI service can still grade from the
	// image alone.
	ocrText := ocr.Recognize(ctx, g.ocrSvc, g.cfg.Clock, g.cfg.PollPolicy, crop, SceneHandwriting)
	result.ExtractedAnswer = ocrText

	graded, err := g.callGradeService(ctx, crop, r, ocrText)
	if err != nil {
		slog.Warn("subjective grading failed", "question", r.ID, "error", err)
		result.Score = 0
		result.Feedback = "Grading failed: " + err.Error()
		return result
	}

	result.Score = graded.Score
	result.Feedback = graded.Feedback
	// The AI may have done its own recognition; prefer the longer reading.
	if len(graded.StudentAnswer) > len(ocrText) {
		result.ExtractedAnswer = graded.StudentAnswer
	}
	return result
}

func (g *Grader) callGradeService(ctx context.Context, crop image.Image, r template.QuestionRegion, ocrText string) (aigrade.Result, error) {
	if g.aiSvc == nil {
		return aigrade.Result{}, errNoGradingService
	}
	b64, err := ocr.EncodePNG(crop)
	if err != nil {
		return aigrade.Result{}, fmt.Errorf("encode crop: %w", err)
	}
	return g.aiSvc.Grade(ctx, aigrade.Request{
		ImageBase64:    b64,
		Question:       subjectivePrompt(r),
		ExpectedAnswer: r.ExpectedAnswer,
		MaxPoints:      r.MaxPoints,
		OCRText:        ocrText,
	})
}

// subjectivePrompt composes the question text sent to the AI service.
func subjectivePrompt(r template.QuestionRegion) string {
	if strings.TrimSpace(r.RubricText) == "" {
		return r.Label
	}
	return fmt.Sprintf("%s\nRubric: %s", r.Label, r.RubricText)
}
