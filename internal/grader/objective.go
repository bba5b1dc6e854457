package grader

import (
	"context"
	"log/slog"

	"github.com/scanmark/scanmark/internal/geometry"
	"github.com/scanmark/scanmark/internal/ocr"
	"github.com/scanmark/scanmark/internal/score"
	"github.com/scanmark/scanmark/internal/session"
	"github.com/scanmark/scanmark/internal/template"
)

// GradeObjective grades one objective-type group on one page: crop every
// region through the page transform, stitch the crops into tagged
// composites of at most BatchSize regions, run one OCR call per composite,
// and score the tag-matched lines. OCR failure or timeout degrades to the
// Unrecognized sentinel for the whole batch; it never aborts the page.
func (g *Grader) GradeObjective(ctx context.Context, page *session.Page, regions []template.QuestionRegion) []session.GradingResult {
	if len(regions) == 0 {
		return nil
	}

	results := make([]session.GradingResult, 0, len(regions))
	for start := 0; start < len(regions); start += g.cfg.BatchSize {
		end := min(start+g.cfg.BatchSize, len(regions))
		results = append(results, g.gradeObjectiveBatch(ctx, page, regions[start:end], start)...)
	}
	return results
}

func (g *Grader) gradeObjectiveBatch(ctx context.Context, page *session.Page, regions []template.QuestionRegion, offset int) []session.GradingResult {
	type placed struct {
		region  template.QuestionRegion
		tag     string
		pageBox geometry.Box
	}

	labels := make([]string, len(regions))
	for i, r := range regions {
		labels[i] = r.Label
	}
	tags := tagsForBatch(labels, offset)

	placements := make([]placed, 0, len(regions))
	crops := make([]taggedCrop, 0, len(regions))
	for i, r := range regions {
		pageBox := page.Transform.Apply(r.Rect)
		placements = append(placements, placed{region: r, tag: tags[i], pageBox: pageBox})
		crops = append(crops, taggedCrop{tag: tags[i], img: geometry.CropBox(page.Image, pageBox)})
	}

	composite := stitchTagged(crops)
	text := ocr.Recognize(ctx, g.ocrSvc, g.cfg.Clock, g.cfg.PollPolicy, composite, SceneComposite)
	if text == "" {
		slog.Debug("objective batch produced no text", "regions", len(regions))
	}
	answers := parseTagged(text)

	results := make([]session.GradingResult, 0, len(placements))
	for _, p := range placements {
		extracted, ok := answers[p.tag]
		if !ok {
			extracted = Unrecognized
		}
		results = append(results, session.GradingResult{
			QuestionID:      p.region.ID,
			Label:           p.region.Label,
			Page:            page.TemplatePage,
			ExtractedAnswer: extracted,
			Score:           g.scoreObjective(p.region, extracted),
			Region:          p.pageBox,
			ScoreMark:       page.Transform.ApplyPoint(p.region.ScoreMarkPoint()),
		})
	}
	return results
}

// scoreObjective applies the per-type scoring rule.
func (g *Grader) scoreObjective(r template.QuestionRegion, extracted string) float64 {
	if extracted == Unrecognized {
		return 0
	}
	switch r.Type {
	case template.SingleChoice:
		return score.SingleChoice(r.ExpectedAnswer, extracted, r.MaxPoints)
	case template.MultipleChoice:
		return score.MultipleChoice(r.ExpectedAnswer, extracted, r.MaxPoints, g.cfg.Rules.Policy)
	case template.TrueFalse:
		return score.TrueFalse(r.ExpectedAnswer, extracted, r.MaxPoints)
	case template.FillInBlank:
		return score.FillInBlank(r.ExpectedAnswer, extracted, r.MaxPoints, g.cfg.Rules)
	default:
		return 0
	}
}
