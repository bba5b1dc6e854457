package pipeline

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/scanmark/scanmark/internal/render"
	"github.com/scanmark/scanmark/internal/session"
	"github.com/scanmark/scanmark/internal/template"
)

// Sink receives each student paper as it is finalized. The pipeline does
// not persist anything itself.
type Sink func(*session.StudentPaper)

// Run consumes the scanned pages in order and returns every paper the
// stream produced, in closing order. Page ingestion is strictly
// sequential: the tracker's decision for page n depends on page n-1.
// There is no mid-paper cancellation: cancelling ctx stops ingestion at
// the next page boundary and in-flight work finishes naturally.
func (p *Pipeline) Run(ctx context.Context, pages []render.Page, sink Sink) ([]*session.StudentPaper, error) {
	tmpl := p.cfg.Template
	tracker := session.NewTracker(tmpl.Anchor)
	progress := p.cfg.Progress
	if progress == nil {
		progress = NoOpProgressCallback{}
	}

	progress.OnStart(len(pages))
	defer progress.OnComplete()

	var papers []*session.StudentPaper
	// Finalizes whatever is active on early exit so nothing is silently
	// dropped.
	drain := func() {
		if open := tracker.Close(); open != nil {
			papers = append(papers, p.finalize(open, sink, progress))
		}
	}

	for i, page := range pages {
		if err := ctx.Err(); err != nil {
			drain()
			return papers, err
		}

		pagesProcessed.Inc()
		geom, err := p.detector.Detect(ctx, page.Image)
		if err != nil {
			drain()
			return papers, err
		}
		switch {
		case geom == nil:
			anchorDetections.WithLabelValues("missing").Inc()
		case geom.Payload != nil:
			anchorDetections.WithLabelValues("identity").Inc()
		default:
			anchorDetections.WithLabelValues("continuation").Inc()
		}

		outcome := tracker.Feed(page.Image, geom)
		if outcome.Closed != nil {
			papers = append(papers, p.finalize(outcome.Closed, sink, progress))
		}

		p.gradePage(ctx, outcome.Paper, outcome.Page)
		outcome.Paper.MarkDoneIfComplete(tmpl.RegionCountForPages(outcome.Paper.PageCount()))
		progress.OnPage(i+1, len(pages))
	}

	drain()
	return papers, nil
}

// gradePage grades every region group of one page, eagerly, as the page
// arrives. Objective groups run sequentially (each issues its own batched
// OCR call); subjective questions run under the bounded pool and drain
// before the page is considered complete.
func (p *Pipeline) gradePage(ctx context.Context, paper *session.StudentPaper, page *session.Page) {
	tmpl := p.cfg.Template
	if page.TemplatePage > tmpl.Pages {
		slog.Warn("page beyond template, skipping grading",
			"paper", paper.ID, "page", page.TemplatePage, "template_pages", tmpl.Pages)
		return
	}

	start := time.Now()
	for _, typ := range template.ObjectiveTypes {
		regions := tmpl.RegionsOfType(page.TemplatePage, typ)
		if len(regions) == 0 {
			continue
		}
		for _, r := range p.grader.GradeObjective(ctx, page, regions) {
			paper.AppendResult(r)
		}
		questionsGraded.WithLabelValues(string(typ)).Add(float64(len(regions)))
	}
	gradingDuration.WithLabelValues("objective").Observe(time.Since(start).Seconds())

	start = time.Now()
	subjective := tmpl.SubjectiveRegions(page.TemplatePage)
	if len(subjective) > 0 {
		for _, r := range p.grader.GradeSubjective(ctx, page, subjective) {
			if strings.HasPrefix(r.Feedback, "Grading failed:") {
				gradingFailures.Inc()
			}
			paper.AppendResult(r)
		}
		questionsGraded.WithLabelValues(string(template.Subjective)).Add(float64(len(subjective)))
	}
	gradingDuration.WithLabelValues("subjective").Observe(time.Since(start).Seconds())
}

func (p *Pipeline) finalize(paper *session.StudentPaper, sink Sink, progress ProgressCallback) *session.StudentPaper {
	paper.MarkDoneIfComplete(p.cfg.Template.RegionCountForPages(paper.PageCount()))
	papersTotal.WithLabelValues(string(paper.Status)).Inc()
	progress.OnPaperClosed(paper.ID, paper.TotalScore)
	if sink != nil {
		sink(paper)
	}
	return paper
}
