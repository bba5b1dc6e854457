// Package pipeline orchestrates a grading run: sequential page ingestion
// through the session tracker, per-page objective and subjective grading,
// and hand-off of closed papers to the downstream consumer.
package pipeline

import (
	"errors"

	"github.com/scanmark/scanmark/internal/aigrade"
	"github.com/scanmark/scanmark/internal/anchor"
	"github.com/scanmark/scanmark/internal/grader"
	"github.com/scanmark/scanmark/internal/ocr"
	"github.com/scanmark/scanmark/internal/score"
	"github.com/scanmark/scanmark/internal/template"
)

// Config holds configuration for a grading run.
type Config struct {
	Template  *template.Template
	TryHarder bool // exhaustive anchor search on noisy scans
	Grading   grader.Config
	Progress  ProgressCallback
}

// DefaultConfig returns a default pipeline config with component defaults.
func DefaultConfig() Config {
	return Config{
		Grading:  grader.DefaultConfig(),
		Progress: NoOpProgressCallback{},
	}
}

// Builder constructs a Pipeline with fluent configuration.
type Builder struct {
	cfg    Config
	ocrSvc ocr.Service
	aiSvc  aigrade.Service
}

// NewBuilder creates a new pipeline builder with defaults.
func NewBuilder() *Builder { return &Builder{cfg: DefaultConfig()} }

// WithTemplate sets the answer-region template for the run.
func (b *Builder) WithTemplate(t *template.Template) *Builder {
	b.cfg.Template = t
	return b
}

// WithOCRService sets the OCR job service.
func (b *Builder) WithOCRService(svc ocr.Service) *Builder {
	b.ocrSvc = svc
	return b
}

// WithGradeService sets the AI grading service for subjective questions.
func (b *Builder) WithGradeService(svc aigrade.Service) *Builder {
	b.aiSvc = svc
	return b
}

// WithPolicy selects the multiple-choice credit policy.
func (b *Builder) WithPolicy(p score.Policy) *Builder {
	if p.Valid() {
		b.cfg.Grading.Rules.Policy = p
	}
	return b
}

// WithTolerance sets the numeric tolerance for fill-in-blank comparison.
func (b *Builder) WithTolerance(t float64) *Builder {
	if t >= 0 {
		b.cfg.Grading.Rules.Tolerance = t
	}
	return b
}

// WithIgnoreUnits toggles unit-insensitive numeric fill-in-blank comparison.
func (b *Builder) WithIgnoreUnits(enabled bool) *Builder {
	b.cfg.Grading.Rules.IgnoreUnits = enabled
	return b
}

// WithSynonyms sets the fill-in-blank synonym rules ("from=to" lines).
func (b *Builder) WithSynonyms(rules string) *Builder {
	b.cfg.Grading.Rules.Synonyms = score.ParseSynonyms(rules)
	return b
}

// WithConcurrency caps simultaneous AI-service calls per page.
func (b *Builder) WithConcurrency(n int) *Builder {
	if n > 0 {
		b.cfg.Grading.Concurrency = n
	}
	return b
}

// WithBatchSize caps regions per stitched OCR call.
func (b *Builder) WithBatchSize(n int) *Builder {
	if n > 0 {
		b.cfg.Grading.BatchSize = n
	}
	return b
}

// WithPollPolicy overrides OCR poll bounds.
func (b *Builder) WithPollPolicy(p ocr.PollPolicy) *Builder {
	if p.MaxAttempts > 0 {
		b.cfg.Grading.PollPolicy = p
	}
	return b
}

// WithClock injects the waiting clock, for tests.
func (b *Builder) WithClock(c ocr.Clock) *Builder {
	if c != nil {
		b.cfg.Grading.Clock = c
	}
	return b
}

// WithTryHarder enables exhaustive anchor search.
func (b *Builder) WithTryHarder(enabled bool) *Builder {
	b.cfg.TryHarder = enabled
	return b
}

// WithProgressCallback sets the progress callback for the run.
func (b *Builder) WithProgressCallback(cb ProgressCallback) *Builder {
	if cb != nil {
		b.cfg.Progress = cb
	}
	return b
}

// Config returns a copy of the current config.
func (b *Builder) Config() Config { return b.cfg }

// Validate checks that the configuration can grade anything at all.
func (b *Builder) Validate() error {
	if b.cfg.Template == nil {
		return errors.New("pipeline: template is required")
	}
	if err := b.cfg.Template.Validate(); err != nil {
		return err
	}
	if b.ocrSvc == nil {
		return errors.New("pipeline: OCR service is required")
	}
	return nil
}

// Pipeline wires the anchor detector, session tracker and graders together
// for one run.
type Pipeline struct {
	cfg      Config
	detector *anchor.Detector
	grader   *grader.Grader
}

// Build initializes the grading pipeline.
func (b *Builder) Build() (*Pipeline, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return &Pipeline{
		cfg:      b.cfg,
		detector: anchor.NewDetector(b.cfg.TryHarder),
		grader:   grader.New(b.ocrSvc, b.aiSvc, b.cfg.Grading),
	}, nil
}

// Config returns the pipeline configuration.
func (p *Pipeline) Config() Config { return p.cfg }
