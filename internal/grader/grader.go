// Package grader scores the answer regions of one scanned page: objective
// types through batched OCR and deterministic rules, free-response types
// through the AI grading service under bounded concurrency.
package grader

import (
	"github.com/scanmark/scanmark/internal/aigrade"
	"github.com/scanmark/scanmark/internal/ocr"
	"github.com/scanmark/scanmark/internal/score"
)

// Unrecognized is the sentinel extracted answer for regions whose tag never
// showed up in the OCR output. It scores zero like any wrong answer.
const Unrecognized = "<unrecognized>"

// Scene hints passed to the OCR service.
const (
	SceneComposite   = "composite"
	SceneHandwriting = "handwriting"
)

// Config holds grading behavior knobs.
type Config struct {
	// BatchSize caps regions per stitched OCR call, bounding external
	// request size and latency.
	BatchSize int

	// Concurrency caps simultaneous AI-service calls for subjective
	// questions on one page.
	Concurrency int

	Rules      score.Rules
	PollPolicy ocr.PollPolicy
	Clock      ocr.Clock
}

// DefaultConfig returns the reference grading configuration.
func DefaultConfig() Config {
	return Config{
		BatchSize:   12,
		Concurrency: 3,
		Rules:       score.DefaultRules(),
		PollPolicy:  ocr.DefaultPollPolicy(),
		Clock:       ocr.RealClock(),
	}
}

// Grader grades regions against the external services.
type Grader struct {
	ocrSvc ocr.Service
	aiSvc  aigrade.Service
	cfg    Config
}

// New creates a grader. ocrSvc is required for objective grading; aiSvc
// for subjective grading — a missing service degrades those questions to
// failed results rather than panicking.
func New(ocrSvc ocr.Service, aiSvc aigrade.Service, cfg Config) *Grader {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultConfig().BatchSize
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConfig().Concurrency
	}
	if cfg.Clock == nil {
		cfg.Clock = ocr.RealClock()
	}
	if cfg.PollPolicy.MaxAttempts <= 0 {
		cfg.PollPolicy = ocr.DefaultPollPolicy()
	}
	if !cfg.Rules.Policy.Valid() {
		cfg.Rules.Policy = score.PolicyAllOrNothing
	}
	return &Grader{ocrSvc: ocrSvc, aiSvc: aiSvc, cfg: cfg}
}

// Config returns a copy of the grader configuration.
func (g *Grader) Config() Config { return g.cfg }
