package grader

import (
	"context"
	"errors"
	"image"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scanmark/scanmark/internal/aigrade"
	"github.com/scanmark/scanmark/internal/geometry"
	"github.com/scanmark/scanmark/internal/ocr"
	"github.com/scanmark/scanmark/internal/session"
	"github.com/scanmark/scanmark/internal/template"
	"github.com/scanmark/scanmark/internal/testutil"
)

// fixedOCR answers every submitted task immediately with the same text.
type fixedOCR struct {
	mu      sync.Mutex
	text    string
	submits int
}

func (s *fixedOCR) Submit(context.Context, image.Image, string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submits++
	return "task", nil
}

func (s *fixedOCR) Poll(context.Context, string) (ocr.Result, error) {
	return ocr.Result{Status: ocr.StatusDone, Text: s.text}, nil
}

func (s *fixedOCR) submitCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submits
}

// stuckOCR accepts tasks that never settle.
type stuckOCR struct{}

func (stuckOCR) Submit(context.Context, image.Image, string) (string, error) { return "task", nil }
func (stuckOCR) Poll(context.Context, string) (ocr.Result, error) {
	return ocr.Result{Status: ocr.StatusPending}, nil
}

// noSleepClock makes poll loops spin instead of waiting.
type noSleepClock struct{}

func (noSleepClock) Sleep(context.Context, time.Duration) error { return nil }

func testPage() *session.Page {
	return &session.Page{
		TemplatePage: 1,
		Image:        testutil.NewSheet(400, 600),
		Transform:    geometry.Identity(),
	}
}

func choiceRegion(id, label, expected string, points float64, y float64) template.QuestionRegion {
	return template.QuestionRegion{
		ID:             id,
		Label:          label,
		Type:           template.SingleChoice,
		Rect:           geometry.Box{X: 50, Y: y, W: 200, H: 30},
		Page:           1,
		ExpectedAnswer: expected,
		MaxPoints:      points,
	}
}

func TestGradeObjective(t *testing.T) {
	svc := &fixedOCR{text: "Q1: A\nQ2: B\nQ3: garbled"}
	g := New(svc, nil, Config{Clock: noSleepClock{}})

	regions := []template.QuestionRegion{
		choiceRegion("q1", "Question 1", "A", 5, 100),
		choiceRegion("q2", "Question 2", "C", 3, 140),
		choiceRegion("q3", "Question 3", "B", 2, 180),
		choiceRegion("q4", "Question 4", "D", 2, 220),
	}

	results := g.GradeObjective(context.Background(), testPage(), regions)
	require.Len(t, results, 4)

	assert.Equal(t, "A", results[0].ExtractedAnswer)
	assert.Equal(t, 5.0, results[0].Score)

	assert.Equal(t, "B", results[1].ExtractedAnswer)
	assert.Equal(t, 0.0, results[1].Score, "wrong letter scores zero")

	assert.Equal(t, "garbled", results[2].ExtractedAnswer)
	assert.Equal(t, 0.0, results[2].Score)

	assert.Equal(t, Unrecognized, results[3].ExtractedAnswer, "tag absent from OCR output")
	assert.Equal(t, 0.0, results[3].Score)

	for i, r := range results {
		assert.Equal(t, regions[i].ID, r.QuestionID, "results keep region order")
		assert.Equal(t, 1, r.Page)
		assert.False(t, r.Region.Empty())
	}
	assert.Equal(t, 1, svc.submitCount(), "four regions fit one batch")
}

func TestGradeObjectiveRerunIsDeterministic(t *testing.T) {
	svc := &fixedOCR{text: "Q1: A\nQ2: BD"}
	g := New(svc, nil, Config{Clock: noSleepClock{}})
	regions := []template.QuestionRegion{
		choiceRegion("q1", "Question 1", "A", 5, 100),
		choiceRegion("q2", "Question 2", "C", 3, 140),
	}

	first := g.GradeObjective(context.Background(), testPage(), regions)
	second := g.GradeObjective(context.Background(), testPage(), regions)
	assert.Equal(t, first, second)
}

func TestGradeObjectiveChunksByBatchSize(t *testing.T) {
	svc := &fixedOCR{text: ""}
	g := New(svc, nil, Config{BatchSize: 2, Clock: noSleepClock{}})

	regions := make([]template.QuestionRegion, 0, 5)
	for i := range 5 {
		regions = append(regions, choiceRegion("q"+strconv.Itoa(i+1), "Question", "A", 1, float64(100+40*i)))
	}

	results := g.GradeObjective(context.Background(), testPage(), regions)
	assert.Len(t, results, 5)
	assert.Equal(t, 3, svc.submitCount(), "five regions at batch size two need three calls")
}

func TestGradeObjectiveCollidingLabels(t *testing.T) {
	svc := &fixedOCR{text: "Q1: A\nQ2: B"}
	g := New(svc, nil, Config{Clock: noSleepClock{}})

	// Both labels carry the digit 1; the second must not read Q1's line.
	regions := []template.QuestionRegion{
		choiceRegion("q1", "Question 1", "A", 5, 100),
		choiceRegion("q2", "1st part", "B", 3, 140),
	}

	results := g.GradeObjective(context.Background(), testPage(), regions)
	require.Len(t, results, 2)
	assert.Equal(t, "A", results[0].ExtractedAnswer)
	assert.Equal(t, 5.0, results[0].Score)
	assert.Equal(t, "B", results[1].ExtractedAnswer)
	assert.Equal(t, 3.0, results[1].Score)
}

func TestGradeObjectiveOCRNeverSettles(t *testing.T) {
	g := New(stuckOCR{}, nil, Config{
		Clock:      noSleepClock{},
		PollPolicy: ocr.PollPolicy{Interval: time.Millisecond, MaxAttempts: 3},
	})
	regions := []template.QuestionRegion{
		choiceRegion("q1", "Question 1", "A", 5, 100),
		choiceRegion("q2", "Question 2", "B", 3, 140),
	}

	results := g.GradeObjective(context.Background(), testPage(), regions)
	require.Len(t, results, 2, "poll exhaustion must not drop results or hang")
	for _, r := range results {
		assert.Equal(t, Unrecognized, r.ExtractedAnswer)
		assert.Equal(t, 0.0, r.Score)
	}
}

func TestGradeObjectiveEmpty(t *testing.T) {
	g := New(&fixedOCR{}, nil, Config{Clock: noSleepClock{}})
	assert.Nil(t, g.GradeObjective(context.Background(), testPage(), nil))
}

// countingGrader tracks concurrent in-flight calls.
type countingGrader struct {
	mu       sync.Mutex
	inFlight int
	peak     int
	calls    int
	fail     map[string]bool // by expected answer
}

func (s *countingGrader) Grade(_ context.Context, req aigrade.Request) (aigrade.Result, error) {
	s.mu.Lock()
	s.inFlight++
	s.calls++
	if s.inFlight > s.peak {
		s.peak = s.inFlight
	}
	s.mu.Unlock()

	time.Sleep(5 * time.Millisecond)

	s.mu.Lock()
	s.inFlight--
	fail := s.fail[req.ExpectedAnswer]
	s.mu.Unlock()

	if fail {
		return aigrade.Result{}, errors.New("model unavailable")
	}
	return aigrade.Result{Score: req.MaxPoints / 2, Feedback: "partially correct"}, nil
}

func subjectiveRegion(id, expected string, points float64, y float64) template.QuestionRegion {
	return template.QuestionRegion{
		ID:             id,
		Label:          "Essay " + id,
		Type:           template.Subjective,
		Rect:           geometry.Box{X: 50, Y: y, W: 300, H: 80},
		Page:           1,
		ExpectedAnswer: expected,
		MaxPoints:      points,
	}
}

func TestGradeSubjective(t *testing.T) {
	ai := &countingGrader{}
	g := New(&fixedOCR{text: "student wrote this"}, ai, Config{Clock: noSleepClock{}})

	regions := []template.QuestionRegion{
		subjectiveRegion("s1", "cell theory", 10, 100),
		subjectiveRegion("s2", "osmosis", 6, 200),
	}
	results := g.GradeSubjective(context.Background(), testPage(), regions)
	require.Len(t, results, 2)

	assert.Equal(t, "s1", results[0].QuestionID, "results come back in region order")
	assert.Equal(t, 5.0, results[0].Score)
	assert.Equal(t, "partially correct", results[0].Feedback)
	assert.Equal(t, "student wrote this", results[0].ExtractedAnswer)
	assert.Equal(t, 3.0, results[1].Score)
}

func TestGradeSubjectiveBoundsConcurrency(t *testing.T) {
	ai := &countingGrader{}
	g := New(&fixedOCR{}, ai, Config{Concurrency: 2, Clock: noSleepClock{}})

	regions := make([]template.QuestionRegion, 0, 8)
	for i := range 8 {
		regions = append(regions, subjectiveRegion("s"+strconv.Itoa(i+1), "key", 4, float64(60*i+50)))
	}
	results := g.GradeSubjective(context.Background(), testPage(), regions)

	assert.Len(t, results, 8)
	assert.Equal(t, 8, ai.calls)
	assert.LessOrEqual(t, ai.peak, 2, "never more than the configured calls in flight")
}

func TestGradeSubjectiveFailureIsolated(t *testing.T) {
	ai := &countingGrader{fail: map[string]bool{"osmosis": true}}
	g := New(&fixedOCR{}, ai, Config{Clock: noSleepClock{}})

	regions := []template.QuestionRegion{
		subjectiveRegion("s1", "cell theory", 10, 100),
		subjectiveRegion("s2", "osmosis", 6, 200),
	}
	results := g.GradeSubjective(context.Background(), testPage(), regions)
	require.Len(t, results, 2)

	assert.Equal(t, 5.0, results[0].Score, "healthy sibling unaffected")
	assert.Equal(t, 0.0, results[1].Score)
	assert.Contains(t, results[1].Feedback, "Grading failed:")
	assert.Contains(t, results[1].Feedback, "model unavailable")
}

func TestGradeSubjectiveNoServiceConfigured(t *testing.T) {
	g := New(&fixedOCR{}, nil, Config{Clock: noSleepClock{}})

	results := g.GradeSubjective(context.Background(), testPage(),
		[]template.QuestionRegion{subjectiveRegion("s1", "key", 10, 100)})
	require.Len(t, results, 1)
	assert.Equal(t, 0.0, results[0].Score)
	assert.Contains(t, results[0].Feedback, "Grading failed:")
}

func TestGradeSubjectivePrefersLongerAnswer(t *testing.T) {
	long := "the service read the handwriting rather well"
	ai := &readingGrader{answer: long}
	g := New(&fixedOCR{text: "short"}, ai, Config{Clock: noSleepClock{}})

	results := g.GradeSubjective(context.Background(), testPage(),
		[]template.QuestionRegion{subjectiveRegion("s1", "key", 10, 100)})
	require.Len(t, results, 1)
	assert.Equal(t, long, results[0].ExtractedAnswer)
}

type readingGrader struct{ answer string }

func (s *readingGrader) Grade(_ context.Context, req aigrade.Request) (aigrade.Result, error) {
	return aigrade.Result{Score: req.MaxPoints, StudentAnswer: s.answer}, nil
}

func TestNewAppliesDefaults(t *testing.T) {
	g := New(&fixedOCR{}, nil, Config{})
	cfg := g.Config()
	assert.Equal(t, DefaultConfig().BatchSize, cfg.BatchSize)
	assert.Equal(t, DefaultConfig().Concurrency, cfg.Concurrency)
	assert.NotNil(t, cfg.Clock)
	assert.True(t, cfg.Rules.Policy.Valid())
}
