package ocr

import (
	"context"
	"errors"
	"image"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// fakeClock records sleep requests without waiting.
type fakeClock struct {
	sleeps []time.Duration
	err    error
}

func (c *fakeClock) Sleep(_ context.Context, d time.Duration) error {
	c.sleeps = append(c.sleeps, d)
	return c.err
}

// scriptedService replays a fixed sequence of poll results.
type scriptedService struct {
	submitErr error
	pollErr   error
	script    []Result
	polls     int
}

func (s *scriptedService) Submit(context.Context, image.Image, string) (string, error) {
	if s.submitErr != nil {
		return "", s.submitErr
	}
	return "task-1", nil
}

func (s *scriptedService) Poll(context.Context, string) (Result, error) {
	if s.pollErr != nil {
		return Result{}, s.pollErr
	}
	i := s.polls
	s.polls++
	if i >= len(s.script) {
		i = len(s.script) - 1
	}
	return s.script[i], nil
}

func testImage() image.Image {
	return image.NewRGBA(image.Rect(0, 0, 8, 8))
}

func TestRecognizeSettlesAfterPending(t *testing.T) {
	svc := &scriptedService{script: []Result{
		{Status: StatusPending},
		{Status: StatusPending},
		{Status: StatusDone, Text: "Q1: A"},
	}}
	clock := &fakeClock{}
	policy := PollPolicy{Interval: 250 * time.Millisecond, MaxAttempts: 10}

	got := Recognize(context.Background(), svc, clock, policy, testImage(), "composite")
	assert.Equal(t, "Q1: A", got)
	assert.Equal(t, 3, svc.polls)
	assert.Equal(t, []time.Duration{250 * time.Millisecond, 250 * time.Millisecond}, clock.sleeps)
}

func TestRecognizeFailurePathsYieldEmptyText(t *testing.T) {
	policy := PollPolicy{Interval: time.Millisecond, MaxAttempts: 3}

	tests := []struct {
		name string
		svc  *scriptedService
	}{
		{"submit error", &scriptedService{submitErr: errors.New("service down")}},
		{"poll error", &scriptedService{pollErr: errors.New("bad gateway"), script: []Result{{}}}},
		{"task error", &scriptedService{script: []Result{{Status: StatusError}}}},
		{"never settles", &scriptedService{script: []Result{{Status: StatusPending}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Recognize(context.Background(), tt.svc, &fakeClock{}, policy, testImage(), "composite")
			assert.Equal(t, "", got)
		})
	}
}

func TestRecognizeStopsAtMaxAttempts(t *testing.T) {
	svc := &scriptedService{script: []Result{{Status: StatusPending}}}
	clock := &fakeClock{}
	policy := PollPolicy{Interval: time.Millisecond, MaxAttempts: 5}

	got := Recognize(context.Background(), svc, clock, policy, testImage(), "handwriting")
	assert.Equal(t, "", got)
	assert.Equal(t, 5, svc.polls)
	assert.Len(t, clock.sleeps, 4, "no sleep after the final attempt")
}

func TestRecognizeCancelledWhileWaiting(t *testing.T) {
	svc := &scriptedService{script: []Result{{Status: StatusPending}}}
	clock := &fakeClock{err: context.Canceled}
	policy := PollPolicy{Interval: time.Millisecond, MaxAttempts: 10}

	got := Recognize(context.Background(), svc, clock, policy, testImage(), "composite")
	assert.Equal(t, "", got)
	assert.Equal(t, 1, svc.polls)
}

func TestRecognizeNilInputs(t *testing.T) {
	assert.Equal(t, "", Recognize(context.Background(), nil, nil, PollPolicy{}, testImage(), "composite"))
	svc := &scriptedService{script: []Result{{Status: StatusDone, Text: "x"}}}
	assert.Equal(t, "", Recognize(context.Background(), svc, nil, PollPolicy{}, nil, "composite"))
}
