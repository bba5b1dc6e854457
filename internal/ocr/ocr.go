// Package ocr talks to the external OCR service through its asynchronous
// job API: submit an image, receive a task id, poll until the task settles.
// Service failures and timeouts degrade to "no text produced"; they never
// cross the package boundary as errors.
package ocr

import (
	"context"
	"image"
	"log/slog"
	"time"
)

// Status is the lifecycle state of an OCR task.
type Status string

const (
	StatusPending Status = "pending"
	StatusDone    Status = "done"
	StatusError   Status = "error"
)

// Result is the settled outcome of one OCR task.
type Result struct {
	Status Status `json:"status"`
	Text   string `json:"text,omitempty"`
}

// Service is the asynchronous OCR job API.
type Service interface {
	// Submit enqueues recognition of img and returns a task id. The scene
	// hint ("composite", "handwriting") is opaque to the caller; services
	// may ignore it.
	Submit(ctx context.Context, img image.Image, scene string) (string, error)

	// Poll reports the current state of a task. A done task carries its
	// recognized text.
	Poll(ctx context.Context, taskID string) (Result, error)
}

// Clock abstracts waiting between poll attempts so tests can run the loop
// without real time passing.
type Clock interface {
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RealClock returns a Clock backed by the wall clock.
func RealClock() Clock { return realClock{} }

// PollPolicy bounds the poll loop: fixed interval, fixed attempt count.
type PollPolicy struct {
	Interval    time.Duration
	MaxAttempts int
}

// DefaultPollPolicy returns the default poll bounds.
func DefaultPollPolicy() PollPolicy {
	return PollPolicy{Interval: 500 * time.Millisecond, MaxAttempts: 20}
}

// Recognize runs one image through the service and blocks until the task
// settles or the poll budget is exhausted. Every failure path resolves to
// an empty string: a submit error, a task in error state, attempts running
// out, or context cancellation. Callers score whatever text they get.
func Recognize(ctx context.Context, svc Service, clock Clock, policy PollPolicy, img image.Image, scene string) string {
	if svc == nil || img == nil {
		return ""
	}
	if clock == nil {
		clock = RealClock()
	}
	if policy.MaxAttempts <= 0 {
		policy = DefaultPollPolicy()
	}

	taskID, err := svc.Submit(ctx, img, scene)
	if err != nil {
		slog.Warn("ocr submit failed", "scene", scene, "error", err)
		return ""
	}

	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		res, err := svc.Poll(ctx, taskID)
		if err != nil {
			slog.Warn("ocr poll failed", "task", taskID, "attempt", attempt, "error", err)
			return ""
		}
		switch res.Status {
		case StatusDone:
			return res.Text
		case StatusError:
			slog.Warn("ocr task failed", "task", taskID)
			return ""
		case StatusPending:
			// fall through to wait
		}
		if attempt == policy.MaxAttempts {
			break
		}
		if err := clock.Sleep(ctx, policy.Interval); err != nil {
			return ""
		}
	}
	slog.Warn("ocr task did not settle", "task", taskID, "attempts", policy.MaxAttempts)
	return ""
}
