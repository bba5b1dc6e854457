// Package aigrade calls the external AI rubric-grading service for
// free-response questions. The service receives the cropped answer image,
// the question text with optional rubric, the expected answer, the point
// budget and any OCR text, and returns a score with textual feedback.
package aigrade

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Request is one grading call.
type Request struct {
	ImageBase64    string  `json:"image"`
	Question       string  `json:"question"`
	ExpectedAnswer string  `json:"expected_answer"`
	MaxPoints      float64 `json:"max_points"`
	OCRText        string  `json:"ocr_text,omitempty"`
}

// Result is the service's verdict. StudentAnswer is the service's own
// reading of the handwriting and may be better than the OCR text.
type Result struct {
	Score         float64 `json:"score"`
	Feedback      string  `json:"feedback"`
	StudentAnswer string  `json:"student_answer,omitempty"`
}

// Service grades one free-response answer.
type Service interface {
	Grade(ctx context.Context, req Request) (Result, error)
}

// ClientConfig configures the HTTP grading client.
type ClientConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// DefaultClientConfig returns defaults suitable for a local service.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		BaseURL: "http://localhost:8091",
		Timeout: 60 * time.Second,
	}
}

// Client is the HTTP implementation of Service:
//
//	POST {base}/v1/grade  Request -> Result
type Client struct {
	cfg  ClientConfig
	http *http.Client
}

// NewClient creates an HTTP grading client.
func NewClient(cfg ClientConfig) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultClientConfig().BaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultClientConfig().Timeout
	}
	return &Client{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}}
}

// Grade implements Service.
func (c *Client) Grade(ctx context.Context, r Request) (Result, error) {
	body, err := json.Marshal(r)
	if err != nil {
		return Result{}, fmt.Errorf("encode grade request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(c.cfg.BaseURL, "/")+"/v1/grade", bytes.NewReader(body))
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("grade request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("grade request: unexpected status %s", resp.Status)
	}
	var out Result
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Result{}, fmt.Errorf("decode grade response: %w", err)
	}
	if out.Score < 0 {
		out.Score = 0
	}
	if out.Score > r.MaxPoints {
		out.Score = r.MaxPoints
	}
	return out, nil
}
