package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"net/http"
	"strings"
	"time"
)

// ClientConfig configures the HTTP OCR client.
type ClientConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// DefaultClientConfig returns defaults suitable for a local service.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		BaseURL: "http://localhost:8090",
		Timeout: 30 * time.Second,
	}
}

// Client is the HTTP implementation of Service against the job API:
//
//	POST {base}/v1/ocr/tasks          {"image": <base64 png>, "scene": ...} -> {"task_id": ...}
//	GET  {base}/v1/ocr/tasks/{id}                                           -> {"status": ..., "text": ...}
type Client struct {
	cfg  ClientConfig
	http *http.Client
}

// NewClient creates an HTTP OCR client.
func NewClient(cfg ClientConfig) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultClientConfig().BaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultClientConfig().Timeout
	}
	return &Client{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}}
}

type submitRequest struct {
	Image string `json:"image"`
	Scene string `json:"scene,omitempty"`
}

type submitResponse struct {
	TaskID string `json:"task_id"`
}

// Submit implements Service.
func (c *Client) Submit(ctx context.Context, img image.Image, scene string) (string, error) {
	b64, err := EncodePNG(img)
	if err != nil {
		return "", fmt.Errorf("encode image: %w", err)
	}
	body, err := json.Marshal(submitRequest{Image: b64, Scene: scene})
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(c.cfg.BaseURL, "/")+"/v1/ocr/tasks", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("submit ocr task: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return "", fmt.Errorf("submit ocr task: unexpected status %s", resp.Status)
	}
	var out submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode submit response: %w", err)
	}
	if out.TaskID == "" {
		return "", fmt.Errorf("submit ocr task: empty task id")
	}
	return out.TaskID, nil
}

// Poll implements Service.
func (c *Client) Poll(ctx context.Context, taskID string) (Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		strings.TrimRight(c.cfg.BaseURL, "/")+"/v1/ocr/tasks/"+taskID, nil)
	if err != nil {
		return Result{}, err
	}
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("poll ocr task: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("poll ocr task: unexpected status %s", resp.Status)
	}
	var out Result
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Result{}, fmt.Errorf("decode poll response: %w", err)
	}
	switch out.Status {
	case StatusPending, StatusDone, StatusError:
		return out, nil
	default:
		return Result{}, fmt.Errorf("poll ocr task: unknown status %q", out.Status)
	}
}

func (c *Client) authorize(req *http.Request) {
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}
}

// EncodePNG renders an image to base64-encoded PNG, the wire format both
// external services accept.
func EncodePNG(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
