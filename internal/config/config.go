package config

import (
	"fmt"
	"time"

	"github.com/scanmark/scanmark/internal/score"
)

// Config represents the complete configuration for the scanmark application.
// It supports loading from configuration files, environment variables, and
// command-line flags.
type Config struct {
	// Global settings
	LogLevel string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose  bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	// Scoring behavior
	Scoring ScoringConfig `mapstructure:"scoring" yaml:"scoring" json:"scoring"`

	// External services
	OCR   ServiceConfig `mapstructure:"ocr" yaml:"ocr" json:"ocr"`
	Grade ServiceConfig `mapstructure:"grade" yaml:"grade" json:"grade"`

	// Output settings
	Output OutputConfig `mapstructure:"output" yaml:"output" json:"output"`

	// Metrics listener ("" disables)
	MetricsAddr string `mapstructure:"metrics_addr" yaml:"metrics_addr" json:"metrics_addr"`
}

// ScoringConfig contains the per-run scoring knobs.
type ScoringConfig struct {
	Policy       string  `mapstructure:"policy" yaml:"policy" json:"policy"`
	Tolerance    float64 `mapstructure:"tolerance" yaml:"tolerance" json:"tolerance"`
	IgnoreUnits  bool    `mapstructure:"ignore_units" yaml:"ignore_units" json:"ignore_units"`
	SynonymsFile string  `mapstructure:"synonyms_file" yaml:"synonyms_file" json:"synonyms_file"`
	Concurrency  int     `mapstructure:"concurrency" yaml:"concurrency" json:"concurrency"`
	BatchSize    int     `mapstructure:"batch_size" yaml:"batch_size" json:"batch_size"`
	TryHarder    bool    `mapstructure:"try_harder" yaml:"try_harder" json:"try_harder"`
}

// ServiceConfig describes one external HTTP service endpoint.
type ServiceConfig struct {
	BaseURL         string `mapstructure:"base_url" yaml:"base_url" json:"base_url"`
	APIKey          string `mapstructure:"api_key" yaml:"api_key" json:"api_key"`
	TimeoutSec      int    `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	PollIntervalMS  int    `mapstructure:"poll_interval_ms" yaml:"poll_interval_ms" json:"poll_interval_ms"`
	PollMaxAttempts int    `mapstructure:"poll_max_attempts" yaml:"poll_max_attempts" json:"poll_max_attempts"`
}

// Timeout returns the request timeout as a duration.
func (s ServiceConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutSec) * time.Second
}

// OutputConfig contains result output settings.
type OutputConfig struct {
	File    string `mapstructure:"file" yaml:"file" json:"file"`
	Overlay string `mapstructure:"overlay" yaml:"overlay" json:"overlay"` // directory for graded overlays, "" disables
}

// Validate checks configuration consistency.
func (c *Config) Validate() error {
	switch c.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log_level %q", c.LogLevel)
	}
	if c.Scoring.Policy != "" && !score.Policy(c.Scoring.Policy).Valid() {
		return fmt.Errorf("invalid scoring policy %q (want %q or %q)",
			c.Scoring.Policy, score.PolicyAllOrNothing, score.PolicyPartialMissingNoWrong)
	}
	if c.Scoring.Tolerance < 0 {
		return fmt.Errorf("scoring tolerance must be >= 0, got %v", c.Scoring.Tolerance)
	}
	if c.Scoring.Concurrency < 0 {
		return fmt.Errorf("scoring concurrency must be >= 0, got %d", c.Scoring.Concurrency)
	}
	if c.Scoring.BatchSize < 0 {
		return fmt.Errorf("scoring batch_size must be >= 0, got %d", c.Scoring.BatchSize)
	}
	return nil
}
