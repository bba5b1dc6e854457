package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func freshLoader() *Loader {
	return &Loader{v: viper.New()}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := freshLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "all_or_nothing", cfg.Scoring.Policy)
	assert.Equal(t, 3, cfg.Scoring.Concurrency)
	assert.Equal(t, 12, cfg.Scoring.BatchSize)
	assert.Equal(t, "http://localhost:8090", cfg.OCR.BaseURL)
	assert.Equal(t, 500, cfg.OCR.PollIntervalMS)
	assert.Equal(t, 20, cfg.OCR.PollMaxAttempts)
	assert.Equal(t, "http://localhost:8091", cfg.Grade.BaseURL)
	assert.Empty(t, cfg.MetricsAddr)
}

func TestLoadWithFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scanmark.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log_level: debug
scoring:
  policy: partial_missing_no_wrong
  tolerance: 0.5
  concurrency: 5
ocr:
  base_url: http://ocr.internal:9000
  api_key: k-123
`), 0o600))

	cfg, err := freshLoader().LoadWithFile(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "partial_missing_no_wrong", cfg.Scoring.Policy)
	assert.Equal(t, 0.5, cfg.Scoring.Tolerance)
	assert.Equal(t, 5, cfg.Scoring.Concurrency)
	assert.Equal(t, "http://ocr.internal:9000", cfg.OCR.BaseURL)
	assert.Equal(t, "k-123", cfg.OCR.APIKey)
	// Unset keys keep their defaults.
	assert.Equal(t, 12, cfg.Scoring.BatchSize)
	assert.Equal(t, "http://localhost:8091", cfg.Grade.BaseURL)
}

func TestLoadWithFileRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scanmark.yaml")
	require.NoError(t, os.WriteFile(path, []byte("scoring:\n  policy: generous\n"), 0o600))

	_, err := freshLoader().LoadWithFile(path)
	assert.Error(t, err)
}

func TestLoadWithFileMissing(t *testing.T) {
	_, err := freshLoader().LoadWithFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestEnvironmentOverride(t *testing.T) {
	t.Setenv("SCANMARK_SCORING_BATCH_SIZE", "6")
	t.Setenv("SCANMARK_OCR_BASE_URL", "http://env-ocr:8090")

	cfg, err := freshLoader().Load()
	require.NoError(t, err)
	assert.Equal(t, 6, cfg.Scoring.BatchSize)
	assert.Equal(t, "http://env-ocr:8090", cfg.OCR.BaseURL)
}
