package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	// ConfigFileName is the base name for configuration files (without extension).
	ConfigFileName = "scanmark"

	// EnvPrefix is the prefix for environment variables.
	EnvPrefix = "SCANMARK"
)

// Loader handles loading configuration from various sources.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a new configuration loader. It uses the global viper
// instance so cobra flag bindings keep working.
func NewLoader() *Loader {
	return &Loader{v: viper.GetViper()}
}

// Load loads configuration from files, environment variables, and defaults,
// then validates it.
func (l *Loader) Load() (*Config, error) {
	l.v.SetConfigName(ConfigFileName)
	l.v.SetConfigType("yaml")
	l.addConfigPaths()
	l.setupEnvironmentVariables()
	l.setDefaults()

	if err := l.v.ReadInConfig(); err != nil {
		// Missing config file is fine; defaults and env vars apply.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := l.v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &config, nil
}

// LoadWithFile loads configuration from an explicit file path instead of
// searching the default locations.
func (l *Loader) LoadWithFile(path string) (*Config, error) {
	l.v.SetConfigFile(path)
	l.setupEnvironmentVariables()
	l.setDefaults()

	if err := l.v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}
	var config Config
	if err := l.v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &config, nil
}

// GetViper exposes the underlying viper instance for flag binding.
func (l *Loader) GetViper() *viper.Viper { return l.v }

func (l *Loader) addConfigPaths() {
	l.v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		l.v.AddConfigPath(home)
		l.v.AddConfigPath(filepath.Join(home, ".config", "scanmark"))
	}
	l.v.AddConfigPath("/etc/scanmark")
}

func (l *Loader) setupEnvironmentVariables() {
	l.v.SetEnvPrefix(EnvPrefix)
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	l.v.AutomaticEnv()
}

func (l *Loader) setDefaults() {
	l.v.SetDefault("log_level", "info")
	l.v.SetDefault("verbose", false)

	l.v.SetDefault("scoring.policy", "all_or_nothing")
	l.v.SetDefault("scoring.tolerance", 0.0)
	l.v.SetDefault("scoring.ignore_units", false)
	l.v.SetDefault("scoring.concurrency", 3)
	l.v.SetDefault("scoring.batch_size", 12)
	l.v.SetDefault("scoring.try_harder", false)

	l.v.SetDefault("ocr.base_url", "http://localhost:8090")
	l.v.SetDefault("ocr.timeout_sec", 30)
	l.v.SetDefault("ocr.poll_interval_ms", 500)
	l.v.SetDefault("ocr.poll_max_attempts", 20)

	l.v.SetDefault("grade.base_url", "http://localhost:8091")
	l.v.SetDefault("grade.timeout_sec", 60)

	l.v.SetDefault("metrics_addr", "")
}
