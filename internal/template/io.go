package template

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads a template from a JSON or YAML file, chosen by extension,
// and validates it.
func Load(path string) (*Template, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: user-provided template path is expected
	if err != nil {
		return nil, fmt.Errorf("read template: %w", err)
	}
	var t Template
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &t); err != nil {
			return nil, fmt.Errorf("parse template %s: %w", path, err)
		}
	case ".json":
		if err := json.Unmarshal(data, &t); err != nil {
			return nil, fmt.Errorf("parse template %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("unsupported template format %q (want .json, .yaml or .yml)", ext)
	}
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("invalid template %s: %w", path, err)
	}
	return &t, nil
}

// Save writes the template to a JSON or YAML file, chosen by extension.
// Saving then loading must round-trip every field.
func Save(t *Template, path string) error {
	var (
		data []byte
		err  error
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(t)
	case ".json":
		data, err = json.MarshalIndent(t, "", "  ")
	default:
		return fmt.Errorf("unsupported template format %q (want .json, .yaml or .yml)", ext)
	}
	if err != nil {
		return fmt.Errorf("encode template: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write template: %w", err)
	}
	return nil
}
