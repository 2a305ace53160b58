package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format is the encoding of a runtime config file.
type Format string

// Supported formats.
const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// FormatOf picks the format from path's extension (.yaml, .yml, .json).
func FormatOf(path string) (Format, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unsupported config file extension %q", ext)
	}
}

// Parse decodes a runtime config document. ${VAR} references are expanded
// through lookup (os.LookupEnv when nil) before decoding; unset variables
// expand to "". An empty document yields an empty Config.
func Parse(data []byte, format Format, lookup func(string) (string, bool)) (Config, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	expanded := os.Expand(string(data), func(name string) string {
		v, _ := lookup(name)
		return v
	})

	var m map[string]any
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal([]byte(expanded), &m); err != nil {
			return Config{}, fmt.Errorf("parse yaml: %w", err)
		}
	case FormatJSON:
		if strings.TrimSpace(expanded) == "" {
			break
		}
		if err := json.Unmarshal([]byte(expanded), &m); err != nil {
			return Config{}, fmt.Errorf("parse json: %w", err)
		}
	default:
		return Config{}, fmt.Errorf("unsupported config format %q", format)
	}
	return New(m), nil
}

// FromFile reads the config file at path, choosing the format by extension
// and expanding ${VAR} references from the process environment.
func FromFile(path string) (Config, error) {
	return readFile(path, nil)
}

func readFile(path string, lookup func(string) (string, bool)) (Config, error) {
	format, err := FormatOf(path)
	if err != nil {
		return Config{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	cfg, err := Parse(data, format, lookup)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// LoadSettingsFile resolves the runtime Settings from the config file at
// path: file values over DefaultSettings, then AGENTCORE_* overrides from
// lookup (os.LookupEnv when nil), then Normalize. A missing file is not an
// error; the result is the defaults with overrides applied.
func LoadSettingsFile(path string, lookup func(string) (string, bool)) (Settings, error) {
	cfg, err := readFile(path, lookup)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Settings{}, err
	}
	return LoadSettings(cfg).ApplyEnv(lookup).Normalize(), nil
}
