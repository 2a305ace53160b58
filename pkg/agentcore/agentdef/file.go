package agentdef

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	acerrors "github.com/randalmurphal/agentcore/pkg/agentcore/errors"
)

// IsDefinitionFile reports whether path has a supported extension
// (.yaml, .yml, .json).
func IsDefinitionFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
		return true
	}
	return false
}

// LoadFile reads and validates one definition file.
//
// Read failures keep the category of the underlying error, so running out of
// file descriptors is retryable while a missing file is not. Parse and
// validation failures are permanent.
func LoadFile(ctx context.Context, path string) (*Definition, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, acerrors.NewCategorized(err, acerrors.Categorize(err), "read "+path)
	}

	def, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return nil, acerrors.Permanent(err, "parse "+path)
	}
	if def.Name == "" {
		def.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if err := def.Validate(); err != nil {
		return nil, acerrors.Permanent(err, path)
	}
	def.Source = path
	return def, nil
}

// Parse decodes a definition. ext selects the format: ".json" for JSON,
// anything else for YAML.
func Parse(data []byte, ext string) (*Definition, error) {
	var def Definition
	if strings.EqualFold(ext, ".json") {
		if err := json.Unmarshal(data, &def); err != nil {
			return nil, fmt.Errorf("parse json: %w", err)
		}
		return &def, nil
	}
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	return &def, nil
}

// FileSource lists definition files in a directory.
type FileSource struct {
	Dir string
}

// List returns the definition files in Dir, sorted by path.
// Subdirectories are not scanned.
func (s FileSource) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return nil, fmt.Errorf("list definitions: %w", err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() || !IsDefinitionFile(e.Name()) {
			continue
		}
		paths = append(paths, filepath.Join(s.Dir, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

// Load reads one file from the source.
func (s FileSource) Load(ctx context.Context, path string) (*Definition, error) {
	return LoadFile(ctx, path)
}
