package agentdef

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/randalmurphal/agentcore/pkg/agentcore/config"
)

// Sentinel errors for definitions and stores.
var (
	// ErrInvalidDefinition indicates a definition failed validation.
	ErrInvalidDefinition = errors.New("invalid agent definition")

	// ErrNotFound indicates a definition doesn't exist.
	ErrNotFound = errors.New("agent definition not found")

	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("definition store closed")
)

// Duration is a time.Duration that reads "250ms"-style strings or bare
// numbers of milliseconds from YAML and JSON.
type Duration time.Duration

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// String formats d like time.Duration.
func (d Duration) String() string {
	return time.Duration(d).String()
}

// MarshalJSON encodes d as a duration string.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON accepts a duration string or a number of milliseconds.
func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	return d.set(v)
}

// MarshalYAML encodes d as a duration string.
func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

// UnmarshalYAML accepts a duration string or a number of milliseconds.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var v any
	if err := node.Decode(&v); err != nil {
		return err
	}
	return d.set(v)
}

func (d *Duration) set(v any) error {
	switch val := v.(type) {
	case string:
		parsed, err := time.ParseDuration(strings.TrimSpace(val))
		if err != nil {
			return fmt.Errorf("parse duration %q: %w", val, err)
		}
		*d = Duration(parsed)
	case int:
		*d = Duration(time.Duration(val) * time.Millisecond)
	case float64:
		*d = Duration(val * float64(time.Millisecond))
	case nil:
		*d = 0
	default:
		return fmt.Errorf("duration must be a string or milliseconds, got %T", v)
	}
	return nil
}

// Definition describes one agent. It is the resource the runtime loads from
// definition files and keeps in a Store.
type Definition struct {
	Name         string         `yaml:"name" json:"name"`
	Description  string         `yaml:"description,omitempty" json:"description,omitempty"`
	TickInterval Duration       `yaml:"tick_interval,omitempty" json:"tick_interval,omitempty"`
	Tags         []string       `yaml:"tags,omitempty" json:"tags,omitempty"`
	Settings     map[string]any `yaml:"settings,omitempty" json:"settings,omitempty"`

	// Source is the file the definition was read from, if any.
	Source string `yaml:"-" json:"-"`
}

// Validate checks required fields.
func (d *Definition) Validate() error {
	if d == nil {
		return fmt.Errorf("%w: nil definition", ErrInvalidDefinition)
	}
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidDefinition)
	}
	if d.TickInterval < 0 {
		return fmt.Errorf("%w: %s: negative tick_interval %s", ErrInvalidDefinition, d.Name, d.TickInterval)
	}
	return nil
}

// Config exposes Settings through the typed accessors of the config package.
func (d *Definition) Config() config.Config {
	return config.New(d.Settings)
}

// HasTag reports whether the definition carries tag.
func (d *Definition) HasTag(tag string) bool {
	return slices.Contains(d.Tags, tag)
}

// Clone returns a copy that shares no slices or top-level maps with d.
func (d *Definition) Clone() *Definition {
	if d == nil {
		return nil
	}
	c := *d
	c.Tags = slices.Clone(d.Tags)
	c.Settings = maps.Clone(d.Settings)
	return &c
}
