package agentdef

import (
	"context"
	"time"
)

// Store persists agent definitions by name.
// Implementations must be safe for concurrent use.
type Store interface {
	// Save validates and stores def, replacing any definition with the same name.
	Save(ctx context.Context, def *Definition) error

	// Get returns the definition named name, or ErrNotFound.
	Get(ctx context.Context, name string) (*Definition, error)

	// List returns metadata for every stored definition, ordered by name.
	List(ctx context.Context) ([]Info, error)

	// Delete removes a definition. Deleting a missing name is not an error.
	Delete(ctx context.Context, name string) error

	// Close releases resources.
	Close() error
}

// Info provides metadata without decoding the definition.
type Info struct {
	Name      string
	Version   int
	UpdatedAt time.Time
	Size      int64
}
