// Package storage defines the backend abstraction the Temp Store uses to
// physically place spill files and the final output: local disk by
// default, or Google Cloud Storage when the Run Configuration selects it.
package storage

import (
	"context"
	"io"
)

// Connection is a single opened storage backend. Every path the Temp
// Store registers is relative to whatever root the Connection was
// constructed with.
type Connection interface {
	// Create opens name for writing, truncating any existing content.
	Create(ctx context.Context, name string) (io.WriteCloser, error)
	// Open opens name for reading.
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	// Append opens name for appending, creating it if absent.
	Append(ctx context.Context, name string) (io.WriteCloser, error)
	// Remove deletes name. Removing an absent name is not an error.
	Remove(ctx context.Context, name string) error
	// Name returns a human-readable identifier for diagnostics.
	Name() string
}
