// Package local implements the local-disk storage.Connection backend,
// narrowed to the file operations the Temp Store needs.
package local

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/srprism/srprism-batch/internal/storage"
)

type connection struct {
	baseDir string
}

var _ storage.Connection = (*connection)(nil)

// New creates a local-disk storage.Connection rooted at baseDir. baseDir
// is created if it does not already exist.
func New(baseDir string) (storage.Connection, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("local storage: base directory must be specified")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("local storage: failed to create base dir %q: %w", baseDir, err)
	}
	return &connection{baseDir: baseDir}, nil
}

func (c *connection) path(name string) string {
	return filepath.Join(c.baseDir, name)
}

func (c *connection) Create(_ context.Context, name string) (io.WriteCloser, error) {
	return os.OpenFile(c.path(name), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
}

func (c *connection) Open(_ context.Context, name string) (io.ReadCloser, error) {
	return os.Open(c.path(name))
}

func (c *connection) Append(_ context.Context, name string) (io.WriteCloser, error) {
	return os.OpenFile(c.path(name), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
}

func (c *connection) Remove(_ context.Context, name string) error {
	err := os.Remove(c.path(name))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func (c *connection) Name() string { return "local:" + c.baseDir }
