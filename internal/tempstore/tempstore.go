// Package tempstore implements the Temp Store: a scoped registry of
// temporary files with guaranteed cleanup on every exit path.
package tempstore

import (
	"context"
	"sync"

	"github.com/srprism/srprism-batch/internal/logger"
	"github.com/srprism/srprism-batch/internal/storage"
)

// Store registers temporary file names against a storage.Connection and
// guarantees their removal when Cleanup is called. Registration is
// idempotent: registering the same prefix twice returns the same name
// without creating a second registration.
type Store struct {
	conn storage.Connection

	mu         sync.Mutex
	registered map[string]string // prefix -> resolved name
	order      []string          // resolved names, registration order
}

// New creates a Store backed by conn.
func New(conn storage.Connection) *Store {
	return &Store{
		conn:       conn,
		registered: make(map[string]string),
	}
}

// Register returns the full name for prefix, registering it for cleanup
// the first time it is seen. The reference implementation uses the
// prefix directly as the file name (e.g. "outsam-3"); this store follows
// the same convention — Register does not itself create the file, it
// only reserves the name and its cleanup obligation.
func (s *Store) Register(prefix string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if name, ok := s.registered[prefix]; ok {
		return name
	}
	name := prefix
	s.registered[prefix] = name
	s.order = append(s.order, name)
	return name
}

// Cleanup removes every registered file, best-effort: it attempts to
// remove all of them even if one fails, and returns the first error
// encountered (if any) after trying the rest. The driver defers this
// once the input source is open, before any name is registered, so every
// exit path after registration — success or failure — leaves the temp
// directory empty.
func (s *Store) Cleanup(ctx context.Context) error {
	s.mu.Lock()
	names := append([]string(nil), s.order...)
	s.mu.Unlock()

	var firstErr error
	for _, name := range names {
		if err := s.conn.Remove(ctx, name); err != nil {
			logger.Warnf("tempstore: failed to remove %q: %v", name, err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
	}
	return firstErr
}
