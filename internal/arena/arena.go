// Package arena implements the Memory Arena: a process-wide, hard-capped
// byte allocator shared by the driver and every batch.
package arena

import (
	"sync"

	"github.com/srprism/srprism-batch/internal/exception"
)

const megabyte = 1 << 20

// Arena hands out byte buffers from a fixed budget and refuses requests
// that would exceed it. It is safe for concurrent use: in the
// multi-threaded path every worker allocates its own scratch from the
// same shared Arena.
type Arena struct {
	mu       sync.Mutex
	capBytes int64
	usedBytes int64
}

// New creates an Arena capped at capMB megabytes.
func New(capMB int64) *Arena {
	return &Arena{capBytes: capMB * megabyte}
}

// Allocate reserves n bytes from the arena and returns a buffer of that
// size. It fails with a ResourceExhausted error if granting the request
// would exceed the configured cap.
func (a *Arena) Allocate(n int) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.usedBytes+int64(n) > a.capBytes {
		return nil, exception.New(exception.KindResourceExhausted, "arena",
			"allocation would exceed the configured memory cap")
	}
	a.usedBytes += int64(n)
	return make([]byte, n), nil
}

// Release returns n bytes to the arena's budget. Callers must pass the
// same size they allocated; the arena does not track individual buffers.
func (a *Arena) Release(n int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.usedBytes -= int64(n)
	if a.usedBytes < 0 {
		a.usedBytes = 0
	}
}

// Used returns the current live allocation total, for tests and metrics.
func (a *Arena) Used() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.usedBytes
}

// Cap returns the configured byte cap.
func (a *Arena) Cap() int64 {
	return a.capBytes
}
