// Package align defines the boundary between the search driver and the
// external collaborators it treats as opaque: the input read source and
// the per-batch alignment kernel. Nothing in this package knows how
// reads are parsed or how seeding/extension/scoring work.
package align

import (
	"context"

	"github.com/srprism/srprism-batch/internal/config"
	"github.com/srprism/srprism-batch/internal/resconf"
	"github.com/srprism/srprism-batch/internal/stats"
)

// IndexStore is the read-only, freely shared reference index. Its
// concrete implementation (the on-disk multi-file index loader) lives
// outside this module's scope; the driver only needs to hold and pass
// a reference through.
type IndexStore interface {
	BasePath() string
}

// IDMap is the optional read-only subject/query id map.
type IDMap interface {
	Loaded() bool
}

// Arena is the subset of the memory arena the align package depends on,
// kept as an interface here so this package does not import the arena
// package's concrete type directly.
type Arena interface {
	Allocate(n int) ([]byte, error)
	Release(n int)
}

// Seed bundles the immutable, run-wide configuration and shared
// resources that every Batch is constructed with. It is built once, by
// the composition root (cmd/srprism-align), before the driver's main
// loop starts.
type Seed struct {
	Config     *config.RunConfig
	IPAM       resconf.IPAM
	ResConfStr string
	Arena      Arena
	Index      IndexStore
	IDMap      IDMap
	Stats      *stats.Aggregator

	// ScratchUnpaired and ScratchPaired are pre-allocated only in the
	// single-threaded path (config.NThreads == 1); nil otherwise.
	ScratchUnpaired []byte
	ScratchPaired   []byte
}

// Batch is a contiguous slice of the input read stream processed as a
// unit. It is constructed by an InputSource, optionally run by a
// Kernel, and then destroyed; it never outlives a single driver pass.
type Batch struct {
	OID      int64 // dense, monotonically increasing output ordinal
	Num      int64 // batch_num, gated against start/end range
	StartQID int64 // input byte offset: starting query id
	Count    int64 // number of reads/pairs actually consumed
	Paired   bool

	Seed *Seed

	// OutputName is the per-batch output file name registered with the
	// Temp Store; empty until the driver registers it.
	OutputName string

	endQID int64
}

// EndQId returns the query id one past the last read this batch
// consumed, i.e. the starting point for the next batch.
func (b *Batch) EndQId() int64 {
	return b.endQID
}

// SetEndQID is called by an InputSource while constructing a Batch, to
// record where the next batch's reads should resume from.
func (b *Batch) SetEndQID(q int64) {
	b.endQID = q
}

// Filled reports whether the batch consumed exactly the capacity it was
// constructed with (relevant only for strict_batch advancement).
func (b *Batch) Filled(requestedCapacity int64) bool {
	return b.Count >= requestedCapacity
}

// RunResult is returned by a Kernel after running a Batch.
type RunResult struct {
	// Continue is false only when insert-size discovery determines the
	// run should stop early; true in every other case.
	Continue bool
}

// Kernel is the opaque per-batch alignment kernel: k-mer seeding,
// extension, and scoring. The driver dispatches on b.Paired to select
// AlignUnpaired or AlignPaired so the kernel's inner loop never branches
// on pairing mode per read.
type Kernel interface {
	AlignUnpaired(ctx context.Context, b *Batch) (RunResult, error)
	AlignPaired(ctx context.Context, b *Batch) (RunResult, error)
}

// Run dispatches b to the correct Kernel method based on b.Paired.
func Run(ctx context.Context, k Kernel, b *Batch) (RunResult, error) {
	if b.Paired {
		return k.AlignPaired(ctx, b)
	}
	return k.AlignUnpaired(ctx, b)
}

// InputSource is the external read stream: FASTA/FASTQ/SRA decoding is
// entirely out of scope here. The driver asks it to advance a Batch by
// up to a requested capacity; the source reports how many reads/pairs
// it actually had available and where the stream now stands.
type InputSource interface {
	// Open verifies the source exposes exactly the requested column
	// count (1 for unpaired, 2 for paired) and prepares it for reading.
	Open(ctx context.Context, wantCols int) error

	// NCols reports the input's actual column count, valid after Open.
	NCols() int

	// Done reports whether the source is exhausted.
	Done() bool

	// Advance constructs and fills a Batch consuming up to capacity
	// reads (or pairs, when paired), stamped with oid/num/startQID.
	// Returns the filled batch; b.Count may be less than capacity only
	// when the source is exhausted mid-batch.
	Advance(ctx context.Context, seed *Seed, oid, num, startQID, capacity int64, paired bool) (*Batch, error)

	// Close releases any resources held by the source.
	Close(ctx context.Context) error
}
