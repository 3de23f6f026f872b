// Package devkernel provides minimal align.InputSource and align.Kernel
// implementations for exercising the search driver without a real
// alignment kernel or sequence-format decoder attached: it treats one
// input line as one read and writes an "unmapped" placeholder record per
// read. Neither the per-read alignment algorithm nor FASTA/FASTQ parsing
// belongs to this repository; production deployments wire their own
// Kernel and InputSource in place of this package.
package devkernel

import (
	"bufio"
	"context"
	"fmt"
	"os"

	"github.com/srprism/srprism-batch/internal/align"
	"github.com/srprism/srprism-batch/internal/storage"
)

// LineSource is a line-per-read align.InputSource backed by a single
// plain-text file (one read id per line). It never reports NCols() == 2:
// paired mode needs two coordinated streams, which is exactly the part
// this package does not attempt to implement.
type LineSource struct {
	path  string
	file  *os.File
	sc    *bufio.Scanner
	total int64
	seen  int64
	eof   bool
}

var _ align.InputSource = (*LineSource)(nil)

// NewLineSource returns a LineSource reading read ids from path.
func NewLineSource(path string) *LineSource {
	return &LineSource{path: path}
}

func (s *LineSource) Open(_ context.Context, wantCols int) error {
	if wantCols == 2 {
		return fmt.Errorf("devkernel: LineSource does not support paired input")
	}
	f, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("devkernel: failed to open %q: %w", s.path, err)
	}
	s.file = f
	s.sc = bufio.NewScanner(f)
	return nil
}

func (s *LineSource) NCols() int { return 1 }

func (s *LineSource) Done() bool { return s.eof }

// Advance consumes up to capacity lines, or until EOF, whichever comes
// first, and returns a Batch describing how many reads it consumed.
func (s *LineSource) Advance(_ context.Context, seed *align.Seed, oid, num, startQID, capacity int64, paired bool) (*align.Batch, error) {
	var n int64
	for n < capacity && s.sc.Scan() {
		n++
	}
	if err := s.sc.Err(); err != nil {
		return nil, fmt.Errorf("devkernel: read error on %q: %w", s.path, err)
	}
	if n < capacity {
		s.eof = true
	}
	s.seen += n

	b := &align.Batch{
		OID: oid, Num: num, StartQID: startQID, Count: n, Paired: paired, Seed: seed,
	}
	b.SetEndQID(startQID + n)
	return b, nil
}

func (s *LineSource) Close(context.Context) error {
	if s.file == nil {
		return nil
	}
	return s.file.Close()
}

// Kernel writes one "unmapped" placeholder line per read in the batch to
// the batch's registered output file, then reports that the run should
// continue. It never rejects a batch and never reports an alignment.
type Kernel struct {
	Conn storage.Connection
}

var _ align.Kernel = Kernel{}

func (k Kernel) AlignUnpaired(ctx context.Context, b *align.Batch) (align.RunResult, error) {
	return k.run(ctx, b)
}

func (k Kernel) AlignPaired(ctx context.Context, b *align.Batch) (align.RunResult, error) {
	return k.run(ctx, b)
}

func (k Kernel) run(ctx context.Context, b *align.Batch) (align.RunResult, error) {
	w, err := k.Conn.Create(ctx, b.OutputName)
	if err != nil {
		return align.RunResult{}, fmt.Errorf("devkernel: failed to open output %q: %w", b.OutputName, err)
	}
	defer w.Close()

	for i := int64(0); i < b.Count; i++ {
		if _, err := fmt.Fprintf(w, "%d\tunmapped\n", b.StartQID+i); err != nil {
			return align.RunResult{}, err
		}
	}
	return align.RunResult{Continue: true}, nil
}
