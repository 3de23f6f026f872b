// Package collator implements the Output Collator: it appends per-batch
// output artifacts into the final ordered output file, strictly in
// ascending batch_oid order.
package collator

import (
	"context"
	"fmt"
	"io"

	"github.com/srprism/srprism-batch/internal/storage"
)

// Collator owns the final output file. Only the driver goroutine may
// call Append; it is not safe for concurrent use.
type Collator struct {
	conn       storage.Connection
	outputName string
	out        io.WriteCloser
}

// Open creates (truncating) the final output file under conn.
func Open(ctx context.Context, conn storage.Connection, outputName string) (*Collator, error) {
	w, err := conn.Create(ctx, outputName)
	if err != nil {
		return nil, fmt.Errorf("collator: failed to open final output %q: %w", outputName, err)
	}
	return &Collator{conn: conn, outputName: outputName, out: w}, nil
}

// Append copies the named per-batch output file onto the end of the
// final output. Batches are expected to be appended in ascending
// batch_oid order by the caller; Collator does not itself reorder.
func (c *Collator) Append(ctx context.Context, batchOutputName string) error {
	r, err := c.conn.Open(ctx, batchOutputName)
	if err != nil {
		return fmt.Errorf("collator: failed to open batch output %q: %w", batchOutputName, err)
	}
	defer r.Close()

	if _, err := io.Copy(c.out, r); err != nil {
		return fmt.Errorf("collator: failed to append batch output %q: %w", batchOutputName, err)
	}
	return nil
}

// Close closes the final output file.
func (c *Collator) Close() error {
	return c.out.Close()
}
