// Package statsexport implements the Batch Stats Export: an optional
// per-batch Parquet writer the driver appends one row to per completed
// batch, flushed and closed once at the end of a run.
package statsexport

import (
	"fmt"
	"sync"

	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/source"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/srprism/srprism-batch/internal/stats"
)

// BatchStatsSnapshot is one flattened row: the identifying fields of a
// completed batch plus the Stats Aggregator counters as they stood right
// after that batch finished.
type BatchStatsSnapshot struct {
	BatchOID       int64 `parquet:"name=batch_oid, type=INT64"`
	BatchNum       int64 `parquet:"name=batch_num, type=INT64"`
	StartQID       int64 `parquet:"name=start_qid, type=INT64"`
	NumQueries     int64 `parquet:"name=num_queries, type=INT64"`
	DurationMillis int64 `parquet:"name=duration_millis, type=INT64"`
	Aligns         int64 `parquet:"name=n_aligns, type=INT64"`
	UnidirAligns   int64 `parquet:"name=n_unidir_aligns, type=INT64"`
	Filter         int64 `parquet:"name=n_filter, type=INT64"`
	Candidates     int64 `parquet:"name=n_candidates, type=INT64"`
	Inplace        int64 `parquet:"name=n_inplace, type=INT64"`
	InplaceAligns  int64 `parquet:"name=n_inplace_aligns, type=INT64"`
}

// FromSnapshot builds a BatchStatsSnapshot row from batch identifying
// fields and a Stats Aggregator reading taken right after the batch.
func FromSnapshot(batchOID, batchNum, startQID, numQueries, durationMillis int64, snap stats.Snapshot) BatchStatsSnapshot {
	return BatchStatsSnapshot{
		BatchOID:       batchOID,
		BatchNum:       batchNum,
		StartQID:       startQID,
		NumQueries:     numQueries,
		DurationMillis: durationMillis,
		Aligns:         snap.Aligns,
		UnidirAligns:   snap.UnidirAligns,
		Filter:         snap.Filter,
		Candidates:     snap.Candidates,
		Inplace:        snap.Inplace,
		InplaceAligns:  snap.InplaceAligns,
	}
}

// Writer appends BatchStatsSnapshot rows to a local Parquet file. It is
// safe for concurrent use by multiple worker goroutines.
type Writer struct {
	mu sync.Mutex
	fw source.ParquetFile
	pw *writer.ParquetWriter

	closed bool
}

// numRowGroup, in KiB, sets the row group size in bytes (1 MiB) passed to
// the underlying parquet writer. Append flushes after every row, so each
// row group holds a single small row and never approaches this size.
const numRowGroup = 1024

// Open creates (or truncates) path and prepares it to receive
// BatchStatsSnapshot rows.
func Open(path string) (*Writer, error) {
	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return nil, fmt.Errorf("statsexport: failed to open %q: %w", path, err)
	}

	pw, err := writer.NewParquetWriter(fw, new(BatchStatsSnapshot), 1)
	if err != nil {
		fw.Close()
		return nil, fmt.Errorf("statsexport: failed to construct parquet writer for %q: %w", path, err)
	}
	pw.RowGroupSize = numRowGroup * 1024
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	return &Writer{fw: fw, pw: pw}, nil
}

// Append writes one row. It flushes eagerly (Flush(true) writes the row
// out as its own row group) so a crash mid-run still leaves prior batches' rows
// durable on disk; batch stats export is a diagnostic aid, not a
// transactional log, so this trades write amplification for durability.
func (w *Writer) Append(row BatchStatsSnapshot) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return fmt.Errorf("statsexport: append after close")
	}
	if err := w.pw.Write(row); err != nil {
		return fmt.Errorf("statsexport: failed to write row for batch %d: %w", row.BatchOID, err)
	}
	if err := w.pw.Flush(true); err != nil {
		return fmt.Errorf("statsexport: failed to flush row for batch %d: %w", row.BatchOID, err)
	}
	return nil
}

// Close finalizes the Parquet footer and closes the underlying file. It
// is safe to call multiple times; only the first call does work. The
// driver calls this unconditionally at the end of Run, on both the
// success and failure paths, so rows for batches completed before a
// failure are never lost.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true

	stopErr := w.pw.WriteStop()
	closeErr := w.fw.Close()
	if stopErr != nil {
		return fmt.Errorf("statsexport: failed to finalize parquet footer: %w", stopErr)
	}
	if closeErr != nil {
		return fmt.Errorf("statsexport: failed to close file: %w", closeErr)
	}
	return nil
}
