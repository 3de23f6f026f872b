// Package metrics defines the driver's narrow metrics and tracing
// abstractions, so the core search driver never imports a concrete
// observability backend directly.
package metrics

import (
	"context"
	"time"
)

// BatchInfo carries the identifying fields of a batch for recording
// purposes, mirroring the Batch type without creating an import cycle
// back into the align package.
type BatchInfo struct {
	OID        int64
	Num        int64
	StartQID   int64
	NumQueries int64
}

// Recorder records batch-level lifecycle events and durations. A nil
// Recorder is never passed to the driver; use NoOpRecorder() where no backend
// is configured.
type Recorder interface {
	RecordBatchStart(ctx context.Context, b BatchInfo)
	RecordBatchEnd(ctx context.Context, b BatchInfo, d time.Duration)
	RecordBatchSkip(ctx context.Context, b BatchInfo, reason string)
	RecordWorkerFailure(ctx context.Context, b BatchInfo, err error)
	RecordArenaRejection(ctx context.Context, b BatchInfo)
	RecordDuration(ctx context.Context, name string, d time.Duration, tags map[string]string)
}

// Tracer starts spans around a run and its batches.
type Tracer interface {
	StartRunSpan(ctx context.Context, runName string) (context.Context, func())
	StartBatchSpan(ctx context.Context, b BatchInfo) (context.Context, func())
	RecordError(ctx context.Context, module string, err error)
}

// noop implements both Recorder and Tracer as a discard sink.
type noop struct{}

// NoOpRecorder returns a Recorder that discards everything.
func NoOpRecorder() Recorder { return noop{} }

// NoOpTracer returns a Tracer that discards everything.
func NoOpTracer() Tracer { return noop{} }

func (noop) RecordBatchStart(context.Context, BatchInfo)                       {}
func (noop) RecordBatchEnd(context.Context, BatchInfo, time.Duration)          {}
func (noop) RecordBatchSkip(context.Context, BatchInfo, string)                {}
func (noop) RecordWorkerFailure(context.Context, BatchInfo, error)             {}
func (noop) RecordArenaRejection(context.Context, BatchInfo)                   {}
func (noop) RecordDuration(context.Context, string, time.Duration, map[string]string) {}

func (noop) StartRunSpan(ctx context.Context, _ string) (context.Context, func()) {
	return ctx, func() {}
}
func (noop) StartBatchSpan(ctx context.Context, _ BatchInfo) (context.Context, func()) {
	return ctx, func() {}
}
func (noop) RecordError(context.Context, string, error) {}

var (
	_ Recorder = noop{}
	_ Tracer   = noop{}
)
