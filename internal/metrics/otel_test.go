package metrics_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/srprism/srprism-batch/internal/metrics"
)

func TestOTelTracerRecordsSpansAndErrors(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tr := metrics.NewOTelTracer(sdktrace.NewSimpleSpanProcessor(exporter))

	ctx, endRun := tr.StartRunSpan(context.Background(), "test-run")
	ctx, endBatch := tr.StartBatchSpan(ctx, metrics.BatchInfo{OID: 1, Num: 1, StartQID: 0, NumQueries: 10})
	tr.RecordError(ctx, "worker", errors.New("boom"))
	endBatch()
	endRun()

	require.NoError(t, tr.Shutdown(context.Background()))

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)
	assert.Equal(t, "batch", spans[0].Name)
	assert.Equal(t, "run", spans[1].Name)
	require.Len(t, spans[0].Events, 1)
}

func TestOTelMetricRecorderRecordsWithoutError(t *testing.T) {
	r, err := metrics.NewOTelMetricRecorder()
	require.NoError(t, err)

	ctx := context.Background()
	b := metrics.BatchInfo{OID: 1}
	r.RecordBatchStart(ctx, b)
	r.RecordBatchEnd(ctx, b, 0)
	r.RecordWorkerFailure(ctx, b, errors.New("worker down"))
	r.RecordArenaRejection(ctx, b)
	r.RecordDuration(ctx, "op", 0, nil)

	require.NoError(t, r.Shutdown(ctx))
}
