package metrics

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// OTelTracer is a Tracer backed by a real in-process OpenTelemetry SDK
// TracerProvider. No OTLP exporter is wired: spans are consumed entirely
// in-process by the provider's span processor, which is all a single
// host run needs when there is no collector endpoint to ship to.
type OTelTracer struct {
	tracer   oteltrace.Tracer
	provider *sdktrace.TracerProvider
}

// NewOTelTracer builds an OTelTracer with the given span processor (for
// example a batching processor wrapping a custom in-process exporter, or
// sdktrace.NewSimpleSpanProcessor for synchronous tests).
func NewOTelTracer(sp sdktrace.SpanProcessor) *OTelTracer {
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sp))
	return &OTelTracer{
		tracer:   provider.Tracer("srprism-batch"),
		provider: provider,
	}
}

// Shutdown flushes and releases the underlying TracerProvider.
func (t *OTelTracer) Shutdown(ctx context.Context) error {
	return t.provider.Shutdown(ctx)
}

func (t *OTelTracer) StartRunSpan(ctx context.Context, runName string) (context.Context, func()) {
	ctx, span := t.tracer.Start(ctx, "run",
		oteltrace.WithAttributes(attribute.String("run.name", runName)))
	return ctx, func() { span.End() }
}

func (t *OTelTracer) StartBatchSpan(ctx context.Context, b BatchInfo) (context.Context, func()) {
	ctx, span := t.tracer.Start(ctx, "batch",
		oteltrace.WithAttributes(
			attribute.Int64("batch.oid", b.OID),
			attribute.Int64("batch.num", b.Num),
			attribute.Int64("batch.start_qid", b.StartQID),
			attribute.Int64("batch.num_queries", b.NumQueries),
		))
	return ctx, func() { span.End() }
}

func (t *OTelTracer) RecordError(ctx context.Context, module string, err error) {
	span := oteltrace.SpanFromContext(ctx)
	span.RecordError(err, oteltrace.WithAttributes(attribute.String("module", module)))
}

var _ Tracer = (*OTelTracer)(nil)

// OTelMetricRecorder is a Recorder backed by a real OpenTelemetry SDK
// MeterProvider, emitting one gauge tracking in-flight batches alongside
// counters and a duration histogram.
type OTelMetricRecorder struct {
	provider *sdkmetric.MeterProvider
	meter    otelmetric.Meter

	batchesInFlight otelmetric.Int64UpDownCounter
	batchDuration   otelmetric.Float64Histogram
	workerFailures  otelmetric.Int64Counter
	arenaRejections otelmetric.Int64Counter
	opDuration      otelmetric.Float64Histogram
}

// NewOTelMetricRecorder builds an OTelMetricRecorder with the given
// metric readers (for example a periodic reader wrapping an in-process
// exporter).
func NewOTelMetricRecorder(readers ...sdkmetric.Reader) (*OTelMetricRecorder, error) {
	opts := make([]sdkmetric.Option, 0, len(readers))
	for _, r := range readers {
		opts = append(opts, sdkmetric.WithReader(r))
	}
	provider := sdkmetric.NewMeterProvider(opts...)
	meter := provider.Meter("srprism-batch")

	batchesInFlight, err := meter.Int64UpDownCounter("srprism.batches_in_flight",
		otelmetric.WithDescription("Number of batches currently executing."))
	if err != nil {
		return nil, fmt.Errorf("otel metrics: batches_in_flight: %w", err)
	}
	batchDuration, err := meter.Float64Histogram("srprism.batch_duration_seconds",
		otelmetric.WithDescription("Duration of batch execution."))
	if err != nil {
		return nil, fmt.Errorf("otel metrics: batch_duration_seconds: %w", err)
	}
	workerFailures, err := meter.Int64Counter("srprism.worker_failures_total",
		otelmetric.WithDescription("Total number of worker failures."))
	if err != nil {
		return nil, fmt.Errorf("otel metrics: worker_failures_total: %w", err)
	}
	arenaRejections, err := meter.Int64Counter("srprism.arena_rejections_total",
		otelmetric.WithDescription("Total number of batches rejected by the memory arena."))
	if err != nil {
		return nil, fmt.Errorf("otel metrics: arena_rejections_total: %w", err)
	}
	opDuration, err := meter.Float64Histogram("srprism.operation_duration_seconds",
		otelmetric.WithDescription("Duration of named operations."))
	if err != nil {
		return nil, fmt.Errorf("otel metrics: operation_duration_seconds: %w", err)
	}

	return &OTelMetricRecorder{
		provider:        provider,
		meter:           meter,
		batchesInFlight: batchesInFlight,
		batchDuration:   batchDuration,
		workerFailures:  workerFailures,
		arenaRejections: arenaRejections,
		opDuration:      opDuration,
	}, nil
}

// Shutdown flushes and releases the underlying MeterProvider.
func (r *OTelMetricRecorder) Shutdown(ctx context.Context) error {
	return r.provider.Shutdown(ctx)
}

func (r *OTelMetricRecorder) RecordBatchStart(ctx context.Context, _ BatchInfo) {
	r.batchesInFlight.Add(ctx, 1)
}

func (r *OTelMetricRecorder) RecordBatchEnd(ctx context.Context, _ BatchInfo, d time.Duration) {
	r.batchesInFlight.Add(ctx, -1)
	r.batchDuration.Record(ctx, d.Seconds())
}

func (r *OTelMetricRecorder) RecordBatchSkip(context.Context, BatchInfo, string) {}

func (r *OTelMetricRecorder) RecordWorkerFailure(ctx context.Context, _ BatchInfo, err error) {
	r.batchesInFlight.Add(ctx, -1)
	r.workerFailures.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("reason", err.Error())))
}

func (r *OTelMetricRecorder) RecordArenaRejection(ctx context.Context, _ BatchInfo) {
	r.arenaRejections.Add(ctx, 1)
}

func (r *OTelMetricRecorder) RecordDuration(ctx context.Context, name string, d time.Duration, _ map[string]string) {
	r.opDuration.Record(ctx, d.Seconds(), otelmetric.WithAttributes(attribute.String("name", name)))
}

var _ Recorder = (*OTelMetricRecorder)(nil)
