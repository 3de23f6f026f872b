package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/srprism/srprism-batch/internal/logger"
)

// PrometheusRecorder records batch lifecycle events as Prometheus metrics.
type PrometheusRecorder struct {
	registry *prometheus.Registry

	batchDurationSeconds *prometheus.HistogramVec
	batchStatusCounter   *prometheus.CounterVec
	workerFailureCounter *prometheus.CounterVec
	arenaRejectCounter   prometheus.Counter
	durationSeconds      *prometheus.HistogramVec
}

// NewPrometheusRecorder builds a PrometheusRecorder registered against a
// fresh registry. Only this recorder's own metrics are registered; the
// standard Go/process collectors are not.
func NewPrometheusRecorder() *PrometheusRecorder {
	registry := prometheus.NewRegistry()

	r := &PrometheusRecorder{
		registry: registry,
		batchDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "srprism_batch_duration_seconds",
			Help:    "Duration of batch execution.",
			Buckets: prometheus.DefBuckets,
		}, []string{"status"}),
		batchStatusCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "srprism_batch_status_total",
			Help: "Total number of batches by terminal status.",
		}, []string{"status"}),
		workerFailureCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "srprism_worker_failure_total",
			Help: "Total number of worker failures by reason.",
		}, []string{"reason"}),
		arenaRejectCounter: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "srprism_arena_rejection_total",
			Help: "Total number of batches rejected for exceeding the memory arena cap.",
		}),
		durationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "srprism_operation_duration_seconds",
			Help:    "Duration of named operations.",
			Buckets: prometheus.DefBuckets,
		}, []string{"name"}),
	}

	registry.MustRegister(
		r.batchDurationSeconds,
		r.batchStatusCounter,
		r.workerFailureCounter,
		r.arenaRejectCounter,
		r.durationSeconds,
	)

	return r
}

// Registry returns the Prometheus registry backing this recorder, for
// wiring into an HTTP exposition handler or into additional collectors
// such as the Stats Aggregator.
func (r *PrometheusRecorder) Registry() *prometheus.Registry { return r.registry }

func (r *PrometheusRecorder) RecordBatchStart(_ context.Context, b BatchInfo) {
	logger.Debugf("metrics: batch %d started", b.OID)
}

func (r *PrometheusRecorder) RecordBatchEnd(_ context.Context, b BatchInfo, d time.Duration) {
	r.batchStatusCounter.WithLabelValues("completed").Inc()
	r.batchDurationSeconds.WithLabelValues("completed").Observe(d.Seconds())
}

func (r *PrometheusRecorder) RecordBatchSkip(_ context.Context, b BatchInfo, reason string) {
	r.batchStatusCounter.WithLabelValues("skipped").Inc()
	logger.Debugf("metrics: batch %d skipped: %s", b.OID, reason)
}

func (r *PrometheusRecorder) RecordWorkerFailure(_ context.Context, b BatchInfo, err error) {
	r.workerFailureCounter.WithLabelValues(err.Error()).Inc()
}

func (r *PrometheusRecorder) RecordArenaRejection(_ context.Context, b BatchInfo) {
	r.arenaRejectCounter.Inc()
}

func (r *PrometheusRecorder) RecordDuration(_ context.Context, name string, d time.Duration, _ map[string]string) {
	r.durationSeconds.WithLabelValues(name).Observe(d.Seconds())
}

var _ Recorder = (*PrometheusRecorder)(nil)
