// Package driver implements the Search Driver: it reads the input
// source, forms Batches, schedules the configured worker count, and
// preserves output order across concurrently completing batches.
package driver

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/srprism/srprism-batch/internal/align"
	"github.com/srprism/srprism-batch/internal/collator"
	"github.com/srprism/srprism-batch/internal/config"
	"github.com/srprism/srprism-batch/internal/exception"
	"github.com/srprism/srprism-batch/internal/logger"
	"github.com/srprism/srprism-batch/internal/metrics"
	"github.com/srprism/srprism-batch/internal/statsexport"
	"github.com/srprism/srprism-batch/internal/tempstore"
)

// pollInterval is the coarse admission-wait sleep used by the
// multi-threaded path when every worker slot is occupied.
const pollInterval = time.Second

const (
	outFilePrefix = "outsam-"
	inDumpPrefix  = "indump-"
)

// Driver is the Search Driver.
type Driver struct {
	cfg    *config.RunConfig
	seed   *align.Seed
	kernel align.Kernel
	input  align.InputSource
	temp   *tempstore.Store
	out    *collator.Collator

	recorder metrics.Recorder
	tracer   metrics.Tracer

	pollInterval time.Duration

	// statsWriter is nil unless stats export was requested; all appends
	// go through it under its own internal lock, so both the inline and
	// multi-threaded paths can call Append concurrently.
	statsWriter *statsexport.Writer
}

// New constructs a Driver. recorder and tracer may be nil, in which
// case no-op implementations are used.
func New(
	cfg *config.RunConfig,
	seed *align.Seed,
	kernel align.Kernel,
	input align.InputSource,
	temp *tempstore.Store,
	out *collator.Collator,
	recorder metrics.Recorder,
	tracer metrics.Tracer,
) *Driver {
	if recorder == nil {
		recorder = metrics.NoOpRecorder()
	}
	if tracer == nil {
		tracer = metrics.NoOpTracer()
	}
	return &Driver{
		cfg: cfg, seed: seed, kernel: kernel, input: input,
		temp: temp, out: out, recorder: recorder, tracer: tracer,
		pollInterval: pollInterval,
	}
}

// SetPollInterval overrides the admission-wait sleep duration used by
// the multi-threaded path. Intended for tests; production callers
// should rely on the default.
func (d *Driver) SetPollInterval(interval time.Duration) {
	d.pollInterval = interval
}

// SetStatsExporter enables the Batch Stats Export for this run. w is
// closed (flushing its footer) at the end of Run, whether Run succeeds
// or fails. Leaving this unset disables export entirely.
func (d *Driver) SetStatsExporter(w *statsexport.Writer) {
	d.statsWriter = w
}

// threadSlot is the pair (done-flag, worker handle) keyed by batch_oid
// in the multi-threaded path. done is closed by the worker goroutine
// exactly once; the driver only ever reads it.
type threadSlot struct {
	done chan struct{}
	err  error
}

// Run consumes the input source to completion (or to end_batch), writes
// the final ordered output, and returns. Any fatal error still attempts
// to drain outstanding workers and remove temp files before returning.
func (d *Driver) Run(ctx context.Context) (err error) {
	if d.statsWriter != nil {
		defer func() {
			if cerr := d.statsWriter.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}()
	}

	if verr := config.Validate(d.cfg); verr != nil {
		return verr
	}

	if d.seed != nil && !d.seed.IPAM.Valid() {
		return exception.New(exception.KindValidation, "driver", "wrong strand configuration")
	}

	ctx, endRun := d.tracer.StartRunSpan(ctx, "srprism-align")
	defer endRun()

	requestCols := 0
	if d.cfg.ForceUnpaired {
		requestCols = 1
	}
	if d.cfg.ForcePaired {
		requestCols = 2
	}
	if requestCols == 0 {
		return exception.New(exception.KindInput, "driver", "neither paired nor unpaired search is requested")
	}

	if openErr := d.input.Open(ctx, requestCols); openErr != nil {
		return exception.Wrap(exception.KindInput, "driver", "failed to open input source", openErr)
	}
	defer d.input.Close(ctx)

	if d.cfg.ForcePaired && d.input.NCols() != 2 {
		return exception.New(exception.KindInput, "driver", "paired search is requested but input is not paired")
	}
	if d.cfg.ForceUnpaired && d.input.NCols() != 1 {
		return exception.New(exception.KindInput, "driver", "unpaired search is requested but input is not unpaired")
	}
	paired := d.input.NCols() == 2

	defer func() {
		if cerr := d.temp.Cleanup(context.Background()); cerr != nil && err == nil {
			err = cerr
		}
	}()

	batchLimit := int64(d.cfg.EffectiveBatchLimit())
	// StartBatch/EndBatch are the 1-based configured values; batch_num
	// counts from 0, so the bounds it is compared against are shifted.
	startBatch := d.cfg.StartBatch - 1
	endBatch := d.cfg.EndBatch - 1

	var curQID, batchStartQID int64
	var batchOID int64
	batchNum := 0

	slots := make(map[int64]*threadSlot)
	var slotsMu sync.Mutex
	var nextAppend int64
	var workerErrs *multierror.Error

	// On a fatal error, join every worker still running before the temp
	// files are removed.
	defer func() {
		if err != nil {
			d.drainAll(&slotsMu, slots, &workerErrs)
		}
	}()

	// skipped marks batch oids that were never scheduled because their
	// batch_num fell outside start/end batch: they never produced an
	// output file, so appendReady must advance past them without trying
	// to open one.
	skipped := make(map[int64]bool)

	appendReady := func() error {
		for nextAppend < batchOID {
			slotsMu.Lock()
			_, active := slots[nextAppend]
			slotsMu.Unlock()
			if active {
				break
			}
			if !skipped[nextAppend] {
				name := d.temp.Register(fmt.Sprintf("%s%d", outFilePrefix, nextAppend))
				if aerr := d.out.Append(ctx, name); aerr != nil {
					return aerr
				}
			}
			nextAppend++
		}
		return nil
	}

mainLoop:
	for !d.input.Done() && batchNum <= endBatch {
		capacity := batchLimit - (curQID - batchStartQID)

		b, berr := d.input.Advance(ctx, d.seed, batchOID, int64(batchNum), curQID, capacity, paired)
		if berr != nil {
			return exception.Wrap(exception.KindInput, "driver", "failed to advance input source", berr)
		}

		outName := d.temp.Register(fmt.Sprintf("%s%d", outFilePrefix, batchOID))
		b.OutputName = outName
		d.temp.Register(fmt.Sprintf("%s%d", inDumpPrefix, batchOID))

		inRange := batchNum >= startBatch && batchNum <= endBatch

		switch {
		case !inRange:
			logger.Infof("skipping batch %d", batchNum+1)
			d.recorder.RecordBatchSkip(ctx, batchInfo(b), "outside start/end batch range")
			skipped[batchOID] = true

		case d.cfg.NThreads == 1:
			cont, rerr := d.runInline(ctx, b)
			if rerr != nil {
				return rerr
			}
			if aerr := d.out.Append(ctx, outName); aerr != nil {
				return aerr
			}
			nextAppend = batchOID + 1
			if !cont {
				batchOID++
				curQID = b.EndQId()
				break mainLoop
			}

		default:
			d.reapCompletedSlots(&slotsMu, slots, &workerErrs)
			for {
				slotsMu.Lock()
				full := len(slots) == d.cfg.NThreads
				slotsMu.Unlock()
				if !full {
					break
				}
				time.Sleep(d.pollInterval)
				d.reapCompletedSlots(&slotsMu, slots, &workerErrs)
			}

			slot := &threadSlot{done: make(chan struct{})}
			slotsMu.Lock()
			slots[batchOID] = slot
			slotsMu.Unlock()

			d.recorder.RecordBatchStart(ctx, batchInfo(b))
			go d.runWorker(ctx, b, slot)

			if aerr := appendReady(); aerr != nil {
				return aerr
			}
		}

		batchOID++
		curQID = b.EndQId()

		if !d.cfg.StrictBatch || b.Filled(capacity) {
			batchStartQID = curQID
			batchNum++
		}
	}

	if d.cfg.NThreads > 1 {
		d.drainAll(&slotsMu, slots, &workerErrs)
		if derr := appendReady(); derr != nil {
			return derr
		}
	}

	if workerErrs.ErrorOrNil() != nil {
		return exception.Wrap(exception.KindWorker, "driver", "one or more workers failed", workerErrs.ErrorOrNil())
	}
	return nil
}

// runInline executes b on the driver's own goroutine: the single-
// threaded path. It reports whether the main loop should continue.
func (d *Driver) runInline(ctx context.Context, b *align.Batch) (bool, error) {
	start := time.Now()
	d.recorder.RecordBatchStart(ctx, batchInfo(b))
	bctx, endSpan := d.tracer.StartBatchSpan(ctx, batchInfo(b))
	res, err := align.Run(bctx, d.kernel, b)
	endSpan()
	if err != nil {
		d.recorder.RecordWorkerFailure(ctx, batchInfo(b), err)
		d.tracer.RecordError(ctx, "kernel", err)
		return false, exception.Wrap(exception.KindWorker, "driver", "alignment kernel failed", err)
	}
	elapsed := time.Since(start)
	d.recorder.RecordBatchEnd(ctx, batchInfo(b), elapsed)
	d.exportBatchStats(b, elapsed)
	return res.Continue, nil
}

// runWorker executes b on its own goroutine: the multi-threaded path.
// It always sets slot.done, exactly once, on exit.
func (d *Driver) runWorker(ctx context.Context, b *align.Batch, slot *threadSlot) {
	defer close(slot.done)
	start := time.Now()
	bctx, endSpan := d.tracer.StartBatchSpan(ctx, batchInfo(b))
	_, err := align.Run(bctx, d.kernel, b)
	endSpan()
	if err != nil {
		slot.err = exception.Wrap(exception.KindWorker, "driver",
			fmt.Sprintf("alignment kernel failed for batch %d", b.OID), err)
		d.recorder.RecordWorkerFailure(ctx, batchInfo(b), err)
		return
	}
	elapsed := time.Since(start)
	d.recorder.RecordBatchEnd(ctx, batchInfo(b), elapsed)
	d.exportBatchStats(b, elapsed)
}

// exportBatchStats appends a Batch Stats Export row for b if export is
// enabled. A write failure is logged rather than propagated: export is
// a diagnostic aid, and failing an otherwise-successful batch over it
// would be worse than a gap in the Parquet file.
func (d *Driver) exportBatchStats(b *align.Batch, elapsed time.Duration) {
	if d.statsWriter == nil {
		return
	}
	row := statsexport.FromSnapshot(b.OID, b.Num, b.StartQID, b.Count, elapsed.Milliseconds(), d.seed.Stats.Snapshot())
	if err := d.statsWriter.Append(row); err != nil {
		logger.Warnf("driver: failed to export batch stats for batch %d: %v", b.OID, err)
	}
}

// reapCompletedSlots scans every slot and removes those whose worker has
// finished, collecting any worker error into errs.
func (d *Driver) reapCompletedSlots(mu *sync.Mutex, slots map[int64]*threadSlot, errs **multierror.Error) {
	mu.Lock()
	defer mu.Unlock()
	for oid, slot := range slots {
		select {
		case <-slot.done:
			if slot.err != nil {
				*errs = multierror.Append(*errs, slot.err)
			}
			delete(slots, oid)
		default:
		}
	}
}

// drainAll joins every remaining worker, in whatever order they finish,
// collecting any worker errors into errs. Callers must perform a final
// ordered-append pass after this returns.
func (d *Driver) drainAll(mu *sync.Mutex, slots map[int64]*threadSlot, errs **multierror.Error) {
	mu.Lock()
	oids := make([]int64, 0, len(slots))
	pending := make([]*threadSlot, 0, len(slots))
	for oid, slot := range slots {
		oids = append(oids, oid)
		pending = append(pending, slot)
	}
	mu.Unlock()

	for i, slot := range pending {
		<-slot.done
		if slot.err != nil {
			*errs = multierror.Append(*errs, slot.err)
		}
		mu.Lock()
		delete(slots, oids[i])
		mu.Unlock()
	}
}

func batchInfo(b *align.Batch) metrics.BatchInfo {
	return metrics.BatchInfo{OID: b.OID, Num: b.Num, StartQID: b.StartQID, NumQueries: b.Count}
}
