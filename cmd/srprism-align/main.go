// Command srprism-align is the composition root: it loads the Run
// Configuration, wires the Memory Arena, Temp Store, Stats Aggregator,
// Metrics/Tracing, Run History Store, and Batch Stats Export around the
// Search Driver, and runs one search to completion.
//
// The alignment kernel and sequence input parsing are external
// collaborators out of this repository's scope; this binary wires
// internal/devkernel's line-counting stand-ins so the driver has
// something real to call end to end. A production deployment replaces
// devkernel.Kernel and devkernel.LineSource with the real alignment
// engine and sequence decoder.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"

	"github.com/srprism/srprism-batch/internal/align"
	"github.com/srprism/srprism-batch/internal/arena"
	"github.com/srprism/srprism-batch/internal/collator"
	"github.com/srprism/srprism-batch/internal/config"
	"github.com/srprism/srprism-batch/internal/devkernel"
	"github.com/srprism/srprism-batch/internal/driver"
	"github.com/srprism/srprism-batch/internal/logger"
	"github.com/srprism/srprism-batch/internal/metrics"
	"github.com/srprism/srprism-batch/internal/resconf"
	"github.com/srprism/srprism-batch/internal/runhistory"
	"github.com/srprism/srprism-batch/internal/stats"
	"github.com/srprism/srprism-batch/internal/statsexport"
	"github.com/srprism/srprism-batch/internal/storage"
	"github.com/srprism/srprism-batch/internal/storage/gcs"
	"github.com/srprism/srprism-batch/internal/storage/local"
	"github.com/srprism/srprism-batch/internal/tempstore"
)

// cliFlags are the command-line flags this binary reads: the .env and
// YAML file paths, the devkernel read file, and the metrics address. None
// of them overrides a Run Configuration field; config.Load is called with
// no overrides.
type cliFlags struct {
	envFile    string
	yamlFile   string
	readsFile  string
	metricsAddr string
}

func parseFlags() cliFlags {
	var f cliFlags
	flag.StringVar(&f.envFile, "env", "", "path to a .env file (default: \".env\" if present)")
	flag.StringVar(&f.yamlFile, "config", "", "path to a YAML Run Configuration file")
	flag.StringVar(&f.readsFile, "reads", "reads.txt", "path to the line-per-read input file (devkernel)")
	flag.StringVar(&f.metricsAddr, "metrics-addr", "", "if set, serve Prometheus metrics on this address (e.g. :9090)")
	flag.Parse()
	return f
}

func main() {
	flags := parseFlags()

	cfg, err := config.Load(flags.envFile, flags.yamlFile, nil)
	if err != nil {
		logger.Fatalf("failed to load run configuration: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Warnf("received signal %v, cancelling run", sig)
		cancel()
	}()

	app := fx.New(
		fx.Supply(cfg, flags),
		fx.Provide(
			newStorageConnection,
			newArena,
			newTempStore,
			newStatsAggregator,
			newRecorder,
			newTracer,
			newRunHistoryStore,
			newStatsExportWriter,
			newSeed,
			newKernel,
			newInputSource,
			newCollator,
			newDriver,
		),
		fx.Invoke(runSearch(ctx)),
	)

	app.Run()
	if app.Err() != nil {
		logger.Fatalf("application failed: %v", app.Err())
	}
}

func newStorageConnection(cfg *config.RunConfig) (storage.Connection, error) {
	switch cfg.StorageBackend {
	case config.StorageBackendGCS:
		return gcs.New(context.Background(), cfg.GCSBucket, cfg.GCSPrefix, "")
	default:
		dir := cfg.TmpDir
		if dir == "" {
			dir = "."
		}
		return local.New(dir)
	}
}

func newArena(cfg *config.RunConfig) *arena.Arena {
	return arena.New(cfg.MemLimitMB)
}

func newTempStore(conn storage.Connection) *tempstore.Store {
	return tempstore.New(conn)
}

func newStatsAggregator() *stats.Aggregator {
	return stats.New()
}

func newRecorder(agg *stats.Aggregator, flags cliFlags) metrics.Recorder {
	rec := metrics.NewPrometheusRecorder()
	if err := rec.Registry().Register(agg); err != nil {
		logger.Warnf("metrics: failed to register stats aggregator collector: %v", err)
	}
	if flags.metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(rec.Registry(), promhttp.HandlerOpts{}))
		go func() {
			if err := http.ListenAndServe(flags.metricsAddr, mux); err != nil {
				logger.Errorf("metrics: server on %s exited: %v", flags.metricsAddr, err)
			}
		}()
		logger.Infof("metrics: serving Prometheus metrics on %s/metrics", flags.metricsAddr)
	}
	return rec
}

// discardExporter implements sdktrace.SpanExporter by dropping every
// span. No OTLP endpoint is configured for a single host run; wiring
// the real SDK (rather than a logging stub) still gives every batch a
// genuine span with correct parent/child relationships in-process.
type discardExporter struct{}

func (discardExporter) ExportSpans(context.Context, []sdktrace.ReadOnlySpan) error { return nil }
func (discardExporter) Shutdown(context.Context) error                            { return nil }

func newTracer(lc fx.Lifecycle) metrics.Tracer {
	t := metrics.NewOTelTracer(sdktrace.NewSimpleSpanProcessor(discardExporter{}))
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error { return t.Shutdown(ctx) },
	})
	return t
}

func newRunHistoryStore(cfg *config.RunConfig) (runhistory.Store, error) {
	if cfg.RunHistoryDSN == "" {
		return nil, nil
	}
	return runhistory.Open(cfg.RunHistoryDSN)
}

func newStatsExportWriter(cfg *config.RunConfig) (*statsexport.Writer, error) {
	if cfg.StatsExportPath == "" {
		return nil, nil
	}
	return statsexport.Open(cfg.StatsExportPath)
}

func newSeed(cfg *config.RunConfig, a *arena.Arena, agg *stats.Aggregator) (*align.Seed, error) {
	resConfStr := cfg.ResConfStr
	if cfg.SAStart < 0 {
		resConfStr = resconf.Swap02_13(resConfStr)
	}
	ipam := resconf.Parse(resConfStr)

	seed := align.NewSeed(cfg, ipam, resConfStr, a, nil, nil, agg)
	if cfg.NThreads == 1 {
		unpaired, err := a.Allocate(cfg.MaxQLen)
		if err != nil {
			return nil, fmt.Errorf("main: failed to allocate unpaired scratch: %w", err)
		}
		paired, err := a.Allocate(cfg.MaxQLen * 2)
		if err != nil {
			return nil, fmt.Errorf("main: failed to allocate paired scratch: %w", err)
		}
		seed = seed.WithScratch(unpaired, paired)
	}
	return seed, nil
}

func newKernel(conn storage.Connection) align.Kernel {
	return devkernel.Kernel{Conn: conn}
}

func newInputSource(flags cliFlags) align.InputSource {
	return devkernel.NewLineSource(flags.readsFile)
}

func newCollator(conn storage.Connection, cfg *config.RunConfig) (*collator.Collator, error) {
	outputPath := cfg.OutputPath
	if outputPath == "" {
		outputPath = "srprism-align.out"
	}
	return collator.Open(context.Background(), conn, outputPath)
}

func newDriver(
	cfg *config.RunConfig,
	seed *align.Seed,
	kernel align.Kernel,
	input align.InputSource,
	temp *tempstore.Store,
	coll *collator.Collator,
	recorder metrics.Recorder,
	tracer metrics.Tracer,
	statsWriter *statsexport.Writer,
) *driver.Driver {
	d := driver.New(cfg, seed, kernel, input, temp, coll, recorder, tracer)
	if statsWriter != nil {
		d.SetStatsExporter(statsWriter)
	}
	return d
}

// runSearch is invoked by Fx once the object graph is built: it runs one
// search to completion on its own goroutine, persists a RunRecord if a
// Run History Store was configured, and requests application shutdown.
func runSearch(ctx context.Context) func(fx.Lifecycle, fx.Shutdowner, *driver.Driver, *collator.Collator, runhistory.Store, *stats.Aggregator, *config.RunConfig) {
	return func(lc fx.Lifecycle, shutdowner fx.Shutdowner, d *driver.Driver, coll *collator.Collator, history runhistory.Store, agg *stats.Aggregator, cfg *config.RunConfig) {
		lc.Append(fx.Hook{
			OnStart: func(context.Context) error {
				go func() {
					defer func() {
						if err := shutdowner.Shutdown(); err != nil {
							logger.Errorf("main: failed to request shutdown: %v", err)
						}
					}()

					startedAt := time.Now()
					runErr := d.Run(ctx)
					if closeErr := coll.Close(); runErr == nil {
						runErr = closeErr
					}

					if runErr != nil {
						logger.Errorf("search run failed: %v", runErr)
					} else {
						logger.Infof("search run completed successfully")
					}

					if history != nil {
						saveRunRecord(history, uuid.NewString(), startedAt, cfg, agg, runErr)
					}
				}()
				return nil
			},
		})
	}
}

func saveRunRecord(history runhistory.Store, id string, startedAt time.Time, cfg *config.RunConfig, agg *stats.Aggregator, runErr error) {
	snap := agg.Snapshot()
	finishedAt := time.Now()
	rec := &runhistory.RunRecord{
		ID:             id,
		IndexBasename:  cfg.IndexBasename,
		NThreads:       cfg.NThreads,
		StartBatch:     cfg.StartBatch,
		EndBatch:       cfg.EndBatch,
		NAligns:        snap.Aligns,
		NUnidirAligns:  snap.UnidirAligns,
		NFilter:        snap.Filter,
		NCandidates:    snap.Candidates,
		NInplace:       snap.Inplace,
		NInplaceAligns: snap.InplaceAligns,
		StartedAt:      startedAt,
		FinishedAt:     &finishedAt,
		Succeeded:      runErr == nil,
	}
	if runErr != nil {
		rec.ErrorMessage = runErr.Error()
	}
	if err := history.SaveRun(context.Background(), rec); err != nil {
		logger.Warnf("main: failed to persist run record: %v", err)
	}
}
