package driver_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	parquetlocal "github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/reader"

	"github.com/srprism/srprism-batch/internal/align"
	"github.com/srprism/srprism-batch/internal/collator"
	"github.com/srprism/srprism-batch/internal/config"
	"github.com/srprism/srprism-batch/internal/driver"
	"github.com/srprism/srprism-batch/internal/resconf"
	"github.com/srprism/srprism-batch/internal/stats"
	"github.com/srprism/srprism-batch/internal/statsexport"
	"github.com/srprism/srprism-batch/internal/storage"
	"github.com/srprism/srprism-batch/internal/storage/local"
	"github.com/srprism/srprism-batch/internal/tempstore"
)

// fakeSource hands out batches of up to `capacity` reads from a fixed
// pool of totalReads, recording every capacity it was asked to fill.
type fakeSource struct {
	mu         sync.Mutex
	totalReads int64
	consumed   int64
	cols       int
	capacities []int64
}

func (s *fakeSource) Open(_ context.Context, wantCols int) error {
	s.cols = wantCols
	return nil
}
func (s *fakeSource) NCols() int { return s.cols }
func (s *fakeSource) Done() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.consumed >= s.totalReads
}
func (s *fakeSource) Advance(_ context.Context, seed *align.Seed, oid, num, startQID, capacity int64, paired bool) (*align.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	remaining := s.totalReads - s.consumed
	n := capacity
	if n > remaining {
		n = remaining
	}
	s.consumed += n
	s.capacities = append(s.capacities, capacity)
	b := &align.Batch{
		OID: oid, Num: num, StartQID: startQID, Count: n, Paired: paired, Seed: seed,
	}
	b.SetEndQID(startQID + n)
	return b, nil
}
func (s *fakeSource) Close(context.Context) error { return nil }

func TestSingleThreadedOrderingMatchesConstruction(t *testing.T) {
	dir := t.TempDir()
	conn, err := local.New(dir)
	require.NoError(t, err)

	src := &fakeSource{totalReads: 5}
	temp := tempstore.New(conn)
	coll, err := collator.Open(context.Background(), conn, "final.out")
	require.NoError(t, err)

	var ran []int64
	var mu sync.Mutex
	k := recorderKernel{conn: conn, ran: &ran, mu: &mu}

	cfg := baseConfig()
	cfg.NThreads = 1
	cfg.BatchLimit = 2
	cfg.StartBatch = 1
	cfg.EndBatch = 3

	d := driver.New(cfg, nil, k, src, temp, coll, nil, nil)
	require.NoError(t, d.Run(context.Background()))
	require.NoError(t, coll.Close())

	assert.Equal(t, []int64{0, 1, 2}, ran)
	assert.Equal(t, []int64{2, 2, 2}, src.capacities)
}

func TestMultiThreadedOrderingMatchesOidOrder(t *testing.T) {
	dir := t.TempDir()
	conn, err := local.New(dir)
	require.NoError(t, err)

	src := &fakeSource{totalReads: 100}
	temp := tempstore.New(conn)
	coll, err := collator.Open(context.Background(), conn, "final.out")
	require.NoError(t, err)

	var ran []int64
	var mu sync.Mutex
	k := recorderKernel{conn: conn, ran: &ran, mu: &mu, reverseFinish: true}

	cfg := baseConfig()
	cfg.NThreads = 4
	cfg.BatchLimit = 10
	cfg.StartBatch = 1
	cfg.EndBatch = 10

	d := driver.New(cfg, nil, k, src, temp, coll, nil, nil)
	d.SetPollInterval(time.Millisecond)
	require.NoError(t, d.Run(context.Background()))
	require.NoError(t, coll.Close())

	r, err := conn.Open(context.Background(), "final.out")
	require.NoError(t, err)
	defer r.Close()
	buf := make([]byte, 4096)
	n, _ := r.Read(buf)
	got := string(buf[:n])

	want := ""
	for i := int64(0); i < 10; i++ {
		want += fmt.Sprintf("batch-%d\n", i)
	}
	assert.Equal(t, want, got)
}

func TestSkipsBatchesOutsideRange(t *testing.T) {
	dir := t.TempDir()
	conn, err := local.New(dir)
	require.NoError(t, err)

	src := &fakeSource{totalReads: 6}
	temp := tempstore.New(conn)
	coll, err := collator.Open(context.Background(), conn, "final.out")
	require.NoError(t, err)

	var ran []int64
	var mu sync.Mutex
	k := recorderKernel{conn: conn, ran: &ran, mu: &mu}

	cfg := baseConfig()
	cfg.NThreads = 1
	cfg.BatchLimit = 2
	cfg.StartBatch = 2
	cfg.EndBatch = 2

	d := driver.New(cfg, nil, k, src, temp, coll, nil, nil)
	require.NoError(t, d.Run(context.Background()))

	assert.Equal(t, []int64{1}, ran)
}

func TestSkipsBatchesOutsideRangeWithMultipleThreads(t *testing.T) {
	dir := t.TempDir()
	conn, err := local.New(dir)
	require.NoError(t, err)

	src := &fakeSource{totalReads: 10}
	temp := tempstore.New(conn)
	coll, err := collator.Open(context.Background(), conn, "final.out")
	require.NoError(t, err)

	var ran []int64
	var mu sync.Mutex
	k := recorderKernel{conn: conn, ran: &ran, mu: &mu}

	cfg := baseConfig()
	cfg.NThreads = 2
	cfg.BatchLimit = 2
	cfg.StartBatch = 3
	cfg.EndBatch = 5

	d := driver.New(cfg, nil, k, src, temp, coll, nil, nil)
	d.SetPollInterval(time.Millisecond)
	require.NoError(t, d.Run(context.Background()))
	require.NoError(t, coll.Close())

	assert.ElementsMatch(t, []int64{2, 3, 4}, ran)
}

func TestWrongStrandConfigurationFails(t *testing.T) {
	dir := t.TempDir()
	conn, err := local.New(dir)
	require.NoError(t, err)
	temp := tempstore.New(conn)
	coll, err := collator.Open(context.Background(), conn, "final.out")
	require.NoError(t, err)

	cfg := baseConfig()
	seed := &align.Seed{IPAM: resconf.Parse("0000")}

	d := driver.New(cfg, seed, recorderKernel{conn: conn}, &fakeSource{totalReads: 1}, temp, coll, nil, nil)
	err = d.Run(context.Background())
	require.Error(t, err)
}

func TestStatsExportWritesOneRowPerCompletedBatch(t *testing.T) {
	dir := t.TempDir()
	conn, err := local.New(dir)
	require.NoError(t, err)

	src := &fakeSource{totalReads: 6}
	temp := tempstore.New(conn)
	coll, err := collator.Open(context.Background(), conn, "final.out")
	require.NoError(t, err)

	var ran []int64
	var mu sync.Mutex
	k := recorderKernel{conn: conn, ran: &ran, mu: &mu}

	cfg := baseConfig()
	cfg.NThreads = 1
	cfg.BatchLimit = 2
	cfg.StartBatch = 1
	cfg.EndBatch = 3

	seed := &align.Seed{Stats: stats.New()}

	exportPath := dir + "/batch-stats.parquet"
	sw, err := statsexport.Open(exportPath)
	require.NoError(t, err)

	d := driver.New(cfg, seed, k, src, temp, coll, nil, nil)
	d.SetStatsExporter(sw)
	require.NoError(t, d.Run(context.Background()))
	require.NoError(t, coll.Close())

	assert.Equal(t, []int64{0, 1, 2}, ran)

	fr, err := parquetlocal.NewLocalFileReader(exportPath)
	require.NoError(t, err)
	defer fr.Close()
	pr, err := reader.NewParquetReader(fr, new(statsexport.BatchStatsSnapshot), 1)
	require.NoError(t, err)
	defer pr.ReadStop()
	assert.EqualValues(t, 3, pr.GetNumRows())
}

func TestNeitherPairedNorUnpairedFails(t *testing.T) {
	dir := t.TempDir()
	conn, err := local.New(dir)
	require.NoError(t, err)
	temp := tempstore.New(conn)
	coll, err := collator.Open(context.Background(), conn, "final.out")
	require.NoError(t, err)

	cfg := baseConfig()
	cfg.ForcePaired = false
	cfg.ForceUnpaired = false

	d := driver.New(cfg, nil, recorderKernel{conn: conn}, &fakeSource{totalReads: 1}, temp, coll, nil, nil)
	err = d.Run(context.Background())
	require.Error(t, err)
}

func baseConfig() *config.RunConfig {
	return &config.RunConfig{
		MemLimitMB:    1024,
		BatchLimit:    2,
		StartBatch:    1,
		EndBatch:      1 << 20,
		NThreads:      1,
		NErr:          1,
		MaxQLen:       100,
		ForceUnpaired: true,
		PairDistance:  1,
		PairFuzz:      0,
		ResConfStr:    "1111",
		SearchMode:    config.SearchModeDefault,
		SAStart:       1,
		SAEnd:         1,
		ResLimit:      10,
	}
}

// recorderKernel implements align.Kernel; it writes a fixed marker line
// per batch to a per-batch output file named the same as the batch's
// registered output, and records completion order.
type recorderKernel struct {
	conn          storage.Connection
	ran           *[]int64
	mu            *sync.Mutex
	reverseFinish bool
}

func (k recorderKernel) run(ctx context.Context, b *align.Batch) (align.RunResult, error) {
	if k.reverseFinish {
		// Higher-oid batches finish first, forcing the driver's
		// ordered-append logic to hold their output until every
		// lower-oid batch has completed.
		time.Sleep(time.Duration(10-b.OID) * time.Millisecond)
	}
	w, err := k.conn.Create(ctx, b.OutputName)
	if err != nil {
		return align.RunResult{}, err
	}
	if _, err := w.Write([]byte(fmt.Sprintf("batch-%d\n", b.OID))); err != nil {
		return align.RunResult{}, err
	}
	if err := w.Close(); err != nil {
		return align.RunResult{}, err
	}
	if k.mu != nil {
		k.mu.Lock()
		*k.ran = append(*k.ran, b.OID)
		k.mu.Unlock()
	}
	return align.RunResult{Continue: true}, nil
}

func (k recorderKernel) AlignUnpaired(ctx context.Context, b *align.Batch) (align.RunResult, error) {
	return k.run(ctx, b)
}
func (k recorderKernel) AlignPaired(ctx context.Context, b *align.Batch) (align.RunResult, error) {
	return k.run(ctx, b)
}
