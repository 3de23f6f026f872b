// Package stats implements the Stats Aggregator: atomically updated
// run-wide counters mirroring the reference implementation's CStatMap
// entries, exposed both for in-process inspection and as a Prometheus
// Collector.
package stats

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// Aggregator holds the run-wide counters. All fields are updated only
// through atomic operations so workers can increment them without
// additional locking.
type Aggregator struct {
	nAligns        int64
	nUnidirAligns  int64
	nFilter        int64
	nCandidates    int64
	nInplace       int64
	nInplaceAligns int64
}

// New returns a zeroed Aggregator.
func New() *Aggregator {
	return &Aggregator{}
}

func (a *Aggregator) AddAligns(n int64)        { atomic.AddInt64(&a.nAligns, n) }
func (a *Aggregator) AddUnidirAligns(n int64)  { atomic.AddInt64(&a.nUnidirAligns, n) }
func (a *Aggregator) AddFilter(n int64)        { atomic.AddInt64(&a.nFilter, n) }
func (a *Aggregator) AddCandidates(n int64)    { atomic.AddInt64(&a.nCandidates, n) }
func (a *Aggregator) AddInplace(n int64)       { atomic.AddInt64(&a.nInplace, n) }
func (a *Aggregator) AddInplaceAligns(n int64) { atomic.AddInt64(&a.nInplaceAligns, n) }

// Snapshot is a point-in-time, non-atomic read of every counter.
type Snapshot struct {
	Aligns        int64
	UnidirAligns  int64
	Filter        int64
	Candidates    int64
	Inplace       int64
	InplaceAligns int64
}

// Snapshot reads all counters. The individual reads are each atomic but
// the snapshot as a whole is not a consistent point-in-time view across
// counters while workers are still running; callers that need that
// consistency should snapshot only after the driver has drained all
// workers.
func (a *Aggregator) Snapshot() Snapshot {
	return Snapshot{
		Aligns:        atomic.LoadInt64(&a.nAligns),
		UnidirAligns:  atomic.LoadInt64(&a.nUnidirAligns),
		Filter:        atomic.LoadInt64(&a.nFilter),
		Candidates:    atomic.LoadInt64(&a.nCandidates),
		Inplace:       atomic.LoadInt64(&a.nInplace),
		InplaceAligns: atomic.LoadInt64(&a.nInplaceAligns),
	}
}

// descriptors for the Prometheus Collector implementation below.
var (
	descAligns = prometheus.NewDesc(
		"srprism_n_aligns_total", "Total number of alignments reported.", nil, nil)
	descUnidirAligns = prometheus.NewDesc(
		"srprism_n_unidir_aligns_total", "Total number of single-strand alignments reported.", nil, nil)
	descFilter = prometheus.NewDesc(
		"srprism_n_filter_total", "Total number of reads rejected by the filter.", nil, nil)
	descCandidates = prometheus.NewDesc(
		"srprism_n_candidates_total", "Total number of alignment candidates generated.", nil, nil)
	descInplace = prometheus.NewDesc(
		"srprism_n_inplace_total", "Total number of in-place extension attempts.", nil, nil)
	descInplaceAligns = prometheus.NewDesc(
		"srprism_n_inplace_aligns_total", "Total number of alignments found by in-place extension.", nil, nil)
)

// Describe implements prometheus.Collector.
func (a *Aggregator) Describe(ch chan<- *prometheus.Desc) {
	ch <- descAligns
	ch <- descUnidirAligns
	ch <- descFilter
	ch <- descCandidates
	ch <- descInplace
	ch <- descInplaceAligns
}

// Collect implements prometheus.Collector.
func (a *Aggregator) Collect(ch chan<- prometheus.Metric) {
	snap := a.Snapshot()
	ch <- prometheus.MustNewConstMetric(descAligns, prometheus.CounterValue, float64(snap.Aligns))
	ch <- prometheus.MustNewConstMetric(descUnidirAligns, prometheus.CounterValue, float64(snap.UnidirAligns))
	ch <- prometheus.MustNewConstMetric(descFilter, prometheus.CounterValue, float64(snap.Filter))
	ch <- prometheus.MustNewConstMetric(descCandidates, prometheus.CounterValue, float64(snap.Candidates))
	ch <- prometheus.MustNewConstMetric(descInplace, prometheus.CounterValue, float64(snap.Inplace))
	ch <- prometheus.MustNewConstMetric(descInplaceAligns, prometheus.CounterValue, float64(snap.InplaceAligns))
}

var _ prometheus.Collector = (*Aggregator)(nil)
