package align

import (
	"github.com/srprism/srprism-batch/internal/config"
	"github.com/srprism/srprism-batch/internal/resconf"
	"github.com/srprism/srprism-batch/internal/stats"
)

// NewSeed packages the immutable Run Configuration, the parsed IPAM
// vector, and the shared resources every batch needs into a Seed. This
// is the Batch Factory: it runs once, before the driver's main loop,
// and the returned Seed is never mutated afterward.
func NewSeed(
	cfg *config.RunConfig,
	ipam resconf.IPAM,
	resConfStr string,
	arena Arena,
	index IndexStore,
	idMap IDMap,
	agg *stats.Aggregator,
) *Seed {
	return &Seed{
		Config:     cfg,
		IPAM:       ipam,
		ResConfStr: resConfStr,
		Arena:      arena,
		Index:      index,
		IDMap:      idMap,
		Stats:      agg,
	}
}

// WithScratch returns a copy of the seed with the two single-threaded
// scratch buffers attached. Only meaningful when cfg.NThreads == 1; the
// composition root allocates these from the arena before constructing
// the driver, once, and
// every batch in the single-threaded path reuses them instead of
// allocating its own.
func (s *Seed) WithScratch(unpaired, paired []byte) *Seed {
	cp := *s
	cp.ScratchUnpaired = unpaired
	cp.ScratchPaired = paired
	return &cp
}
