// Package config defines the Run Configuration — the immutable set of
// parameters the search driver is constructed from — and its validation
// rules.
package config

import (
	"github.com/srprism/srprism-batch/internal/exception"
)

// SearchMode selects the alignment scoring/reporting policy. The kernel
// that interprets it is out of scope; the driver only validates it.
type SearchMode string

const (
	SearchModeDefault  SearchMode = "default"
	SearchModeSumErr   SearchMode = "sum_err"
	SearchModePartial  SearchMode = "partial"
	SearchModeBoundErr SearchMode = "bound_err"
)

func (m SearchMode) valid() bool {
	switch m {
	case SearchModeDefault, SearchModeSumErr, SearchModePartial, SearchModeBoundErr:
		return true
	default:
		return false
	}
}

// Bounds mirrored from the reference implementation's compile-time
// constants (srprismdef.hpp in the original source).
const (
	MinResLimit = 1
	MaxResLimit = 1 << 16
	MaxPairFuzz = 1 << 20
	MinQLen     = 1
	MaxQLen     = 1 << 16
	MaxNErr     = 31
)

// StorageBackend selects where the Temp Store (and, by extension, the
// final output) physically lives.
type StorageBackend string

const (
	StorageBackendLocal StorageBackend = "local"
	StorageBackendGCS    StorageBackend = "gcs"
)

// RunConfig is the immutable Run Configuration. All fields map 1-to-1 to
// CLI flags in the (out-of-scope) command-line parser.
type RunConfig struct {
	MemLimitMB     int64 // memory cap, megabytes
	BatchLimit     int   // batch size limit, reads (or columns if ForcePaired)
	StartBatch     int   // 1-based
	EndBatch       int   // 1-based, inclusive
	NThreads       int   // worker count; 1 selects the single-threaded path
	NErr           int   // per-read error budget
	MaxQLen        int   // maximum query length

	ForcePaired   bool
	ForceUnpaired bool

	PairDistance int
	PairFuzz     int

	ResConfStr string // 4-char policy string, or an alias

	SearchMode SearchMode

	SAStart int // signed subject-area window start
	SAEnd   int // signed subject-area window end

	Randomize  bool
	RandomSeed int64

	IndexBasename string
	TmpDir        string
	OutputPath    string

	SkipUnmapped  bool
	UseQueryIDs   bool
	UseSubjectIDs bool

	RepeatThreshold int
	ResLimit        int // results-per-read limit

	StrictBatch bool

	// ambient/domain-stack fields.
	StorageBackend  StorageBackend
	GCSBucket       string
	GCSPrefix       string
	RunHistoryDSN   string // "" disables run history persistence
	StatsExportPath string // "" disables parquet stats export
	LogLevel        string
}

// Validate applies the failing conditions in the order the reference
// implementation checks them, so the first violated condition produces
// the diagnostic a user would expect.
func Validate(c *RunConfig) error {
	if !c.SearchMode.valid() {
		return exception.New(exception.KindValidation, "config", "unknown search mode")
	}
	if c.MemLimitMB <= 0 {
		return exception.New(exception.KindValidation, "config", "the value of memory limit must be positive")
	}
	if c.BatchLimit <= 0 {
		return exception.New(exception.KindValidation, "config", "the value of batch size limit must be positive")
	}
	if c.StartBatch < 1 {
		return exception.New(exception.KindValidation, "config", "the value of start batch must be positive")
	}
	if c.EndBatch < c.StartBatch {
		return exception.New(exception.KindValidation, "config", "the value of end batch must be greater or equal to start batch")
	}
	if c.ResLimit < MinResLimit || c.ResLimit > MaxResLimit {
		return exception.New(exception.KindValidation, "config", "invalid value of max number of results reported")
	}
	if c.PairDistance == 0 {
		return exception.New(exception.KindValidation, "config", "the value of pair distance must be positive")
	}
	if c.PairFuzz > c.PairDistance {
		return exception.New(exception.KindValidation, "config", "the value of pair distance fuzz must be at most the value of pair distance")
	}
	if c.PairFuzz > MaxPairFuzz {
		return exception.New(exception.KindValidation, "config", "the value of pair distance fuzz exceeds the maximum")
	}
	if c.MaxQLen < MinQLen || c.MaxQLen > MaxQLen {
		return exception.New(exception.KindValidation, "config", "the value of max query length is out of range")
	}
	if c.NErr > MaxNErr {
		return exception.New(exception.KindValidation, "config", "invalid requested number of errors")
	}
	if c.ForcePaired && c.ForceUnpaired {
		return exception.New(exception.KindValidation, "config", "both forced paired and unpaired search requested")
	}
	if c.SAStart == 0 {
		return exception.New(exception.KindValidation, "config", "sa-start value can not have value 0")
	}
	if c.SAStart > 0 && c.SAEnd < c.SAStart {
		return exception.New(exception.KindValidation, "config", "sa-start value must be less or equal to sa-end value")
	}
	if c.SAStart < 0 && c.SAEnd > c.SAStart {
		return exception.New(exception.KindValidation, "config", "sa-start value must be greater or equal to sa-end value")
	}
	return nil
}

// EffectiveBatchLimit returns the batch-size limit in input columns: when
// ForcePaired is set, each "read" is a pair occupying two columns, so the
// effective limit doubles.
func (c *RunConfig) EffectiveBatchLimit() int {
	if c.ForcePaired {
		return c.BatchLimit * 2
	}
	return c.BatchLimit
}
