// Package runhistory persists a best-effort record of each run for
// later inspection: what configuration it used, how long it took, and
// its final Stats Aggregator snapshot. It is entirely ambient: the
// search driver's correctness never depends on it, and a failure to
// persist a RunRecord never fails a run.
package runhistory

import "time"

// RunRecord is one completed (or failed) run of the search driver.
type RunRecord struct {
	ID             string `gorm:"primaryKey;column:id"`
	IndexBasename  string `gorm:"column:index_basename"`
	NThreads       int    `gorm:"column:n_threads"`
	StartBatch     int    `gorm:"column:start_batch"`
	EndBatch       int    `gorm:"column:end_batch"`
	NAligns        int64  `gorm:"column:n_aligns"`
	NUnidirAligns  int64  `gorm:"column:n_unidir_aligns"`
	NFilter        int64  `gorm:"column:n_filter"`
	NCandidates    int64  `gorm:"column:n_candidates"`
	NInplace       int64  `gorm:"column:n_inplace"`
	NInplaceAligns int64  `gorm:"column:n_inplace_aligns"`
	StartedAt      time.Time
	FinishedAt     *time.Time
	Succeeded      bool
	ErrorMessage   string
}

// TableName pins the GORM table name independent of package name.
func (RunRecord) TableName() string { return "run_records" }
