package history

// Suite is a named collection of benchmarks run together by one tool.
// Suites are created lazily on first ingestion.
type Suite struct {
	ID   uint   `gorm:"primaryKey"`
	Name string `gorm:"not null;uniqueIndex"`
	Tool string
}

// Run is one appended ingestion event. The (suite_id, commit_id) pair
// is unique; append order is the insertion order of the rows.
type Run struct {
	ID          uint   `gorm:"primaryKey"`
	SuiteID     uint   `gorm:"not null;uniqueIndex:idx_runs_suite_commit;index:idx_runs_suite_ts"`
	CommitID    string `gorm:"not null;uniqueIndex:idx_runs_suite_commit"`
	Timestamp   int64  `gorm:"not null;index:idx_runs_suite_ts"`
	AuthorName  string
	AuthorEmail string
	// DISTINCT is an SQL keyword, so the column gets an explicit name.
	Distinct bool `gorm:"column:is_distinct"`
	Tool     string
}

// Result is one measurement row belonging to a run. The canonical
// name is unique within its run; Position preserves report order.
type Result struct {
	ID          uint   `gorm:"primaryKey"`
	RunID       uint   `gorm:"not null;uniqueIndex:idx_results_run_name"`
	Name        string `gorm:"not null;uniqueIndex:idx_results_run_name;index"`
	RawName     string
	Position    int `gorm:"not null"`
	Value       float64
	ErrorMargin float64
	Unit        string
}
