// Package benchmark contains the shared data model for benchmark
// histories: runs, results, series points and the exported document
// format.
package benchmark

// Author identifies the commit author of a run. The fields are passed
// through unmodified from the ingestion metadata.
type Author struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// BenchResult is a single measurement within a run. Name is the
// canonical, collision-free identifier assigned by the normalizer;
// RawName is the name as reported by the benchmark tool and may
// collide with other results in the same run.
type BenchResult struct {
	Name        string  `json:"name"`
	RawName     string  `json:"raw_name,omitempty"`
	Value       float64 `json:"value"`
	ErrorMargin float64 `json:"error_margin"`
	Unit        string  `json:"unit"`
}

// Run is one ingestion event tied to one source commit. Runs are
// immutable once appended to a suite's history.
type Run struct {
	CommitID  string        `json:"commitId"`
	Timestamp int64         `json:"timestamp"`
	Author    Author        `json:"author"`
	Distinct  bool          `json:"distinct"`
	Tool      string        `json:"tool"`
	Results   []BenchResult `json:"results"`
}

// RunMeta carries the run-level metadata supplied by the caller at
// ingestion time, before any measurements have been normalized.
type RunMeta struct {
	CommitID  string `json:"commitId" yaml:"commit_id"`
	Timestamp int64  `json:"timestamp" yaml:"timestamp"`
	Author    Author `json:"author" yaml:"author"`
	Distinct  bool   `json:"distinct" yaml:"distinct"`
	Tool      string `json:"tool" yaml:"tool"`
}

// SeriesPoint is one entry of a benchmark's history series: the value
// and error margin a canonical name had in one run.
type SeriesPoint struct {
	CommitID    string  `json:"commitId"`
	Timestamp   int64   `json:"timestamp"`
	Value       float64 `json:"value"`
	ErrorMargin float64 `json:"error_margin"`
	Unit        string  `json:"unit"`
}

// Document is the top-level exported structure holding the full
// history of every suite. Run order within a suite is append order
// and is non-decreasing in commit timestamp.
type Document struct {
	LastUpdate int64            `json:"lastUpdate"`
	SourceRef  string           `json:"sourceRef"`
	Suites     map[string][]Run `json:"suites"`
}
