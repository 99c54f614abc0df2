package analyzer

import "time"

// Classification is the outcome of comparing a new measurement
// against its historical baseline.
type Classification string

const (
	// ClassificationBaseline marks a benchmark with no prior history.
	// It never produces an alert.
	ClassificationBaseline Classification = "baseline"

	// ClassificationRegression marks a change in the worse direction
	// that exceeds both the threshold and the combined noise band.
	ClassificationRegression Classification = "regression"

	// ClassificationImprovement is the symmetric favorable outcome.
	ClassificationImprovement Classification = "improvement"

	// ClassificationStable marks a change within threshold or noise.
	ClassificationStable Classification = "stable"

	// ClassificationIndeterminate marks an entry whose baseline was
	// degenerate (zero), so no relative delta could be computed.
	ClassificationIndeterminate Classification = "indeterminate"
)

// Entry is the analysis outcome for one benchmark of the new run.
// Baseline and Delta are zero for baseline and indeterminate entries;
// Error carries the per-entry analysis failure, if any.
type Entry struct {
	Name           string         `json:"name"`
	Classification Classification `json:"classification"`
	Value          float64        `json:"value"`
	Baseline       float64        `json:"baseline,omitempty"`
	Delta          float64        `json:"delta,omitempty"`
	Unit           string         `json:"unit,omitempty"`
	Error          string         `json:"error,omitempty"`
}

// Summary counts entries per classification.
type Summary struct {
	Baselines     int `json:"baselines"`
	Regressions   int `json:"regressions"`
	Improvements  int `json:"improvements"`
	Stable        int `json:"stable"`
	Indeterminate int `json:"indeterminate"`
	TotalAnalyzed int `json:"total"`
}

// Report is the ordered analysis result for one run, handed to the
// external alert emitter. Entry order matches the run's result order.
type Report struct {
	Suite       string    `json:"suite"`
	CommitID    string    `json:"commitId"`
	GeneratedAt time.Time `json:"generated_at"`
	Summary     Summary   `json:"summary"`
	Entries     []Entry   `json:"entries"`
}

// HasRegressions reports whether any entry was classified as a
// regression.
func (r *Report) HasRegressions() bool {
	return r.Summary.Regressions > 0
}
