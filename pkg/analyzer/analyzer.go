// Package analyzer classifies a newly appended run's measurements
// against the per-benchmark historical baseline.
package analyzer

import (
	"context"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/regressoor/pkg/benchmark"
	"github.com/ethpandaops/regressoor/pkg/config"
	"github.com/ethpandaops/regressoor/pkg/history"
)

// Direction states which way a benchmark's values should move to be
// considered an improvement.
type Direction string

const (
	// DirectionLowerIsBetter suits latency/time metrics.
	DirectionLowerIsBetter Direction = "lower_is_better"

	// DirectionHigherIsBetter suits throughput metrics.
	DirectionHigherIsBetter Direction = "higher_is_better"
)

// Config holds the analysis tuning. Threshold is a ratio (1.05 = 5%);
// Window is the number of most recent prior entries the baseline is
// aggregated over; Aggregation is "last" or "mean".
type Config struct {
	Threshold        float64
	Window           int
	Aggregation      string
	DefaultDirection Direction
	Directions       map[string]Direction
}

// ConfigFrom converts the loaded application configuration into an
// analyzer Config.
func ConfigFrom(cfg *config.AnalysisConfig) Config {
	directions := make(map[string]Direction, len(cfg.Directions))
	for name, dir := range cfg.Directions {
		directions[name] = Direction(dir)
	}

	return Config{
		Threshold:        cfg.Threshold,
		Window:           cfg.Window,
		Aggregation:      cfg.Aggregation,
		DefaultDirection: Direction(cfg.DefaultDirection),
		Directions:       directions,
	}
}

// direction returns the configured direction for a canonical name.
func (c *Config) direction(name string) Direction {
	if dir, ok := c.Directions[name]; ok {
		return dir
	}

	return c.DefaultDirection
}

// Analyzer classifies runs against their suite's history.
type Analyzer interface {
	Analyze(
		ctx context.Context, suiteName string, run *benchmark.Run,
	) (*Report, error)
}

// Compile-time interface check.
var _ Analyzer = (*analyzer)(nil)

type analyzer struct {
	log   logrus.FieldLogger
	store history.Store
	cfg   Config
}

// NewAnalyzer creates a regression analyzer reading history from the
// given store.
func NewAnalyzer(
	log logrus.FieldLogger,
	store history.Store,
	cfg Config,
) Analyzer {
	return &analyzer{
		log:   log.WithField("component", "analyzer"),
		store: store,
		cfg:   cfg,
	}
}

// Analyze produces one report entry per result of the run, in result
// order. The run is expected to be appended to the store already; its
// own values are excluded from the baseline. Per-entry failures (zero
// baseline) mark the entry Indeterminate and never abort the rest of
// the report.
func (a *analyzer) Analyze(
	ctx context.Context, suiteName string, run *benchmark.Run,
) (*Report, error) {
	report := &Report{
		Suite:       suiteName,
		CommitID:    run.CommitID,
		GeneratedAt: time.Now().UTC(),
		Entries:     make([]Entry, 0, len(run.Results)),
	}

	for _, result := range run.Results {
		series, err := a.store.SeriesFor(ctx, suiteName, result.Name)
		if err != nil {
			return nil, err
		}

		entry := a.classify(result, priorPoints(series, run.CommitID))
		report.Entries = append(report.Entries, entry)

		switch entry.Classification {
		case ClassificationBaseline:
			report.Summary.Baselines++
		case ClassificationRegression:
			report.Summary.Regressions++
		case ClassificationImprovement:
			report.Summary.Improvements++
		case ClassificationStable:
			report.Summary.Stable++
		case ClassificationIndeterminate:
			report.Summary.Indeterminate++
		}
	}

	report.Summary.TotalAnalyzed = len(report.Entries)

	if report.Summary.Regressions > 0 {
		a.log.WithFields(logrus.Fields{
			"suite":       suiteName,
			"commit":      run.CommitID,
			"regressions": report.Summary.Regressions,
		}).Warn("Regressions detected")
	}

	return report, nil
}

// priorPoints strips the new run's own point from the series so the
// baseline covers prior runs only.
func priorPoints(
	series []benchmark.SeriesPoint, commitID string,
) []benchmark.SeriesPoint {
	prior := make([]benchmark.SeriesPoint, 0, len(series))

	for _, p := range series {
		if p.CommitID == commitID {
			continue
		}

		prior = append(prior, p)
	}

	return prior
}

// classify compares one measurement against its baseline window.
func (a *analyzer) classify(
	result benchmark.BenchResult, prior []benchmark.SeriesPoint,
) Entry {
	entry := Entry{
		Name:  result.Name,
		Value: result.Value,
		Unit:  result.Unit,
	}

	if len(prior) == 0 {
		entry.Classification = ClassificationBaseline

		return entry
	}

	baseline, baselineMargin := a.baseline(prior)
	entry.Baseline = baseline

	if baseline == 0 {
		err := &benchmark.DivisionByZeroError{Name: result.Name}

		a.log.WithField("benchmark", result.Name).
			WithError(err).
			Warn("Degenerate baseline, entry marked indeterminate")

		entry.Classification = ClassificationIndeterminate
		entry.Error = err.Error()

		return entry
	}

	delta := (result.Value - baseline) / baseline
	entry.Delta = delta

	// The change in the worse direction, as a positive magnitude.
	worse := delta
	if a.cfg.direction(result.Name) == DirectionHigherIsBetter {
		worse = -delta
	}

	threshold := a.cfg.Threshold - 1
	noiseBand := (result.ErrorMargin + baselineMargin) / math.Abs(baseline)

	switch {
	case worse > threshold && worse > noiseBand:
		entry.Classification = ClassificationRegression
	case -worse > threshold && -worse > noiseBand:
		entry.Classification = ClassificationImprovement
	default:
		entry.Classification = ClassificationStable
	}

	return entry
}

// baseline aggregates the most recent Window prior points into a
// baseline value and margin. With "last" the newest point wins;
// with "mean" both value and margin are averaged over the window.
func (a *analyzer) baseline(
	prior []benchmark.SeriesPoint,
) (float64, float64) {
	window := prior
	if len(window) > a.cfg.Window {
		window = window[len(window)-a.cfg.Window:]
	}

	if a.cfg.Aggregation == "mean" {
		var value, margin float64

		for _, p := range window {
			value += p.Value
			margin += p.ErrorMargin
		}

		n := float64(len(window))

		return value / n, margin / n
	}

	last := window[len(window)-1]

	return last.Value, last.ErrorMargin
}
