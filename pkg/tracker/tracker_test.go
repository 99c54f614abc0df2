package tracker_test

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethpandaops/regressoor/pkg/analyzer"
	"github.com/ethpandaops/regressoor/pkg/benchmark"
	"github.com/ethpandaops/regressoor/pkg/config"
	"github.com/ethpandaops/regressoor/pkg/history"
	"github.com/ethpandaops/regressoor/pkg/normalizer"
	"github.com/ethpandaops/regressoor/pkg/tracker"
)

func setupTracker(t *testing.T) tracker.Tracker {
	t.Helper()

	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	store := history.NewStore(log, &config.DatabaseConfig{
		Driver: "sqlite",
		SQLite: config.SQLiteConfig{Path: ":memory:"},
	})

	an := analyzer.NewAnalyzer(log, store, analyzer.Config{
		Threshold:        1.05,
		Window:           1,
		Aggregation:      "last",
		DefaultDirection: analyzer.DirectionLowerIsBetter,
	})

	tr := tracker.NewTracker(log, store, an, 0)
	require.NoError(t, tr.Start(context.Background()))

	t.Cleanup(func() { _ = tr.Stop() })

	return tr
}

func meta(commitID string, ts int64) benchmark.RunMeta {
	return benchmark.RunMeta{
		CommitID:  commitID,
		Timestamp: ts,
		Author:    benchmark.Author{Name: "dev", Email: "dev@example.com"},
		Distinct:  true,
		Tool:      "cargo-bench",
	}
}

func TestIngest_EndToEnd(t *testing.T) {
	tr := setupTracker(t)
	ctx := context.Background()

	// First run: no history, everything is a baseline.
	report, err := tr.Ingest(ctx, "main", meta("c1", 100),
		[]normalizer.RawMeasurement{
			{Name: "X", Value: 1000, ErrorMargin: 10, Unit: "ns/iter"},
		})
	require.NoError(t, err)
	require.Len(t, report.Entries, 1)
	assert.Equal(t,
		analyzer.ClassificationBaseline, report.Entries[0].Classification)

	series, err := tr.Query(ctx, "main", "X")
	require.NoError(t, err)
	require.Len(t, series, 1)
	assert.Equal(t, 1000.0, series[0].Value)

	// Second run doubles the value: a clear regression.
	report, err = tr.Ingest(ctx, "main", meta("c2", 200),
		[]normalizer.RawMeasurement{
			{Name: "X", Value: 2000, ErrorMargin: 10, Unit: "ns/iter"},
		})
	require.NoError(t, err)
	require.Len(t, report.Entries, 1)

	entry := report.Entries[0]
	assert.Equal(t, analyzer.ClassificationRegression, entry.Classification)
	assert.Equal(t, 1000.0, entry.Baseline)
	assert.InDelta(t, 1.0, entry.Delta, 1e-9)
	assert.True(t, report.HasRegressions())

	// The series now holds both points in ingestion order.
	series, err = tr.Query(ctx, "main", "X")
	require.NoError(t, err)
	require.Len(t, series, 2)
	assert.Equal(t, "c1", series[0].CommitID)
	assert.Equal(t, "c2", series[1].CommitID)
}

func TestIngest_DuplicateCommitIdempotent(t *testing.T) {
	tr := setupTracker(t)
	ctx := context.Background()

	raw := []normalizer.RawMeasurement{
		{Name: "X", Value: 1000, Unit: "ns/iter"},
	}

	_, err := tr.Ingest(ctx, "main", meta("c1", 100), raw)
	require.NoError(t, err)

	// Re-ingesting the same commit is rejected...
	_, err = tr.Ingest(ctx, "main", meta("c1", 100), raw)
	require.Error(t, err)

	var dup *benchmark.DuplicateCommitError
	require.True(t, errors.As(err, &dup))

	// ...and rejected again, with the run list unchanged.
	_, err = tr.Ingest(ctx, "main", meta("c1", 100), raw)
	require.Error(t, err)

	series, err := tr.Query(ctx, "main", "X")
	require.NoError(t, err)
	assert.Len(t, series, 1)
}

func TestIngest_ValidationLeavesStoreUntouched(t *testing.T) {
	tr := setupTracker(t)
	ctx := context.Background()

	_, err := tr.Ingest(ctx, "main", meta("c1", 100),
		[]normalizer.RawMeasurement{
			{Name: "good", Value: 1},
			{Name: "", Value: 2},
		})
	require.Error(t, err)

	var verr *benchmark.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, 1, verr.Position)

	// Nothing was appended, not even the valid entry.
	latest, err := tr.Latest(ctx, "main")
	require.NoError(t, err)
	assert.Nil(t, latest)
}

func TestIngest_DuplicateNamesDisambiguated(t *testing.T) {
	tr := setupTracker(t)
	ctx := context.Background()

	report, err := tr.Ingest(ctx, "main", meta("c1", 100),
		[]normalizer.RawMeasurement{
			{Name: "A", Value: 1},
			{Name: "B", Value: 2},
			{Name: "A", Value: 3},
			{Name: "A", Value: 4},
		})
	require.NoError(t, err)
	require.Len(t, report.Entries, 4)

	assert.Equal(t, "A", report.Entries[0].Name)
	assert.Equal(t, "B", report.Entries[1].Name)
	assert.Equal(t, "A #2", report.Entries[2].Name)
	assert.Equal(t, "A #3", report.Entries[3].Name)

	// Each canonical name tracks its own series across commits.
	_, err = tr.Ingest(ctx, "main", meta("c2", 200),
		[]normalizer.RawMeasurement{
			{Name: "A", Value: 10},
			{Name: "B", Value: 2},
			{Name: "A", Value: 30},
			{Name: "A", Value: 40},
		})
	require.NoError(t, err)

	series, err := tr.Query(ctx, "main", "A #3")
	require.NoError(t, err)
	require.Len(t, series, 2)
	assert.Equal(t, 4.0, series[0].Value)
	assert.Equal(t, 40.0, series[1].Value)
}

func TestIngest_IndependentSuites(t *testing.T) {
	tr := setupTracker(t)
	ctx := context.Background()

	raw := []normalizer.RawMeasurement{{Name: "X", Value: 1}}

	_, err := tr.Ingest(ctx, "main", meta("c1", 100), raw)
	require.NoError(t, err)

	// The same commit in another suite is independent history.
	_, err = tr.Ingest(ctx, "nightly", meta("c1", 100), raw)
	require.NoError(t, err)

	suites, err := tr.Suites(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"main", "nightly"}, suites)
}

func TestAnalyzeAll(t *testing.T) {
	tr := setupTracker(t)
	ctx := context.Background()

	for _, suite := range []string{"main", "nightly"} {
		_, err := tr.Ingest(ctx, suite, meta("c1", 100),
			[]normalizer.RawMeasurement{
				{Name: "X", Value: 100, ErrorMargin: 1},
			})
		require.NoError(t, err)

		_, err = tr.Ingest(ctx, suite, meta("c2", 200),
			[]normalizer.RawMeasurement{
				{Name: "X", Value: 200, ErrorMargin: 1},
			})
		require.NoError(t, err)
	}

	reports, err := tr.AnalyzeAll(ctx)
	require.NoError(t, err)
	require.Len(t, reports, 2)

	for suite, report := range reports {
		assert.Equal(t, "c2", report.CommitID, suite)
		assert.Equal(t, 1, report.Summary.Regressions, suite)
	}
}

func TestExport_Document(t *testing.T) {
	tr := setupTracker(t)
	ctx := context.Background()

	_, err := tr.Ingest(ctx, "main", meta("c1", 100),
		[]normalizer.RawMeasurement{{Name: "X", Value: 1, Unit: "ns/iter"}})
	require.NoError(t, err)

	doc, err := tr.Export(ctx, "https://github.com/example/project")
	require.NoError(t, err)

	assert.Equal(t, "https://github.com/example/project", doc.SourceRef)
	require.Len(t, doc.Suites["main"], 1)
	assert.Equal(t, "c1", doc.Suites["main"][0].CommitID)
}
