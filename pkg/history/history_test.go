package history_test

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethpandaops/regressoor/pkg/benchmark"
	"github.com/ethpandaops/regressoor/pkg/config"
	"github.com/ethpandaops/regressoor/pkg/history"
)

func setupTestStore(t *testing.T) history.Store {
	t.Helper()

	cfg := &config.DatabaseConfig{
		Driver: "sqlite",
		SQLite: config.SQLiteConfig{Path: ":memory:"},
	}

	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	s := history.NewStore(log, cfg)
	require.NoError(t, s.Start(context.Background()))

	t.Cleanup(func() { _ = s.Stop() })

	return s
}

func makeRun(commitID string, ts int64, results ...benchmark.BenchResult) *benchmark.Run {
	return &benchmark.Run{
		CommitID:  commitID,
		Timestamp: ts,
		Author:    benchmark.Author{Name: "dev", Email: "dev@example.com"},
		Distinct:  true,
		Tool:      "cargo-bench",
		Results:   results,
	}
}

func TestStore_AppendAndReadBack(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	run := makeRun("c1", 100,
		benchmark.BenchResult{
			Name: "decode", Value: 1000, ErrorMargin: 10, Unit: "ns/iter",
		},
		benchmark.BenchResult{
			Name: "encode", Value: 500, ErrorMargin: 5, Unit: "ns/iter",
		},
	)

	require.NoError(t, s.AppendRun(ctx, "main", run))

	latest, err := s.LatestRun(ctx, "main")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "c1", latest.CommitID)
	assert.Equal(t, "dev", latest.Author.Name)
	assert.True(t, latest.Distinct)
	require.Len(t, latest.Results, 2)

	// Result order within the run is preserved.
	assert.Equal(t, "decode", latest.Results[0].Name)
	assert.Equal(t, "encode", latest.Results[1].Name)
}

func TestStore_DuplicateCommitRejected(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.AppendRun(ctx, "main",
		makeRun("c1", 100, benchmark.BenchResult{Name: "x", Value: 1})))

	err := s.AppendRun(ctx, "main",
		makeRun("c1", 200, benchmark.BenchResult{Name: "x", Value: 2}))
	require.Error(t, err)

	var dup *benchmark.DuplicateCommitError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, "main", dup.Suite)
	assert.Equal(t, "c1", dup.CommitID)

	// The store is untouched: still exactly one run, original values.
	runs, err := s.Runs(ctx, "main")
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, int64(100), runs[0].Timestamp)
	assert.Equal(t, 1.0, runs[0].Results[0].Value)

	// The same commit is legal in a different suite.
	require.NoError(t, s.AppendRun(ctx, "nightly",
		makeRun("c1", 100, benchmark.BenchResult{Name: "x", Value: 1})))
}

func TestStore_TimestampOrderEnforced(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.AppendRun(ctx, "main", makeRun("c1", 200)))

	err := s.AppendRun(ctx, "main", makeRun("c2", 100))
	require.Error(t, err)
	assert.ErrorIs(t, err, history.ErrTimestampOrder)

	// Equal timestamps are allowed (non-decreasing, not increasing).
	require.NoError(t, s.AppendRun(ctx, "main", makeRun("c3", 200)))

	runs, err := s.Runs(ctx, "main")
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "c1", runs[0].CommitID)
	assert.Equal(t, "c3", runs[1].CommitID)
}

func TestStore_SeriesFor(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.AppendRun(ctx, "main", makeRun("c1", 100,
		benchmark.BenchResult{Name: "decode", Value: 1000, ErrorMargin: 10},
		benchmark.BenchResult{Name: "encode", Value: 500, ErrorMargin: 5},
	)))
	require.NoError(t, s.AppendRun(ctx, "main", makeRun("c2", 200,
		benchmark.BenchResult{Name: "decode", Value: 1100, ErrorMargin: 12},
	)))
	require.NoError(t, s.AppendRun(ctx, "main", makeRun("c3", 300,
		benchmark.BenchResult{Name: "decode", Value: 900, ErrorMargin: 9},
		benchmark.BenchResult{Name: "encode", Value: 480, ErrorMargin: 4},
	)))

	series, err := s.SeriesFor(ctx, "main", "decode")
	require.NoError(t, err)
	require.Len(t, series, 3)

	assert.Equal(t, "c1", series[0].CommitID)
	assert.Equal(t, 1000.0, series[0].Value)
	assert.Equal(t, "c2", series[1].CommitID)
	assert.Equal(t, "c3", series[2].CommitID)
	assert.Equal(t, 9.0, series[2].ErrorMargin)

	// A name present in only some runs skips the others.
	series, err = s.SeriesFor(ctx, "main", "encode")
	require.NoError(t, err)
	require.Len(t, series, 2)
	assert.Equal(t, "c1", series[0].CommitID)
	assert.Equal(t, "c3", series[1].CommitID)

	// Unknown suite or name yields an empty series, not an error.
	series, err = s.SeriesFor(ctx, "main", "nope")
	require.NoError(t, err)
	assert.Empty(t, series)

	series, err = s.SeriesFor(ctx, "ghost", "decode")
	require.NoError(t, err)
	assert.Empty(t, series)
}

func TestStore_LatestRunAbsent(t *testing.T) {
	s := setupTestStore(t)

	run, err := s.LatestRun(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Nil(t, run)
}

func TestStore_ListSuites(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.AppendRun(ctx, "zeta", makeRun("c1", 100)))
	require.NoError(t, s.AppendRun(ctx, "alpha", makeRun("c1", 100)))

	names, err := s.ListSuites(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "zeta"}, names)
}

func TestStore_Export(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.AppendRun(ctx, "main", makeRun("c1", 100,
		benchmark.BenchResult{Name: "decode", Value: 1000, Unit: "ns/iter"},
	)))
	require.NoError(t, s.AppendRun(ctx, "main", makeRun("c2", 200,
		benchmark.BenchResult{Name: "decode", Value: 1100, Unit: "ns/iter"},
	)))
	require.NoError(t, s.AppendRun(ctx, "nightly", makeRun("c9", 150)))

	doc, err := s.Export(ctx, "https://github.com/example/project")
	require.NoError(t, err)

	assert.Equal(t, "https://github.com/example/project", doc.SourceRef)
	assert.Positive(t, doc.LastUpdate)
	require.Len(t, doc.Suites, 2)

	mainRuns := doc.Suites["main"]
	require.Len(t, mainRuns, 2)
	assert.Equal(t, "c1", mainRuns[0].CommitID)
	assert.Equal(t, "c2", mainRuns[1].CommitID)
	require.Len(t, doc.Suites["nightly"], 1)
}
