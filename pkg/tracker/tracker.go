// Package tracker wires the normalizer, history store and analyzer
// into the two core entry points: ingest and query.
package tracker

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/ethpandaops/regressoor/pkg/analyzer"
	"github.com/ethpandaops/regressoor/pkg/benchmark"
	"github.com/ethpandaops/regressoor/pkg/history"
	"github.com/ethpandaops/regressoor/pkg/normalizer"
)

// defaultConcurrency bounds how many suites AnalyzeAll processes in
// parallel when no explicit value is configured.
const defaultConcurrency = 4

// Tracker is the ingestion/analysis engine. Ingestion of the same
// suite is serialized; different suites proceed independently.
type Tracker interface {
	Start(ctx context.Context) error
	Stop() error

	Ingest(
		ctx context.Context,
		suiteName string,
		meta benchmark.RunMeta,
		raw []normalizer.RawMeasurement,
	) (*analyzer.Report, error)
	Query(
		ctx context.Context, suiteName, canonicalName string,
	) ([]benchmark.SeriesPoint, error)
	Latest(ctx context.Context, suiteName string) (*benchmark.Run, error)
	Suites(ctx context.Context) ([]string, error)
	Export(ctx context.Context, sourceRef string) (*benchmark.Document, error)
	AnalyzeAll(ctx context.Context) (map[string]*analyzer.Report, error)
}

// Compile-time interface check.
var _ Tracker = (*tracker)(nil)

type tracker struct {
	log         logrus.FieldLogger
	store       history.Store
	analyzer    analyzer.Analyzer
	concurrency int

	mu         sync.Mutex
	suiteLocks map[string]*sync.Mutex
}

// NewTracker creates a tracker on top of an already-constructed store
// and analyzer.
func NewTracker(
	log logrus.FieldLogger,
	store history.Store,
	an analyzer.Analyzer,
	concurrency int,
) Tracker {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}

	return &tracker{
		log:         log.WithField("component", "tracker"),
		store:       store,
		analyzer:    an,
		concurrency: concurrency,
		suiteLocks:  make(map[string]*sync.Mutex),
	}
}

// Start opens the underlying history store.
func (t *tracker) Start(ctx context.Context) error {
	return t.store.Start(ctx)
}

// Stop closes the underlying history store.
func (t *tracker) Stop() error {
	return t.store.Stop()
}

// suiteLock returns the mutex serializing appends for one suite.
func (t *tracker) suiteLock(suiteName string) *sync.Mutex {
	t.mu.Lock()
	defer t.mu.Unlock()

	lock, ok := t.suiteLocks[suiteName]
	if !ok {
		lock = &sync.Mutex{}
		t.suiteLocks[suiteName] = lock
	}

	return lock
}

// Ingest normalizes a raw run report, appends it to the suite's
// history and analyzes it against the prior baseline. The append is
// atomic at run granularity; analysis runs only after the append has
// succeeded and an analysis failure never rolls the append back.
func (t *tracker) Ingest(
	ctx context.Context,
	suiteName string,
	meta benchmark.RunMeta,
	raw []normalizer.RawMeasurement,
) (*analyzer.Report, error) {
	results, err := normalizer.Normalize(raw)
	if err != nil {
		return nil, fmt.Errorf("normalizing run report: %w", err)
	}

	run := &benchmark.Run{
		CommitID:  meta.CommitID,
		Timestamp: meta.Timestamp,
		Author:    meta.Author,
		Distinct:  meta.Distinct,
		Tool:      meta.Tool,
		Results:   results,
	}

	lock := t.suiteLock(suiteName)
	lock.Lock()
	defer lock.Unlock()

	if err := t.store.AppendRun(ctx, suiteName, run); err != nil {
		return nil, err
	}

	t.log.WithFields(logrus.Fields{
		"suite":   suiteName,
		"commit":  run.CommitID,
		"results": len(run.Results),
	}).Info("Run appended")

	report, err := t.analyzer.Analyze(ctx, suiteName, run)
	if err != nil {
		return nil, fmt.Errorf("analyzing run %s: %w", run.CommitID, err)
	}

	return report, nil
}

// Query returns the history series of one canonical benchmark name.
// Unknown suites or names yield an empty series.
func (t *tracker) Query(
	ctx context.Context, suiteName, canonicalName string,
) ([]benchmark.SeriesPoint, error) {
	return t.store.SeriesFor(ctx, suiteName, canonicalName)
}

// Latest returns the most recent run of a suite, or nil when absent.
func (t *tracker) Latest(
	ctx context.Context, suiteName string,
) (*benchmark.Run, error) {
	return t.store.LatestRun(ctx, suiteName)
}

// Suites lists all known suite names.
func (t *tracker) Suites(ctx context.Context) ([]string, error) {
	return t.store.ListSuites(ctx)
}

// Export builds the full history document.
func (t *tracker) Export(
	ctx context.Context, sourceRef string,
) (*benchmark.Document, error) {
	return t.store.Export(ctx, sourceRef)
}

// AnalyzeAll re-analyzes the latest run of every suite with bounded
// parallelism and returns the reports keyed by suite name. Suites
// without runs are skipped.
func (t *tracker) AnalyzeAll(
	ctx context.Context,
) (map[string]*analyzer.Report, error) {
	suites, err := t.store.ListSuites(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing suites: %w", err)
	}

	var (
		mu      sync.Mutex
		reports = make(map[string]*analyzer.Report, len(suites))
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(t.concurrency)

	for _, suiteName := range suites {
		g.Go(func() error {
			run, err := t.store.LatestRun(gCtx, suiteName)
			if err != nil {
				return fmt.Errorf(
					"reading latest run of %q: %w", suiteName, err,
				)
			}

			if run == nil {
				return nil
			}

			report, err := t.analyzer.Analyze(gCtx, suiteName, run)
			if err != nil {
				return fmt.Errorf("analyzing suite %q: %w", suiteName, err)
			}

			mu.Lock()
			reports[suiteName] = report
			mu.Unlock()

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return reports, nil
}
