// Package history implements the append-only per-suite benchmark
// history store on top of gorm.
package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ethpandaops/regressoor/pkg/benchmark"
	"github.com/ethpandaops/regressoor/pkg/config"
)

// ErrTimestampOrder is returned when an appended run's commit
// timestamp precedes the suite's latest recorded run. Run order
// within a suite must be non-decreasing in commit timestamp.
var ErrTimestampOrder = errors.New(
	"run timestamp precedes the suite's latest run",
)

// Store provides durable append-only storage of benchmark runs.
// AppendRun is the single mutating operation and is atomic at run
// granularity: either the whole run is recorded or none of it is.
type Store interface {
	Start(ctx context.Context) error
	Stop() error

	AppendRun(ctx context.Context, suiteName string, run *benchmark.Run) error
	SeriesFor(
		ctx context.Context, suiteName, canonicalName string,
	) ([]benchmark.SeriesPoint, error)
	LatestRun(ctx context.Context, suiteName string) (*benchmark.Run, error)
	Runs(ctx context.Context, suiteName string) ([]benchmark.Run, error)
	ListSuites(ctx context.Context) ([]string, error)
	Export(ctx context.Context, sourceRef string) (*benchmark.Document, error)
}

// Compile-time interface check.
var _ Store = (*store)(nil)

type store struct {
	log logrus.FieldLogger
	cfg *config.DatabaseConfig
	db  *gorm.DB
}

// NewStore creates a history Store backed by the configured database
// driver.
func NewStore(
	log logrus.FieldLogger,
	cfg *config.DatabaseConfig,
) Store {
	return &store{
		log: log.WithField("component", "history"),
		cfg: cfg,
	}
}

// Start opens the database connection and runs migrations.
func (s *store) Start(ctx context.Context) error {
	var dialector gorm.Dialector

	gormCfg := &gorm.Config{
		Logger: logger.Discard,
	}

	switch s.cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(s.cfg.SQLite.Path)
	case "postgres":
		dsn := fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			s.cfg.Postgres.Host,
			s.cfg.Postgres.Port,
			s.cfg.Postgres.User,
			s.cfg.Postgres.Password,
			s.cfg.Postgres.Database,
			s.cfg.Postgres.SSLMode,
		)
		dialector = postgres.Open(dsn)
	default:
		return fmt.Errorf("unsupported database driver: %s", s.cfg.Driver)
	}

	db, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		return fmt.Errorf("opening history database: %w", err)
	}

	s.db = db

	if err := s.db.WithContext(ctx).AutoMigrate(
		&Suite{},
		&Run{},
		&Result{},
	); err != nil {
		return fmt.Errorf("running history migrations: %w", err)
	}

	s.log.WithField("driver", s.cfg.Driver).
		Info("History database connected")

	return nil
}

// Stop closes the underlying database connection.
func (s *store) Stop() error {
	if s.db == nil {
		return nil
	}

	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("getting underlying db: %w", err)
	}

	return sqlDB.Close()
}

// AppendRun appends a run to the suite's history inside a single
// transaction, creating the suite if absent. A run whose commit is
// already recorded fails with *benchmark.DuplicateCommitError and
// leaves the store untouched.
func (s *store) AppendRun(
	ctx context.Context, suiteName string, run *benchmark.Run,
) error {
	if run.CommitID == "" {
		return fmt.Errorf("run commit id is required")
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		suite, err := findOrCreateSuite(tx, suiteName, run.Tool)
		if err != nil {
			return err
		}

		var count int64
		if err := tx.Model(&Run{}).
			Where("suite_id = ? AND commit_id = ?", suite.ID, run.CommitID).
			Count(&count).Error; err != nil {
			return fmt.Errorf("checking for duplicate commit: %w", err)
		}

		if count > 0 {
			return &benchmark.DuplicateCommitError{
				Suite:    suiteName,
				CommitID: run.CommitID,
			}
		}

		var latest Run

		err = tx.Where("suite_id = ?", suite.ID).
			Order("timestamp DESC, id DESC").
			First(&latest).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("reading latest run: %w", err)
		}

		if err == nil && run.Timestamp < latest.Timestamp {
			return fmt.Errorf(
				"appending run %s to suite %q: %w",
				run.CommitID, suiteName, ErrTimestampOrder,
			)
		}

		row := Run{
			SuiteID:     suite.ID,
			CommitID:    run.CommitID,
			Timestamp:   run.Timestamp,
			AuthorName:  run.Author.Name,
			AuthorEmail: run.Author.Email,
			Distinct:    run.Distinct,
			Tool:        run.Tool,
		}

		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("inserting run: %w", err)
		}

		if len(run.Results) == 0 {
			return nil
		}

		results := make([]Result, 0, len(run.Results))
		for i, r := range run.Results {
			results = append(results, Result{
				RunID:       row.ID,
				Name:        r.Name,
				RawName:     r.RawName,
				Position:    i,
				Value:       r.Value,
				ErrorMargin: r.ErrorMargin,
				Unit:        r.Unit,
			})
		}

		if err := tx.CreateInBatches(results, 100).Error; err != nil {
			return fmt.Errorf("inserting results: %w", err)
		}

		return nil
	})
}

// findOrCreateSuite loads the suite row by name, creating it lazily
// on first ingestion.
func findOrCreateSuite(tx *gorm.DB, name, tool string) (*Suite, error) {
	suite := Suite{Name: name, Tool: tool}

	if err := tx.Where("name = ?", name).
		FirstOrCreate(&suite).Error; err != nil {
		return nil, fmt.Errorf("finding or creating suite %q: %w", name, err)
	}

	return &suite, nil
}

// SeriesFor returns the ordered history of one canonical benchmark
// name across all runs of a suite. An unknown suite or name yields an
// empty series, not an error.
func (s *store) SeriesFor(
	ctx context.Context, suiteName, canonicalName string,
) ([]benchmark.SeriesPoint, error) {
	type seriesRow struct {
		CommitID    string
		Timestamp   int64
		Value       float64
		ErrorMargin float64
		Unit        string
	}

	var rows []seriesRow

	if err := s.db.WithContext(ctx).
		Model(&Result{}).
		Select(
			"runs.commit_id, runs.timestamp, results.value, "+
				"results.error_margin, results.unit",
		).
		Joins("JOIN runs ON runs.id = results.run_id").
		Joins("JOIN suites ON suites.id = runs.suite_id").
		Where("suites.name = ? AND results.name = ?",
			suiteName, canonicalName).
		Order("runs.timestamp ASC, runs.id ASC").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("querying series: %w", err)
	}

	points := make([]benchmark.SeriesPoint, 0, len(rows))
	for _, r := range rows {
		points = append(points, benchmark.SeriesPoint{
			CommitID:    r.CommitID,
			Timestamp:   r.Timestamp,
			Value:       r.Value,
			ErrorMargin: r.ErrorMargin,
			Unit:        r.Unit,
		})
	}

	return points, nil
}

// LatestRun returns the most recently appended run of a suite, or
// (nil, nil) when the suite has no runs.
func (s *store) LatestRun(
	ctx context.Context, suiteName string,
) (*benchmark.Run, error) {
	var row Run

	err := s.db.WithContext(ctx).
		Joins("JOIN suites ON suites.id = runs.suite_id").
		Where("suites.name = ?", suiteName).
		Order("runs.timestamp DESC, runs.id DESC").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("querying latest run: %w", err)
	}

	run, err := s.loadRun(ctx, &row)
	if err != nil {
		return nil, err
	}

	return run, nil
}

// Runs returns all runs of a suite in append order, with their
// results. An unknown suite yields an empty slice.
func (s *store) Runs(
	ctx context.Context, suiteName string,
) ([]benchmark.Run, error) {
	var rows []Run

	if err := s.db.WithContext(ctx).
		Joins("JOIN suites ON suites.id = runs.suite_id").
		Where("suites.name = ?", suiteName).
		Order("runs.timestamp ASC, runs.id ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}

	runs := make([]benchmark.Run, 0, len(rows))

	for i := range rows {
		run, err := s.loadRun(ctx, &rows[i])
		if err != nil {
			return nil, err
		}

		runs = append(runs, *run)
	}

	return runs, nil
}

// loadRun attaches the ordered result rows to a run row.
func (s *store) loadRun(
	ctx context.Context, row *Run,
) (*benchmark.Run, error) {
	var results []Result

	if err := s.db.WithContext(ctx).
		Where("run_id = ?", row.ID).
		Order("position ASC").
		Find(&results).Error; err != nil {
		return nil, fmt.Errorf("loading run results: %w", err)
	}

	run := &benchmark.Run{
		CommitID:  row.CommitID,
		Timestamp: row.Timestamp,
		Author: benchmark.Author{
			Name:  row.AuthorName,
			Email: row.AuthorEmail,
		},
		Distinct: row.Distinct,
		Tool:     row.Tool,
		Results:  make([]benchmark.BenchResult, 0, len(results)),
	}

	for _, r := range results {
		run.Results = append(run.Results, benchmark.BenchResult{
			Name:        r.Name,
			RawName:     r.RawName,
			Value:       r.Value,
			ErrorMargin: r.ErrorMargin,
			Unit:        r.Unit,
		})
	}

	return run, nil
}

// ListSuites returns the names of all known suites.
func (s *store) ListSuites(ctx context.Context) ([]string, error) {
	var names []string

	if err := s.db.WithContext(ctx).
		Model(&Suite{}).
		Order("name ASC").
		Pluck("name", &names).Error; err != nil {
		return nil, fmt.Errorf("listing suites: %w", err)
	}

	return names, nil
}

// Export builds the full history document across all suites.
func (s *store) Export(
	ctx context.Context, sourceRef string,
) (*benchmark.Document, error) {
	names, err := s.ListSuites(ctx)
	if err != nil {
		return nil, err
	}

	doc := &benchmark.Document{
		LastUpdate: time.Now().UnixMilli(),
		SourceRef:  sourceRef,
		Suites:     make(map[string][]benchmark.Run, len(names)),
	}

	for _, name := range names {
		runs, err := s.Runs(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("exporting suite %q: %w", name, err)
		}

		doc.Suites[name] = runs
	}

	return doc, nil
}
