package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/ethpandaops/regressoor/pkg/analyzer"
	"github.com/ethpandaops/regressoor/pkg/benchmark"
	"github.com/ethpandaops/regressoor/pkg/normalizer"
	"github.com/ethpandaops/regressoor/pkg/tracker"
)

// ingestConcurrency bounds how many report files are ingested in
// parallel. Reports for the same suite are serialized by the tracker.
const ingestConcurrency = 4

var ingestFailOnRegression bool

var ingestCmd = &cobra.Command{
	Use:   "ingest <report-file>...",
	Short: "Ingest run reports and print their regression reports",
	Long: `Ingest one or more run report files (JSON or YAML) into the
benchmark history and print the resulting regression reports.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().BoolVar(&ingestFailOnRegression,
		"fail-on-regression", false,
		"exit with a non-zero status when a regression is detected")

	rootCmd.AddCommand(ingestCmd)
}

// runReport is the on-disk format of one run report file.
type runReport struct {
	Suite        string                      `json:"suite" yaml:"suite"`
	Meta         benchmark.RunMeta           `json:"meta" yaml:"meta"`
	Measurements []normalizer.RawMeasurement `json:"measurements" yaml:"measurements"`
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	tr := buildTracker(cfg)

	ctx := cmd.Context()
	if err := tr.Start(ctx); err != nil {
		return fmt.Errorf("starting tracker: %w", err)
	}

	defer func() { _ = tr.Stop() }()

	reports := make([]*analyzer.Report, len(args))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(ingestConcurrency)

	for i, path := range args {
		g.Go(func() error {
			report, err := ingestFile(gCtx, tr, path)
			if err != nil {
				return fmt.Errorf("ingesting %s: %w", path, err)
			}

			reports[i] = report

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	regressions := 0

	for _, report := range reports {
		regressions += report.Summary.Regressions

		if err := printJSON(report); err != nil {
			return err
		}
	}

	if ingestFailOnRegression && regressions > 0 {
		return fmt.Errorf("%d regression(s) detected", regressions)
	}

	return nil
}

// ingestFile parses one report file and feeds it to the tracker.
func ingestFile(
	ctx context.Context, tr tracker.Tracker, path string,
) (*analyzer.Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading report file: %w", err)
	}

	var report runReport

	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		err = yaml.Unmarshal(data, &report)
	} else {
		err = json.Unmarshal(data, &report)
	}

	if err != nil {
		return nil, fmt.Errorf("parsing report file: %w", err)
	}

	if report.Suite == "" {
		return nil, fmt.Errorf("report file has no suite name")
	}

	return tr.Ingest(ctx, report.Suite, report.Meta, report.Measurements)
}

// printJSON writes v to stdout as indented JSON.
func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling output: %w", err)
	}

	fmt.Println(string(data))

	return nil
}
