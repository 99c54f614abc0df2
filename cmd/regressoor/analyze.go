package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Re-analyze the latest run of every suite",
	Long: `Analyze re-runs regression detection for the most recent run of
every stored suite, e.g. after changing thresholds or directions, and
prints the reports.`,
	Args: cobra.NoArgs,
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
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

	reports, err := tr.AnalyzeAll(ctx)
	if err != nil {
		return fmt.Errorf("analyzing suites: %w", err)
	}

	return printJSON(reports)
}
