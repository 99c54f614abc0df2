package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var queryCmd = &cobra.Command{
	Use:   "query <suite> <benchmark-name>",
	Short: "Print the history series of one benchmark",
	Long: `Query the stored history of a canonical benchmark name within a
suite. Unknown suites or names yield an empty series.`,
	Args: cobra.ExactArgs(2),
	RunE: runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
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

	points, err := tr.Query(ctx, args[0], args[1])
	if err != nil {
		return fmt.Errorf("querying series: %w", err)
	}

	return printJSON(points)
}
