package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ethpandaops/regressoor/pkg/config"
	"github.com/ethpandaops/regressoor/pkg/snapshot"
)

var exportOutput string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the full benchmark history document",
	Long: `Export writes the complete history of all suites as a single JSON
document to the configured snapshot backend (local file or S3), or to
the path given with --output.`,
	Args: cobra.NoArgs,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVar(&exportOutput, "output", "",
		"write the document to this file instead of the configured backend")

	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	snapCfg := cfg.Snapshot
	if exportOutput != "" {
		snapCfg = &config.SnapshotConfig{
			Local: &config.LocalSnapshotConfig{Path: exportOutput},
		}
	}

	writer, err := snapshot.NewWriter(log, snapCfg)
	if err != nil {
		return err
	}

	tr := buildTracker(cfg)

	ctx := cmd.Context()
	if err := tr.Start(ctx); err != nil {
		return fmt.Errorf("starting tracker: %w", err)
	}

	defer func() { _ = tr.Stop() }()

	doc, err := tr.Export(ctx, cfg.Global.SourceRef)
	if err != nil {
		return fmt.Errorf("exporting history: %w", err)
	}

	dest, err := writer.Write(ctx, doc)
	if err != nil {
		return err
	}

	log.WithField("destination", dest).Info("Export complete")

	return nil
}
