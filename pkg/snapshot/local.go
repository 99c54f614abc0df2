package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/regressoor/pkg/benchmark"
	"github.com/ethpandaops/regressoor/pkg/config"
)

// Compile-time interface check.
var _ Writer = (*localWriter)(nil)

type localWriter struct {
	log logrus.FieldLogger
	cfg *config.LocalSnapshotConfig
}

// newLocalWriter creates a Writer that writes the document to a local
// file.
func newLocalWriter(
	log logrus.FieldLogger,
	cfg *config.LocalSnapshotConfig,
) Writer {
	return &localWriter{
		log: log.WithField("component", "snapshot_local"),
		cfg: cfg,
	}
}

// Write marshals the document and writes it to the configured path,
// creating parent directories as needed.
func (w *localWriter) Write(
	_ context.Context, doc *benchmark.Document,
) (string, error) {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling history document: %w", err)
	}

	if dir := filepath.Dir(w.cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("creating snapshot directory: %w", err)
		}
	}

	if err := os.WriteFile(w.cfg.Path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing snapshot file: %w", err)
	}

	w.log.WithFields(logrus.Fields{
		"path":   w.cfg.Path,
		"suites": len(doc.Suites),
	}).Info("History snapshot written")

	return w.cfg.Path, nil
}
