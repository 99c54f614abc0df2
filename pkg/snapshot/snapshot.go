// Package snapshot persists exported history documents to a
// configured backend.
package snapshot

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/regressoor/pkg/benchmark"
	"github.com/ethpandaops/regressoor/pkg/config"
)

// Writer persists one history document and returns the destination it
// was written to.
type Writer interface {
	Write(ctx context.Context, doc *benchmark.Document) (string, error)
}

// NewWriter creates a Writer for the configured backend. Exactly one
// backend must be configured.
func NewWriter(
	log logrus.FieldLogger,
	cfg *config.SnapshotConfig,
) (Writer, error) {
	if cfg == nil {
		return nil, fmt.Errorf("snapshot backend is not configured")
	}

	switch {
	case cfg.S3 != nil && cfg.Local != nil:
		return nil, fmt.Errorf("only one snapshot backend may be configured")
	case cfg.S3 != nil:
		return newS3Writer(log, cfg.S3), nil
	case cfg.Local != nil:
		return newLocalWriter(log, cfg.Local), nil
	default:
		return nil, fmt.Errorf("snapshot backend is not configured")
	}
}
