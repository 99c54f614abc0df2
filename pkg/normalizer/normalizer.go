// Package normalizer converts a raw run report into canonical
// benchmark results with collision-free names.
package normalizer

import (
	"fmt"
	"math"

	"github.com/ethpandaops/regressoor/pkg/benchmark"
)

// RawMeasurement is one tuple of a run report as produced by a
// benchmark tool, before disambiguation.
type RawMeasurement struct {
	Name        string  `json:"name" yaml:"name"`
	Value       float64 `json:"value" yaml:"value"`
	ErrorMargin float64 `json:"error_margin" yaml:"error_margin"`
	Unit        string  `json:"unit" yaml:"unit"`
}

// Normalize turns an ordered list of raw measurements into canonical
// BenchResult records. The first occurrence of a raw name keeps it
// unchanged; the k-th occurrence (k >= 2) becomes "name #k". The
// mapping depends only on input order, so re-running on the same
// input always yields the same canonical names.
//
// A malformed measurement fails the whole run with a
// *benchmark.ValidationError; no partial output is produced.
func Normalize(raw []RawMeasurement) ([]benchmark.BenchResult, error) {
	results := make([]benchmark.BenchResult, 0, len(raw))
	seen := make(map[string]int, len(raw))

	for i, m := range raw {
		if err := validate(i, m); err != nil {
			return nil, err
		}

		seen[m.Name]++

		name := m.Name
		if k := seen[m.Name]; k > 1 {
			name = fmt.Sprintf("%s #%d", m.Name, k)
		}

		results = append(results, benchmark.BenchResult{
			Name:        name,
			RawName:     m.Name,
			Value:       m.Value,
			ErrorMargin: m.ErrorMargin,
			Unit:        m.Unit,
		})
	}

	return results, nil
}

// validate checks a single raw measurement.
func validate(pos int, m RawMeasurement) error {
	if m.Name == "" {
		return &benchmark.ValidationError{
			RawName:  m.Name,
			Position: pos,
			Reason:   "empty benchmark name",
		}
	}

	if math.IsNaN(m.Value) || math.IsInf(m.Value, 0) {
		return &benchmark.ValidationError{
			RawName:  m.Name,
			Position: pos,
			Reason:   "value is not a finite number",
		}
	}

	if math.IsNaN(m.ErrorMargin) || math.IsInf(m.ErrorMargin, 0) {
		return &benchmark.ValidationError{
			RawName:  m.Name,
			Position: pos,
			Reason:   "error margin is not a finite number",
		}
	}

	if m.ErrorMargin < 0 {
		return &benchmark.ValidationError{
			RawName:  m.Name,
			Position: pos,
			Reason:   "error margin is negative",
		}
	}

	return nil
}
