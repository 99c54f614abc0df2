package benchmark

import "fmt"

// ValidationError reports a malformed measurement. The whole run is
// rejected; the store is left untouched.
type ValidationError struct {
	RawName  string
	Position int
	Reason   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf(
		"invalid measurement %q at position %d: %s",
		e.RawName, e.Position, e.Reason,
	)
}

// DuplicateCommitError reports an attempt to append a run whose commit
// is already recorded for the suite.
type DuplicateCommitError struct {
	Suite    string
	CommitID string
}

func (e *DuplicateCommitError) Error() string {
	return fmt.Sprintf(
		"commit %q already recorded for suite %q",
		e.CommitID, e.Suite,
	)
}

// DivisionByZeroError reports a degenerate zero baseline during
// analysis. Only the affected entry is marked Indeterminate; the rest
// of the report is still produced.
type DivisionByZeroError struct {
	Name string
}

func (e *DivisionByZeroError) Error() string {
	return fmt.Sprintf("zero baseline for benchmark %q", e.Name)
}
