package minikanren

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// FatalError marks the error kinds spec.md §7 says must never be swallowed
// by a Failed sentinel: goal-composition errors (e.g. a reifier conflict),
// hook type-mismatch errors, and relation arity mismatches. These always
// propagate to the solver's caller as a real Go error, never as Failed.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string { return "minikanren: " + e.Err.Error() }

func (e *FatalError) Unwrap() error { return e.Err }

// newArityError aggregates every row that disagrees with a fact table's
// declared arity into one multierror, per spec.md §7 item 5 ("Relation
// arity mismatch — detected at goal construction; fatal").
func newArityError(name string, arity int, bad map[int]int) error {
	var merr *multierror.Error
	for row, got := range bad {
		merr = multierror.Append(merr, fmt.Errorf(
			"relation %q: row %d has arity %d, want %d", name, row, got, arity))
	}
	if err := merr.ErrorOrNil(); err != nil {
		return &FatalError{Err: err}
	}
	return nil
}

// reifierConflictError reports contextualizing an existing variable with a
// reifier different from the one it was allocated with (spec.md §7 item 3).
func reifierConflictError(name string) error {
	return fmt.Errorf("variable %q already has a conflicting reifier", name)
}
