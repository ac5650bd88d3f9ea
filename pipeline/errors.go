package pipeline

import (
	"errors"
	"fmt"
)

// ErrNotRun is returned by Report when the pipeline has not been run yet.
var ErrNotRun = errors.New("pipeline has not been run, so there is no run report")

// ProcessingError is returned by Run when one or more items ended with an
// error outside the run's catch policy. The accompanying RunReport is still
// fully populated, including rows for the failed items, so a partial failure
// never loses the data accumulated for sibling items.
type ProcessingError struct {
	// Failures maps each failed input path to its error.
	Failures map[string]error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("processing failed for %d input path(s)", len(e.Failures))
}

// Unwrap exposes the per-item errors so that errors.Is and errors.As match
// against them.
func (e *ProcessingError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, err := range e.Failures {
		errs = append(errs, err)
	}
	return errs
}
