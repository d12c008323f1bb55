package pipeline

import (
	"errors"
	"fmt"
)

// Status is the process exit status a run maps to.
type Status int

const (
	// StatusOK means every file was moved or skipped as a duplicate.
	StatusOK Status = 0
	// StatusFatal means the run could not proceed.
	StatusFatal Status = 1
	// StatusPartial means the run finished with per-file errors.
	StatusPartial Status = 2
)

// ErrFatal marks errors that aborted a run.
var ErrFatal = errors.New("run aborted")

// ExitError carries the exit status for a failed or partial run.
type ExitError struct {
	Status Status
	Err    error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Status)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// Fatal wraps err as a status-1 failure.
func Fatal(err error) *ExitError {
	return &ExitError{Status: StatusFatal, Err: fmt.Errorf("%w: %w", ErrFatal, err)}
}

// StatusOf maps an error returned by the pipeline or the CLI to an exit status.
func StatusOf(err error) Status {
	if err == nil {
		return StatusOK
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Status
	}
	return StatusFatal
}
