package pipeline

import (
	"errors"
	"fmt"

	"printcost-backend/internal/store"
)

// ErrorKind classifies a step failure.
type ErrorKind string

const (
	KindNotFound ErrorKind = "not_found"
	KindIO       ErrorKind = "io"
	KindInternal ErrorKind = "internal"
)

var (
	// ErrNotRetryable is returned by Retry for jobs that are not in the failed state.
	ErrNotRetryable = errors.New("only failed jobs can be retried")
)

// StepError is a pipeline step failure. It is recorded on the job and ends the run.
type StepError struct {
	Step string
	Kind ErrorKind
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// stepErr classifies err for step.
func stepErr(step string, err error) *StepError {
	kind := KindIO
	if errors.Is(err, store.ErrNotFound) {
		kind = KindNotFound
	}
	return &StepError{Step: step, Kind: kind, Err: err}
}
