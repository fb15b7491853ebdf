package batchgen

import (
	"errors"
	"fmt"
)

// ErrConfig marks configuration problems: mismatched array lengths, bad
// weight vectors, unsupported strategies. These fail at acquisition time,
// never inside a running producer loop.
var ErrConfig = errors.New("batchgen: invalid configuration")

// ErrEmptySource is returned when a batch is requested from a source holding
// zero records.
var ErrEmptySource = errors.New("batchgen: source has no records")

// ErrClosed is returned by Pull on a generator whose producer has exited,
// either through Close or after delivering a terminal failure.
var ErrClosed = errors.New("batchgen: generator is closed")

func configErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfig, fmt.Sprintf(format, args...))
}

// panicError converts a panic recovered from user-supplied generator or
// transform code into an ordinary error, so the failure travels through the
// handoff channel like any other instead of killing the process.
func panicError(r any) error {
	if err, ok := r.(error); ok {
		return fmt.Errorf("batchgen: panic: %w", err)
	}
	return fmt.Errorf("batchgen: panic: %v", r)
}

// WorkerError wraps a failure raised inside a worker goroutine or worker
// process during fetch or augmentation. It is delivered through the handoff
// channel as a value; Pull converts it back into a returned error.
type WorkerError struct {
	Worker int // chunk/worker index, -1 if unknown
	Err    error
}

func (e *WorkerError) Error() string {
	if e.Worker < 0 {
		return fmt.Sprintf("batchgen: worker failed: %v", e.Err)
	}
	return fmt.Sprintf("batchgen: worker %d failed: %v", e.Worker, e.Err)
}

func (e *WorkerError) Unwrap() error { return e.Err }
