package scheduler

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotStarted is returned when a runner is stepped before being started.
var ErrNotStarted = errors.New("task has not been started")

// ErrCancelled is returned when a runner is started or stepped after having
// been cancelled.
var ErrCancelled = errors.New("task has been cancelled")

// TaskError wraps an error raised inside a task's procedure with the name of
// the owning task. Nested tasks produce a chain of TaskErrors, giving
// failures a readable path from the outermost task down to the origin.
type TaskError struct {
	// Task is the name of the task whose procedure raised the error.
	Task string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *TaskError) Error() string {
	return fmt.Sprintf("task %s: %v", e.Task, e.Err)
}

// Unwrap returns the underlying error for error chain inspection.
func (e *TaskError) Unwrap() error {
	return e.Err
}

// TimeoutError reports that a task exceeded its wall-clock timeout budget.
// The runner attempts a graceful cancellation before returning it.
type TimeoutError struct {
	// Task is the name of the task that timed out.
	Task string

	// Timeout is the configured budget that was exceeded.
	Timeout time.Duration
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("task %s: timed out after %s", e.Task, e.Timeout)
}

// IsTimeout returns true if any error in the chain is a *TimeoutError.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}
