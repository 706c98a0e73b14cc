package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// State represents the lifecycle state of a task.
type State string

const (
	// StatePending indicates the task has not been started yet.
	StatePending State = "pending"

	// StateRunning indicates the task has been started and is not yet done.
	StateRunning State = "running"

	// StateDone indicates the task's procedure ran to completion.
	StateDone State = "done"

	// StateFailed indicates the task's procedure raised an error or the
	// task exceeded its timeout budget.
	StateFailed State = "failed"

	// StateCancelled indicates the task was cancelled before completing.
	StateCancelled State = "cancelled"
)

// IsTerminal returns true if the state is final.
func (s State) IsTerminal() bool {
	return s == StateDone || s == StateFailed || s == StateCancelled
}

// Stepper is a resumable procedure. Each Step call performs one increment of
// work and returns true once the procedure has run to completion. Between
// calls the procedure is suspended; each resumption continues exactly where
// the previous Step left off.
type Stepper interface {
	Step(ctx context.Context) (done bool, err error)
}

// StepFunc adapts a plain function to the Stepper interface.
type StepFunc func(ctx context.Context) (bool, error)

// Step implements Stepper.
func (f StepFunc) Step(ctx context.Context) (bool, error) {
	return f(ctx)
}

// Canceller is implemented by steppers that need one final resumption to
// clean up when they are cancelled with a non-zero grace period, for example
// to abort a partially issued external call before being discarded.
type Canceller interface {
	Cancel(ctx context.Context) error
}

// TaskRunner owns one task and advances it step by step. A task is owned by
// at most one runner at a time; the runner is not safe for concurrent use.
type TaskRunner struct {
	name    string
	task    Stepper
	state   State
	err     error
	timeout time.Duration
	elapsed time.Duration
	logger  zerolog.Logger

	// sleep performs the pause between steps; replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// Option configures a TaskRunner.
type Option func(*TaskRunner)

// WithTimeout sets the wall-clock timeout budget for Run. The budget
// accumulates only across the actual waits Run performs between steps.
// A zero timeout lets the task run indefinitely.
func WithTimeout(d time.Duration) Option {
	return func(r *TaskRunner) { r.timeout = d }
}

// WithLogger sets the logger used for task lifecycle events.
func WithLogger(logger zerolog.Logger) Option {
	return func(r *TaskRunner) { r.logger = logger }
}

// NewTaskRunner creates a runner owning the given task. The name tags any
// failure the runner propagates.
func NewTaskRunner(name string, task Stepper, opts ...Option) *TaskRunner {
	r := &TaskRunner{
		name:   name,
		task:   task,
		state:  StatePending,
		logger: zerolog.Nop(),
		sleep:  sleepContext,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Name returns the task's name.
func (r *TaskRunner) Name() string { return r.name }

// State returns the task's current lifecycle state.
func (r *TaskRunner) State() State { return r.state }

// Started returns true once the task has been started.
func (r *TaskRunner) Started() bool { return r.state != StatePending }

// Done returns true once the task reached a terminal state.
func (r *TaskRunner) Done() bool { return r.state.IsTerminal() }

// Err returns the failure the task terminated with, if any.
func (r *TaskRunner) Err() error { return r.err }

// Start begins the task's procedure up to its first suspension point.
func (r *TaskRunner) Start(ctx context.Context) error {
	switch r.state {
	case StateCancelled:
		return ErrCancelled
	case StatePending:
	default:
		return fmt.Errorf("task %s: already started", r.name)
	}

	r.logger.Debug().Str("task", r.name).Msg("starting task")
	r.state = StateRunning
	return r.advance(ctx)
}

// Step resumes the task's procedure once. It returns true once the task has
// reached a terminal state.
func (r *TaskRunner) Step(ctx context.Context) (bool, error) {
	switch r.state {
	case StatePending:
		return false, ErrNotStarted
	case StateDone:
		return true, nil
	case StateFailed:
		return true, r.err
	case StateCancelled:
		return true, ErrCancelled
	}

	if err := r.advance(ctx); err != nil {
		return true, err
	}
	return r.state.IsTerminal(), nil
}

// advance performs one increment of the task's procedure and records the
// resulting state.
func (r *TaskRunner) advance(ctx context.Context) error {
	done, err := r.task.Step(ctx)
	if err != nil {
		r.state = StateFailed
		r.err = &TaskError{Task: r.name, Err: err}
		r.logger.Debug().Str("task", r.name).Err(err).Msg("task failed")
		return r.err
	}
	if done {
		r.state = StateDone
		r.logger.Debug().Str("task", r.name).Msg("task complete")
	}
	return nil
}

// Run drives the task to completion, pausing for interval between steps. The
// configured timeout budget accumulates only across the waits actually
// performed here; on overrun the task is cancelled with the interval as
// cleanup grace and a *TimeoutError is returned.
func (r *TaskRunner) Run(ctx context.Context, interval time.Duration) error {
	if !r.Started() {
		if err := r.Start(ctx); err != nil {
			return err
		}
	}

	for !r.Done() {
		if r.timeout > 0 && r.elapsed >= r.timeout {
			r.Cancel(ctx, interval)
			r.state = StateFailed
			r.err = &TimeoutError{Task: r.name, Timeout: r.timeout}
			return r.err
		}

		if err := r.sleep(ctx, interval); err != nil {
			r.Cancel(ctx, interval)
			return &TaskError{Task: r.name, Err: err}
		}
		r.elapsed += interval

		if _, err := r.Step(ctx); err != nil {
			return err
		}
	}

	if r.state == StateFailed {
		return r.err
	}
	return nil
}

// Cancel requests termination of the task. With a non-zero grace period a
// started task is resumed exactly once more, bounded by the grace period, so
// its procedure can clean up before being discarded; with zero grace the
// procedure is discarded immediately. Cancelling a pending task moves it
// directly to cancelled without ever resuming its procedure.
func (r *TaskRunner) Cancel(ctx context.Context, grace time.Duration) {
	switch r.state {
	case StatePending:
		r.state = StateCancelled
		r.logger.Debug().Str("task", r.name).Msg("cancelled before start")
	case StateRunning:
		if grace > 0 {
			if c, ok := r.task.(Canceller); ok {
				cctx, cancel := context.WithTimeout(ctx, grace)
				if err := c.Cancel(cctx); err != nil {
					r.logger.Warn().Str("task", r.name).Err(err).Msg("cleanup on cancel failed")
				}
				cancel()
			}
		}
		r.state = StateCancelled
		r.logger.Debug().Str("task", r.name).Msg("task cancelled")
	}
}

// sleepContext pauses for d or until the context is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
