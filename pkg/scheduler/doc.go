// Package scheduler provides the cooperative task-scheduling primitives the
// orchestration engine is built on.
//
// # Execution model
//
// Scheduling is single-threaded and cooperative: "concurrency" among tasks is
// interleaving, never parallel execution. A task is any value implementing
// Stepper, a resumable procedure that performs one increment of work per Step
// call and suspends itself in between. Suspension points sit exactly where a
// procedure has issued an external call and wants to be resumed later to
// check on it.
//
// # Components
//
//   - Stepper: a resumable procedure advanced one increment at a time
//   - TaskRunner: owns one Stepper; start/step/run-to-completion with an
//     optional wall-clock timeout and graceful cancellation
//   - TaskGroup: a composite Stepper running many child tasks to joint
//     completion under a concurrency bound, consuming task factories lazily
//
// # Failure semantics
//
// An error returned by a Stepper propagates out of the next Step or Run call
// as a *TaskError tagged with the owning task's name, so failures in nested
// tasks compose into a readable name chain. A timeout is reported as a
// distinct *TimeoutError after a graceful cancellation attempt.
package scheduler
