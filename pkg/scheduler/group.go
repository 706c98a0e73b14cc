package scheduler

import (
	"context"
	"time"
)

// TaskFactory produces a child task on demand. Factories let very large
// collections be scheduled without pre-allocating every runner.
type TaskFactory func() *TaskRunner

// TaskGroup runs a set of independent child tasks to joint completion under
// one scheduler. Children are materialized lazily from factories, in order,
// and at most the concurrency bound are in flight at once. TaskGroup itself
// implements Stepper, so a group nests inside a TaskRunner or inside another
// group.
type TaskGroup struct {
	factories []TaskFactory
	limit     int
	next      int
	running   []*TaskRunner

	// firstErr is the first child failure; once set, no further factories
	// are consumed, but in-flight children keep stepping toward a terminal
	// state before firstErr is returned.
	firstErr error
}

// NewTaskGroup creates a group over the given factories. A limit of zero
// means unbounded concurrency.
func NewTaskGroup(limit int, factories ...TaskFactory) *TaskGroup {
	if limit < 0 {
		limit = 0
	}
	return &TaskGroup{factories: factories, limit: limit}
}

// Step advances the group once: every started-but-undone child is advanced
// one step in insertion order, then free slots are filled from the remaining
// factories. A child started during this step occupies its slot for the rest
// of the step even if it completes immediately. Step returns true once every
// factory has been consumed and every started child is done; if a child
// failed, the captured failure is returned only then.
func (g *TaskGroup) Step(ctx context.Context) (bool, error) {
	inFlight := 0
	for _, child := range g.running {
		if child.Done() {
			continue
		}
		if _, err := child.Step(ctx); err != nil {
			g.captureFailure(err)
			continue
		}
		if !child.Done() {
			inFlight++
		}
	}

	// Drop settled children, keeping insertion order for the rest.
	kept := g.running[:0]
	for _, child := range g.running {
		if !child.Done() {
			kept = append(kept, child)
		}
	}
	g.running = kept

	started := 0
	for g.firstErr == nil && g.next < len(g.factories) {
		if g.limit > 0 && inFlight+started >= g.limit {
			break
		}
		child := g.factories[g.next]()
		g.next++
		started++
		if err := child.Start(ctx); err != nil {
			g.captureFailure(err)
			break
		}
		if !child.Done() {
			g.running = append(g.running, child)
		}
	}

	if g.done() {
		return true, g.firstErr
	}
	return false, nil
}

// Cancel implements Canceller by cancelling every in-flight child, giving
// each the full grace the group itself was granted.
func (g *TaskGroup) Cancel(ctx context.Context) error {
	deadline, ok := ctx.Deadline()
	grace := time.Duration(0)
	if ok {
		grace = time.Until(deadline)
	}
	for _, child := range g.running {
		child.Cancel(ctx, grace)
	}
	return nil
}

// Pending returns the number of factories not yet consumed.
func (g *TaskGroup) Pending() int {
	return len(g.factories) - g.next
}

// InFlight returns the number of started children not yet done.
func (g *TaskGroup) InFlight() int {
	n := 0
	for _, child := range g.running {
		if !child.Done() {
			n++
		}
	}
	return n
}

func (g *TaskGroup) captureFailure(err error) {
	if g.firstErr == nil {
		g.firstErr = err
	}
}

// done reports joint completion: factories exhausted (or abandoned after a
// failure) and no started child still in flight.
func (g *TaskGroup) done() bool {
	if g.next < len(g.factories) && g.firstErr == nil {
		return false
	}
	return g.InFlight() == 0
}
