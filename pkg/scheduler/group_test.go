package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"
)

func stepGroup(t *testing.T, g *TaskGroup, max int) (steps int, err error) {
	t.Helper()
	ctx := context.Background()
	for steps < max {
		steps++
		done, stepErr := g.Step(ctx)
		if done {
			return steps, stepErr
		}
		if stepErr != nil {
			t.Fatalf("step %d: not done but errored: %v", steps, stepErr)
		}
	}
	t.Fatalf("group not done after %d steps", max)
	return 0, nil
}

func TestGroupEmpty(t *testing.T) {
	g := NewTaskGroup(0)
	done, err := g.Step(context.Background())
	if !done || err != nil {
		t.Errorf("got done=%v err=%v, want immediate completion", done, err)
	}
}

func TestGroupUnboundedStepsAsLongestChild(t *testing.T) {
	tasks := []*countingTask{{need: 1}, {need: 2}, {need: 3}}
	var factories []TaskFactory
	for i, task := range tasks {
		task := task
		name := string(rune('a' + i))
		factories = append(factories, func() *TaskRunner { return NewTaskRunner(name, task) })
	}
	g := NewTaskGroup(0, factories...)

	steps, err := stepGroup(t, g, 10)
	if err != nil {
		t.Fatalf("group failed: %v", err)
	}
	// Every child advances each outer step, so the group settles in as many
	// steps as its longest child needs.
	if steps != 3 {
		t.Errorf("got %d steps, want 3", steps)
	}
	for i, task := range tasks {
		if task.steps != task.need {
			t.Errorf("child %d: got %d steps, want %d", i, task.steps, task.need)
		}
	}
}

func TestGroupBoundedSerializes(t *testing.T) {
	newFactories := func() []TaskFactory {
		var fs []TaskFactory
		for i := 0; i < 3; i++ {
			i := i
			fs = append(fs, func() *TaskRunner {
				return NewTaskRunner(string(rune('a'+i)), &countingTask{need: 2})
			})
		}
		return fs
	}

	unbounded, err := stepGroup(t, NewTaskGroup(0, newFactories()...), 10)
	if err != nil {
		t.Fatalf("unbounded group failed: %v", err)
	}
	bounded, err := stepGroup(t, NewTaskGroup(1, newFactories()...), 10)
	if err != nil {
		t.Fatalf("bounded group failed: %v", err)
	}

	if unbounded != 2 {
		t.Errorf("unbounded: got %d steps, want 2", unbounded)
	}
	if bounded != 4 {
		t.Errorf("bounded: got %d steps, want 4", bounded)
	}
}

func TestGroupStartedChildrenHoldSlots(t *testing.T) {
	// Three one-step children under a limit of two. The two children started
	// in the first step hold their slots even though they complete
	// immediately, so the third waits for the second step.
	var fs []TaskFactory
	for i := 0; i < 3; i++ {
		i := i
		fs = append(fs, func() *TaskRunner {
			return NewTaskRunner(string(rune('a'+i)), &countingTask{need: 1})
		})
	}
	g := NewTaskGroup(2, fs...)
	ctx := context.Background()

	done, err := g.Step(ctx)
	if done || err != nil {
		t.Fatalf("first step: got done=%v err=%v, want in progress", done, err)
	}
	if g.Pending() != 1 {
		t.Errorf("after first step: got %d pending, want 1", g.Pending())
	}
	done, err = g.Step(ctx)
	if !done || err != nil {
		t.Errorf("second step: got done=%v err=%v, want completion", done, err)
	}
}

func TestGroupLazyConsumption(t *testing.T) {
	made := 0
	var fs []TaskFactory
	for i := 0; i < 5; i++ {
		fs = append(fs, func() *TaskRunner {
			made++
			return NewTaskRunner("child", &countingTask{need: 3})
		})
	}
	g := NewTaskGroup(2, fs...)

	if _, err := g.Step(context.Background()); err != nil {
		t.Fatalf("step failed: %v", err)
	}
	if made != 2 {
		t.Errorf("got %d children materialized, want 2", made)
	}
	if g.Pending() != 3 {
		t.Errorf("got %d pending, want 3", g.Pending())
	}
}

func TestGroupFirstFailureStopsConsumption(t *testing.T) {
	boom := errors.New("boom")
	c1 := &countingTask{need: 5, failAt: 2, failErr: boom}
	c2 := &countingTask{need: 4}
	c3 := &countingTask{need: 1}
	g := NewTaskGroup(2,
		func() *TaskRunner { return NewTaskRunner("c1", c1) },
		func() *TaskRunner { return NewTaskRunner("c2", c2) },
		func() *TaskRunner { return NewTaskRunner("c3", c3) },
	)

	_, err := stepGroup(t, g, 10)
	if err == nil {
		t.Fatal("expected the first failure to surface")
	}
	var te *TaskError
	if !errors.As(err, &te) || te.Task != "c1" {
		t.Errorf("got %v, want c1's failure", err)
	}
	if !errors.Is(err, boom) {
		t.Errorf("chain lost the original error: %v", err)
	}
	// The in-flight sibling ran to completion before the failure surfaced.
	if c2.steps != 4 {
		t.Errorf("sibling got %d steps, want 4", c2.steps)
	}
	// The remaining factory was never consumed.
	if c3.steps != 0 {
		t.Errorf("third child ran after failure: %d steps", c3.steps)
	}
	if g.Pending() != 1 {
		t.Errorf("got %d pending, want 1", g.Pending())
	}
}

func TestGroupCancelPropagates(t *testing.T) {
	c1 := &countingTask{need: 100}
	c2 := &countingTask{need: 100}
	g := NewTaskGroup(0,
		func() *TaskRunner { return NewTaskRunner("c1", c1) },
		func() *TaskRunner { return NewTaskRunner("c2", c2) },
	)
	r := NewTaskRunner("batch", g)
	ctx := context.Background()

	if err := r.Start(ctx); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	r.Cancel(ctx, time.Second)

	if r.State() != StateCancelled {
		t.Errorf("got state %s, want cancelled", r.State())
	}
	if c1.cancels != 1 || c2.cancels != 1 {
		t.Errorf("got cleanup resumptions %d/%d, want 1/1", c1.cancels, c2.cancels)
	}
	if g.InFlight() != 0 {
		t.Errorf("got %d in flight after cancel, want 0", g.InFlight())
	}
}

func TestGroupNestsInGroup(t *testing.T) {
	inner := NewTaskGroup(0,
		func() *TaskRunner { return NewTaskRunner("leaf-a", &countingTask{need: 2}) },
		func() *TaskRunner { return NewTaskRunner("leaf-b", &countingTask{need: 1}) },
	)
	outer := NewTaskGroup(0,
		func() *TaskRunner { return NewTaskRunner("nested", inner) },
		func() *TaskRunner { return NewTaskRunner("flat", &countingTask{need: 1}) },
	)

	if _, err := stepGroup(t, outer, 10); err != nil {
		t.Fatalf("nested group failed: %v", err)
	}
}
