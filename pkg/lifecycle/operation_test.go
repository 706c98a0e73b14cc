package lifecycle

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/openstack/heat-sub008/pkg/scheduler"
)

// fakeHandler simulates an external provisioning system with a configurable
// number of polls before the action settles.
type fakeHandler struct {
	pollsNeeded int
	initErr     error
	pollErr     error
	sub         *SubOperations
	externalID  string

	initiates int
	polls     int
}

func (h *fakeHandler) Initiate(_ context.Context, res *Resource, action Action) (*Initiated, error) {
	h.initiates++
	if h.initErr != nil {
		return nil, h.initErr
	}
	if h.externalID != "" && action == ActionCreate {
		res.ExternalID = h.externalID
	}
	return &Initiated{Cookie: "poll-cookie", Sub: h.sub}, nil
}

func (h *fakeHandler) PollComplete(_ context.Context, _ *Resource, _ Action, _ Cookie) (bool, error) {
	h.polls++
	if h.pollErr != nil {
		return false, h.pollErr
	}
	return h.polls >= h.pollsNeeded, nil
}

// abortingHandler adds the Aborter capability.
type abortingHandler struct {
	fakeHandler
	aborts      int
	abortCookie Cookie
}

func (h *abortingHandler) Abort(_ context.Context, _ *Resource, _ Action, cookie Cookie) error {
	h.aborts++
	h.abortCookie = cookie
	return nil
}

func stepToTerminal(t *testing.T, o *Operation, max int) (steps int, err error) {
	t.Helper()
	ctx := context.Background()
	for steps < max {
		steps++
		done, stepErr := o.Step(ctx)
		if done {
			return steps, stepErr
		}
	}
	t.Fatalf("operation not terminal after %d steps", max)
	return 0, nil
}

func TestOperationCreateCompletes(t *testing.T) {
	h := &fakeHandler{pollsNeeded: 2, externalID: "srv-42"}
	res := NewResource("web-1", "compute.server")
	o := NewOperation(res, ActionCreate, h)

	// One step to initiate, then one per poll.
	steps, err := stepToTerminal(t, o, 10)
	if err != nil {
		t.Fatalf("operation failed: %v", err)
	}
	if steps != 3 {
		t.Errorf("got %d steps, want 3", steps)
	}
	if h.initiates != 1 {
		t.Errorf("got %d initiations, want 1", h.initiates)
	}
	if res.Status() != StatusComplete || res.Action() != ActionCreate {
		t.Errorf("got (%s, %s), want (CREATE, COMPLETE)", res.Action(), res.Status())
	}

	result := o.Result()
	if result.Resource != "web-1" || result.ExternalID != "srv-42" {
		t.Errorf("result carries %q/%q, want web-1/srv-42", result.Resource, result.ExternalID)
	}
	if result.Status != StatusComplete || result.Reason != "" {
		t.Errorf("result is (%s, %q), want (COMPLETE, empty)", result.Status, result.Reason)
	}
}

func TestOperationFirstPollFailure(t *testing.T) {
	h := &fakeHandler{pollErr: errors.New("server went to ERROR status")}
	res := NewResource("web-1", "compute.server")
	o := NewOperation(res, ActionCreate, h)

	_, err := stepToTerminal(t, o, 10)
	if err == nil {
		t.Fatal("expected failure")
	}
	if !IsFailure(err) {
		t.Errorf("got %v, want a lifecycle failure", err)
	}
	if want := "CREATE failed for resource web-1: server went to ERROR status"; err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}
	if res.Status() != StatusFailed || res.Action() != ActionCreate {
		t.Errorf("got (%s, %s), want (CREATE, FAILED)", res.Action(), res.Status())
	}
	if !strings.Contains(res.Reason(), "server went to ERROR") {
		t.Errorf("reason lost the external text: %q", res.Reason())
	}
	if h.initiates != 1 {
		t.Errorf("got %d initiations, want 1", h.initiates)
	}
}

func TestOperationInitiateFailure(t *testing.T) {
	h := &fakeHandler{initErr: errors.New("quota exceeded")}
	res := NewResource("web-1", "compute.server")
	o := NewOperation(res, ActionCreate, h)

	_, err := stepToTerminal(t, o, 10)
	if !IsFailure(err) {
		t.Fatalf("got %v, want a lifecycle failure", err)
	}
	if res.Status() != StatusFailed {
		t.Errorf("got status %s, want FAILED", res.Status())
	}
	// Initiation failed before anything was issued to poll for.
	if h.polls != 0 {
		t.Errorf("polled %d times after failed initiation", h.polls)
	}
}

func TestOperationRejectsUnknownAction(t *testing.T) {
	res := NewResource("web-1", "compute.server")
	o := NewOperation(res, Action("DESTROY"), &fakeHandler{pollsNeeded: 1})

	done, err := o.Step(context.Background())
	if !done || err == nil {
		t.Fatalf("got done=%v err=%v, want immediate rejection", done, err)
	}
	// The resource never left its previous terminal state.
	if res.Action() != ActionInit || res.Status() != StatusComplete {
		t.Errorf("rejected action mutated the resource: (%s, %s)", res.Action(), res.Status())
	}
}

func TestOperationConflict(t *testing.T) {
	res := NewResource("web-1", "compute.server")
	first := NewOperation(res, ActionCreate, &fakeHandler{pollsNeeded: 100})
	ctx := context.Background()

	if done, err := first.Step(ctx); done || err != nil {
		t.Fatalf("first operation did not stay in progress: done=%v err=%v", done, err)
	}

	second := NewOperation(res, ActionUpdate, &fakeHandler{pollsNeeded: 1})
	done, err := second.Step(ctx)
	if !done || !IsConflict(err) {
		t.Fatalf("got done=%v err=%v, want a conflict", done, err)
	}
	if want := "cannot start UPDATE for resource web-1: CREATE is in progress"; err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}
}

func TestOperationSubOperationsGated(t *testing.T) {
	readyPolls := 0
	subSteps := 0
	sub := &SubOperations{
		Ready: func(_ context.Context) (bool, error) {
			readyPolls++
			return readyPolls >= 2, nil
		},
		Tasks: []scheduler.TaskFactory{
			func() *scheduler.TaskRunner {
				return scheduler.NewTaskRunner("attach-volume", scheduler.StepFunc(func(_ context.Context) (bool, error) {
					subSteps++
					return true, nil
				}))
			},
		},
	}
	h := &fakeHandler{pollsNeeded: 1, sub: sub}
	res := NewResource("web-1", "compute.server")
	o := NewOperation(res, ActionCreate, h)
	ctx := context.Background()

	// Step 1: initiate.
	if done, _ := o.Step(ctx); done {
		t.Fatal("terminal after initiation")
	}
	// Step 2: readiness gate holds the sub-tasks back; nothing else runs.
	if done, err := o.Step(ctx); done || err != nil {
		t.Fatalf("gated step: done=%v err=%v", done, err)
	}
	if subSteps != 0 || h.polls != 0 {
		t.Fatalf("gate leaked: subSteps=%d polls=%d", subSteps, h.polls)
	}
	// Step 3: gate opens, sub-tasks settle, outer poll completes.
	done, err := o.Step(ctx)
	if !done || err != nil {
		t.Fatalf("final step: done=%v err=%v", done, err)
	}
	if readyPolls != 2 || subSteps != 1 || h.polls != 1 {
		t.Errorf("got readyPolls=%d subSteps=%d polls=%d, want 2/1/1", readyPolls, subSteps, h.polls)
	}
	if res.Status() != StatusComplete {
		t.Errorf("got status %s, want COMPLETE", res.Status())
	}
}

func TestOperationSubFailure(t *testing.T) {
	sub := &SubOperations{
		Tasks: []scheduler.TaskFactory{
			func() *scheduler.TaskRunner {
				return scheduler.NewTaskRunner("attach-volume", scheduler.StepFunc(func(_ context.Context) (bool, error) {
					return false, errors.New("volume attach rejected")
				}))
			},
		},
	}
	h := &fakeHandler{pollsNeeded: 1, sub: sub}
	res := NewResource("web-1", "compute.server")
	o := NewOperation(res, ActionCreate, h)

	_, err := stepToTerminal(t, o, 10)
	if !IsFailure(err) {
		t.Fatalf("got %v, want a lifecycle failure", err)
	}
	if !strings.Contains(res.Reason(), "volume attach rejected") {
		t.Errorf("reason lost the sub-task error: %q", res.Reason())
	}
	// The outer completion poll never ran.
	if h.polls != 0 {
		t.Errorf("polled %d times after sub-task failure", h.polls)
	}
}

func TestOperationCancelAborts(t *testing.T) {
	h := &abortingHandler{fakeHandler: fakeHandler{pollsNeeded: 100}}
	res := NewResource("web-1", "compute.server")
	o := NewOperation(res, ActionCreate, h)
	ctx := context.Background()

	runner := o.Task()
	if err := runner.Start(ctx); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	runner.Cancel(ctx, time.Second)

	if h.aborts != 1 {
		t.Errorf("got %d aborts, want 1", h.aborts)
	}
	if h.abortCookie != Cookie("poll-cookie") {
		t.Errorf("abort got cookie %v, want poll-cookie", h.abortCookie)
	}
}

func TestOperationCancelBeforeInitiate(t *testing.T) {
	h := &abortingHandler{fakeHandler: fakeHandler{pollsNeeded: 1}}
	o := NewOperation(NewResource("web-1", "compute.server"), ActionCreate, h)

	if err := o.Cancel(context.Background()); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	// Nothing was issued, so there is nothing to abort.
	if h.aborts != 0 {
		t.Errorf("got %d aborts, want 0", h.aborts)
	}
}

func TestOperationRunCompletes(t *testing.T) {
	h := &fakeHandler{pollsNeeded: 1, externalID: "srv-7"}
	res := NewResource("web-1", "compute.server")
	o := NewOperation(res, ActionCreate, h)

	result, err := o.Run(context.Background(), time.Millisecond, 0)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if result.Status != StatusComplete || result.ExternalID != "srv-7" {
		t.Errorf("got (%s, %q), want (COMPLETE, srv-7)", result.Status, result.ExternalID)
	}
}

func TestOperationRunTimeout(t *testing.T) {
	h := &abortingHandler{fakeHandler: fakeHandler{pollsNeeded: 1 << 30}}
	res := NewResource("web-1", "compute.server")
	o := NewOperation(res, ActionCreate, h)

	result, err := o.Run(context.Background(), time.Millisecond, 3*time.Millisecond)
	if !scheduler.IsTimeout(err) {
		t.Fatalf("got %v, want timeout", err)
	}
	if result.Status != StatusFailed {
		t.Errorf("got status %s, want FAILED", result.Status)
	}
	// Graceful cancellation gave the handler one abort attempt.
	if h.aborts != 1 {
		t.Errorf("got %d aborts, want 1", h.aborts)
	}
}
