package lifecycle

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/openstack/heat-sub008/pkg/scheduler"
)

// Result is the terminal outcome of an operation, produced for the
// collaborators that declared the resource.
type Result struct {
	// Resource is the name of the resource the operation ran on.
	Resource string `json:"resource"`

	// ExternalID is the external identity, if the operation assigned one.
	ExternalID string `json:"external_id,omitempty"`

	// Action is the lifecycle action that ran.
	Action Action `json:"action"`

	// Status is the terminal status the action reached.
	Status Status `json:"status"`

	// Reason is a human-readable explanation of a FAILED status.
	Reason string `json:"reason,omitempty"`
}

// Operation drives one (resource, action) pair to a terminal status. It is a
// scheduler.Stepper: each step performs one increment of the state machine,
// suspending between external calls so many operations interleave under one
// cooperative scheduler.
type Operation struct {
	id      string
	res     *Resource
	action  Action
	handler Handler
	logger  zerolog.Logger

	cookie    Cookie
	initiated bool

	subReady func(ctx context.Context) (bool, error)
	sub      *scheduler.TaskGroup
	subDone  bool
}

// OperationOption configures an Operation.
type OperationOption func(*Operation)

// WithOperationLogger sets the logger for operation transitions.
func WithOperationLogger(logger zerolog.Logger) OperationOption {
	return func(o *Operation) { o.logger = logger }
}

// NewOperation creates an operation applying action to res through handler.
func NewOperation(res *Resource, action Action, handler Handler, opts ...OperationOption) *Operation {
	o := &Operation{
		id:      uuid.New().String(),
		res:     res,
		action:  action,
		handler: handler,
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// ID returns the unique identifier of this operation.
func (o *Operation) ID() string { return o.id }

// Resource returns the resource the operation drives.
func (o *Operation) Resource() *Resource { return o.res }

// Result returns the resource's current (action, status, reason) triple.
func (o *Operation) Result() Result {
	return Result{
		Resource:   o.res.Name,
		ExternalID: o.res.ExternalID,
		Action:     o.res.Action(),
		Status:     o.res.Status(),
		Reason:     o.res.Reason(),
	}
}

// Step implements scheduler.Stepper. The first step validates the action,
// moves the resource to IN_PROGRESS and invokes Initiate exactly once; each
// later step advances nested sub-operations or polls for completion.
func (o *Operation) Step(ctx context.Context) (bool, error) {
	if !o.initiated {
		if err := o.initiate(ctx); err != nil {
			return true, err
		}
		return false, nil
	}

	if o.sub != nil && !o.subDone {
		if o.subReady != nil {
			ready, err := o.subReady(ctx)
			if err != nil {
				return true, o.fail(err)
			}
			if !ready {
				return false, nil
			}
			o.subReady = nil
		}
		done, err := o.sub.Step(ctx)
		if err != nil {
			return true, o.fail(err)
		}
		if !done {
			return false, nil
		}
		o.subDone = true
	}

	done, err := o.handler.PollComplete(ctx, o.res, o.action, o.cookie)
	if err != nil {
		return true, o.fail(err)
	}
	if !done {
		return false, nil
	}

	o.res.setTerminal(StatusComplete, "")
	o.logger.Info().
		Str("resource", o.res.Name).
		Str("action", string(o.action)).
		Str("operation_id", o.id).
		Msg("operation complete")
	return true, nil
}

func (o *Operation) initiate(ctx context.Context) error {
	if err := o.action.Validate(); err != nil {
		return err
	}
	if err := o.res.beginAction(o.action); err != nil {
		return err
	}

	o.logger.Info().
		Str("resource", o.res.Name).
		Str("action", string(o.action)).
		Str("operation_id", o.id).
		Msg("initiating operation")

	init, err := o.handler.Initiate(ctx, o.res, o.action)
	o.initiated = true
	if err != nil {
		return o.fail(err)
	}
	if init != nil {
		o.cookie = init.Cookie
		if init.Sub != nil && len(init.Sub.Tasks) > 0 {
			o.subReady = init.Sub.Ready
			o.sub = scheduler.NewTaskGroup(init.Sub.Concurrency, init.Sub.Tasks...)
		}
	}
	return nil
}

// fail records the terminal FAILED status with a reason suitable for direct
// display and returns the typed failure carrying the resource's name.
func (o *Operation) fail(err error) error {
	o.res.setTerminal(StatusFailed, err.Error())
	o.logger.Warn().
		Str("resource", o.res.Name).
		Str("action", string(o.action)).
		Err(err).
		Msg("operation failed")
	return &Failure{Resource: o.res.Name, Action: o.action, Err: err}
}

// Cancel implements scheduler.Canceller: one cleanup resumption on graceful
// cancellation. In-flight sub-operations are cancelled first, then the
// handler gets a chance to abort the partially issued external call.
func (o *Operation) Cancel(ctx context.Context) error {
	if o.sub != nil && !o.subDone {
		_ = o.sub.Cancel(ctx)
	}
	if !o.initiated {
		return nil
	}
	if aborter, ok := o.handler.(Aborter); ok {
		return aborter.Abort(ctx, o.res, o.action, o.cookie)
	}
	return nil
}

// Task wraps the operation in a runner named after its resource, so nested
// failures carry the resource name.
func (o *Operation) Task(opts ...scheduler.Option) *scheduler.TaskRunner {
	opts = append([]scheduler.Option{scheduler.WithLogger(o.logger)}, opts...)
	return scheduler.NewTaskRunner(o.res.Name, o, opts...)
}

// Run drives the operation to a terminal status, polling every interval with
// an overall timeout budget (zero for none). The returned Result is terminal
// even on error; a timeout marks the resource FAILED after a graceful
// cancellation attempt.
func (o *Operation) Run(ctx context.Context, interval, timeout time.Duration) (Result, error) {
	runner := o.Task(scheduler.WithTimeout(timeout))
	err := runner.Run(ctx, interval)
	if err != nil && !o.res.Status().IsTerminal() {
		o.res.setTerminal(StatusFailed, err.Error())
	}
	return o.Result(), err
}
