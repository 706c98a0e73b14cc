package lifecycle

import (
	"context"

	"github.com/openstack/heat-sub008/pkg/scheduler"
)

// Cookie is an opaque value returned by Initiate describing what to poll for
// completion. The core never inspects it.
type Cookie any

// Initiated is the result of initiating an action: the poll cookie plus any
// dependent sub-operations to run once the primary resource is ready.
type Initiated struct {
	// Cookie is handed back to every PollComplete call for this operation.
	Cookie Cookie

	// Sub describes nested sub-operations, if the action has any.
	Sub *SubOperations
}

// SubOperations are dependent tasks gated on the primary resource reaching a
// readiness condition, for example attaching auxiliary resources once a
// server is active. Their joint completion gates the outer PollComplete.
type SubOperations struct {
	// Ready reports whether the primary readiness condition holds. It is
	// polled before the sub-tasks start; nil means ready immediately.
	Ready func(ctx context.Context) (bool, error)

	// Tasks are run to joint completion as a TaskGroup.
	Tasks []scheduler.TaskFactory

	// Concurrency bounds the group; zero means unbounded.
	Concurrency int
}

// Handler implements the external provisioning calls for one resource kind.
// Every supported action uses the same two-call contract.
type Handler interface {
	// Initiate performs the non-blocking part of the action, such as issuing
	// a create request. It is invoked exactly once per operation and is not
	// retried automatically; retry-on-initiation-failure relies on the
	// external system's own idempotence (for example reusing a persisted
	// external id rather than reissuing a duplicate create).
	Initiate(ctx context.Context, res *Resource, action Action) (*Initiated, error)

	// PollComplete re-queries external status and reports whether the action
	// reached its terminal condition. It must have no side effects beyond
	// the re-query, so repeated calls are safe, and it must not trust a
	// stale cookie for error detection. An error return means the external
	// system reports the action failed.
	PollComplete(ctx context.Context, res *Resource, action Action, cookie Cookie) (bool, error)
}

// Aborter is an optional handler capability: cleanup of a partially issued
// external call when an in-progress operation is cancelled with grace.
type Aborter interface {
	Abort(ctx context.Context, res *Resource, action Action, cookie Cookie) error
}

// Describer is an optional handler capability: capture a resource's
// externally visible attribute values after an operation completes, for the
// member snapshot. A returned value that itself implements error is recorded
// as a deferred capture failure for that attribute rather than a value.
type Describer interface {
	Describe(ctx context.Context, res *Resource) map[string]any
}
