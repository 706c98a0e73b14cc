package lifecycle

import "fmt"

// Action represents a lifecycle action performed on a resource.
type Action string

const (
	// ActionCreate provisions a new external resource.
	ActionCreate Action = "CREATE"

	// ActionUpdate modifies an existing external resource in place.
	ActionUpdate Action = "UPDATE"

	// ActionDelete removes an external resource.
	ActionDelete Action = "DELETE"

	// ActionSuspend pauses an external resource without deleting it.
	ActionSuspend Action = "SUSPEND"

	// ActionResume reactivates a suspended external resource.
	ActionResume Action = "RESUME"

	// ActionCheck verifies an external resource against its expected state.
	ActionCheck Action = "CHECK"

	// ActionInit is the action recorded before any operation has run.
	ActionInit Action = "INIT"
)

// Validate checks if the action is a known lifecycle action.
func (a Action) Validate() error {
	switch a {
	case ActionCreate, ActionUpdate, ActionDelete, ActionSuspend, ActionResume, ActionCheck:
		return nil
	default:
		return fmt.Errorf("invalid lifecycle action: %s", a)
	}
}

// Status represents the status of a resource's current action.
type Status string

const (
	// StatusInProgress indicates the action has been initiated and its
	// external completion condition is not yet terminal.
	StatusInProgress Status = "IN_PROGRESS"

	// StatusComplete indicates the action finished successfully.
	StatusComplete Status = "COMPLETE"

	// StatusFailed indicates the action failed; the resource carries a
	// human-readable reason.
	StatusFailed Status = "FAILED"
)

// IsTerminal returns true if the status is final for the current action.
func (s Status) IsTerminal() bool {
	return s == StatusComplete || s == StatusFailed
}

// Resource is one declared infrastructure object with an asynchronous
// lifecycle. It tracks the current (action, status, reason) triple; at most
// one action is IN_PROGRESS at a time, and an IN_PROGRESS action transitions
// only to COMPLETE or FAILED.
type Resource struct {
	// Name is the declared identity of the resource.
	Name string

	// Type is the declared resource kind, resolved through a Registry.
	Type string

	// ExternalID is the identity the external provisioning system assigned,
	// once known. Persisting it lets an interrupted operation re-derive a
	// poll cookie instead of reissuing a duplicate create.
	ExternalID string

	action Action
	status Status
	reason string
}

// NewResource creates a resource that has not yet had any action run.
func NewResource(name, resourceType string) *Resource {
	return &Resource{
		Name:   name,
		Type:   resourceType,
		action: ActionInit,
		status: StatusComplete,
	}
}

// Action returns the current or most recent lifecycle action.
func (r *Resource) Action() Action { return r.action }

// Status returns the status of the current action.
func (r *Resource) Status() Status { return r.status }

// Reason returns the human-readable reason for the current status.
func (r *Resource) Reason() string { return r.reason }

// beginAction transitions the resource to (action, IN_PROGRESS). It fails if
// another action has not yet reached a terminal status.
func (r *Resource) beginAction(action Action) error {
	if !r.status.IsTerminal() {
		return &ConflictError{Resource: r.Name, Requested: action, Current: r.action}
	}
	r.action = action
	r.status = StatusInProgress
	r.reason = ""
	return nil
}

// setTerminal records the terminal status for the action in progress.
func (r *Resource) setTerminal(status Status, reason string) {
	r.status = status
	r.reason = reason
}
