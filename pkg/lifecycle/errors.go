package lifecycle

import (
	"errors"
	"fmt"
)

// Failure reports that the external system left an action in an error
// condition. The resource ends FAILED with the failure's message as reason,
// suitable for direct display.
type Failure struct {
	// Resource is the name of the failed resource.
	Resource string

	// Action is the lifecycle action that failed.
	Action Action

	// Err is the underlying error from the external system.
	Err error
}

// Error implements the error interface.
func (e *Failure) Error() string {
	return fmt.Sprintf("%s failed for resource %s: %v", e.Action, e.Resource, e.Err)
}

// Unwrap returns the underlying error for error chain inspection.
func (e *Failure) Unwrap() error {
	return e.Err
}

// ConflictError reports an attempt to start an action while another action
// on the same resource is still IN_PROGRESS.
type ConflictError struct {
	// Resource is the name of the contended resource.
	Resource string

	// Requested is the action that was rejected.
	Requested Action

	// Current is the action still in progress.
	Current Action
}

// Error implements the error interface.
func (e *ConflictError) Error() string {
	return fmt.Sprintf("cannot start %s for resource %s: %s is in progress",
		e.Requested, e.Resource, e.Current)
}

// IsConflict returns true if any error in the chain is a *ConflictError.
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

// IsFailure returns true if any error in the chain is a *Failure.
func IsFailure(err error) bool {
	var f *Failure
	return errors.As(err, &f)
}
