// Package lifecycle implements the generic action/status state machine every
// resource kind shares.
//
// A resource is driven through an action (CREATE, UPDATE, DELETE, SUSPEND,
// RESUME, CHECK) by an Operation, which is a scheduler.Stepper: it invokes
// the resource kind's Initiate call exactly once, then polls PollComplete
// until the external system reports the action terminal. Any unhandled
// failure moves the resource to FAILED with a human-readable reason; success
// moves it to COMPLETE.
//
// Resource kinds plug in through the Handler capability interface, and a
// Registry maps declared type names to handler constructors so dispatch is
// uniform across many kinds without an inheritance hierarchy. Initiate may
// hand back nested sub-operations (for example attaching auxiliary resources
// once the primary is active); these run as a bounded TaskGroup gated on a
// readiness condition, and their completion gates the outer poll.
package lifecycle
