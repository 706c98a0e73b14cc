// Package rollout sequences rolling updates across collections of
// homogeneous resources without violating availability constraints.
//
// PlanBatches is the pure planning half: given current membership, a target
// capacity, a maximum batch size and a minimum-in-service floor, it computes
// the ordered batch sequence, transiently over-provisioning when the floor
// could not otherwise be held and shrinking back to the target at the end.
//
// Updater is the applying half: each planned batch becomes a bounded
// TaskGroup of lifecycle operations, with a pause between batches, and each
// completed member operation is captured as an immutable snapshot so a
// failed rollout resumes instead of restarting.
package rollout
