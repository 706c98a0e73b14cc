package rollout

import (
	"errors"
	"fmt"
	"strconv"
)

// ErrInvalidSpec tags contract violations detected before planning begins.
// They are fatal and never retried.
var ErrInvalidSpec = errors.New("invalid rollout specification")

// Batch is one step of a rolling update.
type Batch struct {
	// Capacity is the total capacity the collection carries once this batch
	// settles. It may transiently exceed the target capacity to keep the
	// in-service floor satisfied.
	Capacity int `json:"capacity"`

	// Updated is the number of members being created or replaced in this
	// batch, and therefore out of service while it runs. Members removed
	// without replacement do not count.
	Updated int `json:"updated"`

	// Members names the member slots this batch acts on.
	Members []string `json:"members,omitempty"`
}

// PlanSpec describes one rolling update to plan.
type PlanSpec struct {
	// CurrentMembers are the collection's member names, oldest first.
	CurrentMembers []string

	// UpToDate marks members that already match the target definition and
	// must not be replaced.
	UpToDate map[string]bool

	// TargetCapacity is the desired member count after the update.
	TargetCapacity int

	// MaxBatchSize caps how many members one batch may create or replace.
	MaxBatchSize int

	// MinInService is the number of members that must remain in service
	// throughout, effectively capped at TargetCapacity.
	MinInService int

	// NewMemberName names a member created for a given slot number. Nil
	// defaults to the decimal slot number.
	NewMemberName func(slot int) string
}

func (s PlanSpec) validate() error {
	if s.TargetCapacity < 0 {
		return fmt.Errorf("%w: target capacity %d is negative", ErrInvalidSpec, s.TargetCapacity)
	}
	if s.MaxBatchSize < 1 {
		return fmt.Errorf("%w: max batch size %d must be at least 1", ErrInvalidSpec, s.MaxBatchSize)
	}
	if s.MinInService < 0 {
		return fmt.Errorf("%w: min in service %d is negative", ErrInvalidSpec, s.MinInService)
	}
	return nil
}

// PlanBatches computes the ordered batch sequence for a rolling update. It
// is pure: applying a batch is the caller's concern.
//
// The plan holds these invariants for all valid inputs: the final batch's
// capacity equals the target capacity; in-service count (capacity minus
// members being replaced) never drops below min(MinInService, TargetCapacity);
// no batch replaces more than MaxBatchSize members; every outdated
// pre-existing member is acted on at most once; surplus members created
// transiently to hold the floor are removed in a trailing zero-update batch.
func PlanBatches(spec PlanSpec) ([]Batch, error) {
	if err := spec.validate(); err != nil {
		return nil, err
	}

	namer := spec.NewMemberName
	if namer == nil {
		namer = strconv.Itoa
	}

	floor := spec.MinInService
	if floor > spec.TargetCapacity {
		floor = spec.TargetCapacity
	}

	capacity := len(spec.CurrentMembers)
	target := spec.TargetCapacity

	// Outdated members, newest first: healthy members stay in service as
	// long as possible, while the most recently added (and any failed
	// replacements among them) go first.
	var outdated []string
	for i := len(spec.CurrentMembers) - 1; i >= 0; i-- {
		if !spec.UpToDate[spec.CurrentMembers[i]] {
			outdated = append(outdated, spec.CurrentMembers[i])
		}
	}

	var batches []Batch

	// Growth: create the missing slots, batch by batch. Nothing leaves
	// service, so the floor holds throughout.
	slot := capacity
	for capacity < target {
		n := min(spec.MaxBatchSize, target-capacity)
		names := make([]string, 0, n)
		for i := 0; i < n; i++ {
			slot++
			names = append(names, namer(slot))
		}
		capacity += n
		batches = append(batches, Batch{Capacity: capacity, Updated: n, Members: names})
	}

	// Replacement: act on outdated members up to the batch size. While the
	// collection is above target, touched members retire in zero-update
	// batches, shrinking the capacity toward target; once at target the
	// remaining outdated members are replaced in place, growing the working
	// capacity by whatever overlap the floor requires. A batch never both
	// retires members and carries overlap, so its member list and settled
	// capacity alone determine which members leave and which are replaced.
	surplus := 0
	for len(outdated) > 0 {
		n := min(spec.MaxBatchSize, len(outdated))

		if excess := capacity - surplus - target; excess > 0 {
			n = min(n, excess)
			touched := outdated[:n]
			outdated = outdated[n:]
			capacity -= n
			batches = append(batches, Batch{Capacity: capacity, Updated: 0, Members: touched})
			continue
		}

		touched := outdated[:n]
		outdated = outdated[n:]
		overlap := max(0, floor-(capacity-n))
		capacity += overlap
		surplus += overlap
		batches = append(batches, Batch{Capacity: capacity, Updated: n, Members: touched})
	}

	// Shrink: surviving up-to-date members beyond the target leave in
	// zero-update removal batches, newest first.
	excess := capacity - target - surplus
	if excess > 0 {
		var survivors []string
		for _, name := range spec.CurrentMembers {
			if spec.UpToDate[name] {
				survivors = append(survivors, name)
			}
		}
		for excess > 0 {
			n := min(spec.MaxBatchSize, excess)
			removed := make([]string, 0, n)
			for i := 0; i < n; i++ {
				removed = append(removed, survivors[len(survivors)-1])
				survivors = survivors[:len(survivors)-1]
			}
			capacity -= n
			excess -= n
			batches = append(batches, Batch{Capacity: capacity, Updated: 0, Members: removed})
		}
	}

	// Trailing zero-update batch: drop the transient surplus members back
	// to the target capacity.
	if capacity > target {
		capacity = target
		batches = append(batches, Batch{Capacity: capacity, Updated: 0})
	}

	return batches, nil
}
