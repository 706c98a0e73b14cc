package rollout

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/openstack/heat-sub008/pkg/lifecycle"
	"github.com/openstack/heat-sub008/pkg/scheduler"
	"github.com/openstack/heat-sub008/pkg/snapshot"
	"github.com/openstack/heat-sub008/pkg/telemetry"
)

// DefinitionAttribute is the snapshot attribute recording the definition tag
// a member was last built from. A member whose stored tag matches the group's
// current tag is up to date and survives the next rolling update untouched.
const DefinitionAttribute = "definition"

// SnapshotStore persists per-member snapshots between updates. An interrupted
// rolling update resumes from the snapshots the previous run left behind
// instead of replacing members that already carry the target definition.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, group string, snap *snapshot.Snapshot) error
	ListSnapshots(ctx context.Context, group string) ([]*snapshot.Snapshot, error)
	DeleteSnapshot(ctx context.Context, group, member string) error
}

// Policy bounds how a rolling update proceeds.
type Policy struct {
	// MaxBatchSize caps how many members one batch may create or replace.
	MaxBatchSize int `json:"max_batch_size" yaml:"max_batch_size"`

	// MinInService is the number of members that must remain in service
	// throughout the update, capped at the target capacity.
	MinInService int `json:"min_in_service" yaml:"min_in_service"`

	// PauseTime is the wait between consecutive batches.
	PauseTime time.Duration `json:"pause_time" yaml:"pause_time"`

	// PollInterval is the suspension interval between scheduler steps while
	// a batch settles.
	PollInterval time.Duration `json:"poll_interval" yaml:"poll_interval"`

	// BatchTimeout is the wall-clock budget for one batch to settle, zero
	// for none.
	BatchTimeout time.Duration `json:"batch_timeout" yaml:"batch_timeout"`
}

func (p Policy) validate() error {
	if p.MaxBatchSize < 1 {
		return fmt.Errorf("%w: max batch size %d must be at least 1", ErrInvalidSpec, p.MaxBatchSize)
	}
	if p.MinInService < 0 {
		return fmt.Errorf("%w: min in service %d is negative", ErrInvalidSpec, p.MinInService)
	}
	if p.PauseTime < 0 {
		return fmt.Errorf("%w: pause time %s is negative", ErrInvalidSpec, p.PauseTime)
	}
	return nil
}

// Group is a scaled collection of homogeneous members managed as one unit.
type Group struct {
	// Name identifies the group; member snapshots are stored under it.
	Name string

	// Type is the lifecycle resource type every member is built as.
	Type string

	// Definition is the opaque tag of the member definition currently
	// wanted. Changing it makes every member outdated.
	Definition string

	// TargetCapacity is the desired member count after an update.
	TargetCapacity int

	// Members are the current members, oldest first.
	Members []*lifecycle.Resource
}

// MemberNames returns the member names, oldest first.
func (g *Group) MemberNames() []string {
	names := make([]string, len(g.Members))
	for i, m := range g.Members {
		names[i] = m.Name
	}
	return names
}

func (g *Group) member(name string) *lifecycle.Resource {
	for _, m := range g.Members {
		if m.Name == name {
			return m
		}
	}
	return nil
}

func (g *Group) remove(name string) {
	kept := g.Members[:0]
	for _, m := range g.Members {
		if m.Name != name {
			kept = append(kept, m)
		}
	}
	g.Members = kept
}

// Outcome summarizes one rolling update run.
type Outcome struct {
	// RunID uniquely identifies this run.
	RunID string `json:"run_id"`

	// Group is the group that was updated.
	Group string `json:"group"`

	// Batches is the plan the run executed, in order.
	Batches []Batch `json:"batches"`

	// Applied is how many planned batches settled successfully.
	Applied int `json:"applied"`

	// Results are the terminal member operation results, in completion
	// inspection order.
	Results []lifecycle.Result `json:"results,omitempty"`
}

// Updater applies planned batches to a group through the lifecycle state
// machine. Each batch becomes one task group of member operations driven by
// the cooperative scheduler; between batches the updater pauses for the
// policy's pause time. Completed member operations leave snapshots behind, so
// a failed run resumes where it stopped instead of restarting.
type Updater struct {
	registry *lifecycle.Registry
	store    SnapshotStore
	logger   zerolog.Logger
	metrics  *telemetry.Metrics
	events   *telemetry.EventPublisher
}

// UpdaterOption configures an Updater.
type UpdaterOption func(*Updater)

// WithStore sets the snapshot store used for resume and attribute capture.
func WithStore(store SnapshotStore) UpdaterOption {
	return func(u *Updater) { u.store = store }
}

// WithLogger sets the logger for rollout progress.
func WithLogger(logger zerolog.Logger) UpdaterOption {
	return func(u *Updater) { u.logger = logger }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *telemetry.Metrics) UpdaterOption {
	return func(u *Updater) { u.metrics = m }
}

// WithEvents sets the event publisher.
func WithEvents(ep *telemetry.EventPublisher) UpdaterOption {
	return func(u *Updater) { u.events = ep }
}

// NewUpdater creates an updater resolving member handlers through registry.
func NewUpdater(registry *lifecycle.Registry, opts ...UpdaterOption) *Updater {
	u := &Updater{
		registry: registry,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Update plans and applies one rolling update bringing group to its target
// capacity and definition under policy. The group's member list is mutated as
// batches settle. On error the returned outcome reflects the batches that did
// settle; the first member failure stops the run after the current batch's
// remaining operations reach a terminal state.
func (u *Updater) Update(ctx context.Context, group *Group, policy Policy) (*Outcome, error) {
	if group == nil || group.Name == "" {
		return nil, fmt.Errorf("%w: group name is required", ErrInvalidSpec)
	}
	if err := policy.validate(); err != nil {
		return nil, err
	}

	upToDate, err := u.upToDateMembers(ctx, group)
	if err != nil {
		return nil, err
	}

	batches, err := PlanBatches(PlanSpec{
		CurrentMembers: group.MemberNames(),
		UpToDate:       upToDate,
		TargetCapacity: group.TargetCapacity,
		MaxBatchSize:   policy.MaxBatchSize,
		MinInService:   policy.MinInService,
		NewMemberName: func(slot int) string {
			return fmt.Sprintf("%s-%d", group.Name, slot)
		},
	})
	if err != nil {
		return nil, err
	}

	out := &Outcome{
		RunID:   uuid.New().String(),
		Group:   group.Name,
		Batches: batches,
	}

	started := time.Now()
	u.logger.Info().
		Str("run_id", out.RunID).
		Str("group", group.Name).
		Int("batches", len(batches)).
		Int("target_capacity", group.TargetCapacity).
		Msg("starting rolling update")
	if u.metrics != nil {
		u.metrics.RecordRolloutStarted(group.Name)
	}
	if u.events != nil {
		u.events.PublishRolloutStarted(out.RunID, group.Name, len(batches))
	}

	// Transient members created to hold the in-service floor, removed again
	// once the plan settles at target capacity.
	var standby []string

	for i, batch := range batches {
		if i > 0 && policy.PauseTime > 0 {
			if err := pause(ctx, policy.PauseTime); err != nil {
				return out, u.finish(out, group, started, err)
			}
		}
		if err := u.applyBatch(ctx, group, policy, out, i, batch, &standby); err != nil {
			return out, u.finish(out, group, started, err)
		}
		out.Applied++
	}

	return out, u.finish(out, group, started, nil)
}

func (u *Updater) finish(out *Outcome, group *Group, started time.Time, err error) error {
	duration := time.Since(started)
	status := string(lifecycle.StatusComplete)
	if err != nil {
		status = string(lifecycle.StatusFailed)
		u.logger.Warn().
			Str("run_id", out.RunID).
			Str("group", out.Group).
			Int("applied", out.Applied).
			Err(err).
			Msg("rolling update failed")
		if u.events != nil {
			u.events.PublishRolloutFailed(out.RunID, out.Group, err.Error())
		}
	} else {
		u.logger.Info().
			Str("run_id", out.RunID).
			Str("group", out.Group).
			Int("applied", out.Applied).
			Dur("duration", duration).
			Msg("rolling update complete")
		if u.events != nil {
			u.events.PublishRolloutCompleted(out.RunID, out.Group, duration)
		}
	}
	if u.metrics != nil {
		u.metrics.RecordRolloutCompleted(out.Group, status, duration)
		u.metrics.SetGroupCapacity(out.Group, float64(len(group.Members)))
	}
	return err
}

// memberOp is one member's share of a batch.
type memberOp struct {
	op      *lifecycle.Operation
	res     *lifecycle.Resource
	action  lifecycle.Action
	handler lifecycle.Handler
	standby bool
}

func (u *Updater) applyBatch(ctx context.Context, group *Group, policy Policy, out *Outcome, index int, batch Batch, standby *[]string) error {
	ops, err := u.batchOperations(group, batch, standby)
	if err != nil {
		return err
	}

	u.logger.Info().
		Str("run_id", out.RunID).
		Str("group", group.Name).
		Int("batch", index+1).
		Int("capacity", batch.Capacity).
		Int("updated", batch.Updated).
		Int("operations", len(ops)).
		Msg("applying batch")
	if u.events != nil {
		u.events.PublishBatchStarted(out.RunID, group.Name, index+1, batch.Capacity, batch.Updated)
	}

	batchStart := time.Now()
	var runErr error
	if len(ops) > 0 {
		factories := make([]scheduler.TaskFactory, len(ops))
		for i, mo := range ops {
			mo := mo
			factories[i] = func() *scheduler.TaskRunner {
				return mo.op.Task()
			}
		}
		tasks := scheduler.NewTaskGroup(policy.MaxBatchSize, factories...)
		runner := scheduler.NewTaskRunner(
			fmt.Sprintf("%s batch %d", group.Name, index+1),
			tasks,
			scheduler.WithLogger(u.logger),
			scheduler.WithTimeout(policy.BatchTimeout),
		)
		runErr = runner.Run(ctx, policy.PollInterval)

		// Completed operations commit their membership change and snapshot
		// even when a sibling failed, so the next run resumes from them.
		for _, mo := range ops {
			result := mo.op.Result()
			out.Results = append(out.Results, result)
			if u.metrics != nil {
				u.metrics.RecordOperation(string(result.Action), string(result.Status), group.Type)
			}
			switch result.Status {
			case lifecycle.StatusComplete:
				if err := u.commit(ctx, group, mo); err != nil && runErr == nil {
					runErr = err
				}
			case lifecycle.StatusFailed:
				if u.events != nil {
					u.events.PublishOperationFailed(out.RunID, result.Resource, string(result.Action), result.Reason)
				}
			}
		}
	}
	if runErr != nil {
		return runErr
	}

	duration := time.Since(batchStart)
	if u.metrics != nil {
		u.metrics.RecordBatchApplied(group.Name, duration)
	}
	if u.events != nil {
		u.events.PublishBatchCompleted(out.RunID, group.Name, index+1, duration)
	}
	return nil
}

// batchOperations translates one planned batch into member operations. Named
// new slots are created; when the batch shrinks the collection, touched
// members retire newest-first, then standby members; the remaining touched
// members are replaced in place. A batch whose settled capacity exceeds the
// member count creates standby members to hold the in-service floor.
func (u *Updater) batchOperations(group *Group, batch Batch, standby *[]string) ([]*memberOp, error) {
	handler, err := u.registry.Handler(group.Type)
	if err != nil {
		return nil, err
	}

	var created []string
	var touched []*lifecycle.Resource
	for _, name := range batch.Members {
		if res := group.member(name); res != nil {
			touched = append(touched, res)
		} else {
			created = append(created, name)
		}
	}

	var ops []*memberOp
	add := func(res *lifecycle.Resource, action lifecycle.Action, isStandby bool) {
		ops = append(ops, &memberOp{
			op:      lifecycle.NewOperation(res, action, handler, lifecycle.WithOperationLogger(u.logger)),
			res:     res,
			action:  action,
			handler: handler,
			standby: isStandby,
		})
	}

	for _, name := range created {
		add(lifecycle.NewResource(name, group.Type), lifecycle.ActionCreate, false)
	}

	removals := len(group.Members) + len(created) - batch.Capacity
	if removals > 0 {
		// Planner orders touched members newest-first, so retiring from the
		// front removes the youngest.
		k := min(removals, len(touched))
		for _, res := range touched[:k] {
			add(res, lifecycle.ActionDelete, false)
		}
		touched = touched[k:]
		removals -= k
		for removals > 0 && len(*standby) > 0 {
			name := (*standby)[len(*standby)-1]
			*standby = (*standby)[:len(*standby)-1]
			res := group.member(name)
			if res == nil {
				return nil, fmt.Errorf("standby member %s missing from group %s", name, group.Name)
			}
			add(res, lifecycle.ActionDelete, false)
			removals--
		}
		if removals > 0 {
			return nil, fmt.Errorf("batch for group %s removes %d more members than it names", group.Name, removals)
		}
	}
	for removals < 0 {
		name := fmt.Sprintf("%s-standby-%d", group.Name, len(*standby)+1)
		*standby = append(*standby, name)
		add(lifecycle.NewResource(name, group.Type), lifecycle.ActionCreate, true)
		removals++
	}

	for _, res := range touched {
		add(res, lifecycle.ActionUpdate, false)
	}
	return ops, nil
}

// commit applies a completed operation's membership change and persists the
// member snapshot.
func (u *Updater) commit(ctx context.Context, group *Group, mo *memberOp) error {
	switch mo.action {
	case lifecycle.ActionDelete:
		group.remove(mo.res.Name)
		if u.store != nil {
			if err := u.store.DeleteSnapshot(ctx, group.Name, mo.res.Name); err != nil {
				return fmt.Errorf("deleting snapshot for member %s: %w", mo.res.Name, err)
			}
		}
		return nil
	case lifecycle.ActionCreate:
		group.Members = append(group.Members, mo.res)
	}

	// Standby members never match the target definition; they are removed
	// again before the plan settles.
	if mo.standby || u.store == nil {
		return nil
	}
	snap := u.captureSnapshot(ctx, group, mo)
	if err := u.store.SaveSnapshot(ctx, group.Name, snap); err != nil {
		return fmt.Errorf("saving snapshot for member %s: %w", mo.res.Name, err)
	}
	if u.metrics != nil {
		u.metrics.RecordSnapshotSaved(group.Name)
	}
	return nil
}

// captureSnapshot builds the immutable member snapshot for a settled member.
// Attribute values the handler reports as errors become deferred failures
// that surface only when the attribute is read.
func (u *Updater) captureSnapshot(ctx context.Context, group *Group, mo *memberOp) *snapshot.Snapshot {
	b := snapshot.NewBuilder(uuid.New().String(), mo.res.Name).
		ExternalID(mo.res.ExternalID).
		ReferenceID(mo.res.ExternalID).
		LastOperation(mo.res.Action(), mo.res.Status()).
		Attribute(DefinitionAttribute, group.Definition)
	if d, ok := mo.handler.(lifecycle.Describer); ok {
		for name, value := range d.Describe(ctx, mo.res) {
			if err, failed := value.(error); failed {
				b.AttributeError(name, err.Error())
			} else {
				b.Attribute(name, value)
			}
		}
	}
	return b.Build()
}

// upToDateMembers derives which members already carry the group's current
// definition from the stored snapshots of previous runs.
func (u *Updater) upToDateMembers(ctx context.Context, group *Group) (map[string]bool, error) {
	if u.store == nil {
		return nil, nil
	}
	snaps, err := u.store.ListSnapshots(ctx, group.Name)
	if err != nil {
		return nil, fmt.Errorf("listing snapshots for group %s: %w", group.Name, err)
	}
	return UpToDateFromSnapshots(snaps, group.Definition), nil
}

// UpToDateFromSnapshots derives which members already carry the given
// definition tag from their stored snapshots. Only a snapshot of a settled
// create or update counts.
func UpToDateFromSnapshots(snaps []*snapshot.Snapshot, definition string) map[string]bool {
	upToDate := make(map[string]bool)
	for _, snap := range snaps {
		if snap.Status() != lifecycle.StatusComplete {
			continue
		}
		if snap.Action() != lifecycle.ActionCreate && snap.Action() != lifecycle.ActionUpdate {
			continue
		}
		tag, err := snap.Attribute(DefinitionAttribute)
		if err != nil {
			continue
		}
		if tag == definition {
			upToDate[snap.Name()] = true
		}
	}
	return upToDate
}

func pause(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
