package stores

import (
	"context"
	"time"

	"github.com/openstack/heat-sub008/pkg/snapshot"
)

// RunStatus represents the terminal or in-flight status of a rolling update
// run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// Run is the persisted record of one rolling update run.
type Run struct {
	ID          string     `json:"id"`
	Group       string     `json:"group"`
	Status      RunStatus  `json:"status"`
	Batches     int        `json:"batches"`
	Applied     int        `json:"applied"`
	Error       *string    `json:"error,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Store is the persistence layer: member snapshots keyed by group, plus the
// run history of rolling updates.
type Store interface {
	// Lifecycle
	Init(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error

	// Snapshot operations. At most one snapshot is kept per (group, member);
	// saving replaces the previous one.
	SaveSnapshot(ctx context.Context, group string, snap *snapshot.Snapshot) error
	GetSnapshot(ctx context.Context, group, member string) (*snapshot.Snapshot, error)
	ListSnapshots(ctx context.Context, group string) ([]*snapshot.Snapshot, error)
	DeleteSnapshot(ctx context.Context, group, member string) error
	DeleteGroupSnapshots(ctx context.Context, group string) (int64, error)
	ListGroups(ctx context.Context) ([]string, error)

	// Run operations
	CreateRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, id string) (*Run, error)
	FinishRun(ctx context.Context, id string, status RunStatus, applied int, errMsg *string) error
	ListRuns(ctx context.Context, group string, limit, offset int) ([]*Run, error)

	// Utility
	HealthCheck(ctx context.Context) error
}
