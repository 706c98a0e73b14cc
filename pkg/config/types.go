package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/openstack/heat-sub008/pkg/lifecycle"
	"github.com/openstack/heat-sub008/pkg/rollout"
)

// Duration is a time.Duration that unmarshals from YAML either as a Go
// duration string ("30s", "5m") or as a bare number of seconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}

	var seconds float64
	if err := value.Decode(&seconds); err != nil {
		return fmt.Errorf("invalid duration at line %d", value.Line)
	}
	*d = Duration(time.Duration(seconds * float64(time.Second)))
	return nil
}

// Std returns the standard library representation.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// File is the root of a declarative engine configuration.
type File struct {
	// Version is the configuration format version.
	Version string `yaml:"version"`

	// Store configures the persistence layer.
	Store StoreConfig `yaml:"store"`

	// Groups declares the managed member groups.
	Groups []GroupConfig `yaml:"groups" validate:"dive"`
}

// StoreConfig configures the SQLite persistence layer.
type StoreConfig struct {
	// Path is the database file path.
	Path string `yaml:"path"`
}

// GroupConfig declares one scaled member group.
type GroupConfig struct {
	// Name identifies the group.
	Name string `yaml:"name" validate:"required"`

	// Type is the lifecycle resource type of every member.
	Type string `yaml:"type" validate:"required"`

	// Definition is the opaque tag of the wanted member definition.
	Definition string `yaml:"definition" validate:"required"`

	// TargetCapacity is the desired member count.
	TargetCapacity int `yaml:"target_capacity" validate:"min=0"`

	// Members lists the current members, oldest first. Empty for a group
	// being created from scratch.
	Members []MemberConfig `yaml:"members,omitempty" validate:"dive"`

	// Update bounds how rolling updates of this group proceed.
	Update UpdatePolicyConfig `yaml:"update"`
}

// MemberConfig declares one existing group member.
type MemberConfig struct {
	// Name is the member's declared identity.
	Name string `yaml:"name" validate:"required"`

	// ExternalID is the identity the external system assigned, if known.
	ExternalID string `yaml:"external_id,omitempty"`
}

// UpdatePolicyConfig bounds a group's rolling updates.
type UpdatePolicyConfig struct {
	// MaxBatchSize caps how many members one batch may create or replace.
	MaxBatchSize int `yaml:"max_batch_size" validate:"min=1"`

	// MinInService is the number of members that must remain in service
	// throughout an update.
	MinInService int `yaml:"min_in_service" validate:"min=0"`

	// PauseTime is the wait between consecutive batches.
	PauseTime Duration `yaml:"pause_time"`

	// PollInterval is the suspension interval between scheduler steps.
	PollInterval Duration `yaml:"poll_interval"`

	// BatchTimeout is the wall-clock budget for one batch, zero for none.
	BatchTimeout Duration `yaml:"batch_timeout"`
}

// Group converts the declaration into the updater's group model.
func (g GroupConfig) Group() *rollout.Group {
	members := make([]*lifecycle.Resource, 0, len(g.Members))
	for _, m := range g.Members {
		res := lifecycle.NewResource(m.Name, g.Type)
		res.ExternalID = m.ExternalID
		members = append(members, res)
	}
	return &rollout.Group{
		Name:           g.Name,
		Type:           g.Type,
		Definition:     g.Definition,
		TargetCapacity: g.TargetCapacity,
		Members:        members,
	}
}

// Policy converts the declaration into the updater's policy.
func (g GroupConfig) Policy() rollout.Policy {
	return rollout.Policy{
		MaxBatchSize: g.Update.MaxBatchSize,
		MinInService: g.Update.MinInService,
		PauseTime:    g.Update.PauseTime.Std(),
		PollInterval: g.Update.PollInterval.Std(),
		BatchTimeout: g.Update.BatchTimeout.Std(),
	}
}

// Group returns the named group declaration.
func (f *File) Group(name string) (*GroupConfig, error) {
	for i := range f.Groups {
		if f.Groups[i].Name == name {
			return &f.Groups[i], nil
		}
	}
	return nil, fmt.Errorf("group %s is not declared", name)
}
