package commands

import (
	"context"

	"github.com/google/uuid"

	"github.com/openstack/heat-sub008/pkg/lifecycle"
)

// noopHandler settles every action on the first poll without touching any
// external system. It stands in for real provisioning so updates can be
// exercised end to end, the way a none-type resource does in an
// orchestration template.
type noopHandler struct{}

func (noopHandler) Initiate(_ context.Context, res *lifecycle.Resource, action lifecycle.Action) (*lifecycle.Initiated, error) {
	if action == lifecycle.ActionCreate && res.ExternalID == "" {
		res.ExternalID = uuid.New().String()
	}
	return nil, nil
}

func (noopHandler) PollComplete(_ context.Context, _ *lifecycle.Resource, _ lifecycle.Action, _ lifecycle.Cookie) (bool, error) {
	return true, nil
}

func (noopHandler) Describe(_ context.Context, res *lifecycle.Resource) map[string]any {
	return map[string]any{
		"name": res.Name,
	}
}

// newRegistry builds a registry resolving every declared group type to the
// no-op handler.
func newRegistry(types []string) (*lifecycle.Registry, error) {
	registry := lifecycle.NewRegistry()
	seen := make(map[string]bool)
	for _, t := range types {
		if seen[t] {
			continue
		}
		seen[t] = true
		if err := registry.Register(t, func() (lifecycle.Handler, error) {
			return noopHandler{}, nil
		}); err != nil {
			return nil, err
		}
	}
	return registry, nil
}
