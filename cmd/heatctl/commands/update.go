package commands

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/openstack/heat-sub008/pkg/rollout"
	"github.com/openstack/heat-sub008/pkg/stores"
	"github.com/openstack/heat-sub008/pkg/telemetry"
)

func newUpdateCommand() *cobra.Command {
	var showProgress bool

	cmd := &cobra.Command{
		Use:   "update <group>",
		Short: "Apply a rolling update to a group",
		Long: `Plan and apply a rolling update bringing the named group to its declared
target capacity and definition. Batches settle one at a time under the
group's update policy; each settled member leaves a snapshot behind, so an
interrupted update resumes where it stopped.`,
		Example: `  # Update group web
  heatctl update web

  # Update without per-batch progress output
  heatctl update web --progress=false`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := loadConfig()
			if err != nil {
				return err
			}
			gc, err := f.Group(args[0])
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			store, err := openStore(ctx, f)
			if err != nil {
				return err
			}
			defer store.Close()

			registry, err := newRegistry([]string{gc.Type})
			if err != nil {
				return err
			}

			events, err := telemetry.NewEventPublisher(telemetry.EventsConfig{
				Enabled:    true,
				BufferSize: 256,
			})
			if err != nil {
				return err
			}
			if showProgress && !jsonOutput {
				events.Subscribe(func(e telemetry.Event) {
					fmt.Fprintln(cmd.OutOrStdout(), e.Message)
				}, nil)
			}

			updater := rollout.NewUpdater(registry,
				rollout.WithStore(store),
				rollout.WithLogger(log.Logger),
				rollout.WithEvents(events),
			)

			group := gc.Group()
			started := time.Now().UTC()
			outcome, updateErr := updater.Update(ctx, group, gc.Policy())

			if outcome != nil {
				recordRun(cmd, store, outcome, started, updateErr)
			}
			if updateErr != nil {
				return updateErr
			}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(outcome)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "group %s updated: %d batches applied, capacity %d\n",
				group.Name, outcome.Applied, len(group.Members))
			return nil
		},
	}

	cmd.Flags().BoolVar(&showProgress, "progress", true, "print per-batch progress")
	return cmd
}

// recordRun persists the run history row for an outcome. History is best
// effort; a failure to record never masks the update's own result.
func recordRun(cmd *cobra.Command, store stores.Store, outcome *rollout.Outcome, started time.Time, updateErr error) {
	ctx := cmd.Context()

	status := stores.RunStatusCompleted
	var errMsg *string
	if updateErr != nil {
		status = stores.RunStatusFailed
		s := updateErr.Error()
		errMsg = &s
	}

	run := &stores.Run{
		ID:        outcome.RunID,
		Group:     outcome.Group,
		Status:    stores.RunStatusRunning,
		Batches:   len(outcome.Batches),
		StartedAt: started,
	}
	if err := store.CreateRun(ctx, run); err != nil {
		log.Warn().Err(err).Msg("failed to record run")
		return
	}
	if err := store.FinishRun(ctx, outcome.RunID, status, outcome.Applied, errMsg); err != nil {
		log.Warn().Err(err).Msg("failed to record run outcome")
	}
}
