package commands

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	cfg "github.com/openstack/heat-sub008/pkg/config"
	"github.com/openstack/heat-sub008/pkg/rollout"
	"github.com/openstack/heat-sub008/pkg/telemetry"
)

func newWatchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch the config file and apply updates on change",
		Long: `Watch the configuration file and run a rolling update for every group
whose declaration changed on disk. Invalid edits are logged and skipped;
the watcher keeps running until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			store, err := openStore(ctx, f)
			if err != nil {
				return err
			}
			defer store.Close()

			events, err := telemetry.NewEventPublisher(telemetry.EventsConfig{
				Enabled:    true,
				BufferSize: 256,
			})
			if err != nil {
				return err
			}
			events.Subscribe(func(e telemetry.Event) {
				log.Info().Str("type", e.Type).Msg(e.Message)
			}, telemetry.FilterByLevel(telemetry.EventLevelInfo))

			log.Info().Str("path", configPath).Msg("watching configuration")
			return cfg.Watch(ctx, configPath, log.Logger, func(updated *cfg.File) {
				for i := range updated.Groups {
					gc := updated.Groups[i]

					registry, err := newRegistry([]string{gc.Type})
					if err != nil {
						log.Warn().Str("group", gc.Name).Err(err).Msg("skipping group")
						continue
					}
					updater := rollout.NewUpdater(registry,
						rollout.WithStore(store),
						rollout.WithLogger(log.Logger),
						rollout.WithEvents(events),
					)

					if _, err := updater.Update(ctx, gc.Group(), gc.Policy()); err != nil {
						log.Warn().Str("group", gc.Name).Err(err).Msg("rolling update failed")
					}
				}
			})
		},
	}
	return cmd
}
