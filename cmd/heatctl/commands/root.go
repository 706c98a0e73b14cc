package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openstack/heat-sub008/pkg/config"
	"github.com/openstack/heat-sub008/pkg/stores"
)

var (
	// Global flags
	configPath string
	jsonOutput bool
)

// Execute runs the root command.
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "heatctl",
		Short: "Orchestration engine for scaled member groups",
		Long: `heatctl manages scaled groups of infrastructure members through
asynchronous lifecycle operations and batched rolling updates.

Features:
  - Declarative group configuration in YAML
  - Batched rolling updates with an in-service floor
  - Cooperative scheduling of member operations
  - Per-member snapshots for resumable updates
  - SQLite-backed run history`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "heat.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	rootCmd.AddCommand(newValidateCommand())
	rootCmd.AddCommand(newPlanCommand())
	rootCmd.AddCommand(newUpdateCommand())
	rootCmd.AddCommand(newSnapshotsCommand())
	rootCmd.AddCommand(newRunsCommand())
	rootCmd.AddCommand(newWatchCommand())

	return rootCmd
}

// loadConfig reads the configured file.
func loadConfig() (*config.File, error) {
	return config.Load(configPath)
}

// openStore initializes and migrates the store declared in the config.
func openStore(ctx context.Context, f *config.File) (*stores.SQLiteStore, error) {
	store, err := stores.NewSQLiteStore(stores.Config{Path: f.Store.Path})
	if err != nil {
		return nil, err
	}
	if err := store.Init(ctx); err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}
