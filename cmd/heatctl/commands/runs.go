package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newRunsCommand() *cobra.Command {
	var (
		group string
		limit int
	)

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List the history of rolling update runs",
		Example: `  # Last runs across all groups
  heatctl runs

  # Runs of one group
  heatctl runs --group web`,
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

			runs, err := store.ListRuns(ctx, group, limit, 0)
			if err != nil {
				return err
			}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(runs)
			}

			for _, r := range runs {
				line := fmt.Sprintf("%s group=%s status=%s applied=%d/%d started=%s",
					r.ID, r.Group, r.Status, r.Applied, r.Batches, r.StartedAt.Format("2006-01-02 15:04:05"))
				if r.Error != nil {
					line += " error=" + *r.Error
				}
				fmt.Fprintln(cmd.OutOrStdout(), line)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&group, "group", "", "filter by group")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum runs to list")
	return cmd
}
