package commands

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/openstack/heat-sub008/pkg/rollout"
)

func newPlanCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan <group>",
		Short: "Show the batch sequence of a rolling update",
		Long: `Compute and print the ordered batch sequence a rolling update of the
named group would execute, without applying anything. Members whose stored
snapshot already carries the group's definition tag are left untouched.`,
		Example: `  # Plan the update of group web
  heatctl plan web

  # Machine-readable plan
  heatctl --json plan web`,
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

			snaps, err := store.ListSnapshots(ctx, gc.Name)
			if err != nil {
				return err
			}
			upToDate := rollout.UpToDateFromSnapshots(snaps, gc.Definition)

			group := gc.Group()
			batches, err := rollout.PlanBatches(rollout.PlanSpec{
				CurrentMembers: group.MemberNames(),
				UpToDate:       upToDate,
				TargetCapacity: group.TargetCapacity,
				MaxBatchSize:   gc.Update.MaxBatchSize,
				MinInService:   gc.Update.MinInService,
				NewMemberName: func(slot int) string {
					return fmt.Sprintf("%s-%d", group.Name, slot)
				},
			})
			if err != nil {
				return err
			}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(batches)
			}

			if len(batches) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "group %s is already at its target\n", group.Name)
				return nil
			}
			for i, b := range batches {
				members := "-"
				if len(b.Members) > 0 {
					members = strings.Join(b.Members, ", ")
				}
				fmt.Fprintf(cmd.OutOrStdout(), "batch %d: capacity=%d updated=%d members=%s\n",
					i+1, b.Capacity, b.Updated, members)
			}
			return nil
		},
	}
	return cmd
}
