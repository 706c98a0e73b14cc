package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newSnapshotsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshots",
		Short: "Inspect stored member snapshots",
	}
	cmd.AddCommand(newSnapshotsListCommand())
	cmd.AddCommand(newSnapshotsShowCommand())
	cmd.AddCommand(newSnapshotsDeleteCommand())
	return cmd
}

func newSnapshotsListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list [group]",
		Short: "List stored snapshots, per group",
		Args:  cobra.MaximumNArgs(1),
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

			groups := args
			if len(groups) == 0 {
				groups, err = store.ListGroups(ctx)
				if err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			for _, group := range groups {
				snaps, err := store.ListSnapshots(ctx, group)
				if err != nil {
					return err
				}
				if jsonOutput {
					maps := make([]map[string]any, 0, len(snaps))
					for _, s := range snaps {
						maps = append(maps, s.AsMap())
					}
					enc := json.NewEncoder(out)
					enc.SetIndent("", "  ")
					if err := enc.Encode(maps); err != nil {
						return err
					}
					continue
				}
				for _, s := range snaps {
					fmt.Fprintf(out, "%s/%s: action=%s status=%s external_id=%s\n",
						group, s.Name(), s.Action(), s.Status(), s.ExternalID())
				}
			}
			return nil
		},
	}
}

func newSnapshotsShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <group> <member>",
		Short: "Show one member snapshot in full",
		Args:  cobra.ExactArgs(2),
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

			snap, err := store.GetSnapshot(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(snap.AsMap())
		},
	}
}

func newSnapshotsDeleteCommand() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "delete <group> [member]",
		Short: "Delete stored snapshots",
		Long: `Delete the snapshot of one member, or with --all every snapshot of the
group. A deleted snapshot makes the next update treat the member as
outdated.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !all && len(args) < 2 {
				return fmt.Errorf("member name required unless --all is set")
			}

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

			if all {
				n, err := store.DeleteGroupSnapshots(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %d snapshots of group %s\n", n, args[0])
				return nil
			}

			if err := store.DeleteSnapshot(ctx, args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted snapshot %s/%s\n", args[0], args[1])
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "delete every snapshot of the group")
	return cmd
}
