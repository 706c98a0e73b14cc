package commands

import (
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration file",
		Long: `Validate the configuration file.

This command checks:
  - YAML syntax, rejecting unknown fields
  - Required fields and value ranges
  - Group and member name uniqueness`,
		Example: `  # Validate the default config
  heatctl validate

  # Validate a specific file
  heatctl -c staging.yaml validate`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := loadConfig()
			if err != nil {
				return err
			}

			log.Info().
				Str("path", configPath).
				Int("groups", len(f.Groups)).
				Msg("configuration is valid")

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(f)
			}

			for _, g := range f.Groups {
				fmt.Fprintf(cmd.OutOrStdout(), "group %s: type=%s capacity=%d members=%d\n",
					g.Name, g.Type, g.TargetCapacity, len(g.Members))
			}
			return nil
		},
	}
	return cmd
}
