package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newUpdateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "update",
		Short: "Sync repository indices from every enabled repository",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, ctx, cancel := setupCommand(cmd.Context())
			defer cancel()

			comps, err := buildComponents(cfg, logger)
			if err != nil {
				return err
			}
			defer comps.close()

			result := comps.syncer.Update(ctx, repositoriesOf(cfg))
			for _, name := range result.Updated {
				fmt.Printf("%s: updated\n", name)
			}
			for _, name := range result.Unchanged {
				fmt.Printf("%s: up to date\n", name)
			}
			for _, f := range result.Failed {
				fmt.Printf("%s: failed: %s\n", f.Name, f.Reason)
			}
			if len(result.Failed) > 0 && len(result.Updated) == 0 && len(result.Unchanged) == 0 {
				return fmt.Errorf("all repositories failed to sync")
			}
			return nil
		},
	}
}
