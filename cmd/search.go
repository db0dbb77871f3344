package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSearchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search <term>",
		Short: "Search the synced repository cache for packages by name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, _, cancel := setupCommand(cmd.Context())
			defer cancel()

			comps, err := buildComponents(cfg, logger)
			if err != nil {
				return err
			}
			defer comps.close()

			hits := comps.syncer.Search(args[0])
			if len(hits) == 0 {
				fmt.Printf("no packages matching %q\n", args[0])
				return nil
			}
			for _, e := range hits {
				fmt.Printf("%s-%s-%d\n", e.Name, e.Version, e.Release)
			}
			return nil
		},
	}
}
