package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List installed packages",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, _, cancel := setupCommand(cmd.Context())
			defer cancel()

			comps, err := buildComponents(cfg, logger)
			if err != nil {
				return err
			}
			defer comps.close()

			installed, err := comps.database.ListPackages()
			if err != nil {
				return err
			}
			if len(installed) == 0 {
				fmt.Println("no packages installed")
				return nil
			}
			for _, rec := range installed {
				fmt.Printf("%s-%s-%d\t%s\t%s\n", rec.Name, rec.Version, rec.Release, rec.TrustLevel, rec.InstallDate.Format("2006-01-02T15:04:05Z"))
			}
			return nil
		},
	}
}
