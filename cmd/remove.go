package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"rookpkg/pkg/txn"
)

func newRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <package>...",
		Short: "Remove one or more installed packages",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, ctx, cancel := setupCommand(cmd.Context())
			defer cancel()

			comps, err := buildComponents(cfg, logger)
			if err != nil {
				return err
			}
			defer comps.close()

			ops := make([]txn.Operation, 0, len(args))
			for _, name := range args {
				rec, err := comps.database.GetPackage(name)
				if err != nil {
					return err
				}
				if rec == nil {
					return fmt.Errorf("package %q is not installed", name)
				}
				ops = append(ops, txn.Operation{Kind: txn.KindRemove, PackageName: name})
			}

			tx, err := comps.engine.Execute(ctx, ops)
			if err != nil {
				return err
			}
			fmt.Printf("transaction %s: %s\n", tx.ID, tx.State)
			return nil
		},
	}
}
