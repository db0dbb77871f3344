package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"rookpkg/pkg/helper/errors"
	"rookpkg/pkg/txn"
)

func newRecoverCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "recover",
		Short: "Resolve leftover transaction state from a prior crash",
		Long:  "Scans the transactions directory for leftovers from a process that was killed or crashed mid-run: InProgress transactions are rolled back, Pending/Completed/RolledBack leftovers are cleaned up, and Failed transactions are reported for manual inspection.",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, ctx, cancel := setupCommand(cmd.Context())
			defer cancel()

			comps, err := buildComponents(cfg, logger)
			if err != nil {
				return err
			}
			defer comps.close()

			results, err := comps.engine.Recover(ctx)
			if err != nil {
				return err
			}
			if len(results) == 0 {
				fmt.Println("no leftover transactions found")
				return nil
			}

			var failedCount int
			for _, r := range results {
				switch r.Action {
				case txn.ActionRolledBack:
					fmt.Printf("transaction %s: rolled back\n", r.ID)
				case txn.ActionCleaned:
					fmt.Printf("transaction %s: cleaned up (was %s)\n", r.ID, r.State)
				case txn.ActionLeftFailed:
					failedCount++
					fmt.Printf("transaction %s: left in failed state — inspect %s by hand\n", r.ID, r.ID)
					if r.Err != nil {
						fmt.Printf("  %v\n", r.Err)
					}
				}
			}
			if failedCount > 0 {
				return errors.Wrap(errors.ErrTransactionFailed, "%d transaction(s) could not be automatically recovered", failedCount)
			}
			return nil
		},
	}
}
