package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"rookpkg/pkg/helper/log"
	"rookpkg/pkg/resolver"
	"rookpkg/pkg/txn"
)

func newInstallCmd() *cobra.Command {
	var skipUpdate bool

	c := &cobra.Command{
		Use:   "install <package>...",
		Short: "Resolve and install one or more packages",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, ctx, cancel := setupCommand(cmd.Context())
			defer cancel()
			return runInstall(ctx, logger, args, skipUpdate)
		},
	}
	c.Flags().BoolVar(&skipUpdate, "no-update", false, "resolve against the last synced repository cache instead of fetching first")
	return c
}

func runInstall(ctx context.Context, logger log.Logger, requested []string, skipUpdate bool) error {
	comps, err := buildComponents(cfg, logger)
	if err != nil {
		return err
	}
	defer comps.close()

	repos := repositoriesOf(cfg)
	if !skipUpdate {
		result := comps.syncer.Update(ctx, repos)
		for _, f := range result.Failed {
			logger.WithFields(map[string]interface{}{"repo": f.Name}).Warn("repository sync failed: " + f.Reason)
		}
	}

	pool := newCandidatePool(comps.syncer.AllByRepo())
	solver := resolver.New(pool, dbInstalledChecker{database: comps.database})

	res, err := solver.Resolve(requested)
	if err != nil {
		return wrapResolveErr(err)
	}
	for _, name := range res.NoOp {
		fmt.Printf("%s is already installed, skipping\n", name)
	}
	if len(res.Install) == 0 {
		return nil
	}

	ops := make([]txn.Operation, 0, len(res.Install))
	for _, cand := range res.Install {
		src, ok := pool.source[cand.Identity]
		if !ok {
			return fmt.Errorf("internal error: no source recorded for resolved candidate %s", cand.Identity)
		}
		archivePath, ferr := comps.fetcher.Fetch(ctx, src.repoURL, src.entry)
		if ferr != nil {
			return ferr
		}
		trustLevel := "full"
		if comps.syncer.IsTainted(src.repoName) {
			trustLevel = "unknown"
		}
		ops = append(ops, txn.Operation{
			Kind:        txn.KindInstall,
			PackageName: cand.Identity.Name,
			ArchivePath: archivePath,
			TrustLevel:  trustLevel,
		})
		fmt.Printf("installing %s\n", cand.Identity)
	}

	tx, err := comps.engine.Execute(ctx, ops)
	if err != nil {
		return err
	}
	fmt.Printf("transaction %s: %s\n", tx.ID, tx.State)
	return nil
}
