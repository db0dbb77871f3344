package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"rookpkg/pkg/pkgid"
	"rookpkg/pkg/resolver"
	"rookpkg/pkg/txn"
)

func newUpgradeCmd() *cobra.Command {
	var skipUpdate bool

	c := &cobra.Command{
		Use:   "upgrade [package]...",
		Short: "Upgrade installed packages to the highest satisfying version available",
		Long:  "With no arguments, upgrades every installed package that has a newer version available. With arguments, upgrades only the named packages.",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, ctx, cancel := setupCommand(cmd.Context())
			defer cancel()

			comps, err := buildComponents(cfg, logger)
			if err != nil {
				return err
			}
			defer comps.close()

			repos := repositoriesOf(cfg)
			if !skipUpdate {
				comps.syncer.Update(ctx, repos)
			}

			targets := args
			if len(targets) == 0 {
				installed, err := comps.database.ListPackages()
				if err != nil {
					return err
				}
				for _, rec := range installed {
					targets = append(targets, rec.Name)
				}
			}
			if len(targets) == 0 {
				fmt.Println("nothing installed")
				return nil
			}

			pool := newCandidatePool(comps.syncer.AllByRepo())
			solver := resolver.New(pool, passthroughChecker{})

			res, err := solver.Resolve(targets)
			if err != nil {
				return wrapResolveErr(err)
			}

			var ops []txn.Operation
			for _, cand := range res.Install {
				existing, err := comps.database.GetPackage(cand.Identity.Name)
				if err != nil {
					return err
				}
				if existing == nil {
					// Not previously installed: an upgrade target named
					// explicitly that isn't on the system yet installs fresh.
					src := pool.source[cand.Identity]
					archivePath, ferr := comps.fetcher.Fetch(ctx, src.repoURL, src.entry)
					if ferr != nil {
						return ferr
					}
					ops = append(ops, txn.Operation{Kind: txn.KindInstall, PackageName: cand.Identity.Name, ArchivePath: archivePath, TrustLevel: trustLevelFor(comps, src)})
					continue
				}
				existingID, err := existing.Identity()
				if err != nil {
					return err
				}
				if existingID.Compare(cand.Identity) >= 0 {
					continue
				}
				src := pool.source[cand.Identity]
				archivePath, ferr := comps.fetcher.Fetch(ctx, src.repoURL, src.entry)
				if ferr != nil {
					return ferr
				}
				ops = append(ops, txn.Operation{
					Kind:        txn.KindUpgrade,
					PackageName: cand.Identity.Name,
					ArchivePath: archivePath,
					TrustLevel:  trustLevelFor(comps, src),
				})
				fmt.Printf("upgrading %s -> %s\n", existingID, cand.Identity)
			}

			if len(ops) == 0 {
				fmt.Println("nothing to upgrade")
				return nil
			}

			tx, err := comps.engine.Execute(ctx, ops)
			if err != nil {
				return err
			}
			fmt.Printf("transaction %s: %s\n", tx.ID, tx.State)
			return nil
		},
	}
	c.Flags().BoolVar(&skipUpdate, "no-update", false, "resolve against the last synced repository cache instead of fetching first")
	return c
}

// passthroughChecker always reports a package as not installed, so the
// upgrade command's resolver pass considers every candidate version
// instead of short-circuiting at whatever is already on disk — upgrade
// itself decides, by comparing identities, whether a resolved candidate is
// actually newer than the installed one.
type passthroughChecker struct{}

func (passthroughChecker) InstalledVersion(name string) (pkgid.Identity, bool) {
	return pkgid.Identity{}, false
}

func trustLevelFor(comps *components, src sourceEntry) string {
	if comps.syncer.IsTainted(src.repoName) {
		return "unknown"
	}
	return "full"
}
