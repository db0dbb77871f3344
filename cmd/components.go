package cmd

import (
	"os"
	"path/filepath"

	"rookpkg/pkg/config"
	"rookpkg/pkg/db"
	"rookpkg/pkg/fetch"
	"rookpkg/pkg/helper/errors"
	"rookpkg/pkg/helper/log"
	"rookpkg/pkg/metrics"
	"rookpkg/pkg/reposync"
	"rookpkg/pkg/trust"
	"rookpkg/pkg/txn"
)

// components bundles the six pieces every domain command wires together:
// the trust store, the repository sync client, the archive fetcher, the
// package database, the transaction engine, and the metrics collector the
// engine reports to.
type components struct {
	trustStore *trust.Store
	syncer     *reposync.Syncer
	fetcher    *fetch.Fetcher
	database   *db.DB
	engine     *txn.Engine
	collector  *metrics.Collector
	paths      config.Paths
}

// buildComponents constructs the full dependency graph from cfg. Callers
// must call close() when done to release the database handle.
func buildComponents(cfg *config.Config, logger log.Logger) (*components, error) {
	paths := cfg.Paths()

	if err := ensureStateDirs(paths); err != nil {
		return nil, err
	}

	store, err := trust.LoadStore(paths.MasterKeysDir(), paths.PackagerKeysDir())
	if err != nil {
		return nil, err
	}

	collector := metrics.NewNopCollector()

	syncer := reposync.NewSyncer(paths.RepoCacheDir(), store, cfg.AllowUntrusted, logger)
	if err := syncer.LoadCache(repositoriesOf(cfg)); err != nil {
		return nil, err
	}

	fetcher := fetch.New(paths.PackageCacheDir(), logger)

	database, err := db.Open(paths.DatabasePath())
	if err != nil {
		return nil, err
	}

	engine := txn.New(cfg.Root, database, logger, cfg.LockTimeout)
	engine.SetMetrics(collector)

	return &components{
		trustStore: store,
		syncer:     syncer,
		fetcher:    fetcher,
		database:   database,
		engine:     engine,
		collector:  collector,
		paths:      paths,
	}, nil
}

// ensureStateDirs creates the persisted-state directories a fresh rookpkg
// installation needs before its first command can run: the database and
// transaction directories, and the two cache trees. Key directories are
// deliberately left uncreated — their absence means "no trusted keys
// configured yet", a valid and distinct state from "empty directory".
func ensureStateDirs(paths config.Paths) error {
	dirs := []string{
		filepath.Dir(paths.DatabasePath()),
		paths.TransactionsDir(),
		paths.ScriptsDir(),
		paths.RepoCacheDir(),
		paths.PackageCacheDir(),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return errors.Wrap(errors.ErrFilesystemIO, "creating state directory %s: %v", d, err)
		}
	}
	return nil
}

func (c *components) close() {
	if c.database != nil {
		_ = c.database.Close()
	}
}

func repositoriesOf(cfg *config.Config) []reposync.Repository {
	repos := make([]reposync.Repository, 0, len(cfg.Repositories))
	for _, r := range cfg.Repositories {
		repos = append(repos, reposync.Repository{
			Name: r.Name, URL: r.URL, Enabled: r.Enabled, Priority: r.Priority,
		})
	}
	return repos
}
