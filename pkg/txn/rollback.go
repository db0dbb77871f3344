package txn

import (
	"fmt"
	"os"
	"path/filepath"

	"rookpkg/pkg/db"
)

// rollback walks tx's journal in reverse, inverting each entry, and
// returns every error encountered along the way. Rollback is best-effort:
// one step's failure does not stop the walk, since undoing as much as
// possible is strictly better than stopping halfway. The caller decides
// the transaction's final state from the length of the returned slice.
func (e *Engine) rollback(tx *Transaction) []error {
	var errs []error
	entries := tx.journal.Entries()
	for i := len(entries) - 1; i >= 0; i-- {
		if err := e.revertEntry(entries[i]); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

func (e *Engine) revertEntry(entry Entry) error {
	switch entry.Type {
	case EntryFileCreated:
		if err := os.Remove(entry.Path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("rollback: removing created file %s: %w", entry.Path, err)
		}
		return nil

	case EntryFileReplaced, EntryFileRemoved:
		if _, err := os.Stat(entry.Backup); err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return fmt.Errorf("rollback: stating backup %s: %w", entry.Backup, err)
		}
		if err := os.MkdirAll(filepath.Dir(entry.Path), 0o755); err != nil {
			return fmt.Errorf("rollback: recreating directory for %s: %w", entry.Path, err)
		}
		if err := copyFilePreserveMode(entry.Backup, entry.Path); err != nil {
			return fmt.Errorf("rollback: restoring %s from backup: %w", entry.Path, err)
		}
		return nil

	case EntryDirCreated:
		if err := os.Remove(entry.Path); err != nil && !os.IsNotExist(err) {
			// Not empty, or some other non-fatal condition: the directory is
			// left in place rather than treated as a rollback failure, since
			// a later step may since have placed other content in it.
			return nil
		}
		return nil

	case EntryDbPackageAdded:
		if _, err := e.db.RemovePackage(entry.PackageName); err != nil {
			return fmt.Errorf("rollback: removing added package %s from database: %w", entry.PackageName, err)
		}
		return nil

	case EntryDbPackageRemoved:
		return e.reinsertPackage(entry.Removed)

	default:
		return fmt.Errorf("rollback: unknown journal entry type %q", entry.Type)
	}
}

// reinsertPackage restores a package row, its files, and its dependencies
// from a journal-captured snapshot, undoing removeCore's database mutation.
func (e *Engine) reinsertPackage(data *RemovedPackageData) error {
	if data == nil {
		return fmt.Errorf("rollback: missing removed-package snapshot")
	}

	dbtx, err := e.db.Begin()
	if err != nil {
		return fmt.Errorf("rollback: beginning database transaction: %w", err)
	}

	id, err := dbtx.AddPackage(db.PackageRecord{
		Name:        data.Package.Name,
		Version:     data.Package.Version,
		Release:     data.Package.Release,
		InstallDate: data.Package.InstallDate,
		Size:        data.Package.Size,
		ArchiveHash: data.Package.ArchiveHash,
		TrustLevel:  data.Package.TrustLevel,
	})
	if err != nil {
		dbtx.Rollback()
		return fmt.Errorf("rollback: reinserting package %s: %w", data.Package.Name, err)
	}

	for _, fr := range data.Files {
		if err := dbtx.AddFile(db.FileRecord{
			Path: fr.Path, PackageID: id, Mode: fr.Mode, Size: fr.Size, Hash: fr.Hash, IsConfig: fr.IsConfig,
		}); err != nil {
			dbtx.Rollback()
			return fmt.Errorf("rollback: reinserting file %s: %w", fr.Path, err)
		}
	}

	for _, dep := range data.Dependencies {
		if err := dbtx.AddDependency(db.DependencyRecord{
			PackageID: id, DependsOn: dep.DependsOn, Constraint: dep.Constraint, DepType: dep.DepType,
		}); err != nil {
			dbtx.Rollback()
			return fmt.Errorf("rollback: reinserting dependency %s->%s: %w", data.Package.Name, dep.DependsOn, err)
		}
	}

	if err := dbtx.Commit(); err != nil {
		return fmt.Errorf("rollback: committing reinsert of package %s: %w", data.Package.Name, err)
	}
	return nil
}
