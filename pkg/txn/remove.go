package txn

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"rookpkg/pkg/archive"
	"rookpkg/pkg/db"
	"rookpkg/pkg/helper/errors"
)

// removeOperation runs the plain Remove execution algorithm.
func (e *Engine) removeOperation(tx *Transaction, name string, runHooks bool) error {
	_, err := e.removeCore(tx, name, runHooks)
	return err
}

// removeCore is shared by Remove and the remove half of Upgrade. It
// returns the removed package's prior per-path content hashes (for
// config-file preservation in a following install) even on success.
func (e *Engine) removeCore(tx *Transaction, name string, runHooks bool) (map[string]string, error) {
	record, err := e.db.GetPackage(name)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, errors.Wrap(errors.ErrPackageNotFound, "%s", name)
	}
	files, err := e.db.GetFiles(name)
	if err != nil {
		return nil, err
	}
	deps, err := e.db.GetDependencies(name)
	if err != nil {
		return nil, err
	}

	if runHooks {
		script, err := loadPersistedHook(e.root, name, archive.HookPreRemove)
		if err != nil {
			return nil, err
		}
		if err := runHook(e.root, name, archive.HookPreRemove, script, e.logger); err != nil {
			return nil, err
		}
	}

	sorted := append([]db.FileRecord(nil), files...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Path > sorted[j].Path })

	priorHashes := make(map[string]string, len(files))
	var removedDirs []string
	for _, fr := range sorted {
		priorHashes[fr.Path] = fr.Hash
		if fr.IsConfig {
			// Round-trip law: config files are intentionally preserved on
			// disk even though the package no longer owns them in the
			// database.
			continue
		}
		dest := filepath.Join(e.root, fr.Path)
		if _, err := os.Lstat(dest); err == nil {
			backup := filepath.Join(tx.backupDir(name), fr.Path)
			if err := copyFilePreserveMode(dest, backup); err != nil {
				return nil, err
			}
			if err := tx.journal.Append(Entry{Type: EntryFileRemoved, Path: dest, Backup: backup}); err != nil {
				return nil, err
			}
			if err := os.Remove(dest); err != nil && !os.IsNotExist(err) {
				return nil, errors.Wrap(errors.ErrFilesystemIO, "removing %s: %v", dest, err)
			}
		}
		removedDirs = append(removedDirs, filepath.Dir(dest))
	}

	e.pruneEmptyDirs(removedDirs)

	dbtx, err := e.db.Begin()
	if err != nil {
		return nil, err
	}
	if _, err := dbtx.RemovePackage(name); err != nil {
		dbtx.Rollback()
		return nil, err
	}
	if err := dbtx.Commit(); err != nil {
		return nil, err
	}

	if err := tx.journal.Append(Entry{
		Type:        EntryDbPackageRemoved,
		PackageName: name,
		Removed:     &RemovedPackageData{Package: *record, Files: files, Dependencies: deps},
	}); err != nil {
		return nil, err
	}

	if runHooks {
		script, err := loadPersistedHook(e.root, name, archive.HookPostRemove)
		if err != nil {
			return nil, err
		}
		if err := runHook(e.root, name, archive.HookPostRemove, script, e.logger); err != nil {
			return nil, err
		}
	}

	if err := removePersistedScripts(e.root, name); err != nil {
		return nil, err
	}

	return priorHashes, nil
}

// pruneEmptyDirs attempts to remove each newly-empty parent directory
// exactly once, skipping the hard-coded protected set. A directory that
// is not empty, or that fails to remove for any other reason, is silently
// left in place.
func (e *Engine) pruneEmptyDirs(dirs []string) {
	seen := make(map[string]bool)
	// Longest paths first so a child directory empties before its parent
	// is considered.
	sort.Slice(dirs, func(i, j int) bool { return len(dirs[i]) > len(dirs[j]) })
	for _, dir := range dirs {
		for d := dir; ; d = filepath.Dir(d) {
			if seen[d] {
				break
			}
			seen[d] = true
			rel := "/" + strings.TrimPrefix(strings.TrimPrefix(d, e.root), "/")
			if protectedDirs[rel] {
				break
			}
			if err := os.Remove(d); err != nil {
				break // not empty, or some other failure: tolerated, stop ascending
			}
			if d == e.root || d == "/" || d == "." {
				break
			}
		}
	}
}
