package txn

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"time"

	"rookpkg/pkg/archive"
	"rookpkg/pkg/db"
	"rookpkg/pkg/helper/errors"
)

// installCore is shared by Install and the install half of Upgrade.
// priorHashes, when non-nil, carries the old package's per-path content
// hashes so a config file the user has edited since install is detected
// and preserved rather than silently overwritten.
func (e *Engine) installCore(tx *Transaction, arc *archive.Archive, archivePath, trustLevel string, runHooks bool, priorHashes map[string]string) error {
	name := arc.Info.Name

	if runHooks {
		if err := runHook(e.root, name, archive.HookPreInstall, arc.Scripts[archive.HookPreInstall], e.logger); err != nil {
			return err
		}
	}

	for _, fe := range arc.Files {
		owner, owned, err := e.db.FileOwner(fe.Path)
		if err != nil {
			return err
		}
		if owned && owner != name {
			return errors.NewFileConflict(fe.Path, owner)
		}
	}

	staging := tx.stagingDir(name)
	f, err := os.Open(archivePath)
	if err != nil {
		return errors.Wrap(errors.ErrFilesystemIO, "reopening archive for extraction: %v", err)
	}
	defer f.Close()

	err = archive.ExtractPayload(f, func(relPath string, mode int64, content io.Reader) error {
		dest := filepath.Join(staging, relPath)
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return errors.Wrap(errors.ErrFilesystemIO, "staging directory for %s: %v", relPath, err)
		}
		out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(mode))
		if err != nil {
			return errors.Wrap(errors.ErrFilesystemIO, "staging file %s: %v", relPath, err)
		}
		defer out.Close()
		_, err = io.Copy(out, content)
		return err
	})
	if err != nil {
		return err
	}

	for _, fe := range arc.Files {
		if err := e.placeFile(tx, name, fe, staging, priorHashes); err != nil {
			return err
		}
	}

	if err := e.insertRecords(tx, arc, archivePath, trustLevel); err != nil {
		return err
	}

	if err := persistScripts(e.root, name, arc.Scripts); err != nil {
		return err
	}

	if runHooks {
		if err := runHook(e.root, name, archive.HookPostInstall, arc.Scripts[archive.HookPostInstall], e.logger); err != nil {
			return err
		}
	}

	return nil
}

// placeFile executes one manifest entry's placement step: backup an
// existing destination (unless it is a config file the user has modified,
// in which case the new content is written aside as .new instead),
// journal each ancestor directory created, then copy the staged file into
// place.
func (e *Engine) placeFile(tx *Transaction, pkgName string, fe archive.FileEntry, staging string, priorHashes map[string]string) error {
	dest := filepath.Join(e.root, fe.Path)
	stagedPath := filepath.Join(staging, fe.Path)

	if fe.IsConfig {
		if existing, err := os.ReadFile(dest); err == nil {
			if userModifiedConfig(fe.Path, existing, priorHashes) {
				newPath := dest + ".new"
				if err := copyFilePreserveMode(stagedPath, newPath); err != nil {
					return err
				}
				return tx.journal.Append(Entry{Type: EntryFileCreated, Path: newPath})
			}
		} else if !os.IsNotExist(err) {
			return errors.Wrap(errors.ErrFilesystemIO, "reading existing config %s: %v", dest, err)
		}
	}

	if _, err := os.Lstat(dest); err == nil {
		backup := filepath.Join(tx.backupDir(pkgName), fe.Path)
		if err := copyFilePreserveMode(dest, backup); err != nil {
			return err
		}
		if err := tx.journal.Append(Entry{Type: EntryFileReplaced, Path: dest, Backup: backup}); err != nil {
			return err
		}
	} else if !os.IsNotExist(err) {
		return errors.Wrap(errors.ErrFilesystemIO, "stating destination %s: %v", dest, err)
	}

	if err := e.ensureAncestors(tx, dest); err != nil {
		return err
	}

	if err := copyFilePreserveMode(stagedPath, dest); err != nil {
		return err
	}
	return tx.journal.Append(Entry{Type: EntryFileCreated, Path: dest})
}

// userModifiedConfig reports whether a config file's on-disk content
// differs from what the package previously shipped, the signal that it
// has been user-edited and must not be silently clobbered. With no prior
// hash on file (a fresh install, not an upgrade) any existing file at the
// destination is treated as foreign and preserved the same way.
func userModifiedConfig(path string, existing []byte, priorHashes map[string]string) bool {
	sum := sha256.Sum256(existing)
	got := hex.EncodeToString(sum[:])
	prior, ok := priorHashes[path]
	if !ok {
		return true
	}
	return "sha256:"+got != prior && got != prior
}

// ensureAncestors creates any missing parent directories of dest (within
// the transaction root), journaling each one so rollback can remove them
// again.
func (e *Engine) ensureAncestors(tx *Transaction, dest string) error {
	dir := filepath.Dir(dest)
	var missing []string
	for d := dir; d != e.root && d != "." && d != "/"; d = filepath.Dir(d) {
		if _, err := os.Stat(d); err == nil {
			break
		}
		missing = append(missing, d)
	}
	for i := len(missing) - 1; i >= 0; i-- {
		if err := os.Mkdir(missing[i], 0o755); err != nil && !os.IsExist(err) {
			return errors.Wrap(errors.ErrFilesystemIO, "creating directory %s: %v", missing[i], err)
		}
		if err := tx.journal.Append(Entry{Type: EntryDirCreated, Path: missing[i]}); err != nil {
			return err
		}
	}
	return nil
}

// insertRecords inserts the package row, its file rows, and its
// dependency rows in a single atomic database transaction, journaling the
// package addition so rollback can remove it again.
func (e *Engine) insertRecords(tx *Transaction, arc *archive.Archive, archivePath, trustLevel string) error {
	identity, err := arc.Info.Identity()
	if err != nil {
		return err
	}
	deps, err := arc.Info.ParsedDependencies()
	if err != nil {
		return err
	}

	dbtx, err := e.db.Begin()
	if err != nil {
		return err
	}

	id, err := dbtx.AddPackage(db.PackageRecord{
		Name:        identity.Name,
		Version:     identity.Version.String(),
		Release:     identity.Release,
		InstallDate: time.Now(),
		Size:        arc.Info.InstalledSize,
		ArchiveHash: arc.ContentHash,
		TrustLevel:  trustLevel,
	})
	if err != nil {
		dbtx.Rollback()
		return err
	}

	for _, fe := range arc.Files {
		if err := dbtx.AddFile(db.FileRecord{
			Path: fe.Path, PackageID: id, Mode: fe.Mode, Size: fe.Size, Hash: fe.Hash, IsConfig: fe.IsConfig,
		}); err != nil {
			dbtx.Rollback()
			return err
		}
	}

	for _, dep := range deps {
		constraint := ""
		if dep.Constraint != nil {
			constraint = dep.Constraint.String()
		}
		if err := dbtx.AddDependency(db.DependencyRecord{
			PackageID: id, DependsOn: dep.Name, Constraint: constraint, DepType: "runtime",
		}); err != nil {
			dbtx.Rollback()
			return err
		}
	}

	if err := dbtx.Commit(); err != nil {
		return err
	}

	return tx.journal.Append(Entry{Type: EntryDbPackageAdded, PackageName: identity.Name})
}

func copyFilePreserveMode(src, dest string) error {
	info, err := os.Stat(src)
	if err != nil {
		return errors.Wrap(errors.ErrFilesystemIO, "stating %s: %v", src, err)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return errors.Wrap(errors.ErrFilesystemIO, "creating directory for %s: %v", dest, err)
	}

	in, err := os.Open(src)
	if err != nil {
		return errors.Wrap(errors.ErrFilesystemIO, "opening %s: %v", src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode())
	if err != nil {
		return errors.Wrap(errors.ErrFilesystemIO, "creating %s: %v", dest, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return errors.Wrap(errors.ErrFilesystemIO, "copying %s to %s: %v", src, dest, err)
	}
	return nil
}
