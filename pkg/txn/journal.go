package txn

import (
	"encoding/json"
	"os"
	"path/filepath"

	"rookpkg/pkg/db"
	"rookpkg/pkg/helper/errors"
)

// EntryType tags one reversible mutation the journal records.
type EntryType string

const (
	EntryFileCreated      EntryType = "file_created"
	EntryFileReplaced     EntryType = "file_replaced"
	EntryFileRemoved      EntryType = "file_removed"
	EntryDirCreated       EntryType = "dir_created"
	EntryDbPackageAdded   EntryType = "db_package_added"
	EntryDbPackageRemoved EntryType = "db_package_removed"
)

// RemovedPackageData is the serialized form of an installed package's full
// state at the moment it was removed from the database: the package row
// plus its owned files and declared dependencies, enough to reinsert it
// verbatim on rollback.
type RemovedPackageData struct {
	Package      db.PackageRecord      `json:"package"`
	Files        []db.FileRecord       `json:"files"`
	Dependencies []db.DependencyRecord `json:"dependencies"`
}

// Entry is a single append-only journal record. Only the fields its Type
// uses are populated: Path and Backup for file entries, PackageName and
// Removed for database entries.
type Entry struct {
	Type EntryType `json:"type"`

	Path   string `json:"path,omitempty"`
	Backup string `json:"backup,omitempty"`

	PackageName string              `json:"package_name,omitempty"`
	Removed     *RemovedPackageData `json:"removed,omitempty"`
}

// Journal is the ordered, append-only log of reversible mutations one
// transaction has performed. Every Append rewrites the full log to a temp
// file, fsyncs it, and renames it over the canonical path, so a crash at
// any point leaves the on-disk journal a valid prefix of what was in
// memory — never a truncated, unparseable file.
type Journal struct {
	path    string
	entries []Entry
}

// OpenJournal loads an existing journal file at path, or starts an empty
// one if it does not yet exist.
func OpenJournal(path string) (*Journal, error) {
	j := &Journal{path: path}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return j, nil
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrFilesystemIO, "reading journal %s: %v", path, err)
	}
	if len(data) == 0 {
		return j, nil
	}
	if err := json.Unmarshal(data, &j.entries); err != nil {
		return nil, errors.Wrap(errors.ErrFilesystemIO, "parsing journal %s: %v", path, err)
	}
	return j, nil
}

// Entries returns the journal's entries in append order. The returned
// slice must not be mutated.
func (j *Journal) Entries() []Entry { return j.entries }

// Append records a new entry and durably persists the full journal before
// returning.
func (j *Journal) Append(e Entry) error {
	j.entries = append(j.entries, e)
	return j.flush()
}

func (j *Journal) flush() error {
	data, err := json.MarshalIndent(j.entries, "", "  ")
	if err != nil {
		return errors.Wrap(errors.ErrFilesystemIO, "serializing journal: %v", err)
	}

	dir := filepath.Dir(j.path)
	tmp := j.path + ".tmp"

	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return errors.Wrap(errors.ErrFilesystemIO, "opening journal temp file: %v", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return errors.Wrap(errors.ErrFilesystemIO, "writing journal temp file: %v", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return errors.Wrap(errors.ErrFilesystemIO, "fsyncing journal temp file: %v", err)
	}
	if err := f.Close(); err != nil {
		return errors.Wrap(errors.ErrFilesystemIO, "closing journal temp file: %v", err)
	}
	if err := os.Rename(tmp, j.path); err != nil {
		return errors.Wrap(errors.ErrFilesystemIO, "renaming journal into place: %v", err)
	}
	// Best effort: fsync the containing directory so the rename itself is
	// durable, not just the file contents.
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		d.Close()
	}
	return nil
}
