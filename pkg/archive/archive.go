// Package archive reads the Package Archive container: an info section
// (structured metadata), a files section (the manifest), an optional
// scripts section (six lifecycle hooks), and a data/ payload rooted at /.
// This package reads a gzip-compressed tar stream laid out with those
// four well-known entries, the same container shape an OCI layer blob
// takes, generalized from a single layer to a four-section
// manifest+payload archive.
package archive

import (
	"archive/tar"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"path"

	"rookpkg/pkg/helper/errors"
	"rookpkg/pkg/pkgid"
)

// Hook names the six lifecycle hooks an archive may carry.
type Hook string

const (
	HookPreInstall  Hook = "pre_install"
	HookPostInstall Hook = "post_install"
	HookPreRemove   Hook = "pre_remove"
	HookPostRemove  Hook = "post_remove"
	HookPreUpgrade  Hook = "pre_upgrade"
	HookPostUpgrade Hook = "post_upgrade"
)

// FileEntry is one manifest entry: path, mode, size, content hash, and
// whether the file is a config file the install/upgrade path preserves.
type FileEntry struct {
	Path     string `json:"path"`
	Mode     uint32 `json:"mode"`
	Size     int64  `json:"size"`
	Hash     string `json:"hash"`
	IsConfig bool   `json:"is_config"`
}

// Dependency mirrors a declared (name, constraint) pair in the info section.
type Dependency struct {
	Name       string `json:"name"`
	Constraint string `json:"constraint,omitempty"`
}

// Info is the structured metadata section.
type Info struct {
	Name          string       `json:"name"`
	Version       string       `json:"version"`
	Release       int          `json:"release"`
	InstalledSize int64        `json:"installed_size"`
	Dependencies  []Dependency `json:"dependencies"`
}

// Identity returns the parsed package identity named by the info section.
func (i Info) Identity() (pkgid.Identity, error) {
	v, err := pkgid.ParseVersion(i.Version)
	if err != nil {
		return pkgid.Identity{}, err
	}
	return pkgid.Identity{Name: i.Name, Version: v, Release: i.Release}, nil
}

// ParsedDependencies converts the raw Dependency slice into pkgid.Dependency
// values, parsing each constraint string.
func (i Info) ParsedDependencies() ([]pkgid.Dependency, error) {
	out := make([]pkgid.Dependency, 0, len(i.Dependencies))
	for _, d := range i.Dependencies {
		if d.Constraint == "" {
			out = append(out, pkgid.Dependency{Name: d.Name})
			continue
		}
		c, err := pkgid.ParseConstraint(d.Constraint)
		if err != nil {
			return nil, errors.Wrap(err, "dependency %s", d.Name)
		}
		out = append(out, pkgid.Dependency{Name: d.Name, Constraint: &c})
	}
	return out, nil
}

// Archive is the parsed, in-memory form of one Package Archive: info,
// manifest, scripts, and the content hash computed over the raw archive
// bytes (what signatures cover).
type Archive struct {
	ContentHash string
	Info        Info
	Files       []FileEntry
	Scripts     map[Hook][]byte
}

// Open reads info, files, and scripts from r and hashes the full stream as
// it goes. The data/ section is consumed here only to complete the hash; a
// caller that also needs the payload re-opens the same bytes with
// ExtractPayload.
func Open(r io.Reader) (*Archive, error) {
	hasher := sha256.New()
	tee := io.TeeReader(r, hasher)

	gz, err := gzip.NewReader(tee)
	if err != nil {
		return nil, errors.Wrap(errors.ErrInvalidArchive, "gzip: %v", err)
	}
	defer gz.Close()

	a := &Archive{Scripts: make(map[Hook][]byte)}
	tr := tar.NewReader(gz)

	var sawInfo, sawFiles bool

	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(errors.ErrInvalidArchive, "tar: %v", err)
		}

		switch {
		case hdr.Name == "info":
			data, err := io.ReadAll(tr)
			if err != nil {
				return nil, errors.Wrap(errors.ErrInvalidArchive, "reading info: %v", err)
			}
			if err := json.Unmarshal(data, &a.Info); err != nil {
				return nil, errors.Wrap(errors.ErrInvalidArchive, "parsing info: %v", err)
			}
			sawInfo = true

		case hdr.Name == "files":
			data, err := io.ReadAll(tr)
			if err != nil {
				return nil, errors.Wrap(errors.ErrInvalidArchive, "reading files manifest: %v", err)
			}
			if err := json.Unmarshal(data, &a.Files); err != nil {
				return nil, errors.Wrap(errors.ErrInvalidArchive, "parsing files manifest: %v", err)
			}
			sawFiles = true

		case isScriptEntry(hdr.Name):
			data, err := io.ReadAll(tr)
			if err != nil {
				return nil, errors.Wrap(errors.ErrInvalidArchive, "reading script %s: %v", hdr.Name, err)
			}
			a.Scripts[scriptHook(hdr.Name)] = data

		case isDataEntry(hdr.Name):
			// Payload bytes are consumed here only to complete the hash;
			// the transaction engine re-opens the archive file and extracts
			// via ExtractPayload.
			io.Copy(io.Discard, tr) //nolint:errcheck
		}
	}

	if !sawInfo {
		return nil, errors.Wrap(errors.ErrInvalidArchive, "archive has no info section")
	}
	if !sawFiles {
		// A zero-file archive is valid; an absent manifest entirely is not.
		return nil, errors.Wrap(errors.ErrInvalidArchive, "archive has no files section")
	}

	a.ContentHash = hex.EncodeToString(hasher.Sum(nil))
	return a, nil
}

func isScriptEntry(name string) bool {
	dir, file := path.Split(name)
	if dir != "scripts/" {
		return false
	}
	switch Hook(file) {
	case HookPreInstall, HookPostInstall, HookPreRemove, HookPostRemove, HookPreUpgrade, HookPostUpgrade:
		return true
	default:
		return false
	}
}

func scriptHook(name string) Hook {
	_, file := path.Split(name)
	return Hook(file)
}

func isDataEntry(name string) bool {
	return len(name) >= 5 && name[:5] == "data/"
}

// ExtractPayload walks the data/ section a second time — the caller must
// pass a fresh reader positioned at the start of the archive, since Open
// already consumed the first pass while computing the content hash —
// invoking fn with each data/ entry's path (relative to data/), its mode and
// its content reader. Extraction into the transaction's staging directory is
// the caller's responsibility; this only streams bytes in the archive's tar
// order.
func ExtractPayload(r io.Reader, fn func(relPath string, mode int64, content io.Reader) error) error {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return errors.Wrap(errors.ErrInvalidArchive, "gzip: %v", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.Wrap(errors.ErrInvalidArchive, "tar: %v", err)
		}
		if !isDataEntry(hdr.Name) {
			continue
		}
		rel := hdr.Name[len("data/"):]
		if err := fn(rel, hdr.Mode, tr); err != nil {
			return err
		}
	}
}

// VerifyFileHash hashes content and compares it to the manifest's declared
// hash for path, returning a ChecksumMismatch error on disagreement.
func VerifyFileHash(entry FileEntry, content []byte) error {
	sum := sha256.Sum256(content)
	got := hex.EncodeToString(sum[:])
	if "sha256:"+got != entry.Hash && got != entry.Hash {
		return errors.NewChecksumMismatch(entry.Hash, got)
	}
	return nil
}
