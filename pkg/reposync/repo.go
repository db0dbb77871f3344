// Package reposync fetches repository metadata and package indices,
// verifies the index signature against the trust store, and maintains a
// local cache, the same way a registry client fetches and caches remote
// manifests, adapted from an OCI registry protocol to a plain
// repo.toml/packages.json protocol.
package reposync

import (
	"time"

	"rookpkg/pkg/pkgid"
)

// Repository is one configured source: a base URL plus sync controls.
type Repository struct {
	Name     string `mapstructure:"name" toml:"name"`
	URL      string `mapstructure:"url" toml:"url"`
	Enabled  bool   `mapstructure:"enabled" toml:"enabled"`
	Priority int    `mapstructure:"priority" toml:"priority"`
}

// Descriptor is the parsed form of a repository's repo.toml.
type Descriptor struct {
	Name               string   `toml:"name"`
	Description        string   `toml:"description"`
	FormatVersion      string   `toml:"format_version"`
	SigningFingerprint string   `toml:"signing_fingerprint"`
	Mirrors            []string `toml:"mirrors,omitempty"`
}

// PackageEntry mirrors one archive's metadata as published in the index,
// plus the download path and content hash needed to fetch and verify it.
type PackageEntry struct {
	Name          string            `json:"name"`
	Version       string            `json:"version"`
	Release       int               `json:"release"`
	InstalledSize int64             `json:"installed_size"`
	Dependencies  []DependencyEntry `json:"dependencies"`
	Filename      string            `json:"filename"`
	Hash          string            `json:"hash"`
	Size          int64             `json:"size"`
}

// DependencyEntry is a (name, constraint) pair as published in the index.
type DependencyEntry struct {
	Name       string `json:"name"`
	Constraint string `json:"constraint,omitempty"`
}

// Identity returns the parsed package identity for this entry.
func (e PackageEntry) Identity() (pkgid.Identity, error) {
	v, err := pkgid.ParseVersion(e.Version)
	if err != nil {
		return pkgid.Identity{}, err
	}
	return pkgid.Identity{Name: e.Name, Version: v, Release: e.Release}, nil
}

// Index is the parsed form of packages.json.
type Index struct {
	Version    string         `json:"version"`
	Generated  time.Time      `json:"generated"`
	Repository string         `json:"repository"`
	Count      int            `json:"count"`
	Packages   []PackageEntry `json:"packages"`
}
