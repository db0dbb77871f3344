// Package resolver turns a set of requested package names into a
// consistent install set, or a minimal explanation of why no such set
// exists. It walks candidate versions in descending order per package and
// accumulates the constraints every dependent places on a name, the same
// incompatibility-driven spirit as PubGrub, without PubGrub's full
// decision-level backjumping (see DESIGN.md for why that trade-off was
// made).
package resolver

import "rookpkg/pkg/pkgid"

// virtualRoot is the synthetic package that depends on every requested
// name, so "solve for this set" reduces to "solve for this root".
const virtualRoot = "@root"

// Candidate is one version of a package as offered by the merged
// repository view: its identity, its declared dependencies, and the
// priority of the repository it came from (lower value wins ties).
type Candidate struct {
	Identity     pkgid.Identity
	Dependencies []pkgid.Dependency
	RepoPriority int
}

// CandidateProvider supplies every known version of a package by name, in
// no particular order; the solver sorts them itself.
type CandidateProvider interface {
	CandidatesFor(name string) []Candidate
}

// InstalledChecker answers whether a package is already installed and at
// what version, so the resolver can short-circuit already-satisfied
// requests instead of re-resolving them.
type InstalledChecker interface {
	InstalledVersion(name string) (pkgid.Identity, bool)
}

// Requirement is one dependency edge: consumer depends on Dependency.
// Consumer is virtualRoot for a directly requested package.
type Requirement struct {
	Consumer   string
	Dependency pkgid.Dependency
}

// Result is a successful resolution: the ordered set of packages to
// install (requested names first, then transitive dependencies, in
// discovery order) and the subset of requests that were already
// satisfied and therefore excluded.
type Result struct {
	Install []Candidate
	NoOp    []string
}
