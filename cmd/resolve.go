package cmd

import (
	"rookpkg/pkg/db"
	"rookpkg/pkg/helper/errors"
	"rookpkg/pkg/pkgid"
	"rookpkg/pkg/reposync"
	"rookpkg/pkg/resolver"
)

// wrapResolveErr translates the resolver's two failure shapes into the
// error taxonomy's exit-code-bearing kinds: a Conflict is a resolution
// failure (exit 2), an UnknownPackage naming a request with no candidates
// anywhere is a user error (exit 1) — the caller typed a name that does
// not exist, not a solvable-but-conflicting request.
func wrapResolveErr(err error) error {
	var conflict *resolver.Conflict
	if errors.As(err, &conflict) {
		return conflict.AsError()
	}
	var unknown *resolver.UnknownPackage
	if errors.As(err, &unknown) {
		return errors.NotFoundf("package %q is not offered by any enabled repository", unknown.Name)
	}
	return err
}

// sourceEntry records where a resolved candidate's archive should be
// fetched from: the repository that offered it and its index entry.
type sourceEntry struct {
	repoURL  string
	repoName string
	entry    reposync.PackageEntry
}

// candidatePool adapts the repository sync client's per-repository view to
// resolver.CandidateProvider, and remembers each candidate's origin so the
// caller can fetch its archive after resolution picks a winner.
type candidatePool struct {
	byName map[string][]resolver.Candidate
	source map[pkgid.Identity]sourceEntry
}

func newCandidatePool(byRepo []reposync.RepoEntries) *candidatePool {
	pool := &candidatePool{
		byName: make(map[string][]resolver.Candidate),
		source: make(map[pkgid.Identity]sourceEntry),
	}
	for _, re := range byRepo {
		for _, e := range re.Entries {
			id, err := e.Identity()
			if err != nil {
				continue
			}
			deps := make([]pkgid.Dependency, 0, len(e.Dependencies))
			for _, d := range e.Dependencies {
				dep, derr := parseIndexDependency(d)
				if derr != nil {
					continue
				}
				deps = append(deps, dep)
			}
			cand := resolver.Candidate{Identity: id, Dependencies: deps, RepoPriority: re.Repo.Priority}
			pool.byName[e.Name] = append(pool.byName[e.Name], cand)
			pool.source[id] = sourceEntry{repoURL: re.Repo.URL, repoName: re.Repo.Name, entry: e}
		}
	}
	return pool
}

func (p *candidatePool) CandidatesFor(name string) []resolver.Candidate {
	return p.byName[name]
}

func parseIndexDependency(d reposync.DependencyEntry) (pkgid.Dependency, error) {
	if d.Constraint == "" {
		return pkgid.Dependency{Name: d.Name}, nil
	}
	c, err := pkgid.ParseConstraint(d.Constraint)
	if err != nil {
		return pkgid.Dependency{}, err
	}
	return pkgid.Dependency{Name: d.Name, Constraint: &c}, nil
}

// dbInstalledChecker adapts the package database to resolver.InstalledChecker.
type dbInstalledChecker struct {
	database *db.DB
}

func (c dbInstalledChecker) InstalledVersion(name string) (pkgid.Identity, bool) {
	rec, err := c.database.GetPackage(name)
	if err != nil || rec == nil {
		return pkgid.Identity{}, false
	}
	id, err := rec.Identity()
	if err != nil {
		return pkgid.Identity{}, false
	}
	return id, true
}
