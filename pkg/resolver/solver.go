package resolver

import (
	"sort"

	"rookpkg/pkg/pkgid"
)

// Solver resolves requested package sets against a merged candidate pool
// and the installed-package database.
type Solver struct {
	candidates CandidateProvider
	installed  InstalledChecker
}

// New builds a Solver over the given candidate source and installed-state
// checker.
func New(candidates CandidateProvider, installed InstalledChecker) *Solver {
	return &Solver{candidates: candidates, installed: installed}
}

// Resolve produces an install set for requested, or an error: *Conflict
// when candidates exist but none satisfy every requirement, or
// *UnknownPackage when a name has no candidates anywhere.
func (s *Solver) Resolve(requested []string) (*Result, error) {
	if len(requested) == 0 {
		return &Result{}, nil
	}

	accumulated := make(map[string][]Requirement)
	assignment := make(map[string]Candidate)
	noop := make(map[string]bool)
	var order []string
	seenOrder := make(map[string]bool)

	queue := make([]Requirement, 0, len(requested))
	for _, name := range requested {
		queue = append(queue, Requirement{Consumer: virtualRoot, Dependency: pkgid.Dependency{Name: name}})
	}

	for len(queue) > 0 {
		req := queue[0]
		queue = queue[1:]
		name := req.Dependency.Name

		accumulated[name] = append(accumulated[name], req)

		if inst, ok := s.installed.InstalledVersion(name); ok {
			if allSatisfy(accumulated[name], inst.Version) {
				noop[name] = true
				continue
			}
			return nil, &Conflict{Package: name, Requirements: accumulated[name]}
		}

		pool := s.candidates.CandidatesFor(name)
		if len(pool) == 0 {
			return nil, &UnknownPackage{Name: name, Requirements: accumulated[name]}
		}

		matching := filterCandidates(pool, accumulated[name])
		if len(matching) == 0 {
			return nil, &Conflict{Package: name, Requirements: accumulated[name]}
		}
		sortCandidatesDescending(matching)
		best := matching[0]

		if existing, ok := assignment[name]; ok && existing.Identity.Compare(best.Identity) == 0 {
			continue
		}
		assignment[name] = best
		delete(noop, name)

		if !seenOrder[name] {
			seenOrder[name] = true
			order = append(order, name)
		}

		for _, dep := range best.Dependencies {
			queue = append(queue, Requirement{Consumer: name, Dependency: dep})
		}
	}

	result := &Result{}
	for _, name := range order {
		if noop[name] {
			continue
		}
		result.Install = append(result.Install, assignment[name])
	}
	for name := range noop {
		result.NoOp = append(result.NoOp, name)
	}
	sort.Strings(result.NoOp)

	return result, nil
}

// allSatisfy reports whether v satisfies every requirement's dependency.
func allSatisfy(reqs []Requirement, v pkgid.Version) bool {
	for _, r := range reqs {
		if !r.Dependency.Satisfies(v) {
			return false
		}
	}
	return true
}

// filterCandidates returns the subset of pool whose identity version
// satisfies every accumulated requirement on the package.
func filterCandidates(pool []Candidate, reqs []Requirement) []Candidate {
	var out []Candidate
	for _, c := range pool {
		if allSatisfy(reqs, c.Identity.Version) {
			out = append(out, c)
		}
	}
	return out
}

// sortCandidatesDescending orders candidates highest version first; ties
// broken by higher release, then by higher-priority (lower-numbered)
// repository.
func sortCandidatesDescending(cands []Candidate) {
	sort.Slice(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		if c := a.Identity.Version.Compare(b.Identity.Version); c != 0 {
			return c > 0
		}
		if a.Identity.Release != b.Identity.Release {
			return a.Identity.Release > b.Identity.Release
		}
		return a.RepoPriority < b.RepoPriority
	})
}
