package resolver

import (
	"testing"

	"rookpkg/pkg/pkgid"
)

type fakeProvider map[string][]Candidate

func (f fakeProvider) CandidatesFor(name string) []Candidate { return f[name] }

type fakeInstalled map[string]pkgid.Identity

func (f fakeInstalled) InstalledVersion(name string) (pkgid.Identity, bool) {
	id, ok := f[name]
	return id, ok
}

func mustVersion(t *testing.T, s string) pkgid.Version {
	t.Helper()
	v, err := pkgid.ParseVersion(s)
	if err != nil {
		t.Fatalf("ParseVersion(%q): %v", s, err)
	}
	return v
}

func dep(t *testing.T, name, constraint string) pkgid.Dependency {
	t.Helper()
	if constraint == "" {
		return pkgid.Dependency{Name: name}
	}
	c, err := pkgid.ParseConstraint(constraint)
	if err != nil {
		t.Fatalf("ParseConstraint(%q): %v", constraint, err)
	}
	return pkgid.Dependency{Name: name, Constraint: &c}
}

func TestResolveSimpleChain(t *testing.T) {
	provider := fakeProvider{
		"curl": {
			{Identity: pkgid.Identity{Name: "curl", Version: mustVersion(t, "8.4.0"), Release: 1},
				Dependencies: []pkgid.Dependency{dep(t, "openssl", ">=3.0")}},
		},
		"openssl": {
			{Identity: pkgid.Identity{Name: "openssl", Version: mustVersion(t, "3.1.0"), Release: 1}},
			{Identity: pkgid.Identity{Name: "openssl", Version: mustVersion(t, "1.1.1"), Release: 1}},
		},
	}
	s := New(provider, fakeInstalled{})
	result, err := s.Resolve([]string{"curl"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(result.Install) != 2 {
		t.Fatalf("Install = %+v, want 2 entries", result.Install)
	}
	if result.Install[0].Identity.Name != "curl" {
		t.Errorf("expected curl first (requested), got %s", result.Install[0].Identity.Name)
	}
	opensslPick := result.Install[1]
	if opensslPick.Identity.Name != "openssl" || opensslPick.Identity.Version.String() != "3.1.0" {
		t.Errorf("expected openssl 3.1.0 chosen (highest satisfying >=3.0), got %+v", opensslPick.Identity)
	}
}

func TestResolveAlreadyInstalledIsNoOp(t *testing.T) {
	provider := fakeProvider{
		"curl": {
			{Identity: pkgid.Identity{Name: "curl", Version: mustVersion(t, "8.4.0"), Release: 1}},
		},
	}
	installed := fakeInstalled{
		"curl": pkgid.Identity{Name: "curl", Version: mustVersion(t, "8.4.0"), Release: 1},
	}
	s := New(provider, installed)
	result, err := s.Resolve([]string{"curl"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(result.Install) != 0 {
		t.Errorf("expected no install entries for already-satisfied request, got %+v", result.Install)
	}
	if len(result.NoOp) != 1 || result.NoOp[0] != "curl" {
		t.Errorf("NoOp = %v, want [curl]", result.NoOp)
	}
}

func TestResolveReportsConflictWithExplanation(t *testing.T) {
	provider := fakeProvider{
		"app": {
			{Identity: pkgid.Identity{Name: "app", Version: mustVersion(t, "1.0"), Release: 1},
				Dependencies: []pkgid.Dependency{dep(t, "lib", "<2.0"), dep(t, "other", "")}},
		},
		"other": {
			{Identity: pkgid.Identity{Name: "other", Version: mustVersion(t, "1.0"), Release: 1},
				Dependencies: []pkgid.Dependency{dep(t, "lib", ">=2.0")}},
		},
		"lib": {
			{Identity: pkgid.Identity{Name: "lib", Version: mustVersion(t, "2.5"), Release: 1}},
			{Identity: pkgid.Identity{Name: "lib", Version: mustVersion(t, "1.9"), Release: 1}},
		},
	}
	s := New(provider, fakeInstalled{})
	_, err := s.Resolve([]string{"app"})
	if err == nil {
		t.Fatalf("expected a conflict error for lib's contradictory constraints")
	}
	conflict, ok := err.(*Conflict)
	if !ok {
		t.Fatalf("expected *Conflict, got %T: %v", err, err)
	}
	if conflict.Package != "lib" {
		t.Errorf("Package = %q, want lib", conflict.Package)
	}
	if len(conflict.Requirements) != 2 {
		t.Errorf("expected both contributing requirements recorded, got %+v", conflict.Requirements)
	}
}

func TestResolveUnknownPackage(t *testing.T) {
	s := New(fakeProvider{}, fakeInstalled{})
	_, err := s.Resolve([]string{"ghost"})
	if _, ok := err.(*UnknownPackage); !ok {
		t.Fatalf("expected *UnknownPackage, got %T: %v", err, err)
	}
}

func TestResolveHandlesDependencyCycle(t *testing.T) {
	provider := fakeProvider{
		"a": {
			{Identity: pkgid.Identity{Name: "a", Version: mustVersion(t, "1.0"), Release: 1},
				Dependencies: []pkgid.Dependency{dep(t, "b", "")}},
		},
		"b": {
			{Identity: pkgid.Identity{Name: "b", Version: mustVersion(t, "1.0"), Release: 1},
				Dependencies: []pkgid.Dependency{dep(t, "a", "")}},
		},
	}
	s := New(provider, fakeInstalled{})
	result, err := s.Resolve([]string{"a"})
	if err != nil {
		t.Fatalf("Resolve on a cycle should converge, got error: %v", err)
	}
	if len(result.Install) != 2 {
		t.Fatalf("Install = %+v, want both a and b", result.Install)
	}
}

func TestVersionTieBreakPrefersHigherRelease(t *testing.T) {
	provider := fakeProvider{
		"pkg": {
			{Identity: pkgid.Identity{Name: "pkg", Version: mustVersion(t, "1.0"), Release: 1}, RepoPriority: 0},
			{Identity: pkgid.Identity{Name: "pkg", Version: mustVersion(t, "1.0"), Release: 2}, RepoPriority: 0},
		},
	}
	s := New(provider, fakeInstalled{})
	result, err := s.Resolve([]string{"pkg"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got := result.Install[0].Identity.Release; got != 2 {
		t.Errorf("Release = %d, want 2 (higher release wins tie)", got)
	}
}
