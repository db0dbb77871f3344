package pkgid

import (
	"regexp"
	"strings"

	"rookpkg/pkg/helper/errors"
)

// Op is a relational constraint operator.
type Op string

const (
	OpEQ Op = "="
	OpNE Op = "!="
	OpLT Op = "<"
	OpLE Op = "<="
	OpGT Op = ">"
	OpGE Op = ">="
)

// Constraint is a single relational version constraint, or the absence of
// one (a bare name means "any version", represented by a nil *Constraint in
// Dependency).
type Constraint struct {
	Op      Op
	Version Version
}

var constraintRe = regexp.MustCompile(`^(!=|<=|>=|=|<|>)\s*(.+)$`)

// ParseConstraint parses a single constraint string such as ">=2.0" or
// "!=1.5-rc1". An empty string is invalid; callers representing "any
// version" should use a nil *Constraint instead of calling this.
func ParseConstraint(s string) (Constraint, error) {
	s = strings.TrimSpace(s)
	m := constraintRe.FindStringSubmatch(s)
	if m == nil {
		return Constraint{}, errors.InvalidInputf("malformed constraint %q", s)
	}
	ver, err := ParseVersion(strings.TrimSpace(m[2]))
	if err != nil {
		return Constraint{}, errors.Wrap(err, "constraint %q", s)
	}
	return Constraint{Op: Op(m[1]), Version: ver}, nil
}

// Satisfies reports whether v satisfies the constraint.
func (c Constraint) Satisfies(v Version) bool {
	cmp := v.Compare(c.Version)
	switch c.Op {
	case OpEQ:
		return cmp == 0
	case OpNE:
		return cmp != 0
	case OpLT:
		return cmp < 0
	case OpLE:
		return cmp <= 0
	case OpGT:
		return cmp > 0
	case OpGE:
		return cmp >= 0
	default:
		return false
	}
}

func (c Constraint) String() string {
	return string(c.Op) + c.Version.String()
}

// Dependency names a required package and an optional constraint. A nil
// Constraint means "any version".
type Dependency struct {
	Name       string
	Constraint *Constraint
}

// Satisfies reports whether the given version satisfies this dependency's
// constraint (always true when the dependency carries no constraint).
func (d Dependency) Satisfies(v Version) bool {
	if d.Constraint == nil {
		return true
	}
	return d.Constraint.Satisfies(v)
}

func (d Dependency) String() string {
	if d.Constraint == nil {
		return d.Name
	}
	return d.Name + " " + d.Constraint.String()
}

// ParseDependency parses "name", "name=1.0", "name>=1.0", etc. Only a single
// relational constraint is supported, per the declared-dependency grammar.
func ParseDependency(s string) (Dependency, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Dependency{}, errors.InvalidInputf("empty dependency string")
	}

	idx := strings.IndexAny(s, "=!<>")
	if idx < 0 {
		if !ValidName(s) {
			return Dependency{}, errors.InvalidInputf("invalid package name %q", s)
		}
		return Dependency{Name: s}, nil
	}

	name := strings.TrimSpace(s[:idx])
	if !ValidName(name) {
		return Dependency{}, errors.InvalidInputf("invalid package name %q", name)
	}
	c, err := ParseConstraint(s[idx:])
	if err != nil {
		return Dependency{}, err
	}
	return Dependency{Name: name, Constraint: &c}, nil
}

// IntersectAll stands in for intersecting the constraints on one package.
// Because a Constraint here is a single relation rather than a range, intersection is
// represented as the conjunction of all constraints collected for a package;
// IntersectAll reports whether a candidate version satisfies every one.
func IntersectAll(constraints []*Constraint, v Version) bool {
	for _, c := range constraints {
		if c == nil {
			continue
		}
		if !c.Satisfies(v) {
			return false
		}
	}
	return true
}
