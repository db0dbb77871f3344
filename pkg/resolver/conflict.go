package resolver

import (
	"fmt"
	"strings"

	"rookpkg/pkg/helper/errors"
)

// Conflict explains why no candidate version of Package could satisfy
// every requirement placed on it. It names each contributing requirement
// rather than just declaring failure, so the explanation is actionable.
type Conflict struct {
	Package      string
	Requirements []Requirement
}

func (c *Conflict) Error() string {
	return fmt.Sprintf("no version of %s satisfies: %s", c.Package, c.describe())
}

func (c *Conflict) describe() string {
	parts := make([]string, 0, len(c.Requirements))
	for _, r := range c.Requirements {
		consumer := r.Consumer
		if consumer == virtualRoot {
			consumer = "(requested)"
		}
		parts = append(parts, fmt.Sprintf("%s requires %s", consumer, r.Dependency.String()))
	}
	return strings.Join(parts, "; ")
}

// AsError wraps the conflict in the taxonomy's DependencyUnsatisfiable kind
// with this conflict's explanation as the detail.
func (c *Conflict) AsError() error {
	return errors.NewDependencyUnsatisfiable(c.describe())
}

// UnknownPackage is returned when a requested or depended-on name has no
// candidates in any enabled repository at all (distinct from a Conflict,
// which means candidates exist but none satisfy every requirement).
type UnknownPackage struct {
	Name         string
	Requirements []Requirement
}

func (u *UnknownPackage) Error() string {
	return fmt.Sprintf("unknown package %q", u.Name)
}
