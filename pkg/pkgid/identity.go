// Package pkgid defines the package identity triple and version ordering
// shared by the resolver, the database, and the transaction engine.
package pkgid

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"rookpkg/pkg/helper/errors"
)

// nameRe matches the ASCII package-name grammar: [a-z0-9][a-z0-9_+.-]*
var nameRe = regexp.MustCompile(`^[a-z0-9][a-z0-9_+.-]*$`)

// ValidName reports whether name conforms to the package-name grammar.
func ValidName(name string) bool {
	return nameRe.MatchString(name)
}

// Version is a dotted numeric string with an optional trailing non-numeric
// label, e.g. "1.2.3" or "1.2.3rc1". It does not carry the release number;
// Identity pairs a Version with a Release.
type Version struct {
	Numeric []int
	Label   string
}

// ParseVersion parses a dotted numeric version with an optional trailing
// label. The label is the longest non-numeric suffix after the last dot
// group; e.g. "1.2.3-beta" has Numeric [1,2,3] and Label "-beta".
func ParseVersion(s string) (Version, error) {
	if s == "" {
		return Version{}, errors.InvalidInputf("empty version string")
	}

	parts := strings.Split(s, ".")
	numeric := make([]int, 0, len(parts))
	label := ""

	for i, p := range parts {
		digits := leadingDigits(p)
		if digits == "" {
			// Non-numeric from the start: everything from here on is label.
			label = strings.Join(parts[i:], ".")
			break
		}
		n, err := strconv.Atoi(digits)
		if err != nil {
			return Version{}, errors.InvalidInputf("invalid version component %q in %q", p, s)
		}
		numeric = append(numeric, n)
		if rest := p[len(digits):]; rest != "" {
			remaining := append([]string{rest}, parts[i+1:]...)
			label = strings.Join(remaining, ".")
			break
		}
	}

	if len(numeric) == 0 {
		return Version{}, errors.InvalidInputf("version %q has no numeric component", s)
	}

	return Version{Numeric: numeric, Label: label}, nil
}

func leadingDigits(s string) string {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	return s[:i]
}

// Compare orders two versions: numeric components compare positionally (a
// missing component is zero), then a purely numeric version sorts before one
// with a non-numeric label suffix of the same numeric prefix, then labels
// compare lexically.
func (v Version) Compare(o Version) int {
	n := len(v.Numeric)
	if len(o.Numeric) > n {
		n = len(o.Numeric)
	}
	for i := 0; i < n; i++ {
		a, b := componentAt(v.Numeric, i), componentAt(o.Numeric, i)
		if a != b {
			if a < b {
				return -1
			}
			return 1
		}
	}
	switch {
	case v.Label == "" && o.Label == "":
		return 0
	case v.Label == "" && o.Label != "":
		return -1
	case v.Label != "" && o.Label == "":
		return 1
	default:
		return strings.Compare(v.Label, o.Label)
	}
}

func componentAt(nums []int, i int) int {
	if i >= len(nums) {
		return 0
	}
	return nums[i]
}

// String renders the version in its canonical dotted form.
func (v Version) String() string {
	parts := make([]string, len(v.Numeric))
	for i, n := range v.Numeric {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ".") + v.Label
}

// Identity is the (name, version, release) triple naming one build of a
// package.
type Identity struct {
	Name    string
	Version Version
	Release int
}

// FullVersion renders "version-release".
func (id Identity) FullVersion() string {
	return fmt.Sprintf("%s-%d", id.Version.String(), id.Release)
}

// String renders "name-version-release".
func (id Identity) String() string {
	return fmt.Sprintf("%s-%s", id.Name, id.FullVersion())
}

// Compare orders two identities of the same name by version, then by
// release (higher release wins ties between otherwise-equal versions).
func (id Identity) Compare(o Identity) int {
	if c := id.Version.Compare(o.Version); c != 0 {
		return c
	}
	if id.Release != o.Release {
		if id.Release < o.Release {
			return -1
		}
		return 1
	}
	return 0
}
