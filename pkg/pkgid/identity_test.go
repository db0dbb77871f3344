package pkgid

import "testing"

func TestParseVersionAndCompare(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"1.2.3", "1.2.3", 0},
		{"1.2", "1.2.0", 0},
		{"1.2.3", "1.2.4", -1},
		{"2.0", "1.9.9", 1},
		{"1.0", "1.0rc1", -1},
		{"1.0rc1", "1.0rc2", -1},
	}

	for _, c := range cases {
		va, err := ParseVersion(c.a)
		if err != nil {
			t.Fatalf("parse %q: %v", c.a, err)
		}
		vb, err := ParseVersion(c.b)
		if err != nil {
			t.Fatalf("parse %q: %v", c.b, err)
		}
		got := va.Compare(vb)
		if sign(got) != sign(c.want) {
			t.Errorf("Compare(%q, %q) = %d, want sign %d", c.a, c.b, got, c.want)
		}
	}
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	default:
		return 0
	}
}

func TestIdentityReleaseTiesBreak(t *testing.T) {
	v, _ := ParseVersion("1.0")
	a := Identity{Name: "foo", Version: v, Release: 1}
	b := Identity{Name: "foo", Version: v, Release: 2}
	if a.Compare(b) >= 0 {
		t.Errorf("expected higher release to win tie, got a.Compare(b)=%d", a.Compare(b))
	}
	if a.FullVersion() != "1.0-1" {
		t.Errorf("FullVersion() = %q, want 1.0-1", a.FullVersion())
	}
}

func TestValidName(t *testing.T) {
	valid := []string{"foo", "foo-bar", "foo.bar", "foo_bar", "foo+baz", "a1"}
	invalid := []string{"", "Foo", "-foo", "1Foo!"}
	for _, n := range valid {
		if !ValidName(n) {
			t.Errorf("expected %q to be valid", n)
		}
	}
	for _, n := range invalid {
		if ValidName(n) {
			t.Errorf("expected %q to be invalid", n)
		}
	}
}
