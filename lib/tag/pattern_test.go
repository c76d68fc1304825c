// Copyright 2026 The Carton Authors
// SPDX-License-Identifier: Apache-2.0

package tag

import "testing"

func TestParsePattern(t *testing.T) {
	cases := []struct {
		input      string
		name       string
		constraint string
	}{
		{"std", "std", ""},
		{"std@1.2.3", "std", "1.2.3"},
		{"std@^1.2", "std", "^1.2"},
		{"std@>=2.0.0", "std", ">=2.0.0"},
		{"std@*", "std", "*"},
	}
	for _, c := range cases {
		pattern, err := ParsePattern(c.input)
		if err != nil {
			t.Fatalf("ParsePattern(%q): %v", c.input, err)
		}
		if pattern.Name != c.name || pattern.Constraint != c.constraint {
			t.Errorf("ParsePattern(%q) = %+v", c.input, pattern)
		}
		if pattern.String() != c.input {
			t.Errorf("String round trip: %q became %q", c.input, pattern.String())
		}
	}
}

func TestParsePatternRejectsMalformed(t *testing.T) {
	for _, input := range []string{"", "@1.0.0", "a/b@1.0.0", `a\b`, "std@bogus", "std@^"} {
		if _, err := ParsePattern(input); err == nil {
			t.Errorf("ParsePattern(%q) succeeded, want error", input)
		}
	}
}

func TestMatches(t *testing.T) {
	cases := []struct {
		constraint string
		version    string
		want       bool
	}{
		{"", "0.0.1", true},
		{"*", "2.5.0", true},
		{"1.2.3", "1.2.3", true},
		{"1.2.3", "1.2.4", false},
		{"=1.2.3", "1.2.3", true},
		{"^1.2.0", "1.9.9", true},
		{"^1.2.0", "1.1.0", false},
		{"^1.2.0", "2.0.0", false},
		// Caret on major zero fixes the minor too.
		{"^0.2.0", "0.2.5", true},
		{"^0.2.0", "0.3.0", false},
		{"~1.2.0", "1.2.9", true},
		{"~1.2.0", "1.3.0", false},
		{">=1.0.0", "1.0.0", true},
		{">=1.0.0", "0.9.9", false},
		{">1.0.0", "1.0.0", false},
		{"<2.0.0", "1.9.9", true},
		{"<=2.0.0", "2.0.0", true},
	}
	for _, c := range cases {
		p := Pattern{Name: "pkg", Constraint: c.constraint}
		if got := p.Matches(c.version); got != c.want {
			t.Errorf("Matches(%q, %q) = %v, want %v", c.constraint, c.version, got, c.want)
		}
	}
}

func TestMatchesRejectsInvalidVersions(t *testing.T) {
	p := Pattern{Name: "pkg"}
	if p.Matches("not-a-version") {
		t.Error("wildcard pattern matched an invalid version")
	}
}

func TestCompareVersionsHandlesPrefixlessForms(t *testing.T) {
	if CompareVersions("1.2.3", "v1.2.3") != 0 {
		t.Error("prefixed and prefixless forms of the same version compare unequal")
	}
	if CompareVersions("1.2.3", "1.10.0") >= 0 {
		t.Error("semver ordering not applied (1.10.0 should sort after 1.2.3)")
	}
}
