// Copyright 2026 The Carton Authors
// SPDX-License-Identifier: Apache-2.0

package tag

import (
	"fmt"
	"strings"

	"golang.org/x/mod/semver"
)

// Pattern is a tag-pattern reference: a package name plus a version
// constraint. The textual form is "name" (any version) or
// "name@constraint". Names are validated lightly — they must be
// non-empty and must not contain '@' or path separators.
type Pattern struct {
	Name       string
	Constraint string
}

// ParsePattern parses the textual pattern form.
func ParsePattern(s string) (Pattern, error) {
	name, constraint, _ := strings.Cut(s, "@")
	if name == "" {
		return Pattern{}, fmt.Errorf("invalid tag pattern %q: empty package name", s)
	}
	if strings.ContainsAny(name, "/\\") {
		return Pattern{}, fmt.Errorf("invalid tag pattern %q: package names cannot contain path separators", s)
	}
	pattern := Pattern{Name: name, Constraint: constraint}
	if constraint != "" && constraint != "*" {
		// Validate eagerly so a malformed constraint surfaces at parse
		// time, not on the first match attempt.
		if _, err := parseConstraint(constraint); err != nil {
			return Pattern{}, fmt.Errorf("invalid tag pattern %q: %w", s, err)
		}
	}
	return pattern, nil
}

// String returns the textual pattern form.
func (p Pattern) String() string {
	if p.Constraint == "" {
		return p.Name
	}
	return p.Name + "@" + p.Constraint
}

// MarshalText implements encoding.TextMarshaler.
func (p Pattern) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Pattern) UnmarshalText(text []byte) error {
	parsed, err := ParsePattern(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Matches reports whether a published version satisfies the pattern's
// constraint. An empty or "*" constraint matches every version.
func (p Pattern) Matches(version string) bool {
	if p.Constraint == "" || p.Constraint == "*" {
		return semver.IsValid(canonical(version))
	}
	c, err := parseConstraint(p.Constraint)
	if err != nil {
		return false
	}
	return c.matches(canonical(version))
}

// constraint is one parsed version constraint.
type constraint struct {
	op      string // "^", "~", ">=", "<=", ">", "<", "=", or "" for exact
	version string // canonical semver form, with "v" prefix
}

// parseConstraint parses the supported constraint grammar: caret and
// tilde ranges, the six comparison operators, and bare exact versions.
func parseConstraint(s string) (constraint, error) {
	op := ""
	rest := s
	for _, candidate := range []string{">=", "<=", "^", "~", ">", "<", "="} {
		if strings.HasPrefix(s, candidate) {
			op = candidate
			rest = s[len(candidate):]
			break
		}
	}

	version := canonical(strings.TrimSpace(rest))
	if !semver.IsValid(version) {
		return constraint{}, fmt.Errorf("invalid version %q in constraint", rest)
	}
	if op == "=" {
		op = ""
	}
	return constraint{op: op, version: version}, nil
}

// matches evaluates the constraint against a canonical version.
func (c constraint) matches(version string) bool {
	if !semver.IsValid(version) {
		return false
	}
	cmp := semver.Compare(version, c.version)
	switch c.op {
	case "":
		return cmp == 0
	case ">":
		return cmp > 0
	case ">=":
		return cmp >= 0
	case "<":
		return cmp < 0
	case "<=":
		return cmp <= 0
	case "^":
		// Compatible within a major version. For major zero the minor
		// is also fixed, since 0.x releases make no stability promise
		// across minors.
		if semver.Major(version) != semver.Major(c.version) {
			return false
		}
		if semver.Major(c.version) == "v0" &&
			semver.MajorMinor(version) != semver.MajorMinor(c.version) {
			return false
		}
		return cmp >= 0
	case "~":
		// Patch-level flexibility: same major.minor, at or above the
		// constraint version.
		return semver.MajorMinor(version) == semver.MajorMinor(c.version) && cmp >= 0
	default:
		return false
	}
}

// canonical normalizes a version string to the "v"-prefixed form the
// semver package requires. Published versions are written without the
// prefix ("1.2.3"); this keeps both forms comparable.
func canonical(version string) string {
	if version == "" {
		return version
	}
	if !strings.HasPrefix(version, "v") {
		version = "v" + version
	}
	return version
}

// CompareVersions orders two published versions, newest last, using
// semver precedence. Invalid versions sort before valid ones.
func CompareVersions(a, b string) int {
	return semver.Compare(canonical(a), canonical(b))
}
