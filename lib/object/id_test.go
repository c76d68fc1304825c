// Copyright 2026 The Carton Authors
// SPDX-License-Identifier: Apache-2.0

package object

import (
	"strings"
	"testing"
)

func TestHashIDDomainSeparation(t *testing.T) {
	// The same bytes hashed under different kinds must produce
	// different digests, not just different prefixes.
	input := []byte("the same input bytes for every kind")

	kinds := []Kind{KindBlob, KindDirectory, KindFile, KindSymlink, KindGraph, KindReference}
	seen := make(map[[32]byte]Kind)
	for _, kind := range kinds {
		id := HashID(kind, input)
		if other, dup := seen[id.hash]; dup {
			t.Errorf("kinds %s and %s produced the same digest for identical input", kind, other)
		}
		seen[id.hash] = kind
	}
}

func TestHashIDDeterministic(t *testing.T) {
	input := []byte("deterministic input")
	if HashID(KindBlob, input) != HashID(KindBlob, input) {
		t.Error("HashID produced different results for the same input")
	}
}

func TestIDStringRoundTrip(t *testing.T) {
	for _, kind := range []Kind{KindBlob, KindDirectory, KindFile, KindSymlink, KindGraph, KindReference} {
		id := HashID(kind, []byte("round trip"))
		s := id.String()

		if !strings.HasPrefix(s, kindPrefixes[kind]+"_") {
			t.Errorf("id string %q does not start with %s_", s, kindPrefixes[kind])
		}

		parsed, err := ParseID(s)
		if err != nil {
			t.Fatalf("ParseID(%q): %v", s, err)
		}
		if parsed != id {
			t.Errorf("round trip changed the id: %s != %s", parsed, id)
		}
	}
}

func TestParseIDRejectsMalformed(t *testing.T) {
	cases := []string{
		"",
		"blb",
		"blb_",
		"xyz_" + strings.Repeat("0", 64),
		"blb_" + strings.Repeat("0", 63),
		"blb_" + strings.Repeat("g", 64),
		strings.Repeat("0", 64),
	}
	for _, input := range cases {
		if _, err := ParseID(input); err == nil {
			t.Errorf("ParseID(%q) succeeded, want error", input)
		}
	}
}

func TestZeroIDDoesNotMarshal(t *testing.T) {
	var id ID
	if !id.IsZero() {
		t.Fatal("zero value is not IsZero")
	}
	if _, err := id.MarshalText(); err == nil {
		t.Error("marshaling a zero id succeeded, want error")
	}
}

func TestShortIsPrefixOfString(t *testing.T) {
	id := HashID(KindDirectory, []byte("short form"))
	if !strings.HasPrefix(id.String(), id.Short()) {
		t.Errorf("Short %q is not a prefix of String %q", id.Short(), id.String())
	}
	if len(id.Short()) >= len(id.String()) {
		t.Error("Short is not shorter than String")
	}
}

func TestDomainKeysMatchKindNames(t *testing.T) {
	for kind, key := range kindDomainKeys {
		prefix := "carton.object." + kind.String()
		if string(key[:len(prefix)]) != prefix {
			t.Errorf("domain key for %s does not start with %q", kind, prefix)
		}
	}
}

func TestParseKind(t *testing.T) {
	for _, kind := range []Kind{KindBlob, KindDirectory, KindFile, KindSymlink, KindGraph, KindReference} {
		parsed, err := ParseKind(kind.String())
		if err != nil {
			t.Fatalf("ParseKind(%q): %v", kind.String(), err)
		}
		if parsed != kind {
			t.Errorf("ParseKind(%q) = %s", kind.String(), parsed)
		}
	}
	if _, err := ParseKind("bogus"); err == nil {
		t.Error("ParseKind accepted an unknown kind name")
	}
}
