// Copyright 2026 The Carton Authors
// SPDX-License-Identifier: Apache-2.0

package object

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/zeebo/blake3"
)

// Kind identifies the variant of a content-addressed object. Each kind
// hashes in its own BLAKE3 domain, so a directory record and a file
// record with coincidentally identical bytes can never collide on id.
type Kind uint8

const (
	// KindBlob is raw file content. Blob ids are hashes of the
	// uncompressed bytes themselves, not of any record structure.
	KindBlob Kind = iota + 1

	// KindDirectory is a named-entry record mapping entry names to
	// child artifact ids.
	KindDirectory

	// KindFile is a file record: contents blob, dependency table,
	// executable bit.
	KindFile

	// KindSymlink is a symlink record: either a plain target path or
	// an artifact edge plus optional subpath.
	KindSymlink

	// KindGraph is a combined record holding every node of one
	// strongly connected component, addressed internally by index.
	KindGraph

	// KindReference is the minimal record {graph id, node index} that
	// gives a single member of a graph object its own stable id.
	KindReference
)

// kindPrefixes maps each kind to the three-letter prefix used in the
// textual id form. These are format constants — changing them breaks
// every persisted id string.
var kindPrefixes = map[Kind]string{
	KindBlob:      "blb",
	KindDirectory: "dir",
	KindFile:      "fil",
	KindSymlink:   "sym",
	KindGraph:     "gph",
	KindReference: "ref",
}

// String returns the kind's lowercase name.
func (k Kind) String() string {
	switch k {
	case KindBlob:
		return "blob"
	case KindDirectory:
		return "directory"
	case KindFile:
		return "file"
	case KindSymlink:
		return "symlink"
	case KindGraph:
		return "graph"
	case KindReference:
		return "reference"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// ParseKind parses a kind name as produced by [Kind.String].
func ParseKind(name string) (Kind, error) {
	for _, k := range []Kind{KindBlob, KindDirectory, KindFile, KindSymlink, KindGraph, KindReference} {
		if k.String() == name {
			return k, nil
		}
	}
	return 0, fmt.Errorf("invalid object kind %q", name)
}

// domainKey is a 32-byte key for BLAKE3 keyed hashing. One key per
// object kind keeps the hash domains separated.
type domainKey [32]byte

// asciiKey builds a domain key from a short ASCII name, zero-padded to
// 32 bytes. Readable ASCII makes the keys inspectable in hex dumps
// without sacrificing any cryptographic property — BLAKE3 keyed mode
// treats the key as an opaque 32-byte value.
func asciiKey(name string) domainKey {
	if len(name) > 32 {
		panic("object: domain key name longer than 32 bytes: " + name)
	}
	var key domainKey
	copy(key[:], name)
	return key
}

// Domain separation keys. These are fixed constants — changing them
// invalidates every existing object id in that domain.
var kindDomainKeys = map[Kind]domainKey{
	KindBlob:      asciiKey("carton.object.blob"),
	KindDirectory: asciiKey("carton.object.directory"),
	KindFile:      asciiKey("carton.object.file"),
	KindSymlink:   asciiKey("carton.object.symlink"),
	KindGraph:     asciiKey("carton.object.graph"),
	KindReference: asciiKey("carton.object.reference"),
}

// ID is a content id: the kind of an object together with the 32-byte
// BLAKE3 keyed digest of its canonical serialized bytes. The zero ID
// is "no id" — nodes carry it until the object compiler assigns one.
type ID struct {
	kind Kind
	hash [32]byte
}

// HashID computes the content id of a serialized object record (or,
// for KindBlob, of the raw content bytes) in the kind's hash domain.
func HashID(kind Kind, data []byte) ID {
	key, ok := kindDomainKeys[kind]
	if !ok {
		panic("object: no domain key for kind " + kind.String())
	}
	hasher, err := blake3.NewKeyed(key[:])
	if err != nil {
		// NewKeyed only fails for wrong key length, which the
		// fixed-size domainKey type rules out.
		panic("object: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write(data)
	id := ID{kind: kind}
	copy(id.hash[:], hasher.Sum(nil))
	return id
}

// Kind returns the object kind encoded in the id.
func (id ID) Kind() Kind { return id.kind }

// IsZero reports whether the id is the zero value (no id assigned).
func (id ID) IsZero() bool { return id.kind == 0 }

// String returns the canonical textual form: a three-letter kind
// prefix, an underscore, and 64 hex characters. This is the format
// used in lockfiles, tag records, logs, and CLI output.
func (id ID) String() string {
	prefix, ok := kindPrefixes[id.kind]
	if !ok {
		return "invalid"
	}
	return prefix + "_" + hex.EncodeToString(id.hash[:])
}

// Short returns an abbreviated form for logs and diagnostics: the kind
// prefix plus the first 12 hex characters.
func (id ID) Short() string {
	prefix, ok := kindPrefixes[id.kind]
	if !ok {
		return "invalid"
	}
	return prefix + "_" + hex.EncodeToString(id.hash[:6])
}

// ParseID parses the canonical textual form produced by [ID.String].
func ParseID(s string) (ID, error) {
	prefix, rest, found := strings.Cut(s, "_")
	if !found {
		return ID{}, fmt.Errorf("invalid object id %q: missing kind prefix", s)
	}

	var kind Kind
	for k, p := range kindPrefixes {
		if p == prefix {
			kind = k
			break
		}
	}
	if kind == 0 {
		return ID{}, fmt.Errorf("invalid object id %q: unknown kind prefix %q", s, prefix)
	}

	decoded, err := hex.DecodeString(rest)
	if err != nil {
		return ID{}, fmt.Errorf("invalid object id %q: %w", s, err)
	}
	if len(decoded) != 32 {
		return ID{}, fmt.Errorf("invalid object id %q: digest is %d bytes, want 32", s, len(decoded))
	}

	id := ID{kind: kind}
	copy(id.hash[:], decoded)
	return id, nil
}

// MarshalText implements encoding.TextMarshaler. Ids serialize as
// their canonical string form in CBOR, JSON, and YAML.
func (id ID) MarshalText() ([]byte, error) {
	if id.IsZero() {
		return nil, fmt.Errorf("cannot serialize the zero object id")
	}
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *ID) UnmarshalText(text []byte) error {
	parsed, err := ParseID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
