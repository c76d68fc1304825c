// Copyright 2026 The Carton Authors
// SPDX-License-Identifier: Apache-2.0

// Package tag implements tag patterns (package name plus version
// constraint) and the registry of published (name, version) → object
// id mappings that patterns resolve against.
//
// Constraint evaluation uses semver precedence (golang.org/x/mod).
// The supported grammar is caret and tilde ranges, the comparison
// operators, bare exact versions, and "*"/empty for any version.
//
// [FsRegistry] is the local filesystem registry: one CBOR record per
// published version, sharded by hashed tag key. [Cached] layers an LRU
// over any registry so the scanner's best-effort prefetch can warm
// listings for the unifier.
package tag
