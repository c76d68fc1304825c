// Copyright 2026 The Carton Authors
// SPDX-License-Identifier: Apache-2.0

// Package scan builds the mutable checkin graph from a filesystem
// tree.
//
// The walk is single-threaded and synchronous: directories, path
// imports, and in-tree symlink targets are visited depth-first, with
// canonical-path deduplication so that any path contributes exactly
// one node no matter how many references reach it. Tag-pattern and
// literal-object references are recorded unresolved for the unifier;
// each tag pattern additionally kicks off a fire-and-forget background
// listing that warms the registry cache (failures ignored — the
// unifier's awaited lookups are the authoritative ones, and prefetch
// tasks never touch the graph).
//
// File dependencies come from two sources: an extended-attribute
// sidecar (explicit specifier list, any file) and static import
// analysis (module files only).
package scan
