// Copyright 2026 The Carton Authors
// SPDX-License-Identifier: Apache-2.0

// Package store implements the content-addressed object store consumed
// by the checkin pipeline.
//
// [Fs] is the local filesystem store: one sharded file per object with
// transparent per-object compression (zstd default, lz4 alternative,
// automatic fallback to none for incompressible bytes), written via
// atomic temp+rename, plus a SQLite index holding aggregate metadata
// and the byte-range records produced by destructive checkins. [Memory]
// is the map-backed equivalent for tests.
//
// Both implementations verify on Put that the bytes hash to the claimed
// id, so a store can never hold an object whose id lies about its
// content.
package store
