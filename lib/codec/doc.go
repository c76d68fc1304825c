// Copyright 2026 The Carton Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides Carton's standard serialization: CBOR with
// Core Deterministic Encoding.
//
// Every byte sequence that gets content-addressed — object records,
// graph objects, tag records, lockfile node records — passes through
// this package. Determinism is the load-bearing property: identical
// logical structure must produce identical bytes so that identical
// structure produces identical object ids (the deduplication
// invariant). Do not serialize addressable data with encoding/json or
// a differently-configured CBOR mode.
//
// The package wraps github.com/fxamacker/cbor/v2 so that consumers
// import only lib/codec and all of Carton shares one encoder
// configuration.
package codec
