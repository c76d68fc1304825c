// Copyright 2026 The Carton Authors
// SPDX-License-Identifier: Apache-2.0

// Package compile turns a fully resolved checkin graph into stored,
// content-addressed objects.
//
// The graph is decomposed into strongly connected components and
// encoded bottom-up: acyclic nodes become standalone objects, each
// cycle becomes one graph object plus a reference object per member.
// Serialization is deterministic, so the same tree always compiles to
// the same ids, and every object carries aggregate metadata (count,
// depth, weight, completeness) computed on the way up.
package compile
