// Copyright 2026 The Carton Authors
// SPDX-License-Identifier: Apache-2.0

// Package graph is the mutable in-memory graph shared by the scanner,
// the unifier, and the object compiler.
//
// Nodes live in one append-only arena and reference each other only by
// dense integer index — there are no inter-node pointers, so cycles
// are structurally safe and ownership is unambiguous (the arena owns
// everything; referrer lists are diagnostic back-indices). Edges are
// either internal (bound to an index) or external (carrying an
// unresolved Reference: a relative path, a literal object id, or a tag
// pattern).
//
// Checkpointing for the unifier's backtracking is an undo log: every
// solve-time mutation goes through a Graph method that appends an
// invertible closure to the journal, and Rewind replays the journal in
// reverse to a saved Mark. This gives cheap, frequent checkpoints
// without persistent collections.
package graph
