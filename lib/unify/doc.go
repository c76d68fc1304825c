// Copyright 2026 The Carton Authors
// SPDX-License-Identifier: Apache-2.0

// Package unify resolves every reference in a checkin graph to a
// concrete node, selecting exactly one version per package name.
//
// The solver works a FIFO list of edges. Path and literal-id
// references resolve without choice; tag patterns select a candidate
// version from the registry, newest first, recording a checkpoint
// before each selection. When a later pattern rejects the selected
// version, the solver rewinds to the most recent checkpoint for that
// package name that still has candidates and continues down the list.
// Checkpoints are cheap: the graph keeps an undo journal of its own
// mutations, and the solver's loose state (worklist, visit set, retry
// lists) is small enough to copy.
package unify
