// Copyright 2026 The Carton Authors
// SPDX-License-Identifier: Apache-2.0

// Package checkin is the top of the pipeline: scan a filesystem tree,
// unify its references, compile the result into content-addressed
// objects, and record the resolution in a lockfile beside the tree.
package checkin
