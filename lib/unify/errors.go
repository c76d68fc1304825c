// Copyright 2026 The Carton Authors
// SPDX-License-Identifier: Apache-2.0

package unify

import (
	"fmt"
	"strings"

	"github.com/carton-build/carton/lib/graph"
	"github.com/carton-build/carton/lib/tag"
)

// ConflictError reports a tag pattern that rejects the version already
// bound for its package name, after every backtracking avenue was
// exhausted.
type ConflictError struct {
	Referrer string
	Pattern  tag.Pattern
	Bound    tag.Tag
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s requires %s but %s@%s is already selected",
		e.Referrer, e.Pattern, e.Bound.Name, e.Bound.Version)
}

// NoMatchError reports a tag pattern with no usable candidates.
type NoMatchError struct {
	Pattern tag.Pattern
}

func (e *NoMatchError) Error() string {
	return fmt.Sprintf("no tags match %s", e.Pattern)
}

// LockedError reports a tag pattern that would need a registry listing
// under a locked solve.
type LockedError struct {
	Pattern tag.Pattern
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("%s is not in the lockfile and the solve is locked", e.Pattern)
}

// SolveError aggregates every resolution error recorded on the graph
// when the worklist drained.
type SolveError struct {
	Errors []graph.NodeError
}

func (e *SolveError) Error() string {
	if len(e.Errors) == 1 {
		return "unification failed: " + e.Errors[0].Error()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "unification failed with %d errors:", len(e.Errors))
	for _, err := range e.Errors {
		b.WriteString("\n  ")
		b.WriteString(err.Error())
	}
	return b.String()
}

func (e *SolveError) Unwrap() []error {
	errs := make([]error, len(e.Errors))
	for i, err := range e.Errors {
		errs[i] = err
	}
	return errs
}
