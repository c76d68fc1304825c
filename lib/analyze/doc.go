// Copyright 2026 The Carton Authors
// SPDX-License-Identifier: Apache-2.0

// Package analyze extracts dependency references from carton module
// files by static analysis.
//
// The analyzer is line-oriented and purely syntactic: it recognizes
// import and re-export declarations with literal string specifiers,
// plus literal-argument dynamic imports. It never evaluates module
// code — evaluation belongs to the module runtime, which is outside
// the checkin pipeline. Analysis failures are diagnostics (warnings
// through the [Sink]), never scan aborts: a module with an
// unparseable import line still checks in, it just loses that edge.
package analyze
