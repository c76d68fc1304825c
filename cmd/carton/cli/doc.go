// Copyright 2026 The Carton Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli provides the command dispatch framework for the carton
// binary: a declarative command tree with lazy pflag flag sets,
// structured help output, and exit-code plumbing.
package cli
