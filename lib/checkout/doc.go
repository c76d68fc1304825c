// Copyright 2026 The Carton Authors
// SPDX-License-Identifier: Apache-2.0

// Package checkout materializes stored artifacts back onto the
// filesystem: the inverse of checkin, minus dependency expansion.
package checkout
