// Copyright 2026 The Carton Authors
// SPDX-License-Identifier: Apache-2.0

//go:build !linux && !darwin

package scan

import "fmt"

// SidecarAttr is the extended attribute holding a file's explicit
// dependency list: a JSON array of import specifiers.
const SidecarAttr = "user.carton.dependencies"

// readSidecar is a no-op on platforms without extended attribute
// support — files there carry dependencies only through module
// analysis.
func readSidecar(string) ([]string, error) {
	return nil, nil
}

// WriteSidecar fails on platforms without extended attribute support.
func WriteSidecar(path string, _ []string) error {
	return fmt.Errorf("dependency sidecars are not supported on this platform (%s)", path)
}
