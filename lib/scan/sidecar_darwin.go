// Copyright 2026 The Carton Authors
// SPDX-License-Identifier: Apache-2.0

package scan

import (
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// SidecarAttr is the extended attribute holding a file's explicit
// dependency list: a JSON array of import specifiers.
const SidecarAttr = "user.carton.dependencies"

// readSidecar reads the dependency sidecar attribute. A file without
// the attribute (or on a filesystem without xattr support) has no
// sidecar; that is not an error.
func readSidecar(path string) ([]string, error) {
	size, err := unix.Getxattr(path, SidecarAttr, nil)
	if err != nil {
		if errors.Is(err, unix.ENOATTR) || errors.Is(err, unix.ENOTSUP) {
			return nil, nil
		}
		return nil, fmt.Errorf("getxattr %s: %w", SidecarAttr, err)
	}

	buffer := make([]byte, size)
	read, err := unix.Getxattr(path, SidecarAttr, buffer)
	if err != nil {
		return nil, fmt.Errorf("getxattr %s: %w", SidecarAttr, err)
	}

	var specifiers []string
	if err := json.Unmarshal(buffer[:read], &specifiers); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", SidecarAttr, err)
	}
	return specifiers, nil
}

// WriteSidecar sets the dependency sidecar attribute. Used by tooling
// and tests to attach explicit dependencies to non-module files.
func WriteSidecar(path string, specifiers []string) error {
	data, err := json.Marshal(specifiers)
	if err != nil {
		return fmt.Errorf("encoding sidecar: %w", err)
	}
	if err := unix.Setxattr(path, SidecarAttr, data, 0); err != nil {
		return fmt.Errorf("setxattr %s on %s: %w", SidecarAttr, path, err)
	}
	return nil
}
