// Copyright 2026 The Carton Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tidwall/jsonc"
)

// WorkspaceFilename is the per-tree workspace file: JSON with comments
// allowed, sitting at the root of a tree being developed.
const WorkspaceFilename = "carton.json"

// Workspace is a tree's development-time settings. Unlike the global
// config, a workspace travels with the source tree it describes.
type Workspace struct {
	// LocalDependencies overrides package names with paths, relative
	// to the workspace root, while developing against unpublished
	// versions.
	LocalDependencies map[string]string `json:"local_dependencies,omitempty"`

	// Ignore adds scan exclusion patterns for this tree.
	Ignore []string `json:"ignore,omitempty"`
}

// LoadWorkspace reads the workspace file in root. A missing file is an
// empty workspace, not an error. Relative override paths are resolved
// against root.
func LoadWorkspace(root string) (*Workspace, error) {
	path := filepath.Join(root, WorkspaceFilename)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Workspace{}, nil
	}
	if err != nil {
		return nil, err
	}

	var ws Workspace
	if err := json.Unmarshal(jsonc.ToJSON(data), &ws); err != nil {
		return nil, fmt.Errorf("parsing workspace %s: %w", path, err)
	}

	for name, dep := range ws.LocalDependencies {
		if !filepath.IsAbs(dep) {
			ws.LocalDependencies[name] = filepath.Join(root, dep)
		}
	}
	return &ws, nil
}
