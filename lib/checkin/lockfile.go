// Copyright 2026 The Carton Authors
// SPDX-License-Identifier: Apache-2.0

package checkin

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/carton-build/carton/lib/graph"
	"github.com/carton-build/carton/lib/object"
	"github.com/carton-build/carton/lib/tag"
)

// LockfileName is the lockfile's filename within a checked-in tree.
const LockfileName = "carton.lock"

// lockfileVersion is the current format version.
const lockfileVersion = 1

// Lockfile is the serialized resolution of one checkin: the root
// artifact id, the version selected for every package name, and a
// record per scanned node with its resolved children. Node zero is the
// checkin root. Children pointing at other scanned nodes use the local
// index form; children pointing at stored objects use the id form.
type Lockfile struct {
	Version   int                      `json:"version"`
	Generated string                   `json:"generated,omitempty"`
	Root      object.ID                `json:"root"`
	Packages  map[string]LockedPackage `json:"packages,omitempty"`
	Nodes     []LockNode               `json:"nodes"`
}

// LockedPackage pins one package name to the version a solve selected.
type LockedPackage struct {
	Version string    `json:"version"`
	Target  object.ID `json:"target"`
}

// LockNode is one scanned node's record. Path is relative to the
// checkin root; exactly the fields of the node's kind are populated.
type LockNode struct {
	Kind string    `json:"kind"`
	Path string    `json:"path,omitempty"`
	ID   object.ID `json:"id,omitzero"`

	Entries map[string]object.Child `json:"entries,omitempty"`

	Contents     object.ID                `json:"contents,omitzero"`
	Dependencies map[string]*object.Child `json:"dependencies,omitempty"`
	Executable   bool                     `json:"executable,omitempty"`

	Artifact *object.Child `json:"artifact,omitempty"`
	Target   string        `json:"target,omitempty"`
}

// Pinned returns the package pins as solver candidates.
func (l *Lockfile) Pinned() map[string]tag.Tag {
	pinned := make(map[string]tag.Tag, len(l.Packages))
	for name, pkg := range l.Packages {
		pinned[name] = tag.Tag{Name: name, Version: pkg.Version, Target: pkg.Target}
	}
	return pinned
}

// newLockfile builds a lockfile from a compiled graph. The scanned
// nodes reachable from root are recorded in deterministic preorder
// (key-sorted edges), node zero being the root itself.
func newLockfile(g *graph.Graph, root int, rootID object.ID, generated string) (*Lockfile, error) {
	rootPath := g.Node(root).Path

	// First pass assigns lockfile indices so that forward references
	// between scanned nodes can use the index form.
	indices := make(map[int]int)
	var order []int
	var collect func(index int)
	collect = func(index int) {
		if _, seen := indices[index]; seen {
			return
		}
		node := g.Node(index)
		if node.Path == "" {
			return
		}
		indices[index] = len(order)
		order = append(order, index)
		for _, ref := range g.Outgoing(index) {
			if edge, ok := g.Edge(ref); ok && edge.Resolved() {
				collect(edge.Node)
			}
		}
	}
	collect(root)

	child := func(owner int, key string, edge graph.Edge) (object.Child, error) {
		if !edge.Resolved() {
			return object.Child{}, fmt.Errorf("%s: edge %q is unresolved",
				g.Node(owner).Describe(owner), key)
		}
		if li, ok := indices[edge.Node]; ok {
			return object.ChildIndex(li), nil
		}
		id := g.Node(edge.Node).ID
		if id.IsZero() {
			return object.Child{}, fmt.Errorf("%s: child %q has no assigned id",
				g.Node(owner).Describe(owner), key)
		}
		return object.ChildID(id), nil
	}

	lf := &Lockfile{
		Version:   lockfileVersion,
		Generated: generated,
		Root:      rootID,
		Nodes:     make([]LockNode, 0, len(order)),
	}

	for _, index := range order {
		node := g.Node(index)
		rel, err := filepath.Rel(rootPath, node.Path)
		if err != nil {
			return nil, fmt.Errorf("relativizing %s: %w", node.Path, err)
		}
		if rel == "." {
			// The root record carries an empty path.
			rel = ""
		}
		record := LockNode{Kind: node.Kind.String(), Path: rel, ID: node.ID}

		switch node.Kind {
		case graph.KindDirectory:
			record.Entries = make(map[string]object.Child, len(node.Entries))
			for name, edge := range node.Entries {
				ch, err := child(index, name, edge)
				if err != nil {
					return nil, err
				}
				record.Entries[name] = ch
			}
		case graph.KindFile:
			record.Contents = node.Contents
			record.Executable = node.Executable
			if len(node.Dependencies) > 0 {
				record.Dependencies = make(map[string]*object.Child, len(node.Dependencies))
				for specifier, edge := range node.Dependencies {
					ch, err := child(index, specifier, edge)
					if err != nil {
						return nil, err
					}
					record.Dependencies[specifier] = &ch
				}
			}
		case graph.KindSymlink:
			record.Target = node.Target
			if node.Artifact != nil {
				ch, err := child(index, "(artifact)", *node.Artifact)
				if err != nil {
					return nil, err
				}
				record.Artifact = &ch
			}
		}
		lf.Nodes = append(lf.Nodes, record)
	}

	packages := make(map[string]LockedPackage)
	for name, binding := range g.Bindings() {
		// Local-override bindings have no stored target to pin.
		if binding.Tag.Target.IsZero() {
			continue
		}
		packages[name] = LockedPackage{
			Version: binding.Tag.Version,
			Target:  binding.Tag.Target,
		}
	}
	if len(packages) > 0 {
		lf.Packages = packages
	}
	return lf, nil
}

// ReadLockfile parses the lockfile at path.
func ReadLockfile(path string) (*Lockfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var lf Lockfile
	if err := json.Unmarshal(data, &lf); err != nil {
		return nil, fmt.Errorf("parsing lockfile %s: %w", path, err)
	}
	if lf.Version != lockfileVersion {
		return nil, fmt.Errorf("lockfile %s has unsupported version %d", path, lf.Version)
	}
	return &lf, nil
}

// Write serializes the lockfile to path via an atomic rename.
func (l *Lockfile) Write(path string) error {
	data, err := json.MarshalIndent(l, "", "  ")
	if err != nil {
		return fmt.Errorf("serializing lockfile: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".carton-lock-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return nil
}
