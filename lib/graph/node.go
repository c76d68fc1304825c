// Copyright 2026 The Carton Authors
// SPDX-License-Identifier: Apache-2.0

package graph

import (
	"fmt"
	"strings"

	"github.com/carton-build/carton/lib/object"
	"github.com/carton-build/carton/lib/tag"
)

// NodeKind is the variant of a graph node. The three kinds mirror the
// three artifact object kinds; blobs are not nodes (file contents are
// attached to file nodes as already-assigned blob ids).
type NodeKind uint8

const (
	KindDirectory NodeKind = iota + 1
	KindFile
	KindSymlink
)

// String returns the kind's lowercase name.
func (k NodeKind) String() string {
	switch k {
	case KindDirectory:
		return "directory"
	case KindFile:
		return "file"
	case KindSymlink:
		return "symlink"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// Reference is an unresolved dependency reference: exactly one of the
// three forms is set. Path and literal-id references resolve without
// any version choice; tag patterns go through the unifier's candidate
// search.
type Reference struct {
	Path string
	Tag  *tag.Pattern
	ID   object.ID
}

// ParseReference classifies an import specifier. Specifiers beginning
// with "./", "../", or "/" are path references; specifiers that parse
// as object ids are literal references; everything else must be a tag
// pattern.
func ParseReference(specifier string) (Reference, error) {
	if strings.HasPrefix(specifier, "./") ||
		strings.HasPrefix(specifier, "../") ||
		strings.HasPrefix(specifier, "/") {
		return Reference{Path: specifier}, nil
	}
	if id, err := object.ParseID(specifier); err == nil {
		return Reference{ID: id}, nil
	}
	pattern, err := tag.ParsePattern(specifier)
	if err != nil {
		return Reference{}, fmt.Errorf("invalid import specifier %q: %w", specifier, err)
	}
	return Reference{Tag: &pattern}, nil
}

// String returns a diagnostic description of the reference.
func (r Reference) String() string {
	switch {
	case r.Path != "":
		return r.Path
	case r.Tag != nil:
		return r.Tag.String()
	case !r.ID.IsZero():
		return r.ID.Short()
	default:
		return "(empty reference)"
	}
}

// Edge is one outgoing reference of a node. An internal (resolved)
// edge carries the target's arena index; an external (unresolved) edge
// carries the Reference awaiting resolution.
type Edge struct {
	Node      int
	Reference *Reference
}

// ResolvedEdge returns an edge bound to an arena index.
func ResolvedEdge(node int) Edge { return Edge{Node: node} }

// UnresolvedEdge returns an edge carrying a pending reference.
func UnresolvedEdge(ref Reference) Edge { return Edge{Node: -1, Reference: &ref} }

// Resolved reports whether the edge is bound to a node.
func (e Edge) Resolved() bool { return e.Node >= 0 }

// Slot identifies which edge collection of a node an EdgeRef addresses.
type Slot uint8

const (
	// SlotEntry is a directory entry; Key is the entry name.
	SlotEntry Slot = iota + 1
	// SlotDependency is a file dependency; Key is the import specifier.
	SlotDependency
	// SlotArtifact is a symlink's artifact edge; Key is unused.
	SlotArtifact
)

// EdgeRef addresses one edge in the graph by owner node, slot, and
// key. Edges live inside node field maps, so they cannot be addressed
// by pointer across checkpoint rewinds; this triple is stable.
type EdgeRef struct {
	Node int
	Slot Slot
	Key  string
}

// Node is one graph vertex. Kind selects which field group is
// meaningful: Entries for directories; Contents, Dependencies, and
// Executable for files; Artifact and Target for symlinks.
//
// Path is the canonical filesystem path the node was scanned from, or
// empty for nodes imported from already-resolved objects. Referrers is
// diagnostic only — it never implies ownership; the arena owns every
// node. ID stays zero until the object compiler assigns it, after
// which the node is immutable.
type Node struct {
	Path string
	Kind NodeKind

	// Directory.
	Entries map[string]Edge

	// File.
	Contents     object.ID
	Dependencies map[string]Edge
	Executable   bool

	// Symlink. Artifact is non-nil for symlinks whose target resolves
	// to an artifact; Target is the literal target path for plain
	// symlinks, or the subpath within the artifact for artifact links.
	Artifact *Edge
	Target   string

	Referrers []int
	ID        object.ID
	Errors    []error
}

// Describe returns a short human-readable description of the node for
// error messages: its path when it has one, otherwise its kind and
// index.
func (n *Node) Describe(index int) string {
	if n.Path != "" {
		return n.Path
	}
	return fmt.Sprintf("%s node %d", n.Kind, index)
}
