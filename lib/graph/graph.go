// Copyright 2026 The Carton Authors
// SPDX-License-Identifier: Apache-2.0

package graph

import (
	"fmt"
	"sort"

	"github.com/carton-build/carton/lib/object"
	"github.com/carton-build/carton/lib/tag"
)

// Binding records the one resolved version chosen for a package name
// within a solve, together with the arena index of the imported root.
type Binding struct {
	Tag  tag.Tag
	Node int
}

// Graph is an append-only arena of nodes addressed by dense integer
// index, plus the path-dedup map and the name-binding cache used
// during unification.
//
// Every mutation made after a [Graph.Mark] goes through a journaled
// mutator so that [Graph.Rewind] can restore the exact earlier state.
// The journal records each mutation as an invertible closure and
// replays it in reverse — the undo-log rendition of the cheap,
// frequent checkpoints that backtracking needs. Construction-time
// population of a node's fields (before the solve takes its first
// mark) does not need to go through mutators.
//
// A Graph is exclusively owned by one running solve. Nothing here is
// safe for concurrent use.
type Graph struct {
	nodes   []Node
	paths   map[string]int
	objects map[object.ID]int
	names   map[string]Binding
	journal []func()
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{
		paths:   make(map[string]int),
		objects: make(map[object.ID]int),
		names:   make(map[string]Binding),
	}
}

// Len returns the number of nodes in the arena.
func (g *Graph) Len() int { return len(g.nodes) }

// Node returns the node at the given arena index. The pointer is
// invalidated by [Graph.Rewind]; do not retain it across solver steps.
func (g *Graph) Node(index int) *Node {
	return &g.nodes[index]
}

// Add appends a node to the arena and returns its index. If the node
// has a filesystem path, the path-dedup map is updated; adding a
// second node for an already-registered path is an invariant violation.
func (g *Graph) Add(node Node) int {
	index := len(g.nodes)
	if node.Path != "" {
		if _, exists := g.paths[node.Path]; exists {
			panic("graph: duplicate node for path " + node.Path)
		}
		g.paths[node.Path] = index
	}
	g.nodes = append(g.nodes, node)

	path := node.Path
	g.journal = append(g.journal, func() {
		g.nodes = g.nodes[:len(g.nodes)-1]
		if path != "" {
			delete(g.paths, path)
		}
	})
	return index
}

// LookupPath returns the arena index registered for a canonical
// filesystem path.
func (g *Graph) LookupPath(path string) (int, bool) {
	index, ok := g.paths[path]
	return index, ok
}

// RegisterObject associates a content id with an arena index so that
// later references to the same id reuse the node instead of importing
// a duplicate. Registering an already-registered id is an invariant
// violation: a node and an object, once associated, stay associated.
func (g *Graph) RegisterObject(id object.ID, index int) {
	if _, exists := g.objects[id]; exists {
		panic("graph: object already registered: " + id.String())
	}
	g.objects[id] = index
	g.journal = append(g.journal, func() {
		delete(g.objects, id)
	})
}

// LookupObject returns the arena index registered for a content id.
func (g *Graph) LookupObject(id object.ID) (int, bool) {
	index, ok := g.objects[id]
	return index, ok
}

// Edge returns the edge addressed by ref.
func (g *Graph) Edge(ref EdgeRef) (Edge, bool) {
	node := &g.nodes[ref.Node]
	switch ref.Slot {
	case SlotEntry:
		edge, ok := node.Entries[ref.Key]
		return edge, ok
	case SlotDependency:
		edge, ok := node.Dependencies[ref.Key]
		return edge, ok
	case SlotArtifact:
		if node.Artifact == nil {
			return Edge{}, false
		}
		return *node.Artifact, true
	default:
		return Edge{}, false
	}
}

// SetEdge replaces the edge addressed by ref, journaling the previous
// value.
func (g *Graph) SetEdge(ref EdgeRef, edge Edge) {
	node := &g.nodes[ref.Node]
	switch ref.Slot {
	case SlotEntry:
		previous, existed := node.Entries[ref.Key]
		node.Entries[ref.Key] = edge
		g.journal = append(g.journal, func() {
			n := &g.nodes[ref.Node]
			if existed {
				n.Entries[ref.Key] = previous
			} else {
				delete(n.Entries, ref.Key)
			}
		})
	case SlotDependency:
		previous, existed := node.Dependencies[ref.Key]
		node.Dependencies[ref.Key] = edge
		g.journal = append(g.journal, func() {
			n := &g.nodes[ref.Node]
			if existed {
				n.Dependencies[ref.Key] = previous
			} else {
				delete(n.Dependencies, ref.Key)
			}
		})
	case SlotArtifact:
		previous := node.Artifact
		node.Artifact = &edge
		g.journal = append(g.journal, func() {
			g.nodes[ref.Node].Artifact = previous
		})
	default:
		panic(fmt.Sprintf("graph: invalid edge slot %d", ref.Slot))
	}
}

// AddReferrer appends src to target's referrer list. Referrers are
// diagnostic back-references only.
func (g *Graph) AddReferrer(target, src int) {
	node := &g.nodes[target]
	node.Referrers = append(node.Referrers, src)
	g.journal = append(g.journal, func() {
		n := &g.nodes[target]
		n.Referrers = n.Referrers[:len(n.Referrers)-1]
	})
}

// Bind records the resolved version for a package name. Binding an
// already-bound name is an invariant violation — conflicts must be
// detected (and backtracked) before rebinding.
func (g *Graph) Bind(name string, binding Binding) {
	if _, exists := g.names[name]; exists {
		panic("graph: package name already bound: " + name)
	}
	g.names[name] = binding
	g.journal = append(g.journal, func() {
		delete(g.names, name)
	})
}

// Binding returns the resolved version bound to a package name.
func (g *Graph) Binding(name string) (Binding, bool) {
	binding, ok := g.names[name]
	return binding, ok
}

// Bindings returns a copy of every package-name binding in the graph.
func (g *Graph) Bindings() map[string]Binding {
	bindings := make(map[string]Binding, len(g.names))
	for name, binding := range g.names {
		bindings[name] = binding
	}
	return bindings
}

// RecordError attaches a resolution error to a node. Errors are local:
// the solve continues so that one pass can report multiple independent
// problems, and the overall solve fails iff any node carries an error
// when the worklist drains.
func (g *Graph) RecordError(node int, err error) {
	n := &g.nodes[node]
	n.Errors = append(n.Errors, err)
	g.journal = append(g.journal, func() {
		x := &g.nodes[node]
		x.Errors = x.Errors[:len(x.Errors)-1]
	})
}

// NodeError pairs a recorded resolution error with its owning node.
type NodeError struct {
	Node int
	Desc string
	Err  error
}

func (e NodeError) Error() string {
	return fmt.Sprintf("%s: %v", e.Desc, e.Err)
}

func (e NodeError) Unwrap() error { return e.Err }

// Errors collects every recorded error across the arena.
func (g *Graph) Errors() []NodeError {
	var all []NodeError
	for i := range g.nodes {
		node := &g.nodes[i]
		for _, err := range node.Errors {
			all = append(all, NodeError{Node: i, Desc: node.Describe(i), Err: err})
		}
	}
	return all
}

// Outgoing returns edge references for every outgoing edge of a node,
// in deterministic (key-sorted) order. Determinism here keeps the
// solver's exploration order, and therefore its error output, stable
// across runs.
func (g *Graph) Outgoing(index int) []EdgeRef {
	node := &g.nodes[index]
	var refs []EdgeRef
	switch node.Kind {
	case KindDirectory:
		names := make([]string, 0, len(node.Entries))
		for name := range node.Entries {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			refs = append(refs, EdgeRef{Node: index, Slot: SlotEntry, Key: name})
		}
	case KindFile:
		specifiers := make([]string, 0, len(node.Dependencies))
		for specifier := range node.Dependencies {
			specifiers = append(specifiers, specifier)
		}
		sort.Strings(specifiers)
		for _, specifier := range specifiers {
			refs = append(refs, EdgeRef{Node: index, Slot: SlotDependency, Key: specifier})
		}
	case KindSymlink:
		if node.Artifact != nil {
			refs = append(refs, EdgeRef{Node: index, Slot: SlotArtifact})
		}
	}
	return refs
}

// Mark is a checkpoint position in the mutation journal.
type Mark int

// Mark captures the current journal position. Rewinding to this mark
// undoes every journaled mutation made after this call.
func (g *Graph) Mark() Mark {
	return Mark(len(g.journal))
}

// Rewind undoes journaled mutations in reverse order back to the mark.
func (g *Graph) Rewind(mark Mark) {
	if int(mark) > len(g.journal) {
		panic("graph: rewind past the end of the journal")
	}
	for i := len(g.journal) - 1; i >= int(mark); i-- {
		g.journal[i]()
	}
	g.journal = g.journal[:mark]
}
