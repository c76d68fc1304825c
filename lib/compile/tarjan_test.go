// Copyright 2026 The Carton Authors
// SPDX-License-Identifier: Apache-2.0

package compile

import (
	"testing"

	"github.com/carton-build/carton/lib/graph"
	"github.com/carton-build/carton/lib/object"
)

// chainNode adds a file node with resolved dependency edges to the
// given targets, keyed by a synthetic specifier.
func chainNode(g *graph.Graph, targets ...int) int {
	deps := make(map[string]graph.Edge, len(targets))
	for _, target := range targets {
		deps[string(rune('a'+target))] = graph.ResolvedEdge(target)
	}
	return g.Add(graph.Node{
		Kind:         graph.KindFile,
		Contents:     object.HashID(object.KindBlob, []byte{byte(g.Len())}),
		Dependencies: deps,
	})
}

func TestComponentsDependencyOrder(t *testing.T) {
	g := graph.New()
	leaf := chainNode(g)
	mid := chainNode(g, leaf)
	root := chainNode(g, mid)

	comps, err := components(g, root)
	if err != nil {
		t.Fatalf("components: %v", err)
	}
	if len(comps) != 3 {
		t.Fatalf("found %d components, want 3", len(comps))
	}

	position := make(map[int]int)
	for ci, members := range comps {
		for _, m := range members {
			position[m] = ci
		}
	}
	if !(position[leaf] < position[mid] && position[mid] < position[root]) {
		t.Errorf("components out of dependency order: %v", comps)
	}
}

func TestComponentsMergesCycle(t *testing.T) {
	g := graph.New()
	a := chainNode(g)
	b := chainNode(g, a)
	g.SetEdge(graph.EdgeRef{Node: a, Slot: graph.SlotDependency, Key: "loop"}, graph.ResolvedEdge(b))
	root := chainNode(g, a)

	comps, err := components(g, root)
	if err != nil {
		t.Fatalf("components: %v", err)
	}
	if len(comps) != 2 {
		t.Fatalf("found %d components, want 2 (cycle plus root)", len(comps))
	}
	cycle := comps[0]
	if len(cycle) != 2 {
		t.Errorf("cycle component = %v, want both members", cycle)
	}
	if cycle[0] != a {
		t.Errorf("cycle entry node = %d, want the first reached node %d", cycle[0], a)
	}
}

func TestComponentsIgnoresUnreachable(t *testing.T) {
	g := graph.New()
	chainNode(g) // unreachable
	root := chainNode(g)

	comps, err := components(g, root)
	if err != nil {
		t.Fatalf("components: %v", err)
	}
	if len(comps) != 1 {
		t.Errorf("found %d components, want only the root's", len(comps))
	}
}

func TestComponentsRejectsUnresolvedEdge(t *testing.T) {
	g := graph.New()
	reference, err := graph.ParseReference("pkg@^1")
	if err != nil {
		t.Fatalf("ParseReference: %v", err)
	}
	root := g.Add(graph.Node{
		Kind:         graph.KindFile,
		Contents:     object.HashID(object.KindBlob, []byte("x")),
		Dependencies: map[string]graph.Edge{"pkg@^1": graph.UnresolvedEdge(reference)},
	})

	if _, err := components(g, root); err == nil {
		t.Error("unresolved edge traversed")
	}
}

func TestLayersGroupIndependentComponents(t *testing.T) {
	g := graph.New()
	leafA := chainNode(g)
	leafB := chainNode(g)
	root := chainNode(g, leafA, leafB)

	comps, err := components(g, root)
	if err != nil {
		t.Fatalf("components: %v", err)
	}
	grouped := layers(g, comps)
	if len(grouped) != 2 {
		t.Fatalf("found %d layers, want 2", len(grouped))
	}
	if len(grouped[0]) != 2 {
		t.Errorf("first layer holds %d components, want the two independent leaves", len(grouped[0]))
	}
	if len(grouped[1]) != 1 || grouped[1][0][0] != root {
		t.Errorf("second layer = %v, want the root alone", grouped[1])
	}
}
