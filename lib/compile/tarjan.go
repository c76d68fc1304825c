// Copyright 2026 The Carton Authors
// SPDX-License-Identifier: Apache-2.0

package compile

import (
	"fmt"

	"github.com/carton-build/carton/lib/graph"
)

// components decomposes the subgraph reachable from root into strongly
// connected components, returned in dependency order: every component
// appears after the components it points to. Within a component, the
// first member is the component's entry node (the first one the
// traversal reached), which keeps member numbering stable across runs
// because edge iteration is key-sorted.
//
// Every reachable edge must be resolved; an unresolved edge here means
// the unifier was skipped or its failure ignored.
func components(g *graph.Graph, root int) ([][]int, error) {
	type frame struct {
		node  int
		edges []graph.EdgeRef
		next  int
	}

	index := make(map[int]int)
	low := make(map[int]int)
	onStack := make(map[int]bool)
	var stack []int
	var frames []frame
	var out [][]int
	counter := 0

	push := func(node int) {
		index[node] = counter
		low[node] = counter
		counter++
		stack = append(stack, node)
		onStack[node] = true
		frames = append(frames, frame{node: node, edges: g.Outgoing(node)})
	}
	push(root)

	for len(frames) > 0 {
		f := &frames[len(frames)-1]

		descended := false
		for f.next < len(f.edges) {
			ref := f.edges[f.next]
			f.next++
			edge, ok := g.Edge(ref)
			if !ok {
				continue
			}
			if !edge.Resolved() {
				return nil, fmt.Errorf("%s: edge %q is unresolved",
					g.Node(ref.Node).Describe(ref.Node), ref.Key)
			}
			target := edge.Node
			if _, seen := index[target]; !seen {
				push(target)
				descended = true
				break
			}
			if onStack[target] && index[target] < low[f.node] {
				low[f.node] = index[target]
			}
		}
		if descended {
			continue
		}

		node := f.node
		if low[node] == index[node] {
			var members []int
			for {
				top := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[top] = false
				members = append(members, top)
				if top == node {
					break
				}
			}
			// Popped deepest-first; reverse so the entry node leads.
			for i, j := 0, len(members)-1; i < j; i, j = i+1, j-1 {
				members[i], members[j] = members[j], members[i]
			}
			out = append(out, members)
		}

		frames = frames[:len(frames)-1]
		if len(frames) > 0 {
			parent := &frames[len(frames)-1]
			if low[node] < low[parent.node] {
				low[parent.node] = low[node]
			}
		}
	}
	return out, nil
}

// hasInternalEdge reports whether any member points back into the
// member set. A single node with a self-edge is a cycle and needs a
// graph object just like a larger component.
func hasInternalEdge(g *graph.Graph, members []int) bool {
	in := make(map[int]bool, len(members))
	for _, m := range members {
		in[m] = true
	}
	for _, m := range members {
		for _, ref := range g.Outgoing(m) {
			edge, ok := g.Edge(ref)
			if ok && edge.Resolved() && in[edge.Node] {
				return true
			}
		}
	}
	return false
}
