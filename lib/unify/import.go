// Copyright 2026 The Carton Authors
// SPDX-License-Identifier: Apache-2.0

package unify

import (
	"context"
	"fmt"

	"github.com/carton-build/carton/lib/graph"
	"github.com/carton-build/carton/lib/object"
	"github.com/carton-build/carton/lib/store"
)

// Importer materializes an already-stored object as graph nodes so
// that the solver can walk into it. An import brings in the object's
// own structure one level deep: the imported node's outgoing edges are
// left unresolved, and the solver decides whether and when to follow
// them.
type Importer interface {
	Import(ctx context.Context, g *graph.Graph, id object.ID) (int, error)
}

// StoreImporter imports objects from a backing store. Imports are
// deduplicated through the graph's object index, so referencing the
// same id twice lands on one node, and the work of an import is undone
// wholesale when a checkpoint containing it is rewound.
type StoreImporter struct {
	Store store.Store
}

// Import implements [Importer].
func (im *StoreImporter) Import(ctx context.Context, g *graph.Graph, id object.ID) (int, error) {
	if index, ok := g.LookupObject(id); ok {
		return index, nil
	}

	switch id.Kind() {
	case object.KindBlob:
		return 0, fmt.Errorf("cannot import blob %s as an artifact", id.Short())
	case object.KindReference:
		data, err := im.fetch(ctx, id)
		if err != nil {
			return 0, err
		}
		record, err := object.Decode(id, data)
		if err != nil {
			return 0, err
		}
		reference := record.(*object.ReferenceData)
		members, err := im.importGraph(ctx, g, reference.Graph)
		if err != nil {
			return 0, err
		}
		if reference.Node < 0 || reference.Node >= len(members) {
			return 0, fmt.Errorf("reference %s addresses node %d of a %d-node graph",
				id.Short(), reference.Node, len(members))
		}
		return members[reference.Node], nil
	case object.KindGraph:
		members, err := im.importGraph(ctx, g, id)
		if err != nil {
			return 0, err
		}
		return members[0], nil
	default:
		return im.importStandalone(ctx, g, id)
	}
}

func (im *StoreImporter) fetch(ctx context.Context, id object.ID) ([]byte, error) {
	data, err := im.Store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", id.Short(), err)
	}
	return data, nil
}

// importStandalone imports a directory, file, or symlink object stored
// on its own (not as a graph member).
func (im *StoreImporter) importStandalone(ctx context.Context, g *graph.Graph, id object.ID) (int, error) {
	data, err := im.fetch(ctx, id)
	if err != nil {
		return 0, err
	}
	record, err := object.Decode(id, data)
	if err != nil {
		return 0, err
	}

	node, err := nodeFromRecord(record, standaloneEdge)
	if err != nil {
		return 0, fmt.Errorf("importing %s: %w", id.Short(), err)
	}
	node.ID = id
	index := g.Add(node)
	g.RegisterObject(id, index)
	return index, nil
}

// importGraph imports every member of a graph object. Members are
// registered under their reference-object ids, so importing any member
// later reuses the nodes created here. The graph id itself maps to
// member zero.
func (im *StoreImporter) importGraph(ctx context.Context, g *graph.Graph, graphID object.ID) ([]int, error) {
	data, err := im.fetch(ctx, graphID)
	if err != nil {
		return nil, err
	}
	record, err := object.Decode(graphID, data)
	if err != nil {
		return nil, err
	}
	members := record.(*object.GraphData).Nodes
	if len(members) == 0 {
		return nil, fmt.Errorf("graph %s has no nodes", graphID.Short())
	}

	referenceIDs := make([]object.ID, len(members))
	for i := range members {
		_, refID, err := object.Encode(&object.ReferenceData{Graph: graphID, Node: i})
		if err != nil {
			return nil, err
		}
		referenceIDs[i] = refID
	}

	// A concurrent dedup path: the graph may already be present via a
	// reference object imported earlier in the same solve.
	if index, ok := g.LookupObject(referenceIDs[0]); ok {
		indices := make([]int, len(members))
		indices[0] = index
		for i := 1; i < len(members); i++ {
			other, ok := g.LookupObject(referenceIDs[i])
			if !ok {
				return nil, fmt.Errorf("graph %s partially imported", graphID.Short())
			}
			indices[i] = other
		}
		return indices, nil
	}

	// First pass adds the member nodes so that the second pass can bind
	// intra-graph edges to final arena indices.
	indices := make([]int, len(members))
	for i, member := range members {
		node, err := nodeFromGraphNode(member, func(child object.Child) (graph.Edge, error) {
			if child.Local {
				if child.Index < 0 || child.Index >= len(members) {
					return graph.Edge{}, fmt.Errorf("local index %d out of range", child.Index)
				}
				// Placeholder; rebound below once every index is known.
				return graph.UnresolvedEdge(graph.Reference{}), nil
			}
			return graph.UnresolvedEdge(graph.Reference{ID: child.ID}), nil
		})
		if err != nil {
			return nil, fmt.Errorf("importing node %d of graph %s: %w", i, graphID.Short(), err)
		}
		node.ID = referenceIDs[i]
		indices[i] = g.Add(node)
		g.RegisterObject(referenceIDs[i], indices[i])
	}
	g.RegisterObject(graphID, indices[0])

	for i, member := range members {
		for ref, child := range localChildren(member) {
			ref.Node = indices[i]
			g.SetEdge(ref, graph.ResolvedEdge(indices[child.Index]))
			g.AddReferrer(indices[child.Index], indices[i])
		}
	}
	return indices, nil
}

// standaloneEdge converts a child of a standalone record, where local
// indices have no meaning.
func standaloneEdge(child object.Child) (graph.Edge, error) {
	if child.Local {
		return graph.Edge{}, fmt.Errorf("local index %d outside a graph object", child.Index)
	}
	return graph.UnresolvedEdge(graph.Reference{ID: child.ID}), nil
}

// nodeFromRecord builds a graph node from a decoded object record,
// converting each child through edge.
func nodeFromRecord(record any, edge func(object.Child) (graph.Edge, error)) (graph.Node, error) {
	switch data := record.(type) {
	case *object.DirectoryData:
		node := graph.Node{Kind: graph.KindDirectory, Entries: make(map[string]graph.Edge, len(data.Entries))}
		for name, child := range data.Entries {
			e, err := edge(child)
			if err != nil {
				return graph.Node{}, fmt.Errorf("entry %q: %w", name, err)
			}
			node.Entries[name] = e
		}
		return node, nil
	case *object.FileData:
		node := graph.Node{
			Kind:         graph.KindFile,
			Contents:     data.Contents,
			Executable:   data.Executable,
			Dependencies: make(map[string]graph.Edge, len(data.Dependencies)),
		}
		for specifier, child := range data.Dependencies {
			if child == nil {
				reference, err := graph.ParseReference(specifier)
				if err != nil {
					return graph.Node{}, err
				}
				node.Dependencies[specifier] = graph.UnresolvedEdge(reference)
				continue
			}
			e, err := edge(*child)
			if err != nil {
				return graph.Node{}, fmt.Errorf("dependency %q: %w", specifier, err)
			}
			node.Dependencies[specifier] = e
		}
		return node, nil
	case *object.SymlinkData:
		node := graph.Node{Kind: graph.KindSymlink, Target: data.Path}
		if data.Artifact != nil {
			e, err := edge(*data.Artifact)
			if err != nil {
				return graph.Node{}, fmt.Errorf("artifact target: %w", err)
			}
			node.Artifact = &e
		}
		return node, nil
	default:
		return graph.Node{}, fmt.Errorf("record type %T is not an artifact", record)
	}
}

// nodeFromGraphNode unwraps a graph member's kind tag and payload.
func nodeFromGraphNode(member object.GraphNode, edge func(object.Child) (graph.Edge, error)) (graph.Node, error) {
	switch member.Kind {
	case "directory":
		if member.Directory == nil {
			return graph.Node{}, fmt.Errorf("directory node without payload")
		}
		return nodeFromRecord(member.Directory, edge)
	case "file":
		if member.File == nil {
			return graph.Node{}, fmt.Errorf("file node without payload")
		}
		return nodeFromRecord(member.File, edge)
	case "symlink":
		if member.Symlink == nil {
			return graph.Node{}, fmt.Errorf("symlink node without payload")
		}
		return nodeFromRecord(member.Symlink, edge)
	default:
		return graph.Node{}, fmt.Errorf("unknown graph node kind %q", member.Kind)
	}
}

// localChildren yields the edge refs (with Node unset) and children of
// a member's local-index edges.
func localChildren(member object.GraphNode) map[graph.EdgeRef]object.Child {
	local := make(map[graph.EdgeRef]object.Child)
	switch {
	case member.Directory != nil:
		for name, child := range member.Directory.Entries {
			if child.Local {
				local[graph.EdgeRef{Slot: graph.SlotEntry, Key: name}] = child
			}
		}
	case member.File != nil:
		for specifier, child := range member.File.Dependencies {
			if child != nil && child.Local {
				local[graph.EdgeRef{Slot: graph.SlotDependency, Key: specifier}] = *child
			}
		}
	case member.Symlink != nil:
		if a := member.Symlink.Artifact; a != nil && a.Local {
			local[graph.EdgeRef{Slot: graph.SlotArtifact}] = *a
		}
	}
	return local
}
