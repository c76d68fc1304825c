// Copyright 2026 The Carton Authors
// SPDX-License-Identifier: Apache-2.0

package compile

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/carton-build/carton/lib/graph"
	"github.com/carton-build/carton/lib/object"
	"github.com/carton-build/carton/lib/store"
)

// Config holds the compiler's collaborators and options.
type Config struct {
	// Store receives the encoded objects and their metadata. Required.
	Store store.Store

	// Parallelism bounds concurrent object writes within one
	// dependency layer. Zero means GOMAXPROCS.
	Parallelism int

	// Logger receives operational messages. If nil, logging is
	// discarded.
	Logger *slog.Logger
}

// Compile assigns a content id to every node reachable from root and
// writes the corresponding objects and metadata to the store,
// returning the root's id. The graph must be fully resolved.
//
// Acyclic nodes become standalone directory, file, or symlink objects.
// Each cycle becomes one graph object holding every member of its
// strongly connected component, plus one reference object per member
// as the member's standalone id. Components are encoded dependencies
// first, so a child's id is always known when its parent serializes,
// and components with no ordering between them are written
// concurrently.
func Compile(ctx context.Context, g *graph.Graph, root int, cfg Config) (object.ID, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	parallelism := cfg.Parallelism
	if parallelism <= 0 {
		parallelism = runtime.GOMAXPROCS(0)
	}

	comps, err := components(g, root)
	if err != nil {
		return object.ID{}, err
	}

	c := &compiler{
		graph:  g,
		store:  cfg.Store,
		logger: logger,
		ids:    make([]object.ID, g.Len()),
		metas:  make([]object.Metadata, g.Len()),
	}

	for _, layer := range layers(g, comps) {
		group, gctx := errgroup.WithContext(ctx)
		group.SetLimit(parallelism)
		for _, members := range layer {
			members := members
			group.Go(func() error {
				return c.encodeComponent(gctx, members)
			})
		}
		if err := group.Wait(); err != nil {
			return object.ID{}, err
		}
	}

	// Publish the assigned ids onto the nodes.
	assigned := 0
	for node, id := range c.ids {
		if !id.IsZero() {
			g.Node(node).ID = id
			assigned++
		}
	}

	rootID := c.ids[root]
	rootMeta := c.metas[root]
	logger.Info("compiled object graph",
		"root", rootID.Short(),
		"objects", assigned,
		"complete", rootMeta.Complete,
		"weight", rootMeta.Weight)
	return rootID, nil
}

// layers groups components into dependency layers: a component's layer
// is one past the deepest layer among the components it points to, so
// everything within one layer can be encoded concurrently. Components
// arrive in dependency order, which lets the level of each be computed
// in a single pass.
func layers(g *graph.Graph, comps [][]int) [][][]int {
	owner := make(map[int]int)
	for ci, members := range comps {
		for _, m := range members {
			owner[m] = ci
		}
	}

	level := make([]int, len(comps))
	var out [][][]int
	for ci, members := range comps {
		l := 0
		for _, m := range members {
			for _, ref := range g.Outgoing(m) {
				edge, ok := g.Edge(ref)
				if !ok || !edge.Resolved() {
					continue
				}
				if target := owner[edge.Node]; target != ci && level[target]+1 > l {
					l = level[target] + 1
				}
			}
		}
		level[ci] = l
		if l == len(out) {
			out = append(out, nil)
		}
		out[l] = append(out[l], members)
	}
	return out
}

// compiler carries the per-run id and metadata assignments, indexed by
// arena node. Components within one layer write disjoint elements, and
// a component only reads elements written in earlier layers, so the
// slices need no locking.
type compiler struct {
	graph  *graph.Graph
	store  store.Store
	logger *slog.Logger
	ids    []object.ID
	metas  []object.Metadata
}

func (c *compiler) encodeComponent(ctx context.Context, members []int) error {
	if len(members) == 1 && !hasInternalEdge(c.graph, members) {
		return c.encodeSingleton(ctx, members[0])
	}
	return c.encodeGraph(ctx, members)
}

// encodeSingleton writes one acyclic node as a standalone object.
func (c *compiler) encodeSingleton(ctx context.Context, node int) error {
	record, err := c.record(node, nil)
	if err != nil {
		return err
	}
	data, id, err := object.Encode(record)
	if err != nil {
		return err
	}

	meta := object.Leaf(uint64(len(data)))
	c.foldChildren(ctx, node, nil, &meta)

	if err := c.put(ctx, id, data, meta); err != nil {
		return err
	}
	c.assign(node, id, meta)
	return nil
}

// encodeGraph writes a cyclic component as one graph object plus a
// reference object per member.
func (c *compiler) encodeGraph(ctx context.Context, members []int) error {
	memberIndex := make(map[int]int, len(members))
	for i, m := range members {
		memberIndex[m] = i
	}

	data := object.GraphData{Nodes: make([]object.GraphNode, len(members))}
	for i, m := range members {
		record, err := c.record(m, memberIndex)
		if err != nil {
			return err
		}
		node := object.GraphNode{Kind: c.graph.Node(m).Kind.String()}
		switch r := record.(type) {
		case *object.DirectoryData:
			node.Directory = r
		case *object.FileData:
			node.File = r
		case *object.SymlinkData:
			node.Symlink = r
		}
		data.Nodes[i] = node
	}

	graphBytes, graphID, err := object.Encode(&data)
	if err != nil {
		return err
	}
	graphMeta := object.Leaf(uint64(len(graphBytes)))
	for _, m := range members {
		c.foldChildren(ctx, m, memberIndex, &graphMeta)
	}
	if err := c.put(ctx, graphID, graphBytes, graphMeta); err != nil {
		return err
	}
	c.logger.Debug("encoded cycle",
		"graph", graphID.Short(),
		"nodes", len(members))

	for i, m := range members {
		refBytes, refID, err := object.Encode(&object.ReferenceData{Graph: graphID, Node: i})
		if err != nil {
			return err
		}
		refMeta := object.Metadata{
			Complete: graphMeta.Complete,
			Count:    1 + graphMeta.Count,
			Depth:    1 + graphMeta.Depth,
			Weight:   uint64(len(refBytes)) + graphMeta.Weight,
		}
		if err := c.put(ctx, refID, refBytes, refMeta); err != nil {
			return err
		}
		c.assign(m, refID, refMeta)
	}
	return nil
}

// record builds the serialized form of a node. memberIndex, when
// non-nil, maps component members to local indices; edges into the
// member set serialize as indices, everything else as ids.
func (c *compiler) record(index int, memberIndex map[int]int) (any, error) {
	node := c.graph.Node(index)
	child := func(key string, edge graph.Edge) (object.Child, error) {
		if !edge.Resolved() {
			return object.Child{}, fmt.Errorf("%s: edge %q is unresolved", node.Describe(index), key)
		}
		if mi, ok := memberIndex[edge.Node]; ok {
			return object.ChildIndex(mi), nil
		}
		id := c.ids[edge.Node]
		if id.IsZero() {
			return object.Child{}, fmt.Errorf("%s: child %q has no assigned id",
				node.Describe(index), key)
		}
		return object.ChildID(id), nil
	}

	switch node.Kind {
	case graph.KindDirectory:
		data := &object.DirectoryData{Entries: make(map[string]object.Child, len(node.Entries))}
		for name, edge := range node.Entries {
			ch, err := child(name, edge)
			if err != nil {
				return nil, err
			}
			data.Entries[name] = ch
		}
		return data, nil
	case graph.KindFile:
		if node.Contents.IsZero() {
			return nil, fmt.Errorf("%s: file has no contents blob", node.Describe(index))
		}
		data := &object.FileData{
			Contents:   node.Contents,
			Executable: node.Executable,
		}
		if len(node.Dependencies) > 0 {
			data.Dependencies = make(map[string]*object.Child, len(node.Dependencies))
			for specifier, edge := range node.Dependencies {
				ch, err := child(specifier, edge)
				if err != nil {
					return nil, err
				}
				data.Dependencies[specifier] = &ch
			}
		}
		return data, nil
	case graph.KindSymlink:
		data := &object.SymlinkData{Path: node.Target}
		if node.Artifact != nil {
			ch, err := child("(artifact)", *node.Artifact)
			if err != nil {
				return nil, err
			}
			data.Artifact = &ch
		}
		return data, nil
	default:
		return nil, fmt.Errorf("node %d has invalid kind %s", index, node.Kind)
	}
}

// foldChildren folds the metadata of a node's children into meta:
// the contents blob for files, and every edge target outside the
// member set. Edges inside the member set contribute nothing — their
// payloads are part of the enclosing graph object itself.
func (c *compiler) foldChildren(ctx context.Context, index int, memberIndex map[int]int, meta *object.Metadata) {
	node := c.graph.Node(index)
	if node.Kind == graph.KindFile {
		meta.Add(c.storedMetadata(ctx, node.Contents))
	}
	for _, ref := range c.graph.Outgoing(index) {
		edge, ok := c.graph.Edge(ref)
		if !ok || !edge.Resolved() {
			continue
		}
		if _, internal := memberIndex[edge.Node]; internal {
			continue
		}
		meta.Add(c.metas[edge.Node])
	}
}

// storedMetadata reads an object's metadata from the store. Missing
// rows degrade to unknown: the parent is marked incomplete rather than
// the compile failing, which is what lets a shallow store check in
// trees whose dependencies are not fully present.
func (c *compiler) storedMetadata(ctx context.Context, id object.ID) object.Metadata {
	meta, ok, err := c.store.GetMetadata(ctx, id)
	if err != nil || !ok {
		if err != nil {
			c.logger.Warn("reading metadata failed",
				"id", id.Short(),
				"error", err)
		}
		return object.Unknown()
	}
	return meta
}

func (c *compiler) put(ctx context.Context, id object.ID, data []byte, meta object.Metadata) error {
	if err := c.store.Put(ctx, id, data); err != nil {
		return fmt.Errorf("storing %s: %w", id.Short(), err)
	}
	if err := c.store.PutMetadata(ctx, id, meta); err != nil {
		return fmt.Errorf("storing metadata for %s: %w", id.Short(), err)
	}
	return nil
}

func (c *compiler) assign(node int, id object.ID, meta object.Metadata) {
	c.ids[node] = id
	c.metas[node] = meta
}
