// Copyright 2026 The Carton Authors
// SPDX-License-Identifier: Apache-2.0

package checkout

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/carton-build/carton/lib/object"
	"github.com/carton-build/carton/lib/store"
)

// Config holds the checkout's collaborators.
type Config struct {
	// Store supplies the objects. Required.
	Store store.Store

	// ArtifactsPath is the directory artifact symlinks point into.
	// Required only for trees containing artifact symlinks.
	ArtifactsPath string

	// Logger receives operational messages. If nil, logging is
	// discarded.
	Logger *slog.Logger
}

// Checkout materializes the artifact id at path. Directory entries are
// written recursively; file dependencies are not followed — a checked
// out tree contains exactly the files of its own artifact, with
// artifact symlinks pointing into the artifacts directory.
func Checkout(ctx context.Context, id object.ID, path string, cfg Config) error {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	c := &checkout{cfg: cfg, logger: logger}
	if err := c.materialize(ctx, id, path); err != nil {
		return err
	}
	logger.Info("checked out artifact", "id", id.Short(), "path", path)
	return nil
}

type checkout struct {
	cfg    Config
	logger *slog.Logger
}

func (c *checkout) materialize(ctx context.Context, id object.ID, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := c.cfg.Store.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("fetching %s: %w", id.Short(), err)
	}
	record, err := object.Decode(id, data)
	if err != nil {
		return err
	}

	switch r := record.(type) {
	case []byte:
		return os.WriteFile(path, r, 0o644)
	case *object.DirectoryData:
		return c.writeDirectory(ctx, r, nil, object.ID{}, path)
	case *object.FileData:
		return c.writeFile(ctx, r, path)
	case *object.SymlinkData:
		return c.writeSymlink(r, nil, object.ID{}, path)
	case *object.ReferenceData:
		graphData, err := c.fetchGraph(ctx, r.Graph)
		if err != nil {
			return err
		}
		return c.materializeMember(ctx, graphData, r.Graph, r.Node, path)
	case *object.GraphData:
		return c.materializeMember(ctx, r, id, 0, path)
	default:
		return fmt.Errorf("cannot check out %s", id.Short())
	}
}

func (c *checkout) fetchGraph(ctx context.Context, id object.ID) (*object.GraphData, error) {
	data, err := c.cfg.Store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetching graph %s: %w", id.Short(), err)
	}
	record, err := object.Decode(id, data)
	if err != nil {
		return nil, err
	}
	graphData, ok := record.(*object.GraphData)
	if !ok {
		return nil, fmt.Errorf("%s is not a graph object", id.Short())
	}
	return graphData, nil
}

// materializeMember writes one member of a graph object. Local-index
// children stay within the same graph data.
func (c *checkout) materializeMember(ctx context.Context, g *object.GraphData, graphID object.ID, member int, path string) error {
	if member < 0 || member >= len(g.Nodes) {
		return fmt.Errorf("graph %s has no node %d", graphID.Short(), member)
	}
	node := g.Nodes[member]
	switch {
	case node.Directory != nil:
		return c.writeDirectory(ctx, node.Directory, g, graphID, path)
	case node.File != nil:
		return c.writeFile(ctx, node.File, path)
	case node.Symlink != nil:
		return c.writeSymlink(node.Symlink, g, graphID, path)
	default:
		return fmt.Errorf("graph %s node %d has no payload", graphID.Short(), member)
	}
}

// writeDirectory writes entries recursively. enclosing carries the
// graph data when the directory is a graph member, so local-index
// entries resolve against it.
func (c *checkout) writeDirectory(ctx context.Context, dir *object.DirectoryData, enclosing *object.GraphData, graphID object.ID, path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return err
	}
	for name, child := range dir.Entries {
		entryPath := filepath.Join(path, name)
		if child.Local {
			if enclosing == nil {
				return fmt.Errorf("%s: entry %q uses a local index outside a graph object", path, name)
			}
			if err := c.materializeMember(ctx, enclosing, graphID, child.Index, entryPath); err != nil {
				return err
			}
			continue
		}
		if err := c.materialize(ctx, child.ID, entryPath); err != nil {
			return err
		}
	}
	return nil
}

func (c *checkout) writeFile(ctx context.Context, file *object.FileData, path string) error {
	contents, err := c.cfg.Store.Get(ctx, file.Contents)
	if err != nil {
		return fmt.Errorf("fetching contents of %s: %w", path, err)
	}
	mode := os.FileMode(0o644)
	if file.Executable {
		mode = 0o755
	}
	return os.WriteFile(path, contents, mode)
}

func (c *checkout) writeSymlink(link *object.SymlinkData, enclosing *object.GraphData, graphID object.ID, path string) error {
	target := link.Path
	if link.Artifact != nil {
		var artifactID object.ID
		if link.Artifact.Local {
			if enclosing == nil {
				return fmt.Errorf("%s: artifact symlink uses a local index outside a graph object", path)
			}
			// A local member's standalone id is its reference object.
			_, refID, err := object.Encode(&object.ReferenceData{Graph: graphID, Node: link.Artifact.Index})
			if err != nil {
				return err
			}
			artifactID = refID
		} else {
			artifactID = link.Artifact.ID
		}
		if c.cfg.ArtifactsPath == "" {
			return fmt.Errorf("%s: artifact symlink needs an artifacts path", path)
		}
		target = filepath.Join(c.cfg.ArtifactsPath, artifactID.String())
		if link.Path != "" {
			target = filepath.Join(target, link.Path)
		}
	}
	if target == "" {
		return fmt.Errorf("%s: symlink has no target", path)
	}
	// Re-checkouts replace an existing link.
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return os.Symlink(target, path)
}
