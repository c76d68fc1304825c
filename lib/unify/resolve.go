// Copyright 2026 The Carton Authors
// SPDX-License-Identifier: Apache-2.0

package unify

import (
	"context"
	"log/slog"

	"github.com/carton-build/carton/lib/graph"
	"github.com/carton-build/carton/lib/object"
	"github.com/carton-build/carton/lib/store"
	"github.com/carton-build/carton/lib/tag"
)

// ResolvePackages solves the tag dependencies of an already-stored
// artifact, without a filesystem tree in the picture: the artifact is
// imported as the root of a fresh graph and the same solver that backs
// checkin runs over it. The result maps each package name reachable
// from the root to the version the solve selected.
func ResolvePackages(ctx context.Context, st store.Store, registry tag.Registry, root object.ID, logger *slog.Logger) (map[string]tag.Tag, error) {
	g := graph.New()
	importer := &StoreImporter{Store: st}

	index, err := importer.Import(ctx, g, root)
	if err != nil {
		return nil, err
	}

	solver := New(g, Config{
		Registry: registry,
		Importer: importer,
		Logger:   logger,
	})
	if err := solver.Solve(ctx, index); err != nil {
		return nil, err
	}

	selected := make(map[string]tag.Tag)
	for name, binding := range g.Bindings() {
		selected[name] = binding.Tag
	}
	return selected, nil
}
