// Copyright 2026 The Carton Authors
// SPDX-License-Identifier: Apache-2.0

package checkin

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/carton-build/carton/lib/analyze"
	"github.com/carton-build/carton/lib/compile"
	"github.com/carton-build/carton/lib/object"
	"github.com/carton-build/carton/lib/scan"
	"github.com/carton-build/carton/lib/store"
	"github.com/carton-build/carton/lib/tag"
	"github.com/carton-build/carton/lib/unify"
)

// Options are the per-checkin knobs.
type Options struct {
	// Destructive stores file contents as byte-range references into
	// the original tree instead of copies. Requires a filesystem
	// store. The tree must not be modified afterwards.
	Destructive bool

	// Deterministic omits the generation timestamp from the lockfile,
	// making the checkin's entire output a pure function of its
	// inputs.
	Deterministic bool

	// Ignore is a list of filepath.Match patterns applied to entry
	// base names; matching entries are excluded. The lockfile itself
	// is always excluded.
	Ignore []string

	// Locked resolves tag patterns exclusively against the existing
	// lockfile; a pattern the lockfile does not pin fails the checkin.
	Locked bool

	// LocalDependencies overrides package names with local filesystem
	// paths, bypassing the registry for those names.
	LocalDependencies map[string]string
}

// Config holds the long-lived collaborators shared across checkins.
type Config struct {
	// Store receives every object the checkin produces. Required.
	Store store.Store

	// Registry lists candidate versions for tag references. Required
	// unless every checkin is locked.
	Registry tag.Registry

	// ArtifactsPath marks the checkout directory; symlinks targeting
	// it become artifact references.
	ArtifactsPath string

	// Parallelism bounds concurrent object writes during compilation.
	// Zero means GOMAXPROCS.
	Parallelism int

	// Logger receives operational messages. If nil, logging is
	// discarded.
	Logger *slog.Logger
}

// Result is a completed checkin: the root artifact's id and the
// lockfile recording the resolution, already written beside the tree.
type Result struct {
	Root     object.ID
	Lockfile *Lockfile
}

// Checkin scans the tree at root, resolves every reference, compiles
// the result into content-addressed objects, and writes a lockfile
// into the tree. Checking in an unchanged tree reproduces the same
// root id.
func Checkin(ctx context.Context, root string, opts Options, cfg Config) (*Result, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving checkin root %s: %w", root, err)
	}
	absRoot = filepath.Clean(absRoot)

	if opts.Destructive {
		if _, ok := cfg.Store.(*store.Fs); !ok {
			return nil, fmt.Errorf("destructive checkin requires a filesystem store")
		}
	}

	var cached *tag.Cached
	if cfg.Registry != nil {
		cached = tag.NewCached(cfg.Registry)
	}

	scanCfg := scan.Config{
		Store:         cfg.Store,
		Registry:      cached,
		Analyzer:      analyze.Module{},
		Diagnostics:   analyze.SlogSink{Logger: logger},
		Ignore:        append([]string{LockfileName}, opts.Ignore...),
		ArtifactsPath: cfg.ArtifactsPath,
		Destructive:   opts.Destructive,
		Logger:        logger,
	}

	start := time.Now()
	scanned, err := scan.Scan(ctx, absRoot, scanCfg)
	if err != nil {
		return nil, err
	}
	g := scanned.Graph
	logger.Debug("scanned tree",
		"root", absRoot,
		"nodes", g.Len(),
		"elapsed", time.Since(start))

	var pinned map[string]tag.Tag
	if opts.Locked {
		lf, err := ReadLockfile(filepath.Join(absRoot, LockfileName))
		if err != nil {
			return nil, fmt.Errorf("locked checkin: %w", err)
		}
		pinned = lf.Pinned()
	}

	// Override scans never run destructively: the override tree is not
	// owned by this checkin.
	overrideScanCfg := scanCfg
	overrideScanCfg.Destructive = false

	var registry tag.Registry
	if cached != nil {
		registry = cached
	} else {
		registry = emptyRegistry{}
	}

	solver := unify.New(g, unify.Config{
		Registry:  registry,
		Importer:  &unify.StoreImporter{Store: cfg.Store},
		Locked:    opts.Locked,
		Pinned:    pinned,
		Overrides: opts.LocalDependencies,
		ImportPath: func(ctx context.Context, path string) (int, error) {
			sub, err := scan.ScanInto(ctx, g, path, overrideScanCfg)
			if err != nil {
				return 0, err
			}
			return sub.Root, nil
		},
		Logger: logger,
	})
	if err := solver.Solve(ctx, scanned.Root); err != nil {
		return nil, err
	}

	rootID, err := compile.Compile(ctx, g, scanned.Root, compile.Config{
		Store:       cfg.Store,
		Parallelism: cfg.Parallelism,
		Logger:      logger,
	})
	if err != nil {
		return nil, err
	}

	if opts.Destructive && len(scanned.ExternalBlobs) > 0 {
		fs := cfg.Store.(*store.Fs)
		if err := fs.BindArtifact(ctx, scanned.ExternalBlobs, rootID); err != nil {
			return nil, err
		}
	}

	generated := ""
	if !opts.Deterministic {
		generated = time.Now().UTC().Format(time.RFC3339)
	}
	lf, err := newLockfile(g, scanned.Root, rootID, generated)
	if err != nil {
		return nil, err
	}
	if err := lf.Write(filepath.Join(absRoot, LockfileName)); err != nil {
		return nil, fmt.Errorf("writing lockfile: %w", err)
	}

	logger.Info("checked in tree",
		"root", rootID.Short(),
		"nodes", g.Len(),
		"elapsed", time.Since(start))
	return &Result{Root: rootID, Lockfile: lf}, nil
}

// emptyRegistry backs registry-less configurations; every listing is
// empty, so any unpinned tag reference fails with a no-match error.
type emptyRegistry struct{}

func (emptyRegistry) List(context.Context, tag.Pattern) ([]tag.Tag, error) {
	return nil, nil
}
