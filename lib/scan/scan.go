// Copyright 2026 The Carton Authors
// SPDX-License-Identifier: Apache-2.0

package scan

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/carton-build/carton/lib/analyze"
	"github.com/carton-build/carton/lib/graph"
	"github.com/carton-build/carton/lib/object"
	"github.com/carton-build/carton/lib/store"
	"github.com/carton-build/carton/lib/tag"
)

// prefetchLimit bounds the number of concurrent background tag
// listings kicked off during scanning.
const prefetchLimit = 8

// Config holds the scanner's collaborators and options.
type Config struct {
	// Store receives file content blobs as they are scanned.
	Store store.Store

	// Registry, when non-nil, is warmed with a best-effort background
	// listing for every tag-pattern reference the scanner encounters.
	// Prefetch failures are ignored — the unifier fetches
	// authoritatively.
	Registry *tag.Cached

	// Analyzer extracts import specifiers from module files. Required.
	Analyzer analyze.Analyzer

	// Diagnostics receives analyzer warnings. Required.
	Diagnostics analyze.Sink

	// Ignore is a list of filepath.Match patterns applied to entry
	// base names; matching entries are excluded from the scan.
	Ignore []string

	// ArtifactsPath, when set, marks the directory under which symlink
	// targets are treated as references to checked-out artifacts. The
	// first path component below it must be an artifact id.
	ArtifactsPath string

	// Destructive stores file contents as byte-range references into
	// the original files instead of copies. Requires Store to be a
	// *store.Fs.
	Destructive bool

	// Logger receives operational messages. If nil, logging is
	// discarded.
	Logger *slog.Logger
}

// Result is the scanner's output: the graph, the root node's index,
// and (for destructive scans) the blob ids recorded by reference,
// which the caller must bind to the final artifact id.
type Result struct {
	Graph         *graph.Graph
	Root          int
	ExternalBlobs []object.ID
}

// scanner carries the state of one tree walk.
type scanner struct {
	cfg      Config
	graph    *graph.Graph
	root     string
	logger   *slog.Logger
	prefetch *errgroup.Group
	external []object.ID
}

// Scan walks the tree rooted at root and builds its graph. Directory
// entries, path imports, and in-tree symlink targets are visited
// recursively and recorded as resolved edges; tag-pattern and
// literal-object references are left unresolved for the unifier.
//
// Unreadable paths and unsupported file types are fatal for the
// subtree that contains them and abort the scan. Analyzer problems are
// diagnostics only.
func Scan(ctx context.Context, root string, cfg Config) (*Result, error) {
	return ScanInto(ctx, graph.New(), root, cfg)
}

// ScanInto scans into an existing graph, reusing nodes it already
// holds for any shared canonical paths. Used to bring local dependency
// overrides into the graph of an in-progress solve.
func ScanInto(ctx context.Context, g *graph.Graph, root string, cfg Config) (*Result, error) {
	if cfg.Analyzer == nil {
		return nil, fmt.Errorf("scan: Analyzer is required")
	}
	if cfg.Diagnostics == nil {
		return nil, fmt.Errorf("scan: Diagnostics is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("scan: Store is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving scan root %s: %w", root, err)
	}

	prefetch := &errgroup.Group{}
	prefetch.SetLimit(prefetchLimit)

	s := &scanner{
		cfg:      cfg,
		graph:    g,
		root:     filepath.Clean(absRoot),
		logger:   logger,
		prefetch: prefetch,
	}

	rootIndex, err := s.visit(ctx, s.root)

	// Prefetch tasks only warm the registry cache; their errors are
	// intentionally dropped.
	_ = s.prefetch.Wait()

	if err != nil {
		return nil, err
	}

	return &Result{Graph: s.graph, Root: rootIndex, ExternalBlobs: s.external}, nil
}

// visit scans one filesystem entry, reusing the existing node when the
// canonical path was already seen. Nodes are added to the arena before
// their children are visited so that cycles (a symlink targeting an
// ancestor, modules importing each other's directories) resolve to the
// in-progress node instead of recursing forever.
func (s *scanner) visit(ctx context.Context, path string) (int, error) {
	canonical := filepath.Clean(path)
	if index, ok := s.graph.LookupPath(canonical); ok {
		return index, nil
	}

	info, err := os.Lstat(canonical)
	if err != nil {
		return 0, fmt.Errorf("scanning %s: %w", canonical, err)
	}

	switch {
	case info.IsDir():
		return s.visitDirectory(ctx, canonical)
	case info.Mode()&fs.ModeSymlink != 0:
		return s.visitSymlink(ctx, canonical)
	case info.Mode().IsRegular():
		return s.visitFile(ctx, canonical, info)
	default:
		return 0, fmt.Errorf("scanning %s: unsupported file type %s", canonical, info.Mode().Type())
	}
}

func (s *scanner) visitDirectory(ctx context.Context, path string) (int, error) {
	index := s.graph.Add(graph.Node{
		Path:    path,
		Kind:    graph.KindDirectory,
		Entries: make(map[string]graph.Edge),
	})

	entries, err := os.ReadDir(path)
	if err != nil {
		return 0, fmt.Errorf("listing directory %s: %w", path, err)
	}

	for _, entry := range entries {
		if s.ignored(entry.Name()) {
			continue
		}
		childIndex, err := s.visit(ctx, filepath.Join(path, entry.Name()))
		if err != nil {
			return 0, err
		}
		s.graph.Node(index).Entries[entry.Name()] = graph.ResolvedEdge(childIndex)
		s.graph.AddReferrer(childIndex, index)
	}

	return index, nil
}

func (s *scanner) visitFile(ctx context.Context, path string, info fs.FileInfo) (int, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("reading file %s: %w", path, err)
	}

	blobID, err := s.storeBlob(ctx, path, contents)
	if err != nil {
		return 0, err
	}

	index := s.graph.Add(graph.Node{
		Path:         path,
		Kind:         graph.KindFile,
		Contents:     blobID,
		Dependencies: make(map[string]graph.Edge),
		Executable:   info.Mode().Perm()&0o111 != 0,
	})

	specifiers, err := s.dependencySpecifiers(path, contents)
	if err != nil {
		return 0, err
	}

	for _, specifier := range specifiers {
		if _, exists := s.graph.Node(index).Dependencies[specifier]; exists {
			continue
		}
		reference, err := graph.ParseReference(specifier)
		if err != nil {
			s.cfg.Diagnostics.Emit(analyze.SeverityWarning,
				fmt.Sprintf("%s: %v", path, err))
			continue
		}

		switch {
		case reference.Path != "":
			target := filepath.Join(filepath.Dir(path), reference.Path)
			childIndex, err := s.visit(ctx, target)
			if err != nil {
				return 0, err
			}
			s.graph.Node(index).Dependencies[specifier] = graph.ResolvedEdge(childIndex)
			s.graph.AddReferrer(childIndex, index)

		case reference.Tag != nil:
			s.graph.Node(index).Dependencies[specifier] = graph.UnresolvedEdge(reference)
			if s.cfg.Registry != nil {
				pattern := *reference.Tag
				s.prefetch.Go(func() error {
					s.cfg.Registry.Prefetch(ctx, pattern)
					return nil
				})
			}

		default:
			s.graph.Node(index).Dependencies[specifier] = graph.UnresolvedEdge(reference)
		}
	}

	return index, nil
}

func (s *scanner) visitSymlink(ctx context.Context, path string) (int, error) {
	linkTarget, err := os.Readlink(path)
	if err != nil {
		return 0, fmt.Errorf("reading symlink %s: %w", path, err)
	}

	resolved := linkTarget
	if !filepath.IsAbs(resolved) {
		resolved = filepath.Join(filepath.Dir(path), linkTarget)
	}
	resolved = filepath.Clean(resolved)

	// Symlinks into the artifacts directory reference other artifacts
	// by id; the id is the first path component below the directory.
	if s.cfg.ArtifactsPath != "" {
		if relative, ok := pathWithin(s.cfg.ArtifactsPath, resolved); ok {
			idText, subpath, _ := strings.Cut(relative, string(filepath.Separator))
			artifactID, err := object.ParseID(idText)
			if err != nil {
				return 0, fmt.Errorf("symlink %s targets the artifacts directory but %q is not an artifact id: %w",
					path, idText, err)
			}
			edge := graph.UnresolvedEdge(graph.Reference{ID: artifactID})
			return s.graph.Add(graph.Node{
				Path:     path,
				Kind:     graph.KindSymlink,
				Artifact: &edge,
				Target:   subpath,
			}), nil
		}
	}

	// Symlinks whose target lies inside the tree being scanned become
	// graph edges, which is how ancestor-targeting links produce
	// cycles instead of infinite recursion.
	if _, ok := pathWithin(s.root, resolved); ok {
		targetIndex, err := s.visit(ctx, resolved)
		if err != nil {
			return 0, err
		}
		edge := graph.ResolvedEdge(targetIndex)
		index := s.graph.Add(graph.Node{
			Path:     path,
			Kind:     graph.KindSymlink,
			Artifact: &edge,
		})
		s.graph.AddReferrer(targetIndex, index)
		return index, nil
	}

	// Everything else stays a literal path symlink.
	return s.graph.Add(graph.Node{
		Path:   path,
		Kind:   graph.KindSymlink,
		Target: linkTarget,
	}), nil
}

// storeBlob stores file contents, either by copy or (destructive mode)
// by byte-range reference into the original file.
func (s *scanner) storeBlob(ctx context.Context, path string, contents []byte) (object.ID, error) {
	if s.cfg.Destructive {
		fsStore, ok := s.cfg.Store.(*store.Fs)
		if !ok {
			return object.ID{}, fmt.Errorf("destructive checkin requires a filesystem store")
		}
		id, err := fsStore.PutBlobExternal(ctx, contents, path, 0)
		if err != nil {
			return object.ID{}, fmt.Errorf("recording %s by reference: %w", path, err)
		}
		s.external = append(s.external, id)
		return id, nil
	}

	id, err := store.PutBlob(ctx, s.cfg.Store, contents)
	if err != nil {
		return object.ID{}, fmt.Errorf("storing contents of %s: %w", path, err)
	}
	return id, nil
}

// dependencySpecifiers gathers a file's dependency references: the
// sidecar's explicit list, plus static analysis for module files.
func (s *scanner) dependencySpecifiers(path string, contents []byte) ([]string, error) {
	specifiers, err := readSidecar(path)
	if err != nil {
		// A present-but-unreadable sidecar is a diagnostic, not a scan
		// failure; the file simply keeps only its analyzed imports.
		s.cfg.Diagnostics.Emit(analyze.SeverityWarning,
			fmt.Sprintf("%s: reading dependency sidecar: %v", path, err))
	}

	if filepath.Base(path) == analyze.ModuleFilename {
		imports, diagnostics := s.cfg.Analyzer.Analyze(path, contents)
		for _, diagnostic := range diagnostics {
			s.cfg.Diagnostics.Emit(diagnostic.Severity, diagnostic.Message)
		}
		for _, imported := range imports {
			specifiers = append(specifiers, imported.Specifier)
		}
	}

	return specifiers, nil
}

// ignored reports whether an entry base name matches any exclude
// pattern. Malformed patterns never match.
func (s *scanner) ignored(name string) bool {
	for _, pattern := range s.cfg.Ignore {
		if matched, err := filepath.Match(pattern, name); err == nil && matched {
			return true
		}
	}
	return false
}

// pathWithin reports whether path lies inside root, returning the
// relative remainder when it does.
func pathWithin(root, path string) (string, bool) {
	relative, err := filepath.Rel(root, path)
	if err != nil {
		return "", false
	}
	if relative == ".." || strings.HasPrefix(relative, ".."+string(filepath.Separator)) {
		return "", false
	}
	return relative, true
}
