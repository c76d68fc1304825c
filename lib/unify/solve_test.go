// Copyright 2026 The Carton Authors
// SPDX-License-Identifier: Apache-2.0

package unify

import (
	"context"
	"errors"
	"testing"

	"github.com/carton-build/carton/lib/graph"
	"github.com/carton-build/carton/lib/object"
	"github.com/carton-build/carton/lib/store"
	"github.com/carton-build/carton/lib/tag"
)

// fakeRegistry serves canned tags, newest first, and counts listings.
type fakeRegistry struct {
	tags  map[string][]tag.Tag
	lists int
}

func (r *fakeRegistry) List(_ context.Context, pattern tag.Pattern) ([]tag.Tag, error) {
	r.lists++
	var out []tag.Tag
	for _, candidate := range r.tags[pattern.Name] {
		if pattern.Matches(candidate.Version) {
			out = append(out, candidate)
		}
	}
	return out, nil
}

// storeFile stores a file object whose dependencies are tag or id
// references, returning its id.
func storeFile(t *testing.T, st store.Store, contents string, deps map[string]*object.Child) object.ID {
	t.Helper()
	ctx := context.Background()
	blobID, err := store.PutBlob(ctx, st, []byte(contents))
	if err != nil {
		t.Fatalf("PutBlob: %v", err)
	}
	data, id, err := object.Encode(&object.FileData{Contents: blobID, Dependencies: deps})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if err := st.Put(ctx, id, data); err != nil {
		t.Fatalf("Put: %v", err)
	}
	return id
}

// rootWith builds a graph holding a single file node whose
// dependencies are the given unresolved specifiers.
func rootWith(t *testing.T, specifiers ...string) (*graph.Graph, int) {
	t.Helper()
	deps := make(map[string]graph.Edge, len(specifiers))
	for _, specifier := range specifiers {
		reference, err := graph.ParseReference(specifier)
		if err != nil {
			t.Fatalf("ParseReference(%q): %v", specifier, err)
		}
		deps[specifier] = graph.UnresolvedEdge(reference)
	}
	g := graph.New()
	root := g.Add(graph.Node{Kind: graph.KindFile, Dependencies: deps})
	return g, root
}

func solve(t *testing.T, g *graph.Graph, root int, cfg Config) error {
	t.Helper()
	return New(g, cfg).Solve(context.Background(), root)
}

func TestSolveResolvesTag(t *testing.T) {
	st := store.NewMemory()
	pkg := storeFile(t, st, "export const v = 1;\n", nil)
	registry := &fakeRegistry{tags: map[string][]tag.Tag{
		"pkg": {{Name: "pkg", Version: "1.2.0", Target: pkg}},
	}}

	g, root := rootWith(t, "pkg@^1")
	err := solve(t, g, root, Config{Registry: registry, Importer: &StoreImporter{Store: st}})
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}

	edge := g.Node(root).Dependencies["pkg@^1"]
	if !edge.Resolved() {
		t.Fatal("tag edge left unresolved")
	}
	binding, ok := g.Binding("pkg")
	if !ok || binding.Tag.Version != "1.2.0" || binding.Node != edge.Node {
		t.Errorf("binding = %+v, %v", binding, ok)
	}
	if g.Node(edge.Node).ID != pkg {
		t.Error("resolved node does not carry the imported object id")
	}
}

func TestSolvePrefersNewestVersion(t *testing.T) {
	st := store.NewMemory()
	old := storeFile(t, st, "old\n", nil)
	newer := storeFile(t, st, "new\n", nil)
	registry := &fakeRegistry{tags: map[string][]tag.Tag{
		"pkg": {
			{Name: "pkg", Version: "1.5.0", Target: newer},
			{Name: "pkg", Version: "1.0.0", Target: old},
		},
	}}

	g, root := rootWith(t, "pkg@^1")
	if err := solve(t, g, root, Config{Registry: registry, Importer: &StoreImporter{Store: st}}); err != nil {
		t.Fatalf("Solve: %v", err)
	}
	binding, _ := g.Binding("pkg")
	if binding.Tag.Version != "1.5.0" {
		t.Errorf("selected %s, want the newest candidate 1.5.0", binding.Tag.Version)
	}
}

func TestSolveSharedDependencyOneVersion(t *testing.T) {
	st := store.NewMemory()
	shared := storeFile(t, st, "shared\n", nil)
	a := storeFile(t, st, "a\n", map[string]*object.Child{"shared@^1": nil})
	b := storeFile(t, st, "b\n", map[string]*object.Child{"shared@>=1.0.0": nil})
	registry := &fakeRegistry{tags: map[string][]tag.Tag{
		"a":      {{Name: "a", Version: "1.0.0", Target: a}},
		"b":      {{Name: "b", Version: "1.0.0", Target: b}},
		"shared": {{Name: "shared", Version: "1.0.0", Target: shared}},
	}}

	g, root := rootWith(t, "a@^1", "b@^1")
	if err := solve(t, g, root, Config{Registry: registry, Importer: &StoreImporter{Store: st}}); err != nil {
		t.Fatalf("Solve: %v", err)
	}

	aNode := g.Node(g.Node(root).Dependencies["a@^1"].Node)
	bNode := g.Node(g.Node(root).Dependencies["b@^1"].Node)
	aShared := aNode.Dependencies["shared@^1"]
	bShared := bNode.Dependencies["shared@>=1.0.0"]
	if !aShared.Resolved() || !bShared.Resolved() {
		t.Fatal("shared edges left unresolved")
	}
	if aShared.Node != bShared.Node {
		t.Errorf("shared dependency split across nodes %d and %d", aShared.Node, bShared.Node)
	}
}

func TestSolveBacktracksOnConflict(t *testing.T) {
	st := store.NewMemory()
	shared10 := storeFile(t, st, "shared 1.0\n", nil)
	shared11 := storeFile(t, st, "shared 1.1\n", nil)
	a := storeFile(t, st, "a\n", map[string]*object.Child{"shared@^1": nil})
	b := storeFile(t, st, "b\n", map[string]*object.Child{"shared@~1.0": nil})
	registry := &fakeRegistry{tags: map[string][]tag.Tag{
		"a": {{Name: "a", Version: "1.0.0", Target: a}},
		"b": {{Name: "b", Version: "1.0.0", Target: b}},
		"shared": {
			{Name: "shared", Version: "1.1.0", Target: shared11},
			{Name: "shared", Version: "1.0.0", Target: shared10},
		},
	}}

	// a's ^1 alone would pick shared 1.1.0; b's ~1.0 then conflicts,
	// and the solver must back up and settle on 1.0.0 for both.
	g, root := rootWith(t, "a@^1", "b@^1")
	if err := solve(t, g, root, Config{Registry: registry, Importer: &StoreImporter{Store: st}}); err != nil {
		t.Fatalf("Solve: %v", err)
	}

	binding, ok := g.Binding("shared")
	if !ok {
		t.Fatal("shared never bound")
	}
	if binding.Tag.Version != "1.0.0" {
		t.Errorf("shared bound to %s, want the backtracked 1.0.0", binding.Tag.Version)
	}
	if g.Node(binding.Node).ID != shared10 {
		t.Error("binding node does not hold the 1.0.0 object")
	}

	aShared := g.Node(g.Node(root).Dependencies["a@^1"].Node).Dependencies["shared@^1"]
	bShared := g.Node(g.Node(root).Dependencies["b@^1"].Node).Dependencies["shared@~1.0"]
	if !aShared.Resolved() || !bShared.Resolved() {
		t.Fatal("shared edges left unresolved after backtracking")
	}
	if aShared.Node != binding.Node || bShared.Node != binding.Node {
		t.Error("importers disagree with the binding after backtracking")
	}
}

func TestSolveUnsatisfiableConflict(t *testing.T) {
	st := store.NewMemory()
	shared1 := storeFile(t, st, "shared 1\n", nil)
	a := storeFile(t, st, "a\n", map[string]*object.Child{"shared@^1": nil})
	b := storeFile(t, st, "b\n", map[string]*object.Child{"shared@^2": nil})
	registry := &fakeRegistry{tags: map[string][]tag.Tag{
		"a":      {{Name: "a", Version: "1.0.0", Target: a}},
		"b":      {{Name: "b", Version: "1.0.0", Target: b}},
		"shared": {{Name: "shared", Version: "1.0.0", Target: shared1}},
	}}

	g, root := rootWith(t, "a@^1", "b@^1")
	err := solve(t, g, root, Config{Registry: registry, Importer: &StoreImporter{Store: st}})
	if err == nil {
		t.Fatal("incompatible constraints solved anyway")
	}
	var solveErr *SolveError
	if !errors.As(err, &solveErr) {
		t.Fatalf("error type = %T", err)
	}
}

func TestSolveNoCandidates(t *testing.T) {
	st := store.NewMemory()
	registry := &fakeRegistry{tags: map[string][]tag.Tag{}}

	g, root := rootWith(t, "ghost@^1")
	err := solve(t, g, root, Config{Registry: registry, Importer: &StoreImporter{Store: st}})
	var noMatch *NoMatchError
	if !errors.As(err, &noMatch) {
		t.Fatalf("error = %v, want a no-match error", err)
	}
	if noMatch.Pattern.Name != "ghost" {
		t.Errorf("no-match names %q", noMatch.Pattern.Name)
	}
}

func TestSolveSkipsUnimportableCandidate(t *testing.T) {
	st := store.NewMemory()
	good := storeFile(t, st, "good\n", nil)
	// The newest tag's target was never stored.
	missing := object.HashID(object.KindFile, []byte("never stored"))
	registry := &fakeRegistry{tags: map[string][]tag.Tag{
		"pkg": {
			{Name: "pkg", Version: "1.1.0", Target: missing},
			{Name: "pkg", Version: "1.0.0", Target: good},
		},
	}}

	g, root := rootWith(t, "pkg@^1")
	if err := solve(t, g, root, Config{Registry: registry, Importer: &StoreImporter{Store: st}}); err != nil {
		t.Fatalf("Solve: %v", err)
	}
	binding, _ := g.Binding("pkg")
	if binding.Tag.Version != "1.0.0" {
		t.Errorf("bound %s, want fallback to 1.0.0", binding.Tag.Version)
	}
}

func TestSolveLockedWithoutPinFails(t *testing.T) {
	st := store.NewMemory()
	registry := &fakeRegistry{tags: map[string][]tag.Tag{}}

	g, root := rootWith(t, "pkg@^1")
	err := solve(t, g, root, Config{
		Registry: registry,
		Importer: &StoreImporter{Store: st},
		Locked:   true,
	})
	var locked *LockedError
	if !errors.As(err, &locked) {
		t.Fatalf("error = %v, want a locked error", err)
	}
	if registry.lists != 0 {
		t.Errorf("locked solve consulted the registry %d times", registry.lists)
	}
}

func TestSolvePinnedVersionWins(t *testing.T) {
	st := store.NewMemory()
	pinned := storeFile(t, st, "pinned\n", nil)
	registry := &fakeRegistry{tags: map[string][]tag.Tag{
		"pkg": {{Name: "pkg", Version: "1.9.0", Target: storeFile(t, st, "newest\n", nil)}},
	}}

	g, root := rootWith(t, "pkg@^1")
	err := solve(t, g, root, Config{
		Registry: registry,
		Importer: &StoreImporter{Store: st},
		Locked:   true,
		Pinned: map[string]tag.Tag{
			"pkg": {Name: "pkg", Version: "1.2.3", Target: pinned},
		},
	})
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	binding, _ := g.Binding("pkg")
	if binding.Tag.Version != "1.2.3" {
		t.Errorf("bound %s, want the pinned 1.2.3", binding.Tag.Version)
	}
	if registry.lists != 0 {
		t.Errorf("pinned solve consulted the registry %d times", registry.lists)
	}
}

func TestSolvePinRejectedByPattern(t *testing.T) {
	st := store.NewMemory()
	pinned := storeFile(t, st, "pinned\n", nil)
	registry := &fakeRegistry{tags: map[string][]tag.Tag{}}

	// The pin predates a constraint change; it no longer satisfies the
	// pattern and the locked solve must fail rather than use it.
	g, root := rootWith(t, "pkg@^2")
	err := solve(t, g, root, Config{
		Registry: registry,
		Importer: &StoreImporter{Store: st},
		Locked:   true,
		Pinned: map[string]tag.Tag{
			"pkg": {Name: "pkg", Version: "1.2.3", Target: pinned},
		},
	})
	if err == nil {
		t.Fatal("stale pin satisfied a pattern it does not match")
	}
}

func TestSolveOverrideBypassesRegistry(t *testing.T) {
	st := store.NewMemory()
	registry := &fakeRegistry{tags: map[string][]tag.Tag{}}

	g, root := rootWith(t, "pkg@^1")
	overrideIndex := -1
	err := solve(t, g, root, Config{
		Registry:  registry,
		Importer:  &StoreImporter{Store: st},
		Overrides: map[string]string{"pkg": "/work/pkg"},
		ImportPath: func(_ context.Context, path string) (int, error) {
			if path != "/work/pkg" {
				t.Errorf("ImportPath got %q", path)
			}
			overrideIndex = g.Add(graph.Node{Path: path, Kind: graph.KindDirectory,
				Entries: map[string]graph.Edge{}})
			return overrideIndex, nil
		},
	})
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}

	edge := g.Node(root).Dependencies["pkg@^1"]
	if edge.Node != overrideIndex {
		t.Errorf("override edge points at %d, want %d", edge.Node, overrideIndex)
	}
	binding, _ := g.Binding("pkg")
	if binding.Tag.Version != "local" {
		t.Errorf("override binding version = %q", binding.Tag.Version)
	}
	if !binding.Tag.Target.IsZero() {
		t.Error("override binding carries a registry target")
	}
	if registry.lists != 0 {
		t.Errorf("override consulted the registry %d times", registry.lists)
	}
}

func TestSolveLiteralIDReference(t *testing.T) {
	st := store.NewMemory()
	pkg := storeFile(t, st, "by id\n", nil)

	g, root := rootWith(t, pkg.String())
	err := solve(t, g, root, Config{
		Registry: &fakeRegistry{},
		Importer: &StoreImporter{Store: st},
	})
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	edge := g.Node(root).Dependencies[pkg.String()]
	if !edge.Resolved() || g.Node(edge.Node).ID != pkg {
		t.Errorf("literal id edge = %+v", edge)
	}
}

func TestSolveTransitiveDependencies(t *testing.T) {
	st := store.NewMemory()
	leaf := storeFile(t, st, "leaf\n", nil)
	mid := storeFile(t, st, "mid\n", map[string]*object.Child{"leaf@^1": nil})
	registry := &fakeRegistry{tags: map[string][]tag.Tag{
		"mid":  {{Name: "mid", Version: "1.0.0", Target: mid}},
		"leaf": {{Name: "leaf", Version: "1.0.0", Target: leaf}},
	}}

	g, root := rootWith(t, "mid@^1")
	if err := solve(t, g, root, Config{Registry: registry, Importer: &StoreImporter{Store: st}}); err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if _, ok := g.Binding("leaf"); !ok {
		t.Error("transitive dependency never resolved")
	}
}

func TestResolvePackages(t *testing.T) {
	st := store.NewMemory()
	dep := storeFile(t, st, "dep\n", nil)
	app := storeFile(t, st, "app\n", map[string]*object.Child{"dep@^1": nil})
	registry := &fakeRegistry{tags: map[string][]tag.Tag{
		"dep": {{Name: "dep", Version: "1.4.0", Target: dep}},
	}}

	selected, err := ResolvePackages(context.Background(), st, registry, app, nil)
	if err != nil {
		t.Fatalf("ResolvePackages: %v", err)
	}
	if got := selected["dep"].Version; got != "1.4.0" {
		t.Errorf("dep resolved to %q", got)
	}
}
