// Copyright 2026 The Carton Authors
// SPDX-License-Identifier: Apache-2.0

package checkout

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/carton-build/carton/lib/checkin"
	"github.com/carton-build/carton/lib/object"
	"github.com/carton-build/carton/lib/store"
	"github.com/carton-build/carton/lib/testutil"
)

// checkinTree checks a written tree in and returns its root id.
func checkinTree(t *testing.T, st store.Store, entries map[string]string) object.ID {
	t.Helper()
	root := t.TempDir()
	testutil.WriteTree(t, root, entries)
	result, err := checkin.Checkin(context.Background(), root, checkin.Options{Deterministic: true},
		checkin.Config{Store: st})
	if err != nil {
		t.Fatalf("Checkin: %v", err)
	}
	return result.Root
}

func TestCheckoutRoundTrip(t *testing.T) {
	st := store.NewMemory()
	tree := map[string]string{
		"README":        "read me\n",
		"src/main.txt":  "main\n",
		"src/util.txt":  "util\n",
		"empty/":        "",
		"deep/a/b/c.txt": "nested\n",
	}
	rootID := checkinTree(t, st, tree)

	out := filepath.Join(t.TempDir(), "out")
	if err := Checkout(context.Background(), rootID, out, Config{Store: st}); err != nil {
		t.Fatalf("Checkout: %v", err)
	}

	got := testutil.ReadTree(t, out)
	if !reflect.DeepEqual(got, tree) {
		t.Errorf("round trip changed the tree:\n got %v\nwant %v", got, tree)
	}
}

func TestCheckoutPreservesExecutableBit(t *testing.T) {
	st := store.NewMemory()
	srcRoot := t.TempDir()
	testutil.WriteTree(t, srcRoot, map[string]string{"run.sh": "#!/bin/sh\n"})
	testutil.MakeExecutable(t, filepath.Join(srcRoot, "run.sh"))
	result, err := checkin.Checkin(context.Background(), srcRoot,
		checkin.Options{Deterministic: true}, checkin.Config{Store: st})
	if err != nil {
		t.Fatalf("Checkin: %v", err)
	}

	out := filepath.Join(t.TempDir(), "out")
	if err := Checkout(context.Background(), result.Root, out, Config{Store: st}); err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	info, err := os.Stat(filepath.Join(out, "run.sh"))
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.Mode().Perm()&0o111 == 0 {
		t.Error("executable bit lost across the round trip")
	}
}

func TestCheckoutPlainSymlink(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()

	data, id, err := object.Encode(&object.SymlinkData{Path: "/outside/target"})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if err := st.Put(ctx, id, data); err != nil {
		t.Fatalf("Put: %v", err)
	}

	out := filepath.Join(t.TempDir(), "link")
	if err := Checkout(ctx, id, out, Config{Store: st}); err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	target, err := os.Readlink(out)
	if err != nil {
		t.Fatalf("Readlink: %v", err)
	}
	if target != "/outside/target" {
		t.Errorf("symlink target = %q", target)
	}
}

func TestCheckoutArtifactSymlink(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()

	artifact := object.HashID(object.KindDirectory, []byte("some artifact"))
	child := object.ChildID(artifact)
	data, id, err := object.Encode(&object.SymlinkData{Artifact: &child, Path: "bin/tool"})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if err := st.Put(ctx, id, data); err != nil {
		t.Fatalf("Put: %v", err)
	}

	artifacts := t.TempDir()
	out := filepath.Join(t.TempDir(), "tool")
	if err := Checkout(ctx, id, out, Config{Store: st, ArtifactsPath: artifacts}); err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	target, err := os.Readlink(out)
	if err != nil {
		t.Fatalf("Readlink: %v", err)
	}
	want := filepath.Join(artifacts, artifact.String(), "bin/tool")
	if target != want {
		t.Errorf("artifact symlink target = %q, want %q", target, want)
	}

	// Without an artifacts path the same checkout must fail.
	if err := Checkout(ctx, id, filepath.Join(t.TempDir(), "x"), Config{Store: st}); err == nil {
		t.Error("artifact symlink checked out without an artifacts path")
	}
}

func TestCheckoutCyclicComponent(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()

	// A tree with mutually importing modules checks out as ordinary
	// files; dependency cycles live in the object encoding, not on
	// disk.
	tree := map[string]string{
		"a/carton.ts": `import b from "../b/carton.ts";` + "\n",
		"b/carton.ts": `import a from "../a/carton.ts";` + "\n",
	}
	rootID := checkinTree(t, st, tree)

	out := filepath.Join(t.TempDir(), "out")
	if err := Checkout(ctx, rootID, out, Config{Store: st}); err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	got := testutil.ReadTree(t, out)
	if !reflect.DeepEqual(got, tree) {
		t.Errorf("cyclic tree round trip:\n got %v\nwant %v", got, tree)
	}
}

func TestCheckoutReplacesExistingSymlink(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()

	data, id, err := object.Encode(&object.SymlinkData{Path: "new-target"})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if err := st.Put(ctx, id, data); err != nil {
		t.Fatalf("Put: %v", err)
	}

	out := filepath.Join(t.TempDir(), "link")
	if err := os.Symlink("old-target", out); err != nil {
		t.Fatalf("Symlink: %v", err)
	}
	if err := Checkout(ctx, id, out, Config{Store: st}); err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	target, err := os.Readlink(out)
	if err != nil {
		t.Fatalf("Readlink: %v", err)
	}
	if target != "new-target" {
		t.Errorf("symlink target = %q after re-checkout", target)
	}
}

func TestCheckoutMissingObjectFails(t *testing.T) {
	st := store.NewMemory()
	missing := object.HashID(object.KindDirectory, []byte("never stored"))
	err := Checkout(context.Background(), missing, filepath.Join(t.TempDir(), "out"),
		Config{Store: st})
	if err == nil {
		t.Error("missing object checked out")
	}
}
