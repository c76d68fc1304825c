// Copyright 2026 The Carton Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for Carton packages.
//
// [WriteTree] and [ReadTree] declare and snapshot filesystem trees as
// flat maps, so tests can state fixtures and expected checkout results
// in one readable literal instead of a chain of os calls.
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
package testutil

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
)

// symlinkPrefix marks a tree entry value as a symlink target.
const symlinkPrefix = "-> "

// WriteTree creates the described tree under root. Keys are
// slash-separated relative paths; parent directories are created as
// needed. A key ending in "/" declares an empty directory. A value
// beginning with "-> " declares a symlink to the rest of the value;
// any other value is a regular file's contents.
//
//	testutil.WriteTree(t, dir, map[string]string{
//		"carton.ts":     `import foo from "./foo.ts";`,
//		"foo.ts":        "export default 7;",
//		"assets/":       "",
//		"link":          "-> foo.ts",
//	})
func WriteTree(t *testing.T, root string, entries map[string]string) {
	t.Helper()

	paths := make([]string, 0, len(entries))
	for path := range entries {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	for _, path := range paths {
		value := entries[path]
		target := filepath.Join(root, filepath.FromSlash(path))

		if strings.HasSuffix(path, "/") {
			if err := os.MkdirAll(target, 0o755); err != nil {
				t.Fatalf("creating directory %s: %v", target, err)
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			t.Fatalf("creating parent of %s: %v", target, err)
		}
		if linkTarget, ok := strings.CutPrefix(value, symlinkPrefix); ok {
			if err := os.Symlink(linkTarget, target); err != nil {
				t.Fatalf("creating symlink %s: %v", target, err)
			}
			continue
		}
		if err := os.WriteFile(target, []byte(value), 0o644); err != nil {
			t.Fatalf("writing %s: %v", target, err)
		}
	}
}

// ReadTree snapshots the tree under root in WriteTree's notation:
// files map to their contents, symlinks to "-> target", and empty
// directories to a key ending in "/". Non-empty directories appear
// only through their children.
func ReadTree(t *testing.T, root string) map[string]string {
	t.Helper()

	out := make(map[string]string)
	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		switch {
		case entry.IsDir():
			children, err := os.ReadDir(path)
			if err != nil {
				return err
			}
			if len(children) == 0 {
				out[rel+"/"] = ""
			}
		case entry.Type()&fs.ModeSymlink != 0:
			target, err := os.Readlink(path)
			if err != nil {
				return err
			}
			out[rel] = symlinkPrefix + target
		default:
			contents, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			out[rel] = string(contents)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("reading tree %s: %v", root, err)
	}
	return out
}

// MakeExecutable sets the executable bits on path.
func MakeExecutable(t *testing.T, path string) {
	t.Helper()
	if err := os.Chmod(path, 0o755); err != nil {
		t.Fatalf("chmod %s: %v", path, err)
	}
}
