// Copyright 2026 The Carton Authors
// SPDX-License-Identifier: Apache-2.0

package tag

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/zeebo/blake3"
	"golang.org/x/mod/semver"

	"github.com/carton-build/carton/lib/codec"
	"github.com/carton-build/carton/lib/object"
)

// Tag is one published (name, version) → object id mapping.
type Tag struct {
	Name    string    `cbor:"name"`
	Version string    `cbor:"version"`
	Target  object.ID `cbor:"target"`
}

// Registry lists published tags. List returns every tag matching the
// pattern, most-preferred first (newest by semver precedence). The
// unifier tries candidates in exactly the returned order and retries
// the next one on backtrack, so the ordering is part of the contract.
type Registry interface {
	List(ctx context.Context, pattern Pattern) ([]Tag, error)
}

// MaxNameLength is the maximum byte length of a package name.
const MaxNameLength = 256

// nameDomainKey is the BLAKE3 key for hashing tag names to
// filesystem-safe paths. A dedicated domain prevents collisions with
// object id hashes.
var nameDomainKey = [32]byte{
	'c', 'a', 'r', 't', 'o', 'n', '.', 't', 'a', 'g', '.', 'n', 'a', 'm', 'e',
}

// record is the on-disk representation of a published tag.
type record struct {
	Name        string    `cbor:"name"`
	Version     string    `cbor:"version"`
	Target      object.ID `cbor:"target"`
	PublishedAt time.Time `cbor:"published_at"`
}

// FsRegistry is a local filesystem tag registry: one CBOR file per
// published (name, version) pair, sharded by the hash of the tag key,
// with an in-memory index rebuilt by a directory scan at open time.
//
// FsRegistry is safe for concurrent reads with a single writer.
type FsRegistry struct {
	root    string
	mu      sync.RWMutex
	entries map[string][]Tag // package name → published tags, unsorted
}

// OpenFsRegistry opens (creating if necessary) a registry rooted at
// the given directory and loads all published tags into memory.
func OpenFsRegistry(root string) (*FsRegistry, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating registry directory %s: %w", root, err)
	}

	registry := &FsRegistry{
		root:    root,
		entries: make(map[string][]Tag),
	}
	if err := registry.scanAll(); err != nil {
		return nil, fmt.Errorf("scanning existing tags: %w", err)
	}
	return registry, nil
}

// List implements [Registry]: all tags for the pattern's name whose
// versions satisfy the constraint, newest first.
func (r *FsRegistry) List(_ context.Context, pattern Pattern) ([]Tag, error) {
	r.mu.RLock()
	published := r.entries[pattern.Name]
	r.mu.RUnlock()

	var results []Tag
	for _, tag := range published {
		if pattern.Matches(tag.Version) {
			results = append(results, tag)
		}
	}
	sort.Slice(results, func(i, j int) bool {
		return CompareVersions(results[i].Version, results[j].Version) > 0
	})
	return results, nil
}

// Publish creates a tag. Publishing the same (name, version) twice
// with a different target is an error — published versions are
// immutable. Re-publishing with the identical target is a no-op.
func (r *FsRegistry) Publish(name, version string, target object.ID, now time.Time) error {
	if name == "" {
		return fmt.Errorf("package name is required")
	}
	if len(name) > MaxNameLength {
		return fmt.Errorf("package name is %d bytes, maximum is %d", len(name), MaxNameLength)
	}
	if !semver.IsValid(canonical(version)) {
		return fmt.Errorf("invalid version %q", version)
	}
	if target.IsZero() {
		return fmt.Errorf("target object id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.entries[name] {
		if CompareVersions(existing.Version, version) == 0 {
			if existing.Target == target {
				return nil
			}
			return fmt.Errorf(
				"tag %s@%s is already published as %s (published versions are immutable)",
				name, version, existing.Target.Short(),
			)
		}
	}

	rec := record{Name: name, Version: version, Target: target, PublishedAt: now}
	if err := r.writeFile(rec); err != nil {
		return err
	}

	r.entries[name] = append(r.entries[name], Tag{Name: name, Version: version, Target: target})
	return nil
}

// Names returns all package names with at least one published tag,
// sorted. Used by the CLI's tag listing.
func (r *FsRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// scanAll walks the registry directory and loads every tag file into
// the in-memory index. Called once at open.
func (r *FsRegistry) scanAll() error {
	return filepath.WalkDir(r.root, func(path string, entry os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".cbor") {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading tag file %s: %w", path, err)
		}

		var rec record
		if err := codec.Unmarshal(data, &rec); err != nil {
			return fmt.Errorf("decoding tag file %s: %w", path, err)
		}
		if rec.Name == "" {
			// Skip corrupt or incomplete tag files.
			return nil
		}

		r.entries[rec.Name] = append(r.entries[rec.Name], Tag{
			Name:    rec.Name,
			Version: rec.Version,
			Target:  rec.Target,
		})
		return nil
	})
}

// writeFile atomically writes a tag record to its sharded path.
func (r *FsRegistry) writeFile(rec record) error {
	data, err := codec.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding tag %s@%s: %w", rec.Name, rec.Version, err)
	}

	finalPath := r.tagPath(rec.Name, rec.Version)
	if err := os.MkdirAll(filepath.Dir(finalPath), 0o755); err != nil {
		return fmt.Errorf("creating tag shard directory: %w", err)
	}

	tmpFile, err := os.CreateTemp(r.root, "tag-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp tag file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return fmt.Errorf("writing tag data: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("closing temp tag file: %w", err)
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		return fmt.Errorf("renaming tag file to %s: %w", finalPath, err)
	}

	success = true
	return nil
}

// tagPath returns the sharded filesystem path for a (name, version)
// pair. The key is hashed with BLAKE3 (nameDomainKey) to produce a
// filesystem-safe name regardless of what characters the package name
// contains.
func (r *FsRegistry) tagPath(name, version string) string {
	hasher, err := blake3.NewKeyed(nameDomainKey[:])
	if err != nil {
		panic("tag: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write([]byte(name + "@" + version))
	digest := hasher.Sum(nil)

	hexString := fmt.Sprintf("%x", digest)
	return filepath.Join(r.root, hexString[:2], hexString[2:4], hexString+".cbor")
}
