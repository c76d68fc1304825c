// Copyright 2026 The Carton Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/carton-build/carton/lib/object"
)

// Store is the object store consumed by the checkin pipeline. Objects
// are immutable and writes are idempotent: the same id always carries
// the same bytes, so a repeated Put is a no-op and needs no
// transactional rollback.
//
// GetMetadata returns ok=false for ids the store holds no metadata row
// for; callers treat such objects as incomplete with no metadata
// contribution.
type Store interface {
	Get(ctx context.Context, id object.ID) ([]byte, error)
	Put(ctx context.Context, id object.ID, data []byte) error
	Has(ctx context.Context, id object.ID) (bool, error)
	GetMetadata(ctx context.Context, id object.ID) (object.Metadata, bool, error)
	PutMetadata(ctx context.Context, id object.ID, metadata object.Metadata) error
}

// PutBlob hashes raw content in the blob domain, stores it, and
// records its leaf metadata. Returns the blob id. Identical bytes
// always produce the identical id, so storing the same content twice
// lands on one object.
func PutBlob(ctx context.Context, s Store, contents []byte) (object.ID, error) {
	id := object.HashID(object.KindBlob, contents)
	if err := s.Put(ctx, id, contents); err != nil {
		return object.ID{}, err
	}
	if err := s.PutMetadata(ctx, id, object.Leaf(uint64(len(contents)))); err != nil {
		return object.ID{}, err
	}
	return id, nil
}

// Memory is an in-memory Store for tests and ephemeral solves.
// Safe for concurrent use.
type Memory struct {
	mu       sync.RWMutex
	objects  map[object.ID][]byte
	metadata map[object.ID]object.Metadata
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		objects:  make(map[object.ID][]byte),
		metadata: make(map[object.ID]object.Metadata),
	}
}

// Get implements [Store].
func (m *Memory) Get(_ context.Context, id object.ID) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.objects[id]
	if !ok {
		return nil, fmt.Errorf("object %s not found", id.Short())
	}
	return data, nil
}

// Put implements [Store]. The data is verified against the id before
// insertion — a mismatch indicates a caller bug, not an input error.
func (m *Memory) Put(_ context.Context, id object.ID, data []byte) error {
	if computed := object.HashID(id.Kind(), data); computed != id {
		return fmt.Errorf("object bytes hash to %s, not %s", computed.Short(), id.Short())
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.objects[id]; exists {
		// Idempotent: identical by construction.
		return nil
	}
	stored := make([]byte, len(data))
	copy(stored, data)
	m.objects[id] = stored
	return nil
}

// Has implements [Store].
func (m *Memory) Has(_ context.Context, id object.ID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.objects[id]
	return ok, nil
}

// GetMetadata implements [Store].
func (m *Memory) GetMetadata(_ context.Context, id object.ID) (object.Metadata, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	metadata, ok := m.metadata[id]
	return metadata, ok, nil
}

// PutMetadata implements [Store].
func (m *Memory) PutMetadata(_ context.Context, id object.ID, metadata object.Metadata) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.metadata[id] = metadata
	return nil
}

// Len returns the number of stored objects. Test helper.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.objects)
}
