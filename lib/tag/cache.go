// Copyright 2026 The Carton Authors
// SPDX-License-Identifier: Apache-2.0

package tag

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
)

// cacheSize is the number of distinct patterns whose listings are
// retained. Pattern sets in real trees are small; this is generous.
const cacheSize = 4096

// Cached wraps a Registry with an LRU cache keyed by pattern text.
// The scanner's background prefetch warms the cache so that the
// unifier's authoritative lookups become memory hits; both paths go
// through the same List method, so a prefetch failure simply leaves
// the entry cold and the unifier refetches.
type Cached struct {
	inner Registry
	cache *lru.Cache[string, []Tag]
}

// NewCached wraps a registry with a listing cache.
func NewCached(inner Registry) *Cached {
	cache, err := lru.New[string, []Tag](cacheSize)
	if err != nil {
		// lru.New only fails for non-positive sizes.
		panic("tag: LRU cache initialization failed: " + err.Error())
	}
	return &Cached{inner: inner, cache: cache}
}

// List implements [Registry], serving from cache when possible.
func (c *Cached) List(ctx context.Context, pattern Pattern) ([]Tag, error) {
	key := pattern.String()
	if tags, ok := c.cache.Get(key); ok {
		return tags, nil
	}

	tags, err := c.inner.List(ctx, pattern)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, tags)
	return tags, nil
}

// Prefetch warms the cache for a pattern, ignoring errors. Intended
// for the scanner's fire-and-forget background listing: a failure here
// costs nothing because the unifier will fetch authoritatively.
func (c *Cached) Prefetch(ctx context.Context, pattern Pattern) {
	_, _ = c.List(ctx, pattern)
}
