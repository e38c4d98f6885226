// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vidshelf Contributors

package auth

import (
	"context"
	"sync"

	"github.com/oklog/ulid/v2"
)

type requestCacheKey struct{}

// requestCache memoizes user existence checks for the lifetime of one request.
type requestCache struct {
	mu     sync.Mutex
	exists map[ulid.ULID]bool
}

// WithRequestCache returns a context carrying a fresh per-request cache.
// An existing cache on ctx is kept.
func WithRequestCache(ctx context.Context) context.Context {
	if _, ok := ctx.Value(requestCacheKey{}).(*requestCache); ok {
		return ctx
	}
	return context.WithValue(ctx, requestCacheKey{}, &requestCache{exists: make(map[ulid.ULID]bool)})
}

func cachedExists(ctx context.Context, id ulid.ULID) (exists, ok bool) {
	c, found := ctx.Value(requestCacheKey{}).(*requestCache)
	if !found {
		return false, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	exists, ok = c.exists[id]
	return exists, ok
}

func storeExists(ctx context.Context, id ulid.ULID, exists bool) {
	c, found := ctx.Value(requestCacheKey{}).(*requestCache)
	if !found {
		return
	}
	c.mu.Lock()
	c.exists[id] = exists
	c.mu.Unlock()
}
