// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vidshelf Contributors

package auth

import (
	"context"
	"runtime"
	"time"

	"github.com/samber/oops"
	"golang.org/x/sync/semaphore"

	"github.com/vidshelf/vidshelf/pkg/errutil"
)

// HashPool runs password hashing on a bounded set of workers so that
// memory-hard hashing cannot starve the rest of the process. A caller whose
// context ends while waiting gets an error; work already started finishes in
// the background and frees its slot.
type HashPool struct {
	hasher PasswordHasher
	sem    *semaphore.Weighted
}

// NewHashPool wraps hasher with at most workers concurrent operations.
// workers <= 0 means GOMAXPROCS.
func NewHashPool(hasher PasswordHasher, workers int) *HashPool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &HashPool{
		hasher: hasher,
		sem:    semaphore.NewWeighted(int64(workers)),
	}
}

type hashResult struct {
	hash string
	ok   bool
	err  error
}

// Hash hashes password on a pool worker.
func (p *HashPool) Hash(ctx context.Context, password string) (string, error) {
	res, err := p.run(ctx, "hash", func() hashResult {
		h, err := p.hasher.Hash(password)
		return hashResult{hash: h, err: err}
	})
	if err != nil {
		return "", err
	}
	return res.hash, res.err
}

// Verify checks password against hash on a pool worker.
func (p *HashPool) Verify(ctx context.Context, password, hash string) (bool, error) {
	res, err := p.run(ctx, "verify", func() hashResult {
		ok, err := p.hasher.Verify(password, hash)
		return hashResult{ok: ok, err: err}
	})
	if err != nil {
		return false, err
	}
	return res.ok, res.err
}

// NeedsUpgrade is cheap and runs inline.
func (p *HashPool) NeedsUpgrade(hash string) bool {
	return p.hasher.NeedsUpgrade(hash)
}

func (p *HashPool) run(ctx context.Context, op string, fn func() hashResult) (hashResult, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return hashResult{}, oops.Code("AUTH_HASH_CANCELLED").
			With("operation", op).
			Wrap(errutil.WithKind(errutil.ErrInternal, err))
	}

	done := make(chan hashResult, 1)
	go func() {
		defer p.sem.Release(1)
		start := time.Now()
		res := fn()
		hashDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
		done <- res
	}()

	select {
	case res := <-done:
		return res, nil
	case <-ctx.Done():
		return hashResult{}, oops.Code("AUTH_HASH_CANCELLED").
			With("operation", op).
			Wrap(errutil.WithKind(errutil.ErrInternal, ctx.Err()))
	}
}
