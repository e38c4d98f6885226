// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vidshelf Contributors

package auth_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/vidshelf/vidshelf/internal/auth"
	"github.com/vidshelf/vidshelf/pkg/errutil"
)

type mockHasher struct {
	mock.Mock
}

func (m *mockHasher) Hash(password string) (string, error) {
	args := m.Called(password)
	return args.String(0), args.Error(1)
}

func (m *mockHasher) Verify(password, hash string) (bool, error) {
	args := m.Called(password, hash)
	return args.Bool(0), args.Error(1)
}

func (m *mockHasher) NeedsUpgrade(hash string) bool {
	return m.Called(hash).Bool(0)
}

func TestHashPool_DelegatesToHasher(t *testing.T) {
	defer goleak.VerifyNone(t)

	hasher := &mockHasher{}
	hasher.On("Hash", "pw").Return("hashed", nil).Once()
	hasher.On("Verify", "pw", "hashed").Return(true, nil).Once()
	hasher.On("NeedsUpgrade", "hashed").Return(false).Once()

	pool := auth.NewHashPool(hasher, 1)
	ctx := context.Background()

	hash, err := pool.Hash(ctx, "pw")
	require.NoError(t, err)
	assert.Equal(t, "hashed", hash)

	ok, err := pool.Verify(ctx, "pw", "hashed")
	require.NoError(t, err)
	assert.True(t, ok)

	assert.False(t, pool.NeedsUpgrade("hashed"))
	hasher.AssertExpectations(t)
}

func TestHashPool_BoundsConcurrency(t *testing.T) {
	defer goleak.VerifyNone(t)

	const workers = 2
	release := make(chan struct{})
	var running, peak atomic.Int32

	hasher := &mockHasher{}
	hasher.On("Hash", mock.Anything).Run(func(mock.Arguments) {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		<-release
		running.Add(-1)
	}).Return("hashed", nil)

	pool := auth.NewHashPool(hasher, workers)

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := pool.Hash(context.Background(), "pw")
			assert.NoError(t, err)
		}()
	}

	require.Eventually(t, func() bool { return running.Load() == workers }, time.Second, time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(workers), peak.Load())
}

func TestHashPool_HonoursCancellation(t *testing.T) {
	defer goleak.VerifyNone(t)

	release := make(chan struct{})
	started := make(chan struct{})
	hasher := &mockHasher{}
	hasher.On("Hash", mock.Anything).Run(func(mock.Arguments) {
		close(started)
		<-release
	}).Return("hashed", nil).Once()

	pool := auth.NewHashPool(hasher, 1)

	t.Run("while running", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		errs := make(chan error, 1)
		go func() {
			_, err := pool.Hash(ctx, "pw")
			errs <- err
		}()
		<-started
		cancel()

		err := <-errs
		errutil.AssertErrorCode(t, err, "AUTH_HASH_CANCELLED")
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("while waiting for a worker", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		_, err := pool.Verify(ctx, "pw", "hashed")
		errutil.AssertErrorCode(t, err, "AUTH_HASH_CANCELLED")
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	// The abandoned hash still finishes and frees its worker.
	close(release)
	hasher.On("Verify", "pw", "hashed").Return(true, nil).Once()
	ok, err := pool.Verify(context.Background(), "pw", "hashed")
	require.NoError(t, err)
	assert.True(t, ok)
}
