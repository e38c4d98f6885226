// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vidshelf Contributors

package library_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidshelf/vidshelf/internal/library"
	"github.com/vidshelf/vidshelf/internal/library/librarytest"
	"github.com/vidshelf/vidshelf/pkg/errutil"
)

type collectionFixture struct {
	manager     *library.CollectionManager
	registry    *library.Registry
	collections *librarytest.CollectionRepository
	items       *librarytest.ItemRepository
}

func newCollectionFixture(t *testing.T) *collectionFixture {
	t.Helper()
	items := librarytest.NewItemRepository()
	collections := librarytest.NewCollectionRepository()
	reg, _ := newRegistry(t, items, everyone())
	mgr, err := library.NewCollectionManager(collections, reg, library.CollectionConfig{}, nil)
	require.NoError(t, err)
	return &collectionFixture{manager: mgr, registry: reg, collections: collections, items: items}
}

func TestCollectionManager_Create(t *testing.T) {
	ctx := context.Background()
	f := newCollectionFixture(t)
	owner := ulid.Make()

	c, err := f.manager.Create(ctx, owner, " Road trip ")
	require.NoError(t, err)
	assert.Equal(t, "Road trip", c.Title)
	assert.Equal(t, int64(1), c.Version)
	assert.Empty(t, c.MemberIDs)
	assert.Equal(t, "/playlists/"+c.ID.String(), c.Path())

	_, err = f.manager.Create(ctx, owner, "   ")
	errutil.AssertErrorCode(t, err, "COLLECTION_TITLE_REQUIRED")

	_, err = f.manager.Create(ctx, owner, strings.Repeat("x", library.MaxTitleLength+1))
	errutil.AssertErrorKind(t, err, errutil.ErrValidation)

	other, err := f.manager.Create(ctx, ulid.Make(), "Not mine")
	require.NoError(t, err)

	mine, err := f.manager.ListByOwner(ctx, owner)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, c.ID, mine[0].ID)

	_, err = f.manager.GetOwned(ctx, other.ID, owner)
	errutil.AssertErrorKind(t, err, errutil.ErrNotFound)
}

func TestCollectionManager_ListRecent(t *testing.T) {
	ctx := context.Background()
	f := newCollectionFixture(t)
	var last *library.Collection
	for i := 0; i < library.DefaultListLimit+5; i++ {
		c, err := f.manager.Create(ctx, ulid.Make(), fmt.Sprintf("Mix %d", i))
		require.NoError(t, err)
		last = c
	}

	tests := []struct {
		limit int
		want  int
	}{
		{0, library.DefaultListLimit},
		{-1, library.DefaultListLimit},
		{3, 3},
		{1000, library.DefaultListLimit},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("limit_%d", tt.limit), func(t *testing.T) {
			got, err := f.manager.ListRecent(ctx, tt.limit)
			require.NoError(t, err)
			require.Len(t, got, tt.want)
			assert.Equal(t, last.ID, got[0].ID, "newest first across owners")
		})
	}
}

func TestCollectionManager_AppendMember(t *testing.T) {
	ctx := context.Background()
	f := newCollectionFixture(t)
	c, err := f.manager.Create(ctx, ulid.Make(), "Mix")
	require.NoError(t, err)

	_, err = f.manager.AppendMember(ctx, c.ID, "a")
	require.NoError(t, err)
	got, err := f.manager.AppendMember(ctx, c.ID, "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "a"}, got.MemberIDs, "duplicates are allowed")
	assert.Equal(t, int64(3), got.Version)

	_, err = f.manager.AppendMember(ctx, ulid.Make(), "a")
	errutil.AssertErrorKind(t, err, errutil.ErrNotFound)

	_, err = f.manager.AppendMember(ctx, c.ID, "")
	errutil.AssertErrorKind(t, err, errutil.ErrValidation)
}

func TestCollectionManager_AppendMember_RetriesOnConflict(t *testing.T) {
	ctx := context.Background()
	f := newCollectionFixture(t)
	c, err := f.manager.Create(ctx, ulid.Make(), "Mix")
	require.NoError(t, err)

	// A competing writer sneaks in before our first write.
	interfered := false
	f.collections.BeforeWrite = func(id ulid.ULID) {
		if interfered {
			return
		}
		interfered = true
		_, err := f.collections.SetMembers(ctx, id, []string{"theirs"}, c.UpdatedAt)
		require.NoError(t, err)
	}

	got, err := f.manager.AppendMember(ctx, c.ID, "ours")
	require.NoError(t, err)
	assert.Equal(t, []string{"theirs", "ours"}, got.MemberIDs)
}

func TestCollectionManager_AppendMember_GivesUpUnderContention(t *testing.T) {
	ctx := context.Background()
	items := librarytest.NewItemRepository()
	collections := librarytest.NewCollectionRepository()
	reg, _ := newRegistry(t, items, everyone())
	mgr, err := library.NewCollectionManager(collections, reg, library.CollectionConfig{CASAttempts: 3}, nil)
	require.NoError(t, err)
	c, err := mgr.Create(ctx, ulid.Make(), "Mix")
	require.NoError(t, err)

	collections.BeforeWrite = func(id ulid.ULID) {
		_, _ = collections.SetMembers(ctx, id, []string{"noise"}, c.UpdatedAt)
	}

	_, err = mgr.AppendMember(ctx, c.ID, "ours")
	errutil.AssertErrorKind(t, err, errutil.ErrConflict)
	errutil.AssertErrorContext(t, err, "operation", "append")
}

func TestCollectionManager_ConcurrentAppendsAreAllKept(t *testing.T) {
	ctx := context.Background()
	f := newCollectionFixture(t)
	c, err := f.manager.Create(ctx, ulid.Make(), "Party")
	require.NoError(t, err)

	const writers = 8
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.manager.AppendMember(ctx, c.ID, fmt.Sprintf("v%d", i))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	got, err := f.manager.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Len(t, got.MemberIDs, writers)
	for i := 0; i < writers; i++ {
		assert.Contains(t, got.MemberIDs, fmt.Sprintf("v%d", i))
	}
	assert.Equal(t, int64(1+writers), got.Version)
}

func TestCollectionManager_ReplaceMembers(t *testing.T) {
	ctx := context.Background()
	f := newCollectionFixture(t)
	c, err := f.manager.Create(ctx, ulid.Make(), "Mix")
	require.NoError(t, err)
	_, err = f.manager.AppendMember(ctx, c.ID, "old")
	require.NoError(t, err)

	ordered := []string{"c", "a", "b", "a"}
	got, err := f.manager.ReplaceMembers(ctx, c.ID, ordered)
	require.NoError(t, err)
	assert.Equal(t, ordered, got.MemberIDs)

	ordered[0] = "mutated"
	stored, err := f.manager.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a", "b", "a"}, stored.MemberIDs, "caller's slice is not retained")

	emptied, err := f.manager.ReplaceMembers(ctx, c.ID, nil)
	require.NoError(t, err)
	assert.Empty(t, emptied.MemberIDs)

	_, err = f.manager.ReplaceMembers(ctx, ulid.Make(), []string{"x"})
	errutil.AssertErrorKind(t, err, errutil.ErrNotFound)
}

func TestCollectionManager_ReplaceRejectsEmptyMembers(t *testing.T) {
	ctx := context.Background()
	f := newCollectionFixture(t)
	c, err := f.manager.Create(ctx, ulid.Make(), "Mix")
	require.NoError(t, err)
	c, err = f.manager.ReplaceMembers(ctx, c.ID, []string{"keep"})
	require.NoError(t, err)

	tests := []struct {
		name    string
		replace func([]string) error
	}{
		{"replace", func(ordered []string) error {
			_, err := f.manager.ReplaceMembers(ctx, c.ID, ordered)
			return err
		}},
		{"replace if version", func(ordered []string) error {
			_, err := f.manager.ReplaceMembersIfVersion(ctx, c.ID, c.Version, ordered)
			return err
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.replace([]string{"a", "", "b"})
			errutil.AssertErrorCode(t, err, "COLLECTION_INVALID_MEMBER")
			errutil.AssertErrorKind(t, err, errutil.ErrValidation)
			errutil.AssertErrorContext(t, err, "index", 1)

			err = tt.replace([]string{"", ""})
			errutil.AssertErrorCode(t, err, "COLLECTION_INVALID_MEMBER")

			stored, err := f.manager.Get(ctx, c.ID)
			require.NoError(t, err)
			assert.Equal(t, []string{"keep"}, stored.MemberIDs)
			assert.Equal(t, c.Version, stored.Version)
		})
	}
}

func TestCollectionManager_ConcurrentReplacesAreTotal(t *testing.T) {
	ctx := context.Background()
	f := newCollectionFixture(t)
	c, err := f.manager.Create(ctx, ulid.Make(), "Mix")
	require.NoError(t, err)

	lists := [][]string{{"a", "b", "c"}, {"x", "y"}, {"1", "2", "3", "4"}}
	var wg sync.WaitGroup
	for _, l := range lists {
		wg.Add(1)
		go func(l []string) {
			defer wg.Done()
			_, err := f.manager.ReplaceMembers(ctx, c.ID, l)
			assert.NoError(t, err)
		}(l)
	}
	wg.Wait()

	got, err := f.manager.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Contains(t, lists, got.MemberIDs, "final members equal exactly one of the written lists")
}

func TestCollectionManager_ReplaceMembersIfVersion(t *testing.T) {
	ctx := context.Background()
	f := newCollectionFixture(t)
	c, err := f.manager.Create(ctx, ulid.Make(), "Mix")
	require.NoError(t, err)

	got, err := f.manager.ReplaceMembersIfVersion(ctx, c.ID, c.Version, []string{"a"})
	require.NoError(t, err)
	assert.Equal(t, c.Version+1, got.Version)

	_, err = f.manager.ReplaceMembersIfVersion(ctx, c.ID, c.Version, []string{"b"})
	errutil.AssertErrorKind(t, err, errutil.ErrConflict)

	stored, err := f.manager.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, stored.MemberIDs)

	_, err = f.manager.ReplaceMembersIfVersion(ctx, ulid.Make(), 1, []string{"b"})
	errutil.AssertErrorKind(t, err, errutil.ErrNotFound)
}

func TestCollectionManager_RemoveMemberAt(t *testing.T) {
	ctx := context.Background()
	f := newCollectionFixture(t)
	c, err := f.manager.Create(ctx, ulid.Make(), "Mix")
	require.NoError(t, err)
	c, err = f.manager.ReplaceMembers(ctx, c.ID, []string{"a", "b", "c"})
	require.NoError(t, err)

	for _, index := range []int{-1, 3, 42} {
		t.Run(fmt.Sprintf("index_%d", index), func(t *testing.T) {
			_, err := f.manager.RemoveMemberAt(ctx, c.ID, index)
			errutil.AssertErrorKind(t, err, errutil.ErrIndexOutOfRange)

			stored, err := f.manager.Get(ctx, c.ID)
			require.NoError(t, err)
			assert.Equal(t, []string{"a", "b", "c"}, stored.MemberIDs)
			assert.Equal(t, c.Version, stored.Version)
		})
	}

	got, err := f.manager.RemoveMemberAt(ctx, c.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, got.MemberIDs)

	got, err = f.manager.RemoveMemberAt(ctx, c.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, got.MemberIDs)

	_, err = f.manager.RemoveMemberAt(ctx, ulid.Make(), 0)
	errutil.AssertErrorKind(t, err, errutil.ErrNotFound)
}

func TestCollectionManager_AddVideoAndResolve(t *testing.T) {
	ctx := context.Background()
	f := newCollectionFixture(t)
	owner := ulid.Make()
	c, err := f.manager.Create(ctx, owner, "Mix")
	require.NoError(t, err)

	got, item, err := f.manager.AddVideo(ctx, c.ID, owner, "https://youtu.be/abc123", "Song")
	require.NoError(t, err)
	assert.Equal(t, []string{"abc123"}, got.MemberIDs)
	assert.Equal(t, "Song", item.Title)

	_, _, err = f.manager.AddVideo(ctx, c.ID, ulid.Make(), "https://youtu.be/abc123", "")
	errutil.AssertErrorKind(t, err, errutil.ErrNotFound)

	_, _, err = f.manager.AddVideo(ctx, c.ID, owner, "https://example.com/nope", "")
	errutil.AssertErrorKind(t, err, errutil.ErrValidation)

	got, err = f.manager.AppendMember(ctx, c.ID, "dangling")
	require.NoError(t, err)
	got, err = f.manager.AppendMember(ctx, c.ID, "abc123")
	require.NoError(t, err)

	members, err := f.manager.ResolveMembers(ctx, got)
	require.NoError(t, err)
	require.Len(t, members, 3)
	assert.Equal(t, item.InternalID, members[0].Item.InternalID)
	assert.Equal(t, "dangling", members[1].ExternalID)
	assert.Nil(t, members[1].Item)
	assert.Equal(t, 2, members[2].Index)
	assert.Equal(t, item.InternalID, members[2].Item.InternalID)
}

func TestCollectionManager_AddVideo_ItemSurvivesFailedAppend(t *testing.T) {
	ctx := context.Background()
	f := newCollectionFixture(t)
	owner := ulid.Make()
	c, err := f.manager.Create(ctx, owner, "Mix")
	require.NoError(t, err)

	f.collections.BeforeWrite = func(ulid.ULID) { f.collections.Err = errors.New("write timeout") }

	_, item, err := f.manager.AddVideo(ctx, c.ID, owner, "https://youtu.be/abc123", "")
	errutil.AssertErrorKind(t, err, errutil.ErrInternal)
	require.NotNil(t, item)
	assert.Equal(t, 1, f.items.Len())
}

func TestNewCollectionManager_RequiresDependencies(t *testing.T) {
	_, err := library.NewCollectionManager(nil, nil, library.CollectionConfig{}, nil)
	errutil.AssertErrorCode(t, err, "COLLECTION_INVALID_CONFIG")
}
