// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vidshelf Contributors

// Package librarytest provides in-memory library repositories with the same
// conditional-write semantics as the PostgreSQL ones.
package librarytest

import (
	"context"
	"sort"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/vidshelf/vidshelf/internal/library"
	"github.com/vidshelf/vidshelf/pkg/errutil"
)

type itemKey struct {
	kind, externalID string
}

// ItemRepository is an in-memory library.ItemRepository.
type ItemRepository struct {
	mu     sync.Mutex
	items  map[ulid.ULID]library.Item
	hidden map[ulid.ULID]library.Item
	keys   map[itemKey]ulid.ULID
	lists  int

	// HideInserts keeps newly inserted items out of every read, simulating
	// a store that reads behind its writes.
	HideInserts bool
	// RevealAfterLists, when positive, makes hidden items visible once
	// ListByExternalID has been called that many times.
	RevealAfterLists int
	// Err, when set, is returned by every method.
	Err error
}

// NewItemRepository returns an empty repository.
func NewItemRepository() *ItemRepository {
	return &ItemRepository{
		items:  make(map[ulid.ULID]library.Item),
		hidden: make(map[ulid.ULID]library.Item),
		keys:   make(map[itemKey]ulid.ULID),
	}
}

// InsertIfAbsent implements library.ItemRepository.
func (r *ItemRepository) InsertIfAbsent(_ context.Context, item *library.Item) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return false, r.Err
	}
	key := itemKey{item.SourceKind, item.ExternalID}
	if _, taken := r.keys[key]; taken {
		return false, nil
	}
	r.keys[key] = item.InternalID
	if r.HideInserts {
		r.hidden[item.InternalID] = *item
	} else {
		r.items[item.InternalID] = *item
	}
	return true, nil
}

// Seed stores item without the uniqueness check, so tests can model a store
// that already holds duplicates.
func (r *ItemRepository) Seed(item library.Item) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[item.InternalID] = item
	r.keys[itemKey{item.SourceKind, item.ExternalID}] = item.InternalID
}

// Len returns the number of visible items.
func (r *ItemRepository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

// ListByExternalID implements library.ItemRepository.
func (r *ItemRepository) ListByExternalID(_ context.Context, externalID string) ([]*library.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	r.lists++
	if r.RevealAfterLists > 0 && r.lists >= r.RevealAfterLists {
		for id, it := range r.hidden {
			r.items[id] = it
			delete(r.hidden, id)
		}
	}
	var out []*library.Item
	for _, it := range r.items {
		if it.ExternalID == externalID {
			it := it
			out = append(out, &it)
		}
	}
	return out, nil
}

// Get implements library.ItemRepository.
func (r *ItemRepository) Get(_ context.Context, internalID ulid.ULID) (*library.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	it, ok := r.items[internalID]
	if !ok {
		return nil, oops.Code("ITEM_NOT_FOUND").With("internal_id", internalID.String()).Wrap(errutil.ErrNotFound)
	}
	return &it, nil
}

// Update implements library.ItemRepository.
func (r *ItemRepository) Update(_ context.Context, item *library.Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	stored, ok := r.items[item.InternalID]
	if !ok {
		return oops.Code("ITEM_NOT_FOUND").With("internal_id", item.InternalID.String()).Wrap(errutil.ErrNotFound)
	}
	stored.Title = item.Title
	stored.SourceURL = item.SourceURL
	stored.UpdatedAt = item.UpdatedAt
	r.items[item.InternalID] = stored
	return nil
}

// ListRecent implements library.ItemRepository.
func (r *ItemRepository) ListRecent(_ context.Context, limit int) ([]*library.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	out := make([]*library.Item, 0, len(r.items))
	for _, it := range r.items {
		it := it
		out = append(out, &it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].InternalID.Compare(out[j].InternalID) > 0 })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

var _ library.ItemRepository = (*ItemRepository)(nil)
