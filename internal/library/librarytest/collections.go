// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vidshelf Contributors

package librarytest

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/vidshelf/vidshelf/internal/library"
	"github.com/vidshelf/vidshelf/pkg/errutil"
)

// CollectionRepository is an in-memory library.CollectionRepository.
type CollectionRepository struct {
	mu          sync.Mutex
	collections map[ulid.ULID]library.Collection

	// BeforeWrite, when set, runs before every conditional write with the
	// lock released, letting tests interleave a competing writer.
	BeforeWrite func(id ulid.ULID)
	// Err, when set, is returned by every method.
	Err error
}

// NewCollectionRepository returns an empty repository.
func NewCollectionRepository() *CollectionRepository {
	return &CollectionRepository{collections: make(map[ulid.ULID]library.Collection)}
}

// Create implements library.CollectionRepository.
func (r *CollectionRepository) Create(_ context.Context, c *library.Collection) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.collections[c.ID] = copyCollection(*c)
	return nil
}

// Get implements library.CollectionRepository.
func (r *CollectionRepository) Get(_ context.Context, id ulid.ULID) (*library.Collection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	c, ok := r.collections[id]
	if !ok {
		return nil, notFound(id)
	}
	out := copyCollection(c)
	return &out, nil
}

// ListByOwner implements library.CollectionRepository.
func (r *CollectionRepository) ListByOwner(_ context.Context, ownerID ulid.ULID) ([]*library.Collection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	var out []*library.Collection
	for _, c := range r.collections {
		if c.OwnerID == ownerID {
			c := copyCollection(c)
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.Compare(out[j].ID) < 0 })
	return out, nil
}

// ListRecent implements library.CollectionRepository.
func (r *CollectionRepository) ListRecent(_ context.Context, limit int) ([]*library.Collection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	out := make([]*library.Collection, 0, len(r.collections))
	for _, c := range r.collections {
		c := copyCollection(c)
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.Compare(out[j].ID) > 0 })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// SetMembersIfVersion implements library.CollectionRepository.
func (r *CollectionRepository) SetMembersIfVersion(_ context.Context, id ulid.ULID, version int64, members []string, at time.Time) (*library.Collection, error) {
	if r.BeforeWrite != nil {
		r.BeforeWrite(id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	c, ok := r.collections[id]
	if !ok {
		return nil, notFound(id)
	}
	if c.Version != version {
		return nil, oops.Code("COLLECTION_VERSION_CONFLICT").
			With("collection_id", id.String()).
			With("expected", version).
			With("actual", c.Version).
			Wrap(errutil.ErrConflict)
	}
	return r.write(c, members, at), nil
}

// SetMembers implements library.CollectionRepository.
func (r *CollectionRepository) SetMembers(_ context.Context, id ulid.ULID, members []string, at time.Time) (*library.Collection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	c, ok := r.collections[id]
	if !ok {
		return nil, notFound(id)
	}
	return r.write(c, members, at), nil
}

func (r *CollectionRepository) write(c library.Collection, members []string, at time.Time) *library.Collection {
	c.MemberIDs = slices.Clone(members)
	c.Version++
	c.UpdatedAt = at
	r.collections[c.ID] = c
	out := copyCollection(c)
	return &out
}

func copyCollection(c library.Collection) library.Collection {
	c.MemberIDs = slices.Clone(c.MemberIDs)
	if c.MemberIDs == nil {
		c.MemberIDs = []string{}
	}
	return c
}

func notFound(id ulid.ULID) error {
	return oops.Code("COLLECTION_NOT_FOUND").With("collection_id", id.String()).Wrap(errutil.ErrNotFound)
}

var _ library.CollectionRepository = (*CollectionRepository)(nil)
