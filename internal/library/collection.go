// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vidshelf Contributors

package library

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
)

// Collection is an ordered playlist of external ids. Members are weak
// references: an id may repeat and may name an item that does not exist.
type Collection struct {
	ID        ulid.ULID
	OwnerID   ulid.ULID
	Title     string
	MemberIDs []string
	// Version starts at 1 and increases with every membership write.
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Path is the collection's location in the HTTP API.
func (c *Collection) Path() string {
	return "/playlists/" + c.ID.String()
}

// CollectionRepository persists collections.
type CollectionRepository interface {
	Create(ctx context.Context, c *Collection) error

	// Get returns the collection or an ErrNotFound-kinded error.
	Get(ctx context.Context, id ulid.ULID) (*Collection, error)

	// ListByOwner returns the owner's collections, oldest first.
	ListByOwner(ctx context.Context, ownerID ulid.ULID) ([]*Collection, error)

	// ListRecent returns up to limit collections of any owner, newest first.
	ListRecent(ctx context.Context, limit int) ([]*Collection, error)

	// SetMembersIfVersion overwrites the members only if the stored version
	// equals version, and bumps the version. A version mismatch yields an
	// ErrConflict-kinded error, a missing collection ErrNotFound.
	SetMembersIfVersion(ctx context.Context, id ulid.ULID, version int64, members []string, at time.Time) (*Collection, error)

	// SetMembers overwrites the members unconditionally and bumps the version.
	SetMembers(ctx context.Context, id ulid.ULID, members []string, at time.Time) (*Collection, error)
}
