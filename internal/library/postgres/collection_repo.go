// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vidshelf Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/vidshelf/vidshelf/internal/library"
	"github.com/vidshelf/vidshelf/internal/store"
	"github.com/vidshelf/vidshelf/pkg/errutil"
)

const collectionColumns = `id, owner_user_id, title, member_ids, version, created_at, updated_at`

// CollectionRepository implements library.CollectionRepository using PostgreSQL.
type CollectionRepository struct {
	pool store.Pool
}

// NewCollectionRepository creates a new CollectionRepository.
func NewCollectionRepository(pool store.Pool) *CollectionRepository {
	return &CollectionRepository{pool: pool}
}

// Create inserts c.
func (r *CollectionRepository) Create(ctx context.Context, c *library.Collection) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO collections (`+collectionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		c.ID.String(),
		c.OwnerID.String(),
		c.Title,
		membersOrEmpty(c.MemberIDs),
		c.Version,
		c.CreatedAt,
		c.UpdatedAt,
	)
	if err != nil {
		return errutil.Internal("COLLECTION_CREATE_FAILED", "insert collection", err)
	}
	return nil
}

// Get retrieves a collection by id.
func (r *CollectionRepository) Get(ctx context.Context, id ulid.ULID) (*library.Collection, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+collectionColumns+` FROM collections WHERE id = $1`, id.String())
	c, err := scanCollection(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, collectionNotFound(id)
	}
	if err != nil {
		return nil, errutil.Internal("COLLECTION_GET_FAILED", "get collection", err)
	}
	return c, nil
}

// ListByOwner returns ownerID's collections, oldest first.
func (r *CollectionRepository) ListByOwner(ctx context.Context, ownerID ulid.ULID) ([]*library.Collection, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+collectionColumns+` FROM collections WHERE owner_user_id = $1 ORDER BY id
	`, ownerID.String())
	if err != nil {
		return nil, errutil.Internal("COLLECTION_LIST_FAILED", "list collections", err)
	}
	return collectCollections(rows)
}

// ListRecent returns up to limit collections of any owner, newest first.
func (r *CollectionRepository) ListRecent(ctx context.Context, limit int) ([]*library.Collection, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+collectionColumns+` FROM collections ORDER BY id DESC LIMIT $1
	`, limit)
	if err != nil {
		return nil, errutil.Internal("COLLECTION_LIST_FAILED", "list recent collections", err)
	}
	return collectCollections(rows)
}

func collectCollections(rows pgx.Rows) ([]*library.Collection, error) {
	defer rows.Close()
	var out []*library.Collection
	for rows.Next() {
		c, err := scanCollection(rows)
		if err != nil {
			return nil, errutil.Internal("COLLECTION_LIST_FAILED", "scan collection row", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, errutil.Internal("COLLECTION_LIST_FAILED", "iterate collections", err)
	}
	return out, nil
}

// SetMembersIfVersion writes members only while the row is still at version.
func (r *CollectionRepository) SetMembersIfVersion(ctx context.Context, id ulid.ULID, version int64, members []string, at time.Time) (*library.Collection, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE collections SET member_ids = $3, version = version + 1, updated_at = $4
		WHERE id = $1 AND version = $2
		RETURNING `+collectionColumns,
		id.String(), version, membersOrEmpty(members), at)
	c, err := scanCollection(row)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, errutil.Internal("COLLECTION_UPDATE_FAILED", "conditional member update", err)
	}

	// No row matched: either it is gone or someone else moved the version.
	var actual int64
	err = r.pool.QueryRow(ctx, `SELECT version FROM collections WHERE id = $1`, id.String()).Scan(&actual)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, collectionNotFound(id)
	}
	if err != nil {
		return nil, errutil.Internal("COLLECTION_UPDATE_FAILED", "read collection version", err)
	}
	return nil, oops.Code("COLLECTION_VERSION_CONFLICT").
		With("collection_id", id.String()).
		With("expected", version).
		With("actual", actual).
		Wrap(errutil.ErrConflict)
}

// SetMembers overwrites members unconditionally.
func (r *CollectionRepository) SetMembers(ctx context.Context, id ulid.ULID, members []string, at time.Time) (*library.Collection, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE collections SET member_ids = $2, version = version + 1, updated_at = $3
		WHERE id = $1
		RETURNING `+collectionColumns,
		id.String(), membersOrEmpty(members), at)
	c, err := scanCollection(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, collectionNotFound(id)
	}
	if err != nil {
		return nil, errutil.Internal("COLLECTION_UPDATE_FAILED", "replace members", err)
	}
	return c, nil
}

// scanCollection scans a single row. pgx.ErrNoRows is returned unwrapped.
func scanCollection(row pgx.Row) (*library.Collection, error) {
	var (
		c                  library.Collection
		id, owner          string
		createdAt, updated time.Time
	)
	if err := row.Scan(&id, &owner, &c.Title, &c.MemberIDs, &c.Version, &createdAt, &updated); err != nil {
		return nil, err //nolint:wrapcheck // callers wrap with context
	}
	var err error
	if c.ID, err = parseID("COLLECTION_INVALID_ID", id); err != nil {
		return nil, err
	}
	if c.OwnerID, err = parseID("COLLECTION_INVALID_OWNER_ID", owner); err != nil {
		return nil, err
	}
	c.MemberIDs = membersOrEmpty(c.MemberIDs)
	c.CreatedAt = createdAt
	c.UpdatedAt = updated
	return &c, nil
}

func membersOrEmpty(members []string) []string {
	if members == nil {
		return []string{}
	}
	return members
}

func collectionNotFound(id ulid.ULID) error {
	return oops.Code("COLLECTION_NOT_FOUND").
		With("collection_id", id.String()).
		Wrap(errutil.ErrNotFound)
}

var _ library.CollectionRepository = (*CollectionRepository)(nil)
