// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vidshelf Contributors

// Package postgres implements library repositories on PostgreSQL.
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

const itemColumns = `internal_id, external_id, source_kind, title, source_url, owner_user_id, created_at, updated_at`

// ItemRepository implements library.ItemRepository using PostgreSQL.
type ItemRepository struct {
	pool store.Pool
}

// NewItemRepository creates a new ItemRepository.
func NewItemRepository(pool store.Pool) *ItemRepository {
	return &ItemRepository{pool: pool}
}

// InsertIfAbsent inserts item unless (source_kind, external_id) is taken.
func (r *ItemRepository) InsertIfAbsent(ctx context.Context, item *library.Item) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO items (`+itemColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (source_kind, external_id) DO NOTHING
	`,
		item.InternalID.String(),
		item.ExternalID,
		item.SourceKind,
		item.Title,
		item.SourceURL,
		item.OwnerID.String(),
		item.CreatedAt,
		item.UpdatedAt,
	)
	if err != nil {
		return false, errutil.Internal("ITEM_INSERT_FAILED", "insert item", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ListByExternalID returns every item with externalID, oldest id first.
func (r *ItemRepository) ListByExternalID(ctx context.Context, externalID string) ([]*library.Item, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+itemColumns+` FROM items WHERE external_id = $1 ORDER BY internal_id
	`, externalID)
	if err != nil {
		return nil, errutil.Internal("ITEM_LIST_FAILED", "list items by external id", err)
	}
	return collectItems(rows)
}

// Get retrieves an item by internal id.
func (r *ItemRepository) Get(ctx context.Context, internalID ulid.ULID) (*library.Item, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+itemColumns+` FROM items WHERE internal_id = $1`, internalID.String())
	item, err := scanItem(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("ITEM_NOT_FOUND").
			With("internal_id", internalID.String()).
			Wrap(errutil.ErrNotFound)
	}
	if err != nil {
		return nil, errutil.Internal("ITEM_GET_FAILED", "get item", err)
	}
	return item, nil
}

// Update stores title, source_url and updated_at.
func (r *ItemRepository) Update(ctx context.Context, item *library.Item) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE items SET title = $2, source_url = $3, updated_at = $4
		WHERE internal_id = $1
	`, item.InternalID.String(), item.Title, item.SourceURL, item.UpdatedAt)
	if err != nil {
		return errutil.Internal("ITEM_UPDATE_FAILED", "update item", err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("ITEM_NOT_FOUND").
			With("internal_id", item.InternalID.String()).
			Wrap(errutil.ErrNotFound)
	}
	return nil
}

// ListRecent returns up to limit items, newest first.
func (r *ItemRepository) ListRecent(ctx context.Context, limit int) ([]*library.Item, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+itemColumns+` FROM items ORDER BY internal_id DESC LIMIT $1
	`, limit)
	if err != nil {
		return nil, errutil.Internal("ITEM_LIST_FAILED", "list recent items", err)
	}
	return collectItems(rows)
}

func collectItems(rows pgx.Rows) ([]*library.Item, error) {
	defer rows.Close()
	var items []*library.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, errutil.Internal("ITEM_LIST_FAILED", "scan item row", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, errutil.Internal("ITEM_LIST_FAILED", "iterate items", err)
	}
	return items, nil
}

// scanItem scans a single row. pgx.ErrNoRows is returned unwrapped.
func scanItem(row pgx.Row) (*library.Item, error) {
	var (
		item               library.Item
		internalID, owner  string
		createdAt, updated time.Time
	)
	if err := row.Scan(&internalID, &item.ExternalID, &item.SourceKind, &item.Title,
		&item.SourceURL, &owner, &createdAt, &updated); err != nil {
		return nil, err //nolint:wrapcheck // callers wrap with context
	}
	var err error
	if item.InternalID, err = parseID("ITEM_INVALID_ID", internalID); err != nil {
		return nil, err
	}
	if item.OwnerID, err = parseID("ITEM_INVALID_OWNER_ID", owner); err != nil {
		return nil, err
	}
	item.CreatedAt = createdAt
	item.UpdatedAt = updated
	return &item, nil
}

func parseID(code, s string) (ulid.ULID, error) {
	id, err := ulid.Parse(s)
	if err != nil {
		return ulid.ULID{}, oops.Code(code).With("id", s).Wrap(err)
	}
	return id, nil
}

var _ library.ItemRepository = (*ItemRepository)(nil)
