// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vidshelf Contributors

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidshelf/vidshelf/internal/library"
	"github.com/vidshelf/vidshelf/pkg/errutil"
)

var itemCols = []string{"internal_id", "external_id", "source_kind", "title", "source_url", "owner_user_id", "created_at", "updated_at"}

func newTestItem() *library.Item {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &library.Item{
		InternalID: ulid.Make(),
		ExternalID: "abc123",
		SourceKind: library.SourceYouTube,
		Title:      "A video",
		SourceURL:  "https://youtu.be/abc123",
		OwnerID:    ulid.Make(),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func itemRow(rows *pgxmock.Rows, item *library.Item) *pgxmock.Rows {
	return rows.AddRow(item.InternalID.String(), item.ExternalID, item.SourceKind, item.Title,
		item.SourceURL, item.OwnerID.String(), item.CreatedAt, item.UpdatedAt)
}

func TestItemRepository_InsertIfAbsent(t *testing.T) {
	item := newTestItem()

	tests := []struct {
		name         string
		setup        func(mock pgxmock.PgxPoolIface)
		wantInserted bool
		wantKind     error
	}{
		{
			name: "inserted",
			setup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`INSERT INTO items .+ ON CONFLICT \(source_kind, external_id\) DO NOTHING`).
					WithArgs(item.InternalID.String(), item.ExternalID, item.SourceKind, item.Title,
						item.SourceURL, item.OwnerID.String(), item.CreatedAt, item.UpdatedAt).
					WillReturnResult(pgxmock.NewResult("INSERT", 1))
			},
			wantInserted: true,
		},
		{
			name: "lost the race",
			setup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`INSERT INTO items`).
					WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
						pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
					WillReturnResult(pgxmock.NewResult("INSERT", 0))
			},
		},
		{
			name: "database error",
			setup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`INSERT INTO items`).
					WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
						pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
					WillReturnError(errors.New("connection reset"))
			},
			wantKind: errutil.ErrInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err)
			defer mock.Close()
			tt.setup(mock)

			inserted, err := NewItemRepository(mock).InsertIfAbsent(context.Background(), item)
			if tt.wantKind != nil {
				errutil.AssertErrorKind(t, err, tt.wantKind)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.wantInserted, inserted)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestItemRepository_ListByExternalID(t *testing.T) {
	a, b := newTestItem(), newTestItem()
	b.SourceKind = "vimeo"

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`FROM items WHERE external_id = \$1 ORDER BY internal_id`).
		WithArgs("abc123").
		WillReturnRows(itemRow(itemRow(pgxmock.NewRows(itemCols), a), b))

	got, err := NewItemRepository(mock).ListByExternalID(context.Background(), "abc123")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, a, got[0])
	assert.Equal(t, "vimeo", got[1].SourceKind)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestItemRepository_Get(t *testing.T) {
	item := newTestItem()

	t.Run("found", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery(`FROM items WHERE internal_id = \$1`).
			WithArgs(item.InternalID.String()).
			WillReturnRows(itemRow(pgxmock.NewRows(itemCols), item))

		got, err := NewItemRepository(mock).Get(context.Background(), item.InternalID)
		require.NoError(t, err)
		assert.Equal(t, item, got)
	})

	t.Run("not found", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery(`FROM items WHERE internal_id = \$1`).
			WithArgs(item.InternalID.String()).
			WillReturnError(pgx.ErrNoRows)

		_, err = NewItemRepository(mock).Get(context.Background(), item.InternalID)
		errutil.AssertErrorKind(t, err, errutil.ErrNotFound)
		errutil.AssertErrorCode(t, err, "ITEM_NOT_FOUND")
	})

	t.Run("corrupt owner id", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery(`FROM items WHERE internal_id = \$1`).
			WithArgs(item.InternalID.String()).
			WillReturnRows(pgxmock.NewRows(itemCols).AddRow(item.InternalID.String(), item.ExternalID,
				item.SourceKind, item.Title, item.SourceURL, "nope", item.CreatedAt, item.UpdatedAt))

		_, err = NewItemRepository(mock).Get(context.Background(), item.InternalID)
		errutil.AssertErrorKind(t, err, errutil.ErrInternal)
	})
}

func TestItemRepository_Update(t *testing.T) {
	item := newTestItem()

	tests := []struct {
		name     string
		affected int64
		wantKind error
	}{
		{name: "updated", affected: 1},
		{name: "missing row", affected: 0, wantKind: errutil.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err)
			defer mock.Close()

			mock.ExpectExec(`UPDATE items SET title = \$2, source_url = \$3, updated_at = \$4`).
				WithArgs(item.InternalID.String(), item.Title, item.SourceURL, item.UpdatedAt).
				WillReturnResult(pgxmock.NewResult("UPDATE", tt.affected))

			err = NewItemRepository(mock).Update(context.Background(), item)
			if tt.wantKind != nil {
				errutil.AssertErrorKind(t, err, tt.wantKind)
			} else {
				require.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestItemRepository_ListRecent(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`FROM items ORDER BY internal_id DESC LIMIT \$1`).
		WithArgs(25).
		WillReturnRows(itemRow(pgxmock.NewRows(itemCols), newTestItem()))

	got, err := NewItemRepository(mock).ListRecent(context.Background(), 25)
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}
