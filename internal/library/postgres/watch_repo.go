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

const watchColumns = `id, user_id, external_id, start_time, end_time, duration, complete, COALESCE(path, ''), created_at`

// WatchEventRepository implements library.WatchEventRepository using PostgreSQL.
type WatchEventRepository struct {
	pool store.Pool
}

// NewWatchEventRepository creates a new WatchEventRepository.
func NewWatchEventRepository(pool store.Pool) *WatchEventRepository {
	return &WatchEventRepository{pool: pool}
}

// Append inserts ev.
func (r *WatchEventRepository) Append(ctx context.Context, ev *library.WatchEvent) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO watch_events (id, user_id, external_id, start_time, end_time, duration, complete, path, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), $9)
	`,
		ev.ID.String(),
		ev.UserID.String(),
		ev.ExternalID,
		ev.StartTime,
		ev.EndTime,
		ev.Duration,
		ev.Complete,
		ev.Path,
		ev.CreatedAt,
	)
	if err != nil {
		return errutil.Internal("WATCH_APPEND_FAILED", "insert watch event", err)
	}
	return nil
}

// Latest returns the newest event for the (user, video) pair.
func (r *WatchEventRepository) Latest(ctx context.Context, userID ulid.ULID, externalID string) (*library.WatchEvent, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+watchColumns+` FROM watch_events
		WHERE user_id = $1 AND external_id = $2
		ORDER BY id DESC LIMIT 1
	`, userID.String(), externalID)

	var (
		ev        library.WatchEvent
		id, user  string
		createdAt time.Time
	)
	err := row.Scan(&id, &user, &ev.ExternalID, &ev.StartTime, &ev.EndTime,
		&ev.Duration, &ev.Complete, &ev.Path, &createdAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("WATCH_EVENT_NOT_FOUND").
			With("user_id", userID.String()).
			With("external_id", externalID).
			Wrap(errutil.ErrNotFound)
	}
	if err != nil {
		return nil, errutil.Internal("WATCH_LATEST_FAILED", "latest watch event", err)
	}
	if ev.ID, err = parseID("WATCH_INVALID_ID", id); err != nil {
		return nil, errutil.Internal("WATCH_LATEST_FAILED", "parse watch event", err)
	}
	if ev.UserID, err = parseID("WATCH_INVALID_USER_ID", user); err != nil {
		return nil, errutil.Internal("WATCH_LATEST_FAILED", "parse watch event", err)
	}
	ev.CreatedAt = createdAt
	return &ev, nil
}

var _ library.WatchEventRepository = (*WatchEventRepository)(nil)
