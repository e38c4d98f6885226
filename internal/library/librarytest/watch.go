// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vidshelf Contributors

package librarytest

import (
	"context"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/vidshelf/vidshelf/internal/library"
	"github.com/vidshelf/vidshelf/pkg/errutil"
)

// WatchEventRepository is an in-memory library.WatchEventRepository.
type WatchEventRepository struct {
	mu     sync.Mutex
	events []library.WatchEvent
}

// NewWatchEventRepository returns an empty repository.
func NewWatchEventRepository() *WatchEventRepository {
	return &WatchEventRepository{}
}

// Append implements library.WatchEventRepository.
func (r *WatchEventRepository) Append(_ context.Context, ev *library.WatchEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, *ev)
	return nil
}

// Latest implements library.WatchEventRepository.
func (r *WatchEventRepository) Latest(_ context.Context, userID ulid.ULID, externalID string) (*library.WatchEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *library.WatchEvent
	for i := range r.events {
		ev := r.events[i]
		if ev.UserID != userID || ev.ExternalID != externalID {
			continue
		}
		if latest == nil || ev.ID.Compare(latest.ID) > 0 {
			latest = &ev
		}
	}
	if latest == nil {
		return nil, oops.Code("WATCH_EVENT_NOT_FOUND").
			With("external_id", externalID).
			Wrap(errutil.ErrNotFound)
	}
	return latest, nil
}

var _ library.WatchEventRepository = (*WatchEventRepository)(nil)
