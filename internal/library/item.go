// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vidshelf Contributors

package library

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/vidshelf/vidshelf/pkg/errutil"
)

// MaxTitleLength bounds item and collection titles, in characters.
const MaxTitleLength = 200

// Item is a registered video. At most one Item exists per
// (SourceKind, ExternalID).
type Item struct {
	InternalID ulid.ULID
	ExternalID string
	SourceKind string
	Title      string // empty means absent
	SourceURL  string
	OwnerID    ulid.ULID
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Path is the item's location in the HTTP API.
func (i *Item) Path() string {
	return "/videos/" + i.ExternalID
}

// ItemRepository persists items.
type ItemRepository interface {
	// InsertIfAbsent stores item unless an item with the same SourceKind and
	// ExternalID exists. It reports whether this call inserted the row.
	InsertIfAbsent(ctx context.Context, item *Item) (bool, error)

	// ListByExternalID returns every item with externalID, of any kind.
	ListByExternalID(ctx context.Context, externalID string) ([]*Item, error)

	// Get returns the item with internalID or an ErrNotFound-kinded error.
	Get(ctx context.Context, internalID ulid.ULID) (*Item, error)

	// Update stores Title, SourceURL and UpdatedAt.
	Update(ctx context.Context, item *Item) error

	// ListRecent returns up to limit items, newest first.
	ListRecent(ctx context.Context, limit int) ([]*Item, error)
}

func normalizeTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return "", oops.Code("TITLE_TOO_LONG").
			With("max", MaxTitleLength).
			Wrap(errutil.WithKind(errutil.ErrValidation,
				oops.Errorf("title must be at most %d characters", MaxTitleLength)))
	}
	return title, nil
}
