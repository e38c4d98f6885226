// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vidshelf Contributors

package library

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"

	"github.com/vidshelf/vidshelf/pkg/errutil"
)

// DefaultCASAttempts bounds the compare-and-set loop of appends and removals.
const DefaultCASAttempts = 16

// CollectionConfig tunes a CollectionManager. Zero values take the defaults.
type CollectionConfig struct {
	CASAttempts   int
	RetryInterval time.Duration
}

// CollectionManager owns playlist membership.
type CollectionManager struct {
	collections CollectionRepository
	registry    *Registry
	attempts    uint64
	interval    time.Duration
	logger      *slog.Logger
}

// Member is one resolved playlist entry. Item is nil for a dangling reference.
type Member struct {
	Index      int
	ExternalID string
	Item       *Item
}

// NewCollectionManager creates a CollectionManager.
func NewCollectionManager(collections CollectionRepository, registry *Registry, cfg CollectionConfig, logger *slog.Logger) (*CollectionManager, error) {
	if collections == nil {
		return nil, oops.Code("COLLECTION_INVALID_CONFIG").Errorf("collection repository is required")
	}
	if registry == nil {
		return nil, oops.Code("COLLECTION_INVALID_CONFIG").Errorf("registry is required")
	}
	attempts := cfg.CASAttempts
	if attempts <= 0 {
		attempts = DefaultCASAttempts
	}
	interval := cfg.RetryInterval
	if interval <= 0 {
		interval = time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CollectionManager{
		collections: collections,
		registry:    registry,
		attempts:    uint64(attempts),
		interval:    interval,
		logger:      logger,
	}, nil
}

// Create starts an empty collection for ownerID.
func (m *CollectionManager) Create(ctx context.Context, ownerID ulid.ULID, title string) (*Collection, error) {
	title, err := normalizeTitle(title)
	if err != nil {
		return nil, err
	}
	if title == "" {
		return nil, oops.Code("COLLECTION_TITLE_REQUIRED").
			Wrap(errutil.WithKind(errutil.ErrValidation, oops.Errorf("title is required")))
	}

	now := time.Now().UTC()
	c := &Collection{
		ID:        ulid.Make(),
		OwnerID:   ownerID,
		Title:     title,
		MemberIDs: []string{},
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := m.collections.Create(ctx, c); err != nil {
		return nil, errutil.Internal("COLLECTION_CREATE_FAILED", "insert collection", err)
	}
	m.logger.InfoContext(ctx, "collection created", "collection_id", c.ID.String(), "owner_id", ownerID.String())
	return c, nil
}

// Get returns a collection by id.
func (m *CollectionManager) Get(ctx context.Context, id ulid.ULID) (*Collection, error) {
	c, err := m.collections.Get(ctx, id)
	if err != nil {
		return nil, storeError(err, "COLLECTION_GET_FAILED", "get collection")
	}
	return c, nil
}

// GetOwned returns the collection only if ownerID owns it; otherwise it is
// reported as not found.
func (m *CollectionManager) GetOwned(ctx context.Context, id, ownerID ulid.ULID) (*Collection, error) {
	c, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.OwnerID != ownerID {
		return nil, oops.Code("COLLECTION_NOT_FOUND").
			With("collection_id", id.String()).
			Wrap(errutil.ErrNotFound)
	}
	return c, nil
}

// ListByOwner returns ownerID's collections.
func (m *CollectionManager) ListByOwner(ctx context.Context, ownerID ulid.ULID) ([]*Collection, error) {
	cs, err := m.collections.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, errutil.Internal("COLLECTION_LIST_FAILED", "list collections", err)
	}
	return cs, nil
}

// ListRecent returns up to limit collections of any owner, newest first.
// limit is clamped like Registry.ListRecent.
func (m *CollectionManager) ListRecent(ctx context.Context, limit int) ([]*Collection, error) {
	cs, err := m.collections.ListRecent(ctx, clampLimit(limit))
	if err != nil {
		return nil, errutil.Internal("COLLECTION_LIST_FAILED", "list recent collections", err)
	}
	return cs, nil
}

// AppendMember adds externalID at the end. Duplicates are allowed, and
// concurrent appends are all kept.
func (m *CollectionManager) AppendMember(ctx context.Context, id ulid.ULID, externalID string) (*Collection, error) {
	if err := validateMember(-1, externalID); err != nil {
		return nil, err
	}
	return m.mutate(ctx, id, "append", func(members []string) ([]string, error) {
		return append(members, externalID), nil
	})
}

// RemoveMemberAt deletes the member at index. An index outside
// [0, len) fails with ErrIndexOutOfRange and leaves the collection unchanged.
func (m *CollectionManager) RemoveMemberAt(ctx context.Context, id ulid.ULID, index int) (*Collection, error) {
	return m.mutate(ctx, id, "remove", func(members []string) ([]string, error) {
		if index < 0 || index >= len(members) {
			return nil, oops.Code("COLLECTION_INDEX_OUT_OF_RANGE").
				With("collection_id", id.String()).
				With("index", index).
				With("len", len(members)).
				Wrap(errutil.ErrIndexOutOfRange)
		}
		return slices.Delete(members, index, index+1), nil
	})
}

// ReplaceMembers overwrites the whole member list. Concurrent replacements
// resolve as last writer wins.
func (m *CollectionManager) ReplaceMembers(ctx context.Context, id ulid.ULID, ordered []string) (*Collection, error) {
	if err := validateMembers(ordered); err != nil {
		return nil, err
	}
	c, err := m.collections.SetMembers(ctx, id, cloneMembers(ordered), time.Now().UTC())
	if err != nil {
		return nil, storeError(err, "COLLECTION_UPDATE_FAILED", "replace members")
	}
	return c, nil
}

// ReplaceMembersIfVersion overwrites the member list only if the collection
// is still at version. A stale version fails with ErrConflict.
func (m *CollectionManager) ReplaceMembersIfVersion(ctx context.Context, id ulid.ULID, version int64, ordered []string) (*Collection, error) {
	if err := validateMembers(ordered); err != nil {
		return nil, err
	}
	c, err := m.collections.SetMembersIfVersion(ctx, id, version, cloneMembers(ordered), time.Now().UTC())
	if err != nil {
		if errors.Is(err, errutil.ErrConflict) {
			collectionConflicts.WithLabelValues("replace").Inc()
			return nil, oops.Code("COLLECTION_VERSION_CONFLICT").
				With("collection_id", id.String()).
				With("version", version).
				Wrap(err)
		}
		return nil, storeError(err, "COLLECTION_UPDATE_FAILED", "replace members")
	}
	return c, nil
}

// validateMember rejects empty member ids. index is reported in the error
// context when it is not negative.
func validateMember(index int, externalID string) error {
	if externalID != "" {
		return nil
	}
	b := oops.Code("COLLECTION_INVALID_MEMBER")
	if index >= 0 {
		b = b.With("index", index)
	}
	return b.Wrap(errutil.WithKind(errutil.ErrValidation, oops.Errorf("member id cannot be empty")))
}

func validateMembers(ordered []string) error {
	for i, externalID := range ordered {
		if err := validateMember(i, externalID); err != nil {
			return err
		}
	}
	return nil
}

// AddVideo registers sourceURL (or finds its existing item) and appends it
// to a collection owned by ownerID. If the append fails the item stays
// registered without the link.
func (m *CollectionManager) AddVideo(ctx context.Context, id, ownerID ulid.ULID, sourceURL, title string) (*Collection, *Item, error) {
	if _, err := m.GetOwned(ctx, id, ownerID); err != nil {
		return nil, nil, err
	}
	item, _, err := m.registry.GetOrCreate(ctx, sourceURL, ownerID, title)
	if err != nil {
		return nil, nil, err
	}
	c, err := m.AppendMember(ctx, id, item.ExternalID)
	if err != nil {
		return nil, item, err
	}
	return c, item, nil
}

// ResolveMembers looks up the item behind each member, in order.
func (m *CollectionManager) ResolveMembers(ctx context.Context, c *Collection) ([]Member, error) {
	resolved := make(map[string]*Item, len(c.MemberIDs))
	out := make([]Member, 0, len(c.MemberIDs))
	for i, externalID := range c.MemberIDs {
		item, seen := resolved[externalID]
		if !seen {
			var err error
			item, err = m.registry.Get(ctx, externalID)
			if err != nil && !errors.Is(err, errutil.ErrNotFound) {
				return nil, err
			}
			resolved[externalID] = item
		}
		out = append(out, Member{Index: i, ExternalID: externalID, Item: item})
	}
	return out, nil
}

// mutate applies fn to the current members and writes the result with a
// compare-and-set, retrying against fresh state when another writer won.
func (m *CollectionManager) mutate(ctx context.Context, id ulid.ULID, op string, fn func([]string) ([]string, error)) (*Collection, error) {
	var out *Collection
	backoff := retry.WithMaxRetries(m.attempts-1, retry.WithJitter(m.interval, retry.NewConstant(m.interval)))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		current, err := m.collections.Get(ctx, id)
		if err != nil {
			return storeError(err, "COLLECTION_GET_FAILED", "get collection")
		}
		next, err := fn(cloneMembers(current.MemberIDs))
		if err != nil {
			return err
		}
		updated, err := m.collections.SetMembersIfVersion(ctx, id, current.Version, next, time.Now().UTC())
		if errors.Is(err, errutil.ErrConflict) {
			collectionConflicts.WithLabelValues(op).Inc()
			return retry.RetryableError(err)
		}
		if err != nil {
			return storeError(err, "COLLECTION_UPDATE_FAILED", op+" member")
		}
		out = updated
		return nil
	})
	if err != nil {
		if errors.Is(err, errutil.ErrConflict) {
			m.logger.WarnContext(ctx, "collection write kept conflicting",
				"collection_id", id.String(), "operation", op, "attempts", m.attempts)
			return nil, oops.Code("COLLECTION_CONTENDED").
				With("collection_id", id.String()).
				With("operation", op).
				Wrap(err)
		}
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return nil, errutil.Internal("COLLECTION_UPDATE_FAILED", op+" member", err)
		}
		return nil, err
	}
	return out, nil
}

// storeError passes NotFound and Conflict through and wraps everything else
// as internal.
func storeError(err error, code, operation string) error {
	if errors.Is(err, errutil.ErrNotFound) || errors.Is(err, errutil.ErrConflict) {
		return err
	}
	return errutil.Internal(code, operation, err)
}

func cloneMembers(members []string) []string {
	if members == nil {
		return []string{}
	}
	return slices.Clone(members)
}
