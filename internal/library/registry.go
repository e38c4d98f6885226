// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vidshelf Contributors

package library

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"

	"github.com/vidshelf/vidshelf/pkg/errutil"
)

// Registry defaults.
const (
	DefaultCreateAttempts = 3
	DefaultRetryInterval  = 25 * time.Millisecond
	DefaultListLimit      = 100
)

// errReadLag marks a lost insert race whose winner is not yet visible.
var errReadLag = errors.New("item not visible after conflicting insert")

// OwnerChecker reports whether a user id belongs to exactly one account.
// *auth.CredentialStore satisfies it.
type OwnerChecker interface {
	Exists(ctx context.Context, userID ulid.ULID) (bool, error)
}

// RegistryConfig tunes a Registry. Zero values take the defaults.
type RegistryConfig struct {
	Extractors     []Extractor
	CreateAttempts int
	RetryInterval  time.Duration
}

// Registry is the single entry point for creating and finding items.
type Registry struct {
	items      ItemRepository
	owners     OwnerChecker
	extractors []Extractor
	attempts   uint64
	interval   time.Duration
	logger     *slog.Logger
}

// NewRegistry creates a Registry. Without configured extractors it
// recognizes YouTube URLs.
func NewRegistry(items ItemRepository, owners OwnerChecker, cfg RegistryConfig, logger *slog.Logger) (*Registry, error) {
	if items == nil {
		return nil, oops.Code("REGISTRY_INVALID_CONFIG").Errorf("item repository is required")
	}
	if owners == nil {
		return nil, oops.Code("REGISTRY_INVALID_CONFIG").Errorf("owner checker is required")
	}
	extractors := cfg.Extractors
	if len(extractors) == 0 {
		extractors = []Extractor{YouTubeExtractor{}}
	}
	attempts := cfg.CreateAttempts
	if attempts <= 0 {
		attempts = DefaultCreateAttempts
	}
	interval := cfg.RetryInterval
	if interval <= 0 {
		interval = DefaultRetryInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		items:      items,
		owners:     owners,
		extractors: extractors,
		attempts:   uint64(attempts),
		interval:   interval,
		logger:     logger,
	}, nil
}

// Extract runs the registered extractors in order and returns the first match.
func (r *Registry) Extract(sourceURL string) (kind, externalID string, err error) {
	for _, e := range r.extractors {
		if id, ok := e.Extract(sourceURL); ok {
			return e.Kind(), id, nil
		}
	}
	return "", "", oops.Code("ITEM_EXTRACTION_FAILED").
		With("url", sourceURL).
		Wrap(errutil.WithKind(errutil.ErrValidation,
			oops.Errorf("%s is not a recognized video url", sourceURL)))
}

// GetOrCreate returns the item for sourceURL, creating it for ownerID if it
// does not exist. created is false whenever another writer got there first.
func (r *Registry) GetOrCreate(ctx context.Context, sourceURL string, ownerID ulid.ULID, title string) (*Item, bool, error) {
	kind, externalID, err := r.prepare(ctx, sourceURL, ownerID)
	if err != nil {
		return nil, false, err
	}
	title, err = normalizeTitle(title)
	if err != nil {
		return nil, false, err
	}

	var (
		item    *Item
		created bool
	)
	backoff := retry.WithMaxRetries(r.attempts-1, retry.NewConstant(r.interval))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		existing, err := r.find(ctx, kind, externalID)
		if err != nil {
			return err
		}
		if existing != nil {
			item = existing
			return nil
		}

		candidate := newItem(kind, externalID, sourceURL, title, ownerID)
		inserted, err := r.items.InsertIfAbsent(ctx, candidate)
		if err != nil {
			return errutil.Internal("ITEM_CREATE_FAILED", "insert item", err)
		}
		if inserted {
			itemsCreated.Inc()
			item, created = candidate, true
			return nil
		}

		itemInsertRaces.Inc()
		winner, err := r.find(ctx, kind, externalID)
		if err != nil {
			return err
		}
		if winner == nil {
			r.logger.WarnContext(ctx, "item insert conflicted but no row is visible",
				"source_kind", kind, "external_id", externalID)
			return retry.RetryableError(errReadLag)
		}
		item = winner
		return nil
	})
	if err != nil {
		if errors.Is(err, errReadLag) {
			return nil, false, errutil.Internal("ITEM_CREATE_EXHAUSTED", "get or create item", err)
		}
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return nil, false, errutil.Internal("ITEM_CREATE_FAILED", "get or create item", err)
		}
		return nil, false, err
	}

	if created {
		r.logger.InfoContext(ctx, "item created",
			"internal_id", item.InternalID.String(),
			"external_id", externalID,
			"owner_id", ownerID.String())
	}
	return item, created, nil
}

// AddItem creates a new item and fails with ErrDuplicate if any item for
// the URL's external id already exists, whoever owns it.
func (r *Registry) AddItem(ctx context.Context, sourceURL string, ownerID ulid.ULID, title string) (*Item, error) {
	kind, externalID, err := r.prepare(ctx, sourceURL, ownerID)
	if err != nil {
		return nil, err
	}
	title, err = normalizeTitle(title)
	if err != nil {
		return nil, err
	}

	existing, err := r.find(ctx, kind, externalID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, duplicateItem(externalID)
	}

	item := newItem(kind, externalID, sourceURL, title, ownerID)
	inserted, err := r.items.InsertIfAbsent(ctx, item)
	if err != nil {
		return nil, errutil.Internal("ITEM_CREATE_FAILED", "insert item", err)
	}
	if !inserted {
		itemInsertRaces.Inc()
		return nil, duplicateItem(externalID)
	}
	itemsCreated.Inc()
	r.logger.InfoContext(ctx, "item added",
		"internal_id", item.InternalID.String(),
		"external_id", externalID,
		"owner_id", ownerID.String())
	return item, nil
}

// Get returns the item registered for externalID.
func (r *Registry) Get(ctx context.Context, externalID string) (*Item, error) {
	item, err := r.find(ctx, "", externalID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, oops.Code("ITEM_NOT_FOUND").
			With("external_id", externalID).
			Wrap(errutil.ErrNotFound)
	}
	return item, nil
}

// ItemPatch is a partial item update. Nil fields are left unchanged; an
// empty Title clears the title.
type ItemPatch struct {
	Title     *string
	SourceURL *string
}

// UpdateItem applies patch to an item owned by ownerID. A new URL must
// resolve to the same external id. Items owned by someone else are
// reported as not found.
func (r *Registry) UpdateItem(ctx context.Context, ownerID, internalID ulid.ULID, patch ItemPatch) (*Item, error) {
	item, err := r.items.Get(ctx, internalID)
	if err != nil {
		if errors.Is(err, errutil.ErrNotFound) {
			return nil, err
		}
		return nil, errutil.Internal("ITEM_UPDATE_FAILED", "get item", err)
	}
	if item.OwnerID != ownerID {
		return nil, oops.Code("ITEM_NOT_FOUND").
			With("internal_id", internalID.String()).
			Wrap(errutil.ErrNotFound)
	}

	if patch.Title != nil {
		title, err := normalizeTitle(*patch.Title)
		if err != nil {
			return nil, err
		}
		item.Title = title
	}
	if patch.SourceURL != nil && *patch.SourceURL != item.SourceURL {
		sourceURL := *patch.SourceURL
		kind, externalID, err := r.Extract(sourceURL)
		if err != nil {
			return nil, err
		}
		if kind != item.SourceKind || externalID != item.ExternalID {
			return nil, oops.Code("ITEM_URL_MISMATCH").
				With("external_id", item.ExternalID).
				With("new_external_id", externalID).
				Wrap(errutil.WithKind(errutil.ErrValidation,
					oops.Errorf("url points to a different video")))
		}
		item.SourceURL = sourceURL
	}
	item.UpdatedAt = time.Now().UTC()

	if err := r.items.Update(ctx, item); err != nil {
		if errors.Is(err, errutil.ErrNotFound) {
			return nil, err
		}
		return nil, errutil.Internal("ITEM_UPDATE_FAILED", "update item", err)
	}
	return item, nil
}

// ListRecent returns up to limit items, newest first. limit is clamped to
// [1, DefaultListLimit]; a non-positive limit means DefaultListLimit.
func (r *Registry) ListRecent(ctx context.Context, limit int) ([]*Item, error) {
	items, err := r.items.ListRecent(ctx, clampLimit(limit))
	if err != nil {
		return nil, errutil.Internal("ITEM_LIST_FAILED", "list recent items", err)
	}
	return items, nil
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > DefaultListLimit {
		return DefaultListLimit
	}
	return limit
}

func (r *Registry) prepare(ctx context.Context, sourceURL string, ownerID ulid.ULID) (kind, externalID string, err error) {
	kind, externalID, err = r.Extract(sourceURL)
	if err != nil {
		return "", "", err
	}
	exists, err := r.owners.Exists(ctx, ownerID)
	if err != nil {
		return "", "", errutil.Internal("ITEM_OWNER_CHECK_FAILED", "check owner", err)
	}
	if !exists {
		return "", "", oops.Code("ITEM_OWNER_INVALID").
			With("owner_id", ownerID.String()).
			Wrap(errutil.ErrOwnerInvalid)
	}
	return kind, externalID, nil
}

// find returns the canonical item for externalID (restricted to kind when
// kind is non-empty), or nil. Several matches mean the uniqueness guarantee
// was broken somewhere; the smallest internal id wins deterministically.
func (r *Registry) find(ctx context.Context, kind, externalID string) (*Item, error) {
	items, err := r.items.ListByExternalID(ctx, externalID)
	if err != nil {
		return nil, errutil.Internal("ITEM_LOOKUP_FAILED", "list items by external id", err)
	}

	var (
		best    *Item
		matches int
	)
	for _, it := range items {
		if kind != "" && it.SourceKind != kind {
			continue
		}
		matches++
		if best == nil || it.InternalID.Compare(best.InternalID) < 0 {
			best = it
		}
	}
	if matches > 1 {
		itemDedupAnomalies.Inc()
		errutil.LogError(r.logger, "duplicate items for external id",
			oops.Code("ITEM_DEDUP_ANOMALY").
				With("external_id", externalID).
				With("source_kind", kind).
				With("matches", matches).
				With("chosen", best.InternalID.String()).
				Wrap(errutil.ErrInternal))
	}
	return best, nil
}

func newItem(kind, externalID, sourceURL, title string, ownerID ulid.ULID) *Item {
	now := time.Now().UTC()
	return &Item{
		InternalID: ulid.Make(),
		ExternalID: externalID,
		SourceKind: kind,
		Title:      title,
		SourceURL:  sourceURL,
		OwnerID:    ownerID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func duplicateItem(externalID string) error {
	return oops.Code("ITEM_DUPLICATE").
		With("external_id", externalID).
		Wrap(errutil.WithKind(errutil.ErrDuplicate,
			oops.Errorf("video %s has already been added", externalID)))
}
