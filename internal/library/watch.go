// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vidshelf Contributors

package library

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/vidshelf/vidshelf/pkg/errutil"
)

// WatchEvent records a stretch of playback. Times are seconds into the video.
type WatchEvent struct {
	ID         ulid.ULID
	UserID     ulid.ULID
	ExternalID string
	StartTime  float64
	EndTime    float64
	Duration   float64
	Complete   bool
	Path       string
	CreatedAt  time.Time
}

// WatchEventRepository persists watch events. Events are never updated.
type WatchEventRepository interface {
	Append(ctx context.Context, ev *WatchEvent) error

	// Latest returns the newest event for the pair, or an ErrNotFound-kinded
	// error when there is none.
	Latest(ctx context.Context, userID ulid.ULID, externalID string) (*WatchEvent, error)
}

// WatchLog records playback and answers "where did I stop".
type WatchLog struct {
	events WatchEventRepository
	logger *slog.Logger
}

// NewWatchLog creates a WatchLog.
func NewWatchLog(events WatchEventRepository, logger *slog.Logger) (*WatchLog, error) {
	if events == nil {
		return nil, oops.Code("WATCH_INVALID_CONFIG").Errorf("watch event repository is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WatchLog{events: events, logger: logger}, nil
}

// Record appends ev for userID. ID, UserID and CreatedAt are assigned here.
func (w *WatchLog) Record(ctx context.Context, userID ulid.ULID, ev WatchEvent) (*WatchEvent, error) {
	if ev.ExternalID == "" {
		return nil, invalidWatchEvent("external_id is required")
	}
	for _, v := range []float64{ev.StartTime, ev.EndTime, ev.Duration} {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, invalidWatchEvent("times must be finite and non-negative")
		}
	}
	if ev.EndTime < ev.StartTime {
		return nil, invalidWatchEvent("end_time must not precede start_time")
	}

	ev.ID = ulid.Make()
	ev.UserID = userID
	ev.CreatedAt = time.Now().UTC()
	if err := w.events.Append(ctx, &ev); err != nil {
		return nil, errutil.Internal("WATCH_RECORD_FAILED", "append watch event", err)
	}
	w.logger.DebugContext(ctx, "watch event recorded",
		"user_id", userID.String(), "external_id", ev.ExternalID, "end_time", ev.EndTime)
	return &ev, nil
}

// ResumeTime returns where userID stopped watching externalID: the latest
// event's end time, or 0 if there is none or it finished the video.
func (w *WatchLog) ResumeTime(ctx context.Context, userID ulid.ULID, externalID string) (float64, error) {
	ev, err := w.events.Latest(ctx, userID, externalID)
	if errors.Is(err, errutil.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, errutil.Internal("WATCH_RESUME_FAILED", "latest watch event", err)
	}
	if ev.Complete {
		return 0, nil
	}
	return ev.EndTime, nil
}

func invalidWatchEvent(msg string) error {
	return oops.Code("WATCH_INVALID_EVENT").
		Wrap(errutil.WithKind(errutil.ErrValidation, oops.Errorf("%s", msg)))
}
