// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vidshelf Contributors

package web

import (
	"net/http"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/vidshelf/vidshelf/internal/library"
)

type watchEventRequest struct {
	ExternalID string  `json:"external_id"`
	StartTime  float64 `json:"start_time"`
	EndTime    float64 `json:"end_time"`
	Duration   float64 `json:"duration"`
	Complete   bool    `json:"complete"`
	Path       string  `json:"path"`
}

type watchEventResponse struct {
	ID         string    `json:"id"`
	ExternalID string    `json:"external_id"`
	EndTime    float64   `json:"end_time"`
	Complete   bool      `json:"complete"`
	CreatedAt  time.Time `json:"created_at"`
}

func (h *handler) recordWatchEvent(w http.ResponseWriter, r *http.Request, userID ulid.ULID) {
	var req watchEventRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	ev, err := h.svc.Watch.Record(r.Context(), userID, library.WatchEvent{
		ExternalID: req.ExternalID,
		StartTime:  req.StartTime,
		EndTime:    req.EndTime,
		Duration:   req.Duration,
		Complete:   req.Complete,
		Path:       req.Path,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, watchEventResponse{
		ID:         ev.ID.String(),
		ExternalID: ev.ExternalID,
		EndTime:    ev.EndTime,
		Complete:   ev.Complete,
		CreatedAt:  ev.CreatedAt,
	})
}
