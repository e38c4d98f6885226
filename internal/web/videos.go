// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vidshelf Contributors

package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/vidshelf/vidshelf/internal/auth"
	"github.com/vidshelf/vidshelf/internal/library"
	"github.com/vidshelf/vidshelf/pkg/errutil"
)

type itemResponse struct {
	InternalID string    `json:"internal_id"`
	ExternalID string    `json:"external_id"`
	SourceKind string    `json:"source_kind"`
	Title      string    `json:"title"`
	SourceURL  string    `json:"source_url"`
	OwnerID    string    `json:"owner_id"`
	Path       string    `json:"path"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	ResumeTime *float64  `json:"resume_time,omitempty"`
}

func newItemResponse(item *library.Item) *itemResponse {
	if item == nil {
		return nil
	}
	return &itemResponse{
		InternalID: item.InternalID.String(),
		ExternalID: item.ExternalID,
		SourceKind: item.SourceKind,
		Title:      item.Title,
		SourceURL:  item.SourceURL,
		OwnerID:    item.OwnerID.String(),
		Path:       item.Path(),
		CreatedAt:  item.CreatedAt,
		UpdatedAt:  item.UpdatedAt,
	}
}

// queryLimit reads ?limit. Absent means 0, which the services treat as
// their default.
func queryLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, badRequest("REQUEST_INVALID_LIMIT", err)
	}
	return n, nil
}

func (h *handler) listVideos(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	items, err := h.svc.Registry.ListRecent(r.Context(), limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out := make([]*itemResponse, 0, len(items))
	for _, item := range items {
		out = append(out, newItemResponse(item))
	}
	writeJSON(w, http.StatusOK, out)
}

// getVideo includes the caller's resume time when a session is present.
func (h *handler) getVideo(w http.ResponseWriter, r *http.Request) {
	item, err := h.svc.Registry.Get(r.Context(), chi.URLParam(r, "videoID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	resp := newItemResponse(item)
	if userID, ok := auth.PrincipalFrom(r.Context()).UserID(); ok {
		resume, err := h.svc.Watch.ResumeTime(r.Context(), userID, item.ExternalID)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		resp.ResumeTime = &resume
	}
	writeJSON(w, http.StatusOK, resp)
}

type videoRequest struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

func (h *handler) createVideo(w http.ResponseWriter, r *http.Request, userID ulid.ULID) {
	var req videoRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	item, err := h.svc.Registry.AddItem(r.Context(), req.URL, userID, req.Title)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newItemResponse(item))
}

// videoPatch distinguishes omitted fields from empty ones.
type videoPatch struct {
	URL   *string `json:"url"`
	Title *string `json:"title"`
}

func (h *handler) updateVideo(w http.ResponseWriter, r *http.Request, userID ulid.ULID) {
	internalID, err := pathID(r, "videoID", "ITEM_NOT_FOUND")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req videoPatch
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	item, err := h.svc.Registry.UpdateItem(r.Context(), userID, internalID, library.ItemPatch{
		Title:     req.Title,
		SourceURL: req.URL,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newItemResponse(item))
}

// pathID parses a ULID path parameter. A malformed id cannot name anything,
// so it is reported as not found.
func pathID(r *http.Request, param, notFoundCode string) (ulid.ULID, error) {
	raw := chi.URLParam(r, param)
	id, err := ulid.Parse(raw)
	if err != nil {
		return ulid.ULID{}, oops.Code(notFoundCode).With(param, raw).Wrap(errutil.ErrNotFound)
	}
	return id, nil
}
