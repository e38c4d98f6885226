// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vidshelf Contributors

package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"

	"github.com/vidshelf/vidshelf/internal/library"
)

type playlistResponse struct {
	ID        string           `json:"id"`
	OwnerID   string           `json:"owner_id"`
	Title     string           `json:"title"`
	Members   []string         `json:"members"`
	Version   int64            `json:"version"`
	Path      string           `json:"path"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
	Items     []memberResponse `json:"items,omitempty"`
	Added     *itemResponse    `json:"added,omitempty"`
}

type memberResponse struct {
	Index      int           `json:"index"`
	ExternalID string        `json:"external_id"`
	Item       *itemResponse `json:"item"`
}

func newPlaylistResponse(c *library.Collection) *playlistResponse {
	return &playlistResponse{
		ID:        c.ID.String(),
		OwnerID:   c.OwnerID.String(),
		Title:     c.Title,
		Members:   c.MemberIDs,
		Version:   c.Version,
		Path:      c.Path(),
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

type createPlaylistRequest struct {
	Title string `json:"title"`
}

func (h *handler) createPlaylist(w http.ResponseWriter, r *http.Request, userID ulid.ULID) {
	var req createPlaylistRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	c, err := h.svc.Collections.Create(r.Context(), userID, req.Title)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newPlaylistResponse(c))
}

// listPlaylists is public and returns the newest playlists of every owner.
func (h *handler) listPlaylists(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	cs, err := h.svc.Collections.ListRecent(r.Context(), limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writePlaylists(w, cs)
}

func (h *handler) listMyPlaylists(w http.ResponseWriter, r *http.Request, userID ulid.ULID) {
	cs, err := h.svc.Collections.ListByOwner(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writePlaylists(w, cs)
}

func writePlaylists(w http.ResponseWriter, cs []*library.Collection) {
	out := make([]*playlistResponse, 0, len(cs))
	for _, c := range cs {
		out = append(out, newPlaylistResponse(c))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handler) getPlaylist(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", "COLLECTION_NOT_FOUND")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	c, err := h.svc.Collections.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	members, err := h.svc.Collections.ResolveMembers(r.Context(), c)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	resp := newPlaylistResponse(c)
	resp.Items = make([]memberResponse, 0, len(members))
	for _, m := range members {
		resp.Items = append(resp.Items, memberResponse{
			Index:      m.Index,
			ExternalID: m.ExternalID,
			Item:       newItemResponse(m.Item),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handler) addPlaylistVideo(w http.ResponseWriter, r *http.Request, userID ulid.ULID) {
	id, err := pathID(r, "id", "COLLECTION_NOT_FOUND")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req videoRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	c, item, err := h.svc.Collections.AddVideo(r.Context(), id, userID, req.URL, req.Title)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	resp := newPlaylistResponse(c)
	resp.Added = newItemResponse(item)
	writeJSON(w, http.StatusCreated, resp)
}

type replaceMembersRequest struct {
	Members []string `json:"members"`
	Version *int64   `json:"version,omitempty"`
}

// replacePlaylistVideos overwrites the member list; with a version it only
// succeeds if the playlist has not changed since that version was read.
func (h *handler) replacePlaylistVideos(w http.ResponseWriter, r *http.Request, userID ulid.ULID) {
	id, err := pathID(r, "id", "COLLECTION_NOT_FOUND")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req replaceMembersRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if _, err := h.svc.Collections.GetOwned(r.Context(), id, userID); err != nil {
		h.writeError(w, r, err)
		return
	}

	var c *library.Collection
	if req.Version != nil {
		c, err = h.svc.Collections.ReplaceMembersIfVersion(r.Context(), id, *req.Version, req.Members)
	} else {
		c, err = h.svc.Collections.ReplaceMembers(r.Context(), id, req.Members)
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newPlaylistResponse(c))
}

func (h *handler) removePlaylistVideo(w http.ResponseWriter, r *http.Request, userID ulid.ULID) {
	id, err := pathID(r, "id", "COLLECTION_NOT_FOUND")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		h.writeError(w, r, badRequest("REQUEST_INVALID_INDEX", err))
		return
	}
	if _, err := h.svc.Collections.GetOwned(r.Context(), id, userID); err != nil {
		h.writeError(w, r, err)
		return
	}
	c, err := h.svc.Collections.RemoveMemberAt(r.Context(), id, index)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newPlaylistResponse(c))
}
