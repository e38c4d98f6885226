// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vidshelf Contributors

package web

import (
	"errors"
	"net/http"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/vidshelf/vidshelf/internal/auth"
)

type userResponse struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

func newUserResponse(u *auth.User) userResponse {
	return userResponse{UserID: u.ID.String(), Email: u.Email, CreatedAt: u.CreatedAt}
}

type signupRequest struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
}

func (h *handler) signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.Password != req.PasswordConfirm {
		h.writeError(w, r, badRequest("AUTH_PASSWORD_MISMATCH", errors.New("passwords do not match")))
		return
	}
	user, err := h.svc.Credentials.CreateUser(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newUserResponse(user))
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	userResponse
	ExpiresAt time.Time `json:"expires_at"`
}

func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	user, err := h.svc.Credentials.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	token, expiresAt, err := h.svc.Tokens.Issue(user.ID, 0)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	http.SetCookie(w, h.sessionCookie(token, expiresAt))
	writeJSON(w, http.StatusOK, loginResponse{userResponse: newUserResponse(user), ExpiresAt: expiresAt})
}

func (h *handler) logout(w http.ResponseWriter, _ *http.Request) {
	c := h.sessionCookie("", time.Unix(0, 0))
	c.MaxAge = -1
	http.SetCookie(w, c)
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) sessionCookie(value string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     h.svc.Resolver.CookieName(),
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
}

func (h *handler) account(w http.ResponseWriter, r *http.Request, userID ulid.ULID) {
	user, err := h.svc.Credentials.FindByUserID(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newUserResponse(user))
}

type changePasswordRequest struct {
	Current string `json:"current"`
	New     string `json:"new"`
}

func (h *handler) changePassword(w http.ResponseWriter, r *http.Request, userID ulid.ULID) {
	var req changePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.svc.Credentials.ChangePassword(r.Context(), userID, req.Current, req.New); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
