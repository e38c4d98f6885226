// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vidshelf Contributors

package auth

import (
	"net/http"

	"github.com/oklog/ulid/v2"
)

// AuthenticatedHandler is a handler that only runs for an authenticated
// principal and receives its user id.
type AuthenticatedHandler func(w http.ResponseWriter, r *http.Request, userID ulid.ULID)

// Guard runs next iff the request's principal is authenticated; otherwise it
// delegates to reject. The rejection policy belongs to the caller.
func Guard(reject http.Handler, next AuthenticatedHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := PrincipalFrom(r.Context()).UserID()
		if !ok {
			reject.ServeHTTP(w, r)
			return
		}
		next(w, r, userID)
	})
}

// RequireAuthenticated is Guard in middleware form, for router groups.
func RequireAuthenticated(reject http.Handler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return Guard(reject, func(w http.ResponseWriter, r *http.Request, _ ulid.ULID) {
			next.ServeHTTP(w, r)
		})
	}
}
