// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vidshelf Contributors

package auth

import (
	"context"
	"net/http"

	"github.com/oklog/ulid/v2"
)

// DefaultCookieName is the cookie carrying the session token.
const DefaultCookieName = "session_id"

// Principal is the identity resolved for a request: authenticated with a
// user id, or anonymous.
type Principal struct {
	userID        ulid.ULID
	authenticated bool
}

// Anonymous returns the unauthenticated principal.
func Anonymous() Principal {
	return Principal{}
}

// Authenticated returns a principal for userID.
func Authenticated(userID ulid.ULID) Principal {
	return Principal{userID: userID, authenticated: true}
}

// IsAuthenticated reports whether the principal carries a user id.
func (p Principal) IsAuthenticated() bool {
	return p.authenticated
}

// UserID returns the user id and whether the principal is authenticated.
func (p Principal) UserID() (ulid.ULID, bool) {
	return p.userID, p.authenticated
}

// TokenVerifier verifies session tokens.
type TokenVerifier interface {
	Verify(token string) (*Claims, error)
}

// Resolver turns a raw session token into a Principal.
type Resolver struct {
	tokens     TokenVerifier
	cookieName string
}

// NewResolver creates a Resolver reading cookieName (DefaultCookieName if empty).
func NewResolver(tokens TokenVerifier, cookieName string) *Resolver {
	if cookieName == "" {
		cookieName = DefaultCookieName
	}
	return &Resolver{tokens: tokens, cookieName: cookieName}
}

// CookieName returns the session cookie name.
func (r *Resolver) CookieName() string {
	return r.cookieName
}

// Resolve classifies token. It never fails: anything but a valid token is
// Anonymous.
func (r *Resolver) Resolve(token string) Principal {
	if token == "" {
		return Anonymous()
	}
	claims, err := r.tokens.Verify(token)
	if err != nil {
		return Anonymous()
	}
	id, err := claims.ParsedUserID()
	if err != nil {
		return Anonymous()
	}
	return Authenticated(id)
}

// Middleware resolves the session cookie once per request and stores the
// principal, along with a fresh request cache, on the request context.
func (r *Resolver) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		principal := Anonymous()
		if c, err := req.Cookie(r.cookieName); err == nil {
			principal = r.Resolve(c.Value)
		}
		ctx := WithPrincipal(WithRequestCache(req.Context()), principal)
		next.ServeHTTP(w, req.WithContext(ctx))
	})
}

type principalKey struct{}

// WithPrincipal returns ctx carrying p.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the principal stored on ctx, or Anonymous.
func PrincipalFrom(ctx context.Context) Principal {
	p, _ := ctx.Value(principalKey{}).(Principal)
	return p
}
