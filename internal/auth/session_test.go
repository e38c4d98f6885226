// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vidshelf Contributors

package auth_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/vidshelf/vidshelf/internal/auth"
)

type mockVerifier struct {
	mock.Mock
}

func (m *mockVerifier) Verify(token string) (*auth.Claims, error) {
	args := m.Called(token)
	claims, _ := args.Get(0).(*auth.Claims)
	return claims, args.Error(1)
}

func TestResolver_Resolve(t *testing.T) {
	userID := ulid.Make()
	verifier := &mockVerifier{}
	verifier.On("Verify", "good").Return(&auth.Claims{UserID: userID.String()}, nil)
	verifier.On("Verify", "expired").Return(nil, auth.ErrTokenExpired)
	verifier.On("Verify", "forged").Return(nil, auth.ErrTokenInvalid)
	verifier.On("Verify", "odd-claims").Return(&auth.Claims{UserID: "nope"}, nil)

	resolver := auth.NewResolver(verifier, "")
	assert.Equal(t, auth.DefaultCookieName, resolver.CookieName())

	got := resolver.Resolve("good")
	id, ok := got.UserID()
	require.True(t, ok)
	assert.Equal(t, userID, id)

	for _, token := range []string{"", "expired", "forged", "odd-claims"} {
		assert.False(t, resolver.Resolve(token).IsAuthenticated(), "token %q", token)
	}
	verifier.AssertNotCalled(t, "Verify", "")
}

func TestResolver_Middleware(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)}
	tokens := newTokenService(t, clock)
	userID := ulid.Make()
	token, _, err := tokens.Issue(userID, time.Minute)
	require.NoError(t, err)

	resolver := auth.NewResolver(tokens, "")

	var seen auth.Principal
	var cached bool
	handler := resolver.Middleware(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = auth.PrincipalFrom(r.Context())
		cached = auth.WithRequestCache(r.Context()) == r.Context()
	}))

	t.Run("valid cookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: auth.DefaultCookieName, Value: token})
		handler.ServeHTTP(httptest.NewRecorder(), req)

		id, ok := seen.UserID()
		require.True(t, ok)
		assert.Equal(t, userID, id)
		assert.True(t, cached, "middleware installs a request cache")
	})

	t.Run("no cookie", func(t *testing.T) {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
		assert.False(t, seen.IsAuthenticated())
	})

	t.Run("expired cookie", func(t *testing.T) {
		clock.Advance(2 * time.Minute)
		defer clock.Advance(-2 * time.Minute)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: auth.DefaultCookieName, Value: token})
		handler.ServeHTTP(httptest.NewRecorder(), req)
		assert.False(t, seen.IsAuthenticated())
	})
}

func TestPrincipalFrom_DefaultsToAnonymous(t *testing.T) {
	p := auth.PrincipalFrom(context.Background())
	assert.False(t, p.IsAuthenticated())
	_, ok := p.UserID()
	assert.False(t, ok)
	assert.Equal(t, auth.Anonymous(), p)
}

func TestGuard(t *testing.T) {
	userID := ulid.Make()
	reject := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	tests := []struct {
		name       string
		principal  auth.Principal
		wantCalled bool
		wantStatus int
	}{
		{"authenticated", auth.Authenticated(userID), true, http.StatusOK},
		{"anonymous", auth.Anonymous(), false, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			h := auth.Guard(reject, func(w http.ResponseWriter, _ *http.Request, id ulid.ULID) {
				called = true
				assert.Equal(t, userID, id)
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req = req.WithContext(auth.WithPrincipal(req.Context(), tt.principal))
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCalled, called)
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestRequireAuthenticated(t *testing.T) {
	reject := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	h := auth.RequireAuthenticated(reject)(next)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(auth.WithPrincipal(req.Context(), auth.Authenticated(ulid.Make())))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
