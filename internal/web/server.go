// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vidshelf Contributors

// Package web exposes the account, video, playlist and watch-event
// operations as a JSON API over chi. Every request passes through the
// session resolver; write routes are wrapped in auth.Guard.
package web

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/vidshelf/vidshelf/internal/auth"
	"github.com/vidshelf/vidshelf/internal/library"
	"github.com/vidshelf/vidshelf/internal/observability"
)

// Services are the domain components the API calls into.
type Services struct {
	Credentials *auth.CredentialStore
	Tokens      *auth.TokenService
	Resolver    *auth.Resolver
	Registry    *library.Registry
	Collections *library.CollectionManager
	Watch       *library.WatchLog
}

// Options tune the router.
type Options struct {
	CookieSecure bool
	Metrics      *observability.Metrics
	Logger       *slog.Logger
}

type handler struct {
	svc          Services
	cookieSecure bool
	logger       *slog.Logger
}

// NewRouter builds the API router.
func NewRouter(svc Services, opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	h := &handler{svc: svc, cookieSecure: opts.CookieSecure, logger: logger}
	guard := func(next auth.AuthenticatedHandler) http.Handler {
		return auth.Guard(http.HandlerFunc(h.unauthorized), next)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(instrument(opts.Metrics, logger))
	r.Use(svc.Resolver.Middleware)

	r.Post("/signup", h.signup)
	r.Post("/login", h.login)
	r.Post("/logout", h.logout)

	r.Method(http.MethodGet, "/account", guard(h.account))
	r.Method(http.MethodPost, "/account/password", guard(h.changePassword))
	r.Method(http.MethodGet, "/account/playlists", guard(h.listMyPlaylists))

	r.Route("/videos", func(r chi.Router) {
		r.Get("/", h.listVideos)
		r.Method(http.MethodPost, "/", guard(h.createVideo))
		// GET takes the external id, PATCH the internal id.
		r.Get("/{videoID}", h.getVideo)
		r.Method(http.MethodPatch, "/{videoID}", guard(h.updateVideo))
	})

	r.Route("/playlists", func(r chi.Router) {
		r.Get("/", h.listPlaylists)
		r.Method(http.MethodPost, "/", guard(h.createPlaylist))
		r.Get("/{id}", h.getPlaylist)
		r.Method(http.MethodPost, "/{id}/videos", guard(h.addPlaylistVideo))
		r.Method(http.MethodPut, "/{id}/videos", guard(h.replacePlaylistVideos))
		r.Method(http.MethodDelete, "/{id}/videos/{index}", guard(h.removePlaylistVideo))
	})

	r.Method(http.MethodPost, "/watch-events", guard(h.recordWatchEvent))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not found"})
	})
	return r
}

// instrument records request metrics under the matched route pattern.
func instrument(metrics *observability.Metrics, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			elapsed := time.Since(start)
			metrics.Observe(route, r.Method, status, elapsed)
			logger.DebugContext(r.Context(), "http request",
				"method", r.Method,
				"route", route,
				"status", status,
				"duration_ms", elapsed.Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()))
		})
	}
}
