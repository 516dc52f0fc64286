/*
Package handler provides the HTTP handlers and routing setup for the relay hub.

This file defines the main Router, applying middleware for request ids, proxied client IPs
(when configured), request logging, panic recovery and CORS, and per-IP rate limiting on the room creation
and signaling endpoints.
*/
package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"golang.org/x/time/rate"

	"relayhub/internal/pkg/limiter"
	"relayhub/internal/pkg/logx"
	"relayhub/internal/pkg/resp"
)

// Router sets up the main HTTP routing table for the application. The rate limiter sweepers
// started here stop when ctx is cancelled.
func Router(ctx context.Context, deps *AppDeps) http.Handler {
	cfg := deps.Config

	createLimiter := limiter.NewIPRateLimiter(ctx, rate.Limit(cfg.CreateRoomRate), cfg.CreateRoomBurst)
	wsLimiter := limiter.NewIPRateLimiter(ctx, rate.Limit(cfg.WSConnectRate), cfg.WSConnectBurst)

	r := chi.NewRouter()

	checkOrigin := originChecker(cfg.AllowedOrigins)

	wsUpgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if checkOrigin(origin) {
				return true
			}

			logx.Warn("WebSocket connection rejected: Origin not allowed.", "origin", origin)
			return false
		},
	}

	corsAllowedOrigins := []string{"*"}
	if len(cfg.AllowedOrigins) > 0 {
		corsAllowedOrigins = cfg.AllowedOrigins
	}

	c := cors.New(cors.Options{
		AllowedOrigins: corsAllowedOrigins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	})
	r.Use(c.Handler)

	r.Use(middleware.RequestID)
	// Forwarded headers are client-controlled unless a proxy rewrites them.
	if cfg.TrustProxyHeaders {
		r.Use(middleware.RealIP)
	}
	r.Use(logx.RequestLogger())
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		resp.RespondSuccess(w, r, map[string]any{
			"status":  "ok",
			"service": "relay hub",
			"rooms":   deps.Registry.Len(),
		})
	})

	r.With(createLimiter.Middleware).Get("/create-room", HandleCreateRoom())
	r.Get("/rooms/{roomID}", HandleRoomStatus(deps))
	r.Get("/ws/{roomID}", HandleWebSocket(wsUpgrader, wsLimiter, deps))

	return r
}

// originChecker returns a predicate over the Origin header. With no allow-list every origin
// is accepted, including requests without an Origin header.
func originChecker(allowed []string) func(origin string) bool {
	if len(allowed) == 0 {
		return func(string) bool { return true }
	}

	set := make(map[string]struct{}, len(allowed))
	for _, origin := range allowed {
		set[origin] = struct{}{}
	}

	return func(origin string) bool {
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}
