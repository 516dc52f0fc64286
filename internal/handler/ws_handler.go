/*
Package handler provides the HTTP handler function for WebSocket connection upgrading and initialization.

This file contains HandleWebSocket, which rate limits, validates the room identifier, upgrades
the HTTP connection to WebSocket, attaches it to its room and runs the connection to completion.
*/
package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"relayhub/internal/app/hub"
	"relayhub/internal/pkg/errs"
	"relayhub/internal/pkg/limiter"
	"relayhub/internal/pkg/logx"
	"relayhub/internal/pkg/randx"
	"relayhub/internal/pkg/resp"
)

// HandleWebSocket creates an HTTP HandlerFunc serving the signaling endpoint /ws/{roomID}.
// The handler goroutine becomes the connection's read loop and returns when it closes.
func HandleWebSocket(upgrader websocket.Upgrader, rateLimiter *limiter.IPRateLimiter, deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip := limiter.ClientIP(r)

		if !rateLimiter.Allow(ip) {
			logx.Warn("WebSocket connection rejected: Rate limit exceeded.", "ip", ip)
			resp.RespondError(w, r, errs.NewError(errs.ErrRateLimitExceeded))
			return
		}

		roomID := chi.URLParam(r, "roomID")
		if !randx.IsValidRoomID(roomID) {
			logx.Warn("WebSocket request rejected: Invalid room id", "room_id_len", len(roomID))
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade has already replied to the client.
			logx.Warn("Failed to upgrade connection to WebSocket", "room_id", roomID, "error", err.Error())
			return
		}

		client, err := deps.Registry.Attach(roomID, conn)
		if err != nil {
			if errors.Is(err, hub.ErrRegistryClosed) {
				msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
				_ = conn.WriteMessage(websocket.CloseMessage, msg)
			}
			_ = conn.Close()
			logx.Warn("WebSocket connection rejected after upgrade", "room_id", roomID, "error", err.Error())
			return
		}

		logx.Info("WebSocket connection established", "conn_id", client.ID(), "room_id", roomID)

		client.Serve()
	}
}
