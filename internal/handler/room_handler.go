/*
Package handler provides HTTP handler functions for room identifier generation and room status.
*/
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"relayhub/internal/pkg/errs"
	"relayhub/internal/pkg/logx"
	"relayhub/internal/pkg/randx"
	"relayhub/internal/pkg/resp"
)

// CreateRoomResponse is the body returned by GET /create-room.
type CreateRoomResponse struct {
	RoomID string `json:"room_id"`
}

// HandleCreateRoom returns a fresh room identifier. It does not touch the registry: the room
// only comes into existence when a connection references the id.
func HandleCreateRoom() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID, err := randx.RoomID()
		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrRoomIDGeneration, err))
			return
		}

		logx.Debug("Room id generated", "room_id", roomID)
		resp.RespondJSON(w, r, http.StatusOK, CreateRoomResponse{RoomID: roomID})
	}
}

// RoomStatus describes a live room.
type RoomStatus struct {
	RoomID       string   `json:"room_id"`
	Participants []string `json:"participants"`
	HistorySize  int      `json:"history_size"`
}

// HandleRoomStatus reports the participants and history size of a room present in the registry.
func HandleRoomStatus(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID := chi.URLParam(r, "roomID")
		if !randx.IsValidRoomID(roomID) {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		room, ok := deps.Registry.Get(roomID)
		if !ok {
			resp.RespondError(w, r, errs.NewError(errs.ErrRoomNotFound))
			return
		}

		resp.RespondSuccess(w, r, RoomStatus{
			RoomID:       room.ID,
			Participants: room.Participants(),
			HistorySize:  room.HistoryLen(),
		})
	}
}
