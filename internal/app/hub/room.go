/*
Package hub contains the core logic of the signaling and relay hub.

This file defines the Room struct: the set of joined participants keyed by user id and the
room's ordered chat history. Every read or write of that state happens under the room's mutex,
so membership changes, history appends and broadcast target selection are serialized per room.
*/
package hub

import (
	"encoding/json"
	"slices"
	"sync"

	"github.com/rs/zerolog"

	"relayhub/internal/pkg/logx"
)

// Room is a named group of participants sharing broadcast scope and chat history.
type Room struct {
	// ID is the opaque, externally supplied identifier of the room.
	ID string

	// mu guards participants, history and removed.
	mu sync.Mutex

	// participants maps a client-supplied user id to the connection that last joined with it.
	participants map[string]*Client

	// history holds chat envelopes in arrival order. It is never pruned; it lives and dies
	// with the room.
	history []json.RawMessage

	// removed is set once the registry has dropped the room. A removed room accepts no
	// further mutations; callers re-resolve the id through the registry instead.
	removed bool

	logger zerolog.Logger
}

func newRoom(id string) *Room {
	return &Room{
		ID:           id,
		participants: make(map[string]*Client),
		logger:       logx.Logger().With().Str("room_id", id).Logger(),
	}
}

// Participants returns the sorted user ids currently joined to the room.
func (r *Room) Participants() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.participantIDsLocked()
}

// Len returns the number of joined participants.
func (r *Room) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.participants)
}

// History returns a copy of the chat history in arrival order.
func (r *Room) History() []json.RawMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.history)
}

// HistoryLen returns the number of stored chat envelopes.
func (r *Room) HistoryLen() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.history)
}

// locked runs fn with the room mutex held. It returns false without calling fn when the
// room has already been removed from the registry.
func (r *Room) locked(fn func(r *Room)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.removed {
		return false
	}
	fn(r)
	return true
}

func (r *Room) participantIDsLocked() []string {
	ids := make([]string, 0, len(r.participants))
	for id := range r.participants {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// joinLocked binds c under userID. If c was previously bound under a different id and still
// owns that entry, the old entry is dropped first. An existing entry for userID owned by
// another connection is overwritten (last writer wins).
func (r *Room) joinLocked(c *Client, userID, prevID string) {
	if prevID != "" && prevID != userID && r.participants[prevID] == c {
		delete(r.participants, prevID)
	}

	if existing, ok := r.participants[userID]; ok && existing != c {
		r.logger.Warn().
			Str("user_id", userID).
			Str("displaced_conn_id", existing.id).
			Str("conn_id", c.id).
			Msg("User id already joined. Replacing participant entry.")
	}

	r.participants[userID] = c
	r.logger.Info().
		Str("user_id", userID).
		Int("total_users", len(r.participants)).
		Msg("Participant joined room.")

	r.broadcastParticipantsLocked()
}

// leaveLocked removes userID if the entry still belongs to c and reports whether it did.
// A displaced connection leaving does not touch the entry that replaced it.
func (r *Room) leaveLocked(c *Client, userID string) bool {
	current, ok := r.participants[userID]
	if !ok {
		r.logger.Debug().Str("user_id", userID).Msg("Leave for unknown participant ignored.")
		return false
	}
	if current != c {
		r.logger.Info().Str("stale_user_id", userID).Msg("Ignoring leave for displaced connection.")
		return false
	}

	delete(r.participants, userID)
	r.logger.Info().
		Str("user_id", userID).
		Int("total_users", len(r.participants)).
		Msg("Participant left room.")

	r.broadcastParticipantsLocked()
	return true
}

// appendHistoryLocked stores a chat envelope.
func (r *Room) appendHistoryLocked(frame json.RawMessage) {
	r.history = append(r.history, frame)
}
