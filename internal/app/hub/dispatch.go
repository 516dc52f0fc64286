/*
Package hub contains the core logic of the signaling and relay hub.

This file implements the message dispatcher: every inbound frame is classified by its "type"
and turned into exactly one protocol action against the connection's room.
*/
package hub

import (
	"fmt"
)

// handleFrame parses and dispatches one inbound frame. Malformed frames are logged and
// dropped. A panic during dispatch is converted to an error so the read loop can end this
// connection without affecting any other.
func (c *Client) handleFrame(frame []byte) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic while handling frame: %v", rec)
		}
	}()

	env, parseErr := ParseEnvelope(frame)
	if parseErr != nil {
		c.logger.Warn().Err(parseErr).
			Int("frame_bytes", len(frame)).
			Msg("Client sent invalid JSON")
		return nil
	}

	c.dispatch(env)
	return nil
}

func (c *Client) dispatch(env Envelope) {
	switch {
	case env.Type == TypeJoinRoom:
		c.handleJoin(env)

	case env.Type.IsRelay():
		c.handleRelay(env)

	case env.Type == TypeChat:
		c.handleChat(env)

	default:
		c.logger.Debug().Str("msg_type", string(env.Type)).Msg("Client sent unsupported message type")
	}
}

// handleJoin binds the envelope's userId to this connection and registers it in the room.
// Re-sending join_room re-binds; there is no duplicate-join guard.
func (c *Client) handleJoin(env Envelope) {
	userID, ok := env.UserID()
	if !ok {
		c.logger.Warn().Msg("join_room without a string userId ignored")
		return
	}

	prevID := c.userID
	c.registry.withRoom(c.roomID, func(r *Room) {
		r.joinLocked(c, userID, prevID)
	})

	c.userID = userID
}

// handleRelay forwards a negotiation envelope verbatim to every participant except the
// sender. Before join_room the sender is unset and nobody is excluded.
func (c *Client) handleRelay(env Envelope) {
	c.registry.withRoom(c.roomID, func(r *Room) {
		n := r.broadcastLocked(env.Raw, c.userID)
		c.logger.Debug().Str("msg_type", string(env.Type)).Int("recipients", n).Msg("Relayed envelope")
	})
}

// handleChat appends the envelope to the room history and forwards it like a relay.
func (c *Client) handleChat(env Envelope) {
	c.registry.withRoom(c.roomID, func(r *Room) {
		r.appendHistoryLocked(env.Raw)
		r.broadcastLocked(env.Raw, c.userID)
	})
}
