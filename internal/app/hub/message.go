/*
Package hub contains the core logic of the signaling and relay hub: the room registry, per-room
membership and chat history, the per-connection read and write loops, message dispatch and
fan-out to room participants.

This file defines the envelope types exchanged over the signaling connection.
*/
package hub

import (
	"encoding/json"
)

// MessageType is the value of an envelope's "type" discriminator.
type MessageType string

const (
	// TypeJoinRoom binds a user id to the connection and registers it as a room participant.
	TypeJoinRoom MessageType = "join_room"

	// TypeOffer, TypeAnswer and TypeICECandidate are WebRTC negotiation envelopes.
	// Their payload is opaque and relayed verbatim.
	TypeOffer        MessageType = "offer"
	TypeAnswer       MessageType = "answer"
	TypeICECandidate MessageType = "ice-candidate"

	// TypeChat is relayed verbatim and appended to the room's chat history.
	TypeChat MessageType = "chat"

	// TypeRoomParticipants is sent by the hub whenever room membership changes.
	TypeRoomParticipants MessageType = "room_participants"
)

// IsRelay reports whether t is a pure relay type.
func (t MessageType) IsRelay() bool {
	switch t {
	case TypeOffer, TypeAnswer, TypeICECandidate:
		return true
	}
	return false
}

// Envelope is the routing view of one inbound frame. Only "type" is interpreted for every
// frame; "userId" is kept undecoded until join_room needs it, so relay and chat payloads are
// never rejected over its shape. Raw keeps the frame exactly as received.
type Envelope struct {
	Type MessageType

	userID json.RawMessage

	Raw json.RawMessage
}

// wireEnvelope is the decoding shape of an inbound frame.
type wireEnvelope struct {
	Type   json.RawMessage `json:"type"`
	UserID json.RawMessage `json:"userId"`
}

// ParseEnvelope decodes a text frame. Only frames that are not a JSON object are rejected as
// malformed. A "type" that is not a string yields an empty Type, which dispatch ignores.
func ParseEnvelope(frame []byte) (Envelope, error) {
	var wire wireEnvelope
	if err := json.Unmarshal(frame, &wire); err != nil {
		return Envelope{}, err
	}

	env := Envelope{userID: wire.UserID, Raw: frame}

	var typ string
	if json.Unmarshal(wire.Type, &typ) == nil {
		env.Type = MessageType(typ)
	}

	return env, nil
}

// UserID returns the envelope's "userId" when it is a non-empty JSON string.
func (e Envelope) UserID() (string, bool) {
	if len(e.userID) == 0 {
		return "", false
	}

	var id string
	if err := json.Unmarshal(e.userID, &id); err != nil || id == "" {
		return "", false
	}
	return id, true
}

// ParticipantsMessage lists the user ids currently joined to a room.
type ParticipantsMessage struct {
	Type         MessageType `json:"type"`
	Participants []string    `json:"participants"`
}

func newParticipantsMessage(ids []string) ([]byte, error) {
	return json.Marshal(ParticipantsMessage{
		Type:         TypeRoomParticipants,
		Participants: ids,
	})
}
