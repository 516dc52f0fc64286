package hub

// broadcastLocked delivers frame to every participant except the one joined as exclude.
// An empty exclude targets all participants. Each recipient is attempted independently:
// a failed enqueue is logged and never stops delivery to the others.
// Returns the number of recipients the frame was queued for. Caller holds r.mu.
func (r *Room) broadcastLocked(frame []byte, exclude string) int {
	delivered := 0

	for userID, c := range r.participants {
		if exclude != "" && userID == exclude {
			continue
		}

		if err := c.Send(frame); err != nil {
			r.logger.Warn().
				Err(err).
				Str("recipient", userID).
				Str("recipient_conn_id", c.id).
				Msg("Broadcast delivery failed for recipient.")
			continue
		}
		delivered++
	}

	return delivered
}

// broadcastParticipantsLocked sends the current participant list to every participant.
// The list is taken under the same lock as the membership change that triggered it.
func (r *Room) broadcastParticipantsLocked() {
	frame, err := newParticipantsMessage(r.participantIDsLocked())
	if err != nil {
		r.logger.Error().Err(err).Msg("Failed to build room_participants message.")
		return
	}

	r.broadcastLocked(frame, "")
}
