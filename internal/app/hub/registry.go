/*
Package hub contains the core logic of the signaling and relay hub.

This file defines the Registry, the owner of every Room. It creates rooms lazily when a
connection references an unknown id, removes them as soon as they become empty, and tracks
every attached connection so the process can close them on shutdown.

Lock order is Registry.mu before Room.mu. Code holding a room lock never takes the registry lock.
*/
package hub

import (
	"context"
	"errors"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"relayhub/internal/pkg/logx"
)

const (
	// DefaultSendQueueSize is the per-connection outbound queue length.
	DefaultSendQueueSize = 256

	// DefaultMaxMessageSize is the maximum inbound frame size in bytes; large enough for SDP.
	DefaultMaxMessageSize = 64 * 1024
)

// ErrRegistryClosed is returned by Attach once Shutdown has started.
var ErrRegistryClosed = errors.New("registry is shut down")

// Options configures connections created by a Registry. Zero values select the defaults.
type Options struct {
	SendQueueSize  int
	MaxMessageSize int64
}

// Registry maps room ids to Rooms and is the single point of mutual exclusion for room
// creation and removal.
type Registry struct {
	// mu protects rooms, clients and closed.
	mu sync.Mutex

	rooms map[string]*Room

	// clients holds every attached connection, joined or not.
	clients map[*Client]struct{}

	// closed is set by Shutdown; no new connections are attached afterwards.
	closed bool

	// wg counts attached connections that have not yet finished cleanup.
	wg sync.WaitGroup

	opts Options

	logger zerolog.Logger
}

// NewRegistry constructs an empty Registry.
func NewRegistry(opts Options) *Registry {
	if opts.SendQueueSize <= 0 {
		opts.SendQueueSize = DefaultSendQueueSize
	}
	if opts.MaxMessageSize <= 0 {
		opts.MaxMessageSize = DefaultMaxMessageSize
	}

	return &Registry{
		rooms:   make(map[string]*Room),
		clients: make(map[*Client]struct{}),
		opts:    opts,
		logger:  logx.Logger().With().Str("component", "Registry").Logger(),
	}
}

// GetOrCreate returns the room for id, creating an empty one if absent.
func (g *Registry) GetOrCreate(id string) *Room {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.getOrCreateLocked(id)
}

func (g *Registry) getOrCreateLocked(id string) *Room {
	if room, ok := g.rooms[id]; ok {
		return room
	}

	room := newRoom(id)
	g.rooms[id] = room
	g.logger.Info().Str("room_id", id).Msg("Room created.")
	return room
}

// Get returns the room for id without creating it.
func (g *Registry) Get(id string) (*Room, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	room, ok := g.rooms[id]
	return room, ok
}

// RemoveIfEmpty deletes the room for id iff it has no participants. The emptiness check and
// the deletion happen under both the registry and the room lock, so a joiner racing with the
// removal either lands in the room before the check or re-resolves to a fresh room after it.
func (g *Registry) RemoveIfEmpty(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	room, ok := g.rooms[id]
	if !ok {
		return false
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	if len(room.participants) > 0 {
		return false
	}

	room.removed = true
	delete(g.rooms, id)
	g.logger.Info().
		Str("room_id", id).
		Int("history_size", len(room.history)).
		Msg("Room is empty. Room removed.")
	return true
}

// Len returns the number of rooms currently in the registry.
func (g *Registry) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.rooms)
}

// withRoom runs fn against the live room for id with the room lock held. If the room is
// removed between lookup and locking, the id is resolved again, recreating the room.
func (g *Registry) withRoom(id string, fn func(r *Room)) *Room {
	for {
		room := g.GetOrCreate(id)
		if room.locked(fn) {
			return room
		}
	}
}

// Attach creates an unjoined Client for conn and attaches it to roomID, creating the room if
// needed. The caller must run Client.Serve, whose exit detaches the client again.
func (g *Registry) Attach(roomID string, conn *websocket.Conn) (*Client, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return nil, ErrRegistryClosed
	}

	g.getOrCreateLocked(roomID)

	c := newClient(g, roomID, conn)
	g.clients[c] = struct{}{}
	g.wg.Add(1)

	return c, nil
}

func (g *Registry) detach(c *Client) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.clients[c]; ok {
		delete(g.clients, c)
		g.wg.Done()
	}
}

// Shutdown stops accepting connections, closes every attached connection and waits until
// each has run its disconnect cleanup or ctx expires.
func (g *Registry) Shutdown(ctx context.Context) error {
	g.logger.Info().Msg("Shutting down Registry...")

	g.mu.Lock()
	g.closed = true
	clients := make([]*Client, 0, len(g.clients))
	for c := range g.clients {
		clients = append(clients, c)
	}
	g.mu.Unlock()

	for _, c := range clients {
		c.Close(websocket.CloseGoingAway, "server shutting down")
	}

	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		g.logger.Info().Int("closed_connections", len(clients)).Msg("Registry shutdown complete.")
		return nil
	case <-ctx.Done():
		g.logger.Warn().Msg("Registry shutdown timed out waiting for connections.")
		return ctx.Err()
	}
}

// leave runs the disconnect path for c: if c is still the joined owner of its user id, the
// entry is removed and the updated participant list is broadcast to the remaining
// participants. The room is then removed if it is empty.
func (g *Registry) leave(c *Client) {
	if c.userID != "" {
		if room, ok := g.Get(c.roomID); ok {
			room.locked(func(r *Room) {
				r.leaveLocked(c, c.userID)
			})
		}
	}

	g.RemoveIfEmpty(c.roomID)
}
