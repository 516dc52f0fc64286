/*
Package hub contains the core logic of the signaling and relay hub.

This file defines the Client struct, representing one accepted WebSocket connection. Inbound
and outbound traffic are separate concerns: ReadPump reads and dispatches frames on the
connection's own goroutine, while WritePump is the only writer of data frames and drains a
bounded queue that any number of broadcasters may fill concurrently.
*/
package hub

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"relayhub/internal/pkg/logx"
	"relayhub/internal/pkg/randx"
)

const (
	// timeout duration for writing to the WebSocket connection.
	writeWait = 10 * time.Second

	// maximum time allowed for the server to wait for a Pong message from the client.
	pongWait = 60 * time.Second

	// frequency at which the server sends a Ping message.
	pingPeriod = (pongWait * 9) / 10
)

var (
	// ErrClientClosed is returned by Send after the connection reached its Closed state.
	ErrClientClosed = errors.New("client connection closed")

	// ErrSendQueueFull is returned by Send when the recipient's outbound queue is full.
	ErrSendQueueFull = errors.New("client send queue full")
)

// Client is one client's session from accept to close.
type Client struct {
	// id correlates log lines for this socket; it is not a user identity.
	id string

	// roomID is the room this connection was attached to from the endpoint path.
	roomID string

	// userID is bound by join_room. Empty until then. Only the read loop touches it.
	userID string

	registry *Registry

	// underlying WebSocket connection object.
	conn *websocket.Conn

	// send queues outbound frames for WritePump. It is never closed; done signals shutdown.
	send chan []byte

	// done is closed exactly once when the connection enters the Closed state.
	done      chan struct{}
	closeOnce sync.Once

	cleanupOnce sync.Once

	maxMessageSize int64

	// structured logger with connection and room context.
	logger zerolog.Logger
}

func newClient(registry *Registry, roomID string, conn *websocket.Conn) *Client {
	id := randx.ConnID()

	return &Client{
		id:             id,
		roomID:         roomID,
		registry:       registry,
		conn:           conn,
		send:           make(chan []byte, registry.opts.SendQueueSize),
		done:           make(chan struct{}),
		maxMessageSize: registry.opts.MaxMessageSize,
		logger: logx.Logger().With().
			Str("conn_id", id).
			Str("room_id", roomID).
			Logger(),
	}
}

// ID returns the connection identifier.
func (c *Client) ID() string { return c.id }

// RoomID returns the room this connection is attached to.
func (c *Client) RoomID() string { return c.roomID }

// Send queues frame for delivery without blocking the caller.
func (c *Client) Send(frame []byte) error {
	select {
	case <-c.done:
		return ErrClientClosed
	default:
	}

	select {
	case c.send <- frame:
		return nil
	case <-c.done:
		return ErrClientClosed
	default:
		return ErrSendQueueFull
	}
}

// Close moves the connection to its Closed state. It is safe to call from any goroutine and
// any number of times; only the first call has an effect. The close frame is written with
// WriteControl, which gorilla/websocket allows concurrently with the writer goroutine.
func (c *Client) Close(code int, reason string) {
	c.closeOnce.Do(func() {
		close(c.done)

		if c.conn == nil {
			return
		}

		msg := websocket.FormatCloseMessage(code, reason)
		if err := c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait)); err != nil &&
			!errors.Is(err, websocket.ErrCloseSent) {
			c.logger.Debug().Err(err).Msg("Failed to send close frame")
		}

		if err := c.conn.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("Client connection close error")
		}
	})
}

// Serve runs the connection until it closes: WritePump in its own goroutine and ReadPump on
// the calling goroutine.
func (c *Client) Serve() {
	go c.WritePump()
	c.ReadPump()
}

// ReadPump reads frames until the transport fails or dispatch hits an unexpected error, then
// runs the disconnect cleanup.
func (c *Client) ReadPump() {
	defer c.cleanupOnDisconnect()

	c.conn.SetReadLimit(c.maxMessageSize)

	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set read deadline")
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Info().Err(err).Msg("Connection closed unexpectedly")
			}
			return
		}

		if err := c.handleFrame(frame); err != nil {
			c.logger.Error().Err(err).Msg("Unexpected failure handling frame. Closing connection.")
			return
		}
	}
}

// cleanupOnDisconnect leaves the room if joined, removes the room when it became empty and
// detaches the client from the registry. It runs at most once per connection.
func (c *Client) cleanupOnDisconnect() {
	c.cleanupOnce.Do(func() {
		c.logger.Info().Str("user_id", c.userID).Msg("Client connection cleanup starting.")

		c.Close(websocket.CloseNormalClosure, "")
		c.registry.leave(c)
		c.registry.detach(c)
	})
}

// WritePump writes queued frames and periodic pings. It is the only goroutine that writes
// data frames to the connection. A write failure closes the connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case frame := <-c.send:
			if !c.write(websocket.TextMessage, frame) {
				c.Close(websocket.CloseInternalServerErr, "write failed")
				return
			}

		case <-ticker.C:
			if !c.write(websocket.PingMessage, nil) {
				c.Close(websocket.CloseInternalServerErr, "ping failed")
				return
			}

		case <-c.done:
			return
		}
	}
}

func (c *Client) write(messageType int, data []byte) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline")
		return false
	}

	if err := c.conn.WriteMessage(messageType, data); err != nil {
		c.logger.Warn().Err(err).Int("message_type", messageType).Msg("Error writing message")
		return false
	}

	return true
}
