// Package websocket binds one WebSocket connection to the relay hub.
package websocket

import (
	"context"
	"log/slog"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/johndosdos/relay/internal/relay"
)

const writeWait = 10 * time.Second

// Client is one connected WebSocket session.
type Client struct {
	id         uuid.UUID
	Username   string
	conn       *websocket.Conn
	hub        *relay.Hub
	send       chan []byte
	messageLim *rate.Limiter
	typingLim  *rate.Limiter
	pingEvery  time.Duration
}

// NewClient returns a Client with an outbound queue of sendBuffer frames.
func NewClient(conn *websocket.Conn, hub *relay.Hub, username string, sendBuffer int) *Client {
	return &Client{
		id:       uuid.New(),
		Username: username,
		conn:     conn,
		hub:      hub,
		send:     make(chan []byte, sendBuffer),
	}
}

func (c *Client) SetMessageLimiter(requests int, window time.Duration) {
	c.messageLim = newLimiter(requests, window)
}

func (c *Client) SetTypingLimiter(requests int, window time.Duration) {
	c.typingLim = newLimiter(requests, window)
}

// SetPingInterval enables keepalive pings. Zero disables them.
func (c *Client) SetPingInterval(d time.Duration) {
	c.pingEvery = d
}

func newLimiter(requests int, window time.Duration) *rate.Limiter {
	return rate.NewLimiter(rate.Every(window/time.Duration(requests)), requests)
}

// ID identifies the connection to the hub.
func (c *Client) ID() string {
	return c.id.String()
}

// Deliver queues frame for the write loop. A full queue drops the frame.
func (c *Client) Deliver(frame []byte) bool {
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// Close stops the write loop. Only the hub calls it, once.
func (c *Client) Close() {
	close(c.send)
}

// WriteMessage writes queued frames to the connection and pings it until the
// hub closes the queue or ctx ends.
func (c *Client) WriteMessage(ctx context.Context) {
	var ping <-chan time.Time
	if c.pingEvery > 0 {
		ticker := time.NewTicker(c.pingEvery)
		defer ticker.Stop()
		ping = ticker.C
	}

	for {
		select {
		case frame, ok := <-c.send:
			// The hub closed our queue; the session is over.
			if !ok {
				c.conn.Close(websocket.StatusNormalClosure, "channel closed")
				return
			}

			writeCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Write(writeCtx, websocket.MessageText, frame)
			cancel()
			if err != nil {
				slog.WarnContext(ctx, "failed to write frame",
					"error", err,
					"conn_id", c.ID(),
					"username", c.Username)
				continue
			}

		case <-ping:
			pingCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Ping(pingCtx)
			cancel()
			if err != nil {
				slog.WarnContext(ctx, "failed to send ping signal",
					"error", err,
					"conn_id", c.ID())
				c.conn.CloseNow()
				return
			}

		case <-ctx.Done():
			c.conn.Close(websocket.StatusGoingAway, "context cancelled")
			return
		}
	}
}
