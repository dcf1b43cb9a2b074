package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/coder/websocket"

	"github.com/johndosdos/relay/internal/apperrors"
	"github.com/johndosdos/relay/internal/relay"
)

// ReadMessage reads inbound envelopes and hands them to the hub until the
// connection ends. It always leaves the hub on return.
func (c *Client) ReadMessage(ctx context.Context) {
	defer func() {
		// The request context may already be gone; leaving must still happen.
		c.hub.Leave(context.WithoutCancel(ctx), c)
		c.conn.CloseNow()
	}()

	for {
		msgType, p, err := c.conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure &&
				status != websocket.StatusGoingAway &&
				status != -1 {
				slog.WarnContext(ctx, "connection closed",
					"error", fmt.Errorf("%w: %v", apperrors.ErrConnection, err),
					"conn_id", c.ID())
			}
			return
		}

		// Only JSON text frames carry events.
		if msgType != websocket.MessageText {
			continue
		}

		var env relay.Envelope
		if err := json.Unmarshal(p, &env); err != nil {
			slog.WarnContext(ctx, "failed to process payload from client",
				"error", err,
				"conn_id", c.ID())
			continue
		}

		if !c.allow(env.Event) {
			if env.Event == relay.KindSendMessage {
				if err := c.hub.Reject(ctx, c.ID(), relay.MsgRateLimited, apperrors.ErrRateLimited); err != nil {
					return
				}
			}
			slog.DebugContext(ctx, "rate limited",
				"event", env.Event,
				"conn_id", c.ID())
			continue
		}

		if err := c.hub.Submit(ctx, c.ID(), env); err != nil {
			return
		}
	}
}

func (c *Client) allow(kind relay.Kind) bool {
	switch kind {
	case relay.KindSendMessage:
		return c.messageLim == nil || c.messageLim.Allow()
	case relay.KindTyping, relay.KindStopTyping:
		return c.typingLim == nil || c.typingLim.Allow()
	}
	return true
}
