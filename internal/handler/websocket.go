package handler

import (
	"log/slog"
	"net/http"
	"slices"

	"github.com/coder/websocket"

	"github.com/johndosdos/relay/internal/config"
	"github.com/johndosdos/relay/internal/relay"
	ws "github.com/johndosdos/relay/internal/websocket"
)

// ServeWs handles the client's websocket connection upgrade.
func ServeWs(h *relay.Hub, cfg config.Config) http.HandlerFunc {
	opts := &websocket.AcceptOptions{
		OriginPatterns:     cfg.AllowedOrigins,
		InsecureSkipVerify: slices.Contains(cfg.AllowedOrigins, "*"),
	}

	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		conn, err := websocket.Accept(w, r, opts)
		if err != nil {
			slog.WarnContext(ctx, "failed to upgrade connection to websocket",
				"error", err,
				"remote_addr", r.RemoteAddr)
			return
		}
		conn.SetReadLimit(cfg.MaxMessageSize)

		c := ws.NewClient(conn, h, r.URL.Query().Get("username"), cfg.SendBuffer)
		c.SetMessageLimiter(cfg.MessageRate, cfg.MessageWindow)
		c.SetTypingLimiter(cfg.TypingRate, cfg.TypingWindow)
		c.SetPingInterval(cfg.PingInterval)

		if err := h.Join(ctx, c); err != nil {
			slog.WarnContext(ctx, "failed to register client",
				"error", err,
				"conn_id", c.ID())
			conn.Close(websocket.StatusTryAgainLater, "server shutting down")
			return
		}

		slog.InfoContext(ctx, "upgraded connection",
			"conn_id", c.ID(),
			"username", c.Username)

		// We block on c.ReadMessage() because the request context will be canceled as soon
		// we return from the ServeWs() handler.
		go c.WriteMessage(ctx)
		c.ReadMessage(ctx)
	}
}
