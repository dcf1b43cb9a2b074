package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/johndosdos/relay/internal/relay"
)

// sseClient is a read-only peer fed by the hub.
type sseClient struct {
	id   string
	send chan []byte
}

func (c *sseClient) ID() string { return c.id }

func (c *sseClient) Deliver(frame []byte) bool {
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

func (c *sseClient) Close() { close(c.send) }

// StreamSSE streams every event the connection would receive over a
// WebSocket as server-sent events. The stream is read-only and is not
// counted in user_count.
func StreamSSE(h *relay.Hub, sendBuffer int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		w.Header().Set("X-Accel-Buffering", "no")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("Content-Type", "text/event-stream")

		c := &sseClient{id: uuid.NewString(), send: make(chan []byte, sendBuffer)}
		if err := h.Watch(ctx, c); err != nil {
			http.Error(w, "Server is shutting down.", http.StatusServiceUnavailable)
			return
		}
		defer h.Leave(context.WithoutCancel(ctx), c)

		w.WriteHeader(http.StatusOK)

		rc := http.NewResponseController(w)
		if err := rc.Flush(); err != nil {
			slog.WarnContext(ctx, "could not flush buffer to writer", "error", err)
			return
		}

		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case frame, ok := <-c.send:
				if !ok {
					return
				}

				var env relay.Envelope
				if err := json.Unmarshal(frame, &env); err != nil {
					slog.WarnContext(ctx, "failed to decode frame", "error", err)
					continue
				}

				fmt.Fprintf(w, "event: %s\n", env.Event) //nolint:errcheck
				if len(env.Data) > 0 {
					fmt.Fprintf(w, "data: %s\n", env.Data) //nolint:errcheck
				} else {
					fmt.Fprint(w, "data: \n") //nolint:errcheck
				}
				fmt.Fprint(w, "\n") //nolint:errcheck

				if err := rc.Flush(); err != nil {
					slog.WarnContext(ctx, "could not flush buffer to writer", "error", err)
					return
				}

			case <-ticker.C:
				fmt.Fprint(w, ": \n\n") //nolint:errcheck
				if err := rc.Flush(); err != nil {
					slog.WarnContext(ctx, "could not flush buffer to writer", "error", err)
					return
				}

			case <-ctx.Done():
				return
			}
		}
	}
}
