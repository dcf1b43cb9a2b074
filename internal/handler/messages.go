package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/johndosdos/relay/internal/model"
	"github.com/johndosdos/relay/internal/relay"
)

type listResponse struct {
	Success  bool            `json:"success"`
	Messages []model.Message `json:"messages"`
}

type statusResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ServeMessages returns the most recent messages, newest first.
func ServeMessages(store relay.Store, limit int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		messages, err := store.ListRecentMessages(ctx, limit)
		if err != nil {
			slog.ErrorContext(ctx, "failed to load messages from database",
				"error", err)
			respondJSON(w, http.StatusInternalServerError, statusResponse{
				Error: "Failed to fetch messages",
			})
			return
		}

		if messages == nil {
			messages = []model.Message{}
		}

		respondJSON(w, http.StatusOK, listResponse{
			Success:  true,
			Messages: messages,
		})
	}
}

// DeleteMessages clears the message history and notifies every connection.
func DeleteMessages(h *relay.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if err := h.ClearAll(ctx); err != nil {
			slog.ErrorContext(ctx, "failed to delete messages",
				"error", err)
			respondJSON(w, http.StatusInternalServerError, statusResponse{
				Error: "Failed to delete messages",
			})
			return
		}

		slog.InfoContext(ctx, "all messages deleted")
		respondJSON(w, http.StatusOK, statusResponse{
			Success: true,
			Message: "All messages deleted",
		})
	}
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to write response", "error", err)
	}
}
