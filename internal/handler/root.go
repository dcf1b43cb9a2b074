package handler

import (
	"net/http"
	"time"
)

type healthResponse struct {
	Status      string    `json:"status"`
	Message     string    `json:"message"`
	Timestamp   time.Time `json:"timestamp"`
	Connections int       `json:"connections"`
}

type counter interface {
	Count() int
}

// ServeHealth reports that the server is up and how many clients are connected.
func ServeHealth(hub counter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, healthResponse{
			Status:      "OK",
			Message:     "WebSocket server is running",
			Timestamp:   time.Now().UTC(),
			Connections: hub.Count(),
		})
	}
}
