package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/johndosdos/relay/internal"
	"github.com/johndosdos/relay/internal/config"
	ratelimiter "github.com/johndosdos/relay/internal/rate_limiter"
	"github.com/johndosdos/relay/internal/relay"
)

// NewRouter mounts every HTTP route of the relay server.
func NewRouter(hub *relay.Hub, store relay.Store, cfg config.Config, limiter *ratelimiter.IPRateLimiter) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	if cfg.TrustProxy {
		// Only a proxy we run may set the client address headers.
		r.Use(middleware.RealIP)
	}
	r.Use(middleware.Recoverer)
	r.Use(internal.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", ServeHealth(hub))

	r.Route("/api", func(r chi.Router) {
		if limiter != nil {
			r.Use(limiter.Middleware)
		}
		r.Get("/messages", ServeMessages(store, cfg.HistoryLimit))
		r.Delete("/messages", DeleteMessages(hub))
	})

	r.Get("/ws", ServeWs(hub, cfg))
	r.Get("/events", StreamSSE(hub, cfg.SendBuffer))

	return r
}
