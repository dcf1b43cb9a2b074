// Package main our entry point.
package main

import (
	"context"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/johndosdos/relay/internal/config"
	"github.com/johndosdos/relay/internal/database"
	"github.com/johndosdos/relay/internal/handler"
	ratelimiter "github.com/johndosdos/relay/internal/rate_limiter"
	"github.com/johndosdos/relay/internal/relay"
	"github.com/johndosdos/relay/internal/store"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.SetOutput(os.Stdout)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Println("Starting application...")

	// Init DB
	log.Printf("Initializing Database connection to %s...", cfg.MaskedDatabaseURL())

	dbConn, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("could not connect to the postgresql database: %v", err)
	}

	if err := database.Migrate(ctx, dbConn); err != nil {
		dbConn.Close()
		log.Fatalf("failed to run migrations: %v", err)
	}

	messages := store.NewPostgres(database.New(dbConn))

	// hub.Run is our central hub that is always listening for client related events.
	hub := relay.NewHub(messages, cfg.MaxContentLength)
	hubDone := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(hubDone)
	}()

	limiter := ratelimiter.NewIPRateLimiter(cfg.APIRate, cfg.APIWindow, ratelimiter.CleanupOpts{
		TTL:      3 * cfg.APIWindow,
		Interval: time.Minute,
	})
	defer limiter.Stop()

	server := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Port,
		Handler:           handler.NewRouter(hub, messages, cfg, limiter),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       30 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		log.Printf("Server starting at 0.0.0.0:%s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("Shutdown signal received; shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Println(err)
	}

	// The hub closes every connection's queue once ctx is done.
	<-hubDone

	// Close DB connection.
	dbConn.Close()

	log.Println("Server stopped")
}
