// main is the entry point of the school-records application.
//
// STARTUP SEQUENCE:
//  1. Load configuration (.env, then the YAML file)
//  2. Initialise the logger
//  3. Open (and set up) the SQLite database
//  4. Build the notifier, records service and session store
//  5. Start the HTTP server in a separate goroutine
//  6. Block until SIGINT/SIGTERM arrives
//  7. Gracefully shut down: finish in-flight requests, then wait for
//     pending notifications
//
// RUNNING THE SERVER:
//
//	go run ./cmd/school-records --config=config/local.yaml
//
// or (with the environment variable):
//
//	CONFIG_PATH=config/local.yaml go run ./cmd/school-records
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/aanand-mishra/school-records/internal/config"
	"github.com/aanand-mishra/school-records/internal/http/routes"
	"github.com/aanand-mishra/school-records/internal/notify"
	"github.com/aanand-mishra/school-records/internal/records"
	"github.com/aanand-mishra/school-records/internal/session"
	"github.com/aanand-mishra/school-records/internal/storage/sqlite"
)

func main() {
	// ── 1. Load Config ────────────────────────────────────────────────────
	cfg := config.MustLoad()

	// ── 2. Initialise Logger ──────────────────────────────────────────────
	// Handlers log through the slog package functions, so the configured
	// logger becomes the default one.
	log := setupLogger(cfg.Env)
	slog.SetDefault(log)

	log.Info("starting school-records",
		slog.String("env", cfg.Env),
		slog.String("session_store", cfg.Session.Store),
	)

	// ── 3. Initialise Storage ─────────────────────────────────────────────
	if err := os.MkdirAll(filepath.Dir(cfg.StoragePath), 0o755); err != nil {
		log.Error("failed to create storage directory",
			slog.String("error", err.Error()))
		os.Exit(1)
	}

	storage, err := sqlite.New(cfg)
	if err != nil {
		log.Error("failed to initialise storage",
			slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer storage.Close()

	log.Info("storage initialised", slog.String("path", cfg.StoragePath))

	// ── 4. Wire the Application ───────────────────────────────────────────
	// Email delivery is not configured, so notifications are only logged.
	dispatcher := notify.NewDispatcher(notify.NewLogNotifier(log), cfg.Notify.Timeout, log)

	svc := records.New(storage, dispatcher, records.WithBcryptCost(cfg.Auth.BcryptCost))

	server := &http.Server{
		Addr:         cfg.HTTPServer.Addr,
		Handler:      routes.New(svc, newSessionStore(cfg)),
		ReadTimeout:  cfg.HTTPServer.ReadTimeout,
		WriteTimeout: cfg.HTTPServer.WriteTimeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	// ── 5. Start Server in a Goroutine ────────────────────────────────────
	// ListenAndServe returns http.ErrServerClosed once Shutdown is called.
	go func() {
		log.Info("server started", slog.String("address", cfg.HTTPServer.Addr))

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server encountered an error",
				slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	// ── 6. Wait for Shutdown Signal ───────────────────────────────────────
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)
	<-done

	log.Info("shutdown signal received, stopping server...")

	// ── 7. Graceful Shutdown ──────────────────────────────────────────────
	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTPServer.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("failed to shutdown server gracefully",
			slog.String("error", err.Error()))
	}

	// Requests are finished, so no new notifications can be dispatched.
	dispatcher.Wait()

	log.Info("server stopped gracefully")
}

// newSessionStore builds the session store selected by cfg.Session.Store.
// The config loader has already rejected unknown kinds and short secrets.
func newSessionStore(cfg *config.Config) session.Store {
	opts := session.CookieOptions{
		Name:   cfg.Session.CookieName,
		TTL:    cfg.Session.TTL,
		Secure: cfg.Session.Secure,
	}

	if cfg.Session.Store == config.SessionStoreCookie {
		return session.NewCookieStore(cfg.Session.Secret, opts)
	}
	return session.NewMemoryStore(opts)
}

// setupLogger returns a *slog.Logger configured for the given environment.
//
// Development (dev): human-readable text output at DEBUG level.
// Production (prod): machine-readable JSON output at INFO level.
func setupLogger(env string) *slog.Logger {
	switch env {
	case "prod":
		return slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	case "staging":
		return slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	default:
		return slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	}
}
