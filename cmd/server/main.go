package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"localchat/internal/bootstrap"
	"localchat/internal/config"
	httptransport "localchat/internal/transport/http"
)

func main() {
	ctx := context.Background()

	app, err := bootstrap.New(ctx)
	if err != nil {
		slog.Error("bootstrap failed", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := app.Close(); err != nil {
			app.Logger.Error("close resources failed", "error", err)
		}
	}()

	router := httptransport.NewRouter(app)
	server := &http.Server{
		Addr:              app.Config.HTTPAddr(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		app.Logger.Info("server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	waitForShutdown(app.Logger, server, serveErr, drainTimeout(app.Config))
}

// shutdownMargin covers the store writes that follow the last inference call.
const shutdownMargin = 10 * time.Second

// drainTimeout lets an exchange that already passed the rate gate finish.
func drainTimeout(cfg *config.Config) time.Duration {
	return cfg.LLMTimeout() + shutdownMargin
}

// waitForShutdown blocks until a signal, then waits up to drain for in-flight
// requests before returning.
func waitForShutdown(log *slog.Logger, server *http.Server, serveErr <-chan error, drain time.Duration) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Info("shutdown signal received", "signal", sig.String(), "drain", drain.String())
	case err := <-serveErr:
		log.Error("server failed", "error", err)
		return
	}

	shutdown(log, server, drain)
}

func shutdown(log *slog.Logger, server *http.Server, drain time.Duration) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), drain)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown failed", "error", err)
	}
}
