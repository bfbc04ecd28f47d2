package server

import (
	"context"
	"net/http"
	"time"

	"github.com/rakhisingh42/Chat-Application/internal/logger"
)

// CreateServer creates and configures an HTTP server with the given address
// and handler, applying production timeout defaults. The read timeout only
// covers headers so long-lived websocket connections stay open.
func CreateServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

// StartServer starts the HTTP server and blocks until it exits.
func StartServer(server *http.Server) error {
	logger.L.Info("server listening", "addr", server.Addr)
	return server.ListenAndServe()
}

// ShutdownServer gracefully shuts down the HTTP server, waiting for active
// connections to close or until the timeout is reached.
func ShutdownServer(server *http.Server, timeout time.Duration) error {
	logger.L.Info("shutting down http server")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.L.Error("http server shutdown error", "error", err)
		return err
	}

	logger.L.Info("http server shutdown completed")
	return nil
}
