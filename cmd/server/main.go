package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"

	"github.com/rakhisingh42/Chat-Application/internal/chat"
	"github.com/rakhisingh42/Chat-Application/internal/config"
	"github.com/rakhisingh42/Chat-Application/internal/logger"
	"github.com/rakhisingh42/Chat-Application/internal/server"
	"github.com/rakhisingh42/Chat-Application/internal/session"
	"github.com/rakhisingh42/Chat-Application/internal/store"
	"github.com/rakhisingh42/Chat-Application/internal/uploads"
)

func main() {
	// Optional .env for local development.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logger.L.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger.SetLevel(cfg.Log.Level)

	st, err := store.Open(cfg.Database.Path)
	if err != nil {
		logger.L.Error("failed to open store", "path", cfg.Database.Path, "error", err)
		os.Exit(1)
	}
	defer st.Close()

	files, err := uploads.NewFileStore(cfg.Uploads.Dir, cfg.Uploads.AllowedExtensions)
	if err != nil {
		logger.L.Error("failed to prepare upload dir", "dir", cfg.Uploads.Dir, "error", err)
		os.Exit(1)
	}

	directory := session.NewDirectory()
	registry := chat.NewBlockRegistry(st)
	engine := chat.NewEngine(st, registry, directory)
	go engine.Run()

	gateway := server.NewGateway(engine, directory, registry, st, files, cfg)
	httpServer := server.CreateServer(cfg.Server.Addr, server.NewRouter(gateway))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.StartServer(httpServer)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.L.Error("server error", "error", err)
			os.Exit(1)
		}
		return
	}

	_ = server.ShutdownServer(httpServer, cfg.Server.ShutdownTimeout)
	directory.CloseAll(websocket.CloseGoingAway, "server shutting down")
	if err := engine.Shutdown(cfg.Server.ShutdownTimeout); err != nil {
		logger.L.Warn("engine shutdown timed out", "error", err)
	}
}
