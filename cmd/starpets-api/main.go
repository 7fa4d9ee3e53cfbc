package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"starpets/internal/api"
	"starpets/internal/config"
	"starpets/internal/game"
	"starpets/internal/logger"
	"starpets/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadAPIFromEnv()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log.Level, cfg.Log.JSON)
	gameStore, closeStore, err := store.Open(ctx, cfg.Store, log)
	if err != nil {
		log.Error("store open failed", "driver", cfg.Store.Driver, "err", err)
		os.Exit(1)
	}
	defer closeStore()

	gameSvc := game.NewService(gameStore, log)
	server := api.New(cfg, log, gameSvc)
	go server.RunLimiterJanitor(ctx, time.Minute)
	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	log.Info("starpets api listening", "addr", cfg.Addr, "store", cfg.Store.Driver)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server failed", "err", err)
		os.Exit(1)
	}
}
