package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"starpets/internal/config"
	"starpets/internal/game"
	"starpets/internal/logger"
	"starpets/internal/schedule"
	"starpets/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadWorkerFromEnv()
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

	var gate schedule.Gate = schedule.NewLocalGate()
	if cfg.RedisAddr != "" {
		client, err := schedule.DialRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			log.Error("redis connect failed", "err", err)
			os.Exit(1)
		}
		defer client.Close()
		gate = schedule.NewRedisGate(client, "")
	} else {
		log.Warn("REDIS_ADDR not set; job periods are only deduplicated within this process")
	}

	svc := game.NewService(gameStore, log)
	runner := schedule.NewRunner(gate, log,
		schedule.Job{
			Name:  "energy-regen",
			Every: cfg.RegenEvery,
			Run: func(ctx context.Context) error {
				n, err := svc.RegenerateTick(ctx)
				log.Info("energy regenerated", "wallets", n)
				return err
			},
		},
		schedule.Job{
			Name:  "mine-sweep",
			Every: cfg.SweepEvery,
			Run: func(ctx context.Context) error {
				res, err := svc.SettleExpiredSweep(ctx)
				log.Info("mine sweep", "settled", res.Settled, "skipped", res.Skipped, "failed", res.Failed)
				return err
			},
		},
	)

	if cfg.RunOnce {
		runner.RunOnce(ctx)
		log.Info("worker run-once completed")
		return
	}

	log.Info("worker started", "regen_every", cfg.RegenEvery.String(), "sweep_every", cfg.SweepEvery.String())
	runner.Run(ctx)
	log.Info("worker shutdown")
}
