// Package store picks the game.Store implementation a binary runs against.
package store

import (
	"context"
	"fmt"
	"log/slog"

	"starpets/internal/config"
	"starpets/internal/db"
	"starpets/internal/game"
	"starpets/internal/store/memory"
	"starpets/internal/store/postgres"
)

// Open connects the configured store. The postgres driver applies the schema before
// returning. close releases the pool and is never nil.
func Open(ctx context.Context, cfg config.StoreConfig, logger *slog.Logger) (game.Store, func(), error) {
	switch cfg.Driver {
	case config.StoreDriverMemory:
		logger.Warn("using in-memory store; state is lost on exit")
		return memory.New(), func() {}, nil
	case config.StoreDriverPostgres:
		pool, err := db.Connect(ctx, cfg.DatabaseURL, db.PoolOptions{MaxConns: cfg.MaxConns})
		if err != nil {
			return nil, nil, err
		}
		if err := db.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return postgres.New(pool, logger), pool.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
}
