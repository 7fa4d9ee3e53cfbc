package postgres_test

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"starpets/internal/db"
	"starpets/internal/game"
	"starpets/internal/store/postgres"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T) *game.Service {
	t.Helper()
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	pool, err := db.Connect(ctx, url, db.PoolOptions{MaxConns: 8, MinConns: 1})
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, db.Migrate(ctx, pool))
	return game.NewService(postgres.New(pool, nil), nil)
}

func TestStarterFlow(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	user := "it-" + uuid.NewString()

	c, err := svc.GrantNewbieCreature(ctx, user)
	require.NoError(t, err)
	require.Equal(t, game.RarityCommon, c.Rarity)

	_, err = svc.GrantNewbieCreature(ctx, user)
	require.ErrorIs(t, err, game.ErrNewbieAlreadyGranted)

	w, err := svc.Wallet(ctx, user)
	require.NoError(t, err)
	require.Equal(t, game.StarterEnergy, w.Energy)
	require.True(t, w.ShellBalance.Equal(decimal.NewFromInt(game.NewbieShellGrant)))

	views, err := svc.ListCreatures(ctx, user)
	require.NoError(t, err)
	require.Len(t, views, 1)
	require.Equal(t, c.ID, views[0].ID)

	res, err := svc.AddExp(ctx, c.ID, 900)
	require.NoError(t, err)
	require.Equal(t, 3, res.Creature.Level)
}

func TestOverdraftLeavesNoTrace(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	user := "it-" + uuid.NewString()

	_, err := svc.MutateBalance(ctx, user, game.CurrencyGem, decimal.NewFromInt(5), game.TxEarn, game.SourceAdmin)
	require.NoError(t, err)
	_, err = svc.MutateBalance(ctx, user, game.CurrencyGem, decimal.NewFromInt(-6), game.TxSpend, game.SourceAdmin)
	require.ErrorIs(t, err, game.ErrInsufficientFunds)

	txs, err := svc.Transactions(ctx, user, 10)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	require.True(t, txs[0].Amount.Equal(decimal.NewFromInt(5)))
}

func TestConcurrentDebitsSerialize(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	user := "it-" + uuid.NewString()
	_, err := svc.MutateBalance(ctx, user, game.CurrencyShell, decimal.NewFromInt(100), game.TxEarn, game.SourceAdmin)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.MutateBalance(ctx, user, game.CurrencyShell, decimal.NewFromInt(-20), game.TxSpend, game.SourceAdmin)
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		require.True(t, errors.Is(err, game.ErrInsufficientFunds) || errors.Is(err, game.ErrTxConflict), "unexpected error: %v", err)
	}
	require.LessOrEqual(t, ok, 5)
	w, err := svc.Wallet(ctx, user)
	require.NoError(t, err)
	require.True(t, w.ShellBalance.Equal(decimal.NewFromInt(int64(100-20*ok))))
}
