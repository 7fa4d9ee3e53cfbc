package game_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"starpets/internal/game"
	"starpets/internal/store/memory"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type harness struct {
	svc   *game.Service
	store *memory.Store
	clock *testClock
}

func newHarness(t *testing.T, rolls ...float64) *harness {
	t.Helper()
	clock := &testClock{now: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}
	st := memory.New()
	return &harness{
		svc:   game.NewService(st, nil, game.WithClock(clock.Now), game.WithRand(game.NewSequenceRand(rolls...))),
		store: st,
		clock: clock,
	}
}

func (h *harness) seedCreature(t *testing.T, userID string, rarity game.Rarity, level int) game.Creature {
	t.Helper()
	c := game.Creature{
		ID:        uuid.NewString(),
		UserID:    userID,
		Name:      "seed-" + string(rarity),
		Rarity:    rarity,
		Level:     level,
		Exp:       game.RequiredExp(level),
		CreatedAt: h.clock.Now(),
	}
	err := h.store.WithUser(context.Background(), userID, func(tx game.Tx) error {
		return tx.InsertCreature(context.Background(), &c)
	})
	require.NoError(t, err)
	return c
}

func (h *harness) credit(t *testing.T, userID string, currency game.Currency, amount int64) {
	t.Helper()
	_, err := h.svc.MutateBalance(context.Background(), userID, currency, decimal.NewFromInt(amount), game.TxEarn, game.SourceAdmin)
	require.NoError(t, err)
}

func (h *harness) setEnergy(t *testing.T, userID string, energy int) {
	t.Helper()
	w, err := h.svc.Wallet(context.Background(), userID)
	require.NoError(t, err)
	_, err = h.svc.MutateEnergy(context.Background(), userID, energy-w.Energy, game.EnergyAdmin)
	require.NoError(t, err)
}

func (h *harness) wallet(t *testing.T, userID string) game.Wallet {
	t.Helper()
	w, err := h.svc.Wallet(context.Background(), userID)
	require.NoError(t, err)
	return w
}

func (h *harness) creatures(t *testing.T, userID string) []game.CreatureView {
	t.Helper()
	out, err := h.svc.ListCreatures(context.Background(), userID)
	require.NoError(t, err)
	return out
}

func requireDecimal(t *testing.T, want int64, got decimal.Decimal) {
	t.Helper()
	require.Truef(t, got.Equal(decimal.NewFromInt(want)), "want %d, got %s", want, got.String())
}

// requireLedgerBalanced checks that the transaction log replays to the wallet balances
// and the energy log to the wallet energy.
func (h *harness) requireLedgerBalanced(t *testing.T, userID string) {
	t.Helper()
	ctx := context.Background()
	w := h.wallet(t, userID)
	txs, err := h.svc.Transactions(ctx, userID, 500)
	require.NoError(t, err)
	sums := map[game.Currency]decimal.Decimal{}
	for _, row := range txs {
		amt := row.Amount
		if row.Type == game.TxSpend {
			amt = amt.Neg()
		}
		sums[row.Currency] = sums[row.Currency].Add(amt)
	}
	for _, c := range []game.Currency{game.CurrencyGem, game.CurrencyShell, game.CurrencyTicket} {
		require.Truef(t, sums[c].Equal(w.Balance(c)), "%s ledger %s != balance %s", c, sums[c], w.Balance(c))
	}
	entries, err := h.svc.EnergyHistory(ctx, userID, 500)
	require.NoError(t, err)
	total := 0
	for _, e := range entries {
		total += e.Amount
	}
	require.Equal(t, w.Energy-game.StarterEnergy, total)
}
