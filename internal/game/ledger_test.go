package game_test

import (
	"context"
	"testing"

	"starpets/internal/game"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestMutateBalanceWritesOneRowPerChange(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	bal, err := h.svc.MutateBalance(ctx, "u1", game.CurrencyShell, decimal.NewFromInt(100), game.TxEarn, game.SourceAdmin)
	require.NoError(t, err)
	requireDecimal(t, 100, bal)

	bal, err = h.svc.MutateBalance(ctx, "u1", game.CurrencyShell, decimal.NewFromInt(-30), game.TxSpend, game.SourceAdmin)
	require.NoError(t, err)
	requireDecimal(t, 70, bal)

	_, err = h.svc.MutateBalance(ctx, "u1", game.CurrencyShell, decimal.NewFromInt(-71), game.TxSpend, game.SourceAdmin)
	require.ErrorIs(t, err, game.ErrInsufficientFunds)
	require.ErrorIs(t, err, game.ErrInsufficientResource)

	bal, err = h.svc.MutateBalance(ctx, "u1", game.CurrencyShell, decimal.Zero, game.TxEarn, game.SourceAdmin)
	require.NoError(t, err)
	requireDecimal(t, 70, bal)

	txs, err := h.svc.Transactions(ctx, "u1", 0)
	require.NoError(t, err)
	require.Len(t, txs, 2, "zero and rejected deltas leave no rows")
	require.Equal(t, game.TxSpend, txs[0].Type, "newest first")
	requireDecimal(t, 30, txs[0].Amount)

	h.requireLedgerBalanced(t, "u1")
}

func TestMutateBalanceRejectsMismatchedType(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.MutateBalance(ctx, "u1", game.CurrencyGem, decimal.NewFromInt(-5), game.TxEarn, game.SourceAdmin)
	require.ErrorIs(t, err, game.ErrInvalidTxType)
	_, err = h.svc.MutateBalance(ctx, "u1", game.CurrencyGem, decimal.NewFromInt(5), game.TxSpend, game.SourceAdmin)
	require.ErrorIs(t, err, game.ErrValidation)
	_, err = h.svc.MutateBalance(ctx, " ", game.CurrencyGem, decimal.NewFromInt(5), game.TxEarn, game.SourceAdmin)
	require.ErrorIs(t, err, game.ErrInvalidUser)
}

func TestMutateBalanceRoundsToCents(t *testing.T) {
	h := newHarness(t)
	bal, err := h.svc.MutateBalance(context.Background(), "u1", game.CurrencyGem, decimal.RequireFromString("1.005"), game.TxEarn, game.SourceAdmin)
	require.NoError(t, err)
	require.Equal(t, "1.01", bal.StringFixed(2))
	h.requireLedgerBalanced(t, "u1")
}

func TestMutateEnergyClampsAndAlwaysLogs(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	e, err := h.svc.MutateEnergy(ctx, "u1", 10, game.EnergyAdmin)
	require.NoError(t, err)
	require.Equal(t, game.MaxEnergy, e)

	e, err = h.svc.MutateEnergy(ctx, "u1", -130, game.EnergyAdmin)
	require.NoError(t, err)
	require.Equal(t, 0, e)

	entries, err := h.svc.EnergyHistory(ctx, "u1", 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, -100, entries[0].Amount)
	require.Equal(t, -130, entries[0].Requested)
	require.Equal(t, 0, entries[1].Amount, "clamped no-op is still recorded")
	require.Equal(t, 10, entries[1].Requested)

	h.requireLedgerBalanced(t, "u1")
}

func TestWalletStartsWithStarterEnergy(t *testing.T) {
	h := newHarness(t)
	w := h.wallet(t, "fresh")
	require.Equal(t, game.StarterEnergy, w.Energy)
	require.True(t, w.GemBalance.IsZero())
	require.True(t, w.ShellBalance.IsZero())
	require.True(t, w.MineTickets.IsZero())
}
