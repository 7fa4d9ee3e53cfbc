package game_test

import (
	"context"
	"testing"

	"starpets/internal/game"

	"github.com/stretchr/testify/require"
)

func (h *harness) seedMaterials(t *testing.T, userID string, rarity game.Rarity, n int) []string {
	t.Helper()
	ids := make([]string, 0, n)
	for range n {
		ids = append(ids, h.seedCreature(t, userID, rarity, 1).ID)
	}
	return ids
}

func TestAttemptFusionSuccess(t *testing.T) {
	h := newHarness(t, 0.5, 0)
	ctx := context.Background()
	ids := h.seedMaterials(t, "u1", game.RarityCommon, 3)
	h.credit(t, "u1", game.CurrencyShell, 300)

	res, err := h.svc.AttemptFusion(ctx, game.FusionInput{UserID: "u1", MaterialIDs: ids, TargetRarity: game.RarityRare})
	require.NoError(t, err)
	require.True(t, res.Success)
	require.NotNil(t, res.NewCreature)
	require.Equal(t, game.RarityRare, res.NewCreature.Rarity)
	require.Equal(t, 1, res.NewCreature.Level)
	require.Zero(t, res.NewCreature.Exp)
	require.Equal(t, "Starling", res.NewCreature.Name)
	requireDecimal(t, 200, res.ShellCost)

	requireDecimal(t, 100, h.wallet(t, "u1").ShellBalance)
	left := h.creatures(t, "u1")
	require.Len(t, left, 1)
	require.Equal(t, res.NewCreature.ID, left[0].ID)

	history, err := h.svc.FusionHistory(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Len(t, history[0].Materials, 3)
	require.Equal(t, res.NewCreature.ID, history[0].ResultCreatureID)
	require.Equal(t, 0.5, history[0].Roll)
	h.requireLedgerBalanced(t, "u1")
}

func TestAttemptFusionFailureConsumesMaterials(t *testing.T) {
	h := newHarness(t, 0.9)
	ctx := context.Background()
	ids := h.seedMaterials(t, "u1", game.RarityCommon, 3)
	h.credit(t, "u1", game.CurrencyShell, 200)

	res, err := h.svc.AttemptFusion(ctx, game.FusionInput{UserID: "u1", MaterialIDs: ids, TargetRarity: game.RarityRare})
	require.NoError(t, err)
	require.False(t, res.Success)
	require.Nil(t, res.NewCreature)
	require.Empty(t, h.creatures(t, "u1"))
	require.True(t, h.wallet(t, "u1").ShellBalance.IsZero())
	h.requireLedgerBalanced(t, "u1")
}

func TestAttemptFusionProtectionAlwaysSucceeds(t *testing.T) {
	h := newHarness(t, 0.99)
	ctx := context.Background()
	ids := h.seedMaterials(t, "u1", game.RarityLegendary, 3)
	h.credit(t, "u1", game.CurrencyShell, 2000)

	res, err := h.svc.AttemptFusion(ctx, game.FusionInput{UserID: "u1", MaterialIDs: ids, TargetRarity: game.RarityMythic, UseProtection: true})
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Equal(t, game.RarityMythic, res.NewCreature.Rarity)
}

func TestAttemptFusionRejectsBadMaterials(t *testing.T) {
	h := newHarness(t, 0.1)
	ctx := context.Background()
	ids := h.seedMaterials(t, "u1", game.RarityCommon, 3)
	foreign := h.seedMaterials(t, "u2", game.RarityCommon, 1)
	rare := h.seedMaterials(t, "u1", game.RarityRare, 1)
	h.credit(t, "u1", game.CurrencyShell, 1000)

	cases := map[string]game.FusionInput{
		"too few":       {UserID: "u1", MaterialIDs: ids[:2], TargetRarity: game.RarityRare},
		"duplicate id":  {UserID: "u1", MaterialIDs: []string{ids[0], ids[0], ids[1]}, TargetRarity: game.RarityRare},
		"not owned":     {UserID: "u1", MaterialIDs: []string{ids[0], ids[1], foreign[0]}, TargetRarity: game.RarityRare},
		"wrong rarity":  {UserID: "u1", MaterialIDs: []string{ids[0], ids[1], rare[0]}, TargetRarity: game.RarityRare},
		"unknown id":    {UserID: "u1", MaterialIDs: []string{ids[0], ids[1], "nope"}, TargetRarity: game.RarityRare},
		"common target": {UserID: "u1", MaterialIDs: ids, TargetRarity: game.RarityCommon},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := h.svc.AttemptFusion(ctx, in)
			require.ErrorIs(t, err, game.ErrValidation)
		})
	}

	require.Len(t, h.creatures(t, "u1"), 4)
	requireDecimal(t, 1000, h.wallet(t, "u1").ShellBalance)
	require.Len(t, h.creatures(t, "u2"), 1)
}

func TestAttemptFusionInsufficientShells(t *testing.T) {
	h := newHarness(t, 0.1)
	ctx := context.Background()
	ids := h.seedMaterials(t, "u1", game.RarityCommon, 3)
	h.credit(t, "u1", game.CurrencyShell, 199)

	_, err := h.svc.AttemptFusion(ctx, game.FusionInput{UserID: "u1", MaterialIDs: ids, TargetRarity: game.RarityRare})
	require.ErrorIs(t, err, game.ErrInsufficientCurrency)
	require.Len(t, h.creatures(t, "u1"), 3)
	requireDecimal(t, 199, h.wallet(t, "u1").ShellBalance)

	history, err := h.svc.FusionHistory(ctx, "u1", 10)
	require.NoError(t, err)
	require.Empty(t, history)
}

func TestAttemptFusionDuplicateKey(t *testing.T) {
	h := newHarness(t, 0.1)
	ctx := context.Background()
	first := h.seedMaterials(t, "u1", game.RarityCommon, 3)
	second := h.seedMaterials(t, "u1", game.RarityCommon, 3)
	h.credit(t, "u1", game.CurrencyShell, 400)

	_, err := h.svc.AttemptFusion(ctx, game.FusionInput{UserID: "u1", MaterialIDs: first, TargetRarity: game.RarityRare, IdempotencyKey: "fuse-1"})
	require.NoError(t, err)

	_, err = h.svc.AttemptFusion(ctx, game.FusionInput{UserID: "u1", MaterialIDs: second, TargetRarity: game.RarityRare, IdempotencyKey: "fuse-1"})
	require.ErrorIs(t, err, game.ErrDuplicateRequest)
	requireDecimal(t, 200, h.wallet(t, "u1").ShellBalance)
	require.Len(t, h.creatures(t, "u1"), 4)
}
