package game_test

import (
	"context"
	"testing"

	"starpets/internal/game"

	"github.com/stretchr/testify/require"
)

func TestClaimAchievement(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.ClaimAchievement(ctx, "u1", "ACH_RARE_1")
	require.ErrorIs(t, err, game.ErrAchievementLocked)

	h.seedCreature(t, "u1", game.RarityRare, 1)
	view, err := h.svc.ClaimAchievement(ctx, "u1", "ACH_RARE_1")
	require.NoError(t, err)
	require.True(t, view.Claimed)
	require.True(t, view.Unlocked)
	requireDecimal(t, 50, h.wallet(t, "u1").GemBalance)

	_, err = h.svc.ClaimAchievement(ctx, "u1", "ACH_RARE_1")
	require.ErrorIs(t, err, game.ErrAlreadyClaimed)
	requireDecimal(t, 50, h.wallet(t, "u1").GemBalance)

	_, err = h.svc.ClaimAchievement(ctx, "u1", "ACH_MYTHIC_1")
	require.ErrorIs(t, err, game.ErrAchievementLocked)
	_, err = h.svc.ClaimAchievement(ctx, "u1", "ACH_NOPE")
	require.ErrorIs(t, err, game.ErrNotFound)
	h.requireLedgerBalanced(t, "u1")
}

func TestAchievementsProgress(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	for range 6 {
		h.seedCreature(t, "u1", game.RarityCommon, 1)
	}
	h.seedCreature(t, "u1", game.RarityEpic, 12)

	views, err := h.svc.Achievements(ctx, "u1")
	require.NoError(t, err)
	byID := map[string]game.AchievementView{}
	for _, v := range views {
		byID[v.ID] = v
	}
	require.True(t, byID["ACH_PET_5"].Unlocked)
	require.Equal(t, 5, byID["ACH_PET_5"].Progress)
	require.False(t, byID["ACH_PET_20"].Unlocked)
	require.Equal(t, 7, byID["ACH_PET_20"].Progress)
	require.True(t, byID["ACH_EPIC_1"].Unlocked)
	require.False(t, byID["ACH_RARE_1"].Unlocked)
	require.True(t, byID["ACH_LEVEL_10"].Unlocked)
	require.Equal(t, 12, byID["ACH_LEVEL_20"].Progress)
	require.Zero(t, byID["ACH_FUSION_1"].Progress)
}
