package game_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"starpets/internal/game"

	"github.com/stretchr/testify/require"
)

func TestMineLifecycle(t *testing.T) {
	h := newHarness(t, 0)
	ctx := context.Background()

	_, err := h.svc.EnterMine(ctx, "u1", 1)
	require.ErrorIs(t, err, game.ErrTicketOrEnergyInsufficient)
	_, err = h.svc.EnterMine(ctx, "u1", 9)
	require.ErrorIs(t, err, game.ErrInvalidSpot)

	h.credit(t, "u1", game.CurrencyTicket, 2)
	view, err := h.svc.EnterMine(ctx, "u1", 1)
	require.NoError(t, err)
	require.Equal(t, "Novice Shaft", view.SpotName)
	require.True(t, view.EndTime.Equal(h.clock.Now().Add(5*time.Minute)))

	w := h.wallet(t, "u1")
	require.Equal(t, 90, w.Energy)
	requireDecimal(t, 1, w.MineTickets)

	_, err = h.svc.EnterMine(ctx, "u1", 1)
	require.ErrorIs(t, err, game.ErrChallengeInProgress)

	st, err := h.svc.ChallengeStatus(ctx, "u1")
	require.NoError(t, err)
	require.True(t, st.InProgress)
	require.False(t, st.Completed)
	require.Equal(t, int64(300), st.RemainingSeconds)

	_, err = h.svc.ClaimMine(ctx, "u1", view.ChallengeID)
	require.ErrorIs(t, err, game.ErrNotYetComplete)
	_, err = h.svc.ClaimMine(ctx, "u2", view.ChallengeID)
	require.ErrorIs(t, err, game.ErrNotOwner)
	_, err = h.svc.ClaimMine(ctx, "u1", "missing")
	require.ErrorIs(t, err, game.ErrNotFound)

	h.clock.Advance(5 * time.Minute)
	res, err := h.svc.ClaimMine(ctx, "u1", view.ChallengeID)
	require.NoError(t, err)
	requireDecimal(t, 45, res.Gem)
	requireDecimal(t, 90, res.Shell)

	_, err = h.svc.ClaimMine(ctx, "u1", view.ChallengeID)
	require.ErrorIs(t, err, game.ErrAlreadyClaimed)

	history, err := h.svc.ChallengeHistory(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.True(t, history[0].Claimed)
	requireDecimal(t, 45, history[0].GemReward)

	st, err = h.svc.ChallengeStatus(ctx, "u1")
	require.NoError(t, err)
	require.False(t, st.InProgress)
	h.requireLedgerBalanced(t, "u1")
}

func TestConcurrentMineClaimsPayOnce(t *testing.T) {
	h := newHarness(t, 0)
	ctx := context.Background()
	h.credit(t, "u1", game.CurrencyTicket, 1)
	view, err := h.svc.EnterMine(ctx, "u1", 1)
	require.NoError(t, err)
	h.clock.Advance(10 * time.Minute)

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = h.svc.ClaimMine(ctx, "u1", view.ChallengeID)
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		require.ErrorIs(t, err, game.ErrAlreadyClaimed)
	}
	require.Equal(t, 1, ok)
	requireDecimal(t, 45, h.wallet(t, "u1").GemBalance)
	h.requireLedgerBalanced(t, "u1")
}

func TestSettleExpiredSweep(t *testing.T) {
	h := newHarness(t, 0)
	ctx := context.Background()
	for _, user := range []string{"u1", "u2"} {
		h.credit(t, user, game.CurrencyTicket, 1)
		_, err := h.svc.EnterMine(ctx, user, 1)
		require.NoError(t, err)
	}
	h.credit(t, "u3", game.CurrencyTicket, 1)
	h.clock.Advance(3 * time.Minute)
	_, err := h.svc.EnterMine(ctx, "u3", 1)
	require.NoError(t, err)

	h.clock.Advance(3 * time.Minute)
	res, err := h.svc.SettleExpiredSweep(ctx)
	require.NoError(t, err)
	require.Equal(t, game.SweepResult{Settled: 2}, res)
	requireDecimal(t, 45, h.wallet(t, "u1").GemBalance)
	requireDecimal(t, 45, h.wallet(t, "u2").GemBalance)
	require.True(t, h.wallet(t, "u3").GemBalance.IsZero())

	res, err = h.svc.SettleExpiredSweep(ctx)
	require.NoError(t, err)
	require.Equal(t, game.SweepResult{}, res)
}
