package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"starpets/internal/game"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestWithUserRollsBackOnError(t *testing.T) {
	s := New()
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.WithUser(ctx, "u1", func(tx game.Tx) error {
		if err := tx.SetBalance(ctx, game.CurrencyGem, decimal.NewFromInt(10)); err != nil {
			return err
		}
		return tx.InsertCreature(ctx, &game.Creature{ID: "c1", UserID: "u1", Rarity: game.RarityCommon, Level: 1})
	})
	require.NoError(t, err)

	err = s.WithUser(ctx, "u1", func(tx game.Tx) error {
		require.NoError(t, tx.SetBalance(ctx, game.CurrencyGem, decimal.NewFromInt(99)))
		require.NoError(t, tx.DeleteCreatures(ctx, []string{"c1"}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	err = s.WithUser(ctx, "u1", func(tx game.Tx) error {
		w, err := tx.Wallet(ctx)
		require.NoError(t, err)
		require.True(t, w.GemBalance.Equal(decimal.NewFromInt(10)))
		require.Equal(t, game.StarterEnergy, w.Energy)
		cs, err := tx.Creatures(ctx)
		require.NoError(t, err)
		require.Len(t, cs, 1)
		return nil
	})
	require.NoError(t, err)

	owner, err := s.CreatureOwner(ctx, "c1")
	require.NoError(t, err)
	require.Equal(t, "u1", owner)
}

func TestOwnerIndexFollowsCommits(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.WithUser(ctx, "u1", func(tx game.Tx) error {
		return tx.InsertCreature(ctx, &game.Creature{ID: "c1", UserID: "u1", Rarity: game.RarityCommon, Level: 1})
	}))
	require.NoError(t, s.WithUser(ctx, "u1", func(tx game.Tx) error {
		return tx.DeleteCreatures(ctx, []string{"c1"})
	}))
	_, err := s.CreatureOwner(ctx, "c1")
	require.ErrorIs(t, err, game.ErrCreatureNotFound)

	_, err = s.ChallengeOwner(ctx, "m1")
	require.ErrorIs(t, err, game.ErrNotFound)
}

func TestSetBalanceRejectsNegative(t *testing.T) {
	s := New()
	ctx := context.Background()
	err := s.WithUser(ctx, "u1", func(tx game.Tx) error {
		return tx.SetBalance(ctx, game.CurrencyShell, decimal.NewFromInt(-1))
	})
	require.Error(t, err)
}

func TestExpiredChallengesOrderedAndLimited(t *testing.T) {
	s := New()
	ctx := context.Background()
	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	for i, user := range []string{"u1", "u2", "u3"} {
		c := game.MineChallenge{
			ID:        user + "-m",
			UserID:    user,
			SpotLevel: 1,
			StartTime: base,
			EndTime:   base.Add(time.Duration(3-i) * time.Minute),
		}
		require.NoError(t, s.WithUser(ctx, user, func(tx game.Tx) error {
			return tx.InsertChallenge(ctx, &c)
		}))
	}

	out, err := s.ExpiredChallenges(ctx, base.Add(2*time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.Equal(t, "u3-m", out[0].ID)
	require.Equal(t, "u2-m", out[1].ID)

	out, err = s.ExpiredChallenges(ctx, base.Add(time.Hour), 1)
	require.NoError(t, err)
	require.Len(t, out, 1)

	owner, err := s.ChallengeOwner(ctx, "u1-m")
	require.NoError(t, err)
	require.Equal(t, "u1", owner)
}

func TestUsersBelowEnergy(t *testing.T) {
	s := New()
	ctx := context.Background()
	for user, energy := range map[string]int{"a": 40, "b": 100, "c": 0} {
		require.NoError(t, s.WithUser(ctx, user, func(tx game.Tx) error {
			return tx.SetEnergy(ctx, energy, time.Now())
		}))
	}
	users, err := s.UsersBelowEnergy(ctx, game.MaxEnergy)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "c"}, users)
}

func TestIdempotencyKeyClaimedOnce(t *testing.T) {
	s := New()
	ctx := context.Background()
	claim := func() error {
		return s.WithUser(ctx, "u1", func(tx game.Tx) error {
			return tx.ClaimIdempotency(ctx, "k1", "fusion")
		})
	}
	require.NoError(t, claim())
	require.ErrorIs(t, claim(), game.ErrDuplicateRequest)
}
