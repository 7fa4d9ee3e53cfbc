package game

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"starpets/internal/metrics"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type MineSpot struct {
	Level      int           `json:"level"`
	Name       string        `json:"name"`
	TicketCost int           `json:"ticket_cost"`
	EnergyCost int           `json:"energy_cost"`
	Duration   time.Duration `json:"duration"`
	BaseGem    int64         `json:"base_gem"`
	BaseShell  int64         `json:"base_shell"`
	Difficulty float64       `json:"difficulty"`
}

var mineSpots = []MineSpot{
	{Level: 1, Name: "Novice Shaft", TicketCost: 1, EnergyCost: 10, Duration: 5 * time.Minute, BaseGem: 50, BaseShell: 100, Difficulty: 1.0},
	{Level: 2, Name: "Copper Tunnel", TicketCost: 1, EnergyCost: 20, Duration: 10 * time.Minute, BaseGem: 120, BaseShell: 250, Difficulty: 1.5},
	{Level: 3, Name: "Deep Vein", TicketCost: 2, EnergyCost: 30, Duration: 15 * time.Minute, BaseGem: 220, BaseShell: 500, Difficulty: 2.0},
	{Level: 4, Name: "Elite Cavern", TicketCost: 2, EnergyCost: 40, Duration: 20 * time.Minute, BaseGem: 350, BaseShell: 800, Difficulty: 2.5},
	{Level: 5, Name: "Legend Abyss", TicketCost: 3, EnergyCost: 50, Duration: 30 * time.Minute, BaseGem: 550, BaseShell: 1300, Difficulty: 3.0},
}

// sweepBatch bounds how many expired challenges one sweep settles.
const sweepBatch = 500

func MineSpots() []MineSpot {
	return append([]MineSpot(nil), mineSpots...)
}

func MineSpotFor(level int) (MineSpot, error) {
	for _, spot := range mineSpots {
		if spot.Level == level {
			return spot, nil
		}
	}
	return MineSpot{}, fmt.Errorf("%w: level %d", ErrInvalidSpot, level)
}

// MineReward rolls one payout: base · difficulty · factor, factor uniform in [0.9, 1.1).
// roll is a uniform [0, 1) draw shared by both currencies.
func MineReward(spot MineSpot, roll float64) (gem, shell decimal.Decimal) {
	factor := 0.9 + 0.2*roll
	gem = decimal.NewFromFloat(math.Floor(float64(spot.BaseGem) * spot.Difficulty * factor))
	shell = decimal.NewFromFloat(math.Floor(float64(spot.BaseShell) * spot.Difficulty * factor))
	return gem, shell
}

func challengeView(c MineChallenge) ChallengeView {
	name := ""
	if spot, err := MineSpotFor(c.SpotLevel); err == nil {
		name = spot.Name
	}
	return ChallengeView{
		ChallengeID: c.ID,
		SpotLevel:   c.SpotLevel,
		SpotName:    name,
		StartTime:   c.StartTime,
		EndTime:     c.EndTime,
		Duration:    c.EndTime.Sub(c.StartTime).String(),
	}
}

// EnterMine starts a challenge at the given spot, paying its ticket and energy cost.
func (s *Service) EnterMine(ctx context.Context, userID string, spotLevel int) (ChallengeView, error) {
	userID, err := validateUserID(userID)
	if err != nil {
		return ChallengeView{}, err
	}
	spot, err := MineSpotFor(spotLevel)
	if err != nil {
		return ChallengeView{}, err
	}
	var out ChallengeView
	err = s.run(ctx, userID, func(u *Unit) error {
		open, err := u.tx.UnclaimedChallenge(ctx)
		if err != nil {
			return err
		}
		if open != nil {
			return fmt.Errorf("%w: challenge %s at level %d ends %s", ErrChallengeInProgress, open.ID, open.SpotLevel, open.EndTime.Format(time.RFC3339))
		}
		w, err := u.tx.Wallet(ctx)
		if err != nil {
			return err
		}
		tickets := decimal.NewFromInt(int64(spot.TicketCost))
		if w.MineTickets.LessThan(tickets) || w.Energy < spot.EnergyCost {
			return fmt.Errorf("%w: need %d tickets and %d energy, have %s and %d",
				ErrTicketOrEnergyInsufficient, spot.TicketCost, spot.EnergyCost, w.MineTickets.String(), w.Energy)
		}
		note := fmt.Sprintf("entered %s", spot.Name)
		if _, err := u.MutateBalance(ctx, CurrencyTicket, tickets.Neg(), TxSpend, SourceMineEntry, note); err != nil {
			return err
		}
		if _, err := u.MutateEnergy(ctx, -spot.EnergyCost, EnergyMineChallenge, note); err != nil {
			return err
		}
		c := MineChallenge{
			ID:          uuid.NewString(),
			UserID:      userID,
			SpotLevel:   spot.Level,
			TicketCost:  spot.TicketCost,
			EnergyCost:  spot.EnergyCost,
			StartTime:   u.now,
			EndTime:     u.now.Add(spot.Duration),
			GemReward:   decimal.Zero,
			ShellReward: decimal.Zero,
		}
		if err := u.tx.InsertChallenge(ctx, &c); err != nil {
			return err
		}
		out = challengeView(c)
		return nil
	})
	if err != nil {
		return ChallengeView{}, err
	}
	s.log.Info("mine entered", "user_id", userID, "challenge_id", out.ChallengeID, "spot", spot.Level, "ends", out.EndTime)
	return out, nil
}

// ClaimMine pays out a completed challenge once. The rolled reward is frozen into the
// challenge row in the same unit that credits it.
func (s *Service) ClaimMine(ctx context.Context, userID, challengeID string) (Rewards, error) {
	userID, err := validateUserID(userID)
	if err != nil {
		return Rewards{}, err
	}
	owner, err := s.store.ChallengeOwner(ctx, challengeID)
	if err != nil {
		return Rewards{}, err
	}
	if owner != userID {
		return Rewards{}, fmt.Errorf("%w: challenge %s", ErrNotOwner, challengeID)
	}
	var out Rewards
	var spotLevel int
	err = s.run(ctx, userID, func(u *Unit) error {
		c, err := u.tx.Challenge(ctx, challengeID)
		if err != nil {
			return err
		}
		if c.Claimed {
			return fmt.Errorf("%w: challenge %s paid %s gems, %s shells", ErrAlreadyClaimed, c.ID, c.GemReward.String(), c.ShellReward.String())
		}
		if !c.Completable(u.now) {
			return fmt.Errorf("%w: %s remaining", ErrNotYetComplete, c.EndTime.Sub(u.now).Round(time.Second))
		}
		spot, err := MineSpotFor(c.SpotLevel)
		if err != nil {
			return err
		}
		gem, shell := MineReward(spot, s.rand.Float64())
		note := fmt.Sprintf("%s reward", spot.Name)
		if _, err := u.MutateBalance(ctx, CurrencyGem, gem, TxEarn, SourceMineReward, note); err != nil {
			return err
		}
		if _, err := u.MutateBalance(ctx, CurrencyShell, shell, TxEarn, SourceMineReward, note); err != nil {
			return err
		}
		claimedAt := u.now
		c.Claimed = true
		c.ClaimedAt = &claimedAt
		c.GemReward = gem
		c.ShellReward = shell
		if err := u.tx.ClaimChallenge(ctx, c); err != nil {
			return err
		}
		spotLevel = c.SpotLevel
		out = Rewards{Gem: gem, Shell: shell}
		return nil
	})
	if err != nil {
		return Rewards{}, err
	}
	metrics.MineClaims.WithLabelValues(strconv.Itoa(spotLevel)).Inc()
	s.log.Info("mine claimed", "user_id", userID, "challenge_id", challengeID, "gems", out.Gem.String(), "shells", out.Shell.String())
	return out, nil
}

// SettleExpiredSweep claims every expired, unclaimed challenge on its owner's behalf
// through ClaimMine. Challenges claimed concurrently by their owner count as skipped.
func (s *Service) SettleExpiredSweep(ctx context.Context) (SweepResult, error) {
	var res SweepResult
	expired, err := s.store.ExpiredChallenges(ctx, s.clock(), sweepBatch)
	if err != nil {
		return res, err
	}
	for _, c := range expired {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		_, err := s.ClaimMine(ctx, c.UserID, c.ID)
		switch {
		case err == nil:
			res.Settled++
			metrics.SweepResults.WithLabelValues("settled").Inc()
		case errors.Is(err, ErrAlreadyClaimed):
			res.Skipped++
			metrics.SweepResults.WithLabelValues("skipped").Inc()
		default:
			res.Failed++
			metrics.SweepResults.WithLabelValues("failed").Inc()
			s.log.Error("mine sweep claim failed", "user_id", c.UserID, "challenge_id", c.ID, "error", err)
		}
	}
	if len(expired) > 0 {
		s.log.Info("mine sweep", "settled", res.Settled, "skipped", res.Skipped, "failed", res.Failed)
	}
	return res, nil
}

func (s *Service) ChallengeStatus(ctx context.Context, userID string) (ChallengeStatus, error) {
	userID, err := validateUserID(userID)
	if err != nil {
		return ChallengeStatus{}, err
	}
	var out ChallengeStatus
	err = s.run(ctx, userID, func(u *Unit) error {
		c, err := u.tx.UnclaimedChallenge(ctx)
		if err != nil || c == nil {
			return err
		}
		view := challengeView(*c)
		out = ChallengeStatus{
			InProgress: true,
			Challenge:  &view,
			Completed:  c.Completable(u.now),
		}
		if !out.Completed {
			out.RemainingSeconds = int64(math.Ceil(c.EndTime.Sub(u.now).Seconds()))
		}
		return nil
	})
	return out, err
}

func (s *Service) ChallengeHistory(ctx context.Context, userID string, limit int) ([]MineChallenge, error) {
	userID, err := validateUserID(userID)
	if err != nil {
		return nil, err
	}
	var out []MineChallenge
	err = s.run(ctx, userID, func(u *Unit) error {
		out, err = u.tx.ClaimedChallenges(ctx, clampLimit(limit))
		return err
	})
	return out, err
}
