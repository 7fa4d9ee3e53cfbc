package game

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"starpets/internal/metrics"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Rate is an hourly production rate.
type Rate struct {
	Gem   decimal.Decimal `json:"gem_per_hour"`
	Shell decimal.Decimal `json:"shell_per_hour"`
}

func CreatureRate(c Creature) Rate {
	factor := decimal.NewFromFloat(ProductionBonus(c.Level)).Mul(decimal.NewFromFloat(c.Rarity.Multiplier()))
	return Rate{
		Gem:   decimal.NewFromInt(BaseGemRate).Mul(factor),
		Shell: decimal.NewFromInt(BaseShellRate).Mul(factor),
	}
}

func TotalRate(creatures []Creature) Rate {
	total := Rate{Gem: decimal.Zero, Shell: decimal.Zero}
	for _, c := range creatures {
		r := CreatureRate(c)
		total.Gem = total.Gem.Add(r.Gem)
		total.Shell = total.Shell.Add(r.Shell)
	}
	return total
}

type Accrual struct {
	Hours        float64
	Gem          decimal.Decimal
	Shell        decimal.Decimal
	EnergyNeeded int
}

// ComputeAccrual converts the window [start, now] into currency. Offline windows are
// capped at MaxOfflineHours and paid at OfflineRate.
func ComputeAccrual(rate Rate, start, now time.Time, online bool) Accrual {
	hours := now.Sub(start).Hours()
	if hours < 0 {
		hours = 0
	}
	if !online && hours > MaxOfflineHours {
		hours = MaxOfflineHours
	}
	return accrueHours(rate, hours, online)
}

func accrueHours(rate Rate, hours float64, online bool) Accrual {
	mult := decimal.NewFromFloat(hours)
	if !online {
		mult = mult.Mul(decimal.NewFromFloat(OfflineRate))
	}
	return Accrual{
		Hours:        hours,
		Gem:          RoundAmount(rate.Gem.Mul(mult)),
		Shell:        RoundAmount(rate.Shell.Mul(mult)),
		EnergyNeeded: int(math.Floor(hours * EnergyCostPerHour)),
	}
}

// affordable caps acc to what energy can fund. The capped window never exceeds the
// original one, and energy needed never exceeds what the wallet holds.
func affordable(rate Rate, acc Accrual, energy int, online bool) (Accrual, bool) {
	if energy >= acc.EnergyNeeded {
		return acc, false
	}
	hours := math.Min(acc.Hours, float64(energy)/EnergyCostPerHour)
	capped := accrueHours(rate, hours, online)
	capped.EnergyNeeded = min(capped.EnergyNeeded, energy)
	return capped, true
}

// anchorCreature picks the highest-level creature, oldest first on ties.
func anchorCreature(creatures []Creature) Creature {
	sorted := append([]Creature(nil), creatures...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Level != sorted[j].Level {
			return sorted[i].Level > sorted[j].Level
		}
		if sorted[i].Exp != sorted[j].Exp {
			return sorted[i].Exp > sorted[j].Exp
		}
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})
	return sorted[0]
}

func sessionView(p ProductionSession, resumed bool) SessionView {
	return SessionView{
		SessionID:         p.ID,
		CreatureID:        p.CreatureID,
		StartTime:         p.StartTime,
		EnergyCostPerHour: EnergyCostPerHour,
		Resumed:           resumed,
	}
}

// StartSession opens a production session, or returns the open one with Resumed set.
func (s *Service) StartSession(ctx context.Context, userID string) (SessionView, error) {
	userID, err := validateUserID(userID)
	if err != nil {
		return SessionView{}, err
	}
	var out SessionView
	err = s.run(ctx, userID, func(u *Unit) error {
		open, err := u.tx.OpenSession(ctx)
		if err != nil {
			return err
		}
		if open != nil {
			out = sessionView(*open, true)
			return nil
		}
		creatures, err := u.tx.Creatures(ctx)
		if err != nil {
			return err
		}
		if len(creatures) == 0 {
			return ErrNoCreatures
		}
		w, err := u.tx.Wallet(ctx)
		if err != nil {
			return err
		}
		if w.Energy < EnergyCostPerHour {
			return fmt.Errorf("%w: have %d, need %d to start production", ErrInsufficientEnergy, w.Energy, EnergyCostPerHour)
		}
		p := ProductionSession{
			ID:           uuid.NewString(),
			UserID:       userID,
			CreatureID:   anchorCreature(creatures).ID,
			StartTime:    u.now,
			Online:       true,
			AccruedGem:   decimal.Zero,
			AccruedShell: decimal.Zero,
		}
		if err := u.tx.InsertSession(ctx, &p); err != nil {
			return err
		}
		out = sessionView(p, false)
		return nil
	})
	if err != nil {
		return SessionView{}, err
	}
	if !out.Resumed {
		s.log.Info("production started", "user_id", userID, "session_id", out.SessionID, "creature_id", out.CreatureID)
	}
	return out, nil
}

// Claim settles the open session at now: credits gems and shells, debits the energy
// the paid window cost, closes the session and grants anchor exp, all in one unit.
func (s *Service) Claim(ctx context.Context, userID string) (Rewards, error) {
	userID, err := validateUserID(userID)
	if err != nil {
		return Rewards{}, err
	}
	var out Rewards
	capped := false
	err = s.run(ctx, userID, func(u *Unit) error {
		p, err := u.tx.OpenSession(ctx)
		if err != nil {
			return err
		}
		if p == nil {
			return ErrNoActiveSession
		}
		creatures, err := u.tx.Creatures(ctx)
		if err != nil {
			return err
		}
		w, err := u.tx.Wallet(ctx)
		if err != nil {
			return err
		}
		// With no creatures left (all fused away mid-session) the session closes
		// without paying or charging anything.
		acc := Accrual{Gem: decimal.Zero, Shell: decimal.Zero}
		capped = false
		if len(creatures) > 0 {
			rate := TotalRate(creatures)
			acc, capped = affordable(rate, ComputeAccrual(rate, p.StartTime, u.now, true), w.Energy, true)
		}

		if _, err := u.MutateBalance(ctx, CurrencyGem, acc.Gem, TxEarn, SourceProduction, "production claim"); err != nil {
			return err
		}
		if _, err := u.MutateBalance(ctx, CurrencyShell, acc.Shell, TxEarn, SourceProduction, "production claim"); err != nil {
			return err
		}
		if acc.EnergyNeeded > 0 {
			if _, err := u.MutateEnergy(ctx, -acc.EnergyNeeded, EnergyProduction, "production claim"); err != nil {
				return err
			}
		}

		end := u.now
		p.EndTime = &end
		p.AccruedGem = acc.Gem
		p.AccruedShell = acc.Shell
		p.EnergyConsumed = acc.EnergyNeeded
		if err := u.tx.CloseSession(ctx, *p); err != nil {
			return err
		}

		gained, levelUp, err := applyAnchorExp(ctx, u, p.CreatureID, int64(math.Floor(acc.Hours*60))*ExpPerMinute)
		if err != nil {
			return err
		}
		out = Rewards{
			Gem:            acc.Gem,
			Shell:          acc.Shell,
			Hours:          roundHours(acc.Hours),
			EnergyConsumed: acc.EnergyNeeded,
			ExpGained:      gained,
			LevelUp:        levelUp,
		}
		return nil
	})
	if err != nil {
		return Rewards{}, err
	}
	metrics.ProductionClaims.WithLabelValues(fmt.Sprint(capped)).Inc()
	s.log.Info("production claimed",
		"user_id", userID,
		"gems", out.Gem.String(),
		"shells", out.Shell.String(),
		"hours", out.Hours,
		"energy", out.EnergyConsumed,
		"capped_by_energy", capped,
	)
	return out, nil
}

// PreviewOfflineRewards estimates what the user's creatures earned offline since the
// given time. Nothing is written.
func (s *Service) PreviewOfflineRewards(ctx context.Context, userID string, since time.Time) (Rewards, error) {
	userID, err := validateUserID(userID)
	if err != nil {
		return Rewards{}, err
	}
	var out Rewards
	err = s.run(ctx, userID, func(u *Unit) error {
		creatures, err := u.tx.Creatures(ctx)
		if err != nil {
			return err
		}
		if since.IsZero() || len(creatures) == 0 {
			out = Rewards{Gem: decimal.Zero, Shell: decimal.Zero}
			return nil
		}
		acc := ComputeAccrual(TotalRate(creatures), since, u.now, false)
		out = Rewards{
			Gem:            acc.Gem,
			Shell:          acc.Shell,
			Hours:          roundHours(acc.Hours),
			EnergyConsumed: acc.EnergyNeeded,
		}
		return nil
	})
	return out, err
}

func (s *Service) ProductionStatus(ctx context.Context, userID string) (ProductionStatus, error) {
	userID, err := validateUserID(userID)
	if err != nil {
		return ProductionStatus{}, err
	}
	var out ProductionStatus
	err = s.run(ctx, userID, func(u *Unit) error {
		w, err := u.tx.Wallet(ctx)
		if err != nil {
			return err
		}
		out = ProductionStatus{Energy: w.Energy}
		p, err := u.tx.OpenSession(ctx)
		if err != nil || p == nil {
			return err
		}
		creatures, err := u.tx.Creatures(ctx)
		if err != nil {
			return err
		}
		rate := TotalRate(creatures)
		acc, _ := affordable(rate, ComputeAccrual(rate, p.StartTime, u.now, true), w.Energy, true)
		view := sessionView(*p, false)
		stop := p.StartTime.Add(time.Duration(float64(w.Energy) / EnergyCostPerHour * float64(time.Hour)))
		out.Active = true
		out.Session = &view
		out.Current = &Rewards{
			Gem:            acc.Gem,
			Shell:          acc.Shell,
			Hours:          roundHours(acc.Hours),
			EnergyConsumed: acc.EnergyNeeded,
		}
		out.EstimatedStopTime = &stop
		return nil
	})
	return out, err
}

func (s *Service) ListCreatures(ctx context.Context, userID string) ([]CreatureView, error) {
	userID, err := validateUserID(userID)
	if err != nil {
		return nil, err
	}
	var out []CreatureView
	err = s.run(ctx, userID, func(u *Unit) error {
		creatures, err := u.tx.Creatures(ctx)
		if err != nil {
			return err
		}
		out = make([]CreatureView, 0, len(creatures))
		for _, c := range creatures {
			r := CreatureRate(c)
			out = append(out, CreatureView{
				Creature:     c,
				GemPerHour:   RoundAmount(r.Gem),
				ShellPerHour: RoundAmount(r.Shell),
				Progress:     Progress(c),
			})
		}
		return nil
	})
	return out, err
}

// GrantNewbieCreature gives a user with no creatures one COMMON starter and
// NewbieShellGrant shells. Each user gets it once, whatever happens to the starter later.
func (s *Service) GrantNewbieCreature(ctx context.Context, userID string) (Creature, error) {
	userID, err := validateUserID(userID)
	if err != nil {
		return Creature{}, err
	}
	var out Creature
	err = s.run(ctx, userID, func(u *Unit) error {
		creatures, err := u.tx.Creatures(ctx)
		if err != nil {
			return err
		}
		if len(creatures) > 0 {
			return fmt.Errorf("%w: user already owns %d creatures", ErrNewbieAlreadyGranted, len(creatures))
		}
		granted, err := u.tx.CountTransactionsBySource(ctx, SourceNewbieGrant)
		if err != nil {
			return err
		}
		if granted > 0 {
			return fmt.Errorf("%w: starter already claimed", ErrNewbieAlreadyGranted)
		}
		out = Creature{
			ID:        uuid.NewString(),
			UserID:    userID,
			Name:      s.creatureName(RarityCommon),
			Rarity:    RarityCommon,
			Level:     1,
			BondTag:   "starter",
			CreatedAt: u.now,
		}
		if err := u.tx.InsertCreature(ctx, &out); err != nil {
			return err
		}
		_, err = u.MutateBalance(ctx, CurrencyShell, decimal.NewFromInt(NewbieShellGrant), TxEarn, SourceNewbieGrant, "starter shells")
		return err
	})
	if err != nil {
		return Creature{}, err
	}
	s.log.Info("starter creature granted", "user_id", userID, "creature_id", out.ID, "name", out.Name)
	return out, nil
}
