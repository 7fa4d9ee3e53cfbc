package game

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// RegenerateTick credits EnergyRecoveryPerHour to every wallet below MaxEnergy, each in
// its own unit of work, and returns how many wallets were credited. It is not guarded
// against repeated calls; the scheduler must invoke it at most once per hour.
func (s *Service) RegenerateTick(ctx context.Context) (int, error) {
	users, err := s.store.UsersBelowEnergy(ctx, MaxEnergy)
	if err != nil {
		return 0, err
	}
	credited := 0
	var errs []error
	for _, userID := range users {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		applied := false
		err := s.run(ctx, userID, func(u *Unit) error {
			applied = false
			w, err := u.tx.Wallet(ctx)
			if err != nil {
				return err
			}
			// A claim or purchase may have filled the wallet since the scan.
			if w.Energy >= MaxEnergy {
				return nil
			}
			if _, err := u.MutateEnergy(ctx, EnergyRecoveryPerHour, EnergyNaturalRecovery, "hourly regeneration"); err != nil {
				return err
			}
			applied = true
			return nil
		})
		if err != nil {
			s.log.Error("energy regen failed", "user_id", userID, "error", err)
			errs = append(errs, fmt.Errorf("regen %s: %w", userID, err))
			continue
		}
		if applied {
			credited++
		}
	}
	s.log.Info("energy regen tick", "candidates", len(users), "credited", credited, "failed", len(errs))
	return credited, errors.Join(errs...)
}

// ConsumeEnergy debits amount energy. It never partially applies: callers cap the
// amount to what the wallet holds.
func (s *Service) ConsumeEnergy(ctx context.Context, userID string, amount int, source EnergySource) (int, error) {
	userID, err := validateUserID(userID)
	if err != nil {
		return 0, err
	}
	if amount <= 0 {
		return 0, fmt.Errorf("%w: energy %d", ErrInvalidAmount, amount)
	}
	var out int
	err = s.run(ctx, userID, func(u *Unit) error {
		out, err = consumeEnergy(ctx, u, amount, source, "")
		return err
	})
	return out, err
}

func consumeEnergy(ctx context.Context, u *Unit, amount int, source EnergySource, note string) (int, error) {
	w, err := u.tx.Wallet(ctx)
	if err != nil {
		return 0, err
	}
	if w.Energy < amount {
		return w.Energy, fmt.Errorf("%w: have %d, need %d", ErrInsufficientEnergy, w.Energy, amount)
	}
	return u.MutateEnergy(ctx, -amount, source, note)
}

type EnergyPurchaseQuota struct {
	Energy         int             `json:"energy"`
	TodayPurchased int             `json:"today_purchased"`
	Remaining      int             `json:"remaining"`
	DailyLimit     int             `json:"daily_limit"`
	UnitSize       int             `json:"unit_size"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
}

// PurchaseEnergy buys energy for shells in multiples of EnergyPurchaseUnit, up to
// EnergyDailyPurchaseLimit per UTC day. Purchases that would overflow MaxEnergy are rejected.
func (s *Service) PurchaseEnergy(ctx context.Context, in EnergyPurchaseInput) (EnergyPurchaseResult, error) {
	var out EnergyPurchaseResult
	userID, err := validateUserID(in.UserID)
	if err != nil {
		return out, err
	}
	if in.Quantity <= 0 || in.Quantity%EnergyPurchaseUnit != 0 {
		return out, fmt.Errorf("%w: energy must be a positive multiple of %d", ErrInvalidQuantity, EnergyPurchaseUnit)
	}
	cost := decimal.NewFromInt(int64(in.Quantity / EnergyPurchaseUnit * EnergyPurchaseUnitPrice))

	err = s.run(ctx, userID, func(u *Unit) error {
		if key := strings.TrimSpace(in.IdempotencyKey); key != "" {
			if err := u.tx.ClaimIdempotency(ctx, key, "energy_purchase"); err != nil {
				return err
			}
		}
		today, err := purchasedToday(ctx, u)
		if err != nil {
			return err
		}
		if today+in.Quantity > EnergyDailyPurchaseLimit {
			return fmt.Errorf("%w: bought %d of %d today", ErrPurchaseLimitReached, today, EnergyDailyPurchaseLimit)
		}
		w, err := u.tx.Wallet(ctx)
		if err != nil {
			return err
		}
		if w.Energy+in.Quantity > MaxEnergy {
			return fmt.Errorf("%w: energy %d + %d > %d", ErrEnergyFull, w.Energy, in.Quantity, MaxEnergy)
		}
		if w.ShellBalance.LessThan(cost) {
			return fmt.Errorf("%w: need %s shells, have %s", ErrInsufficientCurrency, cost.StringFixed(AmountPlaces), w.ShellBalance.StringFixed(AmountPlaces))
		}
		if _, err := u.MutateBalance(ctx, CurrencyShell, cost.Neg(), TxSpend, SourceEnergyPurchase, fmt.Sprintf("bought %d energy", in.Quantity)); err != nil {
			return err
		}
		energy, err := u.MutateEnergy(ctx, in.Quantity, EnergyPurchase, "shop purchase")
		if err != nil {
			return err
		}
		out = EnergyPurchaseResult{
			EnergyGained:   in.Quantity,
			ShellCost:      cost,
			Energy:         energy,
			TodayPurchased: today + in.Quantity,
			Remaining:      EnergyDailyPurchaseLimit - today - in.Quantity,
		}
		return nil
	})
	if err != nil {
		return EnergyPurchaseResult{}, err
	}
	s.log.Info("energy purchased", "user_id", userID, "energy", in.Quantity, "shells", cost.String())
	return out, nil
}

func (s *Service) EnergyPurchaseStatus(ctx context.Context, userID string) (EnergyPurchaseQuota, error) {
	userID, err := validateUserID(userID)
	if err != nil {
		return EnergyPurchaseQuota{}, err
	}
	out := EnergyPurchaseQuota{
		DailyLimit: EnergyDailyPurchaseLimit,
		UnitSize:   EnergyPurchaseUnit,
		UnitPrice:  decimal.NewFromInt(EnergyPurchaseUnitPrice),
	}
	err = s.run(ctx, userID, func(u *Unit) error {
		w, err := u.tx.Wallet(ctx)
		if err != nil {
			return err
		}
		today, err := purchasedToday(ctx, u)
		if err != nil {
			return err
		}
		out.Energy = w.Energy
		out.TodayPurchased = today
		out.Remaining = max(EnergyDailyPurchaseLimit-today, 0)
		return nil
	})
	return out, err
}

func purchasedToday(ctx context.Context, u *Unit) (int, error) {
	entries, err := u.tx.EnergyEntries(ctx, startOfDay(u.now), 0)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, e := range entries {
		if e.Source == EnergyPurchase {
			total += e.Requested
		}
	}
	return total, nil
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
