package game

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Unit is one user's atomic unit of work. Every balance and energy change made by
// the components goes through MutateBalance or MutateEnergy on a Unit.
type Unit struct {
	tx     Tx
	userID string
	now    time.Time
	events []ledgerEvent
}

type ledgerEvent struct {
	kind   string
	source string
}

// MutateBalance applies delta to one currency balance and appends the paired
// Transaction row. A negative delta that would overdraw fails with ErrInsufficientFunds.
// A zero delta (after rounding) writes nothing.
func (u *Unit) MutateBalance(ctx context.Context, currency Currency, delta decimal.Decimal, txType TxType, source, description string) (decimal.Decimal, error) {
	if _, err := ParseCurrency(string(currency)); err != nil {
		return decimal.Zero, err
	}
	delta = RoundAmount(delta)
	w, err := u.tx.Wallet(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	balance := w.Balance(currency)
	if delta.IsZero() {
		return balance, nil
	}
	switch {
	case delta.IsPositive() && txType != TxEarn:
		return balance, fmt.Errorf("%w: %s credit recorded as %s", ErrInvalidTxType, currency, txType)
	case delta.IsNegative() && txType != TxSpend:
		return balance, fmt.Errorf("%w: %s debit recorded as %s", ErrInvalidTxType, currency, txType)
	}

	next := balance.Add(delta)
	if next.IsNegative() {
		return balance, fmt.Errorf("%w: %s balance %s, need %s", ErrInsufficientFunds, currency, balance.StringFixed(AmountPlaces), delta.Neg().StringFixed(AmountPlaces))
	}
	if err := u.tx.SetBalance(ctx, currency, next); err != nil {
		return balance, err
	}
	if err := u.tx.InsertTransaction(ctx, &Transaction{
		ID:          uuid.NewString(),
		UserID:      u.userID,
		Type:        txType,
		Amount:      delta.Abs(),
		Currency:    currency,
		Source:      source,
		Description: description,
		CreatedAt:   u.now,
	}); err != nil {
		return balance, err
	}
	u.events = append(u.events, ledgerEvent{kind: string(currency), source: source})
	return next, nil
}

// MutateEnergy applies delta clamped into [0, MaxEnergy] and stamps the wallet's
// lastEnergyUpdate. An EnergyLedgerEntry is appended for every call, including
// calls whose applied delta is zero after clamping; Amount holds the applied delta.
func (u *Unit) MutateEnergy(ctx context.Context, delta int, source EnergySource, note string) (int, error) {
	w, err := u.tx.Wallet(ctx)
	if err != nil {
		return 0, err
	}
	next := clampEnergy(w.Energy + delta)
	if err := u.tx.SetEnergy(ctx, next, u.now); err != nil {
		return w.Energy, err
	}
	if err := u.tx.InsertEnergyEntry(ctx, &EnergyLedgerEntry{
		ID:        uuid.NewString(),
		UserID:    u.userID,
		Amount:    next - w.Energy,
		Requested: delta,
		Source:    source,
		Note:      note,
		CreatedAt: u.now,
	}); err != nil {
		return w.Energy, err
	}
	u.events = append(u.events, ledgerEvent{kind: "ENERGY", source: string(source)})
	return next, nil
}

func clampEnergy(e int) int {
	if e < 0 {
		return 0
	}
	if e > MaxEnergy {
		return MaxEnergy
	}
	return e
}

// Wallet returns the user's wallet, creating it with starter energy on first access.
func (s *Service) Wallet(ctx context.Context, userID string) (Wallet, error) {
	userID, err := validateUserID(userID)
	if err != nil {
		return Wallet{}, err
	}
	var w Wallet
	err = s.run(ctx, userID, func(u *Unit) error {
		w, err = u.tx.Wallet(ctx)
		return err
	})
	return w, err
}

func (s *Service) MutateBalance(ctx context.Context, userID string, currency Currency, delta decimal.Decimal, txType TxType, source string) (decimal.Decimal, error) {
	userID, err := validateUserID(userID)
	if err != nil {
		return decimal.Zero, err
	}
	var out decimal.Decimal
	err = s.run(ctx, userID, func(u *Unit) error {
		out, err = u.MutateBalance(ctx, currency, delta, txType, source, "")
		return err
	})
	if err != nil {
		return decimal.Zero, err
	}
	s.log.Info("balance mutated", "user_id", userID, "currency", currency, "delta", delta.StringFixed(AmountPlaces), "source", source)
	return out, nil
}

func (s *Service) MutateEnergy(ctx context.Context, userID string, delta int, source EnergySource) (int, error) {
	userID, err := validateUserID(userID)
	if err != nil {
		return 0, err
	}
	var out int
	err = s.run(ctx, userID, func(u *Unit) error {
		out, err = u.MutateEnergy(ctx, delta, source, "")
		return err
	})
	if err != nil {
		return 0, err
	}
	s.log.Info("energy mutated", "user_id", userID, "delta", delta, "energy", out, "source", source)
	return out, nil
}

// Transactions lists the user's currency audit rows, newest first.
func (s *Service) Transactions(ctx context.Context, userID string, limit int) ([]Transaction, error) {
	userID, err := validateUserID(userID)
	if err != nil {
		return nil, err
	}
	var out []Transaction
	err = s.run(ctx, userID, func(u *Unit) error {
		out, err = u.tx.Transactions(ctx, clampLimit(limit))
		return err
	})
	return out, err
}

// EnergyHistory lists the user's energy ledger entries, newest first.
func (s *Service) EnergyHistory(ctx context.Context, userID string, limit int) ([]EnergyLedgerEntry, error) {
	userID, err := validateUserID(userID)
	if err != nil {
		return nil, err
	}
	var out []EnergyLedgerEntry
	err = s.run(ctx, userID, func(u *Unit) error {
		out, err = u.tx.EnergyEntries(ctx, time.Time{}, clampLimit(limit))
		return err
	})
	return out, err
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return 50
	}
	if limit > 500 {
		return 500
	}
	return limit
}
