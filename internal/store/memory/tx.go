package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"starpets/internal/game"

	"github.com/shopspring/decimal"
)

type tx struct {
	data *userData
}

func (t *tx) Wallet(ctx context.Context) (game.Wallet, error) {
	return t.data.wallet, nil
}

func (t *tx) SetBalance(ctx context.Context, currency game.Currency, balance decimal.Decimal) error {
	if balance.IsNegative() {
		return fmt.Errorf("memory: negative %s balance %s", currency, balance)
	}
	switch currency {
	case game.CurrencyGem:
		t.data.wallet.GemBalance = balance
	case game.CurrencyShell:
		t.data.wallet.ShellBalance = balance
	case game.CurrencyTicket:
		t.data.wallet.MineTickets = balance
	default:
		return fmt.Errorf("memory: unknown currency %q", currency)
	}
	return nil
}

func (t *tx) SetEnergy(ctx context.Context, energy int, at time.Time) error {
	if energy < 0 || energy > game.MaxEnergy {
		return fmt.Errorf("memory: energy %d out of range", energy)
	}
	t.data.wallet.Energy = energy
	t.data.wallet.LastEnergyUpdate = at
	return nil
}

func (t *tx) InsertTransaction(ctx context.Context, row *game.Transaction) error {
	t.data.transactions = append(t.data.transactions, *row)
	return nil
}

func (t *tx) InsertEnergyEntry(ctx context.Context, e *game.EnergyLedgerEntry) error {
	t.data.energy = append(t.data.energy, *e)
	return nil
}

func (t *tx) Transactions(ctx context.Context, limit int) ([]game.Transaction, error) {
	out := make([]game.Transaction, 0, len(t.data.transactions))
	for i := len(t.data.transactions) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, t.data.transactions[i])
	}
	return out, nil
}

func (t *tx) CountTransactionsBySource(ctx context.Context, source string) (int, error) {
	n := 0
	for _, row := range t.data.transactions {
		if row.Source == source {
			n++
		}
	}
	return n, nil
}

func (t *tx) EnergyEntries(ctx context.Context, since time.Time, limit int) ([]game.EnergyLedgerEntry, error) {
	var out []game.EnergyLedgerEntry
	for i := len(t.data.energy) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		if e := t.data.energy[i]; !e.CreatedAt.Before(since) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (t *tx) Creatures(ctx context.Context) ([]game.Creature, error) {
	return append([]game.Creature(nil), t.data.creatures...), nil
}

func (t *tx) creatureIndex(id string) int {
	for i, c := range t.data.creatures {
		if c.ID == id {
			return i
		}
	}
	return -1
}

func (t *tx) Creature(ctx context.Context, id string) (game.Creature, error) {
	i := t.creatureIndex(id)
	if i < 0 {
		return game.Creature{}, fmt.Errorf("%w %s", game.ErrCreatureNotFound, id)
	}
	return t.data.creatures[i], nil
}

func (t *tx) InsertCreature(ctx context.Context, c *game.Creature) error {
	if t.creatureIndex(c.ID) >= 0 {
		return fmt.Errorf("memory: creature %s exists", c.ID)
	}
	t.data.creatures = append(t.data.creatures, *c)
	return nil
}

func (t *tx) UpdateCreatureProgress(ctx context.Context, id string, level int, exp int64) error {
	i := t.creatureIndex(id)
	if i < 0 {
		return fmt.Errorf("%w %s", game.ErrCreatureNotFound, id)
	}
	t.data.creatures[i].Level = level
	t.data.creatures[i].Exp = exp
	return nil
}

func (t *tx) DeleteCreatures(ctx context.Context, ids []string) error {
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		if t.creatureIndex(id) < 0 {
			return fmt.Errorf("%w %s", game.ErrCreatureNotFound, id)
		}
		drop[id] = true
	}
	kept := t.data.creatures[:0:0]
	for _, c := range t.data.creatures {
		if !drop[c.ID] {
			kept = append(kept, c)
		}
	}
	t.data.creatures = kept
	return nil
}

func (t *tx) OpenSession(ctx context.Context) (*game.ProductionSession, error) {
	for _, p := range t.data.sessions {
		if p.Open() {
			open := p
			return &open, nil
		}
	}
	return nil, nil
}

func (t *tx) InsertSession(ctx context.Context, p *game.ProductionSession) error {
	if open, _ := t.OpenSession(ctx); open != nil {
		return fmt.Errorf("memory: session %s still open", open.ID)
	}
	t.data.sessions = append(t.data.sessions, *p)
	return nil
}

func (t *tx) CloseSession(ctx context.Context, p game.ProductionSession) error {
	for i, cur := range t.data.sessions {
		if cur.ID == p.ID {
			if !cur.Open() {
				return fmt.Errorf("%w: session %s", game.ErrNoActiveSession, p.ID)
			}
			t.data.sessions[i] = p
			return nil
		}
	}
	return fmt.Errorf("%w: session %s", game.ErrNoActiveSession, p.ID)
}

func (t *tx) InsertFusionAttempt(ctx context.Context, a *game.FusionAttempt) error {
	row := *a
	row.Materials = append([]game.FusionMaterial(nil), a.Materials...)
	t.data.fusions = append(t.data.fusions, row)
	return nil
}

func (t *tx) FusionAttempts(ctx context.Context, limit int) ([]game.FusionAttempt, error) {
	var out []game.FusionAttempt
	for i := len(t.data.fusions) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, t.data.fusions[i])
	}
	return out, nil
}

func (t *tx) CountFusionAttempts(ctx context.Context) (int, error) {
	return len(t.data.fusions), nil
}

func (t *tx) UnclaimedChallenge(ctx context.Context) (*game.MineChallenge, error) {
	for _, c := range t.data.challenges {
		if !c.Claimed {
			open := c
			return &open, nil
		}
	}
	return nil, nil
}

func (t *tx) Challenge(ctx context.Context, id string) (game.MineChallenge, error) {
	for _, c := range t.data.challenges {
		if c.ID == id {
			return c, nil
		}
	}
	return game.MineChallenge{}, fmt.Errorf("%w %s", game.ErrChallengeNotFound, id)
}

func (t *tx) InsertChallenge(ctx context.Context, c *game.MineChallenge) error {
	if open, _ := t.UnclaimedChallenge(ctx); open != nil {
		return fmt.Errorf("%w: challenge %s", game.ErrChallengeInProgress, open.ID)
	}
	t.data.challenges = append(t.data.challenges, *c)
	return nil
}

func (t *tx) ClaimChallenge(ctx context.Context, c game.MineChallenge) error {
	for i, cur := range t.data.challenges {
		if cur.ID != c.ID {
			continue
		}
		if cur.Claimed {
			return fmt.Errorf("%w: challenge %s", game.ErrAlreadyClaimed, c.ID)
		}
		t.data.challenges[i] = c
		return nil
	}
	return fmt.Errorf("%w %s", game.ErrChallengeNotFound, c.ID)
}

func (t *tx) ClaimedChallenges(ctx context.Context, limit int) ([]game.MineChallenge, error) {
	var out []game.MineChallenge
	for _, c := range t.data.challenges {
		if c.Claimed {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ClaimedAt.After(*out[j].ClaimedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (t *tx) CountClaimedChallenges(ctx context.Context) (int, error) {
	n := 0
	for _, c := range t.data.challenges {
		if c.Claimed {
			n++
		}
	}
	return n, nil
}

func (t *tx) AchievementClaims(ctx context.Context) (map[string]time.Time, error) {
	out := make(map[string]time.Time, len(t.data.achievements))
	for k, v := range t.data.achievements {
		out[k] = v
	}
	return out, nil
}

func (t *tx) InsertAchievementClaim(ctx context.Context, achievementID string, at time.Time) error {
	if _, ok := t.data.achievements[achievementID]; ok {
		return fmt.Errorf("%w: achievement %s", game.ErrAlreadyClaimed, achievementID)
	}
	t.data.achievements[achievementID] = at
	return nil
}

func (t *tx) ClaimIdempotency(ctx context.Context, key, action string) error {
	if _, ok := t.data.idempotency[key]; ok {
		return fmt.Errorf("%w: %s", game.ErrDuplicateRequest, key)
	}
	t.data.idempotency[key] = action
	return nil
}
