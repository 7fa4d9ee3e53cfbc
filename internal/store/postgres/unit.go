package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"starpets/internal/game"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// unit is the game.Tx of one user inside an open transaction. Every query is scoped
// to userID so rows of other users are invisible.
type unit struct {
	tx     pgx.Tx
	userID string
}

var _ game.Tx = (*unit)(nil)

const (
	creatureColumns  = `id::text, user_id, name, rarity, level, exp, bond_tag, created_at`
	challengeColumns = `id::text, user_id, spot_level, ticket_cost, energy_cost, start_time, end_time, claimed, claimed_at, gem_reward, shell_reward`
	sessionColumns   = `id::text, user_id, creature_id::text, start_time, end_time, online, accrued_gem, accrued_shell, energy_consumed`
)

func (u *unit) Wallet(ctx context.Context) (game.Wallet, error) {
	w := game.Wallet{UserID: u.userID}
	err := u.tx.QueryRow(ctx, `
		SELECT gem_balance, shell_balance, mine_tickets, energy, last_energy_update
		FROM game.wallets
		WHERE user_id = $1
	`, u.userID).Scan(&w.GemBalance, &w.ShellBalance, &w.MineTickets, &w.Energy, &w.LastEnergyUpdate)
	return w, err
}

func (u *unit) SetBalance(ctx context.Context, currency game.Currency, balance decimal.Decimal) error {
	var column string
	switch currency {
	case game.CurrencyGem:
		column = "gem_balance"
	case game.CurrencyShell:
		column = "shell_balance"
	case game.CurrencyTicket:
		column = "mine_tickets"
	default:
		return fmt.Errorf("postgres: unknown currency %q", currency)
	}
	_, err := u.tx.Exec(ctx, `
		UPDATE game.wallets
		SET `+column+` = $1, updated_at = now()
		WHERE user_id = $2
	`, balance, u.userID)
	return err
}

func (u *unit) SetEnergy(ctx context.Context, energy int, at time.Time) error {
	_, err := u.tx.Exec(ctx, `
		UPDATE game.wallets
		SET energy = $1, last_energy_update = $2, updated_at = now()
		WHERE user_id = $3
	`, energy, at, u.userID)
	return err
}

func (u *unit) InsertTransaction(ctx context.Context, t *game.Transaction) error {
	_, err := u.tx.Exec(ctx, `
		INSERT INTO game.transactions (id, user_id, type, amount, currency, source, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, t.ID, u.userID, string(t.Type), t.Amount, string(t.Currency), t.Source, t.Description, t.CreatedAt)
	return err
}

func (u *unit) InsertEnergyEntry(ctx context.Context, e *game.EnergyLedgerEntry) error {
	_, err := u.tx.Exec(ctx, `
		INSERT INTO game.energy_ledger (id, user_id, amount, requested, source, note, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, e.ID, u.userID, e.Amount, e.Requested, string(e.Source), e.Note, e.CreatedAt)
	return err
}

func (u *unit) Transactions(ctx context.Context, limit int) ([]game.Transaction, error) {
	rows, err := u.tx.Query(ctx, `
		SELECT id::text, user_id, type, amount, currency, source, description, created_at
		FROM game.transactions
		WHERE user_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2
	`, u.userID, limitOrAll(limit))
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (game.Transaction, error) {
		var t game.Transaction
		var typ, currency string
		err := row.Scan(&t.ID, &t.UserID, &typ, &t.Amount, &currency, &t.Source, &t.Description, &t.CreatedAt)
		t.Type = game.TxType(typ)
		t.Currency = game.Currency(currency)
		return t, err
	})
}

func (u *unit) CountTransactionsBySource(ctx context.Context, source string) (int, error) {
	var n int
	err := u.tx.QueryRow(ctx, `SELECT COUNT(1) FROM game.transactions WHERE user_id = $1 AND source = $2`, u.userID, source).Scan(&n)
	return n, err
}

func (u *unit) EnergyEntries(ctx context.Context, since time.Time, limit int) ([]game.EnergyLedgerEntry, error) {
	rows, err := u.tx.Query(ctx, `
		SELECT id::text, user_id, amount, requested, source, note, created_at
		FROM game.energy_ledger
		WHERE user_id = $1 AND created_at >= $2
		ORDER BY created_at DESC, id
		LIMIT $3
	`, u.userID, since, limitOrAll(limit))
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (game.EnergyLedgerEntry, error) {
		var e game.EnergyLedgerEntry
		var source string
		err := row.Scan(&e.ID, &e.UserID, &e.Amount, &e.Requested, &source, &e.Note, &e.CreatedAt)
		e.Source = game.EnergySource(source)
		return e, err
	})
}

func scanCreature(row pgx.Row) (game.Creature, error) {
	var c game.Creature
	var rarity string
	err := row.Scan(&c.ID, &c.UserID, &c.Name, &rarity, &c.Level, &c.Exp, &c.BondTag, &c.CreatedAt)
	c.Rarity = game.Rarity(rarity)
	return c, err
}

func (u *unit) Creatures(ctx context.Context) ([]game.Creature, error) {
	rows, err := u.tx.Query(ctx, `
		SELECT `+creatureColumns+`
		FROM game.creatures
		WHERE user_id = $1
		ORDER BY created_at, id
	`, u.userID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (game.Creature, error) {
		return scanCreature(row)
	})
}

func (u *unit) Creature(ctx context.Context, id string) (game.Creature, error) {
	c, err := scanCreature(u.tx.QueryRow(ctx, `
		SELECT `+creatureColumns+`
		FROM game.creatures
		WHERE id::text = $1 AND user_id = $2
		FOR UPDATE
	`, id, u.userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return game.Creature{}, fmt.Errorf("%w %s", game.ErrCreatureNotFound, id)
	}
	return c, err
}

func (u *unit) InsertCreature(ctx context.Context, c *game.Creature) error {
	_, err := u.tx.Exec(ctx, `
		INSERT INTO game.creatures (id, user_id, name, rarity, level, exp, bond_tag, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, c.ID, u.userID, c.Name, string(c.Rarity), c.Level, c.Exp, c.BondTag, c.CreatedAt)
	return err
}

func (u *unit) UpdateCreatureProgress(ctx context.Context, id string, level int, exp int64) error {
	cmd, err := u.tx.Exec(ctx, `
		UPDATE game.creatures
		SET level = $1, exp = $2
		WHERE id::text = $3 AND user_id = $4 AND exp <= $2
	`, level, exp, id, u.userID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("%w %s", game.ErrCreatureNotFound, id)
	}
	return nil
}

func (u *unit) DeleteCreatures(ctx context.Context, ids []string) error {
	cmd, err := u.tx.Exec(ctx, `
		DELETE FROM game.creatures
		WHERE user_id = $1 AND id::text = ANY($2)
	`, u.userID, ids)
	if err != nil {
		return err
	}
	if int(cmd.RowsAffected()) != len(ids) {
		return fmt.Errorf("%w: deleted %d of %d", game.ErrCreatureNotFound, cmd.RowsAffected(), len(ids))
	}
	return nil
}

func scanSession(row pgx.Row) (game.ProductionSession, error) {
	var p game.ProductionSession
	err := row.Scan(&p.ID, &p.UserID, &p.CreatureID, &p.StartTime, &p.EndTime, &p.Online, &p.AccruedGem, &p.AccruedShell, &p.EnergyConsumed)
	return p, err
}

func (u *unit) OpenSession(ctx context.Context) (*game.ProductionSession, error) {
	p, err := scanSession(u.tx.QueryRow(ctx, `
		SELECT `+sessionColumns+`
		FROM game.production_sessions
		WHERE user_id = $1 AND end_time IS NULL
		FOR UPDATE
	`, u.userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (u *unit) InsertSession(ctx context.Context, p *game.ProductionSession) error {
	_, err := u.tx.Exec(ctx, `
		INSERT INTO game.production_sessions (id, user_id, creature_id, start_time, online, accrued_gem, accrued_shell, energy_consumed)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, p.ID, u.userID, p.CreatureID, p.StartTime, p.Online, p.AccruedGem, p.AccruedShell, p.EnergyConsumed)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: production session already open", game.ErrInvalidState)
	}
	return err
}

func (u *unit) CloseSession(ctx context.Context, p game.ProductionSession) error {
	cmd, err := u.tx.Exec(ctx, `
		UPDATE game.production_sessions
		SET end_time = $1, accrued_gem = $2, accrued_shell = $3, energy_consumed = $4
		WHERE id::text = $5 AND user_id = $6 AND end_time IS NULL
	`, p.EndTime, p.AccruedGem, p.AccruedShell, p.EnergyConsumed, p.ID, u.userID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("%w: session %s", game.ErrNoActiveSession, p.ID)
	}
	return nil
}

func (u *unit) InsertFusionAttempt(ctx context.Context, a *game.FusionAttempt) error {
	var result any
	if a.ResultCreatureID != "" {
		result = a.ResultCreatureID
	}
	if _, err := u.tx.Exec(ctx, `
		INSERT INTO game.fusion_attempts (id, user_id, target_rarity, shell_cost, use_protection, roll, success, result_creature_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, a.ID, u.userID, string(a.TargetRarity), a.ShellCost, a.UseProtection, a.Roll, a.Success, result, a.CreatedAt); err != nil {
		return err
	}
	batch := &pgx.Batch{}
	for _, m := range a.Materials {
		batch.Queue(`
			INSERT INTO game.fusion_materials (attempt_id, creature_id, rarity, level)
			VALUES ($1, $2, $3, $4)
		`, a.ID, m.CreatureID, string(m.Rarity), m.Level)
	}
	return u.tx.SendBatch(ctx, batch).Close()
}

func (u *unit) FusionAttempts(ctx context.Context, limit int) ([]game.FusionAttempt, error) {
	rows, err := u.tx.Query(ctx, `
		SELECT id::text, user_id, target_rarity, shell_cost, use_protection, roll, success,
			COALESCE(result_creature_id::text, ''), created_at
		FROM game.fusion_attempts
		WHERE user_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2
	`, u.userID, limitOrAll(limit))
	if err != nil {
		return nil, err
	}
	attempts, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (game.FusionAttempt, error) {
		var a game.FusionAttempt
		var target string
		err := row.Scan(&a.ID, &a.UserID, &target, &a.ShellCost, &a.UseProtection, &a.Roll, &a.Success, &a.ResultCreatureID, &a.CreatedAt)
		a.TargetRarity = game.Rarity(target)
		return a, err
	})
	if err != nil || len(attempts) == 0 {
		return attempts, err
	}

	ids := make([]string, 0, len(attempts))
	index := make(map[string]int, len(attempts))
	for i, a := range attempts {
		ids = append(ids, a.ID)
		index[a.ID] = i
	}
	rows, err = u.tx.Query(ctx, `
		SELECT attempt_id::text, creature_id::text, rarity, level
		FROM game.fusion_materials
		WHERE attempt_id::text = ANY($1)
		ORDER BY attempt_id, creature_id
	`, ids)
	if err != nil {
		return nil, err
	}
	materials, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (game.FusionMaterial, error) {
		var m game.FusionMaterial
		var rarity string
		err := row.Scan(&m.AttemptID, &m.CreatureID, &rarity, &m.Level)
		m.Rarity = game.Rarity(rarity)
		return m, err
	})
	if err != nil {
		return nil, err
	}
	for _, m := range materials {
		i := index[m.AttemptID]
		attempts[i].Materials = append(attempts[i].Materials, m)
	}
	return attempts, nil
}

func (u *unit) CountFusionAttempts(ctx context.Context) (int, error) {
	var n int
	err := u.tx.QueryRow(ctx, `SELECT COUNT(1) FROM game.fusion_attempts WHERE user_id = $1`, u.userID).Scan(&n)
	return n, err
}

func scanChallenge(row pgx.Row) (game.MineChallenge, error) {
	var c game.MineChallenge
	err := row.Scan(&c.ID, &c.UserID, &c.SpotLevel, &c.TicketCost, &c.EnergyCost, &c.StartTime, &c.EndTime, &c.Claimed, &c.ClaimedAt, &c.GemReward, &c.ShellReward)
	return c, err
}

func collectChallenges(rows pgx.Rows) ([]game.MineChallenge, error) {
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (game.MineChallenge, error) {
		return scanChallenge(row)
	})
}

func (u *unit) UnclaimedChallenge(ctx context.Context) (*game.MineChallenge, error) {
	c, err := scanChallenge(u.tx.QueryRow(ctx, `
		SELECT `+challengeColumns+`
		FROM game.mine_challenges
		WHERE user_id = $1 AND NOT claimed
		FOR UPDATE
	`, u.userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (u *unit) Challenge(ctx context.Context, id string) (game.MineChallenge, error) {
	c, err := scanChallenge(u.tx.QueryRow(ctx, `
		SELECT `+challengeColumns+`
		FROM game.mine_challenges
		WHERE id::text = $1 AND user_id = $2
		FOR UPDATE
	`, id, u.userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return game.MineChallenge{}, fmt.Errorf("%w %s", game.ErrChallengeNotFound, id)
	}
	return c, err
}

func (u *unit) InsertChallenge(ctx context.Context, c *game.MineChallenge) error {
	_, err := u.tx.Exec(ctx, `
		INSERT INTO game.mine_challenges (id, user_id, spot_level, ticket_cost, energy_cost, start_time, end_time, gem_reward, shell_reward)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, c.ID, u.userID, c.SpotLevel, c.TicketCost, c.EnergyCost, c.StartTime, c.EndTime, c.GemReward, c.ShellReward)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: unclaimed challenge exists", game.ErrChallengeInProgress)
	}
	return err
}

func (u *unit) ClaimChallenge(ctx context.Context, c game.MineChallenge) error {
	cmd, err := u.tx.Exec(ctx, `
		UPDATE game.mine_challenges
		SET claimed = true, claimed_at = $1, gem_reward = $2, shell_reward = $3
		WHERE id::text = $4 AND user_id = $5 AND NOT claimed
	`, c.ClaimedAt, c.GemReward, c.ShellReward, c.ID, u.userID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("%w: challenge %s", game.ErrAlreadyClaimed, c.ID)
	}
	return nil
}

func (u *unit) ClaimedChallenges(ctx context.Context, limit int) ([]game.MineChallenge, error) {
	rows, err := u.tx.Query(ctx, `
		SELECT `+challengeColumns+`
		FROM game.mine_challenges
		WHERE user_id = $1 AND claimed
		ORDER BY claimed_at DESC, id
		LIMIT $2
	`, u.userID, limitOrAll(limit))
	if err != nil {
		return nil, err
	}
	return collectChallenges(rows)
}

func (u *unit) CountClaimedChallenges(ctx context.Context) (int, error) {
	var n int
	err := u.tx.QueryRow(ctx, `SELECT COUNT(1) FROM game.mine_challenges WHERE user_id = $1 AND claimed`, u.userID).Scan(&n)
	return n, err
}

func (u *unit) AchievementClaims(ctx context.Context) (map[string]time.Time, error) {
	rows, err := u.tx.Query(ctx, `
		SELECT achievement_id, claimed_at
		FROM game.achievement_claims
		WHERE user_id = $1
	`, u.userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]time.Time)
	for rows.Next() {
		var id string
		var at time.Time
		if err := rows.Scan(&id, &at); err != nil {
			return nil, err
		}
		out[id] = at
	}
	return out, rows.Err()
}

func (u *unit) InsertAchievementClaim(ctx context.Context, achievementID string, at time.Time) error {
	cmd, err := u.tx.Exec(ctx, `
		INSERT INTO game.achievement_claims (user_id, achievement_id, claimed_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, achievement_id) DO NOTHING
	`, u.userID, achievementID, at)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("%w: achievement %s", game.ErrAlreadyClaimed, achievementID)
	}
	return nil
}

func (u *unit) ClaimIdempotency(ctx context.Context, key, action string) error {
	cmd, err := u.tx.Exec(ctx, `
		INSERT INTO game.idempotency_keys (user_id, key, action, created_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (user_id, key) DO NOTHING
	`, u.userID, key, action)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", game.ErrDuplicateRequest, key)
	}
	return nil
}

// limitOrAll maps a non-positive limit to NULL, which LIMIT treats as no limit.
func limitOrAll(limit int) any {
	if limit <= 0 {
		return nil
	}
	return limit
}
