// Package postgres implements game.Store on PostgreSQL. A unit of work is one
// SERIALIZABLE transaction that locks the user's wallet row first; serialization
// failures are retried with backoff.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"starpets/internal/game"
	"starpets/internal/metrics"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	maxAttempts     = 8
	firstRetryDelay = 75 * time.Millisecond
	maxRetryDelay   = 1200 * time.Millisecond
)

type Store struct {
	db  *pgxpool.Pool
	log *slog.Logger
}

var _ game.Store = (*Store)(nil)

func New(db *pgxpool.Pool, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, log: logger}
}

func (s *Store) WithUser(ctx context.Context, userID string, fn func(tx game.Tx) error) error {
	retryDelay := firstRetryDelay
	for attempt := 0; attempt < maxAttempts; attempt++ {
		err := s.attempt(ctx, userID, fn)
		if err == nil {
			return nil
		}
		if !isSerializationError(err) {
			return err
		}
		metrics.TxConflicts.Inc()
		s.log.Debug("unit of work conflict", "user_id", userID, "attempt", attempt+1)
		if attempt == maxAttempts-1 {
			break
		}
		if err := sleepWithContext(ctx, retryDelay); err != nil {
			return err
		}
		if retryDelay < maxRetryDelay {
			retryDelay *= 2
		}
	}
	return game.ErrTxConflict
}

func (s *Store) attempt(ctx context.Context, userID string, fn func(tx game.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		INSERT INTO game.wallets (user_id, energy, last_energy_update)
		VALUES ($1, $2, now())
		ON CONFLICT (user_id) DO NOTHING
	`, userID, game.StarterEnergy); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `SELECT 1 FROM game.wallets WHERE user_id = $1 FOR UPDATE`, userID); err != nil {
		return err
	}
	if err := fn(&unit{tx: tx, userID: userID}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) CreatureOwner(ctx context.Context, creatureID string) (string, error) {
	var owner string
	err := s.db.QueryRow(ctx, `SELECT user_id FROM game.creatures WHERE id::text = $1`, creatureID).Scan(&owner)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("%w %s", game.ErrCreatureNotFound, creatureID)
	}
	return owner, err
}

func (s *Store) ChallengeOwner(ctx context.Context, challengeID string) (string, error) {
	var owner string
	err := s.db.QueryRow(ctx, `SELECT user_id FROM game.mine_challenges WHERE id::text = $1`, challengeID).Scan(&owner)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("%w %s", game.ErrChallengeNotFound, challengeID)
	}
	return owner, err
}

func (s *Store) UsersBelowEnergy(ctx context.Context, energy int) ([]string, error) {
	rows, err := s.db.Query(ctx, `
		SELECT user_id
		FROM game.wallets
		WHERE energy < $1
		ORDER BY user_id
	`, energy)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func (s *Store) ExpiredChallenges(ctx context.Context, now time.Time, limit int) ([]game.MineChallenge, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+challengeColumns+`
		FROM game.mine_challenges
		WHERE NOT claimed AND end_time <= $1
		ORDER BY end_time
		LIMIT $2
	`, now, limitOrAll(limit))
	if err != nil {
		return nil, err
	}
	return collectChallenges(rows)
}

func isSerializationError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && (pgErr.Code == "40001" || pgErr.Code == "40P01")
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
