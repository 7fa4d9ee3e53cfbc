package game

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Store is the persistence collaborator. WithUser is the only way to mutate state:
// it runs fn as one atomic unit of work scoped to userID, creating the user's wallet
// (StarterEnergy, zero balances) when it does not exist yet and holding it locked
// until fn returns. If fn returns an error nothing fn wrote is kept.
//
// Implementations may call fn more than once when they retry a conflicting unit, so
// fn must not have side effects outside tx.
type Store interface {
	WithUser(ctx context.Context, userID string, fn func(tx Tx) error) error

	CreatureOwner(ctx context.Context, creatureID string) (string, error)
	ChallengeOwner(ctx context.Context, challengeID string) (string, error)
	UsersBelowEnergy(ctx context.Context, energy int) ([]string, error)
	ExpiredChallenges(ctx context.Context, now time.Time, limit int) ([]MineChallenge, error)
}

// Tx exposes the rows of one user inside a unit of work.
type Tx interface {
	Wallet(ctx context.Context) (Wallet, error)
	SetBalance(ctx context.Context, currency Currency, balance decimal.Decimal) error
	SetEnergy(ctx context.Context, energy int, at time.Time) error
	InsertTransaction(ctx context.Context, t *Transaction) error
	InsertEnergyEntry(ctx context.Context, e *EnergyLedgerEntry) error
	Transactions(ctx context.Context, limit int) ([]Transaction, error)
	EnergyEntries(ctx context.Context, since time.Time, limit int) ([]EnergyLedgerEntry, error)
	CountTransactionsBySource(ctx context.Context, source string) (int, error)

	Creatures(ctx context.Context) ([]Creature, error)
	Creature(ctx context.Context, id string) (Creature, error)
	InsertCreature(ctx context.Context, c *Creature) error
	UpdateCreatureProgress(ctx context.Context, id string, level int, exp int64) error
	DeleteCreatures(ctx context.Context, ids []string) error

	OpenSession(ctx context.Context) (*ProductionSession, error)
	InsertSession(ctx context.Context, p *ProductionSession) error
	CloseSession(ctx context.Context, p ProductionSession) error

	InsertFusionAttempt(ctx context.Context, a *FusionAttempt) error
	FusionAttempts(ctx context.Context, limit int) ([]FusionAttempt, error)
	CountFusionAttempts(ctx context.Context) (int, error)

	UnclaimedChallenge(ctx context.Context) (*MineChallenge, error)
	Challenge(ctx context.Context, id string) (MineChallenge, error)
	InsertChallenge(ctx context.Context, c *MineChallenge) error
	ClaimChallenge(ctx context.Context, c MineChallenge) error
	ClaimedChallenges(ctx context.Context, limit int) ([]MineChallenge, error)
	CountClaimedChallenges(ctx context.Context) (int, error)

	AchievementClaims(ctx context.Context) (map[string]time.Time, error)
	InsertAchievementClaim(ctx context.Context, achievementID string, at time.Time) error

	// ClaimIdempotency records key for action and fails with ErrDuplicateRequest when
	// the user already used it.
	ClaimIdempotency(ctx context.Context, key, action string) error
}
