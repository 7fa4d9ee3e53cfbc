package game

import (
	"time"

	"github.com/shopspring/decimal"
)

type Wallet struct {
	UserID           string          `json:"user_id"`
	GemBalance       decimal.Decimal `json:"gem_balance"`
	ShellBalance     decimal.Decimal `json:"shell_balance"`
	MineTickets      decimal.Decimal `json:"mine_tickets"`
	Energy           int             `json:"energy"`
	LastEnergyUpdate time.Time       `json:"last_energy_update"`
}

// Balance returns the balance held in the given currency.
func (w Wallet) Balance(c Currency) decimal.Decimal {
	switch c {
	case CurrencyGem:
		return w.GemBalance
	case CurrencyShell:
		return w.ShellBalance
	case CurrencyTicket:
		return w.MineTickets
	}
	return decimal.Zero
}

type Creature struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Rarity    Rarity    `json:"rarity"`
	Level     int       `json:"level"`
	Exp       int64     `json:"exp"`
	BondTag   string    `json:"bond_tag,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type ProductionSession struct {
	ID             string          `json:"id"`
	UserID         string          `json:"user_id"`
	CreatureID     string          `json:"creature_id"`
	StartTime      time.Time       `json:"start_time"`
	EndTime        *time.Time      `json:"end_time,omitempty"`
	Online         bool            `json:"online"`
	AccruedGem     decimal.Decimal `json:"accrued_gem"`
	AccruedShell   decimal.Decimal `json:"accrued_shell"`
	EnergyConsumed int             `json:"energy_consumed"`
}

func (p ProductionSession) Open() bool {
	return p.EndTime == nil
}

type Transaction struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	Type        TxType          `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    Currency        `json:"currency"`
	Source      string          `json:"source"`
	Description string          `json:"description,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// EnergyLedgerEntry records one energy-affecting event. Amount is the delta actually
// applied after clamping; Requested is what the caller asked for.
type EnergyLedgerEntry struct {
	ID        string       `json:"id"`
	UserID    string       `json:"user_id"`
	Amount    int          `json:"amount"`
	Requested int          `json:"requested"`
	Source    EnergySource `json:"source"`
	Note      string       `json:"note,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}

type FusionAttempt struct {
	ID               string           `json:"id"`
	UserID           string           `json:"user_id"`
	TargetRarity     Rarity           `json:"target_rarity"`
	ShellCost        decimal.Decimal  `json:"shell_cost"`
	UseProtection    bool             `json:"use_protection"`
	Roll             float64          `json:"roll"`
	Success          bool             `json:"success"`
	ResultCreatureID string           `json:"result_creature_id,omitempty"`
	Materials        []FusionMaterial `json:"materials"`
	CreatedAt        time.Time        `json:"created_at"`
}

type FusionMaterial struct {
	AttemptID  string `json:"attempt_id"`
	CreatureID string `json:"creature_id"`
	Rarity     Rarity `json:"rarity"`
	Level      int    `json:"level"`
}

type MineChallenge struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	SpotLevel   int             `json:"spot_level"`
	TicketCost  int             `json:"ticket_cost"`
	EnergyCost  int             `json:"energy_cost"`
	StartTime   time.Time       `json:"start_time"`
	EndTime     time.Time       `json:"end_time"`
	Claimed     bool            `json:"claimed"`
	ClaimedAt   *time.Time      `json:"claimed_at,omitempty"`
	GemReward   decimal.Decimal `json:"gem_reward"`
	ShellReward decimal.Decimal `json:"shell_reward"`
}

// Completable reports whether the challenge can be claimed at now.
func (c MineChallenge) Completable(now time.Time) bool {
	return !c.Claimed && !now.Before(c.EndTime)
}

// Rewards is the payout of a claim or a preview.
type Rewards struct {
	Gem            decimal.Decimal `json:"gem"`
	Shell          decimal.Decimal `json:"shell"`
	Hours          float64         `json:"hours,omitempty"`
	EnergyConsumed int             `json:"energy_consumed,omitempty"`
	ExpGained      int64           `json:"exp_gained,omitempty"`
	LevelUp        *LevelUp        `json:"level_up,omitempty"`
}

type LevelUp struct {
	CreatureID   string `json:"creature_id"`
	OldLevel     int    `json:"old_level"`
	NewLevel     int    `json:"new_level"`
	LevelsGained int    `json:"levels_gained"`
}

type SessionView struct {
	SessionID         string    `json:"session_id"`
	CreatureID        string    `json:"creature_id"`
	StartTime         time.Time `json:"start_time"`
	EnergyCostPerHour int       `json:"energy_cost_per_hour"`
	Resumed           bool      `json:"resumed"`
}

type ProductionStatus struct {
	Active            bool         `json:"active"`
	Session           *SessionView `json:"session,omitempty"`
	Current           *Rewards     `json:"current,omitempty"`
	Energy            int          `json:"energy"`
	EstimatedStopTime *time.Time   `json:"estimated_stop_time,omitempty"`
}

type ExpResult struct {
	Creature     Creature `json:"creature"`
	LeveledUp    bool     `json:"leveled_up"`
	LevelsGained int      `json:"levels_gained"`
}

type FusionInput struct {
	UserID         string
	MaterialIDs    []string
	TargetRarity   Rarity
	UseProtection  bool
	IdempotencyKey string
}

type FusionResult struct {
	AttemptID   string          `json:"attempt_id"`
	Success     bool            `json:"success"`
	NewCreature *Creature       `json:"new_creature,omitempty"`
	ShellCost   decimal.Decimal `json:"shell_cost"`
	Consumed    []string        `json:"consumed"`
}

type ChallengeView struct {
	ChallengeID string    `json:"challenge_id"`
	SpotLevel   int       `json:"spot_level"`
	SpotName    string    `json:"spot_name"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	Duration    string    `json:"duration"`
}

type ChallengeStatus struct {
	InProgress       bool           `json:"in_progress"`
	Challenge        *ChallengeView `json:"challenge,omitempty"`
	Completed        bool           `json:"completed"`
	RemainingSeconds int64          `json:"remaining_seconds"`
}

type SweepResult struct {
	Settled int `json:"settled"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

type EnergyPurchaseInput struct {
	UserID         string
	Quantity       int
	IdempotencyKey string
}

type EnergyPurchaseResult struct {
	EnergyGained   int             `json:"energy_gained"`
	ShellCost      decimal.Decimal `json:"shell_cost"`
	Energy         int             `json:"energy"`
	TodayPurchased int             `json:"today_purchased"`
	Remaining      int             `json:"remaining"`
}

type CreatureView struct {
	Creature
	GemPerHour   decimal.Decimal `json:"gem_per_hour"`
	ShellPerHour decimal.Decimal `json:"shell_per_hour"`
	Progress     ExpProgress     `json:"progress"`
}
