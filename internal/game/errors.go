package game

import (
	"errors"
	"fmt"
)

// Error categories. Every error returned by the Service wraps exactly one of these.
var (
	ErrValidation           = errors.New("validation failed")
	ErrInsufficientResource = errors.New("insufficient resource")
	ErrInvalidState         = errors.New("invalid state")
	ErrNotFound             = errors.New("not found")
	ErrNotOwner             = errors.New("not owner")
)

// ErrTxConflict is returned when a store gives up retrying a conflicting unit of work.
var ErrTxConflict = errors.New("transaction conflict, retry later")

var (
	ErrInvalidUser      = fmt.Errorf("%w: user id is required", ErrValidation)
	ErrInvalidAmount    = fmt.Errorf("%w: amount must be positive", ErrValidation)
	ErrInvalidTxType    = fmt.Errorf("%w: transaction type does not match delta sign", ErrValidation)
	ErrInvalidRarity    = fmt.Errorf("%w: unknown rarity", ErrValidation)
	ErrInvalidMaterials = fmt.Errorf("%w: invalid fusion materials", ErrValidation)
	ErrInvalidSpot      = fmt.Errorf("%w: unknown mine spot", ErrValidation)
	ErrInvalidQuantity  = fmt.Errorf("%w: invalid quantity", ErrValidation)
	ErrEnergyFull       = fmt.Errorf("%w: energy would exceed capacity", ErrValidation)

	ErrInsufficientFunds          = fmt.Errorf("%w: insufficient funds", ErrInsufficientResource)
	ErrInsufficientCurrency       = fmt.Errorf("%w: insufficient currency", ErrInsufficientResource)
	ErrInsufficientEnergy         = fmt.Errorf("%w: insufficient energy", ErrInsufficientResource)
	ErrTicketOrEnergyInsufficient = fmt.Errorf("%w: not enough tickets or energy", ErrInsufficientResource)
	ErrPurchaseLimitReached       = fmt.Errorf("%w: daily energy purchase limit reached", ErrInsufficientResource)

	ErrNoCreatures          = fmt.Errorf("%w: user owns no creatures", ErrInvalidState)
	ErrNoActiveSession      = fmt.Errorf("%w: no active production session", ErrInvalidState)
	ErrChallengeInProgress  = fmt.Errorf("%w: a mine challenge is still unclaimed", ErrInvalidState)
	ErrAlreadyClaimed       = fmt.Errorf("%w: already claimed", ErrInvalidState)
	ErrNotYetComplete       = fmt.Errorf("%w: challenge not yet complete", ErrInvalidState)
	ErrDuplicateRequest     = fmt.Errorf("%w: duplicate idempotency key", ErrInvalidState)
	ErrNewbieAlreadyGranted = fmt.Errorf("%w: starter creature already granted", ErrInvalidState)
	ErrAchievementLocked    = fmt.Errorf("%w: achievement not unlocked", ErrInvalidState)

	ErrCreatureNotFound    = fmt.Errorf("%w: creature", ErrNotFound)
	ErrChallengeNotFound   = fmt.Errorf("%w: mine challenge", ErrNotFound)
	ErrAchievementNotFound = fmt.Errorf("%w: achievement", ErrNotFound)
)

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
