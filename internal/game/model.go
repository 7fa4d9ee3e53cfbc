package game

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	MaxEnergy             = 100
	StarterEnergy         = 100
	EnergyRecoveryPerHour = 10
	EnergyCostPerHour     = 20

	MaxOfflineHours = 12
	OfflineRate     = 0.8

	BaseGemRate   = 10
	BaseShellRate = 25

	MaxLevel                = 30
	BaseExp                 = 100
	ExpExponent             = 1.5
	ProductionBonusPerLevel = 0.05
	ExpPerMinute            = 1

	NewbieShellGrant = 100

	EnergyPurchaseUnit       = 10
	EnergyPurchaseUnitPrice  = 50 // shells per unit
	EnergyDailyPurchaseLimit = 200

	// AmountPlaces is the precision currency amounts are rounded to.
	AmountPlaces = 2
)

type Rarity string

const (
	RarityCommon    Rarity = "COMMON"
	RarityRare      Rarity = "RARE"
	RarityEpic      Rarity = "EPIC"
	RarityLegendary Rarity = "LEGENDARY"
	RarityMythic    Rarity = "MYTHIC"
)

var rarities = []Rarity{RarityCommon, RarityRare, RarityEpic, RarityLegendary, RarityMythic}

var rarityMultipliers = map[Rarity]float64{
	RarityCommon:    1.0,
	RarityRare:      1.5,
	RarityEpic:      2.0,
	RarityLegendary: 3.0,
	RarityMythic:    5.0,
}

func ParseRarity(s string) (Rarity, error) {
	r := Rarity(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := rarityMultipliers[r]; !ok {
		return "", fmt.Errorf("%w %q", ErrInvalidRarity, s)
	}
	return r, nil
}

func (r Rarity) Multiplier() float64 {
	if m, ok := rarityMultipliers[r]; ok {
		return m
	}
	return 1.0
}

type Currency string

const (
	CurrencyGem    Currency = "GEM"
	CurrencyShell  Currency = "SHELL"
	CurrencyTicket Currency = "TICKET"
)

func ParseCurrency(s string) (Currency, error) {
	c := Currency(strings.ToUpper(strings.TrimSpace(s)))
	switch c {
	case CurrencyGem, CurrencyShell, CurrencyTicket:
		return c, nil
	}
	return "", fmt.Errorf("%w: unknown currency %q", ErrValidation, s)
}

type TxType string

const (
	TxEarn  TxType = "EARN"
	TxSpend TxType = "SPEND"
)

type EnergySource string

const (
	EnergyNaturalRecovery EnergySource = "NATURAL_RECOVERY"
	EnergyPurchase        EnergySource = "PURCHASE"
	EnergyProduction      EnergySource = "PRODUCTION"
	EnergyMineChallenge   EnergySource = "MINE_CHALLENGE"
	EnergyAdmin           EnergySource = "ADMIN"
)

// Transaction sources.
const (
	SourceProduction     = "production"
	SourceMineEntry      = "mine_entry"
	SourceMineReward     = "mine_reward"
	SourceFusionFee      = "fusion_fee"
	SourceEnergyPurchase = "energy_purchase"
	SourceAchievement    = "achievement"
	SourceNewbieGrant    = "newbie_grant"
	SourceAdmin          = "admin"
)

// RoundAmount rounds a currency amount to AmountPlaces.
func RoundAmount(d decimal.Decimal) decimal.Decimal {
	return d.Round(AmountPlaces)
}

func roundHours(h float64) float64 {
	return math.Round(h*100) / 100
}

func validateUserID(userID string) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", ErrInvalidUser
	}
	return userID, nil
}
