package game

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type AchievementKind string

const (
	AchievementFusionCount   AchievementKind = "FUSION_COUNT"
	AchievementCreatureCount AchievementKind = "CREATURE_COUNT"
	AchievementOwnsRarity    AchievementKind = "OWNS_RARITY"
	AchievementCreatureLevel AchievementKind = "CREATURE_LEVEL"
	AchievementMineCount     AchievementKind = "MINE_COUNT"
)

type Achievement struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Kind        AchievementKind `json:"kind"`
	Rarity      Rarity          `json:"rarity,omitempty"`
	Target      int             `json:"target"`
	Tier        string          `json:"tier"`
	RewardGem   decimal.Decimal `json:"reward_gem"`
	RewardShell decimal.Decimal `json:"reward_shell"`
}

type AchievementView struct {
	Achievement
	Progress  int        `json:"progress"`
	Unlocked  bool       `json:"unlocked"`
	Claimed   bool       `json:"claimed"`
	ClaimedAt *time.Time `json:"claimed_at,omitempty"`
}

func achievement(id, name, desc string, kind AchievementKind, target int, tier string, gem, shell int64) Achievement {
	return Achievement{
		ID:          id,
		Name:        name,
		Description: desc,
		Kind:        kind,
		Target:      target,
		Tier:        tier,
		RewardGem:   decimal.NewFromInt(gem),
		RewardShell: decimal.NewFromInt(shell),
	}
}

func rarityAchievement(id, name string, r Rarity, tier string, gem int64) Achievement {
	a := achievement(id, name, fmt.Sprintf("Own your first %s creature", r), AchievementOwnsRarity, 1, tier, gem, 0)
	a.Rarity = r
	return a
}

var achievements = []Achievement{
	achievement("ACH_FUSION_1", "Fusion Apprentice", "Complete your first fusion", AchievementFusionCount, 1, "BRONZE", 50, 100),
	achievement("ACH_FUSION_10", "Fusion Master", "Complete 10 fusions", AchievementFusionCount, 10, "SILVER", 200, 500),
	achievement("ACH_FUSION_50", "Fusion Grandmaster", "Complete 50 fusions", AchievementFusionCount, 50, "GOLD", 500, 1000),
	achievement("ACH_PET_5", "Collector", "Own 5 creatures", AchievementCreatureCount, 5, "BRONZE", 30, 50),
	achievement("ACH_PET_20", "Great Collector", "Own 20 creatures", AchievementCreatureCount, 20, "SILVER", 150, 300),
	achievement("ACH_PET_50", "Legendary Collector", "Own 50 creatures", AchievementCreatureCount, 50, "GOLD", 400, 800),
	rarityAchievement("ACH_RARE_1", "Rare Encounter", RarityRare, "BRONZE", 50),
	rarityAchievement("ACH_EPIC_1", "Epic Tale", RarityEpic, "SILVER", 100),
	rarityAchievement("ACH_LEGENDARY_1", "Legend Descends", RarityLegendary, "GOLD", 200),
	rarityAchievement("ACH_MYTHIC_1", "Myth Awakens", RarityMythic, "DIAMOND", 500),
	achievement("ACH_LEVEL_10", "Vanguard", "Raise any creature to level 10", AchievementCreatureLevel, 10, "BRONZE", 80, 150),
	achievement("ACH_LEVEL_20", "Elite", "Raise any creature to level 20", AchievementCreatureLevel, 20, "SILVER", 180, 350),
	achievement("ACH_LEVEL_30", "Summit", "Raise any creature to level 30", AchievementCreatureLevel, 30, "GOLD", 300, 600),
	achievement("ACH_MINE_10", "Mining Apprentice", "Complete 10 mine challenges", AchievementMineCount, 10, "BRONZE", 100, 0),
	achievement("ACH_MINE_50", "Mining Master", "Complete 50 mine challenges", AchievementMineCount, 50, "SILVER", 250, 0),
}

func achievementByID(id string) (Achievement, error) {
	for _, a := range achievements {
		if a.ID == id {
			return a, nil
		}
	}
	return Achievement{}, fmt.Errorf("%w: %s", ErrAchievementNotFound, id)
}

type achievementCounters struct {
	fusions   int
	creatures int
	mines     int
	maxLevel  int
	owned     map[Rarity]bool
}

func loadAchievementCounters(ctx context.Context, tx Tx) (achievementCounters, error) {
	var c achievementCounters
	var err error
	if c.fusions, err = tx.CountFusionAttempts(ctx); err != nil {
		return c, err
	}
	if c.mines, err = tx.CountClaimedChallenges(ctx); err != nil {
		return c, err
	}
	creatures, err := tx.Creatures(ctx)
	if err != nil {
		return c, err
	}
	c.creatures = len(creatures)
	c.owned = make(map[Rarity]bool)
	for _, cr := range creatures {
		c.owned[cr.Rarity] = true
		c.maxLevel = max(c.maxLevel, cr.Level)
	}
	return c, nil
}

func (c achievementCounters) progress(a Achievement) int {
	switch a.Kind {
	case AchievementFusionCount:
		return c.fusions
	case AchievementCreatureCount:
		return c.creatures
	case AchievementCreatureLevel:
		return c.maxLevel
	case AchievementMineCount:
		return c.mines
	case AchievementOwnsRarity:
		if c.owned[a.Rarity] {
			return 1
		}
	}
	return 0
}

func achievementView(a Achievement, c achievementCounters, claims map[string]time.Time) AchievementView {
	v := AchievementView{Achievement: a, Progress: min(c.progress(a), a.Target)}
	v.Unlocked = c.progress(a) >= a.Target
	if at, ok := claims[a.ID]; ok {
		v.Claimed = true
		v.ClaimedAt = &at
	}
	return v
}

// Achievements reports progress on every achievement. Claimed achievements stay
// claimed even if the counter behind them later drops.
func (s *Service) Achievements(ctx context.Context, userID string) ([]AchievementView, error) {
	userID, err := validateUserID(userID)
	if err != nil {
		return nil, err
	}
	var out []AchievementView
	err = s.run(ctx, userID, func(u *Unit) error {
		counters, err := loadAchievementCounters(ctx, u.tx)
		if err != nil {
			return err
		}
		claims, err := u.tx.AchievementClaims(ctx)
		if err != nil {
			return err
		}
		out = make([]AchievementView, 0, len(achievements))
		for _, a := range achievements {
			out = append(out, achievementView(a, counters, claims))
		}
		return nil
	})
	return out, err
}

// ClaimAchievement pays an unlocked achievement's reward once per user.
func (s *Service) ClaimAchievement(ctx context.Context, userID, achievementID string) (AchievementView, error) {
	userID, err := validateUserID(userID)
	if err != nil {
		return AchievementView{}, err
	}
	a, err := achievementByID(achievementID)
	if err != nil {
		return AchievementView{}, err
	}
	var out AchievementView
	err = s.run(ctx, userID, func(u *Unit) error {
		claims, err := u.tx.AchievementClaims(ctx)
		if err != nil {
			return err
		}
		if at, ok := claims[a.ID]; ok {
			return fmt.Errorf("%w: achievement %s at %s", ErrAlreadyClaimed, a.ID, at.Format(time.RFC3339))
		}
		counters, err := loadAchievementCounters(ctx, u.tx)
		if err != nil {
			return err
		}
		if p := counters.progress(a); p < a.Target {
			return fmt.Errorf("%w: %s at %d/%d", ErrAchievementLocked, a.ID, p, a.Target)
		}
		if err := u.tx.InsertAchievementClaim(ctx, a.ID, u.now); err != nil {
			return err
		}
		desc := "achievement " + a.ID
		if _, err := u.MutateBalance(ctx, CurrencyGem, a.RewardGem, TxEarn, SourceAchievement, desc); err != nil {
			return err
		}
		if _, err := u.MutateBalance(ctx, CurrencyShell, a.RewardShell, TxEarn, SourceAchievement, desc); err != nil {
			return err
		}
		out = achievementView(a, counters, map[string]time.Time{a.ID: u.now})
		return nil
	})
	if err != nil {
		return AchievementView{}, err
	}
	s.log.Info("achievement claimed", "user_id", userID, "achievement_id", a.ID)
	return out, nil
}
