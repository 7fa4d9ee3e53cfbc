package game

import (
	"context"
	"fmt"
	"strings"

	"starpets/internal/metrics"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type FusionRule struct {
	Target        Rarity          `json:"target"`
	Material      Rarity          `json:"material"`
	MaterialCount int             `json:"material_count"`
	ShellCost     decimal.Decimal `json:"shell_cost"`
	SuccessRate   float64         `json:"success_rate"`
}

var fusionRules = []FusionRule{
	{Target: RarityRare, Material: RarityCommon, MaterialCount: 3, ShellCost: decimal.NewFromInt(200), SuccessRate: 0.70},
	{Target: RarityEpic, Material: RarityRare, MaterialCount: 3, ShellCost: decimal.NewFromInt(500), SuccessRate: 0.50},
	{Target: RarityLegendary, Material: RarityEpic, MaterialCount: 3, ShellCost: decimal.NewFromInt(1000), SuccessRate: 0.30},
	{Target: RarityMythic, Material: RarityLegendary, MaterialCount: 3, ShellCost: decimal.NewFromInt(2000), SuccessRate: 0.20},
}

func FusionRules() []FusionRule {
	return append([]FusionRule(nil), fusionRules...)
}

func FusionRuleFor(target Rarity) (FusionRule, error) {
	for _, r := range fusionRules {
		if r.Target == target {
			return r, nil
		}
	}
	return FusionRule{}, fmt.Errorf("%w: %s cannot be produced by fusion", ErrInvalidRarity, target)
}

var creatureNames = map[Rarity][]string{
	RarityCommon:    {"Stardust", "Moonshade", "Daybreak", "Twilight", "Meteor"},
	RarityRare:      {"Starling", "Galaxy", "Aurora", "Skyriver", "Nebula"},
	RarityEpic:      {"Sirius", "Lyra", "Polaris", "Armillary", "Alioth"},
	RarityLegendary: {"Ziwei", "Sky Sovereign", "Taiyi", "Black Tortoise", "Vermilion Bird"},
	RarityMythic:    {"Chaos", "Primordia", "Genesis", "Boundless", "Eternity"},
}

func (s *Service) creatureName(r Rarity) string {
	names := creatureNames[r]
	if len(names) == 0 {
		return string(r)
	}
	i := int(s.rand.Float64() * float64(len(names)))
	return names[min(i, len(names)-1)]
}

// ValidateMaterials checks that materials, as loaded for ids, are exactly the multiset
// rule asks for: distinct ids, all owned by userID, all of the material rarity.
func ValidateMaterials(rule FusionRule, userID string, ids []string, materials []Creature) error {
	if len(ids) != rule.MaterialCount {
		return fmt.Errorf("%w: %s needs exactly %d %s creatures, got %d", ErrInvalidMaterials, rule.Target, rule.MaterialCount, rule.Material, len(ids))
	}
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w: creature %s listed twice", ErrInvalidMaterials, id)
		}
		seen[id] = struct{}{}
	}
	if len(materials) != len(ids) {
		return fmt.Errorf("%w: %d of %d materials not found", ErrInvalidMaterials, len(ids)-len(materials), len(ids))
	}
	for _, c := range materials {
		if c.UserID != userID {
			return fmt.Errorf("%w: creature %s is not yours", ErrInvalidMaterials, c.ID)
		}
		if _, ok := seen[c.ID]; !ok {
			return fmt.Errorf("%w: unexpected creature %s", ErrInvalidMaterials, c.ID)
		}
		if c.Rarity != rule.Material {
			return fmt.Errorf("%w: creature %s is %s, need %s", ErrInvalidMaterials, c.ID, c.Rarity, rule.Material)
		}
	}
	return nil
}

// AttemptFusion charges the rule's shell cost and consumes the materials whatever the
// roll. On success one level-1 creature of the target rarity is created.
func (s *Service) AttemptFusion(ctx context.Context, in FusionInput) (FusionResult, error) {
	var out FusionResult
	userID, err := validateUserID(in.UserID)
	if err != nil {
		return out, err
	}
	rule, err := FusionRuleFor(in.TargetRarity)
	if err != nil {
		return out, err
	}
	ids := make([]string, 0, len(in.MaterialIDs))
	for _, id := range in.MaterialIDs {
		ids = append(ids, strings.TrimSpace(id))
	}
	if len(ids) != rule.MaterialCount {
		return out, fmt.Errorf("%w: %s needs exactly %d %s creatures, got %d", ErrInvalidMaterials, rule.Target, rule.MaterialCount, rule.Material, len(ids))
	}

	err = s.run(ctx, userID, func(u *Unit) error {
		if key := strings.TrimSpace(in.IdempotencyKey); key != "" {
			if err := u.tx.ClaimIdempotency(ctx, key, "fusion"); err != nil {
				return err
			}
		}
		materials := make([]Creature, 0, len(ids))
		for _, id := range ids {
			c, err := u.tx.Creature(ctx, id)
			if err == nil {
				materials = append(materials, c)
			} else if !isNotFound(err) {
				return err
			}
		}
		if err := ValidateMaterials(rule, userID, ids, materials); err != nil {
			return err
		}
		w, err := u.tx.Wallet(ctx)
		if err != nil {
			return err
		}
		if w.ShellBalance.LessThan(rule.ShellCost) {
			return fmt.Errorf("%w: fusion costs %s shells, have %s", ErrInsufficientCurrency, rule.ShellCost.StringFixed(AmountPlaces), w.ShellBalance.StringFixed(AmountPlaces))
		}
		if _, err := u.MutateBalance(ctx, CurrencyShell, rule.ShellCost.Neg(), TxSpend, SourceFusionFee, fmt.Sprintf("fusion to %s", rule.Target)); err != nil {
			return err
		}

		successRate := rule.SuccessRate
		if in.UseProtection {
			successRate = 1.0
		}
		roll := s.rand.Float64()
		attempt := FusionAttempt{
			ID:            uuid.NewString(),
			UserID:        userID,
			TargetRarity:  rule.Target,
			ShellCost:     rule.ShellCost,
			UseProtection: in.UseProtection,
			Roll:          roll,
			Success:       roll < successRate,
			CreatedAt:     u.now,
		}
		out = FusionResult{
			AttemptID: attempt.ID,
			Success:   attempt.Success,
			ShellCost: rule.ShellCost,
			Consumed:  ids,
		}
		if attempt.Success {
			c := Creature{
				ID:        uuid.NewString(),
				UserID:    userID,
				Name:      s.creatureName(rule.Target),
				Rarity:    rule.Target,
				Level:     1,
				CreatedAt: u.now,
			}
			if err := u.tx.InsertCreature(ctx, &c); err != nil {
				return err
			}
			attempt.ResultCreatureID = c.ID
			out.NewCreature = &c
		}
		for _, m := range materials {
			attempt.Materials = append(attempt.Materials, FusionMaterial{
				AttemptID:  attempt.ID,
				CreatureID: m.ID,
				Rarity:     m.Rarity,
				Level:      m.Level,
			})
		}
		if err := u.tx.InsertFusionAttempt(ctx, &attempt); err != nil {
			return err
		}
		return u.tx.DeleteCreatures(ctx, ids)
	})
	if err != nil {
		return FusionResult{}, err
	}
	outcome := "failure"
	if out.Success {
		outcome = "success"
	}
	metrics.FusionAttempts.WithLabelValues(string(rule.Target), outcome).Inc()
	s.log.Info("fusion attempted", "user_id", userID, "target", rule.Target, "success", out.Success, "protected", in.UseProtection, "attempt_id", out.AttemptID)
	return out, nil
}

func (s *Service) FusionHistory(ctx context.Context, userID string, limit int) ([]FusionAttempt, error) {
	userID, err := validateUserID(userID)
	if err != nil {
		return nil, err
	}
	var out []FusionAttempt
	err = s.run(ctx, userID, func(u *Unit) error {
		out, err = u.tx.FusionAttempts(ctx, clampLimit(limit))
		return err
	})
	return out, err
}
