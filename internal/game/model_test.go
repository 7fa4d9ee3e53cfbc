package game

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestRequiredExpCurve(t *testing.T) {
	tests := []struct {
		level int
		want  int64
	}{
		{level: 0, want: 0},
		{level: 1, want: 0},
		{level: 2, want: 282},
		{level: 3, want: 801},
		{level: 4, want: 1601},
		{level: 31, want: math.MaxInt64},
	}
	for _, tc := range tests {
		if got := RequiredExp(tc.level); got != tc.want {
			t.Fatalf("level=%d got=%d want=%d", tc.level, got, tc.want)
		}
	}
	for level := 2; level <= MaxLevel; level++ {
		if RequiredExp(level) <= RequiredExp(level-1) {
			t.Fatalf("curve not increasing at level %d", level)
		}
	}
}

func TestApplyExpCascadesLevels(t *testing.T) {
	c := Creature{Level: 1}
	res, err := ApplyExp(c, 900)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Creature.Level != 3 || res.LevelsGained != 2 || !res.LeveledUp {
		t.Fatalf("got level=%d gained=%d", res.Creature.Level, res.LevelsGained)
	}

	res, err = ApplyExp(Creature{Level: 1}, 281)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.LeveledUp {
		t.Fatalf("281 exp must not reach level 2")
	}

	if _, err := ApplyExp(c, -1); !errors.Is(err, ErrValidation) {
		t.Fatalf("negative gain: got %v", err)
	}
}

func TestApplyExpAtCapKeepsExp(t *testing.T) {
	c := Creature{Level: MaxLevel, Exp: RequiredExp(MaxLevel)}
	res, err := ApplyExp(c, 5000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Creature.Level != MaxLevel || res.LeveledUp {
		t.Fatalf("level moved past cap: %d", res.Creature.Level)
	}
	if res.Creature.Exp != RequiredExp(MaxLevel)+5000 {
		t.Fatalf("exp not retained: %d", res.Creature.Exp)
	}

	res, _ = ApplyExp(Creature{Level: 5, Exp: math.MaxInt64 - 10}, 100)
	if res.Creature.Exp != math.MaxInt64 {
		t.Fatalf("exp overflowed: %d", res.Creature.Exp)
	}
}

func TestProductionBonus(t *testing.T) {
	if got := ProductionBonus(1); got != 1 {
		t.Fatalf("level 1 bonus = %v", got)
	}
	if got := ProductionBonus(11); math.Abs(got-1.5) > 1e-9 {
		t.Fatalf("level 11 bonus = %v", got)
	}
	if ProductionBonus(99) != ProductionBonus(MaxLevel) {
		t.Fatalf("bonus not clamped at max level")
	}
}

func TestComputeAccrualOfflineCap(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rate := TotalRate([]Creature{{Rarity: RarityCommon, Level: 1}})

	acc := ComputeAccrual(rate, start, start.Add(20*time.Hour), false)
	if acc.Hours != MaxOfflineHours {
		t.Fatalf("hours = %v", acc.Hours)
	}
	if !acc.Gem.Equal(decimal.NewFromInt(96)) {
		t.Fatalf("gem = %s, want 96", acc.Gem)
	}
	if !acc.Shell.Equal(decimal.NewFromInt(240)) {
		t.Fatalf("shell = %s, want 240", acc.Shell)
	}

	acc = ComputeAccrual(rate, start.Add(time.Hour), start, true)
	if acc.Hours != 0 || !acc.Gem.IsZero() {
		t.Fatalf("negative window must accrue nothing: %+v", acc)
	}
}

func TestComputeAccrualOnlineTwoCreatures(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rate := TotalRate([]Creature{{Rarity: RarityCommon, Level: 1}, {Rarity: RarityRare, Level: 1}})

	acc := ComputeAccrual(rate, start, start.Add(2*time.Hour), true)
	if !acc.Gem.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("gem = %s, want 50", acc.Gem)
	}
	if acc.EnergyNeeded != 40 {
		t.Fatalf("energy = %d, want 40", acc.EnergyNeeded)
	}
}

func TestAffordableCapsToEnergy(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rate := TotalRate([]Creature{{Rarity: RarityCommon, Level: 1}})
	acc := ComputeAccrual(rate, start, start.Add(5*time.Hour), true)

	capped, short := affordable(rate, acc, 30, true)
	if !short {
		t.Fatalf("expected shortfall")
	}
	if capped.Hours != 1.5 || capped.EnergyNeeded != 30 {
		t.Fatalf("capped = %+v", capped)
	}
	if !capped.Gem.Equal(decimal.NewFromInt(15)) {
		t.Fatalf("gem = %s, want 15", capped.Gem)
	}

	same, short := affordable(rate, acc, 100, true)
	if short || same.Hours != acc.Hours {
		t.Fatalf("enough energy must not cap: %+v", same)
	}
}

func TestMineRewardBounds(t *testing.T) {
	spot, err := MineSpotFor(1)
	if err != nil {
		t.Fatalf("spot: %v", err)
	}
	gem, shell := MineReward(spot, 0)
	if !gem.Equal(decimal.NewFromInt(45)) || !shell.Equal(decimal.NewFromInt(90)) {
		t.Fatalf("low roll: %s/%s", gem, shell)
	}
	gem, _ = MineReward(spot, 0.999999)
	if gem.GreaterThanOrEqual(decimal.NewFromInt(55)) {
		t.Fatalf("high roll reached the open bound: %s", gem)
	}
	if _, err := MineSpotFor(6); !errors.Is(err, ErrInvalidSpot) {
		t.Fatalf("unknown spot: %v", err)
	}
}

func TestValidateMaterials(t *testing.T) {
	rule, err := FusionRuleFor(RarityRare)
	if err != nil {
		t.Fatalf("rule: %v", err)
	}
	mats := []Creature{
		{ID: "a", UserID: "u", Rarity: RarityCommon},
		{ID: "b", UserID: "u", Rarity: RarityCommon},
		{ID: "c", UserID: "u", Rarity: RarityCommon},
	}
	if err := ValidateMaterials(rule, "u", []string{"a", "b", "c"}, mats); err != nil {
		t.Fatalf("valid set rejected: %v", err)
	}
	if err := ValidateMaterials(rule, "u", []string{"a", "a", "c"}, mats); !errors.Is(err, ErrInvalidMaterials) {
		t.Fatalf("duplicate ids: %v", err)
	}
	if err := ValidateMaterials(rule, "other", []string{"a", "b", "c"}, mats); !errors.Is(err, ErrInvalidMaterials) {
		t.Fatalf("foreign owner: %v", err)
	}
	mats[2].Rarity = RarityRare
	if err := ValidateMaterials(rule, "u", []string{"a", "b", "c"}, mats); !errors.Is(err, ErrInvalidMaterials) {
		t.Fatalf("wrong rarity: %v", err)
	}
	if _, err := FusionRuleFor(RarityCommon); !errors.Is(err, ErrInvalidRarity) {
		t.Fatalf("common target: %v", err)
	}
}

func TestClampEnergy(t *testing.T) {
	for _, tc := range []struct{ in, want int }{{-5, 0}, {0, 0}, {55, 55}, {100, 100}, {130, 100}} {
		if got := clampEnergy(tc.in); got != tc.want {
			t.Fatalf("clamp(%d)=%d want %d", tc.in, got, tc.want)
		}
	}
}
