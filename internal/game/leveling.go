package game

import (
	"context"
	"errors"
	"fmt"
	"math"
)

// cumulativeExp[l] is the total exp a creature needs to reach level l.
var cumulativeExp = buildExpCurve()

func buildExpCurve() [MaxLevel + 1]int64 {
	var curve [MaxLevel + 1]int64
	for level := 2; level <= MaxLevel; level++ {
		step := int64(math.Floor(BaseExp * math.Pow(float64(level), ExpExponent)))
		curve[level] = curve[level-1] + step
	}
	return curve
}

// RequiredExp is the cumulative exp needed to reach level. Levels past MaxLevel are
// unreachable and report math.MaxInt64.
func RequiredExp(level int) int64 {
	if level <= 1 {
		return 0
	}
	if level > MaxLevel {
		return math.MaxInt64
	}
	return cumulativeExp[level]
}

// LevelForExp is the level a creature with exp total exp sits at.
func LevelForExp(exp int64) int {
	level := 1
	for level < MaxLevel && exp >= RequiredExp(level+1) {
		level++
	}
	return level
}

func ProductionBonus(level int) float64 {
	if level < 1 {
		level = 1
	}
	if level > MaxLevel {
		level = MaxLevel
	}
	return 1 + float64(level-1)*ProductionBonusPerLevel
}

// ApplyExp adds gain to c and cascades level-ups. Exp past the cap is kept.
func ApplyExp(c Creature, gain int64) (ExpResult, error) {
	if gain < 0 {
		return ExpResult{Creature: c}, fmt.Errorf("%w: exp gain %d", ErrInvalidAmount, gain)
	}
	if c.Level < 1 {
		c.Level = 1
	}
	if gain > math.MaxInt64-c.Exp {
		c.Exp = math.MaxInt64
	} else {
		c.Exp += gain
	}
	start := c.Level
	for c.Level < MaxLevel && c.Exp >= RequiredExp(c.Level+1) {
		c.Level++
	}
	return ExpResult{
		Creature:     c,
		LeveledUp:    c.Level > start,
		LevelsGained: c.Level - start,
	}, nil
}

type ExpTableRow struct {
	Level           int     `json:"level"`
	RequiredExp     int64   `json:"required_exp"`
	ExpToNext       int64   `json:"exp_to_next"`
	ProductionBonus float64 `json:"production_bonus"`
}

func ExpTable() []ExpTableRow {
	rows := make([]ExpTableRow, 0, MaxLevel)
	for level := 1; level <= MaxLevel; level++ {
		row := ExpTableRow{
			Level:           level,
			RequiredExp:     RequiredExp(level),
			ProductionBonus: ProductionBonus(level),
		}
		if level < MaxLevel {
			row.ExpToNext = RequiredExp(level+1) - RequiredExp(level)
		}
		rows = append(rows, row)
	}
	return rows
}

type ExpProgress struct {
	Level        int     `json:"level"`
	Exp          int64   `json:"exp"`
	LevelFloor   int64   `json:"level_floor"`
	NextLevelExp int64   `json:"next_level_exp,omitempty"`
	Percent      float64 `json:"percent"`
	MaxLevel     bool    `json:"max_level"`
}

func Progress(c Creature) ExpProgress {
	p := ExpProgress{Level: c.Level, Exp: c.Exp, LevelFloor: RequiredExp(c.Level)}
	if c.Level >= MaxLevel {
		p.MaxLevel = true
		p.Percent = 100
		return p
	}
	p.NextLevelExp = RequiredExp(c.Level + 1)
	span := p.NextLevelExp - p.LevelFloor
	if span > 0 {
		p.Percent = math.Round(float64(c.Exp-p.LevelFloor)/float64(span)*10000) / 100
	}
	return p
}

// AddExp grants exp to a creature on behalf of its owner.
func (s *Service) AddExp(ctx context.Context, creatureID string, gain int64) (ExpResult, error) {
	if gain < 0 {
		return ExpResult{}, fmt.Errorf("%w: exp gain %d", ErrInvalidAmount, gain)
	}
	owner, err := s.store.CreatureOwner(ctx, creatureID)
	if err != nil {
		return ExpResult{}, err
	}
	var out ExpResult
	err = s.run(ctx, owner, func(u *Unit) error {
		c, err := u.tx.Creature(ctx, creatureID)
		if err != nil {
			return err
		}
		out, err = ApplyExp(c, gain)
		if err != nil {
			return err
		}
		return u.tx.UpdateCreatureProgress(ctx, c.ID, out.Creature.Level, out.Creature.Exp)
	})
	if err != nil {
		return ExpResult{}, err
	}
	if out.LeveledUp {
		s.log.Info("creature leveled up", "creature_id", creatureID, "user_id", owner, "level", out.Creature.Level, "levels_gained", out.LevelsGained)
	}
	return out, nil
}

// applyAnchorExp feeds production time into the session's anchor creature and
// returns the exp actually granted. A missing anchor (consumed by fusion mid-session)
// gets nothing.
func applyAnchorExp(ctx context.Context, u *Unit, creatureID string, gain int64) (int64, *LevelUp, error) {
	if gain <= 0 {
		return 0, nil, nil
	}
	c, err := u.tx.Creature(ctx, creatureID)
	if errors.Is(err, ErrCreatureNotFound) {
		return 0, nil, nil
	}
	if err != nil {
		return 0, nil, err
	}
	res, err := ApplyExp(c, gain)
	if err != nil {
		return 0, nil, err
	}
	if err := u.tx.UpdateCreatureProgress(ctx, c.ID, res.Creature.Level, res.Creature.Exp); err != nil {
		return 0, nil, err
	}
	if !res.LeveledUp {
		return gain, nil, nil
	}
	return gain, &LevelUp{
		CreatureID:   c.ID,
		OldLevel:     c.Level,
		NewLevel:     res.Creature.Level,
		LevelsGained: res.LevelsGained,
	}, nil
}
