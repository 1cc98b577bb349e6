package config

import (
	"errors"
	"fmt"
	"sort"
)

var ErrNoTiers = errors.New("at least one tier is required")

// Validate rejects tunings the simulation cannot run with
func (t Tuning) Validate() error {
	if t.StartingArmy < 1 {
		return fmt.Errorf("starting_army must be >= 1, got %d", t.StartingArmy)
	}
	if t.Gates.BaseCount < 0 {
		return fmt.Errorf("gates.base_count must be >= 0, got %d", t.Gates.BaseCount)
	}
	if t.Gates.OptionsPerGate < 2 {
		return fmt.Errorf("gates.options_per_gate must be >= 2, got %d", t.Gates.OptionsPerGate)
	}
	if t.Gates.MaxAdjustRounds < 0 || t.Gates.MaxOperandAttempts < 1 {
		return fmt.Errorf("gates attempt budgets must be positive")
	}

	if len(t.Tiers) == 0 {
		return ErrNoTiers
	}
	last := 0
	for i, tier := range t.Tiers {
		if tier.Name == "" {
			return fmt.Errorf("tiers[%d]: name is required", i)
		}
		if tier.DeltaThreshold < 0 {
			return fmt.Errorf("tiers[%d]: delta_threshold must be >= 0", i)
		}
		if tier.OperandScale <= 0 {
			return fmt.Errorf("tiers[%d]: operand_scale must be > 0", i)
		}
		if tier.MultiplyMax < 1.2 {
			return fmt.Errorf("tiers[%d]: multiply_max must be >= 1.2", i)
		}
		if tier.CompositeSteps != 0 && tier.CompositeSteps != 2 && tier.CompositeSteps != 3 {
			return fmt.Errorf("tiers[%d]: composite_steps must be 0, 2 or 3", i)
		}
		if tier.MaxWave == 0 && i != len(t.Tiers)-1 {
			return fmt.Errorf("tiers[%d]: only the last tier may be unbounded", i)
		}
		if tier.MaxWave != 0 && tier.MaxWave <= last {
			return fmt.Errorf("tiers[%d]: max_wave must increase", i)
		}
		last = tier.MaxWave
	}

	switch t.Skirmish.Mode {
	case SkirmishSubtract, SkirmishVolley:
	default:
		return fmt.Errorf("skirmish.mode must be %q or %q, got %q", SkirmishSubtract, SkirmishVolley, t.Skirmish.Mode)
	}
	if t.Skirmish.EnemyRatio < 0 || t.Skirmish.EnemyRatio > 1 {
		return fmt.Errorf("skirmish.enemy_ratio must be within [0, 1]")
	}
	if t.Skirmish.VolleyCap < 1 || t.Skirmish.HPPerUnit <= 0 {
		return fmt.Errorf("skirmish.volley_cap and hp_per_unit must be positive")
	}

	c := t.Chase
	if c.DurationMin <= 0 || c.MaxTick <= 0 || c.AlignWindow <= 0 {
		return fmt.Errorf("chase duration_min, max_tick and align_window must be positive")
	}
	if c.BaseAttrition < 0 || c.MisalignPenalty < 0 {
		return fmt.Errorf("chase attrition rates must be >= 0")
	}
	if c.PlayerSpeedBase <= 0 {
		return fmt.Errorf("chase.player_speed_base must be > 0")
	}
	if !sort.Float64sAreSorted(c.Checkpoints) {
		return fmt.Errorf("chase.checkpoints must be ascending")
	}
	for _, cp := range c.Checkpoints {
		if cp <= 0 || cp >= 1 {
			return fmt.Errorf("chase.checkpoints must lie in (0, 1), got %v", cp)
		}
	}

	if !sort.Float64sAreSorted(t.Scoring.StarThresholds) {
		return fmt.Errorf("scoring.star_thresholds must be ascending")
	}
	return nil
}
