package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Skirmish resolution models
const (
	SkirmishSubtract = "subtract"
	SkirmishVolley   = "volley"
)

// Tuning holds every balance constant of the simulation
type Tuning struct {
	StartingArmy int            `yaml:"starting_army" json:"starting_army"`
	Gates        GateTuning     `yaml:"gates" json:"gates"`
	Tiers        []TierTuning   `yaml:"tiers" json:"tiers"`
	Skirmish     SkirmishTuning `yaml:"skirmish" json:"skirmish"`
	Chase        ChaseTuning    `yaml:"chase" json:"chase"`
	Scoring      ScoringTuning  `yaml:"scoring" json:"scoring"`
}

// GateTuning controls wave layout and the generator's attempt budgets
type GateTuning struct {
	BaseCount          int     `yaml:"base_count" json:"base_count"`
	OptionsPerGate     int     `yaml:"options_per_gate" json:"options_per_gate"`
	MaxAdjustRounds    int     `yaml:"max_adjust_rounds" json:"max_adjust_rounds"`
	MaxOperandAttempts int     `yaml:"max_operand_attempts" json:"max_operand_attempts"`
	TravelSeconds      float64 `yaml:"travel_seconds" json:"travel_seconds"`
}

// TierTuning describes one difficulty bracket. MaxWave 0 means unbounded.
type TierTuning struct {
	Name           string  `yaml:"name" json:"name"`
	MaxWave        int     `yaml:"max_wave" json:"max_wave"`
	DeltaThreshold float64 `yaml:"delta_threshold" json:"delta_threshold"`
	OperandScale   float64 `yaml:"operand_scale" json:"operand_scale"`
	MultiplyMax    float64 `yaml:"multiply_max" json:"multiply_max"`
	CompositeSteps int     `yaml:"composite_steps" json:"composite_steps"`
}

// SkirmishTuning configures the post-gate fight
type SkirmishTuning struct {
	Mode           string  `yaml:"mode" json:"mode"`
	EnemyRatio     float64 `yaml:"enemy_ratio" json:"enemy_ratio"`
	HPPerUnit      float64 `yaml:"hp_per_unit" json:"hp_per_unit"`
	BaseDamage     float64 `yaml:"base_damage" json:"base_damage"`
	DamageExponent float64 `yaml:"damage_exponent" json:"damage_exponent"`
	Jitter         float64 `yaml:"jitter" json:"jitter"`
	VolleyCap      int     `yaml:"volley_cap" json:"volley_cap"`
	VolleySeconds  float64 `yaml:"volley_seconds" json:"volley_seconds"`
}

// ChaseTuning configures the reverse chase
type ChaseTuning struct {
	BaseAttrition    float64   `yaml:"base_attrition" json:"base_attrition"`
	MisalignPenalty  float64   `yaml:"misalign_penalty" json:"misalign_penalty"`
	AlignWindow      float64   `yaml:"align_window" json:"align_window"`
	MaxTick          float64   `yaml:"max_tick" json:"max_tick"`
	DurationMin      float64   `yaml:"duration_min" json:"duration_min"`
	DurationJitter   float64   `yaml:"duration_jitter" json:"duration_jitter"`
	LaneMin          float64   `yaml:"lane_min" json:"lane_min"`
	LaneSpan         float64   `yaml:"lane_span" json:"lane_span"`
	FirstHoldMin     float64   `yaml:"first_hold_min" json:"first_hold_min"`
	FirstHoldJitter  float64   `yaml:"first_hold_jitter" json:"first_hold_jitter"`
	HoldMin          float64   `yaml:"hold_min" json:"hold_min"`
	HoldJitter       float64   `yaml:"hold_jitter" json:"hold_jitter"`
	PlayerSpeedBase  float64   `yaml:"player_speed_base" json:"player_speed_base"`
	PlayerSpeedAlign float64   `yaml:"player_speed_align" json:"player_speed_align"`
	ChaserHeadStart  float64   `yaml:"chaser_head_start" json:"chaser_head_start"`
	ChaserSpeed      float64   `yaml:"chaser_speed" json:"chaser_speed"`
	EliminationBelow float64   `yaml:"elimination_below" json:"elimination_below"`
	Checkpoints      []float64 `yaml:"checkpoints" json:"checkpoints"`
	TickLogCap       int       `yaml:"tick_log_cap" json:"tick_log_cap"`
}

// ScoringTuning holds the star thresholds and additive score weights
type ScoringTuning struct {
	StarThresholds   []float64 `yaml:"star_thresholds" json:"star_thresholds"`
	GateBonus        int       `yaml:"gate_bonus" json:"gate_bonus"`
	OptimalBonus     int       `yaml:"optimal_bonus" json:"optimal_bonus"`
	SurvivalBonus    int       `yaml:"survival_bonus" json:"survival_bonus"`
	SpeedTarget      float64   `yaml:"speed_target" json:"speed_target"`
	SpeedMultiplier  int       `yaml:"speed_multiplier" json:"speed_multiplier"`
	VolleyPar        int       `yaml:"volley_par" json:"volley_par"`
	VolleyBonus      int       `yaml:"volley_bonus" json:"volley_bonus"`
	SkirmishBonus    int       `yaml:"skirmish_bonus" json:"skirmish_bonus"`
	ChasePenalty     int       `yaml:"chase_penalty" json:"chase_penalty"`
	AttritionPenalty int       `yaml:"attrition_penalty" json:"attrition_penalty"`
}

// Default returns the stock tuning
func Default() Tuning {
	return Tuning{
		StartingArmy: 60,
		Gates: GateTuning{
			BaseCount:          4,
			OptionsPerGate:     2,
			MaxAdjustRounds:    16,
			MaxOperandAttempts: 20,
			TravelSeconds:      4,
		},
		Tiers: []TierTuning{
			{Name: "early", MaxWave: 5, DeltaThreshold: 0.15, OperandScale: 1, MultiplyMax: 1.8},
			{Name: "mid", MaxWave: 10, DeltaThreshold: 0.25, OperandScale: 1.5, MultiplyMax: 2.4, CompositeSteps: 2},
			{Name: "late", DeltaThreshold: 0.35, OperandScale: 2, MultiplyMax: 3.0, CompositeSteps: 3},
		},
		Skirmish: SkirmishTuning{
			Mode:           SkirmishSubtract,
			EnemyRatio:     0.8,
			HPPerUnit:      10,
			BaseDamage:     7,
			DamageExponent: 0.85,
			Jitter:         0.3,
			VolleyCap:      24,
			VolleySeconds:  0.15,
		},
		Chase: ChaseTuning{
			BaseAttrition:    0.05,
			MisalignPenalty:  0.18,
			AlignWindow:      0.5,
			MaxTick:          0.25,
			DurationMin:      18,
			DurationJitter:   4,
			LaneMin:          0.2,
			LaneSpan:         0.6,
			FirstHoldMin:     2,
			FirstHoldJitter:  1.2,
			HoldMin:          1.8,
			HoldJitter:       1.6,
			PlayerSpeedBase:  0.6,
			PlayerSpeedAlign: 0.4,
			ChaserHeadStart:  0.12,
			ChaserSpeed:      0.92,
			EliminationBelow: 0.5,
			Checkpoints:      []float64{0.35, 0.75},
			TickLogCap:       512,
		},
		Scoring: ScoringTuning{
			StarThresholds:   []float64{0.4, 0.6, 0.75, 0.9},
			GateBonus:        60,
			OptimalBonus:     40,
			SurvivalBonus:    15,
			SpeedTarget:      180,
			SpeedMultiplier:  2,
			VolleyPar:        5,
			VolleyBonus:      20,
			SkirmishBonus:    2,
			ChasePenalty:     120,
			AttritionPenalty: 2,
		},
	}
}

// Load reads a YAML file over the defaults. Keys missing from the file keep their
// default values; an empty path returns the defaults unchanged.
func Load(path string) (Tuning, error) {
	t := Default()
	if path == "" {
		return t, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Tuning{}, fmt.Errorf("read tuning %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, &t); err != nil {
		return Tuning{}, fmt.Errorf("parse tuning %s: %w", path, err)
	}
	if err := t.Validate(); err != nil {
		return Tuning{}, fmt.Errorf("tuning %s: %w", path, err)
	}
	return t, nil
}

// TierFor returns the tier bracket that covers a wave
func (t Tuning) TierFor(wave int) TierTuning {
	for _, tier := range t.Tiers {
		if tier.MaxWave == 0 || wave <= tier.MaxWave {
			return tier
		}
	}
	return t.Tiers[len(t.Tiers)-1]
}

// GateCount returns the number of forward gates for a wave
func (t Tuning) GateCount(wave int) int {
	if wave < 1 {
		wave = 1
	}
	return t.Gates.BaseCount + wave
}
