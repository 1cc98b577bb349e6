package scoring

import (
	"math"

	"github.com/samber/lo"

	"github.com/MJE43/math-marauders-go/internal/config"
)

// CalculateStars rates survivors against the optimal reference. No survivors is 0 stars;
// a non-positive reference earns the maximum. Otherwise the rating is one more than the
// number of thresholds the ratio strictly exceeds, so it never decreases as the ratio
// grows.
func CalculateStars(survivors, optimal int, thresholds []float64) int {
	maxStars := len(thresholds) + 1
	if survivors <= 0 {
		return 0
	}
	if optimal <= 0 {
		return maxStars
	}
	ratio := float64(survivors) / float64(optimal)
	stars := 1
	for i, threshold := range thresholds {
		if ratio > threshold {
			stars = i + 2
		}
	}
	return min(stars, maxStars)
}

// Input collects everything a finished run contributes to its score
type Input struct {
	InitialArmy     int     `json:"initial_army"`
	Remaining       int     `json:"remaining"`
	Optimal         int     `json:"optimal"`
	Elapsed         float64 `json:"elapsed"`
	GatesTaken      int     `json:"gates_taken"`
	OptimalChoices  int     `json:"optimal_choices"`
	Volleys         int     `json:"volleys"`
	EnemiesDefeated int     `json:"enemies_defeated"`
	Escaped         bool    `json:"escaped"`
}

// Breakdown lists every additive term
type Breakdown struct {
	GateBonus        int `json:"gate_bonus"`
	OptimalBonus     int `json:"optimal_bonus"`
	SurvivalBonus    int `json:"survival_bonus"`
	SpeedBonus       int `json:"speed_bonus"`
	VolleyBonus      int `json:"volley_bonus"`
	SkirmishBonus    int `json:"skirmish_bonus"`
	ChasePenalty     int `json:"chase_penalty"`
	AttritionPenalty int `json:"attrition_penalty"`
}

// Result is the final score of a run
type Result struct {
	Total     int       `json:"total"`
	Breakdown Breakdown `json:"breakdown"`
	Stars     int       `json:"stars"`
	MaxStars  int       `json:"max_stars"`
	Ratio     float64   `json:"ratio"`
	Survivors int       `json:"survivors"`
	Optimal   int       `json:"optimal"`
}

// Calculator applies score weights and star thresholds
type Calculator struct {
	tuning config.ScoringTuning
}

// NewCalculator creates a calculator for a tuning
func NewCalculator(t config.ScoringTuning) *Calculator {
	return &Calculator{tuning: t}
}

// Stars rates a survivor count against the optimal reference
func (c *Calculator) Stars(survivors, optimal int) int {
	return CalculateStars(survivors, optimal, c.tuning.StarThresholds)
}

// Calculate scores a run. A run that did not escape keeps its additive score but earns
// no stars. The total is never negative.
func (c *Calculator) Calculate(in Input) Result {
	t := c.tuning
	remaining := max(0, in.Remaining)

	b := Breakdown{
		GateBonus:        max(0, in.GatesTaken) * t.GateBonus,
		OptimalBonus:     max(0, in.OptimalChoices) * t.OptimalBonus,
		SurvivalBonus:    remaining * t.SurvivalBonus,
		SpeedBonus:       max(0, int(t.SpeedTarget-math.Round(in.Elapsed))) * t.SpeedMultiplier,
		VolleyBonus:      max(0, t.VolleyPar-in.Volleys) * t.VolleyBonus,
		SkirmishBonus:    max(0, in.EnemiesDefeated) * t.SkirmishBonus,
		AttritionPenalty: max(0, in.InitialArmy-remaining) * t.AttritionPenalty,
	}
	if !in.Escaped {
		b.ChasePenalty = t.ChasePenalty
	}

	gains := lo.Sum([]int{b.GateBonus, b.OptimalBonus, b.SurvivalBonus, b.SpeedBonus, b.VolleyBonus, b.SkirmishBonus})
	losses := b.ChasePenalty + b.AttritionPenalty

	survivors := remaining
	if !in.Escaped {
		survivors = 0
	}
	res := Result{
		Total:     max(0, gains-losses),
		Breakdown: b,
		Stars:     c.Stars(survivors, in.Optimal),
		MaxStars:  len(t.StarThresholds) + 1,
		Survivors: survivors,
		Optimal:   in.Optimal,
	}
	if in.Optimal > 0 {
		res.Ratio = float64(survivors) / float64(in.Optimal)
	}
	return res
}
