package gates

import (
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// Checkpoint records the optimal choice at one gate
type Checkpoint struct {
	GateID     string    `json:"gate_id"`
	Direction  Direction `json:"direction"`
	Before     int       `json:"before"`
	Outcomes   []int     `json:"outcomes"`
	Best       int       `json:"best"`
	BestChoice int       `json:"best_choice"`
	Enemy      int       `json:"enemy"`
	After      int       `json:"after"`
}

// Path is the reference trajectory of a player who always takes the best option
type Path struct {
	Forward      []Checkpoint `json:"forward"`
	Retreat      []Checkpoint `json:"retreat"`
	ForwardFinal int          `json:"forward_final"`
	RetreatFinal int          `json:"retreat_final"`
}

// Denominator is the survivor count a perfect run ends the wave with
func (p Path) Denominator() int {
	return p.RetreatFinal
}

// Checkpoint finds the checkpoint for a gate id
func (p Path) Checkpoint(gateID string) (Checkpoint, bool) {
	all := append(append([]Checkpoint{}, p.Forward...), p.Retreat...)
	return lo.Find(all, func(c Checkpoint) bool { return c.GateID == gateID })
}

// Gates counts forward and retreat checkpoints combined
func (p Path) Gates() int {
	return len(p.Forward) + len(p.Retreat)
}

// EnemyFor sizes the skirmish that follows a gate: floor(best × ratio)
func EnemyFor(best int, ratio float64) int {
	if best <= 0 || ratio <= 0 {
		return 0
	}
	enemy := decimal.NewFromInt(int64(best)).Mul(decimal.NewFromFloat(ratio)).Floor().IntPart()
	return clamp(int(enemy), 0, best)
}

// EvaluateOptimal walks forward gates taking the best option and fighting an enemy of
// EnemyFor(best), then walks retreat gates from the forward result with no skirmish.
func EvaluateOptimal(startingArmy int, forward, retreat []Gate, enemyRatio float64) Path {
	var p Path
	army := clamp(startingArmy, 0, MaxArmy)
	for _, g := range forward {
		outcomes := Outcomes(g.Options, army)
		best, choice := bestOf(outcomes)
		enemy := EnemyFor(best, enemyRatio)
		cp := Checkpoint{
			GateID:     g.ID,
			Direction:  Forward,
			Before:     army,
			Outcomes:   outcomes,
			Best:       best,
			BestChoice: choice,
			Enemy:      enemy,
			After:      best - enemy,
		}
		p.Forward = append(p.Forward, cp)
		army = cp.After
	}
	p.ForwardFinal = army

	for _, g := range retreat {
		outcomes := Outcomes(g.Options, army)
		best, choice := bestOf(outcomes)
		p.Retreat = append(p.Retreat, Checkpoint{
			GateID:     g.ID,
			Direction:  Retreat,
			Before:     army,
			Outcomes:   outcomes,
			Best:       best,
			BestChoice: choice,
			After:      best,
		})
		army = best
	}
	p.RetreatFinal = army
	return p
}
