package gates

import "github.com/samber/lo"

// Resolution is the outcome of choosing one option of a gate
type Resolution struct {
	GateID     string    `json:"gate_id"`
	Direction  Direction `json:"direction"`
	Choice     int       `json:"choice"`
	Label      string    `json:"label"`
	Before     int       `json:"before"`
	Result     int       `json:"result"`
	Outcomes   []int     `json:"outcomes"`
	Best       int       `json:"best"`
	BestChoice int       `json:"best_choice"`
	IsOptimal  bool      `json:"is_optimal"`
	// Alternatives lists the outcomes of the options not taken, in option order
	Alternatives []int `json:"alternatives"`
}

// Resolve applies option choice of gate to army. It is pure; ok is false when the
// choice index is out of range.
func Resolve(gate Gate, choice, army int) (Resolution, bool) {
	if choice < 0 || choice >= len(gate.Options) {
		return Resolution{}, false
	}
	outcomes := Outcomes(gate.Options, army)
	best, bestChoice := bestOf(outcomes)

	alternatives := make([]int, 0, len(outcomes)-1)
	for i, o := range outcomes {
		if i != choice {
			alternatives = append(alternatives, o)
		}
	}

	return Resolution{
		GateID:       gate.ID,
		Direction:    gate.Direction,
		Choice:       choice,
		Label:        gate.Options[choice].Label(),
		Before:       clamp(army, 0, MaxArmy),
		Result:       outcomes[choice],
		Outcomes:     outcomes,
		Best:         best,
		BestChoice:   bestChoice,
		IsOptimal:    outcomes[choice] == best,
		Alternatives: alternatives,
	}, true
}

// bestOutcome returns the maximum projected outcome and the first option reaching it
func bestOutcome(options []Operation, army int) (int, int) {
	return bestOf(Outcomes(options, army))
}

func bestOf(outcomes []int) (int, int) {
	if len(outcomes) == 0 {
		return 0, -1
	}
	best := lo.Max(outcomes)
	return best, lo.IndexOf(outcomes, best)
}
