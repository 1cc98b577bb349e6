package gates

import (
	"fmt"

	"github.com/MJE43/math-marauders-go/internal/config"
	"github.com/MJE43/math-marauders-go/internal/engine"
)

// Direction tells whether a gate sits on the advance or the retreat
type Direction string

const (
	Forward Direction = "forward"
	Retreat Direction = "retreat"
)

// Gate is a set of operations offered together
type Gate struct {
	ID        string
	Wave      int
	Index     int
	Direction Direction
	Tier      string
	Options   []Operation
	// Army is the reference army the options were balanced against
	Army      int
	Threshold float64
	Delta     float64
	Separated bool
	Rounds    int
}

// WaveConfig describes the layout of one wave
type WaveConfig struct {
	Number       int    `json:"number"`
	Seed         uint32 `json:"seed"`
	StartingArmy int    `json:"starting_army"`
	GateCount    int    `json:"gate_count"`
	RetreatCount int    `json:"retreat_count"`
	Tier         string `json:"tier"`
}

// Wave is a generated wave with its reference trajectory
type Wave struct {
	Config  WaveConfig
	Forward []Gate
	Retreat []Gate
	Optimal Path
}

// Gate returns the gate with the given id from either direction
func (w Wave) Gate(id string) (Gate, bool) {
	for _, g := range w.Forward {
		if g.ID == id {
			return g, true
		}
	}
	for _, g := range w.Retreat {
		if g.ID == id {
			return g, true
		}
	}
	return Gate{}, false
}

// Generator produces gates whose options diverge by at least the tier threshold
type Generator struct {
	tuning  config.Tuning
	factory *Factory
}

// NewGenerator creates a generator for a tuning
func NewGenerator(t config.Tuning) *Generator {
	return &Generator{tuning: t, factory: NewFactory(t)}
}

// Config derives the wave layout for a seed and wave number
func (g *Generator) Config(seed uint32, wave, startingArmy int) WaveConfig {
	if wave < 1 {
		wave = 1
	}
	if startingArmy < 0 {
		startingArmy = 0
	}
	return WaveConfig{
		Number:       wave,
		Seed:         seed,
		StartingArmy: clamp(startingArmy, 0, MaxArmy),
		GateCount:    g.tuning.GateCount(wave),
		RetreatCount: len(g.tuning.Chase.Checkpoints),
		Tier:         g.tuning.TierFor(wave).Name,
	}
}

// Generate builds every gate of a wave from a single source. Each forward gate is
// balanced against the army the optimal player would bring to it; retreat gates
// continue from the optimal forward result.
func (g *Generator) Generate(cfg WaveConfig) Wave {
	src := engine.NewSource(engine.WaveSeed(cfg.Seed, cfg.Number))
	ratio := g.tuning.Skirmish.EnemyRatio

	w := Wave{Config: cfg}
	army := cfg.StartingArmy
	for i := 0; i < cfg.GateCount; i++ {
		gate := g.Gate(fmt.Sprintf("wave-%d-fwd-%d", cfg.Number, i), cfg.Number, i, Forward, army, src)
		w.Forward = append(w.Forward, gate)
		best, _ := bestOutcome(gate.Options, army)
		army = best - EnemyFor(best, ratio)
	}
	for i := 0; i < cfg.RetreatCount; i++ {
		gate := g.Gate(fmt.Sprintf("wave-%d-ret-%d", cfg.Number, i), cfg.Number, i, Retreat, army, src)
		w.Retreat = append(w.Retreat, gate)
		army, _ = bestOutcome(gate.Options, army)
	}
	w.Optimal = EvaluateOptimal(cfg.StartingArmy, w.Forward, w.Retreat, ratio)
	return w
}

// Gate builds one gate against a reference army
func (g *Generator) Gate(id string, wave, index int, dir Direction, army int, src *engine.Source) Gate {
	tier := g.tuning.TierFor(wave)
	n := g.tuning.Gates.OptionsPerGate
	if n < 2 {
		n = 2
	}

	compositeSlot := -1
	if tier.CompositeSteps > 0 {
		compositeSlot = src.Intn(n)
	}

	options := make([]Operation, 0, n)
	for len(options) < n {
		slot := len(options)
		op := g.factory.Candidate(army, tier, slot == compositeSlot, src)
		for i := 0; i < g.tuning.Gates.MaxOperandAttempts && hasLabel(options, op.Label()); i++ {
			op = g.factory.Candidate(army, tier, slot == compositeSlot, src)
		}
		if hasLabel(options, op.Label()) {
			op = uniqueFallback(options, slot == compositeSlot)
		}
		options = append(options, op)
	}

	delta := Spread(options, army)
	rounds := 0
	for delta < tier.DeltaThreshold && rounds < g.tuning.Gates.MaxAdjustRounds {
		rounds++
		weak := weakest(options, army)
		replacement := g.factory.Candidate(army, tier, weak == compositeSlot, src)
		if labelTakenElsewhere(options, weak, replacement.Label()) {
			continue
		}
		options[weak] = replacement
		delta = Spread(options, army)
	}

	if tier.CompositeSteps > 0 && !hasComposite(options) {
		options[max(compositeSlot, 0)] = safeComposite
		delta = Spread(options, army)
	}

	return Gate{
		ID:        id,
		Wave:      wave,
		Index:     index,
		Direction: dir,
		Tier:      tier.Name,
		Options:   options,
		Army:      army,
		Threshold: tier.DeltaThreshold,
		Delta:     delta,
		Separated: delta >= tier.DeltaThreshold,
		Rounds:    rounds,
	}
}

// Spread is the normalized gap between the best and worst projected outcome
func Spread(options []Operation, army int) float64 {
	if len(options) == 0 {
		return 0
	}
	outcomes := Outcomes(options, army)
	lo, hi := outcomes[0], outcomes[0]
	for _, o := range outcomes[1:] {
		lo = min(lo, o)
		hi = max(hi, o)
	}
	return float64(hi-lo) / float64(max(1, army))
}

// Outcomes projects every option against army
func Outcomes(options []Operation, army int) []int {
	out := make([]int, len(options))
	for i, op := range options {
		out[i] = Apply(op, army)
	}
	return out
}

// weakest returns the index of the lowest outcome; ties pick the later slot
func weakest(options []Operation, army int) int {
	idx := 0
	lowest := Apply(options[0], army)
	for i := 1; i < len(options); i++ {
		if v := Apply(options[i], army); v <= lowest {
			idx, lowest = i, v
		}
	}
	return idx
}

func hasLabel(options []Operation, label string) bool {
	for _, op := range options {
		if op.Label() == label {
			return true
		}
	}
	return false
}

func labelTakenElsewhere(options []Operation, skip int, label string) bool {
	for i, op := range options {
		if i != skip && op.Label() == label {
			return true
		}
	}
	return false
}

func hasComposite(options []Operation) bool {
	for _, op := range options {
		if op.Kind() == KindComposite {
			return true
		}
	}
	return false
}

// uniqueFallback returns a safe operation whose label is not yet taken
func uniqueFallback(options []Operation, composite bool) Operation {
	for n := 5; ; n++ {
		var op Operation = Add{N: n}
		if composite {
			op = NewComposite(TonePositive, Add{N: n}, NewMultiply(1.2))
		}
		if !hasLabel(options, op.Label()) {
			return op
		}
	}
}
