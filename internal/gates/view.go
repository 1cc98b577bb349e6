package gates

import (
	"encoding/json"
	"strconv"
)

// OperationView is the serializable form of an Operation
type OperationView struct {
	Kind        Kind            `json:"kind"`
	Label       string          `json:"label"`
	Description string          `json:"description"`
	Tone        Tone            `json:"tone"`
	Operand     string          `json:"operand,omitempty"`
	Steps       []OperationView `json:"steps,omitempty"`
}

// ViewOf converts an operation for transport
func ViewOf(op Operation) OperationView {
	v := OperationView{
		Kind:        op.Kind(),
		Label:       op.Label(),
		Description: op.Describe(),
		Tone:        op.Tone(),
	}
	switch o := op.(type) {
	case Add:
		v.Operand = strconv.Itoa(o.N)
	case Subtract:
		v.Operand = strconv.Itoa(o.N)
	case Multiply:
		v.Operand = o.Factor.StringFixed(1)
	case Divide:
		v.Operand = o.Divisor.StringFixed(1)
	case Composite:
		v.Steps = make([]OperationView, len(o.Steps))
		for i, s := range o.Steps {
			v.Steps[i] = ViewOf(s)
		}
	}
	return v
}

// GateView is the serializable form of a Gate
type GateView struct {
	ID        string          `json:"id"`
	Wave      int             `json:"wave"`
	Index     int             `json:"index"`
	Direction Direction       `json:"direction"`
	Tier      string          `json:"tier"`
	Options   []OperationView `json:"options"`
	Army      int             `json:"reference_army"`
	Threshold float64         `json:"threshold"`
	Delta     float64         `json:"delta"`
	Separated bool            `json:"separated"`
}

// View converts the gate for transport
func (g Gate) View() GateView {
	opts := make([]OperationView, len(g.Options))
	for i, op := range g.Options {
		opts[i] = ViewOf(op)
	}
	return GateView{
		ID:        g.ID,
		Wave:      g.Wave,
		Index:     g.Index,
		Direction: g.Direction,
		Tier:      g.Tier,
		Options:   opts,
		Army:      g.Army,
		Threshold: g.Threshold,
		Delta:     g.Delta,
		Separated: g.Separated,
	}
}

// MarshalJSON encodes the gate through its view
func (g Gate) MarshalJSON() ([]byte, error) {
	return json.Marshal(g.View())
}

// WaveView is the serializable form of a Wave
type WaveView struct {
	Config  WaveConfig `json:"config"`
	Forward []GateView `json:"forward"`
	Retreat []GateView `json:"retreat"`
	Optimal Path       `json:"optimal"`
}

// View converts the wave for transport
func (w Wave) View() WaveView {
	v := WaveView{Config: w.Config, Optimal: w.Optimal}
	for _, g := range w.Forward {
		v.Forward = append(v.Forward, g.View())
	}
	for _, g := range w.Retreat {
		v.Retreat = append(v.Retreat, g.View())
	}
	return v
}

// MarshalJSON encodes the wave through its view
func (w Wave) MarshalJSON() ([]byte, error) {
	return json.Marshal(w.View())
}
