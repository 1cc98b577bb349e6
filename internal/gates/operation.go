package gates

import (
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// MaxArmy is the hard ceiling for any army size
const MaxArmy = 9999

// Kind identifies an operation shape
type Kind string

const (
	KindAdd       Kind = "add"
	KindSubtract  Kind = "subtract"
	KindMultiply  Kind = "multiply"
	KindDivide    Kind = "divide"
	KindComposite Kind = "composite"
)

// Tone is the presentation hint attached to an operation
type Tone string

const (
	TonePositive Tone = "positive"
	ToneNegative Tone = "negative"
	ToneBoost    Tone = "boost"
	ToneHazard   Tone = "hazard"
)

// Operation is a closed set of army transforms. The unexported eval method keeps
// implementations inside this package.
type Operation interface {
	Kind() Kind
	Label() string
	Describe() string
	Tone() Tone
	Multiplicative() bool
	eval(x float64) float64
}

// Add increases the army by N
type Add struct{ N int }

// Subtract decreases the army by N
type Subtract struct{ N int }

// Multiply scales the army by Factor
type Multiply struct{ Factor decimal.Decimal }

// Divide scales the army by 1/Divisor
type Divide struct{ Divisor decimal.Decimal }

// Composite applies Steps left to right, rounding only once at the end
type Composite struct {
	Steps []Operation
	Hint  Tone
}

// Neutral is the identity operation substituted for degenerate arithmetic
var Neutral Operation = Add{N: 0}

func (Add) Kind() Kind               { return KindAdd }
func (o Add) Label() string          { return "+" + strconv.Itoa(o.N) }
func (o Add) Describe() string       { return "add " + strconv.Itoa(o.N) }
func (Add) Tone() Tone               { return TonePositive }
func (Add) Multiplicative() bool     { return false }
func (o Add) eval(x float64) float64 { return x + float64(o.N) }

func (Subtract) Kind() Kind               { return KindSubtract }
func (o Subtract) Label() string          { return "−" + strconv.Itoa(o.N) }
func (o Subtract) Describe() string       { return "subtract " + strconv.Itoa(o.N) }
func (Subtract) Tone() Tone               { return ToneNegative }
func (Subtract) Multiplicative() bool     { return false }
func (o Subtract) eval(x float64) float64 { return x - float64(o.N) }

func (Multiply) Kind() Kind           { return KindMultiply }
func (o Multiply) Label() string      { return "×" + o.Factor.StringFixed(1) }
func (o Multiply) Describe() string   { return "multiply by " + o.Factor.StringFixed(1) }
func (Multiply) Tone() Tone           { return ToneBoost }
func (Multiply) Multiplicative() bool { return true }
func (o Multiply) eval(x float64) float64 {
	f := o.Factor.InexactFloat64()
	if f <= 0 {
		return math.NaN()
	}
	return x * f
}

func (Divide) Kind() Kind           { return KindDivide }
func (o Divide) Label() string      { return "÷" + o.Divisor.StringFixed(1) }
func (o Divide) Describe() string   { return "divide by " + o.Divisor.StringFixed(1) }
func (Divide) Tone() Tone           { return ToneHazard }
func (Divide) Multiplicative() bool { return true }
func (o Divide) eval(x float64) float64 {
	d := o.Divisor.InexactFloat64()
	if d <= 0 {
		return math.NaN()
	}
	return x / d
}

func (Composite) Kind() Kind { return KindComposite }

func (o Composite) Label() string {
	parts := make([]string, len(o.Steps))
	for i, s := range o.Steps {
		parts[i] = s.Label()
	}
	return strings.Join(parts, " ")
}

func (o Composite) Describe() string {
	parts := make([]string, len(o.Steps))
	for i, s := range o.Steps {
		parts[i] = s.Describe()
	}
	return strings.Join(parts, ", then ")
}

// Tone is the template hint, or the last step's tone when none was set
func (o Composite) Tone() Tone {
	if o.Hint != "" {
		return o.Hint
	}
	if len(o.Steps) == 0 {
		return TonePositive
	}
	return o.Steps[len(o.Steps)-1].Tone()
}

func (o Composite) Multiplicative() bool {
	for _, s := range o.Steps {
		if s.Multiplicative() {
			return true
		}
	}
	return false
}

func (o Composite) eval(x float64) float64 {
	if len(o.Steps) == 0 {
		return math.NaN()
	}
	for _, s := range o.Steps {
		x = s.eval(x)
	}
	return x
}

// NewMultiply builds a Multiply with a one-decimal factor
func NewMultiply(factor float64) Multiply {
	return Multiply{Factor: decimal.NewFromFloat(factor).Round(1)}
}

// NewDivide builds a Divide with a one-decimal divisor
func NewDivide(divisor float64) Divide {
	return Divide{Divisor: decimal.NewFromFloat(divisor).Round(1)}
}

// NewComposite flattens nested composites into a single step list
func NewComposite(hint Tone, steps ...Operation) Composite {
	flat := make([]Operation, 0, len(steps))
	for _, s := range steps {
		if c, ok := s.(Composite); ok {
			flat = append(flat, c.Steps...)
			continue
		}
		flat = append(flat, s)
	}
	return Composite{Steps: flat, Hint: hint}
}

// Projection is the outcome of applying an operation to an army
type Projection struct {
	Before  int     `json:"before"`
	Raw     float64 `json:"raw"`
	Result  int     `json:"result"`
	Delta   int     `json:"delta"`
	Ratio   float64 `json:"ratio"`
	Neutral bool    `json:"neutral,omitempty"`
}

// Project evaluates op against army. Degenerate arithmetic (non-positive factor or
// divisor, empty composite, non-finite result) is replaced by the neutral operation.
func Project(op Operation, army int) Projection {
	army = clamp(army, 0, MaxArmy)
	p := Projection{Before: army}

	raw := math.NaN()
	if op != nil {
		raw = op.eval(float64(army))
	}
	if math.IsNaN(raw) || math.IsInf(raw, 0) {
		op = Neutral
		raw = float64(army)
		p.Neutral = true
	}
	p.Raw = raw

	result := MaxArmy
	if rounded := math.Floor(raw + 0.5); rounded < MaxArmy {
		result = int(math.Max(rounded, -1))
	}
	floor := 0
	if op.Multiplicative() && army >= 1 {
		floor = 1
	}
	p.Result = clamp(result, floor, MaxArmy)
	p.Delta = p.Result - army
	if army == 0 {
		p.Ratio = 1
	} else {
		p.Ratio = float64(p.Result) / float64(army)
	}
	return p
}

// Apply returns the army after op
func Apply(op Operation, army int) int {
	return Project(op, army).Result
}

// IsDegenerate reports whether op would be replaced by the neutral operation
func IsDegenerate(op Operation) bool {
	return Project(op, 1).Neutral
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
