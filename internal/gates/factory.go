package gates

import (
	"math"

	"github.com/MJE43/math-marauders-go/internal/config"
	"github.com/MJE43/math-marauders-go/internal/engine"
)

// segment is one step of a template with its operand range before tier scaling
type segment struct {
	kind     Kind
	min, max float64
}

type template struct {
	segments []segment
	tone     Tone
}

var twoStepTemplates = []template{
	{segments: []segment{{KindMultiply, 1.3, 1.7}, {KindSubtract, 4, 10}}, tone: ToneBoost},
	{segments: []segment{{KindAdd, 6, 18}, {KindMultiply, 1.2, 1.5}}, tone: TonePositive},
	{segments: []segment{{KindSubtract, 4, 12}, {KindMultiply, 1.3, 1.6}}, tone: ToneNegative},
	{segments: []segment{{KindMultiply, 1.4, 1.9}, {KindDivide, 1.3, 1.6}}, tone: ToneHazard},
	{segments: []segment{{KindDivide, 1.2, 1.6}, {KindAdd, 4, 12}}, tone: ToneHazard},
}

var threeStepTemplates = []template{
	{segments: []segment{{KindAdd, 4, 12}, {KindMultiply, 1.4, 2.2}, {KindSubtract, 6, 14}}, tone: ToneBoost},
	{segments: []segment{{KindMultiply, 1.5, 2.4}, {KindAdd, 6, 16}, {KindDivide, 1.2, 1.8}}, tone: ToneBoost},
	{segments: []segment{{KindSubtract, 4, 10}, {KindMultiply, 1.6, 2.6}, {KindAdd, 2, 10}}, tone: ToneNegative},
	{segments: []segment{{KindDivide, 1.4, 2.2}, {KindSubtract, 2, 8}, {KindMultiply, 1.2, 1.6}}, tone: ToneHazard},
}

var singleKinds = []Kind{KindAdd, KindSubtract, KindMultiply, KindDivide}

// SafeFallback is returned when no valid candidate was found within the attempt budget
var SafeFallback Operation = Add{N: 5}

// safeComposite stands in for a required composite that could not be drawn
var safeComposite = NewComposite(TonePositive, Add{N: 5}, NewMultiply(1.2))

// Factory builds single-step and composite operations bounded by tier and army size
type Factory struct {
	attempts int
}

// NewFactory creates a factory using the tuning's operand attempt budget
func NewFactory(t config.Tuning) *Factory {
	attempts := t.Gates.MaxOperandAttempts
	if attempts < 1 {
		attempts = 1
	}
	return &Factory{attempts: attempts}
}

// Candidate draws an operation of a random eligible kind. When composite is true the
// draw is restricted to composite templates.
func (f *Factory) Candidate(army int, tier config.TierTuning, composite bool, src *engine.Source) Operation {
	if composite && tier.CompositeSteps > 0 {
		return f.Build(KindComposite, army, tier, src)
	}
	kinds := singleKinds
	if tier.CompositeSteps > 0 {
		kinds = append(append([]Kind{}, singleKinds...), KindComposite)
	}
	return f.Build(kinds[src.Intn(len(kinds))], army, tier, src)
}

// Build creates one operation of the requested kind. Invalid draws are retried and
// eventually fall back to another kind; the result is never degenerate.
func (f *Factory) Build(kind Kind, army int, tier config.TierTuning, src *engine.Source) Operation {
	switch kind {
	case KindAdd:
		return f.add(tier, src)
	case KindSubtract:
		return f.subtract(army, tier, src)
	case KindMultiply:
		return f.multiply(tier, src)
	case KindDivide:
		return f.divide(army, src)
	case KindComposite:
		return f.composite(army, tier, src)
	default:
		return SafeFallback
	}
}

func (f *Factory) add(tier config.TierTuning, src *engine.Source) Operation {
	lo, hi := scaled(5, 25, tier)
	return Add{N: src.IntRange(lo, hi)}
}

func (f *Factory) subtract(army int, tier config.TierTuning, src *engine.Source) Operation {
	if army <= 1 {
		return f.divide(army, src)
	}
	lo, hi := scaled(4, 18, tier)
	for i := 0; i < f.attempts; i++ {
		n := src.IntRange(lo, hi)
		if army-n >= 1 {
			return Subtract{N: n}
		}
		hi = min(hi/2, army-1)
		if hi < 1 {
			hi = 1
		}
		if lo > hi {
			lo = hi
		}
	}
	return f.divide(army, src)
}

func (f *Factory) multiply(tier config.TierTuning, src *engine.Source) Operation {
	hi := tier.MultiplyMax
	if hi < 1.2 {
		hi = 1.8
	}
	return NewMultiply(oneDecimal(src.Range(1.2, hi)))
}

func (f *Factory) divide(army int, src *engine.Source) Operation {
	if army < 1 {
		return SafeFallback
	}
	for i := 0; i < f.attempts; i++ {
		op := NewDivide(oneDecimal(src.Range(1.2, 2.1)))
		if math.Floor(float64(army)/op.Divisor.InexactFloat64()+0.5) >= 1 {
			return op
		}
	}
	return SafeFallback
}

func (f *Factory) composite(army int, tier config.TierTuning, src *engine.Source) Operation {
	pool := twoStepTemplates
	if tier.CompositeSteps >= 3 {
		pool = append(append([]template{}, twoStepTemplates...), threeStepTemplates...)
	}
	for i := 0; i < f.attempts; i++ {
		tpl := pool[src.Intn(len(pool))]
		steps := make([]Operation, len(tpl.segments))
		for j, seg := range tpl.segments {
			steps[j] = instantiate(seg, tier, src)
		}
		op := NewComposite(tpl.tone, steps...)
		p := Project(op, army)
		if p.Neutral {
			continue
		}
		// a composite may not wipe out a living army before clamping
		if army >= 1 && p.Raw < 1 {
			continue
		}
		return op
	}
	return safeComposite
}

func instantiate(seg segment, tier config.TierTuning, src *engine.Source) Operation {
	switch seg.kind {
	case KindAdd:
		lo, hi := scaled(seg.min, seg.max, tier)
		return Add{N: src.IntRange(lo, hi)}
	case KindSubtract:
		lo, hi := scaled(seg.min, seg.max, tier)
		return Subtract{N: src.IntRange(lo, hi)}
	case KindMultiply:
		return NewMultiply(oneDecimal(src.Range(seg.min, seg.max)))
	default:
		return NewDivide(oneDecimal(src.Range(seg.min, seg.max)))
	}
}

// scaled applies the tier operand scale to an integer range
func scaled(min, max float64, tier config.TierTuning) (int, int) {
	s := tier.OperandScale
	if s <= 0 {
		s = 1
	}
	lo := int(math.Round(min * s))
	hi := int(math.Round(max * s))
	if lo < 1 {
		lo = 1
	}
	if hi < lo {
		hi = lo
	}
	return lo, hi
}

func oneDecimal(v float64) float64 {
	return math.Round(v*10) / 10
}
