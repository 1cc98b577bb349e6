package autopilot

import (
	"errors"
	"fmt"
	"sort"

	"github.com/samber/lo"

	"github.com/MJE43/math-marauders-go/internal/gates"
	"github.com/MJE43/math-marauders-go/internal/run"
)

var ErrUnknownStrategy = errors.New("unknown strategy")

// Strategy decides gate choices and chase steering for headless play
type Strategy interface {
	Name() string
	Choose(g gates.Gate, army int) (int, error)
	Steer(t run.ChaseTick) (float64, error)
}

// Greedy always takes the option with the largest outcome and follows the lane
type Greedy struct{}

func (Greedy) Name() string { return "greedy" }

func (Greedy) Choose(g gates.Gate, army int) (int, error) {
	outcomes := gates.Outcomes(g.Options, army)
	return lo.IndexOf(outcomes, lo.Max(outcomes)), nil
}

func (Greedy) Steer(t run.ChaseTick) (float64, error) { return t.Lane, nil }

// First always takes option 0 and follows the lane
type First struct{}

func (First) Name() string { return "first" }

func (First) Choose(gates.Gate, int) (int, error) { return 0, nil }

func (First) Steer(t run.ChaseTick) (float64, error) { return t.Lane, nil }

// Worst takes the smallest outcome and steers away from the lane
type Worst struct{}

func (Worst) Name() string { return "worst" }

func (Worst) Choose(g gates.Gate, army int) (int, error) {
	outcomes := gates.Outcomes(g.Options, army)
	return lo.IndexOf(outcomes, lo.Min(outcomes)), nil
}

func (Worst) Steer(t run.ChaseTick) (float64, error) {
	if t.Lane < 0.5 {
		return 1, nil
	}
	return 0, nil
}

var builtins = map[string]Strategy{
	"greedy": Greedy{},
	"first":  First{},
	"worst":  Worst{},
}

// Lookup returns a built-in strategy by name. An empty name selects greedy.
func Lookup(name string) (Strategy, error) {
	if name == "" {
		return Greedy{}, nil
	}
	s, ok := builtins[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
	}
	return s, nil
}

// Names lists the built-in strategies
func Names() []string {
	names := lo.Keys(builtins)
	sort.Strings(names)
	return names
}
