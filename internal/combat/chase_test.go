package combat

import (
	"math"
	"testing"

	"github.com/MJE43/math-marauders-go/internal/config"
	"github.com/MJE43/math-marauders-go/internal/engine"
)

const maxTestTicks = 10000

// drive advances until a terminal outcome, resolving checkpoints with resolve
func drive(c *Chase, steer func(c *Chase) float64, resolve func(units int) int) ChaseResult {
	for i := 0; i < maxTestTicks && !c.Done(); i++ {
		if _, ok := c.Pending(); ok {
			c.ResolveCheckpoint(resolve(c.Units()))
			continue
		}
		c.Advance(0.1, steer(c))
	}
	return c.Result()
}

func onLane(c *Chase) float64 { return c.Lane() }

func offLane(c *Chase) float64 {
	if c.Lane() < 0.5 {
		return 1
	}
	return 0
}

func keep(units int) int { return units }

func TestChaseAlignedEscapes(t *testing.T) {
	c := NewChase(config.Default().Chase, 60, engine.NewSource(1))
	res := drive(c, onLane, keep)

	if res.Outcome != OutcomeEscaped {
		t.Fatalf("expected escape with perfect steering, got %q", res.Outcome)
	}
	if res.Remaining <= 0 || res.Remaining >= 60 {
		t.Errorf("expected base attrition only, remaining %d", res.Remaining)
	}
	if len(res.Checkpoints) != 2 {
		t.Errorf("expected 2 checkpoints, got %d", len(res.Checkpoints))
	}
	if res.Elapsed < res.Duration-0.2 || res.Elapsed > res.Duration+0.2 {
		t.Errorf("expected aligned escape near duration %.2f, got %.2f", res.Duration, res.Elapsed)
	}
}

func TestChaseMisalignedIsCaught(t *testing.T) {
	c := NewChase(config.Default().Chase, 60, engine.NewSource(2))
	res := drive(c, offLane, keep)

	if res.Outcome != OutcomeCaught {
		t.Fatalf("expected caught with opposite steering, got %q", res.Outcome)
	}
	if len(res.Checkpoints) != 0 {
		t.Errorf("expected no checkpoint before being caught, got %d", len(res.Checkpoints))
	}
}

func TestChaseSmallArmyEliminated(t *testing.T) {
	c := NewChase(config.Default().Chase, 1, engine.NewSource(3))
	res := drive(c, offLane, keep)
	if res.Outcome != OutcomeEliminated {
		t.Fatalf("expected elimination, got %q", res.Outcome)
	}
	if res.Remaining != 0 {
		t.Errorf("expected 0 remaining, got %d", res.Remaining)
	}
}

func TestChaseEmptyArmyEliminatedAtStart(t *testing.T) {
	c := NewChase(config.Default().Chase, 0, engine.NewSource(3))
	if c.Outcome() != OutcomeEliminated {
		t.Fatalf("expected immediate elimination, got %q", c.Outcome())
	}
	if tick := c.Advance(0.1, 0.5); tick.Applied {
		t.Error("expected advance after elimination to be a no-op")
	}
}

func TestChaseCheckpointPausesAdvance(t *testing.T) {
	c := NewChase(config.Default().Chase, 60, engine.NewSource(4))
	for i := 0; i < maxTestTicks; i++ {
		if _, ok := c.Pending(); ok {
			break
		}
		c.Advance(0.1, c.Lane())
	}
	idx, ok := c.Pending()
	if !ok || idx != 0 {
		t.Fatalf("expected first checkpoint pending, got %d %v", idx, ok)
	}

	before := c.Snapshot()
	tick := c.Advance(0.1, c.Lane())
	if tick.Applied || tick.Elapsed != before.Elapsed || tick.Progress != before.Progress {
		t.Error("expected advance to be a no-op while a checkpoint is pending")
	}

	if !c.ResolveCheckpoint(before.Units + 10) {
		t.Fatal("expected checkpoint to resolve")
	}
	if c.Units() != before.Units+10 {
		t.Errorf("expected units %d after checkpoint, got %d", before.Units+10, c.Units())
	}
	if c.ResolveCheckpoint(5) {
		t.Error("expected second resolve without pending checkpoint to fail")
	}
	if tick := c.Advance(0.1, c.Lane()); !tick.Applied {
		t.Error("expected chase to resume after checkpoint")
	}
}

func TestChaseCheckpointToZeroEliminates(t *testing.T) {
	c := NewChase(config.Default().Chase, 60, engine.NewSource(5))
	res := drive(c, onLane, func(int) int { return 0 })
	if res.Outcome != OutcomeEliminated {
		t.Errorf("expected elimination after a zeroing checkpoint, got %q", res.Outcome)
	}
}

func TestChaseInvalidInputIsNoop(t *testing.T) {
	c := NewChase(config.Default().Chase, 60, engine.NewSource(6))
	for _, tt := range []struct{ dt, steer float64 }{
		{math.NaN(), 0.5},
		{0.1, math.Inf(1)},
		{math.Inf(-1), 0.5},
	} {
		if tick := c.Advance(tt.dt, tt.steer); tick.Applied {
			t.Errorf("expected dt=%v steer=%v to be ignored", tt.dt, tt.steer)
		}
	}
	if c.Result().Elapsed != 0 {
		t.Error("invalid input advanced the clock")
	}

	tick := c.Advance(5, 0.5)
	if tick.Dt != config.Default().Chase.MaxTick {
		t.Errorf("expected dt clamped to %v, got %v", config.Default().Chase.MaxTick, tick.Dt)
	}
}

func TestChaseSingleTerminalOutcome(t *testing.T) {
	tuning := config.Default().Chase
	for seed := uint32(1); seed <= 200; seed++ {
		src := engine.NewSource(seed)
		steerSrc := engine.NewSource(seed + 1000)
		c := NewChase(tuning, 1+int(seed%80), src)

		var terminal Outcome
		for i := 0; i < maxTestTicks; i++ {
			if _, ok := c.Pending(); ok {
				c.ResolveCheckpoint(c.Units())
				continue
			}
			tick := c.Advance(steerSrc.Range(0, 0.3), steerSrc.Next())
			if tick.Units < 0 {
				t.Fatalf("seed %d: negative units", seed)
			}
			if terminal != OutcomeNone && tick.Outcome != terminal {
				t.Fatalf("seed %d: outcome changed from %q to %q", seed, terminal, tick.Outcome)
			}
			if tick.Outcome != OutcomeNone {
				terminal = tick.Outcome
			}
			if terminal != OutcomeNone && i > 0 && !tick.Applied {
				break
			}
		}
		if terminal == OutcomeNone {
			t.Fatalf("seed %d: chase never terminated", seed)
		}
	}
}

func TestChaseTickLogCap(t *testing.T) {
	tuning := config.Default().Chase
	tuning.TickLogCap = 10
	c := NewChase(tuning, 60, engine.NewSource(8))
	drive(c, onLane, keep)
	res := c.Result()
	if len(res.Ticks) != 10 || !res.Truncated {
		t.Errorf("expected 10 ticks and truncation, got %d %v", len(res.Ticks), res.Truncated)
	}
}

func TestChaseDeterminism(t *testing.T) {
	run := func() ChaseResult {
		c := NewChase(config.Default().Chase, 45, engine.NewSource(77))
		steer := engine.NewSource(78)
		return drive(c, func(*Chase) float64 { return steer.Next() }, keep)
	}
	a, b := run(), run()
	if a.Outcome != b.Outcome || a.Remaining != b.Remaining || a.Elapsed != b.Elapsed {
		t.Errorf("identical inputs diverged: %+v vs %+v", a.Outcome, b.Outcome)
	}
}
