package combat

import (
	"math"

	"github.com/MJE43/math-marauders-go/internal/config"
	"github.com/MJE43/math-marauders-go/internal/engine"
)

// Outcome is the terminal state of a chase
type Outcome string

const (
	OutcomeNone       Outcome = ""
	OutcomeEscaped    Outcome = "escaped"
	OutcomeCaught     Outcome = "caught"
	OutcomeEliminated Outcome = "eliminated"
)

// Tick is the state of a chase after one step
type Tick struct {
	Applied    bool    `json:"applied"`
	Dt         float64 `json:"dt"`
	Elapsed    float64 `json:"elapsed"`
	Duration   float64 `json:"duration"`
	Progress   float64 `json:"progress"`
	Chaser     float64 `json:"chaser"`
	Gap        float64 `json:"gap"`
	Lane       float64 `json:"lane"`
	Steering   float64 `json:"steering"`
	Alignment  float64 `json:"alignment"`
	Rate       float64 `json:"rate"`
	Lost       float64 `json:"lost"`
	Units      int     `json:"units"`
	Outcome    Outcome `json:"outcome,omitempty"`
	Checkpoint int     `json:"checkpoint"`
}

// CheckpointRecord logs the army change at one chase checkpoint
type CheckpointRecord struct {
	Index     int     `json:"index"`
	Threshold float64 `json:"threshold"`
	Elapsed   float64 `json:"elapsed"`
	Before    int     `json:"before"`
	After     int     `json:"after"`
}

// ChaseResult summarizes a finished or in-flight chase
type ChaseResult struct {
	Outcome     Outcome            `json:"outcome,omitempty"`
	Elapsed     float64            `json:"elapsed"`
	Duration    float64            `json:"duration"`
	Progress    float64            `json:"progress"`
	StartUnits  int                `json:"start_units"`
	Remaining   int                `json:"remaining"`
	Casualties  int                `json:"casualties"`
	Checkpoints []CheckpointRecord `json:"checkpoints"`
	Ticks       []Tick             `json:"ticks"`
	Truncated   bool               `json:"truncated,omitempty"`
}

// Chase models the timed retreat. Units bleed continuously at a rate that grows with
// steering error; the player and a pursuer advance along a 0..1 track. Not safe for
// concurrent use.
type Chase struct {
	tuning config.ChaseTuning
	src    *engine.Source

	units      float64
	startUnits int
	elapsed    float64
	duration   float64
	progress   float64
	chaser     float64
	lane       float64
	nextLaneAt float64

	nextCheckpoint int
	pending        int
	outcome        Outcome

	checkpoints []CheckpointRecord
	ticks       []Tick
	truncated   bool
}

// NewChase starts a chase with the given army. An empty army is eliminated at once.
func NewChase(t config.ChaseTuning, units int, src *engine.Source) *Chase {
	c := &Chase{
		tuning:     t,
		src:        src,
		units:      float64(max(0, units)),
		startUnits: max(0, units),
		pending:    -1,
		chaser:     -t.ChaserHeadStart,
	}
	c.duration = t.DurationMin + src.Next()*t.DurationJitter
	c.lane = c.rollLane()
	c.nextLaneAt = t.FirstHoldMin + src.Next()*t.FirstHoldJitter
	if c.units < t.EliminationBelow {
		c.units = 0
		c.outcome = OutcomeEliminated
	}
	return c
}

// Advance steps the chase by dt seconds with a steering value in [0, 1]. It is a no-op
// once a terminal outcome is reached, while a checkpoint is pending, or for non-finite
// input.
func (c *Chase) Advance(dt, steering float64) Tick {
	if c.outcome != OutcomeNone || c.pending >= 0 || !finite(dt) || !finite(steering) {
		return c.snapshot(false)
	}
	dt = clampFloat(dt, 0, c.tuning.MaxTick)
	steering = clampFloat(steering, 0, 1)

	window := c.tuning.AlignWindow
	if window <= 0 {
		window = 0.5
	}
	alignment := 1 - clampFloat(math.Abs(steering-c.lane)/window, 0, 1)
	rate := c.tuning.BaseAttrition + (1-alignment)*c.tuning.MisalignPenalty
	lost := c.units * rate * dt
	c.units = math.Max(0, c.units-lost)

	c.elapsed += dt
	speed := c.tuning.PlayerSpeedBase + c.tuning.PlayerSpeedAlign*alignment
	c.progress = math.Min(1, c.progress+speed*dt/c.duration)
	c.chaser += c.tuning.ChaserSpeed * dt / c.duration

	if c.elapsed >= c.nextLaneAt {
		c.lane = c.rollLane()
		c.nextLaneAt = c.elapsed + c.tuning.HoldMin + c.src.Next()*c.tuning.HoldJitter
	}

	switch {
	case c.units < c.tuning.EliminationBelow:
		c.units = 0
		c.outcome = OutcomeEliminated
	case c.progress >= 1:
		c.outcome = OutcomeEscaped
	case c.chaser >= c.progress:
		c.outcome = OutcomeCaught
	case c.nextCheckpoint < len(c.tuning.Checkpoints) && c.progress >= c.tuning.Checkpoints[c.nextCheckpoint]:
		c.pending = c.nextCheckpoint
	}

	tick := c.snapshot(true)
	tick.Dt = dt
	tick.Steering = steering
	tick.Alignment = alignment
	tick.Rate = rate
	tick.Lost = lost
	c.record(tick)
	return tick
}

// Pending returns the checkpoint index waiting for a gate choice
func (c *Chase) Pending() (int, bool) {
	return c.pending, c.pending >= 0
}

// ResolveCheckpoint installs the army produced by the pending checkpoint gate and
// resumes the chase. It reports false when no checkpoint is pending.
func (c *Chase) ResolveCheckpoint(units int) bool {
	if c.pending < 0 || c.outcome != OutcomeNone {
		return false
	}
	before := c.Units()
	c.units = float64(clampInt(units, 0, math.MaxInt32))
	c.checkpoints = append(c.checkpoints, CheckpointRecord{
		Index:     c.pending,
		Threshold: c.tuning.Checkpoints[c.pending],
		Elapsed:   c.elapsed,
		Before:    before,
		After:     c.Units(),
	})
	c.nextCheckpoint = c.pending + 1
	c.pending = -1
	if c.units < c.tuning.EliminationBelow {
		c.units = 0
		c.outcome = OutcomeEliminated
	}
	return true
}

// Units is the current army rounded half up
func (c *Chase) Units() int {
	return int(math.Floor(c.units + 0.5))
}

// Outcome returns the terminal outcome, or OutcomeNone while running
func (c *Chase) Outcome() Outcome {
	return c.outcome
}

// Done reports whether a terminal outcome was reached
func (c *Chase) Done() bool {
	return c.outcome != OutcomeNone
}

// Lane returns the current target lane
func (c *Chase) Lane() float64 {
	return c.lane
}

// Snapshot returns the current state without advancing
func (c *Chase) Snapshot() Tick {
	return c.snapshot(false)
}

// Result summarizes the chase so far
func (c *Chase) Result() ChaseResult {
	return ChaseResult{
		Outcome:     c.outcome,
		Elapsed:     c.elapsed,
		Duration:    c.duration,
		Progress:    c.progress,
		StartUnits:  c.startUnits,
		Remaining:   c.Units(),
		Casualties:  max(0, c.startUnits-c.Units()),
		Checkpoints: append([]CheckpointRecord(nil), c.checkpoints...),
		Ticks:       append([]Tick(nil), c.ticks...),
		Truncated:   c.truncated,
	}
}

func (c *Chase) snapshot(applied bool) Tick {
	return Tick{
		Applied:    applied,
		Elapsed:    c.elapsed,
		Duration:   c.duration,
		Progress:   c.progress,
		Chaser:     c.chaser,
		Gap:        c.progress - c.chaser,
		Lane:       c.lane,
		Units:      c.Units(),
		Outcome:    c.outcome,
		Checkpoint: c.pending,
	}
}

func (c *Chase) record(t Tick) {
	if c.tuning.TickLogCap > 0 && len(c.ticks) >= c.tuning.TickLogCap {
		c.truncated = true
		return
	}
	c.ticks = append(c.ticks, t)
}

func (c *Chase) rollLane() float64 {
	return clampFloat(c.tuning.LaneMin+c.src.Next()*c.tuning.LaneSpan, 0, 1)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func clampFloat(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}

func clampInt(v, lo, hi int) int {
	return min(hi, max(lo, v))
}
