package run

import (
	"math"
	"strconv"

	"github.com/MJE43/math-marauders-go/internal/combat"
	"github.com/MJE43/math-marauders-go/internal/config"
	"github.com/MJE43/math-marauders-go/internal/engine"
	"github.com/MJE43/math-marauders-go/internal/gates"
	"github.com/MJE43/math-marauders-go/internal/scoring"
)

// Option configures an Engine
type Option func(*Engine)

// WithRecorder sets the telemetry sink
func WithRecorder(r Recorder) Option {
	return func(e *Engine) {
		if r != nil {
			e.recorder = r
		}
	}
}

// WithStartingArmy overrides the tuning's starting army
func WithStartingArmy(n int) Option {
	return func(e *Engine) {
		e.startingArmy = max(0, n)
	}
}

// Engine runs one wave at a time: forward gates each followed by a skirmish, then the
// reverse chase with its checkpoint gates. Every call returns a snapshot; invalid input
// leaves the state untouched and reports Applied=false. Not safe for concurrent use.
type Engine struct {
	tuning       config.Tuning
	generator    *gates.Generator
	skirmish     *combat.SkirmishSimulator
	calc         *scoring.Calculator
	recorder     Recorder
	startingArmy int

	seed       string
	normalized uint32
	phase      Phase
	wave       gates.Wave
	army       int
	travel     float64
	next       int
	history    []GateRecord

	combatSrc *engine.Source
	chaseSrc  *engine.Source
	chase     *combat.Chase

	optimalChoices int
	volleys        int
	defeated       int
	final          *scoring.Result
}

// New creates an idle engine
func New(t config.Tuning, opts ...Option) *Engine {
	e := &Engine{
		tuning:       t,
		generator:    gates.NewGenerator(t),
		skirmish:     combat.NewSkirmishSimulator(t.Skirmish),
		calc:         scoring.NewCalculator(t.Scoring),
		recorder:     nopRecorder{},
		startingArmy: t.StartingArmy,
		phase:        PhaseIdle,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// StartRun discards any current run and starts wave 1 of seed
func (e *Engine) StartRun(seed string) RunState {
	return e.StartWave(seed, 1)
}

// StartWave discards any current run and starts the given wave of seed
func (e *Engine) StartWave(seed string, wave int) RunState {
	return e.start(seed, engine.NormalizeSeed(seed), wave)
}

// StartWaveSeed starts a wave from an already normalized numeric seed. Callers holding
// an integer seed pass it through engine.NormalizeSeedInt.
func (e *Engine) StartWaveSeed(seed uint32, wave int) RunState {
	if seed == 0 {
		seed = engine.NormalizeSeedInt(0)
	}
	return e.start(strconv.FormatUint(uint64(seed), 10), seed, wave)
}

func (e *Engine) start(label string, normalized uint32, wave int) RunState {
	e.seed = label
	e.normalized = normalized
	cfg := e.generator.Config(e.normalized, wave, e.startingArmy)
	e.wave = e.generator.Generate(cfg)

	base := engine.NewSource(engine.WaveSeed(e.normalized, cfg.Number))
	e.combatSrc = base.Fork("combat")
	e.chaseSrc = base.Fork("chase")
	e.chase = nil

	e.phase = PhaseForward
	e.army = cfg.StartingArmy
	e.travel = 0
	e.next = 0
	e.history = nil
	e.optimalChoices = 0
	e.volleys = 0
	e.defeated = 0
	e.final = nil

	e.emit(EventWaveStart, map[string]any{
		"gates":   cfg.GateCount,
		"retreat": cfg.RetreatCount,
		"tier":    cfg.Tier,
		"optimal": e.wave.Optimal.Denominator(),
	})
	if len(e.wave.Forward) == 0 {
		e.beginChase()
	}
	return e.State()
}

// Restart replays the current seed and wave from the beginning
func (e *Engine) Restart() RunState {
	if e.phase == PhaseIdle {
		return e.State()
	}
	return e.start(e.seed, e.normalized, e.wave.Config.Number)
}

// Phase returns the current phase
func (e *Engine) Phase() Phase {
	return e.phase
}

// Army returns the current unit count
func (e *Engine) Army() int {
	return e.army
}

// NextGate returns the gate the engine expects next, if any
func (e *Engine) NextGate() (gates.Gate, bool) {
	switch e.phase {
	case PhaseForward:
		if e.next < len(e.wave.Forward) {
			return e.wave.Forward[e.next], true
		}
	case PhaseReverse:
		if idx, ok := e.chase.Pending(); ok && idx < len(e.wave.Retreat) {
			return e.wave.Retreat[idx], true
		}
	}
	return gates.Gate{}, false
}

// ResolveGate applies option choice of the named gate. Forward gates must be taken in
// order and are followed by a skirmish; retreat gates are accepted only while the chase
// waits at the matching checkpoint.
func (e *Engine) ResolveGate(gateID string, choice int) GateResolution {
	if reason := e.rejectInput(); reason != "" {
		return e.ignored(reason)
	}
	gate, ok := e.wave.Gate(gateID)
	if !ok {
		return e.ignored(ReasonUnknownGate)
	}
	if gate.Direction == gates.Retreat {
		return e.resolveRetreat(gate, choice)
	}
	return e.resolveForward(gate, choice)
}

func (e *Engine) resolveForward(gate gates.Gate, choice int) GateResolution {
	if e.phase != PhaseForward {
		return e.ignored(ReasonWrongPhase)
	}
	if gate.Index != e.next {
		return e.ignored(ReasonOutOfOrder)
	}
	res, ok := gates.Resolve(gate, choice, e.army)
	if !ok {
		return e.ignored(ReasonBadChoice)
	}

	cp, _ := e.wave.Optimal.Checkpoint(gate.ID)
	e.army = res.Result
	e.travel += e.tuning.Gates.TravelSeconds
	if res.IsOptimal {
		e.optimalChoices++
	}
	e.emit(EventGateResolved, map[string]any{
		"gate":    gate.ID,
		"choice":  choice,
		"label":   res.Label,
		"before":  res.Before,
		"result":  res.Result,
		"optimal": res.IsOptimal,
	})

	e.phase = PhaseSkirmish
	sk := e.skirmish.Resolve(e.army, cp.Enemy, e.combatSrc)
	e.army = sk.PlayerRemaining
	e.travel += sk.Duration
	e.volleys += len(sk.Volleys)
	e.defeated += sk.Defeated()
	e.emit(EventSkirmish, map[string]any{
		"gate":       gate.ID,
		"enemy":      cp.Enemy,
		"survivors":  sk.PlayerRemaining,
		"casualties": sk.Casualties(),
		"volleys":    len(sk.Volleys),
		"mode":       sk.Mode,
	})

	rec := GateRecord{Resolution: res, Enemy: cp.Enemy, Skirmish: &sk, Army: e.army, Elapsed: e.elapsed()}
	e.history = append(e.history, rec)
	e.next++

	switch {
	case e.army <= 0:
		e.fail("skirmish")
	case e.next >= len(e.wave.Forward):
		e.beginChase()
	default:
		e.phase = PhaseForward
	}
	return e.applied(rec)
}

func (e *Engine) resolveRetreat(gate gates.Gate, choice int) GateResolution {
	if e.phase != PhaseReverse {
		return e.ignored(ReasonWrongPhase)
	}
	idx, pending := e.chase.Pending()
	if !pending {
		return e.ignored(ReasonNoCheckpoint)
	}
	if gate.Index != idx {
		return e.ignored(ReasonOutOfOrder)
	}
	before := e.chase.Units()
	res, ok := gates.Resolve(gate, choice, before)
	if !ok {
		return e.ignored(ReasonBadChoice)
	}
	e.chase.ResolveCheckpoint(res.Result)
	e.army = e.chase.Units()
	if res.IsOptimal {
		e.optimalChoices++
	}

	cp := combat.CheckpointRecord{
		Index:     idx,
		Threshold: e.tuning.Chase.Checkpoints[idx],
		Elapsed:   e.chase.Snapshot().Elapsed,
		Before:    before,
		After:     e.army,
	}
	rec := GateRecord{Resolution: res, Checkpoint: &cp, Army: e.army, Elapsed: e.elapsed()}
	e.history = append(e.history, rec)
	e.emit(EventRetreatGate, map[string]any{
		"gate":    gate.ID,
		"choice":  choice,
		"label":   res.Label,
		"before":  before,
		"result":  e.army,
		"optimal": res.IsOptimal,
	})

	if e.chase.Done() {
		e.finishChase()
	}
	return e.applied(rec)
}

// AdvanceChase steps the reverse chase by dt seconds with steering in [0, 1]
func (e *Engine) AdvanceChase(dt, steering float64) ChaseTick {
	if reason := e.rejectInput(); reason != "" {
		return e.chaseTick(e.chaseSnapshot(), reason)
	}
	if e.phase != PhaseReverse {
		return e.chaseTick(e.chaseSnapshot(), ReasonWrongPhase)
	}
	if _, pending := e.chase.Pending(); pending {
		return e.chaseTick(e.chase.Snapshot(), ReasonCheckpoint)
	}
	if math.IsNaN(dt) || math.IsInf(dt, 0) || math.IsNaN(steering) || math.IsInf(steering, 0) {
		return e.chaseTick(e.chase.Snapshot(), ReasonInvalidChaseArg)
	}

	tick := e.chase.Advance(dt, steering)
	e.army = tick.Units
	if e.chase.Done() {
		e.finishChase()
	}
	return e.chaseTick(tick, "")
}

// Score returns the final score once the run is over, or a provisional score before
func (e *Engine) Score() ScoreResult {
	out := ScoreResult{Phase: e.phase, Wave: e.wave.Config.Number, Seed: e.seed}
	if e.final != nil {
		out.Result = *e.final
		out.Final = true
		return out
	}
	out.Result = e.calc.Calculate(e.scoreInput())
	return out
}

// State returns a snapshot of the run
func (e *Engine) State() RunState {
	st := RunState{
		Seed:           e.seed,
		NormalizedSeed: e.normalized,
		Wave:           e.wave.Config.Number,
		Tier:           e.wave.Config.Tier,
		Phase:          e.phase,
		Army:           e.army,
		StartingArmy:   e.wave.Config.StartingArmy,
		Elapsed:        e.elapsed(),
		Forward:        make([]gates.GateView, len(e.wave.Forward)),
		Retreat:        make([]gates.GateView, len(e.wave.Retreat)),
		Optimal:        clonePath(e.wave.Optimal),
		History:        make([]GateRecord, len(e.history)),
		Score:          e.Score().Result,
	}
	for i, g := range e.wave.Forward {
		st.Forward[i] = g.View()
	}
	for i, g := range e.wave.Retreat {
		st.Retreat[i] = g.View()
	}
	for i, rec := range e.history {
		st.History[i] = cloneRecord(rec)
	}
	if g, ok := e.NextGate(); ok {
		st.NextGate = g.ID
	}
	if e.chase != nil {
		tick := e.chase.Snapshot()
		st.Chase = &tick
		if e.chase.Done() {
			res := e.chase.Result()
			st.ChaseResult = &res
		}
	}
	return st
}

func (e *Engine) rejectInput() string {
	switch {
	case e.phase == PhaseIdle:
		return ReasonNoRun
	case e.phase.Terminal():
		return ReasonTerminal
	}
	return ""
}

func (e *Engine) beginChase() {
	e.phase = PhaseReverse
	e.chase = combat.NewChase(e.tuning.Chase, e.army, e.chaseSrc)
	if e.chase.Done() {
		e.finishChase()
	}
}

func (e *Engine) finishChase() {
	res := e.chase.Result()
	e.army = res.Remaining
	if res.Outcome == combat.OutcomeEscaped {
		e.complete()
		return
	}
	e.fail(string(res.Outcome))
}

func (e *Engine) complete() {
	e.phase = PhaseComplete
	final := e.calc.Calculate(e.scoreInput())
	e.final = &final
	e.emit(EventWaveComplete, map[string]any{
		"score":   final.Total,
		"stars":   final.Stars,
		"optimal": final.Optimal,
	})
}

func (e *Engine) fail(cause string) {
	e.phase = PhaseFailed
	final := e.calc.Calculate(e.scoreInput())
	e.final = &final
	e.emit(EventWaveFailed, map[string]any{
		"cause": cause,
		"score": final.Total,
	})
}

func (e *Engine) scoreInput() scoring.Input {
	return scoring.Input{
		InitialArmy:     e.wave.Config.StartingArmy,
		Remaining:       e.army,
		Optimal:         e.wave.Optimal.Denominator(),
		Elapsed:         e.elapsed(),
		GatesTaken:      len(e.history),
		OptimalChoices:  e.optimalChoices,
		Volleys:         e.volleys,
		EnemiesDefeated: e.defeated,
		Escaped:         e.chase != nil && e.chase.Outcome() == combat.OutcomeEscaped,
	}
}

// elapsed is simulated time: gate travel, skirmishes and the chase clock
func (e *Engine) elapsed() float64 {
	if e.chase == nil {
		return e.travel
	}
	return e.travel + e.chase.Snapshot().Elapsed
}

func (e *Engine) chaseSnapshot() combat.Tick {
	if e.chase == nil {
		return combat.Tick{Checkpoint: -1, Units: e.army}
	}
	return e.chase.Snapshot()
}

func (e *Engine) chaseTick(t combat.Tick, reason string) ChaseTick {
	out := ChaseTick{Tick: t, Reason: reason, Phase: e.phase, Army: e.army}
	if reason != "" {
		out.Applied = false
	}
	if g, ok := e.NextGate(); ok && g.Direction == gates.Retreat {
		out.PendingGate = g.ID
	}
	return out
}

func (e *Engine) ignored(reason string) GateResolution {
	return GateResolution{Reason: reason, State: e.State()}
}

func (e *Engine) applied(rec GateRecord) GateResolution {
	rec = cloneRecord(rec)
	return GateResolution{
		Applied:    true,
		Resolution: rec.Resolution,
		Enemy:      rec.Enemy,
		Skirmish:   rec.Skirmish,
		Checkpoint: rec.Checkpoint,
		State:      e.State(),
	}
}

func (e *Engine) emit(name string, data map[string]any) {
	e.recorder.Record(Event{
		Name:    name,
		Seed:    e.seed,
		Wave:    e.wave.Config.Number,
		Phase:   e.phase,
		Army:    e.army,
		Elapsed: e.elapsed(),
		Data:    data,
	})
}
