package run

import (
	"github.com/MJE43/math-marauders-go/internal/combat"
	"github.com/MJE43/math-marauders-go/internal/gates"
	"github.com/MJE43/math-marauders-go/internal/scoring"
)

// Phase is the stage a run is in
type Phase string

const (
	PhaseIdle     Phase = "idle"
	PhaseForward  Phase = "forward"
	PhaseSkirmish Phase = "skirmish"
	PhaseReverse  Phase = "reverse"
	PhaseComplete Phase = "complete"
	PhaseFailed   Phase = "failed"
)

// Terminal reports whether no further input is accepted
func (p Phase) Terminal() bool {
	return p == PhaseComplete || p == PhaseFailed
}

// Reasons a call was ignored
const (
	ReasonNoRun           = "no run in progress"
	ReasonTerminal        = "run already finished"
	ReasonUnknownGate     = "unknown gate"
	ReasonOutOfOrder      = "gate is not next"
	ReasonBadChoice       = "choice out of range"
	ReasonWrongPhase      = "not accepted in this phase"
	ReasonCheckpoint      = "checkpoint gate pending"
	ReasonNoCheckpoint    = "no checkpoint pending"
	ReasonInvalidChaseArg = "non-finite chase input"
)

// GateRecord is one entry of the run history
type GateRecord struct {
	Resolution gates.Resolution         `json:"resolution"`
	Enemy      int                      `json:"enemy"`
	Skirmish   *combat.SkirmishResult   `json:"skirmish,omitempty"`
	Checkpoint *combat.CheckpointRecord `json:"checkpoint,omitempty"`
	Army       int                      `json:"army"`
	Elapsed    float64                  `json:"elapsed"`
}

// RunState is a snapshot of a run. It shares nothing mutable with the engine.
type RunState struct {
	Seed           string              `json:"seed"`
	NormalizedSeed uint32              `json:"normalized_seed"`
	Wave           int                 `json:"wave"`
	Tier           string              `json:"tier"`
	Phase          Phase               `json:"phase"`
	Army           int                 `json:"army"`
	StartingArmy   int                 `json:"starting_army"`
	Elapsed        float64             `json:"elapsed"`
	NextGate       string              `json:"next_gate,omitempty"`
	Forward        []gates.GateView    `json:"forward"`
	Retreat        []gates.GateView    `json:"retreat"`
	Optimal        gates.Path          `json:"optimal"`
	History        []GateRecord        `json:"history"`
	Chase          *combat.Tick        `json:"chase,omitempty"`
	ChaseResult    *combat.ChaseResult `json:"chase_result,omitempty"`
	Score          scoring.Result      `json:"score"`
}

// GateResolution is returned by ResolveGate
type GateResolution struct {
	Applied    bool                     `json:"applied"`
	Reason     string                   `json:"reason,omitempty"`
	Resolution gates.Resolution         `json:"resolution"`
	Enemy      int                      `json:"enemy"`
	Skirmish   *combat.SkirmishResult   `json:"skirmish,omitempty"`
	Checkpoint *combat.CheckpointRecord `json:"checkpoint,omitempty"`
	State      RunState                 `json:"state"`
}

// ChaseTick is returned by AdvanceChase
type ChaseTick struct {
	combat.Tick
	Reason      string `json:"reason,omitempty"`
	Phase       Phase  `json:"phase"`
	Army        int    `json:"army"`
	PendingGate string `json:"pending_gate,omitempty"`
}

// ScoreResult is the score of a run. Until the run reaches a terminal phase Final is
// false and the numbers are provisional.
type ScoreResult struct {
	scoring.Result
	Final bool   `json:"final"`
	Phase Phase  `json:"phase"`
	Wave  int    `json:"wave"`
	Seed  string `json:"seed"`
}

func clonePath(p gates.Path) gates.Path {
	return gates.Path{
		Forward:      cloneCheckpoints(p.Forward),
		Retreat:      cloneCheckpoints(p.Retreat),
		ForwardFinal: p.ForwardFinal,
		RetreatFinal: p.RetreatFinal,
	}
}

func cloneCheckpoints(cps []gates.Checkpoint) []gates.Checkpoint {
	out := make([]gates.Checkpoint, len(cps))
	for i, cp := range cps {
		cp.Outcomes = append([]int(nil), cp.Outcomes...)
		out[i] = cp
	}
	return out
}

func cloneRecord(r GateRecord) GateRecord {
	r.Resolution.Outcomes = append([]int(nil), r.Resolution.Outcomes...)
	r.Resolution.Alternatives = append([]int(nil), r.Resolution.Alternatives...)
	if r.Skirmish != nil {
		s := *r.Skirmish
		s.Volleys = append([]combat.Volley(nil), s.Volleys...)
		r.Skirmish = &s
	}
	if r.Checkpoint != nil {
		cp := *r.Checkpoint
		r.Checkpoint = &cp
	}
	return r
}
