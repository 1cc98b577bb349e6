package autopilot

import (
	"context"
	"errors"
	"fmt"

	"github.com/MJE43/math-marauders-go/internal/run"
)

var ErrStepLimit = errors.New("run did not finish within the step limit")

const (
	DefaultTick = 0.1
	maxSteps    = 100000
)

// Result is a finished headless run
type Result struct {
	Strategy string          `json:"strategy"`
	State    run.RunState    `json:"state"`
	Score    run.ScoreResult `json:"score"`
	Choices  []int           `json:"choices"`
	Ticks    int             `json:"ticks"`
}

// Play drives e from its current state to a terminal phase. The engine must already
// have a run started. dt is the chase step in seconds; non-positive uses DefaultTick.
func Play(ctx context.Context, e *run.Engine, s Strategy, dt float64) (Result, error) {
	if dt <= 0 {
		dt = DefaultTick
	}
	res := Result{Strategy: s.Name()}
	if e.Phase() == run.PhaseIdle {
		return res, fmt.Errorf("play: %s", run.ReasonNoRun)
	}

	var last run.ChaseTick
	haveTick := false
	for step := 0; !e.Phase().Terminal(); step++ {
		if step >= maxSteps {
			return res, ErrStepLimit
		}
		if step%256 == 0 {
			if err := ctx.Err(); err != nil {
				return res, err
			}
		}

		if g, ok := e.NextGate(); ok {
			choice, err := s.Choose(g, e.Army())
			if err != nil {
				return res, fmt.Errorf("gate %s: %w", g.ID, err)
			}
			out := e.ResolveGate(g.ID, choice)
			if !out.Applied {
				return res, fmt.Errorf("gate %s rejected: %s", g.ID, out.Reason)
			}
			res.Choices = append(res.Choices, choice)
			continue
		}

		if !haveTick {
			if st := e.State(); st.Chase != nil {
				last = run.ChaseTick{Tick: *st.Chase, Phase: st.Phase, Army: st.Army}
			}
			haveTick = true
		}
		steer, err := s.Steer(last)
		if err != nil {
			return res, fmt.Errorf("chase: %w", err)
		}
		last = e.AdvanceChase(dt, steer)
		if !last.Applied {
			return res, fmt.Errorf("chase rejected: %s", last.Reason)
		}
		res.Ticks++
	}

	res.State = e.State()
	res.Score = e.Score()
	return res, nil
}

// PlayWave starts seed/wave on e and plays it to the end
func PlayWave(ctx context.Context, e *run.Engine, s Strategy, seed string, wave int, dt float64) (Result, error) {
	e.StartWave(seed, wave)
	return Play(ctx, e, s, dt)
}
