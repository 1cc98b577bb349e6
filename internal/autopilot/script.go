package autopilot

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/dop251/goja"

	"github.com/MJE43/math-marauders-go/internal/gates"
	"github.com/MJE43/math-marauders-go/internal/run"
)

var ErrNoChoose = errors.New("script must define choose(gate)")

const (
	scriptInitTimeout = 2 * time.Second
	scriptCallTimeout = 250 * time.Millisecond
)

// Script is a strategy written in JavaScript. The source must define choose(gate),
// returning an option index, and may define steer(tick), returning a value in [0, 1];
// without steer the chase follows the target lane. Not safe for concurrent use.
//
//	choose = function(gate) {
//	  // gate.options[i] = {label, kind, tone, outcome}
//	  return gate.options[0].outcome >= gate.options[1].outcome ? 0 : 1
//	}
type Script struct {
	runtime *goja.Runtime
	choose  goja.Callable
	steer   goja.Callable
	logs    []string
}

// NewScript compiles source in a sandboxed runtime
func NewScript(source string) (*Script, error) {
	s := &Script{runtime: goja.New()}
	s.injectGlobals()

	err := s.runWithTimeout(scriptInitTimeout, func() error {
		if _, err := s.runtime.RunString(source); err != nil {
			return fmt.Errorf("script execution error: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	choose, ok := s.function("choose")
	if !ok {
		return nil, ErrNoChoose
	}
	s.choose = choose
	s.steer, _ = s.function("steer")
	return s, nil
}

func (s *Script) injectGlobals() {
	s.runtime.Set("log", func(call goja.FunctionCall) goja.Value {
		if len(s.logs) < 200 {
			msg := ""
			for i, arg := range call.Arguments {
				if i > 0 {
					msg += " "
				}
				msg += arg.String()
			}
			s.logs = append(s.logs, msg)
		}
		return goja.Undefined()
	})
	console := s.runtime.NewObject()
	console.Set("log", s.runtime.Get("log"))
	s.runtime.Set("console", console)

	// Block dangerous globals.
	s.runtime.Set("require", goja.Undefined())
	s.runtime.Set("fetch", goja.Undefined())
	s.runtime.Set("XMLHttpRequest", goja.Undefined())
	s.runtime.Set("eval", goja.Undefined())
	s.runtime.Set("Function", goja.Undefined())
}

func (s *Script) function(name string) (goja.Callable, bool) {
	v := s.runtime.Get(name)
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil, false
	}
	return goja.AssertFunction(v)
}

func (s *Script) Name() string { return "script" }

// Logs returns what the script printed with log() or console.log()
func (s *Script) Logs() []string {
	return append([]string(nil), s.logs...)
}

// Choose calls choose(gate). A result outside the option range is an error.
func (s *Script) Choose(g gates.Gate, army int) (int, error) {
	outcomes := gates.Outcomes(g.Options, army)
	options := make([]any, len(g.Options))
	for i, op := range g.Options {
		options[i] = map[string]any{
			"label":   op.Label(),
			"kind":    string(op.Kind()),
			"tone":    string(op.Tone()),
			"outcome": outcomes[i],
		}
	}
	arg := map[string]any{
		"id":        g.ID,
		"wave":      g.Wave,
		"index":     g.Index,
		"direction": string(g.Direction),
		"army":      army,
		"options":   options,
	}

	var choice int64
	err := s.runWithTimeout(scriptCallTimeout, func() error {
		v, err := s.choose(goja.Undefined(), s.runtime.ToValue(arg))
		if err != nil {
			return fmt.Errorf("choose() error: %w", err)
		}
		choice = v.ToInteger()
		return nil
	})
	if err != nil {
		return 0, err
	}
	if choice < 0 || choice >= int64(len(g.Options)) {
		return 0, fmt.Errorf("choose() returned %d for %d options", choice, len(g.Options))
	}
	return int(choice), nil
}

// Steer calls steer(tick), or follows the lane when the script has no steer function
func (s *Script) Steer(t run.ChaseTick) (float64, error) {
	if s.steer == nil {
		return t.Lane, nil
	}
	arg := map[string]any{
		"lane":     t.Lane,
		"progress": t.Progress,
		"chaser":   t.Chaser,
		"gap":      t.Gap,
		"units":    t.Units,
		"elapsed":  t.Elapsed,
		"duration": t.Duration,
	}

	var out float64
	err := s.runWithTimeout(scriptCallTimeout, func() error {
		v, err := s.steer(goja.Undefined(), s.runtime.ToValue(arg))
		if err != nil {
			return fmt.Errorf("steer() error: %w", err)
		}
		out = v.ToFloat()
		return nil
	})
	if err != nil {
		return 0, err
	}
	if math.IsNaN(out) || math.IsInf(out, 0) {
		return 0, fmt.Errorf("steer() returned %v", out)
	}
	return out, nil
}

func (s *Script) runWithTimeout(timeout time.Duration, fn func() error) error {
	done := make(chan error, 1)
	go func() {
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(timeout):
		// Interrupt a runaway script execution.
		s.runtime.Interrupt("script execution timeout")
		select {
		case err := <-done:
			s.runtime.ClearInterrupt()
			if err != nil {
				return fmt.Errorf("script timed out: %w", err)
			}
			return fmt.Errorf("script timed out")
		case <-time.After(200 * time.Millisecond):
			return fmt.Errorf("script timed out")
		}
	}
}
