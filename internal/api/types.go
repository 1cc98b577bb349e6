package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/MJE43/math-marauders-go/internal/autopilot"
	"github.com/MJE43/math-marauders-go/internal/engine"
	"github.com/MJE43/math-marauders-go/internal/gates"
	"github.com/MJE43/math-marauders-go/internal/run"
	"github.com/MJE43/math-marauders-go/internal/scan"
	"github.com/MJE43/math-marauders-go/internal/store"
)

// WaveRequest names a seed and wave; wave 0 means 1. The seed may be a JSON string,
// which is hashed, or a number, which is truncated to 32 bits.
type WaveRequest struct {
	Seed string `json:"seed"`
	Wave int    `json:"wave,omitempty"`

	numeric *uint32
}

var errSeedType = errors.New("seed must be a string or a number")

// UnmarshalJSON accepts a string or numeric seed and rejects unknown fields
func (req *WaveRequest) UnmarshalJSON(data []byte) error {
	var raw struct {
		Seed json.RawMessage `json:"seed"`
		Wave int             `json:"wave,omitempty"`
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	req.Wave = raw.Wave
	req.Seed, req.numeric = "", nil

	switch {
	case len(raw.Seed) == 0 || string(raw.Seed) == "null":
	case raw.Seed[0] == '"':
		return json.Unmarshal(raw.Seed, &req.Seed)
	default:
		lit := string(raw.Seed)
		var n uint32
		if i, err := strconv.ParseInt(lit, 10, 64); err == nil {
			n = engine.NormalizeSeedInt(i)
		} else if f, err := strconv.ParseFloat(lit, 64); err == nil {
			n = engine.NormalizeSeedFloat(f)
		} else {
			return errSeedType
		}
		req.Seed, req.numeric = lit, &n
	}
	return nil
}

// normalized returns the 32-bit seed the request names
func (req WaveRequest) normalized() uint32 {
	if req.numeric != nil {
		return *req.numeric
	}
	return engine.NormalizeSeed(req.Seed)
}

// start begins the requested wave on e
func (req WaveRequest) start(e *run.Engine) run.RunState {
	if req.numeric != nil {
		return e.StartWaveSeed(*req.numeric, req.Wave)
	}
	return e.StartWave(req.Seed, req.Wave)
}

// RunResponse is the state of a live run
type RunResponse struct {
	ID            string       `json:"id"`
	State         run.RunState `json:"state"`
	Persisted     bool         `json:"persisted"`
	EngineVersion string       `json:"engine_version"`
}

// GateRequest picks an option at a gate
type GateRequest struct {
	GateID string `json:"gate_id"`
	Choice *int   `json:"choice"`
}

// GateResponse wraps a gate resolution
type GateResponse struct {
	ID            string             `json:"id"`
	Resolution    run.GateResolution `json:"resolution"`
	Persisted     bool               `json:"persisted"`
	EngineVersion string             `json:"engine_version"`
}

// ChaseRequest advances the chase clock
type ChaseRequest struct {
	Dt       float64 `json:"dt"`
	Steering float64 `json:"steering"`
}

// ChaseResponse wraps a chase tick
type ChaseResponse struct {
	ID            string        `json:"id"`
	Tick          run.ChaseTick `json:"tick"`
	Persisted     bool          `json:"persisted"`
	EngineVersion string        `json:"engine_version"`
}

// ScoreResponse is the final score of a run
type ScoreResponse struct {
	ID            string          `json:"id"`
	Score         run.ScoreResult `json:"score"`
	EngineVersion string          `json:"engine_version"`
}

// PreviewResponse shows a wave's gates and optimal path without starting a run
type PreviewResponse struct {
	Seed           string           `json:"seed"`
	NormalizedSeed uint32           `json:"normalized_seed"`
	Wave           int              `json:"wave"`
	Tier           string           `json:"tier"`
	StartingArmy   int              `json:"starting_army"`
	Forward        []gates.GateView `json:"forward"`
	Retreat        []gates.GateView `json:"retreat"`
	Optimal        gates.Path       `json:"optimal"`
	EngineVersion  string           `json:"engine_version"`
}

// SimulateRequest plays a wave headlessly with a built-in strategy or a script
type SimulateRequest struct {
	Seed     string  `json:"seed"`
	Wave     int     `json:"wave,omitempty"`
	Strategy string  `json:"strategy,omitempty"`
	Script   string  `json:"script,omitempty"`
	Dt       float64 `json:"dt,omitempty"`
}

// SimulateResponse is a finished headless run
type SimulateResponse struct {
	Result        autopilot.Result `json:"result"`
	Logs          []string         `json:"logs,omitempty"`
	EngineVersion string           `json:"engine_version"`
}

// ScanResponse is the outcome of a seed scan
type ScanResponse struct {
	Hits          []scan.Hit   `json:"hits"`
	Summary       scan.Summary `json:"summary"`
	Echo          scan.Request `json:"echo"`
	EngineVersion string       `json:"engine_version"`
}

// StarsResponse maps wave number to best star rating
type StarsResponse struct {
	Stars         map[int]int `json:"stars"`
	EngineVersion string      `json:"engine_version"`
}

// RunsResponse lists stored runs
type RunsResponse struct {
	Runs          []store.RunRecord `json:"runs"`
	HighScore     *store.RunRecord  `json:"high_score,omitempty"`
	EngineVersion string            `json:"engine_version"`
}

// StoredRunResponse is one persisted run
type StoredRunResponse struct {
	Run           store.RunRecord `json:"run"`
	EngineVersion string          `json:"engine_version"`
}
