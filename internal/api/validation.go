package api

import (
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/MJE43/math-marauders-go/internal/autopilot"
	"github.com/MJE43/math-marauders-go/internal/scan"
)

const (
	maxSeedLength   = 256
	maxWave         = 10_000
	maxScriptLength = 64 << 10
	maxScanLimit    = 100_000
	maxTimeoutMs    = 300_000
)

// fieldError names the request field that failed validation
type fieldError struct {
	field string
	msg   string
}

func (e fieldError) Error() string { return e.msg }

func invalid(field, format string, args ...any) error {
	return fieldError{field: field, msg: fmt.Sprintf(format, args...)}
}

// ValidateWaveRequest checks a seed/wave pair and defaults wave to 1
func ValidateWaveRequest(req *WaveRequest) error {
	return validateSeedWave(req.Seed, &req.Wave)
}

func validateSeedWave(seed string, wave *int) error {
	if seed == "" {
		return invalid("seed", "seed is required")
	}
	if len(seed) > maxSeedLength || !utf8.ValidString(seed) {
		return invalid("seed", "seed must be valid UTF-8 of at most %d bytes", maxSeedLength)
	}
	if *wave == 0 {
		*wave = 1
	}
	if *wave < 1 || *wave > maxWave {
		return invalid("wave", "wave must be between 1 and %d", maxWave)
	}
	return nil
}

// ValidateGateRequest checks a gate choice
func ValidateGateRequest(req *GateRequest) error {
	if req.GateID == "" {
		return invalid("gate_id", "gate_id is required")
	}
	if req.Choice == nil {
		return invalid("choice", "choice is required")
	}
	return nil
}

// ValidateChaseRequest checks chase input. Range errors inside the engine are
// reported as Applied=false; only values JSON can carry but the engine never
// accepts are rejected here.
func ValidateChaseRequest(req *ChaseRequest) error {
	if math.IsNaN(req.Dt) || math.IsInf(req.Dt, 0) || req.Dt < 0 {
		return invalid("dt", "dt must be a finite non-negative number")
	}
	if req.Dt > 10 {
		return invalid("dt", "dt must be at most 10 seconds")
	}
	return nil
}

// ValidateSimulateRequest checks a simulation request
func ValidateSimulateRequest(req *SimulateRequest) error {
	if err := validateSeedWave(req.Seed, &req.Wave); err != nil {
		return err
	}
	if math.IsNaN(req.Dt) || req.Dt < 0 || req.Dt > 1 {
		return invalid("dt", "dt must be between 0 and 1")
	}
	if req.Script != "" {
		if req.Strategy != "" && req.Strategy != "script" {
			return invalid("strategy", "strategy and script are mutually exclusive")
		}
		if len(req.Script) > maxScriptLength {
			return invalid("script", "script too large (max %d bytes)", maxScriptLength)
		}
		return nil
	}
	if _, err := autopilot.Lookup(req.Strategy); err != nil {
		return invalid("strategy", "%v", err)
	}
	return nil
}

// ValidateScanRequest checks request fields the scanner does not
func ValidateScanRequest(req *scan.Request) error {
	if req.Wave == 0 {
		req.Wave = 1
	}
	if req.TargetOp == "" {
		return invalid("target_op", "target_op is required")
	}
	if req.TargetOp == scan.OpBetween || req.TargetOp == scan.OpOutside {
		if req.TargetVal > req.TargetVal2 {
			return invalid("target_val", "target_val must be <= target_val2 for '%s'", req.TargetOp)
		}
	}
	if req.Limit < 0 || req.Limit > maxScanLimit {
		return invalid("limit", "limit must be between 0 and %d", maxScanLimit)
	}
	if req.TimeoutMs < 0 || req.TimeoutMs > maxTimeoutMs {
		return invalid("timeout_ms", "timeout_ms must be between 0 and %d", maxTimeoutMs)
	}
	if req.Tolerance < 0 {
		return invalid("tolerance", "tolerance must be >= 0")
	}
	if err := scan.Validate(*req); err != nil {
		return invalid("request", "%v", err)
	}
	return nil
}
