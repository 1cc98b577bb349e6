package scan

import "errors"

// MaxRange bounds the number of seeds a single scan may cover
const MaxRange = 1_000_000

var (
	ErrInvalidRange  = errors.New("invalid seed range")
	ErrRangeTooLarge = errors.New("seed range too large")
	ErrInvalidWave   = errors.New("wave must be >= 1")
	ErrUnknownMetric = errors.New("unknown metric")
	ErrUnknownOp     = errors.New("unknown target op")
)
