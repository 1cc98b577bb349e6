package engine

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"
)

// defaultSeed replaces a zero seed so the generator never starts from an all-zero state.
const defaultSeed uint32 = 0x6D2B79F5

// Source is a Mulberry32 pseudo-random generator. It yields the same sequence of
// floats in [0, 1) for the same seed and is not safe for concurrent use.
type Source struct {
	seed  uint32
	state uint32
}

// NewSource creates a Source for a numeric seed
func NewSource(seed uint32) *Source {
	if seed == 0 {
		seed = defaultSeed
	}
	return &Source{seed: seed, state: seed}
}

// NewSourceFromString creates a Source for a free-form seed string
func NewSourceFromString(seed string) *Source {
	return NewSource(NormalizeSeed(seed))
}

// Seed returns the normalized seed the source was created with
func (s *Source) Seed() uint32 {
	return s.seed
}

// Uint32 returns the next raw 32-bit output
func (s *Source) Uint32() uint32 {
	s.state += 0x6D2B79F5
	t := s.state
	t = (t ^ (t >> 15)) * (t | 1)
	t ^= t + (t^(t>>7))*(t|61)
	return t ^ (t >> 14)
}

// Next returns a float in [0, 1)
func (s *Source) Next() float64 {
	return float64(s.Uint32()) / 4294967296.0
}

// Range returns a float in [min, max)
func (s *Source) Range(min, max float64) float64 {
	if max <= min {
		return min
	}
	return min + s.Next()*(max-min)
}

// IntRange returns an integer in [min, max] (both inclusive)
func (s *Source) IntRange(min, max int) int {
	if max <= min {
		return min
	}
	span := max - min + 1
	idx := int(math.Floor(s.Next() * float64(span)))
	if idx >= span {
		idx = span - 1
	}
	return min + idx
}

// Intn returns an integer in [0, n)
func (s *Source) Intn(n int) int {
	if n <= 1 {
		return 0
	}
	return s.IntRange(0, n-1)
}

// Fork derives an independent Source for a named stream. The derived seed depends only
// on the original seed and the label, never on how many values were drawn, so the
// parent sequence is unaffected by what the child consumes.
func (s *Source) Fork(label string) *Source {
	return NewSource(DeriveSeed(s.seed, label))
}

// DeriveSeed maps (seed, label) to a new 32-bit seed with HMAC-SHA256, keyed by the
// decimal seed and reading the first four bytes of the digest big-endian.
func DeriveSeed(seed uint32, label string) uint32 {
	h := hmac.New(sha256.New, []byte(fmt.Sprintf("%d", seed)))
	h.Write([]byte(label))
	sum := h.Sum(nil)
	return binary.BigEndian.Uint32(sum[:4])
}
