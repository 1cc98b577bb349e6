package engine

import "math"

// waveSeedStride spaces per-wave seeds so consecutive waves never share a stream.
const waveSeedStride = 97

// NormalizeSeed hashes a seed string with the 31-multiplier string hash over UTF-16
// code units (int32 wraparound), taking the absolute value. An empty or zero-hash
// string maps to the default seed.
func NormalizeSeed(seed string) uint32 {
	var hash int32
	for _, unit := range utf16Units(seed) {
		hash = (hash << 5) - hash + int32(unit)
	}
	v := int64(hash)
	if v < 0 {
		v = -v
	}
	if v == 0 {
		return defaultSeed
	}
	return uint32(v)
}

// NormalizeSeedInt truncates a numeric seed to 32 bits. Fractions and negative values
// follow unsigned 32-bit wraparound of the integer part.
func NormalizeSeedInt(seed int64) uint32 {
	if seed == 0 {
		return defaultSeed
	}
	return uint32(seed)
}

// NormalizeSeedFloat truncates a float seed toward zero and wraps it modulo 2^32
// before normalizing. Non-finite values map to the default seed.
func NormalizeSeedFloat(seed float64) uint32 {
	if math.IsNaN(seed) || math.IsInf(seed, 0) {
		return defaultSeed
	}
	v := math.Mod(math.Trunc(seed), 1<<32)
	if v < 0 {
		v += 1 << 32
	}
	return NormalizeSeedInt(int64(v))
}

// WaveSeed derives the generation seed for one wave of a run.
func WaveSeed(seed uint32, wave int) uint32 {
	if wave < 1 {
		wave = 1
	}
	derived := seed + uint32(wave)*waveSeedStride
	if derived == 0 {
		return defaultSeed
	}
	return derived
}

func utf16Units(s string) []uint16 {
	units := make([]uint16, 0, len(s))
	for _, r := range s {
		switch {
		case r < 0x10000:
			units = append(units, uint16(r))
		default:
			r -= 0x10000
			units = append(units, uint16(0xD800+(r>>10)), uint16(0xDC00+(r&0x3FF)))
		}
	}
	return units
}
