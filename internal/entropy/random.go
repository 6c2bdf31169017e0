// Package entropy provides keyed, seeded random sub-streams for deterministic
// replay, plus crypto/rand seeds for runs started without one.
//
// A sub-stream is identified by (base seed, purpose tag, indices). The same
// key always yields the same sequence, and different purpose tags never share
// state, so an encounter roll and the increment rolled after it on the same
// move are independent.
package entropy

import (
	"crypto/rand"
	"encoding/binary"
	mrand "math/rand"

	"github.com/cespare/xxhash/v2"
)

// Key derives the 64-bit seed for a sub-stream.
func Key(seed int64, purpose string, index ...int) int64 {
	d := xxhash.New()
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(seed))
	_, _ = d.Write(buf[:])
	_, _ = d.WriteString(purpose)
	for _, i := range index {
		// Separator keeps ("a", 1, 23) apart from ("a", 12, 3).
		_, _ = d.Write([]byte{0xff})
		binary.LittleEndian.PutUint64(buf[:], uint64(int64(i)))
		_, _ = d.Write(buf[:])
	}
	return int64(d.Sum64())
}

// Stream returns a generator for the keyed sub-stream.
func Stream(seed int64, purpose string, index ...int) *mrand.Rand {
	return mrand.New(mrand.NewSource(Key(seed, purpose, index...)))
}

// Float returns the first value in [0, 1) of the keyed sub-stream.
func Float(seed int64, purpose string, index ...int) float64 {
	return Stream(seed, purpose, index...).Float64()
}

// Roll returns the first value in [0, 100) of the keyed sub-stream. Compare
// it against a percentage: Roll(...) < chance succeeds with chance% odds.
func Roll(seed int64, purpose string, index ...int) float64 {
	return Float(seed, purpose, index...) * 100
}

// Range returns a value uniformly drawn from [lo, hi]. When hi <= lo it
// returns lo without consuming randomness.
func Range(r *mrand.Rand, lo, hi float64) float64 {
	if hi <= lo {
		return lo
	}
	return lo + r.Float64()*(hi-lo)
}

// Weighted picks an index from weights using r. Non-positive weights are
// never picked; returns -1 when no weight is positive.
func Weighted(r *mrand.Rand, weights []float64) int {
	total := 0.0
	for _, w := range weights {
		if w > 0 {
			total += w
		}
	}
	if total <= 0 {
		return -1
	}
	pick := r.Float64() * total
	for i, w := range weights {
		if w <= 0 {
			continue
		}
		if pick < w {
			return i
		}
		pick -= w
	}
	// Float rounding: fall back to the last positive weight.
	for i := len(weights) - 1; i >= 0; i-- {
		if weights[i] > 0 {
			return i
		}
	}
	return -1
}

// NewSeed generates a random non-zero seed using crypto/rand.
func NewSeed() int64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// This should never happen but return a fixed seed as a safe default.
		return 1
	}
	seed := int64(binary.LittleEndian.Uint64(buf[:]) >> 1)
	if seed == 0 {
		seed = 1
	}
	return seed
}
