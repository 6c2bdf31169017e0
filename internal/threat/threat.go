// Package threat defines the detection threat bands and the seeded ranges
// that tuning tables are expressed in.
package threat

import (
	"math/rand"

	"github.com/talgya/hexrun/internal/entropy"
)

// Band buckets the detection meter.
type Band uint8

const (
	BandLow Band = iota
	BandMedium
	BandHigh
)

func (b Band) String() string {
	switch b {
	case BandLow:
		return "low"
	case BandMedium:
		return "medium"
	case BandHigh:
		return "high"
	default:
		return "unknown"
	}
}

// Thresholds are the detection levels at which the band steps up.
type Thresholds struct {
	Medium float64 `mapstructure:"medium"`
	High   float64 `mapstructure:"high"`
}

// DefaultThresholds returns the stock band boundaries.
func DefaultThresholds() Thresholds {
	return Thresholds{Medium: 40, High: 70}
}

// BandFor maps a detection value to its band.
func (t Thresholds) BandFor(detection float64) Band {
	switch {
	case detection >= t.High:
		return BandHigh
	case detection >= t.Medium:
		return BandMedium
	default:
		return BandLow
	}
}

// Range is an inclusive [Min, Max] interval drawn from uniformly.
type Range struct {
	Min float64 `mapstructure:"min" json:"min"`
	Max float64 `mapstructure:"max" json:"max"`
}

// Draw returns a value from the range using r.
func (rg Range) Draw(r *rand.Rand) float64 {
	return entropy.Range(r, rg.Min, rg.Max)
}

// BandRanges holds one range per band.
type BandRanges struct {
	Low    Range `mapstructure:"low"`
	Medium Range `mapstructure:"medium"`
	High   Range `mapstructure:"high"`
}

// For returns the range for band b.
func (br BandRanges) For(b Band) Range {
	switch b {
	case BandMedium:
		return br.Medium
	case BandHigh:
		return br.High
	default:
		return br.Low
	}
}
