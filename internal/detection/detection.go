// Package detection tracks the global 0-100 detection meter and prices each
// hex in detection cost. Reaching the cap fails the run.
package detection

import (
	"log/slog"
	"math"

	"github.com/talgya/hexrun/internal/run"
	"github.com/talgya/hexrun/internal/threat"
	"github.com/talgya/hexrun/internal/world"
)

// FailureThreshold is the detection level that ends a run.
const FailureThreshold = run.MaxMeter

// FallbackHexCost is charged for hexes whose computed cost is malformed.
const FallbackHexCost = 1.0

// Config prices hexes. Cost grows toward the core:
//
//	BaseHexCost × Zone × Kind × (1 + CoreGradient·(1 − d/R))
type Config struct {
	BaseHexCost    float64           `mapstructure:"base_hex_cost"`
	ZoneMultiplier world.ZoneTable   `mapstructure:"zone_multiplier"`
	GateMultiplier float64           `mapstructure:"gate_multiplier"`
	POIMultiplier  float64           `mapstructure:"poi_multiplier"`
	CoreGradient   float64           `mapstructure:"core_gradient"`
	Thresholds     threat.Thresholds `mapstructure:"thresholds"`
}

// DefaultConfig returns the stock detection pricing.
func DefaultConfig() Config {
	return Config{
		BaseHexCost:    2,
		ZoneMultiplier: world.ZoneTable{Perimeter: 1, Mid: 1.5, Core: 2},
		GateMultiplier: 0.5,
		POIMultiplier:  1.25,
		CoreGradient:   0.5,
		Thresholds:     threat.DefaultThresholds(),
	}
}

// HexCost returns the detection cost of entering hex on a map of the given
// radius. Never NaN, infinite or non-positive.
func (c Config) HexCost(hex *world.Hex, radius int) float64 {
	if hex == nil {
		return FallbackHexCost
	}
	kind := 1.0
	switch hex.Kind {
	case world.KindGate:
		kind = c.GateMultiplier
	case world.KindPOI:
		kind = c.POIMultiplier
	}
	gradient := 0.0
	if radius > 0 {
		d := float64(world.Distance(world.HexCoord{}, hex.Coord))
		gradient = c.CoreGradient * (1 - d/float64(radius))
	}
	cost := c.BaseHexCost * c.ZoneMultiplier.For(hex.Zone) * kind * (1 + gradient)
	if math.IsNaN(cost) || math.IsInf(cost, 0) || cost <= 0 {
		return FallbackHexCost
	}
	return cost
}

// MinHexCost returns the cheapest cost of any enterable hex on m, the
// per-step floor for an admissible distance heuristic.
func (c Config) MinHexCost(m *world.Map) float64 {
	lowest := math.Inf(1)
	for i := range m.Hexes {
		h := &m.Hexes[i]
		if h.Blocked {
			continue
		}
		lowest = math.Min(lowest, c.HexCost(h, m.Radius))
	}
	if math.IsInf(lowest, 1) {
		return FallbackHexCost
	}
	return lowest
}

// Accumulate adds amount to the state's detection, clamped to the cap, and
// returns the new value. Detection never decreases: negative and NaN
// amounts are ignored.
func Accumulate(s *run.State, amount float64) float64 {
	if amount > 0 {
		s.Detection = run.Clamp(s.Detection + amount)
	}
	return s.Detection
}

// Failed reports whether detection has reached the failure threshold.
func Failed(detection float64) bool {
	return detection >= FailureThreshold
}

// Service is the detection collaborator bound to a run store.
type Service struct {
	Config
	store run.Store
	log   *slog.Logger
}

// NewService creates a detection service over store.
func NewService(cfg Config, store run.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{Config: cfg, store: store, log: logger}
}

// CurrentDetection returns the active run's detection, 0 without a run.
func (s *Service) CurrentDetection() float64 {
	st, ok := s.store.Get()
	if !ok {
		return 0
	}
	return st.Detection
}

// AddDetection raises detection by amount.
func (s *Service) AddDetection(amount float64, reason string) error {
	var now float64
	err := s.store.Update(func(st *run.State) {
		now = Accumulate(st, amount)
	})
	if err != nil {
		return err
	}
	s.log.Debug("detection raised", "amount", amount, "reason", reason, "detection", now)
	return nil
}

// ThresholdBand returns the band of the current detection.
func (s *Service) ThresholdBand() threat.Band {
	return s.Thresholds.BandFor(s.CurrentDetection())
}

// TriggerFailure marks the active run as failed.
func (s *Service) TriggerFailure() error {
	err := s.store.Update(func(st *run.State) {
		st.Failed = true
	})
	if err != nil {
		return err
	}
	s.log.Warn("detection threshold reached, run failed", "threshold", FailureThreshold)
	return nil
}
