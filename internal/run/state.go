// Package run holds the per-run state mutated by the expedition core and the
// store interface that owns it.
package run

import (
	"math"

	"golang.org/x/exp/constraints"

	"github.com/talgya/hexrun/internal/salvage"
	"github.com/talgya/hexrun/internal/world"
)

// MaxMeter is the cap for detection and signal lock.
const MaxMeter = 100.0

// Waypoint is a queued destination with its precomputed path and a
// cumulative risk snapshot. Path shrinks by one hex per step taken.
type Waypoint struct {
	Target                  world.HexCoord   `json:"target"`
	Path                    []world.HexCoord `json:"path"` // Remaining path from the previous waypoint, start excluded
	SegmentCost             float64          `json:"segment_cost"`
	CumulativeDetection     float64          `json:"cumulative_detection"`
	SegmentEncounterRisk    float64          `json:"segment_encounter_risk"`
	CumulativeEncounterRisk float64          `json:"cumulative_encounter_risk"`
}

// Alert is a High-Alert entry for a POI.
type Alert struct {
	Q     int     `json:"q"`
	R     int     `json:"r"`
	Bonus float64 `json:"bonus"`
}

// Coord returns the alerted POI coordinate.
func (a Alert) Coord() world.HexCoord {
	return world.HexCoord{Q: a.Q, R: a.R}
}

// State is the complete mutable state of one run.
type State struct {
	ID         string         `json:"id"`
	Seed       int64          `json:"seed"`
	Tier       int            `json:"tier"`
	MapTypeID  string         `json:"map_type_id"`
	Detection  float64        `json:"detection"`
	SignalLock float64        `json:"signal_lock"`
	Position   world.HexCoord `json:"position"`
	EntryGate  int            `json:"entry_gate"`
	MoveCount  int            `json:"move_count"` // Hexes moved this run; keys per-move random streams

	Waypoints     []Waypoint       `json:"waypoints"`
	LootedPOIs    []world.HexCoord `json:"looted_pois"`
	HighAlertPOIs []Alert          `json:"high_alert_pois"`
	Salvage       *salvage.State   `json:"salvage,omitempty"`
	Loot          []salvage.Item   `json:"loot"`
	Failed        bool             `json:"failed"`
}

// Clone returns a deep copy, safe to hand to collaborators.
func (s State) Clone() State {
	out := s
	out.Waypoints = make([]Waypoint, len(s.Waypoints))
	for i, wp := range s.Waypoints {
		wp.Path = append([]world.HexCoord(nil), wp.Path...)
		out.Waypoints[i] = wp
	}
	out.LootedPOIs = append([]world.HexCoord(nil), s.LootedPOIs...)
	out.HighAlertPOIs = append([]Alert(nil), s.HighAlertPOIs...)
	out.Loot = append([]salvage.Item(nil), s.Loot...)
	if s.Salvage != nil {
		sv := s.Salvage.Clone()
		out.Salvage = &sv
	}
	return out
}

// IsLooted reports whether the POI at coord was already resolved.
func (s State) IsLooted(coord world.HexCoord) bool {
	for _, c := range s.LootedPOIs {
		if c == coord {
			return true
		}
	}
	return false
}

// MarkLooted records the POI at coord as resolved. Idempotent.
func (s *State) MarkLooted(coord world.HexCoord) {
	if !s.IsLooted(coord) {
		s.LootedPOIs = append(s.LootedPOIs, coord)
	}
}

// RouteEnd returns where the queued route finishes: the last waypoint's
// target, or the current position when the queue is empty.
func (s State) RouteEnd() world.HexCoord {
	if n := len(s.Waypoints); n > 0 {
		return s.Waypoints[n-1].Target
	}
	return s.Position
}

// ProjectedDetection is the detection at the end of the queued route.
func (s State) ProjectedDetection() float64 {
	if n := len(s.Waypoints); n > 0 {
		return s.Waypoints[n-1].CumulativeDetection
	}
	return s.Detection
}

// Clamp bounds a meter or percentage to [0, MaxMeter]. NaN clamps to 0.
func Clamp(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return ClampTo(v, 0, MaxMeter)
}

// ClampTo bounds v to [lo, hi].
func ClampTo[T constraints.Ordered](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
