// Package movement plans player routes: paths between hexes, their
// detection cost and encounter risk, and the queued waypoint list.
package movement

import (
	"errors"
	"log/slog"

	"github.com/talgya/hexrun/internal/detection"
	"github.com/talgya/hexrun/internal/run"
	"github.com/talgya/hexrun/internal/world"
)

var (
	// ErrNoPath is returned when the target cannot be reached.
	ErrNoPath = errors.New("target unreachable")
	// ErrDetectionExceeded is returned when a move would push detection past the cap.
	ErrDetectionExceeded = errors.New("move would exceed detection limit")
	// ErrSameHex is returned when the target is where the route already ends.
	ErrSameHex = errors.New("target is the current route end")
	// ErrIndexOutOfRange is returned for a waypoint index past the queue.
	ErrIndexOutOfRange = errors.New("waypoint index out of range")
)

// Planner wraps pathfinding and per-hex cost lookup for one map.
type Planner struct {
	m    *world.Map
	cost detection.Config
	log  *slog.Logger
}

// NewPlanner creates a planner over m priced by cost.
func NewPlanner(m *world.Map, cost detection.Config, logger *slog.Logger) *Planner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Planner{m: m, cost: cost, log: logger}
}

// Map returns the planner's map.
func (p *Planner) Map() *world.Map { return p.m }

// Path returns the shortest path from -> to, excluding from.
func (p *Planner) Path(from, to world.HexCoord) ([]world.HexCoord, bool) {
	return p.m.ShortestPath(from, to)
}

// HexCost returns the detection cost of entering coord.
func (p *Planner) HexCost(coord world.HexCoord) float64 {
	return p.cost.HexCost(p.m.Get(coord), p.m.Radius)
}

// MinHexCost returns the cheapest enterable hex cost on the map.
func (p *Planner) MinHexCost() float64 {
	return p.cost.MinHexCost(p.m)
}

// PathCost sums the detection cost of every hex entered along path.
func (p *Planner) PathCost(path []world.HexCoord) float64 {
	total := 0.0
	for _, c := range path {
		total += p.HexCost(c)
	}
	return total
}

// HexEncounterChance returns the per-hex ambient encounter chance for
// coord. POIs never roll; gates and empty hexes use the zone table.
func (p *Planner) HexEncounterChance(coord world.HexCoord) float64 {
	h := p.m.Get(coord)
	if h == nil || h.Kind == world.KindPOI {
		return 0
	}
	return run.Clamp(p.m.EncounterByZone.For(h.Zone))
}

// EncounterRisk returns the percent chance of at least one encounter along
// path, 1 - Π(1 - p_i), treating each hex as independent.
func (p *Planner) EncounterRisk(path []world.HexCoord) float64 {
	safe := 1.0
	for _, c := range path {
		safe *= 1 - p.HexEncounterChance(c)/100
	}
	return run.Clamp((1 - safe) * 100)
}

// IsValidMove checks whether target can be appended to the queued route.
func (p *Planner) IsValidMove(s *run.State, target world.HexCoord) error {
	_, err := p.segment(s.RouteEnd(), target, s.ProjectedDetection())
	return err
}

func (p *Planner) segment(from, to world.HexCoord, startDetection float64) (run.Waypoint, error) {
	if from == to {
		return run.Waypoint{}, ErrSameHex
	}
	path, ok := p.Path(from, to)
	if !ok {
		return run.Waypoint{}, ErrNoPath
	}
	cost := p.PathCost(path)
	if startDetection+cost > detection.FailureThreshold {
		return run.Waypoint{}, ErrDetectionExceeded
	}
	return run.Waypoint{
		Target:               to,
		Path:                 path,
		SegmentCost:          cost,
		SegmentEncounterRisk: p.EncounterRisk(path),
	}, nil
}
