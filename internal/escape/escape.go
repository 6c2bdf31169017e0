// Package escape finds extraction routes: the cheapest way out in
// detection cost, and the way out least likely to be intercepted.
package escape

import (
	"math"

	"github.com/talgya/hexrun/internal/detection"
	"github.com/talgya/hexrun/internal/movement"
	"github.com/talgya/hexrun/internal/run"
	"github.com/talgya/hexrun/internal/world"
)

// Route is a path to a gate. Cost is the detection cost of every hex
// entered, the start hex excluded.
type Route struct {
	GateID        int              `json:"gate_id"`
	Gate          world.HexCoord   `json:"gate"`
	Path          []world.HexCoord `json:"path"`
	Cost          float64          `json:"cost"`
	EncounterRisk float64          `json:"encounter_risk"`
}

// Option is the escape outlook from one starting point.
type Option struct {
	From               world.HexCoord `json:"from"`
	StartDetection     float64        `json:"start_detection"`
	NoPath             bool           `json:"no_path"`
	Threat             Route          `json:"threat"`
	ProjectedDetection float64        `json:"projected_detection"`
	WouldFail          bool           `json:"would_fail"`

	// Encounter-minimizing alternative.
	Safest                   Route   `json:"safest"`
	SafestProjectedDetection float64 `json:"safest_projected_detection"`
	SafestWouldFail          bool    `json:"safest_would_fail"`
}

// Report covers escaping from where the run stands now and from where the
// queued route will leave it.
type Report struct {
	FromPosition Option `json:"from_position"`
	FromRouteEnd Option `json:"from_route_end"`
}

// Calculator runs the two weighted A* variants over one map.
type Calculator struct {
	planner *movement.Planner
	minCost float64
}

// NewCalculator creates a calculator sharing the planner's map and pricing.
func NewCalculator(p *movement.Planner) *Calculator {
	return &Calculator{planner: p, minCost: p.MinHexCost()}
}

// ThreatRoute is the detection-cost minimizing route. The heuristic
// multiplies distance by the map's cheapest hex cost so it never
// overestimates.
func (c *Calculator) ThreatRoute(from, to world.HexCoord) (Route, bool) {
	m := c.planner.Map()
	path, cost, ok := m.WeightedPath(from, to, func(h *world.Hex) float64 {
		return c.planner.HexCost(h.Coord)
	}, world.DistanceHeuristic(c.minCost))
	if !ok {
		return Route{}, false
	}
	return c.route(to, path, cost), true
}

// EncounterRoute minimizes the summed per-hex encounter chance. With no
// useful lower bound the search runs as Dijkstra.
func (c *Calculator) EncounterRoute(from, to world.HexCoord) (Route, bool) {
	m := c.planner.Map()
	path, _, ok := m.WeightedPath(from, to, func(h *world.Hex) float64 {
		return c.planner.HexEncounterChance(h.Coord)
	}, world.ZeroHeuristic)
	if !ok {
		return Route{}, false
	}
	return c.route(to, path, c.planner.PathCost(path)), true
}

func (c *Calculator) route(to world.HexCoord, path []world.HexCoord, cost float64) Route {
	r := Route{
		Gate:          to,
		Path:          path,
		Cost:          cost,
		EncounterRisk: c.planner.EncounterRisk(path),
	}
	if g, ok := c.planner.Map().GateAt(to); ok {
		r.GateID = g.ID
	}
	return r
}

// FindNearestExtractableGate returns the lowest-threat reachable gate other
// than the entry gate.
func (c *Calculator) FindNearestExtractableGate(from world.HexCoord, entryGate int) (Route, bool) {
	return c.bestGate(from, entryGate, c.ThreatRoute, func(r Route) float64 { return r.Cost })
}

// FindSafestExtractableGate returns the extractable gate with the lowest
// compound encounter risk.
func (c *Calculator) FindSafestExtractableGate(from world.HexCoord, entryGate int) (Route, bool) {
	return c.bestGate(from, entryGate, c.EncounterRoute, func(r Route) float64 { return r.EncounterRisk })
}

func (c *Calculator) bestGate(from world.HexCoord, entryGate int, find func(from, to world.HexCoord) (Route, bool), score func(Route) float64) (Route, bool) {
	var best Route
	bestScore := math.Inf(1)
	found := false
	for _, g := range c.planner.Map().Gates {
		if g.ID == entryGate {
			continue
		}
		r, ok := find(from, g.Coord)
		if !ok {
			continue
		}
		if s := score(r); s < bestScore {
			best, bestScore, found = r, s, true
		}
	}
	return best, found
}

// CalculateEscapeRoutes reports the escape options from the current
// position and from the end of the queued route.
func (c *Calculator) CalculateEscapeRoutes(s run.State) Report {
	return Report{
		FromPosition: c.option(s.Position, s.Detection, s.EntryGate),
		FromRouteEnd: c.option(s.RouteEnd(), s.ProjectedDetection(), s.EntryGate),
	}
}

func (c *Calculator) option(from world.HexCoord, startDetection float64, entryGate int) Option {
	opt := Option{From: from, StartDetection: startDetection}
	threatRoute, ok := c.FindNearestExtractableGate(from, entryGate)
	if !ok {
		opt.NoPath = true
		return opt
	}
	opt.Threat = threatRoute
	opt.ProjectedDetection = startDetection + threatRoute.Cost
	opt.WouldFail = detection.Failed(opt.ProjectedDetection)

	if safest, ok := c.FindSafestExtractableGate(from, entryGate); ok {
		opt.Safest = safest
		opt.SafestProjectedDetection = startDetection + safest.Cost
		opt.SafestWouldFail = detection.Failed(opt.SafestProjectedDetection)
	}
	return opt
}
