package world

import (
	"errors"
	"fmt"

	"github.com/zyedidia/generic/mapset"
)

var (
	// ErrUnreachable is returned when a POI cannot be reached from a gate.
	ErrUnreachable = errors.New("poi unreachable from gate")
	// ErrCostCeiling is returned when a gate-to-POI trip is too expensive.
	ErrCostCeiling = errors.New("gate-to-poi cost exceeds ceiling")
	// ErrEmptyMap is returned for maps without gates or POIs.
	ErrEmptyMap = errors.New("map has no gates or no pois")
)

// Validate checks every (gate, POI) pair: each POI must be reachable from
// each gate, and pathLength × PerHexCost must stay within CostCeiling. A
// non-positive ceiling disables the cost check and the path search with it.
func Validate(m *Map, cfg ValidationConfig) error {
	if len(m.Gates) == 0 || len(m.POIs) == 0 {
		return ErrEmptyMap
	}
	for _, g := range m.Gates {
		reachable := Reachable(m, g.Coord)
		for _, p := range m.POIs {
			if !reachable.Has(p.Coord) {
				return fmt.Errorf("%w: gate %d -> poi %s", ErrUnreachable, g.ID, p.Coord)
			}
			if cfg.CostCeiling <= 0 {
				continue
			}
			path, _ := m.ShortestPath(g.Coord, p.Coord)
			cost := float64(len(path)) * cfg.PerHexCost
			if cost > cfg.CostCeiling {
				return fmt.Errorf("%w: gate %d -> poi %s costs %.1f (ceiling %.1f)",
					ErrCostCeiling, g.ID, p.Coord, cost, cfg.CostCeiling)
			}
		}
	}
	return nil
}

// Valid reports whether Validate accepts the map.
func Valid(m *Map, cfg ValidationConfig) bool {
	return Validate(m, cfg) == nil
}

// Reachable returns every passable hex connected to start (start included).
func Reachable(m *Map, start HexCoord) mapset.Set[HexCoord] {
	reachable := mapset.New[HexCoord]()
	if m.Get(start) == nil {
		return reachable
	}
	queue := []HexCoord{start}
	reachable.Put(start)

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, n := range current.Neighbors() {
			if reachable.Has(n) || !m.Passable(n) {
				continue
			}
			reachable.Put(n)
			queue = append(queue, n)
		}
	}
	return reachable
}
