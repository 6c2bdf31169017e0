package world

import (
	"container/heap"
	"math"
)

// FallbackStepCost replaces step costs that are NaN, infinite or negative so
// the search always terminates on malformed data.
const FallbackStepCost = 1.0

// StepCostFunc returns the cost of entering a hex.
type StepCostFunc func(to *Hex) float64

// HeuristicFunc estimates the remaining cost from a hex to the goal. It must
// never overestimate for the returned path to be optimal.
type HeuristicFunc func(from, goal HexCoord) float64

// UnitCost charges 1 for every step.
func UnitCost(*Hex) float64 { return 1 }

// DistanceHeuristic scales hex distance by the cheapest possible step.
func DistanceHeuristic(minStep float64) HeuristicFunc {
	return func(from, goal HexCoord) float64 {
		return float64(Distance(from, goal)) * minStep
	}
}

// ZeroHeuristic turns A* into Dijkstra.
func ZeroHeuristic(HexCoord, HexCoord) float64 { return 0 }

// --- A* pathfinding ---

type pathNode struct {
	coord  HexCoord
	g, h   float64
	seq    int // insertion order, breaks f ties deterministically
	parent *pathNode
	index  int // heap index
}

type openList []*pathNode

func (ol openList) Len() int { return len(ol) }
func (ol openList) Less(i, j int) bool {
	fi, fj := ol[i].g+ol[i].h, ol[j].g+ol[j].h
	if fi != fj {
		return fi < fj
	}
	return ol[i].seq < ol[j].seq
}
func (ol openList) Swap(i, j int)  { ol[i], ol[j] = ol[j], ol[i]; ol[i].index = i; ol[j].index = j }
func (ol *openList) Push(x any)    { n := x.(*pathNode); n.index = len(*ol); *ol = append(*ol, n) }
func (ol *openList) Pop() any {
	old := *ol
	n := old[len(old)-1]
	old[len(old)-1] = nil
	*ol = old[:len(old)-1]
	return n
}

// WeightedPath runs A* from start to goal. The returned path excludes start
// and ends at goal; cost is the sum of step costs along it. Returns ok=false
// when the goal is unreachable, out of bounds or blocked. The start hex may
// itself be blocked (the traveller is already there).
func (m *Map) WeightedPath(start, goal HexCoord, stepCost StepCostFunc, heuristic HeuristicFunc) (path []HexCoord, cost float64, ok bool) {
	if m.Get(start) == nil || !m.Passable(goal) {
		return nil, 0, false
	}
	if start == goal {
		return []HexCoord{}, 0, true
	}
	if heuristic == nil {
		heuristic = ZeroHeuristic
	}

	seq := 0
	startNode := &pathNode{coord: start, h: heuristic(start, goal)}
	ol := &openList{startNode}
	heap.Init(ol)

	closed := make(map[HexCoord]bool)
	best := map[HexCoord]*pathNode{start: startNode}

	for ol.Len() > 0 {
		cur := heap.Pop(ol).(*pathNode)
		if cur.coord == goal {
			return buildPath(cur), cur.g, true
		}
		if closed[cur.coord] {
			continue
		}
		closed[cur.coord] = true

		for _, nc := range cur.coord.Neighbors() {
			if closed[nc] {
				continue
			}
			nh := m.Get(nc)
			if nh == nil || nh.Blocked {
				continue
			}
			step := stepCost(nh)
			if math.IsNaN(step) || math.IsInf(step, 0) || step < 0 {
				step = FallbackStepCost
			}
			g := cur.g + step
			if prev, ok := best[nc]; ok && g >= prev.g {
				continue
			}
			seq++
			node := &pathNode{coord: nc, g: g, h: heuristic(nc, goal), seq: seq, parent: cur}
			best[nc] = node
			heap.Push(ol, node)
		}
	}
	return nil, 0, false
}

// ShortestPath returns the fewest-steps path from start to goal, excluding
// start.
func (m *Map) ShortestPath(start, goal HexCoord) ([]HexCoord, bool) {
	path, _, ok := m.WeightedPath(start, goal, UnitCost, DistanceHeuristic(1))
	return path, ok
}

func buildPath(end *pathNode) []HexCoord {
	var coords []HexCoord
	for n := end; n.parent != nil; n = n.parent {
		coords = append(coords, n.coord)
	}
	// Reverse
	for i, j := 0, len(coords)-1; i < j; i, j = i+1, j-1 {
		coords[i], coords[j] = coords[j], coords[i]
	}
	return coords
}
