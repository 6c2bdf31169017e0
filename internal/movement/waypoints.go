package movement

import (
	"fmt"

	"github.com/talgya/hexrun/internal/detection"
	"github.com/talgya/hexrun/internal/run"
	"github.com/talgya/hexrun/internal/world"
)

// AddWaypoint appends target to the queue, pathing from the current route
// end.
func (p *Planner) AddWaypoint(s *run.State, target world.HexCoord) (run.Waypoint, error) {
	wp, err := p.segment(s.RouteEnd(), target, s.ProjectedDetection())
	if err != nil {
		return run.Waypoint{}, err
	}
	s.Waypoints = append(s.Waypoints, wp)
	reindex(s)
	p.log.Debug("waypoint added", "target", target, "hexes", len(wp.Path), "cost", wp.SegmentCost)
	return s.Waypoints[len(s.Waypoints)-1], nil
}

// RemoveWaypoint drops waypoint i. Every later segment is re-pathed from
// its new predecessor.
func (p *Planner) RemoveWaypoint(s *run.State, i int) error {
	if i < 0 || i >= len(s.Waypoints) {
		return fmt.Errorf("waypoint %d of %d: %w", i, len(s.Waypoints), ErrIndexOutOfRange)
	}
	s.Waypoints = append(s.Waypoints[:i], s.Waypoints[i+1:]...)
	return p.repath(s, i)
}

// Recalculate re-paths the whole queue from the current position and
// rebuilds the cumulative snapshots from the current detection.
func (p *Planner) Recalculate(s *run.State) error {
	return p.repath(s, 0)
}

// SetRoute replaces the queue with a single waypoint following path to
// target. The detection limit is not checked: an escape route is taken
// whatever it costs.
func (p *Planner) SetRoute(s *run.State, target world.HexCoord, path []world.HexCoord) {
	path = append([]world.HexCoord(nil), path...)
	s.Waypoints = []run.Waypoint{{
		Target:               target,
		Path:                 path,
		SegmentCost:          p.PathCost(path),
		SegmentEncounterRisk: p.EncounterRisk(path),
	}}
	reindex(s)
}

// ClearWaypoints empties the queue.
func ClearWaypoints(s *run.State) {
	s.Waypoints = nil
}

// repath rebuilds segments from index start onward. A segment that can no
// longer be pathed truncates the queue there.
func (p *Planner) repath(s *run.State, start int) error {
	for i := start; i < len(s.Waypoints); i++ {
		from := s.Position
		if i > 0 {
			from = s.Waypoints[i-1].Target
		}
		target := s.Waypoints[i].Target
		if from == target {
			s.Waypoints = append(s.Waypoints[:i], s.Waypoints[i+1:]...)
			i--
			continue
		}
		path, ok := p.Path(from, target)
		if !ok {
			s.Waypoints = s.Waypoints[:i]
			reindex(s)
			return fmt.Errorf("waypoint %d to %s: %w", i, target, ErrNoPath)
		}
		s.Waypoints[i].Path = path
		s.Waypoints[i].SegmentCost = p.PathCost(path)
		s.Waypoints[i].SegmentEncounterRisk = p.EncounterRisk(path)
	}
	reindex(s)
	return nil
}

// Advance moves the run one hex along the head waypoint's path: position,
// detection and move count change together and the head segment shrinks
// by the entered hex. The caller pops the waypoint once its path is empty.
func (p *Planner) Advance(s *run.State) (world.HexCoord, float64, bool) {
	if len(s.Waypoints) == 0 || len(s.Waypoints[0].Path) == 0 {
		return s.Position, 0, false
	}
	head := &s.Waypoints[0]
	next := head.Path[0]
	head.Path = head.Path[1:]

	cost := p.HexCost(next)
	s.Position = next
	s.MoveCount++
	detection.Accumulate(s, cost)

	head.SegmentCost = p.PathCost(head.Path)
	head.SegmentEncounterRisk = p.EncounterRisk(head.Path)
	reindex(s)
	return next, cost, true
}

// reindex rebuilds the cumulative fields so that
// cumulative[i] = cumulative[i-1] + segment[i], starting from the current
// detection.
func reindex(s *run.State) {
	det := s.Detection
	safe := 1.0
	for i := range s.Waypoints {
		wp := &s.Waypoints[i]
		det += wp.SegmentCost
		wp.CumulativeDetection = det
		safe *= 1 - wp.SegmentEncounterRisk/100
		wp.CumulativeEncounterRisk = run.Clamp((1 - safe) * 100)
	}
}
