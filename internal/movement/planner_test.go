package movement

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/hexrun/internal/detection"
	"github.com/talgya/hexrun/internal/run"
	"github.com/talgya/hexrun/internal/world"
)

// testMap is a radius-3 all-perimeter map with a 10% encounter table and
// one POI at (-2, 0).
func testMap() *world.Map {
	m := world.NewMap(3)
	m.EncounterByZone = world.ZoneTable{Perimeter: 10, Mid: 10, Core: 10}
	poi := world.POI{Coord: world.HexCoord{Q: -2}, Name: "Wreck 1"}
	h := m.Get(poi.Coord)
	h.Kind = world.KindPOI
	h.POI = &poi
	m.POIs = []world.POI{poi}
	return m
}

func newTestPlanner() *Planner {
	return NewPlanner(testMap(), detection.DefaultConfig(), nil)
}

func assertCumulative(t *testing.T, s *run.State) {
	t.Helper()
	prev := s.Detection
	for i, wp := range s.Waypoints {
		assert.InDelta(t, prev+wp.SegmentCost, wp.CumulativeDetection, 1e-9, "waypoint %d", i)
		prev = wp.CumulativeDetection
	}
}

func TestPathExcludesStart(t *testing.T) {
	p := newTestPlanner()
	path, ok := p.Path(world.HexCoord{}, world.HexCoord{Q: 2})
	require.True(t, ok)
	require.Len(t, path, 2)
	assert.Equal(t, world.HexCoord{Q: 2}, path[1])
	assert.NotContains(t, path, world.HexCoord{})
}

func TestPathCostIsSumOfHexCosts(t *testing.T) {
	p := newTestPlanner()
	path, ok := p.Path(world.HexCoord{Q: 3}, world.HexCoord{Q: -3})
	require.True(t, ok)
	want := 0.0
	for _, c := range path {
		want += p.HexCost(c)
	}
	assert.InDelta(t, want, p.PathCost(path), 1e-9)
	assert.Zero(t, p.PathCost(nil))
}

func TestEncounterRisk(t *testing.T) {
	p := newTestPlanner()
	assert.Zero(t, p.HexEncounterChance(world.HexCoord{Q: -2}), "POI hexes never roll")
	assert.Equal(t, 10.0, p.HexEncounterChance(world.HexCoord{Q: 1}))
	assert.Zero(t, p.HexEncounterChance(world.HexCoord{Q: 9}))

	risk := p.EncounterRisk([]world.HexCoord{{Q: 1}, {Q: 2}})
	assert.InDelta(t, 19.0, risk, 1e-9)
	assert.Zero(t, p.EncounterRisk(nil))
	assert.InDelta(t, 10.0, p.EncounterRisk([]world.HexCoord{{Q: 1}, {Q: -2}}), 1e-9)
}

func TestIsValidMove(t *testing.T) {
	p := newTestPlanner()
	st := &run.State{}
	assert.NoError(t, p.IsValidMove(st, world.HexCoord{Q: 2}))
	assert.ErrorIs(t, p.IsValidMove(st, world.HexCoord{}), ErrSameHex)
	assert.ErrorIs(t, p.IsValidMove(st, world.HexCoord{Q: 7}), ErrNoPath)

	p.Map().Get(world.HexCoord{Q: 1}).Blocked = true
	assert.ErrorIs(t, p.IsValidMove(st, world.HexCoord{Q: 1}), ErrNoPath)

	st.Detection = 99
	assert.ErrorIs(t, p.IsValidMove(st, world.HexCoord{Q: 3}), ErrDetectionExceeded)
}

func TestAddAndRemoveWaypoints(t *testing.T) {
	p := newTestPlanner()
	st := &run.State{Detection: 5}

	targets := []world.HexCoord{{Q: 2}, {Q: 2, R: -2}, {Q: -2}}
	for _, tg := range targets {
		_, err := p.AddWaypoint(st, tg)
		require.NoError(t, err)
	}
	require.Len(t, st.Waypoints, 3)
	assertCumulative(t, st)
	assert.Equal(t, world.HexCoord{Q: -2}, st.RouteEnd())
	assert.Greater(t, st.Waypoints[2].CumulativeEncounterRisk, st.Waypoints[0].CumulativeEncounterRisk)

	require.NoError(t, p.RemoveWaypoint(st, 1))
	require.Len(t, st.Waypoints, 2)
	assertCumulative(t, st)
	assert.True(t, world.IsAdjacent(st.Waypoints[0].Target, st.Waypoints[1].Path[0]),
		"segment after the removed one starts from its new predecessor")

	assert.ErrorIs(t, p.RemoveWaypoint(st, 5), ErrIndexOutOfRange)

	ClearWaypoints(st)
	assert.Empty(t, st.Waypoints)
}

func TestAddWaypointRejectsOverLimit(t *testing.T) {
	p := newTestPlanner()
	st := &run.State{Detection: 80}
	_, err := p.AddWaypoint(st, world.HexCoord{Q: 3})
	require.NoError(t, err)
	_, err = p.AddWaypoint(st, world.HexCoord{Q: -3})
	assert.ErrorIs(t, err, ErrDetectionExceeded)
	assert.Len(t, st.Waypoints, 1)
}

func TestAdvanceKeepsSnapshots(t *testing.T) {
	p := newTestPlanner()
	st := &run.State{Detection: 10}
	_, err := p.AddWaypoint(st, world.HexCoord{Q: 3})
	require.NoError(t, err)
	_, err = p.AddWaypoint(st, world.HexCoord{Q: 3, R: -3})
	require.NoError(t, err)
	projected := st.ProjectedDetection()

	steps := 0
	for {
		before := st.Detection
		hex, cost, ok := p.Advance(st)
		if !ok {
			break
		}
		steps++
		assert.Equal(t, hex, st.Position)
		assert.InDelta(t, before+cost, st.Detection, 1e-9)
		assertCumulative(t, st)
		assert.InDelta(t, projected, st.ProjectedDetection(), 1e-9)
	}
	assert.Equal(t, 3, steps)
	assert.Equal(t, 3, st.MoveCount)
	assert.Equal(t, world.HexCoord{Q: 3}, st.Position)
	assert.Empty(t, st.Waypoints[0].Path)
}

func TestRecalculateFromNewPosition(t *testing.T) {
	p := newTestPlanner()
	st := &run.State{}
	_, err := p.AddWaypoint(st, world.HexCoord{Q: 3})
	require.NoError(t, err)

	st.Position = world.HexCoord{Q: 2}
	require.NoError(t, p.Recalculate(st))
	require.Len(t, st.Waypoints, 1)
	assert.Equal(t, []world.HexCoord{{Q: 3}}, st.Waypoints[0].Path)

	st.Position = world.HexCoord{Q: 3}
	require.NoError(t, p.Recalculate(st))
	assert.Empty(t, st.Waypoints, "waypoint at the current position is dropped")
}
