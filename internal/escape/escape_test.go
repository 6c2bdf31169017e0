package escape

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/hexrun/internal/detection"
	"github.com/talgya/hexrun/internal/movement"
	"github.com/talgya/hexrun/internal/run"
	"github.com/talgya/hexrun/internal/world"
)

// gatedMap is a radius-3 map with gates 0, 1 and 2 on the rim, zoned like
// a generated map and with a POI in the middle ring.
func gatedMap() *world.Map {
	m := world.NewMap(3)
	m.EncounterByZone = world.ZoneTable{Perimeter: 5, Mid: 10, Core: 20}
	for i := range m.Hexes {
		switch d := world.Distance(world.HexCoord{}, m.Hexes[i].Coord); {
		case d <= 1:
			m.Hexes[i].Zone = world.ZoneCore
		case d == 2:
			m.Hexes[i].Zone = world.ZoneMid
		}
	}
	for id, c := range []world.HexCoord{{Q: 3}, {Q: -3, R: 3}, {R: -3}} {
		gid := id
		h := m.Get(c)
		h.Kind = world.KindGate
		h.GateID = &gid
		m.Gates = append(m.Gates, world.Gate{ID: id, Coord: c})
	}
	poi := world.POI{Coord: world.HexCoord{Q: -1, R: 2}, Name: "Depot 1"}
	h := m.Get(poi.Coord)
	h.Kind = world.KindPOI
	h.POI = &poi
	m.POIs = []world.POI{poi}
	return m
}

func newTestCalculator(m *world.Map) (*Calculator, *movement.Planner) {
	p := movement.NewPlanner(m, detection.DefaultConfig(), nil)
	return NewCalculator(p), p
}

func TestThreatRouteCostExcludesStart(t *testing.T) {
	c, p := newTestCalculator(gatedMap())
	from := world.HexCoord{Q: 1, R: -1}
	r, ok := c.ThreatRoute(from, world.HexCoord{Q: -3, R: 3})
	require.True(t, ok)
	assert.NotContains(t, r.Path, from)
	assert.Equal(t, world.HexCoord{Q: -3, R: 3}, r.Path[len(r.Path)-1])
	assert.InDelta(t, p.PathCost(r.Path), r.Cost, 1e-9)
	assert.Equal(t, 1, r.GateID)
}

func TestThreatRouteNoWorseThanShortest(t *testing.T) {
	c, p := newTestCalculator(gatedMap())
	from, to := world.HexCoord{Q: 3}, world.HexCoord{Q: -3, R: 3}
	short, ok := p.Path(from, to)
	require.True(t, ok)
	r, ok := c.ThreatRoute(from, to)
	require.True(t, ok)
	assert.LessOrEqual(t, r.Cost, p.PathCost(short)+1e-9)
}

func sumChance(p *movement.Planner, path []world.HexCoord) float64 {
	total := 0.0
	for _, h := range path {
		total += p.HexEncounterChance(h)
	}
	return total
}

func TestEncounterRouteMinimizesChance(t *testing.T) {
	c, p := newTestCalculator(gatedMap())
	from, to := world.HexCoord{Q: 3}, world.HexCoord{Q: -3, R: 3}
	threatRoute, ok := c.ThreatRoute(from, to)
	require.True(t, ok)
	safest, ok := c.EncounterRoute(from, to)
	require.True(t, ok)
	assert.LessOrEqual(t, sumChance(p, safest.Path), sumChance(p, threatRoute.Path)+1e-9)
	assert.InDelta(t, p.PathCost(safest.Path), safest.Cost, 1e-9)
}

func TestFindNearestExtractableGateSkipsEntry(t *testing.T) {
	c, _ := newTestCalculator(gatedMap())
	r, ok := c.FindNearestExtractableGate(world.HexCoord{Q: 3}, 0)
	require.True(t, ok)
	assert.NotEqual(t, 0, r.GateID)
	assert.NotEmpty(t, r.Path)

	// Standing on a non-entry gate costs nothing.
	r, ok = c.FindNearestExtractableGate(world.HexCoord{R: -3}, 0)
	require.True(t, ok)
	assert.Equal(t, 2, r.GateID)
	assert.Zero(t, r.Cost)
}

func TestFindNearestExtractableGateOnlyEntry(t *testing.T) {
	m := gatedMap()
	m.Gates = m.Gates[:1]
	c, _ := newTestCalculator(m)
	_, ok := c.FindNearestExtractableGate(world.HexCoord{}, 0)
	assert.False(t, ok)
}

func TestCalculateEscapeRoutes(t *testing.T) {
	c, p := newTestCalculator(gatedMap())
	st := run.State{Position: world.HexCoord{Q: 3}, EntryGate: 0, Detection: 20}
	_, err := p.AddWaypoint(&st, world.HexCoord{Q: -1, R: 2})
	require.NoError(t, err)

	rep := c.CalculateEscapeRoutes(st)
	assert.Equal(t, world.HexCoord{Q: 3}, rep.FromPosition.From)
	assert.Equal(t, world.HexCoord{Q: -1, R: 2}, rep.FromRouteEnd.From)
	assert.Equal(t, st.ProjectedDetection(), rep.FromRouteEnd.StartDetection)
	assert.InDelta(t, 20+rep.FromPosition.Threat.Cost, rep.FromPosition.ProjectedDetection, 1e-9)
	assert.False(t, rep.FromPosition.WouldFail)
	assert.False(t, rep.FromPosition.NoPath)

	st.Detection = 99
	rep = c.CalculateEscapeRoutes(st)
	assert.True(t, rep.FromPosition.WouldFail)
}

func TestCalculateEscapeRoutesNoPath(t *testing.T) {
	m := gatedMap()
	for _, n := range (world.HexCoord{}).Neighbors() {
		m.Get(n).Blocked = true
	}
	c, _ := newTestCalculator(m)
	rep := c.CalculateEscapeRoutes(run.State{EntryGate: 0})
	assert.True(t, rep.FromPosition.NoPath)
	assert.False(t, rep.FromPosition.WouldFail)
}
