package detection

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/hexrun/internal/run"
	"github.com/talgya/hexrun/internal/threat"
	"github.com/talgya/hexrun/internal/world"
)

func TestHexCostGrowsTowardCore(t *testing.T) {
	cfg := DefaultConfig()
	rim := &world.Hex{Coord: world.HexCoord{Q: 6}, Zone: world.ZonePerimeter}
	mid := &world.Hex{Coord: world.HexCoord{Q: 3}, Zone: world.ZoneMid}
	core := &world.Hex{Coord: world.HexCoord{}, Zone: world.ZoneCore}

	assert.InDelta(t, 2.0, cfg.HexCost(rim, 6), 1e-9)
	assert.InDelta(t, 2*1.5*1.25, cfg.HexCost(mid, 6), 1e-9)
	assert.InDelta(t, 2*2*1.5, cfg.HexCost(core, 6), 1e-9)
}

func TestHexCostKinds(t *testing.T) {
	cfg := DefaultConfig()
	gate := &world.Hex{Coord: world.HexCoord{Q: 6}, Kind: world.KindGate}
	assert.InDelta(t, 1.0, cfg.HexCost(gate, 6), 1e-9)
}

func TestHexCostFallback(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, FallbackHexCost, cfg.HexCost(nil, 6))

	cfg.BaseHexCost = math.NaN()
	assert.Equal(t, FallbackHexCost, cfg.HexCost(&world.Hex{}, 6))

	cfg.BaseHexCost = -3
	assert.Equal(t, FallbackHexCost, cfg.HexCost(&world.Hex{}, 6))
}

func TestMinHexCostIsFloor(t *testing.T) {
	m, err := world.Generate(world.DefaultGenConfig(), 12345, 1, "standard")
	require.NoError(t, err)
	cfg := DefaultConfig()
	floor := cfg.MinHexCost(m)
	for i := range m.Hexes {
		if m.Hexes[i].Blocked {
			continue
		}
		assert.GreaterOrEqual(t, cfg.HexCost(&m.Hexes[i], m.Radius), floor)
	}
}

func TestAccumulateMonotonicAndClamped(t *testing.T) {
	st := &run.State{Detection: 90}
	assert.Equal(t, 90.0, Accumulate(st, -10))
	assert.Equal(t, 90.0, Accumulate(st, math.NaN()))
	assert.Equal(t, 95.0, Accumulate(st, 5))
	assert.Equal(t, 100.0, Accumulate(st, 50))
	assert.True(t, Failed(st.Detection))
}

func TestServiceAgainstStore(t *testing.T) {
	store := run.NewMemoryStore()
	svc := NewService(DefaultConfig(), store, nil)
	assert.Zero(t, svc.CurrentDetection())
	assert.ErrorIs(t, svc.AddDetection(5, "test"), run.ErrNoActiveRun)

	require.NoError(t, store.Start(run.State{Detection: 10}))
	require.NoError(t, svc.AddDetection(35, "scan"))
	assert.Equal(t, 45.0, svc.CurrentDetection())
	assert.Equal(t, threat.BandMedium, svc.ThresholdBand())

	require.NoError(t, svc.AddDetection(30, "scan"))
	assert.Equal(t, threat.BandHigh, svc.ThresholdBand())

	require.NoError(t, svc.TriggerFailure())
	st, _ := store.Get()
	assert.True(t, st.Failed)
}
