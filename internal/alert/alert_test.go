package alert

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/hexrun/internal/run"
	"github.com/talgya/hexrun/internal/world"
)

func TestAddAlertIdempotent(t *testing.T) {
	tr := NewTracker(DefaultBonus)
	st := &run.State{Seed: 12345}
	poi := world.HexCoord{Q: 1, R: 2}

	first := tr.AddAlert(st, poi)
	assert.GreaterOrEqual(t, first, 5.0)
	assert.LessOrEqual(t, first, 15.0)

	// Change the range so a redraw would be visible.
	tr.Bonus.Min, tr.Bonus.Max = 50, 60
	second := tr.AddAlert(st, poi)
	assert.Equal(t, first, second)
	require.Len(t, st.HighAlertPOIs, 1)
	assert.Equal(t, first, st.HighAlertPOIs[0].Bonus)
}

func TestAlertLookups(t *testing.T) {
	tr := NewTracker(DefaultBonus)
	st := &run.State{Seed: 3}
	a, b := world.HexCoord{Q: 1}, world.HexCoord{R: 1}

	assert.False(t, IsAlerted(st, a))
	assert.Zero(t, AlertBonus(st, a))

	bonus := tr.AddAlert(st, a)
	assert.True(t, IsAlerted(st, a))
	assert.Equal(t, bonus, AlertBonus(st, a))
	assert.False(t, IsAlerted(st, b))
}

func TestAlertBonusDeterministic(t *testing.T) {
	tr := NewTracker(DefaultBonus)
	poi := world.HexCoord{Q: -2, R: 1}
	x := tr.AddAlert(&run.State{Seed: 77}, poi)
	y := tr.AddAlert(&run.State{Seed: 77}, poi)
	assert.Equal(t, x, y)
}
