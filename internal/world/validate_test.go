package world

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// smallMap builds a radius-3 map with one gate on the east rim and one POI
// in the west.
func smallMap() *Map {
	m := NewMap(3)
	gate := 0
	g := m.Get(HexCoord{3, 0})
	g.Kind = KindGate
	g.GateID = &gate
	m.Gates = []Gate{{ID: 0, Coord: g.Coord}}

	m.POIs = []POI{{Coord: HexCoord{-2, 0}, TypeID: "wreck", SlotCount: 3}}
	linkPOIs(m)
	return m
}

func TestValidateAcceptsOpenMap(t *testing.T) {
	m := smallMap()
	assert.NoError(t, Validate(m, ValidationConfig{PerHexCost: 2, CostCeiling: 20}))
	assert.True(t, Valid(m, ValidationConfig{}))
}

func TestValidateRejectsUnreachablePOI(t *testing.T) {
	m := smallMap()
	for _, c := range (HexCoord{Q: -2}).Neighbors() {
		if h := m.Get(c); h != nil {
			h.Blocked = true
		}
	}
	assert.ErrorIs(t, Validate(m, ValidationConfig{}), ErrUnreachable)
}

func TestValidateRejectsCostCeiling(t *testing.T) {
	m := smallMap()
	// Path is 5 hexes long: 5 × 2 = 10 > 9.
	assert.ErrorIs(t, Validate(m, ValidationConfig{PerHexCost: 2, CostCeiling: 9}), ErrCostCeiling)
	assert.NoError(t, Validate(m, ValidationConfig{PerHexCost: 2, CostCeiling: 10}))
}

func TestValidateRejectsEmptyMap(t *testing.T) {
	assert.ErrorIs(t, Validate(NewMap(2), ValidationConfig{}), ErrEmptyMap)
}
