package world

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDistance(t *testing.T) {
	tests := []struct {
		name string
		a, b HexCoord
		want int
	}{
		{"same", HexCoord{0, 0}, HexCoord{0, 0}, 0},
		{"neighbor", HexCoord{0, 0}, HexCoord{1, -1}, 1},
		{"straight line", HexCoord{0, 0}, HexCoord{3, 0}, 3},
		{"mixed", HexCoord{-2, 1}, HexCoord{2, -1}, 4},
		{"symmetric", HexCoord{2, -1}, HexCoord{-2, 1}, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Distance(tt.a, tt.b))
		})
	}
}

func TestNeighborsAreAdjacent(t *testing.T) {
	c := HexCoord{Q: 2, R: -3}
	for _, n := range c.Neighbors() {
		assert.True(t, IsAdjacent(c, n), "neighbor %s", n)
	}
}

func TestRing(t *testing.T) {
	assert.Equal(t, []HexCoord{{0, 0}}, Ring(HexCoord{}, 0))
	for radius := 1; radius <= 4; radius++ {
		ring := Ring(HexCoord{}, radius)
		require.Len(t, ring, 6*radius)
		seen := make(map[HexCoord]bool)
		for _, c := range ring {
			assert.Equal(t, radius, Distance(HexCoord{}, c))
			assert.False(t, seen[c], "duplicate %s", c)
			seen[c] = true
		}
	}
}

func TestSpiralCount(t *testing.T) {
	for radius := 0; radius <= 6; radius++ {
		assert.Len(t, Spiral(HexCoord{}, radius), 1+3*radius*(radius+1))
	}
}

func TestNewMapInBounds(t *testing.T) {
	m := NewMap(3)
	assert.Equal(t, 37, m.HexCount())
	assert.True(t, m.InBounds(HexCoord{3, -3}))
	assert.False(t, m.InBounds(HexCoord{4, 0}))
	assert.NotNil(t, m.Get(HexCoord{-3, 0}))
	assert.Nil(t, m.Get(HexCoord{0, 4}))
}
