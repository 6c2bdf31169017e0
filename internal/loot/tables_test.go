package loot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/hexrun/internal/salvage"
	"github.com/talgya/hexrun/internal/world"
)

func TestGenerateSalvageSlotsDeterministic(t *testing.T) {
	tb := NewTables(DefaultConfig())
	req := salvage.SlotRequest{RewardType: "salvage", Tier: 1, Zone: world.ZoneMid, Count: 4, Seed: 77}
	a := tb.GenerateSalvageSlots(req)
	b := tb.GenerateSalvageSlots(req)
	require.Len(t, a, 4)
	assert.Equal(t, a, b)
	for _, s := range a {
		assert.NotEqual(t, "drone-chassis", s.Content.ID, "tier gate")
		assert.False(t, s.Revealed)
		assert.Equal(t, s.Content.Kind, s.Kind)
	}
}

func TestGenerateSalvageSlotsEmptyRequests(t *testing.T) {
	tb := NewTables(DefaultConfig())
	assert.Nil(t, tb.GenerateSalvageSlots(salvage.SlotRequest{RewardType: "salvage"}))

	none := NewTables(Config{})
	slots := none.GenerateSalvageSlots(salvage.SlotRequest{RewardType: "salvage", Count: 2})
	require.Len(t, slots, 2)
	assert.Equal(t, "empty", slots[0].Kind)
}

func TestValueScaling(t *testing.T) {
	cfg := Config{
		Tables:        []Table{{RewardType: "credits", Entries: []Entry{{ID: "chit", Kind: "currency", Value: 100, Weight: 1}}}},
		ZoneValue:     world.ZoneTable{Perimeter: 1, Mid: 1.5, Core: 2},
		TierValueStep: 0.5,
		RewardBonus:   2,
	}
	tb := NewTables(cfg)
	slots := tb.GenerateSalvageSlots(salvage.SlotRequest{RewardType: "credits", Tier: 3, Zone: world.ZoneCore, Count: 1, Seed: 1})
	assert.Equal(t, 400, slots[0].Content.Value)

	item := tb.GeneratePOIReward("credits", 1, world.ZoneMid, 5)
	assert.Equal(t, "chit", item.ID)
	assert.Equal(t, 300, item.Value)
}

func TestUnknownRewardTypeFallsBack(t *testing.T) {
	tb := NewTables(DefaultConfig())
	item := tb.GeneratePOIReward("mystery", 1, world.ZonePerimeter, 9)
	assert.NotEmpty(t, item.ID)
}
