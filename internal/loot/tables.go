// Package loot is the table-driven reward generator behind salvage slots
// and one-shot POI payouts.
package loot

import (
	"math"
	"math/rand"

	"github.com/talgya/hexrun/internal/entropy"
	"github.com/talgya/hexrun/internal/salvage"
	"github.com/talgya/hexrun/internal/world"
)

// Entry is one weighted line in a loot table.
type Entry struct {
	ID      string  `mapstructure:"id"`
	Name    string  `mapstructure:"name"`
	Kind    string  `mapstructure:"kind"`
	Rarity  string  `mapstructure:"rarity"`
	Value   int     `mapstructure:"value"`
	Weight  float64 `mapstructure:"weight"`
	MinTier int     `mapstructure:"min_tier"`
}

// Table is the loot table for one reward type.
type Table struct {
	RewardType string  `mapstructure:"reward_type"`
	Entries    []Entry `mapstructure:"entries"`
}

// Config holds every loot table plus value scaling.
type Config struct {
	Tables        []Table         `mapstructure:"tables"`
	ZoneValue     world.ZoneTable `mapstructure:"zone_value"`
	TierValueStep float64         `mapstructure:"tier_value_step"` // Fractional value gain per tier above 1
	RewardBonus   float64         `mapstructure:"reward_bonus"`    // Multiplier for one-shot POI rewards
}

// DefaultConfig returns the stock loot tables.
func DefaultConfig() Config {
	return Config{
		Tables: []Table{
			{RewardType: "salvage", Entries: []Entry{
				{ID: "scrap-plating", Name: "Scrap Plating", Kind: "material", Rarity: "common", Value: 10, Weight: 6},
				{ID: "power-coupling", Name: "Power Coupling", Kind: "component", Rarity: "common", Value: 18, Weight: 4},
				{ID: "drone-chassis", Name: "Drone Chassis", Kind: "drone", Rarity: "rare", Value: 60, Weight: 1, MinTier: 2},
			}},
			{RewardType: "supplies", Entries: []Entry{
				{ID: "fuel-cell", Name: "Fuel Cell", Kind: "consumable", Rarity: "common", Value: 12, Weight: 5},
				{ID: "repair-kit", Name: "Repair Kit", Kind: "consumable", Rarity: "common", Value: 20, Weight: 3},
				{ID: "stealth-charge", Name: "Stealth Charge", Kind: "consumable", Rarity: "uncommon", Value: 35, Weight: 1},
			}},
			{RewardType: "tech", Entries: []Entry{
				{ID: "data-core", Name: "Data Core", Kind: "component", Rarity: "uncommon", Value: 40, Weight: 4},
				{ID: "signal-scrambler", Name: "Signal Scrambler", Kind: "card", Rarity: "rare", Value: 80, Weight: 2},
				{ID: "prototype-module", Name: "Prototype Module", Kind: "card", Rarity: "epic", Value: 150, Weight: 1, MinTier: 3},
			}},
			{RewardType: "credits", Entries: []Entry{
				{ID: "credit-chit", Name: "Credit Chit", Kind: "currency", Rarity: "common", Value: 50, Weight: 3},
				{ID: "bearer-bond", Name: "Bearer Bond", Kind: "currency", Rarity: "uncommon", Value: 120, Weight: 1},
			}},
		},
		ZoneValue:     world.ZoneTable{Perimeter: 1, Mid: 1.3, Core: 1.7},
		TierValueStep: 0.25,
		RewardBonus:   2,
	}
}

// Tables draws rewards from Config. Every draw is seeded by the caller so
// the same POI always yields the same contents.
type Tables struct {
	cfg Config
}

// NewTables creates a reward generator.
func NewTables(cfg Config) *Tables {
	return &Tables{cfg: cfg}
}

// GenerateSalvageSlots fills req.Count slots from the reward type's table.
func (t *Tables) GenerateSalvageSlots(req salvage.SlotRequest) []salvage.Slot {
	if req.Count <= 0 {
		return nil
	}
	r := rand.New(rand.NewSource(req.Seed))
	slots := make([]salvage.Slot, req.Count)
	for i := range slots {
		item, ok := t.draw(r, req.RewardType, req.Tier, req.Zone, 1)
		if !ok {
			slots[i] = salvage.Slot{Kind: "empty"}
			continue
		}
		slots[i] = salvage.Slot{Kind: item.Kind, Content: item}
	}
	return slots
}

// GeneratePOIReward draws a single boosted reward.
func (t *Tables) GeneratePOIReward(rewardType string, tier int, zone world.Zone, seed int64) salvage.Item {
	item, _ := t.draw(rand.New(rand.NewSource(seed)), rewardType, tier, zone, t.cfg.RewardBonus)
	return item
}

func (t *Tables) draw(r *rand.Rand, rewardType string, tier int, zone world.Zone, bonus float64) (salvage.Item, bool) {
	table, ok := t.table(rewardType)
	if !ok {
		return salvage.Item{}, false
	}
	weights := make([]float64, len(table.Entries))
	for i, e := range table.Entries {
		if e.MinTier <= tier {
			weights[i] = e.Weight
		}
	}
	idx := entropy.Weighted(r, weights)
	if idx < 0 {
		return salvage.Item{}, false
	}
	e := table.Entries[idx]

	scale := t.cfg.ZoneValue.For(zone) * (1 + t.cfg.TierValueStep*float64(max(tier-1, 0)))
	if bonus > 0 {
		scale *= bonus
	}
	if scale <= 0 || math.IsNaN(scale) {
		scale = 1
	}
	return salvage.Item{
		ID:     e.ID,
		Name:   e.Name,
		Kind:   e.Kind,
		Rarity: e.Rarity,
		Value:  int(math.Round(float64(e.Value) * scale)),
	}, true
}

// table returns the table for rewardType, falling back to the first table
// for unknown types.
func (t *Tables) table(rewardType string) (Table, bool) {
	for _, tb := range t.cfg.Tables {
		if tb.RewardType == rewardType {
			return tb, true
		}
	}
	if len(t.cfg.Tables) > 0 {
		return t.cfg.Tables[0], true
	}
	return Table{}, false
}
