// Package salvage implements progressive slot-reveal looting at a POI with
// an encounter chance that rises after every safe reveal.
package salvage

import (
	"errors"
	"log/slog"
	"math"

	"github.com/talgya/hexrun/internal/entropy"
	"github.com/talgya/hexrun/internal/threat"
	"github.com/talgya/hexrun/internal/world"
)

var (
	// ErrFullyLooted is returned when every slot has been consumed.
	ErrFullyLooted = errors.New("salvage fully looted")
	// ErrAwaitingCombat is returned when an encounter is pending resolution.
	ErrAwaitingCombat = errors.New("salvage encounter awaiting combat")
)

// Item is a piece of loot.
type Item struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Kind   string `json:"kind"`
	Rarity string `json:"rarity"`
	Value  int    `json:"value"`
}

// Slot is one hidden loot position at a POI.
type Slot struct {
	Kind     string `json:"kind"`
	Content  Item   `json:"content"`
	Revealed bool   `json:"revealed"`
}

// State tracks one salvage operation. Created on POI arrival, discarded on
// leave or full consumption.
type State struct {
	Seed                   int64      `json:"seed"`
	POI                    world.POI  `json:"poi"`
	Zone                   world.Zone `json:"zone"`
	TotalSlots             int        `json:"total_slots"`
	Slots                  []Slot     `json:"slots"`
	CurrentSlotIndex       int        `json:"current_slot_index"`
	CurrentEncounterChance float64    `json:"current_encounter_chance"`
	EncounterTriggered     bool       `json:"encounter_triggered"`
	AlertApplied           bool       `json:"alert_applied"` // High-Alert bonus already folded into the running chance
}

// Clone returns a deep copy.
func (s State) Clone() State {
	out := s
	out.Slots = append([]Slot(nil), s.Slots...)
	return out
}

// SlotRequest asks the reward collaborator for a POI's slots.
type SlotRequest struct {
	RewardType string
	Tier       int
	Zone       world.Zone
	Count      int
	Seed       int64 // Keyed per POI; identical requests yield identical slots
}

// Rewards generates salvage slot contents.
type Rewards interface {
	GenerateSalvageSlots(req SlotRequest) []Slot
}

// Config tunes the salvage risk curve. Chances are percentages.
type Config struct {
	BaseEncounterChance float64           `mapstructure:"base_encounter_chance"`
	BandBonus           threat.BandRanges `mapstructure:"band_bonus"`
	Increment           threat.Range      `mapstructure:"increment"`
}

// DefaultConfig returns the stock salvage tuning.
func DefaultConfig() Config {
	return Config{
		BaseEncounterChance: 10,
		BandBonus: threat.BandRanges{
			Low:    threat.Range{Min: 0, Max: 0},
			Medium: threat.Range{Min: 5, Max: 10},
			High:   threat.Range{Min: 10, Max: 20},
		},
		Increment: threat.Range{Min: 5, Max: 12},
	}
}

// AttemptResult describes one slot reveal.
type AttemptResult struct {
	SlotIndex   int     `json:"slot_index"`
	Slot        Slot    `json:"slot"`
	Encounter   bool    `json:"encounter"`
	Roll        float64 `json:"roll"`
	Chance      float64 `json:"chance"`
	FullyLooted bool    `json:"fully_looted"`
}

// Engine runs salvage operations.
type Engine struct {
	cfg     Config
	rewards Rewards
	log     *slog.Logger
}

// NewEngine creates a salvage engine backed by the reward collaborator.
func NewEngine(cfg Config, rewards Rewards, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{cfg: cfg, rewards: rewards, log: logger}
}

// Initialize starts salvage at poi. Returns nil when the POI disallows
// salvage (guardian objectives, caches). The starting chance is the base
// plus a threat-band bonus keyed by the POI's coordinates.
func (e *Engine) Initialize(seed int64, poi world.POI, zone world.Zone, tier int, band threat.Band) *State {
	if poi.DisallowSalvage || poi.Guardian {
		return nil
	}
	q, r := poi.Coord.Q, poi.Coord.R
	slots := e.rewards.GenerateSalvageSlots(SlotRequest{
		RewardType: poi.RewardType,
		Tier:       tier,
		Zone:       zone,
		Count:      poi.SlotCount,
		Seed:       entropy.Key(seed, "salvage-slots", q, r),
	})
	for i := range slots {
		slots[i].Revealed = false
	}

	bonus := e.cfg.BandBonus.For(band).Draw(entropy.Stream(seed, "salvage-start", q, r))
	s := &State{
		Seed:                   seed,
		POI:                    poi,
		Zone:                   zone,
		TotalSlots:             len(slots),
		Slots:                  slots,
		CurrentEncounterChance: clampChance(e.cfg.BaseEncounterChance + bonus),
	}
	e.log.Debug("salvage initialized",
		"poi", poi.Name,
		"slots", s.TotalSlots,
		"chance", s.CurrentEncounterChance,
		"band", band,
	)
	return s
}

// AttemptSlot reveals the current slot and rolls for an encounter keyed by
// the slot index. highAlertBonus is added to this roll's chance unless the
// alert was already folded in by ResetAfterCombat. A safe roll raises the
// running chance and advances; a triggered roll halts advancement so the
// slot stays revealed but is not counted again.
func (e *Engine) AttemptSlot(s *State, highAlertBonus float64) (AttemptResult, error) {
	if IsFullyLooted(s) {
		return AttemptResult{FullyLooted: true}, ErrFullyLooted
	}
	if s.EncounterTriggered {
		return AttemptResult{}, ErrAwaitingCombat
	}

	idx := s.CurrentSlotIndex
	q, r := s.POI.Coord.Q, s.POI.Coord.R
	s.Slots[idx].Revealed = true

	chance := s.CurrentEncounterChance
	if !s.AlertApplied {
		chance += highAlertBonus
	}
	chance = clampChance(chance)
	roll := entropy.Roll(s.Seed, "salvage-roll", q, r, idx)

	res := AttemptResult{
		SlotIndex: idx,
		Slot:      s.Slots[idx],
		Roll:      roll,
		Chance:    chance,
	}
	if roll < chance {
		s.EncounterTriggered = true
		res.Encounter = true
		e.log.Info("salvage encounter triggered", "poi", s.POI.Name, "slot", idx, "roll", roll, "chance", chance)
		return res, nil
	}

	inc := e.cfg.Increment.Draw(entropy.Stream(s.Seed, "salvage-increment", q, r, idx))
	s.CurrentEncounterChance = clampChance(s.CurrentEncounterChance + inc)
	s.CurrentSlotIndex = min(idx+1, s.TotalSlots)
	res.FullyLooted = IsFullyLooted(s)
	return res, nil
}

// ResetAfterCombat re-enables salvage after a won encounter. The triggering
// slot is already revealed, so the pointer moves past it exactly once
// before the High-Alert bonus is added to the running chance.
func (e *Engine) ResetAfterCombat(s *State, highAlertBonus float64) {
	if s.CurrentSlotIndex < s.TotalSlots && s.Slots[s.CurrentSlotIndex].Revealed {
		s.CurrentSlotIndex++
	}
	s.CurrentSlotIndex = min(s.CurrentSlotIndex, s.TotalSlots)
	s.CurrentEncounterChance = clampChance(s.CurrentEncounterChance + highAlertBonus)
	s.AlertApplied = true
	s.EncounterTriggered = false
}

// IsFullyLooted reports whether every slot has been consumed.
func IsFullyLooted(s *State) bool {
	return s.CurrentSlotIndex >= s.TotalSlots
}

// RevealedLoot returns the contents of every revealed slot.
func RevealedLoot(s *State) []Item {
	var items []Item
	for _, slot := range s.Slots {
		if slot.Revealed {
			items = append(items, slot.Content)
		}
	}
	return items
}

func clampChance(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(100, v))
}
