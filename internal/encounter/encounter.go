// Package encounter decides when the player is intercepted: the two-roll
// signal-lock check for ambient encounters while moving, stationary POI
// ambushes, and which AI opponent shows up.
package encounter

import (
	"log/slog"

	"github.com/talgya/hexrun/internal/entropy"
	"github.com/talgya/hexrun/internal/run"
	"github.com/talgya/hexrun/internal/salvage"
	"github.com/talgya/hexrun/internal/threat"
	"github.com/talgya/hexrun/internal/world"
)

// Outcome is what a triggered encounter resolves into.
type Outcome uint8

const (
	OutcomeCombat Outcome = iota
	OutcomeLoot
	OutcomePendingConfirmation
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCombat:
		return "combat"
	case OutcomeLoot:
		return "loot"
	case OutcomePendingConfirmation:
		return "pending_confirmation"
	default:
		return "unknown"
	}
}

// Result is a triggered encounter. POI is nil for ambient encounters.
type Result struct {
	POI                  *world.POI    `json:"poi,omitempty"`
	Outcome              Outcome       `json:"outcome"`
	AIID                 string        `json:"ai_id,omitempty"`
	Reward               *salvage.Item `json:"reward,omitempty"`
	IsAmbush             bool          `json:"is_ambush"`
	RequiresConfirmation bool          `json:"requires_confirmation"`
}

// IsGuardian reports whether the result is a guardian objective.
func (r *Result) IsGuardian() bool {
	return r != nil && r.POI != nil && r.POI.Guardian
}

// Rewards generates one-shot POI rewards.
type Rewards interface {
	GeneratePOIReward(rewardType string, tier int, zone world.Zone, seed int64) salvage.Item
}

// RosterEntry is one weighted AI in a threat-band roster.
type RosterEntry struct {
	AIID   string  `mapstructure:"ai_id"`
	Weight float64 `mapstructure:"weight"`
}

// Rosters holds the AI roster per threat band.
type Rosters struct {
	Low    []RosterEntry `mapstructure:"low"`
	Medium []RosterEntry `mapstructure:"medium"`
	High   []RosterEntry `mapstructure:"high"`
}

// For returns the roster for band b.
func (r Rosters) For(b threat.Band) []RosterEntry {
	switch b {
	case threat.BandMedium:
		return r.Medium
	case threat.BandHigh:
		return r.High
	default:
		return r.Low
	}
}

// Config tunes encounter rolls. Values are percentages.
type Config struct {
	SignalLock  threat.Range      `mapstructure:"signal_lock"`  // Increment per hex moved
	AmbushBonus threat.BandRanges `mapstructure:"ambush_bonus"` // Added to a POI's base security
	Rosters     Rosters           `mapstructure:"rosters"`
}

// DefaultConfig returns the stock encounter tuning.
func DefaultConfig() Config {
	return Config{
		SignalLock: threat.Range{Min: 4, Max: 10},
		AmbushBonus: threat.BandRanges{
			Low:    threat.Range{Min: 0, Max: 0},
			Medium: threat.Range{Min: 5, Max: 10},
			High:   threat.Range{Min: 10, Max: 20},
		},
		Rosters: Rosters{
			Low: []RosterEntry{
				{AIID: "scout-drone", Weight: 5},
				{AIID: "picket-frigate", Weight: 3},
				{AIID: "raider-skiff", Weight: 2},
			},
			Medium: []RosterEntry{
				{AIID: "picket-frigate", Weight: 3},
				{AIID: "raider-skiff", Weight: 3},
				{AIID: "hunter-corvette", Weight: 2},
			},
			High: []RosterEntry{
				{AIID: "hunter-corvette", Weight: 3},
				{AIID: "enforcer-cruiser", Weight: 2},
				{AIID: "warden-interceptor", Weight: 1},
			},
		},
	}
}

// Engine rolls encounters.
type Engine struct {
	cfg     Config
	rewards Rewards
	log     *slog.Logger
}

// NewEngine creates an encounter engine.
func NewEngine(cfg Config, rewards Rewards, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{cfg: cfg, rewards: rewards, log: logger}
}

// RaiseSignalLock adds the seeded per-move increment to the signal lock and
// returns the new value. The increment is keyed by moveIndex.
func (e *Engine) RaiseSignalLock(s *run.State, moveIndex int) float64 {
	inc := e.cfg.SignalLock.Draw(entropy.Stream(s.Seed, "signal-lock", moveIndex))
	s.SignalLock = run.Clamp(s.SignalLock + inc)
	return s.SignalLock
}

// CheckMovementEncounter runs the two-roll check for the hex entered on
// moveIndex. The first roll must land under signalLock; only then is the
// hex's own chance rolled. Both rolls come from separate keyed streams.
func CheckMovementEncounter(seed int64, signalLock, hexChance float64, moveIndex int) bool {
	if signalLock <= 0 || hexChance <= 0 {
		return false
	}
	if entropy.Roll(seed, "lock-roll", moveIndex) >= run.Clamp(signalLock) {
		return false
	}
	return entropy.Roll(seed, "hex-roll", moveIndex) < run.Clamp(hexChance)
}

// MovementEncounter returns a combat result when the hex entered on
// moveIndex triggers an ambient encounter, nil otherwise.
func (e *Engine) MovementEncounter(s *run.State, hexChance float64, band threat.Band, moveIndex int) *Result {
	if !CheckMovementEncounter(s.Seed, s.SignalLock, hexChance, moveIndex) {
		return nil
	}
	aiID := e.SelectAI(s.Seed, band, moveIndex)
	e.log.Info("movement encounter",
		"move", moveIndex,
		"signal_lock", s.SignalLock,
		"hex_chance", hexChance,
		"ai", aiID,
	)
	return &Result{Outcome: OutcomeCombat, AIID: aiID}
}

// CheckPOIAmbush rolls a stationary ambush at poi against its base
// security plus a band bonus. The bonus and the roll are keyed by the
// POI's coordinates.
func (e *Engine) CheckPOIAmbush(seed int64, poi world.POI, band threat.Band) bool {
	q, r := poi.Coord.Q, poi.Coord.R
	bonus := e.cfg.AmbushBonus.For(band).Draw(entropy.Stream(seed, "ambush-bonus", q, r))
	threshold := run.Clamp(poi.BaseSecurity + bonus)
	return entropy.Roll(seed, "ambush-roll", q, r) < threshold
}

// SelectAI draws an opponent from the band's roster. key further seeds the
// draw, e.g. POI coordinates for per-location determinism. Returns "" for
// an empty roster.
func (e *Engine) SelectAI(seed int64, band threat.Band, key ...int) string {
	roster := e.cfg.Rosters.For(band)
	weights := make([]float64, len(roster))
	for i, entry := range roster {
		weights[i] = entry.Weight
	}
	idx := entropy.Weighted(entropy.Stream(seed, "ai-"+band.String(), key...), weights)
	if idx < 0 {
		return ""
	}
	return roster[idx].AIID
}

// EvaluatePOI decides what happens on arrival at poi. Guardians always
// wait for confirmation; an ambush becomes combat; salvage-less POIs pay
// out a reward directly. A nil result means salvage may begin.
func (e *Engine) EvaluatePOI(s *run.State, poi world.POI, zone world.Zone, band threat.Band) *Result {
	p := poi
	q, r := poi.Coord.Q, poi.Coord.R
	switch {
	case poi.Guardian:
		return &Result{
			POI:                  &p,
			Outcome:              OutcomePendingConfirmation,
			AIID:                 poi.GuardianAI,
			RequiresConfirmation: true,
		}
	case e.CheckPOIAmbush(s.Seed, poi, band):
		aiID := e.SelectAI(s.Seed, band, q, r)
		e.log.Info("poi ambush", "poi", poi.Name, "ai", aiID, "band", band)
		return &Result{POI: &p, Outcome: OutcomeCombat, AIID: aiID, IsAmbush: true}
	case poi.DisallowSalvage:
		item := e.POIReward(s, poi, zone)
		return &Result{POI: &p, Outcome: OutcomeLoot, Reward: &item}
	}
	return nil
}

// POIReward draws the one-shot reward for poi, keyed by its coordinates.
func (e *Engine) POIReward(s *run.State, poi world.POI, zone world.Zone) salvage.Item {
	return e.rewards.GeneratePOIReward(poi.RewardType, s.Tier, zone, entropy.Key(s.Seed, "poi-reward", poi.Coord.Q, poi.Coord.R))
}

// ApplyVictory runs the post-victory hook: the signal lock resets, except
// after a guardian objective where it is kept.
func ApplyVictory(s *run.State, res *Result) {
	if res.IsGuardian() {
		return
	}
	s.SignalLock = 0
}
