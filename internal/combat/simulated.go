// Package combat provides a seeded stand-in for the card-combat engine:
// fights resolve to a win or a loss by opponent strength and tier.
package combat

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/talgya/hexrun/internal/entropy"
	"github.com/talgya/hexrun/internal/run"
	"github.com/talgya/hexrun/internal/travel"
)

// Strength rates one AI opponent. Higher is harder.
type Strength struct {
	AIID     string  `mapstructure:"ai_id"`
	Strength float64 `mapstructure:"strength"`
}

// Config tunes simulated fights. Chances are percentages.
type Config struct {
	BaseWinChance   float64       `mapstructure:"base_win_chance"`
	DefaultStrength float64       `mapstructure:"default_strength"`
	TierPenalty     float64       `mapstructure:"tier_penalty"`
	Strengths       []Strength    `mapstructure:"strengths"`
	Duration        time.Duration `mapstructure:"duration"`
}

// DefaultConfig returns the stock fight odds.
func DefaultConfig() Config {
	return Config{
		BaseWinChance:   90,
		DefaultStrength: 10,
		TierPenalty:     5,
		Strengths: []Strength{
			{AIID: "scout-drone", Strength: 5},
			{AIID: "picket-frigate", Strength: 10},
			{AIID: "raider-skiff", Strength: 12},
			{AIID: "hunter-corvette", Strength: 18},
			{AIID: "enforcer-cruiser", Strength: 25},
			{AIID: "warden-interceptor", Strength: 30},
			{AIID: "sentinel-warden", Strength: 30},
			{AIID: "sentinel-lancer", Strength: 32},
			{AIID: "bastion-prime", Strength: 38},
			{AIID: "bastion-reaver", Strength: 40},
			{AIID: "dreadnought-omega", Strength: 50},
		},
		Duration: 2 * time.Second,
	}
}

// Simulated resolves fights with a keyed roll.
type Simulated struct {
	cfg    Config
	fights atomic.Int64
	log    *slog.Logger
}

// NewSimulated creates a simulated combat collaborator.
func NewSimulated(cfg Config, logger *slog.Logger) *Simulated {
	if logger == nil {
		logger = slog.Default()
	}
	return &Simulated{cfg: cfg, log: logger}
}

// WinChance returns the percent chance of beating aiID at tier.
func (c *Simulated) WinChance(aiID string, tier int) float64 {
	strength := c.cfg.DefaultStrength
	for _, s := range c.cfg.Strengths {
		if s.AIID == aiID {
			strength = s.Strength
			break
		}
	}
	return run.Clamp(c.cfg.BaseWinChance - strength - c.cfg.TierPenalty*float64(max(tier-1, 0)))
}

// Initiate fights aiID. The fight takes Duration and can be cut short by
// ctx.
func (c *Simulated) Initiate(ctx context.Context, aiID string, snapshot run.State) (travel.CombatOutcome, error) {
	n := int(c.fights.Add(1))
	if c.cfg.Duration > 0 {
		timer := time.NewTimer(c.cfg.Duration)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return travel.CombatOutcome{}, ctx.Err()
		case <-timer.C:
		}
	}

	chance := c.WinChance(aiID, snapshot.Tier)
	roll := entropy.Roll(snapshot.Seed, "combat:"+aiID, snapshot.MoveCount, n)
	out := travel.CombatOutcome{Victory: roll < chance}
	c.log.Info("combat resolved", "ai", aiID, "fight", n, "chance", chance, "victory", out.Victory)
	return out, nil
}
