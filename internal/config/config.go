// Package config loads tuning tables with viper and process settings from
// the environment.
package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/viper"

	"github.com/talgya/hexrun/internal/alert"
	"github.com/talgya/hexrun/internal/combat"
	"github.com/talgya/hexrun/internal/detection"
	"github.com/talgya/hexrun/internal/encounter"
	"github.com/talgya/hexrun/internal/loot"
	"github.com/talgya/hexrun/internal/salvage"
	"github.com/talgya/hexrun/internal/threat"
	"github.com/talgya/hexrun/internal/travel"
	"github.com/talgya/hexrun/internal/world"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "HEXRUN"

// Tuning holds every gameplay table. Unset keys keep their defaults.
type Tuning struct {
	Generation world.GenConfig  `mapstructure:"generation"`
	Detection  detection.Config `mapstructure:"detection"`
	Encounter  encounter.Config `mapstructure:"encounter"`
	Salvage    salvage.Config   `mapstructure:"salvage"`
	AlertBonus threat.Range     `mapstructure:"alert_bonus"`
	Loot       loot.Config      `mapstructure:"loot"`
	Combat     combat.Config    `mapstructure:"combat"`
	Travel     travel.Config    `mapstructure:"travel"`
}

// DefaultTuning returns the stock tables.
func DefaultTuning() Tuning {
	return Tuning{
		Generation: world.DefaultGenConfig(),
		Detection:  detection.DefaultConfig(),
		Encounter:  encounter.DefaultConfig(),
		Salvage:    salvage.DefaultConfig(),
		AlertBonus: alert.DefaultBonus,
		Loot:       loot.DefaultConfig(),
		Combat:     combat.DefaultConfig(),
		Travel:     travel.DefaultConfig(),
	}
}

// Load reads tuning from path (JSON, YAML or TOML by extension) over the
// defaults. An empty path uses the defaults. Scalar knobs can be
// overridden by environment, e.g. HEXRUN_TRAVEL_MOVE_DELAY=50ms.
func Load(path string) (Tuning, error) {
	t := DefaultTuning()

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, t)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Tuning{}, fmt.Errorf("read config %s: %w", path, err)
		}
		slog.Info("tuning loaded", "file", v.ConfigFileUsed())
	}

	if err := v.Unmarshal(&t); err != nil {
		return Tuning{}, fmt.Errorf("decode config: %w", err)
	}
	return t, nil
}

// setDefaults registers the scalar keys so AutomaticEnv can see them.
func setDefaults(v *viper.Viper, t Tuning) {
	v.SetDefault("generation.max_attempts", t.Generation.MaxAttempts)

	v.SetDefault("detection.base_hex_cost", t.Detection.BaseHexCost)
	v.SetDefault("detection.gate_multiplier", t.Detection.GateMultiplier)
	v.SetDefault("detection.poi_multiplier", t.Detection.POIMultiplier)
	v.SetDefault("detection.core_gradient", t.Detection.CoreGradient)
	v.SetDefault("detection.thresholds.medium", t.Detection.Thresholds.Medium)
	v.SetDefault("detection.thresholds.high", t.Detection.Thresholds.High)

	v.SetDefault("encounter.signal_lock.min", t.Encounter.SignalLock.Min)
	v.SetDefault("encounter.signal_lock.max", t.Encounter.SignalLock.Max)

	v.SetDefault("salvage.base_encounter_chance", t.Salvage.BaseEncounterChance)
	v.SetDefault("salvage.increment.min", t.Salvage.Increment.Min)
	v.SetDefault("salvage.increment.max", t.Salvage.Increment.Max)

	v.SetDefault("alert_bonus.min", t.AlertBonus.Min)
	v.SetDefault("alert_bonus.max", t.AlertBonus.Max)

	v.SetDefault("loot.tier_value_step", t.Loot.TierValueStep)
	v.SetDefault("loot.reward_bonus", t.Loot.RewardBonus)

	v.SetDefault("combat.base_win_chance", t.Combat.BaseWinChance)
	v.SetDefault("combat.tier_penalty", t.Combat.TierPenalty)
	v.SetDefault("combat.duration", t.Combat.Duration)

	v.SetDefault("travel.scan_delay", t.Travel.ScanDelay)
	v.SetDefault("travel.move_delay", t.Travel.MoveDelay)
	v.SetDefault("travel.poll_interval", t.Travel.PollInterval)
}

// Env is the process configuration.
type Env struct {
	DBPath     string `env:"HEXRUN_DB" envDefault:"hexrun.db"`
	Addr       string `env:"HEXRUN_ADDR" envDefault:":8080"`
	AdminKey   string `env:"HEXRUN_ADMIN_KEY"`
	ConfigFile string `env:"HEXRUN_CONFIG"`
	LogLevel   string `env:"HEXRUN_LOG_LEVEL" envDefault:"info"`
	Seed       int64  `env:"HEXRUN_SEED"` // 0 = random
	Tier       int    `env:"HEXRUN_TIER" envDefault:"1"`
	MapType    string `env:"HEXRUN_MAP_TYPE" envDefault:"standard"`
	EntryGate  int    `env:"HEXRUN_ENTRY_GATE"`
}

// ParseEnv loads the process configuration from the environment.
func ParseEnv() (Env, error) {
	var e Env
	if err := env.Parse(&e); err != nil {
		return Env{}, fmt.Errorf("parse env: %w", err)
	}
	return e, nil
}

// Level maps LogLevel to a slog level, defaulting to info.
func (e Env) Level() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(e.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return l
}
