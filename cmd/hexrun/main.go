// Command hexrun serves a single expedition run over HTTP.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"github.com/talgya/hexrun/internal/alert"
	"github.com/talgya/hexrun/internal/api"
	"github.com/talgya/hexrun/internal/combat"
	"github.com/talgya/hexrun/internal/config"
	"github.com/talgya/hexrun/internal/detection"
	"github.com/talgya/hexrun/internal/encounter"
	"github.com/talgya/hexrun/internal/entropy"
	"github.com/talgya/hexrun/internal/escape"
	"github.com/talgya/hexrun/internal/loot"
	"github.com/talgya/hexrun/internal/movement"
	"github.com/talgya/hexrun/internal/persistence"
	"github.com/talgya/hexrun/internal/run"
	"github.com/talgya/hexrun/internal/salvage"
	"github.com/talgya/hexrun/internal/travel"
	"github.com/talgya/hexrun/internal/world"
)

func main() {
	env, err := config.ParseEnv()
	if err != nil {
		slog.Error("failed to read environment", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(newLogger(os.Stdout, env.Level()))

	if err := serve(env); err != nil {
		slog.Error("hexrun stopped", "error", err)
		os.Exit(1)
	}
}

// newLogger writes text to a terminal and JSON everywhere else.
func newLogger(w *os.File, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if isatty.IsTerminal(w.Fd()) || isatty.IsCygwinTerminal(w.Fd()) {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func serve(env config.Env) error {
	tuning, err := config.Load(env.ConfigFile)
	if err != nil {
		return err
	}

	// ── Database ──────────────────────────────────────────────────────
	store, err := persistence.Open(env.DBPath, nil)
	if err != nil {
		return err
	}
	defer store.Close()
	slog.Info("database opened", "path", env.DBPath)

	// ── Map and run (resumed if one was left active) ─────────────────
	m, err := loadOrStart(store, tuning, env)
	if err != nil {
		return err
	}
	st, _ := store.Get()
	slog.Info("run ready",
		"run", st.ID,
		"seed", st.Seed,
		"tier", st.Tier,
		"map", m.TypeID,
		"hexes", humanize.Comma(int64(m.HexCount())),
		"pois", len(m.POIs),
		"detection", st.Detection,
	)

	// ── Expedition core ──────────────────────────────────────────────
	tables := loot.NewTables(tuning.Loot)
	planner := movement.NewPlanner(m, tuning.Detection, nil)
	routes := escape.NewCalculator(planner)
	orch := travel.NewOrchestrator(travel.Deps{
		Map:        m,
		Store:      store,
		Planner:    planner,
		Routes:     routes,
		Detection:  detection.NewService(tuning.Detection, store, nil),
		Encounters: encounter.NewEngine(tuning.Encounter, tables, nil),
		Salvage:    salvage.NewEngine(tuning.Salvage, tables, nil),
		Alerts:     alert.NewTracker(tuning.AlertBonus),
		Combat:     combat.NewSimulated(tuning.Combat, nil),
	}, tuning.Travel, nil)
	orch.OnSuspend = func(s *travel.Suspension) {
		slog.Info("awaiting decision", "id", s.ID, "kind", s.Kind)
	}

	srv := &api.Server{
		Map:        m,
		Store:      store,
		Planner:    planner,
		Routes:     routes,
		Travel:     orch,
		Thresholds: tuning.Detection.Thresholds,
		AdminKey:   env.AdminKey,
		Limiter:    api.NewRateLimiter(120, time.Minute),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return srv.Run(ctx, env.Addr)
}

// loadOrStart resumes the active run with its saved map, or generates a
// map and starts a new run on it. A failed run left active is closed
// first.
func loadOrStart(store *persistence.Store, tuning config.Tuning, env config.Env) (*world.Map, error) {
	if st, ok := store.Get(); ok && st.Failed {
		slog.Warn("closing failed run", "run", st.ID, "detection", st.Detection)
		if err := store.End(); err != nil {
			return nil, err
		}
	}
	if st, ok := store.Get(); ok {
		m, err := store.LoadMap(st.ID)
		if err == nil {
			return m, nil
		}
		if !errors.Is(err, persistence.ErrNoMap) {
			return nil, err
		}
		slog.Warn("active run has no saved map, regenerating", "run", st.ID)
		return world.Generate(tuning.Generation, st.Seed, st.Tier, st.MapTypeID)
	}

	seed := env.Seed
	if seed == 0 {
		seed = entropy.NewSeed()
	}
	m, err := world.Generate(tuning.Generation, seed, env.Tier, env.MapType)
	if err != nil {
		return nil, err
	}
	initial, err := run.NewState(run.Config{Seed: seed, Tier: env.Tier, MapTypeID: env.MapType, EntryGate: env.EntryGate}, m)
	if err != nil {
		return nil, err
	}
	if err := store.Start(initial); err != nil {
		return nil, err
	}
	if err := store.SaveMap(initial.ID, m); err != nil {
		return nil, err
	}
	return m, nil
}
