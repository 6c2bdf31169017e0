// Package persistence provides SQLite-backed run state storage.
package persistence

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/hexrun/internal/run"
	"github.com/talgya/hexrun/internal/world"
)

// ErrNoMap is returned when a run has no saved map.
var ErrNoMap = errors.New("no map saved for run")

// Store is a write-through run.Store. The live state is cached in memory;
// every Start, Update and End is committed to SQLite before it becomes
// visible.
type Store struct {
	conn *sqlx.DB
	log  *slog.Logger

	mu     sync.Mutex
	state  run.State
	active bool
}

// RunSummary is one row of run history.
type RunSummary struct {
	ID        string     `db:"id" json:"id"`
	Seed      int64      `db:"seed" json:"seed"`
	Tier      int        `db:"tier" json:"tier"`
	MapTypeID string     `db:"map_type" json:"map_type_id"`
	Active    bool       `db:"active" json:"active"`
	Failed    bool       `db:"failed" json:"failed"`
	StartedAt time.Time  `db:"started_at" json:"started_at"`
	EndedAt   *time.Time `db:"ended_at" json:"ended_at,omitempty"`
}

// Open opens or creates a SQLite database at the given path and reloads
// the run left active by a previous process, if any.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	conn.SetMaxOpenConns(1)

	s := &Store{conn: conn, log: logger}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	if err := s.restore(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("restore: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		seed INTEGER NOT NULL,
		tier INTEGER NOT NULL,
		map_type TEXT NOT NULL,
		active INTEGER NOT NULL,
		failed INTEGER NOT NULL DEFAULT 0,
		state_json TEXT NOT NULL,
		map_json BLOB,
		started_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		ended_at TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_runs_active ON runs(active);
	`
	_, err := s.conn.Exec(schema)
	return err
}

func (s *Store) restore() error {
	var raw string
	err := s.conn.Get(&raw, "SELECT state_json FROM runs WHERE active = 1 ORDER BY started_at DESC LIMIT 1")
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return err
	}
	var st run.State
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		return fmt.Errorf("decode run state: %w", err)
	}
	s.state, s.active = st, true
	s.log.Info("run restored", "run", st.ID, "detection", st.Detection, "moves", st.MoveCount)
	return nil
}

// Get returns a copy of the current state.
func (s *Store) Get() (run.State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return run.State{}, false
	}
	return s.state.Clone(), true
}

// IsActive reports whether a run is in progress.
func (s *Store) IsActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Start inserts a new active run.
func (s *Store) Start(initial run.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active {
		return run.ErrRunActive
	}
	st := initial.Clone()
	st.Detection = run.Clamp(st.Detection)
	st.SignalLock = run.Clamp(st.SignalLock)
	if st.ID == "" {
		return errors.New("run state has no id")
	}

	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode run state: %w", err)
	}
	now := time.Now().UTC()
	_, err = s.conn.Exec(`INSERT INTO runs
		(id, seed, tier, map_type, active, failed, state_json, started_at, updated_at)
		VALUES (?, ?, ?, ?, 1, 0, ?, ?, ?)`,
		st.ID, st.Seed, st.Tier, st.MapTypeID, string(data), now, now,
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", st.ID, err)
	}
	s.state, s.active = st, true
	return nil
}

// Update applies fn to a copy of the live state, commits it and only then
// makes it visible. A failed write leaves the cached state untouched.
func (s *Store) Update(fn func(*run.State)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return run.ErrNoActiveRun
	}
	next := s.state.Clone()
	fn(&next)
	next.Detection = run.Clamp(next.Detection)
	next.SignalLock = run.Clamp(next.SignalLock)

	if err := s.write(next); err != nil {
		return err
	}
	s.state = next
	return nil
}

func (s *Store) write(st run.State) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode run state: %w", err)
	}
	_, err = s.conn.Exec(
		"UPDATE runs SET state_json = ?, failed = ?, updated_at = ? WHERE id = ?",
		string(data), st.Failed, time.Now().UTC(), st.ID,
	)
	if err != nil {
		return fmt.Errorf("update run %s: %w", st.ID, err)
	}
	return nil
}

// End marks the active run finished.
func (s *Store) End() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return run.ErrNoActiveRun
	}
	_, err := s.conn.Exec("UPDATE runs SET active = 0, ended_at = ? WHERE id = ?", time.Now().UTC(), s.state.ID)
	if err != nil {
		return fmt.Errorf("end run %s: %w", s.state.ID, err)
	}
	s.log.Info("run ended",
		"run", s.state.ID,
		"moves", humanize.Comma(int64(s.state.MoveCount)),
		"loot", len(s.state.Loot),
		"failed", s.state.Failed,
	)
	s.active = false
	return nil
}

// SaveMap stores the generated map alongside its run as an opaque blob.
func (s *Store) SaveMap(runID string, m *world.Map) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode map: %w", err)
	}
	res, err := s.conn.Exec("UPDATE runs SET map_json = ? WHERE id = ?", data, runID)
	if err != nil {
		return fmt.Errorf("save map for %s: %w", runID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("save map for %s: %w", runID, run.ErrNoActiveRun)
	}
	s.log.Debug("map saved", "run", runID, "size", humanize.Bytes(uint64(len(data))))
	return nil
}

// LoadMap returns the map saved for runID.
func (s *Store) LoadMap(runID string) (*world.Map, error) {
	var data []byte
	err := s.conn.Get(&data, "SELECT map_json FROM runs WHERE id = ?", runID)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && len(data) == 0) {
		return nil, ErrNoMap
	}
	if err != nil {
		return nil, err
	}
	var m world.Map
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode map: %w", err)
	}
	return &m, nil
}

// RecentRuns returns the most recent runs, newest first.
func (s *Store) RecentRuns(limit int) ([]RunSummary, error) {
	var runs []RunSummary
	err := s.conn.Select(&runs,
		`SELECT id, seed, tier, map_type, active, failed, started_at, ended_at
		 FROM runs ORDER BY started_at DESC LIMIT ?`,
		limit,
	)
	return runs, err
}
