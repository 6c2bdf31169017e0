package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/hexrun/internal/alert"
	"github.com/talgya/hexrun/internal/combat"
	"github.com/talgya/hexrun/internal/detection"
	"github.com/talgya/hexrun/internal/encounter"
	"github.com/talgya/hexrun/internal/escape"
	"github.com/talgya/hexrun/internal/loot"
	"github.com/talgya/hexrun/internal/movement"
	"github.com/talgya/hexrun/internal/run"
	"github.com/talgya/hexrun/internal/salvage"
	"github.com/talgya/hexrun/internal/threat"
	"github.com/talgya/hexrun/internal/travel"
	"github.com/talgya/hexrun/internal/world"
)

var objective = world.HexCoord{Q: 2}

// apiMap is a radius-3 map with two gates and a guarded objective.
func apiMap() *world.Map {
	m := world.NewMap(3)
	for id, c := range []world.HexCoord{{Q: 3}, {Q: -3}} {
		gid := id
		h := m.Get(c)
		h.Kind = world.KindGate
		h.GateID = &gid
		m.Gates = append(m.Gates, world.Gate{ID: id, Coord: c})
	}
	poi := world.POI{Coord: objective, Name: "Relay", Guardian: true, GuardianAI: "sentinel-warden"}
	h := m.Get(poi.Coord)
	h.Kind = world.KindPOI
	h.POI = &poi
	m.POIs = []world.POI{poi}
	return m
}

func newTestServer(t *testing.T, adminKey string, withRun bool) (*Server, *run.MemoryStore) {
	t.Helper()
	m := apiMap()
	store := run.NewMemoryStore()
	if withRun {
		require.NoError(t, store.Start(run.State{ID: "run-1", Seed: 21, Tier: 1}))
	}

	encCfg := encounter.DefaultConfig()
	encCfg.SignalLock = threat.Range{}
	combatCfg := combat.DefaultConfig()
	combatCfg.Duration = 0
	combatCfg.BaseWinChance = 200

	planner := movement.NewPlanner(m, detection.DefaultConfig(), nil)
	routes := escape.NewCalculator(planner)
	tables := loot.NewTables(loot.DefaultConfig())
	orch := travel.NewOrchestrator(travel.Deps{
		Map:        m,
		Store:      store,
		Planner:    planner,
		Routes:     routes,
		Detection:  detection.NewService(detection.DefaultConfig(), store, nil),
		Encounters: encounter.NewEngine(encCfg, tables, nil),
		Salvage:    salvage.NewEngine(salvage.DefaultConfig(), tables, nil),
		Alerts:     alert.NewTracker(alert.DefaultBonus),
		Combat:     combat.NewSimulated(combatCfg, nil),
	}, travel.Config{PollInterval: time.Millisecond}, nil)

	return &Server{
		Map:        m,
		Store:      store,
		Planner:    planner,
		Routes:     routes,
		Travel:     orch,
		Thresholds: threat.DefaultThresholds(),
		AdminKey:   adminKey,
	}, store
}

func do(t *testing.T, h http.Handler, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

type statusBody struct {
	Travel struct {
		State  string `json:"state"`
		Active bool   `json:"active"`
		Last   *struct {
			State    string         `json:"state"`
			Position world.HexCoord `json:"position"`
		} `json:"last"`
	} `json:"travel"`
	Run *struct {
		Detection float64        `json:"detection"`
		Threat    string         `json:"threat"`
		Position  world.HexCoord `json:"position"`
		Waypoints int            `json:"waypoints"`
	} `json:"run"`
}

func status(t *testing.T, h http.Handler) statusBody {
	t.Helper()
	rec := do(t, h, http.MethodGet, "/api/v1/status", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var out statusBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestStatusWithoutRun(t *testing.T) {
	s, _ := newTestServer(t, "", false)
	h := s.Handler()

	st := status(t, h)
	assert.Equal(t, "idle", st.Travel.State)
	assert.Nil(t, st.Run)

	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/api/v1/run", "", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodPost, "/api/v1/travel", "", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodPost, "/api/v1/pause", "", "").Code)
}

func TestMapAndEscapeRoutes(t *testing.T) {
	s, _ := newTestServer(t, "", true)
	h := s.Handler()

	rec := do(t, h, http.MethodGet, "/api/v1/map", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var m world.Map
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	assert.Equal(t, 3, m.Radius)
	assert.Len(t, m.Gates, 2)

	rec = do(t, h, http.MethodGet, "/api/v1/escape", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var report escape.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.False(t, report.FromPosition.NoPath)
}

func TestWaypointEndpoints(t *testing.T) {
	s, store := newTestServer(t, "", true)
	h := s.Handler()

	rec := do(t, h, http.MethodPost, "/api/v1/waypoints", `{"q":1,"r":0}`, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = do(t, h, http.MethodPost, "/api/v1/waypoints", `{"q":1,"r":-1}`, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 2, status(t, h).Run.Waypoints)

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/api/v1/waypoints", `{"q":1,"r":-1}`, "").Code, "same hex")
	assert.Equal(t, http.StatusUnprocessableEntity, do(t, h, http.MethodPost, "/api/v1/waypoints", `{"q":9,"r":0}`, "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/api/v1/waypoints", `{`, "").Code)

	rec = do(t, h, http.MethodDelete, "/api/v1/waypoints/0", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	st, _ := store.Get()
	require.Len(t, st.Waypoints, 1)
	assert.Equal(t, world.HexCoord{Q: 1, R: -1}, st.Waypoints[0].Target)

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodDelete, "/api/v1/waypoints/4", "", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodDelete, "/api/v1/waypoints/x", "", "").Code)
}

func TestAdminKeyGuardsMutations(t *testing.T) {
	s, _ := newTestServer(t, "secret", true)
	h := s.Handler()

	assert.Equal(t, http.StatusUnauthorized, do(t, h, http.MethodPost, "/api/v1/waypoints", `{"q":1,"r":0}`, "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(t, h, http.MethodPost, "/api/v1/waypoints", `{"q":1,"r":0}`, "wrong").Code)
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/api/v1/waypoints", `{"q":1,"r":0}`, "secret").Code)
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/api/v1/run", "", "").Code)
}

func TestTravelToCompletion(t *testing.T) {
	s, store := newTestServer(t, "", true)
	h := s.Handler()
	require.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/api/v1/waypoints", `{"q":1,"r":-1}`, "").Code)

	rec := do(t, h, http.MethodPost, "/api/v1/travel", "", "")
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	require.Eventually(t, func() bool {
		last := status(t, h).Travel.Last
		return last != nil && last.State == "completed"
	}, 2*time.Second, 5*time.Millisecond)

	st, _ := store.Get()
	assert.Equal(t, world.HexCoord{Q: 1, R: -1}, st.Position)
	assert.Positive(t, st.Detection)
}

func TestGuardianDecisionRoundTrip(t *testing.T) {
	s, store := newTestServer(t, "", true)
	h := s.Handler()
	require.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/api/v1/waypoints", `{"q":2,"r":0}`, "").Code)
	require.Equal(t, http.StatusAccepted, do(t, h, http.MethodPost, "/api/v1/travel", "", "").Code)

	var pending struct {
		ID        int    `json:"id"`
		Kind      string `json:"kind"`
		Encounter struct {
			AIID                 string `json:"ai_id"`
			RequiresConfirmation bool   `json:"requires_confirmation"`
		} `json:"encounter"`
	}
	require.Eventually(t, func() bool {
		rec := do(t, h, http.MethodGet, "/api/v1/suspension", "", "")
		if rec.Code != http.StatusOK {
			return false
		}
		return json.Unmarshal(rec.Body.Bytes(), &pending) == nil
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, "awaiting_guardian_decision", pending.Kind)
	assert.True(t, pending.Encounter.RequiresConfirmation)

	assert.Equal(t, http.StatusConflict, do(t, h, http.MethodPost, "/api/v1/travel", "", "").Code)
	assert.Equal(t, http.StatusConflict, do(t, h, http.MethodPost, "/api/v1/waypoints", `{"q":0,"r":0}`, "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/api/v1/decision", `{"action":"flee"}`, "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/api/v1/decision", `{"action":"leave"}`, "").Code)

	rec := do(t, h, http.MethodPost, "/api/v1/decision", `{"action":"engage"}`, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	require.Eventually(t, func() bool {
		last := status(t, h).Travel.Last
		return last != nil && last.State == "completed"
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, http.StatusNoContent, do(t, h, http.MethodGet, "/api/v1/suspension", "", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodPost, "/api/v1/decision", `{"action":"engage"}`, "").Code)

	st, _ := store.Get()
	assert.True(t, st.IsLooted(objective))
}

func TestEscapeEndsRun(t *testing.T) {
	s, store := newTestServer(t, "", true)
	h := s.Handler()

	require.Equal(t, http.StatusAccepted, do(t, h, http.MethodPost, "/api/v1/escape", "", "").Code)
	require.Eventually(t, func() bool {
		last := status(t, h).Travel.Last
		return last != nil && last.State == "extracted"
	}, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, world.HexCoord{Q: -3}, status(t, h).Travel.Last.Position)
	assert.False(t, store.IsActive())
	assert.Nil(t, status(t, h).Run)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/api/v1/run", "", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodPost, "/api/v1/waypoints", `{"q":-2,"r":0}`, "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodPost, "/api/v1/travel", "", "").Code)
}

func TestCancelEndpoint(t *testing.T) {
	s, store := newTestServer(t, "", true)
	h := s.Handler()
	require.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/api/v1/waypoints", `{"q":2,"r":0}`, "").Code)
	require.Equal(t, http.StatusAccepted, do(t, h, http.MethodPost, "/api/v1/travel", "", "").Code)
	require.Eventually(t, func() bool { return s.Travel.Pending() != nil }, 2*time.Second, 5*time.Millisecond)

	require.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/api/v1/cancel", "", "").Code)
	require.Eventually(t, func() bool {
		last := status(t, h).Travel.Last
		return last != nil && last.State == "cancelled"
	}, 2*time.Second, 5*time.Millisecond)

	st, _ := store.Get()
	assert.Empty(t, st.Waypoints)
	assert.False(t, st.IsLooted(objective))
}

func TestRateLimiter(t *testing.T) {
	now := time.Unix(1000, 0)
	rl := NewRateLimiter(2, time.Minute)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("a"))
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
	assert.True(t, rl.Allow("b"))
	assert.Equal(t, 61, rl.RetryAfter("a"))

	now = now.Add(time.Minute)
	assert.True(t, rl.Allow("a"))
}

func TestRateLimitedMutations(t *testing.T) {
	s, _ := newTestServer(t, "", true)
	s.Limiter = NewRateLimiter(1, time.Hour)
	h := s.Handler()

	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodPost, "/api/v1/pause", "", "").Code)
	rec := do(t, h, http.MethodPost, "/api/v1/pause", "", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/api/v1/status", "", "").Code)
}
