// Package api provides the HTTP control surface for a run.
// GET endpoints are read-only observation.
// POST and DELETE endpoints require a bearer token when AdminKey is set.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/talgya/hexrun/internal/escape"
	"github.com/talgya/hexrun/internal/movement"
	"github.com/talgya/hexrun/internal/run"
	"github.com/talgya/hexrun/internal/threat"
	"github.com/talgya/hexrun/internal/travel"
	"github.com/talgya/hexrun/internal/world"
)

// Server serves the run over HTTP.
type Server struct {
	Map        *world.Map
	Store      run.Store
	Planner    *movement.Planner
	Routes     *escape.Calculator
	Travel     *travel.Orchestrator
	Thresholds threat.Thresholds
	AdminKey   string       // Bearer token for mutating endpoints. Empty = open.
	Limiter    *RateLimiter // Applied to mutating endpoints. Nil = unlimited.
	Log        *slog.Logger
}

func (s *Server) logger() *slog.Logger {
	if s.Log == nil {
		return slog.Default()
	}
	return s.Log
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/status", s.handleStatus)
	mux.HandleFunc("GET /api/v1/map", s.handleMap)
	mux.HandleFunc("GET /api/v1/run", s.handleRun)
	mux.HandleFunc("GET /api/v1/escape", s.handleEscapeRoutes)
	mux.HandleFunc("GET /api/v1/suspension", s.handleSuspension)

	mux.HandleFunc("POST /api/v1/waypoints", s.mutating(s.handleAddWaypoint))
	mux.HandleFunc("DELETE /api/v1/waypoints/{i}", s.mutating(s.handleRemoveWaypoint))
	mux.HandleFunc("POST /api/v1/travel", s.mutating(s.handleTravel))
	mux.HandleFunc("POST /api/v1/escape", s.mutating(s.handleEscape))
	mux.HandleFunc("POST /api/v1/pause", s.mutating(s.handlePause))
	mux.HandleFunc("POST /api/v1/resume", s.mutating(s.handleResume))
	mux.HandleFunc("POST /api/v1/cancel", s.mutating(s.handleCancel))
	mux.HandleFunc("POST /api/v1/decision", s.mutating(s.handleDecision))

	return corsMiddleware(mux)
}

// Run serves on addr until ctx is done, then cancels any journey and shuts
// the listener down.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.logger().Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "")

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	select {
	case err := <-errc:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	if s.Travel.Active() {
		_ = s.Travel.Cancel()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Set CORS_ORIGINS to a comma-separated list; localhost dev servers are
// always allowed.
func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:3000": true,
	}
	if env := os.Getenv("CORS_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				allowedOrigins[origin] = true
			}
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// checkBearerToken returns true if the request has a valid admin bearer token.
func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

// mutating wraps a handler with bearer auth (when configured) and the rate
// limiter.
func (s *Server) mutating(next http.HandlerFunc) http.HandlerFunc {
	h := func(w http.ResponseWriter, r *http.Request) {
		if s.AdminKey != "" && !s.checkBearerToken(r) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
	if s.Limiter != nil {
		return RateLimitMiddleware(s.Limiter, h)
	}
	return h
}

func (s *Server) activeRun(w http.ResponseWriter) (run.State, bool) {
	st, ok := s.Store.Get()
	if !ok {
		http.Error(w, run.ErrNoActiveRun.Error(), http.StatusNotFound)
	}
	return st, ok
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"travel": s.Travel.Status(),
	}
	if st, ok := s.Store.Get(); ok {
		resp["run"] = map[string]any{
			"id":                  st.ID,
			"tier":                st.Tier,
			"map_type":            st.MapTypeID,
			"detection":           st.Detection,
			"threat":              s.Thresholds.BandFor(st.Detection).String(),
			"signal_lock":         st.SignalLock,
			"position":            st.Position,
			"moves":               st.MoveCount,
			"waypoints":           len(st.Waypoints),
			"projected_detection": st.ProjectedDetection(),
			"loot":                len(st.Loot),
			"failed":              st.Failed,
		}
	}
	writeJSON(w, resp)
}

func (s *Server) handleMap(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Map)
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	st, ok := s.activeRun(w)
	if !ok {
		return
	}
	writeJSON(w, st)
}

func (s *Server) handleEscapeRoutes(w http.ResponseWriter, r *http.Request) {
	st, ok := s.activeRun(w)
	if !ok {
		return
	}
	writeJSON(w, s.Routes.CalculateEscapeRoutes(st))
}

func (s *Server) handleSuspension(w http.ResponseWriter, r *http.Request) {
	p := s.Travel.Pending()
	if p == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, p)
}

func (s *Server) handleAddWaypoint(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Q int `json:"q"`
		R int `json:"r"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	var wp run.Waypoint
	err := s.Travel.EditQueue(func(st *run.State) (err error) {
		wp, err = s.Planner.AddWaypoint(st, world.HexCoord{Q: req.Q, R: req.R})
		return err
	})
	if err != nil {
		writeError(w, err)
		return
	}
	s.logger().Info("waypoint added", "target", wp.Target, "cumulative_detection", wp.CumulativeDetection)
	writeJSON(w, wp)
}

func (s *Server) handleRemoveWaypoint(w http.ResponseWriter, r *http.Request) {
	i, err := strconv.Atoi(r.PathValue("i"))
	if err != nil {
		http.Error(w, "invalid waypoint index", http.StatusBadRequest)
		return
	}

	err = s.Travel.EditQueue(func(st *run.State) error {
		return s.Planner.RemoveWaypoint(st, i)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	st, _ := s.Store.Get()
	writeJSON(w, st.Waypoints)
}

func (s *Server) handleTravel(w http.ResponseWriter, r *http.Request) {
	s.launch(w, false)
}

func (s *Server) handleEscape(w http.ResponseWriter, r *http.Request) {
	s.launch(w, true)
}

// launch starts a journey detached from the request; its outcome is read
// back through the status endpoint.
func (s *Server) launch(w http.ResponseWriter, escaping bool) {
	if _, err := s.Travel.Launch(context.Background(), escaping); err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(s.Travel.Status())
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	s.control(w, s.Travel.Pause)
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	s.control(w, s.Travel.Resume)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	s.control(w, s.Travel.Cancel)
}

func (s *Server) control(w http.ResponseWriter, fn func() error) {
	if err := fn(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, s.Travel.Status())
}

func (s *Server) handleDecision(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Action string `json:"action"`
		AIID   string `json:"ai_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	action, err := travel.ParseAction(req.Action)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.Travel.Resolve(travel.Decision{Action: action, AIID: req.AIID}); err != nil {
		writeError(w, err)
		return
	}
	s.logger().Info("decision accepted", "action", action, "ai", req.AIID)
	writeJSON(w, map[string]string{"action": action.String()})
}

// writeError maps domain errors to status codes.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, run.ErrNoActiveRun),
		errors.Is(err, travel.ErrNoSuspension),
		errors.Is(err, travel.ErrNotTraveling):
		status = http.StatusNotFound
	case errors.Is(err, travel.ErrJourneyActive),
		errors.Is(err, travel.ErrAlreadyResolved),
		errors.Is(err, travel.ErrRunFailed),
		errors.Is(err, travel.ErrNoEscapeRoute):
		status = http.StatusConflict
	case errors.Is(err, travel.ErrInvalidDecision),
		errors.Is(err, travel.ErrNoWaypoints),
		errors.Is(err, movement.ErrSameHex),
		errors.Is(err, movement.ErrIndexOutOfRange):
		status = http.StatusBadRequest
	case errors.Is(err, movement.ErrNoPath),
		errors.Is(err, movement.ErrDetectionExceeded):
		status = http.StatusUnprocessableEntity
	}
	http.Error(w, err.Error(), status)
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
