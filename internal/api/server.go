// Package api provides the HTTP API for observing and driving a simulation.
// GET endpoints are public (read-only observation).
// POST endpoints require a bearer token (admin control plane).
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/talgya/lifesim/internal/config"
	"github.com/talgya/lifesim/internal/engine"
	"github.com/talgya/lifesim/internal/persistence"
)

const (
	defaultMaxStreams = 8
	defaultStepLimit  = 120 // steps per minute per client
	maxResetAgents    = 100000
)

// Server serves a controller over HTTP.
type Server struct {
	Ctrl     *engine.Controller
	DB       *persistence.DB // optional run archive
	Port     int
	AdminKey string // Bearer token for POST endpoints. Empty = POST disabled.

	// MaxStreams caps concurrent websocket streams. Zero means the default.
	MaxStreams int

	// StepLimit caps steps per minute per client IP, over HTTP and the
	// stream combined. Zero means the default.
	StepLimit int

	// Active stream count (atomic).
	streamConns int32

	stepLimiter *RateLimiter

	httpServer *http.Server
}

// Handler builds the request router.
func (s *Server) Handler() http.Handler {
	// Stepping does a full year of work under the controller lock.
	limit := s.StepLimit
	if limit <= 0 {
		limit = defaultStepLimit
	}
	s.stepLimiter = NewRateLimiter(limit, time.Minute)

	mux := http.NewServeMux()

	// Public endpoints.
	mux.HandleFunc("GET /api/v1/status", s.handleStatus)
	mux.HandleFunc("GET /api/v1/history", s.handleHistory)
	mux.HandleFunc("GET /api/v1/export", s.handleExport)
	mux.HandleFunc("GET /api/v1/runs", s.handleRuns)
	mux.HandleFunc("GET /api/v1/runs/{id}", s.handleRun)
	mux.HandleFunc("GET /api/v1/runs/{id}/events", s.handleRunEvents)

	// Live stream. Commands sent over it need the admin token.
	mux.HandleFunc("GET /api/v1/stream", s.handleStream)

	// Admin endpoints.
	mux.HandleFunc("POST /api/v1/start", s.adminOnly(s.handleStart))
	mux.HandleFunc("POST /api/v1/pause", s.adminOnly(s.handlePause))
	mux.HandleFunc("POST /api/v1/step", s.adminOnly(RateLimitMiddleware(s.stepLimiter, s.handleStep)))
	mux.HandleFunc("POST /api/v1/reset", s.adminOnly(s.handleReset))

	return corsMiddleware(mux)
}

// Start begins serving the HTTP API in a goroutine.
func (s *Server) Start() {
	addr := fmt.Sprintf(":%d", s.Port)
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "", "archive", s.DB != nil)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

// Shutdown stops the server started by Start.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Set CORS_ORIGINS env var to a comma-separated list of allowed origins.
// Localhost dev servers are always allowed.
func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:4173": true,
		"http://localhost:3000": true,
	}
	if env := os.Getenv("CORS_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				allowedOrigins[origin] = true
			}
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
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
// Browsers cannot set headers on websocket upgrades, so a token query
// parameter is accepted too.
func (s *Server) checkBearerToken(r *http.Request) bool {
	if s.AdminKey == "" {
		return false
	}
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey {
		return true
	}
	return r.URL.Query().Get("token") == s.AdminKey
}

// adminOnly wraps a handler to require bearer token auth.
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.AdminKey == "" {
			http.Error(w, "admin endpoints disabled (no LIFESIM_ADMIN_KEY set)", http.StatusForbidden)
			return
		}
		if !s.checkBearerToken(r) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.Ctrl.GetSnapshot()
	status := map[string]any{
		"name":         "lifesim",
		"run_id":       snap.RunID,
		"state":        snap.State,
		"is_running":   snap.IsRunning,
		"start_year":   snap.StartYear,
		"current_year": snap.CurrentYear,
		"years":        len(snap.History),
		"interval":     s.Ctrl.Interval().String(),
	}
	if latest, ok := snap.Latest(); ok {
		status["latest"] = latest
	}
	writeJSON(w, status)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Ctrl.GetSnapshot())
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	exp := s.Ctrl.Export()
	if r.URL.Query().Get("download") != "" {
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "lifesim-"+exp.RunID+".json"))
	}
	writeJSON(w, exp)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "database not available", http.StatusServiceUnavailable)
		return
	}
	runs, err := s.DB.ListRuns(r.Context())
	if err != nil {
		slog.Error("list runs failed", "error", err)
		http.Error(w, "query failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, runs)
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "database not available", http.StatusServiceUnavailable)
		return
	}
	run, err := s.DB.LoadRun(r.Context(), r.PathValue("id"))
	if errors.Is(err, persistence.ErrRunNotFound) {
		http.Error(w, "run not found", http.StatusNotFound)
		return
	}
	if err != nil {
		slog.Error("load run failed", "run", r.PathValue("id"), "error", err)
		http.Error(w, "query failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, run)
}

func (s *Server) handleRunEvents(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "database not available", http.StatusServiceUnavailable)
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 500 {
			http.Error(w, "limit must be 1-500", http.StatusBadRequest)
			return
		}
		limit = n
	}
	events, err := s.DB.RecentEvents(r.Context(), r.PathValue("id"), limit)
	if err != nil {
		slog.Error("recent events failed", "error", err)
		http.Error(w, "query failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, events)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	s.Ctrl.Start()
	writeJSON(w, s.stateSummary())
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	s.Ctrl.Pause()
	writeJSON(w, s.stateSummary())
}

func (s *Server) handleStep(w http.ResponseWriter, r *http.Request) {
	res, err := s.Ctrl.Step()
	if err != nil {
		slog.Error("step failed", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	out := s.stateSummary()
	out["result"] = res
	writeJSON(w, out)
}

// resetRequest fields are optional; missing ones take the controller
// defaults.
type resetRequest struct {
	HumanCount  *int `json:"human_count"`
	AnimalCount *int `json:"animal_count"`
	StartYear   *int `json:"start_year"`
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if err := s.reset(req); err != nil {
		var pe *config.PoolError
		switch {
		case errors.As(err, &pe):
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		default:
			http.Error(w, err.Error(), http.StatusBadRequest)
		}
		return
	}
	writeJSON(w, s.stateSummary())
}

func (s *Server) reset(req resetRequest) error {
	humans, animals, year := s.Ctrl.Defaults()
	if req.HumanCount != nil {
		humans = *req.HumanCount
	}
	if req.AnimalCount != nil {
		animals = *req.AnimalCount
	}
	if req.StartYear != nil {
		year = *req.StartYear
	}
	if humans < 0 || animals < 0 || humans+animals > maxResetAgents {
		return fmt.Errorf("population must be 0-%d agents", maxResetAgents)
	}
	return s.Ctrl.Reset(humans, animals, year)
}

func (s *Server) stateSummary() map[string]any {
	snap := s.Ctrl.GetSnapshot()
	return map[string]any{
		"run_id":       snap.RunID,
		"state":        snap.State,
		"is_running":   snap.IsRunning,
		"current_year": snap.CurrentYear,
	}
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
