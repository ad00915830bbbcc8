// Package api serves the run status endpoints.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/micahco/sym/internal/adapters/output"
	"github.com/micahco/sym/internal/domain/match"
)

// MatchesProvider exposes the match set of the last finished run.
type MatchesProvider interface {
	LastMatches() (match.Set, bool)
}

// Server wires HTTP routes for the status API.
type Server struct {
	healthHandler  *HealthHandler
	statsHandler   *StatsHandler
	matchesHandler *MatchesHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(statsProvider StatsProvider, matches MatchesProvider) *Server {
	return &Server{
		healthHandler:  NewHealthHandler(),
		statsHandler:   NewStatsHandler(statsProvider),
		matchesHandler: NewMatchesHandler(matches),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/metrics", MetricsMiddleware(s.healthHandler.HandleMetrics, "metrics"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/matches", MetricsMiddleware(s.matchesHandler.HandleMatches, "matches"))
}

// MatchesHandler serves the last match set in the output file format.
type MatchesHandler struct {
	provider MatchesProvider
}

// NewMatchesHandler creates a new matches handler.
func NewMatchesHandler(provider MatchesProvider) *MatchesHandler {
	return &MatchesHandler{provider: provider}
}

// HandleMatches handles GET /matches requests. It answers 404 until a run
// has finished.
func (h *MatchesHandler) HandleMatches(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
		return
	}
	set, ok := h.provider.LastMatches()
	if !ok {
		writeError(w, http.StatusNotFound, "no_run", ErrNoRun)
		return
	}
	b, err := output.Marshal(set)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "encode", err)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_, _ = w.Write(b)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
