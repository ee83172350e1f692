package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"bullscan/internal/backtest"
	"bullscan/internal/domain"
	"bullscan/internal/screen"
	"bullscan/internal/store"
	"bullscan/pkg/bullscan"
)

// RunServer serves the run-history HTTP API.
type RunServer struct {
	runs     store.RunStore
	bars     store.BarStore
	market   domain.Market
	criteria screen.Criteria
	log      *slog.Logger
}

// NewRunServer creates a new run-history HTTP server. bars may be nil, in
// which case /api/symbols returns an empty list.
func NewRunServer(runs store.RunStore, bars store.BarStore, criteria screen.Criteria, log *slog.Logger) *RunServer {
	return &RunServer{
		runs:     runs,
		bars:     bars,
		market:   domain.MarketUS,
		criteria: criteria,
		log:      log.With("component", "httpapi"),
	}
}

// RegisterRoutes registers all API routes on the given mux.
func (s *RunServer) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /api/runs", s.handleRuns)
	mux.HandleFunc("GET /api/runs/{id}", s.handleRun)
	mux.HandleFunc("GET /api/runs/{id}/winners", s.handleWinners)
	mux.HandleFunc("GET /api/runs/{id}/csv", s.handleCSV)
	mux.HandleFunc("GET /api/symbols", s.handleSymbols)
}

// Handler returns an http.Handler with CORS middleware.
func (s *RunServer) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return corsMiddleware(mux)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// ---------------------------------------------------------------------------
// Handlers
// ---------------------------------------------------------------------------

func (s *RunServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

func (s *RunServer) handleRuns(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	runs, err := s.runs.ListRuns(r.Context(), limit)
	if err != nil {
		s.log.Error("listing runs", "error", err)
		writeError(w, http.StatusInternalServerError, "listing runs failed")
		return
	}
	writeJSON(w, toSummariesJSON(runs))
}

func (s *RunServer) handleRun(w http.ResponseWriter, r *http.Request) {
	run, ok := s.loadRun(w, r)
	if !ok {
		return
	}
	writeJSON(w, toRunJSON(run))
}

func (s *RunServer) handleWinners(w http.ResponseWriter, r *http.Request) {
	run, ok := s.loadRun(w, r)
	if !ok {
		return
	}
	writeJSON(w, bullscan.WinnersResponse{
		RunID:   run.ID,
		Winners: toResultsJSON(screen.Winners(run.Results, s.criteria)),
	})
}

func (s *RunServer) handleCSV(w http.ResponseWriter, r *http.Request) {
	run, ok := s.loadRun(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=run-%d.csv", run.ID))
	if err := backtest.WriteCSV(w, run); err != nil {
		s.log.Error("writing CSV", "run", run.ID, "error", err)
	}
}

func (s *RunServer) handleSymbols(w http.ResponseWriter, r *http.Request) {
	resp := bullscan.SymbolsResponse{Market: string(s.market), Symbols: []string{}}
	if s.bars != nil {
		symbols, err := s.bars.ListSymbols(r.Context(), string(s.market))
		if err != nil {
			s.log.Error("listing symbols", "error", err)
			writeError(w, http.StatusInternalServerError, "listing symbols failed")
			return
		}
		if symbols != nil {
			resp.Symbols = symbols
		}
	}
	writeJSON(w, resp)
}

// loadRun resolves the {id} path value and writes the error response itself
// when the run cannot be returned.
func (s *RunServer) loadRun(w http.ResponseWriter, r *http.Request) (*domain.Run, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid run id")
		return nil, false
	}
	run, err := s.runs.GetRun(r.Context(), id)
	if errors.Is(err, store.ErrRunNotFound) {
		writeError(w, http.StatusNotFound, "run not found")
		return nil, false
	}
	if err != nil {
		s.log.Error("loading run", "run", id, "error", err)
		writeError(w, http.StatusInternalServerError, "loading run failed")
		return nil, false
	}
	return run, true
}
