// Package api serves stored trip audits over HTTP and accepts new
// telemetry recordings for analysis.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/mini-rodalies-3d/tripaudit/internal/audit"
	"github.com/mini-rodalies-3d/tripaudit/internal/cache"
	"github.com/mini-rodalies-3d/tripaudit/internal/config"
	"github.com/mini-rodalies-3d/tripaudit/internal/corpus"
	"github.com/mini-rodalies-3d/tripaudit/internal/db"
	"github.com/mini-rodalies-3d/tripaudit/internal/metrics"
	"github.com/mini-rodalies-3d/tripaudit/internal/network"
	"github.com/mini-rodalies-3d/tripaudit/internal/speed"
)

// Store is the persistence the API reads and writes
type Store interface {
	Ping(ctx context.Context) error
	SaveReport(ctx context.Context, r *audit.Report) (string, error)
	ListRuns(ctx context.Context, f db.RunFilter) ([]db.RunSummary, error)
	GetRun(ctx context.Context, runID string) (*audit.Report, error)
	DeleteRun(ctx context.Context, runID string) error
	ListRunHalts(ctx context.Context, runID string) ([]db.HaltRow, error)
	ListRunEvents(ctx context.Context, runID string) ([]db.EventRow, error)
	LoadCorpus(ctx context.Context) (*corpus.Corpus, error)
	GetBaselines(ctx context.Context, corridor string) ([]metrics.StationBaseline, error)
}

// Server holds the dependencies shared by all handlers
type Server struct {
	store      Store
	cache      *cache.ReportCache
	catalog    *network.Catalog
	tolerances config.Tolerances
	brakeFeel  speed.BrakeFeelConfig
	hub        *Hub

	originPatterns []string
}

// NewServer creates a server. reportCache may be nil.
func NewServer(store Store, reportCache *cache.ReportCache, catalog *network.Catalog, tol config.Tolerances) *Server {
	return &Server{
		store:      store,
		cache:      reportCache,
		catalog:    catalog,
		tolerances: tol,
		brakeFeel:  speed.DefaultBrakeFeel(),
		hub:        NewHub(),
	}
}

// Router builds the HTTP routes
func (s *Server) Router(corsOrigins []string) http.Handler {
	s.originPatterns = hostPatterns(corsOrigins)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: corsOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}))

	r.Get("/health", s.Health)

	r.Route("/api", func(r chi.Router) {
		r.Get("/runs", s.ListRuns)
		r.Post("/runs", s.CreateRun)
		r.Get("/runs/{runId}", s.GetRun)
		r.Delete("/runs/{runId}", s.DeleteRun)
		r.Get("/runs/{runId}/halts", s.GetRunHalts)
		r.Get("/runs/{runId}/events", s.GetRunEvents)

		r.Get("/corridors", s.ListCorridors)
		r.Get("/corridors/{name}/baselines", s.GetCorridorBaselines)

		r.Get("/live", s.Live)
	})

	return r
}

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error string `json:"error"`
}

// Health handles GET /health with a database check
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		respondJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":    "error",
			"database":  "disconnected",
			"timestamp": time.Now().UTC(),
			"error":     err.Error(),
		})
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"database":  "connected",
		"cache":     s.cache != nil,
		"timestamp": time.Now().UTC(),
	})
}

// hostPatterns turns CORS origins into websocket origin host patterns
func hostPatterns(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		if i := strings.Index(o, "://"); i >= 0 {
			o = o[i+3:]
		}
		out = append(out, strings.TrimSuffix(o, "/"))
	}
	return out
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, ErrorResponse{Error: message})
}
