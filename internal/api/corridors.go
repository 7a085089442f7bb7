package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mini-rodalies-3d/tripaudit/internal/network"
)

// Corridor is one entry of GET /api/corridors
type Corridor struct {
	Name     string   `json:"name"`
	Stations []string `json:"stations"`
}

// ListCorridors handles GET /api/corridors
func (s *Server) ListCorridors(w http.ResponseWriter, r *http.Request) {
	names := s.catalog.CorridorNames()
	corridors := make([]Corridor, 0, len(names))
	for _, name := range names {
		stations, _ := s.catalog.StationsForCorridor(name)
		corridors = append(corridors, Corridor{Name: name, Stations: stations})
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"corridors": corridors, "count": len(corridors)})
}

// GetCorridorBaselines handles GET /api/corridors/{name}/baselines
func (s *Server) GetCorridorBaselines(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	name := chi.URLParam(r, "name")
	if _, err := s.catalog.StationsForCorridor(name); errors.Is(err, network.ErrUnknownCorridor) {
		respondError(w, http.StatusNotFound, "corridor not found")
		return
	}

	baselines, err := s.store.GetBaselines(ctx, name)
	if err != nil {
		log.Printf("API: baselines of %s failed: %v", name, err)
		respondError(w, http.StatusInternalServerError, "Failed to get baselines")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"corridor": name, "baselines": baselines})
}
