package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mini-rodalies-3d/tripaudit/internal/audit"
	"github.com/mini-rodalies-3d/tripaudit/internal/cache"
	"github.com/mini-rodalies-3d/tripaudit/internal/db"
	"github.com/mini-rodalies-3d/tripaudit/internal/halts"
	"github.com/mini-rodalies-3d/tripaudit/internal/network"
	"github.com/mini-rodalies-3d/tripaudit/internal/telemetry"
)

const maxUploadBytes = 32 << 20

// RunsResponse is the JSON response for GET /api/runs
type RunsResponse struct {
	Runs  []db.RunSummary `json:"runs"`
	Count int             `json:"count"`
}

// ListRuns handles GET /api/runs
// Query params: train, date (YYYY-MM-DD), limit (default 100, max 1000)
func (s *Server) ListRuns(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	f := db.RunFilter{
		TrainNumber: r.URL.Query().Get("train"),
		Date:        r.URL.Query().Get("date"),
		Limit:       100,
	}
	if f.Date != "" {
		if _, err := time.Parse("2006-01-02", f.Date); err != nil {
			respondError(w, http.StatusBadRequest, "invalid date: expected YYYY-MM-DD")
			return
		}
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 1000 {
			respondError(w, http.StatusBadRequest, "invalid limit: must be between 1 and 1000")
			return
		}
		f.Limit = n
	}

	key := cache.ListKey(f.TrainNumber, f.Date, f.Limit)
	var resp RunsResponse
	if ok, _ := s.cache.GetJSON(ctx, key, &resp); ok {
		respondJSON(w, http.StatusOK, resp)
		return
	}

	runs, err := s.store.ListRuns(ctx, f)
	if err != nil {
		log.Printf("API: list runs failed: %v", err)
		respondError(w, http.StatusInternalServerError, "Failed to list runs")
		return
	}
	resp = RunsResponse{Runs: runs, Count: len(runs)}
	s.cache.SetJSON(ctx, key, resp)

	respondJSON(w, http.StatusOK, resp)
}

// GetRun handles GET /api/runs/{runId}
func (s *Server) GetRun(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	runID := chi.URLParam(r, "runId")
	key := cache.RunKey(runID)

	var report audit.Report
	if ok, _ := s.cache.GetJSON(ctx, key, &report); ok {
		respondJSON(w, http.StatusOK, report)
		return
	}

	stored, err := s.store.GetRun(ctx, runID)
	if errors.Is(err, db.ErrRunNotFound) {
		respondError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		log.Printf("API: get run %s failed: %v", runID, err)
		respondError(w, http.StatusInternalServerError, "Failed to get run")
		return
	}
	s.cache.SetJSON(ctx, key, stored)

	respondJSON(w, http.StatusOK, stored)
}

// DeleteRun handles DELETE /api/runs/{runId}
func (s *Server) DeleteRun(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	runID := chi.URLParam(r, "runId")

	// subscribers filter by train, so read it before the row is gone
	stored, err := s.store.GetRun(ctx, runID)
	if errors.Is(err, db.ErrRunNotFound) {
		respondError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		log.Printf("API: get run %s failed: %v", runID, err)
		respondError(w, http.StatusInternalServerError, "Failed to get run")
		return
	}

	err = s.store.DeleteRun(ctx, runID)
	if errors.Is(err, db.ErrRunNotFound) {
		respondError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		log.Printf("API: delete run %s failed: %v", runID, err)
		respondError(w, http.StatusInternalServerError, "Failed to delete run")
		return
	}
	if err := s.cache.InvalidateRun(ctx, runID); err != nil {
		log.Printf("Warning: failed to invalidate cache for run %s: %v", runID, err)
	}
	s.hub.Publish(RunEvent{Type: EventRunDeleted, RunID: runID, TrainNumber: stored.TrainNumber, Date: stored.Date})

	w.WriteHeader(http.StatusNoContent)
}

// GetRunHalts handles GET /api/runs/{runId}/halts
func (s *Server) GetRunHalts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	runID := chi.URLParam(r, "runId")
	if !s.runExists(ctx, w, runID) {
		return
	}

	rows, err := s.store.ListRunHalts(ctx, runID)
	if err != nil {
		log.Printf("API: list halts of %s failed: %v", runID, err)
		respondError(w, http.StatusInternalServerError, "Failed to list halts")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"halts": rows, "count": len(rows)})
}

// GetRunEvents handles GET /api/runs/{runId}/events
func (s *Server) GetRunEvents(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	runID := chi.URLParam(r, "runId")
	if !s.runExists(ctx, w, runID) {
		return
	}

	rows, err := s.store.ListRunEvents(ctx, runID)
	if err != nil {
		log.Printf("API: list events of %s failed: %v", runID, err)
		respondError(w, http.StatusInternalServerError, "Failed to list events")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"events": rows, "count": len(rows)})
}

// runExists writes a 404 or 500 and returns false when the run cannot be read
func (s *Server) runExists(ctx context.Context, w http.ResponseWriter, runID string) bool {
	_, err := s.store.GetRun(ctx, runID)
	if errors.Is(err, db.ErrRunNotFound) {
		respondError(w, http.StatusNotFound, "run not found")
		return false
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to get run")
		return false
	}
	return true
}

// CreateRun handles POST /api/runs
// Body: telemetry CSV. Query params: train, from, to (required), code, date
func (s *Server) CreateRun(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
	defer cancel()

	q := r.URL.Query()
	id := network.TrainIdentity{
		Number: q.Get("train"),
		Code:   q.Get("code"),
		From:   q.Get("from"),
		To:     q.Get("to"),
	}
	if id.Number == "" || id.From == "" || id.To == "" {
		respondError(w, http.StatusBadRequest, "train, from and to are required")
		return
	}
	date := q.Get("date")
	if date == "" {
		date = time.Now().UTC().Format("2006-01-02")
	} else if _, err := time.Parse("2006-01-02", date); err != nil {
		respondError(w, http.StatusBadRequest, "invalid date: expected YYYY-MM-DD")
		return
	}

	samples, err := telemetry.ParseCSV(http.MaxBytesReader(w, r.Body, maxUploadBytes))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid telemetry: "+err.Error())
		return
	}

	c, err := s.store.LoadCorpus(ctx)
	if err != nil {
		log.Printf("API: load corpus failed: %v", err)
		respondError(w, http.StatusInternalServerError, "Failed to load corpus")
		return
	}

	report, err := audit.Run(audit.Input{
		Input: halts.Input{
			Identity:   id,
			Samples:    samples,
			Catalog:    s.catalog,
			Corpus:     c,
			Tolerances: s.tolerances,
		},
		Date:      date,
		BrakeFeel: s.brakeFeel,
	})
	switch {
	case errors.Is(err, telemetry.ErrNoSamples),
		errors.Is(err, network.ErrUnknownCorridor),
		errors.Is(err, network.ErrStationNotOnCorridor):
		respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	case err != nil:
		log.Printf("API: audit of train %s failed: %v", id.Number, err)
		respondError(w, http.StatusInternalServerError, "Failed to analyze trip")
		return
	}

	runID, err := s.store.SaveReport(ctx, report)
	if err != nil {
		log.Printf("API: save report failed: %v", err)
		respondError(w, http.StatusInternalServerError, "Failed to save run")
		return
	}
	report.ID = runID
	if err := s.cache.InvalidateRun(ctx, runID); err != nil {
		log.Printf("Warning: failed to invalidate cache for run %s: %v", runID, err)
	}
	s.hub.Publish(RunEvent{Type: EventRunSaved, RunID: runID, TrainNumber: report.TrainNumber, Date: report.Date})

	respondJSON(w, http.StatusCreated, report)
}
