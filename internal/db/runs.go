package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mini-rodalies-3d/tripaudit/internal/audit"
)

// RunSummary is the list view of a stored run
type RunSummary struct {
	ID             string  `json:"id"`
	Date           string  `json:"date"`
	TrainNumber    string  `json:"train_number"`
	From           string  `json:"from"`
	To             string  `json:"to"`
	Corridor       string  `json:"corridor"`
	SampleCount    int     `json:"sample_count"`
	MaxSpeed       float64 `json:"max_speed"`
	AvgSpeed       float64 `json:"avg_speed"`
	TotalDistance  float64 `json:"total_distance"`
	HaltCount      int     `json:"halt_count"`
	ScheduledCount int     `json:"scheduled_count"`
	MissedCount    int     `json:"missed_count"`
	OverspeedCount int     `json:"overspeed_count"`
	BrakeFeelFound bool    `json:"brake_feel_found"`
	Incomplete     bool    `json:"incomplete"`
	CreatedAt      string  `json:"created_at"`
}

// RunFilter narrows ListRuns. Zero values match everything.
type RunFilter struct {
	TrainNumber string
	Date        string
	Limit       int
}

// HaltRow is one stored halt of a run
type HaltRow struct {
	Seq                int     `json:"seq"`
	Kind               string  `json:"kind"`
	Station            string  `json:"station"`
	CumulativeDistance float64 `json:"cumulative_distance"`
	ISD                float64 `json:"isd"`
	ActualISD          float64 `json:"actual_isd"`
	Location           *string `json:"location,omitempty"`
	LocationType       *string `json:"location_type,omitempty"`
}

// EventRow is one stored overspeed event of a run
type EventRow struct {
	Seq           int     `json:"seq"`
	StartDistance float64 `json:"start_distance"`
	EndDistance   float64 `json:"end_distance"`
	Samples       int     `json:"samples"`
	MaxSpeed      float64 `json:"max_speed"`
	MaxExcess     float64 `json:"max_excess"`
	Limit         float64 `json:"limit"`
	Severity      string  `json:"severity"`
}

// FindExistingRun returns the ID of the run stored for a trip, if any
func (db *DB) FindExistingRun(ctx context.Context, date, train, from, to string) (string, bool, error) {
	var runID string
	err := db.conn.QueryRowContext(ctx, `
		SELECT run_id FROM analysis_runs
		WHERE run_date = ? AND train_number = ? AND from_station = ? AND to_station = ?
	`, date, train, from, to).Scan(&runID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to find run: %w", err)
	}
	return runID, true, nil
}

// ListRuns returns stored runs, newest trip date first
func (db *DB) ListRuns(ctx context.Context, f RunFilter) ([]RunSummary, error) {
	query := `
		SELECT run_id, run_date, train_number, from_station, to_station, corridor,
			sample_count, max_speed, avg_speed, total_distance,
			halt_count, scheduled_count, missed_count, overspeed_count,
			bft_found, incomplete, created_at
		FROM analysis_runs
		WHERE (? = '' OR train_number = ?) AND (? = '' OR run_date = ?)
		ORDER BY run_date DESC, train_number
	`
	args := []interface{}{f.TrainNumber, f.TrainNumber, f.Date, f.Date}
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	runs := []RunSummary{}
	for rows.Next() {
		var r RunSummary
		if err := rows.Scan(
			&r.ID, &r.Date, &r.TrainNumber, &r.From, &r.To, &r.Corridor,
			&r.SampleCount, &r.MaxSpeed, &r.AvgSpeed, &r.TotalDistance,
			&r.HaltCount, &r.ScheduledCount, &r.MissedCount, &r.OverspeedCount,
			&r.BrakeFeelFound, &r.Incomplete, &r.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetRun loads the full stored report of a run
func (db *DB) GetRun(ctx context.Context, runID string) (*audit.Report, error) {
	var reportJSON string
	err := db.conn.QueryRowContext(ctx,
		"SELECT report_json FROM analysis_runs WHERE run_id = ?", runID,
	).Scan(&reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	var r audit.Report
	if err := json.Unmarshal([]byte(reportJSON), &r); err != nil {
		return nil, fmt.Errorf("failed to decode report %s: %w", runID, err)
	}
	r.ID = runID
	return &r, nil
}

// ListRunHalts returns the stored halts of a run in trip order
func (db *DB) ListRunHalts(ctx context.Context, runID string) ([]HaltRow, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT seq, kind, station, cumulative_distance, isd, actual_isd, location, location_type
		FROM run_halts WHERE run_id = ? ORDER BY seq
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query halts: %w", err)
	}
	defer rows.Close()

	halts := []HaltRow{}
	for rows.Next() {
		var h HaltRow
		if err := rows.Scan(&h.Seq, &h.Kind, &h.Station, &h.CumulativeDistance,
			&h.ISD, &h.ActualISD, &h.Location, &h.LocationType); err != nil {
			return nil, fmt.Errorf("failed to scan halt: %w", err)
		}
		halts = append(halts, h)
	}
	return halts, rows.Err()
}

// ListRunEvents returns the stored overspeed events of a run
func (db *DB) ListRunEvents(ctx context.Context, runID string) ([]EventRow, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT seq, start_distance, end_distance, samples, max_speed, max_excess, speed_limit, severity
		FROM run_events WHERE run_id = ? ORDER BY seq
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	events := []EventRow{}
	for rows.Next() {
		var e EventRow
		if err := rows.Scan(&e.Seq, &e.StartDistance, &e.EndDistance, &e.Samples,
			&e.MaxSpeed, &e.MaxExcess, &e.Limit, &e.Severity); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
