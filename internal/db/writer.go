package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mini-rodalies-3d/tripaudit/internal/audit"
)

// SaveReport stores a report with its halts and overspeed events and
// returns the run ID. A trip already stored for the same date, train and
// endpoints is replaced in place and keeps its ID.
func (db *DB) SaveReport(ctx context.Context, r *audit.Report) (string, error) {
	if r == nil || r.Analysis == nil || r.Analysis.Route == nil {
		return "", fmt.Errorf("failed to save report: analysis missing")
	}

	db.LockWrite()
	defer db.UnlockWrite()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	runID, err := existingRunID(ctx, tx, r.Date, r.TrainNumber, r.From, r.To)
	if err != nil {
		return "", err
	}
	if runID == "" {
		runID = uuid.New().String()
	} else {
		if err := deleteRunRows(ctx, tx, runID); err != nil {
			return "", err
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM analysis_runs WHERE run_id = ?", runID); err != nil {
			return "", fmt.Errorf("failed to replace run: %w", err)
		}
	}

	stored := *r
	stored.ID = runID
	reportJSON, err := json.Marshal(&stored)
	if err != nil {
		return "", fmt.Errorf("failed to encode report: %w", err)
	}

	res := r.Analysis
	_, err = tx.ExecContext(ctx, `
		INSERT INTO analysis_runs (
			run_id, run_date, train_number, from_station, to_station, corridor,
			sample_count, max_speed, avg_speed, total_distance,
			halt_count, scheduled_count, missed_count, overspeed_count,
			bft_found, incomplete, report_json, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		runID, r.Date, r.TrainNumber, r.From, r.To, res.Route.Corridor,
		r.Summary.SampleCount, r.Summary.MaxSpeed, r.Summary.AvgSpeed, r.Summary.TotalDistance,
		len(res.Halts), len(res.Scheduled), len(res.MissedScheduled), len(r.Overspeed),
		r.BrakeFeel != nil, res.Incomplete, string(reportJSON),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}

	haltStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO run_halts (
			run_id, seq, kind, station, cumulative_distance, isd, actual_isd, location, location_type
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return "", fmt.Errorf("failed to prepare halt statement: %w", err)
	}
	defer haltStmt.Close()

	for i, h := range res.Halts {
		var location, locationType *string
		if h.Location != nil {
			desc, typ := h.Location.Description, string(h.Location.Type)
			location, locationType = &desc, &typ
		}
		if _, err := haltStmt.ExecContext(ctx,
			runID, i, h.Kind.String(), h.Station, h.CumulativeDistance, h.ISD, h.ActualISD,
			location, locationType,
		); err != nil {
			return "", fmt.Errorf("failed to insert halt %d: %w", i, err)
		}
	}

	eventStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO run_events (
			run_id, seq, start_distance, end_distance, samples, max_speed, max_excess, speed_limit, severity
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return "", fmt.Errorf("failed to prepare event statement: %w", err)
	}
	defer eventStmt.Close()

	for i, ev := range r.Overspeed {
		if _, err := eventStmt.ExecContext(ctx,
			runID, i, ev.StartDistance, ev.EndDistance, ev.Samples,
			ev.MaxSpeed, ev.MaxExcess, ev.Limit, string(ev.Severity),
		); err != nil {
			return "", fmt.Errorf("failed to insert event %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit run: %w", err)
	}
	return runID, nil
}

// DeleteRun removes a run with its halts and events
func (db *DB) DeleteRun(ctx context.Context, runID string) error {
	db.LockWrite()
	defer db.UnlockWrite()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := deleteRunRows(ctx, tx, runID); err != nil {
		return err
	}
	result, err := tx.ExecContext(ctx, "DELETE FROM analysis_runs WHERE run_id = ?", runID)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrRunNotFound
	}
	return tx.Commit()
}

// deleteRunRows clears a run's halts and events
func deleteRunRows(ctx context.Context, tx *sql.Tx, runID string) error {
	for _, q := range []string{
		"DELETE FROM run_halts WHERE run_id = ?",
		"DELETE FROM run_events WHERE run_id = ?",
	} {
		if _, err := tx.ExecContext(ctx, q, runID); err != nil {
			return fmt.Errorf("failed to clear run rows: %w", err)
		}
	}
	return nil
}

func existingRunID(ctx context.Context, tx *sql.Tx, date, train, from, to string) (string, error) {
	var runID string
	err := tx.QueryRowContext(ctx, `
		SELECT run_id FROM analysis_runs
		WHERE run_date = ? AND train_number = ? AND from_station = ? AND to_station = ?
	`, date, train, from, to).Scan(&runID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up existing run: %w", err)
	}
	return runID, nil
}
