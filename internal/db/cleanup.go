package db

import (
	"context"
	"fmt"
	"log"
)

// Cleanup deletes runs stored more than retentionDays ago, with their
// halts and events
func (db *DB) Cleanup(ctx context.Context, retentionDays int) (int, error) {
	if retentionDays < 1 {
		retentionDays = 1
	}
	cutoff := fmt.Sprintf("-%d days", retentionDays)

	db.LockWrite()
	defer db.UnlockWrite()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	queries := []struct {
		name  string
		query string
	}{
		{
			name:  "run_halts",
			query: "DELETE FROM run_halts WHERE run_id IN (SELECT run_id FROM analysis_runs WHERE datetime(created_at) < datetime('now', ?))",
		},
		{
			name:  "run_events",
			query: "DELETE FROM run_events WHERE run_id IN (SELECT run_id FROM analysis_runs WHERE datetime(created_at) < datetime('now', ?))",
		},
		{
			name:  "analysis_runs",
			query: "DELETE FROM analysis_runs WHERE datetime(created_at) < datetime('now', ?)",
		},
	}

	var runs int64
	for _, q := range queries {
		result, err := tx.ExecContext(ctx, q.query, cutoff)
		if err != nil {
			return 0, fmt.Errorf("failed to cleanup %s: %w", q.name, err)
		}
		if q.name == "analysis_runs" {
			runs, _ = result.RowsAffected()
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit cleanup: %w", err)
	}

	if runs > 0 {
		log.Printf("Cleanup: deleted %d runs older than %d days", runs, retentionDays)
	}
	return int(runs), nil
}
