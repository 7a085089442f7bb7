package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mini-rodalies-3d/tripaudit/internal/metrics"
)

// SaveBaselines replaces the station baselines of a corridor
func (db *DB) SaveBaselines(ctx context.Context, corridor string, baselines []metrics.StationBaseline) error {
	corridor = strings.ToUpper(corridor)

	db.LockWrite()
	defer db.UnlockWrite()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM station_baselines WHERE corridor = ?", corridor); err != nil {
		return fmt.Errorf("failed to clear baselines: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO station_baselines (corridor, station, mean, stddev, sample_count, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare baseline statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, b := range baselines {
		if _, err := stmt.ExecContext(ctx, corridor, b.Station, b.Mean, b.StdDev, b.SampleCount, now); err != nil {
			return fmt.Errorf("failed to save baseline %s/%s: %w", corridor, b.Station, err)
		}
	}

	return tx.Commit()
}

// GetBaselines returns the station baselines of a corridor ordered by station
func (db *DB) GetBaselines(ctx context.Context, corridor string) ([]metrics.StationBaseline, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT corridor, station, mean, stddev, sample_count
		FROM station_baselines
		WHERE corridor = ?
		ORDER BY station
	`, strings.ToUpper(corridor))
	if err != nil {
		return nil, fmt.Errorf("failed to query baselines: %w", err)
	}
	defer rows.Close()

	baselines := []metrics.StationBaseline{}
	for rows.Next() {
		var b metrics.StationBaseline
		if err := rows.Scan(&b.Corridor, &b.Station, &b.Mean, &b.StdDev, &b.SampleCount); err != nil {
			return nil, fmt.Errorf("failed to scan baseline: %w", err)
		}
		baselines = append(baselines, b)
	}
	return baselines, rows.Err()
}

var _ metrics.BaselineStore = (*DB)(nil)
