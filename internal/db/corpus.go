package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mini-rodalies-3d/tripaudit/internal/corpus"
)

// SaveSheet replaces a corridor sheet and all its rows
func (db *DB) SaveSheet(ctx context.Context, sheet *corpus.Sheet) error {
	stationsJSON, err := json.Marshal(sheet.Stations)
	if err != nil {
		return fmt.Errorf("failed to encode stations: %w", err)
	}

	db.LockWrite()
	defer db.UnlockWrite()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM corpus_rows WHERE sheet_name = ?", sheet.Name); err != nil {
		return fmt.Errorf("failed to clear sheet rows: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO corpus_sheets (name, stations_json, imported_at) VALUES (?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET
			stations_json = excluded.stations_json,
			imported_at = excluded.imported_at
	`, sheet.Name, string(stationsJSON), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to upsert sheet %s: %w", sheet.Name, err)
	}

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO corpus_rows (sheet_name, row_index, record, cells_json) VALUES (?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare row statement: %w", err)
	}
	defer stmt.Close()

	for i, row := range sheet.Rows {
		cellsJSON, err := json.Marshal(row.Cells)
		if err != nil {
			return fmt.Errorf("failed to encode row %d: %w", i, err)
		}
		if _, err := stmt.ExecContext(ctx, sheet.Name, i, row.Record, string(cellsJSON)); err != nil {
			return fmt.Errorf("failed to insert row %d: %w", i, err)
		}
	}

	return tx.Commit()
}

// LoadCorpus reads every stored sheet
func (db *DB) LoadCorpus(ctx context.Context) (*corpus.Corpus, error) {
	rows, err := db.conn.QueryContext(ctx, "SELECT name, stations_json FROM corpus_sheets ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to query sheets: %w", err)
	}

	var sheets []*corpus.Sheet
	for rows.Next() {
		var name, stationsJSON string
		if err := rows.Scan(&name, &stationsJSON); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan sheet: %w", err)
		}
		s := &corpus.Sheet{Name: name}
		if err := json.Unmarshal([]byte(stationsJSON), &s.Stations); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to decode stations of %s: %w", name, err)
		}
		sheets = append(sheets, s)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// rows are read after the sheet cursor closes; the pool holds one connection
	for _, s := range sheets {
		if err := db.loadSheetRows(ctx, s); err != nil {
			return nil, err
		}
	}
	return corpus.New(sheets...), nil
}

func (db *DB) loadSheetRows(ctx context.Context, s *corpus.Sheet) error {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT record, cells_json FROM corpus_rows WHERE sheet_name = ? ORDER BY row_index", s.Name)
	if err != nil {
		return fmt.Errorf("failed to query rows of %s: %w", s.Name, err)
	}
	defer rows.Close()

	for rows.Next() {
		var row corpus.Row
		var cellsJSON string
		if err := rows.Scan(&row.Record, &cellsJSON); err != nil {
			return fmt.Errorf("failed to scan row of %s: %w", s.Name, err)
		}
		if err := json.Unmarshal([]byte(cellsJSON), &row.Cells); err != nil {
			return fmt.Errorf("failed to decode row of %s: %w", s.Name, err)
		}
		s.Rows = append(s.Rows, row)
	}
	return rows.Err()
}
