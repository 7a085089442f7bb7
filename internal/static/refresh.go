// Package static keeps the reference data the analysis reads in step with
// its source files: the past-run corpus sheets and the published timetable.
package static

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mini-rodalies-3d/tripaudit/internal/corpus"
	"github.com/mini-rodalies-3d/tripaudit/internal/metrics"
)

const manifestName = "manifest.json"

// Manifest records the last corpus import in the corpus directory
type Manifest struct {
	UpdatedAt string   `json:"updated_at"`
	Sheets    []string `json:"sheets"`
}

// CorpusStore persists imported sheets and their baselines
type CorpusStore interface {
	metrics.BaselineStore
	SaveSheet(ctx context.Context, sheet *corpus.Sheet) error
}

// ImportCorpus loads every sheet in dir into the store, relearns each
// corridor's baselines and writes a fresh manifest
func ImportCorpus(ctx context.Context, dir string, store CorpusStore) (int, error) {
	c, err := corpus.LoadDir(dir)
	if err != nil {
		return 0, err
	}

	learner := metrics.NewBaselineLearner(store)
	imported := make([]string, 0, c.Len())
	for _, name := range c.Names() {
		sheet, _ := c.Sheet(name)
		if err := store.SaveSheet(ctx, sheet); err != nil {
			return len(imported), fmt.Errorf("failed to save sheet %s: %w", name, err)
		}
		if err := learner.Learn(ctx, sheet); err != nil {
			log.Printf("Warning: baselines for %s not updated: %v", name, err)
		}
		imported = append(imported, name)
	}

	if err := writeManifest(dir, Manifest{
		UpdatedAt: time.Now().UTC().Format(time.RFC3339Nano),
		Sheets:    imported,
	}); err != nil {
		log.Printf("Warning: failed to write corpus manifest: %v", err)
	}
	return len(imported), nil
}

// RefreshIfStale reimports the corpus when the manifest is missing, older
// than maxAgeDays, or older than any sheet file in dir
func RefreshIfStale(ctx context.Context, dir string, maxAgeDays int, store CorpusStore) error {
	if !isStaleOrMissing(dir, maxAgeDays) {
		log.Println("Corpus is fresh, skipping import")
		return nil
	}

	log.Printf("Refreshing corpus from %s...", dir)
	n, err := ImportCorpus(ctx, dir, store)
	if err != nil {
		return err
	}
	log.Printf("Corpus refreshed: %d sheets", n)
	return nil
}

func isStaleOrMissing(dir string, maxAgeDays int) bool {
	data, err := os.ReadFile(filepath.Join(dir, manifestName))
	if err != nil {
		return true
	}

	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return true
	}

	updatedAt, err := time.Parse(time.RFC3339Nano, manifest.UpdatedAt)
	if err != nil {
		return true
	}

	maxAge := time.Duration(maxAgeDays) * 24 * time.Hour
	if time.Since(updatedAt) > maxAge {
		return true
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return true
	}
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".csv") {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(updatedAt) {
			return true
		}
	}
	return false
}

func writeManifest(dir string, m Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, manifestName), data, 0644)
}
