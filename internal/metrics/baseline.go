package metrics

import (
	"context"
	"fmt"
	"log"
	"sort"

	"github.com/mini-rodalies-3d/tripaudit/internal/corpus"
)

// StationBaseline summarizes past distances recorded for reaching a
// station from the previous one on a corridor.
type StationBaseline struct {
	Corridor    string  `json:"corridor"`
	Station     string  `json:"station"`
	Mean        float64 `json:"mean"`
	StdDev      float64 `json:"stddev"`
	SampleCount int     `json:"sample_count"`
}

// ZScore compares an observed distance to the baseline
func (b StationBaseline) ZScore(v float64) (float64, bool) {
	return ResumeStats(b.Mean, b.StdDev, b.SampleCount).ZScore(v)
}

// BaselineStore persists station baselines per corridor
type BaselineStore interface {
	SaveBaselines(ctx context.Context, corridor string, baselines []StationBaseline) error
	GetBaselines(ctx context.Context, corridor string) ([]StationBaseline, error)
}

// ComputeBaselines folds per-station distance lists into baselines.
// Non-positive values are missing data and do not contribute.
func ComputeBaselines(corridor string, past map[string][]float64) []StationBaseline {
	stations := make([]string, 0, len(past))
	for st := range past {
		stations = append(stations, st)
	}
	sort.Strings(stations)

	var out []StationBaseline
	for _, st := range stations {
		var stats RunningStats
		for _, v := range past[st] {
			if v > 0 {
				stats.Add(v)
			}
		}
		if stats.Count == 0 {
			continue
		}
		out = append(out, StationBaseline{
			Corridor:    corridor,
			Station:     st,
			Mean:        stats.Mean,
			StdDev:      stats.StdDev(),
			SampleCount: stats.Count,
		})
	}
	return out
}

// BaselineLearner recomputes corridor baselines from imported sheets
type BaselineLearner struct {
	store BaselineStore
}

// NewBaselineLearner creates a new baseline learner
func NewBaselineLearner(store BaselineStore) *BaselineLearner {
	return &BaselineLearner{store: store}
}

// Learn replaces the stored baselines of the sheet's corridor
func (l *BaselineLearner) Learn(ctx context.Context, sheet *corpus.Sheet) error {
	baselines := ComputeBaselines(sheet.Name, sheet.StationISDs())

	if err := l.store.SaveBaselines(ctx, sheet.Name, baselines); err != nil {
		return fmt.Errorf("failed to save baselines: %w", err)
	}
	log.Printf("Baseline: %s learned %d station baselines", sheet.Name, len(baselines))
	return nil
}
