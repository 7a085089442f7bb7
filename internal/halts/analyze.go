package halts

import (
	"fmt"
	"log"
	"sort"

	"github.com/mini-rodalies-3d/tripaudit/internal/config"
	"github.com/mini-rodalies-3d/tripaudit/internal/corpus"
	"github.com/mini-rodalies-3d/tripaudit/internal/metrics"
	"github.com/mini-rodalies-3d/tripaudit/internal/network"
	"github.com/mini-rodalies-3d/tripaudit/internal/telemetry"
)

// Input is everything one trip analysis reads
type Input struct {
	Identity   network.TrainIdentity
	Samples    []telemetry.Sample
	Catalog    *network.Catalog
	Corpus     *corpus.Corpus
	Tolerances config.Tolerances
}

// Result is the labelled halt sequence of a trip and everything derived from it
type Result struct {
	Route            *network.Route            `json:"route"`
	Candidates       []telemetry.CandidateHalt `json:"candidates"`
	Matched          []MatchedHalt             `json:"matched"`
	Halts            []Halt                    `json:"halts"`
	Scheduled        []Halt                    `json:"scheduled"`
	NearScheduled    []Halt                    `json:"near_scheduled"`
	NonScheduled     []Halt                    `json:"non_scheduled"`
	Duplicates       []Halt                    `json:"duplicates,omitempty"`
	MissedScheduled  []string                  `json:"missed_scheduled"`
	AdjustedISD      map[string]float64        `json:"adjusted_isd"`
	DynamicRoute     []RouteLeg                `json:"dynamic_route"`
	SectionDistances []SectionDistance         `json:"section_distances"`
	PastRuns         int                       `json:"past_runs"`
	TrustedRuns      int                       `json:"trusted_runs"`
	Incomplete       bool                      `json:"incomplete"`
}

// Analyze runs the halt pipeline for one trip. Missing history or signal
// data degrades labels to Unknown; only a trip whose route cannot be
// resolved is an error.
func Analyze(in Input) (*Result, error) {
	if in.Catalog == nil {
		return nil, fmt.Errorf("failed to analyze trip: no network catalog")
	}
	route, err := in.Catalog.ResolveRoute(in.Identity)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve route: %w", err)
	}
	tol := in.Tolerances
	schedule := route.Schedule
	from, to := schedule[0], schedule[len(schedule)-1]

	res := &Result{
		Route:       route,
		Candidates:  telemetry.ExtractHalts(in.Samples),
		AdjustedISD: map[string]float64{},
	}
	res.Incomplete = len(res.Candidates) <= 1
	if res.Incomplete {
		log.Printf("Warning: train %s produced %d halts, trip is incomplete", in.Identity.Number, len(res.Candidates))
	}

	var sheet *corpus.Sheet
	var runs []corpus.Run
	if in.Corpus != nil {
		if s, ok := in.Corpus.Sheet(route.Corridor); ok {
			sheet = s
			if runs, err = s.RunsFor(from, to); err != nil {
				log.Printf("Warning: no past runs for %s: %v", route.Corridor, err)
			}
		} else {
			log.Printf("Warning: no corpus sheet for corridor %s", route.Corridor)
		}
	}
	trusted := corpus.FilterTrusted(runs, schedule)
	res.PastRuns, res.TrustedRuns = len(runs), len(trusted)

	res.Matched = CollapseDuplicates(
		NewMatcher(tol).Match(res.Candidates, schedule, trusted),
		tol.DuplicateHalt,
	)
	part := Split(res.Matched, schedule, tol.NearScheduled)

	all := orderedHalts(part)
	rec := Reconcile(part.Scheduled, all, schedule, referenceRun(trusted, runs))
	res.Scheduled = rec.Scheduled
	res.MissedScheduled = rec.Missed
	res.AdjustedISD = rec.AdjustedISD

	locator := NewLocator(in.Catalog, route, in.Identity, tol.Signal)
	res.NearScheduled = locateAll(locator, part.NearScheduled, res.Scheduled)
	res.NonScheduled = locateAll(locator, part.NonScheduled, res.Scheduled)
	res.Duplicates = locateAll(locator, part.Duplicates, res.Scheduled)

	var past map[string][]float64
	if sheet != nil {
		past = sheet.PastISDs(from, to)
	}
	attachBaselines(res.Scheduled, metrics.ComputeBaselines(route.Corridor, past))

	res.DynamicRoute = BuildDynamicRoute(res.Scheduled, past, to, tol)
	res.SectionDistances = SectionDistances(route.Sections, res.Scheduled, res.DynamicRoute)
	res.Halts = orderedHalts(Partition{
		Scheduled:     res.Scheduled,
		NearScheduled: res.NearScheduled,
		NonScheduled:  res.NonScheduled,
		Duplicates:    res.Duplicates,
	})

	log.Printf("Matcher: train %s on %s: %d halts, %d scheduled, %d missed, %d/%d past runs trusted",
		in.Identity.Number, route.Corridor, len(res.Candidates), len(res.Scheduled),
		len(res.MissedScheduled), res.TrustedRuns, res.PastRuns)
	return res, nil
}

// referenceRun is the past run used for missed-stop distances
func referenceRun(trusted, runs []corpus.Run) *corpus.Run {
	if len(trusted) > 0 {
		return &trusted[0]
	}
	if len(runs) > 0 {
		return &runs[0]
	}
	return nil
}

func locateAll(l *Locator, halts []Halt, scheduled []Halt) []Halt {
	out := make([]Halt, len(halts))
	for i, h := range halts {
		loc := l.Locate(h.CumulativeDistance, scheduled)
		h.Location = &loc
		out[i] = h
	}
	return out
}

func attachBaselines(scheduled []Halt, baselines []metrics.StationBaseline) {
	byStation := make(map[string]metrics.StationBaseline, len(baselines))
	for _, b := range baselines {
		byStation[b.Station] = b
	}
	for i := 1; i < len(scheduled); i++ {
		b, ok := byStation[scheduled[i].Station]
		if !ok {
			continue
		}
		if z, ok := b.ZScore(scheduled[i].ActualISD); ok {
			scheduled[i].BaselineZ = &z
		}
	}
}

// orderedHalts merges the partition back into trip order. Candidate
// distances are distinct, so distance order is trip order.
func orderedHalts(p Partition) []Halt {
	var all []Halt
	all = append(all, p.Scheduled...)
	all = append(all, p.NearScheduled...)
	all = append(all, p.NonScheduled...)
	all = append(all, p.Duplicates...)
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].CumulativeDistance < all[j].CumulativeDistance
	})
	return all
}
