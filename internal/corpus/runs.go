package corpus

import (
	"fmt"
	"log"
)

// Run is one past trip restricted to a station span. ISDs[0] is forced
// to 0 so Cumulative always starts at 0 at the span's first station.
type Run struct {
	RecordNumber int       `json:"record_number"`
	Stations     []string  `json:"stations"`
	ISDs         []float64 `json:"isds"`
	Cumulative   []float64 `json:"cumulative"`
	Raw          []string  `json:"-"`
}

// Index returns a station's position within the run, or -1
func (r Run) Index(station string) int {
	for i, st := range r.Stations {
		if st == station {
			return i
		}
	}
	return -1
}

// CumulativeAt returns the run's cumulative distance at a station
func (r Run) CumulativeAt(station string) (float64, bool) {
	i := r.Index(station)
	if i == -1 {
		return 0, false
	}
	return r.Cumulative[i], true
}

// RawAt returns the unparsed cell recorded for a station
func (r Run) RawAt(station string) (string, bool) {
	i := r.Index(station)
	if i == -1 {
		return "", false
	}
	return r.Raw[i], true
}

// RunsFor returns every row restricted to the columns spanning from and to.
// Rows blank across the whole span are dropped.
func (s *Sheet) RunsFor(from, to string) ([]Run, error) {
	fromIdx := s.StationIndex(from)
	toIdx := s.StationIndex(to)
	if fromIdx == -1 || toIdx == -1 {
		return nil, fmt.Errorf("%w: %s-%s in %s", ErrStationNotInSheet, from, to, s.Name)
	}
	lo, hi := min(fromIdx, toIdx), max(fromIdx, toIdx)
	stations := s.Stations[lo : hi+1]

	var runs []Run
	for i, row := range s.Rows {
		cells := row.Cells[lo : hi+1]
		if allBlank(cells) {
			continue
		}

		run := Run{
			RecordNumber: i + 1,
			Stations:     stations,
			ISDs:         make([]float64, len(cells)),
			Cumulative:   make([]float64, len(cells)),
			Raw:          cells,
		}
		var total float64
		for j, c := range cells {
			if j > 0 {
				run.ISDs[j] = parseCell(c)
			}
			total += run.ISDs[j]
			run.Cumulative[j] = total
		}
		runs = append(runs, run)
	}

	log.Printf("Corpus: %s %s-%s yielded %d runs", s.Name, from, to, len(runs))
	return runs, nil
}

func allBlank(cells []string) bool {
	for _, c := range cells {
		if !isBlank(c) {
			return false
		}
	}
	return true
}
