package corpus

import "log"

// FilterTrusted keeps the runs with usable data at every given station.
// stations[0] is the trip origin: its cell must be present but may be
// zero. Every other station needs a present, non-zero cell. A station
// missing from the run's columns rejects the run.
func FilterTrusted(runs []Run, stations []string) []Run {
	if len(stations) == 0 {
		return runs
	}

	var trusted []Run
	for _, run := range runs {
		if runTrusted(run, stations) {
			trusted = append(trusted, run)
		}
	}

	if len(trusted) == 0 && len(runs) > 0 {
		log.Printf("Warning: none of %d past runs has complete data for %v", len(runs), stations)
	}
	return trusted
}

func runTrusted(run Run, stations []string) bool {
	for i, st := range stations {
		raw, ok := run.RawAt(st)
		if !ok || isBlank(raw) {
			return false
		}
		if i > 0 && parseCell(raw) == 0 {
			return false
		}
	}
	return true
}

// PastISDs collects, per station, the distances past runs recorded for
// reaching it from the previous station. Only runs that passed both from
// and to, in that order, contribute; blank cells are ignored rather than
// read as zero. The returned lists keep row order.
func (s *Sheet) PastISDs(from, to string) map[string][]float64 {
	out := make(map[string][]float64)

	for _, row := range s.Rows {
		if isBlank(row.Record) {
			continue
		}

		var stations []string
		var values []float64
		for j, c := range row.Cells {
			if s.Stations[j] == "" || isBlank(c) {
				continue
			}
			stations = append(stations, s.Stations[j])
			values = append(values, parseCell(c))
		}

		fromIdx := indexOf(stations, from)
		toIdx := indexOf(stations, to)
		if fromIdx == -1 || toIdx == -1 || fromIdx >= toIdx {
			continue
		}
		for k := fromIdx; k <= toIdx; k++ {
			out[stations[k]] = append(out[stations[k]], values[k])
		}
	}
	return out
}

func indexOf(list []string, v string) int {
	for i, s := range list {
		if s == v {
			return i
		}
	}
	return -1
}

// StationISDs collects every recorded arrival distance per station across
// all rows. The first non-blank cell of a row is where that run started
// and is left out.
func (s *Sheet) StationISDs() map[string][]float64 {
	out := make(map[string][]float64)
	for _, row := range s.Rows {
		started := false
		for j, c := range row.Cells {
			if isBlank(c) {
				continue
			}
			if !started {
				started = true
				continue
			}
			out[s.Stations[j]] = append(out[s.Stations[j]], parseCell(c))
		}
	}
	return out
}
