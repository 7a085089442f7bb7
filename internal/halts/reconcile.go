package halts

import "github.com/mini-rodalies-3d/tripaudit/internal/corpus"

// Reconciliation is the scheduled halts with their interval distances,
// the scheduled stations the train never stopped at, and substitute
// interval distances where a stop was missed.
type Reconciliation struct {
	Scheduled   []Halt             `json:"scheduled"`
	Missed      []string           `json:"missed_scheduled"`
	AdjustedISD map[string]float64 `json:"adjusted_isd"`
}

// Reconcile fills ActualISD for each scheduled halt: the sum of the ISDs
// of every halt with distance in (previous scheduled, this scheduled].
// The first scheduled halt keeps its own ISD. all must contain every
// halt of the trip. reference supplies past distances for missed stops
// and may be nil.
func Reconcile(scheduled, all []Halt, schedule []string, reference *corpus.Run) Reconciliation {
	out := Reconciliation{
		Scheduled:   make([]Halt, len(scheduled)),
		AdjustedISD: make(map[string]float64),
	}
	copy(out.Scheduled, scheduled)

	for i := range out.Scheduled {
		cur := &out.Scheduled[i]
		if i == 0 {
			cur.ActualISD = cur.ISD
			continue
		}
		prev := out.Scheduled[i-1]
		var sum float64
		for _, h := range all {
			if h.CumulativeDistance > prev.CumulativeDistance && h.CumulativeDistance <= cur.CumulativeDistance {
				sum += h.ISD
			}
		}
		cur.ActualISD = sum
	}

	stopped := make(map[string]bool, len(scheduled))
	for _, h := range scheduled {
		stopped[h.Station] = true
	}
	for _, st := range schedule {
		if !stopped[st] {
			out.Missed = append(out.Missed, st)
		}
	}

	if reference == nil || len(out.Missed) == 0 {
		return out
	}

	for i := 1; i < len(out.Scheduled); i++ {
		prev, cur := out.Scheduled[i-1], out.Scheduled[i]
		if !missedBetween(out.Missed, reference, prev.CumulativeDistance, cur.CumulativeDistance) {
			continue
		}
		prevCD, okPrev := reference.CumulativeAt(prev.Station)
		curCD, okCur := reference.CumulativeAt(cur.Station)
		if okPrev && okCur {
			out.AdjustedISD[cur.Station] = curCD - prevCD
		}
	}
	return out
}

// missedBetween reports whether the reference run places any missed
// station strictly between two halt distances.
func missedBetween(missed []string, reference *corpus.Run, from, to float64) bool {
	for _, st := range missed {
		cd, ok := reference.CumulativeAt(st)
		if ok && cd > from && cd < to {
			return true
		}
	}
	return false
}
