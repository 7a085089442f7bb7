package halts

import "math"

// CollapseDuplicates relabels a halt that repeats the previous halt's
// label. A repeat farther than tolerance away becomes Unknown; a repeat
// within tolerance is the same physical stop and is flagged Duplicate.
// The result has the same length and order as the input.
func CollapseDuplicates(matched []MatchedHalt, tolerance float64) []MatchedHalt {
	out := make([]MatchedHalt, len(matched))
	copy(out, matched)

	last := -1
	for i := range out {
		if last == -1 || out[i].Station != out[last].Station {
			last = i
			continue
		}
		out[i].Station = UnknownStation
		if math.Abs(out[i].CumulativeDistance-out[last].CumulativeDistance) <= tolerance {
			// the kept halt stays the comparison point
			out[i].Duplicate = true
			continue
		}
		last = i
	}
	return out
}

// Partition is the split of a trip's halts by kind. Duplicates are
// non-scheduled halts kept apart so they do not count as extra stops.
type Partition struct {
	Scheduled     []Halt
	NearScheduled []Halt
	NonScheduled  []Halt
	Duplicates    []Halt
}

// Split classifies matched halts. A halt is scheduled when its station is
// in the schedule; Unknown and off-schedule halts are non-scheduled, and
// those within nearTolerance of a scheduled halt are set apart as near
// scheduled. Order within each group follows the input.
func Split(matched []MatchedHalt, schedule []string, nearTolerance float64) Partition {
	inSchedule := make(map[string]bool, len(schedule))
	for _, st := range schedule {
		inSchedule[st] = true
	}

	var p Partition
	var others []Halt
	for _, m := range matched {
		h := Halt{
			Station:            m.Station,
			CumulativeDistance: m.CumulativeDistance,
			ISD:                m.InterHaltDistance,
		}
		switch {
		case m.Duplicate:
			h.Kind = KindUnknown
			p.Duplicates = append(p.Duplicates, h)
		case m.Station != UnknownStation && inSchedule[m.Station]:
			h.Kind = KindScheduled
			p.Scheduled = append(p.Scheduled, h)
		case m.Station == UnknownStation:
			h.Kind = KindUnknown
			others = append(others, h)
		default:
			h.Kind = KindNonScheduled
			others = append(others, h)
		}
	}

	for _, h := range others {
		if nearAny(h.CumulativeDistance, p.Scheduled, nearTolerance) {
			p.NearScheduled = append(p.NearScheduled, h)
		} else {
			p.NonScheduled = append(p.NonScheduled, h)
		}
	}
	return p
}

func nearAny(d float64, scheduled []Halt, tolerance float64) bool {
	for _, s := range scheduled {
		if math.Abs(d-s.CumulativeDistance) <= tolerance {
			return true
		}
	}
	return false
}
