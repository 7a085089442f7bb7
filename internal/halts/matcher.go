package halts

import (
	"math"

	"github.com/mini-rodalies-3d/tripaudit/internal/config"
	"github.com/mini-rodalies-3d/tripaudit/internal/corpus"
	"github.com/mini-rodalies-3d/tripaudit/internal/telemetry"
)

// Matcher assigns candidate halts to scheduled stations by comparing
// them with trusted past runs over the same stations.
type Matcher struct {
	tol config.Tolerances
}

// NewMatcher creates a matcher with the given tolerances
func NewMatcher(tol config.Tolerances) *Matcher {
	return &Matcher{tol: tol}
}

// history gives column lookups over trusted runs. All runs share the
// station columns of the sheet span they were cut from.
type history struct {
	runs []corpus.Run
}

func (h history) column(station string) int {
	if len(h.runs) == 0 {
		return -1
	}
	return h.runs[0].Index(station)
}

func (h history) average(col int) (float64, bool) {
	if col < 0 || len(h.runs) == 0 {
		return 0, false
	}
	var total float64
	for _, r := range h.runs {
		total += r.Cumulative[col]
	}
	return total / float64(len(h.runs)), true
}

// Match returns one MatchedHalt per candidate, in order. The first
// candidate is always the origin. Every later candidate is tried against
// the next scheduled station, then the one after it, then any later
// station far enough ahead; a candidate nothing explains is Unknown and
// its distance carries into the next comparison.
func (m *Matcher) Match(candidates []telemetry.CandidateHalt, schedule []string, trusted []corpus.Run) []MatchedHalt {
	out := make([]MatchedHalt, 0, len(candidates))
	if len(candidates) == 0 {
		return out
	}

	origin := UnknownStation
	if len(schedule) > 0 {
		origin = schedule[0]
	}
	out = append(out, MatchedHalt{
		CumulativeDistance: candidates[0].CumulativeDistance,
		InterHaltDistance:  candidates[0].InterHaltDistance,
		Station:            origin,
	})

	h := history{runs: trusted}
	current := 0
	var accumulated float64

	for _, c := range candidates[1:] {
		cd := c.CumulativeDistance
		isd := accumulated + c.InterHaltDistance
		station := UnknownStation

		next := current + 1
		curCol := -1
		if current < len(schedule) {
			curCol = h.column(schedule[current])
		}
		nextCol := -1
		if next < len(schedule) {
			nextCol = h.column(schedule[next])
		}

		matched := false
		if nextCol != -1 && curCol != -1 && m.matchesNext(h, cd, isd, curCol, nextCol) {
			station, current, matched = schedule[next], next, true
		}

		avgNext, haveAvg := 0.0, false
		if nextCol != -1 && curCol != -1 {
			avgNext, haveAvg = h.average(nextCol)
		}

		if !matched && next+1 < len(schedule) && (!haveAvg || cd > avgNext) {
			skipCol := h.column(schedule[next+1])
			if skipCol != -1 && curCol != -1 && m.matchesSkip(h, cd, curCol, skipCol) {
				station, current, matched = schedule[next+1], next+1, true
			}
		}

		if !matched && haveAvg && cd > avgNext+m.tol.AdvanceCD {
			if idx, ok := m.advance(h, schedule, next+1, cd, isd, curCol); idx != -1 {
				current = idx
				if ok {
					station, matched = schedule[idx], true
				}
			}
		}

		out = append(out, MatchedHalt{
			CumulativeDistance: cd,
			InterHaltDistance:  c.InterHaltDistance,
			Station:            station,
		})
		if matched {
			accumulated = 0
		} else {
			accumulated += c.InterHaltDistance
		}
	}

	return out
}

// matchesNext accepts the immediately following scheduled station when
// any run agrees on both cumulative and inter-station distance.
func (m *Matcher) matchesNext(h history, cd, isd float64, curCol, nextCol int) bool {
	for _, r := range h.runs {
		expCD := r.Cumulative[nextCol]
		prev := r.Cumulative[curCol]
		expISD := expCD - prev
		if expCD <= prev || expISD <= 0 {
			continue
		}
		if math.Abs(cd-expCD) <= m.tol.MatchCD && math.Abs(isd-expISD) <= m.tol.MatchISD {
			return true
		}
	}
	return false
}

// matchesSkip accepts the station two ahead on cumulative distance alone;
// the skipped station's share of the interval is unknown.
func (m *Matcher) matchesSkip(h history, cd float64, curCol, skipCol int) bool {
	for _, r := range h.runs {
		expCD := r.Cumulative[skipCol]
		if expCD <= r.Cumulative[curCol] {
			continue
		}
		if math.Abs(cd-expCD) <= m.tol.MatchCD {
			return true
		}
	}
	return false
}

// advance searches from index from for the first scheduled station whose
// average past distance is within the advance tolerance. It returns that
// index (or -1) and whether the interval distance agrees too. When it
// does not, the pointer still moves but the halt stays Unknown.
func (m *Matcher) advance(h history, schedule []string, from int, cd, isd float64, curCol int) (int, bool) {
	for idx := from; idx < len(schedule); idx++ {
		col := h.column(schedule[idx])
		avg, ok := h.average(col)
		if !ok {
			continue
		}
		if math.Abs(cd-avg) > m.tol.AdvanceCD {
			continue
		}

		var base float64
		if curCol != -1 {
			base = h.runs[0].Cumulative[curCol]
		}
		return idx, math.Abs(isd-(avg-base)) <= m.tol.AdvanceISD
	}
	return -1, false
}
