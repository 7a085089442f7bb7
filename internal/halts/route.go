package halts

import (
	"math"
	"sort"

	"github.com/mini-rodalies-3d/tripaudit/internal/config"
	"github.com/mini-rodalies-3d/tripaudit/internal/network"
)

// RouteLeg is one scheduled interval of the dynamic route
type RouteLeg struct {
	Station           string  `json:"station"`
	ActualISD         float64 `json:"actual_isd"`
	DynamicISD        float64 `json:"dynamic_isd"`
	ActualCumulative  float64 `json:"actual_cumulative"`
	DynamicCumulative float64 `json:"dynamic_cumulative"`
}

// BuildDynamicRoute picks, for every scheduled halt after the origin, an
// interval distance from past runs that sits slightly above the measured
// one, so the route runs a few meters ahead of the train. past maps each
// station to the distances past runs recorded for reaching it.
func BuildDynamicRoute(scheduled []Halt, past map[string][]float64, destination string, tol config.Tolerances) []RouteLeg {
	if len(scheduled) == 0 {
		return nil
	}
	origin := scheduled[0].Station

	var legs []RouteLeg
	var dynamicCum, actualCum float64
	last := ""

	for _, h := range scheduled[1:] {
		if h.Station == origin || h.Station == UnknownStation || h.Kind != KindScheduled {
			continue
		}
		if h.Station == last {
			if h.Station != destination || len(legs) == 0 {
				continue
			}
			// a repeated terminal replaces the previous terminal leg
			dynamicCum -= legs[len(legs)-1].DynamicISD
			legs = legs[:len(legs)-1]
		}

		actual := h.ActualISD
		if actual == 0 {
			actual = h.ISD
		}
		actualCum += actual

		selected := selectISD(actual, past[h.Station], dynamicCum, actualCum, tol)
		dynamicCum += selected

		legs = append(legs, RouteLeg{
			Station:           h.Station,
			ActualISD:         actual,
			DynamicISD:        selected,
			ActualCumulative:  actualCum,
			DynamicCumulative: dynamicCum,
		})
		last = h.Station
	}
	return legs
}

// selectISD applies the preference rules, rounds to whole meters and then
// nudges the choice to keep the dynamic cumulative distance within the
// buffer above actual. The minimum buffer is checked last, on the rounded
// value, so it always holds.
func selectISD(actual float64, history []float64, dynamicCum, actualCum float64, tol config.Tolerances) float64 {
	selected := actual
	if len(history) > 0 {
		values := make([]float64, len(history))
		copy(values, history)
		sort.Float64s(values)
		if actual <= values[len(values)-1] {
			selected = preferredISD(actual, values, tol)
		}
	}
	selected = math.Round(selected)

	if len(history) > 0 {
		if diff := dynamicCum + selected - actualCum; diff > tol.RouteBufferMax && selected > actual {
			selected -= math.Min(math.Floor(selected-actual), math.Ceil(diff-tol.RouteBufferMax))
		}
	}
	if diff := dynamicCum + selected - actualCum; diff < tol.RouteBufferMin {
		selected += math.Ceil(tol.RouteBufferMin - diff)
	}
	return selected
}

// preferredISD chooses from sorted past values: the middle value a few
// meters above actual, else a near exact value, else the smallest value
// above actual, else actual itself.
func preferredISD(actual float64, sorted []float64, tol config.Tolerances) float64 {
	var preferred []float64
	for _, v := range sorted {
		if d := v - actual; d >= tol.RoutePreferMin && d <= tol.RoutePreferMax {
			preferred = append(preferred, v)
		}
	}
	if len(preferred) > 0 {
		return preferred[len(preferred)/2]
	}

	for _, v := range sorted {
		if math.Abs(v-actual) <= tol.RouteExact {
			return v
		}
	}
	for _, v := range sorted {
		if v > actual {
			return v
		}
	}
	return actual
}

// SectionDistance is the distance assigned to one network section of the trip
type SectionDistance struct {
	Section  string  `json:"section"`
	Distance float64 `json:"distance"`
}

// SectionDistances assigns each trip section "A-B" the dynamic interval of
// the scheduled halt at B. A section whose end is not a scheduled halt
// gets 0; a halt without a dynamic leg falls back to its actual ISD.
func SectionDistances(sections []string, scheduled []Halt, legs []RouteLeg) []SectionDistance {
	index := make(map[string]int, len(scheduled))
	for i, h := range scheduled {
		index[h.Station] = i
	}

	out := make([]SectionDistance, 0, len(sections))
	for _, s := range sections {
		sd := SectionDistance{Section: s}
		_, end, _ := network.SplitSection(s)
		if i, ok := index[end]; ok {
			if leg := i - 1; leg >= 0 && leg < len(legs) {
				sd.Distance = legs[leg].DynamicISD
			} else {
				sd.Distance = scheduled[i].ActualISD
			}
		}
		out = append(out, sd)
	}
	return out
}
