package halts

import (
	"fmt"
	"math"
	"sort"

	"github.com/mini-rodalies-3d/tripaudit/internal/network"
)

// SignalSource resolves the signals of a section for a train
type SignalSource interface {
	SignalsForSection(section string, variant network.Variant, id network.TrainIdentity, positions map[string]float64) []network.Signal
}

// Locator places non-scheduled halts at the nearest signal between the
// bracketing scheduled halts, or between station names when no signal
// is close enough.
type Locator struct {
	signals   SignalSource
	route     *network.Route
	id        network.TrainIdentity
	tolerance float64
}

// NewLocator creates a locator for one trip
func NewLocator(signals SignalSource, route *network.Route, id network.TrainIdentity, tolerance float64) *Locator {
	return &Locator{signals: signals, route: route, id: id, tolerance: tolerance}
}

// Locate describes where a halt at distance lies
func (l *Locator) Locate(distance float64, scheduled []Halt) Location {
	sorted := sortedByDistance(scheduled)

	if sig, spanned := l.nearestSignal(distance, sorted); sig != nil {
		typ := LocationSignal
		if spanned > 1 {
			typ = LocationSignalSection
		}
		return Location{
			Description: "At Signal " + sig.ID,
			Type:        typ,
			Signal:      sig,
		}
	}
	return betweenStations(distance, sorted)
}

// nearestSignal resolves the signal closest to the halt within tolerance.
// Signal positions run continuously across every section from the rear
// scheduled station to the forward one; the section count is returned.
func (l *Locator) nearestSignal(distance float64, sorted []Halt) (*SignalMatch, int) {
	var rear, forward *Halt
	for i := range sorted {
		if sorted[i].CumulativeDistance <= distance {
			rear = &sorted[i]
			continue
		}
		forward = &sorted[i]
		break
	}
	if rear == nil || forward == nil || l.route == nil {
		return nil, 0
	}

	sections := sectionRange(l.route.Sections, rear.Station, forward.Station)
	if len(sections) == 0 {
		return nil, 0
	}

	positions := make(map[string]float64, len(sorted))
	for _, h := range sorted {
		positions[h.Station] = h.CumulativeDistance
	}

	var span []network.Signal
	for _, s := range sections {
		span = append(span, l.signals.SignalsForSection(s, l.route.Variant, l.id, positions)...)
	}

	relative := distance - rear.CumulativeDistance
	var best *SignalMatch
	var position float64
	for i, sig := range span {
		if i > 0 {
			position += sig.Distance
		}
		diff := math.Abs(relative - position)
		if diff > l.tolerance || (best != nil && diff >= best.Diff) {
			continue
		}
		best = &SignalMatch{
			Section:          sig.Section,
			ID:               sig.ID,
			SignalDistance:   position,
			RelativeDistance: relative,
			Diff:             diff,
			RearStation:      rear.Station,
			ForwardStation:   forward.Station,
		}
	}

	return best, len(sections)
}

// sectionRange returns the trip sections from the last one starting at
// rear through the last one ending at forward.
func sectionRange(sections []string, rear, forward string) []string {
	start, end := -1, -1
	for i, s := range sections {
		a, b, ok := network.SplitSection(s)
		if !ok {
			continue
		}
		if a == rear {
			start = i
		}
		if b == forward {
			end = i
		}
	}
	if start == -1 || end == -1 || start > end {
		return nil
	}
	return sections[start : end+1]
}

func betweenStations(distance float64, sorted []Halt) Location {
	for i := 0; i+1 < len(sorted); i++ {
		cur, next := sorted[i], sorted[i+1]
		if distance >= cur.CumulativeDistance && distance <= next.CumulativeDistance {
			return Location{
				Description: fmt.Sprintf("Between %q And %q", cur.Station, next.Station),
				Type:        LocationBetween,
			}
		}
	}
	if len(sorted) > 0 {
		first, last := sorted[0], sorted[len(sorted)-1]
		if distance < first.CumulativeDistance {
			return Location{Description: fmt.Sprintf("Before %q", first.Station), Type: LocationBeforeFirst}
		}
		if distance > last.CumulativeDistance {
			return Location{Description: fmt.Sprintf("After %q", last.Station), Type: LocationAfterLast}
		}
	}
	return Location{Description: "Unknown Location", Type: LocationUnknown}
}

func sortedByDistance(halts []Halt) []Halt {
	out := make([]Halt, len(halts))
	copy(out, halts)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CumulativeDistance < out[j].CumulativeDistance
	})
	return out
}
