package speed

import (
	"time"

	"github.com/mini-rodalies-3d/tripaudit/internal/telemetry"
)

// Severity grades how far an event went over the limit
type Severity string

const (
	SeverityMinor    Severity = "minor"
	SeverityModerate Severity = "moderate"
	SeveritySevere   Severity = "severe"
	SeverityCritical Severity = "critical"
)

// SeverityFor grades an excess over the limit in km/h
func SeverityFor(excess float64) Severity {
	switch {
	case excess < 5:
		return SeverityMinor
	case excess < 10:
		return SeverityModerate
	case excess < 20:
		return SeveritySevere
	}
	return SeverityCritical
}

// lookAhead is how many samples a dip below the threshold may last
// without closing the event
const lookAhead = 3

// OverspeedEvent is a run of samples above the limit plus margin
type OverspeedEvent struct {
	StartIndex    int       `json:"start_index"`
	EndIndex      int       `json:"end_index"`
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`
	StartDistance float64   `json:"start_distance"`
	EndDistance   float64   `json:"end_distance"`
	Samples       int       `json:"samples"`
	MaxSpeed      float64   `json:"max_speed"`
	MaxExcess     float64   `json:"max_excess"`
	Limit         float64   `json:"limit"`
	Threshold     float64   `json:"threshold"`
	Severity      Severity  `json:"severity"`
}

// DetectOverspeed scans samples against the per-sample limits. An event
// opens when speed exceeds limit+margin and closes at the first sample at
// or below threshold that is not followed by another overspeed sample
// within the look-ahead window. Events with minCount samples or fewer are
// dropped. A zero limit means no limit is known and never opens an event.
func DetectOverspeed(samples []telemetry.Sample, limits []float64, margin float64, minCount int) []OverspeedEvent {
	var events []OverspeedEvent
	var cur *OverspeedEvent

	over := func(i int) bool {
		return i < len(limits) && limits[i] > 0 && samples[i].Speed > limits[i]+margin
	}

	for i := 0; i < len(samples); i++ {
		if over(i) {
			if cur == nil {
				cur = &OverspeedEvent{
					StartIndex:    i,
					StartTime:     samples[i].Timestamp,
					StartDistance: samples[i].CumulativeDistance,
					Limit:         limits[i],
					Threshold:     limits[i] + margin,
				}
			}
			cur.Samples++
			cur.MaxSpeed = max(cur.MaxSpeed, samples[i].Speed)
			cur.MaxExcess = max(cur.MaxExcess, samples[i].Speed-cur.Limit)
			continue
		}
		if cur == nil {
			continue
		}
		if resumes(i, len(samples), over) {
			continue
		}

		cur.EndIndex = i
		cur.EndTime = samples[i].Timestamp
		cur.EndDistance = samples[i].CumulativeDistance
		if cur.Samples > minCount {
			cur.Severity = SeverityFor(cur.MaxExcess)
			events = append(events, *cur)
		}
		cur = nil
	}

	if cur != nil && cur.Samples > minCount {
		last := len(samples) - 1
		cur.EndIndex = last
		cur.EndTime = samples[last].Timestamp
		cur.EndDistance = samples[last].CumulativeDistance
		cur.Severity = SeverityFor(cur.MaxExcess)
		events = append(events, *cur)
	}
	return events
}

// resumes reports whether an overspeed sample follows i within the window
func resumes(i, n int, over func(int) bool) bool {
	for j := 1; j <= lookAhead && i+j < n; j++ {
		if over(i + j) {
			return true
		}
	}
	return false
}
