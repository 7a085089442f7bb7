package telemetry

import (
	"errors"
	"time"
)

// ErrNoSamples is returned when a recording yields no usable samples
var ErrNoSamples = errors.New("no telemetry samples")

// Sample is one speedometer reading. Speed is km/h, distances are meters.
type Sample struct {
	Timestamp          time.Time `json:"timestamp"`
	Speed              float64   `json:"speed"`
	DistanceIncrement  float64   `json:"distance_increment"`
	CumulativeDistance float64   `json:"cumulative_distance"`
}

// Summary holds aggregate figures for a recording
type Summary struct {
	SampleCount   int     `json:"sample_count"`
	MaxSpeed      float64 `json:"max_speed"`
	AvgSpeed      float64 `json:"avg_speed"`
	TotalDistance float64 `json:"total_distance"`
	Duration      float64 `json:"duration_seconds"`
}

// Accumulate fills CumulativeDistance as the running sum of increments.
// Increments are kept as reported, including movement at zero speed.
func Accumulate(samples []Sample) {
	var total float64
	for i := range samples {
		total += samples[i].DistanceIncrement
		samples[i].CumulativeDistance = total
	}
}

// Summarize computes max/avg speed and distance covered
func Summarize(samples []Sample) Summary {
	s := Summary{SampleCount: len(samples)}
	if len(samples) == 0 {
		return s
	}

	var sum float64
	for _, sm := range samples {
		sum += sm.Speed
		if sm.Speed > s.MaxSpeed {
			s.MaxSpeed = sm.Speed
		}
	}
	s.AvgSpeed = sum / float64(len(samples))

	first, last := samples[0], samples[len(samples)-1]
	s.TotalDistance = last.CumulativeDistance - first.CumulativeDistance + first.DistanceIncrement
	if !first.Timestamp.IsZero() && !last.Timestamp.IsZero() {
		s.Duration = last.Timestamp.Sub(first.Timestamp).Seconds()
	}
	return s
}
