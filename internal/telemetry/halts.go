package telemetry

import "sort"

// CandidateHalt is a position where the train came to rest.
// InterHaltDistance is the gap to the previous candidate; 0 for the origin.
type CandidateHalt struct {
	CumulativeDistance float64 `json:"cumulative_distance"`
	InterHaltDistance  float64 `json:"inter_halt_distance"`
}

// ExtractHalts returns the distinct cumulative distances at which a sample
// reports both zero speed and zero distance increment, in ascending order.
// A halt spanning several stationary samples yields one candidate.
func ExtractHalts(samples []Sample) []CandidateHalt {
	seen := make(map[float64]bool)
	var distances []float64
	for _, s := range samples {
		if s.Speed != 0 || s.DistanceIncrement != 0 {
			continue
		}
		if seen[s.CumulativeDistance] {
			continue
		}
		seen[s.CumulativeDistance] = true
		distances = append(distances, s.CumulativeDistance)
	}
	sort.Float64s(distances)

	halts := make([]CandidateHalt, len(distances))
	for i, d := range distances {
		halts[i].CumulativeDistance = d
		if i > 0 {
			halts[i].InterHaltDistance = d - distances[i-1]
		}
	}
	return halts
}
