package metrics

import "math"

// RunningStats accumulates mean and variance in one pass using Welford's
// online algorithm, so baselines can be extended without the raw values.
type RunningStats struct {
	Count int
	Mean  float64
	M2    float64 // sum of squared differences from the mean
}

// ResumeStats rebuilds running statistics from a stored mean, population
// standard deviation and count.
func ResumeStats(mean, stddev float64, count int) *RunningStats {
	if count == 0 {
		return &RunningStats{}
	}
	return &RunningStats{
		Count: count,
		Mean:  mean,
		M2:    stddev * stddev * float64(count),
	}
}

// Add folds one observation into the statistics
func (s *RunningStats) Add(v float64) {
	s.Count++
	delta := v - s.Mean
	s.Mean += delta / float64(s.Count)
	s.M2 += delta * (v - s.Mean)
}

// StdDev returns the population standard deviation, 0 below two observations
func (s *RunningStats) StdDev() float64 {
	if s.Count < 2 {
		return 0
	}
	return math.Sqrt(s.M2 / float64(s.Count))
}

// ZScore reports how many standard deviations v lies from the mean.
// ok is false when the spread is zero.
func (s *RunningStats) ZScore(v float64) (z float64, ok bool) {
	sd := s.StdDev()
	if sd == 0 {
		return 0, false
	}
	return (v - s.Mean) / sd, true
}
