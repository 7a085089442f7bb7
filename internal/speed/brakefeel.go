package speed

import (
	"math"

	"github.com/mini-rodalies-3d/tripaudit/internal/telemetry"
)

// BrakeFeelConfig holds the brake feel test thresholds
type BrakeFeelConfig struct {
	MinSpeed       float64 // km/h, lowest speed a test may start from
	MaxSpeed       float64 // km/h, the test must be done before this speed
	MinDrop        float64 // km/h
	MaxVariation   float64 // km/h, band around the lowest speed that counts as holding
	Stabilization  int     // samples holding the band to count as recovered
	NoiseTolerance int
	MinDistance    float64 // meters, search stops at the first halt past this
}

// DefaultBrakeFeel returns the thresholds used for suburban stock
func DefaultBrakeFeel() BrakeFeelConfig {
	return BrakeFeelConfig{
		MinSpeed:       15,
		MaxSpeed:       40,
		MinDrop:        5,
		MaxVariation:   3,
		Stabilization:  5,
		NoiseTolerance: 3,
		MinDistance:    700,
	}
}

const (
	peakTrailSamples = 15 // samples needed after a peak to judge the drop
	minScanSamples   = 20
	brakingWindow    = 30
	recoveryWindow   = 40
	haltWindow       = 10
	peakDropBand     = 2 // km/h below the peak that marks braking
	recoverySurge    = 5 // km/h above the lowest speed that marks recovery
)

// BrakeFeelTest is the first brake application after departure
type BrakeFeelTest struct {
	StartIndex    int     `json:"start_index"`
	PeakIndex     int     `json:"peak_index"`
	LowestIndex   int     `json:"lowest_index"`
	EndIndex      int     `json:"end_index"`
	StartSpeed    float64 `json:"start_speed"`
	PeakSpeed     float64 `json:"peak_speed"`
	LowestSpeed   float64 `json:"lowest_speed"`
	RecoverySpeed float64 `json:"recovery_speed"`
	SpeedDrop     float64 `json:"speed_drop"`
	Duration      float64 `json:"duration_seconds"`
	EndedInHalt   bool    `json:"ended_in_halt"`
	StartDistance float64 `json:"start_distance"`
}

// DetectBrakeFeelTest finds the first brake feel test of a trip: from a
// peak between MinSpeed and MaxSpeed, a drop of at least MinDrop lasting
// three samples or more, followed by recovery or a halt. Only the samples
// up to the first halt past MinDistance are searched, and reaching
// MaxSpeed first means no test was made. Returns nil when none is found.
func DetectBrakeFeelTest(samples []telemetry.Sample, cfg BrakeFeelConfig) *BrakeFeelTest {
	end := analysisEnd(samples, cfg)

	var speeds, times []float64
	var index []int
	for i, s := range samples[:end] {
		if s.Speed < 0 {
			continue
		}
		speeds = append(speeds, s.Speed)
		times = append(times, elapsed(samples, i))
		index = append(index, i)
	}

	for i := 0; i < len(speeds)-minScanSamples; i++ {
		v := speeds[i]
		if v < cfg.MinSpeed {
			continue
		}
		if v > cfg.MaxSpeed {
			return nil
		}

		peak, dropStart, ok := findPeak(speeds, i, cfg.MaxSpeed)
		if !ok {
			continue
		}

		lowest := dropStart
		for j := dropStart; j < min(dropStart+brakingWindow, len(speeds)); j++ {
			if speeds[j] < speeds[lowest] {
				lowest = j
			} else if speeds[j] > speeds[lowest]+peakDropBand {
				break
			}
		}

		drop := speeds[peak] - speeds[lowest]
		if drop < cfg.MinDrop || lowest-peak < 3 {
			continue
		}

		finish, recovered := findRecovery(speeds, lowest, cfg)
		halted := false
		if !recovered {
			for j := lowest; j < min(lowest+haltWindow, len(speeds)); j++ {
				if speeds[j] == 0 {
					finish, halted = j, true
					break
				}
			}
		}
		if !recovered && !halted {
			i = lowest
			continue
		}

		start := peak
		for j := peak - 1; j > max(-1, peak-brakingWindow); j-- {
			if speeds[j] < speeds[start] {
				start = j
			}
			if speeds[j] <= 0 {
				break
			}
		}

		test := &BrakeFeelTest{
			StartIndex:    index[start],
			PeakIndex:     index[peak],
			LowestIndex:   index[lowest],
			EndIndex:      index[finish],
			StartSpeed:    speeds[start],
			PeakSpeed:     speeds[peak],
			LowestSpeed:   speeds[lowest],
			SpeedDrop:     drop,
			Duration:      times[finish] - times[start],
			EndedInHalt:   halted,
			StartDistance: samples[index[start]].CumulativeDistance,
		}
		if recovered {
			test.RecoverySpeed = speeds[finish]
		}
		return test
	}
	return nil
}

// analysisEnd cuts the search at the first halt past MinDistance, padded
// by enough samples to see the braking settle.
func analysisEnd(samples []telemetry.Sample, cfg BrakeFeelConfig) int {
	padding := max(10, cfg.NoiseTolerance+cfg.Stabilization+5)
	for i, s := range samples {
		if s.Speed == 0 && s.DistanceIncrement == 0 && s.CumulativeDistance >= cfg.MinDistance {
			return min(len(samples), i+1+padding)
		}
	}
	return len(samples)
}

// findPeak follows the speed up from i until it falls more than the drop
// band below the running peak. ok is false when the speed passes limit
// first or the data ends while still rising.
func findPeak(speeds []float64, i int, limit float64) (peak, dropStart int, ok bool) {
	peak = i
	for j := i; j < len(speeds)-peakTrailSamples; j++ {
		if speeds[j] > limit {
			return 0, 0, false
		}
		if speeds[j] > speeds[peak] {
			peak = j
		} else if speeds[j] < speeds[peak]-peakDropBand {
			return peak, j, true
		}
	}
	return 0, 0, false
}

// findRecovery looks for the speed holding near the lowest point or
// picking up clearly after it.
func findRecovery(speeds []float64, from int, cfg BrakeFeelConfig) (int, bool) {
	base := speeds[from]
	holding := 0
	for j := from; j < len(speeds) && j-from < recoveryWindow; j++ {
		switch {
		case math.Abs(speeds[j]-base) <= cfg.MaxVariation:
			holding++
			if holding >= cfg.Stabilization {
				return j, true
			}
		case speeds[j] > base+recoverySurge:
			return j, true
		default:
			holding = max(0, holding-1)
		}
	}
	return 0, false
}

// elapsed is the seconds since the first sample, or the sample index when
// the recording carries no timestamps.
func elapsed(samples []telemetry.Sample, i int) float64 {
	first := samples[0].Timestamp
	if first.IsZero() || samples[i].Timestamp.IsZero() {
		return float64(i)
	}
	return samples[i].Timestamp.Sub(first).Seconds()
}
