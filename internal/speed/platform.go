package speed

import (
	"math"

	"github.com/mini-rodalies-3d/tripaudit/internal/halts"
	"github.com/mini-rodalies-3d/tripaudit/internal/network"
	"github.com/mini-rodalies-3d/tripaudit/internal/telemetry"
)

// Reference points inside the platform, in meters before the halt
const (
	midPlatformOffset = 130
	oneCoachOffset    = 20
	originCutoff      = 10
)

// PlatformEntry is the approach speed profile at one scheduled halt
type PlatformEntry struct {
	Station          string  `json:"station"`
	Section          string  `json:"section"`
	HaltDistance     float64 `json:"halt_distance"`
	PlatformLength   float64 `json:"platform_length"`
	EntryDistance    float64 `json:"entry_distance"`
	EntrySpeed       float64 `json:"entry_speed"`
	EntryGap         float64 `json:"entry_gap"`
	MidPlatformSpeed float64 `json:"mid_platform_speed"`
	OneCoachSpeed    float64 `json:"one_coach_speed"`
}

// PlatformEntrySpeeds reports, for each scheduled halt after the origin,
// the speed when the train front passed the platform start. The platform
// length comes from the section approaching the station in schedule order;
// halts whose platform is not in the catalog are skipped.
func PlatformEntrySpeeds(samples []telemetry.Sample, scheduled []halts.Halt, schedule []string, src SectionSource, variant network.Variant) []PlatformEntry {
	if len(samples) == 0 {
		return nil
	}

	var out []PlatformEntry
	for _, h := range scheduled {
		if h.Kind != halts.KindScheduled || h.CumulativeDistance-samples[0].CumulativeDistance < originCutoff {
			continue
		}
		section, length, ok := platformFor(h.Station, schedule, src, variant)
		if !ok {
			continue
		}

		entry := math.Max(h.CumulativeDistance-length, 0)
		speed, at := speedAt(samples, entry)
		mid, _ := speedAt(samples, math.Max(h.CumulativeDistance-midPlatformOffset, 0))
		coach, _ := speedAt(samples, math.Max(h.CumulativeDistance-oneCoachOffset, 0))

		out = append(out, PlatformEntry{
			Station:          h.Station,
			Section:          section,
			HaltDistance:     h.CumulativeDistance,
			PlatformLength:   length,
			EntryDistance:    entry,
			EntrySpeed:       speed,
			EntryGap:         math.Abs(at - entry),
			MidPlatformSpeed: mid,
			OneCoachSpeed:    coach,
		})
	}
	return out
}

// platformFor finds the approach section of station: the section from
// its predecessor in the schedule, else the section leaving it.
func platformFor(station string, schedule []string, src SectionSource, variant network.Variant) (string, float64, bool) {
	var candidates []string
	for i, st := range schedule {
		if st != station {
			continue
		}
		if i > 0 {
			candidates = append(candidates, schedule[i-1]+"-"+st)
		}
		if i+1 < len(schedule) {
			candidates = append(candidates, st+"-"+schedule[i+1])
		}
	}
	for _, name := range candidates {
		if sec, ok := src.Section(variant, name); ok && sec.PlatformLength > 0 {
			return name, sec.PlatformLength, true
		}
	}
	return "", 0, false
}

// speedAt prefers the first sample at or past target, since it sits
// closest to the halt; with none it takes the nearest sample.
func speedAt(samples []telemetry.Sample, target float64) (speed, distance float64) {
	following, closest := -1, 0
	for i, s := range samples {
		diff := s.CumulativeDistance - target
		if math.Abs(diff) < math.Abs(samples[closest].CumulativeDistance-target) {
			closest = i
		}
		if diff >= 0 && (following == -1 || diff < samples[following].CumulativeDistance-target) {
			following = i
		}
	}
	pick := closest
	if following != -1 {
		pick = following
	}
	return samples[pick].Speed, samples[pick].CumulativeDistance
}
