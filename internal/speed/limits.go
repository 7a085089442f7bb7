// Package speed places section speed limits on a trip's distance axis and
// scans the telemetry for overspeed events, the brake feel test and
// platform entry speeds.
package speed

import (
	"github.com/mini-rodalies-3d/tripaudit/internal/halts"
	"github.com/mini-rodalies-3d/tripaudit/internal/network"
	"github.com/mini-rodalies-3d/tripaudit/internal/telemetry"
)

// SectionSource looks up directed sections for a table variant
type SectionSource interface {
	Section(variant network.Variant, name string) (network.Section, bool)
}

// span is one section laid on the trip's cumulative distance axis
type span struct {
	section  string
	start    float64
	end      float64
	segments []network.SpeedSegment
}

// LimitProfile maps cumulative distance to the permitted speed. Section
// lengths come from the dynamic route, so limits stretch with wheel wear
// instead of drifting against the official kilometer posts.
type LimitProfile struct {
	spans []span
}

// NewLimitProfile lays the trip's sections end to end from origin using
// the dynamic section distances. Sections of zero length (a missed stop
// folded into the next section) take no room on the axis.
func NewLimitProfile(src SectionSource, variant network.Variant, origin float64, distances []halts.SectionDistance) *LimitProfile {
	p := &LimitProfile{}
	pos := origin
	for _, d := range distances {
		s := span{section: d.Section, start: pos, end: pos + d.Distance}
		if sec, ok := src.Section(variant, d.Section); ok {
			s.segments = sec.SpeedSegments
		}
		p.spans = append(p.spans, s)
		pos = s.end
	}
	return p
}

// Length is the distance covered by the profile
func (p *LimitProfile) Length() float64 {
	if len(p.spans) == 0 {
		return 0
	}
	return p.spans[len(p.spans)-1].end - p.spans[0].start
}

// LimitAt returns the limit in km/h at a cumulative distance. ok is false
// before the origin or where the section carries no speed table. Past the
// last section the end of the last section applies.
func (p *LimitProfile) LimitAt(distance float64) (limit float64, ok bool) {
	if len(p.spans) == 0 || distance < p.spans[0].start {
		return 0, false
	}

	for _, s := range p.spans {
		if distance >= s.start && distance < s.end {
			return limitIn(s.segments, (distance-s.start)/(s.end-s.start))
		}
	}

	for i := len(p.spans) - 1; i >= 0; i-- {
		if p.spans[i].end > p.spans[i].start {
			return limitIn(p.spans[i].segments, 1)
		}
	}
	return 0, false
}

// Limits returns the limit for every sample; 0 marks an unknown limit
func (p *LimitProfile) Limits(samples []telemetry.Sample) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		if l, ok := p.LimitAt(s.CumulativeDistance); ok {
			out[i] = l
		}
	}
	return out
}

// limitIn finds the segment covering fraction f. A fraction at or past the
// end of the last segment takes the last segment's limit.
func limitIn(segments []network.SpeedSegment, f float64) (float64, bool) {
	for i, seg := range segments {
		if f >= seg.StartFraction && f < seg.EndFraction {
			return seg.LimitKmh, true
		}
		if i == len(segments)-1 && f >= seg.EndFraction {
			return seg.LimitKmh, true
		}
	}
	return 0, false
}
