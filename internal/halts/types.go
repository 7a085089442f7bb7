// Package halts labels a trip's detected halts with stations and
// trackside landmarks, and derives the per-section distance table
// used to place speed limits.
package halts

import (
	"encoding/json"
	"fmt"
)

// UnknownStation labels a halt that no scheduled station explains
const UnknownStation = "Unknown"

// Kind classifies a labelled halt
type Kind int

const (
	KindScheduled Kind = iota
	KindNonScheduled
	KindUnknown
)

func (k Kind) String() string {
	switch k {
	case KindScheduled:
		return "scheduled"
	case KindNonScheduled:
		return "non-scheduled"
	case KindUnknown:
		return "unknown"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// MarshalJSON encodes the kind by name
func (k Kind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON decodes a kind name
func (k *Kind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "scheduled":
		*k = KindScheduled
	case "non-scheduled":
		*k = KindNonScheduled
	case "unknown":
		*k = KindUnknown
	default:
		return fmt.Errorf("unknown halt kind %q", s)
	}
	return nil
}

// MatchedHalt is a candidate halt with the station the matcher assigned
type MatchedHalt struct {
	CumulativeDistance float64 `json:"cumulative_distance"`
	InterHaltDistance  float64 `json:"isd"`
	Station            string  `json:"station"`
	// Duplicate marks a repeat of the previous label within the duplicate tolerance
	Duplicate bool `json:"duplicate,omitempty"`
}

// LocationType says how a non-scheduled halt was placed
type LocationType string

const (
	LocationSignal        LocationType = "signal"
	LocationSignalSection LocationType = "signal-section-based"
	LocationBetween       LocationType = "between-stations"
	LocationBeforeFirst   LocationType = "before-first"
	LocationAfterLast     LocationType = "after-last"
	LocationUnknown       LocationType = "unknown"
)

// SignalMatch is the signal a halt was attributed to
type SignalMatch struct {
	Section          string  `json:"section"`
	ID               string  `json:"signal"`
	SignalDistance   float64 `json:"signal_distance"`
	RelativeDistance float64 `json:"relative_distance"`
	Diff             float64 `json:"diff"`
	RearStation      string  `json:"rear_station"`
	ForwardStation   string  `json:"forward_station"`
}

// Location is a human readable position for a non-scheduled halt
type Location struct {
	Description string       `json:"description"`
	Type        LocationType `json:"type"`
	Signal      *SignalMatch `json:"signal,omitempty"`
}

// Halt is a labelled halt. Station is set for scheduled halts; Location
// for the others. ActualISD and BaselineZ only apply to scheduled halts.
type Halt struct {
	Kind               Kind      `json:"kind"`
	Station            string    `json:"station"`
	CumulativeDistance float64   `json:"cumulative_distance"`
	ISD                float64   `json:"isd"`
	ActualISD          float64   `json:"actual_isd,omitempty"`
	BaselineZ          *float64  `json:"baseline_z,omitempty"`
	Location           *Location `json:"location,omitempty"`
}
