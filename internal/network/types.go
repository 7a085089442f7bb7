package network

// Variant selects which family of section/signal tables applies to a train.
// Fast trains run on the through lines, slow and harbour trains on the local lines.
type Variant string

const (
	VariantFast Variant = "fast"
	VariantSlow Variant = "slow"
	VariantTHB  Variant = "thb"
)

// Station is a network station with its official kilometer post
type Station struct {
	Code          string  `json:"code"`
	KilometerPost float64 `json:"km"`
}

// SpeedSegment is a speed limit covering [StartFraction, EndFraction) of a section
type SpeedSegment struct {
	StartFraction float64 `json:"start"`
	EndFraction   float64 `json:"end"`
	LimitKmh      float64 `json:"limit"`
}

// Section is a directed edge "A-B" between two adjacent stations.
// "A-B" and "B-A" are independent entries with their own tables.
type Section struct {
	Name           string         `json:"name"`
	Start          string         `json:"-"`
	End            string         `json:"-"`
	Length         float64        `json:"length"`
	PlatformLength float64        `json:"platform_length"`
	SpeedSegments  []SpeedSegment `json:"speed_segments"`
}

// Signal is a trackside signal. Distance is the gap from the previous
// signal in the same section; the first signal of a section is at 0.
type Signal struct {
	Section  string  `json:"section"`
	ID       string  `json:"id"`
	Distance float64 `json:"distance"`
}

// Train is a timetable entry: the train code and its published halts
type Train struct {
	Number string   `json:"number"`
	Code   string   `json:"code"`
	Halts  []string `json:"halts,omitempty"`
}

// TrainIdentity identifies the trip being analyzed
type TrainIdentity struct {
	Number string
	Code   string
	From   string
	To     string
}

// Route is the resolved corridor and schedule for one trip
type Route struct {
	Corridor  string
	Direction string
	Variant   Variant
	Schedule  []string
	Sections  []string
}
