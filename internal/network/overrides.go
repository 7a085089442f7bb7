package network

import (
	"strconv"
	"strings"
)

// OverrideRule replaces the signal list of one section when Applies
// returns true for the train being analyzed. positions maps scheduled
// station codes to their detected halt distances.
type OverrideRule struct {
	Section string
	Applies func(id TrainIdentity, positions map[string]float64) bool
	Signals []Signal
}

// DefaultOverrides returns the alternate signal layouts in use on the network
func DefaultOverrides() []OverrideRule {
	return []OverrideRule{
		{
			// Harbour trains from Goregaon side run through the RVJ loop
			Section: "VDLR-GTBN",
			Applies: func(id TrainIdentity, _ map[string]float64) bool {
				return vdlrLoopTrain(id.Number)
			},
			Signals: []Signal{
				{Section: "VDLR-GTBN", ID: "RVJ S-7", Distance: 0},
				{Section: "VDLR-GTBN", ID: "RVJ S-15", Distance: 517},
				{Section: "VDLR-GTBN", ID: "RVJ S-22", Distance: 465},
				{Section: "VDLR-GTBN", ID: "H-41", Distance: 909},
				{Section: "VDLR-GTBN", ID: "H-43", Distance: 755},
			},
		},
		{
			// Trains starting at TNA from the short platform line
			Section: "TNA-MLND",
			Applies: func(id TrainIdentity, positions map[string]float64) bool {
				if strings.ToUpper(id.From) != "TNA" {
					return false
				}
				d, ok := positions["MLND"]
				return ok && d < 2500
			},
			Signals: []Signal{
				{Section: "TNA-MLND", ID: "TNA S-44", Distance: 0},
				{Section: "TNA-MLND", ID: "TNA S-8", Distance: 582},
				{Section: "TNA-MLND", ID: "L-092", Distance: 504},
				{Section: "TNA-MLND", ID: "MLND S-17", Distance: 419},
				{Section: "TNA-MLND", ID: "MLND S-15", Distance: 460},
			},
		},
	}
}

func vdlrLoopTrain(number string) bool {
	number = NormalizeTrainNumber(number)
	if strings.HasPrefix(number, "GNPL") {
		return true
	}
	for _, prefix := range []string{"PLVD", "VVD", "BRVD"} {
		if !strings.HasPrefix(number, prefix) {
			continue
		}
		n, err := strconv.Atoi(leadingDigits(number[len(prefix):]))
		if err == nil && n%2 == 1 {
			return true
		}
	}
	return false
}

func leadingDigits(s string) string {
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	return s[:end]
}
