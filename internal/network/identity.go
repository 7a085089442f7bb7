package network

import (
	"strconv"
	"strings"
)

// Train code prefixes (first three digits) grouped by service family
var (
	fastPrefixes         = prefixSet("950", "951", "952", "953", "954", "955", "956", "957", "958", "959")
	slowSEPrefixes       = prefixSet("960", "961", "962", "963")
	slowNEPrefixes       = prefixSet("964", "965", "966")
	slowGeneralPrefixes  = prefixSet("970", "971", "972", "973", "974", "975", "976")
	transHarbourPrefixes = prefixSet("990", "992", "993", "994", "995")
	harbourPrefixes      = prefixSet("980", "981", "982", "983", "984", "985", "986", "987", "988", "989")
	portPrefixes         = prefixSet("996", "997")
)

func prefixSet(codes ...string) map[string]bool {
	m := make(map[string]bool, len(codes))
	for _, c := range codes {
		m[c] = true
	}
	return m
}

// NormalizeTrainNumber upper-cases and strips whitespace from a train number
func NormalizeTrainNumber(number string) string {
	return strings.ToUpper(strings.Join(strings.Fields(number), ""))
}

// Direction returns "UP" for even train codes and "DN" for odd ones.
// Returns "" if the code does not end in a digit.
func Direction(code string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return ""
	}
	last, err := strconv.Atoi(code[len(code)-1:])
	if err != nil {
		return ""
	}
	if last%2 == 0 {
		return "UP"
	}
	return "DN"
}

// baseCorridor maps a train code to the corridor family without direction.
// seStations and neStations are consulted when the prefix is not conclusive.
func baseCorridor(code, from, to string, thbVSH, seStations, neStations map[string]bool) string {
	code = strings.TrimSpace(code)
	prefix := code
	if len(prefix) > 3 {
		prefix = prefix[:3]
	}
	from = strings.ToUpper(strings.TrimSpace(from))
	to = strings.ToUpper(strings.TrimSpace(to))

	switch {
	case transHarbourPrefixes[prefix]:
		if prefix == "990" {
			return "THB_PNVL"
		}
		if prefix == "994" || prefix == "995" || thbVSH[from] || thbVSH[to] {
			return "THB_VSH"
		}
		return "THB"
	case harbourPrefixes[prefix], portPrefixes[prefix]:
		return "HARBOUR"
	case fastPrefixes[prefix]:
		return "FASTLOCALS"
	case slowNEPrefixes[prefix]:
		return "LOCALSNE"
	case slowSEPrefixes[prefix]:
		return "LOCALSSE"
	case slowGeneralPrefixes[prefix]:
		return "SLOWLOCALS"
	case seStations[from] && seStations[to]:
		return "LOCALSSE"
	case neStations[from] && neStations[to]:
		return "LOCALSNE"
	}
	return "SLOWLOCALS"
}

// variantFor picks the table family for a corridor base name
func variantFor(base string) Variant {
	switch {
	case base == "FASTLOCALS":
		return VariantFast
	case strings.HasPrefix(base, "THB"):
		return VariantTHB
	}
	return VariantSlow
}
