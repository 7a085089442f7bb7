package halts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mini-rodalies-3d/tripaudit/internal/network"
)

func matched(pairs ...any) []MatchedHalt {
	var out []MatchedHalt
	var prev float64
	for i := 0; i+1 < len(pairs); i += 2 {
		d := float64(pairs[i].(int))
		h := MatchedHalt{CumulativeDistance: d, Station: pairs[i+1].(string)}
		if i > 0 {
			h.InterHaltDistance = d - prev
		}
		prev = d
		out = append(out, h)
	}
	return out
}

func TestCollapseDuplicates(t *testing.T) {
	tests := []struct {
		name      string
		in        []MatchedHalt
		want      []string
		duplicate []bool
	}{
		{
			name:      "distinct labels untouched",
			in:        matched(0, "S1", 5000, "S2", 9800, "S3"),
			want:      []string{"S1", "S2", "S3"},
			duplicate: []bool{false, false, false},
		},
		{
			name:      "repeat far away becomes unknown",
			in:        matched(0, "S1", 5000, "S2", 5300, "S2"),
			want:      []string{"S1", "S2", "Unknown"},
			duplicate: []bool{false, false, false},
		},
		{
			name:      "repeat within tolerance is flagged",
			in:        matched(0, "S1", 3000, "Unknown", 3001, "Unknown", 9800, "S3"),
			want:      []string{"S1", "Unknown", "Unknown", "S3"},
			duplicate: []bool{false, false, true, false},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CollapseDuplicates(tt.in, 2)
			require.Len(t, got, len(tt.in))
			assert.Equal(t, tt.want, stationsOf(got))
			for i := range got {
				assert.Equal(t, tt.duplicate[i], got[i].Duplicate, "halt %d", i)
			}
		})
	}
}

func TestSplit(t *testing.T) {
	in := matched(0, "S1", 3000, "Unknown", 5000, "S2", 5060, "Unknown", 9800, "S3")
	in = append(in, MatchedHalt{CumulativeDistance: 9801, InterHaltDistance: 1, Station: "Unknown", Duplicate: true})

	p := Split(in, threeStations, 100)

	require.Len(t, p.Scheduled, 3)
	for _, h := range p.Scheduled {
		assert.Equal(t, KindScheduled, h.Kind)
	}
	require.Len(t, p.NearScheduled, 1)
	assert.Equal(t, 5060.0, p.NearScheduled[0].CumulativeDistance)
	require.Len(t, p.NonScheduled, 1)
	assert.Equal(t, KindUnknown, p.NonScheduled[0].Kind)
	assert.Equal(t, 3000.0, p.NonScheduled[0].CumulativeDistance)
	require.Len(t, p.Duplicates, 1)

	// an assigned station outside the schedule is non-scheduled
	p = Split(matched(0, "S1", 2000, "X9"), threeStations, 100)
	require.Len(t, p.NonScheduled, 1)
	assert.Equal(t, KindNonScheduled, p.NonScheduled[0].Kind)
}

type fakeSignals map[string][]network.Signal

func (f fakeSignals) SignalsForSection(section string, _ network.Variant, _ network.TrainIdentity, _ map[string]float64) []network.Signal {
	return f[section]
}

func scheduledAt(pairs ...any) []Halt {
	var out []Halt
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, Halt{
			Kind:               KindScheduled,
			CumulativeDistance: float64(pairs[i].(int)),
			Station:            pairs[i+1].(string),
		})
	}
	return out
}

func TestLocator(t *testing.T) {
	signals := fakeSignals{
		"S1-S2": {
			{Section: "S1-S2", ID: "S1 S-3", Distance: 0},
			{Section: "S1-S2", ID: "L-001", Distance: 1500},
			{Section: "S1-S2", ID: "L-003", Distance: 1480},
		},
		"S2-S3": {
			{Section: "S2-S3", ID: "S2 S-9", Distance: 1100},
			{Section: "S2-S3", ID: "L-011", Distance: 1600},
		},
	}
	route := &network.Route{Variant: network.VariantSlow, Sections: []string{"S1-S2", "S2-S3"}}
	l := NewLocator(signals, route, network.TrainIdentity{Number: "K1"}, 200)

	t.Run("single section", func(t *testing.T) {
		loc := l.Locate(1450, scheduledAt(0, "S1", 5000, "S2", 9800, "S3"))
		assert.Equal(t, "At Signal L-001", loc.Description)
		assert.Equal(t, LocationSignal, loc.Type)
		require.NotNil(t, loc.Signal)
		assert.Equal(t, 50.0, loc.Signal.Diff)
		assert.Equal(t, "S1", loc.Signal.RearStation)
		assert.Equal(t, "S2", loc.Signal.ForwardStation)
	})

	t.Run("span across a missed station", func(t *testing.T) {
		// S2 missed: positions run on from S1 through S2-S3
		loc := l.Locate(4120, scheduledAt(0, "S1", 9800, "S3"))
		assert.Equal(t, "At Signal S2 S-9", loc.Description)
		assert.Equal(t, LocationSignalSection, loc.Type)
		assert.Equal(t, 4080.0, loc.Signal.SignalDistance)
	})

	t.Run("no signal in tolerance", func(t *testing.T) {
		loc := l.Locate(700, scheduledAt(0, "S1", 5000, "S2"))
		assert.Equal(t, `Between "S1" And "S2"`, loc.Description)
		assert.Equal(t, LocationBetween, loc.Type)
		assert.Nil(t, loc.Signal)
	})

	t.Run("after last", func(t *testing.T) {
		loc := l.Locate(10400, scheduledAt(0, "S1", 9800, "S3"))
		assert.Equal(t, `After "S3"`, loc.Description)
		assert.Equal(t, LocationAfterLast, loc.Type)
	})

	t.Run("before first", func(t *testing.T) {
		loc := l.Locate(50, scheduledAt(100, "S1", 9800, "S3"))
		assert.Equal(t, `Before "S1"`, loc.Description)
		assert.Equal(t, LocationBeforeFirst, loc.Type)
	})

	t.Run("no scheduled halts", func(t *testing.T) {
		loc := l.Locate(50, nil)
		assert.Equal(t, LocationUnknown, loc.Type)
	})

	t.Run("unsorted input", func(t *testing.T) {
		loc := l.Locate(700, scheduledAt(5000, "S2", 0, "S1"))
		assert.Equal(t, `Between "S1" And "S2"`, loc.Description)
	})
}

func TestLocator_Override(t *testing.T) {
	c := network.New()
	c.AddSignals(network.VariantSlow, network.Signal{Section: "TNA-MLND", ID: "TNA S-59", Distance: 0})
	route := &network.Route{Variant: network.VariantSlow, Sections: []string{"TNA-MLND"}}
	l := NewLocator(c, route, network.TrainIdentity{Number: "T1", From: "TNA"}, 200)

	// MLND reached under 2500 selects the alternate layout
	loc := l.Locate(1100, scheduledAt(0, "TNA", 2400, "MLND"))
	assert.Equal(t, "At Signal L-092", loc.Description)
}

func TestSectionRange(t *testing.T) {
	sections := []string{"A-B", "B-C", "C-D", "D-E"}
	assert.Equal(t, []string{"B-C", "C-D"}, sectionRange(sections, "B", "D"))
	assert.Equal(t, []string{"A-B"}, sectionRange(sections, "A", "B"))
	assert.Nil(t, sectionRange(sections, "D", "B"))
	assert.Nil(t, sectionRange(sections, "X", "B"))
}
