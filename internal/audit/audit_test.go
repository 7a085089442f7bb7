package audit

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mini-rodalies-3d/tripaudit/internal/config"
	"github.com/mini-rodalies-3d/tripaudit/internal/corpus"
	"github.com/mini-rodalies-3d/tripaudit/internal/halts"
	"github.com/mini-rodalies-3d/tripaudit/internal/network"
	"github.com/mini-rodalies-3d/tripaudit/internal/speed"
	"github.com/mini-rodalies-3d/tripaudit/internal/telemetry"
)

func trip(stops ...float64) []telemetry.Sample {
	samples := []telemetry.Sample{{}, {}}
	var pos float64
	for _, stop := range stops[1:] {
		for pos < stop {
			step := min(100, stop-pos)
			samples = append(samples, telemetry.Sample{Speed: 60, DistanceIncrement: step})
			pos += step
		}
		samples = append(samples, telemetry.Sample{}, telemetry.Sample{})
	}
	telemetry.Accumulate(samples)
	return samples
}

func testInput(t *testing.T) Input {
	t.Helper()

	stations := []string{"S1", "S2", "S3"}
	cat := network.New()
	cat.AddCorridor("DNSLOWLOCALS", stations)
	cat.AddSection(network.VariantSlow, network.Section{
		Name:           "S1-S2",
		PlatformLength: 270,
		SpeedSegments:  []network.SpeedSegment{{StartFraction: 0, EndFraction: 1, LimitKmh: 50}},
	})
	cat.AddSection(network.VariantSlow, network.Section{
		Name:          "S2-S3",
		SpeedSegments: []network.SpeedSegment{{StartFraction: 0, EndFraction: 1, LimitKmh: 100}},
	})
	cat.AddTrain(network.Train{Number: "K1", Code: "97011"})

	sheet, err := corpus.ParseSheet("DNSLOWLOCALS", strings.NewReader(
		"Record,S1,S2,S3\n1,0,5050,4800\n2,0,5040,4810\n",
	))
	require.NoError(t, err)

	return Input{
		Input: halts.Input{
			Identity:   network.TrainIdentity{Number: "K1", From: "S1", To: "S3"},
			Samples:    trip(0, 5000, 9800),
			Catalog:    cat,
			Corpus:     corpus.New(sheet),
			Tolerances: config.DefaultTolerances(),
		},
		Date:      "2025-07-02",
		BrakeFeel: speed.DefaultBrakeFeel(),
	}
}

func TestRun(t *testing.T) {
	in := testInput(t)
	r, err := Run(in)
	require.NoError(t, err)

	assert.Equal(t, "K1", r.TrainNumber)
	assert.Equal(t, "2025-07-02", r.Date)
	assert.Equal(t, 9800.0, r.Summary.TotalDistance)
	require.Len(t, r.Analysis.Scheduled, 3)
	require.Len(t, r.Limits, len(in.Samples))

	require.Len(t, r.Overspeed, 1)
	ev := r.Overspeed[0]
	assert.Equal(t, 50.0, ev.Limit)
	assert.Equal(t, 50, ev.Samples)
	assert.Equal(t, speed.SeveritySevere, ev.Severity)

	assert.Nil(t, r.BrakeFeel, "speed passed 40 km/h before any braking")

	require.Len(t, r.PlatformEntries, 1)
	assert.Equal(t, "S2", r.PlatformEntries[0].Station)
	assert.Equal(t, 60.0, r.PlatformEntries[0].EntrySpeed)
}

func TestRun_Idempotent(t *testing.T) {
	in := testInput(t)

	first, err := Run(in)
	require.NoError(t, err)
	second, err := Run(in)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestRun_Errors(t *testing.T) {
	in := testInput(t)
	in.Samples = nil
	_, err := Run(in)
	assert.ErrorIs(t, err, telemetry.ErrNoSamples)

	in = testInput(t)
	in.Identity.From = "XX"
	_, err = Run(in)
	assert.ErrorIs(t, err, network.ErrStationNotOnCorridor)
}
