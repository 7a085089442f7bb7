package telemetry

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
)

func samplesFrom(speedInc ...float64) []Sample {
	var out []Sample
	for i := 0; i+1 < len(speedInc); i += 2 {
		out = append(out, Sample{Speed: speedInc[i], DistanceIncrement: speedInc[i+1]})
	}
	Accumulate(out)
	return out
}

func TestExtractHalts(t *testing.T) {
	tests := []struct {
		name    string
		samples []Sample
		want    []CandidateHalt
	}{
		{
			name:    "empty",
			samples: nil,
			want:    []CandidateHalt{},
		},
		{
			name:    "no return to rest",
			samples: samplesFrom(0, 0, 20, 10, 40, 15, 50, 20),
			want:    []CandidateHalt{{0, 0}},
		},
		{
			name:    "consecutive zero samples collapse",
			samples: samplesFrom(0, 0, 0, 0, 30, 100, 40, 200, 0, 0, 0, 0, 0, 0, 20, 50, 0, 0),
			want:    []CandidateHalt{{0, 0}, {300, 300}, {350, 50}},
		},
		{
			name: "zero speed with movement is not a halt",
			samples: []Sample{
				{Speed: 0, DistanceIncrement: 0, CumulativeDistance: 0},
				{Speed: 1, DistanceIncrement: 0, CumulativeDistance: 0},
				{Speed: 0, DistanceIncrement: 5, CumulativeDistance: 5},
				{Speed: 0, DistanceIncrement: 0, CumulativeDistance: 900},
			},
			want: []CandidateHalt{{0, 0}, {900, 900}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractHalts(tt.samples))
		})
	}
}

func TestExtractHalts_Monotonic(t *testing.T) {
	samples := samplesFrom(0, 0, 30, 400, 0, 0, 25, 300, 0, 0, 10, 1, 0, 0)
	halts := ExtractHalts(samples)
	require.NotEmpty(t, halts)
	assert.Equal(t, 0.0, halts[0].InterHaltDistance)
	var sum float64
	for i := 1; i < len(halts); i++ {
		assert.Greater(t, halts[i].CumulativeDistance, halts[i-1].CumulativeDistance)
		sum += halts[i].InterHaltDistance
	}
	assert.Equal(t, halts[len(halts)-1].CumulativeDistance-halts[0].CumulativeDistance, sum)
}

func TestParseCSV(t *testing.T) {
	t.Run("headers with separate time", func(t *testing.T) {
		data := "Date,Time,Speed (Kmph),Distance (m)\n" +
			"2025-07-02,08:00:00,0,0\n" +
			"2025-07-02,08:00:01,12,4\n" +
			"2025-07-02,08:00:02,bad,4\n" +
			"2025-07-02,08:00:03,0,3\n"
		samples, err := ParseCSV(strings.NewReader(data))
		require.NoError(t, err)
		require.Len(t, samples, 3)
		assert.Equal(t, 12.0, samples[1].Speed)
		assert.Equal(t, 4.0, samples[1].CumulativeDistance)
		// movement reported at zero speed is kept
		assert.Equal(t, 3.0, samples[2].DistanceIncrement)
		assert.Equal(t, 7.0, samples[2].CumulativeDistance)
		assert.Equal(t, 8, samples[1].Timestamp.Hour())
	})

	t.Run("headerless positional", func(t *testing.T) {
		data := "2025-07-02 08:00:00,0,0\n2025-07-02 08:00:01,10,3\n"
		samples, err := ParseCSV(strings.NewReader(data))
		require.NoError(t, err)
		require.Len(t, samples, 2)
		assert.Equal(t, 3.0, samples[1].CumulativeDistance)
	})

	t.Run("cumulative only", func(t *testing.T) {
		data := "timestamp,speed,cumulative_distance\n" +
			"2025-07-02T08:00:00,0,100\n" +
			"2025-07-02T08:00:01,10,104\n"
		samples, err := ParseCSV(strings.NewReader(data))
		require.NoError(t, err)
		assert.Equal(t, 4.0, samples[1].DistanceIncrement)
		assert.Equal(t, 104.0, samples[1].CumulativeDistance)
	})

	t.Run("non-finite readings are skipped", func(t *testing.T) {
		data := "Speed,Distance\n0,0\nNaN,10\n20,Inf\n-Inf,5\n20,100\n"
		samples, err := ParseCSV(strings.NewReader(data))
		require.NoError(t, err)
		require.Len(t, samples, 2)
		assert.Equal(t, 100.0, samples[1].CumulativeDistance)
	})

	t.Run("missing columns", func(t *testing.T) {
		_, err := ParseCSV(strings.NewReader("a,b,c\nx,y,z\n"))
		assert.Error(t, err)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := ParseCSV(strings.NewReader(""))
		assert.ErrorIs(t, err, ErrNoSamples)
	})
}

func TestParseCSV_CreepIsNotAHalt(t *testing.T) {
	samples, err := ParseCSV(strings.NewReader("Speed,Distance\n0,0\n20,100\n0,5\n30,200\n0,0\n"))
	require.NoError(t, err)
	require.Len(t, samples, 5)
	assert.Equal(t, Sample{Speed: 0, DistanceIncrement: 5, CumulativeDistance: 105}, samples[2])

	assert.Equal(t, []CandidateHalt{{0, 0}, {305, 305}}, ExtractHalts(samples))
}

func TestSummarize(t *testing.T) {
	s := Summarize(samplesFrom(0, 0, 30, 100, 60, 200, 0, 0))
	assert.Equal(t, 4, s.SampleCount)
	assert.Equal(t, 60.0, s.MaxSpeed)
	assert.Equal(t, 22.5, s.AvgSpeed)
	assert.Equal(t, 300.0, s.TotalDistance)

	assert.Equal(t, Summary{}, Summarize(nil))
}

func writeSnapshot(t *testing.T, dir, name, id string, ts uint64, odometer float64, speed float32) {
	t.Helper()
	feed := &gtfs.FeedMessage{
		Header: &gtfs.FeedHeader{GtfsRealtimeVersion: proto.String("2.0"), Timestamp: proto.Uint64(ts)},
		Entity: []*gtfs.FeedEntity{{
			Id: proto.String("e1"),
			Vehicle: &gtfs.VehiclePosition{
				Vehicle: &gtfs.VehicleDescriptor{Id: proto.String(id)},
				Position: &gtfs.Position{
					Latitude:  proto.Float32(19.0),
					Longitude: proto.Float32(72.8),
					Odometer:  proto.Float64(odometer),
					Speed:     proto.Float32(speed),
				},
			},
		}},
	}
	body, err := proto.Marshal(feed)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), body, 0644))
}

func TestLoadFeedRecording(t *testing.T) {
	dir := t.TempDir()
	writeSnapshot(t, dir, "001.pb", "RAKE-7", 1000, 5000, 0)
	writeSnapshot(t, dir, "002.pb", "RAKE-7", 1001, 5010, 10)
	writeSnapshot(t, dir, "003.pb", "RAKE-7", 1002, 5030, 0)
	writeSnapshot(t, dir, "004.pb", "OTHER", 1003, 9000, 5)
	writeSnapshot(t, dir, "005.pb", "RAKE-7", 1004, 5030, 0)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "006.pb"), []byte("not protobuf"), 0644))

	samples, err := LoadFeedRecording(dir, "rake-7")
	require.NoError(t, err)
	require.Len(t, samples, 4)
	assert.Equal(t, 0.0, samples[0].CumulativeDistance)
	assert.Equal(t, 10.0, samples[1].DistanceIncrement)
	assert.InDelta(t, 36.0, samples[1].Speed, 0.001)
	assert.Equal(t, 30.0, samples[2].CumulativeDistance)
	// stopped on arrival, but still moved since the last snapshot
	assert.Equal(t, 20.0, samples[2].DistanceIncrement)
	assert.Equal(t, 0.0, samples[3].DistanceIncrement)

	halts := ExtractHalts(samples)
	assert.Equal(t, []CandidateHalt{{0, 0}, {30, 30}}, halts)

	_, err = LoadFeedRecording(dir, "MISSING")
	assert.ErrorIs(t, err, ErrNoSamples)
}
