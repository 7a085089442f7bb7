package network

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCatalog() *Catalog {
	c := New()
	c.AddCorridor("DNSLOWLOCALS", []string{"CSMT", "MSD", "SNRD", "BY", "CHG"})
	c.AddCorridor("DNFASTLOCALS", []string{"CSMT", "BY", "DR", "GC"})
	c.AddSignals(VariantSlow,
		Signal{Section: "CSMT-MSD", ID: "CSMT PF-3 S-3", Distance: 0},
		Signal{Section: "CSMT-MSD", ID: "L-001", Distance: 617},
		Signal{Section: "MSD-SNRD", ID: "L-005", Distance: 392},
	)
	c.AddSignals(VariantSlow,
		Signal{Section: "TNA-MLND", ID: "TNA S-59", Distance: 391},
	)
	c.AddTrain(Train{Number: "K 12", Code: "97011"})
	c.AddTrain(Train{Number: "F5", Code: "95013", Halts: []string{"CSMT", "DR", "GC"}})
	return c
}

func TestSectionsSpanning(t *testing.T) {
	c := testCatalog()

	tests := []struct {
		name     string
		from, to string
		want     []string
		wantErr  error
	}{
		{"adjacent", "CSMT", "MSD", []string{"CSMT-MSD"}, nil},
		{"multi hop", "MSD", "BY", []string{"MSD-SNRD", "SNRD-BY"}, nil},
		{"reversed", "BY", "MSD", nil, ErrStationNotOnCorridor},
		{"unknown station", "CSMT", "XYZ", nil, ErrStationNotOnCorridor},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.SectionsSpanning("DNSLOWLOCALS", tt.from, tt.to)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := c.SectionsSpanning("NOPE", "CSMT", "MSD")
	assert.ErrorIs(t, err, ErrUnknownCorridor)
}

func TestSignalsForSection_Override(t *testing.T) {
	c := testCatalog()

	base := c.SignalsForSection("TNA-MLND", VariantSlow, TrainIdentity{From: "KYN"}, nil)
	require.Len(t, base, 1)
	assert.Equal(t, "TNA S-59", base[0].ID)

	positions := map[string]float64{"MLND": 2300}
	override := c.SignalsForSection("TNA-MLND", VariantSlow, TrainIdentity{From: "TNA"}, positions)
	require.Len(t, override, 5)
	assert.Equal(t, "TNA S-44", override[0].ID)

	far := map[string]float64{"MLND": 2600}
	assert.Equal(t, base, c.SignalsForSection("TNA-MLND", VariantSlow, TrainIdentity{From: "TNA"}, far))

	assert.Empty(t, c.SignalsForSection("NONE-NONE", VariantSlow, TrainIdentity{}, nil))
}

func TestVDLRLoopTrain(t *testing.T) {
	tests := []struct {
		number string
		want   bool
	}{
		{"GNPL12", true},
		{"PLVD7", true},
		{"PLVD8", false},
		{"VVD 21", true},
		{"BRVD", false},
		{"CSMT3", false},
	}
	for _, tt := range tests {
		t.Run(tt.number, func(t *testing.T) {
			assert.Equal(t, tt.want, vdlrLoopTrain(tt.number))
		})
	}
}

func TestResolveRoute(t *testing.T) {
	c := testCatalog()

	t.Run("all stations when no published halts", func(t *testing.T) {
		route, err := c.ResolveRoute(TrainIdentity{Number: "k12", From: "MSD", To: "BY"})
		require.NoError(t, err)
		assert.Equal(t, "DNSLOWLOCALS", route.Corridor)
		assert.Equal(t, VariantSlow, route.Variant)
		assert.Equal(t, []string{"MSD", "SNRD", "BY"}, route.Schedule)
		assert.Equal(t, []string{"MSD-SNRD", "SNRD-BY"}, route.Sections)
	})

	t.Run("published halts", func(t *testing.T) {
		route, err := c.ResolveRoute(TrainIdentity{Number: "F5", From: "CSMT", To: "GC"})
		require.NoError(t, err)
		assert.Equal(t, "DNFASTLOCALS", route.Corridor)
		assert.Equal(t, VariantFast, route.Variant)
		assert.Equal(t, []string{"CSMT", "DR", "GC"}, route.Schedule)
	})

	t.Run("unknown train", func(t *testing.T) {
		_, err := c.ResolveRoute(TrainIdentity{Number: "ZZ1", From: "CSMT", To: "GC"})
		assert.ErrorIs(t, err, ErrUnknownCorridor)
	})

	t.Run("even code has no corridor", func(t *testing.T) {
		_, err := c.ResolveRoute(TrainIdentity{Number: "X", Code: "97012", From: "CSMT", To: "BY"})
		assert.ErrorIs(t, err, ErrUnknownCorridor)
	})

	t.Run("endpoint off corridor", func(t *testing.T) {
		_, err := c.ResolveRoute(TrainIdentity{Number: "k12", From: "CSMT", To: "TNA"})
		assert.ErrorIs(t, err, ErrStationNotOnCorridor)
	})
}

func TestBaseCorridor(t *testing.T) {
	empty := map[string]bool{}
	tests := []struct {
		code string
		want string
	}{
		{"95012", "FASTLOCALS"},
		{"96101", "LOCALSSE"},
		{"96501", "LOCALSNE"},
		{"97101", "SLOWLOCALS"},
		{"98001", "HARBOUR"},
		{"99601", "HARBOUR"},
		{"99001", "THB_PNVL"},
		{"99401", "THB_VSH"},
		{"99201", "THB"},
		{"12345", "SLOWLOCALS"},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.want, baseCorridor(tt.code, "", "", empty, empty, empty))
		})
	}
	assert.Equal(t, VariantTHB, variantFor("THB_VSH"))
	assert.Equal(t, "UP", Direction("95012"))
	assert.Equal(t, "DN", Direction("95013"))
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.json")
	data := `{
		"stations": [{"code": "csmt", "km": 0.1}, {"code": "MSD", "km": 1.42}],
		"corridors": {"DNSLOWLOCALS": ["CSMT", "MSD"]},
		"sections": {"slow": [{"name": "CSMT-MSD", "length": 1320, "platform_length": 260,
			"speed_segments": [{"start": 0, "end": 1, "limit": 30}]}]},
		"signals": {"slow": [{"section": "CSMT-MSD", "id": "L-001", "distance": 0}]},
		"trains": [{"number": "K1", "code": "97011"}]
	}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Contains(t, c.Stations, "CSMT")

	s, ok := c.Section(VariantSlow, "CSMT-MSD")
	require.True(t, ok)
	assert.Equal(t, "CSMT", s.Start)
	assert.Equal(t, "MSD", s.End)
	assert.Equal(t, 260.0, s.PlatformLength)

	_, err = Load(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}
