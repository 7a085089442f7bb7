package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mini-rodalies-3d/tripaudit/internal/audit"
	"github.com/mini-rodalies-3d/tripaudit/internal/config"
	"github.com/mini-rodalies-3d/tripaudit/internal/corpus"
	"github.com/mini-rodalies-3d/tripaudit/internal/db"
	"github.com/mini-rodalies-3d/tripaudit/internal/metrics"
	"github.com/mini-rodalies-3d/tripaudit/internal/network"
)

func testCatalog() *network.Catalog {
	cat := network.New()
	cat.AddCorridor("DNSLOWLOCALS", []string{"S1", "S2", "S3"})
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
	return cat
}

// tripCSV renders a trip that cruises at 60 km/h, 100 m per row, and halts
// for two rows at each stop
func tripCSV(stops ...float64) string {
	var b strings.Builder
	b.WriteString("Speed,Distance\n0,0\n0,0\n")
	var pos float64
	for _, stop := range stops[1:] {
		for pos < stop {
			step := min(100, stop-pos)
			fmt.Fprintf(&b, "60,%g\n", step)
			pos += step
		}
		b.WriteString("0,0\n0,0\n")
	}
	return b.String()
}

func setup(t *testing.T) (http.Handler, *db.DB) {
	t.Helper()
	ctx := context.Background()

	database, err := db.Connect(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, database.EnsureSchema(ctx))

	sheet, err := corpus.ParseSheet("DNSLOWLOCALS", strings.NewReader(
		"Record,S1,S2,S3\n1,0,5050,4800\n2,0,5040,4810\n",
	))
	require.NoError(t, err)
	require.NoError(t, database.SaveSheet(ctx, sheet))
	require.NoError(t, metrics.NewBaselineLearner(database).Learn(ctx, sheet))

	srv := NewServer(database, nil, testCatalog(), config.DefaultTolerances())
	return srv.Router([]string{"*"}), database
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func createRun(t *testing.T, h http.Handler) audit.Report {
	t.Helper()
	rec := do(t, h, http.MethodPost, "/api/runs?train=K1&from=S1&to=S3&date=2025-07-02", tripCSV(0, 5000, 9800))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var report audit.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	require.NotEmpty(t, report.ID)
	return report
}

func TestHealth(t *testing.T) {
	h, _ := setup(t)

	rec := do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"database":"connected"`)
}

func TestCreateAndGetRun(t *testing.T) {
	h, _ := setup(t)

	created := createRun(t, h)
	assert.Equal(t, "K1", created.TrainNumber)
	require.Len(t, created.Analysis.Scheduled, 3)
	assert.Len(t, created.Overspeed, 1)

	rec := do(t, h, http.MethodGet, "/api/runs/"+created.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got audit.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "2025-07-02", got.Date)

	rec = do(t, h, http.MethodGet, "/api/runs/"+created.ID+"/halts", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var halts struct {
		Halts []db.HaltRow `json:"halts"`
		Count int          `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &halts))
	assert.Equal(t, 3, halts.Count)
	assert.Equal(t, "S2", halts.Halts[1].Station)

	rec = do(t, h, http.MethodGet, "/api/runs/"+created.ID+"/events", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":1`)

	// posting the same trip again keeps the run ID
	again := createRun(t, h)
	assert.Equal(t, created.ID, again.ID)
}

func TestCreateRun_BadRequests(t *testing.T) {
	h, _ := setup(t)

	tests := []struct {
		name   string
		target string
		body   string
		want   int
	}{
		{"missing train", "/api/runs?from=S1&to=S3", tripCSV(0, 5000), http.StatusBadRequest},
		{"bad date", "/api/runs?train=K1&from=S1&to=S3&date=02/07/2025", tripCSV(0, 5000), http.StatusBadRequest},
		{"empty body", "/api/runs?train=K1&from=S1&to=S3", "", http.StatusBadRequest},
		{"bad header", "/api/runs?train=K1&from=S1&to=S3", "a,b\nx,y\n", http.StatusBadRequest},
		{"off corridor", "/api/runs?train=K1&from=S1&to=XX", tripCSV(0, 5000), http.StatusUnprocessableEntity},
		{"unknown train", "/api/runs?train=ZZ9&from=S1&to=S3", tripCSV(0, 5000), http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, tt.target, tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
			assert.Contains(t, rec.Body.String(), `"error"`)
		})
	}
}

func TestListRuns(t *testing.T) {
	h, _ := setup(t)
	createRun(t, h)

	rec := do(t, h, http.MethodGet, "/api/runs?train=K1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp RunsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, "DNSLOWLOCALS", resp.Runs[0].Corridor)

	rec = do(t, h, http.MethodGet, "/api/runs?train=F5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":0`)

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/api/runs?limit=0", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/api/runs?date=yesterday", "").Code)
}

func TestDeleteRun(t *testing.T) {
	h, _ := setup(t)
	created := createRun(t, h)

	assert.Equal(t, http.StatusNoContent, do(t, h, http.MethodDelete, "/api/runs/"+created.ID, "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/api/runs/"+created.ID, "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/api/runs/"+created.ID+"/halts", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodDelete, "/api/runs/"+created.ID, "").Code)
}

func TestCorridors(t *testing.T) {
	h, _ := setup(t)

	rec := do(t, h, http.MethodGet, "/api/corridors", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"name":"DNSLOWLOCALS"`)

	rec = do(t, h, http.MethodGet, "/api/corridors/DNSLOWLOCALS/baselines", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Baselines []metrics.StationBaseline `json:"baselines"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Baselines, 2)
	assert.Equal(t, "S2", resp.Baselines[0].Station)

	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/api/corridors/NOPE/baselines", "").Code)
}

func readLive(t *testing.T, ctx context.Context, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var msg map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestLive(t *testing.T) {
	h, _ := setup(t)
	srv := httptest.NewServer(h)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/api/live", nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte(`{"type":"subscribe","payload":{"trains":["k1"]}}`)))
	assert.Equal(t, "subscribed", readLive(t, ctx, conn)["type"])

	resp, err := http.Post(srv.URL+"/api/runs?train=K1&from=S1&to=S3&date=2025-07-02", "text/csv", strings.NewReader(tripCSV(0, 5000, 9800)))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	msg := readLive(t, ctx, conn)
	assert.Equal(t, EventRunSaved, msg["type"])
	assert.Equal(t, "K1", msg["train_number"])
	assert.NotEmpty(t, msg["run_id"])

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/api/runs/"+msg["run_id"].(string), nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte(`{"type":"ping"}`)))
	deleted := readLive(t, ctx, conn)
	assert.Equal(t, EventRunDeleted, deleted["type"], "deletes reach clients subscribed to the train")
	assert.Equal(t, "K1", deleted["train_number"])
	assert.Equal(t, msg["run_id"], deleted["run_id"])
	assert.Equal(t, "pong", readLive(t, ctx, conn)["type"])
}

func TestHub_Filter(t *testing.T) {
	hub := NewHub()
	c := &liveClient{id: "c1", send: make(chan []byte, 4), trains: map[string]struct{}{}}
	hub.register(c)
	c.follow([]string{"k1"})

	hub.Publish(RunEvent{Type: EventRunSaved, RunID: "a", TrainNumber: "F5"})
	hub.Publish(RunEvent{Type: EventRunSaved, RunID: "b", TrainNumber: "K1"})
	require.Len(t, c.send, 1)
	assert.Contains(t, string(<-c.send), `"run_id":"b"`)

	hub.Publish(RunEvent{Type: EventRunDeleted, RunID: "b", TrainNumber: "K1"})
	require.Len(t, c.send, 1)
	assert.Contains(t, string(<-c.send), `"type":"run_deleted"`)

	hub.unregister(c)
	hub.Publish(RunEvent{Type: EventRunSaved, RunID: "c", TrainNumber: "K1"})
	assert.Len(t, c.send, 0)
}

func TestHostPatterns(t *testing.T) {
	assert.Equal(t, []string{"*", "a.example", "b.example:8080"},
		hostPatterns([]string{"*", "http://a.example/", "https://b.example:8080"}))
}
