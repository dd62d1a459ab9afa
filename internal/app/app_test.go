package app

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang/geo/r3"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lolzio5/PiTrainer/internal/backend"
	"github.com/lolzio5/PiTrainer/internal/config"
	"github.com/lolzio5/PiTrainer/internal/motion"
	"github.com/lolzio5/PiTrainer/internal/quality"
	"github.com/lolzio5/PiTrainer/internal/recording"
)

type fakeStates struct {
	device string
	state  backend.State
}

func (f *fakeStates) PublishState(_ context.Context, device string, s backend.State) error {
	f.device, f.state = device, s
	return nil
}

func TestDashboardAPI(t *testing.T) {
	states := &fakeStates{}
	d := NewDashboard(states)
	h := d.Handlers()
	h.State("rig-1", backend.ParseState("Rows"))
	h.Reps(backend.RepCount{Device: "rig-1", Exercise: "Rows", Count: 3})
	h.Workout(backend.WorkoutSummary{Device: "rig-0", Sets: 2})

	srv := httptest.NewServer(d.Routes(""))
	defer srv.Close()

	res, err := http.Get(srv.URL + "/api/devices")
	require.NoError(t, err)
	defer res.Body.Close()
	var views []DeviceView
	require.NoError(t, json.NewDecoder(res.Body).Decode(&views))
	require.Len(t, views, 2)
	assert.Equal(t, "rig-0", views[0].Device)
	assert.Equal(t, "Idle", views[0].State)
	assert.Equal(t, "Rows", views[1].State)
	require.NotNil(t, views[1].Reps)
	assert.Equal(t, uint32(3), views[1].Reps.Count)

	res, err = http.Get(srv.URL + "/api/devices/rig-9")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusNotFound, res.StatusCode)

	res, err = http.Post(srv.URL+"/api/devices/rig-1/state", "text/plain", strings.NewReader("Pseudo Idle"))
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusAccepted, res.StatusCode)
	assert.Equal(t, "rig-1", states.device)
	assert.Equal(t, backend.PhasePseudoIdle, states.state.Phase)
}

func TestDashboardReadOnly(t *testing.T) {
	srv := httptest.NewServer(NewDashboard(nil).Routes(""))
	defer srv.Close()

	res, err := http.Post(srv.URL+"/api/devices/rig-1/state", "text/plain", strings.NewReader("Rows"))
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusNotImplemented, res.StatusCode)
}

func TestDashboardWebsocket(t *testing.T) {
	d := NewDashboard(nil)
	h := d.Handlers()
	h.State("rig-1", backend.ParseState("Rows"))

	srv := httptest.NewServer(d.Routes(""))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	var ev Event
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, "snapshot", ev.Type)
	assert.Equal(t, "rig-1", ev.Device)

	// The handler subscribes before sending the snapshot, so this
	// update cannot be missed.
	h.Set(backend.SetResult{Device: "rig-1", Set: 1, Report: quality.SetReport{NoReps: true}})
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, "set", ev.Type)
	require.NotNil(t, ev.View.Set)
	assert.Equal(t, 1, ev.View.Set.Set)
}

func TestConsoleHandlers(t *testing.T) {
	var out bytes.Buffer
	h := consoleHandlers(&out)
	h.State("rig-1", backend.ParseState("Pseudo Idle"))
	h.Reps(backend.RepCount{Device: "rig-1", Exercise: "Rows", Set: 2, Count: 5})
	h.Workout(backend.WorkoutSummary{
		Device:   "rig-1",
		Sets:     3,
		Reps:     30,
		Feedback: quality.Aggregate(),
		Buckets:  quality.Buckets{Perfect: 20, Poor: 10},
	})

	text := out.String()
	assert.Contains(t, text, "[STATE] rig-1        Pseudo Idle")
	assert.Contains(t, text, "Rows set 2  rep   5")
	assert.Contains(t, text, "3 sets 30 reps")
	assert.Contains(t, text, "perfect=20 good=0 fair=0 poor=10")
}

// writeRowingSet records 18 s of a 3 s rowing stroke.
func writeRowingSet(t *testing.T, path string) {
	t.Helper()
	s := motion.NewStream(1800)
	t0 := time.Date(2024, 6, 2, 18, 30, 0, 0, time.UTC)
	w := 2 * math.Pi / 3
	for i := 0; i < 1800; i++ {
		sec := float64(i) * 0.01
		idx := s.Append(motion.Point{
			Time:  t0.Add(time.Duration(i) * 10 * time.Millisecond),
			Accel: r3.Vector{X: 0.48 * w * math.Cos(w*sec), Y: 0.01 * math.Sin(7*sec), Z: 0.02 * math.Cos(5*sec)},
			Vel:   r3.Vector{X: 0.48 * math.Sin(w*sec), Y: 0.002 * math.Cos(7*sec), Z: 0.004 * math.Sin(5*sec)},
			Pos:   r3.Vector{X: 0.48 / w * (1 - math.Cos(w*sec)), Y: 0.001 * math.Sin(7*sec), Z: 0.001 * math.Cos(5*sec)},
			Mag:   r3.Vector{X: 12, Y: -5, Z: -20 - 30*math.Sin(w*sec)},
		})
		if i%300 == 40 {
			require.NoError(t, s.MarkBoundary(idx))
		}
	}
	var buf bytes.Buffer
	require.NoError(t, recording.WriteCSV(&buf, s.Snapshot()))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	f, err := os.Create(strings.TrimSuffix(path, ".csv") + ".reps")
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, recording.WriteBoundaries(f, s.Snapshot().Boundaries))
}

func TestRunAnalyze(t *testing.T) {
	dir := t.TempDir()
	set := filepath.Join(dir, "set-01-rows.csv")
	writeRowingSet(t, set)
	cfg := config.Default()

	var out bytes.Buffer
	featuresPath := filepath.Join(dir, "features.jsonl")
	err := RunAnalyze(&cfg, []string{set, set}, AnalyzeOptions{Exercise: "Seated Cable Rows", FeaturesPath: featuresPath}, &out)
	require.NoError(t, err)

	text := out.String()
	assert.Contains(t, text, "1800 samples, 6 live boundaries")
	assert.Contains(t, text, "rep  1")
	assert.Contains(t, text, "all sets:")

	raw, err := os.ReadFile(featuresPath)
	require.NoError(t, err)
	lines := strings.Count(string(raw), "\n")
	assert.Positive(t, lines)
	assert.Zero(t, lines%2, "both replays label the same windows")

	out.Reset()
	require.NoError(t, RunAnalyze(&cfg, []string{set}, AnalyzeOptions{Exercise: "Rows", JSON: true}, &out))
	var report quality.SetReport
	require.NoError(t, json.Unmarshal(out.Bytes(), &report))
	require.GreaterOrEqual(t, len(report.Reps), 2)
	assert.InDelta(t, 100, report.Reps[0].Time, 1)

	err = RunAnalyze(&cfg, []string{set}, AnalyzeOptions{Exercise: "Deadlift"}, &out)
	assert.Error(t, err)
}
