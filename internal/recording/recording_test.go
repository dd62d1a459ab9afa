package recording

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lolzio5/PiTrainer/internal/features"
	"github.com/lolzio5/PiTrainer/internal/motion"
	"github.com/lolzio5/PiTrainer/internal/quality"
	"github.com/lolzio5/PiTrainer/internal/segment"
)

func sampleSet(t *testing.T) motion.Snapshot {
	t.Helper()
	s := motion.NewStream(10)
	t0 := time.Date(2024, 6, 2, 18, 30, 0, 0, time.UTC)
	for i := 0; i < 10; i++ {
		f := float64(i)
		s.Append(motion.Point{
			Time:  t0.Add(time.Duration(i) * 10 * time.Millisecond),
			Accel: r3.Vector{X: f, Y: -f, Z: 0.5},
			Vel:   r3.Vector{X: f / 10},
			Pos:   r3.Vector{Z: f / 100},
			Mag:   r3.Vector{X: 12, Y: -3, Z: -40 - f},
		})
	}
	require.NoError(t, s.MarkBoundary(2))
	require.NoError(t, s.MarkBoundary(7))
	return s.Snapshot()
}

func TestCSVRoundTripKeepsValues(t *testing.T) {
	snap := sampleSet(t)
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, snap))

	first, _, _ := strings.Cut(buf.String(), "\n")
	assert.Equal(t, strings.Join(Header, ","), first)

	got, err := ReadCSV(&buf)
	require.NoError(t, err)
	require.Equal(t, snap.Len(), got.Len())
	assert.InDeltaSlice(t, snap.Seconds(), got.Seconds(), 1e-9)
	assert.Equal(t, snap.Points[4].Accel, got.Points[4].Accel)
	assert.Equal(t, snap.Points[9].Mag, got.Points[9].Mag)
	assert.Empty(t, got.Boundaries)
}

func TestReadCSVErrors(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("0,1,2\n"))
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = ReadCSV(strings.NewReader("0,1,2,3,4,5,6,7,8,9,10,11,twelve\n"))
	assert.ErrorIs(t, err, ErrMalformed)

	snap, err := ReadCSV(strings.NewReader("0,1,2,3,4,5,6,7,8,9,10,11,12\n"))
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Len())
	assert.Equal(t, 12.0, snap.Points[0].Mag.Z)
}

func TestBoundaries(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteBoundaries(&buf, []int{3, 50, 99}))
	assert.Equal(t, "3 50 99\n", buf.String())

	got, err := ReadBoundaries(&buf)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 50, 99}, got)

	_, err = ReadBoundaries(strings.NewReader("3 x"))
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = WithBoundaries(sampleSet(t), []int{5, 4})
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestRecorderSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	rec, err := NewRecorder(dir)
	require.NoError(t, err)

	snap := sampleSet(t)
	windows := []segment.Window{{Start: 0, End: 5}, {Start: 5, End: 10}}
	results := features.ExtractAll(snap, windows)
	report := quality.SetReport{Reps: []quality.RepScore{{Window: windows[1], Overall: 64}}}

	require.NoError(t, rec.SaveSet("abc", "Seated Cable Rows", 1, snap, results, report))

	dataPath, repsPath := rec.SetPaths("abc", 1, "Seated Cable Rows")
	assert.Equal(t, filepath.Join(dir, "abc", "set-01-seated-cable-rows.csv"), dataPath)
	assert.FileExists(t, repsPath)

	loaded, err := LoadSet(dataPath)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 7}, loaded.Boundaries)
	assert.Equal(t, snap.Len(), loaded.Len())

	f, err := os.Open(filepath.Join(dir, "abc", "features.jsonl"))
	require.NoError(t, err)
	defer f.Close()
	var lines []FeatureRecord
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 1<<20), 1<<20)
	for sc.Scan() {
		var r FeatureRecord
		require.NoError(t, json.Unmarshal(sc.Bytes(), &r))
		lines = append(lines, r)
	}
	require.Len(t, lines, 2)
	assert.Equal(t, -1.0, lines[0].Score)
	assert.Equal(t, 64.0, lines[1].Score)
	assert.Equal(t, 2, lines[1].Rep)
	assert.Contains(t, lines[1].Features, "accel_x_mean")
}

func TestLoadSetWithoutBoundaries(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "set.csv")
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleSet(t)))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	snap, err := LoadSet(path)
	require.NoError(t, err)
	assert.Empty(t, snap.Boundaries)
}
