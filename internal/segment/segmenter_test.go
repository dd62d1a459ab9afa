package segment

import (
	"math"
	"testing"
	"time"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lolzio5/PiTrainer/internal/imu"
	"github.com/lolzio5/PiTrainer/internal/motion"
)

var t0 = time.Date(2024, 6, 2, 18, 30, 0, 0, time.UTC)

// sineSet builds a snapshot whose x velocity is `reps` full sine periods of
// `period` samples at 100 Hz.
func sineSet(reps, period int, amp float64) motion.Snapshot {
	return velocitySet(reps*period, func(i int) float64 {
		return amp * math.Sin(2*math.Pi*float64(i)/float64(period))
	})
}

func velocitySet(n int, vel func(i int) float64) motion.Snapshot {
	s := motion.NewStream(n)
	for i := 0; i < n; i++ {
		v := vel(i)
		s.Append(motion.Point{
			Time: t0.Add(time.Duration(i) * 10 * time.Millisecond),
			Vel:  r3.Vector{X: v},
		})
	}
	return s.Snapshot()
}

func newSegmenter(t *testing.T) *Segmenter {
	t.Helper()
	seg, err := New(DefaultConfig())
	require.NoError(t, err)
	return seg
}

func assertOrdered(t *testing.T, windows []Window) {
	t.Helper()
	for i, w := range windows {
		assert.Less(t, w.Start, w.End, "window %d", i)
		if i > 0 {
			assert.LessOrEqual(t, windows[i-1].End, w.Start, "window %d overlaps", i)
		}
	}
}

func TestSegmentFindsEveryCleanOscillation(t *testing.T) {
	for _, reps := range []int{1, 5, 8} {
		windows, err := newSegmenter(t).Segment(sineSet(reps, 200, 1), imu.X)
		require.NoError(t, err)
		assert.Len(t, windows, reps, "reps=%d", reps)
		assertOrdered(t, windows)
	}
}

func TestSegmentIgnoresOtherAxes(t *testing.T) {
	windows, err := newSegmenter(t).Segment(sineSet(5, 200, 1), imu.Y)
	require.NoError(t, err)
	assert.Empty(t, windows)
}

func TestSegmentEmptyStream(t *testing.T) {
	windows, err := newSegmenter(t).Segment(motion.Snapshot{}, imu.X)
	require.NoError(t, err)
	assert.Empty(t, windows)
}

func TestSegmentFallsBackToLiveBoundaries(t *testing.T) {
	seg := newSegmenter(t)

	// Pulling only in one direction leaves no negative peaks to pair with.
	snap := velocitySet(800, func(i int) float64 {
		return (1 - math.Cos(2*math.Pi*float64(i)/200)) / 2
	})
	adaptive, err := seg.Adaptive(snap, imu.X)
	require.NoError(t, err)
	require.Empty(t, adaptive)

	snap.Boundaries = []int{10, 210, 410, 610}
	windows, err := seg.Segment(snap, imu.X)
	require.NoError(t, err)
	assert.Len(t, windows, 2)
	assertOrdered(t, windows)
	for _, w := range windows {
		assert.InDelta(t, 200, w.Len(), 2)
	}
}

func TestFindPeaksPlateauAndHeight(t *testing.T) {
	idx, heights := FindPeaks([]float64{0, 1, 1, 1, 0, 2, 0, 0.5, 3}, 0.8)
	assert.Equal(t, []int{2, 5}, idx)
	assert.Equal(t, []float64{1, 2}, heights)
}

func TestAdaptiveThreshold(t *testing.T) {
	heights := []float64{1, 1, 1, 1}
	assert.InDelta(t, 0.5, AdaptiveThreshold(heights, 3, 0.5), 1e-12)
	assert.InDelta(t, 1, AdaptiveThreshold(heights, 3, 0), 1e-12)

	// Many ripples and a few real peaks: the real peaks stand out.
	var mixed []float64
	for i := 0; i < 40; i++ {
		mixed = append(mixed, 0.05)
	}
	mixed = append(mixed, 1, 1, 1)
	th := AdaptiveThreshold(mixed, 3, 0.5)
	assert.Greater(t, th, 0.05)
	assert.LessOrEqual(t, th, 0.5)
	assert.True(t, math.IsInf(AdaptiveThreshold(nil, 3, 0.5), 1))
}

func TestDedupKeepsFirstOfCluster(t *testing.T) {
	seg := newSegmenter(t)
	x := []float64{0, 1, 0, 0.9, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0.95, 0}
	times := make([]float64, len(x))
	for i := range times {
		times[i] = float64(i) * 0.01
	}
	got := seg.detect(x, 0, times)
	assert.Equal(t, []int{1, 24}, got)
}

func TestPairTruncatesAndClips(t *testing.T) {
	got := pair([]int{10, 50, 90}, []int{30, 60})
	assert.Equal(t, []Window{{10, 30}, {50, 60}}, got)

	got = pair([]int{40, 20}, []int{10, 60})
	assert.Equal(t, []Window{{10, 40}, {40, 60}}, got)
}

func TestConfigValidation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SmoothWindow = 0
	_, err := New(cfg)
	assert.Error(t, err)

	cfg = DefaultConfig()
	cfg.CeilingRatio = 2
	_, err = New(cfg)
	assert.Error(t, err)
}
