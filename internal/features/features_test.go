package features

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lolzio5/PiTrainer/internal/motion"
	"github.com/lolzio5/PiTrainer/internal/segment"
)

func constantSet(n int) motion.Snapshot {
	s := motion.NewStream(n)
	t0 := time.Date(2024, 6, 2, 18, 30, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		s.Append(motion.Point{
			Time:  t0.Add(time.Duration(i) * 10 * time.Millisecond),
			Accel: r3.Vector{X: 2, Y: 0.5, Z: -1},
			Vel:   r3.Vector{X: 0.25},
			Pos:   r3.Vector{Z: 4},
			Mag:   r3.Vector{X: 12, Y: -3, Z: -40},
		})
	}
	return s.Snapshot()
}

func TestConstantWindow(t *testing.T) {
	v, err := Extract(constantSet(20), segment.Window{Start: 0, End: 20})

	var degenerate *DegenerateError
	require.True(t, errors.As(err, &degenerate))
	assert.True(t, errors.Is(err, ErrDegenerateSignal))
	assert.Len(t, degenerate.Axes, 9)
	assert.NotContains(t, degenerate.Axes, "mag_x")

	require.Len(t, v, 12)
	for _, name := range AxisNames {
		s := v[name]
		assert.Zero(t, s.Std, name)
		assert.Zero(t, s.IQR, name)
		assert.Equal(t, s.Mean, s.Median, name)
		assert.Equal(t, s.Mean, s.Min, name)
		assert.Equal(t, s.Mean, s.Max, name)
	}
	assert.Equal(t, 2.0, v["accel_x"].Mean)
	assert.Equal(t, -40.0, v["mag_z"].Mean)
	assert.Zero(t, v["mag_z"].Skew)
	assert.Zero(t, v["mag_y"].Kurtosis)
	assert.True(t, math.IsNaN(v["accel_x"].Skew))
}

func TestSummariseMatchesReferenceValues(t *testing.T) {
	s := Summarise([]float64{1, 2, 3, 4, 10})
	assert.InDelta(t, 4, s.Mean, 1e-12)
	assert.InDelta(t, math.Sqrt(10), s.Std, 1e-12)
	assert.Equal(t, 3.0, s.Median)
	assert.Equal(t, 1.0, s.Min)
	assert.Equal(t, 10.0, s.Max)
	assert.InDelta(t, 2, s.IQR, 1e-12)
	// Bias-corrected estimators, as pandas reports them.
	assert.InDelta(t, 1.6971, s.Skew, 1e-3)
	assert.InDelta(t, 3.152, s.Kurtosis, 1e-3)
}

func TestExtractRejectsEmptyWindow(t *testing.T) {
	_, err := Extract(constantSet(5), segment.Window{Start: 3, End: 3})
	assert.True(t, errors.Is(err, ErrEmptyWindow))

	_, err = Extract(constantSet(5), segment.Window{Start: 3, End: 9})
	assert.Error(t, err)
}

func TestExtractAllKeepsGoing(t *testing.T) {
	s := motion.NewStream(0)
	t0 := time.Now()
	for i := 0; i < 30; i++ {
		f := float64(i)
		s.Append(motion.Point{
			Time:  t0.Add(time.Duration(i) * 10 * time.Millisecond),
			Accel: r3.Vector{X: math.Sin(f), Y: math.Cos(f), Z: f * f},
			Vel:   r3.Vector{X: f, Y: -f, Z: math.Sqrt(f)},
			Pos:   r3.Vector{X: f * 0.1, Y: math.Sin(f / 3), Z: f * f * f},
		})
	}
	snap := s.Snapshot()

	results := ExtractAll(snap, []segment.Window{{Start: 0, End: 0}, {Start: 0, End: 15}, {Start: 15, End: 30}})
	require.Len(t, results, 3)
	assert.True(t, errors.Is(results[0].Err, ErrEmptyWindow))
	assert.NoError(t, results[1].Err)
	assert.NoError(t, results[2].Err)
	assert.Zero(t, results[2].Vector["mag_x"].Skew)
}

func TestFlatten(t *testing.T) {
	v, _ := Extract(constantSet(4), segment.Window{Start: 0, End: 4})
	names, values := v.Flatten()
	require.Len(t, names, 96)
	require.Len(t, values, 96)
	assert.Equal(t, "accel_x_mean", names[0])
	assert.Equal(t, 2.0, values[0])
	assert.Equal(t, "mag_z_kurtosis", names[95])
	assert.Equal(t, "vel_x_std", names[25])
}

func TestFiniteLeavesOutNaN(t *testing.T) {
	v, err := Extract(constantSet(20), segment.Window{Start: 0, End: 20})
	require.Error(t, err)

	fields := v.Finite()
	// Magnetometer stats are zeroed, the other nine axes lose skew and kurtosis.
	assert.Len(t, fields, 9*6+3*8)
	assert.NotContains(t, fields, "accel_x_skew")
	assert.Contains(t, fields, "accel_x_mean")
}
