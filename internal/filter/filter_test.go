package filter

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lolzio5/PiTrainer/internal/imu"
)

func TestMovingAverageRejectsEmptyWindow(t *testing.T) {
	_, err := NewMovingAverage(0)
	assert.True(t, errors.Is(err, ErrInvalidConfig))
}

func TestMovingAverageStartsFromZero(t *testing.T) {
	ma, err := NewMovingAverage(4)
	require.NoError(t, err)

	assert.Equal(t, 1.0, ma.Update(4))
	assert.Equal(t, 2.0, ma.Update(4))
	assert.Equal(t, 2.0, ma.Output())
}

func TestMovingAverageConvergesAfterCapacity(t *testing.T) {
	for _, capacity := range []int{1, 5, 50} {
		ma, err := NewMovingAverage(capacity)
		require.NoError(t, err)

		for i := 0; i < 10; i++ {
			ma.Update(float64(i) * 3.7)
		}
		var out float64
		for i := 0; i < capacity; i++ {
			out = ma.Update(-1.3)
		}
		assert.InDelta(t, -1.3, out, 1e-12, "capacity %d", capacity)
	}
}

func TestMovingAverageEvictsOldest(t *testing.T) {
	ma, err := NewMovingAverage(2)
	require.NoError(t, err)
	ma.Update(10)
	ma.Update(20)
	assert.Equal(t, 25.0, ma.Update(30))

	ma.Reset()
	assert.Equal(t, 0.0, ma.Output())
	assert.Equal(t, 2.5, ma.Update(5))
}

func TestSmooth(t *testing.T) {
	out, err := Smooth([]float64{2, 2, 2, 2}, 2)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 2, 2}, out)
}

func TestNewAxisKalmanValidation(t *testing.T) {
	cases := []struct {
		name  string
		dt    float64
		noise Noise
	}{
		{"zero dt", 0, DefaultNoise()},
		{"negative variance", 0.01, Noise{AccelVariance: -1, MeasurementVariance: 0.1}},
		{"all zero", 0.01, Noise{}},
		{"nan", 0.01, Noise{AccelVariance: math.NaN(), MeasurementVariance: 0.1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewAxisKalman(tc.dt, tc.noise)
			assert.True(t, errors.Is(err, ErrInvalidConfig))
		})
	}
}

func TestKalmanTracksConstantAccelerationExactly(t *testing.T) {
	k, err := NewAxisKalman(0.01, Noise{AccelVariance: 0.1})
	require.NoError(t, err)

	const accel = 0.8
	prevPos := k.Position()
	for i := 0; i < 200; i++ {
		require.NoError(t, k.Step(accel))
		assert.InDelta(t, accel, k.Acceleration(), 1e-9)
		assert.Greater(t, k.Velocity(), 0.0)
		assert.Greater(t, k.Position(), prevPos, "step %d", i)
		prevPos = k.Position()
	}
}

func TestKalmanConvergesWithMeasurementNoise(t *testing.T) {
	k, err := NewAxisKalman(0.01, DefaultNoise())
	require.NoError(t, err)

	for i := 0; i < 500; i++ {
		require.NoError(t, k.Step(-0.4))
	}
	assert.InDelta(t, -0.4, k.Acceleration(), 1e-6)
	assert.Less(t, k.Velocity(), 0.0)
	assert.Less(t, k.Position(), 0.0)
}

func TestKalmanCovarianceStaysSymmetric(t *testing.T) {
	k, err := NewAxisKalman(0.01, Noise{AccelVariance: 0.3, MeasurementVariance: 0.05, VelocityVariance: 0.2, PositionVariance: 0.1})
	require.NoError(t, err)

	for i := 0; i < 100; i++ {
		require.NoError(t, k.Step(math.Sin(float64(i)/10)))
	}
	p := k.Covariance()
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			assert.Equal(t, p.At(i, j), p.At(j, i))
		}
		assert.GreaterOrEqual(t, p.At(i, i), 0.0)
	}
}

func TestKalmanRejectsNonFiniteReading(t *testing.T) {
	k, err := NewAxisKalman(0.01, DefaultNoise())
	require.NoError(t, err)
	require.NoError(t, k.Step(1))
	vel := k.Velocity()

	assert.Error(t, k.Step(math.Inf(1)))
	assert.Equal(t, vel, k.Velocity())

	k.Reset()
	assert.Zero(t, k.Position())
	assert.Zero(t, k.Velocity())
	assert.Zero(t, k.Acceleration())
}

func TestTrackerCarriesMagneticFieldForward(t *testing.T) {
	tr, err := NewTracker(0.01, DefaultNoise(), 2)
	require.NoError(t, err)

	t0 := time.Now()
	p, err := tr.Step(imu.Sample{Time: t0, Accel: r3.Vector{X: 0.1}, Mag: r3.Vector{Z: -40}, HasMag: true})
	require.NoError(t, err)
	assert.Equal(t, -20.0, p.Mag.Z)
	assert.Equal(t, t0, p.Time)

	p, err = tr.Step(imu.Sample{Time: t0.Add(10 * time.Millisecond), Accel: r3.Vector{X: 0.1}})
	require.NoError(t, err)
	assert.Equal(t, -20.0, p.Mag.Z)
	assert.Greater(t, p.Vel.X, 0.0)
	assert.Zero(t, p.Vel.Y)

	tr.Reset()
	p, err = tr.Step(imu.Sample{Time: t0, Mag: r3.Vector{Z: -40}, HasMag: true})
	require.NoError(t, err)
	assert.Equal(t, -20.0, p.Mag.Z)
}

func TestTrackerFailedStepChangesNothing(t *testing.T) {
	good := imu.Sample{Accel: r3.Vector{X: 0.3, Y: -0.2, Z: 0.1}, Mag: r3.Vector{X: 8}, HasMag: true}

	clean, err := NewTracker(0.01, DefaultNoise(), 4)
	require.NoError(t, err)
	want, err := clean.Step(good)
	require.NoError(t, err)

	tr, err := NewTracker(0.01, DefaultNoise(), 4)
	require.NoError(t, err)
	_, err = tr.Step(imu.Sample{Accel: r3.Vector{X: 1, Y: 1, Z: math.NaN()}, Mag: r3.Vector{X: 100}, HasMag: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "axis z")

	got, err := tr.Step(good)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestNewTrackerRejectsBadWindow(t *testing.T) {
	_, err := NewTracker(0.01, DefaultNoise(), 0)
	assert.True(t, errors.Is(err, ErrInvalidConfig))
}
