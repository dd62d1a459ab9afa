package motion

import (
	"errors"
	"testing"
	"time"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lolzio5/PiTrainer/internal/imu"
)

func fill(s *Stream, n int) time.Time {
	t0 := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		s.Append(Point{
			Time: t0.Add(time.Duration(i) * 10 * time.Millisecond),
			Vel:  r3.Vector{X: float64(i)},
			Mag:  r3.Vector{Z: -float64(i)},
		})
	}
	return t0
}

func TestMarkBoundary(t *testing.T) {
	s := NewStream(8)
	fill(s, 5)

	require.NoError(t, s.MarkBoundary(1))
	require.NoError(t, s.MarkBoundary(3))

	err := s.MarkBoundary(3)
	assert.True(t, errors.Is(err, ErrBoundary))
	err = s.MarkBoundary(5)
	assert.True(t, errors.Is(err, ErrBoundary))
	assert.Equal(t, 2, s.Boundaries())
}

func TestSnapshotIsIndependent(t *testing.T) {
	s := NewStream(0)
	fill(s, 4)
	require.NoError(t, s.MarkBoundary(2))

	snap := s.Snapshot()
	s.Reset()
	fill(s, 1)

	assert.Equal(t, 4, snap.Len())
	assert.Equal(t, []int{2}, snap.Boundaries)
	assert.Equal(t, []float64{1, 2}, snap.Series(Vel, imu.X, 1, 3))
	assert.Equal(t, []float64{0, -1, -2, -3}, snap.Series(Mag, imu.Z, 0, 4))
	assert.InDeltaSlice(t, []float64{0, 0.01, 0.02, 0.03}, snap.Seconds(), 1e-12)
}

func TestQuantityNames(t *testing.T) {
	var names []string
	for _, q := range Quantities {
		names = append(names, q.String())
	}
	assert.Equal(t, []string{"accel", "vel", "pos", "mag"}, names)
}
