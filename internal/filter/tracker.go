package filter

import (
	"fmt"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"

	"github.com/lolzio5/PiTrainer/internal/imu"
	"github.com/lolzio5/PiTrainer/internal/motion"
)

// Tracker runs one Kalman filter per accelerometer axis and one moving
// average per magnetometer axis.
type Tracker struct {
	kalman [3]*AxisKalman
	mag    [3]*MovingAverage
}

// NewTracker builds the 3-axis estimator.
func NewTracker(dt float64, noise Noise, magWindow int) (*Tracker, error) {
	t := &Tracker{}
	for i := range t.kalman {
		k, err := NewAxisKalman(dt, noise)
		if err != nil {
			return nil, fmt.Errorf("axis %s: %w", imu.Axes[i], err)
		}
		t.kalman[i] = k

		ma, err := NewMovingAverage(magWindow)
		if err != nil {
			return nil, fmt.Errorf("magnetometer %s: %w", imu.Axes[i], err)
		}
		t.mag[i] = ma
	}
	return t, nil
}

// Step feeds one raw sample. Without a magnetometer reading the last
// smoothed field is carried forward. A failing axis leaves every filter
// as it was.
func (t *Tracker) Step(s imu.Sample) (motion.Point, error) {
	raw := [3]float64{s.Accel.X, s.Accel.Y, s.Accel.Z}
	var xs [3]*mat.VecDense
	var ps [3]*mat.Dense
	for i, k := range t.kalman {
		x, p, err := k.next(raw[i])
		if err != nil {
			return motion.Point{}, fmt.Errorf("axis %s: %w", imu.Axes[i], err)
		}
		xs[i], ps[i] = x, p
	}
	for i, k := range t.kalman {
		k.x, k.p = xs[i], ps[i]
	}
	if s.HasMag {
		t.mag[0].Update(s.Mag.X)
		t.mag[1].Update(s.Mag.Y)
		t.mag[2].Update(s.Mag.Z)
	}

	return motion.Point{
		Time:  s.Time,
		Accel: r3.Vector{X: t.kalman[0].Acceleration(), Y: t.kalman[1].Acceleration(), Z: t.kalman[2].Acceleration()},
		Vel:   r3.Vector{X: t.kalman[0].Velocity(), Y: t.kalman[1].Velocity(), Z: t.kalman[2].Velocity()},
		Pos:   r3.Vector{X: t.kalman[0].Position(), Y: t.kalman[1].Position(), Z: t.kalman[2].Position()},
		Mag:   r3.Vector{X: t.mag[0].Output(), Y: t.mag[1].Output(), Z: t.mag[2].Output()},
	}, nil
}

// Reset returns every filter to rest.
func (t *Tracker) Reset() {
	for i := range t.kalman {
		t.kalman[i].Reset()
		t.mag[i].Reset()
	}
}
