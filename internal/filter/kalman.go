package filter

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

var (
	ErrInvalidConfig = errors.New("invalid filter configuration")
	// ErrFilterDiverged means the covariance is no longer finite. The
	// filter must be Reset before it is stepped again.
	ErrFilterDiverged = errors.New("filter diverged")
)

// Noise holds the variances of the constant-acceleration model.
type Noise struct {
	// AccelVariance scales the process noise and seeds the acceleration
	// entry of the initial covariance.
	AccelVariance float64 `yaml:"accel_variance"`
	// MeasurementVariance is R, the variance of one accelerometer reading.
	MeasurementVariance float64 `yaml:"measurement_variance"`
	// VelocityVariance and PositionVariance seed the initial covariance.
	VelocityVariance float64 `yaml:"velocity_variance"`
	PositionVariance float64 `yaml:"position_variance"`
}

// DefaultNoise matches the tuning used on the gym rig.
func DefaultNoise() Noise {
	return Noise{AccelVariance: 0.1, MeasurementVariance: 0.1}
}

func (n Noise) validate() error {
	for name, v := range map[string]float64{
		"accel_variance":       n.AccelVariance,
		"measurement_variance": n.MeasurementVariance,
		"velocity_variance":    n.VelocityVariance,
		"position_variance":    n.PositionVariance,
	} {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s=%v", ErrInvalidConfig, name, v)
		}
	}
	if n.AccelVariance+n.MeasurementVariance == 0 {
		return fmt.Errorf("%w: accel and measurement variance both zero", ErrInvalidConfig)
	}
	return nil
}

// AxisKalman estimates position, velocity and acceleration along one axis
// from acceleration readings only. State order is [pos, vel, acc].
type AxisKalman struct {
	dt    float64
	noise Noise

	a *mat.Dense // transition
	q *mat.Dense // process noise
	x *mat.VecDense
	p *mat.Dense
}

// NewAxisKalman builds a filter for a fixed sampling period dt (seconds).
func NewAxisKalman(dt float64, noise Noise) (*AxisKalman, error) {
	if !(dt > 0) || math.IsInf(dt, 0) {
		return nil, fmt.Errorf("%w: dt=%v", ErrInvalidConfig, dt)
	}
	if err := noise.validate(); err != nil {
		return nil, err
	}

	k := &AxisKalman{dt: dt, noise: noise}
	k.a = mat.NewDense(3, 3, []float64{
		1, dt, dt * dt / 2,
		0, 1, dt,
		0, 0, 1,
	})

	g := mat.NewVecDense(3, []float64{dt * dt / 2, dt, 1})
	k.q = mat.NewDense(3, 3, nil)
	k.q.Outer(noise.AccelVariance, g, g)

	k.Reset()
	return k, nil
}

// Reset puts the state back to rest with the initial covariance.
func (k *AxisKalman) Reset() {
	k.x = mat.NewVecDense(3, nil)
	k.p = mat.NewDense(3, 3, []float64{
		k.noise.PositionVariance, 0, 0,
		0, k.noise.VelocityVariance, 0,
		0, 0, k.noise.AccelVariance,
	})
}

// Step runs one predict/update cycle with a raw acceleration reading.
// On error the state is left untouched.
func (k *AxisKalman) Step(raw float64) error {
	x, p, err := k.next(raw)
	if err != nil {
		return err
	}
	k.x, k.p = x, p
	return nil
}

// next computes the state after raw without applying it.
func (k *AxisKalman) next(raw float64) (*mat.VecDense, *mat.Dense, error) {
	if math.IsNaN(raw) || math.IsInf(raw, 0) {
		return nil, nil, fmt.Errorf("kalman: non-finite reading %v", raw)
	}

	// Predict.
	var x mat.VecDense
	x.MulVec(k.a, k.x)
	var p mat.Dense
	p.Product(k.a, k.p, k.a.T())
	p.Add(&p, k.q)

	// H = [0 0 1], so H P H^T is the acceleration variance and P H^T is
	// the last column of P.
	s := p.At(2, 2) + k.noise.MeasurementVariance
	if !(s > 0) || math.IsInf(s, 0) {
		return nil, nil, fmt.Errorf("%w: innovation covariance %v", ErrInvalidConfig, s)
	}
	gain := mat.NewVecDense(3, []float64{p.At(0, 2) / s, p.At(1, 2) / s, p.At(2, 2) / s})

	innovation := raw - x.AtVec(2)
	x.AddScaledVec(&x, innovation, gain)

	h := mat.NewVecDense(3, []float64{0, 0, 1})
	var kh mat.Dense
	kh.Outer(1, gain, h)
	var ikh mat.Dense
	ikh.Sub(mat.NewDiagDense(3, []float64{1, 1, 1}), &kh)
	var next mat.Dense
	next.Mul(&ikh, &p)

	for i := 0; i < 3; i++ {
		for j := i; j < 3; j++ {
			v := (next.At(i, j) + next.At(j, i)) / 2
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, nil, fmt.Errorf("%w: covariance[%d][%d]=%v", ErrFilterDiverged, i, j, v)
			}
			next.Set(i, j, v)
			next.Set(j, i, v)
		}
	}

	return &x, &next, nil
}

func (k *AxisKalman) Position() float64     { return k.x.AtVec(0) }
func (k *AxisKalman) Velocity() float64     { return k.x.AtVec(1) }
func (k *AxisKalman) Acceleration() float64 { return k.x.AtVec(2) }

// Covariance returns a copy of the state covariance.
func (k *AxisKalman) Covariance() *mat.Dense {
	return mat.DenseCopyOf(k.p)
}
