package sensors

import (
	"math"
	"time"

	"github.com/golang/geo/r3"
)

// MockSensor generates a smooth rowing motion: a sinusoidal pull along X
// with the weight stack passing the magnetometer once per stroke.
type MockSensor struct {
	start  time.Time
	period time.Duration
	now    func() time.Time
}

// NewMockSensor creates a mock sensor with one stroke every period.
func NewMockSensor(period time.Duration) *MockSensor {
	if period <= 0 {
		period = 3 * time.Second
	}
	return &MockSensor{start: time.Now(), period: period, now: time.Now}
}

func (m *MockSensor) phase() float64 {
	elapsed := m.now().Sub(m.start).Seconds()
	return 2 * math.Pi * elapsed / m.period.Seconds()
}

func (m *MockSensor) ReadAcceleration() (r3.Vector, error) {
	p := m.phase()
	return r3.Vector{
		X: 0.5 * math.Sin(p),
		Y: 0.02 * math.Sin(3*p),
		Z: 0.05 * math.Cos(p),
	}, nil
}

// ReadMagneticField dips to -80 counts on Z in the middle of the pull.
func (m *MockSensor) ReadMagneticField() (r3.Vector, error) {
	s := math.Sin(m.phase() / 2)
	return r3.Vector{
		X: 12,
		Y: -5,
		Z: -80 * s * s,
	}, nil
}

func (m *MockSensor) Close() error { return nil }
