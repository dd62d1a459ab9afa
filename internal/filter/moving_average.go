package filter

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// MovingAverage is a fixed-size sliding window mean. The window starts
// filled with zeros, so early outputs are pulled towards zero until
// capacity readings have been seen.
type MovingAverage struct {
	buf  []float64
	next int // slot that receives the next reading (the oldest one)
	out  float64
}

// NewMovingAverage returns a smoother over the last capacity readings.
func NewMovingAverage(capacity int) (*MovingAverage, error) {
	if capacity < 1 {
		return nil, fmt.Errorf("%w: moving average capacity %d", ErrInvalidConfig, capacity)
	}
	return &MovingAverage{buf: make([]float64, capacity)}, nil
}

// Update pushes v, drops the oldest reading and returns the new mean.
func (m *MovingAverage) Update(v float64) float64 {
	m.buf[m.next] = v
	m.next = (m.next + 1) % len(m.buf)
	m.out = floats.Sum(m.buf) / float64(len(m.buf))
	return m.out
}

// Output is the mean after the last Update.
func (m *MovingAverage) Output() float64 { return m.out }

// Capacity is the window length.
func (m *MovingAverage) Capacity() int { return len(m.buf) }

// Reset refills the window with zeros.
func (m *MovingAverage) Reset() {
	for i := range m.buf {
		m.buf[i] = 0
	}
	m.next = 0
	m.out = 0
}

// Smooth runs a fresh MovingAverage over xs and returns every output.
func Smooth(xs []float64, capacity int) ([]float64, error) {
	ma, err := NewMovingAverage(capacity)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(xs))
	for i, x := range xs {
		out[i] = ma.Update(x)
	}
	return out, nil
}
