package imu

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang/geo/r3"
)

var (
	// ErrSensorIO marks a failed bus transaction. The tick is skipped, the
	// session keeps running.
	ErrSensorIO = errors.New("sensor i/o")
	// ErrNoSample is returned by sensors that have no fresh reading for this
	// tick. It is not a fault.
	ErrNoSample = errors.New("no new sample")
)

// Axis selects one component of a 3-axis vector.
type Axis int

const (
	X Axis = iota
	Y
	Z
)

func (a Axis) String() string {
	switch a {
	case X:
		return "x"
	case Y:
		return "y"
	case Z:
		return "z"
	}
	return fmt.Sprintf("Axis(%d)", int(a))
}

// Valid reports whether a names one of the three axes.
func (a Axis) Valid() bool { return a >= X && a <= Z }

// ParseAxis accepts "x", "y", "z" (or 0, 1, 2 as text).
func ParseAxis(s string) (Axis, error) {
	switch s {
	case "x", "X", "0":
		return X, nil
	case "y", "Y", "1":
		return Y, nil
	case "z", "Z", "2":
		return Z, nil
	}
	return 0, fmt.Errorf("unknown axis %q", s)
}

// Component returns the a-th component of v.
func Component(v r3.Vector, a Axis) float64 {
	switch a {
	case X:
		return v.X
	case Y:
		return v.Y
	default:
		return v.Z
	}
}

// Axes lists the three axes in order.
var Axes = [3]Axis{X, Y, Z}

// Sample is a single raw reading. Accel is in g, Mag in raw sensor counts.
// HasMag is false on ticks where the magnetometer was not read.
type Sample struct {
	Time   time.Time `json:"time"`
	Accel  r3.Vector `json:"accel"`
	Mag    r3.Vector `json:"mag"`
	HasMag bool      `json:"has_mag"`
}

// Sensor is the narrow view the pipeline has of the hardware.
type Sensor interface {
	ReadAcceleration() (r3.Vector, error)
	ReadMagneticField() (r3.Vector, error)
	Close() error
}
