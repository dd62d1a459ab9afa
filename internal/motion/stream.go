// Package motion records the filtered motion of one set.
package motion

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang/geo/r3"

	"github.com/lolzio5/PiTrainer/internal/imu"
)

var ErrBoundary = errors.New("invalid rep boundary")

// Point is one filtered sample.
type Point struct {
	Time  time.Time `json:"time"`
	Accel r3.Vector `json:"accel"`
	Vel   r3.Vector `json:"vel"`
	Pos   r3.Vector `json:"pos"`
	Mag   r3.Vector `json:"mag"`
}

// Quantity names one of the four recorded vectors.
type Quantity int

const (
	Accel Quantity = iota
	Vel
	Pos
	Mag
)

// Quantities in the order features and recordings lay them out.
var Quantities = [4]Quantity{Accel, Vel, Pos, Mag}

func (q Quantity) String() string {
	switch q {
	case Accel:
		return "accel"
	case Vel:
		return "vel"
	case Pos:
		return "pos"
	case Mag:
		return "mag"
	}
	return fmt.Sprintf("Quantity(%d)", int(q))
}

// Vector returns the requested quantity of p.
func (p Point) Vector(q Quantity) r3.Vector {
	switch q {
	case Accel:
		return p.Accel
	case Vel:
		return p.Vel
	case Pos:
		return p.Pos
	default:
		return p.Mag
	}
}

// Stream is the append-only record of the active set. It is owned by a
// single goroutine; other goroutines only ever see a Snapshot.
type Stream struct {
	points     []Point
	boundaries []int
}

// NewStream preallocates room for sizeHint points.
func NewStream(sizeHint int) *Stream {
	if sizeHint < 0 {
		sizeHint = 0
	}
	return &Stream{points: make([]Point, 0, sizeHint)}
}

// Append records p and returns its index.
func (s *Stream) Append(p Point) int {
	s.points = append(s.points, p)
	return len(s.points) - 1
}

// MarkBoundary records a live rep boundary at index i. Boundaries must
// be strictly increasing and point at an existing sample.
func (s *Stream) MarkBoundary(i int) error {
	if i < 0 || i >= len(s.points) {
		return fmt.Errorf("%w: index %d outside stream of %d", ErrBoundary, i, len(s.points))
	}
	if n := len(s.boundaries); n > 0 && i <= s.boundaries[n-1] {
		return fmt.Errorf("%w: index %d not after %d", ErrBoundary, i, s.boundaries[n-1])
	}
	s.boundaries = append(s.boundaries, i)
	return nil
}

func (s *Stream) Len() int { return len(s.points) }

// Boundaries is the number of live boundaries recorded so far.
func (s *Stream) Boundaries() int { return len(s.boundaries) }

// Snapshot freezes a copy of the stream. The copy shares nothing with s.
func (s *Stream) Snapshot() Snapshot {
	snap := Snapshot{
		Points:     make([]Point, len(s.points)),
		Boundaries: make([]int, len(s.boundaries)),
	}
	copy(snap.Points, s.points)
	copy(snap.Boundaries, s.boundaries)
	return snap
}

// Reset drops every point and boundary, keeping the allocated storage.
func (s *Stream) Reset() {
	s.points = s.points[:0]
	s.boundaries = s.boundaries[:0]
}

// Snapshot is an immutable copy of a set's stream, handed to analysis.
type Snapshot struct {
	Points     []Point `json:"points"`
	Boundaries []int   `json:"boundaries"`
}

func (s Snapshot) Len() int { return len(s.Points) }

// Series extracts one component of one quantity over [start, end).
func (s Snapshot) Series(q Quantity, a imu.Axis, start, end int) []float64 {
	out := make([]float64, 0, end-start)
	for _, p := range s.Points[start:end] {
		out = append(out, imu.Component(p.Vector(q), a))
	}
	return out
}

// Vectors returns the quantity q over [start, end).
func (s Snapshot) Vectors(q Quantity, start, end int) []r3.Vector {
	out := make([]r3.Vector, 0, end-start)
	for _, p := range s.Points[start:end] {
		out = append(out, p.Vector(q))
	}
	return out
}

// Seconds returns the timestamp of every point as seconds since the first one.
func (s Snapshot) Seconds() []float64 {
	out := make([]float64, len(s.Points))
	if len(s.Points) == 0 {
		return out
	}
	t0 := s.Points[0].Time
	for i, p := range s.Points {
		out[i] = p.Time.Sub(t0).Seconds()
	}
	return out
}
