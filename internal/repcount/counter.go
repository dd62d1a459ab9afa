// Package repcount counts repetitions live with a debounced threshold trigger.
package repcount

import (
	"fmt"
	"math"
	"time"

	"github.com/golang/geo/r3"

	"github.com/lolzio5/PiTrainer/internal/imu"
)

// Config selects the diagnostic axes and thresholds of one exercise.
// Thresholds are signed: the sign gives the direction of travel that
// counts. A zero MagThreshold disables the magnetic trigger.
type Config struct {
	VelocityAxis      imu.Axis
	MagAxis           imu.Axis
	VelocityThreshold float64
	MagThreshold      float64
	Debounce          time.Duration
}

func (c Config) Validate() error {
	if !c.VelocityAxis.Valid() || !c.MagAxis.Valid() {
		return fmt.Errorf("rep counter: invalid axis (velocity %d, magnetic %d)", c.VelocityAxis, c.MagAxis)
	}
	if c.VelocityThreshold == 0 && c.MagThreshold == 0 {
		return fmt.Errorf("rep counter: no threshold configured")
	}
	if c.Debounce < 0 {
		return fmt.Errorf("rep counter: negative debounce %s", c.Debounce)
	}
	return nil
}

// State of the counter.
type State int

const (
	Idle State = iota
	Counting
)

func (s State) String() string {
	if s == Counting {
		return "counting"
	}
	return "idle"
}

// Counter is not safe for concurrent use; it belongs to the ingestion loop.
type Counter struct {
	cfg Config

	state       State
	count       uint32
	lastCounted time.Time
	counted     bool
}

func New(cfg Config) (*Counter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Counter{cfg: cfg}, nil
}

// Start begins a set. The count restarts from zero.
func (c *Counter) Start() {
	c.state = Counting
	c.count = 0
	c.counted = false
	c.lastCounted = time.Time{}
}

// Stop returns the counter to Idle. Count is kept until the next Start.
func (c *Counter) Stop() { c.state = Idle }

func (c *Counter) State() State  { return c.state }
func (c *Counter) Count() uint32 { return c.count }

// Update observes one filtered sample taken at t. It reports whether this
// sample completed a repetition, and the count so far.
func (c *Counter) Update(t time.Time, vel, mag r3.Vector) (bool, uint32) {
	if c.state != Counting {
		return false, c.count
	}
	if !c.crossing(vel, mag) {
		return false, c.count
	}
	if c.counted && t.Sub(c.lastCounted) <= c.cfg.Debounce {
		return false, c.count
	}
	c.count++
	c.counted = true
	c.lastCounted = t
	return true, c.count
}

func (c *Counter) crossing(vel, mag r3.Vector) bool {
	if th := c.cfg.VelocityThreshold; th != 0 {
		if imu.Component(vel, c.cfg.VelocityAxis)*sign(th) > math.Abs(th) {
			return true
		}
	}
	if th := c.cfg.MagThreshold; th != 0 {
		if imu.Component(mag, c.cfg.MagAxis)*sign(th) > math.Abs(th) {
			return true
		}
	}
	return false
}

func sign(v float64) float64 {
	if v < 0 {
		return -1
	}
	return 1
}
