// Package segment splits a recorded set into repetitions.
package segment

import (
	"fmt"
	"sort"
	"time"

	"github.com/lolzio5/PiTrainer/internal/filter"
	"github.com/lolzio5/PiTrainer/internal/imu"
	"github.com/lolzio5/PiTrainer/internal/motion"
)

// Config holds the empirically tuned peak detection constants of one
// exercise.
type Config struct {
	SmoothWindow  int           `yaml:"smooth_window"`
	MinPeakHeight float64       `yaml:"min_peak_height"`
	PositiveK     float64       `yaml:"positive_k"`
	NegativeK     float64       `yaml:"negative_k"`
	// CeilingRatio caps the adaptive threshold at a share of the tallest
	// peak. Zero leaves the threshold uncapped.
	CeilingRatio  float64       `yaml:"ceiling_ratio"`
	DedupWindow   time.Duration `yaml:"dedup_window"`
}

func DefaultConfig() Config {
	return Config{
		SmoothWindow:  50,
		MinPeakHeight: 0.001,
		PositiveK:     3,
		NegativeK:     2.75,
		CeilingRatio:  0.5,
		DedupWindow:   200 * time.Millisecond,
	}
}

func (c Config) Validate() error {
	if c.SmoothWindow < 1 {
		return fmt.Errorf("%w: smooth window %d", filter.ErrInvalidConfig, c.SmoothWindow)
	}
	if c.CeilingRatio < 0 || c.CeilingRatio > 1 {
		return fmt.Errorf("%w: ceiling ratio %v outside [0,1]", filter.ErrInvalidConfig, c.CeilingRatio)
	}
	if c.DedupWindow < 0 {
		return fmt.Errorf("%w: negative dedup window", filter.ErrInvalidConfig)
	}
	return nil
}

// Window is one repetition, [Start, End) into the set's stream.
type Window struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

func (w Window) Len() int { return w.End - w.Start }

// Segmenter is stateless apart from its configuration and can be shared.
type Segmenter struct {
	cfg Config
}

func New(cfg Config) (*Segmenter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Segmenter{cfg: cfg}, nil
}

// Segment finds the repetitions of a finished set from the velocity along
// axis. When peak detection finds nothing but the live counter left at
// least three boundaries, the windows are rebuilt around those.
func (s *Segmenter) Segment(snap motion.Snapshot, axis imu.Axis) ([]Window, error) {
	windows, err := s.Adaptive(snap, axis)
	if err != nil {
		return nil, err
	}
	if len(windows) == 0 && len(snap.Boundaries) >= 3 {
		return s.Refine(snap, axis)
	}
	return windows, nil
}

// Adaptive pairs positive and negative velocity peaks that clear an
// adaptive threshold.
func (s *Segmenter) Adaptive(snap motion.Snapshot, axis imu.Axis) ([]Window, error) {
	n := snap.Len()
	if n == 0 {
		return nil, nil
	}
	smoothed, err := filter.Smooth(snap.Series(motion.Vel, axis, 0, n), s.cfg.SmoothWindow)
	if err != nil {
		return nil, err
	}
	times := snap.Seconds()

	negated := make([]float64, n)
	for i, v := range smoothed {
		negated[i] = -v
	}

	pos := s.detect(smoothed, s.cfg.PositiveK, times)
	neg := s.detect(negated, s.cfg.NegativeK, times)
	return pair(pos, neg), nil
}

// Refine places one boundary at the highest smoothed velocity peak
// between each pair of consecutive live boundaries, then cuts windows
// between those peaks.
func (s *Segmenter) Refine(snap motion.Snapshot, axis imu.Axis) ([]Window, error) {
	n := snap.Len()
	smoothed, err := filter.Smooth(snap.Series(motion.Vel, axis, 0, n), s.cfg.SmoothWindow)
	if err != nil {
		return nil, err
	}

	var peaks []int
	b := snap.Boundaries
	for i := 0; i+1 < len(b); i++ {
		if b[i+1] > n {
			break
		}
		if p := HighestPeak(smoothed[b[i]:b[i+1]], s.cfg.MinPeakHeight); p >= 0 {
			peaks = append(peaks, b[i]+p)
		}
	}

	var windows []Window
	for i := 0; i+1 < len(peaks); i++ {
		if peaks[i] < peaks[i+1] {
			windows = append(windows, Window{Start: peaks[i], End: peaks[i+1]})
		}
	}
	return windows, nil
}

func (s *Segmenter) detect(x []float64, k float64, times []float64) []int {
	idx, heights := FindPeaks(x, s.cfg.MinPeakHeight)
	if len(idx) == 0 {
		return nil
	}
	th := AdaptiveThreshold(heights, k, s.cfg.CeilingRatio)
	dedup := s.cfg.DedupWindow.Seconds()

	var accepted []int
	for i, p := range idx {
		if heights[i] < th {
			continue
		}
		if m := len(accepted); m > 0 && times[p]-times[accepted[m-1]] < dedup {
			continue
		}
		accepted = append(accepted, p)
	}
	return accepted
}

// pair truncates the longer peak list and joins the lists index by index.
// Windows come back ordered and never overlap.
func pair(pos, neg []int) []Window {
	n := min(len(pos), len(neg))
	windows := make([]Window, 0, n)
	for i := 0; i < n; i++ {
		a, b := pos[i], neg[i]
		if a > b {
			a, b = b, a
		}
		windows = append(windows, Window{Start: a, End: b})
	}
	sort.Slice(windows, func(i, j int) bool { return windows[i].Start < windows[j].Start })

	out := windows[:0]
	for _, w := range windows {
		if m := len(out); m > 0 && w.Start < out[m-1].End {
			w.Start = out[m-1].End
		}
		if w.Start < w.End {
			out = append(out, w)
		}
	}
	return out
}
