// Package quality scores the repetitions of a set for range, pace and
// smoothness.
package quality

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/lolzio5/PiTrainer/internal/filter"
	"github.com/lolzio5/PiTrainer/internal/imu"
	"github.com/lolzio5/PiTrainer/internal/motion"
	"github.com/lolzio5/PiTrainer/internal/segment"
	"github.com/lolzio5/PiTrainer/internal/stats"
)

type Config struct {
	// ReferenceWindow is the moving average length used to build the
	// expected path of a repetition.
	ReferenceWindow int `yaml:"reference_window"`
	// DT is the sampling period in seconds, used for jerk.
	DT float64 `yaml:"dt"`
}

func DefaultConfig() Config {
	return Config{ReferenceWindow: 100, DT: 0.01}
}

// RepScore holds the component scores of one repetition.
type RepScore struct {
	Window    segment.Window `json:"window"`
	Distance  float64        `json:"distance"`
	Time      float64        `json:"time"`
	Shakiness float64        `json:"shakiness"`
	Overall   float64        `json:"overall"`
}

// SetReport is the result of scoring one set.
type SetReport struct {
	Reps []RepScore `json:"reps"`
	// Excluded holds the indices of windows that could not be scored.
	Excluded []int    `json:"excluded,omitempty"`
	Feedback Feedback `json:"feedback"`
	Buckets  Buckets  `json:"buckets"`
	NoReps   bool     `json:"no_reps"`
}

type Scorer struct {
	cfg Config
}

func NewScorer(cfg Config) (*Scorer, error) {
	if cfg.ReferenceWindow < 1 {
		return nil, fmt.Errorf("%w: reference window %d", filter.ErrInvalidConfig, cfg.ReferenceWindow)
	}
	if !(cfg.DT > 0) {
		return nil, fmt.Errorf("%w: dt %v", filter.ErrInvalidConfig, cfg.DT)
	}
	return &Scorer{cfg: cfg}, nil
}

// ScoreSet scores every usable window of snap. Windows that are too short,
// hold non-finite data or are listed in exclude (indices into windows) end
// up in Excluded and take no part in the set's statistics; the rest are
// still scored. A set without usable windows yields a NoReps report.
func (s *Scorer) ScoreSet(snap motion.Snapshot, windows []segment.Window, exclude ...int) SetReport {
	skip := make(map[int]bool, len(exclude))
	for _, i := range exclude {
		skip[i] = true
	}

	var report SetReport
	var usable []segment.Window
	for i, w := range windows {
		if skip[i] || !s.usable(snap, w) {
			report.Excluded = append(report.Excluded, i)
			continue
		}
		usable = append(usable, w)
	}
	if len(usable) == 0 {
		report.NoReps = true
		report.Feedback = noRepsFeedback()
		return report
	}

	ranges := make([]float64, len(usable))
	for i, w := range usable {
		ranges[i] = s.deviationRange(snap.Vectors(motion.Pos, w.Start, w.End))
	}
	distance := DistanceScores(ranges)

	seconds := snap.Seconds()
	starts := make([]float64, len(usable))
	for i, w := range usable {
		starts[i] = seconds[w.Start]
	}
	pace := TimeScore(starts)

	shakiness := s.shakinessScores(snap, usable)

	fbs := make([]Feedback, len(usable))
	overalls := make([]float64, len(usable))
	for i, w := range usable {
		rs := RepScore{
			Window:    w,
			Distance:  distance[i],
			Time:      pace,
			Shakiness: shakiness[i],
		}
		rs.Overall = Overall(rs.Time, rs.Distance, rs.Shakiness)
		report.Reps = append(report.Reps, rs)
		fbs[i] = NewFeedback(rs.Distance, rs.Time, rs.Shakiness)
		overalls[i] = rs.Overall
	}
	report.Feedback = Aggregate(fbs...)
	report.Buckets = Classify(overalls...)
	return report
}

func (s *Scorer) usable(snap motion.Snapshot, w segment.Window) bool {
	if w.Start < 0 || w.End > snap.Len() || w.Len() < 2 {
		return false
	}
	for _, p := range snap.Points[w.Start:w.End] {
		if !stats.Finite(p.Pos.X, p.Pos.Y, p.Pos.Z, p.Accel.X, p.Accel.Y, p.Accel.Z) {
			return false
		}
	}
	return true
}

// deviationRange smooths the path into a reference trajectory and returns
// the spread of each point's distance to its nearest reference point.
func (s *Scorer) deviationRange(path []r3.Vector) float64 {
	ref := make([]r3.Vector, len(path))
	var ma [3]*filter.MovingAverage
	for i := range ma {
		ma[i], _ = filter.NewMovingAverage(s.cfg.ReferenceWindow)
	}
	for i, p := range path {
		ref[i] = r3.Vector{X: ma[0].Update(p.X), Y: ma[1].Update(p.Y), Z: ma[2].Update(p.Z)}
	}

	nearest := make([]float64, len(path))
	for i, p := range path {
		best := math.Inf(1)
		for _, r := range ref {
			best = math.Min(best, p.Distance(r))
		}
		nearest[i] = best
	}
	return stats.Range(nearest)
}

// DistanceScores turns per-rep deviation ranges into 0..100 scores. A rep
// whose range sits at the set's mean scores 100.
func DistanceScores(ranges []float64) []float64 {
	z := stats.ZScores(ranges)
	out := make([]float64, len(z))
	for i, v := range z {
		out[i] = math.Min(100, 200*distuv.UnitNormal.Survival(math.Abs(v)))
	}
	return out
}

// TimeScore is 100·r² of the rep start times against their index.
// Fewer than two reps are trivially regular.
func TimeScore(starts []float64) float64 {
	if len(starts) < 2 {
		return 100
	}
	idx := make([]float64, len(starts))
	for i := range idx {
		idx[i] = float64(i)
	}
	alpha, beta := stat.LinearRegression(idx, starts, nil, false)
	r2 := stat.RSquared(idx, starts, nil, alpha, beta)
	if math.IsNaN(r2) || math.IsInf(r2, 0) {
		return 0
	}
	return 100 * r2
}

func (s *Scorer) shakinessScores(snap motion.Snapshot, windows []segment.Window) []float64 {
	mean := make([]float64, len(windows))
	for _, a := range imu.Axes {
		ranges := make([]float64, len(windows))
		for i, w := range windows {
			ranges[i] = stats.Range(jerk(snap.Series(motion.Accel, a, w.Start, w.End), s.cfg.DT))
		}
		for i, z := range stats.ZScores(ranges) {
			mean[i] += z / float64(len(imu.Axes))
		}
	}
	return ShakinessScores(mean)
}

// ShakinessScores maps the mean jerk-range z-score of each rep to
// 100 minus its percentile, so jerkier reps score lower.
func ShakinessScores(z []float64) []float64 {
	out := make([]float64, len(z))
	for i, v := range z {
		out[i] = 100 - 100*distuv.UnitNormal.CDF(v)
	}
	return out
}

func jerk(accel []float64, dt float64) []float64 {
	if len(accel) < 2 {
		return nil
	}
	out := make([]float64, len(accel)-1)
	for i := range out {
		out[i] = (accel[i+1] - accel[i]) / dt
	}
	return out
}
