// Package features turns each repetition into the 96 summary statistics
// consumed by the quality model.
package features

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/lolzio5/PiTrainer/internal/imu"
	"github.com/lolzio5/PiTrainer/internal/motion"
	"github.com/lolzio5/PiTrainer/internal/segment"
	"github.com/lolzio5/PiTrainer/internal/stats"
)

var (
	ErrEmptyWindow      = errors.New("empty repetition window")
	ErrDegenerateSignal = errors.New("degenerate signal")
)

// DegenerateError lists the non-magnetic axes whose statistics are not
// finite. The vector that came with it is still filled in.
type DegenerateError struct {
	Axes []string
}

func (e *DegenerateError) Error() string {
	return fmt.Sprintf("degenerate signal on %s", strings.Join(e.Axes, ", "))
}

func (e *DegenerateError) Unwrap() error { return ErrDegenerateSignal }

// Stats summarises one axis of one repetition.
type Stats struct {
	Mean     float64 `json:"mean"`
	Std      float64 `json:"std"`
	Median   float64 `json:"median"`
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
	IQR      float64 `json:"iqr"`
	Skew     float64 `json:"skew"`
	Kurtosis float64 `json:"kurtosis"`
}

// StatNames is the order statistics are flattened in.
var StatNames = [8]string{"mean", "std", "median", "min", "max", "iqr", "skew", "kurtosis"}

func (s Stats) values() [8]float64 {
	return [8]float64{s.Mean, s.Std, s.Median, s.Min, s.Max, s.IQR, s.Skew, s.Kurtosis}
}

// AxisNames lists the 12 signal axes: accel, vel, pos and mag, each x/y/z.
var AxisNames = func() [12]string {
	var names [12]string
	for qi, q := range motion.Quantities {
		for ai, a := range imu.Axes {
			names[qi*3+ai] = q.String() + "_" + a.String()
		}
	}
	return names
}()

// Vector maps axis name ("accel_x" ... "mag_z") to its statistics.
type Vector map[string]Stats

// Flatten lays the vector out as "<axis>_<stat>" fields in a fixed order,
// the format the training pipeline reads.
func (v Vector) Flatten() (names []string, values []float64) {
	names = make([]string, 0, len(AxisNames)*len(StatNames))
	values = make([]float64, 0, len(AxisNames)*len(StatNames))
	for _, axis := range AxisNames {
		vals := v[axis].values()
		for i, stat := range StatNames {
			names = append(names, axis+"_"+stat)
			values = append(values, vals[i])
		}
	}
	return names, values
}

// Finite is Flatten as a map, leaving out every field that is NaN or
// infinite. JSON has no encoding for those.
func (v Vector) Finite() map[string]float64 {
	names, values := v.Flatten()
	out := make(map[string]float64, len(names))
	for i, name := range names {
		if stats.Finite(values[i]) {
			out[name] = values[i]
		}
	}
	return out
}

// Summarise computes the eight statistics of xs. Skew and kurtosis are the
// bias-corrected sample estimators and are NaN when xs has no spread.
func Summarise(xs []float64) Stats {
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)

	mean, std := stat.PopMeanStdDev(xs, nil)
	s := Stats{
		Mean:   mean,
		Std:    std,
		Median: stats.SortedPercentile(sorted, 50),
		Min:    floats.Min(xs),
		Max:    floats.Max(xs),
		IQR:    stats.SortedPercentile(sorted, 75) - stats.SortedPercentile(sorted, 25),
	}
	if !(std > 1e-12*math.Max(1, math.Abs(mean))) {
		s.Std = 0
		s.Skew = math.NaN()
		s.Kurtosis = math.NaN()
		return s
	}
	s.Skew = stat.Skew(xs, nil)
	s.Kurtosis = stat.ExKurtosis(xs, nil)
	return s
}

// Extract summarises every axis over w. Non-finite magnetic statistics are
// replaced with 0. Non-finite statistics elsewhere are kept and reported
// with a *DegenerateError.
func Extract(snap motion.Snapshot, w segment.Window) (Vector, error) {
	if w.Len() <= 0 {
		return nil, ErrEmptyWindow
	}
	if w.Start < 0 || w.End > snap.Len() {
		return nil, fmt.Errorf("window [%d,%d) outside stream of %d samples", w.Start, w.End, snap.Len())
	}

	v := make(Vector, len(AxisNames))
	var bad []string
	for _, q := range motion.Quantities {
		for _, a := range imu.Axes {
			name := q.String() + "_" + a.String()
			s := Summarise(snap.Series(q, a, w.Start, w.End))
			if q == motion.Mag {
				s = zeroNonFinite(s)
			} else if vals := s.values(); !stats.Finite(vals[:]...) {
				bad = append(bad, name)
			}
			v[name] = s
		}
	}
	if len(bad) > 0 {
		return v, &DegenerateError{Axes: bad}
	}
	return v, nil
}

func zeroNonFinite(s Stats) Stats {
	fix := func(f *float64) {
		if math.IsNaN(*f) || math.IsInf(*f, 0) {
			*f = 0
		}
	}
	for _, f := range []*float64{&s.Mean, &s.Std, &s.Median, &s.Min, &s.Max, &s.IQR, &s.Skew, &s.Kurtosis} {
		fix(f)
	}
	return s
}

// Result is the outcome for one repetition.
type Result struct {
	Window segment.Window `json:"window"`
	Vector Vector         `json:"features"`
	Err    error          `json:"-"`
}

// ExtractAll runs Extract on every window. A failing repetition is
// recorded in its Result and never stops the others.
func ExtractAll(snap motion.Snapshot, windows []segment.Window) []Result {
	out := make([]Result, 0, len(windows))
	for _, w := range windows {
		v, err := Extract(snap, w)
		out = append(out, Result{Window: w, Vector: v, Err: err})
	}
	return out
}
