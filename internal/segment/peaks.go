package segment

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/lolzio5/PiTrainer/internal/stats"
)

// FindPeaks returns the indices and heights of the local maxima of x that
// reach minHeight. A flat top counts once, at its middle sample. The
// first and last samples are never peaks.
func FindPeaks(x []float64, minHeight float64) (idx []int, heights []float64) {
	n := len(x)
	i := 1
	for i < n-1 {
		if x[i-1] < x[i] {
			ahead := i + 1
			for ahead < n-1 && x[ahead] == x[i] {
				ahead++
			}
			if x[ahead] < x[i] {
				mid := (i + ahead - 1) / 2
				if x[mid] >= minHeight {
					idx = append(idx, mid)
					heights = append(heights, x[mid])
				}
				i = ahead
				continue
			}
		}
		i++
	}
	return idx, heights
}

// AdaptiveThreshold averages the 75th percentile of the naive peak
// heights with mean + k*std of the same heights. With ceilingRatio > 0 the
// result never exceeds ceilingRatio times the tallest peak.
func AdaptiveThreshold(heights []float64, k, ceilingRatio float64) float64 {
	if len(heights) == 0 {
		return math.Inf(1)
	}
	mean, std := stat.PopMeanStdDev(heights, nil)
	if math.IsNaN(std) {
		std = 0
	}
	th := (stats.Percentile(heights, 75) + mean + k*std) / 2
	if ceilingRatio > 0 {
		th = math.Min(th, ceilingRatio*floats.Max(heights))
	}
	return th
}

// HighestPeak is the index of the tallest local maximum of x reaching
// minHeight, or -1 when there is none.
func HighestPeak(x []float64, minHeight float64) int {
	idx, heights := FindPeaks(x, minHeight)
	if len(idx) == 0 {
		return -1
	}
	return idx[floats.MaxIdx(heights)]
}
