package kernel

import (
	"math"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// BlankFilter passes a feature when the median study-sample intensity exceeds
// threshold times the mean blank intensity. Features with no finite blank
// values pass.
func BlankFilter(x mat.Matrix, ss, blank []bool, threshold float64) []bool {
	_, c := x.Dims()
	out := make([]bool, c)
	for j := 0; j < c; j++ {
		blanks := Finite(x, j, blank)
		if len(blanks) == 0 {
			out[j] = true
			continue
		}
		med, err := stats.Median(Finite(x, j, ss))
		if err != nil {
			continue
		}
		out[j] = med > threshold*stat.Mean(blanks, nil)
	}
	return out
}

// MedianOrNaN returns the median of the finite entries of v, NaN when none.
func MedianOrNaN(v []float64) float64 {
	m, err := stats.Median(FiniteOf(v, nil))
	if err != nil {
		return math.NaN()
	}
	return m
}

// MeanOrNaN returns the mean of the finite entries of v, NaN when none.
func MeanOrNaN(v []float64) float64 {
	f := FiniteOf(v, nil)
	if len(f) == 0 {
		return math.NaN()
	}
	return stat.Mean(f, nil)
}
