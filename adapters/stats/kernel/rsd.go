package kernel

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// RSD returns, per feature, 100 x sample standard deviation / |mean| over the
// finite entries in the selected rows. Features with fewer than two finite
// entries or a zero mean yield +Inf.
func RSD(x mat.Matrix, rows []bool) []float64 {
	_, c := x.Dims()
	out := make([]float64, c)
	for j := 0; j < c; j++ {
		out[j] = rsdOf(Finite(x, j, rows))
	}
	return out
}

// RSDOf returns the RSD of a single vector, ignoring non-finite entries.
func RSDOf(v []float64) float64 {
	return rsdOf(FiniteOf(v, nil))
}

func rsdOf(v []float64) float64 {
	if len(v) < 2 {
		return math.Inf(1)
	}
	mean, std := stat.MeanStdDev(v, nil)
	if mean == 0 {
		return math.Inf(1)
	}
	return 100 * std / math.Abs(mean)
}
