package msqc

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"metaboqc/adapters/stats/kernel"
)

// DilutionCorrelation holds correlation to dilution per series and the mean
// across series.
type DilutionCorrelation struct {
	Batches  []string
	PerBatch [][]float64
	Mean     []float64
}

// CorrelationToDilution correlates every feature with the Dilution column
// within each linearity-reference series. With no series every value is NaN.
func CorrelationToDilution(x mat.Matrix, dilution []float64, batches []LRBatch, method string, cols []bool) DilutionCorrelation {
	_, c := x.Dims()
	out := DilutionCorrelation{Mean: kernel.NaNs(c)}
	for _, b := range batches {
		out.Batches = append(out.Batches, b.Name)
		out.PerBatch = append(out.PerBatch, kernel.Correlate(x, dilution, method, b.Rows, cols))
	}
	if len(out.PerBatch) == 0 {
		return out
	}
	for j := 0; j < c; j++ {
		sum, n := 0.0, 0
		for _, v := range out.PerBatch {
			if !math.IsNaN(v[j]) {
				sum += v[j]
				n++
			}
		}
		if n > 0 {
			out.Mean[j] = sum / float64(n)
		}
	}
	return out
}
