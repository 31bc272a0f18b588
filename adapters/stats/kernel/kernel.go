// Package kernel holds the vectorised statistics every QC stage builds on:
// relative standard deviation, column-wise correlation, ranking, the blank
// response filter and the artifactual-peak filter.
//
// All functions are pure. Undefined statistics are returned as NaN or +Inf
// and never raise errors.
package kernel

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Finite returns the finite entries of column j restricted to rows. A nil
// rows mask selects every row.
func Finite(x mat.Matrix, j int, rows []bool) []float64 {
	r, _ := x.Dims()
	out := make([]float64, 0, r)
	for i := 0; i < r; i++ {
		if rows != nil && !rows[i] {
			continue
		}
		v := x.At(i, j)
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			out = append(out, v)
		}
	}
	return out
}

// FiniteOf returns the finite entries of v restricted to rows.
func FiniteOf(v []float64, rows []bool) []float64 {
	out := make([]float64, 0, len(v))
	for i, x := range v {
		if rows != nil && !rows[i] {
			continue
		}
		if !math.IsNaN(x) && !math.IsInf(x, 0) {
			out = append(out, x)
		}
	}
	return out
}

// IsFinite reports whether v is neither NaN nor infinite.
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// NaNs returns a slice of n NaN values.
func NaNs(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
