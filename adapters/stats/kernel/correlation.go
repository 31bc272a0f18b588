package kernel

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"metaboqc/domain/sop"
)

// Correlate returns the correlation of every column of x with y using the
// named method (pearson or spearman). Rows outside rows are ignored, as are
// rows where either value is non-finite. Columns outside cols are NaN.
// Constant columns yield 0; fewer than two usable rows yield NaN.
func Correlate(x mat.Matrix, y []float64, method string, rows, cols []bool) []float64 {
	r, c := x.Dims()
	out := NaNs(c)
	xs := make([]float64, 0, r)
	ys := make([]float64, 0, r)
	for j := 0; j < c; j++ {
		if cols != nil && !cols[j] {
			continue
		}
		xs, ys = xs[:0], ys[:0]
		for i := 0; i < r; i++ {
			if rows != nil && !rows[i] {
				continue
			}
			a, b := x.At(i, j), y[i]
			if IsFinite(a) && IsFinite(b) {
				xs = append(xs, a)
				ys = append(ys, b)
			}
		}
		out[j] = correlatePair(xs, ys, method)
	}
	return out
}

// CorrelateVectors returns the correlation of two equal-length vectors under
// the same rules as Correlate.
func CorrelateVectors(a, b []float64, method string) float64 {
	xs := make([]float64, 0, len(a))
	ys := make([]float64, 0, len(a))
	for i := range a {
		if IsFinite(a[i]) && IsFinite(b[i]) {
			xs = append(xs, a[i])
			ys = append(ys, b[i])
		}
	}
	return correlatePair(xs, ys, method)
}

func correlatePair(xs, ys []float64, method string) float64 {
	if len(xs) < 2 {
		return math.NaN()
	}
	if method == sop.CorrSpearman {
		xs, ys = Ranks(xs), Ranks(ys)
	}
	if constant(xs) || constant(ys) {
		return 0
	}
	r := stat.Correlation(xs, ys, nil)
	// clamp rounding drift
	return math.Max(-1, math.Min(1, r))
}

func constant(v []float64) bool {
	for _, x := range v[1:] {
		if x != v[0] {
			return false
		}
	}
	return true
}

// Ranks converts values to 1-based ranks, averaging ties.
func Ranks(data []float64) []float64 {
	n := len(data)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return data[idx[a]] < data[idx[b]] })

	ranks := make([]float64, n)
	for i := 0; i < n; {
		j := i + 1
		for j < n && data[idx[j]] == data[idx[i]] {
			j++
		}
		avg := float64(i+1) + float64(j-i-1)/2
		for k := i; k < j; k++ {
			ranks[idx[k]] = avg
		}
		i = j
	}
	return ranks
}

// TieGroups returns the sizes of groups of tied values, used by tie
// corrections in rank tests.
func TieGroups(data []float64) []int {
	sorted := append([]float64(nil), data...)
	sort.Float64s(sorted)
	var groups []int
	for i := 0; i < len(sorted); {
		j := i + 1
		for j < len(sorted) && sorted[j] == sorted[i] {
			j++
		}
		if j-i > 1 {
			groups = append(groups, j-i)
		}
		i = j
	}
	return groups
}
