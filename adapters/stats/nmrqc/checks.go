// Package nmrqc computes the per-spectrum NMR quality checks: chemical shift
// calibration, line width, baseline, and water and solvent suppression.
package nmrqc

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"metaboqc/adapters/stats/kernel"
	"metaboqc/domain/sop"
)

// Calibration returns, per spectrum, the chemical shift of the tallest point
// inside the search range minus the expected reference shift, and whether the
// absolute offset exceeds tolerance. Spectra with no finite point in range
// fail with a NaN offset.
func Calibration(x mat.Matrix, ppm []float64, search sop.Range, calibrateTo, tolerance float64) ([]float64, []bool) {
	r, _ := x.Dims()
	cols := indicesIn(ppm, []sop.Range{search})
	offsets := make([]float64, r)
	fail := make([]bool, r)
	for i := 0; i < r; i++ {
		best, bestJ := math.Inf(-1), -1
		for _, j := range cols {
			if v := x.At(i, j); kernel.IsFinite(v) && v > best {
				best, bestJ = v, j
			}
		}
		if bestJ < 0 {
			offsets[i] = math.NaN()
			fail[i] = true
			continue
		}
		offsets[i] = ppm[bestJ] - calibrateTo
		fail[i] = math.Abs(offsets[i]) > tolerance
	}
	return offsets, fail
}

// LineWidth flags spectra whose line width exceeds threshold or is missing.
func LineWidth(lineWidth []float64, threshold float64) []bool {
	fail := make([]bool, len(lineWidth))
	for i, w := range lineWidth {
		fail[i] = !kernel.IsFinite(w) || w > threshold
	}
	return fail
}

// RegionResult is the outcome of a percentile region check.
type RegionResult struct {
	Fail       []bool
	Fraction   []float64 // per spectrum, share of region points above threshold
	Thresholds []float64 // per region point, the cross-spectrum percentile
	PPM        []float64
}

// RegionCheck compares every spectrum against the cross-spectrum distribution
// of absolute intensity inside the regions. For each point the threshold is
// the given percentile of |x| across spectra; a spectrum fails when the share
// of its points above their threshold is greater than failFraction. Without
// regions nothing fails.
func RegionCheck(x mat.Matrix, ppm []float64, regions []sop.Range, percentile, failFraction float64) RegionResult {
	r, _ := x.Dims()
	cols := indicesIn(ppm, regions)
	res := RegionResult{
		Fail:       make([]bool, r),
		Fraction:   make([]float64, r),
		Thresholds: make([]float64, len(cols)),
		PPM:        make([]float64, len(cols)),
	}
	if len(cols) == 0 || r == 0 {
		return res
	}

	abs := make([]float64, 0, r)
	for k, j := range cols {
		abs = abs[:0]
		for i := 0; i < r; i++ {
			if v := x.At(i, j); kernel.IsFinite(v) {
				abs = append(abs, math.Abs(v))
			}
		}
		res.PPM[k] = ppm[j]
		if len(abs) == 0 {
			res.Thresholds[k] = math.NaN()
			continue
		}
		sort.Float64s(abs)
		res.Thresholds[k] = stat.Quantile(percentile/100, stat.LinInterp, abs, nil)
	}

	for i := 0; i < r; i++ {
		above, total := 0, 0
		for k, j := range cols {
			v := x.At(i, j)
			if !kernel.IsFinite(v) || math.IsNaN(res.Thresholds[k]) {
				continue
			}
			total++
			if math.Abs(v) > res.Thresholds[k] {
				above++
			}
		}
		if total == 0 {
			continue
		}
		res.Fraction[i] = float64(above) / float64(total)
		res.Fail[i] = res.Fraction[i] > failFraction
	}
	return res
}

// EstimateLineWidth measures the full width at half maximum, in Hz, of the
// tallest peak inside peakRange for each spectrum. The half-height crossing
// on each side is linearly interpolated. Spectra whose peak does not fall to
// half height inside the spectrum yield NaN.
func EstimateLineWidth(x mat.Matrix, ppm []float64, peakRange sop.Range, frequencyMHz float64) []float64 {
	r, c := x.Dims()
	order := make([]int, c)
	for j := range order {
		order[j] = j
	}
	sort.SliceStable(order, func(a, b int) bool { return ppm[order[a]] < ppm[order[b]] })

	out := make([]float64, r)
	row := make([]float64, c)
	axis := make([]float64, c)
	for k, j := range order {
		axis[k] = ppm[j]
	}
	for i := 0; i < r; i++ {
		for k, j := range order {
			row[k] = x.At(i, j)
		}
		out[i] = fwhm(row, axis, peakRange) * frequencyMHz
	}
	return out
}

func fwhm(row, axis []float64, peakRange sop.Range) float64 {
	peak, best := -1, math.Inf(-1)
	for k, p := range axis {
		if peakRange.Contains(p) && kernel.IsFinite(row[k]) && row[k] > best {
			peak, best = k, row[k]
		}
	}
	if peak < 0 || best <= 0 {
		return math.NaN()
	}
	half := best / 2

	left := math.NaN()
	for k := peak; k > 0; k-- {
		if row[k-1] < half {
			left = crossing(axis[k-1], row[k-1], axis[k], row[k], half)
			break
		}
	}
	right := math.NaN()
	for k := peak; k < len(row)-1; k++ {
		if row[k+1] < half {
			right = crossing(axis[k], row[k], axis[k+1], row[k+1], half)
			break
		}
	}
	return right - left
}

func crossing(x0, y0, x1, y1, level float64) float64 {
	if y1 == y0 {
		return x0
	}
	return x0 + (level-y0)*(x1-x0)/(y1-y0)
}

func indicesIn(ppm []float64, regions []sop.Range) []int {
	var idx []int
	for j, p := range ppm {
		for _, rg := range regions {
			if rg.Contains(p) {
				idx = append(idx, j)
				break
			}
		}
	}
	return idx
}
