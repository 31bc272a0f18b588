package msqc

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"metaboqc/adapters/stats/kernel"
)

// Intensity terciles used by the saturation summary.
const (
	TercileLow = iota
	TercileMid
	TercileHigh
)

// TercileNames labels the saturation terciles.
var TercileNames = [3]string{"0-25%", "25-75%", "75-100%"}

// SaturationCell is one entry of the saturation heatmap.
type SaturationCell struct {
	Batch        string
	LowDilution  float64
	HighDilution float64
	Tercile      int
	Fraction     float64 // NaN when no feature in the tercile is comparable
	Features     int
}

// Terciles assigns each feature to an intensity band using the 25th and 75th
// percentiles of its median intensity over all samples. Features without a
// finite median are assigned -1.
func Terciles(x mat.Matrix) []int {
	_, c := x.Dims()
	medians := make([]float64, c)
	for j := 0; j < c; j++ {
		medians[j] = kernel.MedianOrNaN(kernel.Finite(x, j, nil))
	}
	finite := kernel.FiniteOf(medians, nil)
	out := make([]int, c)
	if len(finite) == 0 {
		for j := range out {
			out[j] = -1
		}
		return out
	}
	sort.Float64s(finite)
	p25 := stat.Quantile(0.25, stat.LinInterp, finite, nil)
	p75 := stat.Quantile(0.75, stat.LinInterp, finite, nil)
	for j, m := range medians {
		switch {
		case math.IsNaN(m):
			out[j] = -1
		case m <= p25:
			out[j] = TercileLow
		case m <= p75:
			out[j] = TercileMid
		default:
			out[j] = TercileHigh
		}
	}
	return out
}

// Saturation reports, for every linearity-reference series, every pair of
// adjacent dilution levels and every intensity tercile, the fraction of
// features whose median intensity at the lower dilution does not exceed that
// at the higher one. Fractions near zero signal detector saturation.
func Saturation(x mat.Matrix, dilution []float64, batches []LRBatch, cols []bool) []SaturationCell {
	_, c := x.Dims()
	tercile := Terciles(x)
	var cells []SaturationCell
	for _, b := range batches {
		levels := dilutionLevels(dilution, b.Indices)
		for k := 0; k+1 < len(levels); k++ {
			lo, hi := levels[k], levels[k+1]
			loRows := levelRows(dilution, b.Indices, lo, len(dilution))
			hiRows := levelRows(dilution, b.Indices, hi, len(dilution))

			var ok, total [3]int
			for j := 0; j < c; j++ {
				if (cols != nil && !cols[j]) || tercile[j] < 0 {
					continue
				}
				mLo := kernel.MedianOrNaN(kernel.Finite(x, j, loRows))
				mHi := kernel.MedianOrNaN(kernel.Finite(x, j, hiRows))
				if math.IsNaN(mLo) || math.IsNaN(mHi) {
					continue
				}
				total[tercile[j]]++
				if mLo <= mHi {
					ok[tercile[j]]++
				}
			}
			for t := 0; t < 3; t++ {
				frac := math.NaN()
				if total[t] > 0 {
					frac = float64(ok[t]) / float64(total[t])
				}
				cells = append(cells, SaturationCell{
					Batch: b.Name, LowDilution: lo, HighDilution: hi,
					Tercile: t, Fraction: frac, Features: total[t],
				})
			}
		}
	}
	return cells
}

func dilutionLevels(dilution []float64, idx []int) []float64 {
	seen := make(map[float64]bool)
	var levels []float64
	for _, i := range idx {
		d := dilution[i]
		if math.IsNaN(d) || seen[d] {
			continue
		}
		seen[d] = true
		levels = append(levels, d)
	}
	sort.Float64s(levels)
	return levels
}

func levelRows(dilution []float64, idx []int, level float64, n int) []bool {
	rows := make([]bool, n)
	for _, i := range idx {
		if dilution[i] == level {
			rows[i] = true
		}
	}
	return rows
}
