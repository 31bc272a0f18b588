package msqc

import (
	"math"
	"sort"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"metaboqc/adapters/stats/kernel"
)

// TIC returns the total intensity of every sample over the selected
// features, skipping non-finite values.
func TIC(x mat.Matrix, cols []bool) []float64 {
	r, c := x.Dims()
	out := make([]float64, r)
	row := make([]float64, 0, c)
	for i := 0; i < r; i++ {
		row = row[:0]
		for j := 0; j < c; j++ {
			if cols != nil && !cols[j] {
				continue
			}
			if v := x.At(i, j); kernel.IsFinite(v) {
				row = append(row, v)
			}
		}
		out[i] = floats.Sum(row)
	}
	return out
}

// Distribution summarises a set of values.
type Distribution struct {
	Count  int
	Min    float64
	Q1     float64
	Median float64
	Q3     float64
	Max    float64
	Mean   float64
}

// Describe summarises the finite values in v. An empty input yields a zero
// count and NaN statistics.
func Describe(v []float64) Distribution {
	f := kernel.FiniteOf(v, nil)
	if len(f) == 0 {
		nan := math.NaN()
		return Distribution{Min: nan, Q1: nan, Median: nan, Q3: nan, Max: nan, Mean: nan}
	}
	sort.Float64s(f)
	d := Distribution{Count: len(f)}
	d.Min, _ = stats.Min(f)
	d.Max, _ = stats.Max(f)
	d.Median, _ = stats.Median(f)
	d.Mean, _ = stats.Mean(f)
	d.Q1 = stat.Quantile(0.25, stat.LinInterp, f, nil)
	d.Q3 = stat.Quantile(0.75, stat.LinInterp, f, nil)
	return d
}

// Histogram bins the finite values of v into n equal-width bins. It returns
// the n+1 bin edges and the counts.
func Histogram(v []float64, n int) ([]float64, []float64) {
	f := kernel.FiniteOf(v, nil)
	if len(f) == 0 || n < 1 {
		return nil, nil
	}
	sort.Float64s(f)
	lo, hi := f[0], f[len(f)-1]
	if lo == hi {
		lo, hi = lo-0.5, hi+0.5
	}
	edges := make([]float64, n+1)
	floats.Span(edges, lo, hi)
	// the last divider must exceed the maximum for stat.Histogram
	edges[n] = math.Nextafter(hi, math.Inf(1))
	counts := stat.Histogram(nil, edges, f, nil)
	edges[n] = hi
	return edges, counts
}

// PeakWidthSummary describes the chromatographic peak widths of the selected
// features.
func PeakWidthSummary(peakWidth []float64, cols []bool) Distribution {
	return Describe(kernel.FiniteOf(peakWidth, cols))
}

// DetectorDrift is the detector voltage range seen within one batch.
type DetectorDrift struct {
	Batch float64
	Min   float64
	Max   float64
	Range float64
}

// DetectorDrifts reports, per acquisition batch, the spread of the detector
// voltage. Batches are returned in ascending order.
func DetectorDrifts(batch, detector []float64) []DetectorDrift {
	groups := make(map[float64][]float64)
	for i, b := range batch {
		if math.IsNaN(b) || !kernel.IsFinite(detector[i]) {
			continue
		}
		groups[b] = append(groups[b], detector[i])
	}
	keys := make([]float64, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Float64s(keys)
	out := make([]DetectorDrift, 0, len(keys))
	for _, k := range keys {
		lo, hi := floats.Min(groups[k]), floats.Max(groups[k])
		out = append(out, DetectorDrift{Batch: k, Min: lo, Max: hi, Range: hi - lo})
	}
	return out
}
