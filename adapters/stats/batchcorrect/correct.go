// Package batchcorrect implements run-order and batch correction of MS
// intensities: a LOWESS curve is fitted to the study-pool injections of each
// feature in each correction batch and every sample is rescaled so that the
// fitted curve sits on a common reference level.
package batchcorrect

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/montanaflynn/stats"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"metaboqc/adapters/stats/kernel"
	"metaboqc/domain/core"
)

// DefaultWindow is the LOWESS neighbourhood used when none is configured.
const DefaultWindow = 11

// Options configures a correction run.
type Options struct {
	Window           int // odd neighbourhood size, 0 for DefaultWindow
	RobustIterations int
	Workers          int // concurrent features, 0 or 1 for serial
}

// Reversion records a feature left uncorrected.
type Reversion struct {
	Feature int
	Reason  string
}

// Result is the outcome of a correction.
type Result struct {
	Corrected   *mat.Dense
	Fit         *mat.Dense  // correction curve per sample and feature, NaN where none applies
	Reference   []float64   // global reference level R per feature, NaN when reverted
	Batches     []float64   // correction batch identifiers in ascending order
	BatchLevels [][]float64 // per batch, the level r_b per feature
	Reverted    []Reversion
}

// Correct fits and applies the run-order correction. x is left untouched.
// Samples with a missing Correction Batch or run order keep their values. A
// feature reverts to its original values when any batch has fewer than two
// finite study-pool values or the fit is non-finite.
func Correct(ctx context.Context, x mat.Matrix, runOrder, batch []float64, sp []bool, opts Options) (*Result, error) {
	r, c := x.Dims()
	if len(runOrder) != r || len(batch) != r || len(sp) != r {
		return nil, fmt.Errorf("%w: run order, batch and study pool mask must have %d entries", core.ErrShapeMismatch, r)
	}
	w := opts.Window
	if w == 0 {
		w = DefaultWindow
	}
	if w < 3 || w%2 == 0 {
		return nil, core.NewConfigurationError("window", fmt.Sprintf("must be odd and >= 3, got %d", w))
	}

	groups, keys := batchRows(runOrder, batch)
	if len(keys) == 0 {
		return nil, core.NewPreconditionError("batch correction", "no sample has a Correction Batch and run order")
	}
	for _, b := range keys {
		n := 0
		for _, i := range groups[b] {
			if sp[i] {
				n++
			}
		}
		if n < 2 {
			return nil, core.NewPreconditionError("batch correction", fmt.Sprintf("correction batch %g has %d study pool samples, need at least 2", b, n))
		}
	}

	res := &Result{
		Corrected:   mat.DenseCopyOf(x),
		Fit:         mat.NewDense(r, c, kernel.NaNs(r*c)),
		Reference:   kernel.NaNs(c),
		Batches:     keys,
		BatchLevels: make([][]float64, len(keys)),
	}
	for k := range res.BatchLevels {
		res.BatchLevels[k] = kernel.NaNs(c)
	}
	reasons := make([]string, c)

	g, ctx := errgroup.WithContext(ctx)
	if opts.Workers > 1 {
		g.SetLimit(opts.Workers)
	} else {
		g.SetLimit(1)
	}
	for j := 0; j < c; j++ {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			reasons[j] = correctFeature(x, res, j, runOrder, sp, groups, keys, w, opts.RobustIterations)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for j, reason := range reasons {
		if reason != "" {
			res.Reverted = append(res.Reverted, Reversion{Feature: j, Reason: reason})
		}
	}
	return res, nil
}

// batchRows groups sample indices by correction batch, skipping samples
// without a batch or run order.
func batchRows(runOrder, batch []float64) (map[float64][]int, []float64) {
	groups := make(map[float64][]int)
	for i, b := range batch {
		if math.IsNaN(b) || math.IsNaN(runOrder[i]) {
			continue
		}
		groups[b] = append(groups[b], i)
	}
	keys := make([]float64, 0, len(groups))
	for b := range groups {
		keys = append(keys, b)
	}
	sort.Float64s(keys)
	return groups, keys
}

// correctFeature writes the corrected column j into res and returns the
// reason the feature was reverted, or "" on success. Each call touches only
// column j of the shared matrices.
func correctFeature(x mat.Matrix, res *Result, j int, runOrder []float64, sp []bool, groups map[float64][]int, keys []float64, w, iterations int) string {
	type curve struct{ xs, ys []float64 }
	curves := make([]curve, len(keys))
	levels := make([]float64, len(keys))

	for k, b := range keys {
		var pts []int
		for _, i := range groups[b] {
			if sp[i] && kernel.IsFinite(x.At(i, j)) {
				pts = append(pts, i)
			}
		}
		if len(pts) < 2 {
			return fmt.Sprintf("correction batch %g has %d finite study pool values", b, len(pts))
		}
		sort.SliceStable(pts, func(a, c int) bool { return runOrder[pts[a]] < runOrder[pts[c]] })
		xs := make([]float64, len(pts))
		ys := make([]float64, len(pts))
		for p, i := range pts {
			xs[p], ys[p] = runOrder[i], x.At(i, j)
		}
		fit := Lowess(xs, ys, min(w, len(pts)), iterations)
		for _, v := range fit {
			if !kernel.IsFinite(v) {
				return fmt.Sprintf("non-finite fit in correction batch %g", b)
			}
		}
		curves[k] = curve{xs: xs, ys: fit}
		levels[k], _ = stats.Median(fit)
	}

	ref, _ := stats.Median(append([]float64(nil), levels...))
	if !kernel.IsFinite(ref) {
		return "non-finite reference level"
	}

	for k, b := range keys {
		res.BatchLevels[k][j] = levels[k]
		for _, i := range groups[b] {
			cb := Interpolate(curves[k].xs, curves[k].ys, runOrder[i])
			res.Fit.Set(i, j, cb)
			v := x.At(i, j)
			if cb > 0 && kernel.IsFinite(cb) && kernel.IsFinite(v) {
				res.Corrected.Set(i, j, v*ref/cb)
			}
		}
	}
	res.Reference[j] = ref
	return ""
}
