// Package loq merges the per-batch limits of quantification of a targeted
// dataset into a single conservative pair of limits per feature.
package loq

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"

	"gonum.org/v1/gonum/mat"

	"metaboqc/adapters/stats/kernel"
	"metaboqc/domain/core"
	"metaboqc/domain/dataset"
	"metaboqc/domain/sop"
)

var batchColumn = regexp.MustCompile(`^LLOQ_batch(\d+)$`)

// Result summarises a merge.
type Result struct {
	Batches   []int
	LLOQ      []float64
	ULOQ      []float64
	BelowLLOQ []int
	AboveULOQ []int
	Demoted   []int // features newly marked Monitored
	Censored  int   // values replaced by -Inf or +Inf
}

// MergeLimits returns max over batches of the lower limits and min over
// batches of the upper limits, ignoring non-finite entries. Each argument is
// indexed [batch][feature].
func MergeLimits(lloq, uloq [][]float64) ([]float64, []float64) {
	merge := func(per [][]float64, pick func(a, b float64) float64) []float64 {
		if len(per) == 0 {
			return nil
		}
		out := kernel.NaNs(len(per[0]))
		for _, batch := range per {
			for j, v := range batch {
				if !kernel.IsFinite(v) {
					continue
				}
				if math.IsNaN(out[j]) {
					out[j] = v
				} else {
					out[j] = pick(out[j], v)
				}
			}
		}
		return out
	}
	return merge(lloq, math.Max), merge(uloq, math.Min)
}

// Batches lists the batch numbers that carry LLOQ_batch columns.
func Batches(features dataset.Table) []int {
	var out []int
	for _, name := range features.Names() {
		if m := batchColumn.FindStringSubmatch(name); m != nil {
			k, err := strconv.Atoi(m[1])
			if err == nil {
				out = append(out, k)
			}
		}
	}
	sort.Ints(out)
	return out
}

// Merge rewrites LLOQ and ULOQ from the per-batch columns, recounts the
// values outside the merged limits and demotes features without a
// quantifiable range to Monitored. With onlyLLOQ the ULOQ column is kept. With
// censor, values below LLOQ become -Inf and values above ULOQ become +Inf.
func Merge(d *dataset.Dataset, cfg sop.LOQ) (*dataset.Dataset, Result, error) {
	if d.Platform() != sop.PlatformTargetedMS {
		return nil, Result{}, fmt.Errorf("%w: LOQ merge on %s data", core.ErrWrongPlatform, d.Platform())
	}
	if d.NSamples() == 0 || d.NFeatures() == 0 {
		return nil, Result{}, core.NewPreconditionError("LOQ merge", fmt.Sprintf("dataset is %dx%d", d.NSamples(), d.NFeatures()))
	}
	f := d.Features()
	batches := Batches(f)
	if len(batches) == 0 {
		return nil, Result{}, core.NewPreconditionError("LOQ merge", "no LLOQ_batch columns in feature metadata")
	}

	var lloqs, uloqs [][]float64
	for _, k := range batches {
		l, err := f.Floats(dataset.LLOQBatchColumn(k))
		if err != nil {
			return nil, Result{}, err
		}
		lloqs = append(lloqs, l)
		if cfg.OnlyLLOQ {
			continue
		}
		u, err := f.Floats(dataset.ULOQBatchColumn(k))
		if err != nil {
			return nil, Result{}, core.NewMissingColumnError("feature metadata", dataset.ULOQBatchColumn(k))
		}
		uloqs = append(uloqs, u)
	}
	lloq, uloq := MergeLimits(lloqs, uloqs)
	if cfg.OnlyLLOQ {
		var err error
		if uloq, err = f.Floats(dataset.ColULOQ); err != nil {
			return nil, Result{}, err
		}
	}

	res := Result{Batches: batches, LLOQ: lloq, ULOQ: uloq}
	x := d.IntensityCopy()
	r, c := d.NSamples(), d.NFeatures()
	res.BelowLLOQ = make([]int, c)
	res.AboveULOQ = make([]int, c)
	for j := 0; j < c; j++ {
		for i := 0; i < r; i++ {
			v := x.At(i, j)
			if math.IsNaN(v) {
				continue
			}
			switch {
			case !math.IsNaN(lloq[j]) && v < lloq[j]:
				res.BelowLLOQ[j]++
				if cfg.CensorValues && !math.IsInf(v, -1) {
					x.Set(i, j, math.Inf(-1))
					res.Censored++
				}
			case !math.IsNaN(uloq[j]) && v > uloq[j]:
				res.AboveULOQ[j]++
				if cfg.CensorValues && !math.IsInf(v, 1) {
					x.Set(i, j, math.Inf(1))
					res.Censored++
				}
			}
		}
	}

	quant, _ := f.Strings(dataset.ColQuantificationType)
	for j := range quant {
		if kernel.IsFinite(lloq[j]) && kernel.IsFinite(uloq[j]) && lloq[j] >= uloq[j] && quant[j] != dataset.Monitored.String() {
			quant[j] = dataset.Monitored.String()
			res.Demoted = append(res.Demoted, j)
		}
	}

	out, err := d.WithIntensity(x)
	if err != nil {
		return nil, Result{}, err
	}
	for _, col := range []dataset.Column{
		dataset.FloatColumn(dataset.ColLLOQ, lloq),
		dataset.FloatColumn(dataset.ColULOQ, uloq),
		dataset.StringColumn(dataset.ColQuantificationType, quant),
		dataset.FloatColumn(dataset.ColBelowLLOQ, intsToFloats(res.BelowLLOQ)),
		dataset.FloatColumn(dataset.ColAboveULOQ, intsToFloats(res.AboveULOQ)),
	} {
		if out, err = out.WithFeatureColumn(col); err != nil {
			return nil, Result{}, err
		}
	}
	return out, res, nil
}

func intsToFloats(v []int) []float64 {
	out := make([]float64, len(v))
	for i, n := range v {
		out[i] = float64(n)
	}
	return out
}

// CensoredMatrix reports, per value, whether it lies outside the limits.
// Useful for rendering limit-of-quantification heatmaps.
func CensoredMatrix(x mat.Matrix, lloq, uloq []float64) *mat.Dense {
	r, c := x.Dims()
	out := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := x.At(i, j)
			switch {
			case math.IsNaN(v):
				out.Set(i, j, math.NaN())
			case v < lloq[j] || math.IsInf(v, -1):
				out.Set(i, j, -1)
			case v > uloq[j] || math.IsInf(v, 1):
				out.Set(i, j, 1)
			}
		}
	}
	return out
}
