package app

import (
	"math"

	"metaboqc/adapters/stats/kernel"
	"metaboqc/adapters/stats/msqc"
	"metaboqc/domain/dataset"
	"metaboqc/domain/report"
	"metaboqc/domain/sop"
)

// namedValues is one distribution plotted in a shared histogram.
type namedValues struct {
	Name   string
	Color  string
	Values []float64
}

// histogramFigure bins every set on common edges so the series overlay.
// Series are plotted at the bin centres.
func histogramFigure(name, title, xLabel string, sets []namedValues, bins int) report.Figure {
	f := report.Figure{Name: name, Kind: report.FigureHistogram, Title: title, XLabel: xLabel, YLabel: "Features"}
	var all []float64
	for _, s := range sets {
		all = append(all, kernel.FiniteOf(s.Values, nil)...)
	}
	edges, _ := msqc.Histogram(all, bins)
	if edges == nil {
		return f
	}
	centres := make(report.Floats, len(edges)-1)
	for i := range centres {
		centres[i] = (edges[i] + edges[i+1]) / 2
	}
	for _, s := range sets {
		f.Series = append(f.Series, report.Series{
			Name:  s.Name,
			Color: s.Color,
			X:     centres,
			Y:     binCounts(s.Values, edges),
		})
	}
	return f
}

// binCounts counts the finite values of v falling in each bin; the last bin
// is closed on the right.
func binCounts(v, edges []float64) report.Floats {
	n := len(edges) - 1
	out := make(report.Floats, n)
	for _, x := range v {
		if !kernel.IsFinite(x) || x < edges[0] || x > edges[n] {
			continue
		}
		k := n - 1
		for b := 0; b < n; b++ {
			if x < edges[b+1] {
				k = b
				break
			}
		}
		out[k]++
	}
	return out
}

// roleScatter draws one series per sample role present. x and y are indexed
// by sample; samples outside mask are left out.
func roleScatter(d *dataset.Dataset, name, title, xLabel, yLabel string, x, y []float64, mask []bool, pres sop.Presentation) report.Figure {
	f := report.Figure{Name: name, Kind: report.FigureScatter, Title: title, XLabel: xLabel, YLabel: yLabel}
	named := d.Roles().Named()
	samples := d.SampleNames()
	for _, role := range dataset.RoleOrder {
		rows := named[role]
		s := report.Series{Name: dataset.RoleDisplayName(role), Color: pres.Colour(dataset.RoleDisplayName(role))}
		for i, in := range rows {
			if !in || (mask != nil && !mask[i]) {
				continue
			}
			s.X = append(s.X, x[i])
			s.Y = append(s.Y, y[i])
			s.Labels = append(s.Labels, samples[i])
		}
		if len(s.X) > 0 {
			f.Series = append(f.Series, s)
		}
	}
	return f
}

// sampleAxis returns the run order when the dataset has one and the sample
// position otherwise.
func sampleAxis(d *dataset.Dataset) ([]float64, string) {
	if v, err := d.SampleFloats(dataset.ColRunOrder); err == nil {
		return v, "Run Order"
	}
	out := make([]float64, d.NSamples())
	for i := range out {
		out[i] = float64(i + 1)
	}
	return out, "Sample"
}

func medianOf(v []float64) float64 {
	return kernel.MedianOrNaN(kernel.FiniteOf(v, nil))
}

func finiteCount(v []float64) int {
	n := 0
	for _, x := range v {
		if kernel.IsFinite(x) {
			n++
		}
	}
	return n
}

func distributionCells(d msqc.Distribution) []any {
	return []any{d.Count, d.Min, d.Q1, d.Median, d.Q3, d.Max, d.Mean}
}

var distributionColumns = []string{"Count", "Min", "Q1", "Median", "Q3", "Max", "Mean"}

func round(v float64, digits int) float64 {
	if !kernel.IsFinite(v) {
		return v
	}
	p := math.Pow(10, float64(digits))
	return math.Round(v*p) / p
}
