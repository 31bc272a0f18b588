package app

import (
	"fmt"
	"sort"
	"strings"

	"metaboqc/adapters/stats/batchcorrect"
	"metaboqc/adapters/stats/kernel"
	"metaboqc/domain/dataset"
	"metaboqc/domain/report"
)

// maxFitFeatures bounds the number of correction curves drawn.
const maxFitFeatures = 4

// BuildCorrectionAssessment compares the precision of every role before and
// after run-order correction. When the correction failed, r is nil and the
// after columns are NaN.
func BuildCorrectionAssessment(before, after *dataset.Dataset, r *batchcorrect.Result) *report.Items {
	it := report.NewItems(report.KindCorrection, before.Name(), before.Platform(), before.SOP().Name)
	it.Fingerprint = before.SOP().Fingerprint()

	roles := before.Roles()
	keep := before.SampleMask()
	x0 := before.Intensity()
	x1 := x0
	if r != nil {
		x1 = r.Corrected
	}

	rsd := report.Table{
		Name:    report.TableCorrectionRSD,
		Title:   "Median RSD (%) before and after correction",
		Columns: []string{"Sample Type", "Before", "After", "Features improved"},
	}
	var spBefore, spAfter []float64
	for _, role := range []string{dataset.RoleSP, dataset.RoleER, dataset.RoleSS} {
		rows := dataset.And(roles.Named()[role], keep)
		if dataset.Count(rows) < 2 {
			continue
		}
		b := kernel.RSD(x0, rows)
		a := kernel.NaNs(len(b))
		improved := 0
		if r != nil {
			a = kernel.RSD(x1, rows)
			for j := range a {
				if kernel.IsFinite(a[j]) && kernel.IsFinite(b[j]) && a[j] < b[j] {
					improved++
				}
			}
		}
		if role == dataset.RoleSP {
			spBefore, spAfter = b, a
		}
		rsd.Append(dataset.RoleDisplayName(role), round(medianOf(b), 3), round(medianOf(a), 3), improved)
	}
	it.AddTable(rsd)

	it.Set("state", after.Correction().State.String())
	if r == nil {
		reason := after.Correction().Reason
		it.Warn("batch correction failed: %s", reason)
		it.Narrative = fmt.Sprintf("Batch correction could not be applied: %s. Intensities are uncorrected.", reason)
		return it
	}

	names := before.FeatureNames()
	warn := report.Table{
		Name:    report.TableCorrectionWarn,
		Title:   "Features left uncorrected",
		Columns: []string{"Feature", "Reason"},
	}
	for _, rv := range r.Reverted {
		warn.Append(names[rv.Feature], rv.Reason)
	}
	it.AddTable(warn)

	levels := report.Table{
		Name:    report.TableBatchLevels,
		Title:   "Reference levels per correction batch",
		Columns: []string{"Feature", "Reference"},
	}
	for _, b := range r.Batches {
		levels.Columns = append(levels.Columns, fmt.Sprintf("Batch %g", b))
	}
	for j, name := range names {
		row := []any{name, r.Reference[j]}
		for k := range r.Batches {
			row = append(row, r.BatchLevels[k][j])
		}
		levels.Append(row...)
	}
	it.AddTable(levels)

	runOrder, _ := before.SampleFloats(dataset.ColRunOrder)
	if fits := fitFigure(r, runOrder, names, spBefore, spAfter); len(fits.Series) > 0 {
		it.AddFigure(fits)
	}

	it.Set("window", after.Correction().Window)
	it.Set("batches", len(r.Batches))
	it.Set("featuresReverted", len(r.Reverted))
	it.Set("medianRSDSPBefore", round(medianOf(spBefore), 3))
	it.Set("medianRSDSPAfter", round(medianOf(spAfter), 3))

	var b strings.Builder
	fmt.Fprintf(&b, "Run-order correction over %d batches with a LOWESS window of %d study pool injections.", len(r.Batches), after.Correction().Window)
	fmt.Fprintf(&b, " Median study pool RSD moved from %.2f%% to %.2f%%.", medianOf(spBefore), medianOf(spAfter))
	if len(r.Reverted) > 0 {
		fmt.Fprintf(&b, " %d features were left uncorrected.", len(r.Reverted))
	}
	it.Narrative = b.String()
	return it
}

// fitFigure draws the correction curves, relative to their reference level,
// of the features whose study pool RSD improved the most.
func fitFigure(r *batchcorrect.Result, runOrder []float64, names []string, before, after []float64) report.Figure {
	f := report.Figure{
		Name:   report.FigureCorrectionFits,
		Kind:   report.FigureLine,
		Title:  "Correction curves",
		XLabel: "Run Order",
		YLabel: "Fit / reference level",
	}
	if runOrder == nil || before == nil {
		return f
	}
	var cand []int
	for j := range before {
		if kernel.IsFinite(before[j]) && kernel.IsFinite(after[j]) && kernel.IsFinite(r.Reference[j]) && r.Reference[j] != 0 {
			cand = append(cand, j)
		}
	}
	sort.SliceStable(cand, func(a, b int) bool {
		return before[cand[a]]-after[cand[a]] > before[cand[b]]-after[cand[b]]
	})
	if len(cand) > maxFitFeatures {
		cand = cand[:maxFitFeatures]
	}

	order := make([]int, 0, len(runOrder))
	for i, v := range runOrder {
		if kernel.IsFinite(v) {
			order = append(order, i)
		}
	}
	sort.SliceStable(order, func(a, b int) bool { return runOrder[order[a]] < runOrder[order[b]] })

	for _, j := range cand {
		s := report.Series{Name: names[j]}
		for _, i := range order {
			v := r.Fit.At(i, j)
			if !kernel.IsFinite(v) {
				continue
			}
			s.X = append(s.X, runOrder[i])
			s.Y = append(s.Y, v/r.Reference[j])
		}
		if len(s.X) > 0 {
			f.Series = append(f.Series, s)
		}
	}
	return f
}
