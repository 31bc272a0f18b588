package app

import (
	"context"
	"fmt"
	"math"
	"strings"

	"metaboqc/adapters/stats/kernel"
	"metaboqc/adapters/stats/msqc"
	"metaboqc/adapters/stats/selection"
	"metaboqc/domain/compound"
	"metaboqc/domain/dataset"
	"metaboqc/domain/report"
	"metaboqc/ports"
)

// BuildFeatureSummary reports the per-feature QC statistics of an MS dataset
// and the outcome of feature selection. d carries the masks the statistics
// were computed under.
func BuildFeatureSummary(d *dataset.Dataset, st selection.Statistics, out selection.Outcome) *report.Items {
	cfg := d.SOP().Core
	pres := d.SOP().Presentation
	it := report.NewItems(report.KindFeatureSummary, d.Name(), d.Platform(), d.SOP().Name)
	it.Fingerprint = d.SOP().Fingerprint()

	x := d.Intensity()
	keep := d.SampleMask()
	axis, axisLabel := sampleAxis(d)
	tic := msqc.TIC(x, nil)
	it.AddFigure(roleScatter(d, report.FigureTIC, "Total ion count", axisLabel, "TIC", axis, tic, keep, pres))

	byRole := report.Table{
		Name:    report.TableRSDByRole,
		Title:   "RSD (%) by sample role",
		Columns: append([]string{"Sample Type"}, distributionColumns...),
	}
	var sets []namedValues
	for _, r := range []struct {
		role string
		rsd  []float64
	}{{dataset.RoleSP, st.RSDSP}, {dataset.RoleER, st.RSDER}, {dataset.RoleSS, st.RSDSS}} {
		name := dataset.RoleDisplayName(r.role)
		dist := msqc.Describe(r.rsd)
		if dist.Count == 0 {
			continue
		}
		byRole.Append(append([]any{name}, distributionCells(dist)...)...)
		sets = append(sets, namedValues{Name: name, Color: pres.Colour(name), Values: r.rsd})
	}
	it.AddTable(byRole)
	it.AddFigure(histogramFigure(report.FigureRSDHistogram, "RSD distribution", "RSD (%)", sets, pres.HistBins))

	if st.HasLR {
		it.AddFigure(histogramFigure(report.FigureCorrHistogram, "Correlation to dilution", "Correlation ("+cfg.CorrMethod+")",
			[]namedValues{{Name: "All features", Color: pres.Colour(dataset.RoleDisplayName(dataset.RoleLR)), Values: st.CorrelationToDilution}},
			pres.HistBins))
		it.AddFigure(rsdVsCorrelation(d, st, out))
		it.Set("linearitySeries", len(st.LRBatches))
	}

	it.AddTable(selectionTable(out))

	if pw, err := d.FeatureFloats(dataset.ColPeakWidth); err == nil {
		t := report.Table{Name: report.TablePeakWidth, Title: "Peak width", Columns: append([]string{"Features"}, distributionColumns...)}
		t.Append(append([]any{"All"}, distributionCells(msqc.PeakWidthSummary(pw, nil))...)...)
		t.Append(append([]any{"Passing"}, distributionCells(msqc.PeakWidthSummary(pw, out.Pass))...)...)
		it.AddTable(t)
	}

	if drift := detectorDrift(d); len(drift.Rows) > 0 {
		it.AddTable(drift)
	}

	if dilution, err := d.SampleFloats(dataset.ColDilution); err == nil && len(st.LRBatches) > 0 {
		cells := msqc.Saturation(x, dilution, st.LRBatches, nil)
		if len(cells) > 0 {
			table, fig := saturation(cells)
			it.AddTable(table)
			it.AddFigure(fig)
		}
	}

	pass := out.Passing()
	it.Set("features", len(out.Pass))
	it.Set("featuresPassing", pass)
	it.Set("medianRSDSP", round(medianOf(st.RSDSP), 3))
	it.Set("rsdThreshold", cfg.RSDThreshold)
	it.Set("corrThreshold", cfg.CorrThreshold)
	it.Set("corrMethod", cfg.CorrMethod)
	if st.Artifactual != nil {
		it.Set("artifactualGroups", len(st.Artifactual.Groups))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d of %d features pass feature selection.", pass, len(out.Pass))
	if !st.HasLR {
		b.WriteString(" No linearity-reference samples were acquired, so correlation to dilution was not assessed.")
	}
	if d.Correction().State == dataset.Corrected {
		b.WriteString(" Statistics are computed on run-order corrected intensities.")
	}
	it.Narrative = b.String()
	return it
}

func rsdVsCorrelation(d *dataset.Dataset, st selection.Statistics, out selection.Outcome) report.Figure {
	pres := d.SOP().Presentation
	f := report.Figure{
		Name:   report.FigureRSDVsCorr,
		Kind:   report.FigureScatter,
		Title:  "Study pool RSD against correlation to dilution",
		XLabel: "Correlation to dilution",
		YLabel: "RSD (%)",
	}
	names := d.FeatureNames()
	passing := report.Series{Name: "Passing", Color: pres.Colour(dataset.RoleDisplayName(dataset.RoleSP))}
	failing := report.Series{Name: "Failing", Color: pres.Colour(dataset.RoleDisplayName(dataset.RoleUnknown))}
	for j := range out.Pass {
		s := &failing
		if out.Pass[j] {
			s = &passing
		}
		s.X = append(s.X, st.CorrelationToDilution[j])
		s.Y = append(s.Y, st.RSDSP[j])
		s.Labels = append(s.Labels, names[j])
	}
	f.Series = []report.Series{passing, failing}
	f.AddShape(report.Shape{Kind: "vline", Label: "correlation threshold", X: d.SOP().Core.CorrThreshold})
	f.AddShape(report.Shape{Kind: "hline", Label: "RSD threshold", Y: d.SOP().Core.RSDThreshold})
	return f
}

// selectionTable lists every gate with the number of features it rejected.
// Gates that were not applied are shown as such.
func selectionTable(out selection.Outcome) report.Table {
	t := report.Table{
		Name:    report.TableFeatureSelection,
		Title:   "Feature selection",
		Columns: []string{"Gate", "Applied", "Features failing"},
	}
	counts := out.FailCounts()
	for _, g := range selection.Gates {
		n, applied := counts[g]
		t.Append(g, applied, n)
	}
	t.Append("Passing all gates", true, out.Passing())
	return t
}

func detectorDrift(d *dataset.Dataset) report.Table {
	t := report.Table{
		Name:    report.TableDetectorDrift,
		Title:   "Detector voltage per batch",
		Columns: []string{"Batch", "Min", "Max", "Range"},
	}
	batch, err := d.SampleFloats(dataset.ColBatch)
	if err != nil {
		return t
	}
	detector, err := d.SampleFloats(dataset.ColDetector)
	if err != nil {
		return t
	}
	for _, dr := range msqc.DetectorDrifts(batch, detector) {
		t.Append(dr.Batch, dr.Min, dr.Max, dr.Range)
	}
	return t
}

// saturation tabulates the saturation cells and draws them as a heatmap with
// one row per intensity tercile and one column per pair of dilutions.
func saturation(cells []msqc.SaturationCell) (report.Table, report.Figure) {
	t := report.Table{
		Name:    report.TableSaturation,
		Title:   "Saturation",
		Columns: []string{"Series", "Lower dilution", "Higher dilution", "Intensity band", "Fraction increasing", "Features"},
	}
	grid := &report.Grid{Rows: append([]string(nil), msqc.TercileNames[:]...)}
	col := map[string]int{}
	for _, c := range cells {
		t.Append(c.Batch, c.LowDilution, c.HighDilution, msqc.TercileNames[c.Tercile], c.Fraction, c.Features)
		key := fmt.Sprintf("%s %g-%g", c.Batch, c.LowDilution, c.HighDilution)
		if _, ok := col[key]; !ok {
			col[key] = len(grid.Columns)
			grid.Columns = append(grid.Columns, key)
		}
	}
	grid.Values = make([]report.Floats, len(grid.Rows))
	for r := range grid.Values {
		grid.Values[r] = make(report.Floats, len(grid.Columns))
		for k := range grid.Values[r] {
			grid.Values[r][k] = math.NaN()
		}
	}
	for _, c := range cells {
		key := fmt.Sprintf("%s %g-%g", c.Batch, c.LowDilution, c.HighDilution)
		grid.Values[c.Tercile][col[key]] = c.Fraction
	}
	f := report.Figure{
		Name:   report.FigureSaturation,
		Kind:   report.FigureHeatmap,
		Title:  "Fraction of features increasing with dilution",
		XLabel: "Dilution step",
		YLabel: "Intensity band",
		Grid:   grid,
	}
	return t, f
}

// AnnotationOptions configures compound lookups for passing features.
type AnnotationOptions struct {
	Ionisation compound.Ionisation
	PPM        float64
	RTWindow   float64
}

// annotateFeatures looks up every passing feature with an m/z in the
// catalogue and tabulates the best match. Features without a match are
// omitted.
func annotateFeatures(ctx context.Context, cat ports.CompoundCatalogue, d *dataset.Dataset, pass []bool, opts AnnotationOptions) (report.Table, int, error) {
	t := report.Table{
		Name:    report.TableCompounds,
		Title:   "Compound annotations",
		Columns: []string{"Feature", "m/z", "Retention Time", "Compound", "Adduct", "ppm error", "RT error", "Candidates"},
	}
	mz, err := d.FeatureFloats(dataset.ColMZ)
	if err != nil {
		return t, 0, err
	}
	rt, err := d.FeatureFloats(dataset.ColRetentionTime)
	if err != nil {
		rt = kernel.NaNs(d.NFeatures())
	}
	names := d.FeatureNames()
	type row struct {
		j       int
		best    compound.Match
		matches int
	}
	var rows []row
	for j := range mz {
		if (pass != nil && !pass[j]) || !kernel.IsFinite(mz[j]) || mz[j] <= 0 {
			continue
		}
		if err := ctx.Err(); err != nil {
			return t, 0, err
		}
		matches, err := cat.Lookup(ctx, compound.Query{
			MZ:         mz[j],
			RT:         rt[j],
			Ionisation: opts.Ionisation,
			PPM:        opts.PPM,
			RTWindow:   opts.RTWindow,
		})
		if err != nil {
			return t, 0, err
		}
		if len(matches) == 0 {
			continue
		}
		rows = append(rows, row{j: j, best: matches[0], matches: len(matches)})
	}
	for _, r := range rows {
		t.Append(names[r.j], mz[r.j], rt[r.j], r.best.Name, r.best.Adduct, round(r.best.PPMError, 3), round(r.best.RTError, 3), r.matches)
	}
	return t, len(rows), nil
}
