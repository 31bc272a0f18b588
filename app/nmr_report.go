package app

import (
	"fmt"
	"strings"

	"metaboqc/adapters/stats/nmrqc"
	"metaboqc/domain/dataset"
	"metaboqc/domain/report"
)

// BuildNMRReport tabulates the per-spectrum checks and the number of spectra
// failing each one.
func BuildNMRReport(d *dataset.Dataset, r nmrqc.Result) *report.Items {
	cfg := d.SOP().Core.NMR
	pres := d.SOP().Presentation
	it := report.NewItems(report.KindNMR, d.Name(), d.Platform(), d.SOP().Name)
	it.Fingerprint = d.SOP().Fingerprint()

	flags := report.Table{
		Name:    report.TableNMRFlags,
		Title:   "Spectrum checks",
		Columns: append([]string{"Sample File Name", "Sample Type", "Line Width (Hz)", "Estimated", "Calibration offset (ppm)"}, nmrqc.Checks...),
	}
	names := d.SampleNames()
	types, assays := d.SampleTypes(), d.AssayRoles()
	for i := range names {
		row := []any{names[i], dataset.RoleDisplayName(dataset.RoleOf(types[i], assays[i])), r.LineWidth[i], r.Estimated[i], r.CalibrationOffset[i]}
		for _, c := range nmrqc.Checks {
			row = append(row, r.Flags[c][i])
		}
		flags.Append(row...)
	}
	it.AddTable(flags)

	excluded := make(map[string]bool, len(cfg.ExcludeFailures))
	for _, c := range cfg.ExcludeFailures {
		excluded[c] = true
	}
	failures := report.Table{
		Name:    report.TableNMRFailures,
		Title:   "Failures per check",
		Columns: []string{"Check", "Failing spectra", "Excluded on failure"},
	}
	counts := r.Failures()
	total := 0
	for _, c := range nmrqc.Checks {
		failures.Append(c, counts[c], excluded[c])
	}
	for _, f := range r.ExclusionMask(nmrqc.Checks) {
		if !f {
			total++
		}
	}
	it.AddTable(failures)

	axis, axisLabel := sampleAxis(d)
	lw := roleScatter(d, report.FigureLineWidth, "Line width", axisLabel, "Line width (Hz)", axis, r.LineWidth, nil, pres)
	lw.AddShape(report.Shape{Kind: "hline", Label: "fail threshold", Y: cfg.PWFailThreshold})
	it.AddFigure(lw)

	cal := roleScatter(d, report.FigureCalibration, "Calibration offset", axisLabel, "Offset (ppm)", axis, r.CalibrationOffset, nil, pres)
	if cfg.CalibrationTolerance > 0 {
		cal.AddShape(report.Shape{Kind: "hline", Label: "+tolerance", Y: cfg.CalibrationTolerance})
		cal.AddShape(report.Shape{Kind: "hline", Label: "-tolerance", Y: -cfg.CalibrationTolerance})
	}
	it.AddFigure(cal)

	estimated := 0
	for i, e := range r.Estimated {
		if e {
			estimated++
			it.Warn("line width of %s estimated from the spectrum", names[i])
		}
	}
	it.Set("spectra", len(names))
	it.Set("spectraFailing", total)
	it.Set("lineWidthsEstimated", estimated)
	it.Set("lineWidthThreshold", cfg.PWFailThreshold)
	it.Set("calibrateTo", cfg.CalibrateTo)

	var b strings.Builder
	fmt.Fprintf(&b, "%d of %d spectra fail at least one check.", total, len(names))
	if len(cfg.ExcludeFailures) > 0 {
		fmt.Fprintf(&b, " Spectra failing %s are marked for exclusion.", strings.Join(cfg.ExcludeFailures, ", "))
	}
	it.Narrative = b.String()
	return it
}
