package app

import (
	"fmt"
	"strings"

	"metaboqc/domain/dataset"
	"metaboqc/domain/report"
)

var sampleSummaryColumns = []string{"Sample Type", "Total", "Marked for Exclusion", "Already Excluded", "Missing/Excluded", "Unavailable"}

// BuildSampleSummary counts the samples of every role: those present, those
// currently marked for exclusion, those removed by earlier exclusions and
// those whose metadata is unavailable.
func BuildSampleSummary(d *dataset.Dataset) *report.Items {
	it := report.NewItems(report.KindSampleSummary, d.Name(), d.Platform(), d.SOP().Name)
	it.Fingerprint = d.SOP().Fingerprint()

	roles := d.Roles()
	named := roles.Named()
	available, _ := d.Samples().Bools(dataset.ColMetadataAvailable)

	already := make(map[string]int)
	featuresExcluded := 0
	for _, ex := range d.Excluded() {
		switch ex.Axis {
		case dataset.AxisSamples:
			for _, r := range dataset.TableRoles(ex.Rows) {
				already[r]++
			}
		case dataset.AxisFeatures:
			featuresExcluded += len(ex.Indices)
		}
	}

	summary := report.Table{Name: report.TableSampleSummary, Title: "Sample summary", Columns: sampleSummaryColumns}
	row := func(label string, mask []bool, prior int) {
		present, marked, unavailable := 0, 0, 0
		for i, in := range mask {
			if !in {
				continue
			}
			present++
			if roles.MarkedToExclude[i] {
				marked++
			}
			if available != nil && !available[i] {
				unavailable++
			}
		}
		summary.Append(label, present+prior, marked, prior, marked+prior, unavailable)
	}

	all := make([]bool, d.NSamples())
	priorAll := 0
	for i := range all {
		all[i] = true
	}
	for _, n := range already {
		priorAll += n
	}
	row("All", all, priorAll)
	for _, role := range dataset.RoleOrder {
		if dataset.Count(named[role]) == 0 && already[role] == 0 {
			continue
		}
		row(dataset.RoleDisplayName(role), named[role], already[role])
	}
	it.AddTable(summary)
	it.AddTable(exclusionDetails(d, roles))

	marked := dataset.Count(roles.MarkedToExclude)
	it.Set("samples", d.NSamples()+priorAll)
	it.Set("samplesMarked", marked)
	it.Set("samplesExcluded", priorAll)
	it.Set("features", d.NFeatures()+featuresExcluded)
	it.Set("featuresExcluded", featuresExcluded)

	var b strings.Builder
	fmt.Fprintf(&b, "Dataset **%s** holds %d samples and %d features.", d.Name(), d.NSamples(), d.NFeatures())
	if priorAll > 0 || featuresExcluded > 0 {
		fmt.Fprintf(&b, " %d samples and %d features were excluded earlier.", priorAll, featuresExcluded)
	}
	if marked > 0 {
		fmt.Fprintf(&b, " %d samples are marked for exclusion.", marked)
	}
	it.Narrative = b.String()
	return it
}

// exclusionDetails lists every sample removed by ApplyMasks followed by the
// samples currently marked for exclusion.
func exclusionDetails(d *dataset.Dataset, roles dataset.RoleMasks) report.Table {
	t := report.Table{
		Name:    report.TableExclusions,
		Title:   "Exclusion details",
		Columns: []string{"Sample File Name", "Sample Type", "Status", "Reason"},
	}
	for _, ex := range d.Excluded() {
		if ex.Axis != dataset.AxisSamples {
			continue
		}
		names, _ := ex.Rows.Strings(dataset.ColSampleFileName)
		for i, r := range dataset.TableRoles(ex.Rows) {
			name := ""
			if i < len(names) {
				name = names[i]
			}
			t.Append(name, dataset.RoleDisplayName(r), "Excluded", ex.Reason)
		}
	}

	names := d.SampleNames()
	types, assays := d.SampleTypes(), d.AssayRoles()
	details, derr := d.Samples().Column(dataset.ColExclusionDetails)
	skipped, _ := d.Samples().Bools(dataset.ColSkipped)
	for i, marked := range roles.MarkedToExclude {
		if !marked {
			continue
		}
		reason := ""
		switch {
		case derr == nil && !details.Missing(i):
			reason = details.Text(i)
		case skipped != nil && skipped[i]:
			reason = "Skipped"
		}
		t.Append(names[i], dataset.RoleDisplayName(dataset.RoleOf(types[i], assays[i])), "Marked for Exclusion", reason)
	}
	return t
}
