package app

import (
	"fmt"
	"strings"

	"metaboqc/adapters/stats/loq"
	"metaboqc/domain/dataset"
	"metaboqc/domain/report"
)

// BuildTargetedReport lists the merged limits of quantification next to the
// per-batch limits and counts the values outside them.
func BuildTargetedReport(d *dataset.Dataset, r loq.Result) *report.Items {
	it := report.NewItems(report.KindTargeted, d.Name(), d.Platform(), d.SOP().Name)
	it.Fingerprint = d.SOP().Fingerprint()
	cfg := d.SOP().Core.LOQ

	f := d.Features()
	names := d.FeatureNames()
	quant, _ := f.Strings(dataset.ColQuantificationType)

	merged := report.Table{
		Name:    report.TableLOQ,
		Title:   "Merged limits of quantification",
		Columns: []string{"Feature", dataset.ColQuantificationType, dataset.ColLLOQ, dataset.ColULOQ},
	}
	var perBatch [][]float64
	for _, k := range r.Batches {
		for _, col := range []string{dataset.LLOQBatchColumn(k), dataset.ULOQBatchColumn(k)} {
			v, err := f.Floats(col)
			if err != nil {
				continue
			}
			merged.Columns = append(merged.Columns, col)
			perBatch = append(perBatch, v)
		}
	}
	for j, name := range names {
		row := []any{name, quantAt(quant, j), r.LLOQ[j], r.ULOQ[j]}
		for _, v := range perBatch {
			row = append(row, v[j])
		}
		merged.Append(row...)
	}
	it.AddTable(merged)

	counts := report.Table{
		Name:    report.TableLOQCounts,
		Title:   "Values outside the limits",
		Columns: []string{"Feature", dataset.ColBelowLLOQ, dataset.ColAboveULOQ, "Samples"},
	}
	below, above := 0, 0
	for j, name := range names {
		counts.Append(name, r.BelowLLOQ[j], r.AboveULOQ[j], d.NSamples())
		below += r.BelowLLOQ[j]
		above += r.AboveULOQ[j]
	}
	it.AddTable(counts)

	for _, j := range r.Demoted {
		it.Warn("%s demoted to %s: merged LLOQ is not below ULOQ", names[j], dataset.Monitored)
	}
	it.Set("batches", len(r.Batches))
	it.Set("valuesBelowLLOQ", below)
	it.Set("valuesAboveULOQ", above)
	it.Set("featuresDemoted", len(r.Demoted))
	it.Set("valuesCensored", r.Censored)

	var b strings.Builder
	fmt.Fprintf(&b, "Limits of quantification merged across %d batches: the highest LLOQ and the lowest ULOQ are kept.", len(r.Batches))
	if cfg.OnlyLLOQ {
		b.WriteString(" Only the lower limits were merged.")
	}
	fmt.Fprintf(&b, " %d values fall below LLOQ and %d above ULOQ.", below, above)
	if cfg.CensorValues {
		fmt.Fprintf(&b, " %d values outside the limits were censored.", r.Censored)
	}
	it.Narrative = b.String()
	return it
}

func quantAt(quant []string, j int) string {
	if j < len(quant) {
		return quant[j]
	}
	return ""
}
