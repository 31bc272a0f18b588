package app

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/mat"

	"metaboqc/adapters/stats/pca"
	"metaboqc/domain/dataset"
	"metaboqc/domain/report"
)

// BuildMultivariateReport reports the PCA model fitted on the masked-in data
// of d: explained variance, scores with the Hotelling's T² ellipse, DModX,
// the outlier lists and the metadata screen.
func BuildMultivariateReport(d *dataset.Dataset, a *pca.Analysis) *report.Items {
	cfg := d.SOP().Core.PCA
	pres := d.SOP().Presentation
	it := report.NewItems(report.KindMultivariate, d.Name(), d.Platform(), d.SOP().Name)
	it.Fingerprint = d.SOP().Fingerprint()

	m, diag := a.Model, a.Diagnostics
	k := m.NComponents()

	variance := report.Table{
		Name:    report.TableExplainedVariance,
		Title:   "Explained variance",
		Columns: []string{"Component", "Variance", "Explained (%)", "Cumulative (%)"},
	}
	cum := 0.0
	for c := 0; c < k; c++ {
		cum += m.ExplainedRatio[c]
		variance.Append(componentName(c), m.Variance[c], round(100*m.ExplainedRatio[c], 2), round(100*cum, 2))
	}
	it.AddTable(variance)

	strong := make(map[int]bool, len(diag.StrongOutliers))
	for _, i := range diag.StrongOutliers {
		strong[i] = true
	}
	moderate := make(map[int]bool, len(diag.ModerateOutliers))
	for _, i := range diag.ModerateOutliers {
		moderate[i] = true
	}
	outliers := report.Table{
		Name:    report.TableOutliers,
		Title:   "Outlying samples",
		Columns: []string{"Sample File Name", "T2", "DModX", "Score distance", "Strong", "Moderate"},
	}
	for i, name := range a.Samples {
		if !strong[i] && !moderate[i] {
			continue
		}
		outliers.Append(name, diag.T2[i], diag.DModX[i], diag.ScoreDistance[i], strong[i], moderate[i])
	}
	it.AddTable(outliers)

	classes := report.Table{
		Name:    report.TableFieldClasses,
		Title:   "Metadata classification",
		Columns: []string{"Field", "Class", "Levels", "Tested"},
	}
	for _, f := range a.Fields {
		classes.Append(f.Name, string(f.Class), f.Levels, f.Class.Tested())
	}
	it.AddTable(classes)

	assoc := report.Table{
		Name:    report.TableAssociations,
		Title:   "Association of components with metadata",
		Columns: []string{"Field", "Class", "Component", "Test", "Statistic", "p-value", "N", "Groups", "Significant"},
	}
	for _, r := range a.Associations {
		assoc.Append(r.Field, string(r.Class), componentName(r.Component), r.Test, r.Statistic, r.PValue, r.N, r.Groups, r.Significant)
	}
	it.AddTable(assoc)

	sub := d.Subset()
	scores := m.Scores
	x, y := mat.Col(nil, 0, scores), make([]float64, len(a.Samples))
	xLabel, yLabel := componentLabel(m, 0), "Sample"
	if k >= 2 {
		y, yLabel = mat.Col(nil, 1, scores), componentLabel(m, 1)
	} else {
		for i := range y {
			y[i] = float64(i + 1)
		}
	}
	sf := roleScatter(sub, report.FigureScores, "Scores", xLabel, yLabel, x, y, nil, pres)
	if diag.HasEllipse {
		sf.AddShape(report.Shape{
			Kind:   "ellipse",
			Label:  fmt.Sprintf("Hotelling's T2 (%g)", 1-diag.Ellipse.Alpha),
			Width:  diag.Ellipse.SemiAxisX,
			Height: diag.Ellipse.SemiAxisY,
		})
	}
	it.AddFigure(sf)

	axis, axisLabel := sampleAxis(sub)
	df := roleScatter(sub, report.FigureDModX, "Distance to model", axisLabel, "DModX", axis, diag.DModX, nil, pres)
	df.AddShape(report.Shape{Kind: "hline", Label: "critical value", Y: diag.DModXCritical})
	it.AddFigure(df)

	if k >= 2 {
		lf := report.Figure{
			Name:   report.FigureLoadings,
			Kind:   report.FigureScatter,
			Title:  "Loadings",
			XLabel: componentLabel(m, 0),
			YLabel: componentLabel(m, 1),
			Series: []report.Series{{
				Name:   "Features",
				X:      mat.Col(nil, 0, m.Loadings),
				Y:      mat.Col(nil, 1, m.Loadings),
				Labels: a.Features,
			}},
		}
		it.AddFigure(lf)
	}

	it.Set("components", k)
	it.Set("samples", len(a.Samples))
	it.Set("features", len(a.Features))
	it.Set("t2Critical", diag.T2Critical)
	it.Set("dModXCritical", diag.DModXCritical)
	it.Set("dModXMethod", cfg.DModXMethod)
	it.Set("scoreCritical", diag.ScoreCritical)
	it.Set("strongOutliers", len(diag.StrongOutliers))
	it.Set("moderateOutliers", len(diag.ModerateOutliers))

	significant := pca.SignificantFields(a.Associations)
	var b strings.Builder
	fmt.Fprintf(&b, "PCA with %d components explains %.1f%% of the variance in %d samples and %d features.",
		k, 100*cum, len(a.Samples), len(a.Features))
	fmt.Fprintf(&b, " %d samples are strong outliers and %d have a DModX above the critical value.",
		len(diag.StrongOutliers), len(diag.ModerateOutliers))
	if len(significant) > 0 {
		fmt.Fprintf(&b, "\n\nMetadata associated with the scores: %s.", strings.Join(significant, ", "))
	}
	it.Narrative = b.String()
	return it
}

func componentName(c int) string {
	return fmt.Sprintf("PC%d", c+1)
}

func componentLabel(m *pca.Model, c int) string {
	return fmt.Sprintf("%s (%.1f%%)", componentName(c), 100*m.ExplainedRatio[c])
}
