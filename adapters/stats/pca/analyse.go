package pca

import (
	"metaboqc/domain/dataset"
)

// Analysis is the complete multivariate result for one dataset.
type Analysis struct {
	Samples      []string // masked-in sample file names, in row order
	Features     []string // feature names the model was fitted on
	Model        *Model
	Diagnostics  *Diagnostics
	Fields       []Field
	Associations []Association
}

// Analyse fits a model on the masked-in samples and features of d and runs
// the diagnostics and the metadata screen under the dataset's SOP.
func Analyse(d *dataset.Dataset) (*Analysis, error) {
	cfg := d.SOP().Core.PCA
	sub := d.Subset()

	m, err := Fit(sub.Intensity(), Options{NComponents: cfg.NComponents, Scaling: cfg.Scaling})
	if err != nil {
		return nil, err
	}
	diag, err := Diagnose(m, cfg)
	if err != nil {
		return nil, err
	}

	names := sub.FeatureNames()
	features := make([]string, len(m.Columns))
	for i, j := range m.Columns {
		features[i] = names[j]
	}

	fields := Classify(sub.Samples(), sub.SampleTypes(), cfg)
	return &Analysis{
		Samples:      sub.SampleNames(),
		Features:     features,
		Model:        m,
		Diagnostics:  diag,
		Fields:       fields,
		Associations: Associate(m.Scores, sub.Samples(), fields, cfg),
	}, nil
}
