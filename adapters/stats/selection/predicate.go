package selection

import (
	"fmt"

	"metaboqc/adapters/stats/kernel"
	"metaboqc/domain/dataset"
	"metaboqc/domain/sop"
)

// Gate names in evaluation order.
const (
	GateCorrelation   = "Correlation to dilution"
	GateRSD           = "RSD"
	GateVarianceRatio = "Variance ratio"
	GateBlank         = "Blank"
	GateArtifactual   = "Artifactual"
	GateExcluded      = "Excluded"
)

// Gates lists the gate names in evaluation order.
var Gates = []string{GateCorrelation, GateRSD, GateVarianceRatio, GateBlank, GateArtifactual, GateExcluded}

// Outcome is the result of the predicate.
type Outcome struct {
	Pass []bool
	// Failed holds, per gate, which features that gate rejected. Gates that
	// were not applied are absent.
	Failed map[string][]bool
}

// Passing returns the number of passing features.
func (o Outcome) Passing() int { return dataset.Count(o.Pass) }

// FailCounts returns the number of features each applied gate rejected.
func (o Outcome) FailCounts() map[string]int {
	out := make(map[string]int, len(o.Failed))
	for k, v := range o.Failed {
		out[k] = dataset.Count(v)
	}
	return out
}

// Predicate decides which features pass. A feature passes when every enabled
// gate accepts it and featureMask keeps it. Non-finite statistics fail the
// gate that reads them; the correlation gate is skipped when no
// linearity-reference samples exist.
func Predicate(st Statistics, featureMask []bool, cfg sop.Core) Outcome {
	n := len(featureMask)
	out := Outcome{Pass: make([]bool, n), Failed: make(map[string][]bool)}
	for j := range out.Pass {
		out.Pass[j] = true
	}
	apply := func(gate string, ok func(j int) bool) {
		failed := make([]bool, n)
		for j := 0; j < n; j++ {
			if !ok(j) {
				failed[j] = true
				out.Pass[j] = false
			}
		}
		out.Failed[gate] = failed
	}

	if cfg.Gates.Correlation && st.HasLR {
		apply(GateCorrelation, func(j int) bool {
			return st.CorrelationToDilution[j] >= cfg.CorrThreshold
		})
	}
	if cfg.Gates.RSD {
		apply(GateRSD, func(j int) bool {
			return kernel.IsFinite(st.RSDSP[j]) && st.RSDSP[j] <= cfg.RSDThreshold
		})
	}
	if cfg.Gates.VarianceRatio {
		apply(GateVarianceRatio, func(j int) bool {
			return kernel.IsFinite(st.RSDSP[j]) && kernel.IsFinite(st.RSDSS[j]) &&
				st.RSDSP[j]*cfg.VarianceRatio <= st.RSDSS[j]
		})
	}
	if cfg.Gates.Blank && st.BlankPass != nil {
		apply(GateBlank, func(j int) bool { return st.BlankPass[j] })
	}
	if cfg.ArtifactualFilter && st.Artifactual != nil {
		apply(GateArtifactual, func(j int) bool { return st.Artifactual.Pass[j] })
	}
	apply(GateExcluded, func(j int) bool { return featureMask[j] })
	return out
}

// Select computes the statistics, runs the predicate and returns a dataset
// whose feature mask is the predicate result and whose feature metadata
// carries the Passing Selection column.
func Select(d *dataset.Dataset) (*dataset.Dataset, Statistics, Outcome, error) {
	st, err := Compute(d)
	if err != nil {
		return nil, Statistics{}, Outcome{}, err
	}
	out := Predicate(st, d.FeatureMask(), d.SOP().Core)
	next, err := d.WithFeatureColumn(dataset.BoolColumn(dataset.ColPassingSelection, out.Pass))
	if err != nil {
		return nil, Statistics{}, Outcome{}, fmt.Errorf("write selection: %w", err)
	}
	next, err = next.WithMasks(nil, out.Pass)
	if err != nil {
		return nil, Statistics{}, Outcome{}, err
	}
	return next, st, out, nil
}
