// Package selection computes the per-feature QC statistics and composes them
// into the feature-selection predicate that produces the Passing Selection
// mask.
package selection

import (
	"metaboqc/adapters/stats/kernel"
	"metaboqc/adapters/stats/msqc"
	"metaboqc/domain/core"
	"metaboqc/domain/dataset"
	"metaboqc/domain/sop"
)

// Statistics holds every per-feature input to the predicate.
type Statistics struct {
	RSDSP                 []float64
	RSDSS                 []float64
	RSDER                 []float64
	CorrelationToDilution []float64
	Dilution              msqc.DilutionCorrelation
	LRBatches             []msqc.LRBatch
	HasLR                 bool
	BlankPass             []bool
	Artifactual           *kernel.ArtifactualResult
}

// Compute derives the feature statistics from the masked-in samples. The
// artifactual filter only runs when enabled and requires m/z, retention time
// and peak width.
func Compute(d *dataset.Dataset) (Statistics, error) {
	cfg := d.SOP().Core
	roles := d.Roles()
	keep := d.SampleMask()
	x := d.Intensity()

	st := Statistics{
		RSDSP: kernel.RSD(x, dataset.And(roles.SP, keep)),
		RSDSS: kernel.RSD(x, dataset.And(roles.SS, keep)),
		RSDER: kernel.RSD(x, dataset.And(roles.ER, keep)),
	}
	st.BlankPass = kernel.BlankFilter(x, dataset.And(roles.SS, keep), dataset.And(roles.Blank, keep), cfg.BlankThreshold)

	lr := dataset.And(roles.LR, keep)
	st.HasLR = dataset.Any(lr)
	st.CorrelationToDilution = kernel.NaNs(d.NFeatures())
	if st.HasLR {
		dilution, err := d.SampleFloats(dataset.ColDilution)
		if err != nil {
			return Statistics{}, core.NewPreconditionError("correlation to dilution", err.Error())
		}
		runOrder, _ := d.SampleFloats(dataset.ColRunOrder)
		batch, _ := d.SampleFloats(dataset.ColBatch)
		detector, _ := d.SampleFloats(dataset.ColDetector)
		// series follow the physical injection order, so masked LR
		// injections do not split them
		series := msqc.LinearityBatches(runOrder, batch, detector, roles.LR, cfg.DetectorTolerance)
		st.LRBatches = msqc.Restrict(series, keep)
		st.Dilution = msqc.CorrelationToDilution(x, dilution, st.LRBatches, cfg.CorrMethod, nil)
		st.CorrelationToDilution = st.Dilution.Mean
	}

	if cfg.ArtifactualFilter && d.Platform() == sop.PlatformMS {
		mz, err := d.FeatureFloats(dataset.ColMZ)
		if err != nil {
			return Statistics{}, core.NewPreconditionError("artifactual filter", err.Error())
		}
		rt, err := d.FeatureFloats(dataset.ColRetentionTime)
		if err != nil {
			return Statistics{}, core.NewPreconditionError("artifactual filter", err.Error())
		}
		pw, err := d.FeatureFloats(dataset.ColPeakWidth)
		if err != nil {
			return Statistics{}, core.NewPreconditionError("artifactual filter", err.Error())
		}
		res := kernel.ArtifactualFilter(x, mz, rt, pw, dataset.And(roles.SS, keep), kernel.ArtifactualParams{
			DeltaMz:          cfg.DeltaMzArtifactual,
			OverlapThreshold: cfg.OverlapThresholdArtifactual,
			CorrThreshold:    cfg.CorrThresholdArtifactual,
			CorrMethod:       cfg.CorrMethod,
		})
		st.Artifactual = &res
	}
	return st, nil
}
