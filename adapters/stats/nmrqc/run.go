package nmrqc

import (
	"fmt"

	"metaboqc/adapters/stats/kernel"
	"metaboqc/domain/core"
	"metaboqc/domain/dataset"
	"metaboqc/domain/sop"
)

// Check names, matching the sample metadata flag columns.
const (
	CheckCalibration = dataset.ColCalibrationFail
	CheckLineWidth   = dataset.ColLineWidthFail
	CheckBaseline    = dataset.ColBaselineFail
	CheckWaterPeak   = dataset.ColWaterPeakFail
	CheckSolventPeak = dataset.ColSolventPeakFail
)

// Checks lists the flag columns in reporting order.
var Checks = []string{CheckCalibration, CheckLineWidth, CheckBaseline, CheckWaterPeak, CheckSolventPeak}

// Result holds every per-spectrum check.
type Result struct {
	CalibrationOffset []float64
	LineWidth         []float64
	Estimated         []bool // line width derived from the spectrum
	Flags             map[string][]bool
	Baseline          RegionResult
	WaterPeak         RegionResult
	SolventPeak       RegionResult
}

// Failures returns, per check, the number of failing spectra.
func (r Result) Failures() map[string]int {
	out := make(map[string]int, len(r.Flags))
	for k, v := range r.Flags {
		out[k] = dataset.Count(v)
	}
	return out
}

// ExclusionMask returns a sample mask that is false for spectra failing any
// of the named checks.
func (r Result) ExclusionMask(checks []string) []bool {
	n := len(r.LineWidth)
	keep := make([]bool, n)
	for i := range keep {
		keep[i] = true
	}
	for _, c := range checks {
		for i, f := range r.Flags[c] {
			if f {
				keep[i] = false
			}
		}
	}
	return keep
}

// Run computes every check and returns a dataset whose sample metadata carries
// the flag columns and, where the imported value was missing, an estimated
// line width.
func Run(d *dataset.Dataset, cfg sop.NMRChecks) (*dataset.Dataset, Result, error) {
	if d.Platform() != sop.PlatformNMR {
		return nil, Result{}, fmt.Errorf("%w: NMR checks on %s data", core.ErrWrongPlatform, d.Platform())
	}
	ppm, err := d.FeatureFloats(dataset.ColPPM)
	if err != nil {
		return nil, Result{}, err
	}
	lw, err := d.SampleFloats(dataset.ColLineWidth)
	if err != nil {
		return nil, Result{}, err
	}
	x := d.Intensity()

	res := Result{Flags: make(map[string][]bool), Estimated: make([]bool, len(lw))}
	estimates := EstimateLineWidth(x, ppm, cfg.LWPeakRange, cfg.SpectrometerFrequency)
	var warnings []dataset.Warning
	for i, w := range lw {
		if kernel.IsFinite(w) {
			continue
		}
		lw[i] = estimates[i]
		res.Estimated[i] = kernel.IsFinite(estimates[i])
		if res.Estimated[i] {
			warnings = append(warnings, dataset.Warning{
				Kind:    dataset.WarnLineWidthEstimated,
				Feature: -1,
				Name:    d.SampleNames()[i],
				Message: fmt.Sprintf("line width estimated from spectrum as %.3f Hz", estimates[i]),
			})
		}
	}
	res.LineWidth = lw

	res.CalibrationOffset, res.Flags[CheckCalibration] = Calibration(x, ppm, cfg.PPMSearchRange, cfg.CalibrateTo, cfg.CalibrationTolerance)
	res.Flags[CheckLineWidth] = LineWidth(lw, cfg.PWFailThreshold)
	res.Baseline = RegionCheck(x, ppm, cfg.BaselineCheckRegion, cfg.BaselinePercentile, cfg.BaselineFailFraction)
	res.WaterPeak = RegionCheck(x, ppm, cfg.WaterPeakCheckRegion, cfg.BaselinePercentile, cfg.BaselineFailFraction)
	res.SolventPeak = RegionCheck(x, ppm, cfg.SolventPeakCheckRegion, cfg.BaselinePercentile, cfg.BaselineFailFraction)
	res.Flags[CheckBaseline] = res.Baseline.Fail
	res.Flags[CheckWaterPeak] = res.WaterPeak.Fail
	res.Flags[CheckSolventPeak] = res.SolventPeak.Fail

	out, err := d.WithSampleColumn(dataset.FloatColumn(dataset.ColLineWidth, lw))
	if err != nil {
		return nil, Result{}, err
	}
	for _, c := range Checks {
		if out, err = out.WithSampleColumn(dataset.BoolColumn(c, res.Flags[c])); err != nil {
			return nil, Result{}, err
		}
	}
	return out.WithWarnings(warnings...), res, nil
}
