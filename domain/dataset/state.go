package dataset

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"metaboqc/domain/core"
)

// CorrectionState is the batch-correction lifecycle of a dataset.
type CorrectionState int

const (
	Uncorrected CorrectionState = iota
	Corrected
	CorrectionFailed
)

func (s CorrectionState) String() string {
	switch s {
	case Uncorrected:
		return "uncorrected"
	case Corrected:
		return "corrected"
	case CorrectionFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Correction describes the batch correction applied to a dataset. Fit holds
// the correction curve evaluated at every sample and feature; ReferenceLevels
// holds, per feature, the global reference level R.
type Correction struct {
	State           CorrectionState
	Window          int
	Fit             *mat.Dense
	ReferenceLevels []float64
	Reason          string
}

// WarningKind classifies numerical warnings.
type WarningKind string

const (
	WarnCorrectionReverted WarningKind = "correction_reverted"
	WarnLineWidthEstimated WarningKind = "line_width_estimated"
	WarnDegenerate         WarningKind = "degenerate"
)

// Warning is a non-fatal numerical event recorded for reporting.
type Warning struct {
	Kind    WarningKind
	Feature int
	Name    string
	Message string
}

func (w Warning) String() string {
	if w.Name != "" {
		return fmt.Sprintf("%s: %s: %s", w.Kind, w.Name, w.Message)
	}
	return fmt.Sprintf("%s: %s", w.Kind, w.Message)
}

// WithCorrection returns a corrected dataset carrying the new intensities and
// the fit that produced them. Only an uncorrected dataset can be corrected.
func (d *Dataset) WithCorrection(corrected, fit *mat.Dense, reference []float64, window int, warnings []Warning) (*Dataset, error) {
	if d.correction.State != Uncorrected {
		return nil, fmt.Errorf("%w: dataset is %s", core.ErrInvalidTransition, d.correction.State)
	}
	out, err := d.WithIntensity(corrected)
	if err != nil {
		return nil, err
	}
	if r, c := fit.Dims(); r != d.NSamples() || c != d.NFeatures() {
		return nil, fmt.Errorf("%w: fit is %dx%d, dataset is %dx%d", core.ErrShapeMismatch, r, c, d.NSamples(), d.NFeatures())
	}
	if reference != nil && len(reference) != d.NFeatures() {
		return nil, fmt.Errorf("%w: %d reference levels for %d features", core.ErrShapeMismatch, len(reference), d.NFeatures())
	}
	out.correction = Correction{
		State:           Corrected,
		Window:          window,
		Fit:             mat.DenseCopyOf(fit),
		ReferenceLevels: append([]float64(nil), reference...),
	}
	out.warnings = append(out.warnings, warnings...)
	return out, nil
}

// take realigns the stored fit and reference levels to the kept samples and
// features.
func (c Correction) take(rows, cols []int) Correction {
	if c.Fit != nil {
		c.Fit = takeDense(c.Fit, rows, cols, false)
	}
	if c.ReferenceLevels != nil {
		ref := make([]float64, len(cols))
		for j, k := range cols {
			ref[j] = c.ReferenceLevels[k]
		}
		c.ReferenceLevels = ref
	}
	return c
}

// WithCorrectionFailed returns a copy marked as failed with unchanged
// intensities. Only an uncorrected dataset can fail correction.
func (d *Dataset) WithCorrectionFailed(reason string) (*Dataset, error) {
	if d.correction.State != Uncorrected {
		return nil, fmt.Errorf("%w: dataset is %s", core.ErrInvalidTransition, d.correction.State)
	}
	out := d.clone()
	out.correction = Correction{State: CorrectionFailed, Reason: reason}
	return out, nil
}
