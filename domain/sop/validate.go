package sop

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"metaboqc/domain/core"
)

var validate = validator.New()

// Validate checks every range constraint on the SOP. The first violation is
// reported as a configuration error naming the offending field.
func (s *SOP) Validate() error {
	if err := validate.Struct(s); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return core.NewConfigurationError(fe.Namespace(), fmt.Sprintf("failed %q constraint (value %v)", fe.Tag(), fe.Value()))
		}
		return core.NewConfigurationError(s.Name, err.Error())
	}

	pca := s.Core.PCA
	if err := checkOpenUnit("core.pca.hotellingsAlpha", pca.HotellingsAlpha); err != nil {
		return err
	}
	if err := checkOpenUnit("core.pca.dModXAlpha", pca.DModXAlpha); err != nil {
		return err
	}
	if err := checkOpenUnit("core.pca.scoresCriticalVal", pca.ScoresCriticalVal); err != nil {
		return err
	}
	if pca.DModXMethod == DModXPercentile && !(pca.DModXPercentile > 0 && pca.DModXPercentile <= 100) {
		return core.NewConfigurationError("core.pca.dModXPercentile", "must lie in (0,100]")
	}

	if w := s.Core.Correction.Window; w != 0 && (w < 3 || w%2 == 0) {
		return core.NewConfigurationError("core.correction.window", fmt.Sprintf("must be odd and >= 3, got %d", w))
	}

	if s.Platform == PlatformNMR {
		if err := s.validateNMR(); err != nil {
			return err
		}
	}
	return nil
}

func (s *SOP) validateNMR() error {
	n := s.Core.NMR
	ranges := map[string]Range{
		"ppmSearchRange": n.PPMSearchRange,
		"LWpeakRange":    n.LWPeakRange,
	}
	for i, r := range n.BaselineCheckRegion {
		ranges[fmt.Sprintf("baselineCheckRegion[%d]", i)] = r
	}
	for i, r := range n.WaterPeakCheckRegion {
		ranges[fmt.Sprintf("waterPeakCheckRegion[%d]", i)] = r
	}
	for i, r := range n.SolventPeakCheckRegion {
		ranges[fmt.Sprintf("solventPeakCheckRegion[%d]", i)] = r
	}
	for name, r := range ranges {
		if r.Low >= r.High {
			return core.NewConfigurationError("core.nmr."+name, fmt.Sprintf("low %.4f must be below high %.4f", r.Low, r.High))
		}
	}
	if !(n.BaselinePercentile > 0) {
		return core.NewConfigurationError("core.nmr.baselinePercentile", "must lie in (0,100]")
	}
	for _, f := range n.ExcludeFailures {
		switch f {
		case "CalibrationFail", "LineWidthFail", "BaselineFail", "WaterPeakFail", "SolventPeakFail":
		default:
			return core.NewConfigurationError("core.nmr.excludeFailures", "unknown check "+strings.TrimSpace(f))
		}
	}
	return nil
}

func checkOpenUnit(field string, v float64) error {
	if !(v > 0 && v < 1) {
		return core.NewConfigurationError(field, fmt.Sprintf("must lie in (0,1), got %v", v))
	}
	return nil
}
