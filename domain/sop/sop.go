// Package sop holds the standard operating procedure for a QC run: the typed
// thresholds consumed by the statistics packages and the presentation
// settings consumed only by the reporting adapters.
package sop

import (
	"metaboqc/domain/core"
)

// Platform identifies the acquisition technology of a dataset.
type Platform string

const (
	PlatformMS         Platform = "MS"
	PlatformTargetedMS Platform = "TargetedMS"
	PlatformNMR        Platform = "NMR"
)

// Correlation methods accepted by CorrMethod.
const (
	CorrPearson  = "pearson"
	CorrSpearman = "spearman"
)

// DModX critical value methods.
const (
	DModXF          = "F"
	DModXPercentile = "percentile"
)

// SOP is the complete configuration for one dataset.
type SOP struct {
	Name         string       `yaml:"name" validate:"required"`
	Base         string       `yaml:"base,omitempty"`
	Platform     Platform     `yaml:"platform" validate:"oneof=MS TargetedMS NMR"`
	Core         Core         `yaml:"core"`
	Presentation Presentation `yaml:"presentation"`
}

// Range is a closed interval on the chemical-shift axis (ppm) or any other
// ordered axis.
type Range struct {
	Low  float64 `yaml:"low"`
	High float64 `yaml:"high"`
}

// Contains reports whether v lies inside the range.
func (r Range) Contains(v float64) bool {
	return v >= r.Low && v <= r.High
}

// Core holds every threshold the statistics packages read.
type Core struct {
	CorrMethod     string  `yaml:"corrMethod" validate:"oneof=pearson spearman"`
	CorrThreshold  float64 `yaml:"corrThreshold" validate:"gte=-1,lte=1"`
	RSDThreshold   float64 `yaml:"rsdThreshold" validate:"gt=0"`
	VarianceRatio  float64 `yaml:"varianceRatio" validate:"gt=0"`
	BlankThreshold float64 `yaml:"blankThreshold" validate:"gte=0"`

	ArtifactualFilter           bool    `yaml:"artifactualFilter"`
	DeltaMzArtifactual          float64 `yaml:"deltaMzArtifactual" validate:"gt=0"`
	OverlapThresholdArtifactual float64 `yaml:"overlapThresholdArtifactual" validate:"gte=0,lte=100"`
	CorrThresholdArtifactual    float64 `yaml:"corrThresholdArtifactual" validate:"gte=-1,lte=1"`

	// DetectorTolerance splits a linearity-reference series when the detector
	// voltage moves by more than this many volts.
	DetectorTolerance float64 `yaml:"detectorTolerance" validate:"gte=0"`

	Gates      Gates      `yaml:"gates"`
	NMR        NMRChecks  `yaml:"nmr"`
	Correction Correction `yaml:"correction"`
	LOQ        LOQ        `yaml:"loq"`
	PCA        PCA        `yaml:"pca"`
}

// Gates switches each feature-selection gate on or off.
type Gates struct {
	Correlation   bool `yaml:"correlation"`
	RSD           bool `yaml:"rsd"`
	VarianceRatio bool `yaml:"varianceRatio"`
	Blank         bool `yaml:"blank"`
}

// NMRChecks configures the per-spectrum quality checks.
type NMRChecks struct {
	PPMSearchRange         Range    `yaml:"ppmSearchRange"`
	CalibrateTo            float64  `yaml:"calibrateTo"`
	CalibrationTolerance   float64  `yaml:"calibrationTolerance" validate:"gte=0"`
	PWFailThreshold        float64  `yaml:"PWFailThreshold" validate:"gte=0"`
	LWPeakRange            Range    `yaml:"LWpeakRange"`
	SpectrometerFrequency  float64  `yaml:"spectrometerFrequency" validate:"gte=0"`
	BaselineCheckRegion    []Range  `yaml:"baselineCheckRegion" validate:"max=2"`
	WaterPeakCheckRegion   []Range  `yaml:"waterPeakCheckRegion" validate:"max=2"`
	SolventPeakCheckRegion []Range  `yaml:"solventPeakCheckRegion"`
	BaselinePercentile     float64  `yaml:"baselinePercentile" validate:"gte=0,lte=100"`
	BaselineFailFraction   float64  `yaml:"baselineFailFraction" validate:"gte=0,lte=1"`
	ExcludeFailures        []string `yaml:"excludeFailures"`
}

// Correction configures run-order and batch correction.
type Correction struct {
	Window           int `yaml:"window" validate:"gte=0"`
	RobustIterations int `yaml:"robustIterations" validate:"gte=0,lte=10"`
	Workers          int `yaml:"workers" validate:"gte=0,lte=256"`
}

// LOQ configures the targeted multi-batch limit merge.
type LOQ struct {
	OnlyLLOQ     bool `yaml:"onlyLLOQ"`
	CensorValues bool `yaml:"censorValues"`
}

// PCA configures the multivariate diagnostics.
type PCA struct {
	NComponents          int      `yaml:"nComponents" validate:"gte=1"`
	Scaling              float64  `yaml:"scaling" validate:"gte=0,lte=1"`
	HotellingsAlpha      float64  `yaml:"hotellingsAlpha"`
	DModXMethod          string   `yaml:"dModXMethod" validate:"oneof=F percentile"`
	DModXAlpha           float64  `yaml:"dModXAlpha"`
	DModXPercentile      float64  `yaml:"dModXPercentile"`
	ScoresCriticalVal    float64  `yaml:"scoresCriticalVal"`
	RThreshold           float64  `yaml:"rThreshold" validate:"gte=0,lte=1"`
	KWThreshold          float64  `yaml:"kwThreshold" validate:"gte=0,lte=1"`
	MaxCategoricalLevels int      `yaml:"maxCategoricalLevels" validate:"gte=2"`
	ExcludedFields       []string `yaml:"excludedFields"`
}

// Presentation holds settings used only when rendering reports.
type Presentation struct {
	FigureFormat string            `yaml:"figureFormat" validate:"oneof=png svg json"`
	DPI          int               `yaml:"dpi" validate:"gt=0"`
	FigureWidth  float64           `yaml:"figureWidth" validate:"gt=0"`
	FigureHeight float64           `yaml:"figureHeight" validate:"gt=0"`
	HistBins     int               `yaml:"histBins" validate:"gt=0"`
	Interactive  bool              `yaml:"interactive"`
	Palette      map[string]string `yaml:"palette"`
	MaxTableRows int               `yaml:"maxTableRows" validate:"gte=0"`
}

// Colour returns the palette entry for a role, falling back to grey.
func (p Presentation) Colour(role string) string {
	if c, ok := p.Palette[role]; ok {
		return c
	}
	return "#808080"
}

// Fingerprint returns a hash of the settings that influence statistics, so a
// report records which thresholds produced it.
func (s *SOP) Fingerprint() core.Hash {
	var f core.Fingerprint
	f.AddStrings(s.Name, string(s.Platform), s.Core.CorrMethod)
	f.AddFloats([]float64{
		s.Core.CorrThreshold, s.Core.RSDThreshold, s.Core.VarianceRatio, s.Core.BlankThreshold,
		s.Core.DeltaMzArtifactual, s.Core.OverlapThresholdArtifactual, s.Core.CorrThresholdArtifactual,
		float64(s.Core.Correction.Window), float64(s.Core.PCA.NComponents), s.Core.PCA.Scaling,
		s.Core.PCA.HotellingsAlpha, s.Core.PCA.DModXAlpha, s.Core.PCA.ScoresCriticalVal,
	})
	return f.Sum()
}
