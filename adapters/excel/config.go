package excel

import (
	"metaboqc/adapters/datareadiness/coercer"
)

// ExcelConfig holds configuration for workbook import and export
type ExcelConfig struct {
	SampleSheet    string                 `json:"sample_sheet"`
	FeatureSheet   string                 `json:"feature_sheet"`
	IntensitySheet string                 `json:"intensity_sheet"`
	CoercionConfig coercer.CoercionConfig `json:"coercion_config"`
}

// DefaultExcelConfig returns the sheet names used by exported workbooks
func DefaultExcelConfig() ExcelConfig {
	return ExcelConfig{
		SampleSheet:    "sampleMetadata",
		FeatureSheet:   "featureMetadata",
		IntensitySheet: "intensityData",
		CoercionConfig: coercer.DefaultCoercionConfig(),
	}
}
