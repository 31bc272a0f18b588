package dataset

import (
	"fmt"

	"metaboqc/domain/sop"
)

// Sample metadata column names.
const (
	ColSampleFileName    = "Sample File Name"
	ColSampleBaseName    = "Sample Base Name"
	ColSampleID          = "Sample ID"
	ColSampleType        = "SampleType"
	ColAssayRole         = "AssayRole"
	ColRunOrder          = "Run Order"
	ColAcquiredTime      = "Acquired Time"
	ColBatch             = "Batch"
	ColDilution          = "Dilution"
	ColDetector          = "Detector"
	ColCorrectionBatch   = "Correction Batch"
	ColSkipped           = "Skipped"
	ColMetadataAvailable = "Metadata Available"
	ColExclusionDetails  = "Exclusion Details"
	ColLineWidth         = "Line Width (Hz)"
	ColCalibrationFail   = "CalibrationFail"
	ColLineWidthFail     = "LineWidthFail"
	ColBaselineFail      = "BaselineFail"
	ColWaterPeakFail     = "WaterPeakFail"
	ColSolventPeakFail   = "SolventPeakFail"
	ColTIC               = "TIC"
)

// Feature metadata column names.
const (
	ColFeatureName        = "Feature Name"
	ColMZ                 = "m/z"
	ColRetentionTime      = "Retention Time"
	ColPeakWidth          = "Peak Width"
	ColUnit               = "Unit"
	ColLLOQ               = "LLOQ"
	ColULOQ               = "ULOQ"
	ColQuantificationType = "quantificationType"
	ColCalibrationMethod  = "calibrationMethod"
	ColCompoundName       = "cpdName"
	ColPPM                = "ppm"
	ColPassingSelection   = "Passing Selection"
	ColBelowLLOQ          = "<LLOQ"
	ColAboveULOQ          = ">ULOQ"
)

type requirement struct {
	name string
	kind Kind
}

var sampleRequired = []requirement{
	{ColSampleFileName, KindString},
	{ColSampleID, KindString},
	{ColSampleType, KindString},
	{ColAssayRole, KindString},
	{ColRunOrder, KindFloat},
	{ColAcquiredTime, KindTime},
	{ColBatch, KindFloat},
}

var sampleRequiredByPlatform = map[sop.Platform][]requirement{
	sop.PlatformMS: {
		{ColDilution, KindFloat},
		{ColDetector, KindFloat},
		{ColCorrectionBatch, KindFloat},
	},
	sop.PlatformTargetedMS: {
		{ColDilution, KindFloat},
		{ColCorrectionBatch, KindFloat},
	},
	sop.PlatformNMR: {
		{ColLineWidth, KindFloat},
		{ColCalibrationFail, KindBool},
		{ColBaselineFail, KindBool},
		{ColWaterPeakFail, KindBool},
		{ColSolventPeakFail, KindBool},
	},
}

var featureRequiredByPlatform = map[sop.Platform][]requirement{
	sop.PlatformMS: {
		{ColFeatureName, KindString},
		{ColMZ, KindFloat},
		{ColRetentionTime, KindFloat},
	},
	sop.PlatformTargetedMS: {
		{ColFeatureName, KindString},
		{ColUnit, KindString},
		{ColLLOQ, KindFloat},
		{ColULOQ, KindFloat},
		{ColQuantificationType, KindString},
		{ColCalibrationMethod, KindString},
	},
	sop.PlatformNMR: {
		{ColPPM, KindFloat},
	},
}

// Optional columns whose type is still checked when present.
var optionalTyped = map[string]Kind{
	ColSkipped:           KindBool,
	ColMetadataAvailable: KindBool,
	ColPeakWidth:         KindFloat,
	ColLineWidthFail:     KindBool,
	ColCompoundName:      KindString,
}

// RequiredSampleColumns lists the sample metadata columns a platform needs.
func RequiredSampleColumns(p sop.Platform) []string {
	var names []string
	for _, r := range sampleRequired {
		names = append(names, r.name)
	}
	for _, r := range sampleRequiredByPlatform[p] {
		names = append(names, r.name)
	}
	return names
}

// RequiredFeatureColumns lists the feature metadata columns a platform needs.
func RequiredFeatureColumns(p sop.Platform) []string {
	var names []string
	for _, r := range featureRequiredByPlatform[p] {
		names = append(names, r.name)
	}
	return names
}

// ColumnKind returns the expected storage kind of a known column name.
func ColumnKind(name string) (Kind, bool) {
	for _, r := range sampleRequired {
		if r.name == name {
			return r.kind, true
		}
	}
	for _, reqs := range sampleRequiredByPlatform {
		for _, r := range reqs {
			if r.name == name {
				return r.kind, true
			}
		}
	}
	for _, reqs := range featureRequiredByPlatform {
		for _, r := range reqs {
			if r.name == name {
				return r.kind, true
			}
		}
	}
	k, ok := optionalTyped[name]
	return k, ok
}

// LLOQBatchColumn names the per-batch lower limit column of batch k.
func LLOQBatchColumn(k int) string { return fmt.Sprintf("%s_batch%d", ColLLOQ, k) }

// ULOQBatchColumn names the per-batch upper limit column of batch k.
func ULOQBatchColumn(k int) string { return fmt.Sprintf("%s_batch%d", ColULOQ, k) }
