package report

import (
	"fmt"
)

// Schema describes what a report of one kind must contain.
type Schema struct {
	Kind    Kind
	Title   string
	Tables  []string // required table names
	Figures []string // required figure names
}

// Table and figure names shared between the builders and the renderers.
const (
	TableSampleSummary     = "sampleSummary"
	TableExclusions        = "exclusionDetails"
	TableFeatureSelection  = "featureSelection"
	TableRSDByRole         = "rsdByRole"
	TablePeakWidth         = "peakWidth"
	TableDetectorDrift     = "detectorDrift"
	TableSaturation        = "saturation"
	TableCompounds         = "compoundAnnotations"
	TableNMRFlags          = "nmrFlags"
	TableNMRFailures       = "nmrFailures"
	TableCorrectionRSD     = "correctionRSD"
	TableCorrectionWarn    = "correctionWarnings"
	TableBatchLevels       = "batchLevels"
	TableLOQ               = "mergedLOQ"
	TableLOQCounts         = "loqCounts"
	TableExplainedVariance = "explainedVariance"
	TableOutliers          = "outliers"
	TableFieldClasses      = "metadataClassification"
	TableAssociations      = "metadataAssociation"

	FigureTIC            = "tic"
	FigureRSDHistogram   = "rsdHistogram"
	FigureCorrHistogram  = "correlationHistogram"
	FigureRSDVsCorr      = "rsdVsCorrelation"
	FigureSaturation     = "saturationHeatmap"
	FigureLineWidth      = "lineWidth"
	FigureCalibration    = "calibration"
	FigureCorrectionFits = "correctionFits"
	FigureScores         = "scores"
	FigureDModX          = "dmodx"
	FigureLoadings       = "loadings"
)

// Schemas lists the contents each report kind must carry.
var Schemas = map[Kind]Schema{
	KindSampleSummary: {
		Kind:   KindSampleSummary,
		Title:  "Sample Summary",
		Tables: []string{TableSampleSummary},
	},
	KindFeatureSummary: {
		Kind:    KindFeatureSummary,
		Title:   "Feature Summary",
		Tables:  []string{TableRSDByRole, TableFeatureSelection},
		Figures: []string{FigureTIC, FigureRSDHistogram},
	},
	KindNMR: {
		Kind:    KindNMR,
		Title:   "NMR Quality Control",
		Tables:  []string{TableNMRFlags, TableNMRFailures},
		Figures: []string{FigureLineWidth},
	},
	KindCorrection: {
		Kind:   KindCorrection,
		Title:  "Batch Correction Assessment",
		Tables: []string{TableCorrectionRSD},
	},
	KindTargeted: {
		Kind:   KindTargeted,
		Title:  "Targeted Assay Summary",
		Tables: []string{TableLOQ, TableLOQCounts},
	},
	KindMultivariate: {
		Kind:    KindMultivariate,
		Title:   "Multivariate Report",
		Tables:  []string{TableExplainedVariance, TableOutliers, TableFieldClasses},
		Figures: []string{FigureScores, FigureDModX},
	},
	KindFinal: {
		Kind:  KindFinal,
		Title: "Final Report",
	},
}

// TitleFor returns the display title of a report kind.
func TitleFor(kind Kind) string {
	if s, ok := Schemas[kind]; ok {
		return s.Title
	}
	return string(kind)
}

// ParseKind validates a report kind name.
func ParseKind(s string) (Kind, error) {
	if _, ok := Schemas[Kind(s)]; !ok {
		return "", fmt.Errorf("unknown report kind: %s", s)
	}
	return Kind(s), nil
}

// Validate checks that the dictionary carries everything its schema requires.
func Validate(it *Items) error {
	schema, ok := Schemas[it.Kind]
	if !ok {
		return fmt.Errorf("unknown report kind: %s", it.Kind)
	}
	for _, name := range schema.Tables {
		if _, ok := it.Table(name); !ok {
			return fmt.Errorf("%s report is missing table %s", it.Kind, name)
		}
	}
	for _, name := range schema.Figures {
		if _, ok := it.Figure(name); !ok {
			return fmt.Errorf("%s report is missing figure %s", it.Kind, name)
		}
	}
	return nil
}
