package dataset

import (
	"fmt"

	"metaboqc/domain/core"
)

// Closed enumerations. Numeric values are stable and persisted; append new
// members at the end only.

// SampleType is the kind of material in a sample.
type SampleType int

const (
	StudySample SampleType = iota
	StudyPool
	ExternalReference
	MethodReference
	ProceduralBlank

	// SampleTypeUnset marks samples whose metadata has not been matched.
	SampleTypeUnset SampleType = -1
)

var sampleTypeNames = []string{"StudySample", "StudyPool", "ExternalReference", "MethodReference", "ProceduralBlank"}

func (t SampleType) String() string { return enumName(sampleTypeNames, int(t)) }

// ParseSampleType parses a canonical SampleType name. An empty string parses
// to SampleTypeUnset.
func ParseSampleType(s string) (SampleType, error) {
	v, err := parseEnum("SampleType", sampleTypeNames, s)
	return SampleType(v), err
}

// AssayRole is the purpose of an injection.
type AssayRole int

const (
	Assay AssayRole = iota
	PrecisionReference
	LinearityReference

	AssayRoleUnset AssayRole = -1
)

var assayRoleNames = []string{"Assay", "PrecisionReference", "LinearityReference"}

func (r AssayRole) String() string { return enumName(assayRoleNames, int(r)) }

// ParseAssayRole parses a canonical AssayRole name.
func ParseAssayRole(s string) (AssayRole, error) {
	v, err := parseEnum("AssayRole", assayRoleNames, s)
	return AssayRole(v), err
}

// QuantificationType describes how a targeted feature is quantified.
type QuantificationType int

const (
	IS QuantificationType = iota
	QuantOwnLabeledAnalogue
	QuantAltLabeledAnalogue
	QuantOther
	Monitored

	QuantificationTypeUnset QuantificationType = -1
)

var quantificationTypeNames = []string{"IS", "QuantOwnLabeledAnalogue", "QuantAltLabeledAnalogue", "QuantOther", "Monitored"}

func (q QuantificationType) String() string { return enumName(quantificationTypeNames, int(q)) }

// ParseQuantificationType parses a canonical QuantificationType name.
func ParseQuantificationType(s string) (QuantificationType, error) {
	v, err := parseEnum("quantificationType", quantificationTypeNames, s)
	return QuantificationType(v), err
}

// CalibrationMethod is the calibration applied to a targeted feature.
type CalibrationMethod int

const (
	NoCalibration CalibrationMethod = iota
	BackcalculatedIS
	OtherCalibration

	CalibrationMethodUnset CalibrationMethod = -1
)

var calibrationMethodNames = []string{"NoCalibration", "BackcalculatedIS", "OtherCalibration"}

func (c CalibrationMethod) String() string { return enumName(calibrationMethodNames, int(c)) }

// ParseCalibrationMethod parses a canonical CalibrationMethod name.
func ParseCalibrationMethod(s string) (CalibrationMethod, error) {
	v, err := parseEnum("calibrationMethod", calibrationMethodNames, s)
	return CalibrationMethod(v), err
}

// VariableType describes the feature axis.
type VariableType int

const (
	Discrete VariableType = iota
	Continuum
	Spectral
)

var variableTypeNames = []string{"Discrete", "Continuum", "Spectral"}

func (v VariableType) String() string { return enumName(variableTypeNames, int(v)) }

// ParseVariableType parses a canonical VariableType name.
func ParseVariableType(s string) (VariableType, error) {
	v, err := parseEnum("VariableType", variableTypeNames, s)
	if err == nil && v < 0 {
		return Discrete, core.NewSchemaError("VariableType", "value is required")
	}
	return VariableType(v), err
}

func enumName(names []string, v int) string {
	if v < 0 {
		return ""
	}
	if v >= len(names) {
		return fmt.Sprintf("Unknown(%d)", v)
	}
	return names[v]
}

func parseEnum(field string, names []string, s string) (int, error) {
	if s == "" {
		return -1, nil
	}
	for i, n := range names {
		if n == s {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: %s %q (want one of %v)", core.ErrBadEnum, field, s, names)
}
