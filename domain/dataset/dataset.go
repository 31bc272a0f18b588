// Package dataset models a metabolic-profiling dataset: an intensity matrix
// aligned with sample and feature metadata tables, the masks selecting which
// rows to keep, and the append-only history of rows already removed.
//
// A Dataset is immutable. Every operation that changes content returns a new
// Dataset and leaves the receiver untouched, so a Dataset may be shared
// between goroutines without locking.
package dataset

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"metaboqc/domain/core"
	"metaboqc/domain/sop"
)

// Spec carries the raw tables used to construct a Dataset.
type Spec struct {
	Name         string
	Platform     sop.Platform
	VariableType VariableType
	Intensity    *mat.Dense
	Samples      Table
	Features     Table
	SOP          *sop.SOP
}

// Dataset is the immutable samples x features dataset.
type Dataset struct {
	id           core.DatasetID
	name         string
	platform     sop.Platform
	variableType VariableType
	x            *mat.Dense
	samples      Table
	features     Table
	sampleMask   []bool
	featureMask  []bool
	excluded     []Exclusion
	warnings     []Warning
	correction   Correction
	sop          *sop.SOP
}

// New validates the tables against the platform schema and returns a dataset
// with all-true masks.
func New(spec Spec) (*Dataset, error) {
	switch spec.Platform {
	case sop.PlatformMS, sop.PlatformTargetedMS, sop.PlatformNMR:
	default:
		return nil, core.NewSchemaError("platform", fmt.Sprintf("unknown platform %q", spec.Platform))
	}
	if spec.SOP == nil {
		s, err := sop.ForPlatform(spec.Platform)
		if err != nil {
			return nil, err
		}
		spec.SOP = s
	}

	ns, nf := spec.Samples.Rows(), spec.Features.Rows()
	x := spec.Intensity
	if x == nil {
		if ns*nf != 0 {
			return nil, fmt.Errorf("%w: intensity matrix missing for %d samples x %d features", core.ErrShapeMismatch, ns, nf)
		}
	} else if r, c := x.Dims(); r != ns || c != nf {
		return nil, fmt.Errorf("%w: intensity is %dx%d, metadata describes %dx%d", core.ErrShapeMismatch, r, c, ns, nf)
	}

	if err := checkColumns("sample metadata", spec.Samples, append(append([]requirement{}, sampleRequired...), sampleRequiredByPlatform[spec.Platform]...)); err != nil {
		return nil, err
	}
	if err := checkColumns("feature metadata", spec.Features, featureRequiredByPlatform[spec.Platform]); err != nil {
		return nil, err
	}
	if err := checkSampleValues(spec.Samples); err != nil {
		return nil, err
	}
	if spec.Platform == sop.PlatformTargetedMS {
		if err := checkTargetedValues(spec.Features); err != nil {
			return nil, err
		}
	}

	d := &Dataset{
		id:           core.NewDatasetID(),
		name:         spec.Name,
		platform:     spec.Platform,
		variableType: spec.VariableType,
		samples:      spec.Samples,
		features:     spec.Features,
		sampleMask:   allTrue(ns),
		featureMask:  allTrue(nf),
		sop:          spec.SOP,
	}
	if x != nil {
		d.x = mat.DenseCopyOf(x)
	}
	return d, nil
}

func checkColumns(table string, t Table, reqs []requirement) error {
	for _, r := range reqs {
		c, err := t.Column(r.name)
		if err != nil {
			return core.NewMissingColumnError(table, r.name)
		}
		if c.Kind != r.kind {
			return core.NewSchemaError(r.name, fmt.Sprintf("expected %s column, found %s", r.kind, c.Kind))
		}
	}
	for name, kind := range optionalTyped {
		if c, err := t.Column(name); err == nil && c.Kind != kind {
			return core.NewSchemaError(name, fmt.Sprintf("expected %s column, found %s", kind, c.Kind))
		}
	}
	return nil
}

func checkSampleValues(s Table) error {
	names, _ := s.Strings(ColSampleFileName)
	seen := make(map[string]int, len(names))
	for i, n := range names {
		if n == "" {
			return core.NewSchemaError(ColSampleFileName, fmt.Sprintf("row %d is empty", i))
		}
		if j, dup := seen[n]; dup {
			return core.NewSchemaError(ColSampleFileName, fmt.Sprintf("%q repeated in rows %d and %d", n, j, i))
		}
		seen[n] = i
	}

	types, _ := s.Strings(ColSampleType)
	for _, v := range types {
		if _, err := ParseSampleType(v); err != nil {
			return err
		}
	}
	roles, _ := s.Strings(ColAssayRole)
	for _, v := range roles {
		if _, err := ParseAssayRole(v); err != nil {
			return err
		}
	}

	runOrder, _ := s.Floats(ColRunOrder)
	for i, v := range runOrder {
		if math.IsNaN(v) {
			continue
		}
		if v < 1 || v != math.Trunc(v) {
			return core.NewSchemaError(ColRunOrder, fmt.Sprintf("row %d: %v is not an integer >= 1", i, v))
		}
	}
	batch, _ := s.Floats(ColBatch)
	for i, v := range batch {
		if math.IsNaN(v) {
			continue
		}
		if v < 1 || v != math.Trunc(v) {
			return core.NewSchemaError(ColBatch, fmt.Sprintf("row %d: %v is not an integer >= 1", i, v))
		}
	}
	return nil
}

func checkTargetedValues(f Table) error {
	q, _ := f.Strings(ColQuantificationType)
	for _, v := range q {
		if _, err := ParseQuantificationType(v); err != nil {
			return err
		}
	}
	c, _ := f.Strings(ColCalibrationMethod)
	for _, v := range c {
		if _, err := ParseCalibrationMethod(v); err != nil {
			return err
		}
	}
	return nil
}

func allTrue(n int) []bool {
	m := make([]bool, n)
	for i := range m {
		m[i] = true
	}
	return m
}

// ID returns the dataset identifier. Derived datasets keep the identifier of
// the dataset they were derived from.
func (d *Dataset) ID() core.DatasetID { return d.id }

// Name returns the dataset name.
func (d *Dataset) Name() string { return d.name }

// Platform returns the acquisition platform.
func (d *Dataset) Platform() sop.Platform { return d.platform }

// VariableType returns the kind of feature axis.
func (d *Dataset) VariableType() VariableType { return d.variableType }

// SOP returns the configuration attached to the dataset. Callers must treat
// it as read-only.
func (d *Dataset) SOP() *sop.SOP { return d.sop }

// NSamples returns the number of sample rows.
func (d *Dataset) NSamples() int { return d.samples.Rows() }

// NFeatures returns the number of feature columns.
func (d *Dataset) NFeatures() int { return d.features.Rows() }

// Intensity returns the intensity matrix. The matrix is read-only; use
// WithIntensity to derive a dataset with new values.
func (d *Dataset) Intensity() mat.Matrix {
	if d.x == nil {
		return &mat.Dense{}
	}
	return d.x
}

// IntensityCopy returns a mutable copy of the intensity matrix, nil for an
// empty dataset.
func (d *Dataset) IntensityCopy() *mat.Dense {
	if d.x == nil {
		return nil
	}
	return mat.DenseCopyOf(d.x)
}

// Samples returns the sample metadata table.
func (d *Dataset) Samples() Table { return d.samples }

// Features returns the feature metadata table.
func (d *Dataset) Features() Table { return d.features }

// SampleMask returns a copy of the sample mask.
func (d *Dataset) SampleMask() []bool { return append([]bool(nil), d.sampleMask...) }

// FeatureMask returns a copy of the feature mask.
func (d *Dataset) FeatureMask() []bool { return append([]bool(nil), d.featureMask...) }

// Excluded returns the history of removed rows, oldest first.
func (d *Dataset) Excluded() []Exclusion { return append([]Exclusion(nil), d.excluded...) }

// Warnings returns the numerical warnings recorded on the dataset.
func (d *Dataset) Warnings() []Warning { return append([]Warning(nil), d.warnings...) }

// Correction returns the batch-correction state.
func (d *Dataset) Correction() Correction { return d.correction }

// SampleNames returns the Sample File Name column.
func (d *Dataset) SampleNames() []string {
	v, _ := d.samples.Strings(ColSampleFileName)
	return v
}

// FeatureNames returns display names for the features: Feature Name when
// present, ppm for spectra, otherwise the column index.
func (d *Dataset) FeatureNames() []string {
	if v, err := d.features.Strings(ColFeatureName); err == nil {
		return v
	}
	names := make([]string, d.NFeatures())
	if ppm, err := d.features.Floats(ColPPM); err == nil {
		for i, p := range ppm {
			names[i] = fmt.Sprintf("%.4f", p)
		}
		return names
	}
	for i := range names {
		names[i] = fmt.Sprintf("feature_%d", i)
	}
	return names
}

// SampleTypes parses the SampleType column.
func (d *Dataset) SampleTypes() []SampleType {
	raw, _ := d.samples.Strings(ColSampleType)
	out := make([]SampleType, len(raw))
	for i, v := range raw {
		out[i], _ = ParseSampleType(v)
	}
	return out
}

// AssayRoles parses the AssayRole column.
func (d *Dataset) AssayRoles() []AssayRole {
	raw, _ := d.samples.Strings(ColAssayRole)
	out := make([]AssayRole, len(raw))
	for i, v := range raw {
		out[i], _ = ParseAssayRole(v)
	}
	return out
}

// QuantificationTypes parses the quantificationType column of a targeted
// dataset. Missing columns yield nil.
func (d *Dataset) QuantificationTypes() []QuantificationType {
	raw, err := d.features.Strings(ColQuantificationType)
	if err != nil {
		return nil
	}
	out := make([]QuantificationType, len(raw))
	for i, v := range raw {
		out[i], _ = ParseQuantificationType(v)
	}
	return out
}

// SampleFloats returns a copy of a float sample column.
func (d *Dataset) SampleFloats(name string) ([]float64, error) { return d.samples.Floats(name) }

// FeatureFloats returns a copy of a float feature column.
func (d *Dataset) FeatureFloats(name string) ([]float64, error) { return d.features.Floats(name) }

func (d *Dataset) clone() *Dataset {
	out := *d
	out.sampleMask = append([]bool(nil), d.sampleMask...)
	out.featureMask = append([]bool(nil), d.featureMask...)
	out.excluded = append([]Exclusion(nil), d.excluded...)
	out.warnings = append([]Warning(nil), d.warnings...)
	return &out
}

// WithSOP returns a dataset carrying a different configuration.
func (d *Dataset) WithSOP(s *sop.SOP) *Dataset {
	out := d.clone()
	out.sop = s
	return out
}

// WithIntensity returns a dataset with a replacement intensity matrix of the
// same shape.
func (d *Dataset) WithIntensity(x *mat.Dense) (*Dataset, error) {
	if x == nil {
		return nil, fmt.Errorf("%w: no intensity matrix", core.ErrShapeMismatch)
	}
	if r, c := x.Dims(); r != d.NSamples() || c != d.NFeatures() {
		return nil, fmt.Errorf("%w: intensity is %dx%d, dataset is %dx%d", core.ErrShapeMismatch, r, c, d.NSamples(), d.NFeatures())
	}
	out := d.clone()
	out.x = mat.DenseCopyOf(x)
	return out, nil
}

// WithSampleColumn returns a dataset with a sample metadata column added or
// replaced.
func (d *Dataset) WithSampleColumn(c Column) (*Dataset, error) {
	t, err := d.samples.With(c)
	if err != nil {
		return nil, err
	}
	out := d.clone()
	out.samples = t
	return out, nil
}

// WithFeatureColumn returns a dataset with a feature metadata column added or
// replaced.
func (d *Dataset) WithFeatureColumn(c Column) (*Dataset, error) {
	t, err := d.features.With(c)
	if err != nil {
		return nil, err
	}
	out := d.clone()
	out.features = t
	return out, nil
}

// WithWarnings returns a dataset with warnings appended.
func (d *Dataset) WithWarnings(ws ...Warning) *Dataset {
	out := d.clone()
	out.warnings = append(out.warnings, ws...)
	return out
}

// Equal reports whether two datasets hold the same tables, values and masks.
// NaN intensities compare equal. Identity and history are not compared.
func (d *Dataset) Equal(o *Dataset) bool {
	if d.NSamples() != o.NSamples() || d.NFeatures() != o.NFeatures() {
		return false
	}
	if !d.samples.Equal(o.samples) || !d.features.Equal(o.features) {
		return false
	}
	if !boolsEqual(d.sampleMask, o.sampleMask) || !boolsEqual(d.featureMask, o.featureMask) {
		return false
	}
	for i := 0; i < d.NSamples(); i++ {
		for j := 0; j < d.NFeatures(); j++ {
			a, b := d.x.At(i, j), o.x.At(i, j)
			if a != b && !(math.IsNaN(a) && math.IsNaN(b)) {
				return false
			}
		}
	}
	return true
}

func boolsEqual(a, b []bool) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
