package dataset

import (
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"metaboqc/domain/core"
	"metaboqc/domain/sop"
)

func msTables(t *testing.T) (Table, Table, *mat.Dense) {
	t.Helper()
	n := 6
	acquired := make([]time.Time, n)
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	for i := range acquired {
		acquired[i] = base.Add(time.Duration(i) * 20 * time.Minute)
	}
	samples, err := NewTable(n,
		StringColumn(ColSampleFileName, []string{"s1", "s2", "sp1", "lr1", "blank1", "er1"}),
		StringColumn(ColSampleID, []string{"A", "B", "SP", "LR", "BL", "ER"}),
		StringColumn(ColSampleType, []string{"StudySample", "StudySample", "StudyPool", "StudyPool", "ProceduralBlank", "ExternalReference"}),
		StringColumn(ColAssayRole, []string{"Assay", "Assay", "PrecisionReference", "LinearityReference", "Assay", "PrecisionReference"}),
		FloatColumn(ColRunOrder, []float64{1, 2, 3, 4, 5, 6}),
		TimeColumn(ColAcquiredTime, acquired),
		FloatColumn(ColBatch, []float64{1, 1, 1, 1, 1, math.NaN()}),
		FloatColumn(ColDilution, []float64{100, 100, 100, 50, math.NaN(), 100}),
		FloatColumn(ColDetector, []float64{-300, -300, -300, -300, -300, -300}),
		FloatColumn(ColCorrectionBatch, []float64{1, 1, 1, 1, 1, 1}),
		BoolColumn(ColSkipped, []bool{false, true, false, false, false, false}),
	)
	require.NoError(t, err)
	features, err := NewTable(3,
		StringColumn(ColFeatureName, []string{"f1", "f2", "f3"}),
		FloatColumn(ColMZ, []float64{100.1, 200.2, 300.3}),
		FloatColumn(ColRetentionTime, []float64{1.1, 2.2, 3.3}),
	)
	require.NoError(t, err)
	x := mat.NewDense(n, 3, []float64{
		1, 2, 3,
		4, 5, 6,
		7, 8, 9,
		10, 11, 12,
		13, 14, math.NaN(),
		16, 17, 18,
	})
	return samples, features, x
}

func newMS(t *testing.T) *Dataset {
	t.Helper()
	s, f, x := msTables(t)
	d, err := New(Spec{Name: "test", Platform: sop.PlatformMS, Intensity: x, Samples: s, Features: f})
	require.NoError(t, err)
	return d
}

func TestNewValidatesSchema(t *testing.T) {
	s, f, x := msTables(t)

	t.Run("missing column", func(t *testing.T) {
		_, err := New(Spec{Platform: sop.PlatformMS, Intensity: x, Samples: s.Without(ColDilution), Features: f})
		require.Error(t, err)
		assert.ErrorIs(t, err, core.ErrMissingColumn)
		assert.Contains(t, err.Error(), ColDilution)
	})

	t.Run("shape mismatch", func(t *testing.T) {
		_, err := New(Spec{Platform: sop.PlatformMS, Intensity: mat.NewDense(6, 2, nil), Samples: s, Features: f})
		assert.ErrorIs(t, err, core.ErrShapeMismatch)
	})

	t.Run("bad enum", func(t *testing.T) {
		bad, err := s.With(StringColumn(ColSampleType, []string{"StudySample", "Plasma", "StudyPool", "StudyPool", "ProceduralBlank", "ExternalReference"}))
		require.NoError(t, err)
		_, err = New(Spec{Platform: sop.PlatformMS, Intensity: x, Samples: bad, Features: f})
		assert.ErrorIs(t, err, core.ErrBadEnum)
		assert.True(t, core.IsSchemaError(err))
	})

	t.Run("duplicate file name", func(t *testing.T) {
		bad, err := s.With(StringColumn(ColSampleFileName, []string{"s1", "s1", "sp1", "lr1", "blank1", "er1"}))
		require.NoError(t, err)
		_, err = New(Spec{Platform: sop.PlatformMS, Intensity: x, Samples: bad, Features: f})
		assert.True(t, core.IsSchemaError(err))
	})

	t.Run("run order below one", func(t *testing.T) {
		bad, err := s.With(FloatColumn(ColRunOrder, []float64{0, 2, 3, 4, 5, 6}))
		require.NoError(t, err)
		_, err = New(Spec{Platform: sop.PlatformMS, Intensity: x, Samples: bad, Features: f})
		assert.True(t, core.IsSchemaError(err))
	})

	t.Run("wrong column kind", func(t *testing.T) {
		bad, err := s.With(StringColumn(ColBatch, []string{"1", "1", "1", "1", "1", "1"}))
		require.NoError(t, err)
		_, err = New(Spec{Platform: sop.PlatformMS, Intensity: x, Samples: bad, Features: f})
		assert.True(t, core.IsSchemaError(err))
	})

	t.Run("NMR needs ppm", func(t *testing.T) {
		_, err := New(Spec{Platform: sop.PlatformNMR, Intensity: x, Samples: s, Features: f})
		assert.ErrorIs(t, err, core.ErrMissingColumn)
	})
}

func TestNewStartsWithAllTrueMasks(t *testing.T) {
	d := newMS(t)
	assert.Equal(t, []bool{true, true, true, true, true, true}, d.SampleMask())
	assert.Equal(t, []bool{true, true, true}, d.FeatureMask())
	assert.Equal(t, Uncorrected, d.Correction().State)
	require.NotNil(t, d.SOP())
	assert.Equal(t, "GenericMS", d.SOP().Name)
}

func TestRoles(t *testing.T) {
	d := newMS(t)
	m := d.Roles()
	assert.Equal(t, []bool{true, true, false, false, false, false}, m.SS)
	assert.Equal(t, []bool{false, false, true, false, false, false}, m.SP)
	assert.Equal(t, []bool{false, false, false, true, false, false}, m.LR)
	assert.Equal(t, []bool{false, false, false, false, true, false}, m.Blank)
	assert.Equal(t, []bool{false, false, false, false, false, true}, m.ER)
	assert.Equal(t, []bool{false, false, false, false, false, false}, m.Unknown)
	assert.Equal(t, []bool{false, true, false, false, false, false}, m.MarkedToExclude)

	masked, err := d.WithMasks([]bool{false, true, true, true, true, true}, nil)
	require.NoError(t, err)
	assert.Equal(t, []bool{true, true, false, false, false, false}, masked.Roles().MarkedToExclude)
	assert.Len(t, m.Named(), 7)
}

func TestApplyMasksIsIdempotentAndRecordsHistory(t *testing.T) {
	d := newMS(t)
	masked, err := d.WithMasks([]bool{true, false, true, true, true, true}, []bool{true, true, false})
	require.NoError(t, err)

	once := masked.ApplyMasks("manual")
	twice := once.ApplyMasks("manual")

	assert.True(t, once.Equal(twice))
	assert.Same(t, once, twice)
	assert.Equal(t, 5, once.NSamples())
	assert.Equal(t, 2, once.NFeatures())
	assert.Equal(t, []string{"s1", "sp1", "lr1", "blank1", "er1"}, once.SampleNames())

	hist := once.Excluded()
	require.Len(t, hist, 2)
	assert.Equal(t, AxisSamples, hist[0].Axis)
	assert.Equal(t, []int{1}, hist[0].Indices)
	assert.Equal(t, 4.0, hist[0].Values.At(0, 0))
	assert.Equal(t, AxisFeatures, hist[1].Axis)
	names, err := hist[1].Rows.Strings(ColFeatureName)
	require.NoError(t, err)
	assert.Equal(t, []string{"f3"}, names)

	// the source dataset is untouched
	assert.Equal(t, 6, d.NSamples())
	assert.Empty(t, d.Excluded())
	assert.Equal(t, 7.0, once.Intensity().At(1, 0))
}

func TestApplyMasksNoopOnAllTrue(t *testing.T) {
	d := newMS(t)
	assert.Same(t, d, d.ApplyMasks("nothing"))
}

func TestWithMasksRejectsWrongLength(t *testing.T) {
	d := newMS(t)
	_, err := d.WithMasks([]bool{true}, nil)
	assert.ErrorIs(t, err, core.ErrShapeMismatch)
}

func TestCorrectionTransitions(t *testing.T) {
	d := newMS(t)
	x := d.IntensityCopy()
	fit := mat.NewDense(6, 3, nil)

	corrected, err := d.WithCorrection(x, fit, []float64{1, 2, 3}, 11, []Warning{{Kind: WarnCorrectionReverted, Feature: 2, Name: "f3"}})
	require.NoError(t, err)
	assert.Equal(t, Corrected, corrected.Correction().State)
	assert.Len(t, corrected.Warnings(), 1)
	assert.Equal(t, Uncorrected, d.Correction().State)

	_, err = corrected.WithCorrection(x, fit, nil, 11, nil)
	assert.ErrorIs(t, err, core.ErrInvalidTransition)

	failed, err := d.WithCorrectionFailed("boom")
	require.NoError(t, err)
	assert.Equal(t, CorrectionFailed, failed.Correction().State)
	assert.True(t, failed.Equal(d))

	_, err = failed.WithCorrectionFailed("again")
	assert.ErrorIs(t, err, core.ErrInvalidTransition)
}

func TestMaskingRealignsCorrection(t *testing.T) {
	d := newMS(t)
	fit := mat.NewDense(6, 3, []float64{
		1, 2, 3,
		1, 2, 3,
		1, 2, 3,
		1, 2, 3,
		1, 2, 3,
		1, 2, 3,
	})
	_, err := d.WithCorrection(d.IntensityCopy(), fit, []float64{10, 20}, 11, nil)
	assert.ErrorIs(t, err, core.ErrShapeMismatch)

	corrected, err := d.WithCorrection(d.IntensityCopy(), fit, []float64{10, 20, 30}, 11, nil)
	require.NoError(t, err)
	masked, err := corrected.WithMasks([]bool{true, false, true, true, true, true}, []bool{true, false, true})
	require.NoError(t, err)

	for _, next := range []*Dataset{masked.ApplyMasks("drop"), masked.Subset()} {
		c := next.Correction()
		assert.Equal(t, []float64{10, 30}, c.ReferenceLevels)
		r, cols := c.Fit.Dims()
		assert.Equal(t, next.NSamples(), r)
		assert.Equal(t, next.NFeatures(), cols)
		assert.Equal(t, []float64{1, 3}, c.Fit.RawRowView(0))
	}
	assert.Equal(t, []float64{10, 20, 30}, corrected.Correction().ReferenceLevels, "input untouched")
}

func TestWithIntensityRejectsNil(t *testing.T) {
	_, err := newMS(t).WithIntensity(nil)
	assert.ErrorIs(t, err, core.ErrShapeMismatch)
}

func TestTableWithDoesNotAlias(t *testing.T) {
	s, _, _ := msTables(t)
	before, err := s.Floats(ColRunOrder)
	require.NoError(t, err)

	changed, err := s.With(FloatColumn(ColRunOrder, []float64{6, 5, 4, 3, 2, 1}))
	require.NoError(t, err)

	after, err := s.Floats(ColRunOrder)
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(before, after))
	got, _ := changed.Floats(ColRunOrder)
	assert.Equal(t, []float64{6, 5, 4, 3, 2, 1}, got)
}

func TestEnumRoundTripsStableIDs(t *testing.T) {
	assert.Equal(t, 0, int(StudySample))
	assert.Equal(t, 4, int(ProceduralBlank))
	assert.Equal(t, 2, int(LinearityReference))
	assert.Equal(t, 4, int(Monitored))
	assert.Equal(t, 2, int(OtherCalibration))
	assert.Equal(t, 2, int(Spectral))

	for _, name := range sampleTypeNames {
		v, err := ParseSampleType(name)
		require.NoError(t, err)
		assert.Equal(t, name, v.String())
	}
	v, err := ParseSampleType("")
	require.NoError(t, err)
	assert.Equal(t, SampleTypeUnset, v)
}
