package loq

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"metaboqc/domain/core"
	"metaboqc/domain/dataset"
	"metaboqc/domain/sop"
	"metaboqc/internal/testkit"
)

func TestMergeLimits(t *testing.T) {
	lloq, uloq := MergeLimits(
		[][]float64{{1.0}, {2.0}},
		[][]float64{{100.0}, {80.0}},
	)
	assert.Equal(t, []float64{2.0}, lloq)
	assert.Equal(t, []float64{80.0}, uloq)
}

func TestMergeLimitsEnvelope(t *testing.T) {
	per := [][]float64{{1, math.NaN(), 5}, {3, math.NaN(), 4}, {2, 7, math.NaN()}}
	up := [][]float64{{90, 50, 60}, {95, math.NaN(), 40}, {85, 45, 70}}
	lloq, uloq := MergeLimits(per, up)
	assert.Equal(t, []float64{3, 7, 5}, lloq)
	assert.Equal(t, []float64{85, 45, 40}, uloq)
	for b := range per {
		for j := range lloq {
			if !math.IsNaN(per[b][j]) {
				assert.GreaterOrEqual(t, lloq[j], per[b][j])
			}
			if !math.IsNaN(up[b][j]) {
				assert.LessOrEqual(t, uloq[j], up[b][j])
			}
		}
	}
}

func TestMerge(t *testing.T) {
	d := testkit.TargetedDataset(t, testkit.TargetedOptions{Seed: 5, Crossed: []int{3}})
	out, res, err := Merge(d, sop.LOQ{})
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2}, res.Batches)
	assert.Equal(t, 2.0, res.LLOQ[1])
	assert.Equal(t, 90.0, res.ULOQ[1])
	assert.Equal(t, []int{3}, res.Demoted)

	q := out.QuantificationTypes()
	assert.Equal(t, dataset.Monitored, q[3])
	assert.Equal(t, dataset.IS, q[0])

	below, err := out.FeatureFloats(dataset.ColBelowLLOQ)
	require.NoError(t, err)
	x := d.Intensity()
	r, _ := x.Dims()
	want := 0
	for i := 0; i < r; i++ {
		if x.At(i, 1) < 2.0 {
			want++
		}
	}
	assert.Equal(t, float64(want), below[1])

	// per-batch columns are kept for audit
	assert.True(t, out.Features().Has(dataset.LLOQBatchColumn(1)))
	assert.True(t, out.Features().Has(dataset.ULOQBatchColumn(2)))
	// the input is unchanged
	orig, _ := d.FeatureFloats(dataset.ColLLOQ)
	assert.Equal(t, 1.0, orig[1])
}

func TestMergeOnlyLLOQAndCensor(t *testing.T) {
	d := testkit.TargetedDataset(t, testkit.TargetedOptions{Seed: 5})
	out, res, err := Merge(d, sop.LOQ{OnlyLLOQ: true, CensorValues: true})
	require.NoError(t, err)

	assert.Equal(t, 100.0, res.ULOQ[0], "batch 1 ULOQ kept")
	assert.Equal(t, 2.0, res.LLOQ[0])

	x := out.Intensity()
	r, c := x.Dims()
	n := 0
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := x.At(i, j)
			if math.IsInf(v, 0) {
				n++
				continue
			}
			assert.GreaterOrEqual(t, v, res.LLOQ[j])
			assert.LessOrEqual(t, v, res.ULOQ[j])
		}
	}
	assert.Equal(t, res.Censored, n)
}

func TestMergePreconditions(t *testing.T) {
	ms := testkit.MSDataset(t, testkit.MSOptions{Seed: 1})
	_, _, err := Merge(ms, sop.LOQ{})
	assert.ErrorIs(t, err, core.ErrWrongPlatform)

	d := testkit.TargetedDataset(t, testkit.TargetedOptions{Seed: 5})
	stripped, err := dataset.New(dataset.Spec{
		Platform:  sop.PlatformTargetedMS,
		Intensity: d.IntensityCopy(),
		Samples:   d.Samples(),
		Features:  d.Features().Without(dataset.LLOQBatchColumn(1), dataset.LLOQBatchColumn(2)),
	})
	require.NoError(t, err)
	_, _, err = Merge(stripped, sop.LOQ{})
	assert.True(t, core.IsPreconditionError(err))

	emptied, err := d.WithMasks(make([]bool, d.NSamples()), nil)
	require.NoError(t, err)
	empty := emptied.ApplyMasks("all samples removed")
	require.Zero(t, empty.NSamples())
	_, _, err = Merge(empty, sop.LOQ{})
	assert.True(t, core.IsPreconditionError(err))
}

func TestCensoredMatrix(t *testing.T) {
	x := mat.NewDense(1, 3, []float64{0.5, 5, 500})
	got := CensoredMatrix(x, []float64{1, 1, 1}, []float64{100, 100, 100})
	assert.Equal(t, []float64{-1, 0, 1}, got.RawRowView(0))
}
