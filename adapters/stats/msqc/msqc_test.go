package msqc

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"metaboqc/domain/sop"
)

func TestLinearityBatches(t *testing.T) {
	//             0  1  2  3  4  5  6  7  8
	runOrder := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9}
	batch := []float64{1, 1, 1, 1, 1, 2, 2, 2, 2}
	detector := []float64{-300, -300, -300, -300, -300, -300, -300, -320, -320}
	lr := []bool{true, true, false, true, true, true, true, true, true}

	got := LinearityBatches(runOrder, batch, detector, lr, 5)
	require.Len(t, got, 4)
	assert.Equal(t, []int{0, 1}, got[0].Indices)
	assert.Equal(t, []int{3, 4}, got[1].Indices, "interrupted by sample 2")
	assert.Equal(t, []int{5, 6}, got[2].Indices, "batch change")
	assert.Equal(t, []int{7, 8}, got[3].Indices, "detector step")
	assert.Equal(t, "Batch 1 Series 1", got[0].Name)
	assert.Equal(t, "Batch 2 Series 2", got[3].Name)

	none := LinearityBatches(runOrder, batch, nil, make([]bool, 9), 5)
	assert.Empty(t, none)
}

func TestRestrictKeepsSeriesBoundaries(t *testing.T) {
	runOrder := []float64{1, 2, 3, 4, 5, 6, 7}
	batch := []float64{1, 1, 1, 1, 1, 1, 1}
	lr := []bool{true, true, true, false, true, true, true}
	series := LinearityBatches(runOrder, batch, nil, lr, 5)
	require.Len(t, series, 2)

	keep := []bool{true, false, true, true, false, false, false}
	got := Restrict(series, keep)
	require.Len(t, got, 1, "a fully masked series is dropped")
	assert.Equal(t, []int{0, 2}, got[0].Indices)
	assert.Equal(t, []bool{true, false, true, false, false, false, false}, got[0].Rows)
	assert.Equal(t, series[0].Name, got[0].Name)
	assert.Equal(t, []int{0, 1, 2}, series[0].Indices, "input untouched")

	assert.Equal(t, series, Restrict(series, nil))
}

func TestCorrelationToDilution(t *testing.T) {
	x := mat.NewDense(6, 2, []float64{
		1, 16,
		2, 8,
		4, 4,
		8, 2,
		16, 1,
		7, 7,
	})
	dilution := []float64{1, 2, 4, 8, 16, 100}
	lr := []bool{true, true, true, true, true, false}
	runOrder := []float64{1, 2, 3, 4, 5, 6}
	batch := []float64{1, 1, 1, 1, 1, 1}

	batches := LinearityBatches(runOrder, batch, nil, lr, 5)
	require.Len(t, batches, 1)
	for _, method := range []string{sop.CorrPearson, sop.CorrSpearman} {
		got := CorrelationToDilution(x, dilution, batches, method, nil)
		assert.InDelta(t, 1.0, got.Mean[0], 1e-12)
		assert.InDelta(t, -1.0, got.Mean[1], 1e-12)
	}

	empty := CorrelationToDilution(x, dilution, nil, sop.CorrPearson, nil)
	assert.True(t, math.IsNaN(empty.Mean[0]))
	assert.True(t, math.IsNaN(empty.Mean[1]))
}

func TestSaturation(t *testing.T) {
	// feature 0 rises with dilution, feature 1 saturates (falls) between the
	// top two levels
	x := mat.NewDense(6, 2, []float64{
		10, 100,
		11, 101,
		20, 200,
		21, 201,
		40, 150,
		41, 151,
	})
	dilution := []float64{25, 25, 50, 50, 100, 100}
	lr := []bool{true, true, true, true, true, true}
	batches := LinearityBatches([]float64{1, 2, 3, 4, 5, 6}, []float64{1, 1, 1, 1, 1, 1}, nil, lr, 5)

	cells := Saturation(x, dilution, batches, nil)
	require.Len(t, cells, 6)

	byKey := map[[2]float64]map[int]SaturationCell{}
	for _, c := range cells {
		k := [2]float64{c.LowDilution, c.HighDilution}
		if byKey[k] == nil {
			byKey[k] = map[int]SaturationCell{}
		}
		byKey[k][c.Tercile] = c
	}
	assert.Equal(t, 1.0, byKey[[2]float64{25, 50}][TercileLow].Fraction)
	assert.Equal(t, 1.0, byKey[[2]float64{25, 50}][TercileHigh].Fraction)
	assert.Equal(t, 1.0, byKey[[2]float64{50, 100}][TercileLow].Fraction)
	assert.Equal(t, 0.0, byKey[[2]float64{50, 100}][TercileHigh].Fraction)
	assert.True(t, math.IsNaN(byKey[[2]float64{50, 100}][TercileMid].Fraction))
}

func TestTICAndDescribe(t *testing.T) {
	x := mat.NewDense(2, 3, []float64{
		1, 2, math.NaN(),
		3, 4, 5,
	})
	assert.Equal(t, []float64{3, 12}, TIC(x, nil))
	assert.Equal(t, []float64{1, 3}, TIC(x, []bool{true, false, false}))

	d := Describe([]float64{4, 1, 3, 2, math.NaN()})
	assert.Equal(t, 4, d.Count)
	assert.Equal(t, 1.0, d.Min)
	assert.Equal(t, 4.0, d.Max)
	assert.Equal(t, 2.5, d.Median)
	assert.Equal(t, 2.5, d.Mean)

	edges, counts := Histogram([]float64{0, 1, 2, 3, 4}, 2)
	assert.Equal(t, []float64{0, 2, 4}, edges)
	assert.Equal(t, []float64{2, 3}, counts)
}

func TestDetectorDrifts(t *testing.T) {
	got := DetectorDrifts([]float64{2, 1, 1, 2, math.NaN()}, []float64{-310, -300, -305, -300, -500})
	require.Len(t, got, 2)
	assert.Equal(t, DetectorDrift{Batch: 1, Min: -305, Max: -300, Range: 5}, got[0])
	assert.Equal(t, DetectorDrift{Batch: 2, Min: -310, Max: -300, Range: 10}, got[1])
}
