package batchcorrect

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"metaboqc/domain/core"
)

func TestLowessReproducesLine(t *testing.T) {
	x := []float64{1, 3, 5, 7, 9}
	y := []float64{100, 110, 120, 130, 140}
	for _, k := range []int{2, 3, 5} {
		fit := Lowess(x, y, k, 0)
		for i := range y {
			assert.InDelta(t, y[i], fit[i], 1e-9, "k=%d", k)
		}
	}
	robust := Lowess(x, y, 5, 3)
	assert.InDelta(t, 120, robust[2], 1e-9)
}

func TestLowessRobustIgnoresOutlier(t *testing.T) {
	x := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9}
	y := []float64{10.5, 9.5, 10.5, 9.5, 100, 9.5, 10.5, 9.5, 10.5}
	plain := Lowess(x, y, 5, 0)
	robust := Lowess(x, y, 5, 3)
	assert.Greater(t, plain[4], 15.0)
	assert.InDelta(t, 10, robust[4], 1.0)
}

func TestInterpolate(t *testing.T) {
	xs := []float64{1, 3, 5}
	ys := []float64{100, 110, 120}
	assert.Equal(t, 105.0, Interpolate(xs, ys, 2))
	assert.Equal(t, 115.0, Interpolate(xs, ys, 4))
	assert.Equal(t, 110.0, Interpolate(xs, ys, 3))
	assert.Equal(t, 100.0, Interpolate(xs, ys, 0))
	assert.Equal(t, 120.0, Interpolate(xs, ys, 9))
	assert.True(t, math.IsNaN(Interpolate(xs, ys, math.NaN())))
}

func TestCorrectLinearDrift(t *testing.T) {
	// five study pools with linear drift and one study sample at run order 4
	runOrder := []float64{1, 3, 4, 5, 7, 9}
	batch := []float64{1, 1, 1, 1, 1, 1}
	sp := []bool{true, true, false, true, true, true}
	x := mat.NewDense(6, 1, []float64{100, 110, 110, 120, 130, 140})

	res, err := Correct(context.Background(), x, runOrder, batch, sp, Options{Window: 5})
	require.NoError(t, err)

	for _, i := range []int{0, 1, 3, 4, 5} {
		assert.InDelta(t, 120, res.Corrected.At(i, 0), 1e-9)
	}
	assert.InDelta(t, 115, res.Fit.At(2, 0), 1e-9)
	assert.InDelta(t, 110*120.0/115, res.Corrected.At(2, 0), 1e-9)
	assert.InDelta(t, 114.78, res.Corrected.At(2, 0), 0.01)
	assert.Equal(t, 120.0, res.Reference[0])
	assert.Empty(t, res.Reverted)

	// input untouched
	assert.Equal(t, 110.0, x.At(2, 0))
}

func TestCorrectConstantLevelIsNoop(t *testing.T) {
	runOrder := []float64{1, 2, 3, 4, 5, 6, 7, 8}
	batch := []float64{1, 1, 1, 1, 2, 2, 2, 2}
	sp := []bool{true, false, true, true, true, false, true, true}
	x := mat.NewDense(8, 2, []float64{
		50, 7,
		33, 9,
		50, 7,
		50, 7,
		50, 7,
		81, 2,
		50, 7,
		50, 7,
	})
	res, err := Correct(context.Background(), x, runOrder, batch, sp, Options{Window: 3})
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(x, res.Corrected, 1e-12))
}

func TestCorrectTwiceIsNoop(t *testing.T) {
	runOrder := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
	batch := []float64{1, 1, 1, 1, 1, 1, 2, 2, 2, 2, 2, 2}
	sp := []bool{true, false, true, false, true, true, true, false, true, false, true, true}
	data := make([]float64, 12*3)
	for i := 0; i < 12; i++ {
		level := 1000.0
		if batch[i] == 2 {
			level = 1400
		}
		for j := 0; j < 3; j++ {
			data[i*3+j] = (level + float64(j)*10) * (1 - 0.02*runOrder[i])
			if !sp[i] {
				data[i*3+j] *= 1.3
			}
		}
	}
	x := mat.NewDense(12, 3, data)

	once, err := Correct(context.Background(), x, runOrder, batch, sp, Options{Window: 5})
	require.NoError(t, err)
	twice, err := Correct(context.Background(), once.Corrected, runOrder, batch, sp, Options{Window: 5})
	require.NoError(t, err)

	for i := 0; i < 12; i++ {
		for j := 0; j < 3; j++ {
			a, b := once.Corrected.At(i, j), twice.Corrected.At(i, j)
			assert.InDelta(t, 0, (b-a)/a, 1e-9)
		}
	}
}

func TestCorrectRevertsFeature(t *testing.T) {
	runOrder := []float64{1, 2, 3, 4, 5, 6}
	batch := []float64{1, 1, 1, 2, 2, 2}
	sp := []bool{true, false, true, true, false, true}
	x := mat.NewDense(6, 2, []float64{
		10, math.NaN(),
		11, 5,
		12, 6,
		20, 7,
		21, 8,
		22, 9,
	})
	res, err := Correct(context.Background(), x, runOrder, batch, sp, Options{Window: 3})
	require.NoError(t, err)
	require.Len(t, res.Reverted, 1)
	assert.Equal(t, 1, res.Reverted[0].Feature)
	for i := 0; i < 6; i++ {
		assert.Equal(t, x.At(i, 1), res.Corrected.At(i, 1))
		assert.True(t, math.IsNaN(res.Fit.At(i, 1)))
	}
	assert.True(t, math.IsNaN(res.Reference[1]))
	assert.False(t, math.IsNaN(res.Reference[0]))
}

func TestCorrectSkipsSamplesWithoutBatch(t *testing.T) {
	runOrder := []float64{1, 2, 3, 4}
	batch := []float64{1, math.NaN(), 1, 1}
	sp := []bool{true, false, true, true}
	x := mat.NewDense(4, 1, []float64{10, 99, 12, 14})
	res, err := Correct(context.Background(), x, runOrder, batch, sp, Options{Window: 3})
	require.NoError(t, err)
	assert.Equal(t, 99.0, res.Corrected.At(1, 0))
	assert.True(t, math.IsNaN(res.Fit.At(1, 0)))
}

func TestCorrectPreconditions(t *testing.T) {
	x := mat.NewDense(3, 1, []float64{1, 2, 3})

	_, err := Correct(context.Background(), x, []float64{1, 2, 3}, []float64{1, 1, 1}, []bool{true, false, false}, Options{})
	assert.True(t, core.IsPreconditionError(err))

	_, err = Correct(context.Background(), x, []float64{1, 2, 3}, []float64{math.NaN(), math.NaN(), math.NaN()}, []bool{true, true, true}, Options{})
	assert.True(t, core.IsPreconditionError(err))

	_, err = Correct(context.Background(), x, []float64{1, 2, 3}, []float64{1, 1, 1}, []bool{true, true, true}, Options{Window: 4})
	assert.True(t, core.IsConfigurationError(err))

	_, err = Correct(context.Background(), x, []float64{1, 2}, []float64{1, 1, 1}, []bool{true, true, true}, Options{})
	assert.ErrorIs(t, err, core.ErrShapeMismatch)
}

func TestCorrectWorkersMatchSerial(t *testing.T) {
	n, c := 20, 16
	runOrder := make([]float64, n)
	batch := make([]float64, n)
	sp := make([]bool, n)
	data := make([]float64, n*c)
	for i := 0; i < n; i++ {
		runOrder[i] = float64(i + 1)
		batch[i] = float64(i/10 + 1)
		sp[i] = i%3 == 0
		for j := 0; j < c; j++ {
			data[i*c+j] = 100 + float64(j) + 3*math.Sin(float64(i*j)) - 0.5*float64(i)
		}
	}
	x := mat.NewDense(n, c, data)
	serial, err := Correct(context.Background(), x, runOrder, batch, sp, Options{Window: 3})
	require.NoError(t, err)
	parallel, err := Correct(context.Background(), x, runOrder, batch, sp, Options{Window: 3, Workers: 4})
	require.NoError(t, err)
	assert.True(t, mat.Equal(serial.Corrected, parallel.Corrected))
	assert.Equal(t, serial.Reference, parallel.Reference)
}

func TestCorrectHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	x := mat.NewDense(4, 2, []float64{1, 2, 3, 4, 5, 6, 7, 8})
	_, err := Correct(ctx, x, []float64{1, 2, 3, 4}, []float64{1, 1, 1, 1}, []bool{true, true, true, true}, Options{Window: 3})
	assert.ErrorIs(t, err, context.Canceled)
}
