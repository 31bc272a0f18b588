package kernel

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"metaboqc/domain/sop"
)

func TestRSD(t *testing.T) {
	x := mat.NewDense(4, 2, []float64{
		10, 10,
		11, 10,
		9, 10,
		10, 10,
	})
	got := RSD(x, nil)
	require.Len(t, got, 2)
	assert.InDelta(t, 8.1649658, got[0], 1e-6)
	assert.Equal(t, 0.0, got[1])
}

func TestRSDDegenerate(t *testing.T) {
	x := mat.NewDense(3, 3, []float64{
		1, 0, math.NaN(),
		2, 0, 5,
		3, 0, math.NaN(),
	})
	got := RSD(x, nil)
	assert.InDelta(t, 50, got[0], 1e-9)
	assert.True(t, math.IsInf(got[1], 1), "zero mean")
	assert.True(t, math.IsInf(got[2], 1), "one finite value")

	masked := RSD(x, []bool{true, false, false})
	assert.True(t, math.IsInf(masked[0], 1))
}

func TestCorrelationToDilution(t *testing.T) {
	dilution := []float64{1, 2, 4, 8, 16}
	x := mat.NewDense(5, 2, []float64{
		1, 16,
		2, 8,
		4, 4,
		8, 2,
		16, 1,
	})
	for _, method := range []string{sop.CorrPearson, sop.CorrSpearman} {
		t.Run(method, func(t *testing.T) {
			got := Correlate(x, dilution, method, nil, nil)
			assert.InDelta(t, 1.0, got[0], 1e-12)
			assert.InDelta(t, -1.0, got[1], 1e-12)
		})
	}
}

func TestCorrelationProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	n := 30
	y := make([]float64, n)
	data := make([]float64, n*3)
	for i := 0; i < n; i++ {
		y[i] = rng.NormFloat64()
		data[i*3] = y[i]
		data[i*3+1] = -y[i]
		data[i*3+2] = rng.Float64()
	}
	x := mat.NewDense(n, 3, data)

	for _, method := range []string{sop.CorrPearson, sop.CorrSpearman} {
		got := Correlate(x, y, method, nil, nil)
		assert.InDelta(t, 1.0, got[0], 1e-12, method)
		assert.InDelta(t, -1.0, got[1], 1e-12, method)

		perm := rng.Perm(n)
		px := mat.NewDense(n, 3, nil)
		py := make([]float64, n)
		for i, p := range perm {
			px.SetRow(i, x.RawRowView(p))
			py[i] = y[p]
		}
		shuffled := Correlate(px, py, method, nil, nil)
		for j := range got {
			assert.InDelta(t, got[j], shuffled[j], 1e-12, method)
		}
	}
}

func TestCorrelationMasksAndConstants(t *testing.T) {
	x := mat.NewDense(4, 3, []float64{
		1, 5, 1,
		2, 5, math.NaN(),
		3, 5, 3,
		10, 5, 4,
	})
	y := []float64{1, 2, 3, 4}

	got := Correlate(x, y, sop.CorrPearson, []bool{true, true, true, false}, []bool{true, true, false})
	assert.InDelta(t, 1.0, got[0], 1e-12)
	assert.Equal(t, 0.0, got[1], "constant column")
	assert.True(t, math.IsNaN(got[2]), "masked-out column")

	few := Correlate(x, y, sop.CorrPearson, []bool{true, false, false, false}, nil)
	assert.True(t, math.IsNaN(few[0]))
}

func TestRanksAverageTies(t *testing.T) {
	assert.Equal(t, []float64{1, 2.5, 2.5, 4}, Ranks([]float64{1, 3, 3, 7}))
	assert.Equal(t, []float64{3, 1, 2}, Ranks([]float64{9, -1, 0}))
	assert.Equal(t, []int{2, 3}, TieGroups([]float64{1, 1, 2, 5, 5, 5}))
}

func TestBlankFilter(t *testing.T) {
	ss := []bool{true, true, true, false, false}
	blank := []bool{false, false, false, true, true}
	x := mat.NewDense(5, 3, []float64{
		10, 10, 10,
		12, 11, 12,
		14, 12, 14,
		1, 10, math.NaN(),
		1, 12, math.NaN(),
	})
	got := BlankFilter(x, ss, blank, 1.1)
	assert.Equal(t, []bool{true, false, true}, got)

	noBlanks := BlankFilter(x, ss, make([]bool, 5), 1.1)
	assert.Equal(t, []bool{true, true, true}, noBlanks)
}

func TestElutionOverlap(t *testing.T) {
	assert.InDelta(t, 100, ElutionOverlap(1.0, 0.2, 1.0, 0.2), 1e-9)
	assert.InDelta(t, 50, ElutionOverlap(1.0, 0.2, 1.1, 0.2), 1e-9)
	assert.Equal(t, 0.0, ElutionOverlap(1.0, 0.2, 2.0, 0.2))
	assert.Equal(t, 0.0, ElutionOverlap(1.0, math.NaN(), 1.0, 0.2))
}

func TestArtifactualFilter(t *testing.T) {
	// features 0 and 1 are the same peak (close m/z, same RT, correlated);
	// feature 0 is more intense so it is kept. Feature 2 is far in m/z.
	x := mat.NewDense(5, 3, []float64{
		100, 10, 7,
		200, 20, 3,
		300, 30, 9,
		400, 40, 1,
		500, 50, 4,
	})
	mz := []float64{150.05, 150.10, 300.0}
	rt := []float64{2.0, 2.01, 2.0}
	pw := []float64{0.1, 0.1, 0.1}

	res := ArtifactualFilter(x, mz, rt, pw, nil, ArtifactualParams{
		DeltaMz: 0.1, OverlapThreshold: 50, CorrThreshold: 0.9, CorrMethod: sop.CorrPearson,
	})
	assert.Equal(t, []bool{true, false, true}, res.Pass)
	require.Len(t, res.Links, 1)
	assert.Equal(t, 0, res.Links[0].A)
	assert.Equal(t, 1, res.Links[0].B)
	assert.Equal(t, [][]int{{0, 1}}, res.Groups)

	strict := ArtifactualFilter(x, mz, rt, pw, nil, ArtifactualParams{
		DeltaMz: 0.01, OverlapThreshold: 50, CorrThreshold: 0.9, CorrMethod: sop.CorrPearson,
	})
	assert.Equal(t, []bool{true, true, true}, strict.Pass)
}
