// Package pca fits principal component models to QC data and derives the
// multivariate diagnostics: Hotelling's T² ellipse, DModX, strong and moderate
// outliers, and the association of component scores with sample metadata.
package pca

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"metaboqc/adapters/stats/kernel"
	"metaboqc/domain/core"
)

// Options configures model fitting.
type Options struct {
	NComponents int
	// Scaling is the power of the standard deviation each column is divided
	// by: 0 centres only, 0.5 is Pareto scaling, 1 is unit variance.
	Scaling float64
}

// Model is a fitted PCA model.
type Model struct {
	Columns        []int // input columns used; others were non-finite or constant
	Mean           []float64
	Scale          []float64
	Loadings       *mat.Dense // used columns x components
	Scores         *mat.Dense // samples x components
	Variance       []float64  // score variance per component, unbiased
	ExplainedRatio []float64
	Residuals      *mat.Dense // samples x used columns
}

// NComponents returns the number of fitted components.
func (m *Model) NComponents() int { return len(m.Variance) }

// NSamples returns the number of observations.
func (m *Model) NSamples() int {
	r, _ := m.Scores.Dims()
	return r
}

// NVariables returns the number of variables the model was fitted on.
func (m *Model) NVariables() int { return len(m.Columns) }

// Fit centres and scales x and fits a PCA model. Columns holding non-finite
// values or no variance are left out. The component sign is fixed so that the
// largest absolute loading is positive.
func Fit(x mat.Matrix, opts Options) (*Model, error) {
	n, p := x.Dims()
	if opts.NComponents < 1 {
		return nil, core.NewConfigurationError("nComponents", fmt.Sprintf("must be >= 1, got %d", opts.NComponents))
	}
	if n < 3 {
		return nil, fmt.Errorf("%w: PCA needs at least 3 samples, got %d", core.ErrInsufficientData, n)
	}

	m := &Model{}
	col := make([]float64, n)
	for j := 0; j < p; j++ {
		mat.Col(col, j, x)
		if len(kernel.FiniteOf(col, nil)) != n {
			continue
		}
		mean, std := stat.MeanStdDev(col, nil)
		if !(std > 0) {
			continue
		}
		m.Columns = append(m.Columns, j)
		m.Mean = append(m.Mean, mean)
		m.Scale = append(m.Scale, math.Pow(std, opts.Scaling))
	}
	v := len(m.Columns)
	if v < 1 {
		return nil, fmt.Errorf("%w: no finite, non-constant variables to model", core.ErrInsufficientData)
	}
	k := min(opts.NComponents, n-1, v)

	xs := mat.NewDense(n, v, nil)
	for c, j := range m.Columns {
		for i := 0; i < n; i++ {
			xs.Set(i, c, (x.At(i, j)-m.Mean[c])/m.Scale[c])
		}
	}

	var pc stat.PC
	if ok := pc.PrincipalComponents(xs, nil); !ok {
		return nil, fmt.Errorf("%w: principal components did not converge", core.ErrDegenerate)
	}
	var vecs mat.Dense
	pc.VectorsTo(&vecs)
	vars := pc.VarsTo(nil)

	m.Loadings = mat.NewDense(v, k, nil)
	for c := 0; c < k; c++ {
		loading := mat.Col(nil, c, &vecs)
		if floats.Max(loading) < -floats.Min(loading) {
			floats.Scale(-1, loading)
		}
		m.Loadings.SetCol(c, loading)
	}

	m.Scores = mat.NewDense(n, k, nil)
	m.Scores.Mul(xs, m.Loadings)

	total := floats.Sum(vars)
	m.Variance = make([]float64, k)
	m.ExplainedRatio = make([]float64, k)
	for c := 0; c < k; c++ {
		m.Variance[c] = stat.Variance(mat.Col(nil, c, m.Scores), nil)
		if total > 0 {
			m.ExplainedRatio[c] = vars[c] / total
		}
	}

	var recon mat.Dense
	recon.Mul(m.Scores, m.Loadings.T())
	m.Residuals = mat.NewDense(n, v, nil)
	m.Residuals.Sub(xs, &recon)
	return m, nil
}

// Project returns the scores of new observations under the model. Columns are
// taken from the original input indices.
func (m *Model) Project(x mat.Matrix) *mat.Dense {
	n, _ := x.Dims()
	xs := mat.NewDense(n, len(m.Columns), nil)
	for c, j := range m.Columns {
		for i := 0; i < n; i++ {
			xs.Set(i, c, (x.At(i, j)-m.Mean[c])/m.Scale[c])
		}
	}
	out := mat.NewDense(n, m.NComponents(), nil)
	out.Mul(xs, m.Loadings)
	return out
}
