package pca

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"metaboqc/domain/core"
	"metaboqc/domain/sop"
)

// Ellipse is the Hotelling's T² confidence ellipse in the plane of two
// components, centred on the origin.
type Ellipse struct {
	ComponentX int
	ComponentY int
	Alpha      float64
	SemiAxisX  float64
	SemiAxisY  float64
}

// Contains reports whether the point (x, y) lies on or inside the ellipse.
func (e Ellipse) Contains(x, y float64) bool {
	if !(e.SemiAxisX > 0) || !(e.SemiAxisY > 0) {
		return false
	}
	return (x*x)/(e.SemiAxisX*e.SemiAxisX)+(y*y)/(e.SemiAxisY*e.SemiAxisY) <= 1
}

// Ellipse returns the 1-alpha Hotelling's T² ellipse for components i and j.
func (m *Model) Ellipse(i, j int, alpha float64) (Ellipse, error) {
	k := m.NComponents()
	if i < 0 || j < 0 || i >= k || j >= k {
		return Ellipse{}, core.NewConfigurationError("component", fmt.Sprintf("components %d,%d outside model with %d", i, j, k))
	}
	if err := openUnit("alpha", alpha); err != nil {
		return Ellipse{}, err
	}
	n := float64(m.NSamples())
	if n < 3 {
		return Ellipse{}, fmt.Errorf("%w: ellipse needs at least 3 samples", core.ErrInsufficientData)
	}
	f := distuv.F{D1: 2, D2: n - 2}.Quantile(1 - alpha)
	scale := f * 2 * (n - 1) / (n - 2)
	return Ellipse{
		ComponentX: i,
		ComponentY: j,
		Alpha:      alpha,
		SemiAxisX:  math.Sqrt(m.Variance[i] * scale),
		SemiAxisY:  math.Sqrt(m.Variance[j] * scale),
	}, nil
}

// HotellingT2 returns each sample's T² over all fitted components.
func (m *Model) HotellingT2() []float64 {
	n, k := m.Scores.Dims()
	t2 := make([]float64, n)
	for i := 0; i < n; i++ {
		for c := 0; c < k; c++ {
			if m.Variance[c] > 0 {
				s := m.Scores.At(i, c)
				t2[i] += s * s / m.Variance[c]
			}
		}
	}
	return t2
}

// T2Critical returns the 1-alpha critical value of Hotelling's T² for the
// model's sample count and number of components.
func (m *Model) T2Critical(alpha float64) float64 {
	n, k := float64(m.NSamples()), float64(m.NComponents())
	if n-k < 1 {
		return math.NaN()
	}
	f := distuv.F{D1: k, D2: n - k}.Quantile(1 - alpha)
	return k * (n - 1) / (n - k) * f
}

// DModX returns the normalised distance of each sample to the model. The
// values are NaN when the model leaves no residual degrees of freedom.
func (m *Model) DModX() []float64 {
	n, v := m.Residuals.Dims()
	k := m.NComponents()
	out := make([]float64, n)
	dfVar := float64(v - k)
	dfPool := float64(n-k-1) * dfVar
	if dfVar < 1 || dfPool < 1 {
		for i := range out {
			out[i] = math.NaN()
		}
		return out
	}
	var total float64
	for i := 0; i < n; i++ {
		row := m.Residuals.RawRowView(i)
		ss := floats.Dot(row, row)
		total += ss
		out[i] = math.Sqrt(ss / dfVar)
	}
	s0 := math.Sqrt(total / dfPool)
	for i := range out {
		if s0 > 0 {
			out[i] /= s0
		} else {
			out[i] = math.NaN()
		}
	}
	return out
}

// DModXCriticalF returns the F-distribution critical value of normalised
// DModX.
func (m *Model) DModXCriticalF(alpha float64) float64 {
	n, v := m.Residuals.Dims()
	k := m.NComponents()
	d1 := float64(v - k)
	d2 := float64(n-k-1) * d1
	if d1 < 1 || d2 < 1 {
		return math.NaN()
	}
	return math.Sqrt(distuv.F{D1: d1, D2: d2}.Quantile(1 - alpha))
}

// ScoreDistance returns the sum of absolute scores across components for
// each sample.
func (m *Model) ScoreDistance() []float64 {
	n, k := m.Scores.Dims()
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		for c := 0; c < k; c++ {
			out[i] += math.Abs(m.Scores.At(i, c))
		}
	}
	return out
}

// Diagnostics gathers the outlier statistics of a fitted model.
type Diagnostics struct {
	Ellipse          Ellipse
	HasEllipse       bool
	T2               []float64
	T2Critical       float64
	DModX            []float64
	DModXCritical    float64
	ScoreDistance    []float64
	ScoreCritical    float64
	StrongOutliers   []int
	ModerateOutliers []int
}

// Diagnose computes the outlier statistics under the configured thresholds.
// Strong outliers have a summed absolute score above the 1-scoresCriticalVal
// quantile; moderate outliers have a DModX above its critical value.
func Diagnose(m *Model, cfg sop.PCA) (*Diagnostics, error) {
	if err := openUnit("hotellingsAlpha", cfg.HotellingsAlpha); err != nil {
		return nil, err
	}
	if err := openUnit("scoresCriticalVal", cfg.ScoresCriticalVal); err != nil {
		return nil, err
	}

	d := &Diagnostics{
		T2:            m.HotellingT2(),
		T2Critical:    m.T2Critical(cfg.HotellingsAlpha),
		DModX:         m.DModX(),
		ScoreDistance: m.ScoreDistance(),
	}
	if m.NComponents() >= 2 {
		e, err := m.Ellipse(0, 1, cfg.HotellingsAlpha)
		if err != nil {
			return nil, err
		}
		d.Ellipse, d.HasEllipse = e, true
	}

	switch cfg.DModXMethod {
	case sop.DModXPercentile:
		if !(cfg.DModXPercentile > 0 && cfg.DModXPercentile <= 100) {
			return nil, core.NewConfigurationError("dModXPercentile", "must lie in (0,100]")
		}
		d.DModXCritical = quantile(d.DModX, cfg.DModXPercentile/100)
	default:
		if err := openUnit("dModXAlpha", cfg.DModXAlpha); err != nil {
			return nil, err
		}
		d.DModXCritical = m.DModXCriticalF(cfg.DModXAlpha)
	}

	d.ScoreCritical = quantile(d.ScoreDistance, 1-cfg.ScoresCriticalVal)
	for i, s := range d.ScoreDistance {
		if s > d.ScoreCritical {
			d.StrongOutliers = append(d.StrongOutliers, i)
		}
	}
	for i, v := range d.DModX {
		if v > d.DModXCritical {
			d.ModerateOutliers = append(d.ModerateOutliers, i)
		}
	}
	return d, nil
}

func quantile(v []float64, p float64) float64 {
	var finite []float64
	for _, x := range v {
		if !math.IsNaN(x) && !math.IsInf(x, 0) {
			finite = append(finite, x)
		}
	}
	if len(finite) == 0 {
		return math.NaN()
	}
	sort.Float64s(finite)
	return stat.Quantile(p, stat.LinInterp, finite, nil)
}

func openUnit(field string, v float64) error {
	if !(v > 0 && v < 1) {
		return core.NewConfigurationError(field, fmt.Sprintf("must lie in (0,1), got %g", v))
	}
	return nil
}

// Reconstruct returns scores times loadings in the scaled space, used to
// check that residuals and the fitted part recompose the input.
func (m *Model) Reconstruct() *mat.Dense {
	var out mat.Dense
	out.Mul(m.Scores, m.Loadings.T())
	return &out
}
