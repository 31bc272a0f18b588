package batchcorrect

import (
	"math"
	"sort"

	"github.com/montanaflynn/stats"
)

// Lowess smooths y against ascending x with locally weighted linear
// regression over the k nearest neighbours of each point, using tricube
// distance weights. Each robustness iteration reweights points by the
// bisquare of their residual scaled by six median absolute residuals. The
// fitted values are returned in input order.
func Lowess(x, y []float64, k, iterations int) []float64 {
	n := len(x)
	fit := make([]float64, n)
	if n == 0 {
		return fit
	}
	if k > n {
		k = n
	}
	if k < 2 {
		copy(fit, y)
		return fit
	}

	robust := make([]float64, n)
	for i := range robust {
		robust[i] = 1
	}
	w := make([]float64, n)
	for it := 0; it <= iterations; it++ {
		for i := 0; i < n; i++ {
			lo, hi := neighbourhood(x, i, k)
			h := math.Max(x[i]-x[lo], x[hi-1]-x[i])
			for j := lo; j < hi; j++ {
				w[j] = tricube(x[j]-x[i], h) * robust[j]
			}
			fit[i] = weightedLine(x[lo:hi], y[lo:hi], w[lo:hi], x[i])
		}
		if it == iterations {
			break
		}
		residuals := make([]float64, n)
		for i := range residuals {
			residuals[i] = math.Abs(y[i] - fit[i])
		}
		mad, err := stats.Median(residuals)
		if err != nil || mad == 0 {
			break
		}
		for i, r := range residuals {
			u := r / (6 * mad)
			if u >= 1 {
				robust[i] = 0
			} else {
				robust[i] = (1 - u*u) * (1 - u*u)
			}
		}
	}
	return fit
}

// neighbourhood returns the half-open index range of the k points nearest to
// x[i] in the sorted slice x.
func neighbourhood(x []float64, i, k int) (int, int) {
	lo, hi := i, i+1
	for hi-lo < k {
		switch {
		case lo == 0:
			hi++
		case hi == len(x):
			lo--
		case x[i]-x[lo-1] <= x[hi]-x[i]:
			lo--
		default:
			hi++
		}
	}
	return lo, hi
}

func tricube(d, h float64) float64 {
	if h == 0 {
		return 1
	}
	u := math.Abs(d) / h
	if u >= 1 {
		return 0
	}
	c := 1 - u*u*u
	return c * c * c
}

func weightedLine(x, y, w []float64, at float64) float64 {
	var sw, sx, sy float64
	for j := range x {
		sw += w[j]
		sx += w[j] * x[j]
		sy += w[j] * y[j]
	}
	if sw == 0 {
		return math.NaN()
	}
	mx, my := sx/sw, sy/sw
	var sxx, sxy float64
	for j := range x {
		dx := x[j] - mx
		sxx += w[j] * dx * dx
		sxy += w[j] * dx * (y[j] - my)
	}
	if sxx <= 1e-12*sw {
		return my
	}
	return my + sxy/sxx*(at-mx)
}

// Interpolate evaluates the piecewise-linear curve through (xs, ys) at x.
// xs must be ascending. Outside the range the nearest end value is used.
func Interpolate(xs, ys []float64, x float64) float64 {
	n := len(xs)
	if n == 0 || math.IsNaN(x) {
		return math.NaN()
	}
	if x <= xs[0] {
		return ys[0]
	}
	if x >= xs[n-1] {
		return ys[n-1]
	}
	k := sort.SearchFloat64s(xs, x)
	if xs[k] == x {
		return ys[k]
	}
	x0, x1 := xs[k-1], xs[k]
	t := (x - x0) / (x1 - x0)
	return ys[k-1] + t*(ys[k]-ys[k-1])
}
