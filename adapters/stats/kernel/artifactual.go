package kernel

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// ArtifactualParams configures the artifactual-peak filter.
type ArtifactualParams struct {
	DeltaMz          float64 // maximum m/z difference
	OverlapThreshold float64 // minimum elution overlap, percent
	CorrThreshold    float64 // minimum cross-sample correlation
	CorrMethod       string
}

// ArtifactualLink is one pair of features judged to be the same peak.
type ArtifactualLink struct {
	A, B        int
	DeltaMz     float64
	Overlap     float64
	Correlation float64
}

// ArtifactualResult is the outcome of the artifactual-peak filter.
type ArtifactualResult struct {
	Pass   []bool
	Links  []ArtifactualLink
	Groups [][]int // connected components with more than one member
}

// ElutionOverlap returns the percentage overlap of two elution windows
// centred on retention time with full width pw, relative to the narrower
// window. Missing or non-positive widths give 0.
func ElutionOverlap(rtA, pwA, rtB, pwB float64) float64 {
	if !(pwA > 0) || !(pwB > 0) || !IsFinite(rtA) || !IsFinite(rtB) {
		return 0
	}
	lo := math.Max(rtA-pwA/2, rtB-pwB/2)
	hi := math.Min(rtA+pwA/2, rtB+pwB/2)
	if hi <= lo {
		return 0
	}
	return 100 * (hi - lo) / math.Min(pwA, pwB)
}

// ArtifactualFilter links features that lie within DeltaMz of each other,
// overlap in elution by at least OverlapThreshold percent and correlate
// across the selected rows at or above CorrThreshold. Each connected group
// keeps only its highest mean-intensity member; ties keep the lower index.
// Features outside every group pass.
func ArtifactualFilter(x mat.Matrix, mz, rt, peakWidth []float64, rows []bool, p ArtifactualParams) ArtifactualResult {
	_, c := x.Dims()
	order := make([]int, 0, c)
	for j := 0; j < c; j++ {
		if IsFinite(mz[j]) {
			order = append(order, j)
		}
	}
	sort.SliceStable(order, func(a, b int) bool { return mz[order[a]] < mz[order[b]] })

	uf := newUnionFind(c)
	var links []ArtifactualLink
	cols := make(map[int][]float64)
	column := func(j int) []float64 {
		if v, ok := cols[j]; ok {
			return v
		}
		r, _ := x.Dims()
		v := make([]float64, 0, r)
		for i := 0; i < r; i++ {
			if rows == nil || rows[i] {
				v = append(v, x.At(i, j))
			}
		}
		cols[j] = v
		return v
	}

	for a := 0; a < len(order); a++ {
		i := order[a]
		for b := a + 1; b < len(order); b++ {
			j := order[b]
			dmz := mz[j] - mz[i]
			if dmz > p.DeltaMz {
				break
			}
			ov := ElutionOverlap(rt[i], peakWidth[i], rt[j], peakWidth[j])
			if ov < p.OverlapThreshold {
				continue
			}
			r := CorrelateVectors(column(i), column(j), p.CorrMethod)
			if !(r >= p.CorrThreshold) {
				continue
			}
			links = append(links, ArtifactualLink{A: i, B: j, DeltaMz: dmz, Overlap: ov, Correlation: r})
			uf.union(i, j)
		}
	}

	pass := make([]bool, c)
	for j := range pass {
		pass[j] = true
	}
	members := make(map[int][]int)
	for j := 0; j < c; j++ {
		root := uf.find(j)
		members[root] = append(members[root], j)
	}

	var groups [][]int
	for j := 0; j < c; j++ {
		g := members[j]
		if len(g) < 2 {
			continue
		}
		groups = append(groups, g)
		best, bestMean := g[0], math.Inf(-1)
		for _, f := range g {
			m := MeanOrNaN(column(f))
			if m > bestMean {
				best, bestMean = f, m
			}
		}
		for _, f := range g {
			pass[f] = f == best
		}
	}
	return ArtifactualResult{Pass: pass, Links: links, Groups: groups}
}

type unionFind struct {
	parent []int
}

func newUnionFind(n int) *unionFind {
	p := make([]int, n)
	for i := range p {
		p[i] = i
	}
	return &unionFind{parent: p}
}

func (u *unionFind) find(i int) int {
	for u.parent[i] != i {
		u.parent[i] = u.parent[u.parent[i]]
		i = u.parent[i]
	}
	return i
}

// union attaches the larger root under the smaller so a component's root is
// always its lowest index.
func (u *unionFind) union(a, b int) {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return
	}
	if ra < rb {
		u.parent[rb] = ra
	} else {
		u.parent[ra] = rb
	}
}
