package pca

import (
	"math"
	"slices"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"metaboqc/adapters/stats/kernel"
	"metaboqc/domain/dataset"
	"metaboqc/domain/sop"
)

// FieldClass tags how a metadata column is treated by the association
// screen.
type FieldClass string

const (
	ClassExcluded            FieldClass = "excluded"
	ClassDate                FieldClass = "date"
	ClassUniform             FieldClass = "uniform"
	ClassUniformBySampleType FieldClass = "uniformBySampleType"
	ClassUnique              FieldClass = "unique"
	ClassContinuous          FieldClass = "continuous"
	ClassCategorical         FieldClass = "categorical"
)

// Tested reports whether fields of this class are screened for association.
func (c FieldClass) Tested() bool {
	return c == ClassContinuous || c == ClassCategorical
}

// Field is the classification of one metadata column.
type Field struct {
	Name   string
	Class  FieldClass
	Levels int // distinct non-missing values
}

// Classify assigns a class to every column of the sample table. The result is
// sorted by field name.
func Classify(samples dataset.Table, sampleTypes []dataset.SampleType, cfg sop.PCA) []Field {
	excluded := make(map[string]bool, len(cfg.ExcludedFields))
	for _, name := range cfg.ExcludedFields {
		excluded[name] = true
	}
	out := make([]Field, 0, len(samples.Columns()))
	for _, c := range samples.Columns() {
		f := Field{Name: c.Name, Levels: levels(c)}
		f.Class = classify(c, f.Levels, sampleTypes, excluded[c.Name], cfg.MaxCategoricalLevels)
		out = append(out, f)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Name < out[b].Name })
	return out
}

func classify(c dataset.Column, nLevels int, sampleTypes []dataset.SampleType, excluded bool, maxLevels int) FieldClass {
	switch {
	case excluded:
		return ClassExcluded
	case c.Kind == dataset.KindTime:
		return ClassDate
	case nLevels <= 1:
		return ClassUniform
	case uniformByGroup(c, sampleTypes):
		return ClassUniformBySampleType
	case c.Kind == dataset.KindString && nLevels == present(c):
		return ClassUnique
	case c.Kind == dataset.KindFloat && nLevels > maxLevels:
		return ClassContinuous
	default:
		return ClassCategorical
	}
}

func levels(c dataset.Column) int {
	seen := map[string]bool{}
	for i := 0; i < c.Len(); i++ {
		if !c.Missing(i) {
			seen[c.Text(i)] = true
		}
	}
	return len(seen)
}

func present(c dataset.Column) int {
	n := 0
	for i := 0; i < c.Len(); i++ {
		if !c.Missing(i) {
			n++
		}
	}
	return n
}

func uniformByGroup(c dataset.Column, sampleTypes []dataset.SampleType) bool {
	if len(sampleTypes) != c.Len() {
		return false
	}
	values := map[dataset.SampleType]string{}
	for i := 0; i < c.Len(); i++ {
		if c.Missing(i) {
			continue
		}
		v := c.Text(i)
		if prev, ok := values[sampleTypes[i]]; ok && prev != v {
			return false
		}
		values[sampleTypes[i]] = v
	}
	return len(values) > 1
}

// Association is the outcome of testing one component against one field.
type Association struct {
	Field       string
	Class       FieldClass
	Component   int
	Test        string
	Statistic   float64 // Spearman rho or Kruskal-Wallis H
	PValue      float64
	N           int
	Groups      int
	Significant bool
}

// Tests reported in Association.Test.
const (
	TestSpearman      = "spearman"
	TestKruskalWallis = "kruskal-wallis"
)

// Associate screens every tested field against every component. Rows are
// ordered by field name then component.
func Associate(scores mat.Matrix, samples dataset.Table, fields []Field, cfg sop.PCA) []Association {
	n, k := scores.Dims()
	ordered := append([]Field(nil), fields...)
	sort.Slice(ordered, func(a, b int) bool { return ordered[a].Name < ordered[b].Name })

	var out []Association
	for _, f := range ordered {
		if !f.Class.Tested() {
			continue
		}
		c, err := samples.Column(f.Name)
		if err != nil || c.Len() != n {
			continue
		}
		for comp := 0; comp < k; comp++ {
			s := mat.Col(nil, comp, scores)
			var a Association
			if f.Class == ClassContinuous {
				a = spearman(s, c.Floats)
				a.Significant = math.Abs(a.Statistic) >= cfg.RThreshold
			} else {
				a = kruskalWallis(s, c)
				a.Significant = a.PValue <= cfg.KWThreshold
			}
			a.Field, a.Class, a.Component = f.Name, f.Class, comp
			out = append(out, a)
		}
	}
	return out
}

// SignificantFields returns the names of fields with at least one
// significant association, in name order.
func SignificantFields(rows []Association) []string {
	var out []string
	for _, r := range rows {
		if r.Significant && !slices.Contains(out, r.Field) {
			out = append(out, r.Field)
		}
	}
	return out
}

func spearman(scores, values []float64) Association {
	rho := kernel.CorrelateVectors(scores, values, sop.CorrSpearman)
	n := 0
	for i := range scores {
		if kernel.IsFinite(scores[i]) && kernel.IsFinite(values[i]) {
			n++
		}
	}
	a := Association{Test: TestSpearman, Statistic: rho, PValue: math.NaN(), N: n}
	switch {
	case math.IsNaN(rho) || n < 3:
	case math.Abs(rho) >= 1:
		a.PValue = 0
	default:
		t := rho * math.Sqrt(float64(n-2)/(1-rho*rho))
		a.PValue = 2 * distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(n - 2)}.Survival(math.Abs(t))
	}
	return a
}

// kruskalWallis runs the H-test over groups with at least three samples. The
// statistic is NaN when fewer than two such groups remain.
func kruskalWallis(scores []float64, c dataset.Column) Association {
	groups := map[string][]float64{}
	for i, s := range scores {
		if c.Missing(i) || !kernel.IsFinite(s) {
			continue
		}
		groups[c.Text(i)] = append(groups[c.Text(i)], s)
	}
	var keys []string
	for key, g := range groups {
		if len(g) >= 3 {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	a := Association{Test: TestKruskalWallis, Statistic: math.NaN(), PValue: math.NaN(), Groups: len(keys)}
	if len(keys) < 2 {
		return a
	}
	var all []float64
	var sizes []int
	for _, key := range keys {
		all = append(all, groups[key]...)
		sizes = append(sizes, len(groups[key]))
	}
	a.N = len(all)
	ranks := kernel.Ranks(all)
	nn := float64(len(all))

	var h float64
	offset := 0
	for _, size := range sizes {
		var sum float64
		for _, r := range ranks[offset : offset+size] {
			sum += r
		}
		h += sum * sum / float64(size)
		offset += size
	}
	h = 12/(nn*(nn+1))*h - 3*(nn+1)

	var ties float64
	for _, t := range kernel.TieGroups(all) {
		ft := float64(t)
		ties += ft*ft*ft - ft
	}
	correction := 1 - ties/(nn*nn*nn-nn)
	if correction <= 0 {
		return a
	}
	h /= correction
	a.Statistic = h
	a.PValue = distuv.ChiSquared{K: float64(len(keys) - 1)}.Survival(h)
	return a
}
