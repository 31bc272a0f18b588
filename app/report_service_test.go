package app

import (
	"bytes"
	"context"
	"io"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metaboqc/domain/compound"
	"metaboqc/domain/core"
	"metaboqc/domain/dataset"
	"metaboqc/domain/report"
	"metaboqc/domain/sop"
	"metaboqc/internal/testkit"
)

type fakeWriter struct {
	written []*report.Items
	inline  int
}

func (w *fakeWriter) Write(_ context.Context, items *report.Items, outputDir string) (string, error) {
	w.written = append(w.written, items)
	return outputDir + "/" + string(items.Kind) + ".html", nil
}

func (w *fakeWriter) WriteInline(_ context.Context, items *report.Items, out io.Writer) error {
	w.inline++
	_, err := io.WriteString(out, items.Title)
	return err
}

// fakeCatalogue matches any query within 1 ppm of one of its entries.
type fakeCatalogue struct {
	entries []compound.Compound
	queries int
}

func (c *fakeCatalogue) Lookup(_ context.Context, q compound.Query) ([]compound.Match, error) {
	c.queries++
	var out []compound.Match
	lo, hi := q.MZBounds()
	for _, e := range c.entries {
		if e.MZ >= lo && e.MZ <= hi {
			out = append(out, compound.NewMatch(e, q))
		}
	}
	return out, nil
}

func (c *fakeCatalogue) Import(_ context.Context, cs []compound.Compound) (int, error) {
	c.entries = append(c.entries, cs...)
	return len(cs), nil
}

func (c *fakeCatalogue) Count(context.Context) (int, error) { return len(c.entries), nil }

func msRun(t *testing.T) *RunResult {
	t.Helper()
	d := testkit.MSDataset(t, testkit.MSOptions{NoisyFeatures: []int{0}})
	res, err := NewQCService(1).Run(context.Background(), d, DefaultPipelineOptions(sop.PlatformMS))
	require.NoError(t, err)
	return res
}

func TestBuildMSReports(t *testing.T) {
	run := msRun(t)
	svc := NewReportService(&fakeWriter{}, nil, AnnotationOptions{})

	assert.Equal(t, []report.Kind{
		report.KindSampleSummary, report.KindCorrection, report.KindFeatureSummary, report.KindMultivariate, report.KindFinal,
	}, svc.Available(run))

	for _, kind := range svc.Available(run) {
		t.Run(string(kind), func(t *testing.T) {
			it, err := svc.Build(context.Background(), kind, run)
			require.NoError(t, err)
			assert.NoError(t, report.Validate(it))
			assert.Equal(t, run.Dataset.Name(), it.Dataset)
			assert.NotEmpty(t, it.Narrative)
		})
	}

	_, err := svc.Build(context.Background(), report.KindNMR, run)
	assert.ErrorIs(t, err, core.ErrPrecondition)
	_, err = svc.Build(context.Background(), report.KindTargeted, run)
	assert.ErrorIs(t, err, core.ErrPrecondition)
}

func TestFinalReportMergesParts(t *testing.T) {
	run := msRun(t)
	svc := NewReportService(&fakeWriter{}, nil, AnnotationOptions{})
	it, err := svc.Build(context.Background(), report.KindFinal, run)
	require.NoError(t, err)

	for _, name := range []string{
		"sample_summary/" + report.TableSampleSummary,
		"correction_assessment/" + report.TableCorrectionRSD,
		"feature_summary/" + report.TableFeatureSelection,
		"multivariate/" + report.TableExplainedVariance,
	} {
		_, ok := it.Table(name)
		assert.True(t, ok, name)
	}
	_, ok := it.Figure("multivariate/" + report.FigureScores)
	assert.True(t, ok)
	assert.Equal(t, run.Selection.Passing(), it.Values["features"])
	assert.Contains(t, it.Narrative, "## Feature Summary")
}

func TestSampleSummaryCountsExclusions(t *testing.T) {
	d := testkit.MSDataset(t, testkit.MSOptions{})
	n := d.NSamples()
	mask := d.SampleMask()
	mask[0], mask[1] = false, false
	d, err := d.WithMasks(mask, nil)
	require.NoError(t, err)
	d = d.ApplyMasks("failed injection")

	mask = d.SampleMask()
	mask[0] = false
	d, err = d.WithMasks(mask, nil)
	require.NoError(t, err)

	it := BuildSampleSummary(d)
	require.NoError(t, report.Validate(it))
	summary, ok := it.Table(report.TableSampleSummary)
	require.True(t, ok)
	assert.Equal(t, []any{"All", n, 1, 2, 3, 0}, summary.Rows[0])

	total := 0
	for _, row := range summary.Rows[1:] {
		total += row[1].(int)
	}
	assert.Equal(t, n, total)

	details, ok := it.Table(report.TableExclusions)
	require.True(t, ok)
	require.Len(t, details.Rows, 3)
	assert.Equal(t, "Excluded", details.Rows[0][2])
	assert.Equal(t, "failed injection", details.Rows[0][3])
	assert.Equal(t, "Marked for Exclusion", details.Rows[2][2])
	assert.Equal(t, 2, it.Values["samplesExcluded"])
}

func TestFeatureSummaryAnnotatesPassingFeatures(t *testing.T) {
	run := msRun(t)
	d := run.Dataset
	mz, err := d.FeatureFloats(dataset.ColMZ)
	require.NoError(t, err)

	target := -1
	for j, p := range run.Selection.Pass {
		if p {
			target = j
			break
		}
	}
	require.GreaterOrEqual(t, target, 0)

	cat := &fakeCatalogue{entries: []compound.Compound{
		{Name: "Target", Adduct: "[M+H]+", MZ: mz[target], RetentionTime: math.NaN()},
		{Name: "Noisy", Adduct: "[M+H]+", MZ: mz[0]},
	}}
	svc := NewReportService(&fakeWriter{}, cat, AnnotationOptions{Ionisation: compound.Positive, PPM: 1, RTWindow: 0.1})
	it, err := svc.Build(context.Background(), report.KindFeatureSummary, run)
	require.NoError(t, err)

	assert.Equal(t, run.Selection.Passing(), cat.queries)
	annotations, ok := it.Table(report.TableCompounds)
	require.True(t, ok)
	require.Len(t, annotations.Rows, 1)
	assert.Equal(t, d.FeatureNames()[target], annotations.Rows[0][0])
	assert.Equal(t, "Target", annotations.Rows[0][3])
	assert.Equal(t, 1, it.Values["featuresAnnotated"])
}

func TestFeatureSummaryWithoutSelection(t *testing.T) {
	d := testkit.MSDataset(t, testkit.MSOptions{})
	res, err := NewQCService(1).Run(context.Background(), d, PipelineOptions{})
	require.NoError(t, err)
	assert.Nil(t, res.Selection)

	it, err := NewReportService(&fakeWriter{}, nil, AnnotationOptions{}).Build(context.Background(), report.KindFeatureSummary, res)
	require.NoError(t, err)
	sel, ok := it.Table(report.TableFeatureSelection)
	require.True(t, ok)
	assert.Equal(t, "Passing all gates", sel.Rows[len(sel.Rows)-1][0])
	assert.Equal(t, d.FeatureMask(), res.Dataset.FeatureMask())
}

func TestCorrectionAssessmentAfterFailure(t *testing.T) {
	d := testkit.MSDataset(t, testkit.MSOptions{})
	failed, err := d.WithCorrectionFailed("no study pools")
	require.NoError(t, err)

	it := BuildCorrectionAssessment(d, failed, nil)
	require.NoError(t, report.Validate(it))
	rsd, ok := it.Table(report.TableCorrectionRSD)
	require.True(t, ok)
	require.NotEmpty(t, rsd.Rows)
	assert.True(t, math.IsNaN(rsd.Rows[0][2].(float64)))
	assert.Equal(t, []string{"batch correction failed: no study pools"}, it.Warnings)
}

func TestNMRAndTargetedReports(t *testing.T) {
	svc := NewReportService(&fakeWriter{}, nil, AnnotationOptions{})
	ctx := context.Background()

	nmr := testkit.NMRDataset(t, testkit.NMROptions{Broad: []int{2}, MissingLineWidth: []int{5}})
	res, err := NewQCService(1).Run(ctx, nmr, PipelineOptions{ExcludeNMRFailures: true})
	require.NoError(t, err)
	it, err := svc.Build(ctx, report.KindNMR, res)
	require.NoError(t, err)
	failures, _ := it.Table(report.TableNMRFailures)
	assert.Equal(t, []any{dataset.ColLineWidthFail, 1, true}, failures.Rows[1])
	assert.Len(t, it.Warnings, 1)
	_, err = svc.Build(ctx, report.KindFeatureSummary, res)
	assert.ErrorIs(t, err, core.ErrWrongPlatform)

	targeted := testkit.TargetedDataset(t, testkit.TargetedOptions{Crossed: []int{0}})
	res, err = NewQCService(1).Run(ctx, targeted, PipelineOptions{})
	require.NoError(t, err)
	it, err = svc.Build(ctx, report.KindTargeted, res)
	require.NoError(t, err)
	assert.Equal(t, 1, it.Values["featuresDemoted"])
	merged, _ := it.Table(report.TableLOQ)
	assert.Contains(t, merged.Columns, dataset.LLOQBatchColumn(1))
	assert.Equal(t, dataset.Monitored.String(), merged.Rows[0][1])
}

func TestGenerate(t *testing.T) {
	run := msRun(t)
	w := &fakeWriter{}
	svc := NewReportService(w, nil, AnnotationOptions{})
	ctx := context.Background()

	path, err := svc.Generate(ctx, report.KindSampleSummary, run, "out", nil)
	require.NoError(t, err)
	assert.Equal(t, "out/sample_summary.html", path)
	require.Len(t, w.written, 1)

	var buf bytes.Buffer
	path, err = svc.Generate(ctx, report.KindMultivariate, run, "", &buf)
	require.NoError(t, err)
	assert.Empty(t, path)
	assert.Equal(t, "Multivariate Report", buf.String())
	assert.Equal(t, 1, w.inline)

	_, err = svc.Generate(ctx, report.KindSampleSummary, run, "", nil)
	assert.ErrorIs(t, err, core.ErrConfiguration)
	_, err = svc.Build(ctx, report.Kind("nope"), run)
	assert.ErrorIs(t, err, core.ErrConfiguration)
}
