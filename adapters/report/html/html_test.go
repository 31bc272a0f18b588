package html

import (
	"bytes"
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metaboqc/domain/core"
	"metaboqc/domain/report"
	"metaboqc/domain/sop"
)

type recordingExporter struct {
	path   string
	tables int
}

func (r *recordingExporter) ExportTables(_ context.Context, items *report.Items, path string) error {
	r.path = path
	r.tables = len(items.Tables)
	return os.WriteFile(path, []byte("xlsx"), 0o644)
}

func presentation() sop.Presentation {
	return sop.Presentation{FigureFormat: "json", DPI: 100, FigureWidth: 8, FigureHeight: 5, HistBins: 10, MaxTableRows: 2}
}

func sampleItems() *report.Items {
	it := report.NewItems(report.KindFeatureSummary, "Urine RPOS", sop.PlatformMS, "GenericMS")
	it.Narrative = "Features **passing**: 12\n\n<script>alert(1)</script>"
	it.Set("featuresPassing", 12)
	it.Set("medianRSD", math.NaN())

	t := report.Table{Name: report.TableRSDByRole, Title: "RSD by role", Columns: []string{"Feature", "SP", "SS"}}
	t.Append("f1", 4.5, 20.0)
	t.Append("f2", math.Inf(1), 30.0)
	t.Append("f3", 8.0, 25.0)
	it.AddTable(t)

	fig := report.Figure{Name: report.FigureTIC, Kind: report.FigureScatter, Title: "TIC", XLabel: "Run Order", YLabel: "TIC"}
	fig.Series = []report.Series{{Name: "Study Sample", Color: "#1f77b4", X: report.Floats{1, 2, 3}, Y: report.Floats{10, math.NaN(), 12}, Labels: []string{"a", "b", "c"}}}
	fig.AddShape(report.Shape{Kind: "hline", Y: 11})
	fig.AddShape(report.Shape{Kind: "hline", Y: math.NaN()})
	it.AddFigure(fig)

	hist := report.Figure{Name: report.FigureRSDHistogram, Kind: report.FigureHistogram, Title: "RSD"}
	hist.Series = []report.Series{{Name: "SP", X: report.Floats{5, 15, 25}, Y: report.Floats{3, 1, 0}}}
	it.AddFigure(hist)
	return it
}

func TestWriteCreatesReportTree(t *testing.T) {
	dir := t.TempDir()
	exp := &recordingExporter{}
	w, err := NewWriter(presentation(), exp)
	require.NoError(t, err)

	items := sampleItems()
	path, err := w.Write(context.Background(), items, dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "Urine_RPOS_report_feature_summary.html"), path)

	html, err := os.ReadFile(path)
	require.NoError(t, err)
	doc := string(html)
	assert.Contains(t, doc, "<strong>passing</strong>")
	assert.NotContains(t, doc, "<script>")
	assert.Contains(t, doc, "<svg")
	assert.Contains(t, doc, `href="graphics/Urine_RPOS_report_feature_summary/tic.json"`)
	assert.Contains(t, doc, "1 further rows omitted")
	assert.Contains(t, doc, "<td>Inf</td>")

	assert.Equal(t, "graphics/Urine_RPOS_report_feature_summary/tic.json", items.Figures[0].Path)
	assert.Len(t, items.Figures[0].Shapes, 1)
	_, err = os.Stat(filepath.Join(dir, filepath.FromSlash(items.Figures[0].Path)))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "Urine_RPOS_report_feature_summary.json"))
	assert.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "Urine_RPOS_report_feature_summary.xlsx"), exp.path)
	assert.Equal(t, 1, exp.tables)
}

func TestWriteInlineHasNoPaths(t *testing.T) {
	w, err := NewWriter(presentation(), nil)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, w.WriteInline(context.Background(), sampleItems(), &buf))
	doc := buf.String()
	assert.True(t, strings.HasPrefix(doc, "<!DOCTYPE html>"))
	assert.Contains(t, doc, "Feature Summary")
	assert.NotContains(t, doc, "figure data")
}

func TestIndexListAndGet(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(presentation(), nil)
	require.NoError(t, err)

	first := sampleItems()
	_, err = w.Write(context.Background(), first, dir)
	require.NoError(t, err)
	second := report.NewItems(report.KindSampleSummary, "Urine RPOS", sop.PlatformMS, "GenericMS")
	second.CreatedAt = first.CreatedAt.Add(1)
	summary := report.Table{Name: report.TableSampleSummary, Columns: []string{"Role", "Total"}}
	summary.Append("All", 10)
	second.AddTable(summary)
	_, err = w.Write(context.Background(), second, dir)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "junk_report_x.json"), []byte("{"), 0o644))

	idx := NewIndex(dir)
	entries, err := idx.List(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, second.ID, entries[0].ID)
	assert.Equal(t, "Urine_RPOS_report_sample_summary.html", entries[0].Path)

	got, err := idx.Get(context.Background(), first.ID)
	require.NoError(t, err)
	assert.Equal(t, report.KindFeatureSummary, got.Kind)
	assert.Equal(t, "NaN", got.Values["medianRSD"])
	tic, ok := got.Figure(report.FigureTIC)
	require.True(t, ok)
	assert.True(t, math.IsNaN(tic.Series[0].Y[1]))

	_, err = idx.Get(context.Background(), core.NewReportID())
	assert.ErrorIs(t, err, core.ErrReportNotFound)
}

func TestRenderSVGShapes(t *testing.T) {
	f := report.Figure{Kind: report.FigureScatter, Title: "Scores <PC1>"}
	f.Series = []report.Series{{X: report.Floats{-1, 1}, Y: report.Floats{-1, 1}}}
	f.AddShape(report.Shape{Kind: "ellipse", Width: 2, Height: 1})
	svg := string(renderSVG(f, 4, 4))
	assert.Contains(t, svg, "<ellipse")
	assert.Contains(t, svg, "Scores &lt;PC1&gt;")

	empty := string(renderSVG(report.Figure{Kind: report.FigureLine}, 4, 4))
	assert.Contains(t, empty, "no data")

	heat := report.Figure{Kind: report.FigureHeatmap, Grid: &report.Grid{
		Rows: []string{"low", "high"}, Columns: []string{"b1"}, Values: []report.Floats{{0.1}, {math.NaN()}},
	}}
	assert.Equal(t, 2, strings.Count(string(renderSVG(heat, 4, 4)), "<rect"))
}

func TestFigureFile(t *testing.T) {
	assert.Equal(t, "multivariate__scores.json", figureFile("multivariate/scores"))
	assert.Equal(t, "a_b.json", figureFile("a b"))
}
