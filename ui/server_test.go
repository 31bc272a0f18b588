package ui

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metaboqc/adapters/report/html"
	"metaboqc/domain/report"
	"metaboqc/domain/sop"
	"metaboqc/ports"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// renderReports writes two reports for different datasets into a temporary
// output directory.
func renderReports(t *testing.T) (string, []*report.Items) {
	t.Helper()
	dir := t.TempDir()
	w, err := html.NewWriter(sop.Presentation{FigureWidth: 6, FigureHeight: 4, MaxTableRows: 10}, nil)
	require.NoError(t, err)

	summary := report.NewItems(report.KindSampleSummary, "plasma", sop.PlatformMS, "GenericMS")
	tbl := report.Table{Name: report.TableSampleSummary, Title: "Samples", Columns: []string{"Sample Type", "Total"}}
	tbl.Append("All", 12)
	summary.AddTable(tbl)

	nmr := report.NewItems(report.KindFinal, "urine", sop.PlatformNMR, "GenericNMRUrine")
	fig := report.Figure{Name: report.FigureLineWidth, Kind: report.FigureScatter, Title: "Line width"}
	fig.Series = []report.Series{{Name: "Study Sample", X: report.Floats{1, 2}, Y: report.Floats{0.8, 1.1}}}
	nmr.AddFigure(fig)

	for _, it := range []*report.Items{summary, nmr} {
		_, err := w.Write(context.Background(), it, dir)
		require.NoError(t, err)
	}
	return dir, []*report.Items{summary, nmr}
}

func newTestServer(t *testing.T, dir string) *Server {
	t.Helper()
	s, err := NewServer(html.NewIndex(dir), dir)
	require.NoError(t, err)
	return s
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestListReports(t *testing.T) {
	dir, _ := renderReports(t)
	s := newTestServer(t, dir)

	rec := get(t, s, "/api/reports")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Reports []ports.ReportEntry `json:"reports"`
		Count   int                 `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Count)

	rec = get(t, s, "/api/reports?dataset=urine")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, 1, body.Count)
	assert.Equal(t, report.KindFinal, body.Reports[0].Kind)
	assert.Equal(t, "urine_report_final.html", body.Reports[0].Path)

	rec = get(t, s, "/api/reports?kind=multivariate")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Zero(t, body.Count)
}

func TestGetReport(t *testing.T) {
	dir, items := renderReports(t)
	s := newTestServer(t, dir)

	rec := get(t, s, "/api/reports/"+items[0].ID.String())
	require.Equal(t, http.StatusOK, rec.Code)
	var got report.Items
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, items[0].ID, got.ID)
	_, ok := got.Table(report.TableSampleSummary)
	assert.True(t, ok)

	rec = get(t, s, "/api/reports/missing")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "NOT_FOUND")
}

func TestIndexPage(t *testing.T) {
	dir, _ := renderReports(t)
	s := newTestServer(t, dir)

	rec := get(t, s, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), `href="/reports/plasma_report_sample_summary.html"`)
	assert.Contains(t, rec.Body.String(), "sample summary")

	empty := newTestServer(t, t.TempDir())
	rec = get(t, empty, "/")
	assert.Contains(t, rec.Body.String(), "No reports have been rendered yet")
}

func TestBrowserServesReportTree(t *testing.T) {
	dir, _ := renderReports(t)
	s := newTestServer(t, dir)

	rec := get(t, s, "/reports/plasma_report_sample_summary.html")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Sample Summary")

	rec = get(t, s, "/reports/graphics/urine_report_final/"+report.FigureLineWidth+".json")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	for _, path := range []string{
		"/reports/notes.txt",
		"/reports/graphics/urine_report_final/lineWidth.svg",
		"/reports/other.html",
	} {
		assert.Equal(t, http.StatusNotFound, get(t, s, path).Code, path)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t, t.TempDir())

	rec := get(t, s, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = get(t, s, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestPlainName(t *testing.T) {
	for name, want := range map[string]bool{
		"a_report_final.html": true,
		"":                    false,
		"..":                  false,
		"../x.html":           false,
		`a\b.json`:            false,
	} {
		assert.Equal(t, want, plainName(name), name)
	}
}
