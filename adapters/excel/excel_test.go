package excel

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metaboqc/domain/core"
	"metaboqc/domain/dataset"
	"metaboqc/domain/report"
	"metaboqc/domain/sop"
	"metaboqc/internal/testkit"
	"metaboqc/ports"
)

func assertSameDataset(t *testing.T, want, got *dataset.Dataset) {
	t.Helper()
	require.Equal(t, want.NSamples(), got.NSamples())
	require.Equal(t, want.NFeatures(), got.NFeatures())
	assert.Equal(t, want.SampleNames(), got.SampleNames())
	assert.Equal(t, want.FeatureNames(), got.FeatureNames())
	assert.Equal(t, want.SampleTypes(), got.SampleTypes())
	assert.Equal(t, want.AssayRoles(), got.AssayRoles())

	wx, gx := want.Intensity(), got.Intensity()
	for i := 0; i < want.NSamples(); i++ {
		for j := 0; j < want.NFeatures(); j++ {
			w, g := wx.At(i, j), gx.At(i, j)
			if math.IsNaN(w) {
				assert.True(t, math.IsNaN(g), "cell %d,%d", i, j)
				continue
			}
			assert.Equal(t, w, g, "cell %d,%d", i, j)
		}
	}
	wantRO, err := want.SampleFloats(dataset.ColRunOrder)
	require.NoError(t, err)
	gotRO, err := got.SampleFloats(dataset.ColRunOrder)
	require.NoError(t, err)
	assert.Equal(t, wantRO, gotRO)
}

func TestWorkbookRoundTrip(t *testing.T) {
	ctx := context.Background()
	d := testkit.MSDataset(t, testkit.DefaultMSOptions())
	path := filepath.Join(t.TempDir(), "study.xlsx")

	cfg := DefaultExcelConfig()
	require.NoError(t, NewWriter(cfg).Write(ctx, d, path))

	got, err := NewDatasetAdapter(cfg).Read(ctx, ports.DatasetSource{Name: "study", Platform: sop.PlatformMS, Workbook: path})
	require.NoError(t, err)
	assertSameDataset(t, d, got)
}

func TestCSVRoundTrip(t *testing.T) {
	ctx := context.Background()
	d := testkit.MSDataset(t, testkit.DefaultMSOptions())
	path := filepath.Join(t.TempDir(), "study.csv")

	w := NewWriter(DefaultExcelConfig())
	require.NoError(t, w.Write(ctx, d, path))
	samples, features, intensity := w.CSVPaths(path)
	for _, p := range []string{samples, features, intensity} {
		_, err := os.Stat(p)
		require.NoError(t, err)
	}

	got, err := NewDatasetAdapter(DefaultExcelConfig()).Read(ctx, ports.DatasetSource{
		Platform:  sop.PlatformMS,
		Samples:   samples,
		Features:  features,
		Intensity: intensity,
	})
	require.NoError(t, err)
	assertSameDataset(t, d, got)
}

func TestReadMatchesIntensityRowsByName(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
		return p
	}
	samples := write("s.csv", "Sample File Name,Sample ID,SampleType,AssayRole,Run Order,Acquired Time,Batch,Dilution,Detector,Correction Batch\n"+
		"a,a,StudySample,Assay,1,2024-01-01 10:00:00,1,100,-300,1\n"+
		"b,b,StudyPool,PrecisionReference,2,2024-01-01 10:15:00,1,100,-300,1\n")
	features := write("f.csv", "Feature Name,m/z,Retention Time\nf1,100.1,1.2\nf2,200.2,3.4\n")
	intensity := write("x.csv", "Sample File Name,f2,f1\nb,4,3\na,2,1\n")

	d, err := NewDatasetAdapter(DefaultExcelConfig()).Read(context.Background(), ports.DatasetSource{
		Platform: sop.PlatformMS, Samples: samples, Features: features, Intensity: intensity,
	})
	require.NoError(t, err)
	x := d.Intensity()
	assert.Equal(t, []float64{1, 2, 3, 4}, []float64{x.At(0, 0), x.At(0, 1), x.At(1, 0), x.At(1, 1)})

	missing := write("x2.csv", "Sample File Name,f1,f2\na,1,2\n")
	_, err = NewDatasetAdapter(DefaultExcelConfig()).Read(context.Background(), ports.DatasetSource{
		Platform: sop.PlatformMS, Samples: samples, Features: features, Intensity: missing,
	})
	assert.ErrorIs(t, err, core.ErrSchema)

	_, err = NewDatasetAdapter(DefaultExcelConfig()).Read(context.Background(), ports.DatasetSource{Platform: sop.PlatformMS, Samples: samples})
	assert.ErrorIs(t, err, core.ErrPrecondition)
}

func TestExportTables(t *testing.T) {
	items := report.NewItems(report.KindSampleSummary, "study", sop.PlatformMS, "GenericMS")
	tbl := report.Table{Name: report.TableSampleSummary, Columns: []string{"Role", "Total", "RSD"}}
	tbl.Append("Study Sample", 10, math.NaN())
	items.AddTable(tbl)
	items.AddTable(report.Table{Name: "a/very/long/table/name/that/needs/truncating", Columns: []string{"x"}})

	path := filepath.Join(t.TempDir(), "out", "tables.xlsx")
	require.NoError(t, NewWriter(DefaultExcelConfig()).ExportTables(context.Background(), items, path))

	r := NewDataReader(path)
	names, err := r.SheetNames()
	require.NoError(t, err)
	require.Len(t, names, 2)
	assert.Equal(t, report.TableSampleSummary, names[0])
	assert.LessOrEqual(t, len(names[1]), 31)

	data, err := r.ReadSheet(report.TableSampleSummary)
	require.NoError(t, err)
	assert.Equal(t, []string{"Role", "Total", "RSD"}, data.Headers)
	assert.Equal(t, "Study Sample", data.Rows[0][0])
	assert.Equal(t, "10", data.Rows[0][1])
}

func TestSheetNameUnique(t *testing.T) {
	used := map[string]bool{}
	a := sheetName("x", used)
	b := sheetName("x", used)
	assert.Equal(t, "x", a)
	assert.Equal(t, "x~2", b)
}
