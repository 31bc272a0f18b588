package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metaboqc/adapters/excel"
	apperrors "metaboqc/internal/errors"
	"metaboqc/internal/testkit"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("QC_SOP", "GenericMS")
	t.Setenv("QC_OUTPUT_DIR", t.TempDir())
	t.Setenv("QC_CATALOGUE_DSN", "")

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeWorkbook(t *testing.T) string {
	t.Helper()
	d := testkit.MSDataset(t, testkit.MSOptions{NoisyFeatures: []int{0}})
	path := filepath.Join(t.TempDir(), "plasma.xlsx")
	require.NoError(t, excel.NewWriter(excel.DefaultExcelConfig()).Write(context.Background(), d, path))
	return path
}

func TestReportWritesRequestedKinds(t *testing.T) {
	workbook := writeWorkbook(t)
	outDir := t.TempDir()

	out, err := execute(t, "report", "--workbook", workbook, "-o", outDir, "--kind", "sample_summary,final", "--no-pca")
	require.NoError(t, err, out)

	for _, name := range []string{
		"plasma_report_sample_summary.html",
		"plasma_report_sample_summary.json",
		"plasma_report_final.html",
		"plasma_report_final.xlsx",
	} {
		_, err := os.Stat(filepath.Join(outDir, name))
		assert.NoError(t, err, name)
	}
	assert.Contains(t, out, "final")
}

func TestReportToStdout(t *testing.T) {
	workbook := writeWorkbook(t)

	out, err := execute(t, "report", "--workbook", workbook, "--kind", "sample_summary", "--stdout", "--no-pca")
	require.NoError(t, err)
	assert.Contains(t, out, "<html")
	assert.Contains(t, out, "Sample Summary")

	_, err = execute(t, "report", "--workbook", workbook, "--stdout", "--no-pca")
	assert.ErrorContains(t, err, "exactly one")

	_, err = execute(t, "report", "--workbook", workbook, "--kind", "bogus", "--no-pca")
	assert.ErrorContains(t, err, "unknown report kind")
}

func TestCommandsRequireInput(t *testing.T) {
	for _, name := range []string{"report", "correct", "select", "merge-loq", "nmr-qc", "pca"} {
		_, err := execute(t, name, "--samples", "s.csv")
		assert.ErrorContains(t, err, "--workbook", name)
		assert.Equal(t, apperrors.CodeInvalidInput, apperrors.GetCode(err), name)
	}
}

func TestSelectWritesFilteredDataset(t *testing.T) {
	workbook := writeWorkbook(t)
	outDir := t.TempDir()

	out, err := execute(t, "select", "--workbook", workbook, "-o", outDir)
	require.NoError(t, err)
	assert.Contains(t, out, "features pass")
	_, err = os.Stat(filepath.Join(outDir, "plasma_selected.xlsx"))
	assert.NoError(t, err)
}

func TestCatalogueImportAndLookup(t *testing.T) {
	dir := t.TempDir()
	lib := filepath.Join(dir, "library.csv")
	require.NoError(t, os.WriteFile(lib, []byte(
		"Name,Formula,Adduct,m/z,Retention Time,Ionisation\n"+
			"Creatinine,C4H7N3O,[M+H]+,114.0662,0.62,POS\n"+
			"Hippuric acid,C9H9NO3,[M-H]-,178.0510,2.91,NEG\n"), 0o644))
	dsn := "sqlite://" + filepath.Join(dir, "compounds.db")

	out, err := execute(t, "catalogue", "import", lib, "--catalogue", dsn)
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 2 of 2 compounds (2 in catalogue)")

	out, err = execute(t, "catalogue", "lookup", "114.0663", "--ionisation", "POS", "--catalogue", dsn)
	require.NoError(t, err)
	assert.Contains(t, out, "Creatinine")

	out, err = execute(t, "catalogue", "status", "--catalogue", dsn)
	require.NoError(t, err)
	assert.Contains(t, out, "applied")
	assert.Contains(t, out, "2 compounds")

	_, err = execute(t, "catalogue", "status")
	assert.ErrorContains(t, err, "no catalogue configured")
	assert.Equal(t, apperrors.CodeValidationError, apperrors.GetCode(err))
}
