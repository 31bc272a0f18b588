package excel

import (
	"context"
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"metaboqc/domain/dataset"
	"metaboqc/domain/report"
	"metaboqc/internal"
	"metaboqc/ports"
)

// Writer exports datasets and report tables to XLSX or CSV.
type Writer struct {
	config ExcelConfig
	logger *internal.Logger
}

var (
	_ ports.DatasetWriter = (*Writer)(nil)
	_ ports.TableExporter = (*Writer)(nil)
)

// NewWriter creates an exporter.
func NewWriter(config ExcelConfig) *Writer {
	return &Writer{config: config, logger: internal.DefaultLogger.With("DataWriter")}
}

// Write exports d. A .csv path writes three files named after the sheets;
// any other path writes one workbook.
func (w *Writer) Write(ctx context.Context, d *dataset.Dataset, path string) error {
	start := time.Now()
	sheets := []struct {
		name string
		rows [][]any
	}{
		{w.config.SampleSheet, tableRows(d.Samples())},
		{w.config.FeatureSheet, tableRows(d.Features())},
		{w.config.IntensitySheet, intensityRows(d)},
	}

	if strings.EqualFold(filepath.Ext(path), ".csv") {
		base := strings.TrimSuffix(path, filepath.Ext(path))
		for _, s := range sheets {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := writeCSV(fmt.Sprintf("%s_%s.csv", base, s.name), s.rows); err != nil {
				return err
			}
		}
	} else {
		f := excelize.NewFile()
		defer f.Close()
		for i, s := range sheets {
			if err := writeSheet(f, i, s.name, s.rows); err != nil {
				return err
			}
		}
		if err := f.SaveAs(path); err != nil {
			return fmt.Errorf("save workbook: %w", err)
		}
	}
	w.logger.Info("Wrote %s to %s in %.2fms", d.Name(), path, float64(time.Since(start).Nanoseconds())/1e6)
	return nil
}

// CSVPaths returns the three files Write produces for a .csv path.
func (w *Writer) CSVPaths(path string) (samples, features, intensity string) {
	base := strings.TrimSuffix(path, filepath.Ext(path))
	return base + "_" + w.config.SampleSheet + ".csv",
		base + "_" + w.config.FeatureSheet + ".csv",
		base + "_" + w.config.IntensitySheet + ".csv"
}

// ExportTables writes every report table to its own sheet.
func (w *Writer) ExportTables(ctx context.Context, items *report.Items, path string) error {
	if len(items.Tables) == 0 {
		return nil
	}
	f := excelize.NewFile()
	defer f.Close()
	used := map[string]bool{}
	for i, t := range items.Tables {
		if err := ctx.Err(); err != nil {
			return err
		}
		rows := make([][]any, 0, len(t.Rows)+1)
		header := make([]any, len(t.Columns))
		for j, c := range t.Columns {
			header[j] = c
		}
		rows = append(rows, header)
		for _, r := range t.Rows {
			cells := make([]any, len(r))
			for j, v := range r {
				cells[j] = cellValue(v)
			}
			rows = append(rows, cells)
		}
		if err := writeSheet(f, i, sheetName(t.Name, used), rows); err != nil {
			return err
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	w.logger.Debug("Exported %d tables to %s", len(items.Tables), path)
	return nil
}

// writeSheet fills sheet index i. The default sheet of a new file is reused
// for the first one.
func writeSheet(f *excelize.File, i int, name string, rows [][]any) error {
	if i == 0 {
		if err := f.SetSheetName(f.GetSheetName(0), name); err != nil {
			return err
		}
	} else if _, err := f.NewSheet(name); err != nil {
		return err
	}
	for r, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, r+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(name, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", name, r+1, err)
		}
	}
	return nil
}

func writeCSV(path string, rows [][]any) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	cw := csv.NewWriter(file)
	for _, row := range rows {
		rec := make([]string, len(row))
		for j, v := range row {
			rec[j] = report.Cell(v)
			if f, ok := v.(float64); ok && math.IsNaN(f) {
				rec[j] = ""
			}
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func tableRows(t dataset.Table) [][]any {
	rows := make([][]any, 0, t.Rows()+1)
	header := make([]any, 0, len(t.Columns()))
	for _, c := range t.Columns() {
		header = append(header, c.Name)
	}
	rows = append(rows, header)
	for i := 0; i < t.Rows(); i++ {
		row := make([]any, 0, len(t.Columns()))
		for _, c := range t.Columns() {
			if c.Kind == dataset.KindFloat {
				row = append(row, cellValue(c.Floats[i]))
				continue
			}
			row = append(row, c.Text(i))
		}
		rows = append(rows, row)
	}
	return rows
}

func intensityRows(d *dataset.Dataset) [][]any {
	rows := make([][]any, 0, d.NSamples()+1)
	header := []any{dataset.ColSampleFileName}
	for _, n := range d.FeatureNames() {
		header = append(header, n)
	}
	rows = append(rows, header)
	x := d.Intensity()
	for i, name := range d.SampleNames() {
		row := make([]any, 0, d.NFeatures()+1)
		row = append(row, name)
		for j := 0; j < d.NFeatures(); j++ {
			row = append(row, cellValue(x.At(i, j)))
		}
		rows = append(rows, row)
	}
	return rows
}

// cellValue maps NaN to an empty cell and infinities to text.
func cellValue(v any) any {
	f, ok := v.(float64)
	if !ok {
		return v
	}
	switch {
	case math.IsNaN(f):
		return ""
	case math.IsInf(f, 0):
		return report.Cell(f)
	}
	return f
}

// sheetName fits a table name into the 31 character sheet limit, keeping
// names unique.
func sheetName(name string, used map[string]bool) string {
	base := strings.NewReplacer("/", "_", "\\", "_", "?", "", "*", "", "[", "(", "]", ")", ":", "-").Replace(name)
	if len(base) > 31 {
		base = base[:31]
	}
	out := base
	for k := 2; used[out]; k++ {
		suffix := fmt.Sprintf("~%d", k)
		out = base[:min(len(base), 31-len(suffix))] + suffix
	}
	used[out] = true
	return out
}
