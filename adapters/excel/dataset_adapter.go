package excel

import (
	"context"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"

	"metaboqc/adapters/datareadiness/coercer"
	"metaboqc/domain/core"
	"metaboqc/domain/dataset"
	"metaboqc/domain/sop"
	"metaboqc/internal"
	"metaboqc/ports"
)

// DatasetAdapter imports datasets from workbooks or per-table CSV/XLSX files.
type DatasetAdapter struct {
	config  ExcelConfig
	coercer *coercer.TypeCoercer
	logger  *internal.Logger
}

var _ ports.DatasetReader = (*DatasetAdapter)(nil)

// NewDatasetAdapter creates a dataset importer.
func NewDatasetAdapter(config ExcelConfig) *DatasetAdapter {
	return &DatasetAdapter{
		config:  config,
		coercer: coercer.NewTypeCoercer(config.CoercionConfig),
		logger:  internal.DefaultLogger.With("DataReader"),
	}
}

// Read imports the three tables named by src and builds a dataset.
func (a *DatasetAdapter) Read(ctx context.Context, src ports.DatasetSource) (*dataset.Dataset, error) {
	start := time.Now()
	samplesRaw, featuresRaw, intensityRaw, err := a.readRaw(ctx, src)
	if err != nil {
		return nil, err
	}

	samples, err := a.coercer.Table(samplesRaw.Headers, samplesRaw.Rows)
	if err != nil {
		return nil, fmt.Errorf("sample metadata: %w", err)
	}
	features, err := a.coercer.Table(featuresRaw.Headers, featuresRaw.Rows)
	if err != nil {
		return nil, fmt.Errorf("feature metadata: %w", err)
	}
	x, err := a.intensity(intensityRaw, samples, features)
	if err != nil {
		return nil, err
	}

	name := src.Name
	if name == "" {
		name = "dataset"
	}
	d, err := dataset.New(dataset.Spec{
		Name:         name,
		Platform:     src.Platform,
		VariableType: variableTypeFor(src.Platform),
		Intensity:    x,
		Samples:      samples,
		Features:     features,
		SOP:          src.SOP,
	})
	if err != nil {
		return nil, err
	}
	a.logger.Info("Imported %s: %d samples x %d features in %.2fms", name, d.NSamples(), d.NFeatures(), float64(time.Since(start).Nanoseconds())/1e6)
	return d, nil
}

func (a *DatasetAdapter) readRaw(ctx context.Context, src ports.DatasetSource) (samples, features, intensity *ExcelData, err error) {
	type part struct {
		path, sheet string
		out         **ExcelData
	}
	var parts []part
	if src.Workbook != "" {
		parts = []part{
			{src.Workbook, a.config.SampleSheet, &samples},
			{src.Workbook, a.config.FeatureSheet, &features},
			{src.Workbook, a.config.IntensitySheet, &intensity},
		}
	} else {
		if src.Samples == "" || src.Features == "" || src.Intensity == "" {
			return nil, nil, nil, core.NewPreconditionError("import", "either a workbook or all three table files are required")
		}
		parts = []part{
			{src.Samples, "", &samples},
			{src.Features, "", &features},
			{src.Intensity, "", &intensity},
		}
	}
	for _, p := range parts {
		if err := ctx.Err(); err != nil {
			return nil, nil, nil, err
		}
		data, err := NewDataReader(p.path).ReadSheet(p.sheet)
		if err != nil {
			return nil, nil, nil, err
		}
		*p.out = data
	}
	return samples, features, intensity, nil
}

// intensity builds the matrix. When the first header is Sample File Name the
// rows are matched to the sample table by name; when the remaining headers
// are feature names the columns are matched likewise. Otherwise order is
// positional.
func (a *DatasetAdapter) intensity(raw *ExcelData, samples, features dataset.Table) (*mat.Dense, error) {
	ns, nf := samples.Rows(), features.Rows()
	if ns == 0 || nf == 0 {
		return nil, nil
	}
	headers := raw.Headers
	rows := raw.Rows

	rowOf := make([]int, ns)
	first := 0
	if len(headers) > 0 && headers[0] == dataset.ColSampleFileName {
		first = 1
		names, err := samples.Strings(dataset.ColSampleFileName)
		if err != nil {
			return nil, err
		}
		byName := make(map[string]int, len(rows))
		for i, row := range rows {
			if len(row) > 0 {
				byName[row[0]] = i
			}
		}
		for i, n := range names {
			r, ok := byName[n]
			if !ok {
				return nil, core.NewSchemaError("intensity", fmt.Sprintf("no intensity row for sample %q", n))
			}
			rowOf[i] = r
		}
	} else {
		if len(rows) != ns {
			return nil, fmt.Errorf("%w: intensity has %d rows for %d samples", core.ErrShapeMismatch, len(rows), ns)
		}
		for i := range rowOf {
			rowOf[i] = i
		}
	}

	valueHeaders := headers[first:]
	colOf := make([]int, nf)
	matched := false
	if featureNames, err := features.Strings(dataset.ColFeatureName); err == nil && len(valueHeaders) >= nf {
		byName := make(map[string]int, len(valueHeaders))
		for j, h := range valueHeaders {
			byName[h] = j
		}
		matched = len(byName) == len(valueHeaders)
		for j, n := range featureNames {
			if !matched {
				break
			}
			c, ok := byName[n]
			if !ok {
				matched = false
				break
			}
			colOf[j] = c
		}
	}
	if !matched {
		if len(valueHeaders) != nf {
			return nil, fmt.Errorf("%w: intensity has %d columns for %d features", core.ErrShapeMismatch, len(valueHeaders), nf)
		}
		for j := range colOf {
			colOf[j] = j
		}
	}

	x := mat.NewDense(ns, nf, nil)
	for i, r := range rowOf {
		row := rows[r]
		for j, c := range colOf {
			cell := ""
			if first+c < len(row) {
				cell = row[first+c]
			}
			v := math.NaN()
			if !a.coercer.IsMissing(cell) {
				f, ok := a.coercer.ParseFloat(cell)
				if !ok {
					return nil, core.NewSchemaError("intensity", fmt.Sprintf("row %d column %d: cannot read %q as a number", r+2, first+c+1, cell))
				}
				v = f
			}
			x.Set(i, j, v)
		}
	}
	return x, nil
}

func variableTypeFor(p sop.Platform) dataset.VariableType {
	if p == sop.PlatformNMR {
		return dataset.Spectral
	}
	return dataset.Discrete
}
