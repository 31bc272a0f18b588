package testkit

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"gonum.org/v1/gonum/mat"

	"metaboqc/domain/dataset"
	"metaboqc/domain/sop"
)

// TargetedOptions configures the targeted MS generator.
type TargetedOptions struct {
	Seed         int64
	Batches      int
	StudySamples int // per batch
	Features     int
	Crossed      []int // features whose per-batch limits leave no quantifiable range
}

// NewTargeted generates a multi-batch targeted dataset carrying per-batch
// LLOQ/ULOQ columns.
func NewTargeted(opts TargetedOptions) (*dataset.Dataset, error) {
	if opts.Seed == 0 {
		opts.Seed = 42
	}
	if opts.Batches == 0 {
		opts.Batches = 2
	}
	if opts.StudySamples == 0 {
		opts.StudySamples = 10
	}
	if opts.Features == 0 {
		opts.Features = 6
	}
	rng := rand.New(rand.NewSource(opts.Seed))
	start := time.Date(2024, 5, 6, 8, 0, 0, 0, time.UTC)
	crossed := make(map[int]bool)
	for _, j := range opts.Crossed {
		crossed[j] = true
	}

	var rows sampleRows
	var data []float64
	order := 0
	for b := 1; b <= opts.Batches; b++ {
		for k := 0; k < opts.StudySamples+2; k++ {
			inj := injection{batch: b, dilution: 100, sampleType: dataset.StudySample, role: dataset.Assay, name: fmt.Sprintf("B%d_SS%02d", b, k+1)}
			if k%6 == 0 {
				inj.sampleType, inj.role, inj.name = dataset.StudyPool, dataset.PrecisionReference, fmt.Sprintf("B%d_SP%02d", b, k/6+1)
			}
			order++
			rows.add(inj, order, start)
			for j := 0; j < opts.Features; j++ {
				data = append(data, math.Exp(math.Log(10)+0.8*rng.NormFloat64()))
			}
		}
	}
	samples, err := rows.table()
	if err != nil {
		return nil, err
	}

	names := make([]string, opts.Features)
	units := make([]string, opts.Features)
	quant := make([]string, opts.Features)
	calib := make([]string, opts.Features)
	for j := range names {
		names[j] = fmt.Sprintf("Analyte%02d", j+1)
		units[j] = "uM"
		quant[j] = dataset.QuantOwnLabeledAnalogue.String()
		calib[j] = dataset.BackcalculatedIS.String()
	}
	quant[0], calib[0], names[0] = dataset.IS.String(), dataset.NoCalibration.String(), "IS01"

	cols := []dataset.Column{
		dataset.StringColumn(dataset.ColFeatureName, names),
		dataset.StringColumn(dataset.ColUnit, units),
		dataset.StringColumn(dataset.ColQuantificationType, quant),
		dataset.StringColumn(dataset.ColCalibrationMethod, calib),
	}
	lloq0 := make([]float64, opts.Features)
	uloq0 := make([]float64, opts.Features)
	for b := 1; b <= opts.Batches; b++ {
		lloq := make([]float64, opts.Features)
		uloq := make([]float64, opts.Features)
		for j := range lloq {
			lloq[j] = float64(b)
			uloq[j] = 100 - 10*float64(b-1)
			if crossed[j] && b == opts.Batches {
				lloq[j] = 90
				uloq[j] = 50
			}
		}
		if b == 1 {
			copy(lloq0, lloq)
			copy(uloq0, uloq)
		}
		cols = append(cols,
			dataset.FloatColumn(dataset.LLOQBatchColumn(b), lloq),
			dataset.FloatColumn(dataset.ULOQBatchColumn(b), uloq))
	}
	cols = append(cols,
		dataset.FloatColumn(dataset.ColLLOQ, lloq0),
		dataset.FloatColumn(dataset.ColULOQ, uloq0))
	features, err := dataset.NewTable(opts.Features, cols...)
	if err != nil {
		return nil, err
	}

	s, err := sop.Default("TargetedMS")
	if err != nil {
		return nil, err
	}
	return dataset.New(dataset.Spec{
		Name:         "Synthetic targeted",
		Platform:     sop.PlatformTargetedMS,
		VariableType: dataset.Discrete,
		Intensity:    mat.NewDense(len(rows.names), opts.Features, data),
		Samples:      samples,
		Features:     features,
		SOP:          s,
	})
}
