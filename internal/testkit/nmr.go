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

// NMROptions configures the NMR spectrum generator. Index lists name the
// spectra that should fail each check.
type NMROptions struct {
	Seed             int64
	Samples          int
	Step             float64 // ppm between points
	Miscalibrated    []int
	Broad            []int
	BadBaseline      []int
	MissingLineWidth []int
}

// metabolite peaks (ppm, height) shared by every spectrum
var nmrPeaks = [][2]float64{{1.33, 40}, {2.05, 15}, {3.03, 60}, {4.05, 20}, {7.55, 8}}

// NewNMR generates full-resolution spectra with a TSP reference peak at
// 0 ppm, a few metabolite resonances and residual water at 4.8 ppm.
func NewNMR(opts NMROptions) (*dataset.Dataset, error) {
	if opts.Seed == 0 {
		opts.Seed = 42
	}
	if opts.Samples == 0 {
		opts.Samples = 12
	}
	if opts.Step == 0 {
		opts.Step = 0.001
	}
	rng := rand.New(rand.NewSource(opts.Seed))
	is := func(list []int) map[int]bool {
		m := make(map[int]bool, len(list))
		for _, i := range list {
			m[i] = true
		}
		return m
	}
	miscal, broad, baseline, missing := is(opts.Miscalibrated), is(opts.Broad), is(opts.BadBaseline), is(opts.MissingLineWidth)

	const lo, hi = -2.0, 12.5
	n := int(math.Round((hi-lo)/opts.Step)) + 1
	ppm := make([]float64, n)
	for j := range ppm {
		ppm[j] = lo + float64(j)*opts.Step
	}

	x := mat.NewDense(opts.Samples, n, nil)
	var rows sampleRows
	lw := make([]float64, opts.Samples)
	start := time.Date(2024, 9, 2, 8, 0, 0, 0, time.UTC)
	for i := 0; i < opts.Samples; i++ {
		inj := injection{batch: 1, sampleType: dataset.StudySample, role: dataset.Assay, name: fmt.Sprintf("NMR_%03d", i+1), dilution: 100}
		if i%4 == 3 {
			inj.sampleType, inj.role = dataset.StudyPool, dataset.PrecisionReference
		}
		rows.add(inj, i+1, start)

		// half width at half maximum, ppm; 0.8e-3 ppm is 0.96 Hz at 600 MHz
		gamma := 0.0008
		lw[i] = 0.96 + 0.05*rng.Float64()
		if broad[i] {
			gamma = 0.002
			lw[i] = 2.4
		}
		if missing[i] {
			lw[i] = math.NaN()
		}
		shift := 0.0
		if miscal[i] {
			shift = 0.02
		}
		offset := 0.0
		if baseline[i] {
			offset = 1.0
		}
		row := x.RawRowView(i)
		for j, p := range ppm {
			v := lorentz(p, shift, gamma, 100) + lorentz(p, 4.8, 0.05, 30)
			for _, pk := range nmrPeaks {
				v += lorentz(p, pk[0]+shift, gamma, pk[1]*(1+0.2*rng.NormFloat64()))
			}
			row[j] = v + offset + 0.01*rng.NormFloat64()
		}
	}

	falses := make([]bool, opts.Samples)
	samples, err := rows.table(
		dataset.FloatColumn(dataset.ColLineWidth, lw),
		dataset.BoolColumn(dataset.ColCalibrationFail, falses),
		dataset.BoolColumn(dataset.ColBaselineFail, falses),
		dataset.BoolColumn(dataset.ColWaterPeakFail, falses),
		dataset.BoolColumn(dataset.ColSolventPeakFail, falses),
	)
	if err != nil {
		return nil, err
	}
	features, err := dataset.NewTable(n, dataset.FloatColumn(dataset.ColPPM, ppm))
	if err != nil {
		return nil, err
	}
	s, err := sop.Default("GenericNMRUrine")
	if err != nil {
		return nil, err
	}
	return dataset.New(dataset.Spec{
		Name:         "Synthetic NMR",
		Platform:     sop.PlatformNMR,
		VariableType: dataset.Spectral,
		Intensity:    x,
		Samples:      samples,
		Features:     features,
		SOP:          s,
	})
}

func lorentz(p, centre, gamma, height float64) float64 {
	d := (p - centre) / gamma
	return height / (1 + d*d)
}
