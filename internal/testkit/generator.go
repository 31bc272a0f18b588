// Package testkit generates deterministic synthetic MS, targeted MS and NMR
// datasets for tests and demonstrations.
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

// MSOptions configures the untargeted MS generator.
type MSOptions struct {
	Seed              int64
	Batches           int
	StudySamples      int // per batch
	SPEvery           int // a study pool after every N study samples
	Features          int
	DilutionLevels    []float64 // linearity reference levels, percent
	LRReplicates      int
	Blanks            int     // per batch
	ExternalRefs      int     // per batch
	Drift             float64 // fractional intensity loss across a batch
	BatchEffect       float64 // fractional step between consecutive batches
	NoisyFeatures     []int   // features with poor precision and no dilution response
	SaturatedFeatures []int   // features whose response flattens at the top dilutions
}

// DefaultMSOptions returns a small two-batch design.
func DefaultMSOptions() MSOptions {
	return MSOptions{
		Seed:           42,
		Batches:        2,
		StudySamples:   20,
		SPEvery:        5,
		Features:       30,
		DilutionLevels: []float64{20, 40, 60, 80, 100},
		LRReplicates:   2,
		Blanks:         2,
		ExternalRefs:   2,
		Drift:          0.2,
		BatchEffect:    0.15,
	}
}

func (o MSOptions) withDefaults() MSOptions {
	d := DefaultMSOptions()
	if o.Seed == 0 {
		o.Seed = d.Seed
	}
	if o.Batches == 0 {
		o.Batches = d.Batches
	}
	if o.StudySamples == 0 {
		o.StudySamples = d.StudySamples
	}
	if o.SPEvery == 0 {
		o.SPEvery = d.SPEvery
	}
	if o.Features == 0 {
		o.Features = d.Features
	}
	if o.DilutionLevels == nil {
		o.DilutionLevels = d.DilutionLevels
	}
	if o.LRReplicates == 0 {
		o.LRReplicates = d.LRReplicates
	}
	if o.Blanks == 0 {
		o.Blanks = d.Blanks
	}
	if o.ExternalRefs == 0 {
		o.ExternalRefs = d.ExternalRefs
	}
	if o.Drift == 0 {
		o.Drift = d.Drift
	}
	if o.BatchEffect == 0 {
		o.BatchEffect = d.BatchEffect
	}
	return o
}

// injection is one row of a generated acquisition sequence.
type injection struct {
	name       string
	sampleType dataset.SampleType
	role       dataset.AssayRole
	batch      int
	dilution   float64
	position   float64 // 0..1 within the batch
}

// sampleRows accumulates the sample metadata columns.
type sampleRows struct {
	names, ids, types, roles []string
	runOrder, batch          []float64
	dilution, detector, corr []float64
	acquired                 []time.Time
}

func (s *sampleRows) add(inj injection, order int, start time.Time) {
	s.names = append(s.names, inj.name)
	s.ids = append(s.ids, inj.name)
	s.types = append(s.types, inj.sampleType.String())
	s.roles = append(s.roles, inj.role.String())
	s.runOrder = append(s.runOrder, float64(order))
	s.batch = append(s.batch, float64(inj.batch))
	s.dilution = append(s.dilution, inj.dilution)
	s.detector = append(s.detector, -300)
	s.corr = append(s.corr, float64(inj.batch))
	s.acquired = append(s.acquired, start.Add(time.Duration(order)*15*time.Minute))
}

func (s *sampleRows) table(extra ...dataset.Column) (dataset.Table, error) {
	cols := []dataset.Column{
		dataset.StringColumn(dataset.ColSampleFileName, s.names),
		dataset.StringColumn(dataset.ColSampleID, s.ids),
		dataset.StringColumn(dataset.ColSampleType, s.types),
		dataset.StringColumn(dataset.ColAssayRole, s.roles),
		dataset.FloatColumn(dataset.ColRunOrder, s.runOrder),
		dataset.TimeColumn(dataset.ColAcquiredTime, s.acquired),
		dataset.FloatColumn(dataset.ColBatch, s.batch),
		dataset.FloatColumn(dataset.ColDilution, s.dilution),
		dataset.FloatColumn(dataset.ColDetector, s.detector),
		dataset.FloatColumn(dataset.ColCorrectionBatch, s.corr),
	}
	return dataset.NewTable(len(s.names), append(cols, extra...)...)
}

// sequence lays out one acquisition batch: the dilution series, a blank,
// study samples bracketed by study pools, external references and a closing
// blank.
func (o MSOptions) sequence(batch int) []injection {
	var seq []injection
	tag := func(kind string, k int) string { return fmt.Sprintf("B%d_%s%02d", batch, kind, k) }
	for _, level := range o.DilutionLevels {
		for r := 0; r < o.LRReplicates; r++ {
			seq = append(seq, injection{name: tag(fmt.Sprintf("LR%03.0f_", level), r+1), sampleType: dataset.StudyPool, role: dataset.LinearityReference, batch: batch, dilution: level})
		}
	}
	blanks := 0
	if o.Blanks > 0 {
		blanks++
		seq = append(seq, injection{name: tag("BL", blanks), sampleType: dataset.ProceduralBlank, role: dataset.Assay, batch: batch, dilution: math.NaN()})
	}
	sp := 0
	addSP := func() {
		sp++
		seq = append(seq, injection{name: tag("SP", sp), sampleType: dataset.StudyPool, role: dataset.PrecisionReference, batch: batch, dilution: 100})
	}
	addSP()
	for k := 0; k < o.StudySamples; k++ {
		seq = append(seq, injection{name: tag("SS", k+1), sampleType: dataset.StudySample, role: dataset.Assay, batch: batch, dilution: 100})
		if (k+1)%o.SPEvery == 0 {
			addSP()
		}
	}
	for k := 0; k < o.ExternalRefs; k++ {
		seq = append(seq, injection{name: tag("ER", k+1), sampleType: dataset.ExternalReference, role: dataset.PrecisionReference, batch: batch, dilution: 100})
	}
	for blanks < o.Blanks {
		blanks++
		seq = append(seq, injection{name: tag("BL", blanks), sampleType: dataset.ProceduralBlank, role: dataset.Assay, batch: batch, dilution: math.NaN()})
	}
	for i := range seq {
		if len(seq) > 1 {
			seq[i].position = float64(i) / float64(len(seq)-1)
		}
	}
	return seq
}

// NewMS generates an untargeted MS dataset with run-order drift, batch
// effects and a linearity-reference series in every batch.
func NewMS(opts MSOptions) (*dataset.Dataset, error) {
	o := opts.withDefaults()
	rng := rand.New(rand.NewSource(o.Seed))
	start := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

	noisy := make(map[int]bool)
	for _, j := range o.NoisyFeatures {
		noisy[j] = true
	}
	saturated := make(map[int]bool)
	for _, j := range o.SaturatedFeatures {
		saturated[j] = true
	}

	base := make([]float64, o.Features)
	mz := make([]float64, o.Features)
	rt := make([]float64, o.Features)
	pw := make([]float64, o.Features)
	names := make([]string, o.Features)
	for j := range base {
		base[j] = math.Exp(8 + rng.NormFloat64())
		mz[j] = 100 + 900*rng.Float64()
		rt[j] = 0.5 + 9.5*rng.Float64()
		pw[j] = 0.03 + 0.04*rng.Float64()
		names[j] = fmt.Sprintf("%.2f_%.4fm/z", rt[j], mz[j])
	}

	var rows sampleRows
	var data []float64
	order := 0
	for b := 1; b <= o.Batches; b++ {
		level := 1 + o.BatchEffect*float64(b-1)
		for _, inj := range o.sequence(b) {
			order++
			rows.add(inj, order, start)
			drift := 1 - o.Drift*inj.position
			bio := make([]float64, o.Features)
			for j := range bio {
				bio[j] = 1
			}
			if inj.sampleType == dataset.StudySample {
				for j := range bio {
					bio[j] = math.Exp(0.35 * rng.NormFloat64())
				}
			}
			for j := 0; j < o.Features; j++ {
				v := base[j] * level * drift * bio[j]
				switch {
				case inj.sampleType == dataset.ProceduralBlank:
					v = base[j] * 0.01 * (1 + 0.1*rng.NormFloat64())
				case inj.role == dataset.LinearityReference:
					frac := inj.dilution / 100
					if saturated[j] && frac > 0.7 {
						frac = 0.7 - (frac-0.7)*0.5
					}
					if noisy[j] {
						frac = 0.5 + 0.5*rng.Float64()
					}
					v *= frac
				}
				cv := 0.03
				if noisy[j] {
					cv = 0.6
				}
				v *= 1 + cv*rng.NormFloat64()
				data = append(data, math.Abs(v))
			}
		}
	}

	samples, err := rows.table()
	if err != nil {
		return nil, err
	}
	features, err := dataset.NewTable(o.Features,
		dataset.StringColumn(dataset.ColFeatureName, names),
		dataset.FloatColumn(dataset.ColMZ, mz),
		dataset.FloatColumn(dataset.ColRetentionTime, rt),
		dataset.FloatColumn(dataset.ColPeakWidth, pw),
	)
	if err != nil {
		return nil, err
	}
	s, err := sop.Default("GenericMS")
	if err != nil {
		return nil, err
	}
	return dataset.New(dataset.Spec{
		Name:         "Synthetic MS",
		Platform:     sop.PlatformMS,
		VariableType: dataset.Discrete,
		Intensity:    mat.NewDense(len(rows.names), o.Features, data),
		Samples:      samples,
		Features:     features,
		SOP:          s,
	})
}
