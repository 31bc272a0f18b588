package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"metaboqc/adapters/stats/batchcorrect"
	"metaboqc/adapters/stats/loq"
	"metaboqc/adapters/stats/nmrqc"
	"metaboqc/adapters/stats/pca"
	"metaboqc/adapters/stats/selection"
	"metaboqc/domain/core"
	"metaboqc/domain/dataset"
	"metaboqc/domain/sop"
	"metaboqc/internal"
	"metaboqc/internal/metrics"
)

// QCService runs the quality-control pipeline over a dataset
type QCService struct {
	workers int
	logger  *internal.Logger
}

// NewQCService creates a QC service. workers bounds the per-feature
// parallelism of batch correction when the SOP does not set it.
func NewQCService(workers int) *QCService {
	if workers < 1 {
		workers = 1
	}
	return &QCService{workers: workers, logger: internal.DefaultLogger.With("QCService")}
}

// PipelineOptions selects the stages Run executes. Platform-specific stages
// (NMR checks, LOQ merge) always run on their platform.
type PipelineOptions struct {
	Correct            bool
	Select             bool
	Analyse            bool
	ExcludeNMRFailures bool
}

// DefaultPipelineOptions returns the usual stages for a platform: MS data is
// corrected and selected, targeted data is corrected, NMR spectra failing the
// SOP's exclusion checks are masked. Every platform gets a PCA.
func DefaultPipelineOptions(p sop.Platform) PipelineOptions {
	switch p {
	case sop.PlatformMS:
		return PipelineOptions{Correct: true, Select: true, Analyse: true}
	case sop.PlatformTargetedMS:
		return PipelineOptions{Correct: true, Analyse: true}
	default:
		return PipelineOptions{Analyse: true, ExcludeNMRFailures: true}
	}
}

// RunResult holds every intermediate of one pipeline run. Stages that did
// not run leave their field nil.
type RunResult struct {
	RunID         core.RunID
	Input         *dataset.Dataset
	PreCorrection *dataset.Dataset
	Dataset       *dataset.Dataset
	NMR           *nmrqc.Result
	LOQ           *loq.Result
	Correction    *batchcorrect.Result
	Statistics    *selection.Statistics
	Selection     *selection.Outcome
	PCA           *pca.Analysis
	Timings       []StageTiming
	Warnings      []string
	Fingerprint   core.Hash
	Duration      time.Duration
}

// Run executes the pipeline. Batch-correction and PCA failures caused by the
// data are recorded as warnings and the run continues; configuration errors
// and cancellation abort it.
func (s *QCService) Run(ctx context.Context, d *dataset.Dataset, opts PipelineOptions) (*RunResult, error) {
	start := time.Now()
	res := &RunResult{
		RunID:       core.NewRunID(),
		Input:       d,
		Fingerprint: d.SOP().Fingerprint(),
	}
	runner := NewStageRunner(s.logger)
	s.logger.Info("Starting QC run %s on %s (%s, %d samples x %d features)",
		res.RunID, d.Name(), d.Platform(), d.NSamples(), d.NFeatures())

	cur := d
	switch d.Platform() {
	case sop.PlatformNMR:
		err := runner.Run(ctx, StageNMRQC, func(ctx context.Context) error {
			next, r, err := s.RunNMRQC(ctx, cur)
			if err != nil {
				return err
			}
			if opts.ExcludeNMRFailures {
				if next, err = s.ExcludeNMRFailures(next, r); err != nil {
					return err
				}
			}
			cur, res.NMR = next, &r
			return nil
		})
		if err != nil {
			return nil, err
		}
	case sop.PlatformTargetedMS:
		err := runner.Run(ctx, StageLOQMerge, func(ctx context.Context) error {
			next, r, err := s.MergeLOQ(ctx, cur)
			if err != nil {
				return err
			}
			cur, res.LOQ = next, &r
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	if opts.Correct && d.Platform() != sop.PlatformNMR {
		res.PreCorrection = cur
		err := runner.Run(ctx, StageCorrection, func(ctx context.Context) error {
			next, r, err := s.Correct(ctx, cur)
			if next != nil {
				cur = next
			}
			res.Correction = r
			return err
		})
		if err != nil {
			if !recoverable(ctx, err) {
				return nil, err
			}
			res.Warnings = append(res.Warnings, err.Error())
			s.logger.Warn("Continuing with uncorrected intensities: %v", err)
		}
	}

	if opts.Select {
		err := runner.Run(ctx, StageSelection, func(ctx context.Context) error {
			next, st, out, err := s.Select(ctx, cur)
			if err != nil {
				return err
			}
			cur, res.Statistics, res.Selection = next, &st, &out
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	if opts.Analyse {
		err := runner.Run(ctx, StagePCA, func(ctx context.Context) error {
			a, err := s.Analyse(ctx, cur)
			if err != nil {
				return err
			}
			res.PCA = a
			return nil
		})
		if err != nil {
			if !recoverable(ctx, err) {
				return nil, err
			}
			res.Warnings = append(res.Warnings, err.Error())
			s.logger.Warn("Skipping multivariate diagnostics: %v", err)
		}
	}

	for _, w := range cur.Warnings() {
		res.Warnings = append(res.Warnings, w.String())
	}
	res.Dataset = cur
	res.Timings = runner.Timings()
	res.Duration = time.Since(start)
	metrics.DatasetsProcessed.WithLabelValues(string(d.Platform())).Inc()
	s.logger.Info("QC run %s finished in %.2fms with %d warnings", res.RunID, float64(res.Duration.Nanoseconds())/1e6, len(res.Warnings))
	return res, nil
}

// recoverable reports whether a stage error came from the data rather than
// from configuration or cancellation.
func recoverable(ctx context.Context, err error) bool {
	if ctx.Err() != nil || core.IsConfigurationError(err) {
		return false
	}
	return core.IsPreconditionError(err) || errors.Is(err, core.ErrInsufficientData)
}

// RunNMRQC computes the per-spectrum checks and writes the flag columns.
func (s *QCService) RunNMRQC(ctx context.Context, d *dataset.Dataset) (*dataset.Dataset, nmrqc.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, nmrqc.Result{}, err
	}
	next, r, err := nmrqc.Run(d, d.SOP().Core.NMR)
	if err != nil {
		return nil, nmrqc.Result{}, err
	}
	for check, n := range r.Failures() {
		if n > 0 {
			s.logger.Debug("%d spectra fail %s", n, check)
		}
	}
	return next, r, nil
}

// ExcludeNMRFailures masks out spectra failing any check named in the SOP's
// excludeFailures list.
func (s *QCService) ExcludeNMRFailures(d *dataset.Dataset, r nmrqc.Result) (*dataset.Dataset, error) {
	checks := d.SOP().Core.NMR.ExcludeFailures
	if len(checks) == 0 {
		return d, nil
	}
	mask := dataset.And(d.SampleMask(), r.ExclusionMask(checks))
	if n := dataset.Count(dataset.Not(mask)) - dataset.Count(dataset.Not(d.SampleMask())); n > 0 {
		s.logger.Info("Marking %d spectra for exclusion (%v)", n, checks)
	}
	return d.WithMasks(mask, nil)
}

// MergeLOQ merges the per-batch limits of a targeted dataset.
func (s *QCService) MergeLOQ(ctx context.Context, d *dataset.Dataset) (*dataset.Dataset, loq.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, loq.Result{}, err
	}
	next, r, err := loq.Merge(d, d.SOP().Core.LOQ)
	if err != nil {
		return nil, loq.Result{}, err
	}
	if len(r.Demoted) > 0 {
		s.logger.Info("%d features demoted to Monitored after LOQ merge", len(r.Demoted))
	}
	return next, r, nil
}

// Correct applies run-order and batch correction. When the attempt fails on
// the data (for example a correction batch with fewer than two study pools),
// the returned dataset is the input marked as failed, together with the
// error. Reverted features are logged and recorded as dataset warnings.
func (s *QCService) Correct(ctx context.Context, d *dataset.Dataset) (*dataset.Dataset, *batchcorrect.Result, error) {
	if d.Platform() == sop.PlatformNMR {
		return nil, nil, fmt.Errorf("%w: batch correction on %s data", core.ErrWrongPlatform, d.Platform())
	}
	if st := d.Correction().State; st != dataset.Uncorrected {
		return nil, nil, fmt.Errorf("%w: dataset is %s", core.ErrInvalidTransition, st)
	}
	cfg := d.SOP().Core.Correction

	fail := func(err error) (*dataset.Dataset, *batchcorrect.Result, error) {
		failed, ferr := d.WithCorrectionFailed(err.Error())
		if ferr != nil {
			return nil, nil, ferr
		}
		return failed, nil, err
	}

	runOrder, err := d.SampleFloats(dataset.ColRunOrder)
	if err != nil {
		return fail(core.NewPreconditionError("batch correction", err.Error()))
	}
	batch, err := d.SampleFloats(dataset.ColCorrectionBatch)
	if err != nil {
		return fail(core.NewPreconditionError("batch correction", err.Error()))
	}
	sp := dataset.And(d.Roles().SP, d.SampleMask())

	workers := cfg.Workers
	if workers == 0 {
		workers = s.workers
	}
	window := cfg.Window
	if window == 0 {
		window = batchcorrect.DefaultWindow
	}
	r, err := batchcorrect.Correct(ctx, d.Intensity(), runOrder, batch, sp, batchcorrect.Options{
		Window:           window,
		RobustIterations: cfg.RobustIterations,
		Workers:          workers,
	})
	if err != nil {
		if ctx.Err() != nil || core.IsConfigurationError(err) {
			return nil, nil, err
		}
		return fail(err)
	}

	names := d.FeatureNames()
	warnings := make([]dataset.Warning, 0, len(r.Reverted))
	for _, rv := range r.Reverted {
		s.logger.Warn("Feature %s left uncorrected: %s", names[rv.Feature], rv.Reason)
		warnings = append(warnings, dataset.Warning{
			Kind:    dataset.WarnCorrectionReverted,
			Feature: rv.Feature,
			Name:    names[rv.Feature],
			Message: rv.Reason,
		})
	}
	metrics.CorrectionFallbacks.Add(float64(len(r.Reverted)))

	next, err := d.WithCorrection(r.Corrected, r.Fit, r.Reference, window, warnings)
	if err != nil {
		return nil, nil, err
	}
	return next, r, nil
}

// Select runs the feature-selection predicate.
func (s *QCService) Select(ctx context.Context, d *dataset.Dataset) (*dataset.Dataset, selection.Statistics, selection.Outcome, error) {
	if err := ctx.Err(); err != nil {
		return nil, selection.Statistics{}, selection.Outcome{}, err
	}
	next, st, out, err := selection.Select(d)
	if err != nil {
		return nil, selection.Statistics{}, selection.Outcome{}, err
	}
	pass := out.Passing()
	metrics.FeaturesSelected.WithLabelValues("pass").Add(float64(pass))
	metrics.FeaturesSelected.WithLabelValues("fail").Add(float64(len(out.Pass) - pass))
	s.logger.Info("%d of %d features pass selection", pass, len(out.Pass))
	return next, st, out, nil
}

// Analyse fits the PCA model on the masked-in data and computes diagnostics.
func (s *QCService) Analyse(ctx context.Context, d *dataset.Dataset) (*pca.Analysis, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a, err := pca.Analyse(d)
	if err != nil {
		return nil, err
	}
	s.logger.Info("PCA with %d components: %d strong and %d moderate outliers",
		a.Model.NComponents(), len(a.Diagnostics.StrongOutliers), len(a.Diagnostics.ModerateOutliers))
	return a, nil
}
