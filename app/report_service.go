package app

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"metaboqc/adapters/stats/selection"
	"metaboqc/domain/core"
	"metaboqc/domain/dataset"
	"metaboqc/domain/report"
	"metaboqc/domain/sop"
	"metaboqc/internal"
	"metaboqc/internal/metrics"
	"metaboqc/ports"
)

// ReportService assembles report item dictionaries from pipeline runs and
// hands them to the report writer
type ReportService struct {
	writer     ports.ReportWriter
	catalogue  ports.CompoundCatalogue
	annotation AnnotationOptions
	logger     *internal.Logger
}

// NewReportService creates a report service. catalogue may be nil, in which
// case feature summaries carry no compound annotations.
func NewReportService(writer ports.ReportWriter, catalogue ports.CompoundCatalogue, annotation AnnotationOptions) *ReportService {
	return &ReportService{
		writer:     writer,
		catalogue:  catalogue,
		annotation: annotation,
		logger:     internal.DefaultLogger.With("ReportService"),
	}
}

// Build assembles the report of one kind. Reports whose stage did not run
// return a precondition error.
func (s *ReportService) Build(ctx context.Context, kind report.Kind, run *RunResult) (*report.Items, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d := run.Dataset
	var it *report.Items
	switch kind {
	case report.KindSampleSummary:
		it = BuildSampleSummary(d)
	case report.KindFeatureSummary:
		var err error
		if it, err = s.featureSummary(ctx, run); err != nil {
			return nil, err
		}
	case report.KindNMR:
		if run.NMR == nil {
			return nil, core.NewPreconditionError("NMR report", "NMR checks did not run")
		}
		it = BuildNMRReport(d, *run.NMR)
	case report.KindCorrection:
		if run.PreCorrection == nil {
			return nil, core.NewPreconditionError("correction assessment", "batch correction did not run")
		}
		it = BuildCorrectionAssessment(run.PreCorrection, d, run.Correction)
	case report.KindTargeted:
		if run.LOQ == nil {
			return nil, core.NewPreconditionError("targeted report", "LOQ merge did not run")
		}
		it = BuildTargetedReport(d, *run.LOQ)
	case report.KindMultivariate:
		if run.PCA == nil {
			return nil, core.NewPreconditionError("multivariate report", "PCA did not run")
		}
		it = BuildMultivariateReport(d, run.PCA)
	case report.KindFinal:
		return s.final(ctx, run)
	default:
		return nil, core.NewConfigurationError("report", fmt.Sprintf("unknown report kind %q", kind))
	}
	if err := report.Validate(it); err != nil {
		return nil, err
	}
	return it, nil
}

// featureSummary reuses the selection outcome of the run or, when selection
// did not run, evaluates the predicate without changing the dataset.
func (s *ReportService) featureSummary(ctx context.Context, run *RunResult) (*report.Items, error) {
	d := run.Dataset
	if d.Platform() == sop.PlatformNMR {
		return nil, fmt.Errorf("%w: feature summary of %s data", core.ErrWrongPlatform, d.Platform())
	}
	var st selection.Statistics
	var out selection.Outcome
	if run.Statistics != nil && run.Selection != nil {
		st, out = *run.Statistics, *run.Selection
	} else {
		var err error
		if st, err = selection.Compute(d); err != nil {
			return nil, err
		}
		out = selection.Predicate(st, d.FeatureMask(), d.SOP().Core)
	}
	it := BuildFeatureSummary(d, st, out)

	if s.catalogue != nil && d.Platform() == sop.PlatformMS && d.Features().Has(dataset.ColMZ) {
		start := time.Now()
		t, n, err := annotateFeatures(ctx, s.catalogue, d, out.Pass, s.annotation)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			s.logger.Warn("Compound annotation failed: %v", err)
			it.Warn("compound annotation failed: %v", err)
		} else {
			it.AddTable(t)
			it.Set("featuresAnnotated", n)
			s.logger.Info("Annotated %d of %d passing features in %.2fms", n, out.Passing(), float64(time.Since(start).Nanoseconds())/1e6)
		}
	}
	return it, nil
}

// final merges every report the run can support into one document.
func (s *ReportService) final(ctx context.Context, run *RunResult) (*report.Items, error) {
	d := run.Dataset
	it := report.NewItems(report.KindFinal, d.Name(), d.Platform(), d.SOP().Name)
	it.Fingerprint = run.Fingerprint

	var lines []string
	for _, kind := range s.Available(run) {
		if kind == report.KindFinal {
			continue
		}
		part, err := s.Build(ctx, kind, run)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", kind, err)
		}
		it.Merge(part)
		if part.Narrative != "" {
			lines = append(lines, fmt.Sprintf("## %s\n\n%s", part.Title, part.Narrative))
		}
	}

	final := d.ApplyMasks("final report")
	it.Set("samples", final.NSamples())
	it.Set("features", final.NFeatures())
	it.Set("correction", d.Correction().State.String())
	it.Set("runID", string(run.RunID))
	for _, w := range run.Warnings {
		it.Warn("%s", w)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "After exclusions the dataset holds %d samples and %d features.\n\n", final.NSamples(), final.NFeatures())
	b.WriteString(strings.Join(lines, "\n\n"))
	it.Narrative = b.String()
	return it, nil
}

// Available lists the report kinds the run can produce, in reporting order.
func (s *ReportService) Available(run *RunResult) []report.Kind {
	kinds := []report.Kind{report.KindSampleSummary}
	if run.NMR != nil {
		kinds = append(kinds, report.KindNMR)
	}
	if run.LOQ != nil {
		kinds = append(kinds, report.KindTargeted)
	}
	if run.PreCorrection != nil {
		kinds = append(kinds, report.KindCorrection)
	}
	if run.Dataset.Platform() != sop.PlatformNMR && run.Selection != nil {
		kinds = append(kinds, report.KindFeatureSummary)
	}
	if run.PCA != nil {
		kinds = append(kinds, report.KindMultivariate)
	}
	return append(kinds, report.KindFinal)
}

// Generate builds a report and renders it. With an output directory the
// report is written there and its HTML path returned; otherwise a
// self-contained document is written to w.
func (s *ReportService) Generate(ctx context.Context, kind report.Kind, run *RunResult, outputDir string, w io.Writer) (string, error) {
	it, err := s.Build(ctx, kind, run)
	if err != nil {
		return "", err
	}
	if outputDir == "" {
		if w == nil {
			return "", core.NewConfigurationError("output", "no output directory or writer given")
		}
		if err := s.writer.WriteInline(ctx, it, w); err != nil {
			return "", err
		}
		metrics.ReportsWritten.WithLabelValues(string(kind), "inline").Inc()
		return "", nil
	}
	path, err := s.writer.Write(ctx, it, outputDir)
	if err != nil {
		return "", err
	}
	metrics.ReportsWritten.WithLabelValues(string(kind), "file").Inc()
	s.logger.Info("Report %s for %s written to %s", kind, run.Dataset.Name(), path)
	return path, nil
}
