package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"metaboqc/adapters/catalogue"
	"metaboqc/adapters/stats/pca"
	"metaboqc/app"
	"metaboqc/domain/dataset"
	"metaboqc/domain/report"
	apperrors "metaboqc/internal/errors"
)

func newReportCmd(g *globals) *cobra.Command {
	var in inputs
	var kinds []string
	var stdout, noCorrect, noSelect, noPCA bool
	var ionisation string

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Run the QC pipeline and render reports",
		Long: `Run the QC pipeline for the dataset's platform and render reports.

Without --kind every report the run supports is written to the output directory as
<dataset>_report_<kind>.html, with the item dictionary as JSON, the tables as XLSX
and the figures under graphics/. With --stdout a single self-contained report is
written to standard output instead.

Kinds: sample_summary, feature_summary, nmr_summary, correction_assessment,
targeted_summary, multivariate, final.

Example: qc report --workbook plasma_rpos.xlsx --sop GenericMS --kind final`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			d, err := g.readDataset(ctx, in)
			if err != nil {
				return err
			}

			opts := app.DefaultPipelineOptions(d.Platform())
			opts.Correct = opts.Correct && !noCorrect
			opts.Select = opts.Select && !noSelect
			opts.Analyse = opts.Analyse && !noPCA
			run, err := g.c.QC.Run(ctx, d, opts)
			if err != nil {
				return err
			}
			for _, w := range run.Warnings {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", w)
			}

			svc, closeFn, err := g.reportService(ctx, d, ionisation)
			if err != nil {
				return err
			}
			defer closeFn()

			selected, err := reportKinds(kinds, svc.Available(run))
			if err != nil {
				return err
			}
			if stdout {
				if len(selected) != 1 {
					return apperrors.InvalidInput("--stdout renders exactly one --kind")
				}
				_, err := svc.Generate(ctx, selected[0], run, "", cmd.OutOrStdout())
				return err
			}
			for _, kind := range selected {
				path, err := svc.Generate(ctx, kind, run, g.cfg.QC.OutputDir, nil)
				if err != nil {
					return fmt.Errorf("%s: %w", kind, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-22s %s\n", kind, path)
			}
			return nil
		},
	}

	addInputFlags(cmd, &in)
	cmd.Flags().StringSliceVarP(&kinds, "kind", "k", nil, "Report kinds to render (default: every available kind)")
	cmd.Flags().BoolVar(&stdout, "stdout", false, "Write one self-contained report to standard output")
	cmd.Flags().BoolVar(&noCorrect, "no-correct", false, "Skip run-order and batch correction")
	cmd.Flags().BoolVar(&noSelect, "no-select", false, "Skip feature selection")
	cmd.Flags().BoolVar(&noPCA, "no-pca", false, "Skip PCA")
	cmd.Flags().StringVar(&ionisation, "ionisation", "", "Ionisation mode for compound annotation: POS or NEG")
	return cmd
}

// reportService connects the catalogue when one is configured and builds a
// report service for d. The returned func releases the catalogue.
func (g *globals) reportService(ctx context.Context, d *dataset.Dataset, ionisation string) (*app.ReportService, func(), error) {
	ion, err := catalogue.ParseIonisation(ionisation)
	if err != nil {
		return nil, nil, err
	}
	if err := g.c.InitCatalogue(ctx); err != nil {
		return nil, nil, err
	}
	release := func() { g.c.Shutdown() }
	svc, err := g.c.ReportService(d.SOP().Presentation, ion)
	if err != nil {
		release()
		return nil, nil, err
	}
	return svc, release, nil
}

func reportKinds(names []string, available []report.Kind) ([]report.Kind, error) {
	if len(names) == 0 {
		return available, nil
	}
	out := make([]report.Kind, 0, len(names))
	for _, n := range names {
		k, err := report.ParseKind(strings.TrimSpace(n))
		if err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, nil
}

func newCorrectCmd(g *globals) *cobra.Command {
	var in inputs

	cmd := &cobra.Command{
		Use:   "correct",
		Short: "Apply run-order and batch correction",
		Long: `Fit a LOWESS curve to the study-pool intensities of every feature and correction
batch, divide it out and rescale to the global study-pool level. The corrected
dataset is written to <output>/<dataset>_corrected.xlsx.

Example: qc correct --workbook plasma_rpos.xlsx --workers 4`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			d, err := g.readDataset(ctx, in)
			if err != nil {
				return err
			}
			corrected, r, err := g.c.QC.Correct(ctx, d)
			if err != nil {
				return err
			}
			path, err := g.writeDataset(ctx, corrected, "corrected")
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Corrected %d features across %d batches\n", d.NFeatures()-len(r.Reverted), len(r.Batches))
			if len(r.Reverted) > 0 {
				fmt.Fprintf(out, "%d features left uncorrected\n", len(r.Reverted))
			}
			fmt.Fprintf(out, "Written to %s\n", path)
			return nil
		},
	}
	addInputFlags(cmd, &in)
	return cmd
}

func newSelectCmd(g *globals) *cobra.Command {
	var in inputs
	var correct bool

	cmd := &cobra.Command{
		Use:   "select",
		Short: "Apply the feature-selection predicate",
		Long: `Compute RSD, correlation to dilution, variance ratio, blank and artifactual
gates and keep the features passing all of them. The filtered dataset is written
to <output>/<dataset>_selected.xlsx.

Example: qc select --workbook plasma_rpos.xlsx --correct`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			d, err := g.readDataset(ctx, in)
			if err != nil {
				return err
			}
			svc := g.c.QC
			if correct {
				if d, _, err = svc.Correct(ctx, d); err != nil {
					return err
				}
			}
			selected, _, outcome, err := svc.Select(ctx, d)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			printCounts(out, outcome.FailCounts())
			fmt.Fprintf(out, "%d of %d features pass\n", outcome.Passing(), len(outcome.Pass))

			path, err := g.writeDataset(ctx, selected.ApplyMasks("feature selection"), "selected")
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Written to %s\n", path)
			return nil
		},
	}
	addInputFlags(cmd, &in)
	cmd.Flags().BoolVar(&correct, "correct", false, "Apply batch correction before selection")
	return cmd
}

func newMergeLOQCmd(g *globals) *cobra.Command {
	var in inputs

	cmd := &cobra.Command{
		Use:   "merge-loq",
		Short: "Merge per-batch limits of quantification",
		Long: `Merge the LLOQ_batchN and ULOQ_batchN columns of a targeted dataset into the
most conservative limits. Features whose merged LLOQ is not below the merged ULOQ
are demoted to Monitored.

Example: qc merge-loq --workbook amino_acids.xlsx --sop TargetedMS`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			d, err := g.readDataset(ctx, in)
			if err != nil {
				return err
			}
			merged, r, err := g.c.QC.MergeLOQ(ctx, d)
			if err != nil {
				return err
			}
			path, err := g.writeDataset(ctx, merged, "loq")
			if err != nil {
				return err
			}
			below, above := 0, 0
			for j := range r.BelowLLOQ {
				below += r.BelowLLOQ[j]
				above += r.AboveULOQ[j]
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Merged limits across %d batches\n", len(r.Batches))
			fmt.Fprintf(out, "%d values below LLOQ, %d above ULOQ, %d censored\n", below, above, r.Censored)
			names := merged.FeatureNames()
			for _, j := range r.Demoted {
				fmt.Fprintf(out, "demoted to %s: %s\n", dataset.Monitored, names[j])
			}
			fmt.Fprintf(out, "Written to %s\n", path)
			return nil
		},
	}
	addInputFlags(cmd, &in)
	return cmd
}

func newNMRQCCmd(g *globals) *cobra.Command {
	var in inputs
	var exclude bool

	cmd := &cobra.Command{
		Use:   "nmr-qc",
		Short: "Run the per-spectrum NMR checks",
		Long: `Check calibration, line width, baseline, water and solvent regions of every
spectrum and add the flag columns to the sample metadata. With --exclude the
spectra failing the checks listed in the SOP are masked out.

Example: qc nmr-qc --workbook urine_noesy.xlsx --sop GenericNMRUrine --exclude`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			d, err := g.readDataset(ctx, in)
			if err != nil {
				return err
			}
			svc := g.c.QC
			checked, r, err := svc.RunNMRQC(ctx, d)
			if err != nil {
				return err
			}
			if exclude {
				if checked, err = svc.ExcludeNMRFailures(checked, r); err != nil {
					return err
				}
			}
			out := cmd.OutOrStdout()
			printCounts(out, r.Failures())
			estimated := dataset.Count(r.Estimated)
			if estimated > 0 {
				fmt.Fprintf(out, "%d line widths estimated from the spectrum\n", estimated)
			}
			path, err := g.writeDataset(ctx, checked, "nmrqc")
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Written to %s\n", path)
			return nil
		},
	}
	addInputFlags(cmd, &in)
	cmd.Flags().BoolVar(&exclude, "exclude", false, "Mask out spectra failing the SOP's excluded checks")
	return cmd
}

func newPCACmd(g *globals) *cobra.Command {
	var in inputs

	cmd := &cobra.Command{
		Use:   "pca",
		Short: "Fit PCA and list outlying samples",
		Long: `Fit a PCA model on the masked-in data, report the explained variance, the
samples outside the Hotelling's T² ellipse or above the DModX critical value, and
the sample metadata associated with the scores.

Example: qc pca --workbook plasma_rpos.xlsx`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			d, err := g.readDataset(ctx, in)
			if err != nil {
				return err
			}
			a, err := g.c.QC.Analyse(ctx, d)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			cum := 0.0
			for c, r := range a.Model.ExplainedRatio {
				cum += r
				fmt.Fprintf(out, "PC%-3d %6.2f%%  (cumulative %6.2f%%)\n", c+1, 100*r, 100*cum)
			}
			for _, i := range a.Diagnostics.StrongOutliers {
				fmt.Fprintf(out, "strong outlier:   %s\n", a.Samples[i])
			}
			for _, i := range a.Diagnostics.ModerateOutliers {
				fmt.Fprintf(out, "moderate outlier: %s\n", a.Samples[i])
			}
			if fields := pca.SignificantFields(a.Associations); len(fields) > 0 {
				fmt.Fprintf(out, "associated metadata: %s\n", strings.Join(fields, ", "))
			}
			return nil
		},
	}
	addInputFlags(cmd, &in)
	return cmd
}

// printCounts writes one "name: n" line per non-zero count, sorted by name.
func printCounts(w io.Writer, counts map[string]int) {
	names := make([]string, 0, len(counts))
	for k := range counts {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		if counts[k] > 0 {
			fmt.Fprintf(w, "%-28s %d\n", k+":", counts[k])
		}
	}
}
