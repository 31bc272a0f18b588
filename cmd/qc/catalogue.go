package main

import (
	"fmt"
	"math"

	"github.com/spf13/cobra"

	"metaboqc/adapters/catalogue"
	"metaboqc/adapters/excel"
	"metaboqc/domain/compound"
	apperrors "metaboqc/internal/errors"
)

func newCatalogueCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalogue",
		Short: "Manage the compound catalogue used to annotate features",
		Long: `Manage the SQL compound catalogue. The DSN comes from --catalogue or
QC_CATALOGUE_DSN: postgres:// URLs use PostgreSQL, anything else a SQLite file.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := g.load(cmd); err != nil {
				return err
			}
			if !g.cfg.Catalogue.Enabled() {
				return apperrors.ValidationError("no catalogue configured: set --catalogue or QC_CATALOGUE_DSN")
			}
			return nil
		},
	}
	cmd.AddCommand(newCatalogueImportCmd(g), newCatalogueStatusCmd(g), newCatalogueLookupCmd(g))
	return cmd
}

func newCatalogueImportCmd(g *globals) *cobra.Command {
	var sheet string

	cmd := &cobra.Command{
		Use:   "import [file]",
		Short: "Import compounds from a CSV or XLSX file",
		Long: `Import compounds from a CSV or XLSX file with a header row. Recognised columns
are name, formula, adduct, m/z, retention time, ionisation and source; name and m/z
are required. Compounds already in the catalogue are skipped.

Example: qc catalogue import library.xlsx --catalogue compounds.db`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			data, err := excel.NewDataReader(args[0]).ReadSheet(sheet)
			if err != nil {
				return err
			}
			compounds, err := catalogue.FromRows(data.Headers, data.Rows)
			if err != nil {
				return err
			}

			if err := g.c.InitCatalogue(ctx); err != nil {
				return err
			}
			defer g.c.Shutdown()
			repo := g.c.Catalogue
			n, err := repo.Import(ctx, compounds)
			if err != nil {
				return err
			}
			total, err := repo.Count(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d of %d compounds (%d in catalogue)\n", n, len(compounds), total)
			return nil
		},
	}
	cmd.Flags().StringVar(&sheet, "sheet", "", "Worksheet to read (default: the first)")
	return cmd
}

func newCatalogueStatusCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show applied migrations and the compound count",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := g.c.InitCatalogue(ctx); err != nil {
				return err
			}
			defer g.c.Shutdown()
			repo := g.c.Catalogue

			statuses, err := repo.Migrations(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, s := range statuses {
				state := "pending"
				if s.Applied {
					state = "applied"
				}
				fmt.Fprintf(out, "%-40s %s\n", s.Version, state)
			}
			n, err := repo.Count(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%d compounds\n", n)
			return nil
		},
	}
}

func newCatalogueLookupCmd(g *globals) *cobra.Command {
	var rt float64
	var ionisation string

	cmd := &cobra.Command{
		Use:   "lookup [m/z]",
		Short: "Find compounds matching an m/z and retention time",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			var mz float64
			if _, err := fmt.Sscanf(args[0], "%g", &mz); err != nil {
				return apperrors.InvalidInput(fmt.Sprintf("invalid m/z %q", args[0]))
			}
			ion, err := catalogue.ParseIonisation(ionisation)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("rt") {
				rt = math.NaN()
			}

			if err := g.c.InitCatalogue(ctx); err != nil {
				return err
			}
			defer g.c.Shutdown()
			repo := g.c.Catalogue
			matches, err := repo.Lookup(ctx, compound.Query{
				MZ:         mz,
				RT:         rt,
				Ionisation: ion,
				PPM:        g.cfg.Catalogue.PPMTol,
				RTWindow:   g.cfg.Catalogue.RTTolerance,
			})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(matches) == 0 {
				fmt.Fprintln(out, "no match")
			}
			for _, m := range matches {
				fmt.Fprintf(out, "%-30s %-10s %10.4f  %+.2f ppm\n", m.Compound.Name, m.Compound.Adduct, m.Compound.MZ, m.PPMError)
			}
			return nil
		},
	}
	cmd.Flags().Float64Var(&rt, "rt", 0, "Retention time in minutes (default: any)")
	cmd.Flags().StringVar(&ionisation, "ionisation", "", "POS or NEG (default: any)")
	return cmd
}
