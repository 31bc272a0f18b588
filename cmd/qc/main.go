package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"metaboqc/domain/dataset"
	"metaboqc/domain/sop"
	"metaboqc/internal"
	"metaboqc/internal/config"
	"metaboqc/internal/container"
	apperrors "metaboqc/internal/errors"
	"metaboqc/ports"
)

// globals holds the persistent flags shared by every command.
type globals struct {
	sop       string
	output    string
	workers   int
	catalogue string
	logLevel  string

	cfg *config.Config
	c   *container.Container
}

// inputs names the tables a command reads its dataset from.
type inputs struct {
	name      string
	workbook  string
	samples   string
	features  string
	intensity string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	g := &globals{}

	rootCmd := &cobra.Command{
		Use:   "qc",
		Short: "Quality control for metabolic profiling datasets",
		Long: `Quality control for MS, targeted MS and NMR metabolic profiling datasets.

Datasets are read from a workbook holding the sampleMetadata, featureMetadata and
intensityData sheets, or from three separate CSV/XLSX files. Thresholds come from
the SOP named by --sop (a built-in name or a YAML file).

Settings default to the environment (LOG_LEVEL, QC_SOP, QC_OUTPUT_DIR, QC_WORKERS,
QC_CATALOGUE_DSN), read from .env when present.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return g.load(cmd)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&g.sop, "sop", "", "SOP name or YAML path (default $QC_SOP)")
	flags.StringVarP(&g.output, "output", "o", "", "Output directory (default $QC_OUTPUT_DIR)")
	flags.IntVar(&g.workers, "workers", 0, "Worker goroutines for batch correction (default $QC_WORKERS)")
	flags.StringVar(&g.catalogue, "catalogue", "", "Compound catalogue DSN (default $QC_CATALOGUE_DSN)")
	flags.StringVar(&g.logLevel, "log-level", "", "ERROR, WARN, INFO, DEBUG or TRACE (default $LOG_LEVEL)")

	rootCmd.AddCommand(
		newReportCmd(g),
		newCorrectCmd(g),
		newSelectCmd(g),
		newMergeLOQCmd(g),
		newNMRQCCmd(g),
		newPCACmd(g),
		newCatalogueCmd(g),
	)
	return rootCmd
}

// load reads the environment and overlays the flags given on the command
// line.
func (g *globals) load(cmd *cobra.Command) error {
	// a missing .env is normal
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("sop") {
		cfg.QC.SOP = g.sop
	}
	if flags.Changed("output") {
		cfg.QC.OutputDir = g.output
	}
	if flags.Changed("workers") {
		cfg.QC.Workers = g.workers
	}
	if flags.Changed("catalogue") {
		cfg.Catalogue.DSN = g.catalogue
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = g.logLevel
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}
	internal.DefaultLogger.SetLevel(internal.ParseLogLevel(cfg.Log.Level))
	c, err := container.New(cfg)
	if err != nil {
		return err
	}
	g.cfg, g.c = cfg, c
	return nil
}

func addInputFlags(cmd *cobra.Command, in *inputs) {
	cmd.Flags().StringVar(&in.name, "name", "", "Dataset name (default: input file stem)")
	cmd.Flags().StringVarP(&in.workbook, "workbook", "w", "", "Workbook holding the three tables as sheets")
	cmd.Flags().StringVar(&in.samples, "samples", "", "Sample metadata file")
	cmd.Flags().StringVar(&in.features, "features", "", "Feature metadata file")
	cmd.Flags().StringVar(&in.intensity, "intensity", "", "Intensity data file")
}

// readDataset resolves the SOP and imports the dataset named by in.
func (g *globals) readDataset(ctx context.Context, in inputs) (*dataset.Dataset, error) {
	s, err := sop.Load(g.cfg.QC.SOP)
	if err != nil {
		return nil, err
	}
	if in.workbook == "" && (in.samples == "" || in.features == "" || in.intensity == "") {
		return nil, apperrors.InvalidInput("either --workbook or all of --samples, --features and --intensity are required")
	}
	name := in.name
	if name == "" {
		ref := in.workbook
		if ref == "" {
			ref = in.intensity
		}
		name = stem(ref)
	}
	return g.c.Reader.Read(ctx, ports.DatasetSource{
		Name:      name,
		Platform:  s.Platform,
		SOP:       s,
		Workbook:  in.workbook,
		Samples:   in.samples,
		Features:  in.features,
		Intensity: in.intensity,
	})
}

// writeDataset exports d into the output directory as <name>_<suffix>.xlsx
// and returns the path.
func (g *globals) writeDataset(ctx context.Context, d *dataset.Dataset, suffix string) (string, error) {
	if err := os.MkdirAll(g.cfg.QC.OutputDir, 0o755); err != nil {
		return "", apperrors.Wrap(err, "failed to create output directory")
	}
	path := filepath.Join(g.cfg.QC.OutputDir, fmt.Sprintf("%s_%s.xlsx", stem(d.Name()), suffix))
	if err := g.c.Writer.Write(ctx, d, path); err != nil {
		return "", err
	}
	return path, nil
}

func stem(path string) string {
	base := filepath.Base(path)
	return base[:len(base)-len(filepath.Ext(base))]
}
