package container

import (
	"context"
	"fmt"

	"metaboqc/adapters/catalogue"
	"metaboqc/adapters/excel"
	"metaboqc/adapters/report/html"
	"metaboqc/app"
	"metaboqc/domain/compound"
	"metaboqc/domain/sop"
	"metaboqc/internal"
	"metaboqc/internal/config"
	"metaboqc/ports"
)

// Container holds the application dependencies built from one configuration
// and manages their lifecycle
type Container struct {
	Config *config.Config

	// Import and export
	Reader ports.DatasetReader
	Writer ports.DatasetWriter
	Tables ports.TableExporter

	// Reports rendered into the output directory
	Index *html.Index

	// Pipeline
	QC *app.QCService

	// Compound catalogue, nil until InitCatalogue succeeds
	Catalogue *catalogue.Repository

	logger *internal.Logger
}

// New wires the adapters that need no external resources.
func New(cfg *config.Config) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	xl := excel.NewWriter(excel.DefaultExcelConfig())
	return &Container{
		Config: cfg,
		Reader: excel.NewDatasetAdapter(excel.DefaultExcelConfig()),
		Writer: xl,
		Tables: xl,
		Index:  html.NewIndex(cfg.QC.OutputDir),
		QC:     app.NewQCService(cfg.QC.Workers),
		logger: internal.DefaultLogger.With("Container"),
	}, nil
}

// InitCatalogue connects the compound catalogue when a DSN is configured. It
// is a no-op otherwise.
func (c *Container) InitCatalogue(ctx context.Context) error {
	if !c.Config.Catalogue.Enabled() || c.Catalogue != nil {
		return nil
	}
	repo, err := catalogue.Open(ctx, c.Config.Catalogue.DSN)
	if err != nil {
		return fmt.Errorf("failed to open compound catalogue: %w", err)
	}
	c.Catalogue = repo
	c.logger.Info("Compound catalogue connected")
	return nil
}

// ReportService builds a report service rendering with the given
// presentation settings. Features are annotated in the given ionisation mode
// when the catalogue is connected.
func (c *Container) ReportService(presentation sop.Presentation, ionisation compound.Ionisation) (*app.ReportService, error) {
	writer, err := html.NewWriter(presentation, c.Tables)
	if err != nil {
		return nil, err
	}
	if c.Catalogue == nil {
		return app.NewReportService(writer, nil, app.AnnotationOptions{}), nil
	}
	return app.NewReportService(writer, c.Catalogue, app.AnnotationOptions{
		Ionisation: ionisation,
		PPM:        c.Config.Catalogue.PPMTol,
		RTWindow:   c.Config.Catalogue.RTTolerance,
	}), nil
}

// Shutdown releases the catalogue connection.
func (c *Container) Shutdown() error {
	if c.Catalogue != nil {
		err := c.Catalogue.Close()
		c.Catalogue = nil
		return err
	}
	return nil
}
