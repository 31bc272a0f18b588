package ports

import (
	"context"
	"io"
	"time"

	"metaboqc/domain/core"
	"metaboqc/domain/report"
)

// ReportWriter renders a report item dictionary.
type ReportWriter interface {
	// Write renders into outputDir and returns the path of the HTML file.
	Write(ctx context.Context, items *report.Items, outputDir string) (string, error)
	// WriteInline renders a self-contained document to w.
	WriteInline(ctx context.Context, items *report.Items, w io.Writer) error
}

// TableExporter writes report tables to a spreadsheet.
type TableExporter interface {
	ExportTables(ctx context.Context, items *report.Items, path string) error
}

// ReportEntry summarises a rendered report on disk.
type ReportEntry struct {
	ID        core.ReportID `json:"id"`
	Kind      report.Kind   `json:"kind"`
	Title     string        `json:"title"`
	Dataset   string        `json:"dataset"`
	Path      string        `json:"path"`
	CreatedAt time.Time     `json:"createdAt"`
}

// ReportIndex lists rendered reports.
type ReportIndex interface {
	List(ctx context.Context) ([]ReportEntry, error)
	Get(ctx context.Context, id core.ReportID) (*report.Items, error)
}
