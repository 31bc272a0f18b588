// Package html renders report item dictionaries as HTML documents with a
// sibling graphics/ directory of figure data.
package html

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/gomarkdown/markdown"
	mdhtml "github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"

	"metaboqc/domain/report"
	"metaboqc/domain/sop"
	"metaboqc/internal"
	"metaboqc/ports"
)

//go:embed templates/*.html
var templateFS embed.FS

// GraphicsDir is the directory, inside the output directory, that receives
// figure intermediate forms.
const GraphicsDir = "graphics"

// Writer implements ports.ReportWriter
type Writer struct {
	presentation sop.Presentation
	exporter     ports.TableExporter
	templates    *template.Template
	logger       *internal.Logger
}

var _ ports.ReportWriter = (*Writer)(nil)

// NewWriter parses the embedded templates. A nil exporter skips the XLSX
// table export.
func NewWriter(presentation sop.Presentation, exporter ports.TableExporter) (*Writer, error) {
	templates, err := template.New("").ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	return &Writer{
		presentation: presentation,
		exporter:     exporter,
		templates:    templates,
		logger:       internal.DefaultLogger.With("ReportWriter"),
	}, nil
}

type valueView struct {
	Key   string
	Value string
}

type tableView struct {
	Name      string
	Title     string
	Columns   []string
	Rows      [][]string
	Truncated int
}

type figureView struct {
	Name  string
	Title string
	SVG   template.HTML
	Path  string
}

type page struct {
	Items     *report.Items
	Narrative template.HTML
	Values    []valueView
	Tables    []tableView
	Figures   []figureView
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// BaseName is the file stem shared by a report's HTML, JSON and XLSX files.
func BaseName(it *report.Items) string {
	name := unsafeChars.ReplaceAllString(it.Dataset, "_")
	if name == "" {
		name = "dataset"
	}
	return name + "_report_" + string(it.Kind)
}

// Write renders the report into outputDir: <base>.html, <base>.json with the
// item dictionary, graphics/<base>/<figure>.json per figure and, when an
// exporter is configured, <base>.xlsx with every table. Figure paths in items
// are rewritten relative to outputDir.
func (w *Writer) Write(ctx context.Context, items *report.Items, outputDir string) (string, error) {
	start := time.Now()
	base := BaseName(items)
	graphics := filepath.Join(outputDir, GraphicsDir, base)
	if err := os.MkdirAll(graphics, 0o755); err != nil {
		return "", fmt.Errorf("failed to create graphics directory: %w", err)
	}

	for i := range items.Figures {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		f := &items.Figures[i]
		path, err := filepath.Abs(filepath.Join(graphics, figureFile(f.Name)))
		if err != nil {
			return "", err
		}
		f.Path = path
		if err := writeJSON(path, f); err != nil {
			return "", fmt.Errorf("failed to write figure %s: %w", f.Name, err)
		}
	}
	if err := items.RewritePaths(outputDir); err != nil {
		return "", err
	}

	if err := writeJSON(filepath.Join(outputDir, base+".json"), items); err != nil {
		return "", fmt.Errorf("failed to write report items: %w", err)
	}

	htmlPath := filepath.Join(outputDir, base+".html")
	var buf bytes.Buffer
	if err := w.render(&buf, items, false); err != nil {
		return "", err
	}
	if err := os.WriteFile(htmlPath, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}

	if w.exporter != nil && len(items.Tables) > 0 {
		if err := w.exporter.ExportTables(ctx, items, filepath.Join(outputDir, base+".xlsx")); err != nil {
			return "", fmt.Errorf("failed to export tables: %w", err)
		}
	}

	w.logger.Info("Wrote %s report for %s (%d tables, %d figures) in %.2fms",
		items.Kind, items.Dataset, len(items.Tables), len(items.Figures), float64(time.Since(start).Nanoseconds())/1e6)
	return htmlPath, nil
}

// WriteInline renders a self-contained document without touching the file
// system; figures are embedded as SVG only.
func (w *Writer) WriteInline(ctx context.Context, items *report.Items, out io.Writer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := w.render(&buf, items, true); err != nil {
		return err
	}
	_, err := buf.WriteTo(out)
	return err
}

func (w *Writer) render(out io.Writer, items *report.Items, inline bool) error {
	p := page{Items: items}
	if items.Narrative != "" {
		p.Narrative = renderMarkdown(items.Narrative)
	}
	for _, k := range items.Keys() {
		p.Values = append(p.Values, valueView{Key: k, Value: report.Cell(items.Values[k])})
	}
	for _, t := range items.Tables {
		p.Tables = append(p.Tables, w.tableView(t))
	}
	for _, f := range items.Figures {
		fv := figureView{
			Name:  f.Name,
			Title: f.Title,
			SVG:   renderSVG(f, w.presentation.FigureWidth, w.presentation.FigureHeight),
		}
		if !inline {
			fv.Path = f.Path
		}
		p.Figures = append(p.Figures, fv)
	}
	if err := w.templates.ExecuteTemplate(out, "report.html", p); err != nil {
		return fmt.Errorf("template error: %w", err)
	}
	return nil
}

func (w *Writer) tableView(t report.Table) tableView {
	v := tableView{Name: t.Name, Title: t.Title, Columns: t.Columns}
	if v.Title == "" {
		v.Title = t.Name
	}
	rows := t.Rows
	if limit := w.presentation.MaxTableRows; limit > 0 && len(rows) > limit {
		v.Truncated = len(rows) - limit
		rows = rows[:limit]
	}
	v.Rows = make([][]string, len(rows))
	for i, row := range rows {
		v.Rows[i] = make([]string, len(row))
		for j, c := range row {
			v.Rows[i][j] = report.Cell(c)
		}
	}
	return v
}

func renderMarkdown(s string) template.HTML {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.NoEmptyLineBeforeBlock)
	r := mdhtml.NewRenderer(mdhtml.RendererOptions{Flags: mdhtml.CommonFlags | mdhtml.SkipHTML})
	return template.HTML(markdown.ToHTML([]byte(s), p, r))
}

// figureFile maps a figure name (possibly "kind/name" after a merge) to a
// file name.
func figureFile(name string) string {
	return unsafeChars.ReplaceAllString(strings.ReplaceAll(name, "/", "__"), "_") + ".json"
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
