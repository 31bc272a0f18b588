package html

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"metaboqc/domain/core"
	"metaboqc/domain/report"
	"metaboqc/ports"
)

// Index lists reports rendered by Writer into one output directory
type Index struct {
	dir string
}

var _ ports.ReportIndex = (*Index)(nil)

// NewIndex creates an index over outputDir
func NewIndex(outputDir string) *Index {
	return &Index{dir: outputDir}
}

// Dir returns the indexed output directory.
func (x *Index) Dir() string {
	return x.dir
}

type entryHeader struct {
	ID        core.ReportID `json:"id"`
	Kind      report.Kind   `json:"kind"`
	Title     string        `json:"title"`
	Dataset   string        `json:"dataset"`
	CreatedAt time.Time     `json:"createdAt"`
}

// List returns every report in the directory, newest first. Files that do
// not decode as item dictionaries are skipped.
func (x *Index) List(ctx context.Context) ([]ports.ReportEntry, error) {
	files, err := filepath.Glob(filepath.Join(x.dir, "*_report_*.json"))
	if err != nil {
		return nil, err
	}
	entries := make([]ports.ReportEntry, 0, len(files))
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := os.ReadFile(f)
		if err != nil {
			return nil, err
		}
		var h entryHeader
		if err := json.Unmarshal(data, &h); err != nil || h.ID == "" {
			continue
		}
		entries = append(entries, ports.ReportEntry{
			ID:        h.ID,
			Kind:      h.Kind,
			Title:     h.Title,
			Dataset:   h.Dataset,
			Path:      strings.TrimSuffix(filepath.Base(f), ".json") + ".html",
			CreatedAt: h.CreatedAt,
		})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})
	return entries, nil
}

// Get loads the item dictionary of one report.
func (x *Index) Get(ctx context.Context, id core.ReportID) (*report.Items, error) {
	entries, err := x.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if e.ID != id {
			continue
		}
		data, err := os.ReadFile(filepath.Join(x.dir, strings.TrimSuffix(e.Path, ".html")+".json"))
		if err != nil {
			return nil, err
		}
		var items report.Items
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, fmt.Errorf("failed to decode report %s: %w", id, err)
		}
		return &items, nil
	}
	return nil, fmt.Errorf("%w: %s", core.ErrReportNotFound, id)
}
