package report

import (
	"encoding/json"
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"time"

	"metaboqc/domain/core"
	"metaboqc/domain/sop"
)

// Items is the report item dictionary handed to the templating adapter.
type Items struct {
	ID          core.ReportID  `json:"id"`
	Kind        Kind           `json:"kind"`
	Title       string         `json:"title"`
	Dataset     string         `json:"dataset"`
	Platform    sop.Platform   `json:"platform"`
	SOP         string         `json:"sop"`
	Fingerprint core.Hash      `json:"fingerprint,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
	Narrative   string         `json:"narrative,omitempty"` // markdown
	Values      map[string]any `json:"values,omitempty"`
	Tables      []Table        `json:"tables,omitempty"`
	Figures     []Figure       `json:"figures,omitempty"`
	Warnings    []string       `json:"warnings,omitempty"`
}

// NewItems starts an empty dictionary of the given kind.
func NewItems(kind Kind, dataset string, platform sop.Platform, sopName string) *Items {
	return &Items{
		ID:        core.NewReportID(),
		Kind:      kind,
		Title:     TitleFor(kind),
		Dataset:   dataset,
		Platform:  platform,
		SOP:       sopName,
		CreatedAt: time.Now().UTC(),
		Values:    map[string]any{},
	}
}

// Set records a scalar fact.
func (it *Items) Set(key string, v any) {
	if it.Values == nil {
		it.Values = map[string]any{}
	}
	it.Values[key] = v
}

// Keys returns the scalar fact names in sorted order.
func (it *Items) Keys() []string {
	keys := make([]string, 0, len(it.Values))
	for k := range it.Values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// AddTable appends a table, replacing any table with the same name.
func (it *Items) AddTable(t Table) {
	for i := range it.Tables {
		if it.Tables[i].Name == t.Name {
			it.Tables[i] = t
			return
		}
	}
	it.Tables = append(it.Tables, t)
}

// AddFigure appends a figure, replacing any figure with the same name.
func (it *Items) AddFigure(f Figure) {
	for i := range it.Figures {
		if it.Figures[i].Name == f.Name {
			it.Figures[i] = f
			return
		}
	}
	it.Figures = append(it.Figures, f)
}

// Table returns the named table.
func (it *Items) Table(name string) (Table, bool) {
	for _, t := range it.Tables {
		if t.Name == name {
			return t, true
		}
	}
	return Table{}, false
}

// Figure returns the named figure.
func (it *Items) Figure(name string) (Figure, bool) {
	for _, f := range it.Figures {
		if f.Name == name {
			return f, true
		}
	}
	return Figure{}, false
}

// Warn appends a warning line.
func (it *Items) Warn(format string, args ...any) {
	it.Warnings = append(it.Warnings, fmt.Sprintf(format, args...))
}

// Merge appends the tables, figures, values and warnings of other, prefixing
// table and figure names with the other report's kind.
func (it *Items) Merge(other *Items) {
	prefix := string(other.Kind) + "/"
	for _, t := range other.Tables {
		t.Name = prefix + t.Name
		it.AddTable(t)
	}
	for _, f := range other.Figures {
		f.Name = prefix + f.Name
		it.AddFigure(f)
	}
	for _, k := range other.Keys() {
		it.Set(prefix+k, other.Values[k])
	}
	it.Warnings = append(it.Warnings, other.Warnings...)
}

// RewritePaths makes every figure path relative to outputDir. Paths that are
// already relative are left as they are.
func (it *Items) RewritePaths(outputDir string) error {
	base, err := filepath.Abs(outputDir)
	if err != nil {
		return fmt.Errorf("resolve output directory: %w", err)
	}
	for i := range it.Figures {
		p := it.Figures[i].Path
		if p == "" || !filepath.IsAbs(p) {
			continue
		}
		rel, err := filepath.Rel(base, p)
		if err != nil {
			return fmt.Errorf("rewrite %s: %w", p, err)
		}
		it.Figures[i].Path = filepath.ToSlash(rel)
	}
	return nil
}

// MarshalJSON writes non-finite scalar values as their display text.
func (it Items) MarshalJSON() ([]byte, error) {
	type plain Items
	p := plain(it)
	if it.Values != nil {
		p.Values = make(map[string]any, len(it.Values))
		for k, v := range it.Values {
			if f, ok := v.(float64); ok && (math.IsNaN(f) || math.IsInf(f, 0)) {
				v = Cell(f)
			}
			p.Values[k] = v
		}
	}
	return json.Marshal(p)
}
