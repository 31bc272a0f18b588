// Package report defines the report item dictionary: the tables, figure
// intermediate forms and scalar facts a QC report is rendered from.
package report

import (
	"encoding/json"
	"math"
	"strconv"
)

// Kind identifies a report type.
type Kind string

const (
	KindSampleSummary  Kind = "sample_summary"
	KindFeatureSummary Kind = "feature_summary"
	KindNMR            Kind = "nmr_summary"
	KindCorrection     Kind = "correction_assessment"
	KindTargeted       Kind = "targeted_summary"
	KindMultivariate   Kind = "multivariate"
	KindFinal          Kind = "final"
)

// Floats is a numeric series that encodes non-finite values as JSON null.
type Floats []float64

// MarshalJSON implements json.Marshaler.
func (f Floats) MarshalJSON() ([]byte, error) {
	buf := make([]byte, 0, 8*len(f)+2)
	buf = append(buf, '[')
	for i, v := range f {
		if i > 0 {
			buf = append(buf, ',')
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			buf = append(buf, "null"...)
			continue
		}
		buf = strconv.AppendFloat(buf, v, 'g', -1, 64)
	}
	return append(buf, ']'), nil
}

// UnmarshalJSON implements json.Unmarshaler; null decodes as NaN.
func (f *Floats) UnmarshalJSON(data []byte) error {
	var raw []*float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Floats, len(raw))
	for i, v := range raw {
		if v == nil {
			out[i] = math.NaN()
		} else {
			out[i] = *v
		}
	}
	*f = out
	return nil
}

// Table is a rectangular report table. Cells hold string, float64, int or
// bool values; non-finite floats are written as text.
type Table struct {
	Name    string   `json:"name"`
	Title   string   `json:"title"`
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// Append adds a row. It panics if the row width does not match the columns,
// which is a programming error in the report builder.
func (t *Table) Append(cells ...any) {
	if len(cells) != len(t.Columns) {
		panic("report: row width does not match columns of " + t.Name)
	}
	t.Rows = append(t.Rows, cells)
}

// Cell formats one cell for display.
func Cell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		switch {
		case math.IsNaN(x):
			return "NaN"
		case math.IsInf(x, 1):
			return "Inf"
		case math.IsInf(x, -1):
			return "-Inf"
		}
		return strconv.FormatFloat(x, 'g', 6, 64)
	case int:
		return strconv.Itoa(x)
	case bool:
		if x {
			return "True"
		}
		return "False"
	default:
		b, _ := json.Marshal(x)
		return string(b)
	}
}

// MarshalJSON writes non-finite float cells as their display text.
func (t Table) MarshalJSON() ([]byte, error) {
	rows := make([][]any, len(t.Rows))
	for i, row := range t.Rows {
		rows[i] = make([]any, len(row))
		for j, v := range row {
			if f, ok := v.(float64); ok && (math.IsNaN(f) || math.IsInf(f, 0)) {
				rows[i][j] = Cell(f)
				continue
			}
			rows[i][j] = v
		}
	}
	type plain Table
	p := plain(t)
	p.Rows = rows
	return json.Marshal(p)
}

// FigureKind names the figure intermediate forms understood by renderers.
type FigureKind string

const (
	FigureHistogram FigureKind = "histogram"
	FigureScatter   FigureKind = "scatter"
	FigureLine      FigureKind = "line"
	FigureHeatmap   FigureKind = "heatmap"
	FigureBar       FigureKind = "bar"
)

// Series is one coloured trace of a figure.
type Series struct {
	Name   string   `json:"name"`
	Color  string   `json:"color,omitempty"`
	X      Floats   `json:"x"`
	Y      Floats   `json:"y"`
	Labels []string `json:"labels,omitempty"`
}

// Grid is heatmap data: Values[row][column].
type Grid struct {
	Rows    []string `json:"rows"`
	Columns []string `json:"columns"`
	Values  []Floats `json:"values"`
}

// Shape is an overlay drawn on a figure, such as a confidence ellipse or a
// threshold line.
type Shape struct {
	Kind   string  `json:"kind"` // "ellipse", "hline", "vline"
	Label  string  `json:"label,omitempty"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width,omitempty"`
	Height float64 `json:"height,omitempty"`
}

// Figure is a rendering-independent description of a plot.
type Figure struct {
	Name   string     `json:"name"`
	Kind   FigureKind `json:"kind"`
	Title  string     `json:"title"`
	XLabel string     `json:"xLabel,omitempty"`
	YLabel string     `json:"yLabel,omitempty"`
	Series []Series   `json:"series,omitempty"`
	Grid   *Grid      `json:"grid,omitempty"`
	Shapes []Shape    `json:"shapes,omitempty"`
	// Path is where the adapter wrote the figure, relative to the report
	// output directory once rewritten.
	Path string `json:"path,omitempty"`
}

// AddShape appends an overlay; shapes with non-finite coordinates are
// dropped.
func (f *Figure) AddShape(s Shape) {
	for _, v := range []float64{s.X, s.Y, s.Width, s.Height} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return
		}
	}
	f.Shapes = append(f.Shapes, s)
}
