package coercer

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"metaboqc/domain/core"
	"metaboqc/domain/dataset"
)

// TypeCoercer converts imported text cells into typed dataset columns with
// deterministic rules.
type TypeCoercer struct {
	config CoercionConfig
}

// CoercionConfig defines the inference thresholds and accepted tokens
type CoercionConfig struct {
	NumericThreshold   float64  `json:"numeric_threshold"`   // share of present values that must parse as numbers
	BooleanThreshold   float64  `json:"boolean_threshold"`   // share of present values that must parse as booleans
	TimestampThreshold float64  `json:"timestamp_threshold"` // share of present values that must parse as timestamps
	MissingTokens      []string `json:"missing_tokens"`      // cells read as missing, compared case-insensitively
	TimeFormats        []string `json:"time_formats"`
}

// DefaultCoercionConfig returns the import defaults
func DefaultCoercionConfig() CoercionConfig {
	return CoercionConfig{
		NumericThreshold:   0.8,
		BooleanThreshold:   1.0,
		TimestampThreshold: 0.8,
		MissingTokens:      []string{"", "na", "n/a", "nan", "null", "none", "-"},
		TimeFormats: []string{
			time.RFC3339,
			"2006-01-02T15:04:05",
			"2006-01-02 15:04:05",
			"02-Jan-2006 15:04:05",
			"02/01/2006 15:04",
			"2006-01-02",
			"02-Jan-2006",
		},
	}
}

// NewTypeCoercer creates a coercer with the given config
func NewTypeCoercer(config CoercionConfig) *TypeCoercer {
	return &TypeCoercer{config: config}
}

// TypeAnalysis counts how many present values parse as each kind.
type TypeAnalysis struct {
	TotalCount      int          `json:"total_count"`
	ValidCount      int          `json:"valid_count"`
	NumericCount    int          `json:"numeric_count"`
	BooleanCount    int          `json:"boolean_count"`
	TimestampCount  int          `json:"timestamp_count"`
	NumericRatio    float64      `json:"numeric_ratio"`
	BooleanRatio    float64      `json:"boolean_ratio"`
	TimestampRatio  float64      `json:"timestamp_ratio"`
	RecommendedType dataset.Kind `json:"recommended_type"`
}

// IsMissing reports whether a cell holds no value.
func (c *TypeCoercer) IsMissing(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, tok := range c.config.MissingTokens {
		if s == tok {
			return true
		}
	}
	return false
}

// AnalyzeTypeDistribution inspects a column of cells and recommends a kind.
func (c *TypeCoercer) AnalyzeTypeDistribution(values []string) TypeAnalysis {
	analysis := TypeAnalysis{TotalCount: len(values)}
	for _, v := range values {
		if c.IsMissing(v) {
			continue
		}
		analysis.ValidCount++
		if _, ok := c.ParseFloat(v); ok {
			analysis.NumericCount++
		}
		if _, ok := c.ParseBool(v); ok {
			analysis.BooleanCount++
		}
		if _, ok := c.ParseTime(v); ok {
			analysis.TimestampCount++
		}
	}
	if analysis.ValidCount > 0 {
		n := float64(analysis.ValidCount)
		analysis.NumericRatio = float64(analysis.NumericCount) / n
		analysis.BooleanRatio = float64(analysis.BooleanCount) / n
		analysis.TimestampRatio = float64(analysis.TimestampCount) / n
	}
	analysis.RecommendedType = c.determineRecommendedType(analysis)
	return analysis
}

// determineRecommendedType picks bool only when every present cell is a flag
// and at least one of them is a word rather than a number.
func (c *TypeCoercer) determineRecommendedType(a TypeAnalysis) dataset.Kind {
	switch {
	case a.ValidCount == 0:
		return dataset.KindString
	case a.BooleanRatio >= c.config.BooleanThreshold && a.NumericCount < a.ValidCount:
		return dataset.KindBool
	case a.NumericRatio >= c.config.NumericThreshold:
		return dataset.KindFloat
	case a.TimestampRatio >= c.config.TimestampThreshold:
		return dataset.KindTime
	default:
		return dataset.KindString
	}
}

// ParseFloat parses a numeric cell. Accepts scientific notation, signed
// infinities, a decimal comma and thousands separators.
func (c *TypeCoercer) ParseFloat(s string) (float64, bool) {
	clean := strings.TrimSpace(s)
	if clean == "" {
		return 0, false
	}
	switch strings.ToLower(clean) {
	case "inf", "+inf", "infinity":
		return math.Inf(1), true
	case "-inf", "-infinity":
		return math.Inf(-1), true
	}

	hasComma := strings.Contains(clean, ",")
	hasPeriod := strings.Contains(clean, ".")
	switch {
	case hasComma && hasPeriod:
		if strings.LastIndex(clean, ",") > strings.LastIndex(clean, ".") {
			// 1.234,56
			clean = strings.ReplaceAll(clean, ".", "")
			clean = strings.ReplaceAll(clean, ",", ".")
		} else {
			clean = strings.ReplaceAll(clean, ",", "")
		}
	case hasComma:
		clean = strings.ReplaceAll(clean, ",", ".")
	}
	clean = strings.ReplaceAll(clean, " ", "")

	v, err := strconv.ParseFloat(clean, 64)
	if err != nil || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// ParseBool parses a flag cell.
func (c *TypeCoercer) ParseBool(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "t", "yes", "y", "1", "1.0":
		return true, true
	case "false", "f", "no", "n", "0", "0.0":
		return false, true
	}
	return false, false
}

// ParseTime parses a timestamp cell against the configured layouts.
func (c *TypeCoercer) ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range c.config.TimeFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Column builds a typed column from raw cells. Known dataset columns are
// coerced to their declared kind and any unparseable cell is a schema error;
// other columns take the recommended kind, with unparseable cells missing.
func (c *TypeCoercer) Column(name string, cells []string) (dataset.Column, error) {
	kind, known := dataset.ColumnKind(name)
	if !known {
		kind = c.AnalyzeTypeDistribution(cells).RecommendedType
	}
	col, bad := c.coerce(name, kind, cells)
	if known && bad >= 0 {
		return dataset.Column{}, core.NewSchemaError(name, fmt.Sprintf("row %d: cannot read %q as %s", bad+1, cells[bad], kind))
	}
	return col, nil
}

// coerce converts cells to kind and returns the first unparseable row, or -1.
func (c *TypeCoercer) coerce(name string, kind dataset.Kind, cells []string) (dataset.Column, int) {
	bad := -1
	mark := func(i int) {
		if bad < 0 {
			bad = i
		}
	}
	switch kind {
	case dataset.KindFloat:
		v := make([]float64, len(cells))
		for i, s := range cells {
			if c.IsMissing(s) {
				v[i] = math.NaN()
				continue
			}
			f, ok := c.ParseFloat(s)
			if !ok {
				mark(i)
				f = math.NaN()
			}
			v[i] = f
		}
		return dataset.FloatColumn(name, v), bad
	case dataset.KindBool:
		v := make([]bool, len(cells))
		for i, s := range cells {
			if c.IsMissing(s) {
				continue
			}
			b, ok := c.ParseBool(s)
			if !ok {
				mark(i)
			}
			v[i] = b
		}
		return dataset.BoolColumn(name, v), bad
	case dataset.KindTime:
		v := make([]time.Time, len(cells))
		for i, s := range cells {
			if c.IsMissing(s) {
				continue
			}
			t, ok := c.ParseTime(s)
			if !ok {
				mark(i)
			}
			v[i] = t
		}
		return dataset.TimeColumn(name, v), bad
	default:
		v := make([]string, len(cells))
		for i, s := range cells {
			if !c.IsMissing(s) {
				v[i] = strings.TrimSpace(s)
			}
		}
		return dataset.StringColumn(name, v), bad
	}
}

// Table builds a typed table from a header and rows of cells. Short rows are
// padded with missing cells.
func (c *TypeCoercer) Table(headers []string, rows [][]string) (dataset.Table, error) {
	cols := make([]dataset.Column, 0, len(headers))
	for j, h := range headers {
		cells := make([]string, len(rows))
		for i, row := range rows {
			if j < len(row) {
				cells[i] = row[j]
			}
		}
		col, err := c.Column(h, cells)
		if err != nil {
			return dataset.Table{}, err
		}
		cols = append(cols, col)
	}
	return dataset.NewTable(len(rows), cols...)
}
