package dataset

import (
	"fmt"
	"math"
	"time"

	"metaboqc/domain/core"
)

// Kind is the storage type of a table column.
type Kind int

const (
	KindFloat Kind = iota
	KindString
	KindTime
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindTime:
		return "time"
	case KindBool:
		return "bool"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Column is one named, typed column. Exactly one of the value slices is
// populated, matching Kind. Missing floats are NaN, missing strings are empty
// and missing times are the zero time.
type Column struct {
	Name    string
	Kind    Kind
	Floats  []float64
	Strings []string
	Times   []time.Time
	Bools   []bool
}

// FloatColumn builds a float column.
func FloatColumn(name string, v []float64) Column {
	return Column{Name: name, Kind: KindFloat, Floats: v}
}

// StringColumn builds a string column.
func StringColumn(name string, v []string) Column {
	return Column{Name: name, Kind: KindString, Strings: v}
}

// TimeColumn builds a timestamp column.
func TimeColumn(name string, v []time.Time) Column {
	return Column{Name: name, Kind: KindTime, Times: v}
}

// BoolColumn builds a boolean column.
func BoolColumn(name string, v []bool) Column {
	return Column{Name: name, Kind: KindBool, Bools: v}
}

// Len returns the number of rows in the column.
func (c Column) Len() int {
	switch c.Kind {
	case KindFloat:
		return len(c.Floats)
	case KindString:
		return len(c.Strings)
	case KindTime:
		return len(c.Times)
	default:
		return len(c.Bools)
	}
}

// Missing reports whether row i holds no value.
func (c Column) Missing(i int) bool {
	switch c.Kind {
	case KindFloat:
		return math.IsNaN(c.Floats[i])
	case KindString:
		return c.Strings[i] == ""
	case KindTime:
		return c.Times[i].IsZero()
	default:
		return false
	}
}

// Value returns row i as an untyped value, nil when missing.
func (c Column) Value(i int) any {
	if c.Missing(i) {
		return nil
	}
	switch c.Kind {
	case KindFloat:
		return c.Floats[i]
	case KindString:
		return c.Strings[i]
	case KindTime:
		return c.Times[i]
	default:
		return c.Bools[i]
	}
}

// Text renders row i for display and for string-keyed grouping.
func (c Column) Text(i int) string {
	switch c.Kind {
	case KindFloat:
		if math.IsNaN(c.Floats[i]) {
			return ""
		}
		return fmt.Sprintf("%g", c.Floats[i])
	case KindString:
		return c.Strings[i]
	case KindTime:
		if c.Times[i].IsZero() {
			return ""
		}
		return c.Times[i].Format(time.RFC3339)
	default:
		if c.Bools[i] {
			return "True"
		}
		return "False"
	}
}

func (c Column) take(rows []int) Column {
	out := Column{Name: c.Name, Kind: c.Kind}
	switch c.Kind {
	case KindFloat:
		out.Floats = make([]float64, len(rows))
		for i, r := range rows {
			out.Floats[i] = c.Floats[r]
		}
	case KindString:
		out.Strings = make([]string, len(rows))
		for i, r := range rows {
			out.Strings[i] = c.Strings[r]
		}
	case KindTime:
		out.Times = make([]time.Time, len(rows))
		for i, r := range rows {
			out.Times[i] = c.Times[r]
		}
	default:
		out.Bools = make([]bool, len(rows))
		for i, r := range rows {
			out.Bools[i] = c.Bools[r]
		}
	}
	return out
}

func (c Column) clone() Column {
	out := Column{Name: c.Name, Kind: c.Kind}
	out.Floats = append([]float64(nil), c.Floats...)
	out.Strings = append([]string(nil), c.Strings...)
	out.Times = append([]time.Time(nil), c.Times...)
	out.Bools = append([]bool(nil), c.Bools...)
	return out
}

// Table is an ordered set of equal-length columns. Tables are values: every
// method that changes content returns a new Table and leaves the receiver
// untouched.
type Table struct {
	rows    int
	columns []Column
	index   map[string]int
}

// NewTable assembles columns into a table, checking lengths and names.
func NewTable(rows int, columns ...Column) (Table, error) {
	t := Table{rows: rows, index: make(map[string]int, len(columns))}
	for _, c := range columns {
		if c.Len() != rows {
			return Table{}, fmt.Errorf("%w: column %q has %d rows, expected %d", core.ErrShapeMismatch, c.Name, c.Len(), rows)
		}
		if _, dup := t.index[c.Name]; dup {
			return Table{}, core.NewSchemaError(c.Name, "duplicate column name")
		}
		t.index[c.Name] = len(t.columns)
		t.columns = append(t.columns, c.clone())
	}
	return t, nil
}

// Rows returns the number of rows.
func (t Table) Rows() int { return t.rows }

// Names returns the column names in table order.
func (t Table) Names() []string {
	names := make([]string, len(t.columns))
	for i, c := range t.columns {
		names[i] = c.Name
	}
	return names
}

// Columns returns the columns in table order. Callers must not modify the
// returned slices.
func (t Table) Columns() []Column { return t.columns }

// Has reports whether a column exists.
func (t Table) Has(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Column returns a named column.
func (t Table) Column(name string) (Column, error) {
	i, ok := t.index[name]
	if !ok {
		return Column{}, fmt.Errorf("%w %q", core.ErrColumnNotFound, name)
	}
	return t.columns[i], nil
}

// Floats returns a copy of a float column.
func (t Table) Floats(name string) ([]float64, error) {
	c, err := t.typed(name, KindFloat)
	if err != nil {
		return nil, err
	}
	return append([]float64(nil), c.Floats...), nil
}

// Strings returns a copy of a string column.
func (t Table) Strings(name string) ([]string, error) {
	c, err := t.typed(name, KindString)
	if err != nil {
		return nil, err
	}
	return append([]string(nil), c.Strings...), nil
}

// Bools returns a copy of a bool column.
func (t Table) Bools(name string) ([]bool, error) {
	c, err := t.typed(name, KindBool)
	if err != nil {
		return nil, err
	}
	return append([]bool(nil), c.Bools...), nil
}

// Times returns a copy of a timestamp column.
func (t Table) Times(name string) ([]time.Time, error) {
	c, err := t.typed(name, KindTime)
	if err != nil {
		return nil, err
	}
	return append([]time.Time(nil), c.Times...), nil
}

func (t Table) typed(name string, kind Kind) (Column, error) {
	c, err := t.Column(name)
	if err != nil {
		return Column{}, err
	}
	if c.Kind != kind {
		return Column{}, core.NewSchemaError(name, fmt.Sprintf("expected %s column, found %s", kind, c.Kind))
	}
	return c, nil
}

// With returns a table with the column added, or replaced when a column of
// the same name exists.
func (t Table) With(c Column) (Table, error) {
	if c.Len() != t.rows {
		return Table{}, fmt.Errorf("%w: column %q has %d rows, expected %d", core.ErrShapeMismatch, c.Name, c.Len(), t.rows)
	}
	out := t.shallow()
	if i, ok := out.index[c.Name]; ok {
		out.columns[i] = c.clone()
		return out, nil
	}
	out.index[c.Name] = len(out.columns)
	out.columns = append(out.columns, c.clone())
	return out, nil
}

// Without returns a table with the named columns removed.
func (t Table) Without(names ...string) Table {
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		drop[n] = true
	}
	out := Table{rows: t.rows, index: make(map[string]int)}
	for _, c := range t.columns {
		if drop[c.Name] {
			continue
		}
		out.index[c.Name] = len(out.columns)
		out.columns = append(out.columns, c)
	}
	return out
}

// Take returns the given rows, in order.
func (t Table) Take(rows []int) Table {
	out := Table{rows: len(rows), index: make(map[string]int, len(t.columns))}
	for i, c := range t.columns {
		out.index[c.Name] = i
		out.columns = append(out.columns, c.take(rows))
	}
	return out
}

// Equal reports whether two tables hold the same columns and values. NaN
// equals NaN.
func (t Table) Equal(o Table) bool {
	if t.rows != o.rows || len(t.columns) != len(o.columns) {
		return false
	}
	for i, a := range t.columns {
		b := o.columns[i]
		if a.Name != b.Name || a.Kind != b.Kind {
			return false
		}
		for r := 0; r < t.rows; r++ {
			if a.Missing(r) != b.Missing(r) {
				return false
			}
			if a.Missing(r) {
				continue
			}
			switch a.Kind {
			case KindFloat:
				if a.Floats[r] != b.Floats[r] {
					return false
				}
			case KindString:
				if a.Strings[r] != b.Strings[r] {
					return false
				}
			case KindTime:
				if !a.Times[r].Equal(b.Times[r]) {
					return false
				}
			default:
				if a.Bools[r] != b.Bools[r] {
					return false
				}
			}
		}
	}
	return true
}

// shallow copies the column list and index so a single column can be
// replaced without touching the receiver.
func (t Table) shallow() Table {
	out := Table{rows: t.rows, index: make(map[string]int, len(t.index))}
	out.columns = append([]Column(nil), t.columns...)
	for k, v := range t.index {
		out.index[k] = v
	}
	return out
}
