package features

import (
	"errors"
	"fmt"
	"time"
)

// Names of the required columns. Statistic columns may not reuse them.
const (
	ColumnFeature = "feature"
	ColumnFrame   = "frame"
	ColumnTime    = "time"
)

// ErrInvalidTable is returned when a table violates its key invariants.
var ErrInvalidTable = errors.New("invalid feature table")

// Row is one detected feature instance.
type Row struct {
	Feature int64     `json:"feature"`
	Frame   int       `json:"frame"`
	Time    time.Time `json:"time"`
	// Extra carries upstream scalar columns such as seed positions
	// (hdim_1, hdim_2, ...). Keys become columns in sorted order.
	Extra map[string]float64 `json:"extra,omitempty"`
}

// Column is a named, row-aligned column of cells.
type Column struct {
	Name   string
	Values []Value
}

// FloatColumn builds a scalar column.
func FloatColumn(name string, vals []float64) Column {
	c := Column{Name: name, Values: make([]Value, len(vals))}
	for i, v := range vals {
		c.Values[i] = Scalar(v)
	}
	return c
}

// Kind returns the kind shared by all cells; an empty column is scalar.
// The second result is false when the column mixes kinds.
func (c Column) Kind() (Kind, bool) {
	if len(c.Values) == 0 {
		return KindScalar, true
	}
	k := c.Values[0].Kind()
	for _, v := range c.Values[1:] {
		if v.Kind() != k {
			return k, false
		}
	}
	return k, true
}

func (c Column) clone() Column {
	out := Column{Name: c.Name, Values: make([]Value, len(c.Values))}
	for i, v := range c.Values {
		if v.kind == KindVector {
			v = Vector(v.vector)
		}
		out.Values[i] = v
	}
	return out
}

// Table is an ordered collection of feature rows plus extra columns.
type Table struct {
	feature []int64
	frame   []int
	time    []time.Time
	columns []Column
}

// NewTable builds a table from rows, preserving row order. Extra values
// become scalar columns; rows that omit a key get NaN in that column.
func NewTable(rows []Row) (*Table, error) {
	t := &Table{
		feature: make([]int64, len(rows)),
		frame:   make([]int, len(rows)),
		time:    make([]time.Time, len(rows)),
	}
	extra := make(map[string][]Value)
	var order []string
	for i, r := range rows {
		t.feature[i] = r.Feature
		t.frame[i] = r.Frame
		t.time[i] = r.Time
		for _, k := range sortedKeys(r.Extra) {
			if _, ok := extra[k]; !ok {
				col := make([]Value, len(rows))
				for j := range col {
					col[j] = NaN()
				}
				extra[k] = col
				order = append(order, k)
			}
			extra[k][i] = Scalar(r.Extra[k])
		}
	}
	for _, k := range order {
		if IsReserved(k) {
			return nil, fmt.Errorf("%w: extra column %q shadows a required column", ErrInvalidTable, k)
		}
		t.columns = append(t.columns, Column{Name: k, Values: extra[k]})
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// MustNewTable is NewTable for fixtures and tests.
func MustNewTable(rows []Row) *Table {
	t, err := NewTable(rows)
	if err != nil {
		panic(err)
	}
	return t
}

// Validate checks that feature ids are unique and frames are non-negative.
func (t *Table) Validate() error {
	seen := make(map[int64]int, len(t.feature))
	for i, id := range t.feature {
		if j, dup := seen[id]; dup {
			return fmt.Errorf("%w: feature %d appears in rows %d and %d", ErrInvalidTable, id, j, i)
		}
		seen[id] = i
		if t.frame[i] < 0 {
			return fmt.Errorf("%w: feature %d has negative frame %d", ErrInvalidTable, id, t.frame[i])
		}
	}
	for _, c := range t.columns {
		if len(c.Values) != len(t.feature) {
			return &ShapeError{Column: c.Name, Want: len(t.feature), Got: len(c.Values)}
		}
	}
	return nil
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.feature) }

// Row returns row i with its scalar extra columns.
func (t *Table) Row(i int) Row {
	r := Row{Feature: t.feature[i], Frame: t.frame[i], Time: t.time[i]}
	for _, c := range t.columns {
		if c.Values[i].Kind() != KindScalar {
			continue
		}
		if r.Extra == nil {
			r.Extra = make(map[string]float64)
		}
		r.Extra[c.Name] = c.Values[i].Float()
	}
	return r
}

// Rows returns every row in table order.
func (t *Table) Rows() []Row {
	out := make([]Row, t.Len())
	for i := range out {
		out[i] = t.Row(i)
	}
	return out
}

// Feature returns the feature id of row i.
func (t *Table) Feature(i int) int64 { return t.feature[i] }

// Frame returns the frame index of row i.
func (t *Table) Frame(i int) int { return t.frame[i] }

// Time returns the timestamp of row i.
func (t *Table) Time(i int) time.Time { return t.time[i] }

// Frames returns the distinct frames in order of first appearance.
func (t *Table) Frames() []int {
	seen := make(map[int]bool)
	var out []int
	for _, f := range t.frame {
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	return out
}

// Columns returns all column names: the required columns first, then the
// extra columns in order.
func (t *Table) Columns() []string {
	out := []string{ColumnFeature, ColumnFrame, ColumnTime}
	for _, c := range t.columns {
		out = append(out, c.Name)
	}
	return out
}

// Column returns a copy of the named extra column.
func (t *Table) Column(name string) (Column, bool) {
	i := t.columnIndex(name)
	if i < 0 {
		return Column{}, false
	}
	return t.columns[i].clone(), true
}

// HasColumn reports whether name is a required or extra column.
func (t *Table) HasColumn(name string) bool {
	return IsReserved(name) || t.columnIndex(name) >= 0
}

// Floats returns a scalar column as float64. Vector cells become NaN.
func (t *Table) Floats(name string) ([]float64, bool) {
	i := t.columnIndex(name)
	if i < 0 {
		return nil, false
	}
	out := make([]float64, t.Len())
	for r, v := range t.columns[i].Values {
		out[r] = v.Float()
	}
	return out, true
}

// Clone returns a deep copy.
func (t *Table) Clone() *Table {
	out := &Table{
		feature: append([]int64(nil), t.feature...),
		frame:   append([]int(nil), t.frame...),
		time:    append([]time.Time(nil), t.time...),
		columns: make([]Column, len(t.columns)),
	}
	for i, c := range t.columns {
		out.columns[i] = c.clone()
	}
	return out
}

// Equal reports whether two tables have the same rows, the same columns in
// the same order, and bit-identical cells.
func (t *Table) Equal(o *Table) bool {
	if t.Len() != o.Len() || len(t.columns) != len(o.columns) {
		return false
	}
	for i := range t.feature {
		if t.feature[i] != o.feature[i] || t.frame[i] != o.frame[i] || !t.time[i].Equal(o.time[i]) {
			return false
		}
	}
	for i, c := range t.columns {
		oc := o.columns[i]
		if c.Name != oc.Name {
			return false
		}
		for r := range c.Values {
			if !c.Values[r].Identical(oc.Values[r]) {
				return false
			}
		}
	}
	return true
}

// IsReserved reports whether name is one of the required columns.
func IsReserved(name string) bool {
	return name == ColumnFeature || name == ColumnFrame || name == ColumnTime
}

func (t *Table) columnIndex(name string) int {
	for i, c := range t.columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}
