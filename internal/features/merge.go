package features

import (
	"errors"
	"fmt"
	"sort"
)

// ErrColumnName is returned for an empty or reserved column name.
var ErrColumnName = errors.New("invalid column name")

// ShapeError reports a column whose row count differs from the table's.
type ShapeError struct {
	Column string
	Want   int
	Got    int
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("shape mismatch: column %q has %d rows, table has %d", e.Column, e.Got, e.Want)
}

// Merge returns a new table with cols attached by row position. A column
// whose name already exists replaces the old one in place; new columns are
// appended in argument order. Merging the same columns twice leaves the
// table as if they were merged once.
func (t *Table) Merge(cols ...Column) (*Table, error) {
	for _, c := range cols {
		if c.Name == "" || IsReserved(c.Name) {
			return nil, fmt.Errorf("%w: %q", ErrColumnName, c.Name)
		}
		if len(c.Values) != t.Len() {
			return nil, &ShapeError{Column: c.Name, Want: t.Len(), Got: len(c.Values)}
		}
	}

	out := t.Clone()
	for _, c := range cols {
		c = c.clone()
		if i := out.columnIndex(c.Name); i >= 0 {
			out.columns[i] = c
			continue
		}
		out.columns = append(out.columns, c)
	}
	return out, nil
}

// Drop returns a new table without the named extra columns. Unknown names
// are ignored.
func (t *Table) Drop(names ...string) *Table {
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		drop[n] = true
	}
	out := t.Clone()
	kept := out.columns[:0]
	for _, c := range out.columns {
		if !drop[c.Name] {
			kept = append(kept, c)
		}
	}
	out.columns = kept
	return out
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
