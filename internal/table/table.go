// Package table holds the in-memory tabular container the flattener fills
// and the sinks consume. A nil cell is the explicit null marker; it renders
// as an empty CSV field and a SQL NULL.
package table

import (
	"fmt"
	"strconv"
)

// Table is an ordered set of columns with rows of loosely typed cells.
type Table struct {
	Name    string
	Columns []string
	rows    [][]any
}

// New creates an empty table with the given column order.
func New(name string, columns ...string) *Table {
	return &Table{
		Name:    name,
		Columns: columns,
	}
}

// Append adds one row. The row width must match the column count; a
// mismatch is a programming error in the producer, not input data.
func (t *Table) Append(values ...any) {
	if len(values) != len(t.Columns) {
		panic(fmt.Sprintf("table %s: row has %d values, want %d", t.Name, len(values), len(t.Columns)))
	}
	t.rows = append(t.rows, values)
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.rows)
}

// Rows returns the underlying rows. Callers must not mutate them.
func (t *Table) Rows() [][]any {
	return t.rows
}

// Row returns row i.
func (t *Table) Row(i int) []any {
	return t.rows[i]
}

// Cell returns the value at (row, column name), or nil if the column does
// not exist.
func (t *Table) Cell(row int, column string) any {
	for i, c := range t.Columns {
		if c == column {
			return t.rows[row][i]
		}
	}
	return nil
}

// Reset drops all rows, keeping the schema.
func (t *Table) Reset() {
	t.rows = t.rows[:0]
}

// AppendFrom moves all rows from other into t. The schemas must match.
func (t *Table) AppendFrom(other *Table) error {
	if len(other.Columns) != len(t.Columns) {
		return fmt.Errorf("table %s: cannot append rows from %s: column count mismatch", t.Name, other.Name)
	}
	t.rows = append(t.rows, other.rows...)
	return nil
}

// Records renders all rows as CSV-ready string slices, header not included.
func (t *Table) Records() [][]string {
	records := make([][]string, len(t.rows))
	for i, row := range t.rows {
		rec := make([]string, len(row))
		for j, v := range row {
			rec[j] = FormatValue(v)
		}
		records[i] = rec
	}
	return records
}

// FormatValue renders one cell for CSV output. nil becomes the empty field.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	default:
		return fmt.Sprintf("%v", x)
	}
}
