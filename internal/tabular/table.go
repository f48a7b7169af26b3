package tabular

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrUnsupportedFormat is returned for file extensions no reader handles.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// Table is an in-memory, column-named set of rows.
// Every row holds exactly len(Columns) cells.
type Table struct {
	Columns []string
	Rows    [][]Value
}

// NewTable creates an empty table with the given columns.
func NewTable(columns ...string) *Table {
	cols := make([]string, len(columns))
	copy(cols, columns)
	return &Table{Columns: cols}
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.Rows) }

// Index returns the position of a column, or -1.
func (t *Table) Index(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Has reports whether the table carries a column.
func (t *Table) Has(name string) bool { return t.Index(name) >= 0 }

// Rename renames a column in place. It is a no-op when from is absent.
func (t *Table) Rename(from, to string) {
	if i := t.Index(from); i >= 0 {
		t.Columns[i] = to
	}
}

// TrimColumnNames strips surrounding whitespace (and a UTF-8 BOM) from every column name.
func (t *Table) TrimColumnNames() {
	for i, c := range t.Columns {
		t.Columns[i] = strings.TrimSpace(strings.TrimPrefix(c, "\ufeff"))
	}
}

// Append adds a row. The row must match the column count.
func (t *Table) Append(row []Value) error {
	if len(row) != len(t.Columns) {
		return fmt.Errorf("row has %d cells, table has %d columns", len(row), len(t.Columns))
	}
	t.Rows = append(t.Rows, row)
	return nil
}

// Column returns a copy of the named column's cells.
func (t *Table) Column(name string) ([]Value, bool) {
	i := t.Index(name)
	if i < 0 {
		return nil, false
	}
	out := make([]Value, len(t.Rows))
	for r, row := range t.Rows {
		out[r] = row[i]
	}
	return out, true
}

// ReadFile reads a table, choosing the reader by file extension.
func ReadFile(path string) (*Table, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".parquet":
		return ReadParquet(path)
	case ".csv":
		return ReadCSV(path)
	case ".xlsx":
		return ReadXLSX(path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// SupportedExtension reports whether ReadFile can read files with the extension of path.
func SupportedExtension(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".parquet", ".csv", ".xlsx":
		return true
	default:
		return false
	}
}
