package tabular

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/format"
)

const parquetReadBatch = 512

// ReadParquet reads a flat parquet file into a table.
// Nested or repeated columns keep the last value seen per row.
func ReadParquet(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open parquet: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat parquet: %w", err)
	}

	pf, err := parquet.OpenFile(f, info.Size())
	if err != nil {
		return nil, fmt.Errorf("open parquet file: %w", err)
	}

	schema := pf.Schema()
	paths := schema.Columns()

	// leaf column index -> table column position
	names := make([]string, len(paths))
	types := make([]*format.LogicalType, len(paths))
	leafPos := make(map[int]int, len(paths))
	for i, p := range paths {
		leaf, ok := schema.Lookup(p...)
		if !ok {
			return nil, fmt.Errorf("lookup parquet column %v", p)
		}
		names[i] = p[len(p)-1]
		types[i] = leaf.Node.Type().LogicalType()
		leafPos[leaf.ColumnIndex] = i
	}

	t := NewTable(names...)
	t.TrimColumnNames()

	buf := make([]parquet.Row, parquetReadBatch)
	for _, rg := range pf.RowGroups() {
		rows := rg.Rows()
		for {
			n, err := rows.ReadRows(buf)
			for _, raw := range buf[:n] {
				row := make([]Value, len(names))
				for _, v := range raw {
					pos, ok := leafPos[v.Column()]
					if !ok {
						continue
					}
					row[pos] = fromParquet(v, types[pos])
				}
				t.Rows = append(t.Rows, row)
			}
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				rows.Close()
				return nil, fmt.Errorf("read parquet rows: %w", err)
			}
		}
		if err := rows.Close(); err != nil {
			return nil, fmt.Errorf("close parquet rows: %w", err)
		}
	}

	return t, nil
}

// fromParquet converts a physical parquet value, honoring DATE and TIMESTAMP annotations.
func fromParquet(v parquet.Value, lt *format.LogicalType) Value {
	if v.IsNull() {
		return Null()
	}

	switch v.Kind() {
	case parquet.Boolean:
		if v.Boolean() {
			return Int(1)
		}
		return Int(0)
	case parquet.Int32:
		if lt != nil && lt.Date != nil {
			return Time(time.Unix(int64(v.Int32())*86400, 0).UTC())
		}
		return Int(int64(v.Int32()))
	case parquet.Int64:
		if lt != nil && lt.Timestamp != nil {
			return Time(timestampFromUnit(v.Int64(), lt.Timestamp.Unit))
		}
		return Int(v.Int64())
	case parquet.Float:
		return Float(float64(v.Float()))
	case parquet.Double:
		return Float(v.Double())
	case parquet.ByteArray, parquet.FixedLenByteArray:
		return String(string(v.ByteArray()))
	default:
		return String(v.String())
	}
}

func timestampFromUnit(n int64, unit format.TimeUnit) time.Time {
	switch {
	case unit.Millis != nil:
		return time.UnixMilli(n).UTC()
	case unit.Micros != nil:
		return time.UnixMicro(n).UTC()
	default:
		return time.Unix(0, n).UTC()
	}
}

// WriteParquet writes a table to path as a flat parquet file with optional columns.
// Column types are inferred from the cells: any time makes a TIMESTAMP(ns) column,
// any string a STRING column, any float a DOUBLE column, otherwise INT64.
// Columns are stored in name order.
func WriteParquet(path string, t *Table) error {
	kinds := columnKinds(t)

	group := make(parquet.Group, len(t.Columns))
	for i, name := range t.Columns {
		group[name] = parquet.Optional(parquetNode(kinds[i]))
	}
	schema := parquet.NewSchema("table", group)

	colIndex := make([]int, len(t.Columns))
	for i, name := range t.Columns {
		leaf, ok := schema.Lookup(name)
		if !ok {
			return fmt.Errorf("lookup parquet column %s", name)
		}
		colIndex[i] = leaf.ColumnIndex
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create parquet: %w", err)
	}

	w := parquet.NewWriter(f, schema)
	rows := make([]parquet.Row, 0, parquetReadBatch)
	flush := func() error {
		if len(rows) == 0 {
			return nil
		}
		if _, err := w.WriteRows(rows); err != nil {
			return fmt.Errorf("write parquet rows: %w", err)
		}
		rows = rows[:0]
		return nil
	}

	for _, r := range t.Rows {
		row := make(parquet.Row, len(t.Columns))
		for i, cell := range r {
			row[colIndex[i]] = toParquet(cell, kinds[i]).Level(0, definitionLevel(cell), colIndex[i])
		}
		rows = append(rows, row)
		if len(rows) == cap(rows) {
			if err := flush(); err != nil {
				f.Close()
				return err
			}
		}
	}
	if err := flush(); err != nil {
		f.Close()
		return err
	}

	if err := w.Close(); err != nil {
		f.Close()
		return fmt.Errorf("close parquet writer: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close parquet file: %w", err)
	}
	return nil
}

func definitionLevel(v Value) int {
	if v.IsNull() {
		return 0
	}
	return 1
}

// columnKinds picks one storage kind per column.
func columnKinds(t *Table) []Kind {
	kinds := make([]Kind, len(t.Columns))
	for i := range t.Columns {
		k := KindNull
		for _, row := range t.Rows {
			k = widen(k, row[i].Kind())
		}
		if k == KindNull {
			k = KindFloat
		}
		kinds[i] = k
	}
	return kinds
}

func widen(current, next Kind) Kind {
	switch {
	case next == KindNull || next == current:
		return current
	case current == KindNull:
		return next
	case current == KindString || next == KindString:
		return KindString
	case current == KindTime || next == KindTime:
		// time mixed with numbers has no common numeric form
		return KindString
	default:
		return KindFloat
	}
}

func parquetNode(k Kind) parquet.Node {
	switch k {
	case KindInt:
		return parquet.Int(64)
	case KindString:
		return parquet.String()
	case KindTime:
		return parquet.Timestamp(parquet.Nanosecond)
	default:
		return parquet.Leaf(parquet.DoubleType)
	}
}

func toParquet(v Value, column Kind) parquet.Value {
	if v.IsNull() {
		return parquet.NullValue()
	}
	switch column {
	case KindInt:
		n, _ := v.Int64()
		return parquet.Int64Value(n)
	case KindFloat:
		f, _ := v.Float64()
		return parquet.DoubleValue(f)
	case KindTime:
		ts, _ := v.TimeValue()
		return parquet.Int64Value(ts.UnixNano())
	default:
		return parquet.ByteArrayValue([]byte(v.Text()))
	}
}
