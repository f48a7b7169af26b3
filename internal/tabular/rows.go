package tabular

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/xuri/excelize/v2"
)

// ReadCSV reads a comma-separated file with a header row.
// Cell types are inferred per cell: empty, int, float, then string.
func ReadCSV(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return NewTable(), nil
		}
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	t := NewTable(header...)
	t.TrimColumnNames()
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv record: %w", err)
		}
		t.Rows = append(t.Rows, parseRecord(record, len(t.Columns)))
	}
	return t, nil
}

// ReadXLSX reads the first sheet of a workbook. The first row is the header.
func ReadXLSX(path string) (*Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return NewTable(), nil
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return NewTable(), nil
	}

	t := NewTable(rows[0]...)
	t.TrimColumnNames()
	for _, record := range rows[1:] {
		if isBlankRecord(record) {
			continue
		}
		t.Rows = append(t.Rows, parseRecord(record, len(t.Columns)))
	}
	return t, nil
}

// parseRecord converts a text record into cells, padding short records with nulls.
func parseRecord(record []string, width int) []Value {
	row := make([]Value, width)
	for i := 0; i < width && i < len(record); i++ {
		row[i] = parseCell(record[i])
	}
	return row
}

func isBlankRecord(record []string) bool {
	for _, s := range record {
		if s != "" {
			return false
		}
	}
	return true
}
