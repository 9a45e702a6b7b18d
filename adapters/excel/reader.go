package excel

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// Read loads the first sheet of a workbook
func Read(r io.Reader) (*Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet %s is empty", sheets[0])
	}

	table := &Table{Headers: rows[0]}
	for _, row := range rows[1:] {
		// GetRows trims trailing empty cells
		padded := make([]string, len(table.Headers))
		copy(padded, row)
		table.Rows = append(table.Rows, padded)
	}
	return table, nil
}

// ToCSV converts a workbook to CSV so it can go through the CSV upload path
func ToCSV(r io.Reader) ([]byte, error) {
	table, err := Read(r)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(table.Headers); err != nil {
		return nil, err
	}
	if err := w.WriteAll(table.Rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
