package excel

import (
	"fmt"
	"io"

	"datanomics/domain/session"
	"datanomics/internal/transform"

	"github.com/xuri/excelize/v2"
)

// Write exports rows to a workbook with the first row's keys as header.
// Numbers stay numeric cells; null cells are left empty.
func Write(w io.Writer, rows []session.Record) error {
	if len(rows) == 0 {
		return fmt.Errorf("no rows to export")
	}
	header := rows[0].Keys()

	f := excelize.NewFile()
	defer f.Close()

	sw, err := f.NewStreamWriter(DefaultSheet)
	if err != nil {
		return fmt.Errorf("failed to open stream writer: %w", err)
	}

	headerCells := make([]interface{}, len(header))
	for i, h := range header {
		headerCells[i] = h
	}
	if err := sw.SetRow("A1", headerCells, excelize.RowOpts{}); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for r, row := range rows {
		cells := make([]interface{}, len(header))
		for i, key := range header {
			v, _ := row.Get(key)
			cells[i] = cellValue(v)
		}
		axis, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(axis, cells); err != nil {
			return fmt.Errorf("failed to write row %d: %w", r+1, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return fmt.Errorf("failed to flush sheet: %w", err)
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func cellValue(v interface{}) interface{} {
	if v == nil {
		return nil
	}
	if f, ok := session.Numeric(v); ok {
		return f
	}
	if b, ok := v.(bool); ok {
		return b
	}
	return transform.FieldString(v)
}
