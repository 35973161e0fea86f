// Package codec converts report files into rows and export tables into
// spreadsheet files.
package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/rpggio/opsdash/internal/domain/export"
	"github.com/rpggio/opsdash/internal/domain/record"
)

// Content types understood by Decode.
const (
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	ContentTypeJSON = "application/json"
)

var (
	// ErrUnsupportedFormat indicates a payload that is neither a workbook
	// nor a JSON row array.
	ErrUnsupportedFormat = errors.New("unsupported report format")
	// ErrEmptyWorkbook indicates a workbook without a usable sheet.
	ErrEmptyWorkbook = errors.New("workbook has no sheets")
)

// Decode picks a decoder from the content type, falling back to sniffing
// the payload. Workbooks are zip archives and start with "PK".
func Decode(data []byte, contentType string) ([]record.Row, error) {
	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "spreadsheetml"), strings.Contains(ct, "excel"):
		return DecodeXLSX(data, "")
	case strings.Contains(ct, "json"):
		return DecodeJSON(data)
	}
	trimmed := bytes.TrimSpace(data)
	switch {
	case bytes.HasPrefix(data, []byte("PK")):
		return DecodeXLSX(data, "")
	case bytes.HasPrefix(trimmed, []byte("[")):
		return DecodeJSON(data)
	}
	return nil, ErrUnsupportedFormat
}

// DecodeJSON reads an array of objects.
func DecodeJSON(data []byte) ([]record.Row, error) {
	var rows []record.Row
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	return rows, nil
}

// DecodeXLSX reads one sheet, the first when sheet is empty. The first
// row is the header; blank rows are skipped. Cells are returned as their
// raw text so dates arrive as serial day numbers.
func DecodeXLSX(data []byte, sheet string) ([]record.Row, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, ErrEmptyWorkbook
		}
		sheet = sheets[0]
	}
	grid, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	return rowsFromGrid(grid), nil
}

func rowsFromGrid(grid [][]string) []record.Row {
	if len(grid) == 0 {
		return nil
	}
	header := grid[0]
	rows := make([]record.Row, 0, len(grid)-1)
	for _, line := range grid[1:] {
		row := make(record.Row, len(header))
		blank := true
		for i, name := range header {
			if name == "" {
				continue
			}
			if i < len(line) && strings.TrimSpace(line[i]) != "" {
				row[name] = line[i]
				blank = false
			}
		}
		if !blank {
			rows = append(rows, row)
		}
	}
	return rows
}

// EncodeXLSX writes each table to its own sheet, in order.
func EncodeXLSX(tables []export.Table) ([]byte, error) {
	if len(tables) == 0 {
		return nil, ErrEmptyWorkbook
	}
	f := excelize.NewFile()
	defer f.Close()

	for i, t := range tables {
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), t.Name); err != nil {
				return nil, fmt.Errorf("name sheet %q: %w", t.Name, err)
			}
		} else if _, err := f.NewSheet(t.Name); err != nil {
			return nil, fmt.Errorf("add sheet %q: %w", t.Name, err)
		}
		if err := writeTable(f, t); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeTable(f *excelize.File, t export.Table) error {
	header := make([]any, len(t.Columns))
	for i, c := range t.Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(t.Name, "A1", &header); err != nil {
		return fmt.Errorf("write header of %q: %w", t.Name, err)
	}
	for r, row := range t.Rows {
		cells := make([]any, len(t.Columns))
		for i, c := range t.Columns {
			cells[i] = row[c]
		}
		axis, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(t.Name, axis, &cells); err != nil {
			return fmt.Errorf("write row %d of %q: %w", r, t.Name, err)
		}
	}
	return nil
}

// DecodeTables reads every sheet of an exported workbook back into
// tables. Cells come back as text.
func DecodeTables(data []byte) ([]export.Table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	var tables []export.Table
	for _, sheet := range f.GetSheetList() {
		grid, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
		}
		t := export.Table{Name: sheet}
		if len(grid) > 0 {
			t.Columns = grid[0]
		}
		for _, row := range rowsFromGrid(grid) {
			t.Rows = append(t.Rows, map[string]any(row))
		}
		tables = append(tables, t)
	}
	return tables, nil
}
