package export

import (
	"fmt"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

const maxColumnWidth = 255

// XLSXExporter renders datasets and attendance sheets as workbooks.
type XLSXExporter struct{}

// NewXLSXExporter constructs an XLSX exporter.
func NewXLSXExporter() *XLSXExporter {
	return &XLSXExporter{}
}

// Render writes the dataset to a single sheet named after its title.
func (e *XLSXExporter) Render(data Dataset) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("xlsx requires at least one header")
	}
	sheet := data.Title
	if sheet == "" {
		sheet = "Sheet1"
	}
	grid := make([][]string, 0, len(data.Rows)+1)
	grid = append(grid, data.Headers)
	grid = append(grid, data.Rows...)
	return renderGrid(sheet, grid, len(data.Headers), false)
}

// RenderAttendance writes one attendance sheet with every cell bordered and
// centred. The sheet is named after the session.
func (e *XLSXExporter) RenderAttendance(sheet AttendanceSheet) ([]byte, error) {
	name := sheet.Session
	if name == "" {
		name = "Sheet1"
	}
	return renderGrid(name, sheet.Grid(), 3, true)
}

func renderGrid(sheet string, grid [][]string, width int, boxed bool) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if sheet != "Sheet1" {
		if err := f.SetSheetName("Sheet1", sheet); err != nil {
			return nil, fmt.Errorf("name sheet: %w", err)
		}
	}

	widths := make([]int, width)
	for r, row := range grid {
		if len(row) == 0 {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, r+1)
		if err != nil {
			return nil, err
		}
		values := make([]interface{}, len(row))
		for i, v := range row {
			values[i] = v
			if i < width {
				if n := utf8.RuneCountInString(v); n > widths[i] {
					widths[i] = n
				}
			}
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return nil, fmt.Errorf("write row %d: %w", r+1, err)
		}
	}

	if boxed && len(grid) > 0 {
		style, err := f.NewStyle(&excelize.Style{
			Border: []excelize.Border{
				{Type: "left", Color: "000000", Style: 1},
				{Type: "top", Color: "000000", Style: 1},
				{Type: "right", Color: "000000", Style: 1},
				{Type: "bottom", Color: "000000", Style: 1},
			},
			Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		})
		if err != nil {
			return nil, fmt.Errorf("create style: %w", err)
		}
		last, err := excelize.CoordinatesToCellName(width, len(grid))
		if err != nil {
			return nil, err
		}
		if err := f.SetCellStyle(sheet, "A1", last, style); err != nil {
			return nil, fmt.Errorf("apply style: %w", err)
		}
	}

	for i, w := range widths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return nil, err
		}
		w += 2
		if w > maxColumnWidth {
			w = maxColumnWidth
		}
		if err := f.SetColWidth(sheet, col, col, float64(w)); err != nil {
			return nil, fmt.Errorf("size column %s: %w", col, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
