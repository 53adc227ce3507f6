package export

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

// PDFExporter renders attendance sheets as printable PDFs.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

var attendanceColumns = []float64{45, 85, 60}

// RenderAttendance lays out one attendance sheet on A4 pages, repeating the
// column header after each page break.
func (e *PDFExporter) RenderAttendance(sheet AttendanceSheet) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	pdf.SetAutoPageBreak(false, 15)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(0, 10, sheet.Heading(), "", 1, "C", false, 0, "")
	pdf.Ln(3)

	header := func() {
		pdf.SetFont("Arial", "B", 10)
		for i, title := range []string{"Roll", "Student Name", "Signature"} {
			pdf.CellFormat(attendanceColumns[i], 8, title, "1", 0, "C", false, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", 10)
	}
	header()

	_, pageHeight := pdf.GetPageSize()
	_, _, _, bottom := pdf.GetMargins()
	grid := sheet.Grid()
	for _, row := range grid[2:] {
		if pdf.GetY()+8 > pageHeight-bottom {
			pdf.AddPage()
			header()
		}
		if len(row) == 0 {
			pdf.Ln(4)
			continue
		}
		for i, value := range row {
			pdf.CellFormat(attendanceColumns[i], 8, value, "1", 0, "C", false, 0, "")
		}
		pdf.Ln(-1)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
