package service

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/noah-isme/exam-seating-api/internal/models"
	"github.com/noah-isme/exam-seating-api/pkg/export"
)

// Archive entry names.
const (
	ArchiveFilename      = "exam_seating.zip"
	OverallSeatingFile   = "overall_seating.xlsx"
	OverallSeatingCSV    = "overall_seating.csv"
	SeatsLeftFile        = "seats_left.xlsx"
	overallSheetName     = "Overall"
	seatsLeftSheetName   = "Left"
	folderDateLayout     = "02_01_2006"
	attendanceDateLayout = "02-01-2006"
)

// SeatingBundle is the data rendered into an archive.
type SeatingBundle struct {
	Assignments []models.Assignment
	Overflow    []models.OverflowRecord
	RollNames   models.RollNames
}

// SeatingArchiver renders seating results into the downloadable zip layout:
// two summary workbooks and one attendance sheet per course and room under
// dd_mm_yyyy/<session>/.
type SeatingArchiver struct {
	xlsx *export.XLSXExporter
	csv  *export.CSVExporter
	pdf  *export.PDFExporter
	now  func() time.Time
}

// NewSeatingArchiver constructs an archiver with the default renderers.
func NewSeatingArchiver() *SeatingArchiver {
	return &SeatingArchiver{
		xlsx: export.NewXLSXExporter(),
		csv:  export.NewCSVExporter(),
		pdf:  export.NewPDFExporter(),
		now:  time.Now,
	}
}

// Build returns the zip payload and the number of files inside it.
func (a *SeatingArchiver) Build(bundle SeatingBundle, params models.ExportJobParams) ([]byte, int, error) {
	keep := dateFilter(params.Dates)
	assignments := make([]models.Assignment, 0, len(bundle.Assignments))
	for _, item := range bundle.Assignments {
		if keep(item.Date) {
			assignments = append(assignments, item)
		}
	}
	overflow := make([]models.OverflowRecord, 0, len(bundle.Overflow))
	for _, item := range bundle.Overflow {
		if keep(item.Date) {
			overflow = append(overflow, item)
		}
	}

	archive := export.NewArchiveBuilder(a.now())
	if params.Summary {
		overall := overallDataset(assignments)
		payload, err := a.xlsx.Render(overall)
		if err != nil {
			return nil, 0, fmt.Errorf("render overall seating: %w", err)
		}
		if err := archive.Add(OverallSeatingFile, payload); err != nil {
			return nil, 0, err
		}
		if params.Format == models.ExportFormatCSV {
			payload, err := a.csv.Render(overall)
			if err != nil {
				return nil, 0, fmt.Errorf("render overall seating csv: %w", err)
			}
			if err := archive.Add(OverallSeatingCSV, payload); err != nil {
				return nil, 0, err
			}
		}
		payload, err = a.xlsx.Render(seatsLeftDataset(overflow))
		if err != nil {
			return nil, 0, fmt.Errorf("render seats left: %w", err)
		}
		if err := archive.Add(SeatsLeftFile, payload); err != nil {
			return nil, 0, err
		}
	}

	for _, item := range assignments {
		sheet, base, err := attendanceSheet(item, bundle.RollNames)
		if err != nil {
			return nil, 0, err
		}
		payload, err := a.xlsx.RenderAttendance(sheet)
		if err != nil {
			return nil, 0, fmt.Errorf("render attendance %s: %w", base, err)
		}
		if err := archive.Add(base+".xlsx", payload); err != nil {
			return nil, 0, err
		}
		if params.Format == models.ExportFormatPDF {
			payload, err := a.pdf.RenderAttendance(sheet)
			if err != nil {
				return nil, 0, fmt.Errorf("render attendance pdf %s: %w", base, err)
			}
			if err := archive.Add(base+".pdf", payload); err != nil {
				return nil, 0, err
			}
		}
	}

	data, err := archive.Bytes()
	if err != nil {
		return nil, 0, err
	}
	return data, archive.Len(), nil
}

func overallDataset(assignments []models.Assignment) export.Dataset {
	data := export.Dataset{
		Title:   overallSheetName,
		Headers: []string{"Date", "Session", "Course", "Room", "Rolls"},
	}
	for _, item := range assignments {
		data.AddRow(folderDate(item.Date), item.Session.Title(), item.CourseCode, item.RoomID, strings.Join(item.Students, ";"))
	}
	return data
}

func seatsLeftDataset(overflow []models.OverflowRecord) export.Dataset {
	data := export.Dataset{
		Title:   seatsLeftSheetName,
		Headers: []string{"Date", "Course", "Unallocated"},
	}
	for _, item := range overflow {
		data.AddRow(folderDate(item.Date), item.CourseCode, strconv.Itoa(item.UnseatedCount))
	}
	return data
}

// attendanceSheet returns the sheet and its archive path without extension.
func attendanceSheet(item models.Assignment, names models.RollNames) (export.AttendanceSheet, string, error) {
	day, err := time.Parse(models.DateLayout, item.Date)
	if err != nil {
		return export.AttendanceSheet{}, "", fmt.Errorf("assignment date %q: %w", item.Date, err)
	}
	students := make([]export.AttendanceEntry, 0, len(item.Students))
	for _, roll := range item.Students {
		students = append(students, export.AttendanceEntry{Roll: roll, Name: names.Lookup(roll)})
	}
	sheet := export.AttendanceSheet{
		Course:   item.CourseCode,
		Room:     item.RoomID,
		Date:     day.Format(attendanceDateLayout),
		Session:  item.Session.Title(),
		Students: students,
	}
	folder := day.Format(folderDateLayout)
	session := string(item.Session)
	base := fmt.Sprintf("%s/%s/%s_%s_%s_%s", folder, session, folder, sanitizeFilename(item.CourseCode), sanitizeFilename(item.RoomID), session)
	return sheet, base, nil
}

func folderDate(date string) string {
	day, err := time.Parse(models.DateLayout, date)
	if err != nil {
		return date
	}
	return day.Format(folderDateLayout)
}

func dateFilter(dates []string) func(string) bool {
	if len(dates) == 0 {
		return func(string) bool { return true }
	}
	set := make(map[string]bool, len(dates))
	for _, date := range dates {
		set[strings.TrimSpace(date)] = true
	}
	return func(date string) bool { return set[date] }
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}
