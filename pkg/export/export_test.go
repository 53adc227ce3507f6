package export

import (
	"archive/zip"
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleSheet() AttendanceSheet {
	return AttendanceSheet{
		Course:  "CS101",
		Room:    "LT-2",
		Date:    "02-05-2024",
		Session: "Morning",
		Students: []AttendanceEntry{
			{Roll: "2101CS01", Name: "Asha"},
			{Roll: "2101CS02", Name: "Unknown"},
		},
	}
}

func TestCSVExporterRender(t *testing.T) {
	data := Dataset{Headers: []string{"Date", "Course"}}
	data.AddRow("2024-05-02", "CS101")
	data.AddRow("2024-05-03")

	out, err := NewCSVExporter().Render(data)
	require.NoError(t, err)
	assert.Equal(t, "Date,Course\n2024-05-02,CS101\n2024-05-03,\n", string(out))

	_, err = NewCSVExporter().Render(Dataset{})
	assert.Error(t, err)
}

func TestAttendanceGrid(t *testing.T) {
	grid := sampleSheet().Grid()

	assert.Equal(t, "Course: CS101 | Room: LT-2 | Date: 02-05-2024 | Session: Morning", grid[0][0])
	assert.Equal(t, []string{"Roll", "Student Name", "Signature"}, grid[1])
	assert.Equal(t, []string{"2101CS01", "Asha", ""}, grid[2])
	assert.Nil(t, grid[4])
	assert.Equal(t, "TA1", grid[5][0])
	assert.Equal(t, "TA5", grid[9][0])
	assert.Nil(t, grid[10])
	assert.Equal(t, "Invigilator5", grid[15][0])
	assert.Len(t, grid, 16)
}

func TestXLSXExporterRenderAttendance(t *testing.T) {
	payload, err := NewXLSXExporter().RenderAttendance(sampleSheet())
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(payload))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Morning"}, f.GetSheetList())
	title, err := f.GetCellValue("Morning", "A1")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(title, "Course: CS101"))
	name, err := f.GetCellValue("Morning", "B3")
	require.NoError(t, err)
	assert.Equal(t, "Asha", name)

	width, err := f.GetColWidth("Morning", "A")
	require.NoError(t, err)
	assert.Equal(t, float64(len(title)+2), width)
}

func TestXLSXExporterRenderDataset(t *testing.T) {
	data := Dataset{Title: "Overall", Headers: []string{"Date", "Rolls"}}
	data.AddRow("2024-05-02", "A;B")

	payload, err := NewXLSXExporter().Render(data)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(payload))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Overall")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"Date", "Rolls"}, {"2024-05-02", "A;B"}}, rows)
}

func TestPDFExporterRenderAttendance(t *testing.T) {
	sheet := sampleSheet()
	for i := 0; i < 60; i++ {
		sheet.Students = append(sheet.Students, AttendanceEntry{Roll: "R", Name: "N"})
	}
	payload, err := NewPDFExporter().RenderAttendance(sheet)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(payload, []byte("%PDF")))
}

func TestArchiveBuilder(t *testing.T) {
	builder := NewArchiveBuilder(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, builder.Add("overall_seating.xlsx", []byte("x")))
	require.NoError(t, builder.Add("02_05_2024/morning/a.xlsx", []byte("y")))
	assert.Error(t, builder.Add("overall_seating.xlsx", []byte("z")))
	assert.Equal(t, 2, builder.Len())

	payload, err := builder.Bytes()
	require.NoError(t, err)
	reader, err := zip.NewReader(bytes.NewReader(payload), int64(len(payload)))
	require.NoError(t, err)
	names := []string{}
	for _, file := range reader.File {
		names = append(names, file.Name)
	}
	assert.Equal(t, []string{"overall_seating.xlsx", "02_05_2024/morning/a.xlsx"}, names)
}
