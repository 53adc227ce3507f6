package workbook

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func buildWorkbook(t *testing.T, sheets map[string][][]interface{}) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for name, rows := range sheets {
		_, err := f.NewSheet(name)
		require.NoError(t, err)
		for i, row := range rows {
			cell, err := excelize.CoordinatesToCellName(1, i+1)
			require.NoError(t, err)
			values := row
			require.NoError(t, f.SetSheetRow(name, cell, &values))
		}
	}
	require.NoError(t, f.DeleteSheet("Sheet1"))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf
}

func validSheets() map[string][][]interface{} {
	return map[string][][]interface{}{
		SheetTimetable: {
			{" Date ", "Morning", "Evening"},
			{"02-05-2024", "CS101; MA101", "PH101"},
			{"2024-05-03", "", "EE201"},
		},
		SheetCourseRolls: {
			{"rollno", "course_code"},
			{"2101cs01", "cs101"},
			{"", ""},
			{"2101CS02", "CS101"},
		},
		SheetRollNames: {
			{"Roll", "Name"},
			{"2101CS01", "Asha"},
		},
		SheetRoomCapacity: {
			{"Room No.", "Exam Capacity", "Block"},
			{101, 40, "B1"},
			{"LT-2", 60, "B2"},
		},
	}
}

func TestReadWorkbook(t *testing.T) {
	tables, err := ReadWorkbook(buildWorkbook(t, validSheets()))
	require.NoError(t, err)

	require.Len(t, tables.Timetable, 2)
	assert.Equal(t, TimetableRow{Date: "02-05-2024", Morning: "CS101; MA101", Evening: "PH101"}, tables.Timetable[0])
	assert.Equal(t, "", tables.Timetable[1].Morning)

	require.Len(t, tables.CourseRolls, 2, "blank rows are dropped")
	assert.Equal(t, CourseRollRow{Roll: "2101cs01", CourseCode: "cs101"}, tables.CourseRolls[0])

	require.Len(t, tables.Rooms, 2)
	assert.Equal(t, RoomRow{RoomNo: "101", Capacity: "40", Block: "B1"}, tables.Rooms[0])
	assert.Equal(t, []RollNameRow{{Roll: "2101CS01", Name: "Asha"}}, tables.RollNames)
}

func TestReadWorkbookMissingSheet(t *testing.T) {
	sheets := validSheets()
	delete(sheets, SheetRollNames)

	_, err := ReadWorkbook(buildWorkbook(t, sheets))
	assert.ErrorIs(t, err, ErrMissingSheet)
}

func TestReadWorkbookMissingColumn(t *testing.T) {
	sheets := validSheets()
	sheets[SheetRoomCapacity][0] = []interface{}{"Room", "Exam Capacity", "Block"}

	_, err := ReadWorkbook(buildWorkbook(t, sheets))
	assert.ErrorIs(t, err, ErrMissingColumn)
}

func TestReadWorkbookRejectsGarbage(t *testing.T) {
	_, err := ReadWorkbook(strings.NewReader("not a zip"))
	assert.Error(t, err)
}

func TestReadCSV(t *testing.T) {
	tables, err := ReadCSV(CSVSources{
		Timetable:   strings.NewReader("\ufeffDate,Morning,Evening\n2024-05-02,CS101;MA101,\n"),
		CourseRolls: strings.NewReader("rollno, course_code\n2101CS01 ,CS101\n"),
		RollNames:   strings.NewReader("Roll,Name\n2101CS01,Asha Rao\n"),
		Rooms:       strings.NewReader("Room No.,Exam Capacity,Block\nLT-1,60,B2\n"),
	})
	require.NoError(t, err)

	assert.Equal(t, []TimetableRow{{Date: "2024-05-02", Morning: "CS101;MA101"}}, tables.Timetable)
	assert.Equal(t, []CourseRollRow{{Roll: "2101CS01", CourseCode: "CS101"}}, tables.CourseRolls)
	assert.Equal(t, []RollNameRow{{Roll: "2101CS01", Name: "Asha Rao"}}, tables.RollNames)
	assert.Equal(t, []RoomRow{{RoomNo: "LT-1", Capacity: "60", Block: "B2"}}, tables.Rooms)
}

func TestReadCSVMissingTable(t *testing.T) {
	_, err := ReadCSV(CSVSources{Timetable: strings.NewReader("Date,Morning,Evening\n")})
	assert.ErrorIs(t, err, ErrMissingSheet)
}

func TestParseDate(t *testing.T) {
	want := time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)
	for _, in := range []string{"2024-05-02", "02-05-2024", "02/05/2024", "02_05_2024", "2-May-2024", "45414", "2024-05-02 00:00:00"} {
		got, err := ParseDate(in)
		require.NoError(t, err, in)
		assert.True(t, want.Equal(got), "%s parsed as %s", in, got)
	}

	_, err := ParseDate("someday")
	assert.Error(t, err)
	_, err = ParseDate("  ")
	assert.Error(t, err)
}

func TestSplitCourses(t *testing.T) {
	assert.Equal(t, []string{"CS101", "MA101"}, SplitCourses(" CS101 ;;MA101; "))
	assert.Empty(t, SplitCourses(""))
}
