package workbook

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ReadWorkbook parses the four input sheets from an xlsx stream.
func ReadWorkbook(r io.Reader) (*Tables, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	tables := &Tables{}

	rows, err := readSheet(f, SheetTimetable, timetableColumns)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		tables.Timetable = append(tables.Timetable, TimetableRow{Date: row[0], Morning: row[1], Evening: row[2]})
	}

	if rows, err = readSheet(f, SheetCourseRolls, courseRollColumns); err != nil {
		return nil, err
	}
	for _, row := range rows {
		tables.CourseRolls = append(tables.CourseRolls, CourseRollRow{Roll: row[0], CourseCode: row[1]})
	}

	if rows, err = readSheet(f, SheetRollNames, rollNameColumns); err != nil {
		return nil, err
	}
	for _, row := range rows {
		tables.RollNames = append(tables.RollNames, RollNameRow{Roll: row[0], Name: row[1]})
	}

	if rows, err = readSheet(f, SheetRoomCapacity, roomCapacityColumn); err != nil {
		return nil, err
	}
	for _, row := range rows {
		tables.Rooms = append(tables.Rooms, RoomRow{RoomNo: row[0], Capacity: row[1], Block: row[2]})
	}
	return tables, nil
}

// readSheet returns data rows projected onto columns, in column order. Raw
// cell values are used so dates come back as serial numbers rather than
// whatever display format the author picked.
func readSheet(f *excelize.File, sheet string, columns []columnSpec) ([][]string, error) {
	if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		return nil, fmt.Errorf("%w %q", ErrMissingSheet, sheet)
	}
	raw, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w %q: sheet is empty", ErrMissingColumn, sheet)
	}

	positions, err := locateColumns(sheet, raw[0], columns)
	if err != nil {
		return nil, err
	}

	out := make([][]string, 0, len(raw)-1)
	for _, cells := range raw[1:] {
		row := make([]string, len(columns))
		empty := true
		for i, pos := range positions {
			if pos < 0 || pos >= len(cells) {
				continue
			}
			row[i] = strings.TrimSpace(cells[pos])
			if row[i] != "" {
				empty = false
			}
		}
		if !empty {
			out = append(out, row)
		}
	}
	return out, nil
}

func locateColumns(sheet string, header []string, columns []columnSpec) ([]int, error) {
	index := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(name)
		if _, dup := index[name]; !dup {
			index[name] = i
		}
	}
	positions := make([]int, len(columns))
	for i, col := range columns {
		pos, ok := index[col.header]
		if !ok {
			if col.required {
				return nil, fmt.Errorf("%w %q in sheet %q", ErrMissingColumn, col.header, sheet)
			}
			pos = -1
		}
		positions[i] = pos
	}
	return positions, nil
}
