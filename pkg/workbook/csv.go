package workbook

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/gocarina/gocsv"
)

func init() {
	gocsv.SetCSVReader(func(in io.Reader) gocsv.CSVReader {
		r := csv.NewReader(in)
		r.TrimLeadingSpace = true
		r.FieldsPerRecord = -1
		return r
	})
	gocsv.SetHeaderNormalizer(func(header string) string {
		return strings.TrimSpace(strings.TrimPrefix(header, "\ufeff"))
	})
}

// CSVSources holds one reader per input table.
type CSVSources struct {
	Timetable   io.Reader
	CourseRolls io.Reader
	RollNames   io.Reader
	Rooms       io.Reader
}

// ReadCSV parses the four tables from CSV files with header rows matching
// the workbook sheets.
func ReadCSV(src CSVSources) (*Tables, error) {
	tables := &Tables{}
	if err := unmarshalTable("timetable", src.Timetable, &tables.Timetable); err != nil {
		return nil, err
	}
	if err := unmarshalTable("course rolls", src.CourseRolls, &tables.CourseRolls); err != nil {
		return nil, err
	}
	if err := unmarshalTable("roll names", src.RollNames, &tables.RollNames); err != nil {
		return nil, err
	}
	if err := unmarshalTable("rooms", src.Rooms, &tables.Rooms); err != nil {
		return nil, err
	}
	trimTables(tables)
	return tables, nil
}

func unmarshalTable(name string, r io.Reader, out interface{}) error {
	if r == nil {
		return fmt.Errorf("%w %q", ErrMissingSheet, name)
	}
	if err := gocsv.Unmarshal(r, out); err != nil {
		return fmt.Errorf("parse %s csv: %w", name, err)
	}
	return nil
}

func trimTables(t *Tables) {
	for i := range t.Timetable {
		row := &t.Timetable[i]
		row.Date, row.Morning, row.Evening = strings.TrimSpace(row.Date), strings.TrimSpace(row.Morning), strings.TrimSpace(row.Evening)
	}
	for i := range t.CourseRolls {
		row := &t.CourseRolls[i]
		row.Roll, row.CourseCode = strings.TrimSpace(row.Roll), strings.TrimSpace(row.CourseCode)
	}
	for i := range t.RollNames {
		row := &t.RollNames[i]
		row.Roll, row.Name = strings.TrimSpace(row.Roll), strings.TrimSpace(row.Name)
	}
	for i := range t.Rooms {
		row := &t.Rooms[i]
		row.RoomNo, row.Capacity, row.Block = strings.TrimSpace(row.RoomNo), strings.TrimSpace(row.Capacity), strings.TrimSpace(row.Block)
	}
}
