// Package workbook reads the four seating input tables from an xlsx workbook or
// from CSV files. Values are returned as text; normalisation happens upstream.
package workbook

import "errors"

// Sheet names expected in an input workbook.
const (
	SheetTimetable    = "in_timetable"
	SheetCourseRolls  = "in_course_roll_mapping"
	SheetRollNames    = "in_roll_name_mapping"
	SheetRoomCapacity = "in_room_capacity"
)

// CourseListSeparator separates course codes inside a timetable cell.
const CourseListSeparator = ";"

var (
	// ErrMissingSheet is returned when a required sheet is absent.
	ErrMissingSheet = errors.New("workbook: missing sheet")
	// ErrMissingColumn is returned when a required header is absent.
	ErrMissingColumn = errors.New("workbook: missing column")
)

// TimetableRow is one exam date with its semicolon separated course lists.
type TimetableRow struct {
	Date    string `csv:"Date" json:"date"`
	Morning string `csv:"Morning" json:"morning"`
	Evening string `csv:"Evening" json:"evening"`
}

// CourseRollRow maps a roll number to a course.
type CourseRollRow struct {
	Roll       string `csv:"rollno" json:"rollno"`
	CourseCode string `csv:"course_code" json:"course_code"`
}

// RollNameRow maps a roll number to a student name.
type RollNameRow struct {
	Roll string `csv:"Roll" json:"roll"`
	Name string `csv:"Name" json:"name"`
}

// RoomRow describes one room. Capacity stays textual so bad rows can be
// reported instead of failing the whole read.
type RoomRow struct {
	RoomNo   string `csv:"Room No." json:"room_no"`
	Capacity string `csv:"Exam Capacity" json:"capacity"`
	Block    string `csv:"Block" json:"block"`
}

// Tables bundles the four input tables.
type Tables struct {
	Timetable   []TimetableRow
	CourseRolls []CourseRollRow
	RollNames   []RollNameRow
	Rooms       []RoomRow
}

type columnSpec struct {
	header   string
	required bool
}

var (
	timetableColumns   = []columnSpec{{"Date", true}, {"Morning", false}, {"Evening", false}}
	courseRollColumns  = []columnSpec{{"rollno", true}, {"course_code", true}}
	rollNameColumns    = []columnSpec{{"Roll", true}, {"Name", true}}
	roomCapacityColumn = []columnSpec{{"Room No.", true}, {"Exam Capacity", true}, {"Block", true}}
)
