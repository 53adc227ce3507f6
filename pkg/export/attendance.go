package export

import "fmt"

// Signature slots printed under every attendance list.
const (
	TASlots          = 5
	InvigilatorSlots = 5
)

// AttendanceEntry is one student line on an attendance sheet.
type AttendanceEntry struct {
	Roll string
	Name string
}

// AttendanceSheet describes the students of one course in one room for one
// session. Date is already formatted for printing.
type AttendanceSheet struct {
	Course   string
	Room     string
	Date     string
	Session  string
	Students []AttendanceEntry
}

// Heading is the first line of the sheet.
func (s AttendanceSheet) Heading() string {
	return fmt.Sprintf("Course: %s | Room: %s | Date: %s | Session: %s", s.Course, s.Room, s.Date, s.Session)
}

// Grid lays the sheet out row by row: heading, column headers, one row per
// student, a blank row, TA slots, a blank row, invigilator slots.
func (s AttendanceSheet) Grid() [][]string {
	rows := make([][]string, 0, len(s.Students)+TASlots+InvigilatorSlots+4)
	rows = append(rows, []string{s.Heading()})
	rows = append(rows, []string{"Roll", "Student Name", "Signature"})
	for _, student := range s.Students {
		rows = append(rows, []string{student.Roll, student.Name, ""})
	}
	rows = append(rows, nil)
	for i := 1; i <= TASlots; i++ {
		rows = append(rows, []string{fmt.Sprintf("TA%d", i), "", ""})
	}
	rows = append(rows, nil)
	for i := 1; i <= InvigilatorSlots; i++ {
		rows = append(rows, []string{fmt.Sprintf("Invigilator%d", i), "", ""})
	}
	return rows
}
