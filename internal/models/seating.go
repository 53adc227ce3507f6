package models

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the canonical format for exam dates throughout the service.
const DateLayout = "2006-01-02"

// SessionType is one of the two daily examination sessions.
type SessionType string

const (
	SessionMorning SessionType = "morning"
	SessionEvening SessionType = "evening"
)

// Sessions lists the daily sessions in processing order.
var Sessions = []SessionType{SessionMorning, SessionEvening}

// ParseSessionType validates a session name.
func ParseSessionType(raw string) (SessionType, error) {
	switch SessionType(strings.ToLower(strings.TrimSpace(raw))) {
	case SessionMorning:
		return SessionMorning, nil
	case SessionEvening:
		return SessionEvening, nil
	default:
		return "", fmt.Errorf("unknown session %q", raw)
	}
}

// Title returns the capitalised session name used on printed sheets.
func (s SessionType) Title() string {
	if s == "" {
		return ""
	}
	return strings.ToUpper(string(s[:1])) + string(s[1:])
}

// Course is an examined course with its roster ordered ascending by roll.
type Course struct {
	Code   string   `json:"code"`
	Roster []string `json:"roster"`
}

// TimetableEntry lists the courses examined in each session of one date.
type TimetableEntry struct {
	Date    string   `json:"date"`
	Morning []string `json:"morning"`
	Evening []string `json:"evening"`
}

// Day parses the entry date.
func (e TimetableEntry) Day() (time.Time, error) {
	return time.Parse(DateLayout, e.Date)
}

// SeatingInput is everything one allocation run consumes.
type SeatingInput struct {
	Rooms     []Room              `json:"rooms"`
	Courses   map[string][]string `json:"courses"`
	Timetable []TimetableEntry    `json:"timetable"`
	Policy    CapacityPolicy      `json:"policy"`
}

// RoomAllocation is one room chosen by the allocation engine for a course
// together with the contiguous slice of the roster it receives.
type RoomAllocation struct {
	Room     Room
	Usable   int
	Students []string
}

// Assignment seats a contiguous part of a course roster in one room.
type Assignment struct {
	Date        string      `json:"date"`
	Session     SessionType `json:"session"`
	CourseCode  string      `json:"courseCode"`
	RoomID      string      `json:"roomId"`
	Block       string      `json:"block"`
	Students    []string    `json:"students"`
	CarriedOver bool        `json:"carriedOver"`
}

// OverflowRecord reports a course that could not be seated on its date.
type OverflowRecord struct {
	Date          string      `json:"date"`
	Session       SessionType `json:"session"`
	CourseCode    string      `json:"courseCode"`
	UnseatedCount int         `json:"unseatedCount"`
}

// SeatingStats summarises a run.
type SeatingStats struct {
	CoursesScheduled int `json:"coursesScheduled"`
	CoursesSeated    int `json:"coursesSeated"`
	CoursesCarried   int `json:"coursesCarried"`
	CoursesUnseated  int `json:"coursesUnseated"`
	CoursesSkipped   int `json:"coursesSkipped"`
	StudentsSeated   int `json:"studentsSeated"`
	StudentsUnseated int `json:"studentsUnseated"`
	// RoomsUsed counts distinct rooms that received at least one assignment.
	RoomsUsed int `json:"roomsUsed"`
}

// SeatingResult is the complete output of one run.
type SeatingResult struct {
	Assignments []Assignment     `json:"assignments"`
	Overflow    []OverflowRecord `json:"overflow"`
	Warnings    []string         `json:"warnings"`
	Stats       SeatingStats     `json:"stats"`
}
