package dto

import (
	"strconv"
	"strings"

	"github.com/noah-isme/exam-seating-api/internal/models"
	"github.com/noah-isme/exam-seating-api/pkg/workbook"
)

// RoomInput is one row of the room capacity table. Rows are checked by the
// loader so a bad room becomes a warning instead of failing the request.
type RoomInput struct {
	RoomNo   string `json:"roomNo"`
	Capacity int    `json:"capacity"`
	Block    string `json:"block"`
}

// TimetableInput lists course codes for both sessions of a date.
type TimetableInput struct {
	Date    string   `json:"date" validate:"required"`
	Morning []string `json:"morning"`
	Evening []string `json:"evening"`
}

// CourseRollInput maps a roll number to a course.
type CourseRollInput struct {
	Roll       string `json:"roll" validate:"required"`
	CourseCode string `json:"courseCode" validate:"required"`
}

// RollNameInput maps a roll number to the student's name.
type RollNameInput struct {
	Roll string `json:"roll" validate:"required"`
	Name string `json:"name"`
}

// GenerateSeatingRequest carries the four input tables and the run policy.
type GenerateSeatingRequest struct {
	Rooms       []RoomInput       `json:"rooms" validate:"required,min=1,dive"`
	Timetable   []TimetableInput  `json:"timetable" validate:"required,min=1,dive"`
	CourseRolls []CourseRollInput `json:"courseRolls" validate:"required,min=1,dive"`
	RollNames   []RollNameInput   `json:"rollNames" validate:"omitempty,dive"`
	BufferSeats *int              `json:"bufferSeats" validate:"omitempty,min=0"`
	Density     string            `json:"density" validate:"omitempty,oneof=sparse dense SPARSE DENSE"`
}

// Tables converts the request into the raw table form shared with uploads.
func (r GenerateSeatingRequest) Tables() *workbook.Tables {
	tables := &workbook.Tables{
		Timetable:   make([]workbook.TimetableRow, 0, len(r.Timetable)),
		CourseRolls: make([]workbook.CourseRollRow, 0, len(r.CourseRolls)),
		RollNames:   make([]workbook.RollNameRow, 0, len(r.RollNames)),
		Rooms:       make([]workbook.RoomRow, 0, len(r.Rooms)),
	}
	for _, room := range r.Rooms {
		tables.Rooms = append(tables.Rooms, workbook.RoomRow{
			RoomNo:   room.RoomNo,
			Capacity: strconv.Itoa(room.Capacity),
			Block:    room.Block,
		})
	}
	for _, entry := range r.Timetable {
		tables.Timetable = append(tables.Timetable, workbook.TimetableRow{
			Date:    entry.Date,
			Morning: strings.Join(entry.Morning, workbook.CourseListSeparator),
			Evening: strings.Join(entry.Evening, workbook.CourseListSeparator),
		})
	}
	for _, row := range r.CourseRolls {
		tables.CourseRolls = append(tables.CourseRolls, workbook.CourseRollRow{Roll: row.Roll, CourseCode: row.CourseCode})
	}
	for _, row := range r.RollNames {
		tables.RollNames = append(tables.RollNames, workbook.RollNameRow{Roll: row.Roll, Name: row.Name})
	}
	return tables
}

// PolicyOverrides carries optional buffer and density values; unset fields
// fall back to the configured defaults.
type PolicyOverrides struct {
	BufferSeats *int
	Density     string
}

// Overrides extracts the policy fields of the request.
func (r GenerateSeatingRequest) Overrides() PolicyOverrides {
	return PolicyOverrides{BufferSeats: r.BufferSeats, Density: r.Density}
}

// SeatingPreviewResponse returns a generated, not yet persisted, allocation.
type SeatingPreviewResponse struct {
	ProposalID  string                  `json:"proposalId"`
	Fingerprint string                  `json:"fingerprint"`
	Cached      bool                    `json:"cached"`
	Policy      models.CapacityPolicy   `json:"policy"`
	Assignments []models.Assignment     `json:"assignments"`
	Overflow    []models.OverflowRecord `json:"overflow"`
	Warnings    []string                `json:"warnings"`
	Stats       models.SeatingStats     `json:"stats"`
	ExpiresAt   string                  `json:"expiresAt"`
}

// SaveSeatingPlanRequest persists a proposal.
type SaveSeatingPlanRequest struct {
	ProposalID string `json:"proposalId" validate:"required"`
	Title      string `json:"title" validate:"omitempty,max=200"`
}

// SeatingPlanQuery filters plan listings.
type SeatingPlanQuery struct {
	Status   string `form:"status" validate:"omitempty,oneof=DRAFT PUBLISHED"`
	Page     int    `form:"page" validate:"omitempty,min=1"`
	PageSize int    `form:"pageSize" validate:"omitempty,min=1,max=100"`
}

// SeatingAssignmentQuery filters the assignments of one plan.
type SeatingAssignmentQuery struct {
	Date       string `form:"date"`
	Session    string `form:"session" validate:"omitempty,oneof=morning evening"`
	CourseCode string `form:"course"`
}

// SeatingPlanDetail is a stored plan with its run metadata decoded.
type SeatingPlanDetail struct {
	models.SeatingPlan
	Stats    models.SeatingStats `json:"stats"`
	Warnings []string            `json:"warnings"`
	Dates    []string            `json:"dates"`
}
