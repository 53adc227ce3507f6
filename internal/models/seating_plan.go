package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx/types"
	"github.com/lib/pq"
)

// SeatingPlanStatus represents lifecycle phases for saved plans.
type SeatingPlanStatus string

const (
	SeatingPlanStatusDraft     SeatingPlanStatus = "DRAFT"
	SeatingPlanStatusPublished SeatingPlanStatus = "PUBLISHED"
)

// SeatingPlan is a persisted allocation run.
type SeatingPlan struct {
	ID          string            `db:"id" json:"id"`
	Title       string            `db:"title" json:"title"`
	Status      SeatingPlanStatus `db:"status" json:"status"`
	BufferSeats int               `db:"buffer_seats" json:"buffer_seats"`
	Density     DensityMode       `db:"density" json:"density"`
	Fingerprint string            `db:"fingerprint" json:"fingerprint"`
	RollNames   RollNames         `db:"roll_names" json:"-"`
	Meta        types.JSONText    `db:"meta" json:"meta"`
	CreatedBy   string            `db:"created_by" json:"created_by"`
	CreatedAt   time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time         `db:"updated_at" json:"updated_at"`
}

// Policy returns the capacity policy the plan was computed with.
func (p SeatingPlan) Policy() CapacityPolicy {
	return CapacityPolicy{BufferSeats: p.BufferSeats, Density: p.Density}
}

// SeatingPlanMeta is stored in the meta column of a plan.
type SeatingPlanMeta struct {
	Stats    SeatingStats `json:"stats"`
	Warnings []string     `json:"warnings,omitempty"`
	Dates    []string     `json:"dates"`
}

// RollNames maps roll numbers to student names, persisted as JSONB.
type RollNames map[string]string

// Lookup returns the student's name or "Unknown".
func (r RollNames) Lookup(roll string) string {
	if name, ok := r[roll]; ok && name != "" {
		return name
	}
	return "Unknown"
}

// Value marshals the map to JSON for persistence.
func (r RollNames) Value() (driver.Value, error) {
	if r == nil {
		return []byte(`{}`), nil
	}
	data, err := json.Marshal(map[string]string(r))
	if err != nil {
		return nil, fmt.Errorf("marshal roll names: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSON payloads into the map.
func (r *RollNames) Scan(value interface{}) error {
	if value == nil {
		*r = RollNames{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for RollNames", value)
	}
	if len(data) == 0 {
		*r = RollNames{}
		return nil
	}
	decoded := map[string]string{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		return fmt.Errorf("unmarshal roll names: %w", err)
	}
	*r = RollNames(decoded)
	return nil
}

// SeatingAssignmentFilter narrows assignment listings.
type SeatingAssignmentFilter struct {
	Date       string
	Session    SessionType
	CourseCode string
}

// SeatingPlanFilter narrows plan listings.
type SeatingPlanFilter struct {
	Status   *SeatingPlanStatus
	Page     int
	PageSize int
}

// SeatingAssignmentRecord is the stored form of an Assignment. Position keeps
// the order the scheduler produced.
type SeatingAssignmentRecord struct {
	ID          string         `db:"id"`
	PlanID      string         `db:"plan_id"`
	Position    int            `db:"position"`
	ExamDate    time.Time      `db:"exam_date"`
	Session     SessionType    `db:"session"`
	CourseCode  string         `db:"course_code"`
	RoomID      string         `db:"room_id"`
	Block       string         `db:"block"`
	Students    pq.StringArray `db:"students"`
	CarriedOver bool           `db:"carried_over"`
}

// Assignment converts the record back to its domain form.
func (r SeatingAssignmentRecord) Assignment() Assignment {
	students := make([]string, len(r.Students))
	copy(students, r.Students)
	return Assignment{
		Date:        r.ExamDate.Format(DateLayout),
		Session:     r.Session,
		CourseCode:  r.CourseCode,
		RoomID:      r.RoomID,
		Block:       r.Block,
		Students:    students,
		CarriedOver: r.CarriedOver,
	}
}

// SeatingOverflowRow is the stored form of an OverflowRecord.
type SeatingOverflowRow struct {
	ID            string      `db:"id"`
	PlanID        string      `db:"plan_id"`
	Position      int         `db:"position"`
	ExamDate      time.Time   `db:"exam_date"`
	Session       SessionType `db:"session"`
	CourseCode    string      `db:"course_code"`
	UnseatedCount int         `db:"unseated_count"`
}

// Overflow converts the row back to its domain form.
func (r SeatingOverflowRow) Overflow() OverflowRecord {
	return OverflowRecord{
		Date:          r.ExamDate.Format(DateLayout),
		Session:       r.Session,
		CourseCode:    r.CourseCode,
		UnseatedCount: r.UnseatedCount,
	}
}
