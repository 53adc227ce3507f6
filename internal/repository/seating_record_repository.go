package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/exam-seating-api/internal/models"
)

// SeatingRecordRepository stores the assignments and overflow of saved plans.
type SeatingRecordRepository struct {
	db *sqlx.DB
}

// NewSeatingRecordRepository builds repository.
func NewSeatingRecordRepository(db *sqlx.DB) *SeatingRecordRepository {
	return &SeatingRecordRepository{db: db}
}

func (r *SeatingRecordRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// InsertAssignments stores assignments for a plan in the given order.
func (r *SeatingRecordRepository) InsertAssignments(ctx context.Context, exec sqlx.ExtContext, planID string, assignments []models.Assignment) error {
	if len(assignments) == 0 {
		return nil
	}
	target := r.exec(exec)
	const query = `
INSERT INTO seating_assignments (id, plan_id, position, exam_date, session, course_code, room_id, block, students, carried_over)
VALUES (:id, :plan_id, :position, :exam_date, :session, :course_code, :room_id, :block, :students, :carried_over)`
	for i, a := range assignments {
		date, err := time.Parse(models.DateLayout, a.Date)
		if err != nil {
			return fmt.Errorf("assignment %d date: %w", i, err)
		}
		record := models.SeatingAssignmentRecord{
			ID:          uuid.NewString(),
			PlanID:      planID,
			Position:    i,
			ExamDate:    date,
			Session:     a.Session,
			CourseCode:  a.CourseCode,
			RoomID:      a.RoomID,
			Block:       a.Block,
			Students:    pq.StringArray(a.Students),
			CarriedOver: a.CarriedOver,
		}
		if _, err := sqlx.NamedExecContext(ctx, target, query, record); err != nil {
			return fmt.Errorf("insert seating assignment: %w", err)
		}
	}
	return nil
}

// InsertOverflow stores overflow rows for a plan.
func (r *SeatingRecordRepository) InsertOverflow(ctx context.Context, exec sqlx.ExtContext, planID string, overflow []models.OverflowRecord) error {
	if len(overflow) == 0 {
		return nil
	}
	target := r.exec(exec)
	const query = `
INSERT INTO seating_overflow (id, plan_id, position, exam_date, session, course_code, unseated_count)
VALUES (:id, :plan_id, :position, :exam_date, :session, :course_code, :unseated_count)`
	for i, o := range overflow {
		date, err := time.Parse(models.DateLayout, o.Date)
		if err != nil {
			return fmt.Errorf("overflow %d date: %w", i, err)
		}
		row := models.SeatingOverflowRow{
			ID:            uuid.NewString(),
			PlanID:        planID,
			Position:      i,
			ExamDate:      date,
			Session:       o.Session,
			CourseCode:    o.CourseCode,
			UnseatedCount: o.UnseatedCount,
		}
		if _, err := sqlx.NamedExecContext(ctx, target, query, row); err != nil {
			return fmt.Errorf("insert seating overflow: %w", err)
		}
	}
	return nil
}

// ListAssignments returns a plan's assignments in scheduler order.
func (r *SeatingRecordRepository) ListAssignments(ctx context.Context, planID string, filter models.SeatingAssignmentFilter) ([]models.Assignment, error) {
	conditions := []string{"plan_id = $1"}
	args := []interface{}{planID}
	if filter.Date != "" {
		args = append(args, filter.Date)
		conditions = append(conditions, fmt.Sprintf("exam_date = $%d", len(args)))
	}
	if filter.Session != "" {
		args = append(args, filter.Session)
		conditions = append(conditions, fmt.Sprintf("session = $%d", len(args)))
	}
	if filter.CourseCode != "" {
		args = append(args, filter.CourseCode)
		conditions = append(conditions, fmt.Sprintf("course_code = $%d", len(args)))
	}
	query := `SELECT id, plan_id, position, exam_date, session, course_code, room_id, block, students, carried_over
FROM seating_assignments WHERE ` + strings.Join(conditions, " AND ") + ` ORDER BY position ASC`

	var records []models.SeatingAssignmentRecord
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, fmt.Errorf("list seating assignments: %w", err)
	}
	assignments := make([]models.Assignment, 0, len(records))
	for _, record := range records {
		assignments = append(assignments, record.Assignment())
	}
	return assignments, nil
}

// ListOverflow returns a plan's overflow rows.
func (r *SeatingRecordRepository) ListOverflow(ctx context.Context, planID string) ([]models.OverflowRecord, error) {
	const query = `SELECT id, plan_id, position, exam_date, session, course_code, unseated_count
FROM seating_overflow WHERE plan_id = $1 ORDER BY position ASC`
	var rows []models.SeatingOverflowRow
	if err := r.db.SelectContext(ctx, &rows, query, planID); err != nil {
		return nil, fmt.Errorf("list seating overflow: %w", err)
	}
	overflow := make([]models.OverflowRecord, 0, len(rows))
	for _, row := range rows {
		overflow = append(overflow, row.Overflow())
	}
	return overflow, nil
}
