package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"

	"github.com/noah-isme/exam-seating-api/internal/models"
)

const seatingPlanColumns = `id, title, status, buffer_seats, density, fingerprint, roll_names, meta, created_by, created_at, updated_at`

// SeatingPlanRepository persists saved seating plans.
type SeatingPlanRepository struct {
	db *sqlx.DB
}

// NewSeatingPlanRepository constructs the repository.
func NewSeatingPlanRepository(db *sqlx.DB) *SeatingPlanRepository {
	return &SeatingPlanRepository{db: db}
}

func (r *SeatingPlanRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// BeginTx starts a transaction shared by the plan and its records.
func (r *SeatingPlanRepository) BeginTx(ctx context.Context) (*sqlx.Tx, error) {
	return r.db.BeginTxx(ctx, nil)
}

// Create inserts a plan row, filling id, status and timestamps when unset.
func (r *SeatingPlanRepository) Create(ctx context.Context, exec sqlx.ExtContext, plan *models.SeatingPlan) error {
	if plan == nil {
		return fmt.Errorf("seating plan payload is nil")
	}
	if plan.ID == "" {
		plan.ID = uuid.NewString()
	}
	if plan.Status == "" {
		plan.Status = models.SeatingPlanStatusDraft
	}
	if len(plan.Meta) == 0 {
		plan.Meta = types.JSONText(`{}`)
	}
	now := time.Now().UTC()
	if plan.CreatedAt.IsZero() {
		plan.CreatedAt = now
	}
	plan.UpdatedAt = now

	const query = `
INSERT INTO seating_plans (id, title, status, buffer_seats, density, fingerprint, roll_names, meta, created_by, created_at, updated_at)
VALUES (:id, :title, :status, :buffer_seats, :density, :fingerprint, :roll_names, :meta, :created_by, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, plan); err != nil {
		return fmt.Errorf("insert seating plan: %w", err)
	}
	return nil
}

// FindByID loads a plan by its identifier. sql.ErrNoRows is returned as is.
func (r *SeatingPlanRepository) FindByID(ctx context.Context, id string) (*models.SeatingPlan, error) {
	query := `SELECT ` + seatingPlanColumns + ` FROM seating_plans WHERE id = $1`
	var plan models.SeatingPlan
	if err := r.db.GetContext(ctx, &plan, query, id); err != nil {
		return nil, err
	}
	return &plan, nil
}

// List returns plans newest first with the total count.
func (r *SeatingPlanRepository) List(ctx context.Context, filter models.SeatingPlanFilter) ([]models.SeatingPlan, int, error) {
	where := ""
	var args []interface{}
	if filter.Status != nil {
		where = " WHERE status = $1"
		args = append(args, *filter.Status)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT %s FROM seating_plans%s ORDER BY created_at DESC LIMIT %d OFFSET %d", seatingPlanColumns, where, pageSize, offset)
	var plans []models.SeatingPlan
	if err := r.db.SelectContext(ctx, &plans, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list seating plans: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM seating_plans"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count seating plans: %w", err)
	}
	return plans, total, nil
}

// Delete removes a plan; assignments and overflow rows cascade.
func (r *SeatingPlanRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM seating_plans WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete seating plan: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("seating plan rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// UpdateStatus moves a plan to a new lifecycle status.
func (r *SeatingPlanRepository) UpdateStatus(ctx context.Context, id string, status models.SeatingPlanStatus) error {
	const query = `UPDATE seating_plans SET status = $1, updated_at = $2 WHERE id = $3`
	result, err := r.db.ExecContext(ctx, query, status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update seating plan status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("seating plan status rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
