package dto

import "github.com/noah-isme/exam-seating-api/internal/models"

// ExportRequest captures POST /seating/plans/:id/exports payload.
type ExportRequest struct {
	Format  models.ExportFormat `json:"format" validate:"omitempty,oneof=xlsx csv pdf"`
	Dates   []string            `json:"dates" validate:"omitempty,dive,datetime=2006-01-02"`
	Summary *bool               `json:"summary"`
}

// ExportJobResponse is returned after enqueueing an export.
type ExportJobResponse struct {
	ID       string              `json:"id"`
	PlanID   string              `json:"planId"`
	Status   models.ExportStatus `json:"status"`
	Progress int                 `json:"progress"`
}

// ExportStatusResponse exposes job progress metadata.
type ExportStatusResponse struct {
	ID        string              `json:"id"`
	PlanID    string              `json:"planId"`
	Status    models.ExportStatus `json:"status"`
	Progress  int                 `json:"progress"`
	ResultURL *string             `json:"resultUrl,omitempty"`
	Error     *string             `json:"error,omitempty"`
}
