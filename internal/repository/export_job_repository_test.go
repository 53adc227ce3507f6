package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/exam-seating-api/internal/models"
)

var exportJobColumnNames = []string{"id", "plan_id", "params", "status", "progress", "result_url", "created_by", "created_at", "finished_at", "error_message"}

func TestExportJobCreateDefaults(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewExportJobRepository(db)

	mock.ExpectExec("INSERT INTO export_jobs").WillReturnResult(sqlmock.NewResult(1, 1))

	job := &models.ExportJob{PlanID: "p1", Params: models.ExportJobParams{Format: models.ExportFormatXLSX, Summary: true}, CreatedBy: "u1"}
	require.NoError(t, repo.Create(context.Background(), job))
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, models.ExportStatusQueued, job.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExportJobGetByID(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewExportJobRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM export_jobs WHERE id = $1")).
		WithArgs("j1").
		WillReturnRows(sqlmock.NewRows(exportJobColumnNames).
			AddRow("j1", "p1", []byte(`{"format":"pdf","summary":false}`), "FINISHED", 100, "/exports/download/abc", "u1", now, now, nil))

	job, err := repo.GetByID(context.Background(), "j1")
	require.NoError(t, err)
	assert.Equal(t, models.ExportFormatPDF, job.Params.Format)
	require.NotNil(t, job.ResultURL)
	assert.Equal(t, "/exports/download/abc", *job.ResultURL)
	assert.Nil(t, job.ErrorMessage)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExportJobUpdateBuildsSetClause(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewExportJobRepository(db)

	status := models.ExportStatusProcessing
	progress := 40
	mock.ExpectExec(regexp.QuoteMeta("UPDATE export_jobs SET status = $1, progress = $2 WHERE id = $3")).
		WithArgs(status, progress, "j1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Update(context.Background(), "j1", UpdateExportJobParams{Status: &status, Progress: &progress}))
	require.NoError(t, repo.Update(context.Background(), "j1", UpdateExportJobParams{}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExportJobListQueuedDefaultsLimit(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewExportJobRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE status = 'QUEUED' ORDER BY created_at ASC LIMIT $1")).
		WithArgs(20).
		WillReturnRows(sqlmock.NewRows(exportJobColumnNames))

	jobs, err := repo.ListQueued(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, jobs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExportJobListFinishedBefore(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewExportJobRepository(db)

	cutoff := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	finished := cutoff.Add(-time.Hour)
	mock.ExpectQuery("WHERE status = 'FINISHED' AND finished_at IS NOT NULL").
		WithArgs(cutoff, 50).
		WillReturnRows(sqlmock.NewRows(exportJobColumnNames).
			AddRow("j2", "p1", []byte(`{"format":"xlsx","summary":true}`), "FINISHED", 100, "/exports/download/x", "u1", finished, finished, nil))

	jobs, err := repo.ListFinishedBefore(context.Background(), cutoff, 0)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "j2", jobs[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
