package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/exam-seating-api/internal/models"
	"github.com/noah-isme/exam-seating-api/pkg/storage"
)

type exportPlanReader interface {
	FindByID(ctx context.Context, id string) (*models.SeatingPlan, error)
}

type exportRecordReader interface {
	ListAssignments(ctx context.Context, planID string, filter models.SeatingAssignmentFilter) ([]models.Assignment, error)
	ListOverflow(ctx context.Context, planID string) ([]models.OverflowRecord, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type archiveBuilder interface {
	Build(bundle SeatingBundle, params models.ExportJobParams) ([]byte, int, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Files        int
	ExpiresAt    time.Time
}

// ExportService renders stored plans into archives and persists them.
type ExportService struct {
	plans    exportPlanReader
	records  exportRecordReader
	storage  fileStorage
	archiver archiveBuilder
	signer   *storage.SignedURLSigner
	logger   *zap.Logger
	cfg      ExportConfig
}

// NewExportService constructs an ExportService.
func NewExportService(plans exportPlanReader, records exportRecordReader, storage fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger, archiver archiveBuilder) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if archiver == nil {
		archiver = NewSeatingArchiver()
	}
	return &ExportService{
		plans:    plans,
		records:  records,
		storage:  storage,
		archiver: archiver,
		signer:   signer,
		logger:   logger,
		cfg:      cfg,
	}
}

// Generate builds the archive for a job's plan and stores it.
func (s *ExportService) Generate(ctx context.Context, job *models.ExportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}
	plan, err := s.plans.FindByID(ctx, job.PlanID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("plan %s no longer exists", job.PlanID)
		}
		return nil, fmt.Errorf("load plan: %w", err)
	}
	assignments, err := s.records.ListAssignments(ctx, plan.ID, models.SeatingAssignmentFilter{})
	if err != nil {
		return nil, fmt.Errorf("load assignments: %w", err)
	}
	overflow, err := s.records.ListOverflow(ctx, plan.ID)
	if err != nil {
		return nil, fmt.Errorf("load overflow: %w", err)
	}

	payload, files, err := s.archiver.Build(SeatingBundle{
		Assignments: assignments,
		Overflow:    overflow,
		RollNames:   plan.RollNames,
	}, job.Params)
	if err != nil {
		return nil, err
	}

	relPath, err := s.storage.Save(fmt.Sprintf("plans/%s/%s/%s", plan.ID, job.ID, ArchiveFilename), payload)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return nil, err
	}
	signedURL := strings.TrimRight(s.cfg.APIPrefix, "/")
	if signedURL == "" {
		signedURL = "/api/v1"
	}
	signedURL = fmt.Sprintf("%s/exports/download/%s", signedURL, token)

	s.logger.Info("seating archive stored",
		zap.String("job_id", job.ID),
		zap.String("plan_id", plan.ID),
		zap.Int("files", files),
		zap.Int("bytes", len(payload)),
	)
	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          signedURL,
		Files:        files,
		ExpiresAt:    expiresAt,
	}, nil
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored export file.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes files older than ttl (defaults to configured ResultTTL when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}
