package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/noah-isme/exam-seating-api/internal/dto"
	"github.com/noah-isme/exam-seating-api/internal/models"
	appErrors "github.com/noah-isme/exam-seating-api/pkg/errors"
	"github.com/noah-isme/exam-seating-api/pkg/workbook"
)

type seatingPlanStore interface {
	BeginTx(ctx context.Context) (*sqlx.Tx, error)
	Create(ctx context.Context, exec sqlx.ExtContext, plan *models.SeatingPlan) error
	FindByID(ctx context.Context, id string) (*models.SeatingPlan, error)
	List(ctx context.Context, filter models.SeatingPlanFilter) ([]models.SeatingPlan, int, error)
	Delete(ctx context.Context, id string) error
	UpdateStatus(ctx context.Context, id string, status models.SeatingPlanStatus) error
}

type seatingRecordStore interface {
	InsertAssignments(ctx context.Context, exec sqlx.ExtContext, planID string, assignments []models.Assignment) error
	InsertOverflow(ctx context.Context, exec sqlx.ExtContext, planID string, overflow []models.OverflowRecord) error
	ListAssignments(ctx context.Context, planID string, filter models.SeatingAssignmentFilter) ([]models.Assignment, error)
	ListOverflow(ctx context.Context, planID string) ([]models.OverflowRecord, error)
}

type seatingResultCache interface {
	Get(ctx context.Context, key string, dest interface{}) bool
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration)
	Invalidate(ctx context.Context, pattern string)
}

type seatingRunner interface {
	Run(input models.SeatingInput) *models.SeatingResult
}

// Run sources reported to metrics.
const (
	SeatingSourceJSON     = "json"
	SeatingSourceWorkbook = "workbook"
	SeatingSourceCSV      = "csv"
)

const seatingCachePrefix = "seating:result:"

// SeatingServiceConfig governs defaults of the seating service.
type SeatingServiceConfig struct {
	DefaultPolicy   models.CapacityPolicy
	PreferredBlocks []string
	NumericBlock    string
	ProposalTTL     time.Duration
	CacheTTL        time.Duration
}

// SeatingImport is an uploaded set of input tables. Exactly one of Workbook
// or CSV is expected.
type SeatingImport struct {
	Workbook  io.Reader
	CSV       *workbook.CSVSources
	Overrides dto.PolicyOverrides
}

// SeatingService generates seating proposals and manages saved plans.
type SeatingService struct {
	plans     seatingPlanStore
	records   seatingRecordStore
	cache     seatingResultCache
	runner    seatingRunner
	loader    *SeatingLoader
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       SeatingServiceConfig
	proposals *seatingProposals
}

// NewSeatingService wires the engine, storage and cache.
func NewSeatingService(
	plans seatingPlanStore,
	records seatingRecordStore,
	cache seatingResultCache,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg SeatingServiceConfig,
) *SeatingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ProposalTTL <= 0 {
		cfg.ProposalTTL = 30 * time.Minute
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 15 * time.Minute
	}
	if cfg.DefaultPolicy.Density == "" {
		cfg.DefaultPolicy.Density = models.DensitySparse
	}
	allocator := NewSeatAllocator(cfg.PreferredBlocks)
	cfg.PreferredBlocks = allocator.Blocks()
	return &SeatingService{
		plans:     plans,
		records:   records,
		cache:     cache,
		runner:    NewSessionScheduler(allocator, logger),
		loader:    NewSeatingLoader(cfg.NumericBlock),
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
		proposals: newSeatingProposals(cfg.ProposalTTL),
	}
}

// Generate runs the allocation for tables posted as JSON.
func (s *SeatingService) Generate(ctx context.Context, req dto.GenerateSeatingRequest, actorID string) (*dto.SeatingPreviewResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid seating payload")
	}
	return s.preview(ctx, req.Tables(), req.Overrides(), SeatingSourceJSON, actorID)
}

// Import runs the allocation for an uploaded workbook or CSV set.
func (s *SeatingService) Import(ctx context.Context, upload SeatingImport, actorID string) (*dto.SeatingPreviewResponse, error) {
	var (
		tables *workbook.Tables
		err    error
		source string
	)
	switch {
	case upload.Workbook != nil:
		source = SeatingSourceWorkbook
		tables, err = workbook.ReadWorkbook(upload.Workbook)
	case upload.CSV != nil:
		source = SeatingSourceCSV
		tables, err = workbook.ReadCSV(*upload.CSV)
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "workbook or csv tables are required")
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInvalidWorkbook.Code, appErrors.ErrInvalidWorkbook.Status, appErrors.ErrInvalidWorkbook.Message).WithDetails(err.Error())
	}
	return s.preview(ctx, tables, upload.Overrides, source, actorID)
}

func (s *SeatingService) preview(ctx context.Context, tables *workbook.Tables, overrides dto.PolicyOverrides, source, actorID string) (*dto.SeatingPreviewResponse, error) {
	policy, err := s.resolvePolicy(overrides)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	loaded, err := s.loader.Load(tables, policy)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "failed to load seating tables")
	}

	result, cached := s.compute(ctx, loaded)
	warnings := make([]string, 0, len(loaded.Warnings)+len(result.Warnings))
	warnings = append(warnings, loaded.Warnings...)
	warnings = append(warnings, result.Warnings...)
	s.metrics.ObserveSeatingRun(source, cached, result.Stats, time.Since(start))

	proposal := seatingProposal{
		ID:          uuid.NewString(),
		Fingerprint: loaded.Fingerprint,
		Policy:      policy,
		Result:      result,
		Warnings:    warnings,
		RollNames:   loaded.RollNames,
		Dates:       timetableDates(loaded.Input.Timetable),
		CreatedBy:   actorID,
		CreatedAt:   time.Now().UTC(),
	}
	s.proposals.Save(proposal)

	s.logger.Info("seating proposal generated",
		zap.String("proposal_id", proposal.ID),
		zap.String("source", source),
		zap.Bool("cached", cached),
		zap.Int("assignments", len(result.Assignments)),
		zap.Int("overflow", len(result.Overflow)),
		zap.Int("warnings", len(warnings)),
	)

	return &dto.SeatingPreviewResponse{
		ProposalID:  proposal.ID,
		Fingerprint: proposal.Fingerprint,
		Cached:      cached,
		Policy:      policy,
		Assignments: result.Assignments,
		Overflow:    result.Overflow,
		Warnings:    warnings,
		Stats:       result.Stats,
		ExpiresAt:   proposal.CreatedAt.Add(s.cfg.ProposalTTL).Format(time.RFC3339),
	}, nil
}

// compute returns the scheduler result for the loaded input, consulting the
// cache first. Loader warnings are not part of the cached value.
func (s *SeatingService) compute(ctx context.Context, loaded *LoadedTables) (models.SeatingResult, bool) {
	key := s.cacheKey(loaded.Fingerprint)
	var result models.SeatingResult
	if s.cache != nil && s.cache.Get(ctx, key, &result) {
		return result, true
	}
	result = *s.runner.Run(loaded.Input)
	if s.cache != nil {
		s.cache.Set(ctx, key, result, s.cfg.CacheTTL)
	}
	return result, false
}

// FlushCache drops every cached scheduler result, e.g. after the block
// preference changed on another instance sharing the same Redis.
func (s *SeatingService) FlushCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	s.cache.Invalidate(ctx, seatingCachePrefix+"*")
	s.logger.Info("seating result cache flushed")
}

func (s *SeatingService) cacheKey(fingerprint string) string {
	return seatingCachePrefix + fingerprint + ":" + strings.Join(s.cfg.PreferredBlocks, ",")
}

func (s *SeatingService) resolvePolicy(overrides dto.PolicyOverrides) (models.CapacityPolicy, error) {
	policy := s.cfg.DefaultPolicy
	if overrides.BufferSeats != nil {
		if *overrides.BufferSeats < 0 {
			return policy, appErrors.Clone(appErrors.ErrValidation, "bufferSeats must not be negative")
		}
		policy.BufferSeats = *overrides.BufferSeats
	}
	if strings.TrimSpace(overrides.Density) != "" {
		mode, err := models.ParseDensityMode(overrides.Density)
		if err != nil {
			return policy, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "density must be sparse or dense")
		}
		policy.Density = mode
	}
	return policy, nil
}

// Save persists a proposal with its assignments and overflow in one transaction.
func (s *SeatingService) Save(ctx context.Context, req dto.SaveSeatingPlanRequest, actorID string) (*models.SeatingPlan, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid save plan payload")
	}
	proposal, ok := s.proposals.Get(req.ProposalID)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "proposal not found or expired")
	}

	meta, err := json.Marshal(models.SeatingPlanMeta{
		Stats:    proposal.Result.Stats,
		Warnings: proposal.Warnings,
		Dates:    proposal.Dates,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode plan metadata")
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = defaultPlanTitle(proposal.Dates)
	}
	createdBy := actorID
	if createdBy == "" {
		createdBy = proposal.CreatedBy
	}
	plan := &models.SeatingPlan{
		Title:       title,
		Status:      models.SeatingPlanStatusDraft,
		BufferSeats: proposal.Policy.BufferSeats,
		Density:     proposal.Policy.Density,
		Fingerprint: proposal.Fingerprint,
		RollNames:   proposal.RollNames,
		Meta:        types.JSONText(meta),
		CreatedBy:   createdBy,
	}

	start := time.Now()
	tx, err := s.plans.BeginTx(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = s.plans.Create(ctx, tx, plan); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create seating plan")
	}
	if err = s.records.InsertAssignments(ctx, tx, plan.ID, proposal.Result.Assignments); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist seating assignments")
	}
	if err = s.records.InsertOverflow(ctx, tx, plan.ID, proposal.Result.Overflow); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist seating overflow")
	}
	if err = tx.Commit(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit seating plan")
	}
	s.metrics.ObserveDBQuery("seating_plan_save", time.Since(start))

	s.proposals.Delete(req.ProposalID)
	s.logger.Info("seating plan saved", zap.String("plan_id", plan.ID), zap.Int("assignments", len(proposal.Result.Assignments)))
	return plan, nil
}

// List returns saved plans, newest first.
func (s *SeatingService) List(ctx context.Context, query dto.SeatingPlanQuery) ([]models.SeatingPlan, *models.Pagination, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid plan query")
	}
	filter := models.SeatingPlanFilter{Page: query.Page, PageSize: query.PageSize}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}
	if query.Status != "" {
		status := models.SeatingPlanStatus(query.Status)
		filter.Status = &status
	}
	plans, total, err := s.plans.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list seating plans")
	}
	return plans, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Get returns one plan with its decoded run metadata.
func (s *SeatingService) Get(ctx context.Context, id string) (*dto.SeatingPlanDetail, error) {
	plan, err := s.loadPlan(ctx, id)
	if err != nil {
		return nil, err
	}
	detail := &dto.SeatingPlanDetail{SeatingPlan: *plan, Warnings: []string{}, Dates: []string{}}
	if len(plan.Meta) > 0 {
		var meta models.SeatingPlanMeta
		if err := plan.Meta.Unmarshal(&meta); err != nil {
			s.logger.Warn("undecodable plan metadata", zap.String("plan_id", plan.ID), zap.Error(err))
		} else {
			detail.Stats = meta.Stats
			if meta.Warnings != nil {
				detail.Warnings = meta.Warnings
			}
			if meta.Dates != nil {
				detail.Dates = meta.Dates
			}
		}
	}
	return detail, nil
}

// Assignments lists the stored assignments of a plan in scheduler order.
func (s *SeatingService) Assignments(ctx context.Context, id string, query dto.SeatingAssignmentQuery) ([]models.Assignment, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment query")
	}
	if _, err := s.loadPlan(ctx, id); err != nil {
		return nil, err
	}
	filter := models.SeatingAssignmentFilter{CourseCode: normaliseCode(query.CourseCode)}
	if query.Date != "" {
		day, err := workbook.ParseDate(query.Date)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "date must be YYYY-MM-DD")
		}
		filter.Date = day.Format(models.DateLayout)
	}
	if query.Session != "" {
		session, err := models.ParseSessionType(query.Session)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "session must be morning or evening")
		}
		filter.Session = session
	}
	assignments, err := s.records.ListAssignments(ctx, id, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list seating assignments")
	}
	return assignments, nil
}

// Overflow lists the courses of a plan that could not be seated.
func (s *SeatingService) Overflow(ctx context.Context, id string) ([]models.OverflowRecord, error) {
	if _, err := s.loadPlan(ctx, id); err != nil {
		return nil, err
	}
	overflow, err := s.records.ListOverflow(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list seating overflow")
	}
	return overflow, nil
}

// Delete removes a draft plan. Published plans are immutable.
func (s *SeatingService) Delete(ctx context.Context, id string) error {
	plan, err := s.loadPlan(ctx, id)
	if err != nil {
		return err
	}
	if plan.Status != models.SeatingPlanStatusDraft {
		return appErrors.Clone(appErrors.ErrConflict, "only draft plans can be deleted")
	}
	if err := s.plans.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "seating plan not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete seating plan")
	}
	return nil
}

// Publish marks a draft plan as published.
func (s *SeatingService) Publish(ctx context.Context, id string) (*models.SeatingPlan, error) {
	plan, err := s.loadPlan(ctx, id)
	if err != nil {
		return nil, err
	}
	if plan.Status == models.SeatingPlanStatusPublished {
		return nil, appErrors.Clone(appErrors.ErrConflict, "seating plan already published")
	}
	if err := s.plans.UpdateStatus(ctx, id, models.SeatingPlanStatusPublished); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "seating plan not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to publish seating plan")
	}
	plan.Status = models.SeatingPlanStatusPublished
	plan.UpdatedAt = time.Now().UTC()
	return plan, nil
}

func (s *SeatingService) loadPlan(ctx context.Context, id string) (*models.SeatingPlan, error) {
	if strings.TrimSpace(id) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "plan id is required")
	}
	plan, err := s.plans.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "seating plan not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load seating plan")
	}
	return plan, nil
}

func timetableDates(entries []models.TimetableEntry) []string {
	dates := make([]string, 0, len(entries))
	for _, entry := range entries {
		dates = append(dates, entry.Date)
	}
	return dates
}

func defaultPlanTitle(dates []string) string {
	switch len(dates) {
	case 0:
		return "Exam seating"
	case 1:
		return fmt.Sprintf("Exam seating %s", dates[0])
	default:
		return fmt.Sprintf("Exam seating %s to %s", dates[0], dates[len(dates)-1])
	}
}

type seatingProposal struct {
	ID          string
	Fingerprint string
	Policy      models.CapacityPolicy
	Result      models.SeatingResult
	Warnings    []string
	RollNames   models.RollNames
	Dates       []string
	CreatedBy   string
	CreatedAt   time.Time
}

type seatingProposals struct {
	ttl   time.Duration
	mu    sync.RWMutex
	items map[string]seatingProposal
}

func newSeatingProposals(ttl time.Duration) *seatingProposals {
	return &seatingProposals{
		ttl:   ttl,
		items: make(map[string]seatingProposal),
	}
}

// Save stores a proposal and drops expired ones.
func (s *seatingProposals) Save(proposal seatingProposal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, item := range s.items {
		if time.Since(item.CreatedAt) > s.ttl {
			delete(s.items, id)
		}
	}
	s.items[proposal.ID] = proposal
}

func (s *seatingProposals) Get(id string) (seatingProposal, bool) {
	s.mu.RLock()
	proposal, ok := s.items[id]
	s.mu.RUnlock()
	if !ok {
		return seatingProposal{}, false
	}
	if time.Since(proposal.CreatedAt) > s.ttl {
		s.Delete(id)
		return seatingProposal{}, false
	}
	return proposal, true
}

func (s *seatingProposals) Delete(id string) {
	s.mu.Lock()
	delete(s.items, id)
	s.mu.Unlock()
}
