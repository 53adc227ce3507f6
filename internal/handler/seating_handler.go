package handler

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/exam-seating-api/internal/dto"
	"github.com/noah-isme/exam-seating-api/internal/middleware"
	"github.com/noah-isme/exam-seating-api/internal/models"
	"github.com/noah-isme/exam-seating-api/internal/service"
	appErrors "github.com/noah-isme/exam-seating-api/pkg/errors"
	"github.com/noah-isme/exam-seating-api/pkg/response"
	"github.com/noah-isme/exam-seating-api/pkg/workbook"
)

// Multipart field names accepted by the import endpoint.
const (
	fieldWorkbook    = "workbook"
	fieldTimetable   = "timetable"
	fieldCourseRolls = "course_rolls"
	fieldRollNames   = "roll_names"
	fieldRooms       = "rooms"
	fieldBufferSeats = "bufferSeats"
	fieldDensity     = "density"
)

type seatingManager interface {
	Generate(ctx context.Context, req dto.GenerateSeatingRequest, actorID string) (*dto.SeatingPreviewResponse, error)
	Import(ctx context.Context, upload service.SeatingImport, actorID string) (*dto.SeatingPreviewResponse, error)
	Save(ctx context.Context, req dto.SaveSeatingPlanRequest, actorID string) (*models.SeatingPlan, error)
	List(ctx context.Context, query dto.SeatingPlanQuery) ([]models.SeatingPlan, *models.Pagination, error)
	Get(ctx context.Context, id string) (*dto.SeatingPlanDetail, error)
	Assignments(ctx context.Context, id string, query dto.SeatingAssignmentQuery) ([]models.Assignment, error)
	Overflow(ctx context.Context, id string) ([]models.OverflowRecord, error)
	Delete(ctx context.Context, id string) error
	Publish(ctx context.Context, id string) (*models.SeatingPlan, error)
	FlushCache(ctx context.Context)
}

// SeatingHandler exposes seating generation and plan endpoints.
type SeatingHandler struct {
	service   seatingManager
	maxUpload int64
}

// NewSeatingHandler constructs the handler. maxUpload caps multipart bodies.
func NewSeatingHandler(svc *service.SeatingService, maxUpload int64) *SeatingHandler {
	return newSeatingHandler(svc, maxUpload)
}

func newSeatingHandler(svc seatingManager, maxUpload int64) *SeatingHandler {
	if maxUpload <= 0 {
		maxUpload = 20 << 20
	}
	return &SeatingHandler{service: svc, maxUpload: maxUpload}
}

// Generate godoc
// @Summary Generate seating proposal
// @Description Runs the allocation for JSON tables. The result is held as a proposal until saved.
// @Tags Seating
// @Accept json
// @Produce json
// @Param payload body dto.GenerateSeatingRequest true "Input tables and policy"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /seating/generate [post]
func (h *SeatingHandler) Generate(c *gin.Context) {
	var req dto.GenerateSeatingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid seating payload"))
		return
	}
	preview, err := h.service.Generate(c.Request.Context(), req, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	h.respondPreview(c, preview)
}

// Import godoc
// @Summary Generate seating proposal from an upload
// @Description Accepts a workbook (field "workbook") or the four CSV tables (timetable, course_rolls, roll_names, rooms).
// @Tags Seating
// @Accept multipart/form-data
// @Produce json
// @Param workbook formData file false "Input workbook (.xlsx)"
// @Param timetable formData file false "Timetable CSV"
// @Param course_rolls formData file false "Course roll mapping CSV"
// @Param roll_names formData file false "Roll name mapping CSV"
// @Param rooms formData file false "Room capacity CSV"
// @Param bufferSeats formData int false "Seats held back per room"
// @Param density formData string false "sparse or dense"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 413 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /seating/import [post]
func (h *SeatingHandler) Import(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload)
	form, err := c.MultipartForm()
	if err != nil {
		if isBodyTooLarge(err) {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrPayloadTooLarge.Code, appErrors.ErrPayloadTooLarge.Status, appErrors.ErrPayloadTooLarge.Message))
			return
		}
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "multipart form expected"))
		return
	}

	overrides, err := formOverrides(form)
	if err != nil {
		response.Error(c, err)
		return
	}

	upload := service.SeatingImport{Overrides: overrides}
	var files []multipart.File
	defer func() {
		for _, f := range files {
			f.Close()
		}
	}()
	open := func(field string) (io.Reader, error) {
		headers := form.File[field]
		if len(headers) == 0 {
			return nil, nil
		}
		f, err := headers[0].Open()
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unreadable upload part "+field)
		}
		files = append(files, f)
		return f, nil
	}

	if wb, err := open(fieldWorkbook); err != nil {
		response.Error(c, err)
		return
	} else if wb != nil {
		upload.Workbook = wb
	} else {
		sources := &workbook.CSVSources{}
		parts := []struct {
			field string
			dst   *io.Reader
		}{
			{fieldTimetable, &sources.Timetable},
			{fieldCourseRolls, &sources.CourseRolls},
			{fieldRollNames, &sources.RollNames},
			{fieldRooms, &sources.Rooms},
		}
		var missing []string
		for _, part := range parts {
			r, err := open(part.field)
			if err != nil {
				response.Error(c, err)
				return
			}
			if r == nil {
				missing = append(missing, part.field)
				continue
			}
			*part.dst = r
		}
		switch {
		case len(missing) == len(parts):
		case len(missing) > 0:
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "missing csv parts: "+strings.Join(missing, ", ")))
			return
		default:
			upload.CSV = sources
		}
	}

	preview, err := h.service.Import(c.Request.Context(), upload, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	h.respondPreview(c, preview)
}

func (h *SeatingHandler) respondPreview(c *gin.Context, preview *dto.SeatingPreviewResponse) {
	middleware.SetCacheHit(c, preview.Cached)
	response.JSON(c, http.StatusOK, preview, nil, middleware.ExtractMeta(c))
}

// Save godoc
// @Summary Save seating proposal
// @Tags Seating
// @Accept json
// @Produce json
// @Param payload body dto.SaveSeatingPlanRequest true "Proposal to persist"
// @Success 201 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /seating/plans [post]
func (h *SeatingHandler) Save(c *gin.Context) {
	var req dto.SaveSeatingPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid save payload"))
		return
	}
	plan, err := h.service.Save(c.Request.Context(), req, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, plan)
}

// List godoc
// @Summary List seating plans
// @Tags Seating
// @Produce json
// @Param status query string false "DRAFT or PUBLISHED"
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /seating/plans [get]
func (h *SeatingHandler) List(c *gin.Context) {
	var query dto.SeatingPlanQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query"))
		return
	}
	plans, pagination, err := h.service.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, plans, pagination)
}

// Get godoc
// @Summary Get seating plan
// @Tags Seating
// @Produce json
// @Param id path string true "Plan ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /seating/plans/{id} [get]
func (h *SeatingHandler) Get(c *gin.Context) {
	plan, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, plan, nil)
}

// Assignments godoc
// @Summary List room assignments of a plan
// @Tags Seating
// @Produce json
// @Param id path string true "Plan ID"
// @Param date query string false "Exam date"
// @Param session query string false "morning or evening"
// @Param course query string false "Course code"
// @Success 200 {object} response.Envelope
// @Router /seating/plans/{id}/assignments [get]
func (h *SeatingHandler) Assignments(c *gin.Context) {
	var query dto.SeatingAssignmentQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query"))
		return
	}
	items, err := h.service.Assignments(c.Request.Context(), c.Param("id"), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Overflow godoc
// @Summary List courses that could not be seated
// @Tags Seating
// @Produce json
// @Param id path string true "Plan ID"
// @Success 200 {object} response.Envelope
// @Router /seating/plans/{id}/overflow [get]
func (h *SeatingHandler) Overflow(c *gin.Context) {
	items, err := h.service.Overflow(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Delete godoc
// @Summary Delete a draft seating plan
// @Tags Seating
// @Param id path string true "Plan ID"
// @Success 204
// @Failure 409 {object} response.Envelope
// @Router /seating/plans/{id} [delete]
func (h *SeatingHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Publish godoc
// @Summary Publish a seating plan
// @Tags Seating
// @Produce json
// @Param id path string true "Plan ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /seating/plans/{id}/publish [post]
func (h *SeatingHandler) Publish(c *gin.Context) {
	plan, err := h.service.Publish(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, plan, nil)
}

// FlushCache godoc
// @Summary Drop cached seating results
// @Tags Seating
// @Success 204
// @Router /seating/cache [delete]
func (h *SeatingHandler) FlushCache(c *gin.Context) {
	h.service.FlushCache(c.Request.Context())
	response.NoContent(c)
}

func formOverrides(form *multipart.Form) (dto.PolicyOverrides, error) {
	var overrides dto.PolicyOverrides
	if raw := formValue(form, fieldBufferSeats); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return overrides, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "bufferSeats must be an integer")
		}
		overrides.BufferSeats = &n
	}
	overrides.Density = formValue(form, fieldDensity)
	return overrides, nil
}

func formValue(form *multipart.Form, key string) string {
	if values := form.Value[key]; len(values) > 0 {
		return strings.TrimSpace(values[0])
	}
	return ""
}

func isBodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return true
	}
	return strings.Contains(err.Error(), "request body too large")
}
