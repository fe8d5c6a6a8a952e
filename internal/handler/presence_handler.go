package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/presence-api/internal/dto"
	"github.com/noah-isme/presence-api/internal/models"
	appErrors "github.com/noah-isme/presence-api/pkg/errors"
	"github.com/noah-isme/presence-api/pkg/response"
)

type presenceService interface {
	Scan(ctx context.Context, req dto.ScanRequest) (*models.PresenceRecord, error)
	List(ctx context.Context, req dto.PresenceListRequest) ([]models.PresenceRecord, error)
	StudentHistory(ctx context.Context, userID string) (*dto.StudentPresencesResponse, error)
	Today(ctx context.Context, userID string) (*dto.TodayPresenceResponse, error)
	UpdateStatus(ctx context.Context, id string, req dto.UpdatePresenceStatusRequest) (*models.PresenceRecord, error)
}

type presenceExporter interface {
	Export(ctx context.Context, req dto.PresenceListRequest, format string) (*dto.ExportFile, error)
}

type backfillEnqueuer interface {
	Enqueue(ctx context.Context, req dto.BackfillRequest) (*dto.BackfillAccepted, error)
}

// PresenceHandler exposes presence endpoints.
type PresenceHandler struct {
	service  presenceService
	exporter presenceExporter
	backfill backfillEnqueuer
}

// NewPresenceHandler builds a new handler.
func NewPresenceHandler(service presenceService, exporter presenceExporter, backfill backfillEnqueuer) *PresenceHandler {
	return &PresenceHandler{service: service, exporter: exporter, backfill: backfill}
}

// Scan godoc
// @Summary Record a presence scan
// @Description Classifies the current time as PRESENT, LATE or ABSENT for the learner.
// @Tags Presences
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.ScanRequest true "Scanned matricule"
// @Success 201 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /presences/scan [post]
func (h *PresenceHandler) Scan(c *gin.Context) {
	var req dto.ScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid scan payload"))
		return
	}
	record, err := h.service.Scan(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, record)
}

// List godoc
// @Summary List presences
// @Tags Presences
// @Produce json
// @Security BearerAuth
// @Param startDate query string false "First day (YYYY-MM-DD)"
// @Param endDate query string false "Last day (YYYY-MM-DD)"
// @Param status query string false "PRESENT, LATE or ABSENT"
// @Param referentiel query string false "Cohort"
// @Success 200 {object} response.Envelope
// @Router /presences [get]
func (h *PresenceHandler) List(c *gin.Context) {
	req, ok := bindListQuery(c)
	if !ok {
		return
	}
	records, err := h.service.List(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, map[string]interface{}{"count": len(records)})
}

// Export godoc
// @Summary Export presences
// @Tags Presences
// @Produce text/csv
// @Produce application/pdf
// @Security BearerAuth
// @Param format query string false "csv (default) or pdf"
// @Param startDate query string false "First day (YYYY-MM-DD)"
// @Param endDate query string false "Last day (YYYY-MM-DD)"
// @Param status query string false "PRESENT, LATE or ABSENT"
// @Param referentiel query string false "Cohort"
// @Success 200 {file} file
// @Router /presences/export [get]
func (h *PresenceHandler) Export(c *gin.Context) {
	req, ok := bindListQuery(c)
	if !ok {
		return
	}
	file, err := h.exporter.Export(c.Request.Context(), req, c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.File(c, file.Filename, file.ContentType, file.Payload)
}

// StudentHistory godoc
// @Summary Learner presence history with stats
// @Tags Presences
// @Produce json
// @Security BearerAuth
// @Param userId path string true "Learner matricule"
// @Success 200 {object} response.Envelope
// @Router /presences/{userId} [get]
func (h *PresenceHandler) StudentHistory(c *gin.Context) {
	history, err := h.service.StudentHistory(c.Request.Context(), c.Param("userId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, history)
}

// Today godoc
// @Summary Latest presence of the current day
// @Tags Presences
// @Produce json
// @Security BearerAuth
// @Param userId path string true "Learner matricule"
// @Success 200 {object} response.Envelope
// @Router /presences/estMarquer/{userId} [get]
func (h *PresenceHandler) Today(c *gin.Context) {
	today, err := h.service.Today(c.Request.Context(), c.Param("userId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, today)
}

// UpdateStatus godoc
// @Summary Correct a presence status
// @Tags Presences
// @Accept json
// @Produce json
// @Param id path string true "Presence ID"
// @Param payload body dto.UpdatePresenceStatusRequest true "New status and optional RFC3339 scan time"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /presences/{id} [patch]
func (h *PresenceHandler) UpdateStatus(c *gin.Context) {
	var req dto.UpdatePresenceStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid presence payload"))
		return
	}
	record, err := h.service.UpdateStatus(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record)
}

// Backfill godoc
// @Summary Queue an absence backfill
// @Tags Presences
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.BackfillRequest true "Date range"
// @Success 202 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /presences/backfill [post]
func (h *PresenceHandler) Backfill(c *gin.Context) {
	var req dto.BackfillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid backfill payload"))
		return
	}
	accepted, err := h.backfill.Enqueue(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, accepted)
}

func bindListQuery(c *gin.Context) (dto.PresenceListRequest, bool) {
	var req dto.PresenceListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return req, false
	}
	return req, true
}
