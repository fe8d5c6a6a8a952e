package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/presence-api/internal/dto"
	"github.com/noah-isme/presence-api/internal/models"
	appErrors "github.com/noah-isme/presence-api/pkg/errors"
)

type presenceRepository interface {
	Create(ctx context.Context, presence *models.Presence) error
	LatestInRange(ctx context.Context, userID string, from, to time.Time) (*models.Presence, error)
	ListByUser(ctx context.Context, userID string) ([]models.Presence, error)
	List(ctx context.Context, filter models.PresenceFilter) ([]models.PresenceRecord, error)
	FindRecordByID(ctx context.Context, id string) (*models.PresenceRecord, error)
	UpdateStatus(ctx context.Context, id string, status models.PresenceStatus, scanTime *time.Time) error
}

type learnerFinder interface {
	FindByMatricule(ctx context.Context, matricule string) (*models.User, error)
}

type presenceClassifier interface {
	Classify(t time.Time) models.PresenceStatus
}

// PresenceService coordinates scans, corrections and presence queries.
type PresenceService struct {
	presences presenceRepository
	users     learnerFinder
	policy    presenceClassifier
	validator *validator.Validate
	metrics   *MetricsService
	logger    *zap.Logger
	loc       *time.Location
	now       func() time.Time
}

// NewPresenceService constructs the presence service. Day boundaries are computed in loc.
func NewPresenceService(presences presenceRepository, users learnerFinder, policy presenceClassifier, validate *validator.Validate, metrics *MetricsService, logger *zap.Logger, loc *time.Location) *PresenceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.Local
	}
	svc := &PresenceService{
		presences: presences,
		users:     users,
		policy:    policy,
		validator: validate,
		metrics:   metrics,
		logger:    logger,
		loc:       loc,
		now:       time.Now,
	}
	svc.validator.RegisterValidation("presence_status", func(fl validator.FieldLevel) bool {
		_, ok := models.ParsePresenceStatus(fl.Field().String())
		return ok
	})
	return svc
}

// Scan records a check-in for the learner holding the matricule, classified from the
// current time. Repeated scans on the same day each create a record.
func (s *PresenceService) Scan(ctx context.Context, req dto.ScanRequest) (*models.PresenceRecord, error) {
	req.Matricule = strings.TrimSpace(req.Matricule)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "matricule is required")
	}

	learner, err := s.users.FindByMatricule(ctx, req.Matricule)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "invalid matricule")
		}
		return nil, appErrors.Internal(err, "failed to load learner")
	}

	scanTime := s.now()
	presence := &models.Presence{
		UserID:   req.Matricule,
		Status:   s.policy.Classify(scanTime),
		ScanTime: scanTime,
	}
	if err := s.presences.Create(ctx, presence); err != nil {
		return nil, appErrors.Internal(err, "failed to record presence")
	}
	s.metrics.RecordScan(presence.Status)
	s.logger.Info("presence scanned",
		zap.String("matricule", presence.UserID),
		zap.String("status", string(presence.Status)),
		zap.Time("scan_time", presence.ScanTime))

	record := models.NewPresenceRecord(*presence, *learner)
	return &record, nil
}

// List returns presences matching the request, newest first, with their learner.
func (s *PresenceService) List(ctx context.Context, req dto.PresenceListRequest) ([]models.PresenceRecord, error) {
	filter, err := s.buildFilter(req)
	if err != nil {
		return nil, err
	}
	records, err := s.presences.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list presences")
	}
	return records, nil
}

// StudentHistory returns every presence of a learner with aggregated stats.
func (s *PresenceService) StudentHistory(ctx context.Context, userID string) (*dto.StudentPresencesResponse, error) {
	presences, err := s.presences.ListByUser(ctx, userID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load presences")
	}
	return &dto.StudentPresencesResponse{
		Presences: presences,
		Stats:     models.ComputePresenceStats(presences),
	}, nil
}

// Today returns the learner's most recent presence of the current local day, if any.
func (s *PresenceService) Today(ctx context.Context, userID string) (*dto.TodayPresenceResponse, error) {
	from, to := dayWindow(s.now(), s.loc)
	presence, err := s.presences.LatestInRange(ctx, userID, from, to)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load today's presence")
	}
	return &dto.TodayPresenceResponse{Presence: presence}, nil
}

// UpdateStatus corrects a presence's status and, optionally, its scan time.
func (s *PresenceService) UpdateStatus(ctx context.Context, id string, req dto.UpdatePresenceStatusRequest) (*models.PresenceRecord, error) {
	if strings.TrimSpace(req.Status) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "status is required")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid presence status")
	}
	status, _ := models.ParsePresenceStatus(req.Status)

	var scanTime *time.Time
	if req.ScanTime != nil && strings.TrimSpace(*req.ScanTime) != "" {
		parsed, err := time.Parse(time.RFC3339, strings.TrimSpace(*req.ScanTime))
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "scanTime must be RFC3339")
		}
		scanTime = &parsed
	}

	if err := s.presences.UpdateStatus(ctx, id, status, scanTime); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "presence not found")
		}
		return nil, appErrors.Internal(err, "failed to update presence")
	}

	record, err := s.presences.FindRecordByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "presence not found")
		}
		return nil, appErrors.Internal(err, "failed to load presence")
	}
	s.logger.Info("presence corrected", zap.String("id", id), zap.String("status", string(status)))
	return record, nil
}

func (s *PresenceService) buildFilter(req dto.PresenceListRequest) (models.PresenceFilter, error) {
	if err := s.validator.Struct(req); err != nil {
		return models.PresenceFilter{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid presence filters")
	}

	filter := models.PresenceFilter{Referentiel: strings.TrimSpace(req.Referentiel)}
	if req.StartDate != "" {
		day, err := time.ParseInLocation(time.DateOnly, req.StartDate, s.loc)
		if err != nil {
			return filter, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid startDate")
		}
		from, _ := dayWindow(day, s.loc)
		filter.From = &from
	}
	if req.EndDate != "" {
		day, err := time.ParseInLocation(time.DateOnly, req.EndDate, s.loc)
		if err != nil {
			return filter, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid endDate")
		}
		_, to := dayWindow(day, s.loc)
		filter.To = &to
	}
	if req.Status != "" {
		status, ok := models.ParsePresenceStatus(req.Status)
		if !ok {
			return filter, appErrors.Clone(appErrors.ErrValidation, "invalid status")
		}
		filter.Status = &status
	}
	return filter, nil
}
