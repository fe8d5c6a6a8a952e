package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/presence-api/internal/dto"
	"github.com/noah-isme/presence-api/internal/models"
	appErrors "github.com/noah-isme/presence-api/pkg/errors"
	"github.com/noah-isme/presence-api/pkg/jobs"
)

// BackfillJobType identifies backfill jobs on the queue.
const BackfillJobType = "presence.backfill"

type backfillStore interface {
	absenceWriter
	ExistsInRange(ctx context.Context, userID string, from, to time.Time) (bool, error)
}

type jobSubmitter interface {
	Submit(jobType string, payload interface{}) (string, error)
}

// BackfillRequest is an inclusive range of local calendar days.
type BackfillRequest struct {
	Start  time.Time
	End    time.Time
	DryRun bool
}

// BackfillEntry is one absence written, or that would be written on a dry run.
type BackfillEntry struct {
	Matricule string `json:"matricule"`
	Name      string `json:"name"`
	Day       string `json:"day"`
}

// BackfillReport summarises a backfill run.
type BackfillReport struct {
	Start       string          `json:"start"`
	End         string          `json:"end"`
	DryRun      bool            `json:"dryRun"`
	Learners    int             `json:"learners"`
	DaysScanned int             `json:"daysScanned"`
	DaysSkipped int             `json:"daysSkipped"`
	Inserted    int             `json:"inserted"`
	Entries     []BackfillEntry `json:"entries"`
}

// BackfillService inserts ABSENT records for school days where a learner has none.
type BackfillService struct {
	learners  learnerLister
	presences backfillStore
	holidays  holidayChecker
	queue     jobSubmitter
	validator *validator.Validate
	metrics   *MetricsService
	logger    *zap.Logger
	loc       *time.Location
	now       func() time.Time
}

// NewBackfillService constructs the backfill service.
func NewBackfillService(learners learnerLister, presences backfillStore, holidays holidayChecker, validate *validator.Validate, metrics *MetricsService, logger *zap.Logger, loc *time.Location) *BackfillService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.Local
	}
	return &BackfillService{
		learners:  learners,
		presences: presences,
		holidays:  holidays,
		validator: validate,
		metrics:   metrics,
		logger:    logger,
		loc:       loc,
		now:       time.Now,
	}
}

// AttachQueue sets the queue Enqueue submits to.
func (s *BackfillService) AttachQueue(queue jobSubmitter) {
	s.queue = queue
}

// ParseRequest parses YYYY-MM-DD bounds in the service timezone. An empty end means today.
func (s *BackfillService) ParseRequest(start, end string, dryRun bool) (BackfillRequest, error) {
	req := BackfillRequest{DryRun: dryRun}
	day, err := time.ParseInLocation(time.DateOnly, strings.TrimSpace(start), s.loc)
	if err != nil {
		return req, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "start date must be YYYY-MM-DD")
	}
	req.Start = day

	if strings.TrimSpace(end) == "" {
		req.End, _ = dayWindow(s.now(), s.loc)
	} else {
		day, err = time.ParseInLocation(time.DateOnly, strings.TrimSpace(end), s.loc)
		if err != nil {
			return req, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "end date must be YYYY-MM-DD")
		}
		req.End = day
	}

	if req.Start.After(req.End) {
		return req, appErrors.Clone(appErrors.ErrValidation, "start date is after end date")
	}
	return req, nil
}

// Run walks every day from Start to End inclusive. On Monday to Friday days that are not
// holidays it writes an ABSENT record at the end of the day for each tracked learner
// without a presence that day. A dry run only counts.
func (s *BackfillService) Run(ctx context.Context, req BackfillRequest) (*BackfillReport, error) {
	first, _ := dayWindow(req.Start, s.loc)
	last, _ := dayWindow(req.End, s.loc)
	if first.After(last) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "start date is after end date")
	}

	learners, err := s.learners.ListLearners(ctx)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list learners")
	}

	report := &BackfillReport{
		Start:   first.Format(time.DateOnly),
		End:     last.Format(time.DateOnly),
		DryRun:  req.DryRun,
		Entries: []BackfillEntry{},
	}
	tracked := make([]models.User, 0, len(learners))
	for _, learner := range learners {
		if learner.Tracked() {
			tracked = append(tracked, learner)
		}
	}
	report.Learners = len(tracked)

	for day := first; !day.After(last); day = day.AddDate(0, 0, 1) {
		if err := ctx.Err(); err != nil {
			s.metrics.RecordAbsencesMarked(AbsenceSourceBackfill, report.Inserted)
			return report, err
		}
		if !isWeekday(day) || (s.holidays != nil && s.holidays.IsHoliday(day)) {
			report.DaysSkipped++
			continue
		}
		report.DaysScanned++

		from, to := dayWindow(day, s.loc)
		for _, learner := range tracked {
			inserted, err := s.fillDay(ctx, learner, from, to, req.DryRun)
			if err != nil {
				s.metrics.RecordAbsencesMarked(AbsenceSourceBackfill, report.Inserted)
				return report, appErrors.Internal(err, fmt.Sprintf("backfill %s on %s", learner.MatriculeValue(), from.Format(time.DateOnly)))
			}
			if !inserted {
				continue
			}
			entry := BackfillEntry{Matricule: learner.MatriculeValue(), Name: learner.FullName(), Day: from.Format(time.DateOnly)}
			report.Entries = append(report.Entries, entry)
			report.Inserted++
			s.logger.Info("absence backfilled",
				zap.String("matricule", entry.Matricule),
				zap.String("name", entry.Name),
				zap.String("day", entry.Day),
				zap.Bool("dry_run", req.DryRun))
		}
	}

	if !req.DryRun {
		s.metrics.RecordAbsencesMarked(AbsenceSourceBackfill, report.Inserted)
	}
	s.logger.Info("backfill completed",
		zap.String("start", report.Start),
		zap.String("end", report.End),
		zap.Bool("dry_run", report.DryRun),
		zap.Int("days_scanned", report.DaysScanned),
		zap.Int("days_skipped", report.DaysSkipped),
		zap.Int("inserted", report.Inserted))
	return report, nil
}

func (s *BackfillService) fillDay(ctx context.Context, learner models.User, from, to time.Time, dryRun bool) (bool, error) {
	matricule := learner.MatriculeValue()
	if dryRun {
		exists, err := s.presences.ExistsInRange(ctx, matricule, from, to)
		return !exists, err
	}
	return s.presences.CreateIfAbsent(ctx, &models.Presence{
		UserID:   matricule,
		Status:   models.PresenceStatusAbsent,
		ScanTime: to,
	}, from, to)
}

// Enqueue validates an admin request and queues it as a background job.
func (s *BackfillService) Enqueue(ctx context.Context, body dto.BackfillRequest) (*dto.BackfillAccepted, error) {
	if err := s.validator.Struct(body); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid backfill payload")
	}
	req, err := s.ParseRequest(body.StartDate, body.EndDate, body.DryRun)
	if err != nil {
		return nil, err
	}
	if s.queue == nil {
		return nil, appErrors.Clone(appErrors.ErrQueueUnavailable, "backfill queue is not running")
	}

	jobID, err := s.queue.Submit(BackfillJobType, req)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrQueueUnavailable.Code, appErrors.ErrQueueUnavailable.Status, "failed to queue backfill")
	}
	s.logger.Info("backfill queued", zap.String("job_id", jobID), zap.String("start", body.StartDate), zap.String("end", req.End.Format(time.DateOnly)))

	return &dto.BackfillAccepted{
		JobID:     jobID,
		StartDate: req.Start.Format(time.DateOnly),
		EndDate:   req.End.Format(time.DateOnly),
		DryRun:    req.DryRun,
	}, nil
}

// HandleJob runs a queued backfill. It is the queue's handler.
func (s *BackfillService) HandleJob(ctx context.Context, job jobs.Job) error {
	req, ok := job.Payload.(BackfillRequest)
	if !ok {
		s.logger.Error("unexpected backfill payload", zap.String("job_id", job.ID), zap.String("type", fmt.Sprintf("%T", job.Payload)))
		return nil
	}
	report, err := s.Run(ctx, req)
	if err != nil {
		return err
	}
	s.logger.Info("backfill job finished", zap.String("job_id", job.ID), zap.Int("inserted", report.Inserted))
	return nil
}
