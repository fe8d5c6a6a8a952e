package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/presence-api/internal/models"
	"github.com/noah-isme/presence-api/internal/repository"
	appErrors "github.com/noah-isme/presence-api/pkg/errors"
)

// SweeperLockKey guards sweeper runs across replicas.
const SweeperLockKey = "presence:sweeper:lock"

type learnerLister interface {
	ListLearners(ctx context.Context) ([]models.User, error)
}

type absenceWriter interface {
	CreateIfAbsent(ctx context.Context, presence *models.Presence, from, to time.Time) (bool, error)
}

type runLocker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (repository.ReleaseFunc, error)
}

type holidayChecker interface {
	IsHoliday(t time.Time) bool
}

// SweepResult summarises one sweeper run.
type SweepResult struct {
	Day            string `json:"day"`
	Learners       int    `json:"learners"`
	MarkedAbsent   int    `json:"markedAbsent"`
	AlreadyPresent int    `json:"alreadyPresent"`
	Skipped        bool   `json:"skipped"`
	SkipReason     string `json:"skipReason,omitempty"`
}

// AbsenceSweeperConfig tunes the sweeper.
type AbsenceSweeperConfig struct {
	LockTTL  time.Duration
	Location *time.Location
	// SkipNonSchoolDays turns weekend and holiday runs into skips. Off by default: every
	// run marks absences whatever the calendar says.
	SkipNonSchoolDays bool
}

// AbsenceSweeper marks every tracked learner without a presence today as ABSENT.
type AbsenceSweeper struct {
	learners  learnerLister
	presences absenceWriter
	locker    runLocker
	holidays  holidayChecker
	metrics   *MetricsService
	logger    *zap.Logger
	cfg       AbsenceSweeperConfig
	now       func() time.Time
}

// NewAbsenceSweeper constructs the sweeper. A nil locker disables the run lock; a nil
// holiday checker treats every weekday as a school day.
func NewAbsenceSweeper(learners learnerLister, presences absenceWriter, locker runLocker, holidays holidayChecker, metrics *MetricsService, logger *zap.Logger, cfg AbsenceSweeperConfig) *AbsenceSweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 10 * time.Minute
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	return &AbsenceSweeper{
		learners:  learners,
		presences: presences,
		locker:    locker,
		holidays:  holidays,
		metrics:   metrics,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Run sweeps the current local day. A run while another replica holds the lock is
// reported as skipped, as are weekends and holidays when SkipNonSchoolDays is set.
func (s *AbsenceSweeper) Run(ctx context.Context) (SweepResult, error) {
	now := s.now()
	from, to := dayWindow(now, s.cfg.Location)
	result := SweepResult{Day: from.Format(time.DateOnly)}

	if s.cfg.SkipNonSchoolDays {
		if !isWeekday(from) {
			return s.skip(result, "weekend"), nil
		}
		if s.holidays != nil && s.holidays.IsHoliday(from) {
			return s.skip(result, "holiday"), nil
		}
	}

	if s.locker != nil {
		release, err := s.locker.Acquire(ctx, SweeperLockKey, s.cfg.LockTTL)
		if err != nil {
			if errors.Is(err, appErrors.ErrLockHeld) {
				return s.skip(result, "locked"), nil
			}
			return result, fmt.Errorf("acquire sweeper lock: %w", err)
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				s.logger.Warn("failed to release sweeper lock", zap.Error(err))
			}
		}()
	}

	learners, err := s.learners.ListLearners(ctx)
	if err != nil {
		return result, appErrors.Internal(err, "failed to list learners")
	}
	for _, learner := range learners {
		if !learner.Tracked() {
			continue
		}
		result.Learners++
		presence := &models.Presence{
			UserID:   learner.MatriculeValue(),
			Status:   models.PresenceStatusAbsent,
			ScanTime: now,
		}
		inserted, err := s.presences.CreateIfAbsent(ctx, presence, from, to)
		if err != nil {
			s.metrics.RecordAbsencesMarked(AbsenceSourceSweeper, result.MarkedAbsent)
			return result, appErrors.Internal(err, fmt.Sprintf("failed to mark %s absent", presence.UserID))
		}
		if inserted {
			result.MarkedAbsent++
			s.logger.Info("learner marked absent", zap.String("matricule", presence.UserID), zap.String("name", learner.FullName()))
			continue
		}
		result.AlreadyPresent++
		s.logger.Debug("learner already has a presence", zap.String("matricule", presence.UserID), zap.String("name", learner.FullName()))
	}

	s.metrics.RecordAbsencesMarked(AbsenceSourceSweeper, result.MarkedAbsent)
	s.metrics.RecordSweeperRun("ok")
	s.logger.Info("absence sweep completed",
		zap.String("day", result.Day),
		zap.Int("learners", result.Learners),
		zap.Int("marked_absent", result.MarkedAbsent),
		zap.Int("already_present", result.AlreadyPresent))
	return result, nil
}

// RunScheduled is the cron entrypoint. Failures and panics are logged, never propagated.
func (s *AbsenceSweeper) RunScheduled(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.metrics.RecordSweeperRun("failed")
			s.logger.Error("absence sweep panicked", zap.Any("panic", r))
		}
	}()
	if _, err := s.Run(ctx); err != nil {
		s.metrics.RecordSweeperRun("failed")
		s.logger.Error("absence sweep failed", zap.Error(err))
	}
}

func (s *AbsenceSweeper) skip(result SweepResult, reason string) SweepResult {
	result.Skipped = true
	result.SkipReason = reason
	s.metrics.RecordSweeperRun("skipped")
	s.logger.Info("absence sweep skipped", zap.String("day", result.Day), zap.String("reason", reason))
	return result
}
