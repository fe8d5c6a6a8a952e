package service

import (
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/presence-api/internal/models"
)

const (
	// DefaultOnTimeCutoff is the last minute of the day (08:15) still counted as PRESENT.
	DefaultOnTimeCutoff = "08:15"
	// DefaultLateCutoff is the last minute of the day (16:00) still counted as LATE.
	DefaultLateCutoff = "16:00"
)

type presenceThreshold struct {
	cutoffMinutes int
	status        models.PresenceStatus
}

// PresencePolicy classifies a scan time into a presence status. Thresholds are checked in
// order against minutes since local midnight; anything past the last one is ABSENT.
type PresencePolicy struct {
	thresholds []presenceThreshold
	loc        *time.Location
}

// NewPresencePolicy builds a policy from "HH:MM" cutoffs evaluated in loc. Unparsable or
// non-increasing cutoffs fall back to the 08:15 / 16:00 defaults.
func NewPresencePolicy(onTime, late string, loc *time.Location, logger *zap.Logger) *PresencePolicy {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.Local
	}

	defaultOnTime, _ := parseClockMinutes(DefaultOnTimeCutoff)
	defaultLate, _ := parseClockMinutes(DefaultLateCutoff)

	onTimeMinutes, okOnTime := parseClockMinutes(onTime)
	lateMinutes, okLate := parseClockMinutes(late)
	if !okOnTime || !okLate || onTimeMinutes >= lateMinutes {
		if onTime != DefaultOnTimeCutoff || late != DefaultLateCutoff {
			logger.Warn("invalid presence cutoffs, using defaults",
				zap.String("on_time", onTime),
				zap.String("late", late),
				zap.String("default_on_time", DefaultOnTimeCutoff),
				zap.String("default_late", DefaultLateCutoff))
		}
		onTimeMinutes, lateMinutes = defaultOnTime, defaultLate
	}

	return &PresencePolicy{
		thresholds: []presenceThreshold{
			{cutoffMinutes: onTimeMinutes, status: models.PresenceStatusPresent},
			{cutoffMinutes: lateMinutes, status: models.PresenceStatusLate},
		},
		loc: loc,
	}
}

// DefaultPresencePolicy returns the 08:15 / 16:00 policy in loc.
func DefaultPresencePolicy(loc *time.Location) *PresencePolicy {
	return NewPresencePolicy(DefaultOnTimeCutoff, DefaultLateCutoff, loc, nil)
}

// Classify maps t to PRESENT, LATE or ABSENT.
func (p *PresencePolicy) Classify(t time.Time) models.PresenceStatus {
	local := t.In(p.loc)
	minutes := local.Hour()*60 + local.Minute()
	for _, threshold := range p.thresholds {
		if minutes <= threshold.cutoffMinutes {
			return threshold.status
		}
	}
	return models.PresenceStatusAbsent
}

// Location is the timezone the policy reads wall-clock time in.
func (p *PresencePolicy) Location() *time.Location {
	return p.loc
}

func parseClockMinutes(raw string) (int, bool) {
	t, err := time.Parse("15:04", raw)
	if err != nil {
		return 0, false
	}
	return t.Hour()*60 + t.Minute(), true
}
