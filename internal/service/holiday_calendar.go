package service

import (
	"encoding/json"
	"os"
	"time"

	"go.uber.org/zap"
)

// HolidayCalendar answers whether a date is a public holiday. The zero value and a nil
// calendar know no holidays.
type HolidayCalendar struct {
	dates map[string]struct{}
	loc   *time.Location
}

// NewHolidayCalendar builds a calendar from ISO dates (YYYY-MM-DD). Entries that do not
// parse are skipped.
func NewHolidayCalendar(dates []string, loc *time.Location, logger *zap.Logger) *HolidayCalendar {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.Local
	}
	set := make(map[string]struct{}, len(dates))
	for _, raw := range dates {
		day, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			logger.Warn("skipping invalid holiday entry", zap.String("value", raw), zap.Error(err))
			continue
		}
		set[day.Format(time.DateOnly)] = struct{}{}
	}
	return &HolidayCalendar{dates: set, loc: loc}
}

// LoadHolidayCalendar reads a JSON array of ISO dates from path. A missing, unreadable or
// malformed file yields an empty calendar and a warning, never an error.
func LoadHolidayCalendar(path string, loc *time.Location, logger *zap.Logger) *HolidayCalendar {
	if logger == nil {
		logger = zap.NewNop()
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		logger.Warn("holiday file unavailable, holidays will not be skipped", zap.String("path", path), zap.Error(err))
		return NewHolidayCalendar(nil, loc, logger)
	}

	var dates []string
	if err := json.Unmarshal(raw, &dates); err != nil {
		logger.Warn("holiday file malformed, holidays will not be skipped", zap.String("path", path), zap.Error(err))
		return NewHolidayCalendar(nil, loc, logger)
	}

	return NewHolidayCalendar(dates, loc, logger)
}

// IsHoliday compares t's calendar date in the calendar's timezone, ignoring time of day.
func (h *HolidayCalendar) IsHoliday(t time.Time) bool {
	if h == nil || len(h.dates) == 0 {
		return false
	}
	_, ok := h.dates[t.In(h.loc).Format(time.DateOnly)]
	return ok
}

// Len reports how many holidays are loaded.
func (h *HolidayCalendar) Len() int {
	if h == nil {
		return 0
	}
	return len(h.dates)
}
