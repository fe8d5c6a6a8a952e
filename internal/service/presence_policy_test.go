package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/presence-api/internal/models"
)

func at(loc *time.Location, hour, minute int) time.Time {
	return time.Date(2025, 6, 2, hour, minute, 0, 0, loc)
}

func TestPresencePolicyDefaultThresholds(t *testing.T) {
	policy := DefaultPresencePolicy(time.UTC)
	cases := []struct {
		name string
		at   time.Time
		want models.PresenceStatus
	}{
		{"midnight", at(time.UTC, 0, 0), models.PresenceStatusPresent},
		{"08:10", at(time.UTC, 8, 10), models.PresenceStatusPresent},
		{"08:15 boundary", at(time.UTC, 8, 15), models.PresenceStatusPresent},
		{"08:15:59 same minute", at(time.UTC, 8, 15).Add(59 * time.Second), models.PresenceStatusPresent},
		{"08:16", at(time.UTC, 8, 16), models.PresenceStatusLate},
		{"09:00", at(time.UTC, 9, 0), models.PresenceStatusLate},
		{"16:00 boundary", at(time.UTC, 16, 0), models.PresenceStatusLate},
		{"16:01", at(time.UTC, 16, 1), models.PresenceStatusAbsent},
		{"17:00", at(time.UTC, 17, 0), models.PresenceStatusAbsent},
		{"23:59", at(time.UTC, 23, 59), models.PresenceStatusAbsent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, policy.Classify(tc.at))
		})
	}
}

func TestPresencePolicyUsesConfiguredTimezone(t *testing.T) {
	plusOne := time.FixedZone("WAT", 3600)
	policy := DefaultPresencePolicy(plusOne)

	// 07:30 UTC is 08:30 at UTC+1.
	assert.Equal(t, models.PresenceStatusLate, policy.Classify(at(time.UTC, 7, 30)))
	assert.Equal(t, models.PresenceStatusPresent, policy.Classify(at(time.UTC, 7, 10)))
}

func TestPresencePolicyCustomCutoffs(t *testing.T) {
	policy := NewPresencePolicy("09:00", "17:30", time.UTC, nil)
	assert.Equal(t, models.PresenceStatusPresent, policy.Classify(at(time.UTC, 9, 0)))
	assert.Equal(t, models.PresenceStatusLate, policy.Classify(at(time.UTC, 17, 30)))
	assert.Equal(t, models.PresenceStatusAbsent, policy.Classify(at(time.UTC, 17, 31)))
}

func TestPresencePolicyInvalidCutoffsFallBack(t *testing.T) {
	for _, cutoffs := range [][2]string{{"25:00", "16:00"}, {"08:15", "late"}, {"16:00", "08:15"}, {"10:00", "10:00"}} {
		policy := NewPresencePolicy(cutoffs[0], cutoffs[1], time.UTC, nil)
		assert.Equal(t, models.PresenceStatusPresent, policy.Classify(at(time.UTC, 8, 15)), cutoffs)
		assert.Equal(t, models.PresenceStatusLate, policy.Classify(at(time.UTC, 16, 0)), cutoffs)
		assert.Equal(t, models.PresenceStatusAbsent, policy.Classify(at(time.UTC, 16, 1)), cutoffs)
	}
}
