package models

import (
	"strings"
	"time"
)

// PresenceStatus is the closed set of attendance outcomes.
type PresenceStatus string

const (
	PresenceStatusPresent PresenceStatus = "PRESENT"
	PresenceStatusLate    PresenceStatus = "LATE"
	PresenceStatusAbsent  PresenceStatus = "ABSENT"
)

// Valid returns true when the status is a supported value.
func (s PresenceStatus) Valid() bool {
	switch s {
	case PresenceStatusPresent, PresenceStatusLate, PresenceStatusAbsent:
		return true
	default:
		return false
	}
}

// ParsePresenceStatus normalises raw input such as "late" into a PresenceStatus.
func ParsePresenceStatus(raw string) (PresenceStatus, bool) {
	status := PresenceStatus(strings.ToUpper(strings.TrimSpace(raw)))
	return status, status.Valid()
}

// Presence is one attendance event for one learner. UserID holds the learner's matricule.
type Presence struct {
	ID        string         `db:"id" json:"id"`
	UserID    string         `db:"user_id" json:"userId"`
	Status    PresenceStatus `db:"status" json:"status"`
	ScanTime  time.Time      `db:"scan_time" json:"scanTime"`
	CreatedAt time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time      `db:"updated_at" json:"updatedAt"`
}

// PresenceUser is the learner identity joined onto presence rows.
type PresenceUser struct {
	ID          string   `db:"id" json:"id"`
	Matricule   *string  `db:"matricule" json:"matricule"`
	FirstName   string   `db:"first_name" json:"firstName"`
	LastName    string   `db:"last_name" json:"lastName"`
	Role        UserRole `db:"role" json:"role"`
	Referentiel *string  `db:"referentiel" json:"referentiel,omitempty"`
}

// PresenceRecord extends a presence with its learner.
type PresenceRecord struct {
	Presence
	User PresenceUser `db:"user" json:"user"`
}

// NewPresenceRecord joins an in-memory presence with its learner.
func NewPresenceRecord(p Presence, u User) PresenceRecord {
	return PresenceRecord{
		Presence: p,
		User: PresenceUser{
			ID:          u.ID,
			Matricule:   u.Matricule,
			FirstName:   u.FirstName,
			LastName:    u.LastName,
			Role:        u.Role,
			Referentiel: u.Referentiel,
		},
	}
}

// PresenceFilter scopes presence listing. Nil or empty fields do not filter.
type PresenceFilter struct {
	From        *time.Time
	To          *time.Time
	Status      *PresenceStatus
	Referentiel string
	UserID      string
}

// PresenceStats summarises a learner's presence history.
type PresenceStats struct {
	Total              int     `json:"total"`
	Present            int     `json:"present"`
	Late               int     `json:"late"`
	Absent             int     `json:"absent"`
	PresencePercentage float64 `json:"presencePercentage"`
}

// ComputePresenceStats counts statuses. The percentage is present/total*100 and 0 when
// there are no records.
func ComputePresenceStats(presences []Presence) PresenceStats {
	stats := PresenceStats{Total: len(presences)}
	for _, p := range presences {
		switch p.Status {
		case PresenceStatusPresent:
			stats.Present++
		case PresenceStatusLate:
			stats.Late++
		case PresenceStatusAbsent:
			stats.Absent++
		}
	}
	if stats.Total > 0 {
		stats.PresencePercentage = float64(stats.Present) / float64(stats.Total) * 100
	}
	return stats
}
