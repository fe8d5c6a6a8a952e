package dto

import "github.com/noah-isme/presence-api/internal/models"

// ScanRequest is the body of POST /presences/scan.
type ScanRequest struct {
	Matricule string `json:"matricule" validate:"required"`
}

// PresenceListRequest carries the list and export query parameters. Dates are local
// calendar days (YYYY-MM-DD).
type PresenceListRequest struct {
	StartDate   string `form:"startDate" validate:"omitempty,datetime=2006-01-02"`
	EndDate     string `form:"endDate" validate:"omitempty,datetime=2006-01-02"`
	Status      string `form:"status" validate:"omitempty,presence_status"`
	Referentiel string `form:"referentiel"`
}

// UpdatePresenceStatusRequest is the body of PATCH /presences/:id.
type UpdatePresenceStatusRequest struct {
	Status   string  `json:"status" validate:"required,presence_status"`
	ScanTime *string `json:"scanTime"`
}

// StudentPresencesResponse is a learner's history with aggregated stats.
type StudentPresencesResponse struct {
	Presences []models.Presence    `json:"presences"`
	Stats     models.PresenceStats `json:"stats"`
}

// TodayPresenceResponse wraps the latest presence of the current day, if any.
type TodayPresenceResponse struct {
	Presence *models.Presence `json:"presence"`
}

// BackfillRequest is the body of POST /presences/backfill.
type BackfillRequest struct {
	StartDate string `json:"startDate" validate:"required,datetime=2006-01-02"`
	EndDate   string `json:"endDate" validate:"omitempty,datetime=2006-01-02"`
	DryRun    bool   `json:"dryRun"`
}

// BackfillAccepted is returned once a backfill job is queued.
type BackfillAccepted struct {
	JobID     string `json:"jobId"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
	DryRun    bool   `json:"dryRun"`
}

// ExportFile is a rendered presence export ready to stream.
type ExportFile struct {
	Filename    string
	ContentType string
	Payload     []byte
}
