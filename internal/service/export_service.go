package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/presence-api/internal/dto"
	"github.com/noah-isme/presence-api/internal/models"
	appErrors "github.com/noah-isme/presence-api/pkg/errors"
	"github.com/noah-isme/presence-api/pkg/export"
)

type presenceLister interface {
	List(ctx context.Context, req dto.PresenceListRequest) ([]models.PresenceRecord, error)
}

var presenceExportHeaders = []string{"matricule", "prenom", "nom", "referentiel", "statut", "date", "heure"}

// ExportService renders filtered presence listings as downloadable documents.
type ExportService struct {
	presences presenceLister
	renderers map[string]export.Renderer
	logger    *zap.Logger
	loc       *time.Location
	now       func() time.Time
}

// NewExportService constructs an ExportService with CSV and PDF renderers.
func NewExportService(presences presenceLister, logger *zap.Logger, loc *time.Location) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.Local
	}
	csv := export.NewCSVExporter(',')
	pdf := export.NewPDFExporter()
	return &ExportService{
		presences: presences,
		renderers: map[string]export.Renderer{
			csv.Extension(): csv,
			pdf.Extension(): pdf,
		},
		logger: logger,
		loc:    loc,
		now:    time.Now,
	}
}

// Export lists presences with the same filters as List and renders them in format
// ("csv" or "pdf", csv when empty).
func (s *ExportService) Export(ctx context.Context, req dto.PresenceListRequest, format string) (*dto.ExportFile, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = "csv"
	}
	renderer, ok := s.renderers[format]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}

	records, err := s.presences.List(ctx, req)
	if err != nil {
		return nil, err
	}

	dataset := export.Dataset{
		Title:   exportTitle(req),
		Headers: presenceExportHeaders,
		Rows:    make([]map[string]string, 0, len(records)),
	}
	for _, record := range records {
		local := record.ScanTime.In(s.loc)
		referentiel := ""
		if record.User.Referentiel != nil {
			referentiel = *record.User.Referentiel
		}
		dataset.Rows = append(dataset.Rows, map[string]string{
			"matricule":   record.UserID,
			"prenom":      record.User.FirstName,
			"nom":         record.User.LastName,
			"referentiel": referentiel,
			"statut":      string(record.Status),
			"date":        local.Format(time.DateOnly),
			"heure":       local.Format("15:04"),
		})
	}

	payload, err := renderer.Render(dataset)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to render export")
	}
	s.logger.Info("presence export rendered", zap.String("format", format), zap.Int("rows", len(records)))

	return &dto.ExportFile{
		Filename:    fmt.Sprintf("presences-%s.%s", s.now().In(s.loc).Format("20060102-1504"), renderer.Extension()),
		ContentType: renderer.ContentType(),
		Payload:     payload,
	}, nil
}

func exportTitle(req dto.PresenceListRequest) string {
	title := "Présences"
	switch {
	case req.StartDate != "" && req.EndDate != "":
		title += fmt.Sprintf(" du %s au %s", req.StartDate, req.EndDate)
	case req.StartDate != "":
		title += " depuis le " + req.StartDate
	case req.EndDate != "":
		title += " jusqu'au " + req.EndDate
	}
	if req.Referentiel != "" {
		title += " - " + req.Referentiel
	}
	return title
}
