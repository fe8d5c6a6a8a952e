package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/presence-api/internal/dto"
	"github.com/noah-isme/presence-api/internal/middleware"
	"github.com/noah-isme/presence-api/internal/models"
	appErrors "github.com/noah-isme/presence-api/pkg/errors"
)

type presenceServiceMock struct {
	scanErr    error
	listReq    *dto.PresenceListRequest
	updateReq  *dto.UpdatePresenceStatusRequest
	updateErr  error
	historyFor string
}

func (m *presenceServiceMock) Scan(ctx context.Context, req dto.ScanRequest) (*models.PresenceRecord, error) {
	if m.scanErr != nil {
		return nil, m.scanErr
	}
	record := models.PresenceRecord{Presence: models.Presence{ID: "p1", UserID: req.Matricule, Status: models.PresenceStatusPresent, ScanTime: time.Now()}}
	return &record, nil
}

func (m *presenceServiceMock) List(ctx context.Context, req dto.PresenceListRequest) ([]models.PresenceRecord, error) {
	m.listReq = &req
	return []models.PresenceRecord{{Presence: models.Presence{ID: "p1"}}, {Presence: models.Presence{ID: "p2"}}}, nil
}

func (m *presenceServiceMock) StudentHistory(ctx context.Context, userID string) (*dto.StudentPresencesResponse, error) {
	m.historyFor = userID
	return &dto.StudentPresencesResponse{Presences: []models.Presence{}}, nil
}

func (m *presenceServiceMock) Today(ctx context.Context, userID string) (*dto.TodayPresenceResponse, error) {
	return &dto.TodayPresenceResponse{}, nil
}

func (m *presenceServiceMock) UpdateStatus(ctx context.Context, id string, req dto.UpdatePresenceStatusRequest) (*models.PresenceRecord, error) {
	m.updateReq = &req
	if m.updateErr != nil {
		return nil, m.updateErr
	}
	return &models.PresenceRecord{Presence: models.Presence{ID: id, Status: models.PresenceStatus(req.Status)}}, nil
}

type exporterMock struct{ format string }

func (m *exporterMock) Export(ctx context.Context, req dto.PresenceListRequest, format string) (*dto.ExportFile, error) {
	m.format = format
	return &dto.ExportFile{Filename: "presences.csv", ContentType: "text/csv; charset=utf-8", Payload: []byte("matricule\nM1\n")}, nil
}

type backfillMock struct{ req *dto.BackfillRequest }

func (m *backfillMock) Enqueue(ctx context.Context, req dto.BackfillRequest) (*dto.BackfillAccepted, error) {
	m.req = &req
	return &dto.BackfillAccepted{JobID: "job-1", StartDate: req.StartDate, EndDate: "2025-06-20"}, nil
}

type tokenStub map[string]*models.JWTClaims

func (s tokenStub) ValidateToken(token string) (*models.JWTClaims, error) {
	if claims, ok := s[token]; ok {
		return claims, nil
	}
	return nil, appErrors.ErrUnauthorized
}

var testTokens = tokenStub{
	"admin":     {UserID: "u-admin", Role: models.RoleAdmin},
	"vigil":     {UserID: "u-vigil", Role: models.RoleVigil},
	"apprenant": {UserID: "u-1", Role: models.RoleApprenant, Matricule: "M1"},
}

type presenceFixture struct {
	router   *gin.Engine
	service  *presenceServiceMock
	exporter *exporterMock
	backfill *backfillMock
}

func newPresenceFixture(patchRequiresAdmin bool) *presenceFixture {
	gin.SetMode(gin.TestMode)
	f := &presenceFixture{service: &presenceServiceMock{}, exporter: &exporterMock{}, backfill: &backfillMock{}}
	f.router = gin.New()
	RegisterPresenceRoutes(f.router.Group("/api"), NewPresenceHandler(f.service, f.exporter, f.backfill), PresenceRouteConfig{
		Authenticate:       middleware.JWT(testTokens),
		PatchRequiresAdmin: patchRequiresAdmin,
	})
	return f
}

func (f *presenceFixture) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		payload, _ := json.Marshal(body)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func TestPresenceRoutesAuthorization(t *testing.T) {
	cases := []struct {
		method string
		path   string
		token  string
		body   interface{}
		want   int
	}{
		{http.MethodPost, "/api/presences/scan", "", dto.ScanRequest{Matricule: "M1"}, http.StatusUnauthorized},
		{http.MethodPost, "/api/presences/scan", "admin", dto.ScanRequest{Matricule: "M1"}, http.StatusForbidden},
		{http.MethodPost, "/api/presences/scan", "vigil", dto.ScanRequest{Matricule: "M1"}, http.StatusCreated},
		{http.MethodGet, "/api/presences", "apprenant", nil, http.StatusForbidden},
		{http.MethodGet, "/api/presences", "vigil", nil, http.StatusOK},
		{http.MethodGet, "/api/presences/export", "vigil", nil, http.StatusForbidden},
		{http.MethodGet, "/api/presences/export", "admin", nil, http.StatusOK},
		{http.MethodPost, "/api/presences/backfill", "vigil", dto.BackfillRequest{StartDate: "2025-06-01"}, http.StatusForbidden},
		{http.MethodPost, "/api/presences/backfill", "admin", dto.BackfillRequest{StartDate: "2025-06-01"}, http.StatusAccepted},
		{http.MethodGet, "/api/presences/estMarquer/M1", "apprenant", nil, http.StatusForbidden},
		{http.MethodGet, "/api/presences/estMarquer/M1", "admin", nil, http.StatusOK},
		{http.MethodGet, "/api/presences/M1", "", nil, http.StatusUnauthorized},
		{http.MethodGet, "/api/presences/M1", "apprenant", nil, http.StatusOK},
		{http.MethodPatch, "/api/presences/p1", "", dto.UpdatePresenceStatusRequest{Status: "LATE"}, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.method+" "+tc.path+" as "+tc.token, func(t *testing.T) {
			w := newPresenceFixture(false).do(tc.method, tc.path, tc.token, tc.body)
			assert.Equal(t, tc.want, w.Code, w.Body.String())
		})
	}
}

func TestPresencePatchCanRequireAdmin(t *testing.T) {
	f := newPresenceFixture(true)
	body := dto.UpdatePresenceStatusRequest{Status: "LATE"}

	assert.Equal(t, http.StatusUnauthorized, f.do(http.MethodPatch, "/api/presences/p1", "", body).Code)
	assert.Equal(t, http.StatusForbidden, f.do(http.MethodPatch, "/api/presences/p1", "vigil", body).Code)
	assert.Equal(t, http.StatusOK, f.do(http.MethodPatch, "/api/presences/p1", "admin", body).Code)
}

func TestPresenceScanUnknownMatricule(t *testing.T) {
	f := newPresenceFixture(false)
	f.service.scanErr = appErrors.Clone(appErrors.ErrNotFound, "invalid matricule")

	w := f.do(http.MethodPost, "/api/presences/scan", "vigil", dto.ScanRequest{Matricule: "NOPE"})
	require.Equal(t, http.StatusNotFound, w.Code)

	var envelope struct {
		Error appErrors.Error `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, "invalid matricule", envelope.Error.Message)
}

func TestPresenceScanInvalidBody(t *testing.T) {
	f := newPresenceFixture(false)
	req := httptest.NewRequest(http.MethodPost, "/api/presences/scan", bytes.NewReader([]byte(`{`)))
	req.Header.Set("Authorization", "Bearer vigil")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPresenceListPassesQuery(t *testing.T) {
	f := newPresenceFixture(false)

	w := f.do(http.MethodGet, "/api/presences?startDate=2025-06-02&endDate=2025-06-06&status=LATE&referentiel=DEV_WEB", "admin", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, &dto.PresenceListRequest{StartDate: "2025-06-02", EndDate: "2025-06-06", Status: "LATE", Referentiel: "DEV_WEB"}, f.service.listReq)

	var envelope struct {
		Data []models.PresenceRecord `json:"data"`
		Meta map[string]interface{}  `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Len(t, envelope.Data, 2)
	assert.Equal(t, 2.0, envelope.Meta["count"])
}

func TestPresenceExportStreamsFile(t *testing.T) {
	f := newPresenceFixture(false)

	w := f.do(http.MethodGet, "/api/presences/export?format=csv", "admin", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "csv", f.exporter.format)
	assert.Equal(t, `attachment; filename="presences.csv"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, "matricule\nM1\n", w.Body.String())
}

func TestPresenceHistoryUsesPathParam(t *testing.T) {
	f := newPresenceFixture(false)

	w := f.do(http.MethodGet, "/api/presences/M42", "apprenant", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "M42", f.service.historyFor)
}

func TestPresencePatchEmptyBodyReachesService(t *testing.T) {
	f := newPresenceFixture(false)
	f.service.updateErr = appErrors.Clone(appErrors.ErrValidation, "status is required")

	w := f.do(http.MethodPatch, "/api/presences/p1", "", map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	require.NotNil(t, f.service.updateReq)
	assert.Empty(t, f.service.updateReq.Status)
}

func TestPresenceBackfillAccepted(t *testing.T) {
	f := newPresenceFixture(false)

	w := f.do(http.MethodPost, "/api/presences/backfill", "admin", dto.BackfillRequest{StartDate: "2025-06-01", DryRun: true})
	require.Equal(t, http.StatusAccepted, w.Code)
	require.NotNil(t, f.backfill.req)
	assert.True(t, f.backfill.req.DryRun)

	var envelope struct {
		Data dto.BackfillAccepted `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, "job-1", envelope.Data.JobID)
}
