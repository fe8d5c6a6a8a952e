package service

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/presence-api/internal/models"
)

func TestMetricsServiceCounters(t *testing.T) {
	m := NewMetricsService()
	m.RecordScan(models.PresenceStatusLate)
	m.RecordScan(models.PresenceStatusLate)
	m.RecordAbsencesMarked(AbsenceSourceSweeper, 3)
	m.RecordAbsencesMarked(AbsenceSourceBackfill, 0)
	m.ObserveHTTPRequest(http.MethodGet, "/api/presences", http.StatusOK, 10*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.scansTotal.WithLabelValues("LATE")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.absencesMarked.WithLabelValues(AbsenceSourceSweeper)))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.absencesMarked.WithLabelValues(AbsenceSourceBackfill)))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "presence_scans_total"))
}

func TestMetricsServiceNilSafe(t *testing.T) {
	var m *MetricsService
	m.RecordScan(models.PresenceStatusPresent)
	m.RecordAbsencesMarked(AbsenceSourceSweeper, 1)
	m.RecordSweeperRun("ok")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func testutilCounter(m *MetricsService, source string) float64 {
	return testutil.ToFloat64(m.absencesMarked.WithLabelValues(source))
}
