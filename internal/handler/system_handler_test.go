package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

type pingStub struct {
	err error
}

func (p pingStub) PingContext(context.Context) error { return p.err }

func TestSystemHandlerEndpoints(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("presence_scans_total 1\n"))
	})

	tests := []struct {
		name    string
		handler *SystemHandler
		path    string
		code    int
		body    string
	}{
		{"health", NewSystemHandler(nil, nil), "/health", http.StatusOK, `"ok"`},
		{"ready", NewSystemHandler(pingStub{}, nil), "/ready", http.StatusOK, `"ready"`},
		{"ready db down", NewSystemHandler(pingStub{err: errors.New("connection refused")}, nil), "/ready", http.StatusServiceUnavailable, "connection refused"},
		{"ready without db", NewSystemHandler(nil, nil), "/ready", http.StatusServiceUnavailable, "unavailable"},
		{"metrics", NewSystemHandler(nil, metrics), "/metrics", http.StatusOK, "presence_scans_total"},
		{"metrics disabled", NewSystemHandler(nil, nil), "/metrics", http.StatusServiceUnavailable, ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := gin.New()
			tc.handler.Register(r)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tc.path, nil))

			assert.Equal(t, tc.code, w.Code)
			assert.Contains(t, w.Body.String(), tc.body)
		})
	}
}
