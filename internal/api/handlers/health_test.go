package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChecker struct {
	status, message string
}

func (f fakeChecker) CheckReady() (string, string) {
	return f.status, f.message
}

func TestHealthLive(t *testing.T) {
	h := NewHealthHandler(nil, nil)
	rec := httptest.NewRecorder()

	h.HealthLive(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp healthLiveResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, statusOK, resp.Status)
	assert.Equal(t, serviceName, resp.Service)
}

func TestHealthReady(t *testing.T) {
	tests := []struct {
		name       string
		pg, auth   ReadinessChecker
		wantCode   int
		wantStatus string
	}{
		{"всё доступно", fakeChecker{status: statusOK}, fakeChecker{status: statusOK}, http.StatusOK, statusOK},
		{"JWKS недоступен", fakeChecker{status: statusOK}, fakeChecker{statusDegraded, "timeout"}, http.StatusOK, statusDegraded},
		{"PostgreSQL недоступен", fakeChecker{statusFail, "refused"}, fakeChecker{status: statusOK}, http.StatusServiceUnavailable, statusFail},
		{"PostgreSQL не инициализирован", nil, nil, http.StatusServiceUnavailable, statusFail},
		{"без проверки JWKS", fakeChecker{status: statusOK}, nil, http.StatusOK, statusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler(tt.pg, tt.auth)
			rec := httptest.NewRecorder()

			h.HealthReady(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

			assert.Equal(t, tt.wantCode, rec.Code)
			var resp healthReadyResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantStatus, resp.Status)
			assert.Contains(t, resp.Checks, "postgresql")
			if tt.auth == nil {
				assert.NotContains(t, resp.Checks, "auth_jwks")
			}
		})
	}
}

func TestOverallStatus(t *testing.T) {
	assert.Equal(t, statusOK, overallStatus())
	assert.Equal(t, statusOK, overallStatus(statusOK, statusOK))
	assert.Equal(t, statusDegraded, overallStatus(statusOK, statusDegraded))
	assert.Equal(t, statusFail, overallStatus(statusDegraded, statusFail))
}
