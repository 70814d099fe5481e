package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type mockPinger struct {
	err error
}

func (m *mockPinger) Ping(context.Context) error { return m.err }

func TestHealthCheckBasicMode(t *testing.T) {
	t.Parallel()

	// Basic mode never touches dependencies, so a failing database does not
	// matter here.
	checker := NewHealthChecker(&mockPinger{err: errors.New("down")}, nil, nil)

	rec := httptest.NewRecorder()
	checker.HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var response HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if response.Status != "healthy" || response.Checks != nil {
		t.Errorf("response = %+v, expected healthy with no checks", response)
	}
}

func TestHealthCheckExtendedMode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		dbErr        error
		queueErr     error
		expectedCode int
	}{
		{"all healthy", nil, nil, http.StatusOK},
		{"database down", errors.New("terminating connection"), nil, http.StatusServiceUnavailable},
		{"queue down", nil, errors.New("broker gone"), http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			checker := NewHealthChecker(&mockPinger{err: tt.dbErr}, nil, &mockJobQueue{err: tt.queueErr})

			rec := httptest.NewRecorder()
			checker.HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/healthz?mode=extended", nil))

			if rec.Code != tt.expectedCode {
				t.Errorf("status = %d, expected %d", rec.Code, tt.expectedCode)
			}
			var response HealthResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if len(response.Checks) != 2 {
				t.Errorf("checks = %v, expected database and queue entries", response.Checks)
			}
		})
	}
}
