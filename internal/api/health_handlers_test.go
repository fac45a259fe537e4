package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type stubChecker struct {
	err error
}

func (c *stubChecker) HealthCheck(ctx context.Context) error { return c.err }

func TestHealth(t *testing.T) {
	handlers := NewHealthHandlers(HealthHandlersConfig{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	handlers.Health(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	var resp HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Status != "healthy" {
		t.Errorf("expected status healthy, got %s", resp.Status)
	}
	if resp.Checks["runtime"] != "ok" {
		t.Errorf("expected runtime check ok, got %s", resp.Checks["runtime"])
	}
}

func TestHealthMethodNotAllowed(t *testing.T) {
	handlers := NewHealthHandlers(HealthHandlersConfig{})

	req := httptest.NewRequest(http.MethodPost, "/health", nil)
	rec := httptest.NewRecorder()
	handlers.Health(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected status 405, got %d", rec.Code)
	}
}

func TestReady(t *testing.T) {
	tests := []struct {
		name       string
		config     HealthHandlersConfig
		wantStatus int
		wantCheck  string
		wantValue  string
	}{
		{
			name:       "no checkers configured",
			config:     HealthHandlersConfig{},
			wantStatus: http.StatusOK,
			wantCheck:  "database",
			wantValue:  "ok",
		},
		{
			name:       "all checkers healthy",
			config:     HealthHandlersConfig{DBChecker: &stubChecker{}, RedisChecker: &stubChecker{}, EmbeddingsChecker: &stubChecker{}},
			wantStatus: http.StatusOK,
			wantCheck:  "embeddings",
			wantValue:  "ok",
		},
		{
			name:       "database down",
			config:     HealthHandlersConfig{DBChecker: &stubChecker{err: errors.New("connection refused")}},
			wantStatus: http.StatusServiceUnavailable,
			wantCheck:  "database",
			wantValue:  "error",
		},
		{
			name:       "embeddings sidecar down",
			config:     HealthHandlersConfig{EmbeddingsChecker: &stubChecker{err: errors.New("dial tcp: connect refused")}},
			wantStatus: http.StatusServiceUnavailable,
			wantCheck:  "embeddings",
			wantValue:  "error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handlers := NewHealthHandlers(tt.config)

			req := httptest.NewRequest(http.MethodGet, "/ready", nil)
			rec := httptest.NewRecorder()
			handlers.Ready(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
			var resp HealthResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if resp.Checks[tt.wantCheck] != tt.wantValue {
				t.Errorf("expected %s check %s, got %s", tt.wantCheck, tt.wantValue, resp.Checks[tt.wantCheck])
			}
		})
	}
}
