package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestEmbeddingsCheckerCreation(t *testing.T) {
	url := "http://localhost:8091"

	checker := NewEmbeddingsChecker(url)
	if checker == nil {
		t.Fatal("expected checker to be non-nil")
	}

	if checker.url != url {
		t.Errorf("expected checker url to be %s, got %s", url, checker.url)
	}

	if checker.client == nil {
		t.Error("expected HTTP client to be initialized")
	}

	if checker.client.Timeout == 0 {
		t.Error("expected HTTP client timeout to be set")
	}
}

func TestEmbeddingsCheckerHealthy(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	checker := NewEmbeddingsChecker(server.URL)
	if err := checker.HealthCheck(context.Background()); err != nil {
		t.Errorf("expected healthy sidecar, got error: %v", err)
	}
}

func TestEmbeddingsCheckerUnhealthyStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	checker := NewEmbeddingsChecker(server.URL)
	if err := checker.HealthCheck(context.Background()); err == nil {
		t.Error("expected error for 503 response")
	}
}

func TestEmbeddingsCheckerUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	checker := NewEmbeddingsChecker(server.URL)
	if err := checker.HealthCheck(context.Background()); err == nil {
		t.Error("expected error for unreachable sidecar")
	}
}

func TestEmbeddingsCheckerMissingURL(t *testing.T) {
	checker := NewEmbeddingsChecker("")
	if err := checker.HealthCheck(context.Background()); err == nil {
		t.Error("expected error for empty URL")
	}
}
