package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/miplaza/backend/internal/upload"
)

func newUploadFixture(t *testing.T) *UploadHandlers {
	t.Helper()
	service, err := upload.NewService(upload.ServiceConfig{
		BucketName:      "miplaza-media",
		AccessKeyID:     "test-access-key",
		SecretAccessKey: "test-secret-key",
		Endpoint:        "https://test.r2.cloudflarestorage.com",
	})
	if err != nil {
		t.Fatalf("failed to create upload service: %v", err)
	}
	return NewUploadHandlers(service)
}

func TestSignUpload(t *testing.T) {
	handlers := newUploadFixture(t)

	body := `{"content_type":"image/jpeg","size_bytes":1024,"kind":"posts"}`
	req := authed(httptest.NewRequest(http.MethodPost, "/uploads/sign", strings.NewReader(body)), 1)
	rec := httptest.NewRecorder()
	handlers.SignUpload(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp SignUploadResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.URL == "" {
		t.Error("expected a signed url")
	}
	if !strings.HasPrefix(resp.Key, "posts/") {
		t.Errorf("expected key under posts/, got %s", resp.Key)
	}
	if !strings.HasSuffix(resp.Key, ".jpg") {
		t.Errorf("expected .jpg extension, got %s", resp.Key)
	}
	if resp.ExpiresAt == "" {
		t.Error("expected an expiry timestamp")
	}
}

func TestSignUploadValidation(t *testing.T) {
	handlers := newUploadFixture(t)

	tests := []struct {
		name     string
		body     string
		wantCode string
	}{
		{"unsupported type", `{"content_type":"application/pdf","size_bytes":1024}`, ErrCodeUnsupportedType},
		{"missing content type", `{"size_bytes":1024}`, ErrCodeValidation},
		{"zero size", `{"content_type":"image/png","size_bytes":0}`, ErrCodeValidation},
		{"too large", `{"content_type":"image/png","size_bytes":999999999}`, ErrCodeValidation},
		{"invalid kind", `{"content_type":"image/png","size_bytes":1024,"kind":"../../etc"}`, ErrCodeValidation},
		{"malformed json", `{"content_type":`, ErrCodeBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := authed(httptest.NewRequest(http.MethodPost, "/uploads/sign", strings.NewReader(tt.body)), 1)
			rec := httptest.NewRecorder()
			handlers.SignUpload(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Errorf("expected status 400, got %d", rec.Code)
			}
			if resp := decodeError(t, rec); resp.Error.Code != tt.wantCode {
				t.Errorf("expected error code %s, got %s", tt.wantCode, resp.Error.Code)
			}
		})
	}
}
