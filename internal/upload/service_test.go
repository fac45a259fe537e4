package upload

import (
	"strings"
	"testing"
)

// TestValidateContentType tests MIME type validation.
func TestValidateContentType(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		expectError bool
	}{
		{
			name:        "valid image/jpeg",
			contentType: MIMEImageJPEG,
			expectError: false,
		},
		{
			name:        "valid image/png",
			contentType: MIMEImagePNG,
			expectError: false,
		},
		{
			name:        "valid image/webp",
			contentType: MIMEImageWebP,
			expectError: false,
		},
		{
			name:        "valid video/mp4",
			contentType: MIMEVideoMP4,
			expectError: false,
		},
		{
			name:        "invalid image/gif",
			contentType: "image/gif",
			expectError: true,
		},
		{
			name:        "invalid application/pdf",
			contentType: "application/pdf",
			expectError: true,
		},
		{
			name:        "empty content type",
			contentType: "",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateContentType(tt.contentType)
			if tt.expectError && err == nil {
				t.Errorf("expected error for content type %s, got nil", tt.contentType)
			}
			if !tt.expectError && err != nil {
				t.Errorf("unexpected error for content type %s: %v", tt.contentType, err)
			}
			if tt.expectError && err != ErrUnsupportedType {
				t.Errorf("expected ErrUnsupportedType, got %v", err)
			}
		})
	}
}

// TestValidateFileSize tests file size validation.
func TestValidateFileSize(t *testing.T) {
	service := &Service{
		maxSizeBytes: 15 * 1024 * 1024, // 15MB
	}

	tests := []struct {
		name        string
		sizeBytes   int64
		expectError bool
	}{
		{
			name:        "valid 1MB file",
			sizeBytes:   1 * 1024 * 1024,
			expectError: false,
		},
		{
			name:        "valid 15MB file (at limit)",
			sizeBytes:   15 * 1024 * 1024,
			expectError: false,
		},
		{
			name:        "invalid 16MB file (over limit)",
			sizeBytes:   16 * 1024 * 1024,
			expectError: true,
		},
		{
			name:        "invalid 0 bytes",
			sizeBytes:   0,
			expectError: true,
		},
		{
			name:        "invalid negative size",
			sizeBytes:   -1,
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := service.ValidateFileSize(tt.sizeBytes)
			if tt.expectError && err == nil {
				t.Errorf("expected error for size %d, got nil", tt.sizeBytes)
			}
			if !tt.expectError && err != nil {
				t.Errorf("unexpected error for size %d: %v", tt.sizeBytes, err)
			}
		})
	}
}

// TestGenerateObjectKey tests object key generation.
func TestGenerateObjectKey(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		kind        string
		expectError bool
		checkPrefix string
		checkExt    string
	}{
		{
			name:        "jpeg post media",
			contentType: MIMEImageJPEG,
			kind:        KindPost,
			checkPrefix: "posts/",
			checkExt:    ".jpg",
		},
		{
			name:        "png story media",
			contentType: MIMEImagePNG,
			kind:        KindStory,
			checkPrefix: "stories/",
			checkExt:    ".png",
		},
		{
			name:        "mp4 story media",
			contentType: MIMEVideoMP4,
			kind:        KindStory,
			checkPrefix: "stories/",
			checkExt:    ".mp4",
		},
		{
			name:        "webp cover",
			contentType: MIMEImageWebP,
			kind:        KindCover,
			checkPrefix: "covers/",
			checkExt:    ".webp",
		},
		{
			name:        "empty kind defaults to posts",
			contentType: MIMEImageJPEG,
			kind:        "",
			checkPrefix: "posts/",
			checkExt:    ".jpg",
		},
		{
			name:        "invalid content type",
			contentType: "image/gif",
			kind:        KindPost,
			expectError: true,
		},
		{
			name:        "invalid kind",
			contentType: MIMEImageJPEG,
			kind:        "../../etc",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, err := GenerateObjectKey(tt.contentType, tt.kind)

			if tt.expectError {
				if err == nil {
					t.Errorf("expected error, got nil")
				}
				return
			}

			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}

			if !strings.HasPrefix(key, tt.checkPrefix) {
				t.Errorf("expected key to start with %s, got %s", tt.checkPrefix, key)
			}
			if !strings.HasSuffix(key, tt.checkExt) {
				t.Errorf("expected key to end with %s, got %s", tt.checkExt, key)
			}

			// Key should contain UUID (36 chars + prefix + extension)
			if len(key) < 36 {
				t.Errorf("key too short to contain UUID: %s", key)
			}
		})
	}
}

// TestGenerateObjectKeyUnique verifies consecutive keys never collide.
func TestGenerateObjectKeyUnique(t *testing.T) {
	first, err := GenerateObjectKey(MIMEImageJPEG, KindPost)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := GenerateObjectKey(MIMEImageJPEG, KindPost)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first == second {
		t.Errorf("expected unique keys, got %s twice", first)
	}
}

// TestNewService tests service initialization.
func TestNewService(t *testing.T) {
	tests := []struct {
		name        string
		config      ServiceConfig
		expectError bool
		errorMsg    string
	}{
		{
			name: "valid configuration",
			config: ServiceConfig{
				BucketName:      "test-bucket",
				AccessKeyID:     "test-key",
				SecretAccessKey: "test-secret",
				Endpoint:        "https://storage.example.com",
				MaxSizeMB:       15,
			},
			expectError: false,
		},
		{
			name: "missing bucket name",
			config: ServiceConfig{
				AccessKeyID:     "test-key",
				SecretAccessKey: "test-secret",
				Endpoint:        "https://storage.example.com",
			},
			expectError: true,
			errorMsg:    "bucket name is required",
		},
		{
			name: "missing access key",
			config: ServiceConfig{
				BucketName:      "test-bucket",
				SecretAccessKey: "test-secret",
				Endpoint:        "https://storage.example.com",
			},
			expectError: true,
			errorMsg:    "access key ID is required",
		},
		{
			name: "missing secret",
			config: ServiceConfig{
				BucketName:  "test-bucket",
				AccessKeyID: "test-key",
				Endpoint:    "https://storage.example.com",
			},
			expectError: true,
			errorMsg:    "secret access key is required",
		},
		{
			name: "missing endpoint",
			config: ServiceConfig{
				BucketName:      "test-bucket",
				AccessKeyID:     "test-key",
				SecretAccessKey: "test-secret",
			},
			expectError: true,
			errorMsg:    "endpoint is required",
		},
		{
			name: "defaults applied",
			config: ServiceConfig{
				BucketName:      "test-bucket",
				AccessKeyID:     "test-key",
				SecretAccessKey: "test-secret",
				Endpoint:        "https://storage.example.com",
				// MaxSizeMB and URLExpiryMinutes not set
			},
			expectError: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, err := NewService(tt.config)

			if tt.expectError {
				if err == nil {
					t.Errorf("expected error, got nil")
				}
				if tt.errorMsg != "" && err.Error() != tt.errorMsg {
					t.Errorf("expected error message %q, got %q", tt.errorMsg, err.Error())
				}
				return
			}

			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}

			if service == nil {
				t.Errorf("expected service to be non-nil")
				return
			}

			// Check defaults were applied
			if tt.config.MaxSizeMB > 0 && service.maxSizeBytes != int64(tt.config.MaxSizeMB)*1024*1024 {
				t.Errorf("expected max size %d, got %d", tt.config.MaxSizeMB*1024*1024, service.maxSizeBytes)
			}
			if tt.config.MaxSizeMB == 0 && service.maxSizeBytes != 15*1024*1024 {
				t.Errorf("expected default max size 15MB, got %d bytes", service.maxSizeBytes)
			}
		})
	}
}
